package auth

import (
	"encoding/base64"
	"fmt"

	"github.com/skip2/go-qrcode"
)

// QRImageSize is the edge length in pixels of rendered pairing codes.
const QRImageSize = 256

// QRDataURL renders a pairing code as a PNG data URL.
func QRDataURL(code string) (string, error) {
	if code == "" {
		return "", fmt.Errorf("empty QR payload")
	}
	png, err := qrcode.Encode(code, qrcode.Medium, QRImageSize)
	if err != nil {
		return "", fmt.Errorf("failed to generate QR code: %w", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}

// QRTerminal renders a pairing code for a terminal, used by the CLI.
func QRTerminal(code string) (string, error) {
	qr, err := qrcode.New(code, qrcode.Medium)
	if err != nil {
		return "", fmt.Errorf("failed to generate QR code: %w", err)
	}
	return qr.ToSmallString(false), nil
}
