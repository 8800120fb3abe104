package session

import (
	"context"

	waLog "go.mau.fi/whatsmeow/util/log"

	"github.com/kintamahadji/baileys-api/internal/auth"
	"github.com/kintamahadji/baileys-api/internal/data/store"
	"github.com/kintamahadji/baileys-api/internal/event"
)

// ReadyState is the transport state of a connection.
type ReadyState int

const (
	ReadyConnecting ReadyState = iota
	ReadyOpen
	ReadyClosing
	ReadyClosed
)

// Session statuses as reported by Status.
const (
	StatusConnecting    = "CONNECTING"
	StatusConnected     = "CONNECTED"
	StatusDisconnecting = "DISCONNECTING"
	StatusDisconnected  = "DISCONNECTED"
	StatusAuthenticated = "AUTHENTICATED"
)

func (s ReadyState) String() string {
	switch s {
	case ReadyConnecting:
		return StatusConnecting
	case ReadyOpen:
		return StatusConnected
	case ReadyClosing:
		return StatusDisconnecting
	default:
		return StatusDisconnected
	}
}

// SocketConfig holds the opaque connection options of a session. Known
// keys are interpreted by the Dialer; everything is persisted.
type SocketConfig map[string]any

// Existence is the answer of an existence query for one JID.
type Existence struct {
	JID    string `json:"jid"`
	Exists bool   `json:"exists"`
}

// Conn is one live protocol connection. It reports its lifecycle and data
// through the Emitter it was dialed with.
type Conn interface {
	// Connect starts connecting. Failures after it returned are reported
	// as a close update.
	Connect(ctx context.Context) error
	// Close drops the connection without logging out.
	Close()
	// Logout revokes the remote session.
	Logout(ctx context.Context) error

	ReadyState() ReadyState
	// User returns the authenticated identity, empty until confirmed.
	User() string

	SendText(ctx context.Context, jid, text string) (*store.Message, error)
	MarkRead(ctx context.Context, keys []store.MessageKey) error
	OnWhatsApp(ctx context.Context, jids ...string) ([]Existence, error)
	GroupMetadata(ctx context.Context, jid string) (*store.GroupMetadata, error)
	ProfilePictureURL(ctx context.Context, jid string) (string, error)
	Blocklist(ctx context.Context) ([]string, error)
	UpdateBlockStatus(ctx context.Context, jid string, block bool) error
}

// DialParams is everything a Dialer needs to open a connection.
type DialParams struct {
	SessionID string
	Creds     *auth.CredentialStore
	Socket    SocketConfig
	Emitter   event.Emitter
	Log       waLog.Logger
}

// Dialer opens protocol connections.
type Dialer interface {
	Dial(ctx context.Context, p DialParams) (Conn, error)
}
