// Package jid normalizes user supplied addresses into protocol JIDs.
package jid

import (
	"errors"
	"strings"

	"go.mau.fi/whatsmeow/types"
)

// ErrEmpty is returned for blank addresses.
var ErrEmpty = errors.New("empty jid")

// FromPhone creates a user JID from a phone number.
func FromPhone(phone string) types.JID {
	// Remove any non-digit characters
	cleaned := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)

	return types.JID{
		User:   cleaned,
		Server: types.DefaultUserServer,
	}
}

// Format turns an address into a JID. Full JIDs are parsed as given; a
// bare id becomes a group JID when group is set and a phone JID otherwise.
func Format(addr string, group bool) (types.JID, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return types.JID{}, ErrEmpty
	}
	if strings.Contains(addr, "@") {
		return types.ParseJID(addr)
	}
	if group {
		return types.NewJID(addr, types.GroupServer), nil
	}
	j := FromPhone(addr)
	if j.User == "" {
		return types.JID{}, ErrEmpty
	}
	return j, nil
}

// IsGroup returns true if the JID is a group.
func IsGroup(jid types.JID) bool {
	return jid.Server == types.GroupServer
}

// IsBroadcast returns true if the JID is a broadcast list or status.
func IsBroadcast(jid types.JID) bool {
	return jid.Server == types.BroadcastServer
}

// ToUserJID strips device info and returns the base user JID.
func ToUserJID(jid types.JID) types.JID {
	return types.JID{
		User:   jid.User,
		Server: jid.Server,
	}
}
