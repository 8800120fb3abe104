// Package event defines the typed domain events a protocol connection
// emits and routes them to registered handlers.
package event

import "github.com/kintamahadji/baileys-api/internal/data/store"

// Connection is the transport state carried by a ConnectionUpdate.
type Connection string

const (
	ConnectionConnecting Connection = "connecting"
	ConnectionOpen       Connection = "open"
	ConnectionClose      Connection = "close"
)

// Disconnect status codes.
const (
	StatusLoggedOut           = 401
	StatusTimedOut            = 408
	StatusMultideviceMismatch = 411
	StatusConnectionClosed    = 428
	StatusConnectionReplaced  = 440
	StatusBadSession          = 500
	StatusRestartRequired     = 515
)

// Disconnect describes why a connection closed.
type Disconnect struct {
	StatusCode int
	Err        error
}

// ConnectionUpdate is the lifecycle event of a connection. Empty fields
// carry no information; an update may carry only a QR payload.
type ConnectionUpdate struct {
	Connection     Connection
	LastDisconnect *Disconnect
	QR             string
	IsNewLogin     bool
}

// CredsUpdate reports a changed identity, e.g. after pairing.
type CredsUpdate struct {
	Me           string
	LID          string
	Platform     string
	BusinessName string
}

// HistorySet is a full resynchronization snapshot. A nil Contacts slice
// means the snapshot carries no contact list; an empty one means the
// contact list is empty.
type HistorySet struct {
	Chats    []store.Chat
	Contacts []store.Contact
	Messages []store.Message
	IsLatest bool
}

type ChatsUpsert struct {
	Chats []store.Chat
}

type ChatsUpdate struct {
	Updates []store.ChatUpdate
}

type ChatsDelete struct {
	IDs []string
}

type ContactsUpsert struct {
	Contacts []store.Contact
}

type ContactsUpdate struct {
	Updates []store.ContactUpdate
}

type GroupsUpsert struct {
	Groups []store.GroupMetadata
}

type GroupsUpdate struct {
	Updates []store.GroupUpdate
}

// ParticipantAction is the kind of a group membership change.
type ParticipantAction string

const (
	ParticipantAdd     ParticipantAction = "add"
	ParticipantRemove  ParticipantAction = "remove"
	ParticipantLeave   ParticipantAction = "leave"
	ParticipantPromote ParticipantAction = "promote"
	ParticipantDemote  ParticipantAction = "demote"
)

type GroupParticipantsUpdate struct {
	ID           string
	Action       ParticipantAction
	Participants []string
}

// UpsertType tells live messages from catch-up ones.
type UpsertType string

const (
	UpsertNotify UpsertType = "notify"
	UpsertAppend UpsertType = "append"
)

type MessagesUpsert struct {
	Messages []store.Message
	Type     UpsertType
}

type MessagesUpdate struct {
	Updates []store.MessageUpdate
}

// MessagesDelete removes either every message of JID (All) or the
// messages named by Keys.
type MessagesDelete struct {
	JID  string
	All  bool
	Keys []store.MessageKey
}

type ReceiptEntry struct {
	Key     store.MessageKey
	Receipt store.Receipt
}

type ReceiptUpdate struct {
	Receipts []ReceiptEntry
}

type ReactionEntry struct {
	Key      store.MessageKey
	Reaction store.Reaction
}

type ReactionUpdate struct {
	Reactions []ReactionEntry
}
