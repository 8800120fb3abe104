package store

import (
	"context"
	"database/sql"
)

// MessageKey identifies a message inside a chat.
type MessageKey struct {
	RemoteJID   string `json:"remoteJid"`
	FromMe      bool   `json:"fromMe"`
	ID          string `json:"id"`
	Participant string `json:"participant,omitempty"`
}

// Author returns the identity keying per-author sub-collections: "me" for
// own messages, else the participant or the remote JID.
func (k MessageKey) Author() string {
	if k.FromMe {
		return "me"
	}
	if k.Participant != "" {
		return k.Participant
	}
	return k.RemoteJID
}

// MessageStatus mirrors the delivery state of a message.
type MessageStatus int

const (
	StatusError MessageStatus = iota
	StatusPending
	StatusServerAck
	StatusDeliveryAck
	StatusRead
	StatusPlayed
)

// Receipt records when a recipient received, read or played a message.
type Receipt struct {
	UserJID          string `json:"userJid"`
	ReceiptTimestamp int64  `json:"receiptTimestamp,omitempty"`
	ReadTimestamp    int64  `json:"readTimestamp,omitempty"`
	PlayedTimestamp  int64  `json:"playedTimestamp,omitempty"`
}

// Reaction is one author's reaction to a message.
type Reaction struct {
	Key               MessageKey `json:"key"`
	Text              string     `json:"text,omitempty"`
	SenderTimestampMs int64      `json:"senderTimestampMs,omitempty"`
}

// Message is a stored message. Content holds the serialized protobuf body.
type Message struct {
	PkID             int64         `json:"pkId"`
	SessionID        string        `json:"sessionId"`
	Key              MessageKey    `json:"key"`
	PushName         string        `json:"pushName,omitempty"`
	MessageTimestamp int64         `json:"messageTimestamp"`
	Status           MessageStatus `json:"status"`
	Starred          bool          `json:"starred"`
	Revoked          bool          `json:"revoked"`
	Edited           bool          `json:"edited"`
	MessageType      string        `json:"messageType,omitempty"`
	Text             string        `json:"text,omitempty"`
	Content          []byte        `json:"content,omitempty"`
	UserReceipt      []Receipt     `json:"userReceipt,omitempty"`
	Reactions        []Reaction    `json:"reactions,omitempty"`
}

// MessageUpdate is a partial message change; nil fields are left untouched.
type MessageUpdate struct {
	Key         MessageKey
	Status      *MessageStatus
	Starred     *bool
	Revoked     *bool
	MessageType *string
	Text        *string
	Content     []byte
}

// Apply merges u into m.
func (m *Message) Apply(u *MessageUpdate) {
	if u.Status != nil && *u.Status > m.Status {
		m.Status = *u.Status
	}
	if u.Starred != nil {
		m.Starred = *u.Starred
	}
	if u.Revoked != nil {
		m.Revoked = *u.Revoked
		if m.Revoked {
			m.Content = nil
			m.Text = ""
		}
	}
	if u.MessageType != nil {
		m.MessageType = *u.MessageType
	}
	if u.Text != nil {
		m.Text = *u.Text
		m.Edited = true
	}
	if u.Content != nil {
		m.Content = u.Content
		m.Edited = true
	}
}

// MessageStore handles message operations.
type MessageStore struct {
	store *Store
}

// NewMessageStore creates a new MessageStore.
func NewMessageStore(s *Store) *MessageStore {
	return &MessageStore{store: s}
}

const messageInsert = `
	INSERT INTO messages (
		session_id, remote_jid, id, from_me, participant, push_name, message_timestamp, status,
		starred, revoked, edited, message_type, text, content, user_receipt, reactions
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`

func messageArgs(sessionID string, m *Message) []any {
	return []any{
		sessionID, m.Key.RemoteJID, m.Key.ID, m.Key.FromMe, nullString(m.Key.Participant),
		nullString(m.PushName), nullInt64(m.MessageTimestamp), int(m.Status),
		m.Starred, m.Revoked, m.Edited, nullString(m.MessageType), nullString(m.Text), m.Content,
		jsonColumn(m.UserReceipt), jsonColumn(m.Reactions),
	}
}

// Upsert stores a message. Receipts and reactions already stored are kept
// unless m carries its own.
func (s *MessageStore) Upsert(ctx context.Context, sessionID string, m *Message) error {
	_, err := s.store.Exec(ctx, messageInsert+`
		ON CONFLICT (session_id, remote_jid, id) DO UPDATE SET
			from_me = excluded.from_me,
			participant = COALESCE(excluded.participant, messages.participant),
			push_name = COALESCE(excluded.push_name, messages.push_name),
			message_timestamp = COALESCE(excluded.message_timestamp, messages.message_timestamp),
			status = excluded.status,
			starred = excluded.starred,
			revoked = excluded.revoked,
			edited = excluded.edited,
			message_type = COALESCE(excluded.message_type, messages.message_type),
			text = COALESCE(excluded.text, messages.text),
			content = COALESCE(excluded.content, messages.content),
			user_receipt = COALESCE(excluded.user_receipt, messages.user_receipt),
			reactions = COALESCE(excluded.reactions, messages.reactions)
	`, messageArgs(sessionID, m)...)
	return err
}

// Insert creates a message row. It fails if the key is already taken.
func (s *MessageStore) Insert(ctx context.Context, sessionID string, m *Message) error {
	_, err := s.store.Exec(ctx, messageInsert, messageArgs(sessionID, m)...)
	return err
}

// InsertIgnore creates a message row unless the key is already taken.
func (s *MessageStore) InsertIgnore(ctx context.Context, sessionID string, m *Message) error {
	_, err := s.store.Exec(ctx, messageInsert+` ON CONFLICT (session_id, remote_jid, id) DO NOTHING`, messageArgs(sessionID, m)...)
	return err
}

// Find retrieves a message by chat and id.
func (s *MessageStore) Find(ctx context.Context, sessionID, remoteJID, id string) (*Message, error) {
	row := s.store.QueryRow(ctx, `SELECT `+messageColumns+` FROM messages
		WHERE session_id = $1 AND remote_jid = $2 AND id = $3`, sessionID, remoteJID, id)
	m, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return m, err
}

// Delete removes one message.
func (s *MessageStore) Delete(ctx context.Context, sessionID, remoteJID, id string) error {
	_, err := s.store.Exec(ctx, `DELETE FROM messages WHERE session_id = $1 AND remote_jid = $2 AND id = $3`,
		sessionID, remoteJID, id)
	return err
}

// DeleteIDs removes the named messages of a chat.
func (s *MessageStore) DeleteIDs(ctx context.Context, sessionID, remoteJID string, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	args := append([]any{sessionID, remoteJID}, stringArgs(ids)...)
	_, err := s.store.Exec(ctx, `DELETE FROM messages WHERE session_id = $1 AND remote_jid = $2 AND id IN (`+
		placeholders(3, len(ids))+`)`, args...)
	return err
}

// DeleteChat removes every message of a chat.
func (s *MessageStore) DeleteChat(ctx context.Context, sessionID, remoteJID string) error {
	_, err := s.store.Exec(ctx, `DELETE FROM messages WHERE session_id = $1 AND remote_jid = $2`, sessionID, remoteJID)
	return err
}

// DeleteBySession removes every message of the session.
func (s *MessageStore) DeleteBySession(ctx context.Context, sessionID string) error {
	_, err := s.store.Exec(ctx, `DELETE FROM messages WHERE session_id = $1`, sessionID)
	return err
}

// SetUserReceipt replaces the receipt list of a message.
func (s *MessageStore) SetUserReceipt(ctx context.Context, sessionID string, key MessageKey, receipts []Receipt) error {
	set := &setter{}
	set.set("user_receipt", jsonColumn(receipts))
	return updateRow(ctx, s.store.q, "messages", set, []string{"session_id", "remote_jid", "id"},
		sessionID, key.RemoteJID, key.ID)
}

// SetReactions replaces the reaction list of a message.
func (s *MessageStore) SetReactions(ctx context.Context, sessionID string, key MessageKey, reactions []Reaction) error {
	set := &setter{}
	set.set("reactions", jsonColumn(reactions))
	return updateRow(ctx, s.store.q, "messages", set, []string{"session_id", "remote_jid", "id"},
		sessionID, key.RemoteJID, key.ID)
}

// List returns one page of messages, restricted to one chat when
// remoteJID is non-empty.
func (s *MessageStore) List(ctx context.Context, sessionID, remoteJID string, p Page) ([]*Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages WHERE session_id = $1 AND pk_id > $2`
	args := []any{sessionID, p.Cursor}
	if remoteJID != "" {
		query += ` AND remote_jid = $3 ORDER BY pk_id LIMIT $4`
		args = append(args, remoteJID, p.limit())
	} else {
		query += ` ORDER BY pk_id LIMIT $3`
		args = append(args, p.limit())
	}

	rows, err := s.store.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}

const messageColumns = `pk_id, session_id, remote_jid, id, from_me, participant, push_name, message_timestamp,
	status, starred, revoked, edited, message_type, text, content, user_receipt, reactions`

func scanMessage(row scanner) (*Message, error) {
	var m Message
	var participant, pushName, messageType, text, receipts, reactions sql.NullString
	var ts, status sql.NullInt64
	if err := row.Scan(&m.PkID, &m.SessionID, &m.Key.RemoteJID, &m.Key.ID, &m.Key.FromMe, &participant,
		&pushName, &ts, &status, &m.Starred, &m.Revoked, &m.Edited, &messageType, &text, &m.Content,
		&receipts, &reactions); err != nil {
		return nil, err
	}
	m.Key.Participant = participant.String
	m.PushName = pushName.String
	m.MessageTimestamp = ts.Int64
	m.Status = MessageStatus(status.Int64)
	m.MessageType = messageType.String
	m.Text = text.String
	m.UserReceipt = fromJSONColumn[Receipt](receipts)
	m.Reactions = fromJSONColumn[Reaction](reactions)
	return &m, nil
}
