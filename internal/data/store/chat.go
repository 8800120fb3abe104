package store

import (
	"context"
	"database/sql"
)

// Chat is the stored view of one conversation of a session.
type Chat struct {
	PkID                  int64  `json:"pkId"`
	SessionID             string `json:"sessionId"`
	ID                    string `json:"id"`
	Name                  string `json:"name,omitempty"`
	DisplayName           string `json:"displayName,omitempty"`
	ConversationTimestamp int64  `json:"conversationTimestamp,omitempty"`
	UnreadCount           int    `json:"unreadCount,omitempty"`
	Archived              bool   `json:"archived"`
	Pinned                int64  `json:"pinned,omitempty"`
	MuteEndTime           int64  `json:"muteEndTime,omitempty"`
	MarkedAsUnread        bool   `json:"markedAsUnread"`
	EphemeralExpiration   int    `json:"ephemeralExpiration,omitempty"`
}

// ChatUpdate is a partial chat change; nil fields are left untouched.
type ChatUpdate struct {
	ID                    string
	Name                  *string
	ConversationTimestamp *int64
	UnreadCount           *int
	Archived              *bool
	Pinned                *int64
	MuteEndTime           *int64
	MarkedAsUnread        *bool
	EphemeralExpiration   *int
}

// ChatStore handles chat operations.
type ChatStore struct {
	store *Store
}

// NewChatStore creates a new ChatStore.
func NewChatStore(s *Store) *ChatStore {
	return &ChatStore{store: s}
}

// Upsert inserts a chat or merges the non-empty fields into the stored one.
func (s *ChatStore) Upsert(ctx context.Context, sessionID string, c *Chat) error {
	_, err := s.store.Exec(ctx, `
		INSERT INTO chats (
			session_id, id, name, display_name, conversation_timestamp, unread_count,
			archived, pinned, mute_end_time, marked_as_unread, ephemeral_expiration
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (session_id, id) DO UPDATE SET
			name = COALESCE(excluded.name, chats.name),
			display_name = COALESCE(excluded.display_name, chats.display_name),
			conversation_timestamp = COALESCE(excluded.conversation_timestamp, chats.conversation_timestamp),
			unread_count = COALESCE(excluded.unread_count, chats.unread_count),
			archived = excluded.archived,
			pinned = COALESCE(excluded.pinned, chats.pinned),
			mute_end_time = COALESCE(excluded.mute_end_time, chats.mute_end_time),
			marked_as_unread = excluded.marked_as_unread,
			ephemeral_expiration = COALESCE(excluded.ephemeral_expiration, chats.ephemeral_expiration)
	`,
		sessionID, c.ID, nullString(c.Name), nullString(c.DisplayName),
		nullInt64(c.ConversationTimestamp), nullInt(c.UnreadCount),
		c.Archived, nullInt64(c.Pinned), nullInt64(c.MuteEndTime), c.MarkedAsUnread,
		nullInt(c.EphemeralExpiration),
	)
	return err
}

// InsertIgnore inserts a chat unless one with the same id already exists.
func (s *ChatStore) InsertIgnore(ctx context.Context, sessionID string, c *Chat) error {
	_, err := s.store.Exec(ctx, `
		INSERT INTO chats (
			session_id, id, name, display_name, conversation_timestamp, unread_count,
			archived, pinned, mute_end_time, marked_as_unread, ephemeral_expiration
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (session_id, id) DO NOTHING
	`,
		sessionID, c.ID, nullString(c.Name), nullString(c.DisplayName),
		nullInt64(c.ConversationTimestamp), nullInt(c.UnreadCount),
		c.Archived, nullInt64(c.Pinned), nullInt64(c.MuteEndTime), c.MarkedAsUnread,
		nullInt(c.EphemeralExpiration),
	)
	return err
}

// Update applies u to an existing chat. Returns ErrNotFound when absent.
func (s *ChatStore) Update(ctx context.Context, sessionID string, u *ChatUpdate) error {
	set := &setter{}
	if u.Name != nil {
		set.set("name", nullString(*u.Name))
	}
	if u.ConversationTimestamp != nil {
		set.set("conversation_timestamp", *u.ConversationTimestamp)
	}
	if u.UnreadCount != nil {
		set.set("unread_count", *u.UnreadCount)
	}
	if u.Archived != nil {
		set.set("archived", *u.Archived)
	}
	if u.Pinned != nil {
		set.set("pinned", *u.Pinned)
	}
	if u.MuteEndTime != nil {
		set.set("mute_end_time", *u.MuteEndTime)
	}
	if u.MarkedAsUnread != nil {
		set.set("marked_as_unread", *u.MarkedAsUnread)
	}
	if u.EphemeralExpiration != nil {
		set.set("ephemeral_expiration", *u.EphemeralExpiration)
	}
	return updateRow(ctx, s.store.q, "chats", set, []string{"session_id", "id"}, sessionID, u.ID)
}

// Exists reports whether a chat row exists.
func (s *ChatStore) Exists(ctx context.Context, sessionID, id string) (bool, error) {
	var n int
	err := s.store.QueryRow(ctx, `SELECT COUNT(*) FROM chats WHERE session_id = $1 AND id = $2`, sessionID, id).Scan(&n)
	return n > 0, err
}

// Get retrieves a chat by id.
func (s *ChatStore) Get(ctx context.Context, sessionID, id string) (*Chat, error) {
	row := s.store.QueryRow(ctx, `SELECT `+chatColumns+` FROM chats WHERE session_id = $1 AND id = $2`, sessionID, id)
	c, err := scanChat(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return c, err
}

// IDs returns the ids of every stored chat of the session.
func (s *ChatStore) IDs(ctx context.Context, sessionID string) ([]string, error) {
	return queryIDs(ctx, s.store, `SELECT id FROM chats WHERE session_id = $1`, sessionID)
}

// List returns one page of chats.
func (s *ChatStore) List(ctx context.Context, sessionID string, p Page) ([]*Chat, error) {
	rows, err := s.store.Query(ctx, `
		SELECT `+chatColumns+` FROM chats
		WHERE session_id = $1 AND pk_id > $2
		ORDER BY pk_id LIMIT $3
	`, sessionID, p.Cursor, p.limit())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chats []*Chat
	for rows.Next() {
		c, err := scanChat(rows)
		if err != nil {
			return nil, err
		}
		chats = append(chats, c)
	}
	return chats, rows.Err()
}

// Delete removes the named chats.
func (s *ChatStore) Delete(ctx context.Context, sessionID string, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	args := append([]any{sessionID}, stringArgs(ids)...)
	_, err := s.store.Exec(ctx, `DELETE FROM chats WHERE session_id = $1 AND id IN (`+placeholders(2, len(ids))+`)`, args...)
	return err
}

// DeleteBySession removes every chat of the session.
func (s *ChatStore) DeleteBySession(ctx context.Context, sessionID string) error {
	_, err := s.store.Exec(ctx, `DELETE FROM chats WHERE session_id = $1`, sessionID)
	return err
}

const chatColumns = `pk_id, session_id, id, name, display_name, conversation_timestamp, unread_count,
	archived, pinned, mute_end_time, marked_as_unread, ephemeral_expiration`

type scanner interface {
	Scan(dest ...any) error
}

func scanChat(row scanner) (*Chat, error) {
	var c Chat
	var name, displayName sql.NullString
	var ts, unread, pinned, mute, ephemeral sql.NullInt64
	if err := row.Scan(&c.PkID, &c.SessionID, &c.ID, &name, &displayName, &ts, &unread,
		&c.Archived, &pinned, &mute, &c.MarkedAsUnread, &ephemeral); err != nil {
		return nil, err
	}
	c.Name = name.String
	c.DisplayName = displayName.String
	c.ConversationTimestamp = ts.Int64
	c.UnreadCount = int(unread.Int64)
	c.Pinned = pinned.Int64
	c.MuteEndTime = mute.Int64
	c.EphemeralExpiration = int(ephemeral.Int64)
	return &c, nil
}

func queryIDs(ctx context.Context, s *Store, query string, args ...any) ([]string, error) {
	rows, err := s.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
