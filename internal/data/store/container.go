package store

import "context"

// Container provides unified access to all stores.
type Container struct {
	Store *Store

	Records  *RecordStore
	Chats    *ChatStore
	Contacts *ContactStore
	Groups   *GroupStore
	Messages *MessageStore
}

// NewContainer creates a new Container with all sub-stores initialized.
func NewContainer(s *Store) *Container {
	return &Container{
		Store:    s,
		Records:  NewRecordStore(s),
		Chats:    NewChatStore(s),
		Contacts: NewContactStore(s),
		Groups:   NewGroupStore(s),
		Messages: NewMessageStore(s),
	}
}

// WithTx runs fn with a Container whose sub-stores share one transaction.
func (c *Container) WithTx(ctx context.Context, fn func(tx *Container) error) error {
	return c.Store.WithTx(ctx, func(tx *Store) error {
		return fn(NewContainer(tx))
	})
}

// Close closes the underlying store.
func (c *Container) Close() error {
	return c.Store.Close()
}

// Stats holds per-session entity counts.
type Stats struct {
	Chats    int `json:"chats"`
	Contacts int `json:"contacts"`
	Groups   int `json:"groups"`
	Messages int `json:"messages"`
	Records  int `json:"records"`
}

// GetStats returns current entity counts for a session.
func (c *Container) GetStats(ctx context.Context, sessionID string) (*Stats, error) {
	stats := &Stats{}
	counts := []struct {
		table string
		dest  *int
	}{
		{"chats", &stats.Chats},
		{"contacts", &stats.Contacts},
		{"group_metadata", &stats.Groups},
		{"messages", &stats.Messages},
		{"session_records", &stats.Records},
	}
	for _, ct := range counts {
		if err := c.Store.QueryRow(ctx, `SELECT COUNT(*) FROM `+ct.table+` WHERE session_id = $1`, sessionID).Scan(ct.dest); err != nil {
			return nil, err
		}
	}
	return stats, nil
}
