package store

import (
	"context"
	"database/sql"
)

// Contact is the stored view of an address book entry of a session.
type Contact struct {
	PkID         int64  `json:"pkId"`
	SessionID    string `json:"sessionId"`
	ID           string `json:"id"`
	Name         string `json:"name,omitempty"`
	Notify       string `json:"notify,omitempty"`
	VerifiedName string `json:"verifiedName,omitempty"`
	ImgURL       string `json:"imgUrl,omitempty"`
	Status       string `json:"status,omitempty"`
}

// ContactUpdate is a partial contact change; nil fields are left untouched.
type ContactUpdate struct {
	ID           string
	Name         *string
	Notify       *string
	VerifiedName *string
	ImgURL       *string
	Status       *string
}

// ContactStore handles contact operations.
type ContactStore struct {
	store *Store
}

// NewContactStore creates a new ContactStore.
func NewContactStore(s *Store) *ContactStore {
	return &ContactStore{store: s}
}

// Upsert stores a contact, keeping stored values for empty fields.
func (s *ContactStore) Upsert(ctx context.Context, sessionID string, c *Contact) error {
	_, err := s.store.Exec(ctx, `
		INSERT INTO contacts (session_id, id, name, notify, verified_name, img_url, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (session_id, id) DO UPDATE SET
			name = COALESCE(excluded.name, contacts.name),
			notify = COALESCE(excluded.notify, contacts.notify),
			verified_name = COALESCE(excluded.verified_name, contacts.verified_name),
			img_url = COALESCE(excluded.img_url, contacts.img_url),
			status = COALESCE(excluded.status, contacts.status)
	`,
		sessionID, c.ID, nullString(c.Name), nullString(c.Notify),
		nullString(c.VerifiedName), nullString(c.ImgURL), nullString(c.Status),
	)
	return err
}

// Update applies u to an existing contact. Returns ErrNotFound when absent.
func (s *ContactStore) Update(ctx context.Context, sessionID string, u *ContactUpdate) error {
	set := &setter{}
	if u.Name != nil {
		set.set("name", nullString(*u.Name))
	}
	if u.Notify != nil {
		set.set("notify", nullString(*u.Notify))
	}
	if u.VerifiedName != nil {
		set.set("verified_name", nullString(*u.VerifiedName))
	}
	if u.ImgURL != nil {
		set.set("img_url", nullString(*u.ImgURL))
	}
	if u.Status != nil {
		set.set("status", nullString(*u.Status))
	}
	return updateRow(ctx, s.store.q, "contacts", set, []string{"session_id", "id"}, sessionID, u.ID)
}

// Get retrieves a contact by id.
func (s *ContactStore) Get(ctx context.Context, sessionID, id string) (*Contact, error) {
	row := s.store.QueryRow(ctx, `SELECT `+contactColumns+` FROM contacts WHERE session_id = $1 AND id = $2`, sessionID, id)
	c, err := scanContact(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return c, err
}

// IDs returns the ids of every stored contact of the session.
func (s *ContactStore) IDs(ctx context.Context, sessionID string) ([]string, error) {
	return queryIDs(ctx, s.store, `SELECT id FROM contacts WHERE session_id = $1`, sessionID)
}

// List returns one page of contacts whose id ends with suffix. An empty
// suffix lists everything.
func (s *ContactStore) List(ctx context.Context, sessionID, suffix string, p Page) ([]*Contact, error) {
	rows, err := s.store.Query(ctx, `
		SELECT `+contactColumns+` FROM contacts
		WHERE session_id = $1 AND pk_id > $2 AND id LIKE $3
		ORDER BY pk_id LIMIT $4
	`, sessionID, p.Cursor, "%"+suffix, p.limit())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contacts []*Contact
	for rows.Next() {
		c, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

// Delete removes the named contacts.
func (s *ContactStore) Delete(ctx context.Context, sessionID string, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	args := append([]any{sessionID}, stringArgs(ids)...)
	_, err := s.store.Exec(ctx, `DELETE FROM contacts WHERE session_id = $1 AND id IN (`+placeholders(2, len(ids))+`)`, args...)
	return err
}

// DeleteBySession removes every contact of the session.
func (s *ContactStore) DeleteBySession(ctx context.Context, sessionID string) error {
	_, err := s.store.Exec(ctx, `DELETE FROM contacts WHERE session_id = $1`, sessionID)
	return err
}

const contactColumns = `pk_id, session_id, id, name, notify, verified_name, img_url, status`

func scanContact(row scanner) (*Contact, error) {
	var c Contact
	var name, notify, verified, img, status sql.NullString
	if err := row.Scan(&c.PkID, &c.SessionID, &c.ID, &name, &notify, &verified, &img, &status); err != nil {
		return nil, err
	}
	c.Name = name.String
	c.Notify = notify.String
	c.VerifiedName = verified.String
	c.ImgURL = img.String
	c.Status = status.String
	return &c, nil
}
