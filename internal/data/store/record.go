package store

import (
	"context"
	"database/sql"
	"strings"
)

// Record is an opaque blob owned by a session: credentials, key material
// or the persisted session configuration.
type Record struct {
	SessionID string
	ID        string
	Data      []byte
}

// RecordStore handles session_records operations.
type RecordStore struct {
	store *Store
}

// NewRecordStore creates a new RecordStore.
func NewRecordStore(s *Store) *RecordStore {
	return &RecordStore{store: s}
}

// Get returns the blob stored under id. ok is false when no such record was
// ever written; err is reserved for failed reads.
func (s *RecordStore) Get(ctx context.Context, sessionID, id string) (data []byte, ok bool, err error) {
	err = s.store.QueryRow(ctx, `SELECT data FROM session_records WHERE session_id = $1 AND id = $2`,
		sessionID, id).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Put stores data under id, replacing any previous value.
func (s *RecordStore) Put(ctx context.Context, sessionID, id string, data []byte) error {
	_, err := s.store.Exec(ctx, `
		INSERT INTO session_records (session_id, id, data) VALUES ($1, $2, $3)
		ON CONFLICT (session_id, id) DO UPDATE SET data = excluded.data
	`, sessionID, id, data)
	return err
}

// PutIfAbsent stores data under id unless a value already exists.
func (s *RecordStore) PutIfAbsent(ctx context.Context, sessionID, id string, data []byte) error {
	_, err := s.store.Exec(ctx, `
		INSERT INTO session_records (session_id, id, data) VALUES ($1, $2, $3)
		ON CONFLICT (session_id, id) DO NOTHING
	`, sessionID, id, data)
	return err
}

// Delete removes the record stored under id. Deleting a missing record is
// not an error.
func (s *RecordStore) Delete(ctx context.Context, sessionID, id string) error {
	_, err := s.store.Exec(ctx, `DELETE FROM session_records WHERE session_id = $1 AND id = $2`, sessionID, id)
	return err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// ListByPrefix returns every record, across sessions, whose id starts
// with prefix.
func (s *RecordStore) ListByPrefix(ctx context.Context, prefix string) ([]Record, error) {
	return s.list(ctx, `
		SELECT session_id, id, data FROM session_records
		WHERE id LIKE $1 ESCAPE '\'
		ORDER BY pk_id
	`, likeEscaper.Replace(prefix)+"%")
}

// ListSessionPrefix returns the records of one session whose id starts
// with prefix.
func (s *RecordStore) ListSessionPrefix(ctx context.Context, sessionID, prefix string) ([]Record, error) {
	return s.list(ctx, `
		SELECT session_id, id, data FROM session_records
		WHERE session_id = $1 AND id LIKE $2 ESCAPE '\'
		ORDER BY pk_id
	`, sessionID, likeEscaper.Replace(prefix)+"%")
}

func (s *RecordStore) list(ctx context.Context, query string, args ...any) ([]Record, error) {
	rows, err := s.store.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []Record
	for rows.Next() {
		var r Record
		if err := rows.Scan(&r.SessionID, &r.ID, &r.Data); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// DeleteBySession removes every record of the session.
func (s *RecordStore) DeleteBySession(ctx context.Context, sessionID string) error {
	_, err := s.store.Exec(ctx, `DELETE FROM session_records WHERE session_id = $1`, sessionID)
	return err
}
