package store

import (
	"context"
	"database/sql"
)

// Participant is one member of a group.
type Participant struct {
	ID           string `json:"id"`
	IsAdmin      bool   `json:"isAdmin"`
	IsSuperAdmin bool   `json:"isSuperAdmin"`
}

// GroupMetadata is the stored view of a group of a session.
type GroupMetadata struct {
	PkID              int64         `json:"pkId"`
	SessionID         string        `json:"sessionId"`
	ID                string        `json:"id"`
	Owner             string        `json:"owner,omitempty"`
	Subject           string        `json:"subject"`
	SubjectOwner      string        `json:"subjectOwner,omitempty"`
	SubjectTime       int64         `json:"subjectTime,omitempty"`
	Desc              string        `json:"desc,omitempty"`
	DescID            string        `json:"descId,omitempty"`
	DescOwner         string        `json:"descOwner,omitempty"`
	Creation          int64         `json:"creation,omitempty"`
	Restrict          bool          `json:"restrict"`
	Announce          bool          `json:"announce"`
	Size              int           `json:"size,omitempty"`
	EphemeralDuration int           `json:"ephemeralDuration,omitempty"`
	Participants      []Participant `json:"participants"`
}

// GroupUpdate is a partial group change; nil fields are left untouched.
type GroupUpdate struct {
	ID                string
	Subject           *string
	SubjectOwner      *string
	SubjectTime       *int64
	Desc              *string
	DescID            *string
	DescOwner         *string
	Restrict          *bool
	Announce          *bool
	EphemeralDuration *int
	Participants      *[]Participant
}

// GroupStore handles group metadata operations.
type GroupStore struct {
	store *Store
}

// NewGroupStore creates a new GroupStore.
func NewGroupStore(s *Store) *GroupStore {
	return &GroupStore{store: s}
}

// Upsert replaces the stored group with g.
func (s *GroupStore) Upsert(ctx context.Context, sessionID string, g *GroupMetadata) error {
	size := g.Size
	if size == 0 {
		size = len(g.Participants)
	}
	_, err := s.store.Exec(ctx, `
		INSERT INTO group_metadata (
			session_id, id, owner, subject, subject_owner, subject_time, description, desc_id, desc_owner,
			creation, is_restricted, is_announce, size, ephemeral_duration, participants
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (session_id, id) DO UPDATE SET
			owner = excluded.owner,
			subject = excluded.subject,
			subject_owner = excluded.subject_owner,
			subject_time = excluded.subject_time,
			description = excluded.description,
			desc_id = excluded.desc_id,
			desc_owner = excluded.desc_owner,
			creation = excluded.creation,
			is_restricted = excluded.is_restricted,
			is_announce = excluded.is_announce,
			size = excluded.size,
			ephemeral_duration = excluded.ephemeral_duration,
			participants = excluded.participants
	`,
		sessionID, g.ID, nullString(g.Owner), nullString(g.Subject), nullString(g.SubjectOwner),
		nullInt64(g.SubjectTime), nullString(g.Desc), nullString(g.DescID), nullString(g.DescOwner),
		nullInt64(g.Creation), g.Restrict, g.Announce, nullInt(size), nullInt(g.EphemeralDuration),
		jsonColumn(g.Participants),
	)
	return err
}

// Update applies u to an existing group. Returns ErrNotFound when absent.
func (s *GroupStore) Update(ctx context.Context, sessionID string, u *GroupUpdate) error {
	set := &setter{}
	if u.Subject != nil {
		set.set("subject", nullString(*u.Subject))
	}
	if u.SubjectOwner != nil {
		set.set("subject_owner", nullString(*u.SubjectOwner))
	}
	if u.SubjectTime != nil {
		set.set("subject_time", *u.SubjectTime)
	}
	if u.Desc != nil {
		set.set("description", nullString(*u.Desc))
	}
	if u.DescID != nil {
		set.set("desc_id", nullString(*u.DescID))
	}
	if u.DescOwner != nil {
		set.set("desc_owner", nullString(*u.DescOwner))
	}
	if u.Restrict != nil {
		set.set("is_restricted", *u.Restrict)
	}
	if u.Announce != nil {
		set.set("is_announce", *u.Announce)
	}
	if u.EphemeralDuration != nil {
		set.set("ephemeral_duration", *u.EphemeralDuration)
	}
	if u.Participants != nil {
		set.set("participants", jsonColumn(*u.Participants))
		set.set("size", len(*u.Participants))
	}
	return updateRow(ctx, s.store.q, "group_metadata", set, []string{"session_id", "id"}, sessionID, u.ID)
}

// Get retrieves a group by id.
func (s *GroupStore) Get(ctx context.Context, sessionID, id string) (*GroupMetadata, error) {
	row := s.store.QueryRow(ctx, `SELECT `+groupColumns+` FROM group_metadata WHERE session_id = $1 AND id = $2`, sessionID, id)
	g, err := scanGroup(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	return g, err
}

// List returns one page of groups.
func (s *GroupStore) List(ctx context.Context, sessionID string, p Page) ([]*GroupMetadata, error) {
	rows, err := s.store.Query(ctx, `
		SELECT `+groupColumns+` FROM group_metadata
		WHERE session_id = $1 AND pk_id > $2
		ORDER BY pk_id LIMIT $3
	`, sessionID, p.Cursor, p.limit())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var groups []*GroupMetadata
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}

// DeleteBySession removes every group of the session.
func (s *GroupStore) DeleteBySession(ctx context.Context, sessionID string) error {
	_, err := s.store.Exec(ctx, `DELETE FROM group_metadata WHERE session_id = $1`, sessionID)
	return err
}

const groupColumns = `pk_id, session_id, id, owner, subject, subject_owner, subject_time, description, desc_id,
	desc_owner, creation, is_restricted, is_announce, size, ephemeral_duration, participants`

func scanGroup(row scanner) (*GroupMetadata, error) {
	var g GroupMetadata
	var owner, subject, subjectOwner, desc, descID, descOwner, participants sql.NullString
	var subjectTime, creation, size, ephemeral sql.NullInt64
	if err := row.Scan(&g.PkID, &g.SessionID, &g.ID, &owner, &subject, &subjectOwner, &subjectTime,
		&desc, &descID, &descOwner, &creation, &g.Restrict, &g.Announce, &size, &ephemeral, &participants); err != nil {
		return nil, err
	}
	g.Owner = owner.String
	g.Subject = subject.String
	g.SubjectOwner = subjectOwner.String
	g.SubjectTime = subjectTime.Int64
	g.Desc = desc.String
	g.DescID = descID.String
	g.DescOwner = descOwner.String
	g.Creation = creation.Int64
	g.Size = int(size.Int64)
	g.EphemeralDuration = int(ephemeral.Int64)
	g.Participants = fromJSONColumn[Participant](participants)
	return &g, nil
}
