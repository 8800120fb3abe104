package store

import "strings"

// schema contains the gateway table definitions. Every table is scoped by
// session_id; {{pk}} and {{blob}} are replaced per driver.
//
// Tables:
//   - session_records - Credential records and persisted session config
//   - chats - Chat metadata
//   - contacts - Contact data
//   - group_metadata - Group metadata with the participant list as JSON
//   - messages - Messages with receipts and reactions as JSON
const schema = `
-- ============================================================
-- Session records (creds, key material, session-config-*)
-- ============================================================
CREATE TABLE IF NOT EXISTS session_records (
    pk_id {{pk}},
    session_id TEXT NOT NULL,
    id TEXT NOT NULL,
    data {{blob}} NOT NULL,
    UNIQUE (session_id, id)
);
CREATE INDEX IF NOT EXISTS idx_session_records_session ON session_records(session_id);

-- ============================================================
-- Chats
-- ============================================================
CREATE TABLE IF NOT EXISTS chats (
    pk_id {{pk}},
    session_id TEXT NOT NULL,
    id TEXT NOT NULL,
    name TEXT,
    display_name TEXT,
    conversation_timestamp BIGINT,
    unread_count INTEGER,
    archived BOOLEAN NOT NULL DEFAULT FALSE,
    pinned BIGINT,
    mute_end_time BIGINT,
    marked_as_unread BOOLEAN NOT NULL DEFAULT FALSE,
    ephemeral_expiration INTEGER,
    UNIQUE (session_id, id)
);
CREATE INDEX IF NOT EXISTS idx_chats_session ON chats(session_id);

-- ============================================================
-- Contacts
-- ============================================================
CREATE TABLE IF NOT EXISTS contacts (
    pk_id {{pk}},
    session_id TEXT NOT NULL,
    id TEXT NOT NULL,
    name TEXT,
    notify TEXT,
    verified_name TEXT,
    img_url TEXT,
    status TEXT,
    UNIQUE (session_id, id)
);
CREATE INDEX IF NOT EXISTS idx_contacts_session ON contacts(session_id);

-- ============================================================
-- Group metadata
-- ============================================================
CREATE TABLE IF NOT EXISTS group_metadata (
    pk_id {{pk}},
    session_id TEXT NOT NULL,
    id TEXT NOT NULL,
    owner TEXT,
    subject TEXT,
    subject_owner TEXT,
    subject_time BIGINT,
    description TEXT,
    desc_id TEXT,
    desc_owner TEXT,
    creation BIGINT,
    is_restricted BOOLEAN NOT NULL DEFAULT FALSE,
    is_announce BOOLEAN NOT NULL DEFAULT FALSE,
    size INTEGER,
    ephemeral_duration INTEGER,
    participants TEXT,
    UNIQUE (session_id, id)
);
CREATE INDEX IF NOT EXISTS idx_group_metadata_session ON group_metadata(session_id);

-- ============================================================
-- Messages
-- ============================================================
CREATE TABLE IF NOT EXISTS messages (
    pk_id {{pk}},
    session_id TEXT NOT NULL,
    remote_jid TEXT NOT NULL,
    id TEXT NOT NULL,
    from_me BOOLEAN NOT NULL DEFAULT FALSE,
    participant TEXT,
    push_name TEXT,
    message_timestamp BIGINT,
    status INTEGER,
    starred BOOLEAN NOT NULL DEFAULT FALSE,
    revoked BOOLEAN NOT NULL DEFAULT FALSE,
    edited BOOLEAN NOT NULL DEFAULT FALSE,
    message_type TEXT,
    text TEXT,
    content {{blob}},
    user_receipt TEXT,
    reactions TEXT,
    UNIQUE (session_id, remote_jid, id)
);
CREATE INDEX IF NOT EXISTS idx_messages_session_chat ON messages(session_id, remote_jid);
`

func schemaStatements(driver string) []string {
	pk, blob := "INTEGER PRIMARY KEY AUTOINCREMENT", "BLOB"
	if driver == DriverPostgres {
		pk, blob = "BIGSERIAL PRIMARY KEY", "BYTEA"
	}
	ddl := strings.NewReplacer("{{pk}}", pk, "{{blob}}", blob).Replace(schema)

	var stmts []string
	for _, stmt := range strings.Split(ddl, ";") {
		var lines []string
		for _, line := range strings.Split(stmt, "\n") {
			if trimmed := strings.TrimSpace(line); trimmed != "" && !strings.HasPrefix(trimmed, "--") {
				lines = append(lines, line)
			}
		}
		if len(lines) > 0 {
			stmts = append(stmts, strings.Join(lines, "\n"))
		}
	}
	return stmts
}
