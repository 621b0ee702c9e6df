package serve

import (
	"database/sql"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using modernc.org/sqlite (pure Go).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// Enable WAL mode for concurrent reads.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Init creates the schema tables.
func (s *SQLiteStore) Init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS messages (
		id              INTEGER PRIMARY KEY AUTOINCREMENT,
		conversation_id TEXT NOT NULL,
		role            TEXT NOT NULL,
		content         TEXT NOT NULL,
		origin          TEXT NOT NULL DEFAULT '',
		created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS member_stats (
		role            TEXT PRIMARY KEY,
		tasks_completed INTEGER NOT NULL DEFAULT 0,
		updated_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id);
	CREATE INDEX IF NOT EXISTS idx_messages_created ON messages(created_at);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// InsertMessage appends a message to a conversation.
func (s *SQLiteStore) InsertMessage(m StoredMessage) error {
	_, err := s.db.Exec(
		`INSERT INTO messages (conversation_id, role, content, origin)
		 VALUES (?, ?, ?, ?)`,
		m.ConversationID, m.Role, m.Content, m.Origin,
	)
	return err
}

// ListMessages returns a conversation's messages, oldest first.
func (s *SQLiteStore) ListMessages(conversationID string, limit int) ([]StoredMessage, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.db.Query(
		`SELECT id, conversation_id, role, content, origin, created_at
		 FROM messages WHERE conversation_id = ?
		 ORDER BY id ASC LIMIT ?`,
		conversationID, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StoredMessage
	for rows.Next() {
		var m StoredMessage
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Role, &m.Content, &m.Origin, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListConversations returns known conversation IDs, newest first.
func (s *SQLiteStore) ListConversations(limit int) ([]string, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(
		`SELECT conversation_id FROM messages
		 GROUP BY conversation_id ORDER BY MAX(id) DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// UpsertMemberStats records a member's completed-task counter.
func (s *SQLiteStore) UpsertMemberStats(role string, tasksCompleted int) error {
	_, err := s.db.Exec(
		`INSERT INTO member_stats (role, tasks_completed, updated_at)
		 VALUES (?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(role) DO UPDATE SET
		   tasks_completed = excluded.tasks_completed,
		   updated_at = CURRENT_TIMESTAMP`,
		role, tasksCompleted,
	)
	return err
}

// ListMemberStats returns persisted counters per role.
func (s *SQLiteStore) ListMemberStats() (map[string]int, error) {
	rows, err := s.db.Query(`SELECT role, tasks_completed FROM member_stats`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var role string
		var n int
		if err := rows.Scan(&role, &n); err != nil {
			return nil, err
		}
		out[role] = n
	}
	return out, rows.Err()
}
