// Package serve exposes a team orchestrator over HTTP.
package serve

import "time"

// Store persists conversations and roster counters across restarts.
type Store interface {
	// Init creates tables if they don't exist.
	Init() error

	// Close closes the store.
	Close() error

	// InsertMessage appends a message to a conversation.
	InsertMessage(m StoredMessage) error

	// ListMessages returns a conversation's messages, oldest first.
	ListMessages(conversationID string, limit int) ([]StoredMessage, error)

	// ListConversations returns known conversation IDs, newest first.
	ListConversations(limit int) ([]string, error)

	// UpsertMemberStats records a member's completed-task counter.
	UpsertMemberStats(role string, tasksCompleted int) error

	// ListMemberStats returns persisted counters per role.
	ListMemberStats() (map[string]int, error)
}

// StoredMessage is a persisted conversation message.
type StoredMessage struct {
	ID             int64     `json:"id"`
	ConversationID string    `json:"conversation_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	Origin         string    `json:"origin,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
