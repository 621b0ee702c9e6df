package serve

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// handleChatStream answers GET /team/chat/stream?message=... with a
// Server-Sent Events token stream. Each chunk arrives as a "chunk"
// event; the final "done" event carries the full reply.
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	message := r.URL.Query().Get("message")
	if message == "" {
		http.Error(w, "message is required", http.StatusBadRequest)
		return
	}
	conversationID := r.URL.Query().Get("conversation_id")
	if conversationID == "" {
		conversationID = uuid.NewString()
	}

	stream, err := s.orch.ChatStream(r.Context(), message)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	// Stops the producer from blocking if the client disconnects mid-stream.
	defer stream.Cancel()

	s.insertMessage(StoredMessage{
		ConversationID: conversationID,
		Role:           "user",
		Content:        message,
	})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	// Send initial comment so EventSource fires onopen
	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()

	// Heartbeat to keep the connection alive
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	ctx := r.Context()
	chunks := stream.Chunks()
	for chunks != nil {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fmt.Fprintf(w, ": heartbeat\n\n")
			flusher.Flush()
		case chunk, ok := <-chunks:
			if !ok {
				chunks = nil
				continue
			}
			data, err := json.Marshal(map[string]string{"delta": chunk})
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: chunk\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}

	if err := stream.Err(); err != nil {
		data, _ := json.Marshal(map[string]string{"error": err.Error()})
		fmt.Fprintf(w, "event: error\ndata: %s\n\n", data)
		flusher.Flush()
		return
	}

	s.insertMessage(StoredMessage{
		ConversationID: conversationID,
		Role:           "agent",
		Content:        stream.Response(),
	})
	s.persistCounters()

	data, _ := json.Marshal(map[string]string{
		"response":        stream.Response(),
		"conversation_id": conversationID,
	})
	fmt.Fprintf(w, "event: done\ndata: %s\n\n", data)
	flusher.Flush()
}
