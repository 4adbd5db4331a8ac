package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
)

// sseRetryMillis is the reconnect delay suggested to clients.
const sseRetryMillis = 3000

// eventStream writes Server-Sent Events to one response. Each event gets a
// sequential id so a client can tell whether it missed any.
type eventStream struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
	seq     int
}

// newEventStream sends the stream headers. It fails when the writer cannot flush.
func newEventStream(w http.ResponseWriter) (*eventStream, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("streaming not supported")
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	if _, err := fmt.Fprintf(w, "retry: %d\n\n", sseRetryMillis); err != nil {
		return nil, err
	}
	flusher.Flush()

	return &eventStream{w: w, flusher: flusher}, nil
}

// send writes one event with a JSON payload.
func (s *eventStream) send(event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	if _, err := fmt.Fprintf(s.w, "id: %d\nevent: %s\ndata: %s\n\n", s.seq, event, payload); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// fail ends the stream with an error event.
func (s *eventStream) fail(status int, message string) error {
	return s.send("error", errorEvent{Status: status, Error: message})
}

// done ends the stream with the final result.
func (s *eventStream) done(result any) error {
	return s.send("complete", result)
}

type errorEvent struct {
	Status int    `json:"status"`
	Error  string `json:"error"`
}
