package chat

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// UIStreamHeader marks responses that carry a UI message stream.
const UIStreamHeader = "x-vercel-ai-ui-message-stream"

// UIStream writes the server-sent event framing of a UI message stream:
// start, text-start, text-delta*, text-end, finish, then [DONE].
type UIStream struct {
	w         io.Writer
	flusher   http.Flusher
	messageID string
	textID    string
}

func NewUIStream(w io.Writer, messageID string) *UIStream {
	flusher, _ := w.(http.Flusher)
	return &UIStream{w: w, flusher: flusher, messageID: messageID, textID: messageID + "-text"}
}

// SetHeaders prepares an HTTP response for streaming.
func SetHeaders(h http.Header) {
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set(UIStreamHeader, "v1")
	h.Set("X-Accel-Buffering", "no")
}

func (s *UIStream) Start() error {
	return s.event(map[string]any{"type": "start", "messageId": s.messageID})
}

func (s *UIStream) TextStart() error {
	return s.event(map[string]any{"type": "text-start", "id": s.textID})
}

func (s *UIStream) TextDelta(delta string) error {
	return s.event(map[string]any{"type": "text-delta", "id": s.textID, "delta": delta})
}

func (s *UIStream) TextEnd() error {
	return s.event(map[string]any{"type": "text-end", "id": s.textID})
}

func (s *UIStream) Finish() error {
	return s.event(map[string]any{"type": "finish"})
}

func (s *UIStream) Error(text string) error {
	return s.event(map[string]any{"type": "error", "errorText": text})
}

func (s *UIStream) Done() error {
	return s.write("[DONE]")
}

func (s *UIStream) event(payload map[string]any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal stream event: %w", err)
	}
	return s.write(string(data))
}

func (s *UIStream) write(data string) error {
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return err
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
	return nil
}
