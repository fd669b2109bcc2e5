// Package stream writes and reads the server-sent event format used by the
// streaming generation endpoints: one `data: {"text": "..."}` event per
// chunk, terminated by `data: [DONE]`.
package stream

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Done is the payload of the terminating event.
const Done = "[DONE]"

// ErrStreamingUnsupported is returned when the ResponseWriter cannot flush.
var ErrStreamingUnsupported = errors.New("streaming not supported")

// Chunk is one streamed event.
type Chunk struct {
	Text string `json:"text,omitempty"`
	// Content is the alternate text key some producers emit. ReadChunk
	// folds it into Text.
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Writer emits SSE events to an http.ResponseWriter, flushing after each.
type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher
	closed  bool
}

// NewWriter sets the event-stream headers on w and returns a Writer.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	return &Writer{w: w, flusher: flusher}, nil
}

// Text sends a text chunk. Empty text is skipped.
func (s *Writer) Text(text string) error {
	if text == "" {
		return nil
	}
	return s.send(Chunk{Text: text})
}

// Error sends an error chunk. Clients render it in place of further text.
func (s *Writer) Error(msg string) error {
	return s.send(Chunk{Error: msg})
}

func (s *Writer) send(c Chunk) error {
	if s.closed {
		return errors.New("stream already closed")
	}
	b, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling chunk: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", b); err != nil {
		return fmt.Errorf("writing chunk: %w", err)
	}
	s.flusher.Flush()
	return nil
}

// Close writes the [DONE] marker. Further writes fail.
func (s *Writer) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", Done); err != nil {
		return fmt.Errorf("writing done marker: %w", err)
	}
	s.flusher.Flush()
	return nil
}

// ReadChunk reads the next event from r. It returns io.EOF once the [DONE]
// marker or the end of input is reached. Comment lines are skipped.
func ReadChunk(r *bufio.Reader) (*Chunk, error) {
	var data string
	found := false

	for {
		line, err := r.ReadString('\n')
		if err != nil {
			if err == io.EOF && found {
				break
			}
			if err == io.EOF && strings.TrimSpace(line) == "" {
				return nil, io.EOF
			}
			if err != io.EOF {
				return nil, err
			}
		}
		line = strings.TrimRight(line, "\r\n")

		if line == "" {
			if found {
				break
			}
			if err == io.EOF {
				return nil, io.EOF
			}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		if strings.HasPrefix(line, "data:") {
			data = strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " ")
			found = true
			if err == io.EOF {
				break
			}
			continue
		}
		if found {
			break
		}
	}

	if data == Done {
		return nil, io.EOF
	}
	var c Chunk
	if err := json.Unmarshal([]byte(data), &c); err != nil {
		return nil, fmt.Errorf("unmarshaling SSE data %q: %w", data, err)
	}
	if c.Text == "" {
		c.Text = c.Content
	}
	return &c, nil
}
