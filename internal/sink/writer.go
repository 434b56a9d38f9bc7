package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/rtheil/hrvstream/internal/event"
)

// Writer emits records as line-delimited JSON, one line per record, without
// buffering: display latency matters more than write batching here.
type Writer struct {
	w io.Writer
}

// NewWriter creates a Writer over w (normally os.Stdout).
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write implements Sink.
func (s *Writer) Write(_ context.Context, rec *event.ScoreRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal score record: %w", err)
	}
	if _, err := fmt.Fprintf(s.w, "%s\n", data); err != nil {
		return fmt.Errorf("write score record: %w", err)
	}
	return nil
}

// WriteComment implements CommentWriter.
func (s *Writer) WriteComment(line string) error {
	_, err := fmt.Fprintln(s.w, line)
	return err
}
