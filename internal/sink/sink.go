// Package sink delivers emitted score records downstream: NDJSON on stdout
// for the next pipeline stage, optionally fanned out to a Redis stream for
// other consumers.
package sink

import (
	"context"

	"github.com/rtheil/hrvstream/internal/event"
)

// Sink consumes one score record per emission.
type Sink interface {
	Write(ctx context.Context, rec *event.ScoreRecord) error
}

// CommentWriter is implemented by sinks that also carry in-band status lines
// verbatim (currently only the NDJSON writer).
type CommentWriter interface {
	WriteComment(line string) error
}
