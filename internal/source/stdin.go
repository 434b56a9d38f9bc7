package source

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"strings"

	"github.com/rtheil/hrvstream/internal/event"
	"github.com/rtheil/hrvstream/internal/metrics"
)

// Reader streams line-delimited JSON heartbeat events from an io.Reader,
// typically stdin at the end of a shell pipeline. Blank lines are skipped,
// malformed lines are counted and skipped, EOF closes the stream.
type Reader struct {
	r io.Reader
}

// NewReader creates a Reader source over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Events implements Source.
func (s *Reader) Events(ctx context.Context) (<-chan Item, error) {
	out := make(chan Item)
	go func() {
		defer close(out)
		sc := bufio.NewScanner(s.r)
		sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" {
				continue
			}
			var it Item
			if strings.HasPrefix(line, "#") {
				it = Item{Comment: line}
			} else {
				var ev event.HeartbeatEvent
				if err := json.Unmarshal([]byte(line), &ev); err != nil {
					metrics.EventsMalformed.Inc()
					slog.Debug("skipping malformed input line", "err", err)
					continue
				}
				metrics.EventsIngested.Inc()
				it = Item{Event: &ev}
			}
			select {
			case out <- it:
			case <-ctx.Done():
				return
			}
		}
		if err := sc.Err(); err != nil {
			slog.Warn("input stream error", "err", err)
		}
	}()
	return out, nil
}
