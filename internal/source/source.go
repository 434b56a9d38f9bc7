// Package source adapts external feeds into the engine's heartbeat event
// stream. Reconnect and backoff policy belongs to the transport (paho's
// auto-reconnect for MQTT, the upstream process for stdin), not here.
package source

import (
	"context"

	"github.com/rtheil/hrvstream/internal/event"
)

// Item is one unit delivered by a source: a heartbeat event, or an in-band
// "#"-prefixed status line that downstream stages pass through verbatim.
type Item struct {
	Event   *event.HeartbeatEvent
	Comment string
}

// Source produces the event stream. Sources with a natural end of input
// (stdin) close the channel at EOF; brokered sources leave it open and rely
// on context cancellation. The engine treats either as a clean stop.
type Source interface {
	Events(ctx context.Context) (<-chan Item, error)
}
