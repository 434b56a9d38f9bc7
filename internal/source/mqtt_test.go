package source

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rtheil/hrvstream/internal/config"
)

func TestMQTTDecodeJSONEvent(t *testing.T) {
	s := &MQTT{cfg: config.MQTTConf{Format: "json"}}
	items := s.decode([]byte(`{"hr":70,"rr_ms":812.5,"ts":100.0}`))
	require.Len(t, items, 1)
	ev := items[0].Event
	require.NotNil(t, ev)
	require.NotNil(t, ev.HR)
	require.NotNil(t, ev.RR)
	assert.Equal(t, 70, *ev.HR)
	assert.Equal(t, 812.5, *ev.RR)
	assert.Equal(t, 100.0, ev.TS)
}

func TestMQTTDecodeJSONFillsMissingTimestamp(t *testing.T) {
	s := &MQTT{cfg: config.MQTTConf{Format: "json"}}
	items := s.decode([]byte(`{"hr":70,"rr_ms":812.5}`))
	require.Len(t, items, 1)
	assert.Greater(t, items[0].Event.TS, 0.0)
}

func TestMQTTDecodeMalformedJSON(t *testing.T) {
	s := &MQTT{cfg: config.MQTTConf{Format: "json"}}
	assert.Empty(t, s.decode([]byte("{broken")))
}

func TestMQTTDecodeHRMFansOutPerInterval(t *testing.T) {
	s := &MQTT{cfg: config.MQTTConf{Format: "hrm"}}
	// 8-bit HR 72 with two RR intervals (raw 768 and 850).
	items := s.decode([]byte{0x10, 0x48, 0x00, 0x03, 0x52, 0x03})
	require.Len(t, items, 2)
	for _, it := range items {
		require.NotNil(t, it.Event)
		require.NotNil(t, it.Event.HR)
		assert.Equal(t, 72, *it.Event.HR)
	}
	assert.InDelta(t, 750.0, *items[0].Event.RR, 0.01)
	assert.InDelta(t, 850*1000.0/1024.0, *items[1].Event.RR, 0.01)
}

func TestMQTTDecodeHRMWithoutIntervals(t *testing.T) {
	s := &MQTT{cfg: config.MQTTConf{Format: "hrm"}}
	items := s.decode([]byte{0x00, 0x48})
	require.Len(t, items, 1)
	assert.Nil(t, items[0].Event.RR)
}

func TestMQTTDecodeMalformedHRM(t *testing.T) {
	s := &MQTT{cfg: config.MQTTConf{Format: "hrm"}}
	assert.Empty(t, s.decode([]byte{0x10}))
}

// deliver must stop once the context is cancelled, even with nobody reading,
// instead of blocking or touching the channel further.
func TestMQTTDeliverStopsWhenCancelled(t *testing.T) {
	s := &MQTT{cfg: config.MQTTConf{Format: "json"}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := make(chan Item) // unbuffered, no reader
	done := make(chan struct{})
	go func() {
		s.deliver(ctx, out, []Item{{Comment: "# a"}, {Comment: "# b"}})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("deliver did not return after cancellation")
	}
}
