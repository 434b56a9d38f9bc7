package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/rtheil/hrvstream/internal/config"
	"github.com/rtheil/hrvstream/internal/event"
	"github.com/rtheil/hrvstream/internal/hrm"
	"github.com/rtheil/hrvstream/internal/metrics"
)

// MQTT subscribes to a broker topic carrying heartbeat data, for setups where
// a phone app bridges the BLE strap onto MQTT. Two payload formats:
//   - "json": one HeartbeatEvent object per message
//   - "hrm":  a raw Heart Rate Measurement (0x2A37) characteristic value,
//     fanned out into one event per contained RR interval
type MQTT struct {
	cfg    config.MQTTConf
	client mqtt.Client
}

// NewMQTT connects to the broker. The client auto-reconnects and resubscribes
// on connection loss.
func NewMQTT(cfg config.MQTTConf) (*MQTT, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		slog.Warn("mqtt connection lost", "err", err)
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect to MQTT broker %s: %w", cfg.Broker, token.Error())
	}
	return &MQTT{cfg: cfg, client: client}, nil
}

// Events implements Source. The returned channel is never closed: a broker
// subscription has no natural end of input, and closing it could race with a
// message handler still delivering. Cancellation is the shutdown path; the
// engine watches ctx itself.
func (s *MQTT) Events(ctx context.Context) (<-chan Item, error) {
	out := make(chan Item, 64)
	handler := func(_ mqtt.Client, msg mqtt.Message) {
		s.deliver(ctx, out, s.decode(msg.Payload()))
	}
	if token := s.client.Subscribe(s.cfg.Topic, 1, handler); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("subscribe to %s: %w", s.cfg.Topic, token.Error())
	}

	go func() {
		<-ctx.Done()
		if token := s.client.Unsubscribe(s.cfg.Topic); token.Wait() && token.Error() != nil {
			slog.Warn("mqtt unsubscribe failed", "err", token.Error())
		}
		s.client.Disconnect(250)
	}()
	return out, nil
}

// deliver fans decoded items into the event channel, stopping as soon as the
// context is cancelled.
func (s *MQTT) deliver(ctx context.Context, out chan<- Item, items []Item) {
	for _, it := range items {
		select {
		case out <- it:
		case <-ctx.Done():
			return
		}
	}
}

func (s *MQTT) decode(payload []byte) []Item {
	if s.cfg.Format == "hrm" {
		m, err := hrm.Parse(payload)
		if err != nil {
			metrics.EventsMalformed.Inc()
			slog.Debug("skipping malformed HRM payload", "err", err)
			return nil
		}
		now := float64(time.Now().UnixNano()) / 1e9
		if len(m.RR) == 0 {
			metrics.EventsIngested.Inc()
			return []Item{{Event: &event.HeartbeatEvent{HR: &m.HR, TS: now}}}
		}
		items := make([]Item, 0, len(m.RR))
		for _, rr := range m.RR {
			rr := rr
			metrics.EventsIngested.Inc()
			items = append(items, Item{Event: &event.HeartbeatEvent{HR: &m.HR, RR: &rr, TS: now}})
		}
		return items
	}

	var ev event.HeartbeatEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		metrics.EventsMalformed.Inc()
		slog.Debug("skipping malformed mqtt message", "err", err)
		return nil
	}
	if ev.TS == 0 {
		ev.TS = float64(time.Now().UnixNano()) / 1e9
	}
	metrics.EventsIngested.Inc()
	return []Item{{Event: &ev}}
}
