// Package status publishes the controller status over MQTT when it changes,
// at most 10 times a second. The payload is the bus message in its wire form.
package status

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/tiiuae/dronebase/internal/types"
)

const (
	qos    = 1
	retain = false
)

type status struct {
	log      *slog.Logger
	client   mqtt.Client
	topic    string
	interval time.Duration

	mu        sync.Mutex
	latest    *types.Message
	published *types.Status
}

func New(client mqtt.Client, topic string, log *slog.Logger) types.MessageHandler {
	return &status{log: log, client: client, topic: topic, interval: 100 * time.Millisecond}
}

func (s *status) Run(ctx context.Context, wg *sync.WaitGroup, post types.PostFn) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.startSending(ctx)
	}()
}

func (s *status) Receive(message types.Message) {
	if _, ok := message.Message.(types.Status); !ok {
		return
	}
	s.mu.Lock()
	s.latest = &message
	s.mu.Unlock()
}

func (s *status) startSending(ctx context.Context) {
	for {
		select {
		case <-time.After(s.interval):
			s.publish()
		case <-ctx.Done():
			return
		}
	}
}

func (s *status) publish() {
	s.mu.Lock()
	if s.latest == nil {
		s.mu.Unlock()
		return
	}
	msg := *s.latest
	current := msg.Message.(types.Status)
	if s.published != nil && *s.published == current {
		// nothing new since the last round
		s.mu.Unlock()
		return
	}
	s.published = &current
	s.mu.Unlock()

	wire, err := msg.ToJsonMessage()
	if err != nil {
		s.log.Error("could not marshal status", "err", err)
		return
	}
	b, err := json.Marshal(wire)
	if err != nil {
		s.log.Error("could not marshal status message", "err", err)
		return
	}
	s.client.Publish(s.topic, qos, retain, b)
}
