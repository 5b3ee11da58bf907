// Package mqtttest provides an in-memory MQTT client for tests.
package mqtttest

import (
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Token is an already completed token.
type Token struct {
	Err error
}

func (t *Token) Wait() bool                     { return true }
func (t *Token) WaitTimeout(time.Duration) bool { return true }
func (t *Token) Error() error                   { return t.Err }

func (t *Token) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type Published struct {
	Topic   string
	Payload []byte
}

type message struct {
	topic   string
	payload []byte
}

func (m *message) Duplicate() bool   { return false }
func (m *message) Qos() byte         { return 0 }
func (m *message) Retained() bool    { return false }
func (m *message) Topic() string     { return m.topic }
func (m *message) MessageID() uint16 { return 0 }
func (m *message) Payload() []byte   { return m.payload }
func (m *message) Ack()              {}

// Client records publications and routes Deliver calls to subscribers.
// Methods not overridden here panic through the nil embedded interface.
type Client struct {
	mqtt.Client

	mu        sync.Mutex
	published []Published
	handlers  map[string]mqtt.MessageHandler
}

func NewClient() *Client {
	return &Client{handlers: make(map[string]mqtt.MessageHandler)}
}

func (c *Client) Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token {
	var b []byte
	switch p := payload.(type) {
	case []byte:
		b = p
	case string:
		b = []byte(p)
	}

	c.mu.Lock()
	c.published = append(c.published, Published{topic, b})
	c.mu.Unlock()
	return &Token{}
}

func (c *Client) Subscribe(topic string, qos byte, callback mqtt.MessageHandler) mqtt.Token {
	c.mu.Lock()
	c.handlers[topic] = callback
	c.mu.Unlock()
	return &Token{}
}

func (c *Client) Disconnect(quiesce uint) {}

// Published returns a copy of every publication so far.
func (c *Client) Published() []Published {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Published(nil), c.published...)
}

// Subscribed reports whether a subscription exists for the exact filter.
func (c *Client) Subscribed(filter string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.handlers[filter]
	return ok
}

// Deliver invokes the handlers whose filter matches topic. Only exact
// filters and a trailing "#" are supported.
func (c *Client) Deliver(topic string, payload []byte) int {
	c.mu.Lock()
	var matched []mqtt.MessageHandler
	for filter, h := range c.handlers {
		if filter == topic || (strings.HasSuffix(filter, "#") && strings.HasPrefix(topic, strings.TrimSuffix(filter, "#"))) {
			matched = append(matched, h)
		}
	}
	c.mu.Unlock()

	for _, h := range matched {
		h(c, &message{topic, payload})
	}
	return len(matched)
}
