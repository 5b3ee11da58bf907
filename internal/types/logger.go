package types

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
)

type logger struct {
	log *slog.Logger
}

// NewLogger returns a bus handler that logs every message at debug level.
func NewLogger(log *slog.Logger) MessageHandler {
	return &logger{log}
}

func (l *logger) Receive(message Message) {
	switch message.MessageType {
	case MessageTypeOdometry, MessageTypeStatus, MessageTypeFlightData:
		return
	}

	b, _ := json.Marshal(message.Message)
	l.log.Debug("message", "type", message.MessageType, "from", message.From, "to", message.To, "payload", string(b))
}

func (l *logger) Run(ctx context.Context, wg *sync.WaitGroup, post PostFn) {
}
