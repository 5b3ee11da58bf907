// Package telemetry subscribes to the drone's MQTT telemetry and posts it to the bus.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/tiiuae/dronebase/internal/mqttclient"
	"github.com/tiiuae/dronebase/internal/types"
)

type telemetry struct {
	log      *slog.Logger
	client   mqtt.Client
	topics   mqttclient.Topics
	deviceID string
	qos      byte
	now      func() time.Time
}

func New(client mqtt.Client, topics mqttclient.Topics, deviceID string, qos byte, log *slog.Logger) types.MessageHandler {
	return &telemetry{log, client, topics, deviceID, qos, time.Now}
}

func (t *telemetry) Run(ctx context.Context, wg *sync.WaitGroup, post types.PostFn) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		t.subscribe(post)
		<-ctx.Done()
	}()
}

func (t *telemetry) Receive(message types.Message) {
}

func (t *telemetry) subscribe(post types.PostFn) {
	t.handle(mqttclient.TopicFlightData, post, func(b []byte) (string, interface{}, error) {
		m, err := decodeFlightData(b, t.now())
		return types.MessageTypeFlightData, m, err
	})
	t.handle(mqttclient.TopicOdometry, post, func(b []byte) (string, interface{}, error) {
		m, err := decodeOdometry(b, t.now())
		return types.MessageTypeOdometry, m, err
	})
	t.handle(mqttclient.TopicPlan, post, func(b []byte) (string, interface{}, error) {
		m, err := decodePlan(b, t.now())
		return types.MessageTypePlan, m, err
	})
	t.handle(mqttclient.TopicJoy, post, func(b []byte) (string, interface{}, error) {
		m, err := decodeJoy(b)
		return types.MessageTypeJoy, m, err
	})
}

type decodeFn = func(payload []byte) (string, interface{}, error)

func (t *telemetry) handle(name string, post types.PostFn, decode decodeFn) {
	topic := t.topics.Device(name)
	tok := t.client.Subscribe(topic, t.qos, func(_ mqtt.Client, msg mqtt.Message) {
		messageType, m, err := decode(msg.Payload())
		if err != nil {
			t.log.Error("dropping telemetry", "topic", msg.Topic(), "err", err)
			return
		}
		post(types.CreateMessage(messageType, t.deviceID, t.deviceID, m))
	})
	if tok.Wait() && tok.Error() != nil {
		t.log.Error("subscribe failed", "topic", topic, "err", tok.Error())
	}
}
