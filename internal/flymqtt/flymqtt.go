// Package flymqtt drives a remote drone driver over MQTT using the two-phase
// action protocol: an accept/reject answer correlated by request id, then an
// independent completion notification.
package flymqtt

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/tiiuae/dronebase/internal/actionmgr"
	"github.com/tiiuae/dronebase/internal/geometry"
	"github.com/tiiuae/dronebase/internal/mqttclient"
	"github.com/tiiuae/dronebase/internal/types"
)

// Result codes used by the driver.
const (
	acceptOK           = 1
	acceptNotConnected = 2
	acceptBusy         = 3

	completeOK      = 1
	completeError   = 2
	completeTimeout = 3
)

type actionRequest struct {
	ID  string `json:"id"`
	Cmd string `json:"cmd"`
}

type actionAccept struct {
	ID string `json:"id"`
	RC int    `json:"rc"`
}

type actionComplete struct {
	RC  int    `json:"rc"`
	Str string `json:"str"`
}

type vector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

type twist struct {
	Linear  vector `json:"linear"`
	Angular vector `json:"angular"`
}

// Vehicle is safe for concurrent use: requests come from the controller
// while answers arrive on MQTT callbacks.
type Vehicle struct {
	log      *slog.Logger
	client   mqtt.Client
	topics   mqttclient.Topics
	deviceID string
	qos      byte

	// Only the latest request can be answered. A new request supersedes it.
	mu        sync.Mutex
	pendingID string
	pending   chan actionmgr.AcceptCode
}

func New(client mqtt.Client, topics mqttclient.Topics, deviceID string, qos byte, log *slog.Logger) *Vehicle {
	return &Vehicle{
		log:      log,
		client:   client,
		topics:   topics,
		deviceID: deviceID,
		qos:      qos,
	}
}

func (v *Vehicle) RequestAction(action actionmgr.Action, label string) <-chan actionmgr.AcceptCode {
	id := uuid.New().String()
	ch := make(chan actionmgr.AcceptCode, 1)

	v.mu.Lock()
	if v.pendingID != "" {
		v.log.Debug("request superseded", "id", v.pendingID)
	}
	v.pendingID, v.pending = id, ch
	v.mu.Unlock()

	b, _ := json.Marshal(actionRequest{ID: id, Cmd: label})
	v.client.Publish(v.topics.Device(mqttclient.TopicAction), v.qos, false, b)
	v.log.Debug("action requested", "id", id, "cmd", label)
	return ch
}

func (v *Vehicle) SetVelocity(cmd geometry.VelocityCommand) {
	b, _ := json.Marshal(twist{
		Linear:  vector{X: cmd.Forward, Y: cmd.Strafe, Z: cmd.Vertical},
		Angular: vector{Z: cmd.Yaw},
	})
	v.client.Publish(v.topics.Device(mqttclient.TopicCmdVel), 0, false, b)
}

// Run subscribes to the driver's answers. Completion notifications are posted to the bus.
func (v *Vehicle) Run(ctx context.Context, wg *sync.WaitGroup, post types.PostFn) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		v.subscribe(post)
		<-ctx.Done()
	}()
}

func (v *Vehicle) Receive(message types.Message) {
}

func (v *Vehicle) subscribe(post types.PostFn) {
	acceptTopic := v.topics.Device(mqttclient.TopicActionResponse)
	tok := v.client.Subscribe(acceptTopic, v.qos, func(_ mqtt.Client, msg mqtt.Message) {
		v.handleAccept(msg.Payload())
	})
	if tok.Wait() && tok.Error() != nil {
		v.log.Error("subscribe failed", "topic", acceptTopic, "err", tok.Error())
	}

	responseTopic := v.topics.Device(mqttclient.TopicResponse)
	tok = v.client.Subscribe(responseTopic, v.qos, func(_ mqtt.Client, msg mqtt.Message) {
		if r, ok := v.decodeCompletion(msg.Payload()); ok {
			post(types.CreateMessage(types.MessageTypeActionResponse, v.deviceID, v.deviceID, r))
		}
	})
	if tok.Wait() && tok.Error() != nil {
		v.log.Error("subscribe failed", "topic", responseTopic, "err", tok.Error())
	}
}

func (v *Vehicle) handleAccept(payload []byte) {
	var m actionAccept
	if err := json.Unmarshal(payload, &m); err != nil {
		v.log.Error("could not unmarshal action response", "err", err)
		return
	}

	var rc actionmgr.AcceptCode
	switch m.RC {
	case acceptOK:
		rc = actionmgr.AcceptOK
	case acceptNotConnected:
		rc = actionmgr.AcceptNotConnected
	case acceptBusy:
		rc = actionmgr.AcceptBusy
	default:
		v.log.Warn("unknown action response code", "id", m.ID, "rc", m.RC)
		return
	}

	v.mu.Lock()
	ch, ok := v.pending, m.ID != "" && m.ID == v.pendingID
	if ok {
		v.pendingID, v.pending = "", nil
	}
	v.mu.Unlock()

	if !ok {
		v.log.Warn("action response for unknown request", "id", m.ID)
		return
	}
	ch <- rc
}

func (v *Vehicle) decodeCompletion(payload []byte) (types.ActionResponse, bool) {
	var m actionComplete
	if err := json.Unmarshal(payload, &m); err != nil {
		v.log.Error("could not unmarshal completion", "err", err)
		return types.ActionResponse{}, false
	}

	r := types.ActionResponse{Text: m.Str}
	switch m.RC {
	case completeOK:
		r.Code = actionmgr.CompleteOK
	case completeError:
		r.Code = actionmgr.CompleteError
	case completeTimeout:
		r.Code = actionmgr.CompleteTimeout
	default:
		v.log.Warn("unknown completion code", "rc", m.RC)
		return types.ActionResponse{}, false
	}
	return r, true
}
