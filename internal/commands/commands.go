// Package commands turns backend control commands received over MQTT into bus messages.
package commands

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/tiiuae/dronebase/internal/mqttclient"
	"github.com/tiiuae/dronebase/internal/types"
)

type controlCommand struct {
	Command   string
	Payload   string
	Timestamp time.Time
}

type commands struct {
	log      *slog.Logger
	client   mqtt.Client
	topics   mqttclient.Topics
	deviceID string
}

func New(client mqtt.Client, topics mqttclient.Topics, deviceID string, log *slog.Logger) types.MessageHandler {
	return &commands{log, client, topics, deviceID}
}

func (c *commands) Run(ctx context.Context, wg *sync.WaitGroup, post types.PostFn) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.subscribe(post)
		<-ctx.Done()
	}()
}

func (c *commands) Receive(message types.Message) {
}

func (c *commands) subscribe(post types.PostFn) {
	c.log.Info("subscribing to MQTT commands")
	commandTopic := c.topics.Device(mqttclient.TopicCommands)
	tok := c.client.Subscribe(commandTopic+"#", 0, func(_ mqtt.Client, msg mqtt.Message) {
		subfolder := strings.TrimPrefix(msg.Topic(), commandTopic)
		switch subfolder {
		case "control":
			c.handleControlCommand(msg.Payload(), post)
		default:
			c.log.Warn("unknown command subfolder", "subfolder", subfolder)
		}
	})
	if tok.Wait() && tok.Error() != nil {
		c.log.Error("subscribe failed", "topic", commandTopic, "err", tok.Error())
	}
}

func (c *commands) handleControlCommand(payload []byte, post types.PostFn) {
	var cmd controlCommand
	if err := json.Unmarshal(payload, &cmd); err != nil {
		c.log.Error("could not unmarshal command", "err", err)
		return
	}

	switch cmd.Command {
	case "start-mission":
		c.log.Info("backend requesting to start the mission")
		post(types.CreateMessage(types.MessageTypeStartMission, "backend", c.deviceID, types.StartMission{}))
	case "stop-mission":
		c.log.Info("backend requesting to stop the mission")
		post(types.CreateMessage(types.MessageTypeStopMission, "backend", c.deviceID, types.StopMission{}))
	default:
		c.log.Warn("unknown command", "command", cmd.Command)
	}
}
