package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/tiiuae/dronebase/internal/commands"
	"github.com/tiiuae/dronebase/internal/config"
	"github.com/tiiuae/dronebase/internal/dronebase"
	"github.com/tiiuae/dronebase/internal/flymqtt"
	"github.com/tiiuae/dronebase/internal/flytello"
	"github.com/tiiuae/dronebase/internal/logging"
	"github.com/tiiuae/dronebase/internal/mqttclient"
	"github.com/tiiuae/dronebase/internal/status"
	"github.com/tiiuae/dronebase/internal/telemetry"
	"github.com/tiiuae/dronebase/internal/types"
)

var (
	deafultFlagSet    = flag.NewFlagSet(os.Args[0], flag.ContinueOnError)
	configPath        = deafultFlagSet.String("config", "", "Path to the YAML configuration")
	deviceID          = deafultFlagSet.String("device_id", "", "The provisioned device id")
	mqttBrokerAddress = deafultFlagSet.String("mqtt_broker", "", "MQTT broker protocol, address and port")
	privateKeyPath    = deafultFlagSet.String("private_key", "", "The private key for the MQTT authentication")
	vehicle           = deafultFlagSet.String("vehicle", "", "Drone driver: mqtt or tello")
)

func main() {
	if err := deafultFlagSet.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	applyFlags(&cfg)
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	logger := logging.New(cfg.Log)

	// attach sigint & sigterm listeners
	terminationSignals := make(chan os.Signal, 1)
	signal.Notify(terminationSignals, syscall.SIGINT, syscall.SIGTERM)

	// quitFunc will be called when process is terminated
	ctx, quitFunc := context.WithCancel(context.Background())

	// wait group will make sure all goroutines have time to clean up
	var wg sync.WaitGroup

	mqttClient, err := mqttclient.Connect(ctx, cfg.MQTT, cfg.DeviceID, logging.Component(logger, "mqtt"))
	if err != nil {
		log.Fatal(err)
	}
	defer mqttClient.Disconnect(1000)

	topics := mqttclient.NewTopics(cfg.MQTT.TopicPrefix, cfg.DeviceID)

	var drone dronebase.Vehicle
	var driver types.MessageHandler
	switch cfg.Vehicle {
	case config.VehicleTello:
		t, err := flytello.Connect(cfg.Tello)
		if err != nil {
			log.Fatal(err)
		}
		defer t.ControlDisconnect()
		v := flytello.New(t, cfg.Tello, cfg.DeviceID, logging.Component(logger, "flytello"))
		drone, driver = v, v
	default:
		v := flymqtt.New(mqttClient, topics, cfg.DeviceID, cfg.MQTT.QoS, logging.Component(logger, "flymqtt"))
		drone, driver = v, v
	}

	ctrl := dronebase.NewController(cfg.Control, cfg.Joystick, drone, nil, logger)

	messagebus := make(chan types.Message, 100)
	bus := types.NewMessageBus(
		logging.Component(logger, "bus"),
		messagebus,
		types.NewLogger(logging.Component(logger, "bus")),
		telemetry.New(mqttClient, topics, cfg.DeviceID, cfg.MQTT.QoS, logging.Component(logger, "telemetry")),
		commands.New(mqttClient, topics, cfg.DeviceID, logging.Component(logger, "commands")),
		status.New(mqttClient, topics.Device(mqttclient.TopicStatus), logging.Component(logger, "status")),
		driver,
		dronebase.New(ctrl, cfg.DeviceID, cfg.Control.TickInterval(), logging.Component(logger, "dronebase")),
	)

	go bus.Run(ctx, &wg)
	logger.Info("drone initialized", "device", cfg.DeviceID, "vehicle", cfg.Vehicle)

	// wait for termination and close quit to signal all
	<-terminationSignals
	// cancel the main context
	logger.Info("Shutting down..")
	quitFunc()

	// wait until goroutines have done their cleanup
	logger.Info("Waiting for routines to finish...")
	wg.Wait()
	logger.Info("Signing off - BYE")
}

func applyFlags(cfg *config.Config) {
	if *deviceID != "" {
		cfg.DeviceID = *deviceID
	}
	if *mqttBrokerAddress != "" {
		cfg.MQTT.Broker = *mqttBrokerAddress
	}
	if *privateKeyPath != "" {
		cfg.MQTT.PrivateKey = *privateKeyPath
	}
	if *vehicle != "" {
		cfg.Vehicle = *vehicle
	}
}
