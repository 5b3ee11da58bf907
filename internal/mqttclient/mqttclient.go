// Package mqttclient connects to the MQTT broker and names the device topics.
package mqttclient

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"os"
	"time"

	jwt "github.com/dgrijalva/jwt-go"
	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"

	"github.com/tiiuae/dronebase/internal/config"
)

// Device topic names, relative to the device root.
const (
	TopicFlightData     = "flight_data"
	TopicOdometry       = "filtered_odom"
	TopicPlan           = "plan"
	TopicJoy            = "joy"
	TopicAction         = "tello_action"
	TopicActionResponse = "tello_action_response"
	TopicResponse       = "tello_response"
	TopicCmdVel         = "cmd_vel"
	TopicStatus         = "events/status"
	TopicCommands       = "commands/"
)

// Topics builds fully qualified topic names for one device.
type Topics struct {
	prefix   string
	deviceID string
}

func NewTopics(prefix, deviceID string) Topics {
	return Topics{prefix, deviceID}
}

func (t Topics) Device(name string) string {
	return fmt.Sprintf("%s/%s/%s", t.prefix, t.deviceID, name)
}

// Connect creates a client and connects it, retrying on timeout until ctx is done.
// When a private key is configured the password is a signed JWT.
func Connect(ctx context.Context, cfg config.MQTT, deviceID string, log *slog.Logger) (mqtt.Client, error) {
	opts, err := clientOptions(cfg, deviceID, time.Now())
	if err != nil {
		return nil, err
	}

	client := mqtt.NewClient(opts)
	for {
		log.Info("connecting MQTT", "broker", cfg.Broker)
		tok := client.Connect()
		if !tok.WaitTimeout(cfg.ConnectTimeout) {
			log.Warn("MQTT connection timeout")
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
				continue
			}
		}
		if err := tok.Error(); err != nil {
			return nil, errors.WithMessage(err, "connect MQTT")
		}
		log.Info("MQTT connected")
		return client, nil
	}
}

func clientOptions(cfg config.MQTT, deviceID string, now time.Time) (*mqtt.ClientOptions, error) {
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = deviceID
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetUsername(cfg.Username).
		SetAutoReconnect(true).
		SetProtocolVersion(4) // MQTT 3.1.1

	if cfg.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12})
	}

	if cfg.PrivateKey != "" {
		keyData, err := os.ReadFile(cfg.PrivateKey)
		if err != nil {
			return nil, errors.WithMessage(err, "read private key")
		}
		pass, err := signPassword(keyData, cfg.Algorithm, cfg.Audience, now)
		if err != nil {
			return nil, err
		}
		opts.SetPassword(pass)
	}

	return opts, nil
}

// signPassword issues a day-long JWT signed with the device key.
func signPassword(keyData []byte, algorithm, audience string, now time.Time) (string, error) {
	var key interface{}
	var err error
	switch algorithm {
	case "RS256":
		key, err = jwt.ParseRSAPrivateKeyFromPEM(keyData)
	case "ES256":
		key, err = jwt.ParseECPrivateKeyFromPEM(keyData)
	default:
		return "", errors.Errorf("unknown algorithm: %s", algorithm)
	}
	if err != nil {
		return "", errors.WithMessage(err, "parse private key")
	}

	token := jwt.NewWithClaims(jwt.GetSigningMethod(algorithm), &jwt.StandardClaims{
		IssuedAt:  now.Unix(),
		ExpiresAt: now.Add(24 * time.Hour).Unix(),
		Audience:  audience,
	})
	pass, err := token.SignedString(key)
	if err != nil {
		return "", errors.WithMessage(err, "sign JWT")
	}
	return pass, nil
}
