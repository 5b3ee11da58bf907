package mqttclient

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	jwt "github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiiuae/dronebase/internal/config"
)

func rsaKey(t *testing.T) (*rsa.PrivateKey, []byte) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	data := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	return key, data
}

func TestTopics(t *testing.T) {
	topics := NewTopics("/devices", "drone-1")
	assert.Equal(t, "/devices/drone-1/tello_action", topics.Device(TopicAction))
	assert.Equal(t, "/devices/drone-1/events/status", topics.Device(TopicStatus))
}

func TestSignPasswordRS256(t *testing.T) {
	key, data := rsaKey(t)
	now := time.Now()

	pass, err := signPassword(data, "RS256", "fleet", now)
	require.NoError(t, err)

	claims := &jwt.StandardClaims{}
	token, err := jwt.ParseWithClaims(pass, claims, func(*jwt.Token) (interface{}, error) {
		return &key.PublicKey, nil
	})
	require.NoError(t, err)
	assert.True(t, token.Valid)
	assert.Equal(t, "fleet", claims.Audience)
	assert.Equal(t, now.Add(24*time.Hour).Unix(), claims.ExpiresAt)
}

func TestSignPasswordES256(t *testing.T) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)
	der, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)
	data := pem.EncodeToMemory(&pem.Block{Type: "EC PRIVATE KEY", Bytes: der})

	pass, err := signPassword(data, "ES256", "fleet", time.Now())
	require.NoError(t, err)

	_, err = jwt.Parse(pass, func(*jwt.Token) (interface{}, error) {
		return &key.PublicKey, nil
	})
	assert.NoError(t, err)
}

func TestSignPasswordErrors(t *testing.T) {
	_, data := rsaKey(t)

	_, err := signPassword(data, "HS256", "", time.Now())
	assert.ErrorContains(t, err, "unknown algorithm")

	_, err = signPassword([]byte("not a key"), "RS256", "", time.Now())
	assert.Error(t, err)
}

func TestClientOptions(t *testing.T) {
	_, data := rsaKey(t)
	path := filepath.Join(t.TempDir(), "key.pem")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	cfg := config.Default().MQTT
	cfg.PrivateKey = path
	cfg.TLS = true

	opts, err := clientOptions(cfg, "drone-1", time.Now())
	require.NoError(t, err)
	assert.Equal(t, "drone-1", opts.ClientID)
	assert.Equal(t, "unused", opts.Username)
	assert.NotEmpty(t, opts.Password)
	assert.NotNil(t, opts.TLSConfig)
	assert.Equal(t, uint(4), opts.ProtocolVersion)

	cfg.PrivateKey = filepath.Join(t.TempDir(), "missing.pem")
	_, err = clientOptions(cfg, "drone-1", time.Now())
	assert.Error(t, err)
}
