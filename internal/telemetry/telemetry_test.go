package telemetry

import (
	"context"
	"math"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiiuae/dronebase/internal/logging"
	"github.com/tiiuae/dronebase/internal/mqttclient"
	"github.com/tiiuae/dronebase/internal/mqttclient/mqtttest"
	"github.com/tiiuae/dronebase/internal/types"
)

func TestDecodeFlightData(t *testing.T) {
	now := time.Unix(100, 0)

	fd, err := decodeFlightData([]byte(`{"header":{"stamp":{"sec":50,"nanosec":500}},"bat":42}`), now)
	require.NoError(t, err)
	assert.Equal(t, 42, fd.Battery)
	assert.Equal(t, time.Unix(50, 500), fd.Stamp)

	fd, err = decodeFlightData([]byte(`{"bat":42}`), now)
	require.NoError(t, err)
	assert.Equal(t, now, fd.Stamp, "missing stamp is replaced by receipt time")

	_, err = decodeFlightData([]byte(`{"bat":"full"}`), now)
	assert.Error(t, err)
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func TestDecodeOdometry(t *testing.T) {
	half := math.Sqrt(0.5)
	payload := []byte(`{"header":{"stamp":{"sec":7}},"pose":{"pose":{"position":{"x":1,"y":2,"z":3},"orientation":{"z":` +
		formatFloat(half) + `,"w":` + formatFloat(half) + `}}}}`)

	o, err := decodeOdometry(payload, time.Now())
	require.NoError(t, err)
	assert.Equal(t, time.Unix(7, 0), o.Stamp)
	assert.Equal(t, 1.0, o.Pose.X)
	assert.Equal(t, 3.0, o.Pose.Z)
	assert.InDelta(t, math.Pi/2, o.Pose.Yaw, 1e-9)
}

func TestDecodePlan(t *testing.T) {
	payload := []byte(`{
		"header": {"stamp": {"sec": 10}},
		"poses": [
			{"header": {"stamp": {"sec": 10}}, "pose": {"position": {"x": 0}, "orientation": {"w": 1}}},
			{"header": {"stamp": {"sec": 20, "nanosec": 5}}, "pose": {"position": {"x": 10}, "orientation": {"w": 1}}}
		]
	}`)

	p, err := decodePlan(payload, time.Now())
	require.NoError(t, err)
	require.Equal(t, 2, p.Plan.Len())
	assert.Equal(t, time.Unix(10, 0), p.Plan.Stamp)
	assert.Equal(t, time.Unix(20, 5), p.Plan.Waypoints[1].Stamp)
	assert.Equal(t, 10.0, p.Plan.Waypoints[1].Pose.X)
	assert.Equal(t, 0.0, p.Plan.Waypoints[1].Pose.Yaw)
}

func TestDecodeJoy(t *testing.T) {
	j, err := decodeJoy([]byte(`{"axes":[0.5,-1],"buttons":[0,1]}`))
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, -1}, j.Axes)
	assert.Equal(t, []int{0, 1}, j.Buttons)
}

func TestSubscriptionsPostMessages(t *testing.T) {
	client := mqtttest.NewClient()
	topics := mqttclient.NewTopics("/devices", "d1")
	h := New(client, topics, "d1", 1, logging.Discard())

	var mu sync.Mutex
	var posted []types.Message
	post := func(msg types.Message) {
		mu.Lock()
		posted = append(posted, msg)
		mu.Unlock()
	}

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	h.Run(ctx, &wg, post)
	require.Eventually(t, func() bool { return client.Subscribed(topics.Device(mqttclient.TopicJoy)) }, time.Second, time.Millisecond)

	client.Deliver(topics.Device(mqttclient.TopicFlightData), []byte(`{"bat":80}`))
	client.Deliver(topics.Device(mqttclient.TopicOdometry), []byte(`not json`))
	client.Deliver(topics.Device(mqttclient.TopicJoy), []byte(`{"axes":[],"buttons":[]}`))

	cancel()
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, posted, 2)
	assert.Equal(t, types.MessageTypeFlightData, posted[0].MessageType)
	assert.Equal(t, 80, posted[0].Message.(types.FlightData).Battery)
	assert.Equal(t, types.MessageTypeJoy, posted[1].MessageType)
}
