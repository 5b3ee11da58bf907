package types

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiiuae/dronebase/internal/logging"
)

func TestCreateMessage(t *testing.T) {
	m := CreateMessage(MessageTypeJoy, "a", "b", Joy{Axes: []float64{1}})

	assert.Equal(t, MessageTypeJoy, m.MessageType)
	assert.Equal(t, "a", m.From)
	assert.Equal(t, "b", m.To)
	_, err := uuid.Parse(m.ID)
	assert.NoError(t, err)
	assert.WithinDuration(t, time.Now().UTC(), m.Timestamp, time.Second)
	assert.NotEqual(t, m.ID, CreateMessage(MessageTypeJoy, "a", "b", nil).ID)
}

func TestJsonMessageRoundTrip(t *testing.T) {
	m := CreateMessage(MessageTypeStatus, "d1", "d1", Status{FlightState: "ready", PlanLength: 2})

	sm, err := m.ToJsonMessage()
	require.NoError(t, err)
	assert.JSONEq(t, `{"flight_state":"ready","action_state":"","action":"","action_result":"","mission_active":false,
		"have_plan":false,"target_index":0,"plan_length":2,"battery":0}`, sm.Message)

	var s Status
	require.NoError(t, json.Unmarshal([]byte(sm.Message), &s))
	back := sm.Replace(s)
	assert.Equal(t, m, back)

	_, err = (&Message{Message: make(chan int)}).ToJsonMessage()
	assert.Error(t, err)
}

type recordingHandler struct {
	mu       sync.Mutex
	received []Message
	onRun    func(post PostFn)
}

func (h *recordingHandler) Run(ctx context.Context, wg *sync.WaitGroup, post PostFn) {
	if h.onRun != nil {
		h.onRun(post)
	}
}

func (h *recordingHandler) Receive(message Message) {
	h.mu.Lock()
	h.received = append(h.received, message)
	h.mu.Unlock()
}

func (h *recordingHandler) count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.received)
}

func TestMessageBusFansOut(t *testing.T) {
	a := &recordingHandler{}
	b := &recordingHandler{onRun: func(post PostFn) {
		go post(CreateMessage(MessageTypeStartMission, "b", "", StartMission{}))
	}}

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	bus := NewMessageBus(logging.Discard(), make(chan Message, 10), a, b)
	go bus.Run(ctx, &wg)

	require.Eventually(t, func() bool { return a.count() == 1 && b.count() == 1 }, time.Second, time.Millisecond)
	cancel()
}

func TestLoggerSkipsHighRateMessages(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(logging.NewWithWriter(logging.Config{Level: "debug"}, &buf))

	l.Receive(CreateMessage(MessageTypeOdometry, "d1", "d1", Odometry{}))
	assert.Empty(t, buf.String())

	l.Receive(CreateMessage(MessageTypeStopMission, "d1", "d1", StopMission{}))
	assert.Contains(t, buf.String(), MessageTypeStopMission)
}
