package flightstate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tiiuae/dronebase/internal/actionmgr"
	"github.com/tiiuae/dronebase/internal/logging"
)

var (
	allStates  = []State{Unknown, Ready, Flight, ReadyWithOdometry, FlightWithOdometry, LowBattery}
	allEvents  = []Event{Connected, Disconnected, OdometryStarted, OdometryStopped, LowBatteryDetected}
	allActions = []actionmgr.Action{actionmgr.Takeoff, actionmgr.Land}
)

func machineIn(s State) *Machine {
	m := New(logging.Discard())
	m.state = s
	return m
}

func TestEventTable(t *testing.T) {
	declared := []struct {
		from  State
		event Event
		to    State
	}{
		{Unknown, Connected, Ready},
		{Ready, Disconnected, Unknown},
		{Ready, OdometryStarted, ReadyWithOdometry},
		{Ready, LowBatteryDetected, LowBattery},
		{Flight, Disconnected, Unknown},
		{Flight, OdometryStarted, FlightWithOdometry},
		{Flight, LowBatteryDetected, LowBattery},
		{ReadyWithOdometry, Disconnected, Unknown},
		{ReadyWithOdometry, OdometryStopped, Ready},
		{ReadyWithOdometry, LowBatteryDetected, LowBattery},
		{FlightWithOdometry, Disconnected, Unknown},
		{FlightWithOdometry, OdometryStopped, Flight},
		{FlightWithOdometry, LowBatteryDetected, LowBattery},
		{LowBattery, Disconnected, Unknown},
	}

	for _, tt := range declared {
		m := machineIn(tt.from)
		assert.Equal(t, tt.to, m.HandleEvent(tt.event), "%s + %s", tt.from, tt.event)
	}
	assert.Len(t, eventTransitions, len(declared))
}

func TestUndeclaredEventsAreNoOps(t *testing.T) {
	for _, s := range allStates {
		for _, e := range allEvents {
			if _, ok := NextForEvent(s, e); ok {
				continue
			}
			m := machineIn(s)
			changed := false
			m.OnChange(func(from, to State) { changed = true })
			assert.Equal(t, s, m.HandleEvent(e), "%s + %s", s, e)
			assert.False(t, changed)
		}
	}
}

func TestActionTable(t *testing.T) {
	declared := []struct {
		from   State
		action actionmgr.Action
		to     State
	}{
		{Unknown, actionmgr.Land, Unknown},
		{Ready, actionmgr.Takeoff, Flight},
		{Ready, actionmgr.Land, Ready},
		{Flight, actionmgr.Land, Ready},
		{ReadyWithOdometry, actionmgr.Takeoff, FlightWithOdometry},
		{ReadyWithOdometry, actionmgr.Land, ReadyWithOdometry},
		{FlightWithOdometry, actionmgr.Land, ReadyWithOdometry},
		{LowBattery, actionmgr.Land, LowBattery},
	}

	for _, tt := range declared {
		m := machineIn(tt.from)
		assert.True(t, m.Allows(tt.action))
		assert.Equal(t, tt.to, m.HandleAction(tt.action), "%s + %s", tt.from, tt.action)
	}
	assert.Len(t, actionTransitions, len(declared))
}

func TestLandAlwaysAllowedTakeoffRestricted(t *testing.T) {
	for _, s := range allStates {
		m := machineIn(s)
		assert.True(t, m.Allows(actionmgr.Land), s.String())
		assert.Equal(t, s == Ready || s == ReadyWithOdometry, m.Allows(actionmgr.Takeoff), s.String())
	}
}

func TestUndeclaredActionsAreNoOps(t *testing.T) {
	for _, s := range allStates {
		for _, a := range allActions {
			if _, ok := NextForAction(s, a); ok {
				continue
			}
			m := machineIn(s)
			assert.Equal(t, s, m.HandleAction(a))
		}
	}
}

func TestSameStateDoesNotNotify(t *testing.T) {
	m := machineIn(Ready)
	calls := 0
	m.OnChange(func(from, to State) { calls++ })

	// Ready + Land -> Ready
	m.HandleAction(actionmgr.Land)
	assert.Equal(t, 0, calls)

	m.HandleAction(actionmgr.Takeoff)
	assert.Equal(t, 1, calls)
	assert.Equal(t, Flight, m.State())
}

func TestAirborne(t *testing.T) {
	for _, s := range allStates {
		assert.Equal(t, s == Flight || s == FlightWithOdometry, s.Airborne(), s.String())
	}
}

func TestNames(t *testing.T) {
	assert.Equal(t, "ready_odom", ReadyWithOdometry.String())
	assert.Equal(t, "low_battery", LowBatteryDetected.String())
	assert.Equal(t, "invalid", State(99).String())
}
