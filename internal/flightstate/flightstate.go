// Package flightstate holds the connectivity/flight state of the drone and the
// tables that decide which events and actions may change it.
package flightstate

import (
	"log/slog"

	"github.com/tiiuae/dronebase/internal/actionmgr"
)

type State int

const (
	Unknown            State = iota // No flight data
	Ready                           // Ready for manual flight
	Flight                          // Flying, autonomous operation not available
	ReadyWithOdometry               // Ready for manual or autonomous flight
	FlightWithOdometry              // Flying, autonomous operation available
	LowBattery                      // Battery must be swapped
)

var stateNames = map[State]string{
	Unknown:            "unknown",
	Ready:              "ready",
	Flight:             "flight",
	ReadyWithOdometry:  "ready_odom",
	FlightWithOdometry: "flight_odom",
	LowBattery:         "low_battery",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "invalid"
}

// Airborne reports whether the state implies the drone is flying.
func (s State) Airborne() bool {
	return s == Flight || s == FlightWithOdometry
}

// Event is derived from telemetry, never from intent.
type Event int

const (
	Connected Event = iota
	Disconnected
	OdometryStarted
	OdometryStopped
	LowBatteryDetected
)

var eventNames = map[Event]string{
	Connected:          "connected",
	Disconnected:       "disconnected",
	OdometryStarted:    "odometry_started",
	OdometryStopped:    "odometry_stopped",
	LowBatteryDetected: "low_battery",
}

func (e Event) String() string {
	if n, ok := eventNames[e]; ok {
		return n
	}
	return "invalid"
}

type eventKey struct {
	state State
	event Event
}

type actionKey struct {
	state  State
	action actionmgr.Action
}

var eventTransitions = map[eventKey]State{
	{Unknown, Connected}: Ready,

	{Ready, Disconnected}:       Unknown,
	{Ready, OdometryStarted}:    ReadyWithOdometry,
	{Ready, LowBatteryDetected}: LowBattery,

	{Flight, Disconnected}:       Unknown,
	{Flight, OdometryStarted}:    FlightWithOdometry,
	{Flight, LowBatteryDetected}: LowBattery,

	{ReadyWithOdometry, Disconnected}:       Unknown,
	{ReadyWithOdometry, OdometryStopped}:    Ready,
	{ReadyWithOdometry, LowBatteryDetected}: LowBattery,

	{FlightWithOdometry, Disconnected}:       Unknown,
	{FlightWithOdometry, OdometryStopped}:    Flight,
	{FlightWithOdometry, LowBatteryDetected}: LowBattery,

	{LowBattery, Disconnected}: Unknown,
}

// Land is allowed everywhere so an emergency landing is always possible.
var actionTransitions = map[actionKey]State{
	{Unknown, actionmgr.Land}: Unknown,

	{Ready, actionmgr.Takeoff}: Flight,
	{Ready, actionmgr.Land}:    Ready,

	{Flight, actionmgr.Land}: Ready,

	{ReadyWithOdometry, actionmgr.Takeoff}: FlightWithOdometry,
	{ReadyWithOdometry, actionmgr.Land}:    ReadyWithOdometry,

	{FlightWithOdometry, actionmgr.Land}: ReadyWithOdometry,

	{LowBattery, actionmgr.Land}: LowBattery,
}

// NextForEvent looks up the event table.
func NextForEvent(s State, e Event) (State, bool) {
	next, ok := eventTransitions[eventKey{s, e}]
	return next, ok
}

// NextForAction looks up the action table.
func NextForAction(s State, a actionmgr.Action) (State, bool) {
	next, ok := actionTransitions[actionKey{s, a}]
	return next, ok
}

// Machine holds the current flight state. The zero value is not usable; call New.
type Machine struct {
	log      *slog.Logger
	state    State
	onChange func(from, to State)
}

func New(log *slog.Logger) *Machine {
	return &Machine{log: log, state: Unknown}
}

// OnChange registers a callback invoked after every actual state change.
func (m *Machine) OnChange(fn func(from, to State)) {
	m.onChange = fn
}

func (m *Machine) State() State {
	return m.state
}

// HandleEvent applies an event. Pairs missing from the table leave the state unchanged.
func (m *Machine) HandleEvent(e Event) State {
	next, ok := NextForEvent(m.state, e)
	if !ok {
		m.log.Debug("event not allowed", "event", e.String(), "state", m.state.String())
		return m.state
	}
	m.set(next)
	return m.state
}

// HandleAction applies a completed action.
func (m *Machine) HandleAction(a actionmgr.Action) State {
	next, ok := NextForAction(m.state, a)
	if !ok {
		m.log.Debug("action not allowed", "action", a.String(), "state", m.state.String())
		return m.state
	}
	m.set(next)
	return m.state
}

// Allows reports whether an action may be started from the current state.
func (m *Machine) Allows(a actionmgr.Action) bool {
	_, ok := NextForAction(m.state, a)
	return ok
}

func (m *Machine) set(next State) {
	if next == m.state {
		return
	}
	prev := m.state
	m.log.Info("transition", "from", prev.String(), "to", next.String())
	m.state = next
	if m.onChange != nil {
		m.onChange(prev, next)
	}
}
