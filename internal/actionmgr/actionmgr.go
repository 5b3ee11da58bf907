// Package actionmgr tracks the single in-flight discrete command sent to the drone.
//
// The drone driver uses a two-phase protocol:
//  1. the request is accepted or rejected by the driver (OK, busy, not connected)
//  2. later, an independent completion notification reports the outcome
//
// The completion may arrive before the acceptance has been observed, so nothing here
// assumes an ordering between the two phases.
package actionmgr

import (
	"log/slog"
	"time"
)

type Action int

const (
	Takeoff Action = iota
	Land
)

func (a Action) String() string {
	switch a {
	case Takeoff:
		return "takeoff"
	case Land:
		return "land"
	}
	return "unknown"
}

type State int

const (
	Idle State = iota
	AwaitingAcknowledgment
	AwaitingCompletion
	Succeeded
	Failed
	FailedLostConnection
)

var stateNames = map[State]string{
	Idle:                   "idle",
	AwaitingAcknowledgment: "awaiting_acknowledgment",
	AwaitingCompletion:     "awaiting_completion",
	Succeeded:              "succeeded",
	Failed:                 "failed",
	FailedLostConnection:   "failed_lost_connection",
}

func (s State) String() string {
	if n, ok := stateNames[s]; ok {
		return n
	}
	return "unknown"
}

// AcceptCode is the driver's first-phase answer.
type AcceptCode int

const (
	AcceptOK AcceptCode = iota
	AcceptBusy
	AcceptNotConnected
)

// CompletionCode is the driver's second-phase answer.
type CompletionCode int

const (
	CompleteOK CompletionCode = iota
	CompleteError
	CompleteTimeout
)

// Completion is the notification that ends an action.
type Completion struct {
	Code CompletionCode
	Text string
}

// Device issues action requests. The returned channel delivers exactly one
// AcceptCode when the driver answers and may never deliver if it does not.
type Device interface {
	RequestAction(action Action, label string) <-chan AcceptCode
}

const (
	reasonBusy           = "drone is busy"
	reasonLostConnection = "lost connection"
	reasonUnexpected     = "unexpected response"
	reasonTimedOut       = "drone timed out"
	reasonNoAnswer       = "timed out waiting for drone"
)

// Manager owns the lifecycle of one action at a time. It is not safe for
// concurrent use; the drone controller calls it from a single goroutine.
type Manager struct {
	log     *slog.Logger
	device  Device
	now     func() time.Time
	timeout time.Duration

	state    State
	action   Action
	label    string
	result   string
	accept   <-chan AcceptCode
	deadline time.Time
}

// New creates a Manager. A zero timeout disables the pending-phase deadline.
func New(device Device, timeout time.Duration, now func() time.Time, log *slog.Logger) *Manager {
	if now == nil {
		now = time.Now
	}
	return &Manager{log: log, device: device, now: now, timeout: timeout}
}

// Send starts a new action lifecycle, replacing whatever was in flight.
// Callers check Busy first; Send itself does not.
func (m *Manager) Send(action Action, label string) State {
	m.action = action
	m.label = label
	m.result = ""

	m.log.Debug("send action to drone", "action", label)
	m.accept = m.device.RequestAction(action, label)
	m.deadline = m.now().Add(m.timeout)

	m.state = AwaitingAcknowledgment
	return m.state
}

// Poll checks, without blocking, whether the acceptance has arrived, and
// expires the pending phases once the deadline has passed.
func (m *Manager) Poll() State {
	if m.state == AwaitingAcknowledgment {
		select {
		case rc := <-m.accept:
			m.accepted(rc)
		default:
		}
	}

	if m.Busy() && m.timeout > 0 && m.now().After(m.deadline) {
		m.log.Error("action failed, no answer from drone", "action", m.label)
		m.result = reasonNoAnswer
		m.state = FailedLostConnection
	}

	return m.state
}

func (m *Manager) accepted(rc AcceptCode) {
	switch rc {
	case AcceptOK:
		m.log.Debug("action accepted", "action", m.label)
		m.state = AwaitingCompletion
	case AcceptBusy:
		m.log.Error("action failed, drone is busy", "action", m.label)
		m.result = reasonBusy
		m.state = Failed
	case AcceptNotConnected:
		m.log.Error("action failed, lost connection", "action", m.label)
		m.result = reasonLostConnection
		m.state = FailedLostConnection
	default:
		m.log.Warn("unknown accept code", "action", m.label, "rc", int(rc))
	}
}

// Complete applies a completion notification.
func (m *Manager) Complete(c Completion) State {
	if !m.Busy() {
		m.log.Error("unexpected response", "text", c.Text)
		m.result = reasonUnexpected
		m.state = Failed
		return m.state
	}

	switch c.Code {
	case CompleteOK:
		m.log.Debug("action succeeded", "action", m.label, "result", c.Text)
		m.result = c.Text
		m.state = Succeeded
	case CompleteError:
		m.log.Error("action failed", "action", m.label, "result", c.Text)
		m.result = c.Text
		m.state = Failed
	case CompleteTimeout:
		m.log.Error("action failed, drone timed out", "action", m.label)
		m.result = reasonTimedOut
		m.state = Failed
	default:
		m.log.Warn("unknown completion code", "action", m.label, "rc", int(c.Code))
	}

	return m.state
}

// Busy reports whether an action is waiting on the drone.
func (m *Manager) Busy() bool {
	return m.state == AwaitingAcknowledgment || m.state == AwaitingCompletion
}

func (m *Manager) State() State { return m.state }
func (m *Manager) Action() Action { return m.action }
func (m *Manager) Label() string { return m.label }
func (m *Manager) Result() string { return m.result }
