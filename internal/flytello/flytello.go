// Package flytello flies a Tello directly over its UDP control link. The
// Tello has no acknowledged actions, so both phases of the action protocol
// are derived here: acceptance from the link state, completion from the
// flight data flags.
package flytello

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/SMerrony/tello"
	"github.com/pkg/errors"

	"github.com/tiiuae/dronebase/internal/actionmgr"
	"github.com/tiiuae/dronebase/internal/config"
	"github.com/tiiuae/dronebase/internal/geometry"
	"github.com/tiiuae/dronebase/internal/types"
)

// Drone is the subset of *tello.Tello used here.
type Drone interface {
	ControlConnected() bool
	TakeOff()
	Land()
	UpdateSticks(sm tello.StickMessage)
	GetFlightData() tello.FlightData
}

// Connect opens the control link.
func Connect(cfg config.Tello) (*tello.Tello, error) {
	drone := new(tello.Tello)
	if err := drone.ControlConnect(cfg.Address, cfg.DroneUDPPort, cfg.LocalUDPPort); err != nil {
		return nil, errors.WithMessagef(err, "connect to tello at %s", cfg.Address)
	}
	return drone, nil
}

type pendingAction struct {
	action  actionmgr.Action
	label   string
	started time.Time
}

type Vehicle struct {
	log      *slog.Logger
	drone    Drone
	cfg      config.Tello
	deviceID string
	now      func() time.Time

	mu      sync.Mutex
	pending *pendingAction
}

func New(drone Drone, cfg config.Tello, deviceID string, log *slog.Logger) *Vehicle {
	return &Vehicle{log: log, drone: drone, cfg: cfg, deviceID: deviceID, now: time.Now}
}

func (v *Vehicle) RequestAction(action actionmgr.Action, label string) <-chan actionmgr.AcceptCode {
	ch := make(chan actionmgr.AcceptCode, 1)

	if !v.drone.ControlConnected() {
		ch <- actionmgr.AcceptNotConnected
		return ch
	}

	v.mu.Lock()
	if v.pending != nil {
		v.mu.Unlock()
		ch <- actionmgr.AcceptBusy
		return ch
	}
	v.pending = &pendingAction{action: action, label: label, started: v.now()}
	v.mu.Unlock()

	switch action {
	case actionmgr.Takeoff:
		v.drone.TakeOff()
	case actionmgr.Land:
		v.drone.Land()
	}
	v.log.Debug("action sent", "action", label)

	ch <- actionmgr.AcceptOK
	return ch
}

func (v *Vehicle) SetVelocity(cmd geometry.VelocityCommand) {
	v.drone.UpdateSticks(sticks(cmd, v.cfg.StickMaxValue))
}

// sticks converts to SDL stick values. The Tello's right and clockwise are
// positive, the opposite of the body frame used for commands.
func sticks(cmd geometry.VelocityCommand, max int16) tello.StickMessage {
	scale := func(v float64) int16 {
		return int16(math.Round(geometry.Clamp(v, -1, 1) * float64(max)))
	}
	return tello.StickMessage{
		Rx: scale(-cmd.Strafe),
		Ry: scale(cmd.Forward),
		Lx: scale(-cmd.Yaw),
		Ly: scale(cmd.Vertical),
	}
}

// Run samples the flight data, posting it as telemetry and resolving the pending action.
func (v *Vehicle) Run(ctx context.Context, wg *sync.WaitGroup, post types.PostFn) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(time.Duration(float64(time.Second) / v.cfg.FlightDataHz))
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				v.log.Info("tello shutting down")
				return
			case <-ticker.C:
				v.poll(post)
			}
		}
	}()
}

func (v *Vehicle) Receive(message types.Message) {
}

func (v *Vehicle) poll(post types.PostFn) {
	if !v.drone.ControlConnected() {
		return
	}

	fd := v.drone.GetFlightData()
	now := v.now()
	post(types.CreateMessage(types.MessageTypeFlightData, v.deviceID, v.deviceID,
		types.FlightData{Stamp: now, Battery: int(fd.BatteryPercentage)}))

	v.mu.Lock()
	p := v.pending
	if p == nil {
		v.mu.Unlock()
		return
	}

	var r types.ActionResponse
	switch {
	case reached(p.action, fd):
		r = types.ActionResponse{Code: actionmgr.CompleteOK, Text: "ok"}
	case now.Sub(p.started) > v.cfg.ActionSettle:
		r = types.ActionResponse{Code: actionmgr.CompleteTimeout, Text: "timeout"}
	default:
		v.mu.Unlock()
		return
	}
	v.pending = nil
	v.mu.Unlock()

	v.log.Debug("action complete", "action", p.label, "result", r.Text)
	post(types.CreateMessage(types.MessageTypeActionResponse, v.deviceID, v.deviceID, r))
}

func reached(a actionmgr.Action, fd tello.FlightData) bool {
	switch a {
	case actionmgr.Takeoff:
		return fd.Flying
	case actionmgr.Land:
		return fd.OnGround && !fd.Flying
	}
	return false
}
