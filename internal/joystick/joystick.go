// Package joystick maps gamepad samples to takeoff/land requests and manual velocity.
package joystick

import (
	"github.com/tiiuae/dronebase/internal/actionmgr"
	"github.com/tiiuae/dronebase/internal/config"
	"github.com/tiiuae/dronebase/internal/geometry"
)

type Input struct {
	Axes    []float64
	Buttons []int
}

func (in Input) axis(i int) float64 {
	if i < 0 || i >= len(in.Axes) {
		return 0
	}
	return in.Axes[i]
}

func (in Input) button(i int) bool {
	return i >= 0 && i < len(in.Buttons) && in.Buttons[i] != 0
}

// Mapper remembers the previous sample to detect button presses.
type Mapper struct {
	layout config.Joystick
	prev   Input
}

func New(layout config.Joystick) *Mapper {
	return &Mapper{layout: layout}
}

// Remember records in as the previous sample without interpreting it.
func (m *Mapper) Remember(in Input) {
	m.prev = in
}

// Action returns the action requested by a button press in this sample.
// Takeoff wins if both buttons go down together.
func (m *Mapper) Action(in Input) (actionmgr.Action, bool) {
	switch {
	case m.pressed(in, m.layout.TakeoffButton):
		return actionmgr.Takeoff, true
	case m.pressed(in, m.layout.LandButton):
		return actionmgr.Land, true
	}
	return 0, false
}

func (m *Mapper) pressed(in Input, i int) bool {
	return in.button(i) && !m.prev.button(i)
}

// Velocity maps the sticks to a velocity command. Either trim axis being
// non-zero selects the slow trim mode; the shift button routes trim
// left/right to yaw and trim forward/back to forward.
func (m *Mapper) Velocity(in Input) geometry.VelocityCommand {
	l := m.layout
	trimLR, trimFB := in.axis(l.TrimLR), in.axis(l.TrimFB)

	if trimLR == 0 && trimFB == 0 {
		return geometry.NewVelocityCommand(in.axis(l.RightFB), in.axis(l.RightLR), in.axis(l.LeftFB), in.axis(l.LeftLR))
	}

	var forward, strafe, vertical, yaw float64
	shift := in.button(l.ShiftButton)
	if shift {
		yaw = l.TrimSpeed * trimLR
		forward = l.TrimSpeed * trimFB
	} else {
		strafe = l.TrimSpeed * trimLR
		vertical = l.TrimSpeed * trimFB
	}
	return geometry.NewVelocityCommand(forward, strafe, vertical, yaw)
}
