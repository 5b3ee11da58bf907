package pid

import "github.com/tiiuae/dronebase/internal/geometry"

// Gains for a single PID loop.
type Gains struct {
	Kp float64 `yaml:"kp"`
	Ki float64 `yaml:"ki"`
	Kd float64 `yaml:"kd"`
}

// Controller is a single-axis PID loop. Angle loops wrap the error into [-pi, pi].
type Controller struct {
	angle     bool
	gains     Gains
	target    float64
	prevError float64
	integral  float64
	primed    bool
}

func New(angle bool, gains Gains) *Controller {
	return &Controller{angle: angle, gains: gains}
}

// SetTarget changes the setpoint; accumulated state is kept.
func (c *Controller) SetTarget(target float64) {
	if c.angle {
		target = geometry.NormAngle(target)
	}
	c.target = target
}

func (c *Controller) Target() float64 {
	return c.target
}

// Reset clears the integral and derivative memory.
func (c *Controller) Reset() {
	c.prevError = 0
	c.integral = 0
	c.primed = false
}

// Calc returns the control output for a measurement taken dt seconds after the previous one.
// Callers must pass dt > 0.
func (c *Controller) Calc(measured, dt, feedforward float64) float64 {
	e := c.target - measured
	if c.angle {
		e = geometry.NormAngle(e)
	}

	c.integral += e * dt

	var derivative float64
	if c.primed {
		derivative = (e - c.prevError) / dt
	}
	c.prevError = e
	c.primed = true

	return c.gains.Kp*e + c.gains.Ki*c.integral + c.gains.Kd*derivative + feedforward
}
