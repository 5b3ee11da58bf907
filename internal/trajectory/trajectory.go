// Package trajectory walks a timed waypoint plan, extrapolating where the drone
// should be between waypoints and driving the position loops towards it.
package trajectory

import (
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/tiiuae/dronebase/internal/geometry"
	"github.com/tiiuae/dronebase/internal/pid"
)

// ErrMalformedPlan is returned when consecutive waypoints are not strictly increasing in time.
var ErrMalformedPlan = errors.New("malformed plan")

type Waypoint struct {
	Pose  geometry.Pose
	Stamp time.Time
}

type Plan struct {
	Stamp     time.Time
	Waypoints []Waypoint
}

func (p Plan) Len() int {
	return len(p.Waypoints)
}

// Progress describes the active segment. Yaw has no extrapolated rate.
type Progress struct {
	Index          int
	CurrTarget     geometry.Point
	CurrTargetTime time.Time
	PrevTarget     geometry.Point
	PrevTargetTime time.Time
	Velocity       geometry.Point
}

type Config struct {
	Stabilize time.Duration
	Tolerance geometry.Tolerance
	X, Y, Z   pid.Gains
	Yaw       pid.Gains
}

// Outcome of feeding a pose sample to the controller.
type Outcome int

const (
	// OutcomeNone: nothing to do, e.g. a duplicate sample.
	OutcomeNone Outcome = iota
	// OutcomeCommand: Result.Command should be sent to the drone.
	OutcomeCommand
	// OutcomeAdvanced: the target was reached and the next one selected.
	OutcomeAdvanced
	// OutcomeTimeout: the deadline passed without reaching the target.
	OutcomeTimeout
)

type Result struct {
	Outcome Outcome
	Command geometry.VelocityCommand
}

// Controller owns mission progress. It is driven from a single goroutine.
type Controller struct {
	log *slog.Logger
	cfg Config
	now func() time.Time

	active   bool
	havePlan bool
	plan     Plan
	progress Progress

	x, y, z, yaw *pid.Controller
}

func New(cfg Config, now func() time.Time, log *slog.Logger) *Controller {
	if now == nil {
		now = time.Now
	}
	return &Controller{
		log: log,
		cfg: cfg,
		now: now,
		x:   pid.New(false, cfg.X),
		y:   pid.New(false, cfg.Y),
		z:   pid.New(false, cfg.Z),
		yaw: pid.New(true, cfg.Yaw),
	}
}

// Start marks the mission active. The plan arrives separately.
func (c *Controller) Start() {
	c.active = true
}

// Stop clears the mission and the plan together.
func (c *Controller) Stop() {
	c.active = false
	c.havePlan = false
	c.plan = Plan{}
	c.progress = Progress{}
}

func (c *Controller) Active() bool { return c.active }
func (c *Controller) HavePlan() bool { return c.havePlan }
func (c *Controller) Plan() Plan { return c.plan }
func (c *Controller) Progress() Progress { return c.progress }

// Remaining reports whether there are waypoints left to fly.
func (c *Controller) Remaining() bool {
	return c.havePlan && c.progress.Index < c.plan.Len()
}

// Finished reports whether every waypoint of the current plan has been reached.
func (c *Controller) Finished() bool {
	return c.havePlan && c.progress.Index >= c.plan.Len()
}

// SetPlan replaces the plan and targets its first waypoint from the current
// pose, sampled at stamp. A zero stamp falls back to the controller clock.
func (c *Controller) SetPlan(plan Plan, pose geometry.Pose, stamp time.Time) error {
	c.plan = plan
	c.havePlan = true
	c.progress = Progress{}
	c.x.Reset()
	c.y.Reset()
	c.z.Reset()
	c.yaw.Reset()

	c.log.Info("got a plan", "waypoints", plan.Len(), "stamp", plan.Stamp)

	return c.SetTarget(0, pose, stamp)
}

// SetTarget selects waypoint index. An index equal to the plan length marks the
// trajectory complete; other out-of-range indexes are ignored.
func (c *Controller) SetTarget(index int, pose geometry.Pose, stamp time.Time) error {
	if index < 0 || index > c.plan.Len() {
		return nil
	}
	if index == c.plan.Len() {
		c.progress.Index = index
		return nil
	}

	wp := c.plan.Waypoints[index]
	p := Progress{
		Index:          index,
		CurrTarget:     wp.Pose.Position(),
		CurrTargetTime: wp.Stamp.Add(-c.cfg.Stabilize),
	}

	if index > 0 {
		prev := c.plan.Waypoints[index-1]
		p.PrevTarget = prev.Pose.Position()
		p.PrevTargetTime = prev.Stamp

		dt := p.CurrTargetTime.Sub(p.PrevTargetTime)
		if dt <= 0 {
			return errors.Wrapf(ErrMalformedPlan, "waypoint %d: %v between targets", index, dt)
		}

		sec := dt.Seconds()
		p.Velocity = geometry.Point{
			X: (p.CurrTarget.X - p.PrevTarget.X) / sec,
			Y: (p.CurrTarget.Y - p.PrevTarget.Y) / sec,
			Z: (p.CurrTarget.Z - p.PrevTarget.Z) / sec,
		}
	} else {
		// No predecessor: hold the current pose until the first deadline.
		// The segment start is on the pose stamp clock, like the samples Track compares it to.
		if stamp.IsZero() {
			stamp = c.now()
		}
		p.PrevTarget = pose.Position()
		p.PrevTargetTime = stamp
		c.x.SetTarget(pose.X)
		c.y.SetTarget(pose.Y)
		c.z.SetTarget(pose.Z)
	}

	c.progress = p
	c.yaw.SetTarget(wp.Pose.Yaw)

	c.log.Info("target",
		"index", index,
		"x", wp.Pose.X, "y", wp.Pose.Y, "z", wp.Pose.Z, "yaw", wp.Pose.Yaw,
		"vx", p.Velocity.X, "vy", p.Velocity.Y, "vz", p.Velocity.Z)

	return nil
}

// Track consumes a pose sampled at stamp; prevStamp is the time of the previous
// sample, zero if there was none. Callers only track while Remaining is true.
func (c *Controller) Track(pose geometry.Pose, stamp, prevStamp time.Time) (Result, error) {
	if !c.Remaining() {
		return Result{}, nil
	}

	p := c.progress
	if stamp.After(p.CurrTargetTime) {
		target := c.plan.Waypoints[p.Index].Pose
		if !target.CloseEnough(pose, c.cfg.Tolerance) {
			c.log.Error("didn't reach target", "index", p.Index)
			return Result{Outcome: OutcomeTimeout}, nil
		}
		if err := c.SetTarget(p.Index+1, pose, stamp); err != nil {
			return Result{}, err
		}
		return Result{Outcome: OutcomeAdvanced}, nil
	}

	if stamp.Before(p.CurrTargetTime) {
		elapsed := stamp.Sub(p.PrevTargetTime)
		if elapsed > 0 {
			sec := elapsed.Seconds()
			c.x.SetTarget(p.PrevTarget.X + p.Velocity.X*sec)
			c.y.SetTarget(p.PrevTarget.Y + p.Velocity.Y*sec)
			c.z.SetTarget(p.PrevTarget.Z + p.Velocity.Z*sec)
		}
	}

	if prevStamp.IsZero() {
		return Result{}, nil
	}
	dt := stamp.Sub(prevStamp)
	if dt <= 0 {
		return Result{}, nil
	}

	sec := dt.Seconds()
	cmd := geometry.NewVelocityCommand(
		c.x.Calc(pose.X, sec, 0),
		c.y.Calc(pose.Y, sec, 0),
		c.z.Calc(pose.Z, sec, 0),
		c.yaw.Calc(pose.Yaw, sec, 0),
	)
	return Result{Outcome: OutcomeCommand, Command: cmd}, nil
}

// Setpoint returns the current x, y, z and yaw loop targets.
func (c *Controller) Setpoint() geometry.Pose {
	return geometry.Pose{X: c.x.Target(), Y: c.y.Target(), Z: c.z.Target(), Yaw: c.yaw.Target()}
}
