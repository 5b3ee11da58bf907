// Package dronebase is the onboard flight controller. It combines the flight
// state machine, the action manager and the trajectory controller, and applies
// telemetry, plans, joystick input and completion notifications one at a time.
package dronebase

import (
	"log/slog"
	"time"

	"github.com/tiiuae/dronebase/internal/actionmgr"
	"github.com/tiiuae/dronebase/internal/config"
	"github.com/tiiuae/dronebase/internal/flightstate"
	"github.com/tiiuae/dronebase/internal/geometry"
	"github.com/tiiuae/dronebase/internal/joystick"
	"github.com/tiiuae/dronebase/internal/logging"
	"github.com/tiiuae/dronebase/internal/trajectory"
	"github.com/tiiuae/dronebase/internal/types"
)

// Vehicle is the drone driver: discrete actions plus a velocity stream.
type Vehicle interface {
	actionmgr.Device
	SetVelocity(cmd geometry.VelocityCommand)
}

// Controller is not safe for concurrent use. The bus handler owns it.
type Controller struct {
	log     *slog.Logger
	cfg     config.Control
	now     func() time.Time
	vehicle Vehicle

	fsm *flightstate.Machine
	alm *actionmgr.Manager
	mtc *trajectory.Controller
	joy *joystick.Mapper

	// Receipt times drive the watchdogs; zero means the stream is not valid.
	flightDataSeen time.Time
	odomSeen       time.Time

	odomStamp time.Time
	pose      geometry.Pose
	battery   int
}

func NewController(cfg config.Control, layout config.Joystick, vehicle Vehicle, now func() time.Time, log *slog.Logger) *Controller {
	if now == nil {
		now = time.Now
	}
	return &Controller{
		log:     logging.Component(log, "dronebase"),
		cfg:     cfg,
		now:     now,
		vehicle: vehicle,
		fsm:     flightstate.New(logging.Component(log, "flightstate")),
		alm:     actionmgr.New(vehicle, cfg.ActionTimeout, now, logging.Component(log, "actionmgr")),
		mtc: trajectory.New(trajectory.Config{
			Stabilize: cfg.Stabilize,
			Tolerance: geometry.Tolerance{XYZ: cfg.XYZTolerance, Yaw: cfg.YawTolerance},
			X:         cfg.X,
			Y:         cfg.Y,
			Z:         cfg.Z,
			Yaw:       cfg.Yaw,
		}, now, logging.Component(log, "trajectory")),
		joy: joystick.New(layout),
	}
}

func (c *Controller) FlightState() flightstate.State {
	return c.fsm.State()
}

func (c *Controller) ActionState() actionmgr.State {
	return c.alm.State()
}

func (c *Controller) Trajectory() *trajectory.Controller {
	return c.mtc
}

func (c *Controller) HandleFlightData(fd types.FlightData) {
	if c.flightDataSeen.IsZero() {
		c.fsm.HandleEvent(flightstate.Connected)
	}

	c.battery = fd.Battery
	if fd.Battery < c.cfg.BatteryFloor && c.fsm.State() != flightstate.LowBattery {
		c.log.Error("low battery", "battery", fd.Battery)
		// Land must be requested while the machine still reports the drone airborne.
		c.stopMission()
		c.fsm.HandleEvent(flightstate.LowBatteryDetected)
	}

	c.flightDataSeen = c.now()
}

func (c *Controller) HandleOdometry(o types.Odometry) {
	// Odometry may arrive before the first flight data sample.
	if c.flightDataSeen.IsZero() {
		return
	}
	if c.odomSeen.IsZero() {
		c.fsm.HandleEvent(flightstate.OdometryStarted)
	}

	if c.mtc.Active() && c.mtc.Remaining() && !c.alm.Busy() {
		c.track(o)
	}

	c.odomStamp = o.Stamp
	c.pose = o.Pose
	c.odomSeen = c.now()
}

func (c *Controller) track(o types.Odometry) {
	res, err := c.mtc.Track(o.Pose, o.Stamp, c.odomStamp)
	if err != nil {
		c.abortMission(err.Error())
		return
	}

	switch res.Outcome {
	case trajectory.OutcomeCommand:
		c.vehicle.SetVelocity(res.Command)
	case trajectory.OutcomeTimeout:
		c.abortMission("didn't reach target")
	}
}

func (c *Controller) HandlePlan(p types.PlanUpdate) {
	if !c.mtc.Active() {
		c.log.Debug("no mission, ignoring plan", "waypoints", p.Plan.Len())
		return
	}
	if err := c.mtc.SetPlan(p.Plan, c.pose, c.odomStamp); err != nil {
		c.abortMission(err.Error())
	}
}

func (c *Controller) HandleJoy(j types.Joy) {
	in := joystick.Input{Axes: j.Axes, Buttons: j.Buttons}
	defer c.joy.Remember(in)

	if c.mtc.Active() {
		return
	}

	if a, ok := c.joy.Action(in); ok {
		c.startAction(a)
	}

	if c.fsm.State().Airborne() && !c.alm.Busy() {
		c.vehicle.SetVelocity(c.joy.Velocity(in))
	}
}

func (c *Controller) HandleStartMission() {
	c.log.Info("start mission")
	c.mtc.Start()
}

func (c *Controller) HandleStopMission() {
	c.log.Info("stop mission")
	c.stopMission()
}

func (c *Controller) HandleActionResponse(r types.ActionResponse) {
	state := c.alm.Complete(actionmgr.Completion{Code: r.Code, Text: r.Text})
	if state == actionmgr.Succeeded {
		c.fsm.HandleAction(c.alm.Action())
	}
}

// Tick runs the watchdogs, polls the in-flight action and supervises the mission.
func (c *Controller) Tick() {
	now := c.now()

	if !c.flightDataSeen.IsZero() && now.Sub(c.flightDataSeen) > c.cfg.FlightDataTimeout {
		c.log.Error("flight data timeout", "last", c.flightDataSeen)
		c.fsm.HandleEvent(flightstate.Disconnected)
		c.flightDataSeen = time.Time{}
		c.odomSeen = time.Time{}
		c.odomStamp = time.Time{}
	}

	if !c.odomSeen.IsZero() && now.Sub(c.odomSeen) > c.cfg.OdometryTimeout {
		c.log.Error("odometry timeout", "last", c.odomSeen)
		c.fsm.HandleEvent(flightstate.OdometryStopped)
		c.odomSeen = time.Time{}
		c.odomStamp = time.Time{}
	}

	c.alm.Poll()

	if !c.mtc.Active() || !c.mtc.HavePlan() {
		return
	}

	state := c.fsm.State()
	switch {
	case c.mtc.Remaining() && state == flightstate.ReadyWithOdometry:
		if !c.alm.Busy() {
			c.log.Info("start mission, taking off")
			c.startAction(actionmgr.Takeoff)
		}
	case c.mtc.Remaining() && state == flightstate.Flight:
		c.abortMission("lost odometry during mission")
	case c.mtc.Finished() && state.Airborne():
		c.log.Info("mission complete")
		c.stopMission()
	}
}

// Status is a snapshot for publication.
func (c *Controller) Status() types.Status {
	return types.Status{
		FlightState:   c.fsm.State().String(),
		ActionState:   c.alm.State().String(),
		Action:        c.alm.Label(),
		ActionResult:  c.alm.Result(),
		MissionActive: c.mtc.Active(),
		HavePlan:      c.mtc.HavePlan(),
		TargetIndex:   c.mtc.Progress().Index,
		PlanLength:    c.mtc.Plan().Len(),
		Battery:       c.battery,
	}
}

func (c *Controller) abortMission(reason string) {
	c.log.Error("mission aborted", "reason", reason)
	c.stopMission()
}

// stopMission clears the mission, stops the drone and lands it if airborne.
// The landing is dropped if an action is already in flight.
func (c *Controller) stopMission() {
	c.mtc.Stop()
	c.allStop()
	if c.fsm.State().Airborne() {
		c.startAction(actionmgr.Land)
	}
}

func (c *Controller) allStop() {
	c.log.Debug("all stop")
	c.vehicle.SetVelocity(geometry.AllStop())
}

func (c *Controller) startAction(a actionmgr.Action) {
	if c.alm.Busy() {
		c.log.Info("busy, dropping action", "action", a.String())
		return
	}
	if !c.fsm.Allows(a) {
		c.log.Debug("action not allowed", "action", a.String(), "state", c.fsm.State().String())
		return
	}

	c.log.Info("initiating action", "action", a.String(), "state", c.fsm.State().String())
	c.alm.Send(a, a.String())
}
