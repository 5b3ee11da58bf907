package dronebase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tiiuae/dronebase/internal/types"
)

type droneBase struct {
	log      *slog.Logger
	deviceID string
	ctrl     *Controller
	tick     time.Duration
	inbox    chan types.Message
}

// New returns the bus handler that drives ctrl. All controller state is
// touched only from its message loop.
func New(ctrl *Controller, deviceID string, tick time.Duration, log *slog.Logger) types.MessageHandler {
	return &droneBase{log, deviceID, ctrl, tick, make(chan types.Message, 100)}
}

func (d *droneBase) Run(ctx context.Context, wg *sync.WaitGroup, post types.PostFn) {
	wg.Add(1)
	go d.runMessageLoop(ctx, wg, post)
}

func (d *droneBase) Receive(message types.Message) {
	switch message.Message.(type) {
	case types.FlightData, types.Odometry, types.PlanUpdate, types.Joy,
		types.StartMission, types.StopMission, types.ActionResponse:
	default:
		return
	}

	select {
	case d.inbox <- message:
	default:
		d.log.Warn("inbox full, dropping message", "type", message.MessageType)
	}
}

func (d *droneBase) runMessageLoop(ctx context.Context, wg *sync.WaitGroup, post types.PostFn) {
	defer wg.Done()

	ticker := time.NewTicker(d.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.log.Info("dronebase shutting down")
			return
		case <-ticker.C:
			d.ctrl.Tick()
			post(types.CreateMessage(types.MessageTypeStatus, d.deviceID, d.deviceID, d.ctrl.Status()))
		case msg := <-d.inbox:
			d.dispatch(msg)
		}
	}
}

func (d *droneBase) dispatch(msg types.Message) {
	switch m := msg.Message.(type) {
	case types.FlightData:
		d.ctrl.HandleFlightData(m)
	case types.Odometry:
		d.ctrl.HandleOdometry(m)
	case types.PlanUpdate:
		d.ctrl.HandlePlan(m)
	case types.Joy:
		d.ctrl.HandleJoy(m)
	case types.StartMission:
		d.ctrl.HandleStartMission()
	case types.StopMission:
		d.ctrl.HandleStopMission()
	case types.ActionResponse:
		d.ctrl.HandleActionResponse(m)
	}
}
