package types

import (
	"time"

	"github.com/tiiuae/dronebase/internal/actionmgr"
	"github.com/tiiuae/dronebase/internal/geometry"
	"github.com/tiiuae/dronebase/internal/trajectory"
)

const (
	MessageTypeFlightData     = "flight-data"
	MessageTypeOdometry       = "odometry"
	MessageTypePlan           = "plan"
	MessageTypeJoy            = "joy"
	MessageTypeStartMission   = "start-mission"
	MessageTypeStopMission    = "stop-mission"
	MessageTypeActionResponse = "action-response"
	MessageTypeStatus         = "status"
)

// FlightData is the connectivity and battery telemetry of the drone.
type FlightData struct {
	Stamp   time.Time `json:"stamp"`
	Battery int       `json:"battery"` // percent
}

type Odometry struct {
	Stamp time.Time     `json:"stamp"`
	Pose  geometry.Pose `json:"pose"`
}

type PlanUpdate struct {
	Plan trajectory.Plan `json:"plan"`
}

type Joy struct {
	Axes    []float64 `json:"axes"`
	Buttons []int     `json:"buttons"`
}

type StartMission struct{}

type StopMission struct{}

// ActionResponse is the completion notification of the two-phase command protocol.
type ActionResponse struct {
	Code actionmgr.CompletionCode `json:"rc"`
	Text string                   `json:"str"`
}

type Status struct {
	FlightState   string `json:"flight_state"`
	ActionState   string `json:"action_state"`
	Action        string `json:"action"`
	ActionResult  string `json:"action_result"`
	MissionActive bool   `json:"mission_active"`
	HavePlan      bool   `json:"have_plan"`
	TargetIndex   int    `json:"target_index"`
	PlanLength    int    `json:"plan_length"`
	Battery       int    `json:"battery"`
}
