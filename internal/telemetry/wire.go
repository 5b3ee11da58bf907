package telemetry

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/tiiuae/dronebase/internal/geometry"
	"github.com/tiiuae/dronebase/internal/trajectory"
	"github.com/tiiuae/dronebase/internal/types"
)

// Wire formats follow the ROS message layouts the drone stack already emits.

type stamp struct {
	Sec     int64  `json:"sec"`
	Nanosec uint32 `json:"nanosec"`
}

// time converts the stamp; a zero stamp means "now".
func (s stamp) time(now time.Time) time.Time {
	if s.Sec == 0 && s.Nanosec == 0 {
		return now
	}
	return time.Unix(s.Sec, int64(s.Nanosec))
}

type header struct {
	Stamp   stamp  `json:"stamp"`
	FrameID string `json:"frame_id"`
}

type pose struct {
	Position    geometry.Point      `json:"position"`
	Orientation geometry.Quaternion `json:"orientation"`
}

type flightDataMsg struct {
	Header header `json:"header"`
	Bat    int    `json:"bat"`
}

type odometryMsg struct {
	Header header `json:"header"`
	Pose   struct {
		Pose pose `json:"pose"`
	} `json:"pose"`
}

type poseStamped struct {
	Header header `json:"header"`
	Pose   pose   `json:"pose"`
}

type pathMsg struct {
	Header header        `json:"header"`
	Poses  []poseStamped `json:"poses"`
}

type joyMsg struct {
	Header  header    `json:"header"`
	Axes    []float64 `json:"axes"`
	Buttons []int     `json:"buttons"`
}

func decodeFlightData(b []byte, now time.Time) (types.FlightData, error) {
	var m flightDataMsg
	if err := json.Unmarshal(b, &m); err != nil {
		return types.FlightData{}, errors.Wrap(err, "decode flight data")
	}
	return types.FlightData{Stamp: m.Header.Stamp.time(now), Battery: m.Bat}, nil
}

func decodeOdometry(b []byte, now time.Time) (types.Odometry, error) {
	var m odometryMsg
	if err := json.Unmarshal(b, &m); err != nil {
		return types.Odometry{}, errors.Wrap(err, "decode odometry")
	}
	p := m.Pose.Pose
	return types.Odometry{Stamp: m.Header.Stamp.time(now), Pose: geometry.NewPose(p.Position, p.Orientation)}, nil
}

// decodePlan keeps waypoint stamps as sent: a zero stamp is not replaced, so a
// plan without timing is rejected downstream as malformed.
func decodePlan(b []byte, now time.Time) (types.PlanUpdate, error) {
	var m pathMsg
	if err := json.Unmarshal(b, &m); err != nil {
		return types.PlanUpdate{}, errors.Wrap(err, "decode plan")
	}

	plan := trajectory.Plan{
		Stamp:     m.Header.Stamp.time(now),
		Waypoints: make([]trajectory.Waypoint, len(m.Poses)),
	}
	for i, ps := range m.Poses {
		plan.Waypoints[i] = trajectory.Waypoint{
			Pose:  geometry.NewPose(ps.Pose.Position, ps.Pose.Orientation),
			Stamp: time.Unix(ps.Header.Stamp.Sec, int64(ps.Header.Stamp.Nanosec)),
		}
	}
	return types.PlanUpdate{Plan: plan}, nil
}

func decodeJoy(b []byte) (types.Joy, error) {
	var m joyMsg
	if err := json.Unmarshal(b, &m); err != nil {
		return types.Joy{}, errors.Wrap(err, "decode joy")
	}
	return types.Joy{Axes: m.Axes, Buttons: m.Buttons}, nil
}
