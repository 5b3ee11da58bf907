package geometry

import "math"

// Point is a position in the world frame.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Quaternion is a full 3-D orientation.
type Quaternion struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
	W float64 `json:"w"`
}

// Pose is a 4 DoF vehicle pose: position plus yaw in radians.
type Pose struct {
	X   float64 `json:"x"`
	Y   float64 `json:"y"`
	Z   float64 `json:"z"`
	Yaw float64 `json:"yaw"`
}

// NewPose builds a Pose from a position and a full orientation; roll and pitch are dropped.
func NewPose(p Point, q Quaternion) Pose {
	return Pose{X: p.X, Y: p.Y, Z: p.Z, Yaw: q.Yaw()}
}

func (p Pose) Position() Point {
	return Point{X: p.X, Y: p.Y, Z: p.Z}
}

// Yaw extracts the rotation about Z (ZYX convention).
func (q Quaternion) Yaw() float64 {
	sinyCosp := 2 * (q.W*q.Z + q.X*q.Y)
	cosyCosp := 1 - 2*(q.Y*q.Y+q.Z*q.Z)
	return math.Atan2(sinyCosp, cosyCosp)
}

// QuaternionFromYaw returns the orientation for a pure rotation about Z.
func QuaternionFromYaw(yaw float64) Quaternion {
	return Quaternion{Z: math.Sin(yaw / 2), W: math.Cos(yaw / 2)}
}

// NormAngle moves an angle into [-pi, pi].
func NormAngle(a float64) float64 {
	for a < -math.Pi {
		a += 2 * math.Pi
	}
	for a > math.Pi {
		a -= 2 * math.Pi
	}
	return a
}

// Clamp limits v to [min, max].
func Clamp(v, min, max float64) float64 {
	if v > max {
		return max
	}
	if v < min {
		return min
	}
	return v
}

// Tolerance holds the per-axis limits used by CloseEnough.
type Tolerance struct {
	XYZ float64
	Yaw float64
}

// CloseEnough reports whether every linear axis and the yaw of two poses
// differ by strictly less than the tolerance.
func (p Pose) CloseEnough(that Pose, tol Tolerance) bool {
	return math.Abs(p.X-that.X) < tol.XYZ &&
		math.Abs(p.Y-that.Y) < tol.XYZ &&
		math.Abs(p.Z-that.Z) < tol.XYZ &&
		math.Abs(NormAngle(p.Yaw-that.Yaw)) < tol.Yaw
}

// VelocityCommand is a normalised four-axis command; each axis lies in [-1, 1].
type VelocityCommand struct {
	Forward  float64 `json:"forward"`
	Strafe   float64 `json:"strafe"`
	Vertical float64 `json:"vertical"`
	Yaw      float64 `json:"yaw"`
}

// NewVelocityCommand clamps each axis independently.
func NewVelocityCommand(forward, strafe, vertical, yaw float64) VelocityCommand {
	return VelocityCommand{
		Forward:  Clamp(forward, -1, 1),
		Strafe:   Clamp(strafe, -1, 1),
		Vertical: Clamp(vertical, -1, 1),
		Yaw:      Clamp(yaw, -1, 1),
	}
}

// AllStop is the zero command.
func AllStop() VelocityCommand {
	return VelocityCommand{}
}
