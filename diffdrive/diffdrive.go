// Package diffdrive implements the kinematics of a differential drive
// mobile robot: the mapping between wheel motion and body twist, exact
// forward kinematics and inverse kinematics.
package diffdrive

import (
	"fmt"

	"github.com/milosgajdos/go-slam/rigid2d"
)

// WheelState holds one value per wheel: either wheel angles (rad)
// or wheel rates (rad/s) depending on context.
type WheelState struct {
	// Left is the left wheel value
	Left float64
	// Right is the right wheel value
	Right float64
}

// DiffDrive is a differential drive kinematic model. It is stateless
// except for the robot geometry and the last known wheel angles.
type DiffDrive struct {
	// wheelRadius is the radius of both wheels
	wheelRadius float64
	// separation is the distance between the wheel contact points
	separation float64
	// angles are the last known wheel angles
	angles WheelState
}

// New creates a new DiffDrive model given the wheel radius and the distance
// between the two wheel contact points.
// It returns error if either geometric constant is not positive.
func New(wheelRadius, wheelSeparation float64) (*DiffDrive, error) {
	if wheelRadius <= 0.0 {
		return nil, fmt.Errorf("invalid wheel radius: %f", wheelRadius)
	}

	if wheelSeparation <= 0.0 {
		return nil, fmt.Errorf("invalid wheel separation: %f", wheelSeparation)
	}

	return &DiffDrive{
		wheelRadius: wheelRadius,
		separation:  wheelSeparation,
	}, nil
}

// BodyTwist returns the body twist implied by the given wheel rates.
// Equal wheel rates yield an exactly zero angular component.
func (d *DiffDrive) BodyTwist(rates WheelState) rigid2d.Twist {
	return rigid2d.Twist{
		Vx: d.wheelRadius * (rates.Right + rates.Left) / 2.0,
		W:  d.wheelRadius * (rates.Right - rates.Left) / d.separation,
	}
}

// Twist returns the body twist implied by the displacement of each wheel
// from the last known wheel angles over one control interval. The given
// angles become the new last known wheel angles.
func (d *DiffDrive) Twist(angles WheelState) rigid2d.Twist {
	rates := WheelState{
		Left:  angles.Left - d.angles.Left,
		Right: angles.Right - d.angles.Right,
	}
	d.angles = angles

	return d.BodyTwist(rates)
}

// ForwardKinematics computes the new pose of the robot after its wheels
// moved from the last known wheel angles to the given angles. The pose is
// advanced by composing the exact rigid body displacement of the implied
// twist with the starting pose, which preserves the curved arc motion when
// both wheels move.
func (d *DiffDrive) ForwardKinematics(pose rigid2d.Pose, angles WheelState) rigid2d.Pose {
	tw := d.Twist(angles)

	return pose.Transform().Mul(rigid2d.Integrate(tw)).Pose()
}

// InverseKinematics returns the wheel rates required to achieve the given
// body twist. It returns error if the twist has a non-zero lateral
// component, which a differential drive cannot produce without slipping.
func (d *DiffDrive) InverseKinematics(tw rigid2d.Twist) (WheelState, error) {
	if !rigid2d.AlmostEqual(tw.Vy, 0.0) {
		return WheelState{}, fmt.Errorf("twist with lateral velocity %f violates the non-holonomic constraint", tw.Vy)
	}

	return WheelState{
		Left:  (tw.Vx - tw.W*d.separation/2.0) / d.wheelRadius,
		Right: (tw.Vx + tw.W*d.separation/2.0) / d.wheelRadius,
	}, nil
}

// WheelRadius returns the wheel radius.
func (d *DiffDrive) WheelRadius() float64 {
	return d.wheelRadius
}

// WheelSeparation returns the distance between the wheel contact points.
func (d *DiffDrive) WheelSeparation() float64 {
	return d.separation
}

// Angles returns the last known wheel angles.
func (d *DiffDrive) Angles() WheelState {
	return d.angles
}

// SetAngles sets the last known wheel angles without moving the robot.
func (d *DiffDrive) SetAngles(angles WheelState) {
	d.angles = angles
}
