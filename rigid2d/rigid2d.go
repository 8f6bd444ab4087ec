// Package rigid2d provides planar rigid body transformations and operations
// on 2D poses and body twists.
package rigid2d

import "math"

// Eps is the tolerance used when comparing floating point numbers.
const Eps = 1e-12

// AlmostEqual returns true if a and b are within Eps of each other.
func AlmostEqual(a, b float64) bool {
	return math.Abs(a-b) < Eps
}

// NormalizeAngle normalizes angle a into the range (-pi, pi].
// It is idempotent: NormalizeAngle(NormalizeAngle(a)) == NormalizeAngle(a).
func NormalizeAngle(a float64) float64 {
	a = math.Mod(a, 2.0*math.Pi)
	if a > math.Pi {
		a -= 2.0 * math.Pi
	} else if a <= -math.Pi {
		a += 2.0 * math.Pi
	}
	return a
}

// Pose is a planar rigid body configuration.
type Pose struct {
	// X is the x position
	X float64
	// Y is the y position
	Y float64
	// Theta is the heading, normalized to (-pi, pi]
	Theta float64
}

// NewPose creates a new Pose with normalized heading.
func NewPose(x, y, theta float64) Pose {
	return Pose{X: x, Y: y, Theta: NormalizeAngle(theta)}
}

// Transform returns the rigid body transform from the world frame
// to the frame of the pose.
func (p Pose) Transform() Transform {
	return NewTransform(p.X, p.Y, p.Theta)
}

// Twist is an instantaneous body-frame velocity of a planar rigid body.
type Twist struct {
	// Vx is the linear velocity along the body x axis
	Vx float64
	// Vy is the linear velocity along the body y axis
	Vy float64
	// W is the angular velocity
	W float64
}

// Transform is a planar rigid body transformation: a rotation
// followed by a translation.
type Transform struct {
	x     float64
	y     float64
	theta float64
}

// NewTransform creates a new Transform from translation (x, y) and rotation theta.
func NewTransform(x, y, theta float64) Transform {
	return Transform{x: x, y: y, theta: NormalizeAngle(theta)}
}

// Rotation returns the rotation angle of the transform.
func (t Transform) Rotation() float64 {
	return t.theta
}

// Translation returns the translation components of the transform.
func (t Transform) Translation() (x, y float64) {
	return t.x, t.y
}

// Mul composes transform t with transform o and returns the result t*o.
func (t Transform) Mul(o Transform) Transform {
	s, c := math.Sincos(t.theta)

	return Transform{
		x:     t.x + c*o.x - s*o.y,
		y:     t.y + s*o.x + c*o.y,
		theta: NormalizeAngle(t.theta + o.theta),
	}
}

// Inv returns the inverse of the transform.
func (t Transform) Inv() Transform {
	s, c := math.Sincos(t.theta)

	return Transform{
		x:     -c*t.x - s*t.y,
		y:     s*t.x - c*t.y,
		theta: NormalizeAngle(-t.theta),
	}
}

// Apply applies the transform to the point (x, y) and returns the new point.
func (t Transform) Apply(x, y float64) (float64, float64) {
	s, c := math.Sincos(t.theta)

	return t.x + c*x - s*y, t.y + s*x + c*y
}

// Pose returns the pose whose configuration equals the transform.
func (t Transform) Pose() Pose {
	return Pose{X: t.x, Y: t.y, Theta: t.theta}
}

// Integrate integrates a constant twist over one unit interval and returns
// the rigid body displacement it produces. Pure rotation and pure translation
// are exact; for a combined motion the displacement follows the circular arc
// around the twist's instantaneous center of rotation rather than a
// first-order straight-line step.
func Integrate(tw Twist) Transform {
	if AlmostEqual(tw.W, 0.0) {
		return Transform{x: tw.Vx, y: tw.Vy}
	}

	// center of rotation in the body frame
	cx := -tw.Vy / tw.W
	cy := tw.Vx / tw.W

	s, c := math.Sincos(tw.W)

	// translate to the center, rotate by w, translate back
	return Transform{
		x:     cx - c*cx + s*cy,
		y:     cy - s*cx - c*cy,
		theta: NormalizeAngle(tw.W),
	}
}
