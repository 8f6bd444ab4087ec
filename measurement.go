package slam

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/milosgajdos/go-slam/rigid2d"
)

// Measurement is a single relative range-bearing observation of a landmark.
// Bearing is normalized to (-pi, pi]. ID is a stable external identity token:
// it is consistent across observations of the same physical landmark but
// carries no geometric meaning.
type Measurement struct {
	// Range is the distance to the landmark
	Range float64
	// Bearing is the angle to the landmark in the robot frame
	Bearing float64
	// ID is the landmark identity token
	ID int
}

// NewMeasurement creates a new Measurement with normalized bearing.
func NewMeasurement(r, bearing float64, id int) Measurement {
	return Measurement{
		Range:   r,
		Bearing: rigid2d.NormalizeAngle(bearing),
		ID:      id,
	}
}

// MeasurementFromCartesian creates a new Measurement from the relative
// cartesian position of a landmark in the robot frame.
func MeasurementFromCartesian(x, y float64, id int) Measurement {
	return Measurement{
		Range:   math.Hypot(x, y),
		Bearing: rigid2d.NormalizeAngle(math.Atan2(y, x)),
		ID:      id,
	}
}

// Vec returns the measurement as a 2-vector [range, bearing].
func (m Measurement) Vec() mat.Vector {
	return mat.NewVecDense(2, []float64{m.Range, rigid2d.NormalizeAngle(m.Bearing)})
}

// Landmark is a single entry of the map estimate.
type Landmark struct {
	// ID is the landmark identity token
	ID int
	// X is the estimated global x position
	X float64
	// Y is the estimated global y position
	Y float64
}
