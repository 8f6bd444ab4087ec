package sim

import (
	"math"

	"gonum.org/v1/gonum/mat"

	slam "github.com/milosgajdos/go-slam"
	"github.com/milosgajdos/go-slam/rnd"
)

// Observe returns one batch of range-bearing landmark observations taken
// from the true robot pose. Each obstacle within sensor range yields one
// measurement whose identity is the obstacle index; obstacles beyond
// MaxRange are dropped. Sensor noise is drawn per batch with the configured
// variance on both axes.
// It returns error if the noise samples fail to be drawn.
func (r *Robot) Observe() ([]slam.Measurement, error) {
	if len(r.c.Obstacles) == 0 {
		return nil, nil
	}

	cov := mat.NewSymDense(2, []float64{r.c.SensorVariance, 0.0, 0.0, r.c.SensorVariance})
	noise, err := rnd.WithCovN(cov, len(r.c.Obstacles))
	if err != nil {
		return nil, err
	}

	// world to body frame transform of the true pose
	tInv := r.pose.Transform().Inv()

	var ms []slam.Measurement
	for i := range r.c.Obstacles {
		o := r.c.Obstacles[i]

		x, y := tInv.Apply(o.X, o.Y)
		x += noise.At(0, i)
		y += noise.At(1, i)

		if math.Hypot(x, y) > r.c.MaxRange {
			continue
		}

		ms = append(ms, slam.MeasurementFromCartesian(x, y, i))
	}

	return ms, nil
}
