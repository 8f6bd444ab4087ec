package slam

import (
	"gonum.org/v1/gonum/mat"

	"github.com/milosgajdos/go-slam/rigid2d"
)

// Filter is a SLAM filter over a growing pose+map state.
type Filter interface {
	// Predict advances the belief by one control interval using a body twist
	Predict(rigid2d.Twist) (Estimate, error)
	// Update corrects the belief with a batch of landmark measurements
	Update([]Measurement) (Estimate, error)
}

// Estimate is a SLAM filter estimate.
type Estimate interface {
	// Val returns estimate value
	Val() mat.Vector
	// Cov returns estimate covariance
	Cov() mat.Symmetric
}

// Noise is dynamical system noise.
type Noise interface {
	// Mean returns noise mean
	Mean() []float64
	// Cov returns covariance matrix of the noise
	Cov() mat.Symmetric
	// Sample returns a sample of the noise
	Sample() mat.Vector
	// Reset resets the noise
	Reset() error
}
