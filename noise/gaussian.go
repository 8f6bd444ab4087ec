// Package noise provides noise sources for SLAM filter configuration
// and ground truth simulation.
package noise

import (
	"fmt"
	"sync"
	"time"

	"golang.org/x/exp/rand"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
)

var (
	src     *rand.Rand
	srcOnce sync.Once
)

// source returns the process-wide noise RNG. It is created once, on first
// use, seeded from the wall clock.
func source() *rand.Rand {
	srcOnce.Do(func() {
		src = rand.New(rand.NewSource(uint64(time.Now().UnixNano())))
	})

	return src
}

// Gaussian is additive white Gaussian noise.
type Gaussian struct {
	// dist is a multivariate normal distribution
	dist *distmv.Normal
	// mean is the noise mean
	mean []float64
	// cov is the noise covariance
	cov mat.Symmetric
}

// NewGaussian creates new Gaussian noise with the given mean and covariance.
// It returns error if the covariance is not positive definite or its
// dimension does not match the mean.
func NewGaussian(mean []float64, cov mat.Symmetric) (*Gaussian, error) {
	if len(mean) != cov.SymmetricDim() {
		return nil, fmt.Errorf("invalid noise dimensions: mean %d, cov %d", len(mean), cov.SymmetricDim())
	}

	dist, ok := distmv.NewNormal(mean, cov, source())
	if !ok {
		return nil, fmt.Errorf("failed to create gaussian noise")
	}

	return &Gaussian{
		dist: dist,
		mean: mean,
		cov:  cov,
	}, nil
}

// Sample draws a sample from the noise distribution.
func (g *Gaussian) Sample() mat.Vector {
	s := g.dist.Rand(nil)

	return mat.NewVecDense(len(s), s)
}

// Cov returns the noise covariance.
func (g *Gaussian) Cov() mat.Symmetric {
	return g.cov
}

// Mean returns the noise mean.
func (g *Gaussian) Mean() []float64 {
	return g.mean
}

// Reset re-creates the noise distribution.
// It returns error if the distribution fails to be created.
func (g *Gaussian) Reset() error {
	dist, ok := distmv.NewNormal(g.mean, g.cov, source())
	if !ok {
		return fmt.Errorf("failed to reset gaussian noise")
	}
	g.dist = dist

	return nil
}

// String implements the Stringer interface.
func (g *Gaussian) String() string {
	return fmt.Sprintf("Gaussian{\nMean=%v\nCov=%v\n}", g.mean, mat.Formatted(g.cov, mat.Prefix("    "), mat.Squeeze()))
}
