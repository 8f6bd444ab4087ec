// Package estimate provides immutable SLAM filter estimate snapshots.
package estimate

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	slam "github.com/milosgajdos/go-slam"
	"github.com/milosgajdos/go-slam/rigid2d"
)

// poseDim is the number of robot pose entries at the head of the state vector.
const poseDim = 3

// Base is a snapshot of a SLAM estimate: the full state vector
// [theta, x, y, m1x, m1y, ...] and its covariance, both cloned from the
// filter so later filter steps cannot mutate the snapshot.
type Base struct {
	// val is the estimated state
	val *mat.VecDense
	// cov is the estimated covariance
	cov *mat.SymDense
}

// NewBase returns a new estimate of the given state with zero covariance.
// It returns error if the state is shorter than a robot pose or its length
// past the pose is not an even number of landmark coordinates.
func NewBase(val mat.Vector) (*Base, error) {
	if val == nil {
		return nil, fmt.Errorf("invalid SLAM state: %v", val)
	}

	if err := checkDim(val.Len()); err != nil {
		return nil, err
	}

	v := &mat.VecDense{}
	v.CloneFromVec(val)

	return &Base{
		val: v,
		cov: mat.NewSymDense(v.Len(), nil),
	}, nil
}

// NewBaseWithCov returns a new estimate of the given state and covariance.
// It returns error if the dimensions do not match or the state length is
// not a valid SLAM state length.
func NewBaseWithCov(val mat.Vector, cov mat.Symmetric) (*Base, error) {
	if val == nil || cov == nil {
		return nil, fmt.Errorf("invalid SLAM state: val %v, cov %v", val, cov)
	}

	if err := checkDim(val.Len()); err != nil {
		return nil, err
	}

	if val.Len() != cov.SymmetricDim() {
		return nil, fmt.Errorf("invalid dimensions: val %d, cov %dx%d", val.Len(), cov.SymmetricDim(), cov.SymmetricDim())
	}

	v := &mat.VecDense{}
	v.CloneFromVec(val)

	c := mat.NewSymDense(cov.SymmetricDim(), nil)
	c.CopySym(cov)

	return &Base{
		val: v,
		cov: c,
	}, nil
}

func checkDim(n int) error {
	if n < poseDim || (n-poseDim)%2 != 0 {
		return fmt.Errorf("invalid SLAM state length: %d", n)
	}

	return nil
}

// Val returns the estimated state.
func (b *Base) Val() mat.Vector {
	v := &mat.VecDense{}
	v.CloneFromVec(b.val)

	return v
}

// Cov returns the covariance estimate.
func (b *Base) Cov() mat.Symmetric {
	cov := mat.NewSymDense(b.cov.SymmetricDim(), nil)
	cov.CopySym(b.cov)

	return cov
}

// Pose returns the robot pose part of the estimate.
func (b *Base) Pose() rigid2d.Pose {
	return rigid2d.Pose{
		X:     b.val.AtVec(1),
		Y:     b.val.AtVec(2),
		Theta: b.val.AtVec(0),
	}
}

// Landmarks returns the map part of the estimate tagged with the given
// identities, which must be in the same insertion order the filter reports.
// It returns error if the number of identities does not match the state.
func (b *Base) Landmarks(ids []int) ([]slam.Landmark, error) {
	if len(ids) != (b.val.Len()-poseDim)/2 {
		return nil, fmt.Errorf("invalid landmark identity count: %d", len(ids))
	}

	lms := make([]slam.Landmark, 0, len(ids))
	for i, id := range ids {
		idx := poseDim + 2*i
		lms = append(lms, slam.Landmark{ID: id, X: b.val.AtVec(idx), Y: b.val.AtVec(idx + 1)})
	}

	return lms, nil
}
