// Package ekfslam implements Simultaneous Localization and Mapping with an
// Extended Kalman Filter over a dynamically growing state vector.
//
// The state is ordered [theta, x, y, m1x, m1y, m2x, m2y, ...]: the first
// three entries are the robot pose, every following pair is one landmark
// position. Entries are appended on first sighting of a landmark identity
// and are never removed or reordered.
package ekfslam

import (
	"fmt"
	"math"

	"github.com/milosgajdos/matrix"
	"gonum.org/v1/gonum/mat"

	slam "github.com/milosgajdos/go-slam"
	"github.com/milosgajdos/go-slam/estimate"
	"github.com/milosgajdos/go-slam/noise"
	"github.com/milosgajdos/go-slam/rigid2d"
)

// poseDim is the number of robot pose entries at the head of the state vector.
const poseDim = 3

// EKF is an Extended Kalman Filter SLAM estimator.
// It does no locking: Predict and Update mutate the same state, so the
// caller must serialize them and apply them in chronological event order.
type EKF struct {
	// xi is the full state vector [theta, x, y, m1x, m1y, ...]
	xi []float64
	// cov is the state covariance; its dimension tracks len(xi)
	cov *mat.Dense
	// ids maps a landmark identity to the index of its x entry in xi
	ids map[int]int
	// order records landmark identities in insertion order
	order []int
	// q is the pose process noise
	q slam.Noise
	// r is the measurement noise
	r slam.Noise
	// inn is the last innovation vector
	inn *mat.VecDense
	// k is the last Kalman gain
	k *mat.Dense
}

// New creates a new EKF SLAM estimator and returns it.
// It accepts the following parameters:
//   - q: pose process noise; its covariance must be 3x3; nil means zero noise
//   - r: measurement noise; its covariance must be 2x2 with positive variances
//
// The estimator starts at the origin pose with an empty map and zero
// pose covariance.
func New(q, r slam.Noise) (*EKF, error) {
	if q != nil {
		if q.Cov().SymmetricDim() != poseDim {
			return nil, fmt.Errorf("invalid process noise dimension: %d", q.Cov().SymmetricDim())
		}
	} else {
		q, _ = noise.NewZero(poseDim)
	}

	if r == nil {
		return nil, fmt.Errorf("measurement noise must be given")
	}

	if r.Cov().SymmetricDim() != 2 {
		return nil, fmt.Errorf("invalid measurement noise dimension: %d", r.Cov().SymmetricDim())
	}

	for i := 0; i < 2; i++ {
		if r.Cov().At(i, i) <= 0.0 {
			return nil, fmt.Errorf("invalid measurement noise variance: %f", r.Cov().At(i, i))
		}
	}

	return &EKF{
		xi:  make([]float64, poseDim),
		cov: mat.NewDense(poseDim, poseDim, nil),
		ids: make(map[int]int),
		q:   q,
		r:   r,
		inn: mat.NewVecDense(2, nil),
		k:   &mat.Dense{},
	}, nil
}

// Predict advances the pose belief by one control interval using the body
// twist tw as the control input. The twist is assumed noise-free; uncertainty
// is injected as additive process noise on the pose block. Landmarks are
// assumed static, but existing pose-map correlations are propagated through
// the pose Jacobian.
// It never fails for a well formed twist; the error return satisfies the
// slam.Filter interface.
func (f *EKF) Predict(tw rigid2d.Twist) (slam.Estimate, error) {
	n := len(f.xi)
	theta := f.xi[0]

	// motion Jacobian: identity plus the pose-vs-heading partials
	a, _ := matrix.NewDenseValIdentity(n, 1.0)

	if rigid2d.AlmostEqual(tw.W, 0.0) {
		// straight line motion along the current heading
		f.xi[1] += tw.Vx * math.Cos(theta)
		f.xi[2] += tw.Vx * math.Sin(theta)

		a.Set(1, 0, -tw.Vx*math.Sin(theta))
		a.Set(2, 0, tw.Vx*math.Cos(theta))
	} else {
		// closed form arc motion with turning radius Vx/W
		rad := tw.Vx / tw.W

		f.xi[0] = rigid2d.NormalizeAngle(theta + tw.W)
		f.xi[1] += -rad*math.Sin(theta) + rad*math.Sin(theta+tw.W)
		f.xi[2] += rad*math.Cos(theta) - rad*math.Cos(theta+tw.W)

		a.Set(1, 0, -rad*math.Cos(theta)+rad*math.Cos(theta+tw.W))
		a.Set(2, 0, -rad*math.Sin(theta)+rad*math.Sin(theta+tw.W))
	}

	// full state congruence: cov <- A*cov*A' + Q
	cov := &mat.Dense{}
	cov.Mul(a, f.cov)
	cov.Mul(cov, a.T())

	qCov := f.q.Cov()
	for i := 0; i < poseDim; i++ {
		for j := 0; j < poseDim; j++ {
			cov.Set(i, j, cov.At(i, j)+qCov.At(i, j))
		}
	}

	f.cov = cov
	f.symmetrize()

	return f.estimate()
}

// Update incorporates a batch of landmark measurements taken at the same
// instant. Measurements are processed strictly in the order received: a
// correction from one measurement is visible to the initialization of the
// next. A measurement with an unseen identity first grows the state and
// covariance; every measurement is then applied as a standard EKF
// correction. A degenerate correction (singular innovation covariance or
// non-finite values) skips that single measurement and leaves the state
// untouched.
func (f *EKF) Update(ms []slam.Measurement) (slam.Estimate, error) {
	for _, m := range ms {
		if _, ok := f.ids[m.ID]; !ok {
			f.initLandmark(m)
		}
		f.correct(m)
	}

	return f.estimate()
}

// initLandmark appends a newly discovered landmark to the state vector and
// grows the covariance by two rows and columns. The new block is seeded
// through the inverse observation Jacobians so that it is consistent with
// the current pose uncertainty and the measurement noise.
func (f *EKF) initLandmark(m slam.Measurement) {
	n := len(f.xi)
	theta, x, y := f.xi[0], f.xi[1], f.xi[2]

	ang := rigid2d.NormalizeAngle(theta + m.Bearing)
	s, c := math.Sincos(ang)

	f.xi = append(f.xi, x+m.Range*c, y+m.Range*s)
	f.ids[m.ID] = n
	f.order = append(f.order, m.ID)

	// landmark position partials w.r.t. pose [theta, x, y] and measurement [r, phi]
	gp := mat.NewDense(2, poseDim, []float64{
		-m.Range * s, 1.0, 0.0,
		m.Range * c, 0.0, 1.0,
	})
	gz := mat.NewDense(2, 2, []float64{
		c, -m.Range * s,
		s, m.Range * c,
	})

	grown := mat.NewDense(n+2, n+2, nil)
	grown.Slice(0, n, 0, n).(*mat.Dense).Copy(f.cov)

	// cross covariance with the existing state: Gp * cov[pose rows]
	cross := &mat.Dense{}
	cross.Mul(gp, f.cov.Slice(0, poseDim, 0, n))

	// landmark self covariance: Gp*Spp*Gp' + Gz*R*Gz'
	pp := &mat.Dense{}
	pp.Mul(gp, f.cov.Slice(0, poseDim, 0, poseDim))
	self := &mat.Dense{}
	self.Mul(pp, gp.T())

	zr := &mat.Dense{}
	zr.Mul(gz, f.r.Cov())
	zr.Mul(zr, gz.T())
	self.Add(self, zr)

	for i := 0; i < 2; i++ {
		for j := 0; j < n; j++ {
			grown.Set(n+i, j, cross.At(i, j))
			grown.Set(j, n+i, cross.At(i, j))
		}
		for j := 0; j < 2; j++ {
			grown.Set(n+i, n+j, self.At(i, j))
		}
	}

	f.cov = grown
}

// correct applies one EKF measurement correction for a known landmark.
func (f *EKF) correct(m slam.Measurement) {
	n := len(f.xi)
	idx := f.ids[m.ID]

	dx := f.xi[idx] - f.xi[1]
	dy := f.xi[idx+1] - f.xi[2]
	d := dx*dx + dy*dy

	// landmark estimate coincides with the robot position
	if d < rigid2d.Eps {
		return
	}

	rng := math.Sqrt(d)
	bearing := rigid2d.NormalizeAngle(math.Atan2(dy, dx) - f.xi[0])

	// measurement Jacobian: nonzero only in the pose block and the
	// two columns of this landmark
	h := mat.NewDense(2, n, nil)
	h.Set(0, 1, -dx/rng)
	h.Set(0, 2, -dy/rng)
	h.Set(0, idx, dx/rng)
	h.Set(0, idx+1, dy/rng)
	h.Set(1, 0, -1.0)
	h.Set(1, 1, dy/d)
	h.Set(1, 2, -dx/d)
	h.Set(1, idx, -dy/d)
	h.Set(1, idx+1, dx/d)

	// P*H'
	pht := &mat.Dense{}
	pht.Mul(f.cov, h.T())

	// H*P*H' + R
	s := &mat.Dense{}
	s.Mul(h, pht)
	s.Add(s, f.r.Cov())

	sInv := &mat.Dense{}
	if err := sInv.Inverse(s); err != nil {
		// singular innovation covariance: discard this measurement
		return
	}

	gain := &mat.Dense{}
	gain.Mul(pht, sInv)

	inn := mat.NewVecDense(2, []float64{
		m.Range - rng,
		rigid2d.NormalizeAngle(m.Bearing - bearing),
	})

	corr := &mat.Dense{}
	corr.Mul(gain, inn)

	// (I - K*H) * P
	eye, _ := matrix.NewDenseValIdentity(n, 1.0)
	kh := &mat.Dense{}
	kh.Mul(gain, h)
	eye.Sub(eye, kh)

	cov := &mat.Dense{}
	cov.Mul(eye, f.cov)

	if !isFinite(corr) || !isFinite(cov) {
		return
	}

	for i := 0; i < n; i++ {
		f.xi[i] += corr.At(i, 0)
	}
	f.xi[0] = rigid2d.NormalizeAngle(f.xi[0])

	f.cov = cov
	f.symmetrize()

	f.inn.CopyVec(inn)
	f.k = gain
}

// symmetrize restores exact symmetry of the covariance lost to roundoff.
func (f *EKF) symmetrize() {
	n := len(f.xi)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			v := 0.5 * (f.cov.At(i, j) + f.cov.At(j, i))
			f.cov.Set(i, j, v)
			f.cov.Set(j, i, v)
		}
	}
}

func (f *EKF) estimate() (slam.Estimate, error) {
	return estimate.NewBaseWithCov(f.State(), f.Cov())
}

// isFinite returns true if no entry of m is NaN or Inf.
func isFinite(m *mat.Dense) bool {
	rows, cols := m.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			v := m.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return false
			}
		}
	}
	return true
}

// Pose returns the current robot pose estimate.
func (f *EKF) Pose() rigid2d.Pose {
	return rigid2d.Pose{X: f.xi[1], Y: f.xi[2], Theta: f.xi[0]}
}

// Map returns the current map estimate: one landmark per identity seen so
// far, in insertion order.
func (f *EKF) Map() []slam.Landmark {
	lms := make([]slam.Landmark, 0, len(f.order))
	for _, id := range f.order {
		idx := f.ids[id]
		lms = append(lms, slam.Landmark{ID: id, X: f.xi[idx], Y: f.xi[idx+1]})
	}

	return lms
}

// State returns a copy of the full state vector.
func (f *EKF) State() mat.Vector {
	xi := make([]float64, len(f.xi))
	copy(xi, f.xi)

	return mat.NewVecDense(len(xi), xi)
}

// Cov returns a copy of the state covariance.
func (f *EKF) Cov() mat.Symmetric {
	n := len(f.xi)
	cov := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			cov.SetSym(i, j, f.cov.At(i, j))
		}
	}

	return cov
}

// Gain returns the Kalman gain of the last applied correction.
func (f *EKF) Gain() mat.Matrix {
	gain := &mat.Dense{}
	if !f.k.IsEmpty() {
		gain.CloneFrom(f.k)
	}

	return gain
}
