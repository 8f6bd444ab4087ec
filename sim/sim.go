// Package sim provides a ground truth simulator of a differential drive
// robot moving among circular obstacles. It generates the noisy wheel
// encoder readings and landmark observations a SLAM filter consumes,
// while keeping the true robot state to itself.
package sim

import (
	"fmt"
	"math"
	"sync"
	"time"

	"golang.org/x/exp/rand"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/milosgajdos/go-slam/diffdrive"
	"github.com/milosgajdos/go-slam/rigid2d"
)

var (
	src     *rand.Rand
	srcOnce sync.Once
)

// source returns the process-wide simulator RNG. It is created once, on
// first use, seeded from the wall clock. The simulator is the only consumer:
// the estimator stays deterministic given its inputs.
func source() *rand.Rand {
	srcOnce.Do(func() {
		src = rand.New(rand.NewSource(uint64(time.Now().UnixNano())))
	})

	return src
}

// Obstacle is a circular obstacle which doubles as a landmark. Its index
// in the obstacle list is the landmark identity reported by the sensor.
type Obstacle struct {
	// X is the x position of the obstacle center
	X float64
	// Y is the y position of the obstacle center
	Y float64
	// R is the obstacle radius
	R float64
}

// Config configures the simulation.
type Config struct {
	// InitPose is the starting pose of the robot
	InitPose rigid2d.Pose
	// Obstacles are the circular obstacles in the world
	Obstacles []Obstacle
	// CollisionRadius is the radius of the robot collision circle
	CollisionRadius float64
	// InputNoise is the stddev of the wheel rate noise applied to commands
	InputNoise float64
	// SlipFraction bounds the uniform wheel slip: each commanded wheel
	// rate is scaled by a factor drawn from [1-SlipFraction, 1+SlipFraction]
	SlipFraction float64
	// SensorVariance is the variance of the landmark sensor noise
	SensorVariance float64
	// MaxRange is the maximum range of the landmark sensor
	MaxRange float64
	// EncoderTicksPerRad converts wheel angles to encoder ticks
	EncoderTicksPerRad float64
	// Rate is the number of simulation steps per second
	Rate int
}

// Robot simulates the ground truth motion of a differential drive robot.
// The true pose and true wheel angles are known only to the simulator;
// consumers see encoder ticks distorted by input noise and wheel slip, and
// landmark observations distorted by sensor noise.
type Robot struct {
	c     Config
	drive *diffdrive.DiffDrive

	// truth, never exposed through the sensor interfaces
	pose       rigid2d.Pose
	trueAngles diffdrive.WheelState
	trueRates  diffdrive.WheelState

	// distorted wheel state backing the encoder readings
	slipAngles diffdrive.WheelState
	noisyRates diffdrive.WheelState
	slip       diffdrive.WheelState
}

// NewRobot creates a new simulated robot with the given wheel geometry and
// simulation config.
// It returns error if the geometry is invalid or the config is missing the
// encoder resolution, a positive step rate or a positive sensor range.
func NewRobot(wheelRadius, wheelSeparation float64, c Config) (*Robot, error) {
	drive, err := diffdrive.New(wheelRadius, wheelSeparation)
	if err != nil {
		return nil, err
	}

	if c.EncoderTicksPerRad <= 0.0 {
		return nil, fmt.Errorf("invalid encoder resolution: %f", c.EncoderTicksPerRad)
	}

	if c.Rate <= 0 {
		return nil, fmt.Errorf("invalid simulation rate: %d", c.Rate)
	}

	if c.MaxRange <= 0.0 {
		return nil, fmt.Errorf("invalid sensor range: %f", c.MaxRange)
	}

	return &Robot{
		c:     c,
		drive: drive,
		pose:  c.InitPose,
	}, nil
}

// SetWheelRates applies a wheel rate command to the robot. The true rates
// follow the command exactly; the rates backing the encoders get zero mean
// Gaussian input noise on every non-zero command and a fresh slip draw.
func (r *Robot) SetWheelRates(cmd diffdrive.WheelState) {
	r.trueRates = cmd
	r.noisyRates = cmd

	if r.c.InputNoise > 0.0 {
		d := distuv.Normal{Mu: 0.0, Sigma: r.c.InputNoise, Src: source()}
		if !rigid2d.AlmostEqual(cmd.Left, 0.0) {
			r.noisyRates.Left += d.Rand()
		}
		if !rigid2d.AlmostEqual(cmd.Right, 0.0) {
			r.noisyRates.Right += d.Rand()
		}
	}

	r.slip = diffdrive.WheelState{}
	if !rigid2d.AlmostEqual(r.c.SlipFraction, 0.0) {
		d := distuv.Uniform{Min: -r.c.SlipFraction, Max: r.c.SlipFraction, Src: source()}
		r.slip.Left = d.Rand()
		r.slip.Right = d.Rand()
	}
}

// Step advances the simulation by one interval: it integrates the wheel
// angles, moves the true pose by exact forward kinematics and resolves
// collisions with obstacles.
func (r *Robot) Step() {
	dt := 1.0 / float64(r.c.Rate)

	r.trueAngles.Left += r.trueRates.Left * dt
	r.trueAngles.Right += r.trueRates.Right * dt

	r.slipAngles.Left += r.noisyRates.Left * (1.0 + r.slip.Left) * dt
	r.slipAngles.Right += r.noisyRates.Right * (1.0 + r.slip.Right) * dt

	r.pose = r.drive.ForwardKinematics(r.pose, r.trueAngles)

	r.collide()
}

// collide checks the robot collision circle against every obstacle and, on
// overlap, slides the robot out to the tangent contact point.
func (r *Robot) collide() {
	for i := range r.c.Obstacles {
		o := r.c.Obstacles[i]

		d := math.Hypot(r.pose.X-o.X, r.pose.Y-o.Y)
		if d-(o.R+r.c.CollisionRadius) > 0.0 {
			continue
		}

		ang := math.Atan2(r.pose.Y-o.Y, r.pose.X-o.X)
		contact := o.R + r.c.CollisionRadius

		r.pose.X = o.X + math.Cos(ang)*contact
		r.pose.Y = o.Y + math.Sin(ang)*contact
	}
}

// EncoderTicks returns the current wheel encoder readings, which include
// the input noise and slip distortion.
func (r *Robot) EncoderTicks() (left, right int) {
	return int(r.slipAngles.Left * r.c.EncoderTicksPerRad),
		int(r.slipAngles.Right * r.c.EncoderTicksPerRad)
}

// WheelAngles returns the wheel angles implied by the current encoder
// readings.
func (r *Robot) WheelAngles() diffdrive.WheelState {
	left, right := r.EncoderTicks()

	return diffdrive.WheelState{
		Left:  float64(left) / r.c.EncoderTicksPerRad,
		Right: float64(right) / r.c.EncoderTicksPerRad,
	}
}

// Pose returns the true pose of the robot.
func (r *Robot) Pose() rigid2d.Pose {
	return r.pose
}

// Reset moves the robot back to its initial pose and zeroes all wheel state.
func (r *Robot) Reset() {
	r.pose = r.c.InitPose
	r.trueAngles = diffdrive.WheelState{}
	r.trueRates = diffdrive.WheelState{}
	r.slipAngles = diffdrive.WheelState{}
	r.noisyRates = diffdrive.WheelState{}
	r.slip = diffdrive.WheelState{}
	r.drive.SetAngles(diffdrive.WheelState{})
}

// Teleport moves the robot to the given pose without moving its wheels.
func (r *Robot) Teleport(pose rigid2d.Pose) {
	r.pose = pose
}
