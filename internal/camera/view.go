// Package camera enumerates the camera shots of a dataset run.
//
// Each configured view is an elliptical orbit at a fixed height sampled at
// evenly spaced angles. For every frame the camera is placed on the orbit,
// optionally jittered, and oriented with its -Z axis on the target and its
// +Y axis as close to world +Z as the view direction allows.
package camera

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/spatial/r3"
)

const (
	// DefaultZoom is the lens focal length in millimetres.
	DefaultZoom = 50.0
	// DefaultSensorWidth is the sensor width in millimetres.
	DefaultSensorWidth = 36.0
)

// ErrNoTarget is returned when a view names a target that cannot be located.
var ErrNoTarget = errors.New("camera: target not found")

// Target is either a fixed point or the live location of a named scene
// object. Name takes precedence when set.
type Target struct {
	Point r3.Vec
	Name  string
}

// Jitter bounds the uniform perturbation of one shot. Location and Target
// are in scene units; Rotation is in radians on the XYZ Euler angles.
type Jitter struct {
	Location r3.Vec
	Rotation r3.Vec
	Target   r3.Vec
}

// Zero reports whether every bound is zero.
func (j Jitter) Zero() bool {
	return j.Location == (r3.Vec{}) && j.Rotation == (r3.Vec{}) && j.Target == (r3.Vec{})
}

// View is one configured orbit.
type View struct {
	Height      float64
	RadiusX     float64
	RadiusY     float64
	Frames      int
	Target      Target
	Zoom        float64
	SensorWidth float64
	Jitter      Jitter
}

// Validate checks the frame count and lens parameters.
func (v View) Validate() error {
	if v.Frames < 1 {
		return fmt.Errorf("camera: frames must be >= 1, got %d", v.Frames)
	}
	if v.Zoom < 0 || v.SensorWidth < 0 {
		return fmt.Errorf("camera: zoom and sensor width must be positive")
	}
	return nil
}

// WithDefaults fills the lens parameters when unset.
func (v View) WithDefaults() View {
	if v.Zoom == 0 {
		v.Zoom = DefaultZoom
	}
	if v.SensorWidth == 0 {
		v.SensorWidth = DefaultSensorWidth
	}
	return v
}

// Period is the angular sampling period of the orbit: frames+2.
func (v View) Period() int { return v.Frames + 2 }

// Position returns the orbit position of frame i. A single-frame view uses
// the radii as literal x and y coordinates.
func (v View) Position(i int) r3.Vec {
	if v.Frames == 1 {
		return r3.Vec{X: v.RadiusX, Y: v.RadiusY, Z: v.Height}
	}
	angle := 2 * math.Pi * float64(i) / float64(v.Frames+1)
	return r3.Vec{
		X: v.RadiusX * math.Cos(angle),
		Y: v.RadiusY * math.Sin(angle),
		Z: v.Height,
	}
}

// Locator resolves named targets to their current scene location.
type Locator interface {
	Locate(name string) (r3.Vec, bool)
}

// Pose computes the camera pose for frame i. When rng is non-nil the
// configured jitter is applied: location first, then target, then the
// orientation is solved, then rotation jitter is added to the Euler angles.
func (v View) Pose(i int, loc Locator, rng *rand.Rand) (Pose, error) {
	v = v.WithDefaults()
	pos := v.Position(i)

	target := v.Target.Point
	if v.Target.Name != "" {
		if loc == nil {
			return Pose{}, fmt.Errorf("%w: %q (no locator)", ErrNoTarget, v.Target.Name)
		}
		p, ok := loc.Locate(v.Target.Name)
		if !ok {
			return Pose{}, fmt.Errorf("%w: %q", ErrNoTarget, v.Target.Name)
		}
		target = p
	}

	if rng != nil {
		pos = jitter(rng, pos, v.Jitter.Location)
		target = jitter(rng, target, v.Jitter.Target)
	}

	euler := LookAt(pos, target)
	if rng != nil {
		euler = jitter(rng, euler, v.Jitter.Rotation)
	}
	return NewPose(pos, target, euler, v.Zoom, v.SensorWidth), nil
}

// jitter draws each axis uniformly from [c-d, c+d]. Every axis consumes one
// draw, zero bounds included.
func jitter(rng *rand.Rand, c, d r3.Vec) r3.Vec {
	u := func(c, d float64) float64 { return c + (rng.Float64()*2-1)*d }
	return r3.Vec{X: u(c.X, d.X), Y: u(c.Y, d.Y), Z: u(c.Z, d.Z)}
}
