// Package engine defines the narrow boundary between the dataset pipeline
// and whatever 3D host renders the scene. The pipeline never reaches past
// these interfaces; package flat provides a software implementation.
package engine

import (
	"context"
	"errors"
	"fmt"
	"image/color"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/synthgen/internal/camera"
)

// ErrUnknownObject is returned by Host.Resolve for names not in the scene.
var ErrUnknownObject = errors.New("engine: unknown object")

// Handle is an opaque reference to a scene object owned by the host.
type Handle uint64

// Appearance is what one material slot shows: a named material, or a flat
// unlit colour used in mask renders.
type Appearance struct {
	Material string
	Flat     bool
	Color    color.RGBA
}

// MaterialAppearance names a material.
func MaterialAppearance(name string) Appearance { return Appearance{Material: name} }

// FlatAppearance is an unlit identity colour.
func FlatAppearance(c color.RGBA) Appearance {
	c.A = 0xff
	return Appearance{Flat: true, Color: c}
}

func (a Appearance) String() string {
	if a.Flat {
		return fmt.Sprintf("flat(#%02x%02x%02x)", a.Color.R, a.Color.G, a.Color.B)
	}
	return a.Material
}

// Host exposes the scene-graph operations the lifecycle controller needs.
type Host interface {
	// Resolve finds a declared object by name.
	Resolve(name string) (Handle, error)
	// Slots returns the current per-material-slot appearance.
	Slots(h Handle) ([]Appearance, error)
	// SetAppearance replaces every slot; len(slots) must match Slots(h).
	SetAppearance(h Handle, slots []Appearance) error
	// Duplicate copies an object, returning a new visible handle.
	Duplicate(h Handle) (Handle, error)
	// Remove deletes a duplicated object.
	Remove(h Handle) error
	// SetVisible toggles render visibility.
	SetVisible(h Handle, visible bool) error
	// Location is the object's world position.
	Location(h Handle) (r3.Vec, error)
}

// Placement positions one particle instance on its emitter.
type Placement struct {
	Emitter         Handle
	Seed            int
	Slot            int
	Scale           float64
	ScaleRandomness float64
}

// Placer is implemented by hosts that scatter duplicated particles on an
// emitter. Hosts without it leave duplicates where Duplicate put them.
type Placer interface {
	Place(h Handle, p Placement) error
}

// Mode selects the render profile.
type Mode int

const (
	ModeReal Mode = iota
	ModeMask
)

func (m Mode) String() string {
	if m == ModeMask {
		return "mask"
	}
	return "real"
}

// Profile carries the render settings for one mode.
type Profile struct {
	Mode        Mode
	Engine      string // host-specific engine name, e.g. cycles or eevee
	GPU         bool
	Width       int
	Height      int
	Scale       float64 // resolution multiplier
	Format      string  // png, jpeg, tiff or bmp
	ColorMode   string  // RGB, RGBA or BW
	ColorDepth  int
	Compression int // 0-100, format dependent
}

// Size is the output resolution after applying Scale.
func (p Profile) Size() (w, h int) {
	s := p.Scale
	if s <= 0 {
		s = 1
	}
	return int(float64(p.Width)*s + 0.5), int(float64(p.Height)*s + 0.5)
}

// Renderer produces images from the host's current scene state.
type Renderer interface {
	// SetCamera places the render camera.
	SetCamera(p camera.Pose) error
	// SetProfile switches render settings.
	SetProfile(p Profile) error
	// Render blocks until the image is written to path.
	Render(ctx context.Context, path string) error
	// RestoreDefaults reverts render settings and camera to their state
	// before the run.
	RestoreDefaults() error
}

// HostLocator adapts a Host to camera.Locator by object name.
type HostLocator struct {
	Host Host
}

// Locate resolves name and returns its location.
func (l HostLocator) Locate(name string) (r3.Vec, bool) {
	h, err := l.Host.Resolve(name)
	if err != nil {
		return r3.Vec{}, false
	}
	p, err := l.Host.Location(h)
	return p, err == nil
}
