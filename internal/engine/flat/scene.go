// Package flat is a software engine for the dataset pipeline. Objects are
// spheres and emitters are rectangular ground patches; a pinhole camera
// projects them onto the image. Mask renders fill exact identity colours on
// black with no anti-aliasing, so every pixel decodes to a catalogue entry.
package flat

import (
	"fmt"
	"hash/fnv"
	"image/color"
	"math"
	"math/rand/v2"
	"slices"
	"strings"
	"sync"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/synthgen/internal/engine"
)

// Object is one scene entity.
type Object struct {
	Name     string
	Location r3.Vec
	Radius   float64
	Slots    []engine.Appearance
	Visible  bool
	Emitter  bool
	// Extent is the half size of an emitter patch along X and Y.
	Extent [2]float64
}

// Scene is an in-memory engine.Host and engine.Placer.
type Scene struct {
	mu        sync.RWMutex
	objects   map[engine.Handle]*Object
	byName    map[string]engine.Handle
	dupCount  map[string]int
	materials map[string]color.RGBA
	next      engine.Handle
}

var (
	_ engine.Host   = (*Scene)(nil)
	_ engine.Placer = (*Scene)(nil)
)

// NewScene returns an empty scene.
func NewScene() *Scene {
	return &Scene{
		objects:   make(map[engine.Handle]*Object),
		byName:    make(map[string]engine.Handle),
		dupCount:  make(map[string]int),
		materials: make(map[string]color.RGBA),
	}
}

// Add inserts an object and returns its handle. Names must be unique.
func (s *Scene) Add(o Object) (engine.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.byName[o.Name]; dup {
		return 0, fmt.Errorf("flat: object %q already exists", o.Name)
	}
	return s.insertLocked(o), nil
}

func (s *Scene) insertLocked(o Object) engine.Handle {
	s.next++
	h := s.next
	o.Slots = slices.Clone(o.Slots)
	s.objects[h] = &o
	s.byName[o.Name] = h
	return h
}

// SetMaterial assigns the base colour used for a material in real renders.
func (s *Scene) SetMaterial(name string, c color.RGBA) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.materials[name] = c
}

// MaterialColor returns the real-render colour of a material. Unknown
// materials get a stable colour derived from the name.
func (s *Scene) MaterialColor(name string) color.RGBA {
	s.mu.RLock()
	c, ok := s.materials[name]
	s.mu.RUnlock()
	if ok {
		return c
	}
	h := fnv.New32a()
	h.Write([]byte(name))
	v := h.Sum32()
	return color.RGBA{R: 64 + uint8(v)%160, G: 64 + uint8(v>>8)%160, B: 64 + uint8(v>>16)%160, A: 0xff}
}

func (s *Scene) get(h engine.Handle) (*Object, error) {
	o, ok := s.objects[h]
	if !ok {
		return nil, fmt.Errorf("%w: handle %d", engine.ErrUnknownObject, h)
	}
	return o, nil
}

// Resolve finds an object by name.
func (s *Scene) Resolve(name string) (engine.Handle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.byName[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", engine.ErrUnknownObject, name)
	}
	return h, nil
}

// Slots returns a copy of the object's material slots.
func (s *Scene) Slots(h engine.Handle) ([]engine.Appearance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, err := s.get(h)
	if err != nil {
		return nil, err
	}
	return slices.Clone(o.Slots), nil
}

// SetAppearance replaces the object's slots.
func (s *Scene) SetAppearance(h engine.Handle, slots []engine.Appearance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, err := s.get(h)
	if err != nil {
		return err
	}
	o.Slots = slices.Clone(slots)
	return nil
}

// Duplicate copies an object under a "name.NNN" name, visible.
func (s *Scene) Duplicate(h engine.Handle) (engine.Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, err := s.get(h)
	if err != nil {
		return 0, err
	}
	cp := *o
	for {
		s.dupCount[o.Name]++
		cp.Name = fmt.Sprintf("%s.%03d", o.Name, s.dupCount[o.Name])
		if _, taken := s.byName[cp.Name]; !taken {
			break
		}
	}
	cp.Visible = true
	return s.insertLocked(cp), nil
}

// Remove deletes an object.
func (s *Scene) Remove(h engine.Handle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, err := s.get(h)
	if err != nil {
		return err
	}
	delete(s.byName, o.Name)
	delete(s.objects, h)
	return nil
}

// SetVisible toggles render visibility.
func (s *Scene) SetVisible(h engine.Handle, visible bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, err := s.get(h)
	if err != nil {
		return err
	}
	o.Visible = visible
	return nil
}

// Location returns the object's position.
func (s *Scene) Location(h engine.Handle) (r3.Vec, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, err := s.get(h)
	if err != nil {
		return r3.Vec{}, err
	}
	return o.Location, nil
}

// Place scatters h uniformly over its emitter patch. The position and size
// depend only on (seed, slot), so a replayed iteration lands identically.
func (s *Scene) Place(h engine.Handle, p engine.Placement) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, err := s.get(h)
	if err != nil {
		return err
	}
	em, err := s.get(p.Emitter)
	if err != nil {
		return err
	}
	rng := rand.New(rand.NewPCG(uint64(p.Seed), uint64(p.Slot)))
	scale := p.Scale
	if scale <= 0 {
		scale = 1
	}
	scale *= 1 - math.Min(1, math.Max(0, p.ScaleRandomness))*rng.Float64()
	o.Radius *= scale
	o.Location = r3.Vec{
		X: em.Location.X + (rng.Float64()*2-1)*em.Extent[0],
		Y: em.Location.Y + (rng.Float64()*2-1)*em.Extent[1],
		Z: em.Location.Z + o.Radius,
	}
	return nil
}

// Object returns a copy of the named object.
func (s *Scene) Object(name string) (Object, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.byName[name]
	if !ok {
		return Object{}, false
	}
	o := *s.objects[h]
	o.Slots = slices.Clone(o.Slots)
	return o, true
}

// Len is the number of objects.
func (s *Scene) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}

// snapshot copies the visible objects for rendering.
func (s *Scene) snapshot() []Object {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Object, 0, len(s.objects))
	for _, o := range s.objects {
		if o.Visible {
			cp := *o
			cp.Slots = slices.Clone(o.Slots)
			out = append(out, cp)
		}
	}
	slices.SortFunc(out, func(a, b Object) int { return strings.Compare(a.Name, b.Name) })
	return out
}
