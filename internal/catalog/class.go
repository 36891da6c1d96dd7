package catalog

import (
	"fmt"
	"image/color"
)

// Kind separates classes instantiated from a particle emitter each iteration
// from persistent scene objects that are only recoloured.
type Kind int

const (
	KindParticle Kind = iota
	KindStatic
)

func (k Kind) String() string {
	switch k {
	case KindParticle:
		return "particle"
	case KindStatic:
		return "static"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Range is an inclusive integer interval.
type Range struct {
	Min, Max int
}

// Valid reports whether the range is ordered and non-negative.
func (r Range) Valid() bool { return r.Min >= 0 && r.Min <= r.Max }

// Contains reports whether v lies in [Min, Max].
func (r Range) Contains(v int) bool { return v >= r.Min && v <= r.Max }

// Class is one declared object type. It is built once from configuration
// and not modified afterwards.
type Class struct {
	ID          int
	Name        string // scene object (template for particle classes)
	Label       string
	LabelIndex  *int
	Description string
	Trainable   bool
	Kind        Kind

	// MaskColor is the flat colour used for non-trainable classes.
	MaskColor color.RGBA

	// Particle placement. Count and Seed are drawn per iteration.
	Emitter         string
	System          string
	Count           Range
	Seed            Range
	Scale           float64
	ScaleRandomness float64

	Material string
}

// Shades is the number of identity colours the class needs: one per
// possible instance slot.
func (c *Class) Shades() int {
	if c.Kind == KindParticle {
		return c.Count.Max
	}
	return 1
}

// NeedsDraw reports whether the class must be randomized before it can be
// materialized.
func (c *Class) NeedsDraw() bool { return c.Kind == KindParticle }

func (c *Class) String() string {
	return fmt.Sprintf("%s#%d(%s)", c.Name, c.ID, c.Kind)
}
