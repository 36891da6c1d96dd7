// Package catalog maps identity colours to the class and instance slot that
// wears them. The catalog is built once per run from the declared classes,
// written to metadata.csv before anything is rendered, and read back by the
// annotation pass to decode masks.
package catalog

import (
	"errors"
	"fmt"
	"image/color"

	"github.com/banshee-data/synthgen/internal/palette"
)

var (
	// ErrColorCollision means two catalogue entries, or a fixed mask colour
	// and an entry, quantize to the same 8-bit colour.
	ErrColorCollision = errors.New("catalog: colour collision")
	// ErrMissingLabelIndex is returned for a trainable class without label_index.
	ErrMissingLabelIndex = errors.New("catalog: trainable class missing label_index")
	// ErrMissingLabel is returned for a trainable class without a label.
	ErrMissingLabel = errors.New("catalog: trainable class missing label")
)

// Background is the mask clear colour. No entry may use it.
var Background = color.RGBA{A: 0xff}

// Entry is one identity colour.
type Entry struct {
	Color       color.RGBA
	Label       string
	LabelIndex  int
	ClassID     int
	Shade       int // written as mat_idx; equal to the instance slot
	Description string
}

// Catalog is an append-only, ordered colour table.
type Catalog struct {
	entries []Entry
	index   map[color.RGBA]int
	byClass map[int][]int
}

// New returns an empty catalogue.
func New() *Catalog {
	return &Catalog{
		index:   make(map[color.RGBA]int),
		byClass: make(map[int][]int),
	}
}

// Build allocates hues across the trainable classes in declaration order and
// a shade ramp per class. maxShades caps any single ramp; values above
// palette.MaxShades are reduced to it.
func Build(classes []*Class, maxShades int) (*Catalog, error) {
	if maxShades <= 0 || maxShades > palette.MaxShades {
		maxShades = palette.MaxShades
	}
	var trainable []*Class
	for _, c := range classes {
		if !c.Trainable {
			continue
		}
		if c.Label == "" {
			return nil, fmt.Errorf("%w: %s", ErrMissingLabel, c.Name)
		}
		if c.LabelIndex == nil {
			return nil, fmt.Errorf("%w: %s", ErrMissingLabelIndex, c.Name)
		}
		if c.Shades() > maxShades {
			return nil, fmt.Errorf("class %s: %w: %d > %d", c.Name, palette.ErrTooManyShades, c.Shades(), maxShades)
		}
		trainable = append(trainable, c)
	}

	hues, err := palette.ClassColors(len(trainable))
	if err != nil {
		return nil, err
	}

	cat := New()
	for i, c := range trainable {
		shades, err := palette.InstanceShades(hues[i], c.Shades())
		if err != nil {
			return nil, fmt.Errorf("class %s: %w", c.Name, err)
		}
		for j, col := range shades {
			e := Entry{
				Color:       col,
				Label:       c.Label,
				LabelIndex:  *c.LabelIndex,
				ClassID:     c.ID,
				Shade:       j,
				Description: c.Description,
			}
			if err := cat.Add(e); err != nil {
				return nil, fmt.Errorf("class %s shade %d: %w", c.Name, j, err)
			}
		}
	}

	for _, c := range classes {
		if c.Trainable || c.MaskColor == Background {
			continue
		}
		if e, ok := cat.Lookup(c.MaskColor); ok {
			return nil, fmt.Errorf("%w: fixed colour %s of %s matches class %d shade %d",
				ErrColorCollision, palette.Hex(c.MaskColor), c.Name, e.ClassID, e.Shade)
		}
	}
	return cat, nil
}

// Add appends an entry. Entries are never replaced.
func (c *Catalog) Add(e Entry) error {
	e.Color.A = 0xff
	if e.Color == Background {
		return fmt.Errorf("%w: %s is the mask background", ErrColorCollision, palette.Hex(e.Color))
	}
	if prev, ok := c.index[e.Color]; ok {
		p := c.entries[prev]
		return fmt.Errorf("%w: %s already used by class %d shade %d",
			ErrColorCollision, palette.Hex(e.Color), p.ClassID, p.Shade)
	}
	c.index[e.Color] = len(c.entries)
	c.byClass[e.ClassID] = append(c.byClass[e.ClassID], len(c.entries))
	c.entries = append(c.entries, e)
	return nil
}

// Lookup finds the entry wearing col.
func (c *Catalog) Lookup(col color.RGBA) (Entry, bool) {
	col.A = 0xff
	i, ok := c.index[col]
	if !ok {
		return Entry{}, false
	}
	return c.entries[i], true
}

// Color returns the identity colour for a class instance slot.
func (c *Catalog) Color(classID, slot int) (color.RGBA, bool) {
	idx := c.byClass[classID]
	if slot < 0 || slot >= len(idx) {
		return color.RGBA{}, false
	}
	return c.entries[idx[slot]].Color, true
}

// ClassEntries returns the entries of one class in shade order.
func (c *Catalog) ClassEntries(classID int) []Entry {
	idx := c.byClass[classID]
	out := make([]Entry, len(idx))
	for i, j := range idx {
		out[i] = c.entries[j]
	}
	return out
}

// Entries returns a copy of all entries in insertion order.
func (c *Catalog) Entries() []Entry {
	return append([]Entry(nil), c.entries...)
}

// Len is the number of entries.
func (c *Catalog) Len() int { return len(c.entries) }
