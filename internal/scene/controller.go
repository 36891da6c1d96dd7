package scene

import (
	"errors"
	"fmt"
	"image/color"
	"math/rand/v2"
	"slices"

	"github.com/banshee-data/synthgen/internal/catalog"
	"github.com/banshee-data/synthgen/internal/engine"
	"github.com/banshee-data/synthgen/internal/monitoring"
)

var (
	// ErrUndeclaredObject is returned when a class references an object the
	// host does not know.
	ErrUndeclaredObject = errors.New("scene: undeclared object")
	// ErrOrder is returned when lifecycle steps are called out of sequence.
	ErrOrder = errors.New("scene: lifecycle order")
)

// State is the lifecycle phase of the controller and of each instance.
type State int

const (
	StateCreated State = iota
	StateRandomized
	StateMaterialized
	StateMasked
	StateUnmasked
	StateCleared
)

var stateNames = [...]string{"created", "randomized", "materialized", "masked", "unmasked", "cleared"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Key identifies a live instance.
type Key struct {
	Class int
	Slot  int
}

// Instance is one live object. Its colour is fixed for its lifetime.
type Instance struct {
	Key
	Class  *catalog.Class
	Color  color.RGBA
	State  State
	Handle engine.Handle

	duplicate bool
}

// Draw is the randomized placement of one particle class.
type Draw struct {
	Count int
	Seed  int
}

type classRef struct {
	class    *catalog.Class
	handle   engine.Handle
	emitter  engine.Handle
	captured []engine.Appearance
}

// Controller drives the instance lifecycle against an engine.Host.
type Controller struct {
	rt    *monitoring.Runtime
	host  engine.Host
	cat   *catalog.Catalog
	refs  []classRef
	emits []engine.Handle

	state  State
	draws  map[int]Draw
	live   map[Key]*Instance
	order  []Key
	closed bool
}

// New resolves every template, static object and emitter named by classes
// and captures their appearance. Any unknown name fails immediately.
func New(rt *monitoring.Runtime, host engine.Host, classes []*catalog.Class, cat *catalog.Catalog) (*Controller, error) {
	if rt == nil {
		rt = monitoring.Nop()
	}
	c := &Controller{
		rt:    rt,
		host:  host,
		cat:   cat,
		draws: make(map[int]Draw),
		live:  make(map[Key]*Instance),
	}
	emitters := make(map[string]engine.Handle)
	for _, cls := range classes {
		h, err := host.Resolve(cls.Name)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrUndeclaredObject, cls.Name, err)
		}
		slots, err := host.Slots(h)
		if err != nil {
			return nil, fmt.Errorf("capture %q: %w", cls.Name, err)
		}
		ref := classRef{class: cls, handle: h, captured: slices.Clone(slots)}

		if cls.Kind == catalog.KindParticle {
			if cls.Emitter == "" {
				return nil, fmt.Errorf("%w: particle class %q has no emitter", ErrUndeclaredObject, cls.Name)
			}
			eh, ok := emitters[cls.Emitter]
			if !ok {
				eh, err = host.Resolve(cls.Emitter)
				if err != nil {
					return nil, fmt.Errorf("%w: emitter %q: %v", ErrUndeclaredObject, cls.Emitter, err)
				}
				emitters[cls.Emitter] = eh
				c.emits = append(c.emits, eh)
			}
			ref.emitter = eh
		}

		if cls.Trainable {
			if _, ok := cat.Color(cls.ID, cls.Shades()-1); !ok {
				return nil, fmt.Errorf("scene: class %q has fewer than %d catalogue colours", cls.Name, cls.Shades())
			}
		}
		c.refs = append(c.refs, ref)
	}
	rt.Log.Debug("scene resolved", "classes", len(c.refs), "emitters", len(c.emits))
	return c, nil
}

// State is the controller's current phase.
func (c *Controller) State() State { return c.state }

// Randomize draws a count and seed for every particle class.
func (c *Controller) Randomize(rng *rand.Rand) error {
	if c.state != StateCreated && c.state != StateCleared {
		return fmt.Errorf("%w: randomize in state %s", ErrOrder, c.state)
	}
	clear(c.draws)
	for _, ref := range c.refs {
		cls := ref.class
		if !cls.NeedsDraw() {
			continue
		}
		d := Draw{Count: drawInt(rng, cls.Count), Seed: drawInt(rng, cls.Seed)}
		c.draws[cls.ID] = d
		c.rt.Log.Debug("randomized", "class", cls.Name, "count", d.Count, "seed", d.Seed)
	}
	c.state = StateRandomized
	return nil
}

func drawInt(rng *rand.Rand, r catalog.Range) int {
	if r.Max <= r.Min {
		return r.Min
	}
	return r.Min + rng.IntN(r.Max-r.Min+1)
}

// DrawFor returns the current draw of a particle class.
func (c *Controller) DrawFor(classID int) (Draw, bool) {
	d, ok := c.draws[classID]
	return d, ok
}

// Materialize creates live instances: particle templates are duplicated
// once per drawn slot and hidden; static objects are wrapped in place.
func (c *Controller) Materialize() error {
	switch {
	case c.state == StateRandomized:
	case c.needsDraw():
		return fmt.Errorf("%w: materialize in state %s before randomize", ErrOrder, c.state)
	case c.state != StateCreated && c.state != StateCleared:
		return fmt.Errorf("%w: materialize in state %s", ErrOrder, c.state)
	}

	placer, _ := c.host.(engine.Placer)
	for _, ref := range c.refs {
		cls := ref.class
		if cls.Kind == catalog.KindStatic {
			c.add(ref, 0, ref.handle, false)
			continue
		}
		d := c.draws[cls.ID]
		if err := c.host.SetVisible(ref.handle, false); err != nil {
			return fmt.Errorf("hide template %q: %w", cls.Name, err)
		}
		for slot := 0; slot < d.Count; slot++ {
			h, err := c.host.Duplicate(ref.handle)
			if err != nil {
				return fmt.Errorf("duplicate %q slot %d: %w", cls.Name, slot, err)
			}
			// Registered before placement so cleanup sees it on failure.
			c.add(ref, slot, h, true)
			if placer != nil {
				p := engine.Placement{
					Emitter:         ref.emitter,
					Seed:            d.Seed,
					Slot:            slot,
					Scale:           cls.Scale,
					ScaleRandomness: cls.ScaleRandomness,
				}
				if err := placer.Place(h, p); err != nil {
					return fmt.Errorf("place %q slot %d: %w", cls.Name, slot, err)
				}
			}
			if err := c.host.SetVisible(h, true); err != nil {
				return fmt.Errorf("show %q slot %d: %w", cls.Name, slot, err)
			}
		}
	}
	for _, k := range c.order {
		c.live[k].State = StateMaterialized
	}
	c.state = StateMaterialized
	c.rt.Log.Debug("materialized", "instances", len(c.order))
	return nil
}

func (c *Controller) needsDraw() bool {
	for _, ref := range c.refs {
		if ref.class.NeedsDraw() {
			return true
		}
	}
	return false
}

func (c *Controller) add(ref classRef, slot int, h engine.Handle, dup bool) {
	cls := ref.class
	col := cls.MaskColor
	if cls.Trainable {
		col, _ = c.cat.Color(cls.ID, slot)
	}
	k := Key{Class: cls.ID, Slot: slot}
	c.live[k] = &Instance{Key: k, Class: cls, Color: col, State: StateCreated, Handle: h, duplicate: dup}
	c.order = append(c.order, k)
}

func (c *Controller) ref(classID int) *classRef {
	for i := range c.refs {
		if c.refs[i].class.ID == classID {
			return &c.refs[i]
		}
	}
	return nil
}

func (c *Controller) canPaint(op string) error {
	switch c.state {
	case StateMaterialized, StateMasked, StateUnmasked:
		return nil
	}
	return fmt.Errorf("%w: %s in state %s", ErrOrder, op, c.state)
}

// Mask paints every live instance with its flat colour and hides emitters.
func (c *Controller) Mask() error {
	if err := c.canPaint("mask"); err != nil {
		return err
	}
	for _, k := range c.order {
		inst := c.live[k]
		n := max(1, len(c.ref(k.Class).captured))
		slots := make([]engine.Appearance, n)
		for i := range slots {
			slots[i] = engine.FlatAppearance(inst.Color)
		}
		if err := c.host.SetAppearance(inst.Handle, slots); err != nil {
			return fmt.Errorf("mask %s slot %d: %w", inst.Class.Name, k.Slot, err)
		}
		inst.State = StateMasked
	}
	for _, eh := range c.emits {
		if err := c.host.SetVisible(eh, false); err != nil {
			return fmt.Errorf("hide emitter: %w", err)
		}
	}
	c.state = StateMasked
	return nil
}

// Unmask restores the captured slots of every live instance and shows
// emitters again.
func (c *Controller) Unmask() error {
	if err := c.canPaint("unmask"); err != nil {
		return err
	}
	for _, k := range c.order {
		inst := c.live[k]
		if err := c.host.SetAppearance(inst.Handle, slices.Clone(c.ref(k.Class).captured)); err != nil {
			return fmt.Errorf("unmask %s slot %d: %w", inst.Class.Name, k.Slot, err)
		}
		inst.State = StateUnmasked
	}
	for _, eh := range c.emits {
		if err := c.host.SetVisible(eh, true); err != nil {
			return fmt.Errorf("show emitter: %w", err)
		}
	}
	c.state = StateUnmasked
	return nil
}

// Cleanup removes duplicated instances, restores template and emitter
// visibility and marks every record cleared. Calls after the first are
// no-ops. Host errors do not stop the sweep; they are joined and returned.
func (c *Controller) Cleanup() error {
	if c.state == StateCleared || (c.state == StateCreated && len(c.order) == 0) {
		return nil
	}
	var errs []error
	if c.state == StateMasked {
		errs = append(errs, c.Unmask())
	}
	for i := len(c.order) - 1; i >= 0; i-- {
		inst := c.live[c.order[i]]
		if inst.duplicate {
			if err := c.host.Remove(inst.Handle); err != nil {
				errs = append(errs, fmt.Errorf("remove %s slot %d: %w", inst.Class.Name, inst.Slot, err))
			}
		}
		inst.State = StateCleared
	}
	for _, ref := range c.refs {
		if ref.class.Kind == catalog.KindParticle {
			if err := c.host.SetVisible(ref.handle, true); err != nil {
				errs = append(errs, fmt.Errorf("show template %q: %w", ref.class.Name, err))
			}
		}
	}
	for _, eh := range c.emits {
		if err := c.host.SetVisible(eh, true); err != nil {
			errs = append(errs, fmt.Errorf("show emitter: %w", err))
		}
	}
	clear(c.live)
	c.order = c.order[:0]
	c.state = StateCleared
	return errors.Join(errs...)
}

// Close runs Cleanup and writes the captured appearance back onto every
// resolved object, leaving the host as it was before New.
func (c *Controller) Close() error {
	if c.closed {
		return nil
	}
	errs := []error{c.Cleanup()}
	for _, ref := range c.refs {
		if err := c.host.SetAppearance(ref.handle, slices.Clone(ref.captured)); err != nil {
			errs = append(errs, fmt.Errorf("restore %q: %w", ref.class.Name, err))
		}
	}
	c.closed = true
	return errors.Join(errs...)
}

// Live returns copies of the live instances in materialization order.
func (c *Controller) Live() []Instance {
	out := make([]Instance, 0, len(c.order))
	for _, k := range c.order {
		out = append(out, *c.live[k])
	}
	return out
}

// Instance looks up one live instance.
func (c *Controller) Instance(k Key) (Instance, bool) {
	inst, ok := c.live[k]
	if !ok {
		return Instance{}, false
	}
	return *inst, true
}

// LiveCount is the number of live instances of a class.
func (c *Controller) LiveCount(classID int) int {
	n := 0
	for _, k := range c.order {
		if k.Class == classID {
			n++
		}
	}
	return n
}
