package scene

import (
	"errors"
	"image/color"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/synthgen/internal/catalog"
	"github.com/banshee-data/synthgen/internal/engine"
	"github.com/banshee-data/synthgen/internal/engine/flat"
)

func intp(v int) *int { return &v }

var grey = color.RGBA{R: 40, G: 40, B: 40, A: 255}

func fixture(t *testing.T) (*flat.Scene, []*catalog.Class, *catalog.Catalog) {
	t.Helper()
	s := flat.NewScene()
	add := func(o flat.Object) {
		_, err := s.Add(o)
		require.NoError(t, err)
	}
	add(flat.Object{Name: "Plane", Emitter: true, Visible: true, Extent: [2]float64{10, 10}})
	add(flat.Object{Name: "boat", Radius: 1, Visible: true, Slots: []engine.Appearance{
		engine.MaterialAppearance("hull"), engine.MaterialAppearance("sail"),
	}})
	add(flat.Object{Name: "rock", Radius: 0.5, Visible: true, Slots: []engine.Appearance{engine.MaterialAppearance("stone")}})
	add(flat.Object{Name: "pier", Radius: 2, Visible: true, Location: r3.Vec{X: 8}, Slots: []engine.Appearance{engine.MaterialAppearance("wood")}})
	add(flat.Object{Name: "shore", Radius: 3, Visible: true, Location: r3.Vec{X: -8}})

	classes := []*catalog.Class{
		{ID: 0, Name: "boat", Label: "boat", LabelIndex: intp(0), Trainable: true, Kind: catalog.KindParticle,
			Emitter: "Plane", Count: catalog.Range{Min: 2, Max: 4}, Seed: catalog.Range{Min: 0, Max: 1000}, Scale: 1},
		{ID: 1, Name: "rock", Kind: catalog.KindParticle, Emitter: "Plane",
			Count: catalog.Range{Min: 0, Max: 3}, Seed: catalog.Range{Min: 0, Max: 1000}, Scale: 1},
		{ID: 2, Name: "pier", Label: "pier", LabelIndex: intp(1), Trainable: true, Kind: catalog.KindStatic},
		{ID: 3, Name: "shore", Kind: catalog.KindStatic, MaskColor: grey},
	}
	cat, err := catalog.Build(classes, 0)
	require.NoError(t, err)
	return s, classes, cat
}

func newController(t *testing.T) (*Controller, *flat.Scene, *catalog.Catalog) {
	t.Helper()
	s, classes, cat := fixture(t)
	c, err := New(nil, s, classes, cat)
	require.NoError(t, err)
	return c, s, cat
}

func TestLifecycleCountsAndColours(t *testing.T) {
	t.Parallel()

	c, s, cat := newController(t)
	for it := range 20 {
		rng := rand.New(rand.NewPCG(1, uint64(it)))
		require.NoError(t, c.Randomize(rng))
		require.NoError(t, c.Materialize())

		d, ok := c.DrawFor(0)
		require.True(t, ok)
		assert.GreaterOrEqual(t, d.Count, 2)
		assert.LessOrEqual(t, d.Count, 4)
		assert.Equal(t, d.Count, c.LiveCount(0))
		assert.LessOrEqual(t, c.LiveCount(1), 3)
		assert.Equal(t, 1, c.LiveCount(2), "static objects get one fresh record")
		assert.Equal(t, 1, c.LiveCount(3))

		seen := map[color.RGBA]Key{}
		for _, inst := range c.Live() {
			assert.Equal(t, StateMaterialized, inst.State)
			if !inst.Class.Trainable {
				continue
			}
			prev, dup := seen[inst.Color]
			assert.False(t, dup, "%v shared by %v and %v", inst.Color, prev, inst.Key)
			seen[inst.Color] = inst.Key
			e, ok := cat.Lookup(inst.Color)
			require.True(t, ok)
			assert.Equal(t, inst.Class.ID, e.ClassID)
			assert.Equal(t, inst.Slot, e.Shade)
		}

		tpl, _ := s.Object("boat")
		assert.False(t, tpl.Visible, "template hidden while instances live")

		require.NoError(t, c.Cleanup())
		assert.Empty(t, c.Live())
		assert.Equal(t, StateCleared, c.State())
		assert.Equal(t, 5, s.Len(), "only the original objects remain")
	}
}

func TestMaskUnmaskRestoresSlots(t *testing.T) {
	c, s, cat := newController(t)
	require.NoError(t, c.Randomize(rand.New(rand.NewPCG(3, 0))))
	require.NoError(t, c.Materialize())
	require.NoError(t, c.Mask())
	assert.Equal(t, StateMasked, c.State())

	emitter, _ := s.Object("Plane")
	assert.False(t, emitter.Visible)

	boat0, ok := c.Instance(Key{Class: 0, Slot: 0})
	require.True(t, ok)
	slots, err := s.Slots(boat0.Handle)
	require.NoError(t, err)
	want, _ := cat.Color(0, 0)
	require.Len(t, slots, 2, "one flat slot per captured slot")
	for _, sl := range slots {
		assert.Equal(t, engine.FlatAppearance(want), sl)
	}

	shore, ok := c.Instance(Key{Class: 3, Slot: 0})
	require.True(t, ok)
	slots, _ = s.Slots(shore.Handle)
	assert.Equal(t, []engine.Appearance{engine.FlatAppearance(grey)}, slots, "slotless objects get one flat slot")

	require.NoError(t, c.Unmask())
	slots, _ = s.Slots(boat0.Handle)
	assert.Equal(t, []engine.Appearance{engine.MaterialAppearance("hull"), engine.MaterialAppearance("sail")}, slots)
	slots, _ = s.Slots(shore.Handle)
	assert.Empty(t, slots)
	emitter, _ = s.Object("Plane")
	assert.True(t, emitter.Visible)

	// A second mask cycle within the same iteration is allowed.
	require.NoError(t, c.Mask())
	require.NoError(t, c.Unmask())
	require.NoError(t, c.Cleanup())
}

func TestCleanupFromMaskedUnmasksFirst(t *testing.T) {
	c, s, _ := newController(t)
	require.NoError(t, c.Randomize(rand.New(rand.NewPCG(5, 0))))
	require.NoError(t, c.Materialize())
	require.NoError(t, c.Mask())
	require.NoError(t, c.Cleanup())
	require.NoError(t, c.Cleanup(), "second cleanup is a no-op")

	pier, _ := s.Object("pier")
	assert.Equal(t, []engine.Appearance{engine.MaterialAppearance("wood")}, pier.Slots)
	for _, name := range []string{"Plane", "boat", "rock", "pier"} {
		o, ok := s.Object(name)
		require.True(t, ok, name)
		assert.True(t, o.Visible, name)
	}
}

func TestOrderErrors(t *testing.T) {
	c, _, _ := newController(t)
	assert.ErrorIs(t, c.Materialize(), ErrOrder, "particle classes need a draw")
	assert.ErrorIs(t, c.Mask(), ErrOrder)
	assert.ErrorIs(t, c.Unmask(), ErrOrder)

	rng := rand.New(rand.NewPCG(1, 1))
	require.NoError(t, c.Randomize(rng))
	assert.ErrorIs(t, c.Randomize(rng), ErrOrder)
	assert.ErrorIs(t, c.Mask(), ErrOrder)
	require.NoError(t, c.Materialize())
	assert.ErrorIs(t, c.Materialize(), ErrOrder)
	require.NoError(t, c.Cleanup())
	assert.ErrorIs(t, c.Mask(), ErrOrder)
	require.NoError(t, c.Randomize(rng), "cleared controller can start again")
}

func TestStaticOnlyMaterializesWithoutDraw(t *testing.T) {
	s, classes, cat := fixture(t)
	c, err := New(nil, s, classes[2:], cat)
	require.NoError(t, err)
	require.NoError(t, c.Materialize())
	assert.Len(t, c.Live(), 2)
	require.NoError(t, c.Cleanup())
	require.NoError(t, c.Materialize(), "static records are rebuilt each iteration")
	assert.Len(t, c.Live(), 2)
}

func TestUndeclaredObject(t *testing.T) {
	s, classes, cat := fixture(t)

	missing := append([]*catalog.Class{}, classes...)
	missing = append(missing, &catalog.Class{ID: 9, Name: "ghost", Kind: catalog.KindStatic})
	_, err := New(nil, s, missing, cat)
	assert.ErrorIs(t, err, ErrUndeclaredObject)

	noEmitter := []*catalog.Class{{ID: 0, Name: "rock", Kind: catalog.KindParticle, Emitter: "Sea"}}
	_, err = New(nil, s, noEmitter, cat)
	assert.ErrorIs(t, err, ErrUndeclaredObject)
}

func TestCloseRestoresHost(t *testing.T) {
	c, s, _ := newController(t)
	require.NoError(t, c.Randomize(rand.New(rand.NewPCG(9, 0))))
	require.NoError(t, c.Materialize())
	require.NoError(t, c.Mask())
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	assert.Equal(t, 5, s.Len())
	boat, _ := s.Object("boat")
	assert.True(t, boat.Visible)
	assert.Equal(t, []engine.Appearance{engine.MaterialAppearance("hull"), engine.MaterialAppearance("sail")}, boat.Slots)
}

// failingRemove wraps a host and fails every Remove.
type failingRemove struct {
	engine.Host
	calls int
}

var errBroken = errors.New("host broke")

func (f *failingRemove) Remove(engine.Handle) error {
	f.calls++
	return errBroken
}

func TestCleanupContinuesPastHostErrors(t *testing.T) {
	s, classes, cat := fixture(t)
	host := &failingRemove{Host: s}
	c, err := New(nil, host, classes, cat)
	require.NoError(t, err)
	require.NoError(t, c.Randomize(rand.New(rand.NewPCG(2, 0))))
	require.NoError(t, c.Materialize())
	dups := c.LiveCount(0) + c.LiveCount(1)

	err = c.Cleanup()
	assert.ErrorIs(t, err, errBroken)
	assert.Equal(t, dups, host.calls, "every duplicate is attempted")
	assert.Equal(t, StateCleared, c.State())
	assert.NoError(t, c.Cleanup())

	boat, _ := s.Object("boat")
	assert.True(t, boat.Visible, "templates are shown despite remove failures")
}
