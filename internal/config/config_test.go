package config

import (
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/synthgen/internal/catalog"
	"github.com/banshee-data/synthgen/internal/engine"
)

func TestLoadValid(t *testing.T) {
	cfg, err := Load("testdata/valid.yaml")
	require.NoError(t, err)

	assert.Equal(t, uint64(1234), cfg.GetSeed())
	assert.Equal(t, "Scene", cfg.GetSceneName())
	assert.Equal(t, 4, cfg.GetIterations())
	assert.True(t, cfg.Render.GetSaveReal())
	assert.Equal(t, 320, cfg.Annotate.GetWidth())
	assert.Equal(t, "runs.db", cfg.Ledger.GetPath())

	classes := cfg.Classes()
	require.Len(t, classes, 4)
	boat, buoy, pier, brk := classes[0], classes[1], classes[2], classes[3]

	assert.Equal(t, 0, boat.ID)
	assert.Equal(t, catalog.KindParticle, boat.Kind)
	assert.True(t, boat.Trainable, "inherits system trainable")
	assert.Equal(t, "Sea", boat.Emitter)
	assert.Equal(t, "vessels", boat.System)
	assert.Equal(t, catalog.Range{Min: 1, Max: 3}, boat.Count)
	assert.Equal(t, catalog.Range{Min: 0, Max: 10000}, boat.Seed)
	assert.InDelta(t, 0.3, boat.ScaleRandomness, 1e-12)

	assert.Equal(t, catalog.Range{Min: 2, Max: 6}, buoy.Count, "object count overrides system")
	require.NotNil(t, buoy.LabelIndex)
	assert.Equal(t, 1, *buoy.LabelIndex)

	assert.Equal(t, catalog.KindStatic, pier.Kind)
	assert.Equal(t, 2, pier.ID)
	assert.False(t, brk.Trainable)
	assert.Equal(t, color.RGBA{R: 0x40, G: 0x40, B: 0x40, A: 0xff}, brk.MaskColor)

	cat, err := catalog.Build(classes, cfg.Palette.GetMaxShades())
	require.NoError(t, err)
	assert.Equal(t, 3+6+1, cat.Len())
}

func TestViewsAndProfiles(t *testing.T) {
	cfg, err := Load("testdata/valid.yaml")
	require.NoError(t, err)

	views := cfg.Views()
	require.Len(t, views, 2)
	assert.Equal(t, 6, views[0].Frames)
	assert.Equal(t, 35.0, views[0].Zoom)
	assert.Equal(t, 36.0, views[0].SensorWidth)
	assert.Equal(t, r3.Vec{X: 0.5, Y: 0.5, Z: 0.2}, views[0].Jitter.Location)
	assert.Equal(t, "pier", views[1].Target.Name)

	real := cfg.Profile(engine.ModeReal)
	assert.Equal(t, "cycles", real.Engine)
	assert.Equal(t, "png", real.Format)
	assert.Equal(t, 15, real.Compression)
	mask := cfg.Profile(engine.ModeMask)
	assert.Equal(t, "eevee", mask.Engine)
	assert.Equal(t, engine.ModeMask, mask.Mode)
	assert.Equal(t, 8, mask.ColorDepth)
}

func TestFlatScene(t *testing.T) {
	cfg, err := Load("testdata/valid.yaml")
	require.NoError(t, err)
	s, err := cfg.FlatScene()
	require.NoError(t, err)

	sea, ok := s.Object("Sea")
	require.True(t, ok)
	assert.True(t, sea.Emitter)
	assert.Equal(t, [2]float64{12, 12}, sea.Extent)
	pier, ok := s.Object("pier")
	require.True(t, ok)
	assert.Equal(t, r3.Vec{X: 10, Z: 2}, pier.Location)
	assert.Equal(t, color.RGBA{R: 0x7a, G: 0x5a, B: 0x3a, A: 0xff}, s.MaterialColor("wood"))
}

func TestFlatSceneFillsUndeclaredObjects(t *testing.T) {
	cfg, err := Parse([]byte(minimal + `
particle_system:
  iterations: 1
  emitters:
    - name: Ground
      systems:
        - name: rocks
          objects: [{name: rock, count: [0, 2]}]
static_system:
  objects: [{name: tower, trainable: true, label: tower, label_index: 0}]
`))
	require.NoError(t, err)
	s, err := cfg.FlatScene()
	require.NoError(t, err)
	for _, name := range []string{"Ground", "rock", "tower"} {
		_, ok := s.Object(name)
		assert.True(t, ok, name)
	}
}

const minimal = `
camera:
  views: [{height: 10, x_radius: 5, y_radius: 5, frames: 2}]
render:
  dimensions: {width: 64, height: 48}
  output: {filepath: out}
`

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse([]byte(minimal))
	require.NoError(t, err)
	assert.Equal(t, uint64(0), cfg.GetSeed())
	assert.Equal(t, 1, cfg.GetIterations())
	assert.Equal(t, "PNG", cfg.Render.Output.GetFileFormat())
	assert.Equal(t, "RGB", cfg.Render.Output.GetColorMode())
	assert.Equal(t, 8, cfg.Render.Output.GetColorDepth())
	assert.Equal(t, 1.0, cfg.Render.Dimensions.GetScale())
	assert.Equal(t, 40, cfg.Annotate.GetMinPixels())
	assert.Equal(t, 255, cfg.Palette.GetMaxShades())
	assert.False(t, cfg.Ledger.Enabled)
	assert.True(t, cfg.Render.Engine.GetGPU())
	assert.Empty(t, cfg.Classes())
}

func TestColorForms(t *testing.T) {
	cfg, err := Parse([]byte(minimal + `
static_system:
  objects:
    - {name: a, color: 0x102030}
    - {name: b, color: "0x405060"}
    - {name: c, color: "#708090"}
    - {name: d, color: 1056816}
`))
	require.NoError(t, err)
	want := []color.RGBA{
		{R: 0x10, G: 0x20, B: 0x30, A: 0xff},
		{R: 0x40, G: 0x50, B: 0x60, A: 0xff},
		{R: 0x70, G: 0x80, B: 0x90, A: 0xff},
		{R: 0x10, G: 0x20, B: 0x30, A: 0xff},
	}
	for i, cls := range cfg.Classes() {
		assert.Equal(t, want[i], cls.MaskColor, cls.Name)
	}

	_, err = Parse([]byte(minimal + "static_system:\n  objects: [{name: a, color: [1, 2]}]\n"))
	assert.Error(t, err)
	_, err = Parse([]byte(minimal + "static_system:\n  objects: [{name: a, color: 0x1000000}]\n"))
	assert.Error(t, err)
}

func TestValidateRejects(t *testing.T) {
	views := "camera:\n  views: [{height: 10, x_radius: 5, y_radius: 5, frames: 2}]\n"
	render := "render:\n  dimensions: {width: 64, height: 48}\n"
	cases := []struct {
		name string
		yaml string
		want string
	}{
		{"no views", "camera: {views: []}\n" + render, "at least one view"},
		{"zero frames", "camera:\n  views: [{height: 1, x_radius: 1, y_radius: 1, frames: 0}]\n" + render, "frames must be >= 1"},
		{"bad vector", "camera:\n  views: [{height: 1, x_radius: 1, y_radius: 1, frames: 1, target_xyz: [1, 2]}]\n" + render, "target_xyz must have 3 values"},
		{"zero width", views + "render:\n  dimensions: {width: 0, height: 48}\n", "width and height must be positive"},
		{"unknown format", views + "render:\n  dimensions: {width: 8, height: 8}\n  output: {file_format: OPEN_EXR}\n", "file_format"},
		{"lossy masks", views + "render:\n  dimensions: {width: 8, height: 8}\n  output: {file_format: JPEG}\n", "lossy"},
		{"greyscale masks", views + "render:\n  dimensions: {width: 8, height: 8}\n  output: {color_mode: BW}\n", "merge mask colours"},
		{"prefix with separator", views + "render:\n  dimensions: {width: 8, height: 8}\n  output: {filename_prefix: ../x}\n", "filename_prefix"},
		{"nothing saved", views + render + "  save_real: false\n  save_mask: false\n", "save_real and save_mask"},
		{"bad depth", views + "render:\n  dimensions: {width: 8, height: 8}\n  output: {color_depth: 12}\n", "color_depth"},
		{"inverted count", views + render + `particle_system:
  emitters: [{name: E, systems: [{name: s, objects: [{name: o, count: [3, 1]}]}]}]
`, "invalid range"},
		{"negative count", views + render + `particle_system:
  emitters: [{name: E, systems: [{name: s, count: [-1, 2], objects: [{name: o}]}]}]
`, "invalid range"},
		{"missing label_index", views + render + `static_system:
  objects: [{name: o, trainable: true, label: x}]
`, "no label_index"},
		{"missing label", views + render + `static_system:
  objects: [{name: o, trainable: true, label_index: 0}]
`, "no label"},
		{"inherited trainable needs label", views + render + `particle_system:
  emitters: [{name: E, trainable: true, systems: [{name: s, objects: [{name: o}]}]}]
`, "no label_index"},
		{"duplicate names", views + render + `static_system:
  objects: [{name: o}, {name: o}]
`, "already declared"},
		{"too many shades", views + render + `palette: {max_shades: 4}
particle_system:
  emitters: [{name: E, systems: [{name: s, trainable: true, objects: [{name: o, label: o, label_index: 0, count: [0, 5]}]}]}]
`, "exceeds max_shades"},
		{"max shades range", views + render + "palette: {max_shades: 300}\n", "max_shades must be"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml))
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalid), "want ErrInvalid, got %v", err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestValidateReportsAllProblems(t *testing.T) {
	_, err := Parse([]byte("camera: {views: []}\nrender:\n  dimensions: {width: 0, height: 0}\n"))
	require.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "at least one view")
	assert.Contains(t, err.Error(), "width and height")
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte(minimal + "renderr: {}\n"))
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrInvalid), "decode errors are not validation errors")
}

func TestLoadChecks(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "run.json"))
	assert.ErrorContains(t, err, ".yaml or .yml extension")

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.ErrorContains(t, err, "failed to stat")

	big := filepath.Join(dir, "big.yml")
	require.NoError(t, os.WriteFile(big, []byte("# "+strings.Repeat("x", maxFileSize)), 0o644))
	_, err = Load(big)
	assert.ErrorContains(t, err, "too large")

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("camera: [unclosed"), 0o644))
	_, err = Load(bad)
	assert.ErrorContains(t, err, "failed to parse")
}
