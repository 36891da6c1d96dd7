// Package config loads the YAML run configuration. Optional fields are
// pointers; the Get* accessors supply the defaults for anything omitted, so
// partial configs are safe.
package config

import (
	"errors"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/banshee-data/synthgen/internal/palette"
)

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("config: invalid")

const maxFileSize = 1 * 1024 * 1024 // 1MB

// Config is the root of a run configuration.
type Config struct {
	// Seed is the root seed. Absent or zero derives one from the clock.
	Seed           *uint64               `yaml:"seed,omitempty"`
	Scene          SceneConfig           `yaml:"scene"`
	Camera         CameraConfig          `yaml:"camera"`
	Render         RenderConfig          `yaml:"render"`
	ParticleSystem *ParticleSystemConfig `yaml:"particle_system,omitempty"`
	StaticSystem   *StaticSystemConfig   `yaml:"static_system,omitempty"`
	Annotate       AnnotateConfig        `yaml:"annotate"`
	Palette        PaletteConfig         `yaml:"palette"`
	Ledger         LedgerConfig          `yaml:"ledger"`
}

// SceneConfig names the scene. Objects optionally lays out the flat
// engine's geometry; names referenced by classes but not listed here are
// created with default geometry.
type SceneConfig struct {
	Name    string              `yaml:"name"`
	Objects []SceneObjectConfig `yaml:"objects,omitempty"`
}

// SceneObjectConfig is one flat-engine object.
type SceneObjectConfig struct {
	Name      string    `yaml:"name"`
	Location  []float64 `yaml:"location,omitempty"`
	Radius    *float64  `yaml:"radius,omitempty"`
	Emitter   bool      `yaml:"emitter,omitempty"`
	Extent    []float64 `yaml:"extent,omitempty"`
	Materials []string  `yaml:"materials,omitempty"`
	Color     *Color    `yaml:"color,omitempty"` // real-render base colour of the first material
}

// CameraConfig lists the orbits.
type CameraConfig struct {
	Views []ViewConfig `yaml:"views"`
}

// ViewConfig is one orbit. Field names follow the YAML.
type ViewConfig struct {
	Height         float64   `yaml:"height"`
	XRadius        float64   `yaml:"x_radius"`
	YRadius        float64   `yaml:"y_radius"`
	Frames         int       `yaml:"frames"`
	TargetXYZ      []float64 `yaml:"target_xyz,omitempty"`
	TargetName     string    `yaml:"target_name,omitempty"`
	Zoom           *float64  `yaml:"zoom,omitempty"`
	SensorWidth    *float64  `yaml:"sensor_width,omitempty"`
	JitterLocation []float64 `yaml:"jitter_location,omitempty"`
	JitterRotation []float64 `yaml:"jitter_rotation,omitempty"`
	JitterTarget   []float64 `yaml:"jitter_target,omitempty"`
}

// RenderConfig holds engine, resolution and output settings.
type RenderConfig struct {
	Engine     EngineConfig     `yaml:"engine"`
	Dimensions DimensionsConfig `yaml:"dimensions"`
	Output     OutputConfig     `yaml:"output"`
	SaveReal   *bool            `yaml:"save_real,omitempty"`
	SaveMask   *bool            `yaml:"save_mask,omitempty"`
}

// EngineConfig names the per-mode engines.
type EngineConfig struct {
	Real string `yaml:"real,omitempty"`
	Mask string `yaml:"mask,omitempty"`
	GPU  *bool  `yaml:"gpu,omitempty"`
}

// DimensionsConfig is the base resolution and its multiplier.
type DimensionsConfig struct {
	Width  int      `yaml:"width"`
	Height int      `yaml:"height"`
	Scale  *float64 `yaml:"scale,omitempty"`
}

// OutputConfig controls file naming and encoding.
type OutputConfig struct {
	Filepath       string `yaml:"filepath"`
	FilenamePrefix string `yaml:"filename_prefix,omitempty"`
	FileFormat     string `yaml:"file_format,omitempty"`
	ColorMode      string `yaml:"color_mode,omitempty"`
	Compression    *int   `yaml:"compression,omitempty"`
	ColorDepth     *int   `yaml:"color_depth,omitempty"`
}

// ParticleSystemConfig lists emitters.
type ParticleSystemConfig struct {
	Iterations int             `yaml:"iterations"`
	Emitters   []EmitterConfig `yaml:"emitters"`
}

// EmitterConfig is one emitter surface and its systems.
type EmitterConfig struct {
	Name      string         `yaml:"name"`
	Trainable *bool          `yaml:"trainable,omitempty"`
	Systems   []SystemConfig `yaml:"systems"`
}

// SystemConfig is one particle system. Its fields are defaults for the
// objects it scatters.
type SystemConfig struct {
	Name            string         `yaml:"name"`
	Settings        string         `yaml:"settings,omitempty"`
	Trainable       *bool          `yaml:"trainable,omitempty"`
	Count           []int          `yaml:"count,omitempty"`
	Seed            []int          `yaml:"seed,omitempty"`
	Scale           *float64       `yaml:"scale,omitempty"`
	ScaleRandomness *float64       `yaml:"scale_randomness,omitempty"`
	Objects         []ObjectConfig `yaml:"objects"`
}

// ObjectConfig is one declared object. Particle fields override the
// owning system's.
type ObjectConfig struct {
	Name            string   `yaml:"name"`
	Material        string   `yaml:"material,omitempty"`
	Color           *Color   `yaml:"color,omitempty"`
	Trainable       *bool    `yaml:"trainable,omitempty"`
	Label           string   `yaml:"label,omitempty"`
	LabelIndex      *int     `yaml:"label_index,omitempty"`
	Description     string   `yaml:"description,omitempty"`
	Count           []int    `yaml:"count,omitempty"`
	Seed            []int    `yaml:"seed,omitempty"`
	Scale           *float64 `yaml:"scale,omitempty"`
	ScaleRandomness *float64 `yaml:"scale_randomness,omitempty"`
}

// StaticSystemConfig lists persistent objects.
type StaticSystemConfig struct {
	Iterations int            `yaml:"iterations"`
	Objects    []ObjectConfig `yaml:"objects"`
}

// AnnotateConfig tunes the bounding box pass.
type AnnotateConfig struct {
	Width     *int `yaml:"width,omitempty"`
	Height    *int `yaml:"height,omitempty"`
	MinPixels *int `yaml:"min_pixels,omitempty"`
}

// PaletteConfig bounds shade ramps.
type PaletteConfig struct {
	MaxShades *int `yaml:"max_shades,omitempty"`
}

// LedgerConfig enables the run ledger database.
type LedgerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path,omitempty"`
}

// Color accepts a packed integer (0xRRGGBB) or a hex string.
type Color struct {
	color.RGBA
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (c *Color) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: colour must be a scalar", n.Line)
	}
	if n.Tag == "!!int" {
		var v int64
		if err := n.Decode(&v); err != nil {
			return err
		}
		if v < 0 || v > 0xffffff {
			return fmt.Errorf("line %d: colour %d out of range", n.Line, v)
		}
		c.RGBA = palette.FromPacked(uint32(v))
		return nil
	}
	rgba, err := palette.ParseHex(n.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", n.Line, err)
	}
	c.RGBA = rgba
	return nil
}

// Load reads and validates a configuration file. The file must have a
// .yaml or .yml extension and be under 1MB.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config file must have .yaml or .yml extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates YAML. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// GetSeed returns the configured seed, or 0 when it should be derived.
func (c *Config) GetSeed() uint64 {
	if c.Seed == nil {
		return 0
	}
	return *c.Seed
}

// GetSceneName returns the scene name or "Scene".
func (c *Config) GetSceneName() string {
	if c.Scene.Name == "" {
		return "Scene"
	}
	return c.Scene.Name
}

// GetIterations is the number of top-level iterations: the particle
// system's when present, otherwise the static system's, otherwise 1.
func (c *Config) GetIterations() int {
	if c.ParticleSystem != nil && c.ParticleSystem.Iterations > 0 {
		return c.ParticleSystem.Iterations
	}
	if c.StaticSystem != nil && c.StaticSystem.Iterations > 0 {
		return c.StaticSystem.Iterations
	}
	return 1
}

// GetSaveReal returns save_real or the default true.
func (r RenderConfig) GetSaveReal() bool {
	if r.SaveReal == nil {
		return true
	}
	return *r.SaveReal
}

// GetSaveMask returns save_mask or the default true.
func (r RenderConfig) GetSaveMask() bool {
	if r.SaveMask == nil {
		return true
	}
	return *r.SaveMask
}

// GetScale returns the resolution multiplier or 1.
func (d DimensionsConfig) GetScale() float64 {
	if d.Scale == nil {
		return 1
	}
	return *d.Scale
}

// GetFileFormat returns the output format or PNG.
func (o OutputConfig) GetFileFormat() string {
	if o.FileFormat == "" {
		return "PNG"
	}
	return o.FileFormat
}

// GetColorMode returns the colour mode or RGB.
func (o OutputConfig) GetColorMode() string {
	if o.ColorMode == "" {
		return "RGB"
	}
	return o.ColorMode
}

// GetColorDepth returns the bit depth or 8.
func (o OutputConfig) GetColorDepth() int {
	if o.ColorDepth == nil {
		return 8
	}
	return *o.ColorDepth
}

// GetCompression returns the compression level or 0.
func (o OutputConfig) GetCompression() int {
	if o.Compression == nil {
		return 0
	}
	return *o.Compression
}

// GetRealEngine returns the real-mode engine name or cycles.
func (e EngineConfig) GetRealEngine() string {
	if e.Real == "" {
		return "cycles"
	}
	return strings.ToLower(e.Real)
}

// GetMaskEngine returns the mask-mode engine name or eevee.
func (e EngineConfig) GetMaskEngine() string {
	if e.Mask == "" {
		return "eevee"
	}
	return strings.ToLower(e.Mask)
}

// GetGPU returns the gpu flag or the default true.
func (e EngineConfig) GetGPU() bool {
	if e.GPU == nil {
		return true
	}
	return *e.GPU
}

// GetWidth returns the working width or 320.
func (a AnnotateConfig) GetWidth() int {
	if a.Width == nil {
		return 320
	}
	return *a.Width
}

// GetHeight returns the working height, 0 meaning aspect-preserving.
func (a AnnotateConfig) GetHeight() int {
	if a.Height == nil {
		return 0
	}
	return *a.Height
}

// GetMinPixels returns the detection threshold or 40.
func (a AnnotateConfig) GetMinPixels() int {
	if a.MinPixels == nil {
		return 40
	}
	return *a.MinPixels
}

// GetMaxShades returns the shade cap or palette.MaxShades.
func (p PaletteConfig) GetMaxShades() int {
	if p.MaxShades == nil {
		return palette.MaxShades
	}
	return *p.MaxShades
}

// GetPath returns the ledger path or runs.db.
func (l LedgerConfig) GetPath() string {
	if l.Path == "" {
		return "runs.db"
	}
	return l.Path
}

func boolOr(vals ...*bool) bool {
	for _, v := range vals {
		if v != nil {
			return *v
		}
	}
	return false
}

func floatOr(def float64, vals ...*float64) float64 {
	for _, v := range vals {
		if v != nil {
			return *v
		}
	}
	return def
}

func rangeOr(def []int, vals ...[]int) []int {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return def
}
