package config

import (
	"fmt"
	"strings"

	"github.com/banshee-data/synthgen/internal/imageio"
	"github.com/banshee-data/synthgen/internal/palette"
	"github.com/banshee-data/synthgen/internal/security"
)

// Validate checks everything that can be checked without a scene. All
// problems are reported together, wrapped in ErrInvalid.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if len(c.Camera.Views) == 0 {
		add("camera.views: at least one view is required")
	}
	for i, v := range c.Camera.Views {
		if v.Frames < 1 {
			add("camera.views[%d].frames must be >= 1, got %d", i, v.Frames)
		}
		if v.Zoom != nil && *v.Zoom <= 0 {
			add("camera.views[%d].zoom must be positive", i)
		}
		if v.SensorWidth != nil && *v.SensorWidth <= 0 {
			add("camera.views[%d].sensor_width must be positive", i)
		}
		for name, vec := range map[string][]float64{
			"target_xyz": v.TargetXYZ, "jitter_location": v.JitterLocation,
			"jitter_rotation": v.JitterRotation, "jitter_target": v.JitterTarget,
		} {
			if vec != nil && len(vec) != 3 {
				add("camera.views[%d].%s must have 3 values, got %d", i, name, len(vec))
			}
		}
	}

	r := c.Render
	if r.Dimensions.Width <= 0 || r.Dimensions.Height <= 0 {
		add("render.dimensions: width and height must be positive, got %dx%d", r.Dimensions.Width, r.Dimensions.Height)
	}
	if r.Dimensions.GetScale() <= 0 {
		add("render.dimensions.scale must be positive")
	}
	format, err := imageio.Normalize(r.Output.GetFileFormat())
	if err != nil {
		add("render.output.file_format: %v", err)
	} else if r.GetSaveMask() && !imageio.Lossless(format) {
		add("render.output.file_format %s is lossy and would corrupt mask colours", r.Output.FileFormat)
	}
	if d := r.Output.GetColorDepth(); d != 8 && d != 16 {
		add("render.output.color_depth must be 8 or 16, got %d", d)
	}
	switch cm := strings.ToUpper(r.Output.GetColorMode()); {
	case cm != "RGB" && cm != "RGBA" && cm != "BW":
		add("render.output.color_mode must be RGB, RGBA or BW, got %q", r.Output.ColorMode)
	case cm == "BW" && r.GetSaveMask():
		add("render.output.color_mode BW would merge mask colours")
	}
	if cp := r.Output.GetCompression(); cp < 0 || cp > 100 {
		add("render.output.compression must be 0-100, got %d", cp)
	}
	if !security.ValidPrefix(r.Output.FilenamePrefix) {
		add("render.output.filename_prefix %q must be a plain file name (try %q)",
			r.Output.FilenamePrefix, security.SanitizeFilename(r.Output.FilenamePrefix))
	}
	if !r.GetSaveReal() && !r.GetSaveMask() {
		add("render: at least one of save_real and save_mask must be set")
	}

	maxShades := c.Palette.GetMaxShades()
	if maxShades < 1 || maxShades > palette.MaxShades {
		add("palette.max_shades must be 1-%d, got %d", palette.MaxShades, maxShades)
		maxShades = palette.MaxShades
	}

	names := make(map[string]string)
	checkName := func(where, name string) {
		if name == "" {
			add("%s: name is required", where)
			return
		}
		if prev, dup := names[name]; dup {
			add("%s: object %q already declared at %s", where, name, prev)
			return
		}
		names[name] = where
	}
	checkClass := func(where string, o ObjectConfig, trainable bool) {
		if trainable && o.Label == "" {
			add("%s: trainable object %q has no label", where, o.Name)
		}
		if trainable && o.LabelIndex == nil {
			add("%s: trainable object %q has no label_index", where, o.Name)
		}
	}
	checkRange := func(where, field string, v []int) {
		if v == nil {
			return
		}
		if len(v) != 2 {
			add("%s.%s must be [min, max], got %v", where, field, v)
			return
		}
		if v[0] < 0 || v[0] > v[1] {
			add("%s.%s: invalid range [%d, %d]", where, field, v[0], v[1])
		}
	}

	if ps := c.ParticleSystem; ps != nil {
		if ps.Iterations < 0 {
			add("particle_system.iterations must be >= 0")
		}
		for ei, em := range ps.Emitters {
			ew := fmt.Sprintf("particle_system.emitters[%d]", ei)
			if em.Name == "" {
				add("%s: name is required", ew)
			}
			for si, sys := range em.Systems {
				sw := fmt.Sprintf("%s.systems[%d]", ew, si)
				checkRange(sw, "count", sys.Count)
				checkRange(sw, "seed", sys.Seed)
				for oi, o := range sys.Objects {
					ow := fmt.Sprintf("%s.objects[%d]", sw, oi)
					checkName(ow, o.Name)
					checkRange(ow, "count", o.Count)
					checkRange(ow, "seed", o.Seed)
					trainable := boolOr(o.Trainable, sys.Trainable, em.Trainable)
					checkClass(ow, o, trainable)
					count := rangeOr([]int{1, 1}, o.Count, sys.Count)
					if trainable && len(count) == 2 && count[1] > maxShades {
						add("%s: count max %d exceeds max_shades %d", ow, count[1], maxShades)
					}
				}
			}
		}
	}
	if ss := c.StaticSystem; ss != nil {
		if ss.Iterations < 0 {
			add("static_system.iterations must be >= 0")
		}
		for oi, o := range ss.Objects {
			ow := fmt.Sprintf("static_system.objects[%d]", oi)
			checkName(ow, o.Name)
			checkClass(ow, o, boolOr(o.Trainable))
		}
	}

	if a := c.Annotate; a.GetWidth() <= 0 || a.GetHeight() < 0 || a.GetMinPixels() <= 0 {
		add("annotate: width and min_pixels must be positive and height non-negative")
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}
	return nil
}
