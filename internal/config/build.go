package config

import (
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/synthgen/internal/annotate"
	"github.com/banshee-data/synthgen/internal/camera"
	"github.com/banshee-data/synthgen/internal/catalog"
	"github.com/banshee-data/synthgen/internal/engine"
	"github.com/banshee-data/synthgen/internal/imageio"
)

// Classes flattens the declared objects in order: particle emitters, their
// systems and objects, then static objects. The position in that order is
// the class ID.
func (c *Config) Classes() []*catalog.Class {
	var out []*catalog.Class
	if ps := c.ParticleSystem; ps != nil {
		for _, em := range ps.Emitters {
			for _, sys := range em.Systems {
				for _, o := range sys.Objects {
					cls := baseClass(len(out), o)
					cls.Kind = catalog.KindParticle
					cls.Trainable = boolOr(o.Trainable, sys.Trainable, em.Trainable)
					cls.Emitter = em.Name
					cls.System = sys.Name
					cls.Count = toRange(rangeOr([]int{1, 1}, o.Count, sys.Count))
					cls.Seed = toRange(rangeOr([]int{0, 0}, o.Seed, sys.Seed))
					cls.Scale = floatOr(1, o.Scale, sys.Scale)
					cls.ScaleRandomness = floatOr(0, o.ScaleRandomness, sys.ScaleRandomness)
					out = append(out, cls)
				}
			}
		}
	}
	if ss := c.StaticSystem; ss != nil {
		for _, o := range ss.Objects {
			cls := baseClass(len(out), o)
			cls.Kind = catalog.KindStatic
			cls.Trainable = boolOr(o.Trainable)
			out = append(out, cls)
		}
	}
	return out
}

func baseClass(id int, o ObjectConfig) *catalog.Class {
	cls := &catalog.Class{
		ID:          id,
		Name:        o.Name,
		Label:       o.Label,
		Description: o.Description,
		Material:    o.Material,
		MaskColor:   catalog.Background,
	}
	if o.LabelIndex != nil {
		li := *o.LabelIndex
		cls.LabelIndex = &li
	}
	if cls.Description == "" {
		cls.Description = "Default description"
	}
	if o.Color != nil {
		cls.MaskColor = o.Color.RGBA
		cls.MaskColor.A = 0xff
	}
	return cls
}

func toRange(v []int) catalog.Range {
	if len(v) != 2 {
		return catalog.Range{}
	}
	return catalog.Range{Min: v[0], Max: v[1]}
}

func toVec(v []float64) r3.Vec {
	if len(v) != 3 {
		return r3.Vec{}
	}
	return r3.Vec{X: v[0], Y: v[1], Z: v[2]}
}

// Views converts the configured orbits.
func (c *Config) Views() []camera.View {
	out := make([]camera.View, 0, len(c.Camera.Views))
	for _, v := range c.Camera.Views {
		out = append(out, camera.View{
			Height:      v.Height,
			RadiusX:     v.XRadius,
			RadiusY:     v.YRadius,
			Frames:      v.Frames,
			Target:      camera.Target{Point: toVec(v.TargetXYZ), Name: v.TargetName},
			Zoom:        floatOr(camera.DefaultZoom, v.Zoom),
			SensorWidth: floatOr(camera.DefaultSensorWidth, v.SensorWidth),
			Jitter: camera.Jitter{
				Location: toVec(v.JitterLocation),
				Rotation: toVec(v.JitterRotation),
				Target:   toVec(v.JitterTarget),
			},
		})
	}
	return out
}

// Profile returns the render settings for one mode.
func (c *Config) Profile(mode engine.Mode) engine.Profile {
	r := c.Render
	format, _ := imageio.Normalize(r.Output.GetFileFormat())
	p := engine.Profile{
		Mode:        mode,
		Engine:      r.Engine.GetRealEngine(),
		GPU:         r.Engine.GetGPU(),
		Width:       r.Dimensions.Width,
		Height:      r.Dimensions.Height,
		Scale:       r.Dimensions.GetScale(),
		Format:      format,
		ColorMode:   strings.ToUpper(r.Output.GetColorMode()),
		ColorDepth:  r.Output.GetColorDepth(),
		Compression: r.Output.GetCompression(),
	}
	if mode == engine.ModeMask {
		p.Engine = r.Engine.GetMaskEngine()
		// Mask colours are 8-bit identities.
		p.ColorDepth = 8
	}
	return p
}

// AnnotateOptions returns the extractor settings.
func (c *Config) AnnotateOptions() annotate.Options {
	return annotate.Options{
		Width:     c.Annotate.GetWidth(),
		Height:    c.Annotate.GetHeight(),
		MinPixels: c.Annotate.GetMinPixels(),
	}
}
