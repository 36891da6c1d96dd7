package config

import (
	"fmt"

	"github.com/banshee-data/synthgen/internal/engine"
	"github.com/banshee-data/synthgen/internal/engine/flat"
)

// FlatScene builds the software engine's scene: the objects laid out under
// scene.objects, plus default geometry for anything the classes reference.
func (c *Config) FlatScene() (*flat.Scene, error) {
	var (
		objs []flat.Object
		mats []flat.Material
	)
	for i, so := range c.Scene.Objects {
		if so.Name == "" {
			return nil, fmt.Errorf("%w: scene.objects[%d]: name is required", ErrInvalid, i)
		}
		o := flat.Object{
			Name:     so.Name,
			Location: toVec(so.Location),
			Radius:   floatOr(flat.DefaultRadius, so.Radius),
			Visible:  true,
			Emitter:  so.Emitter,
		}
		if so.Emitter {
			o.Radius = 0
			o.Extent = [2]float64{flat.DefaultEmitterExtent, flat.DefaultEmitterExtent}
			if len(so.Extent) == 2 {
				o.Extent = [2]float64{so.Extent[0], so.Extent[1]}
			}
		}
		for _, m := range so.Materials {
			o.Slots = append(o.Slots, engine.MaterialAppearance(m))
		}
		if so.Color != nil {
			name := so.Name
			if len(so.Materials) > 0 {
				name = so.Materials[0]
			} else {
				o.Slots = append(o.Slots, engine.MaterialAppearance(name))
			}
			mats = append(mats, flat.Material{Name: name, Color: so.Color.RGBA})
		}
		objs = append(objs, o)
	}
	s := flat.NewScene()
	if err := flat.Populate(s, objs, mats, c.Classes()); err != nil {
		return nil, err
	}
	return s, nil
}
