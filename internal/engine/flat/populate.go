package flat

import (
	"image/color"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/banshee-data/synthgen/internal/catalog"
	"github.com/banshee-data/synthgen/internal/engine"
)

// Default geometry for objects a configuration references but does not lay
// out.
const (
	DefaultEmitterExtent = 10.0
	DefaultRadius        = 1.0
	staticRing           = 12.0
)

// Material is a named real-render colour.
type Material struct {
	Name  string
	Color color.RGBA
}

// Populate adds objs to s, then creates every emitter, template and static
// object that classes reference but objs did not declare.
func Populate(s *Scene, objs []Object, mats []Material, classes []*catalog.Class) error {
	for _, o := range objs {
		if _, err := s.Add(o); err != nil {
			return err
		}
	}
	for _, m := range mats {
		s.SetMaterial(m.Name, m.Color)
	}

	var statics []*catalog.Class
	for _, cls := range classes {
		if cls.Kind == catalog.KindStatic {
			statics = append(statics, cls)
			continue
		}
		if cls.Emitter != "" {
			if _, ok := s.Object(cls.Emitter); !ok {
				e := DefaultEmitterExtent
				if _, err := s.Add(Object{Name: cls.Emitter, Emitter: true, Visible: true, Extent: [2]float64{e, e}}); err != nil {
					return err
				}
			}
		}
		if _, ok := s.Object(cls.Name); !ok {
			if _, err := s.Add(Object{Name: cls.Name, Radius: DefaultRadius, Visible: true, Slots: slotsFor(cls)}); err != nil {
				return err
			}
		}
	}
	for i, cls := range statics {
		if _, ok := s.Object(cls.Name); ok {
			continue
		}
		a := 2 * math.Pi * float64(i) / float64(len(statics))
		o := Object{
			Name:     cls.Name,
			Radius:   1.5 * DefaultRadius,
			Visible:  true,
			Location: r3.Vec{X: staticRing * math.Cos(a), Y: staticRing * math.Sin(a), Z: 1.5 * DefaultRadius},
			Slots:    slotsFor(cls),
		}
		if _, err := s.Add(o); err != nil {
			return err
		}
	}
	return nil
}

func slotsFor(cls *catalog.Class) []engine.Appearance {
	m := cls.Material
	if m == "" {
		m = cls.Name
	}
	return []engine.Appearance{engine.MaterialAppearance(m)}
}
