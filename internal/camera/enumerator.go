package camera

import "fmt"

// Shot identifies one render pair: a zero-based view index and a one-based
// frame index within that view.
type Shot struct {
	View  int
	Frame int
}

func (s Shot) String() string { return fmt.Sprintf("view %d frame %d", s.View, s.Frame) }

// Enumerator walks views in configuration order and frames 1..F within each.
type Enumerator struct {
	views []View
	view  int
	frame int
}

// NewEnumerator validates the views and returns an enumerator positioned
// before the first shot.
func NewEnumerator(views []View) (*Enumerator, error) {
	if len(views) == 0 {
		return nil, fmt.Errorf("camera: no views configured")
	}
	for i, v := range views {
		if err := v.Validate(); err != nil {
			return nil, fmt.Errorf("view %d: %w", i, err)
		}
	}
	out := make([]View, len(views))
	for i, v := range views {
		out[i] = v.WithDefaults()
	}
	return &Enumerator{views: out}, nil
}

// Next advances to the following shot. It returns false once every view has
// been exhausted.
func (e *Enumerator) Next() (Shot, bool) {
	for e.view < len(e.views) {
		if e.frame < e.views[e.view].Frames {
			e.frame++
			return Shot{View: e.view, Frame: e.frame}, true
		}
		e.view++
		e.frame = 0
	}
	return Shot{}, false
}

// Reset rewinds to the first shot.
func (e *Enumerator) Reset() {
	e.view, e.frame = 0, 0
}

// All lists every shot in order without disturbing the cursor.
func (e *Enumerator) All() []Shot {
	out := make([]Shot, 0, e.Total())
	for vi, v := range e.views {
		for f := 1; f <= v.Frames; f++ {
			out = append(out, Shot{View: vi, Frame: f})
		}
	}
	return out
}

// Total is the sum of frame counts over all views.
func (e *Enumerator) Total() int {
	n := 0
	for _, v := range e.views {
		n += v.Frames
	}
	return n
}

// View returns view i with defaults applied.
func (e *Enumerator) View(i int) View { return e.views[i] }

// Len is the number of views.
func (e *Enumerator) Len() int { return len(e.views) }
