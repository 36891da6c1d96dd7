package catalog

import (
	"bytes"
	"image/color"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/synthgen/internal/fsutil"
	"github.com/banshee-data/synthgen/internal/palette"
)

func intp(v int) *int { return &v }

func testClasses() []*Class {
	return []*Class{
		{ID: 0, Name: "boat", Label: "boat", LabelIndex: intp(0), Trainable: true, Kind: KindParticle, Count: Range{1, 1}},
		{ID: 1, Name: "buoy", Label: "buoy", LabelIndex: intp(1), Trainable: true, Kind: KindParticle, Count: Range{2, 3}},
		{ID: 2, Name: "rock", Kind: KindParticle, Count: Range{0, 5}},
		{ID: 3, Name: "pier", Label: "pier", LabelIndex: intp(2), Trainable: true, Kind: KindStatic},
	}
}

func TestBuild(t *testing.T) {
	t.Parallel()

	cat, err := Build(testClasses(), 0)
	require.NoError(t, err)
	// boat 1 + buoy 3 + pier 1; rock is not trainable.
	require.Equal(t, 5, cat.Len())

	seen := map[color.RGBA]bool{}
	for _, e := range cat.Entries() {
		assert.False(t, seen[e.Color], "duplicate %v", e.Color)
		assert.NotEqual(t, Background, e.Color)
		seen[e.Color] = true
	}

	buoys := cat.ClassEntries(1)
	require.Len(t, buoys, 3)
	for j, e := range buoys {
		assert.Equal(t, j, e.Shade)
		assert.Equal(t, "buoy", e.Label)
		assert.Equal(t, 1, e.LabelIndex)
		got, ok := cat.Color(1, j)
		require.True(t, ok)
		assert.Equal(t, e.Color, got)
	}
	_, ok := cat.Color(1, 3)
	assert.False(t, ok)
	_, ok = cat.Color(2, 0)
	assert.False(t, ok)

	e, ok := cat.Lookup(buoys[2].Color)
	require.True(t, ok)
	assert.Equal(t, 2, e.Shade)

	// Hues are spread over every trainable class, not per emitter.
	hues, err := palette.ClassColors(3)
	require.NoError(t, err)
	assert.Equal(t, hues[0], cat.ClassEntries(0)[0].Color)
	assert.Equal(t, hues[1], cat.ClassEntries(1)[0].Color)
	assert.Equal(t, hues[2], cat.ClassEntries(3)[0].Color)
}

func TestBuildDeterministic(t *testing.T) {
	a, err := Build(testClasses(), 0)
	require.NoError(t, err)
	b, err := Build(testClasses(), 0)
	require.NoError(t, err)
	if diff := cmp.Diff(a.Entries(), b.Entries()); diff != "" {
		t.Errorf("catalogues differ (-a +b):\n%s", diff)
	}
}

func TestBuildErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func([]*Class)
		maxSh   int
		wantErr error
	}{
		{"missing label index", func(c []*Class) { c[0].LabelIndex = nil }, 0, ErrMissingLabelIndex},
		{"missing label", func(c []*Class) { c[3].Label = "" }, 0, ErrMissingLabel},
		{"too many shades", func(c []*Class) { c[1].Count = Range{1, 10} }, 5, palette.ErrTooManyShades},
		{"fixed colour collides", func(c []*Class) {
			hues, _ := palette.ClassColors(3)
			c[2].MaskColor = hues[0]
		}, 0, ErrColorCollision},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cls := testClasses()
			tt.mutate(cls)
			_, err := Build(cls, tt.maxSh)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestBuildLowValueCollision(t *testing.T) {
	// Two hues at very low value quantize to black-adjacent bytes; with a
	// full 255-step ramp the darkest shades of neighbouring hues meet.
	var cls []*Class
	for i := 0; i < 40; i++ {
		cls = append(cls, &Class{
			ID: i, Name: "c", Label: "c", LabelIndex: intp(i), Trainable: true,
			Kind: KindParticle, Count: Range{1, palette.MaxShades},
		})
	}
	_, err := Build(cls, 0)
	assert.ErrorIs(t, err, ErrColorCollision)
}

func TestAddRejectsBackgroundAndDuplicates(t *testing.T) {
	cat := New()
	require.NoError(t, cat.Add(Entry{Color: color.RGBA{R: 1}, ClassID: 0}))
	assert.ErrorIs(t, cat.Add(Entry{Color: color.RGBA{R: 1}, ClassID: 1}), ErrColorCollision)
	assert.ErrorIs(t, cat.Add(Entry{Color: color.RGBA{}}), ErrColorCollision)
	assert.Equal(t, 1, cat.Len())
}

func TestMetadataRoundTrip(t *testing.T) {
	t.Parallel()

	cat, err := Build(testClasses(), 0)
	require.NoError(t, err)

	mfs := fsutil.NewMemoryFileSystem()
	require.NoError(t, mfs.MkdirAll("/out", 0o755))
	require.NoError(t, cat.Save(mfs, "/out/"+MetadataFile))

	data, err := mfs.ReadFile("/out/" + MetadataFile)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, cat.Len()+1)
	assert.Equal(t, "color_r,color_g,color_b,description,label,label_index,mat_idx,object_idx", lines[0])

	back, err := Load(mfs, "/out/"+MetadataFile)
	require.NoError(t, err)
	if diff := cmp.Diff(cat.Entries(), back.Entries()); diff != "" {
		t.Errorf("metadata round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestReadCSVErrors(t *testing.T) {
	tests := map[string]string{
		"empty":          "",
		"missing column": "color_r,color_g,color_b,label\n",
		"bad int":        "color_r,color_g,color_b,description,label,label_index,mat_idx,object_idx\nx,0,0,d,l,0,0,0\n",
		"out of range":   "color_r,color_g,color_b,description,label,label_index,mat_idx,object_idx\n300,0,0,d,l,0,0,0\n",
		"duplicate":      "color_r,color_g,color_b,description,label,label_index,mat_idx,object_idx\n1,0,0,d,l,0,0,0\n1,0,0,d,l,0,1,0\n",
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ReadCSV(bytes.NewBufferString(input))
			assert.Error(t, err)
		})
	}
}

func TestReadCSVExtraColumns(t *testing.T) {
	in := "object_idx,extra,color_r,color_g,color_b,description,label,label_index,mat_idx\n4,x,0,255,255,desc,buoy,1,2\n"
	cat, err := ReadCSV(strings.NewReader(in))
	require.NoError(t, err)
	e, ok := cat.Lookup(color.RGBA{G: 255, B: 255})
	require.True(t, ok)
	assert.Equal(t, Entry{Color: color.RGBA{G: 255, B: 255, A: 255}, Label: "buoy", LabelIndex: 1, ClassID: 4, Shade: 2, Description: "desc"}, e)
}
