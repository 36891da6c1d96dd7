package report

import (
	"bytes"
	"errors"
	"image/png"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/synthgen/internal/annotate"
	"github.com/banshee-data/synthgen/internal/bbox"
	"github.com/banshee-data/synthgen/internal/fsutil"
	"github.com/banshee-data/synthgen/internal/monitoring"
)

func rec(file, label string, w, h float64) annotate.Record {
	return annotate.Record{NormLabelColor: bbox.NewNorm(0.1, 0.1, 0.1+w, 0.1+h).Labeled(label, 0, file).Colored("0x80ff00")}
}

func sample() []annotate.Record {
	return []annotate.Record{
		rec("a.png", "boat", 0.1, 0.1),
		rec("a.png", "boat", 0.2, 0.1),
		rec("b.png", "boat", 0.3, 0.1),
		rec("b.png", "pier", 0.5, 0.4),
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize(sample())
	assert.Equal(t, 2, s.Images)
	assert.Equal(t, 4, s.Records)
	require.Len(t, s.Labels, 2)

	boat := s.Labels[0]
	assert.Equal(t, "boat", boat.Label)
	assert.Equal(t, 3, boat.Count)
	assert.Equal(t, 2, boat.Files)
	assert.InDelta(t, 0.02, boat.MeanArea, 1e-9)
	assert.InDelta(t, 0.02, boat.MedianArea, 1e-9)
	assert.InDelta(t, 0.01, boat.StdArea, 1e-9)

	pier := s.Labels[1]
	assert.Equal(t, 1, pier.Count)
	assert.InDelta(t, 0.2, pier.MeanArea, 1e-9)
	assert.Zero(t, pier.StdArea)

	assert.Empty(t, Summarize(nil).Labels)
}

func TestLabelChart(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, LabelChart(&buf, Summarize(sample())))
	html := buf.String()
	assert.True(t, strings.Contains(html, "<html"), "renders a page")
	assert.Contains(t, html, "Detections per label")
	assert.Contains(t, html, "boat")
	assert.Contains(t, html, "pier")
}

func TestAreaHistogram(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, AreaHistogram(&buf, sample(), 4))
	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Greater(t, img.Bounds().Dx(), 0)

	assert.ErrorIs(t, AreaHistogram(&buf, nil, 4), ErrNoRecords)
}

func TestReporterRun(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	var csv bytes.Buffer
	require.NoError(t, annotate.WriteCSV(&csv, sample()))
	mfs.WriteFile(filepath.Join("/data", annotate.AnnotationsFile), csv.Bytes())

	s, err := NewReporter(monitoring.Nop(), mfs).Run("/data")
	require.NoError(t, err)
	assert.Equal(t, 4, s.Records)
	assert.True(t, mfs.Exists("/data/report/labels.html"))
	assert.True(t, mfs.Exists("/data/report/bbox_area.png"))
}

func TestReporterEmpty(t *testing.T) {
	mfs := fsutil.NewMemoryFileSystem()
	var csv bytes.Buffer
	require.NoError(t, annotate.WriteCSV(&csv, nil))
	mfs.WriteFile("/data/annotations.csv", csv.Bytes())

	_, err := NewReporter(nil, mfs).Run("/data")
	assert.True(t, errors.Is(err, ErrNoRecords))

	_, err = NewReporter(nil, mfs).Run("/missing")
	assert.Error(t, err)
}
