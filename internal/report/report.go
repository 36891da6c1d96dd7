// Package report summarizes an annotated dataset: detections per label as an
// echarts bar chart and the distribution of box areas as a histogram.
package report

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/synthgen/internal/annotate"
	"github.com/banshee-data/synthgen/internal/fsutil"
	"github.com/banshee-data/synthgen/internal/monitoring"
)

// Output names under <root>/report.
const (
	Dir         = "report"
	LabelsFile  = "labels.html"
	AreaFile    = "bbox_area.png"
	DefaultBins = 20
)

// ErrNoRecords is returned when there is nothing to report.
var ErrNoRecords = errors.New("report: no annotation records")

// LabelStats describes the detections of one label. Areas are fractions of
// the image.
type LabelStats struct {
	Label      string
	Count      int
	Files      int
	MeanArea   float64
	StdArea    float64
	MedianArea float64
}

// Summary is the dataset-level view.
type Summary struct {
	Images  int
	Records int
	Labels  []LabelStats
}

// Summarize groups records by label, ordered by label.
func Summarize(recs []annotate.Record) Summary {
	areas := make(map[string][]float64)
	files := make(map[string]map[string]struct{})
	all := make(map[string]struct{})
	for _, r := range recs {
		areas[r.Label] = append(areas[r.Label], r.Area())
		if files[r.Label] == nil {
			files[r.Label] = make(map[string]struct{})
		}
		files[r.Label][r.Filename] = struct{}{}
		all[r.Filename] = struct{}{}
	}

	s := Summary{Images: len(all), Records: len(recs)}
	for label, a := range areas {
		slices.Sort(a)
		ls := LabelStats{
			Label:      label,
			Count:      len(a),
			Files:      len(files[label]),
			MeanArea:   stat.Mean(a, nil),
			MedianArea: stat.Quantile(0.5, stat.Empirical, a, nil),
		}
		if len(a) > 1 {
			ls.StdArea = stat.StdDev(a, nil)
		}
		s.Labels = append(s.Labels, ls)
	}
	slices.SortFunc(s.Labels, func(a, b LabelStats) int { return strings.Compare(a.Label, b.Label) })
	return s
}

// LabelChart renders the per-label counts as an HTML page.
func LabelChart(w io.Writer, s Summary) error {
	x := make([]string, 0, len(s.Labels))
	counts := make([]opts.BarData, 0, len(s.Labels))
	files := make([]opts.BarData, 0, len(s.Labels))
	for _, l := range s.Labels {
		x = append(x, l.Label)
		counts = append(counts, opts.BarData{Value: l.Count})
		files = append(files, opts.BarData{Value: l.Files})
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Dataset labels", Width: "100%", Height: "640px"}),
		charts.WithTitleOpts(opts.Title{Title: "Detections per label", Subtitle: fmt.Sprintf("images=%d records=%d", s.Images, s.Records)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	bar.SetXAxis(x).
		AddSeries("detections", counts, charts.WithLabelOpts(opts.Label{Show: opts.Bool(true), Position: "top"})).
		AddSeries("images", files)

	page := components.NewPage()
	page.AddCharts(bar)
	return page.Render(w)
}

// AreaHistogram renders the distribution of box areas as a PNG.
func AreaHistogram(w io.Writer, recs []annotate.Record, bins int) error {
	if len(recs) == 0 {
		return ErrNoRecords
	}
	if bins <= 0 {
		bins = DefaultBins
	}
	vals := make(plotter.Values, len(recs))
	for i, r := range recs {
		vals[i] = r.Area()
	}

	p := plot.New()
	p.Title.Text = "Bounding box area"
	p.X.Label.Text = "area (fraction of image)"
	p.Y.Label.Text = "boxes"
	h, err := plotter.NewHist(vals, bins)
	if err != nil {
		return fmt.Errorf("histogram: %w", err)
	}
	h.LineStyle.Width = vg.Points(0.5)
	p.Add(h)

	wt, err := p.WriterTo(8*vg.Inch, 4*vg.Inch, "png")
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}

// Reporter writes the report files of a dataset.
type Reporter struct {
	rt   *monitoring.Runtime
	fsys fsutil.FileSystem
	Bins int
}

// NewReporter returns a reporter writing through fsys.
func NewReporter(rt *monitoring.Runtime, fsys fsutil.FileSystem) *Reporter {
	if rt == nil {
		rt = monitoring.Nop()
	}
	return &Reporter{rt: rt, fsys: fsys, Bins: DefaultBins}
}

// Run reads root/annotations.csv and writes root/report/labels.html and
// root/report/bbox_area.png.
func (r *Reporter) Run(root string) (Summary, error) {
	recs, err := annotate.Load(r.fsys, root)
	if err != nil {
		return Summary{}, err
	}
	if len(recs) == 0 {
		return Summary{}, ErrNoRecords
	}
	s := Summarize(recs)

	dir := filepath.Join(root, Dir)
	if err := r.fsys.MkdirAll(dir, 0o755); err != nil {
		return s, err
	}
	var buf bytes.Buffer
	if err := LabelChart(&buf, s); err != nil {
		return s, fmt.Errorf("label chart: %w", err)
	}
	if err := r.write(filepath.Join(dir, LabelsFile), buf.Bytes()); err != nil {
		return s, err
	}
	buf.Reset()
	if err := AreaHistogram(&buf, recs, r.Bins); err != nil {
		return s, err
	}
	if err := r.write(filepath.Join(dir, AreaFile), buf.Bytes()); err != nil {
		return s, err
	}
	for _, l := range s.Labels {
		r.rt.Log.Info("label", "label", l.Label, "count", l.Count, "files", l.Files,
			"mean_area", l.MeanArea, "median_area", l.MedianArea)
	}
	return s, nil
}

func (r *Reporter) write(path string, data []byte) error {
	w, err := r.fsys.Create(path)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return w.Close()
}
