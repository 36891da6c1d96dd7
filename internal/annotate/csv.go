package annotate

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/banshee-data/synthgen/internal/bbox"
)

// AnnotationsFile is the output file name under the dataset root.
const AnnotationsFile = "annotations.csv"

var header = []string{
	"color", "label", "label_index", "filename", "x1", "y1", "x2", "y2", "mat_idx", "object_idx",
}

func ftoa(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

// WriteCSV writes records with a header row.
func WriteCSV(w io.Writer, recs []Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, r := range recs {
		row := []string{
			r.Color, r.Label, strconv.Itoa(r.LabelIndex), r.Filename,
			ftoa(r.X1), ftoa(r.Y1), ftoa(r.X2), ftoa(r.Y2),
			strconv.Itoa(r.Shade), strconv.Itoa(r.ClassID),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses a file written by WriteCSV. Columns are matched by name.
func ReadCSV(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	head, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read annotations: empty file")
		}
		return nil, fmt.Errorf("read annotations header: %w", err)
	}
	col := make(map[string]int, len(head))
	for i, h := range head {
		col[h] = i
	}
	for _, h := range header {
		if _, ok := col[h]; !ok {
			return nil, fmt.Errorf("read annotations: missing column %q", h)
		}
	}

	var out []Record
	for line := 2; ; line++ {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read annotations line %d: %w", line, err)
		}
		var (
			ints   [3]int
			floats [4]float64
		)
		for i, name := range []string{"label_index", "mat_idx", "object_idx"} {
			if ints[i], err = strconv.Atoi(row[col[name]]); err != nil {
				return nil, fmt.Errorf("read annotations line %d: %s: %w", line, name, err)
			}
		}
		for i, name := range []string{"x1", "y1", "x2", "y2"} {
			if floats[i], err = strconv.ParseFloat(row[col[name]], 64); err != nil {
				return nil, fmt.Errorf("read annotations line %d: %s: %w", line, name, err)
			}
		}
		box := bbox.Norm{X1: floats[0], Y1: floats[1], X2: floats[2], Y2: floats[3]}
		out = append(out, Record{
			NormLabelColor: box.Labeled(row[col["label"]], ints[0], row[col["filename"]]).Colored(row[col["color"]]),
			Shade:          ints[1],
			ClassID:        ints[2],
		})
	}
}
