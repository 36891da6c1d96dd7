package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/banshee-data/synthgen/internal/fsutil"
)

// MetadataFile is the catalogue file name under the output root.
const MetadataFile = "metadata.csv"

var metadataHeader = []string{
	"color_r", "color_g", "color_b", "description", "label", "label_index", "mat_idx", "object_idx",
}

// WriteCSV writes one row per entry in insertion order.
func (c *Catalog) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(metadataHeader); err != nil {
		return err
	}
	for _, e := range c.entries {
		row := []string{
			strconv.Itoa(int(e.Color.R)),
			strconv.Itoa(int(e.Color.G)),
			strconv.Itoa(int(e.Color.B)),
			e.Description,
			e.Label,
			strconv.Itoa(e.LabelIndex),
			strconv.Itoa(e.Shade),
			strconv.Itoa(e.ClassID),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV parses a catalogue written by WriteCSV. Columns are located by
// header name so extra columns are tolerated.
func ReadCSV(r io.Reader) (*Catalog, error) {
	cr := csv.NewReader(r)
	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("read metadata: empty file")
		}
		return nil, fmt.Errorf("read metadata header: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[h] = i
	}
	for _, h := range metadataHeader {
		if _, ok := col[h]; !ok {
			return nil, fmt.Errorf("read metadata: missing column %q", h)
		}
	}

	cat := New()
	line := 1
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("read metadata line %d: %w", line, err)
		}
		ints := make(map[string]int, 6)
		for _, h := range []string{"color_r", "color_g", "color_b", "label_index", "mat_idx", "object_idx"} {
			v, err := strconv.Atoi(rec[col[h]])
			if err != nil {
				return nil, fmt.Errorf("read metadata line %d: %s: %w", line, h, err)
			}
			ints[h] = v
		}
		for _, h := range []string{"color_r", "color_g", "color_b"} {
			if ints[h] < 0 || ints[h] > 255 {
				return nil, fmt.Errorf("read metadata line %d: %s out of range: %d", line, h, ints[h])
			}
		}
		e := Entry{
			Description: rec[col["description"]],
			Label:       rec[col["label"]],
			LabelIndex:  ints["label_index"],
			Shade:       ints["mat_idx"],
			ClassID:     ints["object_idx"],
		}
		e.Color.R, e.Color.G, e.Color.B = uint8(ints["color_r"]), uint8(ints["color_g"]), uint8(ints["color_b"])
		if err := cat.Add(e); err != nil {
			return nil, fmt.Errorf("read metadata line %d: %w", line, err)
		}
	}
	return cat, nil
}

// Save writes the catalogue to path.
func (c *Catalog) Save(fsys fsutil.FileSystem, path string) error {
	f, err := fsys.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := c.WriteCSV(f); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// Load reads a catalogue from path.
func Load(fsys fsutil.FileSystem, path string) (*Catalog, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	return ReadCSV(f)
}
