package ledger

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/banshee-data/synthgen/internal/annotate"
)

// ReplaceAnnotations stores the records of one dataset, replacing any
// earlier pass over the same root.
func (s *Store) ReplaceAnnotations(ctx context.Context, outputRoot string, recs []annotate.Record) error {
	root, _ := filepath.Abs(outputRoot)
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM annotations WHERE output_root = ?`, root); err != nil {
		return fmt.Errorf("clear annotations: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO annotations (output_root, filename, color, label, label_index, x1, y1, x2, y2, mat_idx, object_idx)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range recs {
		if _, err := stmt.ExecContext(ctx, root, r.Filename, r.Color, r.Label, r.LabelIndex,
			r.X1, r.Y1, r.X2, r.Y2, r.Shade, r.ClassID); err != nil {
			return fmt.Errorf("insert annotation %s %s: %w", r.Filename, r.Color, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	s.rt.Log.Debug("annotations stored", "root", root, "records", len(recs))
	return nil
}

// LabelCount is the number of detections of one label.
type LabelCount struct {
	Label string
	Count int
	Files int
}

// LabelCounts aggregates the stored annotations of a dataset by label.
func (s *Store) LabelCounts(ctx context.Context, outputRoot string) ([]LabelCount, error) {
	root, _ := filepath.Abs(outputRoot)
	rows, err := s.db.QueryContext(ctx, `
		SELECT label, COUNT(*), COUNT(DISTINCT filename) FROM annotations
		WHERE output_root = ? GROUP BY label ORDER BY label`, root)
	if err != nil {
		return nil, fmt.Errorf("label counts: %w", err)
	}
	defer rows.Close()
	var out []LabelCount
	for rows.Next() {
		var lc LabelCount
		if err := rows.Scan(&lc.Label, &lc.Count, &lc.Files); err != nil {
			return nil, err
		}
		out = append(out, lc)
	}
	return out, rows.Err()
}
