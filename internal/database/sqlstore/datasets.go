package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/kozaktomas/photo-curator/internal/database"
)

// splitInsertBatch bounds the rows of one multi-row INSERT into dataset_photos.
const splitInsertBatch = 200

// ReserveDataset persists a bare record holding only the id and creation time.
func (s *Store) ReserveDataset(ctx context.Context, id string, createdAt time.Time) error {
	_, err := s.exec(ctx, s.db, `INSERT INTO datasets (id, created_at) VALUES (?, ?)`, id, formatTime(createdAt))
	if err != nil {
		return fmt.Errorf("reserve dataset %s: %w", id, err)
	}
	return nil
}

// FillDataset stores name, classes and the three split lists onto a reserved
// record in one transaction. A photo listed in two splits violates the
// primary key and fails the whole fill.
func (s *Store) FillDataset(ctx context.Context, d *database.Dataset) error {
	classes, err := json.Marshal(nonNil(d.Classes))
	if err != nil {
		return fmt.Errorf("encode classes: %w", err)
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := s.exec(ctx, tx, `UPDATE datasets SET name = ?, classes = ? WHERE id = ? AND classes IS NULL`,
			d.Name, string(classes), d.ID)
		if err != nil {
			if s.dialect.isUniqueViolation(err) {
				return fmt.Errorf("dataset %q: %w", d.Name, database.ErrNameConflict)
			}
			return fmt.Errorf("fill dataset %s: %w", d.ID, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("fill dataset %s: %w", d.ID, err)
		}
		if n == 0 {
			var exists int
			err := s.queryRow(ctx, tx, `SELECT COUNT(*) FROM datasets WHERE id = ?`, d.ID).Scan(&exists)
			if err != nil {
				return fmt.Errorf("fill dataset %s: %w", d.ID, err)
			}
			if exists == 0 {
				return fmt.Errorf("dataset %s: %w", d.ID, database.ErrNotFound)
			}
			return fmt.Errorf("dataset %s is already filled", d.ID)
		}

		for _, split := range database.Splits {
			if err := s.insertSplit(ctx, tx, d.ID, split, d.IDs(split)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) insertSplit(ctx context.Context, tx *sql.Tx, datasetID string, split database.Split, ids []string) error {
	for start := 0; start < len(ids); start += splitInsertBatch {
		batch := ids[start:min(start+splitInsertBatch, len(ids))]
		values := make([]string, len(batch))
		args := make([]any, 0, 4*len(batch))
		for i, photoID := range batch {
			values[i] = "(?, ?, ?, ?)"
			args = append(args, datasetID, photoID, string(split), start+i)
		}
		_, err := s.exec(ctx, tx,
			`INSERT INTO dataset_photos (dataset_id, photo_id, split_name, ordinal) VALUES `+strings.Join(values, ", "),
			args...)
		if err != nil {
			return fmt.Errorf("insert %s split of dataset %s: %w", split, datasetID, err)
		}
	}
	return nil
}

// GetDataset returns the record with the given id, complete or not.
func (s *Store) GetDataset(ctx context.Context, id string) (*database.Dataset, error) {
	var (
		d         database.Dataset
		name      sql.NullString
		classes   sql.NullString
		createdAt string
	)
	err := s.queryRow(ctx, s.db, `SELECT id, name, classes, created_at FROM datasets WHERE id = ?`, id).
		Scan(&d.ID, &name, &classes, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("dataset %s: %w", id, database.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get dataset %s: %w", id, err)
	}

	d.Name = name.String
	if d.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if !classes.Valid {
		return &d, nil
	}
	if err := json.Unmarshal([]byte(classes.String), &d.Classes); err != nil {
		return nil, fmt.Errorf("decode classes of dataset %s: %w", id, err)
	}
	if d.Classes == nil {
		d.Classes = []string{}
	}

	rows, err := s.query(ctx, s.db,
		`SELECT photo_id, split_name FROM dataset_photos WHERE dataset_id = ? ORDER BY split_name, ordinal`, id)
	if err != nil {
		return nil, fmt.Errorf("query splits of dataset %s: %w", id, err)
	}
	defer rows.Close()

	d.Train, d.Val, d.Test = []string{}, []string{}, []string{}
	for rows.Next() {
		var photoID, splitName string
		if err := rows.Scan(&photoID, &splitName); err != nil {
			return nil, fmt.Errorf("scan split row: %w", err)
		}
		split, err := database.ParseSplit(splitName)
		if err != nil {
			return nil, fmt.Errorf("dataset %s: %w", id, err)
		}
		d.SetIDs(split, append(d.IDs(split), photoID))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate splits of dataset %s: %w", id, err)
	}
	return &d, nil
}

// GetDatasetByName returns the complete dataset with the given name.
func (s *Store) GetDatasetByName(ctx context.Context, name string) (*database.Dataset, error) {
	var id string
	err := s.queryRow(ctx, s.db, `SELECT id FROM datasets WHERE name = ? AND classes IS NOT NULL`, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("dataset %q: %w", name, database.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get dataset %q: %w", name, err)
	}
	return s.GetDataset(ctx, id)
}

// CountDatasetsByName returns how many complete datasets carry the name.
func (s *Store) CountDatasetsByName(ctx context.Context, name string) (int, error) {
	var count int
	err := s.queryRow(ctx, s.db, `SELECT COUNT(*) FROM datasets WHERE name = ? AND classes IS NOT NULL`, name).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count datasets named %q: %w", name, err)
	}
	return count, nil
}

// ListDatasetNames returns complete dataset names sorted bytewise, independent
// of the backend collation.
func (s *Store) ListDatasetNames(ctx context.Context) ([]string, error) {
	rows, err := s.query(ctx, s.db, `SELECT name FROM datasets WHERE classes IS NOT NULL`)
	if err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan dataset name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dataset names: %w", err)
	}
	slices.Sort(names)
	return names, nil
}

// RemovePhotoFromSplit deletes one membership row and reports whether it existed.
func (s *Store) RemovePhotoFromSplit(ctx context.Context, datasetID, photoID string, split database.Split) (bool, error) {
	res, err := s.exec(ctx, s.db, `DELETE FROM dataset_photos WHERE dataset_id = ? AND photo_id = ? AND split_name = ?`,
		datasetID, photoID, string(split))
	if err != nil {
		return false, fmt.Errorf("remove photo %s from %s: %w", photoID, split, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove photo %s from %s: %w", photoID, split, err)
	}
	return n > 0, nil
}

// DeleteIncompleteDatasets removes reserved records never filled before the cutoff.
func (s *Store) DeleteIncompleteDatasets(ctx context.Context, before time.Time) (int, error) {
	res, err := s.exec(ctx, s.db, `DELETE FROM datasets WHERE classes IS NULL AND created_at < ?`, formatTime(before))
	if err != nil {
		return 0, fmt.Errorf("delete incomplete datasets: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete incomplete datasets: %w", err)
	}
	if n > 0 {
		s.logger.Info("deleted incomplete datasets", "count", n, "before", before.UTC().Format(time.RFC3339))
	}
	return int(n), nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
