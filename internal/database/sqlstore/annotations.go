package sqlstore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kozaktomas/photo-curator/internal/database"
)

// SaveAnnotation inserts an annotation, assigning id and creation time when unset.
func (s *Store) SaveAnnotation(ctx context.Context, a *database.Annotation) error {
	if a.ID == "" {
		a.ID = database.NewID()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now().UTC()
	}
	classes, err := json.Marshal(nonNil(a.Classes))
	if err != nil {
		return fmt.Errorf("encode annotation classes: %w", err)
	}
	lines, err := json.Marshal(nonNil(a.Lines))
	if err != nil {
		return fmt.Errorf("encode annotation lines: %w", err)
	}

	_, err = s.exec(ctx, s.db,
		`INSERT INTO annotations (id, photo_id, classes, line_data, created_at) VALUES (?, ?, ?, ?, ?)`,
		a.ID, a.PhotoID, string(classes), string(lines), formatTime(a.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert annotation for photo %s: %w", a.PhotoID, err)
	}
	return nil
}

// AnnotationsForPhoto returns the annotations of a photo in insertion order.
func (s *Store) AnnotationsForPhoto(ctx context.Context, photoID string) ([]database.Annotation, error) {
	rows, err := s.query(ctx, s.db,
		`SELECT id, photo_id, classes, line_data, created_at FROM annotations WHERE photo_id = ? ORDER BY seq`, photoID)
	if err != nil {
		return nil, fmt.Errorf("query annotations of photo %s: %w", photoID, err)
	}
	defer rows.Close()

	var annotations []database.Annotation
	for rows.Next() {
		var (
			a                         database.Annotation
			classes, lines, createdAt string
		)
		if err := rows.Scan(&a.ID, &a.PhotoID, &classes, &lines, &createdAt); err != nil {
			return nil, fmt.Errorf("scan annotation: %w", err)
		}
		if err := json.Unmarshal([]byte(classes), &a.Classes); err != nil {
			return nil, fmt.Errorf("decode classes of annotation %s: %w", a.ID, err)
		}
		if err := json.Unmarshal([]byte(lines), &a.Lines); err != nil {
			return nil, fmt.Errorf("decode lines of annotation %s: %w", a.ID, err)
		}
		if a.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		annotations = append(annotations, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate annotations: %w", err)
	}
	return annotations, nil
}
