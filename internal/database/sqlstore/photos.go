package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kozaktomas/photo-curator/internal/constants"
	"github.com/kozaktomas/photo-curator/internal/database"
)

const photoColumns = "id, file_path, latitude, longitude, capture_date, metadata, created_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPhoto(row rowScanner) (*database.Photo, error) {
	var (
		p         database.Photo
		metadata  string
		createdAt string
	)
	if err := row.Scan(&p.ID, &p.FilePath, &p.Latitude, &p.Longitude, &p.CaptureDate, &metadata, &createdAt); err != nil {
		return nil, err
	}
	if metadata != "" && metadata != "{}" {
		if err := json.Unmarshal([]byte(metadata), &p.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata of photo %s: %w", p.ID, err)
		}
	}
	t, err := parseTime(createdAt)
	if err != nil {
		return nil, err
	}
	p.CreatedAt = t
	return &p, nil
}

func collectPhotos(rows *sql.Rows) ([]database.Photo, error) {
	defer rows.Close()
	var photos []database.Photo
	for rows.Next() {
		p, err := scanPhoto(rows)
		if err != nil {
			return nil, fmt.Errorf("scan photo: %w", err)
		}
		photos = append(photos, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate photos: %w", err)
	}
	return photos, nil
}

// SavePhoto inserts a new photo record.
func (s *Store) SavePhoto(ctx context.Context, photo *database.Photo) error {
	if photo.ID == "" {
		return errors.New("photo id is required")
	}
	if photo.CreatedAt.IsZero() {
		photo.CreatedAt = s.now().UTC()
	}
	metadata := []byte("{}")
	if len(photo.Metadata) > 0 {
		var err error
		if metadata, err = json.Marshal(photo.Metadata); err != nil {
			return fmt.Errorf("encode metadata of photo %s: %w", photo.ID, err)
		}
	}

	_, err := s.exec(ctx, s.db, `INSERT INTO photos (`+photoColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		photo.ID, photo.FilePath, photo.Latitude, photo.Longitude, photo.CaptureDate,
		string(metadata), formatTime(photo.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert photo %s: %w", photo.ID, err)
	}
	return nil
}

// GetPhoto returns the photo with the given id.
func (s *Store) GetPhoto(ctx context.Context, id string) (*database.Photo, error) {
	row := s.queryRow(ctx, s.db, `SELECT `+photoColumns+` FROM photos WHERE id = ?`, id)
	p, err := scanPhoto(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("photo %s: %w", id, database.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get photo %s: %w", id, err)
	}
	return p, nil
}

// GetPhotos resolves ids in the order given, skipping ids with no record.
// Lookups are batched to stay under driver parameter limits.
func (s *Store) GetPhotos(ctx context.Context, ids []string) ([]database.Photo, error) {
	byID := make(map[string]database.Photo, len(ids))
	for start := 0; start < len(ids); start += constants.IDLookupBatchSize {
		batch := ids[start:min(start+constants.IDLookupBatchSize, len(ids))]
		args := make([]any, len(batch))
		for i, id := range batch {
			args[i] = id
		}
		rows, err := s.query(ctx, s.db,
			`SELECT `+photoColumns+` FROM photos WHERE id IN (`+placeholders(len(batch))+`)`, args...)
		if err != nil {
			return nil, fmt.Errorf("query photos: %w", err)
		}
		photos, err := collectPhotos(rows)
		if err != nil {
			return nil, err
		}
		for _, p := range photos {
			byID[p.ID] = p
		}
	}

	result := make([]database.Photo, 0, len(ids))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			result = append(result, p)
		}
	}
	return result, nil
}

// FindPhotos returns the photos matching the filter ordered by insertion time.
func (s *Store) FindPhotos(ctx context.Context, filter database.Filter) ([]database.Photo, error) {
	where, args, err := s.whereClause(filter)
	if err != nil {
		return nil, err
	}
	rows, err := s.query(ctx, s.db,
		`SELECT `+photoColumns+` FROM photos`+where+` ORDER BY created_at, id`, args...)
	if err != nil {
		return nil, fmt.Errorf("query photos: %w", err)
	}
	return collectPhotos(rows)
}

// CountPhotos returns the number of photos matching the filter.
func (s *Store) CountPhotos(ctx context.Context, filter database.Filter) (int, error) {
	where, args, err := s.whereClause(filter)
	if err != nil {
		return 0, err
	}
	var count int
	if err := s.queryRow(ctx, s.db, `SELECT COUNT(*) FROM photos`+where, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count photos: %w", err)
	}
	return count, nil
}

// whereClause compiles a filter into a WHERE clause. Field names are
// validated by Normalize before they are interpolated.
func (s *Store) whereClause(filter database.Filter) (string, []any, error) {
	f, err := filter.Normalize()
	if err != nil {
		return "", nil, err
	}

	var (
		conds []string
		args  []any
	)
	add := func(field, op string, value any) {
		expr, ok := s.fieldExpr(field, value)
		if !ok {
			conds = append(conds, "1 = 0")
			return
		}
		conds = append(conds, expr+" "+op+" ?")
		args = append(args, value)
	}

	for _, field := range f.ExactFields() {
		add(field, "=", f.Exact[field])
	}
	for _, field := range f.RangeFields() {
		r := f.Range[field]
		if r.GTE != nil {
			add(field, ">=", r.GTE)
		}
		if r.LTE != nil {
			add(field, "<=", r.LTE)
		}
	}

	if len(conds) == 0 {
		return "", nil, nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args, nil
}

// fieldExpr returns the SQL expression for a field compared against a
// literal of the given type, or false when the types can never match.
func (s *Store) fieldExpr(field string, literal any) (string, bool) {
	_, numeric := literal.(float64)
	switch field {
	case database.FieldLatitude, database.FieldLongitude:
		return field, numeric
	case database.FieldID, database.FieldFilePath, database.FieldCaptureDate:
		return field, !numeric
	}
	if numeric {
		return s.dialect.jsonNumber(field), true
	}
	return s.dialect.jsonText(field), true
}
