package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/phobologic/surveyor/internal/model"
)

// ScanRecord is the listing view of a stored scan.
type ScanRecord struct {
	ID            string
	ProjectPath   string
	ProjectName   string
	Status        model.ScanStatus
	CreatedAt     time.Time
	CompletedAt   *time.Time
	HealthScore   int
	TotalFiles    int
	TotalWarnings int
}

// ScanRepository stores complete ScanResults under their scan ID.
type ScanRepository struct {
	db *DB
}

// NewScanRepository returns the scan repository backed by db.
func NewScanRepository(db *DB) *ScanRepository {
	return &ScanRepository{db: db}
}

// Save inserts or replaces a scan.
func (r *ScanRepository) Save(ctx context.Context, res *model.ScanResult) error {
	if res == nil || res.ID == "" {
		return errors.New("scan result has no ID")
	}
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encoding scan %s: %w", res.ID, err)
	}
	var completed any
	if res.CompletedAt != nil {
		completed = formatTime(*res.CompletedAt)
	}
	_, err = r.db.conn.ExecContext(ctx, `
		INSERT OR REPLACE INTO scans
			(id, project_path, project_name, status, created_at, completed_at,
			 health_score, total_files, total_warnings, result_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, res.ID, res.ProjectPath, res.ProjectName, string(res.Status), formatTime(res.CreatedAt), completed,
		res.Stats.HealthScore, res.Stats.TotalFiles, res.Stats.TotalWarnings, string(data))
	if err != nil {
		return fmt.Errorf("saving scan %s: %w", res.ID, err)
	}
	r.db.logger.Debug("saved scan", "id", res.ID, "bytes", len(data))
	return nil
}

// Get returns the scan with id, or ErrNotFound.
func (r *ScanRepository) Get(ctx context.Context, id string) (*model.ScanResult, error) {
	var data string
	err := r.db.conn.QueryRowContext(ctx, "SELECT result_json FROM scans WHERE id = ?", id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("scan %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading scan %s: %w", id, err)
	}
	var res model.ScanResult
	if err := json.Unmarshal([]byte(data), &res); err != nil {
		return nil, fmt.Errorf("decoding scan %s: %w", id, err)
	}
	return &res, nil
}

// Latest returns the most recent scan of projectPath, or ErrNotFound.
func (r *ScanRepository) Latest(ctx context.Context, projectPath string) (*model.ScanResult, error) {
	recs, err := r.List(ctx, projectPath, 1)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, fmt.Errorf("scans of %s: %w", projectPath, ErrNotFound)
	}
	return r.Get(ctx, recs[0].ID)
}

// List returns scans newest first. An empty projectPath lists every
// project; limit <= 0 means no limit.
func (r *ScanRepository) List(ctx context.Context, projectPath string, limit int) ([]ScanRecord, error) {
	query := `SELECT id, project_path, project_name, status, created_at, completed_at,
		health_score, total_files, total_warnings FROM scans`
	var args []any
	if projectPath != "" {
		query += " WHERE project_path = ?"
		args = append(args, projectPath)
	}
	query += " ORDER BY created_at DESC, id DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing scans: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []ScanRecord
	for rows.Next() {
		var (
			rec       ScanRecord
			status    string
			created   string
			completed sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.ProjectPath, &rec.ProjectName, &status, &created, &completed,
			&rec.HealthScore, &rec.TotalFiles, &rec.TotalWarnings); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		rec.Status = model.ScanStatus(status)
		if rec.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		if completed.Valid {
			t, err := parseTime(completed.String)
			if err != nil {
				return nil, err
			}
			rec.CompletedAt = &t
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Delete removes a scan. Deleting a missing scan returns ErrNotFound.
func (r *ScanRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.conn.ExecContext(ctx, "DELETE FROM scans WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting scan %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("scan %s: %w", id, ErrNotFound)
	}
	return nil
}

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}
