package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/phobologic/surveyor/internal/model"
)

// AnalysisCache stores behavioral analyses keyed by content hash and model.
// It satisfies behavior.Cache.
type AnalysisCache struct {
	db *DB
}

// NewAnalysisCache returns the analysis cache backed by db.
func NewAnalysisCache(db *DB) *AnalysisCache {
	return &AnalysisCache{db: db}
}

// Get returns the entry for hash and model, or nil when absent.
func (c *AnalysisCache) Get(ctx context.Context, contentHash, modelName string) (*model.AnalysisCacheEntry, error) {
	var (
		version    int
		resultJSON string
		analyzedAt string
	)
	err := c.db.conn.QueryRowContext(ctx, `
		SELECT version, result_json, analyzed_at
		FROM analysis_cache
		WHERE content_hash = ? AND model = ?
	`, contentHash, modelName).Scan(&version, &resultJSON, &analyzedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("analysis cache lookup: %w", err)
	}

	entry := &model.AnalysisCacheEntry{ContentHash: contentHash, Model: modelName, Version: version}
	if err := json.Unmarshal([]byte(resultJSON), &entry.Result); err != nil {
		return nil, fmt.Errorf("decoding cached analysis: %w", err)
	}
	if entry.AnalyzedAt, err = parseTime(analyzedAt); err != nil {
		return nil, err
	}
	return entry, nil
}

// Put inserts or replaces an entry.
func (c *AnalysisCache) Put(ctx context.Context, entry model.AnalysisCacheEntry) error {
	data, err := json.Marshal(entry.Result)
	if err != nil {
		return fmt.Errorf("encoding analysis: %w", err)
	}
	_, err = c.db.conn.ExecContext(ctx, `
		INSERT OR REPLACE INTO analysis_cache (content_hash, model, version, result_json, analyzed_at)
		VALUES (?, ?, ?, ?, ?)
	`, entry.ContentHash, entry.Model, entry.Version, string(data), formatTime(entry.AnalyzedAt))
	if err != nil {
		return fmt.Errorf("storing analysis: %w", err)
	}
	return nil
}

// Prune deletes entries whose version differs from keep and returns how many
// were removed.
func (c *AnalysisCache) Prune(ctx context.Context, keep int) (int64, error) {
	res, err := c.db.conn.ExecContext(ctx, "DELETE FROM analysis_cache WHERE version != ?", keep)
	if err != nil {
		return 0, fmt.Errorf("pruning analysis cache: %w", err)
	}
	return res.RowsAffected()
}
