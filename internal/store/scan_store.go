package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/vbonduro/glowly/internal/domain"
)

// sqliteTime is the layout sqlite's datetime('now') produces; created_at is
// written in it so range comparisons stay lexicographic.
const sqliteTime = "2006-01-02 15:04:05"

type ScanStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewScanStore(db *sql.DB) *ScanStore {
	return &ScanStore{db: db, now: time.Now}
}

// ReplaceForUID stores scan and its metrics as the uid's only scan. Scans the
// uid had before are deleted in the same transaction and returned so the
// caller can remove their photo files.
func (s *ScanStore) ReplaceForUID(ctx context.Context, scan *domain.Scan) (*domain.Scan, []*domain.Scan, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	replaced, err := queryScans(ctx, tx, `
		SELECT id, uid, storage_key, mime_type, width, height, summary, created_at FROM scans
		WHERE uid = ? ORDER BY id ASC
	`, scan.UID)
	if err != nil {
		return nil, nil, err
	}

	for _, old := range replaced {
		if err := deleteScan(ctx, tx, old.ID); err != nil {
			return nil, nil, err
		}
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO scans (uid, storage_key, mime_type, width, height, summary, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, scan.UID, scan.StorageKey, scan.MimeType, scan.Width, scan.Height, scan.Summary, s.now().UTC().Format(sqliteTime))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create scan: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get last insert id: %w", err)
	}

	for i, m := range scan.Metrics {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO scan_metrics (scan_id, position, key, label, value, summary) VALUES (?, ?, ?, ?, ?, ?)
		`, id, i, m.Key, m.Label, m.Value, m.Summary); err != nil {
			return nil, nil, fmt.Errorf("failed to create metric %s: %w", m.Key, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit scan: %w", err)
	}

	created, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return created, replaced, nil
}

func (s *ScanStore) GetByID(ctx context.Context, id int64) (*domain.Scan, error) {
	scans, err := queryScans(ctx, s.db, `
		SELECT id, uid, storage_key, mime_type, width, height, summary, created_at FROM scans WHERE id = ?
	`, id)
	if err != nil {
		return nil, err
	}
	if len(scans) == 0 {
		return nil, nil
	}
	return s.withMetrics(ctx, scans[0])
}

func (s *ScanStore) GetLatestByUID(ctx context.Context, uid string) (*domain.Scan, error) {
	scans, err := queryScans(ctx, s.db, `
		SELECT id, uid, storage_key, mime_type, width, height, summary, created_at FROM scans
		WHERE uid = ? ORDER BY id DESC LIMIT 1
	`, uid)
	if err != nil {
		return nil, err
	}
	if len(scans) == 0 {
		return nil, nil
	}
	return s.withMetrics(ctx, scans[0])
}

// ListOlderThan returns scans created before cutoff, without metrics.
func (s *ScanStore) ListOlderThan(ctx context.Context, cutoff time.Time) ([]*domain.Scan, error) {
	return queryScans(ctx, s.db, `
		SELECT id, uid, storage_key, mime_type, width, height, summary, created_at FROM scans
		WHERE created_at < ? ORDER BY id ASC
	`, cutoff.UTC().Format(sqliteTime))
}

func (s *ScanStore) Delete(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := deleteScan(ctx, tx, id); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *ScanStore) withMetrics(ctx context.Context, scan *domain.Scan) (*domain.Scan, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, label, value, summary FROM scan_metrics WHERE scan_id = ? ORDER BY position ASC
	`, scan.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list metrics: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("failed to close rows", "error", err)
		}
	}()

	scan.Metrics = make([]domain.Metric, 0, 5)
	for rows.Next() {
		var m domain.Metric
		if err := rows.Scan(&m.Key, &m.Label, &m.Value, &m.Summary); err != nil {
			return nil, fmt.Errorf("failed to scan metric: %w", err)
		}
		scan.Metrics = append(scan.Metrics, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating metrics: %w", err)
	}
	return scan, nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func queryScans(ctx context.Context, q queryer, query string, args ...any) ([]*domain.Scan, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query scans: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("failed to close rows", "error", err)
		}
	}()

	var scans []*domain.Scan
	for rows.Next() {
		scan := &domain.Scan{}
		if err := rows.Scan(&scan.ID, &scan.UID, &scan.StorageKey, &scan.MimeType, &scan.Width, &scan.Height, &scan.Summary, &scan.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan scan: %w", err)
		}
		scans = append(scans, scan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating scans: %w", err)
	}
	return scans, nil
}

func deleteScan(ctx context.Context, e execer, id int64) error {
	if _, err := e.ExecContext(ctx, `DELETE FROM scan_metrics WHERE scan_id = ?`, id); err != nil {
		return fmt.Errorf("failed to delete metrics: %w", err)
	}

	result, err := e.ExecContext(ctx, `DELETE FROM scans WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete scan: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("scan not found")
	}
	return nil
}
