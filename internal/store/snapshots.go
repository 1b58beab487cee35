package store

import (
	"database/sql"
	"fmt"
	"time"
)

// EditSnapshot is one archived ledger export. Snapshots survive a ledger
// Clear, so the correction history is never lost to the offline reconciler.
type EditSnapshot struct {
	ID          int64
	UploadID    sql.NullInt64
	Format      string // "csv" or "jsonl"
	RecordCount int
	Payload     []byte
	CreatedAt   time.Time
}

// SaveEditSnapshot archives one serialized ledger export.
func (s *Store) SaveEditSnapshot(uploadID sql.NullInt64, format string, recordCount int, payload []byte) (int64, error) {
	result, err := s.db.Exec(`
		INSERT INTO edit_snapshots (upload_id, format, record_count, payload, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, uploadID, format, recordCount, payload, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("insert edit snapshot: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("snapshot id: %w", err)
	}
	return id, nil
}

// GetEditSnapshot returns one snapshot with its payload, or nil when absent.
func (s *Store) GetEditSnapshot(id int64) (*EditSnapshot, error) {
	row := s.db.QueryRow(`
		SELECT id, upload_id, format, record_count, payload, created_at
		FROM edit_snapshots WHERE id = ?
	`, id)
	var snap EditSnapshot
	err := row.Scan(&snap.ID, &snap.UploadID, &snap.Format, &snap.RecordCount, &snap.Payload, &snap.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// ListEditSnapshots returns snapshot metadata without payloads, newest first.
func (s *Store) ListEditSnapshots(limit int) ([]EditSnapshot, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT id, upload_id, format, record_count, created_at
		FROM edit_snapshots ORDER BY created_at DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snaps []EditSnapshot
	for rows.Next() {
		var snap EditSnapshot
		if err := rows.Scan(&snap.ID, &snap.UploadID, &snap.Format, &snap.RecordCount, &snap.CreatedAt); err != nil {
			return nil, err
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}
