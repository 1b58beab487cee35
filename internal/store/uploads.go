package store

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"io"
	"time"
)

// Upload is one registered dataset load. The original bytes are kept
// gzip-compressed so a reconciler can rebuild the exact table an edit
// ledger was recorded against.
type Upload struct {
	ID             int64
	Name           string
	Format         string
	Variant        string
	RowCount       int
	CellErrorCount int
	PayloadHash    string
	Source         string // "upload" or "ftp"
	UploadedAt     time.Time
}

// RegisterUpload stores an accepted dataset. A payload with a hash already
// registered is not stored again; the existing upload ID comes back with
// duplicate=true.
func (s *Store) RegisterUpload(name, format, variant, source string, rowCount, cellErrors int, payload []byte) (int64, bool, error) {
	hash := sha256.Sum256(payload)
	hashHex := hex.EncodeToString(hash[:])

	var existing int64
	err := s.db.QueryRow(`SELECT id FROM uploads WHERE payload_hash = ? LIMIT 1`, hashHex).Scan(&existing)
	if err == nil {
		return existing, true, nil
	}
	if err != sql.ErrNoRows {
		return 0, false, fmt.Errorf("check upload hash: %w", err)
	}

	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	if _, err := gz.Write(payload); err != nil {
		return 0, false, fmt.Errorf("compress payload: %w", err)
	}
	if err := gz.Close(); err != nil {
		return 0, false, fmt.Errorf("close gzip: %w", err)
	}

	result, err := s.db.Exec(`
		INSERT INTO uploads (name, format, variant, row_count, cell_error_count, payload_hash, payload_compressed, source, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, name, format, variant, rowCount, cellErrors, hashHex, buf.Bytes(), source, time.Now().UTC())
	if err != nil {
		return 0, false, fmt.Errorf("insert upload: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, false, fmt.Errorf("upload id: %w", err)
	}
	return id, false, nil
}

// GetUpload returns one upload's metadata, or nil when absent.
func (s *Store) GetUpload(id int64) (*Upload, error) {
	row := s.db.QueryRow(`
		SELECT id, name, format, variant, row_count, cell_error_count, payload_hash, source, uploaded_at
		FROM uploads WHERE id = ?
	`, id)
	var u Upload
	err := row.Scan(&u.ID, &u.Name, &u.Format, &u.Variant, &u.RowCount, &u.CellErrorCount, &u.PayloadHash, &u.Source, &u.UploadedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetUploadPayload returns the decompressed original bytes of an upload.
func (s *Store) GetUploadPayload(id int64) ([]byte, error) {
	var compressed []byte
	err := s.db.QueryRow(`SELECT payload_compressed FROM uploads WHERE id = ?`, id).Scan(&compressed)
	if err != nil {
		return nil, fmt.Errorf("query payload: %w", err)
	}
	gz, err := gzip.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return nil, fmt.Errorf("open payload gzip: %w", err)
	}
	defer gz.Close()
	payload, err := io.ReadAll(gz)
	if err != nil {
		return nil, fmt.Errorf("decompress payload: %w", err)
	}
	return payload, nil
}

// HasUploadHash reports whether a payload with this hash was registered
// before. The FTP poller uses it to skip files it already pulled.
func (s *Store) HasUploadHash(hashHex string) (bool, error) {
	var id int64
	err := s.db.QueryRow(`SELECT id FROM uploads WHERE payload_hash = ? LIMIT 1`, hashHex).Scan(&id)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListUploads returns upload metadata, newest first.
func (s *Store) ListUploads(limit int) ([]Upload, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(`
		SELECT id, name, format, variant, row_count, cell_error_count, payload_hash, source, uploaded_at
		FROM uploads ORDER BY uploaded_at DESC, id DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var uploads []Upload
	for rows.Next() {
		var u Upload
		if err := rows.Scan(&u.ID, &u.Name, &u.Format, &u.Variant, &u.RowCount, &u.CellErrorCount, &u.PayloadHash, &u.Source, &u.UploadedAt); err != nil {
			return nil, err
		}
		uploads = append(uploads, u)
	}
	return uploads, rows.Err()
}
