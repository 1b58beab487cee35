// Package ingest pulls survey dataset files from the rig's FTP drop
// directory, the delivery channel survey vehicles use in the field.
package ingest

import (
	"fmt"
	"io"
	"path"
	"sort"
	"time"

	"github.com/jlaffaye/ftp"

	"github.com/railscan/polemap/internal/dataset"
)

// DropConfig locates the FTP drop.
type DropConfig struct {
	Host     string // host:port
	User     string
	Password string
	Path     string // directory holding dataset files
}

// DropClient lists and retrieves dataset files from the drop. Each call
// dials a fresh connection; drops are polled on the order of minutes, so
// holding a control connection open buys nothing.
type DropClient struct {
	cfg DropConfig
}

func NewDropClient(cfg DropConfig) *DropClient {
	if cfg.User == "" {
		cfg.User = "anonymous"
		cfg.Password = "anonymous"
	}
	return &DropClient{cfg: cfg}
}

// DropFile is one candidate dataset file in the drop directory.
type DropFile struct {
	Name    string
	Size    uint64
	ModTime time.Time
}

// List returns dataset files in the drop, newest first. Entries whose names
// are not a supported container format are skipped.
func (c *DropClient) List() ([]DropFile, error) {
	conn, err := ftp.Dial(c.cfg.Host, ftp.DialWithTimeout(30*time.Second))
	if err != nil {
		return nil, fmt.Errorf("ftp dial: %w", err)
	}
	defer conn.Quit()

	if err := conn.Login(c.cfg.User, c.cfg.Password); err != nil {
		return nil, fmt.Errorf("ftp login: %w", err)
	}

	entries, err := conn.List(c.cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("ftp list %s: %w", c.cfg.Path, err)
	}

	files := filterDatasetEntries(entries)
	sort.Slice(files, func(i, j int) bool {
		return files[i].ModTime.After(files[j].ModTime)
	})
	return files, nil
}

// Fetch retrieves one file from the drop by name.
func (c *DropClient) Fetch(name string) ([]byte, error) {
	conn, err := ftp.Dial(c.cfg.Host, ftp.DialWithTimeout(30*time.Second))
	if err != nil {
		return nil, fmt.Errorf("ftp dial: %w", err)
	}
	defer conn.Quit()

	if err := conn.Login(c.cfg.User, c.cfg.Password); err != nil {
		return nil, fmt.Errorf("ftp login: %w", err)
	}

	resp, err := conn.Retr(path.Join(c.cfg.Path, name))
	if err != nil {
		return nil, fmt.Errorf("ftp retr %s: %w", name, err)
	}
	defer resp.Close()

	body, err := io.ReadAll(resp)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return body, nil
}

// filterDatasetEntries keeps regular files with a supported dataset
// extension.
func filterDatasetEntries(entries []*ftp.Entry) []DropFile {
	var files []DropFile
	for _, e := range entries {
		if e.Type != ftp.EntryTypeFile {
			continue
		}
		if _, _, err := dataset.DetectFormat(e.Name); err != nil {
			continue
		}
		files = append(files, DropFile{Name: e.Name, Size: e.Size, ModTime: e.Time})
	}
	return files
}
