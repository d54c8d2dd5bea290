package repositories

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/desertthunder/playdeck/internal/models"
)

const (
	snapshotExt = ".json"
	tempPrefix  = ".snapshot-"
)

// FileSnapshotStore keeps one JSON file per version token under dir.
//
// Writes go to a temp file in the same directory and are renamed into place, so a reader
// never observes a partial entry.
type FileSnapshotStore struct {
	dir string
}

// NewFileSnapshotStore creates dir if needed and returns a store rooted there.
func NewFileSnapshotStore(dir string) (*FileSnapshotStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	return &FileSnapshotStore{dir: dir}, nil
}

// path escapes snapshotID so opaque tokens cannot traverse out of dir.
func (s *FileSnapshotStore) path(snapshotID string) string {
	return filepath.Join(s.dir, url.PathEscape(snapshotID)+snapshotExt)
}

func (s *FileSnapshotStore) Has(ctx context.Context, snapshotID string) (bool, error) {
	_, err := os.Stat(s.path(snapshotID))
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("failed to stat snapshot: %w", err)
	}
}

func (s *FileSnapshotStore) Load(ctx context.Context, snapshotID string) (*models.Snapshot, error) {
	data, err := os.ReadFile(s.path(snapshotID))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, cacheMiss(snapshotID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}
	return decodeSnapshot(snapshotID, data)
}

func (s *FileSnapshotStore) Store(ctx context.Context, snapshotID string, snap *models.Snapshot) error {
	data, err := encodeSnapshot(snapshotID, snap)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, tempPrefix+"*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close snapshot: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path(snapshotID)); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

func (s *FileSnapshotStore) Invalidate(ctx context.Context, snapshotID string) error {
	if err := os.Remove(s.path(snapshotID)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to invalidate snapshot: %w", err)
	}
	return nil
}

func (s *FileSnapshotStore) Info(ctx context.Context) (CacheInfo, error) {
	info := CacheInfo{Backend: "file", Location: s.dir}
	entries, err := s.entries()
	if err != nil {
		return CacheInfo{}, err
	}
	for _, e := range entries {
		fi, err := e.Info()
		if err != nil {
			continue
		}
		info.Entries++
		info.Bytes += fi.Size()
	}
	return info, nil
}

func (s *FileSnapshotStore) Clear(ctx context.Context) (int, error) {
	entries, err := s.entries()
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, e := range entries {
		if err := os.Remove(filepath.Join(s.dir, e.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, fmt.Errorf("failed to remove %s: %w", e.Name(), err)
		}
		removed++
	}
	return removed, nil
}

// entries lists committed snapshot files, skipping temp files from interrupted writes.
func (s *FileSnapshotStore) entries() ([]fs.DirEntry, error) {
	all, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read cache directory: %w", err)
	}
	var out []fs.DirEntry
	for _, e := range all {
		if e.IsDir() || strings.HasPrefix(e.Name(), tempPrefix) || !strings.HasSuffix(e.Name(), snapshotExt) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}
