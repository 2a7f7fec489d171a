package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/GrahamLi/TDDC/internal/model"
)

const (
	recordExt = ".json"
	noDataExt = ".nodata"
)

// FS stores snapshots on the local filesystem: one directory per
// security under the root, one JSON file per date named
// "2006-01-02.json". Writes go through a temp file in the same
// directory followed by a rename, so readers never observe a partial
// record and an overwrite either fully replaces the old record or
// leaves it intact.
type FS struct {
	root   string
	logger *slog.Logger
}

var _ Store = (*FS)(nil)

// NewFS creates (if needed) the root directory and returns a filesystem
// store rooted there.
func NewFS(root string, logger *slog.Logger) (*FS, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create store root: %w", err)
	}
	return &FS{root: root, logger: logger}, nil
}

// Root returns the store's root directory.
func (s *FS) Root() string { return s.root }

// securityDir returns the directory holding one security's records.
// Security IDs are opaque upstream but must be usable as a single path
// component here.
func (s *FS) securityDir(security model.SecurityID) (string, error) {
	id := string(security)
	if id == "" {
		return "", errors.New("security id is empty")
	}
	if strings.ContainsAny(id, `/\`) || id == "." || id == ".." {
		return "", fmt.Errorf("security id %q is not a valid path component", id)
	}
	return filepath.Join(s.root, id), nil
}

func (s *FS) recordPath(security model.SecurityID, date model.Date) (string, error) {
	dir, err := s.securityDir(security)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, date.String()+recordExt), nil
}

func (s *FS) markerPath(security model.SecurityID, date model.Date) (string, error) {
	dir, err := s.securityDir(security)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, date.String()+noDataExt), nil
}

// Put implements Store.
func (s *FS) Put(ctx context.Context, snapshot *model.OwnershipSnapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := snapshot.Validate(); err != nil {
		return fmt.Errorf("refusing to store invalid snapshot: %w", err)
	}

	dir, err := s.securityDir(snapshot.Security)
	if err != nil {
		return err
	}
	// MkdirAll is race-free under concurrent first writes for the same
	// security.
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create security dir: %w", err)
	}

	data, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	data = append(data, '\n')

	tmp, err := os.CreateTemp(dir, "."+snapshot.Date.String()+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp record: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close record: %w", err)
	}

	final, err := s.recordPath(snapshot.Security, snapshot.Date)
	if err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, final); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("commit record: %w", err)
	}

	// A late publication supersedes any earlier no-data marker.
	if marker, err := s.markerPath(snapshot.Security, snapshot.Date); err == nil {
		if err := os.Remove(marker); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("clear no-data marker: %w", err)
		}
	}

	s.logger.Debug("snapshot stored",
		"security", snapshot.Security,
		"date", snapshot.Date.String(),
		"brackets", len(snapshot.Brackets),
	)
	return nil
}

// Get implements Store.
func (s *FS) Get(ctx context.Context, security model.SecurityID, date model.Date) (*model.OwnershipSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, err := s.recordPath(security, date)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read record: %w", err)
	}

	var snapshot model.OwnershipSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		return nil, &CorruptRecordError{Security: security, Date: date, Err: err}
	}
	if err := snapshot.Validate(); err != nil {
		return nil, &CorruptRecordError{Security: security, Date: date, Err: err}
	}
	if snapshot.Security != security || snapshot.Date != date {
		return nil, &CorruptRecordError{
			Security: security,
			Date:     date,
			Err:      fmt.Errorf("record content keyed %s/%s", snapshot.Security, snapshot.Date),
		}
	}
	return &snapshot, nil
}

// Exists implements Store. It stats the record file without opening it.
func (s *FS) Exists(ctx context.Context, security model.SecurityID, date model.Date) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	path, err := s.recordPath(security, date)
	if err != nil {
		return false, err
	}

	_, err = os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat record: %w", err)
	}
	return true, nil
}

// ListDates implements Store. File names that do not look like records
// (temp files, foreign files) are skipped.
func (s *FS) ListDates(ctx context.Context, security model.SecurityID) ([]model.Date, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dir, err := s.securityDir(security)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []model.Date{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list security dir: %w", err)
	}

	dates := make([]model.Date, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, recordExt) || strings.HasPrefix(name, ".") {
			continue
		}
		date, err := model.ParseDate(strings.TrimSuffix(name, recordExt))
		if err != nil {
			s.logger.Warn("skipping foreign file in store",
				"security", security,
				"file", name,
			)
			continue
		}
		dates = append(dates, date)
	}

	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates, nil
}

// MarkNoData implements Store. The marker is an empty ".nodata" file
// next to where the record would live; ListDates never reports it.
func (s *FS) MarkNoData(ctx context.Context, security model.SecurityID, date model.Date) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir, err := s.securityDir(security)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create security dir: %w", err)
	}

	path, err := s.markerPath(security, date)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		return fmt.Errorf("write no-data marker: %w", err)
	}
	return nil
}

// HasNoData implements Store.
func (s *FS) HasNoData(ctx context.Context, security model.SecurityID, date model.Date) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	path, err := s.markerPath(security, date)
	if err != nil {
		return false, err
	}

	_, err = os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat no-data marker: %w", err)
	}
	return true, nil
}
