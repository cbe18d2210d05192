package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	types "github.com/warfroggyCA/clash-intelligence-dashboard-sub006/internal/domain"
)

// LocalStore keeps one JSON document per job under Dir. It is per-process
// and not shared between instances.
type LocalStore struct {
	Dir string
}

func NewLocalStore(dir string) *LocalStore {
	if strings.TrimSpace(dir) == "" {
		dir = "./data/ingestion-jobs"
	}
	return &LocalStore{Dir: dir}
}

func (l *LocalStore) path(id string) string {
	return filepath.Join(l.Dir, fileName(id)+".json")
}

// fileName keeps ids from escaping Dir.
func fileName(id string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			return r
		default:
			return '_'
		}
	}, id)
}

// Get returns (nil, nil) when no file exists for id.
func (l *LocalStore) Get(id string) (*types.JobRecord, error) {
	raw, err := os.ReadFile(l.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read job file: %w", err)
	}
	var rec types.JobRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("decode job file %s: %w", id, err)
	}
	return &rec, nil
}

// Put replaces the job document. The write goes through a temp file and a
// rename so readers never see a torn document.
func (l *LocalStore) Put(rec *types.JobRecord) error {
	if rec == nil || rec.ID == "" {
		return nil
	}
	if err := os.MkdirAll(l.Dir, 0o755); err != nil {
		return fmt.Errorf("create job dir: %w", err)
	}
	raw, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encode job %s: %w", rec.ID, err)
	}
	tmp, err := os.CreateTemp(l.Dir, fileName(rec.ID)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp job file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write job file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close job file: %w", err)
	}
	if err := os.Rename(tmpName, l.path(rec.ID)); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename job file: %w", err)
	}
	return nil
}
