package configdoc

import (
	"errors"
	"fmt"
	"os"
	"time"
)

// backupSuffixLayout is the timestamp appended to backup file names,
// producing `<path>.backup-YYYYMMDD-HHMMSS`.
const backupSuffixLayout = "20060102-150405"

// ErrNotFound is returned by every Store operation when the guarded file
// does not exist.
var ErrNotFound = errors.New("config file not found")

// Store gates all reads and writes to exactly one configuration file.
//
// The path is fixed at construction; no other filesystem location is ever
// opened through a Store. Every operation re-checks the file's existence and
// re-reads it from disk; nothing is cached across calls, so concurrent
// writers are simply last-one-wins (an accepted gap, not a guarantee).
type Store struct {
	path string

	// now is the clock used for backup suffixes. Overridable in tests.
	now func() time.Time
}

// NewStore creates a Store guarding the file at path. The path should be
// absolute; callers resolve it once at startup (see config.ResolveDocumentPath).
func NewStore(path string) *Store {
	return &Store{path: path, now: time.Now}
}

// Path returns the guarded file path.
func (s *Store) Path() string {
	return s.path
}

// Exists reports whether the guarded file currently exists as a regular file.
func (s *Store) Exists() bool {
	info, err := os.Stat(s.path)
	return err == nil && info.Mode().IsRegular()
}

// guard returns an [ErrNotFound] error naming the expected path when the
// file is absent.
func (s *Store) guard() error {
	if !s.Exists() {
		return fmt.Errorf("configdoc: %w: %s", ErrNotFound, s.path)
	}
	return nil
}

// Raw reads and returns the current on-disk bytes of the document.
func (s *Store) Raw() ([]byte, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("configdoc: read %s: %w", s.path, err)
	}
	return data, nil
}

// Fingerprint returns the content fingerprint of the current on-disk bytes.
func (s *Store) Fingerprint() (string, error) {
	raw, err := s.Raw()
	if err != nil {
		return "", err
	}
	return Fingerprint(raw), nil
}

// Write overwrites the guarded file with doc, pretty-printed with two-space
// indentation.
//
// When backup is true the current on-disk bytes are first copied verbatim to
// a timestamp-suffixed sibling path; the backup path is returned ("" when
// backups are disabled). Backups are never pruned.
//
// There is no atomic-rename or fsync discipline: a crash between backup and
// overwrite may leave the file in either the old or a partially written
// state.
func (s *Store) Write(doc []byte, backup bool) (backupPath string, err error) {
	if err := s.guard(); err != nil {
		return "", err
	}

	if backup {
		current, err := os.ReadFile(s.path)
		if err != nil {
			return "", fmt.Errorf("configdoc: read for backup %s: %w", s.path, err)
		}
		backupPath = s.path + ".backup-" + s.now().Format(backupSuffixLayout)
		if err := os.WriteFile(backupPath, current, 0o644); err != nil {
			return "", fmt.Errorf("configdoc: write backup %s: %w", backupPath, err)
		}
	}

	if err := os.WriteFile(s.path, Pretty(doc), 0o644); err != nil {
		return backupPath, fmt.Errorf("configdoc: write %s: %w", s.path, err)
	}
	return backupPath, nil
}
