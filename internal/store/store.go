// Package store provides the typed JSON persistence layer for all scrum
// entities. One file per entity kind lives under <state-root>/data/; each
// file maps entity ID to its serialized form. Writes are atomic
// (temp-file + rename) and guarded by an advisory file lock so that
// concurrent invocations on the same project are safe or refused.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/sprintforge/sprintforge/pkg/models"
)

// Kind names the entity kinds the store persists, one file each.
type Kind string

const (
	KindStories  Kind = "stories"
	KindTasks    Kind = "tasks"
	KindBugs     Kind = "bugs"
	KindSprints  Kind = "sprints"
	KindEpics    Kind = "epics"
	KindRoadmaps Kind = "roadmaps"
)

// Kinds lists every entity kind in a stable order.
var Kinds = []Kind{KindStories, KindTasks, KindBugs, KindSprints, KindEpics, KindRoadmaps}

// lockTimeout bounds how long a write waits for the advisory lock before
// failing with a "project busy" diagnostic.
const lockTimeout = 3 * time.Second

// Store reads and writes entity files under a data directory.
type Store struct {
	dataDir string
	lock    *flock.Flock
	mu      sync.Mutex
	// quarantined maps a kind to the load error that poisoned it. A
	// quarantined kind refuses mutation until operator intervention.
	quarantined map[Kind]error
	// warn receives non-fatal schema warnings; optional.
	warn func(format string, args ...any)
}

// Open prepares the store rooted at dataDir, creating the directory and any
// missing entity files. Stray files that do not belong to a known kind are
// moved aside into a quarantine directory rather than silently converted.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, models.WrapError(models.KindIO, err, "create data directory")
	}

	s := &Store{
		dataDir:     dataDir,
		lock:        flock.New(filepath.Join(dataDir, ".lock")),
		quarantined: make(map[Kind]error),
		warn:        func(string, ...any) {},
	}

	if err := s.ensureFiles(); err != nil {
		return nil, err
	}
	if err := s.quarantineStrays(); err != nil {
		return nil, err
	}
	return s, nil
}

// SetWarnFunc installs a sink for non-fatal schema warnings.
func (s *Store) SetWarnFunc(fn func(format string, args ...any)) {
	if fn != nil {
		s.warn = fn
	}
}

// DataDir returns the directory the store operates on.
func (s *Store) DataDir() string { return s.dataDir }

// path returns the file path for a kind.
func (s *Store) path(kind Kind) string {
	return filepath.Join(s.dataDir, string(kind)+".json")
}

// ensureFiles creates empty entity files for any kind missing on disk.
func (s *Store) ensureFiles() error {
	for _, kind := range Kinds {
		p := s.path(kind)
		if _, err := os.Stat(p); err == nil {
			continue
		} else if !os.IsNotExist(err) {
			return models.WrapError(models.KindIO, err, "stat %s", p)
		}
		if err := atomicWrite(p, []byte("{}\n")); err != nil {
			return err
		}
	}
	return nil
}

// quarantineStrays moves files in the data directory that are not entity
// files into data/quarantine/. Markdown or other free-form files in the
// data directory violate the structured-data contract.
func (s *Store) quarantineStrays() error {
	entries, err := os.ReadDir(s.dataDir)
	if err != nil {
		return models.WrapError(models.KindIO, err, "read data directory")
	}

	known := make(map[string]bool, len(Kinds)+2)
	for _, kind := range Kinds {
		known[string(kind)+".json"] = true
	}
	known[".lock"] = true
	known["quarantine"] = true

	for _, entry := range entries {
		if entry.IsDir() || known[entry.Name()] {
			continue
		}
		qdir := filepath.Join(s.dataDir, "quarantine")
		if err := os.MkdirAll(qdir, 0755); err != nil {
			return models.WrapError(models.KindIO, err, "create quarantine directory")
		}
		src := filepath.Join(s.dataDir, entry.Name())
		dst := filepath.Join(qdir, entry.Name())
		if err := os.Rename(src, dst); err != nil {
			return models.WrapError(models.KindIO, err, "quarantine %s", entry.Name())
		}
		s.warn("quarantined stray file in data directory: %s", entry.Name())
	}
	return nil
}

// Load reads the file for kind into out, which must be a pointer to a
// map[string]T. A file that cannot be parsed quarantines the kind: reads of
// other kinds continue, but mutations of this kind fail until the operator
// repairs the file.
func (s *Store) Load(kind Kind, out any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(kind))
	if err != nil {
		return models.WrapError(models.KindIO, err, "read %s file", kind)
	}

	if err := json.Unmarshal(data, out); err != nil {
		schemaErr := models.WrapError(models.KindSchema, err, "%s file is corrupted", kind).
			WithHint(fmt.Sprintf("repair %s and restart", s.path(kind)))
		s.quarantined[kind] = schemaErr
		return schemaErr
	}

	delete(s.quarantined, kind)
	return nil
}

// Save writes the mapping for kind atomically. It refuses to touch a
// quarantined kind and fails with a "project busy" diagnostic when the
// advisory lock cannot be acquired in time.
func (s *Store) Save(kind Kind, in any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if qerr, ok := s.quarantined[kind]; ok {
		return models.WrapError(models.KindSchema, qerr, "%s is quarantined, refusing to mutate", kind)
	}

	ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()
	locked, err := s.lock.TryLockContext(ctx, 100*time.Millisecond)
	if err != nil || !locked {
		return models.NewError(models.KindIO, "project busy: another sprintforge process holds the data lock").
			WithHint("wait for the other invocation to finish")
	}
	defer s.lock.Unlock()

	data, err := json.MarshalIndent(in, "", "  ")
	if err != nil {
		return models.WrapError(models.KindSchema, err, "serialize %s", kind)
	}
	return atomicWrite(s.path(kind), append(data, '\n'))
}

// Quarantined returns the quarantine error for kind, or nil.
func (s *Store) Quarantined(kind Kind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.quarantined[kind]
}

// Backup copies every entity file into a timestamped directory under
// backupsDir. Used before destructive upgrades.
func (s *Store) Backup(backupsDir string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Join(backupsDir, time.Now().UTC().Format("20060102-150405"))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", models.WrapError(models.KindIO, err, "create backup directory")
	}

	for _, kind := range Kinds {
		data, err := os.ReadFile(s.path(kind))
		if err != nil {
			return "", models.WrapError(models.KindIO, err, "read %s for backup", kind)
		}
		dst := filepath.Join(dir, string(kind)+".json")
		if err := os.WriteFile(dst, data, 0644); err != nil {
			return "", models.WrapError(models.KindIO, err, "write backup of %s", kind)
		}
	}
	return dir, nil
}

// atomicWrite writes data to path via a temp file and rename.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return models.WrapError(models.KindIO, err, "create temp file for %s", path)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return models.WrapError(models.KindIO, err, "write temp file for %s", path)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return models.WrapError(models.KindIO, err, "close temp file for %s", path)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return models.WrapError(models.KindIO, err, "rename temp file to %s", path)
	}
	return nil
}

// KindForID maps an entity ID prefix to its store kind.
func KindForID(id string) (Kind, bool) {
	switch {
	case strings.HasPrefix(id, "US-"):
		return KindStories, true
	case strings.HasPrefix(id, "TASK-"):
		return KindTasks, true
	case strings.HasPrefix(id, "BUG-"):
		return KindBugs, true
	case strings.HasPrefix(id, "SPRINT-"):
		return KindSprints, true
	case strings.HasPrefix(id, "EPIC-"):
		return KindEpics, true
	case strings.HasPrefix(id, "ROADMAP-"):
		return KindRoadmaps, true
	default:
		return "", false
	}
}
