// Package state persists the last validated remote configuration of a
// project so other commands can report it without contacting the network.
package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/kamusis/hubctl/internal/hub"
)

const (
	// FileName is the snapshot file inside the hub data dir.
	FileName = "remote.json"

	lockName       = "remote.lock"
	DefaultTimeout = 5 * time.Second
	retryInterval  = 100 * time.Millisecond
)

// ErrNoSnapshot is returned by Load when no snapshot was saved yet.
var ErrNoSnapshot = errors.New("no remote snapshot, run `hubctl remote` first")

// Snapshot is the persisted outcome of a successful remote run.
type Snapshot struct {
	Environment string `json:"environment"`
	Branch      string `json:"branch"`
	// BranchFallback is set when the branch could not be read.
	BranchFallback bool            `json:"branchFallback,omitempty"`
	ProjectURL     string          `json:"projectUrl"`
	AdminURL       string          `json:"adminUrl,omitempty"`
	ProjectKey     string          `json:"projectKey,omitempty"`
	Usable         []string        `json:"usable"`
	Unavailable    []string        `json:"unavailable,omitempty"`
	Mismatched     []string        `json:"mismatched,omitempty"`
	Indexes        []string        `json:"indexes,omitempty"`
	RemoteVersion  string          `json:"remoteVersion"`
	LocalVersion   string          `json:"localVersion"`
	Manifest       json.RawMessage `json:"manifest,omitempty"`
	// NoIndex asks crawlers to skip preview deployments.
	NoIndex    bool      `json:"noindex"`
	ResolvedAt time.Time `json:"resolvedAt"`
}

// FromRemote builds the snapshot of r.
func FromRemote(r *hub.Remote, projectKey, localVersion string, now time.Time) (Snapshot, error) {
	manifest, err := json.Marshal(r.Manifest)
	if err != nil {
		return Snapshot{}, fmt.Errorf("cannot encode manifest: %w", err)
	}
	s := Snapshot{
		Environment:    r.Environment.Name,
		Branch:         r.Branch.Branch,
		BranchFallback: r.Branch.Fallback,
		ProjectURL:     r.ProjectURL,
		AdminURL:       r.AdminURL,
		ProjectKey:     projectKey,
		Usable:         r.Reconciliation.Usable,
		Unavailable:    r.Reconciliation.Unavailable,
		Indexes:        r.Manifest.IndexNames(),
		RemoteVersion:  r.Manifest.Version,
		LocalVersion:   localVersion,
		Manifest:       manifest,
		NoIndex:        r.Environment.Name == hub.EnvPreview,
		ResolvedAt:     now.UTC(),
	}
	for _, m := range r.Reconciliation.Mismatched {
		s.Mismatched = append(s.Mismatched, m.Name)
	}
	return s, nil
}

// Store reads and writes the snapshot of one hub data dir.
type Store struct {
	dir     string
	timeout time.Duration
}

// NewStore returns a Store rooted at dir. The directory is created on Save.
func NewStore(dir string) *Store {
	return &Store{dir: dir, timeout: DefaultTimeout}
}

// WithTimeout bounds how long Save and Load wait for the lock.
func (s *Store) WithTimeout(d time.Duration) *Store {
	s.timeout = d
	return s
}

// Path is the snapshot file path.
func (s *Store) Path() string { return filepath.Join(s.dir, FileName) }

// Save writes snap atomically while holding the exclusive lock.
func (s *Store) Save(snap Snapshot) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("cannot create hub dir %s: %w", s.dir, err)
	}
	unlock, err := s.acquire(false)
	if err != nil {
		return err
	}
	defer unlock()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot encode snapshot: %w", err)
	}
	tmp, err := os.CreateTemp(s.dir, FileName+".*.tmp")
	if err != nil {
		return fmt.Errorf("cannot write snapshot: %w", err)
	}
	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("cannot write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("cannot write snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.Path()); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("cannot replace snapshot %s: %w", s.Path(), err)
	}
	return nil
}

// Load reads the snapshot under a shared lock.
func (s *Store) Load() (Snapshot, error) {
	if _, err := os.Stat(s.Path()); errors.Is(err, os.ErrNotExist) {
		return Snapshot{}, ErrNoSnapshot
	}
	unlock, err := s.acquire(true)
	if err != nil {
		return Snapshot{}, err
	}
	defer unlock()

	data, err := os.ReadFile(s.Path())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Snapshot{}, ErrNoSnapshot
		}
		return Snapshot{}, fmt.Errorf("cannot read snapshot %s: %w", s.Path(), err)
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("invalid snapshot %s: %w", s.Path(), err)
	}
	return snap, nil
}

// Clear removes the snapshot, e.g. after unlinking.
func (s *Store) Clear() error {
	if _, err := os.Stat(s.dir); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	unlock, err := s.acquire(false)
	if err != nil {
		return err
	}
	defer unlock()
	if err := os.Remove(s.Path()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("cannot remove snapshot %s: %w", s.Path(), err)
	}
	return nil
}

// acquire polls for the lock until the store timeout expires.
func (s *Store) acquire(shared bool) (func(), error) {
	lockPath := filepath.Join(s.dir, lockName)
	l := flock.New(lockPath)
	try := l.TryLock
	if shared {
		try = l.TryRLock
	}
	deadline := time.Now().Add(s.timeout)
	for {
		locked, err := try()
		if err != nil {
			return nil, fmt.Errorf("cannot acquire snapshot lock: %w", err)
		}
		if locked {
			return func() { _ = l.Unlock() }, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("another hubctl process holds the snapshot lock (lock: %s)", lockPath)
		}
		time.Sleep(retryInterval)
	}
}
