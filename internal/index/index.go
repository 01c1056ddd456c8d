// Package index implements a shared, file-backed registry of virtual
// machine records. Multiple independent processes coordinate through two
// OS-level locking layers: a blocking whole-index lock that makes every
// reload/persist sequence atomic with respect to other processes, and a
// non-blocking per-machine lock file that models exclusive checkout of a
// single record for the duration of a caller's work.
package index

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kestrelworks/vmindex/internal/errors"
	"github.com/kestrelworks/vmindex/internal/flock"
	"github.com/kestrelworks/vmindex/internal/logging"
)

// Version is the only supported index file version. Anything else on disk
// is treated as corruption, never upgraded.
const Version = 1

// indexFileName is the registry file within the data directory.
const indexFileName = "index"

// indexFile is the persisted aggregate. Record bodies stay raw so that
// keys this core does not model survive reload+merge byte for byte.
type indexFile struct {
	Version  int                        `json:"version"`
	Machines map[string]json.RawMessage `json:"machines"`
}

// Index is the authoritative in-process facade over the on-disk machine
// registry and its locking protocol. It is safe for concurrent use; a
// process-local mutex serializes threads while the whole-index file lock
// serializes processes.
type Index struct {
	dataDir   string
	indexPath string
	fileLock  *flock.FileLock
	log       *logging.Logger

	mu       sync.Mutex
	machines map[string]json.RawMessage
	locks    map[string]*flock.FileLock // machine id -> held checkout lock
}

// Option configures an Index.
type Option func(*Index)

// WithLogger sets the structured logger used for lock and persist events.
// Without it, logging is discarded.
func WithLogger(log *logging.Logger) Option {
	return func(idx *Index) {
		idx.log = log
	}
}

// Open initializes an Index over the given data directory, which must
// already exist. The index file is created on first use. The current
// on-disk state is loaded under the whole-index lock; a file that cannot
// be parsed or carries an unsupported version fails with ErrIndexCorrupted.
func Open(dataDir string, opts ...Option) (*Index, error) {
	info, err := os.Stat(dataDir)
	if err != nil {
		return nil, fmt.Errorf("data directory %s: %w", dataDir, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("data directory %s: not a directory", dataDir)
	}

	indexPath := filepath.Join(dataDir, indexFileName)
	idx := &Index{
		dataDir:   dataDir,
		indexPath: indexPath,
		fileLock:  flock.New(indexPath + ".lock"),
		log:       logging.NopLogger(),
		machines:  make(map[string]json.RawMessage),
		locks:     make(map[string]*flock.FileLock),
	}
	for _, opt := range opts {
		opt(idx)
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if err := idx.fileLock.Lock(); err != nil {
		return nil, fmt.Errorf("lock index: %w", err)
	}
	defer func() { _ = idx.fileLock.Unlock() }()

	// Create the registry file on first use. An empty file reloads as a
	// fresh registry.
	f, err := os.OpenFile(indexPath, os.O_CREATE|os.O_RDONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open index %s: %w", indexPath, err)
	}
	_ = f.Close()

	if err := idx.reloadLocked(); err != nil {
		return nil, err
	}

	idx.log.Debug("index opened", "path", indexPath, "machines", len(idx.machines))
	return idx, nil
}

// DataDir returns the directory holding the index file and lock files.
func (idx *Index) DataDir() string {
	return idx.dataDir
}

// Get looks up a machine by id and checks it out. The on-disk state is
// reloaded first, so the result always reflects the latest persisted data.
//
// A missing id is a normal outcome: Get returns (nil, nil). If the
// machine's lock is already held, by another process or by this one, Get
// fails with ErrMachineLocked and retains no partial state.
func (idx *Index) Get(id string) (*Machine, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if err := idx.fileLock.Lock(); err != nil {
		return nil, fmt.Errorf("lock index: %w", err)
	}
	defer func() { _ = idx.fileLock.Unlock() }()

	if err := idx.reloadLocked(); err != nil {
		return nil, err
	}

	raw, ok := idx.machines[id]
	if !ok {
		return nil, nil
	}

	m, err := decodeMachine(id, raw)
	if err != nil {
		return nil, errors.NewIndexError("unreadable machine record", errors.ErrIndexCorrupted).
			WithMachineID(id).
			WithPath(idx.indexPath).
			WithDetail(err)
	}

	if _, held := idx.locks[id]; held {
		return nil, lockedError(m)
	}

	lock := flock.New(idx.lockPath(id))
	acquired, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock machine %s: %w", id, err)
	}
	if !acquired {
		idx.log.Warn("machine lock contention",
			"machine_id", id,
			"provider", m.Provider,
		)
		return nil, lockedError(m)
	}

	idx.locks[id] = lock
	idx.log.Debug("machine checked out", "machine_id", id)
	return m, nil
}

// lockedError builds the contention failure for a machine whose lock is
// already held. Contention is expected and retryable.
func lockedError(m *Machine) error {
	return errors.NewIndexError("machine is in use by another process", errors.ErrMachineLocked).
		WithMachineID(m.ID()).
		WithProvider(m.Provider).
		WithRetryable(true)
}

// Set persists a machine and returns a new Machine reflecting exactly what
// was written, including the refreshed updated_at stamp.
//
// A machine with no id is brand new: Set mints a fresh id and acquires its
// lock, leaving the returned machine checked out for the caller. Failure to
// lock a just-minted id is an environment fault (ErrLockAcquisition), not
// contention. A machine with an id must already be checked out by this
// process, otherwise Set refuses with ErrUnlockedWrite.
func (idx *Index) Set(m *Machine) (*Machine, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	id := m.id
	minted := false

	if id == "" {
		id = newMachineID()
		lock := flock.New(idx.lockPath(id))
		acquired, err := lock.TryLock()
		if err != nil || !acquired {
			idxErr := errors.NewIndexError("failed to lock new machine", errors.ErrLockAcquisition).
				WithMachineID(id).
				WithPath(idx.lockPath(id))
			if err != nil {
				idxErr = idxErr.WithDetail(err)
			}
			return nil, idxErr
		}
		idx.locks[id] = lock
		minted = true
	} else if _, held := idx.locks[id]; !held {
		return nil, errors.NewIndexError("machine must be checked out before writing", errors.ErrUnlockedWrite).
			WithMachineID(id)
	}

	persisted, err := idx.persistMachine(id, m)
	if err != nil {
		// A freshly minted checkout must not outlive a failed Set.
		if minted {
			idx.releaseLocked(id)
		}
		return nil, err
	}

	idx.log.Info("machine persisted",
		"machine_id", id,
		"name", m.Name,
		"provider", m.Provider,
		"state", m.State,
	)
	return persisted, nil
}

// persistMachine runs the reload+merge+persist sequence for one machine id
// under the whole-index lock. Reloading first means a concurrent writer's
// updates to other ids are never discarded; only this id's entry is
// replaced.
func (idx *Index) persistMachine(id string, m *Machine) (*Machine, error) {
	if err := idx.fileLock.Lock(); err != nil {
		return nil, fmt.Errorf("lock index: %w", err)
	}
	defer func() { _ = idx.fileLock.Unlock() }()

	if err := idx.reloadLocked(); err != nil {
		return nil, err
	}

	raw, err := encodeMachine(m, time.Now().UTC().Format(time.RFC3339), idx.machines[id])
	if err != nil {
		return nil, fmt.Errorf("encode machine %s: %w", id, err)
	}
	idx.machines[id] = raw

	if err := idx.persistLocked(); err != nil {
		return nil, err
	}

	return decodeMachine(id, raw)
}

// Release drops the checkout of a machine. It is idempotent and never
// fails: releasing a machine that is not checked out, or one already
// released, does nothing. After Release the caller must not pass the
// machine to Set again without a fresh Get.
func (idx *Index) Release(m *Machine) {
	if m == nil || m.id == "" {
		return
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.releaseLocked(m.id)
}

func (idx *Index) releaseLocked(id string) {
	lock, ok := idx.locks[id]
	if !ok {
		return
	}
	if err := lock.Unlock(); err != nil {
		idx.log.Warn("failed to unlock machine", "machine_id", id, "error", err)
	}
	delete(idx.locks, id)
	idx.log.Debug("machine released", "machine_id", id)
}

// Delete removes a machine from the registry and releases its checkout.
// Like Set, it requires the caller to hold the machine's lock. The
// machine's lock file is removed best-effort afterwards; a leftover lock
// file is harmless since only its lock state matters.
func (idx *Index) Delete(m *Machine) error {
	if m == nil || m.id == "" {
		return nil
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	id := m.id
	if _, held := idx.locks[id]; !held {
		return errors.NewIndexError("machine must be checked out before deleting", errors.ErrUnlockedWrite).
			WithMachineID(id)
	}

	if err := idx.fileLock.Lock(); err != nil {
		return fmt.Errorf("lock index: %w", err)
	}
	defer func() { _ = idx.fileLock.Unlock() }()

	if err := idx.reloadLocked(); err != nil {
		return err
	}

	delete(idx.machines, id)
	if err := idx.persistLocked(); err != nil {
		return err
	}

	idx.releaseLocked(id)
	_ = os.Remove(idx.lockPath(id))

	idx.log.Info("machine deleted", "machine_id", id)
	return nil
}

// All returns a snapshot of every machine in the registry, reloaded from
// disk and sorted by name then id. The returned machines are NOT checked
// out; passing one to Set fails with ErrUnlockedWrite.
func (idx *Index) All() ([]*Machine, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if err := idx.fileLock.Lock(); err != nil {
		return nil, fmt.Errorf("lock index: %w", err)
	}
	defer func() { _ = idx.fileLock.Unlock() }()

	if err := idx.reloadLocked(); err != nil {
		return nil, err
	}

	machines := make([]*Machine, 0, len(idx.machines))
	for id, raw := range idx.machines {
		m, err := decodeMachine(id, raw)
		if err != nil {
			return nil, errors.NewIndexError("unreadable machine record", errors.ErrIndexCorrupted).
				WithMachineID(id).
				WithPath(idx.indexPath).
				WithDetail(err)
		}
		machines = append(machines, m)
	}

	sort.Slice(machines, func(i, j int) bool {
		if machines[i].Name != machines[j].Name {
			return machines[i].Name < machines[j].Name
		}
		return machines[i].id < machines[j].id
	})
	return machines, nil
}

// Includes reports whether a machine id exists in the registry, reloading
// from disk first. It never touches per-machine locks.
func (idx *Index) Includes(id string) (bool, error) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	if err := idx.fileLock.Lock(); err != nil {
		return false, fmt.Errorf("lock index: %w", err)
	}
	defer func() { _ = idx.fileLock.Unlock() }()

	if err := idx.reloadLocked(); err != nil {
		return false, err
	}

	_, ok := idx.machines[id]
	return ok, nil
}

// Close releases every checkout this process still holds. The index remains
// usable afterwards; Close exists so callers can defer cleanup.
func (idx *Index) Close() {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	for id := range idx.locks {
		idx.releaseLocked(id)
	}
}

// lockPath returns the per-machine lock file path for an id.
func (idx *Index) lockPath(id string) string {
	return filepath.Join(idx.dataDir, id+".lock")
}

// reloadLocked replaces the in-memory map with the current on-disk state.
// The caller must hold both the process mutex and the whole-index lock.
// A missing or empty file is a fresh registry, not corruption.
func (idx *Index) reloadLocked() error {
	data, err := os.ReadFile(idx.indexPath)
	if err != nil {
		if os.IsNotExist(err) {
			idx.machines = make(map[string]json.RawMessage)
			return nil
		}
		return fmt.Errorf("read index %s: %w", idx.indexPath, err)
	}

	if len(data) == 0 {
		idx.machines = make(map[string]json.RawMessage)
		return nil
	}

	var file indexFile
	if err := json.Unmarshal(data, &file); err != nil {
		return errors.NewIndexError("index file is not valid JSON", errors.ErrIndexCorrupted).
			WithPath(idx.indexPath).
			WithDetail(err)
	}
	if file.Version != Version {
		return errors.NewIndexError(
			fmt.Sprintf("unsupported index version %d (want %d)", file.Version, Version),
			errors.ErrIndexCorrupted,
		).WithPath(idx.indexPath)
	}

	if file.Machines == nil {
		file.Machines = make(map[string]json.RawMessage)
	}
	idx.machines = file.Machines
	return nil
}

// persistLocked writes the in-memory map back to disk as one atomic write.
// The caller must hold both the process mutex and the whole-index lock.
func (idx *Index) persistLocked() error {
	data, err := json.MarshalIndent(indexFile{
		Version:  Version,
		Machines: idx.machines,
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode index: %w", err)
	}

	if err := atomicWriteFile(idx.indexPath, data, 0644); err != nil {
		return fmt.Errorf("persist index %s: %w", idx.indexPath, err)
	}
	return nil
}

// newMachineID mints a globally unique machine id: a UUIDv4 with the
// dashes stripped, matching the established on-disk id shape.
func newMachineID() string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")
}

// atomicWriteFile writes data to a file atomically by writing to a
// temporary file first, then renaming. The target file is never observed
// in a partially-written state.
func atomicWriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)

	// Create temp file in same directory to ensure atomic rename
	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write temp file: %w", err)
	}

	if err := tmpFile.Sync(); err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to sync temp file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("failed to set permissions: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}
