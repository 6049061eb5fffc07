package synchronization

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/beakerbrowser/beaker-sync/pkg/logging"
	"github.com/beakerbrowser/beaker-sync/pkg/namedlock"
	"github.com/beakerbrowser/beaker-sync/pkg/syncfs"
)

// Status is a point-in-time snapshot of a single archive's controller,
// supplementing spec.md with the session-listing/status surface present in
// spirit in the teacher's Manager/controller.currentState() but omitted from
// the distilled spec.
type Status struct {
	Key           [32]byte
	Settings      *Settings
	ActiveSyncs   int64
	LastDirection string
	LastSyncTime  time.Time
	LastError     error
}

// Manager tracks one Controller per archive and provides the session-listing
// and status-snapshot surface. Grounded on the teacher's
// pkg/synchronization/manager.go session registry, simplified since this
// module manages in-process controllers rather than daemon-resident sessions.
type Manager struct {
	locks *namedlock.Registry
	bus   *Bus

	mu          sync.Mutex
	controllers map[[32]byte]*Controller
}

// NewManager creates an empty manager. All controllers it creates share a
// single named-lock registry and event bus.
func NewManager() *Manager {
	return &Manager{
		locks:       namedlock.NewRegistry(),
		bus:         NewBus(),
		controllers: make(map[[32]byte]*Controller),
	}
}

// Events returns the manager's shared event bus, on which every controller
// it creates publishes.
func (m *Manager) Events() *Bus {
	return m.bus
}

// Add registers archive with the manager, creating a controller for it if
// one does not already exist, and returns that controller.
func (m *Manager) Add(archive syncfs.ArchiveHandle, logger *logging.Logger) *Controller {
	key := archive.Key()

	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.controllers[key]; ok {
		return c
	}
	c := NewController(archive, m.locks, m.bus, logger.Sublogger(fmt.Sprintf("%x", key)))
	m.controllers[key] = c
	return c
}

// Remove drops the controller for key, if any, and terminates its status
// tracker. It does not tear down watchers; callers should Configure(nil) it
// first if a clean shutdown is required.
func (m *Manager) Remove(key [32]byte) {
	m.mu.Lock()
	c, ok := m.controllers[key]
	delete(m.controllers, key)
	m.mu.Unlock()
	if ok {
		c.Close()
	}
}

// Get returns the controller for key, if one is registered.
func (m *Manager) Get(key [32]byte) (*Controller, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.controllers[key]
	return c, ok
}

// List returns a status snapshot for every registered controller.
func (m *Manager) List() []Status {
	m.mu.Lock()
	controllers := make([]*Controller, 0, len(m.controllers))
	for _, c := range m.controllers {
		controllers = append(controllers, c)
	}
	m.mu.Unlock()

	statuses := make([]Status, 0, len(controllers))
	for _, c := range controllers {
		statuses = append(statuses, c.status())
	}
	return statuses
}

// Status returns a snapshot for a single archive, if it is registered.
func (m *Manager) Status(key [32]byte) (Status, bool) {
	c, ok := m.Get(key)
	if !ok {
		return Status{}, false
	}
	return c.status(), true
}

// WaitForStatusChange long-polls for the next status change on the archive
// identified by key, returning the new poll index and the status snapshot
// observed at that point. previousIndex of 0 returns the current status
// immediately; this is the same index-based long-poll contract as the
// teacher's session/forwarding/tunneling monitor commands, backed by
// state.Tracker rather than a bespoke condition variable.
func (m *Manager) WaitForStatusChange(ctx context.Context, key [32]byte, previousIndex uint64) (uint64, Status, error) {
	c, ok := m.Get(key)
	if !ok {
		return 0, Status{}, ErrArchiveNotRegistered
	}
	index, err := c.tracker.WaitForChange(ctx, previousIndex)
	if err != nil {
		return index, c.status(), err
	}
	return index, c.status(), nil
}

// status builds a Status snapshot, reading lifecycle bookkeeping and tracked
// state fields under their respective locks, mirroring the teacher's
// currentState method's split between lifecycleLock and stateLock.
func (c *Controller) status() Status {
	c.lifecycleLock.Lock()
	var settings *Settings
	if c.settings != nil {
		copied := *c.settings
		settings = &copied
	}
	c.lifecycleLock.Unlock()

	c.stateLock.Lock()
	lastDirection := c.lastDirection
	lastSyncTime := c.lastSyncTime
	lastErr := c.lastErr
	c.stateLock.UnlockWithoutNotify()

	return Status{
		Key:           c.archive.Key(),
		Settings:      settings,
		ActiveSyncs:   c.ActiveSyncs(),
		LastDirection: lastDirection.String(),
		LastSyncTime:  lastSyncTime,
		LastError:     lastErr,
	}
}
