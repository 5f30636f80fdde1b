package tx

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

var (
	// ErrNotOwner is returned when the caller does not hold the SDR.
	ErrNotOwner = errors.New("tx: caller does not own the transaction")

	// ErrNotOwned is returned by Impersonate when no transaction is open.
	ErrNotOwned = errors.New("tx: no transaction in progress")

	// ErrDepth is returned by Release while nested begins are outstanding.
	ErrDepth = errors.New("tx: transaction still nested")
)

// Owner identifies a transaction holder: the process and the view inside it.
type Owner struct {
	Task   int
	Thread uuid.UUID
}

// IsZero reports whether o names nobody.
func (o Owner) IsZero() bool { return o.Task == 0 && o.Thread == uuid.Nil }

func (o Owner) String() string {
	if o.IsZero() {
		return "none"
	}
	return fmt.Sprintf("pid %d view %s", o.Task, o.Thread)
}

// Locker extends exclusion beyond the process. Lock blocks until held.
type Locker interface {
	Lock() error
	Unlock() error
}

// NopLocker is the Locker of heaps no other process can reach.
type NopLocker struct{}

func (NopLocker) Lock() error   { return nil }
func (NopLocker) Unlock() error { return nil }

// Manager serializes transactions on one SDR.
type Manager struct {
	sem  chan struct{}
	lock Locker

	mu       sync.Mutex
	owner    Owner
	depth    int
	canceled bool
	epoch    uint64
}

// NewManager returns a free manager. A nil lock means NopLocker.
func NewManager(lock Locker) *Manager {
	if lock == nil {
		lock = NopLocker{}
	}
	return &Manager{sem: make(chan struct{}, 1), lock: lock}
}

// Acquire makes o the owner at depth 1, blocking while another owner holds
// the SDR, or raises the depth when o already owns it. It returns the epoch
// of the transaction and the new depth.
func (m *Manager) Acquire(o Owner) (epoch uint64, depth int, err error) {
	if o.IsZero() {
		return 0, 0, fmt.Errorf("acquire for %s: %w", o, ErrNotOwner)
	}
	m.mu.Lock()
	if m.owner == o && m.depth > 0 {
		m.depth++
		epoch, depth = m.epoch, m.depth
		m.mu.Unlock()
		return epoch, depth, nil
	}
	m.mu.Unlock()

	m.sem <- struct{}{}
	if err := m.lock.Lock(); err != nil {
		<-m.sem
		return 0, 0, fmt.Errorf("acquire cross-process lock: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.owner = o
	m.depth = 1
	m.canceled = false
	m.epoch++
	return m.epoch, 1, nil
}

// Leave lowers the depth of o's transaction and returns what remains. At 0
// the caller finishes the transaction and calls Release.
func (m *Manager) Leave(o Owner) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.owner != o || m.depth == 0 {
		return 0, ErrNotOwner
	}
	m.depth--
	return m.depth, nil
}

// Release ends o's ownership and wakes one blocked Acquire.
func (m *Manager) Release(o Owner) error {
	m.mu.Lock()
	if m.owner != o || o.IsZero() {
		m.mu.Unlock()
		return ErrNotOwner
	}
	if m.depth != 0 {
		m.mu.Unlock()
		return fmt.Errorf("release at depth %d: %w", m.depth, ErrDepth)
	}
	m.owner = Owner{}
	m.canceled = false
	m.mu.Unlock()

	err := m.lock.Unlock()
	<-m.sem
	return err
}

// Holds reports whether o owns the transaction whose epoch is epoch.
func (m *Manager) Holds(o Owner, epoch uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.owner == o && m.depth > 0 && m.epoch == epoch
}

// Owner returns the current owner and depth; the zero Owner when free.
func (m *Manager) Owner() (Owner, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.owner, m.depth
}

// Depth returns the depth of o's transaction, 0 if o does not own one.
func (m *Manager) Depth(o Owner) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.owner != o {
		return 0
	}
	return m.depth
}

// SetCanceled marks the current transaction for reversal at its outermost end.
func (m *Manager) SetCanceled() {
	m.mu.Lock()
	m.canceled = true
	m.mu.Unlock()
}

// Canceled reports whether the current transaction is marked for reversal.
func (m *Manager) Canceled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.canceled
}

// Impersonate collapses the current transaction to depth 0 and returns its
// owner, which the caller must Release once the transaction is reversed.
func (m *Manager) Impersonate() (Owner, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.owner.IsZero() {
		return Owner{}, ErrNotOwned
	}
	m.depth = 0
	m.canceled = true
	return m.owner, nil
}
