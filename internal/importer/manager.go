package importer

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pearbase/contact-import/internal/catalog"
)

// ErrSessionNotFound is returned for unknown or expired session IDs.
var ErrSessionNotFound = errors.New("session not found")

// DefaultBatchSize is the number of records handed to the submission
// collaborator per call.
const DefaultBatchSize = 25

// DefaultSessionTTL is how long a finished or idle session survives before
// the reaper removes it.
const DefaultSessionTTL = 30 * time.Minute

// Options configure a Manager.
type Options struct {
	BatchSize     int           // records per submission call (default 25)
	MaxConcurrent int           // parallel submissions (default 5)
	MaxWait       time.Duration // wait for a submission slot (default 30s)
	SessionTTL    time.Duration // idle session lifetime (default 30m)
}

// Manager creates and tracks import sessions. Each session gets its own
// detector/mapper/validator wired to a shared catalog, duplicate checker,
// and contact writer.
type Manager struct {
	cat       catalog.Catalog
	checker   DuplicateChecker
	writer    ContactWriter
	batchSize int
	ttl       time.Duration
	limiter   *importLimiter

	mu       sync.RWMutex
	sessions map[string]*managedSession
}

type managedSession struct {
	session  *Session
	lastSeen time.Time
}

// NewManager creates a Manager over the given catalog and collaborators.
func NewManager(cat catalog.Catalog, checker DuplicateChecker, writer ContactWriter, opts Options) *Manager {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = DefaultSessionTTL
	}

	return &Manager{
		cat:       cat,
		checker:   checker,
		writer:    writer,
		batchSize: opts.BatchSize,
		ttl:       opts.SessionTTL,
		limiter:   newImportLimiter(opts.MaxConcurrent, opts.MaxWait),
		sessions:  make(map[string]*managedSession),
	}
}

// Catalog returns the field catalog sessions are built on.
func (m *Manager) Catalog() catalog.Catalog {
	return m.cat
}

// Create registers a new idle session and returns it.
func (m *Manager) Create() *Session {
	normalizer := NewCategoryNormalizer(m.cat)
	s := &Session{
		ID:        uuid.New().String(),
		detector:  NewDetector(m.cat),
		mapper:    NewMapper(normalizer),
		validator: NewValidator(m.cat),
		checker:   m.checker,
		writer:    m.writer,
		batchSize: m.batchSize,
		state:     StateIdle,
	}

	m.mu.Lock()
	m.sessions[s.ID] = &managedSession{session: s, lastSeen: time.Now()}
	m.mu.Unlock()

	return s
}

// Get returns a session by ID and refreshes its expiry.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ms, ok := m.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	ms.lastSeen = time.Now()
	return ms.session, nil
}

// Remove resets and forgets a session.
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	ms, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if ok {
		ms.session.Reset()
	}
}

// Submit starts a session's import under the concurrency limiter. The
// limiter slot is held until the background import finishes.
func (m *Manager) Submit(ctx context.Context, s *Session, opts ImportOptions) error {
	if err := m.limiter.Acquire(ctx); err != nil {
		return err
	}

	if err := s.Submit(ctx, opts); err != nil {
		m.limiter.Release()
		return err
	}

	go func() {
		defer m.limiter.Release()
		_, _ = s.Result(context.Background())
	}()

	return nil
}

// Reap removes sessions idle longer than the TTL, skipping sessions with a
// running import. It returns the number removed.
func (m *Manager) Reap() int {
	cutoff := time.Now().Add(-m.ttl)

	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, ms := range m.sessions {
		if ms.lastSeen.After(cutoff) {
			continue
		}
		if ms.session.State() == StateImporting {
			continue
		}
		delete(m.sessions, id)
		removed++
	}
	return removed
}

// StartReaper runs Reap on the given interval until ctx is cancelled.
func (m *Manager) StartReaper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.Reap()
			}
		}
	}()
}
