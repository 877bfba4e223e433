package importer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pearbase/contact-import/internal/catalog"
)

func newTestManager(opts Options) *Manager {
	return NewManager(catalog.Default(), &fakeChecker{}, &fakeWriter{}, opts)
}

// ============================================================================
// Manager Tests
// ============================================================================

func TestManager_CreateAndGet(t *testing.T) {
	m := newTestManager(Options{})

	s := m.Create()
	require.NotEmpty(t, s.ID)
	assert.Equal(t, StateIdle, s.State())

	got, err := m.Get(s.ID)
	require.NoError(t, err)
	assert.Same(t, s, got)

	_, err = m.Get("no-such-session")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestManager_SessionsAreIndependent(t *testing.T) {
	m := newTestManager(Options{})

	a := m.Create()
	b := m.Create()
	require.NotEqual(t, a.ID, b.ID)

	_, err := a.Parse([]byte(sampleCSV))
	require.NoError(t, err)

	assert.Equal(t, StateParsed, a.State())
	assert.Equal(t, StateIdle, b.State())
}

func TestManager_Remove(t *testing.T) {
	m := newTestManager(Options{})

	s := m.Create()
	_, err := s.Parse([]byte(sampleCSV))
	require.NoError(t, err)

	m.Remove(s.ID)

	_, err = m.Get(s.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Equal(t, StateIdle, s.State(), "removed session is reset")

	// Removing twice is a no-op.
	m.Remove(s.ID)
}

func TestManager_SubmitRunsImport(t *testing.T) {
	writer := &fakeWriter{}
	m := NewManager(catalog.Default(), &fakeChecker{}, writer, Options{BatchSize: 10})

	s := m.Create()
	_, err := s.Parse([]byte(sampleCSV))
	require.NoError(t, err)
	_, err = s.ConfirmMapping(context.Background(), nil, Defaults{})
	require.NoError(t, err)

	require.NoError(t, m.Submit(context.Background(), s, ImportOptions{}))

	result, err := s.Result(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, result.Created)
}

func TestManager_SubmitReleasesSlotOnStateError(t *testing.T) {
	m := newTestManager(Options{MaxConcurrent: 1, MaxWait: 50 * time.Millisecond})

	s := m.Create()
	err := m.Submit(context.Background(), s, ImportOptions{})
	assert.ErrorIs(t, err, ErrInvalidState)

	// If the failed submit leaked its slot, this one would time out.
	s2 := m.Create()
	err = m.Submit(context.Background(), s2, ImportOptions{})
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.NotErrorIs(t, err, ErrTooManyImports)
}

func TestManager_Reap(t *testing.T) {
	m := newTestManager(Options{SessionTTL: time.Nanosecond})

	s := m.Create()
	time.Sleep(time.Millisecond)

	removed := m.Reap()
	assert.Equal(t, 1, removed)

	_, err := m.Get(s.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestManager_ReapSkipsImportingSessions(t *testing.T) {
	writer := &fakeWriter{blockOnCtx: true}
	m := NewManager(catalog.Default(), &fakeChecker{}, writer, Options{BatchSize: 1, SessionTTL: time.Nanosecond})

	running := m.Create()
	_, err := running.Parse([]byte(sampleCSV))
	require.NoError(t, err)
	_, err = running.ConfirmMapping(context.Background(), nil, Defaults{})
	require.NoError(t, err)
	require.NoError(t, running.Submit(context.Background(), ImportOptions{}))

	deadline := time.After(2 * time.Second)
	for writer.batchCount() < 2 {
		select {
		case <-deadline:
			t.Fatal("writer never reached the blocking batch")
		case <-time.After(time.Millisecond):
		}
	}

	time.Sleep(time.Millisecond)
	assert.Equal(t, 0, m.Reap(), "an importing session must not be reaped")

	require.NoError(t, running.Cancel())
	_, err = running.Result(context.Background())
	require.NoError(t, err)
}
