package importer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pearbase/contact-import/internal/catalog"
)

// fakeChecker returns a fixed set of existing emails and records lookups.
type fakeChecker struct {
	existing map[string]struct{}
	err      error

	mu    sync.Mutex
	calls [][]string
}

func (f *fakeChecker) ExistingEmails(ctx context.Context, emails []string) (map[string]struct{}, error) {
	f.mu.Lock()
	f.calls = append(f.calls, emails)
	f.mu.Unlock()

	if f.err != nil {
		return nil, f.err
	}
	if f.existing == nil {
		return map[string]struct{}{}, nil
	}
	return f.existing, nil
}

// fakeWriter records submitted batches and synthesizes per-batch results.
// When blockOnCtx is set, every call after the first waits for cancellation
// and returns the context error.
type fakeWriter struct {
	existing   map[string]struct{} // lowercased emails treated as duplicates
	err        error
	blockOnCtx bool

	mu      sync.Mutex
	batches [][]SubmitRecord
}

func (f *fakeWriter) ImportContacts(ctx context.Context, records []SubmitRecord, opts ImportOptions) (BatchResult, error) {
	f.mu.Lock()
	call := len(f.batches)
	f.batches = append(f.batches, records)
	f.mu.Unlock()

	if f.err != nil {
		return BatchResult{}, f.err
	}
	if f.blockOnCtx && call > 0 {
		<-ctx.Done()
		return BatchResult{}, ctx.Err()
	}

	var br BatchResult
	for _, rec := range records {
		if _, dup := f.existing[strings.ToLower(rec.Contact.Email)]; dup {
			if opts.UpdateDuplicates {
				br.Updated++
			} else {
				br.Skipped++
			}
			continue
		}
		br.Created++
	}
	return br, nil
}

func (f *fakeWriter) batchCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.batches)
}

func newTestSession(checker DuplicateChecker, writer ContactWriter, batchSize int) *Session {
	cat := catalog.Default()
	return &Session{
		ID:        "test-session",
		detector:  NewDetector(cat),
		mapper:    NewMapper(NewCategoryNormalizer(cat)),
		validator: NewValidator(cat),
		checker:   checker,
		writer:    writer,
		batchSize: batchSize,
		state:     StateIdle,
	}
}

const sampleCSV = "First Name,Last Name,Email,Company,Category\n" +
	"Ada,Lovelace,ada@example.com,Analytical Engines,client\n" +
	"Alan,Turing,alan@example.com,Bletchley,Customer\n" +
	"Grace,Hopper,not-an-email,Navy,vendor\n" +
	"Edsger,Dijkstra,edsger@example.com,,\n"

// ============================================================================
// Lifecycle Tests
// ============================================================================

func TestSession_FullLifecycle(t *testing.T) {
	checker := &fakeChecker{existing: map[string]struct{}{"alan@example.com": {}}}
	writer := &fakeWriter{existing: map[string]struct{}{"alan@example.com": {}}}
	s := newTestSession(checker, writer, 2)

	require.Equal(t, StateIdle, s.State())

	det, err := s.Parse([]byte(sampleCSV))
	require.NoError(t, err)
	require.Equal(t, StateParsed, s.State())
	assert.True(t, det.HasFirstLastName)
	assert.Equal(t, Field(catalog.FieldEmail), det.Mapping["Email"])

	validations, err := s.ConfirmMapping(context.Background(), nil, Defaults{Category: "partner"})
	require.NoError(t, err)
	require.Equal(t, StateValidated, s.State())
	require.Len(t, validations, 4)

	// Row 0: clean.
	assert.True(t, validations[0].Valid())
	assert.Equal(t, "Ada Lovelace", validations[0].Contact.FullName)
	assert.False(t, validations[0].IsDuplicate)

	// Row 1: valid but its email already exists.
	assert.True(t, validations[1].Valid())
	assert.True(t, validations[1].IsDuplicate)
	assert.Equal(t, "client", validations[1].Contact.Category, "synonym normalized")

	// Row 2: bad email.
	assert.False(t, validations[2].Valid())

	// Row 3: empty company and category filled from defaults.
	assert.True(t, validations[3].Valid())
	assert.Equal(t, catalog.DefaultCompany, validations[3].Contact.Company)
	assert.Equal(t, "partner", validations[3].Contact.Category)

	// One duplicate lookup, carrying every non-empty email.
	require.Len(t, checker.calls, 1)
	assert.Len(t, checker.calls[0], 4)

	require.NoError(t, s.Submit(context.Background(), ImportOptions{SkipDuplicates: true}))

	result, err := s.Result(context.Background())
	require.NoError(t, err)
	require.Equal(t, StateDone, s.State())

	// The invalid row never reaches the writer.
	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 0, result.Failed)

	// Batch size 2 over 3 records means two writer calls.
	assert.Equal(t, 2, writer.batchCount())

	p := s.Progress()
	assert.Equal(t, Progress{Current: 3, Total: 3}, p)
}

func TestSession_StateGuards(t *testing.T) {
	s := newTestSession(&fakeChecker{}, &fakeWriter{}, 10)

	_, err := s.ConfirmMapping(context.Background(), nil, Defaults{})
	assert.ErrorIs(t, err, ErrInvalidState)

	err = s.Submit(context.Background(), ImportOptions{})
	assert.ErrorIs(t, err, ErrInvalidState)

	err = s.RemoveRow(0)
	assert.ErrorIs(t, err, ErrInvalidState)

	err = s.Cancel()
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = s.Detection()
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = s.Result(context.Background())
	assert.ErrorIs(t, err, ErrInvalidState)

	// Parse twice is rejected.
	_, err = s.Parse([]byte(sampleCSV))
	require.NoError(t, err)
	_, err = s.Parse([]byte(sampleCSV))
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestSession_ParseRejectsEmptyAndHeaderlessFiles(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr error
	}{
		{name: "blank file", data: "", wantErr: ErrNoHeaders},
		{name: "whitespace only", data: "\n\n  \n", wantErr: ErrNoHeaders},
		{name: "headers without rows", data: "Name,Email\n", wantErr: ErrEmptyFile},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSession(&fakeChecker{}, &fakeWriter{}, 10)
			_, err := s.Parse([]byte(tt.data))
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Equal(t, StateIdle, s.State(), "failed parse must leave the session idle")
		})
	}
}

func TestSession_ConfirmMappingPropagatesCheckerError(t *testing.T) {
	checker := &fakeChecker{err: errors.New("database down")}
	s := newTestSession(checker, &fakeWriter{}, 10)

	_, err := s.Parse([]byte(sampleCSV))
	require.NoError(t, err)

	_, err = s.ConfirmMapping(context.Background(), nil, Defaults{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate check")
	assert.Equal(t, StateMapped, s.State())
}

func TestSession_ReconfirmMappingReplacesValidations(t *testing.T) {
	s := newTestSession(&fakeChecker{}, &fakeWriter{}, 10)

	_, err := s.Parse([]byte(sampleCSV))
	require.NoError(t, err)

	first, err := s.ConfirmMapping(context.Background(), nil, Defaults{})
	require.NoError(t, err)
	require.Len(t, first, 4)

	// Remap everything except email to skip; names go missing.
	mapping := ColumnMapping{"Email": Field(catalog.FieldEmail)}
	second, err := s.ConfirmMapping(context.Background(), mapping, Defaults{})
	require.NoError(t, err)
	require.Len(t, second, 4)
	assert.False(t, second[0].Valid(), "full name should now be missing")
	assert.Equal(t, StateValidated, s.State())
}

// ============================================================================
// RemoveRow Tests
// ============================================================================

func TestSession_RemoveRow(t *testing.T) {
	s := newTestSession(&fakeChecker{}, &fakeWriter{}, 10)

	_, err := s.Parse([]byte(sampleCSV))
	require.NoError(t, err)
	_, err = s.ConfirmMapping(context.Background(), nil, Defaults{})
	require.NoError(t, err)

	require.NoError(t, s.RemoveRow(1))

	validations, err := s.Validations()
	require.NoError(t, err)
	require.Len(t, validations, 3)
	for _, v := range validations {
		assert.NotEqual(t, 1, v.RowIndex)
	}

	// Indexes identify source rows, not positions in the remaining slice.
	require.NoError(t, s.RemoveRow(3))
	err = s.RemoveRow(3)
	assert.ErrorContains(t, err, "not found")
}

// ============================================================================
// Submission Tests
// ============================================================================

func TestSession_SubmitWriterFailureRecordsRows(t *testing.T) {
	writer := &fakeWriter{err: errors.New("insert failed")}
	s := newTestSession(&fakeChecker{}, writer, 2)

	_, err := s.Parse([]byte(sampleCSV))
	require.NoError(t, err)
	_, err = s.ConfirmMapping(context.Background(), nil, Defaults{})
	require.NoError(t, err)

	require.NoError(t, s.Submit(context.Background(), ImportOptions{}))

	result, err := s.Result(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateDone, s.State())
	assert.Equal(t, 3, result.Failed)
	require.Len(t, result.Errors, 3)
	for _, re := range result.Errors {
		assert.Contains(t, re.Message, "insert failed")
		assert.NotEqual(t, 2, re.RowIndex, "the invalid source row was never submitted")
	}
}

func TestSession_UpdateDuplicatesPolicy(t *testing.T) {
	dup := map[string]struct{}{"alan@example.com": {}}
	writer := &fakeWriter{existing: dup}
	s := newTestSession(&fakeChecker{existing: dup}, writer, 10)

	_, err := s.Parse([]byte(sampleCSV))
	require.NoError(t, err)
	_, err = s.ConfirmMapping(context.Background(), nil, Defaults{})
	require.NoError(t, err)

	require.NoError(t, s.Submit(context.Background(), ImportOptions{UpdateDuplicates: true}))

	result, err := s.Result(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 1, result.Updated)
	assert.Equal(t, 0, result.Skipped)
}

func TestSession_CancelStopsRemainingBatches(t *testing.T) {
	writer := &fakeWriter{blockOnCtx: true}
	s := newTestSession(&fakeChecker{}, writer, 1)

	_, err := s.Parse([]byte(sampleCSV))
	require.NoError(t, err)
	_, err = s.ConfirmMapping(context.Background(), nil, Defaults{})
	require.NoError(t, err)

	require.NoError(t, s.Submit(context.Background(), ImportOptions{}))

	// Wait for the writer to start its second (blocking) batch.
	deadline := time.After(2 * time.Second)
	for writer.batchCount() < 2 {
		select {
		case <-deadline:
			t.Fatal("writer never reached the second batch")
		case <-time.After(time.Millisecond):
		}
	}

	require.NoError(t, s.Cancel())

	result, err := s.Result(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateCancelled, s.State())

	// Batch one was acknowledged before the cancel and stays imported.
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 2, writer.batchCount(), "no further batches after cancellation")
}

func TestSession_SubmitSurvivesCallerContextCancel(t *testing.T) {
	writer := &fakeWriter{}
	s := newTestSession(&fakeChecker{}, writer, 10)

	_, err := s.Parse([]byte(sampleCSV))
	require.NoError(t, err)
	_, err = s.ConfirmMapping(context.Background(), nil, Defaults{})
	require.NoError(t, err)

	// The request context ends as soon as Submit returns; the import must
	// keep running on its own context.
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Submit(ctx, ImportOptions{}))
	cancel()

	result, err := s.Result(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StateDone, s.State())
	assert.Equal(t, 3, result.Created)
}

// ============================================================================
// Progress Tests
// ============================================================================

func TestSession_SubscribeProgress(t *testing.T) {
	writer := &fakeWriter{}
	s := newTestSession(&fakeChecker{}, writer, 1)

	_, err := s.Parse([]byte(sampleCSV))
	require.NoError(t, err)
	_, err = s.ConfirmMapping(context.Background(), nil, Defaults{})
	require.NoError(t, err)

	ch := s.SubscribeProgress()

	require.NoError(t, s.Submit(context.Background(), ImportOptions{}))

	_, err = s.Result(context.Background())
	require.NoError(t, err)

	var last Progress
	received := 0
	for p := range ch {
		last = p
		received++
	}

	assert.Greater(t, received, 0, "expected at least one progress update")
	assert.Equal(t, Progress{Current: 3, Total: 3}, last)
}

// ============================================================================
// Error Report Tests
// ============================================================================

func TestSession_ErrorReport(t *testing.T) {
	writer := &fakeWriter{}
	s := newTestSession(&fakeChecker{}, writer, 10)

	_, err := s.ErrorReport()
	assert.ErrorIs(t, err, ErrInvalidState)

	_, err = s.Parse([]byte(sampleCSV))
	require.NoError(t, err)
	_, err = s.ConfirmMapping(context.Background(), nil, Defaults{})
	require.NoError(t, err)

	report, err := s.ErrorReport()
	require.NoError(t, err)

	text := string(report)
	assert.Contains(t, text, ErrorColumn)
	assert.Contains(t, text, "not-an-email")
	assert.Contains(t, text, "Invalid email format")
	assert.NotContains(t, text, "ada@example.com", "clean rows stay out of the report")
}

// ============================================================================
// Reset Tests
// ============================================================================

func TestSession_Reset(t *testing.T) {
	s := newTestSession(&fakeChecker{}, &fakeWriter{}, 10)

	_, err := s.Parse([]byte(sampleCSV))
	require.NoError(t, err)
	_, err = s.ConfirmMapping(context.Background(), nil, Defaults{})
	require.NoError(t, err)

	s.Reset()

	assert.Equal(t, StateIdle, s.State())
	assert.Nil(t, s.Table())
	assert.Equal(t, Progress{}, s.Progress())

	// A reset session accepts a fresh upload.
	_, err = s.Parse([]byte(sampleCSV))
	require.NoError(t, err)
}
