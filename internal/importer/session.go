package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// State is the position of an import session in its lifecycle.
//
// Transitions:
//
//	Idle → Parsed → Mapped → Validated → Importing → Done
//	                                     Importing → Cancelled
//	any state → Idle on Reset
//
// No transition skips a stage. Re-confirming the mapping from Validated
// goes back through Mapped and re-derives validation from scratch.
type State string

const (
	StateIdle      State = "idle"
	StateParsed    State = "parsed"
	StateMapped    State = "mapped"
	StateValidated State = "validated"
	StateImporting State = "importing"
	StateDone      State = "done"
	StateCancelled State = "cancelled"
)

// ErrInvalidState is returned when a command arrives in the wrong state.
var ErrInvalidState = errors.New("invalid state for this action")

// ErrRowNotFound is returned by RemoveRow for an unknown source row index.
var ErrRowNotFound = errors.New("row not found")

// Session owns one uploaded file from parse through final result. All
// state is private to the session; callers drive it through the command
// methods and never share a session across imports.
type Session struct {
	ID string

	detector  *Detector
	mapper    *Mapper
	validator *Validator
	checker   DuplicateChecker
	writer    ContactWriter
	batchSize int

	mu          sync.RWMutex
	state       State
	table       *ParsedTable
	detection   Detection
	mapping     ColumnMapping
	defaults    Defaults
	validations []RowValidation
	result      *ImportResult
	progress    Progress

	listenerMu sync.Mutex
	listeners  []chan Progress

	cancel context.CancelFunc
	done   chan struct{}
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Parse ingests raw file bytes, parses them, and runs column auto-detection.
// Structural parse failures, empty files, and headerless files all surface
// as errors and leave the session in Idle; the user must re-upload.
func (s *Session) Parse(data []byte) (Detection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateIdle {
		return Detection{}, fmt.Errorf("%w: parse requires a fresh session (state %s)", ErrInvalidState, s.state)
	}

	table, err := Parse(data)
	if err != nil {
		return Detection{}, err
	}
	if len(table.Headers) == 0 {
		return Detection{}, ErrNoHeaders
	}
	if table.RowCount() == 0 {
		return Detection{}, ErrEmptyFile
	}

	s.table = table
	s.detection = s.detector.Detect(table.Headers)
	s.mapping = s.detection.Mapping
	s.state = StateParsed

	slog.Info("file parsed",
		"session_id", s.ID,
		"headers", len(table.Headers),
		"rows", table.RowCount(),
	)

	return s.detection, nil
}

// Table returns the parsed table, or nil before Parse.
func (s *Session) Table() *ParsedTable {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.table
}

// Detection returns the auto-detected mapping proposal from Parse.
func (s *Session) Detection() (Detection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == StateIdle {
		return Detection{}, fmt.Errorf("%w: no file parsed yet", ErrInvalidState)
	}
	return s.detection, nil
}

// ConfirmMapping accepts the user-adjusted mapping and defaults, maps every
// row, awaits the duplicate-check lookup, and validates the mapped rows.
// It may be called again from Validated to re-derive everything after a
// mapping change; prior validation results are discarded.
func (s *Session) ConfirmMapping(ctx context.Context, mapping ColumnMapping, defaults Defaults) ([]RowValidation, error) {
	s.mu.Lock()
	switch s.state {
	case StateParsed, StateMapped, StateValidated:
	default:
		state := s.state
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: cannot confirm mapping in state %s", ErrInvalidState, state)
	}

	if mapping != nil {
		s.mapping = mapping
	}
	s.defaults = defaults
	s.state = StateMapped
	s.validations = nil

	table := s.table
	useMapping := s.mapping
	useDefaults := s.defaults
	s.mu.Unlock()

	contacts := make([]Contact, table.RowCount())
	emails := make([]string, 0, table.RowCount())
	for i, row := range table.Rows {
		contacts[i] = s.mapper.MapRow(table.Headers, row, useMapping, useDefaults)
		if contacts[i].Email != "" {
			emails = append(emails, contacts[i].Email)
		}
	}

	// Validation must not start with a partial or stale existing-email set,
	// so the lookup completes first.
	existing, err := s.checker.ExistingEmails(ctx, emails)
	if err != nil {
		return nil, fmt.Errorf("duplicate check: %w", err)
	}

	validations := make([]RowValidation, table.RowCount())
	for i, contact := range contacts {
		validations[i] = s.validator.Validate(contact, i, existing)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateMapped {
		// Reset raced the validation pass; drop the results.
		return nil, fmt.Errorf("%w: session was reset during validation", ErrInvalidState)
	}
	s.validations = validations
	s.state = StateValidated

	slog.Info("rows validated",
		"session_id", s.ID,
		"rows", len(validations),
		"invalid", countInvalid(validations),
	)

	return validations, nil
}

// Validations returns the current validation results.
func (s *Session) Validations() ([]RowValidation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != StateValidated && s.state != StateImporting && s.state != StateDone && s.state != StateCancelled {
		return nil, fmt.Errorf("%w: no validation results in state %s", ErrInvalidState, s.state)
	}
	return s.validations, nil
}

// RemoveRow discards one row from the review set before submission. Rows
// are identified by their original source row index.
func (s *Session) RemoveRow(rowIndex int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateValidated {
		return fmt.Errorf("%w: rows can only be removed during review (state %s)", ErrInvalidState, s.state)
	}

	for i, v := range s.validations {
		if v.RowIndex == rowIndex {
			s.validations = append(s.validations[:i], s.validations[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: row %d", ErrRowNotFound, rowIndex)
}

// Submit starts the import in the background and returns immediately.
// Only rows with zero validation errors are submitted; error-free duplicate
// rows are included and the writer applies the skip/update policy from
// opts. Use Result to wait for completion and Progress or
// SubscribeProgress to observe the batch counter.
func (s *Session) Submit(ctx context.Context, opts ImportOptions) error {
	s.mu.Lock()

	if s.state != StateImporting && s.state != StateValidated {
		state := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: submit requires validated rows (state %s)", ErrInvalidState, state)
	}
	if s.state == StateImporting {
		s.mu.Unlock()
		return fmt.Errorf("%w: import already running", ErrInvalidState)
	}

	var records []SubmitRecord
	for _, v := range s.validations {
		if v.Valid() {
			records = append(records, SubmitRecord{RowIndex: v.RowIndex, Contact: v.Contact})
		}
	}

	importCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	s.state = StateImporting
	s.progress = Progress{Current: 0, Total: len(records)}
	s.mu.Unlock()

	go s.runImport(importCtx, done, records, opts)
	return nil
}

// runImport submits records in batches, checking for cancellation between
// batches. Work already acknowledged by the writer is never rolled back.
func (s *Session) runImport(ctx context.Context, done chan struct{}, records []SubmitRecord, opts ImportOptions) {
	start := time.Now()
	result := &ImportResult{Total: len(records)}
	cancelled := false

	defer func() {
		s.mu.Lock()
		// A concurrent Reset already moved the session on; keep its state.
		if s.state == StateImporting {
			s.result = result
			if cancelled {
				s.state = StateCancelled
			} else {
				s.state = StateDone
			}
		}
		s.mu.Unlock()

		s.notifyProgress()
		s.closeListeners()
		close(done)

		slog.Info("import finished",
			"session_id", s.ID,
			"created", result.Created,
			"updated", result.Updated,
			"skipped", result.Skipped,
			"failed", result.Failed,
			"cancelled", cancelled,
			"duration", time.Since(start),
		)
	}()

	for offset := 0; offset < len(records); offset += s.batchSize {
		if ctx.Err() != nil {
			cancelled = true
			return
		}

		end := offset + s.batchSize
		if end > len(records) {
			end = len(records)
		}
		batch := records[offset:end]

		br, err := s.writer.ImportContacts(ctx, batch, opts)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				cancelled = true
				return
			}
			// The whole batch failed; record each row and keep going.
			for _, rec := range batch {
				result.Failed++
				result.Errors = append(result.Errors, RowError{
					RowIndex: rec.RowIndex,
					Message:  err.Error(),
				})
			}
		} else {
			result.Created += br.Created
			result.Updated += br.Updated
			result.Skipped += br.Skipped
			result.Failed += br.Failed
			result.Errors = append(result.Errors, br.Errors...)
		}

		s.mu.Lock()
		s.progress.Current = end
		s.mu.Unlock()
		s.notifyProgress()
	}
}

// Cancel stops issuing further submission batches. Rows already
// acknowledged by the writer remain imported.
func (s *Session) Cancel() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.state != StateImporting || s.cancel == nil {
		return fmt.Errorf("%w: no import in progress", ErrInvalidState)
	}
	s.cancel()
	return nil
}

// Result blocks until the running import completes and returns the
// aggregate outcome. Calling it after completion returns the stored result.
func (s *Session) Result(ctx context.Context) (*ImportResult, error) {
	s.mu.RLock()
	done := s.done
	result := s.result
	state := s.state
	s.mu.RUnlock()

	if result != nil {
		return result, nil
	}
	if done == nil {
		return nil, fmt.Errorf("%w: no import started (state %s)", ErrInvalidState, state)
	}

	select {
	case <-done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result, nil
}

// Progress returns the current submission counter without blocking.
func (s *Session) Progress() Progress {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.progress
}

// SubscribeProgress returns a channel receiving progress updates. The
// channel is closed when the import completes or is cancelled.
func (s *Session) SubscribeProgress() <-chan Progress {
	ch := make(chan Progress, 10)

	s.listenerMu.Lock()
	s.listeners = append(s.listeners, ch)
	s.listenerMu.Unlock()

	// Send the current snapshot immediately.
	select {
	case ch <- s.Progress():
	default:
	}

	return ch
}

// ErrorReport serializes the rows that failed validation or submission as
// a downloadable CSV with an _import_error column. Available once
// validation has run.
func (s *Session) ErrorReport() ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.table == nil || s.validations == nil {
		return nil, fmt.Errorf("%w: nothing to report in state %s", ErrInvalidState, s.state)
	}

	var errs []RowError
	for _, v := range s.validations {
		for _, fe := range v.Errors {
			errs = append(errs, RowError{RowIndex: v.RowIndex, Message: fe.Message})
		}
	}
	if s.result != nil {
		errs = append(errs, s.result.Errors...)
	}

	return BuildErrorReport(s.table, errs)
}

// Reset aborts the session back to Idle from any state, cancelling a
// running import first. The parsed table, mapping, and validation results
// are discarded.
func (s *Session) Reset() {
	s.mu.Lock()
	if s.cancel != nil && s.state == StateImporting {
		s.cancel()
	}
	s.state = StateIdle
	s.table = nil
	s.detection = Detection{}
	s.mapping = nil
	s.defaults = Defaults{}
	s.validations = nil
	s.result = nil
	s.progress = Progress{}
	s.cancel = nil
	s.done = nil
	s.mu.Unlock()

	s.closeListeners()
}

// notifyProgress fans the current progress out to all listeners. Slow
// listeners miss updates rather than blocking the import loop.
func (s *Session) notifyProgress() {
	p := s.Progress()

	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()
	for _, ch := range s.listeners {
		select {
		case ch <- p:
		default:
		}
	}
}

func (s *Session) closeListeners() {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()
	for _, ch := range s.listeners {
		close(ch)
	}
	s.listeners = nil
}

func countInvalid(validations []RowValidation) int {
	n := 0
	for _, v := range validations {
		if !v.Valid() {
			n++
		}
	}
	return n
}
