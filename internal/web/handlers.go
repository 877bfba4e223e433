package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/pearbase/contact-import/internal/importer"
	"github.com/pearbase/contact-import/internal/logging"
)

// errBadRequest marks handler-level input problems so statusFor can return
// 400 for them.
var errBadRequest = errors.New("bad request")

// fieldInfo is the catalog entry shape returned by /api/fields.
type fieldInfo struct {
	Name     string `json:"name"`
	Label    string `json:"label"`
	Required bool   `json:"required"`
}

// handleListFields returns the field catalog the mapping UI offers as
// column targets, plus the category enumeration and defaults.
func (s *Server) handleListFields(w http.ResponseWriter, r *http.Request) {
	cat := s.manager.Catalog()

	fields := make([]fieldInfo, 0, len(cat.Fields))
	for _, f := range cat.Fields {
		fields = append(fields, fieldInfo{Name: f.Name, Label: f.Label, Required: f.Required})
	}

	writeJSON(w, map[string]any{
		"fields":     fields,
		"categories": cat.Categories,
	})
}

// handleCreateImport accepts a multipart file upload, creates a session,
// parses the file, and returns the auto-detected column mapping.
func (s *Server) handleCreateImport(w http.ResponseWriter, r *http.Request) {
	maxSize := s.cfg.Import.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(maxSize); err != nil {
		s.respondError(w, r, uploadError(err, maxSize))
		return
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, r, fmt.Errorf("%w: no file provided", errBadRequest))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, r, uploadError(err, maxSize))
		return
	}

	session := s.manager.Create()
	detection, err := session.Parse(data)
	if err != nil {
		s.manager.Remove(session.ID)
		s.respondError(w, r, err)
		return
	}

	table := session.Table()
	logging.WithFields(r.Context(),
		"session_id", session.ID,
		"rows", table.RowCount(),
	).Info("import session created")

	writeJSON(w, map[string]any{
		"sessionId": session.ID,
		"state":     session.State(),
		"headers":   table.Headers,
		"rowCount":  table.RowCount(),
		"detection": detection,
	})
}

// handleGetImport returns the session's current state snapshot.
func (s *Server) handleGetImport(w http.ResponseWriter, r *http.Request) {
	session, err := s.session(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	snapshot := map[string]any{
		"sessionId": session.ID,
		"state":     session.State(),
	}
	if table := session.Table(); table != nil {
		snapshot["rowCount"] = table.RowCount()
	}
	writeJSON(w, snapshot)
}

// handleGetMapping returns the detected (or last confirmed) column mapping.
func (s *Server) handleGetMapping(w http.ResponseWriter, r *http.Request) {
	session, err := s.session(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	detection, err := session.Detection()
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, detection)
}

type confirmMappingRequest struct {
	Mapping  importer.ColumnMapping `json:"mapping"`
	Defaults importer.Defaults      `json:"defaults"`
}

// handleConfirmMapping accepts the user-adjusted mapping plus defaults and
// returns validation results for every row.
func (s *Server) handleConfirmMapping(w http.ResponseWriter, r *http.Request) {
	session, err := s.session(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	var req confirmMappingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, r, fmt.Errorf("%w: invalid mapping payload: %v", errBadRequest, err))
		return
	}

	validations, err := session.ConfirmMapping(r.Context(), req.Mapping, req.Defaults)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	writeJSON(w, validationSummary(validations))
}

// handleGetValidation returns the current validation results.
func (s *Server) handleGetValidation(w http.ResponseWriter, r *http.Request) {
	session, err := s.session(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	validations, err := session.Validations()
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, validationSummary(validations))
}

// handleRemoveRow discards one row from the review set before submission.
func (s *Server) handleRemoveRow(w http.ResponseWriter, r *http.Request) {
	session, err := s.session(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	rowIndex, err := strconv.Atoi(chi.URLParam(r, "rowIndex"))
	if err != nil {
		s.respondError(w, r, fmt.Errorf("%w: invalid row index", errBadRequest))
		return
	}

	if err := session.RemoveRow(rowIndex); err != nil {
		s.respondError(w, r, err)
		return
	}

	validations, err := session.Validations()
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, validationSummary(validations))
}

// handleSubmit starts the background import with the requested duplicate
// policy. The body is optional; an empty body means fail duplicates as
// unique violations.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	session, err := s.session(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	var opts importer.ImportOptions
	if r.Body != nil {
		if err := json.NewDecoder(r.Body).Decode(&opts); err != nil && !errors.Is(err, io.EOF) {
			s.respondError(w, r, fmt.Errorf("%w: invalid submit payload: %v", errBadRequest, err))
			return
		}
	}

	if err := s.manager.Submit(r.Context(), session, opts); err != nil {
		s.respondError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
	writeJSONBody(w, map[string]any{
		"sessionId": session.ID,
		"state":     session.State(),
		"progress":  session.Progress(),
	})
}

// handleProgress reports the submission counter. With an event-stream Accept
// header it streams updates via Server-Sent Events until the import ends;
// otherwise it returns a single JSON snapshot.
func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	session, err := s.session(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if !strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
		writeJSON(w, session.Progress())
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, session.Progress())
		return
	}

	progressCh := session.SubscribeProgress()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	for {
		select {
		case progress, open := <-progressCh:
			if !open {
				// Channel closed means the import completed or was cancelled.
				fmt.Fprintf(w, "event: complete\ndata: {}\n\n")
				flusher.Flush()
				return
			}
			data, _ := json.Marshal(progress)
			fmt.Fprintf(w, "event: progress\ndata: %s\n\n", data)
			flusher.Flush()

		case <-r.Context().Done():
			return
		}
	}
}

// handleResult blocks until the import finishes and returns the aggregate
// outcome. The request context bounds the wait.
func (s *Server) handleResult(w http.ResponseWriter, r *http.Request) {
	session, err := s.session(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	result, err := session.Result(r.Context())
	if err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, result)
}

// handleCancel stops issuing further submission batches.
func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	session, err := s.session(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	if err := session.Cancel(); err != nil {
		s.respondError(w, r, err)
		return
	}
	writeJSON(w, map[string]string{"status": "cancelled"})
}

// handleErrorReport serves the failed rows as a downloadable CSV.
func (s *Server) handleErrorReport(w http.ResponseWriter, r *http.Request) {
	session, err := s.session(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	report, err := session.ErrorReport()
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="`+importer.ErrorReportFilename+`"`)
	w.Write(report)
}

// handleReset aborts the session back to idle so a new file can be uploaded.
func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	session, err := s.session(r)
	if err != nil {
		s.respondError(w, r, err)
		return
	}

	session.Reset()
	writeJSON(w, map[string]any{
		"sessionId": session.ID,
		"state":     session.State(),
	})
}

// session resolves the sessionID URL parameter.
func (s *Server) session(r *http.Request) (*importer.Session, error) {
	id := chi.URLParam(r, "sessionID")
	if id == "" {
		return nil, fmt.Errorf("%w: missing session ID", errBadRequest)
	}
	return s.manager.Get(id)
}

// validationSummary pairs the per-row results with aggregate counts.
func validationSummary(validations []importer.RowValidation) map[string]any {
	valid, invalid, duplicates := 0, 0, 0
	for _, v := range validations {
		if v.Valid() {
			valid++
		} else {
			invalid++
		}
		if v.IsDuplicate {
			duplicates++
		}
	}

	return map[string]any{
		"rows":       validations,
		"valid":      valid,
		"invalid":    invalid,
		"duplicates": duplicates,
	}
}

// uploadError normalizes body-size failures so they map to the file too
// large message. The multipart reader does not always wrap MaxBytesError,
// so the message text is checked as well.
func uploadError(err error, limit int64) error {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) || strings.Contains(err.Error(), "request body too large") {
		return fmt.Errorf("%w: limit is %d bytes", importer.ErrFileTooBig, limit)
	}
	return fmt.Errorf("%w: invalid upload form: %v", errBadRequest, err)
}
