// Package importer implements the contact CSV import pipeline: parsing,
// column auto-detection, row mapping, validation, duplicate flagging,
// batched submission, and error report generation.
//
// The pipeline is driven by a Session (see session.go), a finite state
// machine that owns one uploaded file from parse through final result.
// This package has no HTTP or UI dependencies.
package importer

import (
	"context"
	"encoding/json"
	"fmt"
)

// Row is one parsed data row, keyed by header name. Headers missing from a
// short row are present with empty-string values.
type Row map[string]string

// ParsedTable is the immutable result of parsing one uploaded file.
type ParsedTable struct {
	Headers []string // file column order, cells trimmed
	Rows    []Row
}

// RowCount returns the number of data rows.
func (t *ParsedTable) RowCount() int {
	return len(t.Rows)
}

// TargetKind discriminates what a source column maps to.
type TargetKind int

const (
	// TargetSkip marks a column that is not imported.
	TargetSkip TargetKind = iota
	// TargetField maps the column to a named catalog field.
	TargetField
	// TargetFirstName marks a column holding the first half of a split name.
	TargetFirstName
	// TargetLastName marks a column holding the last half of a split name.
	TargetLastName
)

// ColumnTarget is the destination of one source column.
type ColumnTarget struct {
	Kind  TargetKind
	Field string // catalog field name, set only when Kind == TargetField
}

// Skip, Field, FirstNamePart and LastNamePart construct ColumnTargets.
func Skip() ColumnTarget             { return ColumnTarget{Kind: TargetSkip} }
func Field(name string) ColumnTarget { return ColumnTarget{Kind: TargetField, Field: name} }
func FirstNamePart() ColumnTarget    { return ColumnTarget{Kind: TargetFirstName} }
func LastNamePart() ColumnTarget     { return ColumnTarget{Kind: TargetLastName} }

// columnTargetJSON is the wire form of a ColumnTarget.
type columnTargetJSON struct {
	Target string `json:"target"`
	Field  string `json:"field,omitempty"`
}

// MarshalJSON encodes the target as {"target": "skip"|"field"|"first_name"|
// "last_name"} with "field" set for field targets.
func (t ColumnTarget) MarshalJSON() ([]byte, error) {
	j := columnTargetJSON{}
	switch t.Kind {
	case TargetField:
		j.Target = "field"
		j.Field = t.Field
	case TargetFirstName:
		j.Target = "first_name"
	case TargetLastName:
		j.Target = "last_name"
	default:
		j.Target = "skip"
	}
	return json.Marshal(j)
}

// UnmarshalJSON decodes the wire form produced by MarshalJSON.
func (t *ColumnTarget) UnmarshalJSON(data []byte) error {
	var j columnTargetJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	switch j.Target {
	case "", "skip":
		*t = Skip()
	case "field":
		if j.Field == "" {
			return fmt.Errorf("column target %q requires a field name", j.Target)
		}
		*t = Field(j.Field)
	case "first_name":
		*t = FirstNamePart()
	case "last_name":
		*t = LastNamePart()
	default:
		return fmt.Errorf("unknown column target %q", j.Target)
	}
	return nil
}

// ColumnMapping maps each source header to its target. Headers absent from
// the mapping are treated as skipped.
type ColumnMapping map[string]ColumnTarget

// Defaults are the user-chosen fallback values applied when a row lacks a
// company or category after mapping.
type Defaults struct {
	Category string `json:"category"`
	Company  string `json:"company"`
}

// Contact is one candidate contact record produced from a single source row.
// FullName, Email, Company and Category are always present after mapping
// (possibly as empty string for the required name/email); the remaining
// fields are omitted from JSON when empty.
type Contact struct {
	FullName          string   `json:"full_name"`
	Email             string   `json:"email"`
	Company           string   `json:"company"`
	Category          string   `json:"category"`
	Title             string   `json:"title,omitempty"`
	Phone             string   `json:"phone,omitempty"`
	Mobile            string   `json:"mobile,omitempty"`
	Tags              []string `json:"tags,omitempty"`
	RelationshipNotes string   `json:"relationship_notes,omitempty"`
	LinkedInURL       string   `json:"linkedin_url,omitempty"`
	AssistantName     string   `json:"assistant_name,omitempty"`
	AssistantEmail    string   `json:"assistant_email,omitempty"`
	AddressLine1      string   `json:"address_line1,omitempty"`
	City              string   `json:"city,omitempty"`
	State             string   `json:"state,omitempty"`
	PostalCode        string   `json:"postal_code,omitempty"`
	Country           string   `json:"country,omitempty"`
}

// FieldError is a single validation error attached to one field of a row.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// RowValidation is the validation outcome for one mapped row.
type RowValidation struct {
	RowIndex    int          `json:"rowIndex"` // 0-based index into ParsedTable.Rows
	Contact     Contact      `json:"data"`
	Errors      []FieldError `json:"errors"`
	IsDuplicate bool         `json:"isDuplicate"`
}

// Valid reports whether the row has no validation errors. Duplicate rows
// with no errors are still valid; duplicate policy is decided at submission.
func (v RowValidation) Valid() bool {
	return len(v.Errors) == 0
}

// RowError is a per-row failure message keyed by source row index.
type RowError struct {
	RowIndex int    `json:"rowIndex"`
	Message  string `json:"message"`
}

// ImportOptions control how the submission collaborator treats rows whose
// email already exists.
type ImportOptions struct {
	SkipDuplicates   bool `json:"skipDuplicates"`
	UpdateDuplicates bool `json:"updateDuplicates"`
}

// SubmitRecord is one row handed to the submission collaborator, carrying
// its source row index so failures stay traceable to the original file.
type SubmitRecord struct {
	RowIndex int
	Contact  Contact
}

// BatchResult is the outcome of submitting one batch of records.
type BatchResult struct {
	Created int
	Updated int
	Skipped int
	Failed  int
	Errors  []RowError
}

// ImportResult is the aggregate outcome of one import run.
type ImportResult struct {
	Total   int        `json:"total"`
	Created int        `json:"created"`
	Updated int        `json:"updated"`
	Skipped int        `json:"skipped"`
	Failed  int        `json:"failed"`
	Errors  []RowError `json:"errors,omitempty"`
}

// Progress is the submission counter reported to listeners: current rows
// handed to the submission collaborator out of total rows to submit.
type Progress struct {
	Current int `json:"current"`
	Total   int `json:"total"`
}

// DuplicateChecker looks up which of the given emails already exist.
// Returned set keys are lowercased emails.
type DuplicateChecker interface {
	ExistingEmails(ctx context.Context, emails []string) (map[string]struct{}, error)
}

// ContactWriter is the external create/update collaborator. It must apply
// the duplicate policy from opts and report per-row failures without
// aborting the batch.
type ContactWriter interface {
	ImportContacts(ctx context.Context, records []SubmitRecord, opts ImportOptions) (BatchResult, error)
}
