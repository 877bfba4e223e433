package importer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Sentinel errors for user-facing file conditions. ErrEmptyFile and
// ErrNoHeaders are checked by the session after a structurally successful
// parse; they are upload problems, not parser defects.
var (
	ErrEmptyFile  = errors.New("empty file: no data rows found")
	ErrNoHeaders  = errors.New("no headers: the first row of the file is empty")
	ErrFileTooBig = errors.New("file too large")
)

// ParseError wraps a structural CSV failure (for example malformed quoting)
// with the underlying parser message. Callers never receive a partial table.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("invalid csv: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Parse turns raw delimited text (comma or tab separated) into a ParsedTable.
//
// The input is cleaned before parsing: a UTF-8 BOM is stripped and invalid
// UTF-8 sequences are replaced, so files exported from Windows tools parse
// like everything else. The first non-empty line is the header row; header
// cells are trimmed. Empty lines are skipped entirely. A data row shorter
// than the header yields empty-string values for the missing columns.
func Parse(data []byte) (*ParsedTable, error) {
	data = sanitizeUTF8(skipBOM(data))

	r := csv.NewReader(bytes.NewReader(data))
	r.Comma = detectDelimiter(data)
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, &ParseError{Err: err}
	}

	table := &ParsedTable{}
	for _, record := range records {
		if isEmptyRecord(record) {
			continue
		}

		// First non-empty record is the header row.
		if table.Headers == nil {
			headers := make([]string, len(record))
			for i, cell := range record {
				headers[i] = strings.TrimSpace(cell)
			}
			table.Headers = headers
			continue
		}

		row := make(Row, len(table.Headers))
		for i, header := range table.Headers {
			if i < len(record) {
				row[header] = record[i]
			} else {
				row[header] = ""
			}
		}
		table.Rows = append(table.Rows, row)
	}

	return table, nil
}

// detectDelimiter picks comma or tab by counting candidates in the first
// non-empty line. Tab wins only when it outnumbers commas, so plain CSV
// files with embedded tabs still parse as CSV.
func detectDelimiter(data []byte) rune {
	for _, line := range bytes.Split(data, []byte("\n")) {
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		if bytes.Count(line, []byte("\t")) > bytes.Count(line, []byte(",")) {
			return '\t'
		}
		return ','
	}
	return ','
}

// skipBOM removes a leading UTF-8 byte order mark.
func skipBOM(data []byte) []byte {
	return bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
}

// sanitizeUTF8 replaces invalid UTF-8 sequences with the Unicode
// replacement character. Valid input is returned unchanged.
func sanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}

	var buf bytes.Buffer
	buf.Grow(len(data))

	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune('�')
			data = data[1:]
		} else {
			buf.WriteRune(r)
			data = data[size:]
		}
	}

	return buf.Bytes()
}

func isEmptyRecord(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
