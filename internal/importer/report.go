package importer

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"sort"
	"strings"
)

// ErrorReportFilename is the download name for generated error reports.
const ErrorReportFilename = "import-errors.csv"

// ErrorColumn is the extra column appended to the original file's columns
// in the error report.
const ErrorColumn = "_import_error"

// BuildErrorReport re-serializes the failed rows of a parsed table as CSV,
// with one added column holding the row's error messages joined by "; ".
// Multiple errors for the same row index merge into a single output row.
// Rows without errors are excluded.
func BuildErrorReport(table *ParsedTable, errs []RowError) ([]byte, error) {
	messages := make(map[int][]string)
	for _, e := range errs {
		if e.RowIndex < 0 || e.RowIndex >= len(table.Rows) {
			continue
		}
		messages[e.RowIndex] = append(messages[e.RowIndex], e.Message)
	}

	indexes := make([]int, 0, len(messages))
	for idx := range messages {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	header := append(append([]string{}, table.Headers...), ErrorColumn)
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("write report header: %w", err)
	}

	for _, idx := range indexes {
		row := table.Rows[idx]
		record := make([]string, 0, len(table.Headers)+1)
		for _, h := range table.Headers {
			record = append(record, row[h])
		}
		record = append(record, strings.Join(messages[idx], "; "))
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("write report row %d: %w", idx, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush report: %w", err)
	}

	return buf.Bytes(), nil
}
