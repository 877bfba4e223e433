package importer

import (
	"strings"

	"github.com/pearbase/contact-import/internal/catalog"
)

// Detection is the result of auto-detecting a column mapping from headers.
type Detection struct {
	Mapping          ColumnMapping `json:"mapping"`
	HasFirstLastName bool          `json:"hasFirstLastName"`
	FirstNameHeader  string        `json:"firstNameHeader,omitempty"`
	LastNameHeader   string        `json:"lastNameHeader,omitempty"`
}

// Detector proposes a ColumnMapping for a set of source headers using the
// catalog's alias lists. Detection is deterministic and single-pass: fields
// are claimed in header order and each field can be claimed at most once,
// so no two headers ever map to the same target.
type Detector struct {
	cat catalog.Catalog
}

// NewDetector creates a detector over the given catalog.
func NewDetector(cat catalog.Catalog) *Detector {
	return &Detector{cat: cat}
}

// Detect maps each header to a target field, a name-split marker, or skip.
//
// A header matching a first-name or last-name alias is held back from
// normal field matching. After all headers are processed, the pair is
// promoted to FirstNamePart/LastNamePart markers only when both halves are
// present and no other header already claimed full_name; a lone half, or a
// half made redundant by an explicit full-name column, is skipped rather
// than silently overwriting the full-name mapping.
func (d *Detector) Detect(headers []string) Detection {
	det := Detection{Mapping: make(ColumnMapping, len(headers))}
	claimed := make(map[string]bool)

	for _, header := range headers {
		normalized := normalizeHeader(header)

		if matchAlias(normalized, d.cat.FirstNameAliases) {
			if det.FirstNameHeader == "" {
				det.FirstNameHeader = header
			} else {
				det.Mapping[header] = Skip()
			}
			continue
		}

		if matchAlias(normalized, d.cat.LastNameAliases) {
			if det.LastNameHeader == "" {
				det.LastNameHeader = header
			} else {
				det.Mapping[header] = Skip()
			}
			continue
		}

		det.Mapping[header] = Skip()
		for _, field := range d.cat.Fields {
			if claimed[field.Name] {
				continue
			}
			if matchAlias(normalized, field.Aliases) {
				det.Mapping[header] = Field(field.Name)
				claimed[field.Name] = true
				break
			}
		}
	}

	if det.FirstNameHeader != "" && det.LastNameHeader != "" && !claimed[catalog.FieldFullName] {
		det.Mapping[det.FirstNameHeader] = FirstNamePart()
		det.Mapping[det.LastNameHeader] = LastNamePart()
		det.HasFirstLastName = true
	} else {
		if det.FirstNameHeader != "" {
			det.Mapping[det.FirstNameHeader] = Skip()
		}
		if det.LastNameHeader != "" {
			det.Mapping[det.LastNameHeader] = Skip()
		}
	}

	return det
}

// normalizeHeader lowercases, trims, and replaces underscores and hyphens
// with spaces so "First_Name", "first-name" and "First Name" all match.
func normalizeHeader(header string) string {
	h := strings.ToLower(strings.TrimSpace(header))
	h = strings.ReplaceAll(h, "_", " ")
	h = strings.ReplaceAll(h, "-", " ")
	return strings.TrimSpace(h)
}

func matchAlias(normalized string, aliases []string) bool {
	for _, alias := range aliases {
		if normalized == alias {
			return true
		}
	}
	return false
}
