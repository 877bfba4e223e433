package importer

import (
	"strings"

	"github.com/pearbase/contact-import/internal/catalog"
)

// MaxTags caps the number of tag entries kept per contact.
const MaxTags = 10

// Mapper applies a confirmed column mapping plus user defaults to produce
// one Contact per source row.
type Mapper struct {
	normalizer *CategoryNormalizer
}

// NewMapper creates a mapper that normalizes categories with the given
// normalizer.
func NewMapper(normalizer *CategoryNormalizer) *Mapper {
	return &Mapper{normalizer: normalizer}
}

// MapRow builds a Contact from one parsed row. Headers are processed in
// file column order so a later column deliberately mapped to the same field
// wins deterministically. Name-split columns accumulate into local first
// and last name values and only become full_name when no full-name column
// supplied one. Defaults fill in company and category last; a category the
// normalizer could not place also falls back to the default.
func (m *Mapper) MapRow(headers []string, row Row, mapping ColumnMapping, defaults Defaults) Contact {
	var c Contact
	var firstName, lastName string

	for _, header := range headers {
		target, ok := mapping[header]
		if !ok || target.Kind == TargetSkip {
			continue
		}

		raw := strings.TrimSpace(row[header])
		if raw == "" {
			continue
		}

		switch target.Kind {
		case TargetFirstName:
			firstName = raw
		case TargetLastName:
			lastName = raw
		case TargetField:
			m.setField(&c, target.Field, raw)
		}
	}

	if c.FullName == "" {
		if name := strings.TrimSpace(firstName + " " + lastName); name != "" {
			c.FullName = name
		}
	}

	if c.Company == "" {
		c.Company = defaults.Company
		if c.Company == "" {
			c.Company = catalog.DefaultCompany
		}
	}
	if c.Category == "" {
		c.Category = defaults.Category
		if c.Category == "" {
			c.Category = catalog.DefaultCategory
		}
	}

	return c
}

func (m *Mapper) setField(c *Contact, field, raw string) {
	switch field {
	case catalog.FieldFullName:
		c.FullName = raw
	case catalog.FieldEmail:
		c.Email = raw
	case catalog.FieldCompany:
		c.Company = raw
	case catalog.FieldCategory:
		c.Category = m.normalizer.Normalize(raw)
	case catalog.FieldTitle:
		c.Title = raw
	case catalog.FieldPhone:
		c.Phone = raw
	case catalog.FieldMobile:
		c.Mobile = raw
	case catalog.FieldTags:
		c.Tags = splitTags(raw)
	case catalog.FieldRelationshipNotes:
		c.RelationshipNotes = raw
	case catalog.FieldLinkedInURL:
		c.LinkedInURL = raw
	case catalog.FieldAssistantName:
		c.AssistantName = raw
	case catalog.FieldAssistantEmail:
		c.AssistantEmail = raw
	case catalog.FieldAddressLine1:
		c.AddressLine1 = raw
	case catalog.FieldCity:
		c.City = raw
	case catalog.FieldState:
		c.State = raw
	case catalog.FieldPostalCode:
		c.PostalCode = raw
	case catalog.FieldCountry:
		c.Country = raw
	}
}

// splitTags splits a raw cell on comma, semicolon or pipe, trims each
// piece, drops empties and duplicates, and caps the result at MaxTags.
func splitTags(raw string) []string {
	pieces := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ';' || r == '|'
	})

	seen := make(map[string]struct{}, len(pieces))
	tags := make([]string, 0, len(pieces))
	for _, piece := range pieces {
		tag := strings.TrimSpace(piece)
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
		if len(tags) == MaxTags {
			break
		}
	}

	if len(tags) == 0 {
		return nil
	}
	return tags
}
