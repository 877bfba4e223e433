package importer

import (
	"strings"

	"github.com/pearbase/contact-import/internal/catalog"
)

// CategoryNormalizer maps free-text category values onto the catalog's
// fixed category enumeration.
type CategoryNormalizer struct {
	canonical map[string]struct{}
	synonyms  map[string]string
}

// NewCategoryNormalizer builds a normalizer from the catalog's category
// list and synonym table.
func NewCategoryNormalizer(cat catalog.Catalog) *CategoryNormalizer {
	canonical := make(map[string]struct{}, len(cat.Categories))
	for _, id := range cat.Categories {
		canonical[id] = struct{}{}
	}
	return &CategoryNormalizer{
		canonical: canonical,
		synonyms:  cat.CategorySynonyms,
	}
}

// Normalize returns the canonical category identifier for a raw value, or
// the empty string when the value matches neither a category identifier nor
// a synonym. Empty input returns the empty string without a table lookup.
// Normalization is idempotent: canonical identifiers map to themselves.
func (n *CategoryNormalizer) Normalize(value string) string {
	v := strings.ToLower(strings.TrimSpace(value))
	if v == "" {
		return ""
	}

	if _, ok := n.canonical[v]; ok {
		return v
	}
	if id, ok := n.synonyms[v]; ok {
		return id
	}
	return ""
}
