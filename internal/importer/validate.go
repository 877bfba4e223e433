package importer

import (
	"regexp"
	"strings"

	"github.com/pearbase/contact-import/internal/catalog"
)

// MaxFullNameLength is the longest accepted full_name value.
const MaxFullNameLength = 255

// emailRegex accepts the standard local@domain.tld shape. It deliberately
// stays loose on the local part; the mail provider is the real authority.
var emailRegex = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Validator checks mapped contacts for required fields, format constraints,
// and duplicates against a caller-supplied set of existing emails.
type Validator struct {
	cat catalog.Catalog
}

// NewValidator creates a validator over the given catalog.
func NewValidator(cat catalog.Catalog) *Validator {
	return &Validator{cat: cat}
}

// Validate checks one mapped contact and returns the full list of field
// errors plus the duplicate flag. Data-quality problems never produce a Go
// error; they accumulate on the result.
//
// A LinkedIn URL without a scheme is rewritten with an https:// prefix.
// The rewrite lands on the returned copy; the input contact is untouched.
//
// The category check re-validates a value the mapper already defaulted, so
// with a valid default it cannot fail; it stays as a guard against defaults
// arriving unvalidated.
func (v *Validator) Validate(c Contact, rowIndex int, existingEmails map[string]struct{}) RowValidation {
	result := RowValidation{RowIndex: rowIndex}

	if c.FullName == "" {
		result.Errors = append(result.Errors, FieldError{
			Field:   catalog.FieldFullName,
			Message: "Full name is required",
		})
	} else if len(c.FullName) > MaxFullNameLength {
		result.Errors = append(result.Errors, FieldError{
			Field:   catalog.FieldFullName,
			Message: "Full name must be 255 characters or fewer",
		})
	}

	if c.Email == "" {
		result.Errors = append(result.Errors, FieldError{
			Field:   catalog.FieldEmail,
			Message: "Email is required",
		})
	} else if !emailRegex.MatchString(c.Email) {
		result.Errors = append(result.Errors, FieldError{
			Field:   catalog.FieldEmail,
			Message: "Invalid email format",
		})
	}

	if !v.cat.IsCategory(c.Category) {
		result.Errors = append(result.Errors, FieldError{
			Field:   catalog.FieldCategory,
			Message: "Invalid category",
		})
	}

	if c.LinkedInURL != "" && !strings.HasPrefix(c.LinkedInURL, "http") {
		c.LinkedInURL = "https://" + c.LinkedInURL
	}

	if c.AssistantEmail != "" && !emailRegex.MatchString(c.AssistantEmail) {
		result.Errors = append(result.Errors, FieldError{
			Field:   catalog.FieldAssistantEmail,
			Message: "Invalid assistant email format",
		})
	}

	if c.Email != "" {
		if _, exists := existingEmails[strings.ToLower(c.Email)]; exists {
			result.IsDuplicate = true
		}
	}

	result.Contact = c
	return result
}
