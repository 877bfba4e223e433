// Package catalog declares the contact field catalog: the target fields an
// import can populate, which of them are required, the header aliases used
// for column auto-detection, and the fixed category enumeration with its
// synonym table.
//
// The catalog is plain data. It is built once and handed to the detector,
// mapper, and validator at construction time so tests can substitute
// alternate catalogs without touching package globals.
package catalog

// Canonical field names for the contact record.
const (
	FieldFullName          = "full_name"
	FieldEmail             = "email"
	FieldCompany           = "company"
	FieldCategory          = "category"
	FieldTitle             = "title"
	FieldPhone             = "phone"
	FieldMobile            = "mobile"
	FieldTags              = "tags"
	FieldRelationshipNotes = "relationship_notes"
	FieldLinkedInURL       = "linkedin_url"
	FieldAssistantName     = "assistant_name"
	FieldAssistantEmail    = "assistant_email"
	FieldAddressLine1      = "address_line1"
	FieldCity              = "city"
	FieldState             = "state"
	FieldPostalCode        = "postal_code"
	FieldCountry           = "country"
)

// Fallback values applied by the mapper when a row has no value and the
// user supplied no default.
const (
	DefaultCompany  = "Unknown"
	DefaultCategory = "client"
)

// Field describes one target field of the contact record.
type Field struct {
	Name     string   // canonical identifier, e.g. "full_name"
	Label    string   // display string for the mapping UI
	Required bool     // required on every imported contact
	Aliases  []string // normalized header spellings that auto-detect to this field
}

// Catalog is the full import configuration: target fields, the name-split
// aliases, and the category enumeration.
type Catalog struct {
	Fields []Field

	// FirstNameAliases and LastNameAliases match columns that hold one half
	// of a split name. They are checked before the field alias lists.
	FirstNameAliases []string
	LastNameAliases  []string

	// Categories is the fixed enumeration of valid category identifiers.
	Categories []string

	// CategorySynonyms maps free-text category values (lowercased, trimmed)
	// to a canonical category identifier.
	CategorySynonyms map[string]string
}

// Field returns the catalog entry for a canonical field name.
func (c Catalog) Field(name string) (Field, bool) {
	for _, f := range c.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// RequiredFields returns the names of all required fields in catalog order.
func (c Catalog) RequiredFields() []string {
	var required []string
	for _, f := range c.Fields {
		if f.Required {
			required = append(required, f.Name)
		}
	}
	return required
}

// IsCategory reports whether id is one of the canonical category identifiers.
func (c Catalog) IsCategory(id string) bool {
	for _, cat := range c.Categories {
		if cat == id {
			return true
		}
	}
	return false
}

// Default returns the standard contact import catalog.
//
// Alias lists are written in normalized form: lowercase, trimmed, with
// underscores and hyphens already replaced by spaces. The detector applies
// the same normalization to incoming headers before matching.
func Default() Catalog {
	return Catalog{
		Fields: []Field{
			{
				Name:     FieldFullName,
				Label:    "Full Name",
				Required: true,
				Aliases:  []string{"full name", "name", "contact name", "contact"},
			},
			{
				Name:     FieldEmail,
				Label:    "Email",
				Required: true,
				Aliases:  []string{"email", "email address", "e mail", "work email", "primary email"},
			},
			{
				Name:    FieldCompany,
				Label:   "Company",
				Aliases: []string{"company", "company name", "organization", "organisation", "employer", "account name"},
			},
			{
				Name:    FieldCategory,
				Label:   "Category",
				Aliases: []string{"category", "contact type", "type", "group"},
			},
			{
				Name:    FieldTitle,
				Label:   "Title",
				Aliases: []string{"title", "job title", "position", "role"},
			},
			{
				Name:    FieldPhone,
				Label:   "Phone",
				Aliases: []string{"phone", "phone number", "work phone", "telephone", "office phone"},
			},
			{
				Name:    FieldMobile,
				Label:   "Mobile",
				Aliases: []string{"mobile", "mobile phone", "mobile number", "cell", "cell phone"},
			},
			{
				Name:    FieldTags,
				Label:   "Tags",
				Aliases: []string{"tags", "labels", "keywords"},
			},
			{
				Name:    FieldRelationshipNotes,
				Label:   "Relationship Notes",
				Aliases: []string{"relationship notes", "notes", "comments", "description"},
			},
			{
				Name:    FieldLinkedInURL,
				Label:   "LinkedIn URL",
				Aliases: []string{"linkedin url", "linkedin", "linkedin profile"},
			},
			{
				Name:    FieldAssistantName,
				Label:   "Assistant Name",
				Aliases: []string{"assistant name", "assistant", "ea name"},
			},
			{
				Name:    FieldAssistantEmail,
				Label:   "Assistant Email",
				Aliases: []string{"assistant email", "ea email"},
			},
			{
				Name:    FieldAddressLine1,
				Label:   "Address",
				Aliases: []string{"address line 1", "address", "street", "street address"},
			},
			{
				Name:    FieldCity,
				Label:   "City",
				Aliases: []string{"city", "town"},
			},
			{
				Name:    FieldState,
				Label:   "State",
				Aliases: []string{"state", "province", "region", "state/province"},
			},
			{
				Name:    FieldPostalCode,
				Label:   "Postal Code",
				Aliases: []string{"postal code", "zip", "zip code", "postcode"},
			},
			{
				Name:    FieldCountry,
				Label:   "Country",
				Aliases: []string{"country"},
			},
		},
		FirstNameAliases: []string{"first name", "first", "given name", "fname", "forename"},
		LastNameAliases:  []string{"last name", "last", "surname", "lname", "family name"},
		Categories:       []string{"client", "vendor", "partner", "investor", "personal", "other"},
		CategorySynonyms: map[string]string{
			"customer":         "client",
			"customers":        "client",
			"account":          "client",
			"supplier":         "vendor",
			"suppliers":        "vendor",
			"contractor":       "vendor",
			"friend":           "personal",
			"family":           "personal",
			"friends & family": "personal",
			"colleague":        "other",
			"misc":             "other",
		},
	}
}
