package importer

import (
	"testing"

	"github.com/pearbase/contact-import/internal/catalog"
)

// ============================================================================
// Detect Tests
// ============================================================================

func TestDetect_BasicHeaders(t *testing.T) {
	d := NewDetector(catalog.Default())

	det := d.Detect([]string{"Name", "Email", "Company", "Favorite Color"})

	tests := []struct {
		header string
		want   ColumnTarget
	}{
		{header: "Name", want: Field(catalog.FieldFullName)},
		{header: "Email", want: Field(catalog.FieldEmail)},
		{header: "Company", want: Field(catalog.FieldCompany)},
		{header: "Favorite Color", want: Skip()},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			got, ok := det.Mapping[tt.header]
			if !ok {
				t.Fatalf("header %q missing from mapping", tt.header)
			}
			if got != tt.want {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
		})
	}

	if det.HasFirstLastName {
		t.Error("expected HasFirstLastName false without split-name columns")
	}
}

func TestDetect_NormalizesHeaderSpellings(t *testing.T) {
	d := NewDetector(catalog.Default())

	det := d.Detect([]string{"  Email_Address ", "JOB-TITLE", "postal_code"})

	if got := det.Mapping["  Email_Address "]; got != Field(catalog.FieldEmail) {
		t.Errorf("expected email mapping, got %+v", got)
	}
	if got := det.Mapping["JOB-TITLE"]; got != Field(catalog.FieldTitle) {
		t.Errorf("expected title mapping, got %+v", got)
	}
	if got := det.Mapping["postal_code"]; got != Field(catalog.FieldPostalCode) {
		t.Errorf("expected postal_code mapping, got %+v", got)
	}
}

func TestDetect_NoTwoHeadersShareATarget(t *testing.T) {
	d := NewDetector(catalog.Default())

	// "Name" and "Contact Name" both alias full_name; only the first claims it.
	det := d.Detect([]string{"Name", "Contact Name"})

	if got := det.Mapping["Name"]; got != Field(catalog.FieldFullName) {
		t.Errorf("expected first header to claim full_name, got %+v", got)
	}
	if got := det.Mapping["Contact Name"]; got != Skip() {
		t.Errorf("expected second alias to be skipped, got %+v", got)
	}

	seen := make(map[string]string)
	for header, target := range det.Mapping {
		if target.Kind != TargetField {
			continue
		}
		if prev, dup := seen[target.Field]; dup {
			t.Errorf("field %q claimed by both %q and %q", target.Field, prev, header)
		}
		seen[target.Field] = header
	}
}

func TestDetect_FirstLastNamePromotion(t *testing.T) {
	d := NewDetector(catalog.Default())

	det := d.Detect([]string{"First Name", "Last Name", "Email"})

	if !det.HasFirstLastName {
		t.Fatal("expected HasFirstLastName true")
	}
	if det.FirstNameHeader != "First Name" || det.LastNameHeader != "Last Name" {
		t.Errorf("unexpected split-name headers: %q / %q", det.FirstNameHeader, det.LastNameHeader)
	}
	if got := det.Mapping["First Name"]; got != FirstNamePart() {
		t.Errorf("expected FirstNamePart, got %+v", got)
	}
	if got := det.Mapping["Last Name"]; got != LastNamePart() {
		t.Errorf("expected LastNamePart, got %+v", got)
	}
}

func TestDetect_LoneFirstNameSkipped(t *testing.T) {
	d := NewDetector(catalog.Default())

	det := d.Detect([]string{"First Name", "Email"})

	if det.HasFirstLastName {
		t.Error("expected no promotion with only one name half")
	}
	if got := det.Mapping["First Name"]; got != Skip() {
		t.Errorf("expected lone first-name column skipped, got %+v", got)
	}
}

func TestDetect_ExplicitFullNameSuppressesSplit(t *testing.T) {
	d := NewDetector(catalog.Default())

	det := d.Detect([]string{"Full Name", "First Name", "Last Name"})

	if det.HasFirstLastName {
		t.Error("expected explicit full_name column to suppress promotion")
	}
	if got := det.Mapping["Full Name"]; got != Field(catalog.FieldFullName) {
		t.Errorf("expected full_name mapping kept, got %+v", got)
	}
	if got := det.Mapping["First Name"]; got != Skip() {
		t.Errorf("expected first-name half skipped, got %+v", got)
	}
	if got := det.Mapping["Last Name"]; got != Skip() {
		t.Errorf("expected last-name half skipped, got %+v", got)
	}
}

func TestDetect_DuplicateNameHalvesSkipped(t *testing.T) {
	d := NewDetector(catalog.Default())

	det := d.Detect([]string{"First Name", "fname", "Last Name"})

	if !det.HasFirstLastName {
		t.Fatal("expected promotion from the first occurrence of each half")
	}
	if det.FirstNameHeader != "First Name" {
		t.Errorf("expected first occurrence retained, got %q", det.FirstNameHeader)
	}
	if got := det.Mapping["fname"]; got != Skip() {
		t.Errorf("expected duplicate first-name alias skipped, got %+v", got)
	}
}

func TestDetect_EveryHeaderMapped(t *testing.T) {
	d := NewDetector(catalog.Default())
	headers := []string{"First Name", "Last Name", "Email", "Phone", "mystery"}

	det := d.Detect(headers)

	for _, h := range headers {
		if _, ok := det.Mapping[h]; !ok {
			t.Errorf("header %q missing from mapping", h)
		}
	}
}
