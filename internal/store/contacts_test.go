package store

import (
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pearbase/contact-import/internal/importer"
)

func TestContactArgs(t *testing.T) {
	c := importer.Contact{
		FullName: "Ada Lovelace",
		Email:    "ada@example.com",
		Company:  "Analytical Engines",
		Category: "client",
		Title:    "Countess",
		Tags:     []string{"vip", "math"},
	}

	args := contactArgs(c)

	if len(args) != 17 {
		t.Fatalf("expected 17 insert args, got %d", len(args))
	}
	if args[0] != "Ada Lovelace" || args[1] != "ada@example.com" {
		t.Errorf("unexpected leading args: %v", args[:2])
	}

	title, ok := args[4].(pgtype.Text)
	if !ok || !title.Valid || title.String != "Countess" {
		t.Errorf("expected valid title text, got %v", args[4])
	}

	phone, ok := args[5].(pgtype.Text)
	if !ok || phone.Valid {
		t.Errorf("expected empty phone stored as NULL, got %v", args[5])
	}

	tags, ok := args[7].([]string)
	if !ok || len(tags) != 2 {
		t.Errorf("expected tags slice passed through, got %v", args[7])
	}
}

func TestTextOrNull(t *testing.T) {
	if v := textOrNull(""); v.Valid {
		t.Error("expected empty string to be NULL")
	}
	if v := textOrNull("x"); !v.Valid || v.String != "x" {
		t.Errorf("expected valid text, got %+v", v)
	}
}

func TestUserRowMessage(t *testing.T) {
	dup := &pgconn.PgError{Code: uniqueViolation}
	if msg := userRowMessage(dup); msg != "A contact with this email already exists" {
		t.Errorf("unexpected duplicate message: %q", msg)
	}

	other := &pgconn.PgError{Code: "23502", Message: "null value in column"}
	if msg := userRowMessage(other); !strings.HasPrefix(msg, "Could not save contact") {
		t.Errorf("unexpected generic message: %q", msg)
	}
}
