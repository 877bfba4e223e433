package store

import (
	"context"
	"fmt"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS contacts (
	id                 BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
	full_name          TEXT NOT NULL,
	email              TEXT NOT NULL,
	company            TEXT NOT NULL,
	category           TEXT NOT NULL,
	title              TEXT,
	phone              TEXT,
	mobile             TEXT,
	tags               TEXT[],
	relationship_notes TEXT,
	linkedin_url       TEXT,
	assistant_name     TEXT,
	assistant_email    TEXT,
	address_line1      TEXT,
	city               TEXT,
	state              TEXT,
	postal_code        TEXT,
	country            TEXT,
	created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE UNIQUE INDEX IF NOT EXISTS contacts_email_lower_idx ON contacts (lower(email));
`

// EnsureSchema creates the contacts table and its unique email index if they
// do not exist. The lower(email) index backs both the duplicate lookup and
// the ON CONFLICT targets in ImportContacts.
func EnsureSchema(ctx context.Context, db DB) error {
	if _, err := db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("ensure contacts schema: %w", err)
	}
	return nil
}
