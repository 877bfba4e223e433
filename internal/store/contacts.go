// Package store persists imported contacts in PostgreSQL. It implements the
// importer package's DuplicateChecker and ContactWriter interfaces.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/pearbase/contact-import/internal/importer"
)

// uniqueViolation is the PostgreSQL error code for unique constraint hits.
const uniqueViolation = "23505"

// DB is the database handle the store needs. Satisfied by *pgxpool.Pool.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Contacts reads and writes the contacts table.
type Contacts struct {
	db DB
}

// NewContacts creates a store over the given database handle.
func NewContacts(db DB) *Contacts {
	return &Contacts{db: db}
}

// ExistingEmails returns which of the given emails already exist, keyed by
// lowercased address.
func (s *Contacts) ExistingEmails(ctx context.Context, emails []string) (map[string]struct{}, error) {
	existing := make(map[string]struct{})
	if len(emails) == 0 {
		return existing, nil
	}

	lowered := make([]string, 0, len(emails))
	seen := make(map[string]struct{}, len(emails))
	for _, email := range emails {
		e := strings.ToLower(strings.TrimSpace(email))
		if e == "" {
			continue
		}
		if _, dup := seen[e]; dup {
			continue
		}
		seen[e] = struct{}{}
		lowered = append(lowered, e)
	}
	if len(lowered) == 0 {
		return existing, nil
	}

	rows, err := s.db.Query(ctx,
		`SELECT lower(email) FROM contacts WHERE lower(email) = ANY($1)`,
		lowered,
	)
	if err != nil {
		return nil, fmt.Errorf("query existing emails: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var email string
		if err := rows.Scan(&email); err != nil {
			return nil, fmt.Errorf("scan existing email: %w", err)
		}
		existing[email] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read existing emails: %w", err)
	}

	return existing, nil
}

const insertColumns = `full_name, email, company, category, title, phone, mobile,
	tags, relationship_notes, linkedin_url, assistant_name, assistant_email,
	address_line1, city, state, postal_code, country`

const insertPlaceholders = `$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17`

// updateSet rewrites every imported column on conflict; email stays as-is
// since the conflict target guarantees it already matches.
const updateSet = `full_name = EXCLUDED.full_name,
	company = EXCLUDED.company,
	category = EXCLUDED.category,
	title = EXCLUDED.title,
	phone = EXCLUDED.phone,
	mobile = EXCLUDED.mobile,
	tags = EXCLUDED.tags,
	relationship_notes = EXCLUDED.relationship_notes,
	linkedin_url = EXCLUDED.linkedin_url,
	assistant_name = EXCLUDED.assistant_name,
	assistant_email = EXCLUDED.assistant_email,
	address_line1 = EXCLUDED.address_line1,
	city = EXCLUDED.city,
	state = EXCLUDED.state,
	postal_code = EXCLUDED.postal_code,
	country = EXCLUDED.country,
	updated_at = now()`

// ImportContacts inserts one batch inside a single transaction. Each row is
// isolated with a savepoint so a failing row does not abort the rest;
// PostgreSQL aborts the whole transaction on any error otherwise. The
// duplicate policy from opts decides what happens when an email already
// exists: skip it, overwrite it, or report the unique violation as a
// per-row failure.
func (s *Contacts) ImportContacts(ctx context.Context, records []importer.SubmitRecord, opts importer.ImportOptions) (importer.BatchResult, error) {
	var result importer.BatchResult

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return result, fmt.Errorf("begin import transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		savepoint := fmt.Sprintf("sp_%d", i)
		if _, err := tx.Exec(ctx, "SAVEPOINT "+savepoint); err != nil {
			return result, fmt.Errorf("create savepoint for row %d: %w", rec.RowIndex, err)
		}

		outcome, err := s.upsert(ctx, tx, rec.Contact, opts)
		if err != nil {
			if _, rbErr := tx.Exec(ctx, "ROLLBACK TO SAVEPOINT "+savepoint); rbErr != nil {
				return result, fmt.Errorf("rollback savepoint for row %d: %w", rec.RowIndex, rbErr)
			}
			result.Failed++
			result.Errors = append(result.Errors, importer.RowError{
				RowIndex: rec.RowIndex,
				Message:  userRowMessage(err),
			})
			continue
		}

		if _, err := tx.Exec(ctx, "RELEASE SAVEPOINT "+savepoint); err != nil {
			return result, fmt.Errorf("release savepoint for row %d: %w", rec.RowIndex, err)
		}

		switch outcome {
		case rowCreated:
			result.Created++
		case rowUpdated:
			result.Updated++
		case rowSkipped:
			result.Skipped++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return importer.BatchResult{}, fmt.Errorf("commit import transaction: %w", err)
	}

	return result, nil
}

type rowOutcome int

const (
	rowCreated rowOutcome = iota
	rowUpdated
	rowSkipped
)

func (s *Contacts) upsert(ctx context.Context, tx pgx.Tx, c importer.Contact, opts importer.ImportOptions) (rowOutcome, error) {
	args := contactArgs(c)

	switch {
	case opts.UpdateDuplicates:
		// xmax = 0 only on freshly inserted tuples, which distinguishes a
		// create from an update in a single statement.
		sql := fmt.Sprintf(
			`INSERT INTO contacts (%s) VALUES (%s)
			 ON CONFLICT (lower(email)) DO UPDATE SET %s
			 RETURNING (xmax = 0)`,
			insertColumns, insertPlaceholders, updateSet,
		)
		var inserted bool
		if err := tx.QueryRow(ctx, sql, args...).Scan(&inserted); err != nil {
			return 0, err
		}
		if inserted {
			return rowCreated, nil
		}
		return rowUpdated, nil

	case opts.SkipDuplicates:
		sql := fmt.Sprintf(
			`INSERT INTO contacts (%s) VALUES (%s)
			 ON CONFLICT (lower(email)) DO NOTHING`,
			insertColumns, insertPlaceholders,
		)
		tag, err := tx.Exec(ctx, sql, args...)
		if err != nil {
			return 0, err
		}
		if tag.RowsAffected() == 0 {
			return rowSkipped, nil
		}
		return rowCreated, nil

	default:
		sql := fmt.Sprintf(
			`INSERT INTO contacts (%s) VALUES (%s)`,
			insertColumns, insertPlaceholders,
		)
		if _, err := tx.Exec(ctx, sql, args...); err != nil {
			return 0, err
		}
		return rowCreated, nil
	}
}

func contactArgs(c importer.Contact) []any {
	return []any{
		c.FullName,
		c.Email,
		c.Company,
		c.Category,
		textOrNull(c.Title),
		textOrNull(c.Phone),
		textOrNull(c.Mobile),
		c.Tags,
		textOrNull(c.RelationshipNotes),
		textOrNull(c.LinkedInURL),
		textOrNull(c.AssistantName),
		textOrNull(c.AssistantEmail),
		textOrNull(c.AddressLine1),
		textOrNull(c.City),
		textOrNull(c.State),
		textOrNull(c.PostalCode),
		textOrNull(c.Country),
	}
}

// textOrNull stores empty optional values as NULL instead of empty strings.
func textOrNull(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

// userRowMessage turns a row-level database error into a message safe to
// show in the error report.
func userRowMessage(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return "A contact with this email already exists"
	}
	return fmt.Sprintf("Could not save contact: %v", err)
}
