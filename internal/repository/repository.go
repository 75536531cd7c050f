// Package repository holds the pgx-backed storage collaborators. Absent rows
// come back as (nil, nil); database faults are translated into the error
// taxonomy before they leave this package.
package repository

import (
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/peakscape/tours-api/internal/apperr"
)

const queryTimeout = 3 * time.Second

// translate maps driver faults onto taxonomy kinds. Unique violations become
// conflicts, bad literals (a non-numeric value compared against a numeric
// column) become validation errors.
func translate(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return apperr.Wrap(apperr.Conflict, "duplicate field value; please use another value", err)
		case "22P02", "22007", "22008":
			return apperr.Wrap(apperr.Validation, "invalid value in query", err)
		case "23503":
			return apperr.Wrap(apperr.Validation, "referenced record does not exist", err)
		}
	}
	return err
}
