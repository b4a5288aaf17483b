package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	ErrNotFound    = errors.New("ledger: record not found")
	ErrDuplicate   = errors.New("ledger: duplicate key")
	ErrConflict    = errors.New("ledger: transaction conflict")
	ErrPersistence = errors.New("ledger: persistence failure")
)

// Postgres SQLSTATEs that mean "run the transaction again".
var conflictCodes = map[string]bool{
	"40001": true, // serialization_failure
	"40P01": true, // deadlock_detected
	"55P03": true, // lock_not_available
}

// translate maps driver and gorm errors onto the ledger sentinels.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrDuplicate),
		errors.Is(err, ErrConflict), errors.Is(err, ErrPersistence):
		return err
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code == "23505" {
			return fmt.Errorf("%w: %s", ErrDuplicate, pgErr.ConstraintName)
		}
		if conflictCodes[pgErr.Code] {
			return fmt.Errorf("%w: sqlstate %s", ErrConflict, pgErr.Code)
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return fmt.Errorf("%w: %v", ErrPersistence, err)
}
