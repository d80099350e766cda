package pgxlease

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	procerrors "github.com/marmos91/partitiond/pkg/errors"
)

// mapPgError maps a raw pgx/postgres error onto the lease error taxonomy.
func mapPgError(err error, partitionID, operation string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return procerrors.NewNotFoundError(partitionID, fmt.Sprintf("%s: not found", operation))
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return procerrors.NewAlreadyExistsError(partitionID)
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return procerrors.NewTransientError(partitionID, fmt.Sprintf("%s: retryable conflict", operation), err)
		}
	}

	return procerrors.NewTransientError(partitionID, fmt.Sprintf("%s: postgres error", operation), err)
}
