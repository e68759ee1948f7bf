// Package store implements the grants dataset read contract against
// PostgreSQL and against an in-memory dataset with the same semantics.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	pferrors "github.com/otherjamesbrown/grantqa/pkg/errors"
)

// classify maps a raw query error onto the domain sentinels. Errors that
// already carry a domain sentinel pass through unchanged.
func classify(ctx context.Context, op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pgx.ErrNoRows):
		return fmt.Errorf("%s: %w", op, pferrors.ErrNotFound)
	case pferrors.IsNotFound(err), pferrors.IsInvalidState(err), errors.Is(err, pferrors.ErrTimeout):
		return err
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", op, pferrors.ErrTimeout)
	default:
		return fmt.Errorf("%s: %w: %w", op, pferrors.ErrUnavailable, err)
	}
}

// window clamps a limit/offset pair to sane values.
func window(limit, offset, max int) (int, int) {
	if limit <= 0 || limit > max {
		limit = max
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
