package database

import (
	stderrors "errors"
	"strings"

	"github.com/lib/pq"
	"github.com/stockflow/stockflow-backend/pkg/errors"
)

// PostgreSQL error codes the services react to
const (
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeNotNullViolation     = "23502"
	codeCheckViolation       = "23514"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// MapPQError converts a PostgreSQL error to an AppError with a meaningful message.
// Returns nil if the error is not a pq.Error.
func MapPQError(err error) *errors.AppError {
	var pqErr *pq.Error
	if !stderrors.As(err, &pqErr) {
		return nil
	}

	switch pqErr.Code {
	case codeCheckViolation:
		return mapCheckConstraint(pqErr)

	case codeUniqueViolation:
		return errors.Conflict(formatConstraintMessage(pqErr))

	case codeForeignKeyViolation:
		return errors.BadRequest("referenced record does not exist")

	case codeNotNullViolation:
		col := pqErr.Column
		if col == "" {
			col = "required field"
		}
		return errors.Validation(map[string]string{
			col: "must not be empty",
		})

	default:
		return nil
	}
}

// IsRetryable reports whether err is a transient conflict worth rerunning the
// transaction for.
func IsRetryable(err error) bool {
	var pqErr *pq.Error
	if !stderrors.As(err, &pqErr) {
		return false
	}
	return pqErr.Code == codeSerializationFailure || pqErr.Code == codeDeadlockDetected
}

// IsUniqueViolation reports a duplicate key error.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return stderrors.As(err, &pqErr) && pqErr.Code == codeUniqueViolation
}

func mapCheckConstraint(pqErr *pq.Error) *errors.AppError {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "quantity_non_negative"):
		return errors.StockWouldGoNegative()

	case strings.Contains(constraint, "movement_type_valid"):
		return errors.Validation(map[string]string{
			"type": "must be one of: entrada, saida",
		})

	default:
		return errors.BadRequest("data validation failed: " + constraint)
	}
}

func formatConstraintMessage(pqErr *pq.Error) string {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "barcode"), strings.Contains(constraint, "ean"), strings.Contains(constraint, "sku"):
		return "a product with this code already exists"
	case strings.Contains(constraint, "lot_number"):
		return "this lot already exists for the product"
	default:
		return "a record with these values already exists"
	}
}
