package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jhoicas/pcp-stock-ledger/internal/domain"
)

// Códigos SQLSTATE relevantes para el libro.
const (
	codeUniqueViolation      = "23505"
	codeForeignKeyViolation  = "23503"
	codeCheckViolation       = "23514"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
	codeQueryCanceled        = "57014"
)

// Nombres de constraints que se traducen a errores de dominio.
const (
	constraintLocationCode  = "locations_code_key_uq"
	constraintReversalOf    = "stock_movements_reversal_of_uq"
	constraintBalanceNonNeg = "stock_balances_quantity_nonneg"
)

func pgCode(err error) (string, string) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, pgErr.ConstraintName
	}
	return "", ""
}

// isForeignKeyViolation verifica si un error es una violación de llave foránea (23503).
func isForeignKeyViolation(err error) bool {
	code, _ := pgCode(err)
	return code == codeForeignKeyViolation
}

// classify traduce errores del driver a errores de dominio, preservando el original en el mensaje.
// op describe la operación para el contexto ("append movement", "lock balance").
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w: %v", op, domain.ErrTimeout, err)
	}
	code, constraint := pgCode(err)
	switch code {
	case codeSerializationFailure, codeDeadlockDetected:
		return fmt.Errorf("%s: %w: %v", op, domain.ErrSerializationConflict, err)
	case codeLockNotAvailable, codeQueryCanceled:
		return fmt.Errorf("%s: %w: %v", op, domain.ErrTimeout, err)
	case codeForeignKeyViolation:
		// referencia a un producto o ubicación que no existe
		return fmt.Errorf("%s: %w: %v", op, domain.ErrNotFound, err)
	case codeCheckViolation:
		if constraint == constraintBalanceNonNeg {
			return fmt.Errorf("%s: %w: %v", op, domain.ErrIntegrityViolation, err)
		}
	case codeUniqueViolation:
		switch constraint {
		case constraintLocationCode:
			return fmt.Errorf("%s: %w", op, domain.ErrDuplicateCode)
		case constraintReversalOf:
			return fmt.Errorf("%s: %w", op, domain.ErrAlreadyReversed)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
