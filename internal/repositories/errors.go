package repositories

import (
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"
	"gorm.io/gorm"

	"tokostore/internal/apperrors"
)

// ErrInsufficientStock is returned when a stock change would make stock negative.
var ErrInsufficientStock = errors.New("insufficient stock")

// ErrCartChanged is returned when cart lines changed under a checkout.
var ErrCartChanged = errors.New("cart changed")

const (
	pgUniqueViolation = "23505"
	pgCheckViolation  = "23514"
)

// translate maps driver errors onto the application taxonomy. what names the
// record for messages, e.g. "product".
func translate(err error, what string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return apperrors.NotFound("%s not found", what)
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperrors.Wrap(err, apperrors.KindConflict, what+" already exists")
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return apperrors.Wrap(err, apperrors.KindConflict, what+" already exists")
		case pgCheckViolation:
			if strings.Contains(pgErr.ConstraintName, "stock") {
				return ErrInsufficientStock
			}
		}
	}
	// sqlite reports check failures as plain text
	if strings.Contains(err.Error(), "CHECK constraint failed: chk_products_stock") {
		return ErrInsufficientStock
	}
	return errors.Wrapf(err, "%s query failed", what)
}

func paginate(page, limit int) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Offset((page - 1) * limit).Limit(limit)
	}
}
