// Package apperr defines the error taxonomy shared by the store, the access guard
// and the inventory engine, and maps it onto HTTP status and business codes.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrNotFound              = errors.New("resource not found")
	ErrAccessDenied          = errors.New("access denied")
	ErrCompanyInactive       = errors.New("company is not active")
	ErrInsufficientStock     = errors.New("insufficient stock")
	ErrInsufficientInventory = errors.New("insufficient inventory")
	ErrExpired               = errors.New("batch expired")
	ErrDuplicateBatchNumber  = errors.New("duplicate batch number")
	ErrTransactionConflict   = errors.New("transaction conflict")
	ErrInternalConsistency   = errors.New("internal consistency violation")
	ErrValidation            = errors.New("validation failed")
	ErrRateLimited           = errors.New("rate limit exceeded")
)

// 对外统一提示，避免暴露其他租户的资源是否存在
const hiddenResourceMessage = "resource not found or not accessible"

// QuantityError carries the available and requested amounts of a failed stock check.
type QuantityError struct {
	Kind      error
	Available decimal.Decimal
	Requested decimal.Decimal
}

func (e *QuantityError) Error() string {
	return fmt.Sprintf("%s: available %s, requested %s",
		e.Kind, e.Available.StringFixed(2), e.Requested.StringFixed(2))
}

func (e *QuantityError) Unwrap() error { return e.Kind }

// InsufficientStock 可用库存不足（校验阶段）
func InsufficientStock(available, requested decimal.Decimal) error {
	return &QuantityError{Kind: ErrInsufficientStock, Available: available, Requested: requested}
}

// InsufficientInventory 调整后库存为负
func InsufficientInventory(available, requested decimal.Decimal) error {
	return &QuantityError{Kind: ErrInsufficientInventory, Available: available, Requested: requested}
}

// ExpiredError is returned for batches past their expiry date.
type ExpiredError struct {
	BatchNumber string
	ExpiryDate  time.Time
}

func (e *ExpiredError) Error() string {
	return fmt.Sprintf("%s: batch %s expired on %s", ErrExpired, e.BatchNumber, e.ExpiryDate.Format("2006-01-02"))
}

func (e *ExpiredError) Unwrap() error { return ErrExpired }

// NotFound wraps ErrNotFound with the resource kind.
func NotFound(resource string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, resource)
}

// AccessDenied wraps ErrAccessDenied with a reason kept for logs only.
func AccessDenied(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrAccessDenied, fmt.Sprintf(format, args...))
}

// Validation wraps ErrValidation.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Internal wraps ErrInternalConsistency. These are programming contract violations.
func Internal(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInternalConsistency, fmt.Sprintf(format, args...))
}

// IsRetryable reports whether a caller may retry the operation as is.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransactionConflict)
}

// FromStore classifies raw driver errors. Errors that already carry a kind pass through.
func FromStore(err error) error {
	if err == nil {
		return nil
	}
	if classified(err) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40P01", "40001", "55P03":
			return fmt.Errorf("%w: %s (%s)", ErrTransactionConflict, pgErr.Message, pgErr.Code)
		}
	}
	return err
}

// IsUniqueViolation reports a unique-key violation from either driver.
func IsUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func classified(err error) bool {
	for _, kind := range []error{
		ErrNotFound, ErrAccessDenied, ErrCompanyInactive, ErrInsufficientStock, ErrInsufficientInventory,
		ErrExpired, ErrDuplicateBatchNumber, ErrTransactionConflict, ErrInternalConsistency, ErrValidation,
		ErrRateLimited,
	} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

// HTTPStatus maps an error onto its response status.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAccessDenied), errors.Is(err, ErrCompanyInactive):
		return http.StatusForbidden
	case errors.Is(err, ErrInsufficientStock), errors.Is(err, ErrInsufficientInventory),
		errors.Is(err, ErrExpired), errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrDuplicateBatchNumber), errors.Is(err, ErrTransactionConflict):
		return http.StatusConflict
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// BusinessCode returns the five digit response code; code/100 is the HTTP status.
func BusinessCode(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return 40400
	case errors.Is(err, ErrAccessDenied):
		return 40300
	case errors.Is(err, ErrCompanyInactive):
		return 40301
	case errors.Is(err, ErrValidation):
		return 40000
	case errors.Is(err, ErrInsufficientStock):
		return 40001
	case errors.Is(err, ErrInsufficientInventory):
		return 40002
	case errors.Is(err, ErrExpired):
		return 40003
	case errors.Is(err, ErrDuplicateBatchNumber):
		return 40901
	case errors.Is(err, ErrTransactionConflict):
		return 40900
	case errors.Is(err, ErrRateLimited):
		return 42900
	default:
		return 50000
	}
}

// ClientMessage is the message safe to return to the caller.
func ClientMessage(err error) string {
	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrAccessDenied):
		return hiddenResourceMessage
	case HTTPStatus(err) == http.StatusInternalServerError:
		return "internal server error"
	default:
		return err.Error()
	}
}
