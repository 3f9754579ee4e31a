package service

import (
	"context"
	"errors"
	"fmt"

	"orderflow/internal/fulfillment"
	"orderflow/internal/repository"
	"orderflow/internal/stock"

	"gorm.io/gorm"
)

// Error taxonomy. Callers match with errors.Is; each kind implies a
// different corrective action so they are never merged.
var (
	ErrValidation    = errors.New("validation failed")
	ErrPermission    = errors.New("permission denied")
	ErrStateConflict = errors.New("state conflict")
	ErrStock         = errors.New("insufficient stock")
	ErrIncomplete    = errors.New("order incomplete")
	ErrNotFound      = errors.New("not found")
	ErrTransient     = errors.New("store unavailable")
)

var taxonomy = []error{ErrValidation, ErrPermission, ErrStateConflict, ErrStock, ErrIncomplete, ErrNotFound, ErrTransient}

func validationf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func permissionf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrPermission, fmt.Sprintf(format, args...))
}

func conflictf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrStateConflict, fmt.Sprintf(format, args...))
}

// classify maps errors from lower layers onto the taxonomy. what names the
// entity for not-found messages.
func classify(err error, what string) error {
	if err == nil {
		return nil
	}
	for _, kind := range taxonomy {
		if errors.Is(err, kind) {
			return err
		}
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	case errors.Is(err, repository.ErrStaleWrite):
		return fmt.Errorf("%w: %s changed concurrently, reload and retry", ErrStateConflict, what)
	case errors.Is(err, fulfillment.ErrNotProcessing):
		return fmt.Errorf("%w: %v", ErrStateConflict, err)
	case errors.Is(err, fulfillment.ErrNotAllPicked):
		return fmt.Errorf("%w: %v", ErrIncomplete, err)
	case errors.Is(err, stock.ErrInsufficientStock), errors.Is(err, stock.ErrUnknownVariant):
		return fmt.Errorf("%w: %v", ErrStock, err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return fmt.Errorf("%w: %v", ErrTransient, err)
	}
	return fmt.Errorf("%w: %v", ErrTransient, err)
}
