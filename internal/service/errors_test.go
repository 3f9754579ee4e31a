package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"orderflow/internal/fulfillment"
	"orderflow/internal/repository"
	"orderflow/internal/stock"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"not found", gorm.ErrRecordNotFound, ErrNotFound},
		{"stale write", repository.ErrStaleWrite, ErrStateConflict},
		{"not processing", fulfillment.ErrNotProcessing, ErrStateConflict},
		{"not picked", fulfillment.ErrNotAllPicked, ErrIncomplete},
		{"shortage", fmt.Errorf("line 1: %w", stock.ErrInsufficientStock), ErrStock},
		{"unknown variant", stock.ErrUnknownVariant, ErrStock},
		{"deadline", context.DeadlineExceeded, ErrTransient},
		{"driver", errors.New("connection reset"), ErrTransient},
		{"already classified", validationf("bad"), ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, classify(tt.err, "order"), tt.want)
		})
	}
	assert.NoError(t, classify(nil, "order"))
}
