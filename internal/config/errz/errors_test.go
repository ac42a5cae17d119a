package errz

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorsAreDistinct(t *testing.T) {
	all := []error{
		ErrConfigNotFound,
		ErrConfigLoad,
		ErrInvalidValue,
		ErrMissingRequiredField,
		ErrConflict,
		ErrUnsupportedFormat,
		ErrPreloadUnsupported,
		ErrPreloadFailed,
	}
	for i, a := range all {
		for j, b := range all {
			if i != j {
				assert.NotErrorIs(t, a, b)
			}
		}
	}
}

func TestWrappedCategories(t *testing.T) {
	err := fmt.Errorf("%w: %w", ErrConfigLoad, fmt.Errorf("%w: port", ErrInvalidValue))
	assert.ErrorIs(t, err, ErrConfigLoad)
	assert.ErrorIs(t, err, ErrInvalidValue)
	assert.False(t, errors.Is(err, ErrConfigNotFound))
}
