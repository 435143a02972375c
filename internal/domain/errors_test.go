package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrForbidden_IsConflict(t *testing.T) {
	err := fmt.Errorf("start task 5: %w", ErrForbidden)

	assert.True(t, errors.Is(err, ErrForbidden))
	assert.True(t, errors.Is(err, ErrConflict))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(fmt.Errorf("x: %w", ErrConflict), ErrForbidden))
}
