package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errStore = errors.New("store down")

func TestCodes(t *testing.T) {
	t.Run("new error carries its code", func(t *testing.T) {
		err := New(CodeConflict, "cpf already registered")
		assert.True(t, HasCode(err, CodeConflict))
		assert.False(t, HasCode(err, CodeNotFound))
		assert.Equal(t, "cpf already registered", err.Error())
	})

	t.Run("wrap keeps the cause reachable", func(t *testing.T) {
		err := Wrap(errStore, CodeUnavailable, "member repository unavailable")
		require.ErrorIs(t, err, errStore)
		assert.Equal(t, CodeUnavailable, CodeOf(err))
		assert.Contains(t, err.Error(), "store down")
		assert.Equal(t, "member repository unavailable", MessageOf(err))
	})

	t.Run("outermost code wins", func(t *testing.T) {
		inner := New(CodeInvariantViolation, "lives out of range")
		err := Wrap(inner, CodeValidation, "invalid member")
		assert.Equal(t, CodeValidation, CodeOf(err))
	})

	t.Run("plain errors default to internal", func(t *testing.T) {
		err := fmt.Errorf("boom")
		assert.Equal(t, CodeInternal, CodeOf(err))
		assert.False(t, HasCode(nil, CodeInternal))
	})
}
