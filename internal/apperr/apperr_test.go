package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	base := Validation("empty_filter", "filter must set at least one field")
	wrapped := fmt.Errorf("resolve coreUnit: %w", base)

	assert.Equal(t, KindValidation, KindOf(wrapped))
	assert.True(t, Is(wrapped, KindValidation))
	assert.False(t, Is(wrapped, KindStore))
	assert.Equal(t, Kind(0), KindOf(errors.New("plain")))
	assert.False(t, Is(nil, KindValidation))
}

func TestExtensions(t *testing.T) {
	t.Run("includes reason", func(t *testing.T) {
		err := Validation("too_many_filters", "Choose one parameter only")
		assert.Equal(t, map[string]interface{}{
			"code":   "BAD_USER_INPUT",
			"reason": "too_many_filters",
		}, err.Extensions())
	})

	t.Run("omits empty reason", func(t *testing.T) {
		err := Authentication("User not signed up", errors.New("no such user"))
		assert.Equal(t, map[string]interface{}{"code": "UNAUTHENTICATED"}, err.Extensions())
	})
}

func TestAuthenticationHidesCause(t *testing.T) {
	cause := errors.New("wrong password")
	err := Authentication("User not signed up", cause)

	assert.Equal(t, "User not signed up", err.Error())
	require.ErrorIs(t, err, cause)
}

func TestStoreCode(t *testing.T) {
	err := Store("unique_violation", "duplicate entry", errors.New("Error 1062"))
	assert.Equal(t, "INTERNAL_SERVER_ERROR", err.Kind.Code())
	assert.Equal(t, "store", err.Kind.String())
}
