package users

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Error(t *testing.T) {
	cause := errors.New("connection reset")

	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{"validation", ValidationFailed("account", "account is required"), "account is required"},
		{"authentication", AuthenticationFailed("alice", cause), "authentication failed for alice"},
		{"not found", NotFound("ghost", nil), "user not found: ghost"},
		{"storage with cause", StorageFailed("insert user", cause), "insert user: storage error: connection reset"},
		{"bare kind", &Error{Kind: ErrStorage, Op: "commit"}, "commit: storage error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestError_MatchesKindAndCause(t *testing.T) {
	cause := fmt.Errorf("db error: %w", ErrNotFound)
	err := StorageFailed("find user", cause)

	assert.ErrorIs(t, err, ErrStorage)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrValidation)

	wrapped := fmt.Errorf("handler: %w", AuthorityUnavailable("verify account", errors.New("timeout")))
	assert.ErrorIs(t, wrapped, ErrAuthorityUnavailable)

	var svcErr *Error
	assert.ErrorAs(t, wrapped, &svcErr)
	assert.Equal(t, "verify account", svcErr.Op)
}

func TestValidationFailed_Field(t *testing.T) {
	err := ValidationFailed("name", "params missing: name or password missing")

	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "name", err.Field)
	assert.Nil(t, err.Err)
}
