package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

var errNotMember = &Error{Code: EUnauthorized, Reason: "not_member", Msg: "no access to this tenant"}

func TestErrorCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "plain error", err: errors.New("boom"), want: EInternal},
		{name: "coded", err: New(ENotFound, "player not found"), want: ENotFound},
		{name: "wrapped by fmt", err: fmt.Errorf("lookup: %w", New(EConflict, "x")), want: EConflict},
		{name: "code inherited from cause", err: &Error{Op: "op", Err: New(EInvalid, "bad")}, want: EInvalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ErrorCode(tt.err))
		})
	}
}

func TestSentinelSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("authorize: %w", errNotMember)
	assert.ErrorIs(t, err, errNotMember)
	assert.Equal(t, "not_member", ErrorReason(err))

	withOp := &Error{Code: EUnauthorized, Reason: "not_member", Msg: "no access to this tenant", Op: "access.Authorize"}
	assert.ErrorIs(t, withOp, errNotMember)
}

func TestErrorMessageHidesInternalDetail(t *testing.T) {
	err := Wrap(errors.New("pq: relation \"players\" does not exist"), EInternal, "players.list")
	assert.Equal(t, "internal server error", ErrorMessage(err))
	assert.Contains(t, err.Error(), "players.list")

	assert.Equal(t, "title is required", ErrorMessage(Invalid("%s is required", "title")))
	assert.Equal(t, "internal server error", ErrorMessage(errors.New("raw")))
}
