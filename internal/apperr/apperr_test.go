package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/iliyamo/hangout-reservations/internal/repository"
)

func TestFromStore(t *testing.T) {
	tests := []struct {
		name string
		in   error
		want Kind
	}{
		{"not found", repository.ErrNotFound, NotFound},
		{"wrapped not found", fmt.Errorf("x: %w", repository.ErrNotFound), NotFound},
		{"condition", &repository.ConditionFailedError{Index: 0}, ConcurrencyExhausted},
		{"unavailable", &repository.UnavailableError{Op: "get", Err: errors.New("dial tcp")}, TransientInfrastructure},
		{"unknown", errors.New("boom"), TransientInfrastructure},
		{"already classified", Invalid("op", "bad"), ValidationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(FromStore("op", tt.in)))
		})
	}
	assert.NoError(t, FromStore("op", nil))
}

func TestTransientKeepsCauseButHidesIt(t *testing.T) {
	cause := &repository.UnavailableError{Op: "get", Err: errors.New("password=secret")}
	err := FromStore("claim spot", cause)
	assert.ErrorIs(t, err, repository.ErrUnavailable)
	assert.NotContains(t, err.Error(), "secret")
}

func TestCapacityDetails(t *testing.T) {
	err := Capacity("claim spot", "o1", 5, 5)
	assert.True(t, IsKind(err, CapacityExceeded))
	assert.Equal(t, "o1", err.Details["offerId"])
	assert.Equal(t, 5, err.Details["capacity"])
	assert.Equal(t, "claim spot: offer has no remaining spots (capacity_exceeded)", err.Error())
}
