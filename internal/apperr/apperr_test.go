package apperr

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestKindMatching(t *testing.T) {
	err := fmt.Errorf("wrap: %w", NotFound("tweet not found"))
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrConflict))
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.Equal(t, "tweet not found", MessageOf(err))

	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.Equal(t, "internal server error", MessageOf(errors.New("boom")))
}

func TestFromStore(t *testing.T) {
	assert.NoError(t, FromStore(nil, "x"))
	assert.True(t, errors.Is(FromStore(gorm.ErrRecordNotFound, "user not found"), ErrNotFound))
	assert.True(t, errors.Is(FromStore(gorm.ErrDuplicatedKey, ""), ErrConflict))
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), func() error {
		calls++
		return InvalidState("cannot follow yourself")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.True(t, errors.Is(err, ErrInvalidState))
}

func TestRetryExhaustsTransientErrors(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), func() error {
		calls++
		return errors.New("database is locked")
	})
	require.Error(t, err)
	assert.Equal(t, MaxAttempts, calls)
	assert.True(t, errors.Is(err, ErrUnavailable))
}

func TestRetryRecovers(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), func() error {
		calls++
		if calls < 2 {
			return errors.New("connection reset by peer")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}
