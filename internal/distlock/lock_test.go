package distlock

import (
	"context"
	"testing"
	"time"

	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilLockerIsDisabled(t *testing.T) {
	var locker *Locker
	assert.False(t, locker.Enabled())
	assert.Nil(t, NewLocker(nil))

	_, ok, err := locker.TryLock(context.Background(), "payment:1", time.Second)
	require.ErrorIs(t, err, ErrNotConfigured)
	assert.False(t, ok)
	assert.NoError(t, locker.Release(context.Background(), "payment:1", "token"))
}

func TestTryLockValidatesArguments(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	t.Cleanup(func() { _ = client.Close() })
	locker := NewLocker(client)
	require.True(t, locker.Enabled())

	_, _, err := locker.TryLock(context.Background(), "", time.Second)
	assert.ErrorIs(t, err, ErrEmptyKey)

	_, _, err = locker.TryLock(context.Background(), "payment:1", 0)
	assert.ErrorIs(t, err, ErrInvalidTTL)

	assert.NoError(t, locker.Release(context.Background(), "payment:1", ""))
}
