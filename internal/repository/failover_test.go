package repository

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type mockCache struct {
	mock.Mock
}

func (m *mockCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).([]byte), args.Bool(1), args.Error(2)
}

func (m *mockCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	args := m.Called(ctx, key, value, ttl)
	return args.Error(0)
}

func (m *mockCache) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *mockCache) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	args := m.Called(ctx, key, limit, window)
	return args.Bool(0), args.Error(1)
}

func TestFailoverCache(t *testing.T) {
	primary := new(mockCache)
	fallback := new(mockCache)
	logger := zerolog.New(io.Discard)
	repo := NewFailoverCache(primary, fallback, &logger)
	ctx := context.Background()

	t.Run("PrimarySuccess", func(t *testing.T) {
		primary.On("Get", ctx, "a").Return([]byte("1"), true, nil).Once()

		got, ok, err := repo.Get(ctx, "a")
		assert.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, []byte("1"), got)
		primary.AssertExpectations(t)
	})

	t.Run("PrimaryFailFallbackSuccess", func(t *testing.T) {
		primary.On("Get", ctx, "b").Return(nil, false, errors.New("fail")).Once()
		fallback.On("Get", ctx, "b").Return([]byte("2"), true, nil).Once()

		got, ok, err := repo.Get(ctx, "b")
		assert.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, []byte("2"), got)
		assert.True(t, repo.isDown.Load())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("AlreadyDownSkipsPrimary", func(t *testing.T) {
		fallback.On("Set", ctx, "c", []byte("3"), time.Hour).Return(nil).Once()

		err := repo.Set(ctx, "c", []byte("3"), time.Hour)
		assert.NoError(t, err)
		fallback.AssertExpectations(t)
		primary.AssertNotCalled(t, "Set", ctx, "c", []byte("3"), time.Hour)
	})

	t.Run("RecoveryAttempt", func(t *testing.T) {
		repo.lastCheck.Store(time.Now().Add(-2 * time.Minute).UnixNano())
		primary.On("CheckRateLimit", ctx, "sync", 1, time.Minute).Return(true, nil).Once()

		allowed, err := repo.CheckRateLimit(ctx, "sync", 1, time.Minute)
		assert.NoError(t, err)
		assert.True(t, allowed)
		assert.False(t, repo.isDown.Load())
		primary.AssertExpectations(t)
	})

	t.Run("RecoveryAttemptFail", func(t *testing.T) {
		repo.isDown.Store(true)
		repo.lastCheck.Store(time.Now().Add(-2 * time.Minute).UnixNano())

		primary.On("Get", ctx, "d").Return(nil, false, errors.New("still fail")).Once()
		fallback.On("Get", ctx, "d").Return(nil, false, nil).Once()

		_, ok, err := repo.Get(ctx, "d")
		assert.NoError(t, err)
		assert.False(t, ok)
		assert.True(t, repo.isDown.Load())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("DeleteHitsBoth", func(t *testing.T) {
		repo.isDown.Store(false)
		fallback.On("Delete", ctx, "e").Return(nil).Once()
		primary.On("Delete", ctx, "e").Return(nil).Once()

		assert.NoError(t, repo.Delete(ctx, "e"))
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})
}
