package idempotency

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/table-settlement/internal/apperr"
	"github.com/iliyamo/table-settlement/internal/testutil"
)

func newExecutor(t *testing.T, opts ...Option) *Executor {
	t.Helper()
	store := testutil.NewStore(t)
	return New(store.Idempotency, time.Hour, opts...)
}

func TestDoReplaysSequentialDuplicate(t *testing.T) {
	ex := newExecutor(t)
	ctx := context.Background()
	var calls int32
	handler := func(context.Context) (int, []byte, error) {
		atomic.AddInt32(&calls, 1)
		return 201, []byte(`{"id":"p1"}`), nil
	}

	first, replay, err := ex.Do(ctx, "session:s1:pay", "k1", "h1", handler)
	require.NoError(t, err)
	assert.False(t, replay)
	assert.Equal(t, 201, first.Status)

	second, replay, err := ex.Do(ctx, "session:s1:pay", "k1", "h1", handler)
	require.NoError(t, err)
	assert.True(t, replay)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestDoRejectsDifferentHash(t *testing.T) {
	ex := newExecutor(t)
	ctx := context.Background()
	ok := func(context.Context) (int, []byte, error) { return 200, []byte("{}"), nil }

	_, _, err := ex.Do(ctx, "scope", "k1", "h1", ok)
	require.NoError(t, err)

	_, _, err = ex.Do(ctx, "scope", "k1", "h2", ok)
	assert.True(t, apperr.HasCode(err, apperr.CodeCollision), "got %v", err)

	// a different scope is an independent key space
	_, replay, err := ex.Do(ctx, "other", "k1", "h2", ok)
	require.NoError(t, err)
	assert.False(t, replay)
}

func TestDoRejectsWhileInFlight(t *testing.T) {
	ex := newExecutor(t)
	ctx := context.Background()
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		_, _, err := ex.Do(ctx, "scope", "k1", "h1", func(context.Context) (int, []byte, error) {
			close(started)
			<-release
			return 200, []byte("{}"), nil
		})
		done <- err
	}()

	<-started
	_, _, err := ex.Do(ctx, "scope", "k1", "h1", func(context.Context) (int, []byte, error) {
		t.Error("handler must not run twice")
		return 200, nil, nil
	})
	assert.True(t, apperr.HasCode(err, apperr.CodeInProgress), "got %v", err)

	close(release)
	require.NoError(t, <-done)
}

func TestDoConcurrentDuplicatesExecuteOnce(t *testing.T) {
	ex := newExecutor(t)
	ctx := context.Background()
	var calls int32
	var wg sync.WaitGroup
	results := make([]error, 16)

	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, results[i] = ex.Do(ctx, "scope", "same", "hash", func(context.Context) (int, []byte, error) {
				atomic.AddInt32(&calls, 1)
				time.Sleep(10 * time.Millisecond)
				return 200, []byte(`{"ok":true}`), nil
			})
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for _, err := range results {
		if err != nil {
			assert.True(t, apperr.HasCode(err, apperr.CodeInProgress), "unexpected error %v", err)
		}
	}
}

func TestDoReleasesKeyOnHandlerError(t *testing.T) {
	ex := newExecutor(t)
	ctx := context.Background()
	boom := errors.New("db down")

	_, _, err := ex.Do(ctx, "scope", "k1", "h1", func(context.Context) (int, []byte, error) {
		return 0, nil, boom
	})
	require.ErrorIs(t, err, boom)

	resp, replay, err := ex.Do(ctx, "scope", "k1", "h1", func(context.Context) (int, []byte, error) {
		return 200, []byte("retried"), nil
	})
	require.NoError(t, err)
	assert.False(t, replay)
	assert.Equal(t, "retried", string(resp.Body))
}

func TestDoReexecutesAfterExpiry(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	ex := newExecutor(t, WithClock(func() time.Time { return now }))
	ctx := context.Background()
	var calls int32
	handler := func(context.Context) (int, []byte, error) {
		n := atomic.AddInt32(&calls, 1)
		return 200, []byte{byte('0' + n)}, nil
	}

	_, _, err := ex.Do(ctx, "scope", "k1", "h1", handler)
	require.NoError(t, err)

	now = now.Add(2 * time.Hour)
	resp, replay, err := ex.Do(ctx, "scope", "k1", "h1", handler)
	require.NoError(t, err)
	assert.False(t, replay)
	assert.Equal(t, "2", string(resp.Body))
}

func TestRequestHashDistinguishesInputs(t *testing.T) {
	a := RequestHash("POST", "/v1/sessions/s1/payments", []byte(`{"quote_id":"q1"}`))
	b := RequestHash("POST", "/v1/sessions/s1/payments", []byte(`{"quote_id":"q2"}`))
	c := RequestHash("POST", "/v1/sessions/s1/payments", []byte(`{"quote_id":"q1"}`))
	assert.NotEqual(t, a, b)
	assert.Equal(t, a, c)
	assert.Len(t, a, 64)
}
