package provider

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAwait_ResolvesFromBackgroundCallback(t *testing.T) {
	got, err := Await(context.Background(), func(done func(string, error)) {
		go func() {
			time.Sleep(10 * time.Millisecond)
			done("token-1", nil)
		}()
	})
	require.NoError(t, err)
	assert.Equal(t, "token-1", got)
}

func TestAwait_RejectsOnCallbackError(t *testing.T) {
	boom := errors.New("connection reset")
	_, err := Await(context.Background(), func(done func(int, error)) {
		go done(0, boom)
	})
	assert.ErrorIs(t, err, boom)
}

func TestAwait_SynchronousCallback(t *testing.T) {
	got, err := Await(context.Background(), func(done func(int, error)) {
		done(42, nil)
	})
	require.NoError(t, err)
	assert.Equal(t, 42, got)
}

func TestAwait_ContextDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := Await(ctx, func(done func(int, error)) {})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLatch_FirstSettleWins(t *testing.T) {
	latch := NewLatch[string]()

	var wg sync.WaitGroup
	wins := make(chan string, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v := string(rune('a' + i))
			if latch.Settle(v, nil) {
				wins <- v
			}
		}(i)
	}
	wg.Wait()
	close(wins)

	var winners []string
	for w := range wins {
		winners = append(winners, w)
	}
	require.Len(t, winners, 1)

	got, err := latch.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, winners[0], got)
	assert.EqualValues(t, 9, latch.Dropped())
}

func TestLatch_DoubleInvocationDoesNotBlock(t *testing.T) {
	got, err := Await(context.Background(), func(done func(string, error)) {
		done("first", nil)
		done("second", errors.New("late"))
	})
	require.NoError(t, err)
	assert.Equal(t, "first", got)
}
