package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/course-jobs/internal/llm"
)

type recordedSleep struct {
	waits []time.Duration
}

func (r *recordedSleep) sleep(_ context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return nil
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, 60*time.Second, Backoff(&llm.RateLimitError{}, 3))
	assert.Equal(t, time.Second, Backoff(&llm.UnavailableError{StatusCode: 503}, 1))
	assert.Equal(t, 8*time.Second, Backoff(&llm.UnavailableError{StatusCode: 503}, 4))
	assert.Equal(t, 2*time.Second, Backoff(ErrMalformedAIResponse, 1))
	assert.Equal(t, 2*time.Second, Backoff(&llm.StatusError{StatusCode: 400}, 2))
}

func TestRetrier_WaitsByErrorClass(t *testing.T) {
	rs := &recordedSleep{}
	r := NewRetrier(5, rs.sleep, nil)

	errs := []error{
		&llm.UnavailableError{StatusCode: 502},
		&llm.UnavailableError{StatusCode: 502},
		&llm.RateLimitError{},
		errors.New("garbage"),
	}
	calls := 0
	err := r.Do(context.Background(), "test", func(context.Context) error {
		calls++
		if calls <= len(errs) {
			return errs[calls-1]
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 5, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 60 * time.Second, 2 * time.Second}, rs.waits)
}

func TestRetrier_GivesUpAfterMaxAttempts(t *testing.T) {
	rs := &recordedSleep{}
	r := NewRetrier(5, rs.sleep, nil)

	calls := 0
	err := r.Do(context.Background(), "test", func(context.Context) error {
		calls++
		return ErrMalformedAIResponse
	})
	assert.ErrorIs(t, err, ErrMalformedAIResponse)
	assert.Equal(t, 5, calls)
	assert.Len(t, rs.waits, 4)
}

func TestRetrier_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := NewRetrier(5, nil, nil)

	calls := 0
	err := r.Do(ctx, "test", func(context.Context) error {
		calls++
		cancel()
		return &llm.RateLimitError{}
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestChunk(t *testing.T) {
	assert.Nil(t, Chunk("", 10))
	assert.Equal(t, []string{"abc"}, Chunk("abc", 10))
	assert.Equal(t, []string{"ab", "cd", "e"}, Chunk("abcde", 2))
	assert.Equal(t, []string{"éé", "é"}, Chunk("ééé", 2))
	assert.Len(t, Chunk(string(make([]byte, 20000)), 0), 3)
}
