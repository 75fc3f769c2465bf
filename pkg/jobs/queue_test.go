package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type outcomes struct {
	mu   sync.Mutex
	seen []string
}

func (o *outcomes) JobProcessed(jobType, outcome string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.seen = append(o.seen, jobType+":"+outcome)
}

func (o *outcomes) list() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.seen...)
}

func TestQueueDispatchesByType(t *testing.T) {
	q := NewQueue("test", QueueConfig{Workers: 2})
	got := make(chan string, 2)
	q.Register("mail", func(_ context.Context, j Job) error {
		got <- "mail:" + j.Payload.(string)
		return nil
	})
	q.Start(context.Background())
	defer q.Stop()

	id, err := q.Enqueue("mail", "welcome")
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	select {
	case v := <-got:
		assert.Equal(t, "mail:welcome", v)
	case <-time.After(time.Second):
		t.Fatal("job not processed")
	}

	_, err = q.Enqueue("unknown", nil)
	assert.ErrorIs(t, err, ErrUnknownType)
}

func TestQueueRetriesThenGivesUp(t *testing.T) {
	obs := &outcomes{}
	q := NewQueue("test", QueueConfig{MaxRetries: 2, RetryDelay: time.Millisecond, Observer: obs})
	var attempts int32
	q.Register("flaky", func(context.Context, Job) error {
		atomic.AddInt32(&attempts, 1)
		return errors.New("smtp down")
	})
	q.Start(context.Background())

	_, err := q.Enqueue("flaky", nil)
	require.NoError(t, err)
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&attempts) == 3 }, time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return len(obs.list()) == 3 }, time.Second, 5*time.Millisecond)
	q.Stop()

	assert.Equal(t, []string{"flaky:retry", "flaky:retry", "flaky:failed"}, obs.list())
}

func TestQueueRejectsWhenStopped(t *testing.T) {
	q := NewQueue("test", QueueConfig{})
	q.Register("mail", func(context.Context, Job) error { return nil })
	_, err := q.Enqueue("mail", nil)
	assert.ErrorIs(t, err, ErrNotStarted)

	q.Start(context.Background())
	q.Stop()
	q.Stop()
	_, err = q.Enqueue("mail", nil)
	assert.ErrorIs(t, err, ErrNotStarted)
}
