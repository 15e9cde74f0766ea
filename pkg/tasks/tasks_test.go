package tasks

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type flakyProcessor struct {
	mu       sync.Mutex
	failures int
	calls    int
}

func (p *flakyProcessor) Process(context.Context, CompletionTask) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.calls <= p.failures {
		return errors.New("temporary")
	}
	return nil
}

func TestRunnerRetriesUntilSuccess(t *testing.T) {
	p := &flakyProcessor{failures: 2}
	r := NewRunner(p, NewMemoryAttemptCounter(), time.Millisecond)
	require.NoError(t, r.Run(context.Background(), CompletionTask{AssistantMessageID: "m1"}))
	assert.Equal(t, 3, p.calls)
}

func TestRunnerGivesUpAfterMaxAttempts(t *testing.T) {
	p := &flakyProcessor{failures: 10}
	counter := NewMemoryAttemptCounter()
	r := NewRunner(p, counter, time.Millisecond)
	err := r.Run(context.Background(), CompletionTask{AssistantMessageID: "m1"})
	require.Error(t, err)
	assert.Equal(t, MaxAttempts, p.calls)

	n, _ := counter.Incr(context.Background(), "m1")
	assert.Equal(t, int64(1), n, "counter is reset once the task is abandoned")
}

func TestInlinePublisher(t *testing.T) {
	p := &flakyProcessor{}
	pub := NewInlinePublisher(context.Background(), NewRunner(p, NewMemoryAttemptCounter(), time.Millisecond))
	require.NoError(t, pub.PublishCompletion(context.Background(), CompletionTask{AssistantMessageID: "a"}))
	require.NoError(t, pub.PublishCompletion(context.Background(), CompletionTask{AssistantMessageID: "b"}))
	pub.Wait()
	assert.Equal(t, 2, p.calls)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	closed := NewInlinePublisher(ctx, NewRunner(p, NewMemoryAttemptCounter(), time.Millisecond))
	assert.Error(t, closed.PublishCompletion(context.Background(), CompletionTask{}))
}
