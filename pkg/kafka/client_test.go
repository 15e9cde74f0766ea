package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"llm-chat-go/pkg/tasks"
)

type fakeWriter struct {
	msgs []kafka.Message
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []kafka.Message
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.queue) > 0 {
		m := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error {
	r.closed = true
	return nil
}

type recordingProcessor struct {
	mu   sync.Mutex
	seen []string
	fail bool
}

func (p *recordingProcessor) Process(_ context.Context, task tasks.CompletionTask) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seen = append(p.seen, task.AssistantMessageID)
	if p.fail {
		return errors.New("index unavailable")
	}
	return nil
}

func TestParseBrokers(t *testing.T) {
	assert.Equal(t, []string{"a:9092", "b:9092"}, ParseBrokers(" a:9092, ,b:9092 "))
}

func TestProducerKeysBySession(t *testing.T) {
	w := &fakeWriter{}
	p := &Producer{writer: w}
	task := tasks.CompletionTask{SessionID: "s1", AssistantMessageID: "m1"}
	require.NoError(t, p.PublishCompletion(context.Background(), task))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "s1", string(w.msgs[0].Key))

	var decoded tasks.CompletionTask
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &decoded))
	assert.Equal(t, task.AssistantMessageID, decoded.AssistantMessageID)
}

func TestConsumeCommitsProcessedAndMalformed(t *testing.T) {
	good, _ := json.Marshal(tasks.CompletionTask{AssistantMessageID: "m1"})
	second, _ := json.Marshal(tasks.CompletionTask{AssistantMessageID: "m2"})
	r := &fakeReader{queue: []kafka.Message{
		{Offset: 1, Value: good},
		{Offset: 2, Value: []byte("{not json")},
		{Offset: 3, Value: second},
	}}
	p := &recordingProcessor{}
	runner := tasks.NewRunner(p, tasks.NewMemoryAttemptCounter(), time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		consume(ctx, r, runner)
		close(done)
	}()

	require.Eventually(t, func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		return len(r.committed) == 3
	}, 2*time.Second, 5*time.Millisecond)
	cancel()
	<-done

	assert.True(t, r.closed)
	assert.Equal(t, []string{"m1", "m2"}, p.seen)
}
