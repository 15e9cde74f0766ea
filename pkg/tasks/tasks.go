// Package tasks 定义了回复完成后的后处理任务，以及任务的重试执行逻辑。
package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"llm-chat-go/pkg/log"
)

// MaxAttempts 是单个任务的最大尝试次数。
const MaxAttempts = 3

// CompletionTask 在一次流式回复完成（占位消息已写入全文）后发布。
type CompletionTask struct {
	SessionID          string    `json:"session_id"`
	UserID             uint      `json:"user_id"`
	UserMessageID      string    `json:"user_message_id"`
	AssistantMessageID string    `json:"assistant_message_id"`
	Provider           string    `json:"provider"`
	Model              string    `json:"model"`
	CompletedAt        time.Time `json:"completed_at"`
}

// Key 返回任务的去重键。
func (t CompletionTask) Key() string {
	return t.AssistantMessageID
}

// Processor 是任何能够处理完成任务的组件。
type Processor interface {
	Process(ctx context.Context, task CompletionTask) error
}

// Publisher 把任务交给某个执行通道（Kafka 或进程内）。
type Publisher interface {
	PublishCompletion(ctx context.Context, task CompletionTask) error
}

// AttemptCounter 记录任务失败次数，重启后仍然有效的实现基于 Redis。
type AttemptCounter interface {
	Incr(ctx context.Context, key string) (int64, error)
	Reset(ctx context.Context, key string) error
}

type redisAttemptCounter struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisAttemptCounter 创建基于 Redis 的计数器，计数保留 24 小时。
func NewRedisAttemptCounter(rdb *redis.Client) AttemptCounter {
	return &redisAttemptCounter{rdb: rdb, ttl: 24 * time.Hour}
}

func attemptsKey(key string) string {
	return fmt.Sprintf("tasks:attempts:%s", key)
}

func (c *redisAttemptCounter) Incr(ctx context.Context, key string) (int64, error) {
	n, err := c.rdb.Incr(ctx, attemptsKey(key)).Result()
	if err != nil {
		return 0, err
	}
	_ = c.rdb.Expire(ctx, attemptsKey(key), c.ttl).Err()
	return n, nil
}

func (c *redisAttemptCounter) Reset(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, attemptsKey(key)).Err()
}

type memoryAttemptCounter struct {
	mu     sync.Mutex
	counts map[string]int64
}

// NewMemoryAttemptCounter 创建进程内计数器。
func NewMemoryAttemptCounter() AttemptCounter {
	return &memoryAttemptCounter{counts: make(map[string]int64)}
}

func (c *memoryAttemptCounter) Incr(_ context.Context, key string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counts[key]++
	return c.counts[key], nil
}

func (c *memoryAttemptCounter) Reset(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.counts, key)
	return nil
}

// Runner 同步执行任务并在失败时重试，直到成功或达到 MaxAttempts。
type Runner struct {
	processor Processor
	counter   AttemptCounter
	backoff   time.Duration
}

// NewRunner 创建任务执行器。
func NewRunner(processor Processor, counter AttemptCounter, backoff time.Duration) *Runner {
	return &Runner{processor: processor, counter: counter, backoff: backoff}
}

// Run 返回最后一次失败的错误；达到上限时任务被放弃。
// 计数器不可用时保守处理：立即返回错误，交由调用方决定是否重投。
func (r *Runner) Run(ctx context.Context, task CompletionTask) error {
	for {
		err := r.processor.Process(ctx, task)
		if err == nil {
			if rerr := r.counter.Reset(ctx, task.Key()); rerr != nil {
				log.Warnf("清理任务失败计数失败: key=%s, err=%v", task.Key(), rerr)
			}
			return nil
		}
		log.Errorf("处理完成任务失败: message=%s, err=%v", task.AssistantMessageID, err)

		attempts, incErr := r.counter.Incr(ctx, task.Key())
		if incErr != nil {
			return fmt.Errorf("process task: %w (attempt counter unavailable: %v)", err, incErr)
		}
		if attempts >= MaxAttempts {
			log.Errorf("完成任务多次失败(>=%d)，放弃: message=%s", MaxAttempts, task.AssistantMessageID)
			_ = r.counter.Reset(ctx, task.Key())
			return fmt.Errorf("task abandoned after %d attempts: %w", attempts, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.backoff * time.Duration(attempts)):
		}
	}
}

// InlinePublisher 在未启用 Kafka 时使用，在独立 goroutine 中直接执行任务。
type InlinePublisher struct {
	runner *Runner
	ctx    context.Context
	wg     sync.WaitGroup
}

// NewInlinePublisher 创建进程内发布器；ctx 结束后不再接受新任务。
func NewInlinePublisher(ctx context.Context, runner *Runner) *InlinePublisher {
	return &InlinePublisher{runner: runner, ctx: ctx}
}

func (p *InlinePublisher) PublishCompletion(_ context.Context, task CompletionTask) error {
	if err := p.ctx.Err(); err != nil {
		return err
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		_ = p.runner.Run(p.ctx, task)
	}()
	return nil
}

// Wait 等待所有已发布的任务执行完毕。
func (p *InlinePublisher) Wait() {
	p.wg.Wait()
}
