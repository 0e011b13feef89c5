package services

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/bugdesk/bugdesk/internal/config"
	"github.com/bugdesk/bugdesk/pkg/logger"
	"github.com/hibiken/asynq"
)

const (
	TaskTypeIndexTicket  = "search:index_ticket"
	TaskTypeRemoveTicket = "search:remove_ticket"
	TaskTypeSendEmail    = "email:send"
)

// SideEffectTask is a best-effort job that runs after the primary write committed.
type SideEffectTask struct {
	Type     string        `json:"type"`
	TicketID uint          `json:"ticket_id,omitempty"`
	Email    *EmailMessage `json:"email,omitempty"`
}

// TaskProcessor runs a side effect. Returning an error lets the async queue retry.
type TaskProcessor func(context.Context, *SideEffectTask) error

// TaskQueue hands side effects off the request path.
type TaskQueue interface {
	Enqueue(task *SideEffectTask) error
	// IsAsync reports whether tasks are handed to a separate worker process.
	IsAsync() bool
	Close() error
}

var (
	globalTaskQueue TaskQueue
	taskQueueOnce   sync.Once
)

// InitTaskQueue picks the Redis-backed queue when configured and reachable,
// and the in-process queue otherwise.
func InitTaskQueue(cfg *config.Config) TaskQueue {
	taskQueueOnce.Do(func() {
		if !cfg.Redis.Enabled {
			logger.Info().Msg("task queue running in-process (redis disabled)")
			globalTaskQueue = NewSyncQueue()
			return
		}

		queue, err := NewAsyncQueue(&cfg.Redis)
		if err != nil {
			logger.Warn().Err(err).Msg("redis unavailable, task queue falling back to in-process mode")
			globalTaskQueue = NewSyncQueue()
			return
		}
		logger.Info().Str("addr", cfg.Redis.Addr).Msg("task queue using redis")
		globalTaskQueue = queue
	})
	return globalTaskQueue
}

func redisOpt(cfg *config.RedisConfig) asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

// AsyncQueue implements TaskQueue on asynq.
type AsyncQueue struct {
	client *asynq.Client
}

func NewAsyncQueue(cfg *config.RedisConfig) (*AsyncQueue, error) {
	opt := redisOpt(cfg)
	client := asynq.NewClient(opt)

	inspector := asynq.NewInspector(opt)
	defer inspector.Close()

	if _, err := inspector.Queues(); err != nil {
		client.Close()
		return nil, err
	}

	return &AsyncQueue{client: client}, nil
}

func (q *AsyncQueue) Enqueue(task *SideEffectTask) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return err
	}

	info, err := q.client.Enqueue(asynq.NewTask(task.Type, payload),
		asynq.Queue("default"),
		asynq.MaxRetry(3),
	)
	if err != nil {
		return err
	}

	logger.Debug().Str("task_id", info.ID).Str("type", task.Type).Msg("task enqueued")
	return nil
}

func (q *AsyncQueue) IsAsync() bool {
	return true
}

func (q *AsyncQueue) Close() error {
	return q.client.Close()
}

// SyncQueue runs each task in its own goroutine inside this process.
// Failures are logged and never retried.
type SyncQueue struct {
	processor TaskProcessor
	wg        sync.WaitGroup
}

func NewSyncQueue() *SyncQueue {
	return &SyncQueue{}
}

func (q *SyncQueue) SetProcessor(processor TaskProcessor) {
	q.processor = processor
}

func (q *SyncQueue) Enqueue(task *SideEffectTask) error {
	if q.processor == nil {
		logger.Warn().Str("type", task.Type).Msg("no task processor set, task dropped")
		return nil
	}

	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		if err := q.processor(context.Background(), task); err != nil {
			logger.Error().Err(err).Str("type", task.Type).Uint("ticket_id", task.TicketID).Msg("side effect failed")
		}
	}()

	return nil
}

func (q *SyncQueue) IsAsync() bool {
	return false
}

// Close waits for in-flight tasks.
func (q *SyncQueue) Close() error {
	q.wg.Wait()
	return nil
}
