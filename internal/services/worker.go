package services

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/bugdesk/bugdesk/internal/config"
	"github.com/bugdesk/bugdesk/pkg/logger"
	"github.com/hibiken/asynq"
)

// Worker consumes side-effect tasks from redis.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	processor TaskProcessor
	running   bool
	mu        sync.Mutex
}

// NewWorker returns nil when redis is disabled.
func NewWorker(cfg *config.RedisConfig) *Worker {
	if !cfg.Enabled {
		return nil
	}

	server := asynq.NewServer(
		redisOpt(cfg),
		asynq.Config{
			Concurrency: 5,
			Queues: map[string]int{
				"default": 1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				logger.Error().Err(err).Str("type", task.Type()).Msg("task failed")
			}),
		},
	)

	return &Worker{
		server: server,
		mux:    asynq.NewServeMux(),
	}
}

func (w *Worker) SetProcessor(processor TaskProcessor) {
	w.processor = processor
}

func (w *Worker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	for _, taskType := range []string{TaskTypeIndexTicket, TaskTypeRemoveTicket, TaskTypeSendEmail} {
		w.mux.HandleFunc(taskType, w.handleTask)
	}

	// Start does not block; signals are handled by the HTTP server's shutdown.
	if err := w.server.Start(w.mux); err != nil {
		return err
	}
	w.running = true
	logger.Info().Msg("task worker started")
	return nil
}

func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}

	w.server.Shutdown()
	w.running = false
	logger.Info().Msg("task worker shut down")
}

func (w *Worker) handleTask(ctx context.Context, t *asynq.Task) error {
	var task SideEffectTask
	if err := json.Unmarshal(t.Payload(), &task); err != nil {
		// A malformed payload never succeeds; do not retry it.
		logger.Error().Err(err).Str("type", t.Type()).Msg("invalid task payload")
		return asynq.SkipRetry
	}

	if w.processor == nil {
		logger.Warn().Str("type", task.Type).Msg("no task processor set")
		return nil
	}

	return w.processor(ctx, &task)
}
