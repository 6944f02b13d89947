// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Warden Contributors

package mail

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/wardenid/warden/pkg/errutil"
)

// Queue names and task types used by the mail queue.
const (
	QueueName    = "mail"
	TaskTypeSend = "mail:send"
	maxRetry     = 5
)

// RedisOpt converts a redis:// URL into asynq connection options.
func RedisOpt(redisURL string) (asynq.RedisClientOpt, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, oops.Code("CONFIG_INVALID").With("field", "redis.url").Wrap(err)
	}
	return asynq.RedisClientOpt{
		Addr:      opts.Addr,
		Username:  opts.Username,
		Password:  opts.Password,
		DB:        opts.DB,
		TLSConfig: opts.TLSConfig,
	}, nil
}

// NewSendTask wraps msg in an asynq task.
func NewSendTask(msg Message) (*asynq.Task, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, oops.Code("MAIL_ENCODE_FAILED").Wrap(err)
	}
	return asynq.NewTask(TaskTypeSend, data, asynq.Queue(QueueName), asynq.MaxRetry(maxRetry)), nil
}

type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// QueueSender enqueues messages for asynchronous delivery by a Worker.
type QueueSender struct {
	client enqueuer
}

// NewQueueSender creates a QueueSender backed by client.
func NewQueueSender(client *asynq.Client) *QueueSender {
	return &QueueSender{client: client}
}

// Send enqueues msg. A nil error means the message was accepted by the queue,
// not that it was delivered.
func (s *QueueSender) Send(ctx context.Context, msg Message) error {
	_, err := s.Enqueue(ctx, msg)
	return err
}

// Enqueue enqueues msg and returns the queued task.
func (s *QueueSender) Enqueue(ctx context.Context, msg Message) (*asynq.TaskInfo, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	task, err := NewSendTask(msg)
	if err != nil {
		return nil, err
	}
	info, err := s.client.EnqueueContext(ctx, task)
	if err != nil {
		return nil, oops.Code("MAIL_ENQUEUE_FAILED").With("to", msg.To).Wrap(err)
	}
	return info, nil
}

// NewTaskHandler returns an asynq handler that delivers mail:send tasks
// through sender. Undecodable or invalid payloads are not retried.
func NewTaskHandler(sender Sender, logger *slog.Logger) asynq.HandlerFunc {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, t *asynq.Task) error {
		var msg Message
		if err := json.Unmarshal(t.Payload(), &msg); err != nil {
			logger.WarnContext(ctx, "dropping undecodable mail task", "error", err)
			return asynq.SkipRetry
		}
		if err := msg.Validate(); err != nil {
			logger.WarnContext(ctx, "dropping invalid mail task", "error", err)
			return asynq.SkipRetry
		}
		if err := sender.Send(ctx, msg); err != nil {
			errutil.LogErrorContext(ctx, logger, "mail delivery failed", err)
			return err
		}
		return nil
	}
}

// Worker consumes the mail queue.
type Worker struct {
	server *asynq.Server
	mux    *asynq.ServeMux
	logger *slog.Logger
}

// WorkerConfig configures a Worker.
type WorkerConfig struct {
	RedisOpt    asynq.RedisClientOpt
	Concurrency int
	Sender      Sender
	Logger      *slog.Logger
}

// NewWorker creates a Worker delivering through cfg.Sender.
func NewWorker(cfg WorkerConfig) (*Worker, error) {
	if cfg.Sender == nil {
		return nil, oops.Errorf("mail sender is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 5
	}

	srv := asynq.NewServer(cfg.RedisOpt, asynq.Config{
		Concurrency: cfg.Concurrency,
		Queues:      map[string]int{QueueName: 1},
	})
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskTypeSend, NewTaskHandler(cfg.Sender, cfg.Logger))

	return &Worker{server: srv, mux: mux, logger: cfg.Logger}, nil
}

// Run processes tasks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	if err := w.server.Start(w.mux); err != nil {
		return oops.Code("MAIL_WORKER_FAILED").Wrap(err)
	}
	w.logger.Info("mail worker started", "queue", QueueName)

	<-ctx.Done()
	w.server.Shutdown()
	w.logger.Info("mail worker stopped")
	return nil
}
