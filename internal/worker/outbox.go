package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"turnover/internal/domain"
	"turnover/internal/metrics"
	"turnover/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// Handler performs one kind of outbox task. A returned error schedules a retry.
type Handler func(ctx context.Context, task *models.OutboxTask) error

// ErrPermanent marks a failure that retrying cannot fix.
var ErrPermanent = errors.New("permanent failure")

// OutboxWorker delivers side effects persisted in the outbox table. New tasks are also pushed to a
// Redis list (or an in-memory channel without Redis) so they are picked up before the next poll.
type OutboxWorker struct {
	store         domain.OutboxRepository
	redis         *redis.Client
	handlers      map[string]Handler
	retryPolicy   RetryPolicy
	queue         chan models.OutboxTask
	redisQueueKey string
	deadLetterKey string
	pollInterval  time.Duration
	batchSize     int
	logger        *zerolog.Logger
}

type Options struct {
	PollInterval time.Duration
	BatchSize    int
	Retry        RetryPolicy
}

func NewOutboxWorker(store domain.OutboxRepository, redisClient *redis.Client, opts Options, logger *zerolog.Logger) *OutboxWorker {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 20
	}

	return &OutboxWorker{
		store:         store,
		redis:         redisClient,
		handlers:      make(map[string]Handler),
		retryPolicy:   opts.Retry.withDefaults(),
		queue:         make(chan models.OutboxTask, 128),
		redisQueueKey: "turnover:outbox:queue",
		deadLetterKey: "turnover:outbox:deadletter",
		pollInterval:  opts.PollInterval,
		batchSize:     opts.BatchSize,
		logger:        logger,
	}
}

// Handle registers the handler for a task type. Call before Start.
func (w *OutboxWorker) Handle(taskType string, h Handler) {
	w.handlers[taskType] = h
}

// Enqueue persists a task and schedules it via redis or the in-memory queue.
func (w *OutboxWorker) Enqueue(ctx context.Context, taskType string, entityID int64, payload interface{}) error {
	if taskType == "" {
		return errors.New("task type is required")
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	task := models.OutboxTask{
		TaskType: taskType,
		EntityID: entityID,
		Payload:  string(raw),
		Status:   models.OutboxPending,
	}
	if err := w.store.CreateOutboxTask(ctx, &task); err != nil {
		return fmt.Errorf("persist outbox task: %w", err)
	}

	if w.redis != nil {
		if err := w.pushRedis(ctx, w.redisQueueKey, task); err != nil {
			w.logger.Warn().Err(err).Int64("task_id", task.ID).Msg("Redis push failed, falling back to memory queue")
		} else {
			return nil
		}
	}

	select {
	case w.queue <- task:
	default:
		// останется в БД, подберется опросом
		w.logger.Warn().Int64("task_id", task.ID).Msg("Outbox memory queue full")
	}
	return nil
}

// Start runs the delivery loop until ctx is done.
func (w *OutboxWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("Outbox worker started")
	defer w.logger.Info().Msg("Outbox worker stopped")

	if n, err := w.store.ReleaseStuckOutboxTasks(ctx); err != nil {
		w.logger.Error().Err(err).Msg("Failed to release stuck outbox tasks")
	} else if n > 0 {
		w.logger.Warn().Int64("count", n).Msg("Released outbox tasks left in processing")
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if t, ok := w.tryLocalQueue(); ok {
			w.processTask(ctx, &t)
			continue
		}
		if t, ok := w.tryRedis(ctx); ok {
			w.processTask(ctx, &t)
			continue
		}

		if n := w.Drain(ctx); n == 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.pollInterval):
			}
		}
	}
}

// Drain processes one batch of due tasks from the table and returns how many it handled.
func (w *OutboxWorker) Drain(ctx context.Context) int {
	tasks, err := w.store.GetPendingOutboxTasks(ctx, w.batchSize)
	if err != nil {
		w.logger.Error().Err(err).Msg("Failed to fetch pending outbox tasks")
		return 0
	}
	for i := range tasks {
		w.processTask(ctx, &tasks[i])
	}
	return len(tasks)
}

func (w *OutboxWorker) tryLocalQueue() (models.OutboxTask, bool) {
	select {
	case t := <-w.queue:
		return t, true
	default:
		return models.OutboxTask{}, false
	}
}

func (w *OutboxWorker) tryRedis(ctx context.Context) (models.OutboxTask, bool) {
	if w.redis == nil {
		return models.OutboxTask{}, false
	}
	res, err := w.redis.BRPop(ctx, time.Second, w.redisQueueKey).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			w.logger.Error().Err(err).Msg("Redis BRPOP failed")
		}
		return models.OutboxTask{}, false
	}
	if len(res) != 2 {
		return models.OutboxTask{}, false
	}
	var task models.OutboxTask
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		w.logger.Error().Err(err).Msg("Failed to decode redis outbox task")
		return models.OutboxTask{}, false
	}
	return task, true
}

func (w *OutboxWorker) processTask(ctx context.Context, task *models.OutboxTask) {
	// одна и та же задача может прийти и из очереди, и из опроса
	claimed, err := w.store.ClaimOutboxTask(ctx, task.ID)
	if err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("Failed to claim outbox task")
		return
	}
	if !claimed {
		return
	}

	handler, ok := w.handlers[task.TaskType]
	if !ok {
		w.fail(ctx, task, fmt.Errorf("no handler for task type %q", task.TaskType))
		return
	}

	if err := handler(ctx, task); err != nil {
		if errors.Is(err, ErrPermanent) {
			w.fail(ctx, task, err)
			return
		}
		w.retryOrFail(ctx, task, err)
		return
	}

	metrics.IncOutbox(task.TaskType, models.OutboxCompleted)
	if err := w.store.UpdateOutboxTaskStatus(ctx, task.ID, models.OutboxCompleted, "", nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("Failed to mark outbox task completed")
	}
}

func (w *OutboxWorker) retryOrFail(ctx context.Context, task *models.OutboxTask, cause error) {
	next, ok := w.retryPolicy.Schedule(task.RetryCount, time.Now())
	if !ok {
		w.fail(ctx, task, cause)
		return
	}

	metrics.IncOutbox(task.TaskType, models.OutboxRetry)
	w.logger.Warn().Err(cause).Int64("task_id", task.ID).Int("attempt", task.RetryCount+1).Time("next_retry_at", next).Msg("Outbox task failed, will retry")
	if err := w.store.UpdateOutboxTaskStatus(ctx, task.ID, models.OutboxRetry, cause.Error(), &next); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("Failed to mark outbox task for retry")
	}
}

func (w *OutboxWorker) fail(ctx context.Context, task *models.OutboxTask, cause error) {
	metrics.IncOutbox(task.TaskType, models.OutboxFailed)
	w.logger.Error().Err(cause).Int64("task_id", task.ID).Str("type", task.TaskType).Msg("Outbox task failed permanently")
	if err := w.store.UpdateOutboxTaskStatus(ctx, task.ID, models.OutboxFailed, cause.Error(), nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("Failed to mark outbox task failed")
	}
	if w.redis != nil {
		if err := w.pushRedis(ctx, w.deadLetterKey, *task); err != nil {
			w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("Dead letter push failed")
		}
	}
}

func (w *OutboxWorker) pushRedis(ctx context.Context, key string, task models.OutboxTask) error {
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return w.redis.LPush(ctx, key, data).Err()
}
