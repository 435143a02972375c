package google

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"turnover/internal/domain"
	"turnover/internal/events"
	"turnover/internal/models"

	"github.com/rs/zerolog"
)

// TaskSheetsExport is the outbox task type that refreshes the task board.
const TaskSheetsExport = "sheets_export"

type TaskLister interface {
	ListTasks(ctx context.Context, f models.TaskFilter) ([]*models.TaskView, error)
}

type Queue interface {
	Enqueue(ctx context.Context, taskType string, entityID int64, payload interface{}) error
}

// Publisher keeps the spreadsheet in step with task changes. Refreshes go through the
// outbox so a Sheets outage only delays the board.
type Publisher struct {
	board   domain.SheetsWriter
	tasks   TaskLister
	queue   Queue
	back    time.Duration
	ahead   time.Duration
	now     func() time.Time
	pending atomic.Bool
	logger  *zerolog.Logger
}

func NewPublisher(board domain.SheetsWriter, tasks TaskLister, queue Queue, logger *zerolog.Logger) *Publisher {
	return &Publisher{
		board:  board,
		tasks:  tasks,
		queue:  queue,
		back:   24 * time.Hour,
		ahead:  14 * 24 * time.Hour,
		now:    time.Now,
		logger: logger,
	}
}

// Publish writes tasks scheduled from yesterday to two weeks ahead.
func (p *Publisher) Publish(ctx context.Context) error {
	now := p.now().UTC()
	from, to := now.Add(-p.back), now.Add(p.ahead)
	tasks, err := p.tasks.ListTasks(ctx, models.TaskFilter{StartDate: &from, EndDate: &to})
	if err != nil {
		return fmt.Errorf("list tasks for board: %w", err)
	}
	if err := p.board.ReplaceTasksSheet(ctx, tasks); err != nil {
		return err
	}
	p.logger.Debug().Int("tasks", len(tasks)).Msg("Task board refreshed")
	return nil
}

// Handle is the outbox handler for TaskSheetsExport.
func (p *Publisher) Handle(ctx context.Context, _ *models.OutboxTask) error {
	p.pending.Store(false)
	return p.Publish(ctx)
}

// Request queues a refresh unless one is already waiting.
func (p *Publisher) Request(ctx context.Context) error {
	if !p.pending.CompareAndSwap(false, true) {
		return nil
	}
	if err := p.queue.Enqueue(ctx, TaskSheetsExport, 0, map[string]time.Time{"requested_at": p.now().UTC()}); err != nil {
		p.pending.Store(false)
		return err
	}
	return nil
}

// Subscribe refreshes the board after every task change and sync cycle.
func (p *Publisher) Subscribe(bus *events.EventBus) {
	bus.Subscribe(func(e *events.Event) error {
		return p.Request(context.Background())
	},
		events.EventTaskCreated,
		events.EventTaskAssigned,
		events.EventTaskStarted,
		events.EventTaskCompleted,
		events.EventTaskCancelled,
		events.EventSyncFinished,
	)
}
