package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"turnover/internal/domain"
	"turnover/internal/models"
	"turnover/internal/worker"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// TaskNotification is the outbox task type for notification delivery.
const TaskNotification = "notification"

// Message is the outbox payload of a queued notification.
type Message struct {
	Kind          string                     `json:"kind"`
	RecipientID   int64                      `json:"recipient_id"`
	RecipientType models.ActorType           `json:"recipient_type"`
	Payload       models.NotificationPayload `json:"payload"`
}

// Queue persists outbox work for later delivery.
type Queue interface {
	Enqueue(ctx context.Context, taskType string, entityID int64, payload interface{}) error
}

// Dispatcher queues notifications; delivery happens in the outbox worker.
type Dispatcher struct {
	queue Queue
}

func NewDispatcher(queue Queue) *Dispatcher {
	return &Dispatcher{queue: queue}
}

func (d *Dispatcher) Enqueue(ctx context.Context, kind string, recipientID int64, recipientType models.ActorType, payload models.NotificationPayload) error {
	if recipientID == 0 {
		return fmt.Errorf("notification %s without recipient: %w", kind, domain.ErrInvalidInput)
	}
	msg := Message{Kind: kind, RecipientID: recipientID, RecipientType: recipientType, Payload: payload}
	return d.queue.Enqueue(ctx, TaskNotification, recipientID, msg)
}

// Delivery stores the notification for the in-app feed and pushes it to Telegram when it can.
type Delivery struct {
	notifications domain.NotificationRepository
	workers       domain.WorkerRepository
	telegram      domain.TelegramSender
	logger        *zerolog.Logger
}

// NewDelivery builds a delivery handler. telegram may be nil.
func NewDelivery(notifications domain.NotificationRepository, workers domain.WorkerRepository, telegram domain.TelegramSender, logger *zerolog.Logger) *Delivery {
	return &Delivery{notifications: notifications, workers: workers, telegram: telegram, logger: logger}
}

// Handle is the outbox handler for TaskNotification.
func (d *Delivery) Handle(ctx context.Context, task *models.OutboxTask) error {
	var msg Message
	if err := json.Unmarshal([]byte(task.Payload), &msg); err != nil {
		return fmt.Errorf("decode notification: %v: %w", err, worker.ErrPermanent)
	}

	// повтор после сбоя телеграма не должен плодить записи в ленте
	if task.LastError == nil || !strings.HasPrefix(*task.LastError, errTelegramMarker) {
		if err := d.store(ctx, &msg); err != nil {
			return err
		}
	}

	if err := d.push(ctx, &msg); err != nil {
		return fmt.Errorf("%s: %w", errTelegramMarker, err)
	}
	return nil
}

const errTelegramMarker = "telegram send failed"

func (d *Delivery) store(ctx context.Context, msg *Message) error {
	data, err := json.Marshal(msg.Payload)
	if err != nil {
		return fmt.Errorf("encode notification data: %v: %w", err, worker.ErrPermanent)
	}
	now := time.Now().UTC()
	n := &models.Notification{
		UserID:   msg.RecipientID,
		UserType: msg.RecipientType,
		Type:     msg.Kind,
		Title:    msg.Payload.Title,
		Body:     msg.Payload.Body,
		Data:     data,
		SentAt:   &now,
	}
	if err := d.notifications.CreateNotification(ctx, n); err != nil {
		return fmt.Errorf("store notification: %w", err)
	}
	return nil
}

func (d *Delivery) push(ctx context.Context, msg *Message) error {
	if d.telegram == nil || msg.RecipientType != models.ActorWorker {
		return nil
	}

	w, err := d.workers.GetWorker(ctx, msg.RecipientID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if w.TelegramChatID == nil || *w.TelegramChatID == 0 {
		return nil
	}

	text := msg.Payload.Title
	if msg.Payload.Body != "" {
		text += "\n\n" + msg.Payload.Body
	}
	if _, err := d.telegram.Send(tgbotapi.NewMessage(*w.TelegramChatID, text)); err != nil {
		d.logger.Warn().Err(err).Int64("worker_id", w.ID).Msg("Telegram send failed")
		return err
	}
	return nil
}
