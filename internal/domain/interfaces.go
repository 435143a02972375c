package domain

import (
	"context"
	"time"

	"turnover/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Listing is a property as reported by the channel manager.
type Listing struct {
	ID               string
	Name             string
	Address          string
	City             string
	Country          string
	PropertyTypeName string
	Bedrooms         int
	Bathrooms        int
}

// Reservation is a stay as reported by the channel manager.
type Reservation struct {
	ID             string
	ListingMapID   string
	GuestName      string
	GuestEmail     string
	GuestPhone     string
	ArrivalDate    time.Time
	DepartureDate  time.Time
	NumberOfGuests int
	Status         string
	TotalPrice     float64
	Currency       string
}

type ExternalSource interface {
	ListListings(ctx context.Context, creds models.Credentials) ([]Listing, error)
	ListReservations(ctx context.Context, creds models.Credentials, from, to time.Time) ([]Reservation, error)
}

// Cache is a byte-oriented key/value store with expiry.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type AccountRepository interface {
	UpsertAccount(ctx context.Context, account *models.Account) error
	GetAccountByExternalID(ctx context.Context, externalID string) (*models.Account, error)
	ListAccountOverviews(ctx context.Context, now time.Time) ([]*models.AccountOverview, error)
}

type PropertyRepository interface {
	UpsertProperty(ctx context.Context, p *models.Property) error
	GetPropertyByExternalID(ctx context.Context, accountID int64, externalListingID string) (*models.Property, error)
	GetProperty(ctx context.Context, id int64) (*models.Property, error)
}

type BookingRepository interface {
	UpsertBooking(ctx context.Context, b *models.Booking) error
	GetBooking(ctx context.Context, id int64) (*models.Booking, error)
	ListBookings(ctx context.Context, f models.BookingFilter) ([]*models.BookingView, error)
	NextCheckIn(ctx context.Context, propertyID int64, after time.Time) (*time.Time, error)
}

type TaskRepository interface {
	CreateTaskIfAbsent(ctx context.Context, task *models.CleaningTask, checklist []string) (*models.CleaningTask, bool, error)
	UpdateTaskNotes(ctx context.Context, taskID int64, notes string) (bool, error)
	GetTask(ctx context.Context, id int64) (*models.CleaningTask, error)
	GetTaskView(ctx context.Context, id int64) (*models.TaskView, error)
	ListTasks(ctx context.Context, f models.TaskFilter) ([]*models.TaskView, error)
	AssignTask(ctx context.Context, taskID int64, from models.TaskStatus, workerID int64, h *models.TaskHistory) error
	StartTask(ctx context.Context, taskID, workerID int64, at time.Time, h *models.TaskHistory) error
	CompleteTask(ctx context.Context, taskID, workerID int64, at time.Time, notes string, h *models.TaskHistory) (*models.CleaningTask, error)
	CancelTask(ctx context.Context, taskID int64, from models.TaskStatus, h *models.TaskHistory) error
	UpdateChecklistItem(ctx context.Context, taskID, itemID int64, completed bool, at time.Time) (*models.ChecklistItem, error)
	ListTaskHistory(ctx context.Context, taskID int64) ([]*models.TaskHistory, error)
	AnalyticsSummary(ctx context.Context, dayStart, dayEnd time.Time) (*models.AnalyticsSummary, error)
	ListTasksForReminder(ctx context.Context, from, to time.Time) ([]*models.TaskView, error)
	MarkReminderSent(ctx context.Context, taskID, workerID int64, mark int, at time.Time) (bool, error)
}

type WorkerRepository interface {
	GetWorker(ctx context.Context, id int64) (*models.Worker, error)
	ListActiveWorkers(ctx context.Context) ([]*models.Worker, error)
}

type NotificationRepository interface {
	CreateNotification(ctx context.Context, n *models.Notification) error
	ListNotifications(ctx context.Context, userID int64, userType models.ActorType, limit int) ([]*models.Notification, error)
	MarkNotificationRead(ctx context.Context, id, userID int64, userType models.ActorType) error
}

type OutboxRepository interface {
	CreateOutboxTask(ctx context.Context, task *models.OutboxTask) error
	GetPendingOutboxTasks(ctx context.Context, limit int) ([]models.OutboxTask, error)
	ClaimOutboxTask(ctx context.Context, id int64) (bool, error)
	ReleaseStuckOutboxTasks(ctx context.Context) (int64, error)
	UpdateOutboxTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error
	GetFailedOutboxTasks(ctx context.Context) ([]models.OutboxTask, error)
}

type SyncRunRepository interface {
	RecordSyncRun(ctx context.Context, res *models.AccountSyncResult) error
	ListSyncRuns(ctx context.Context, limit int) ([]models.AccountSyncResult, error)
}

type EventPublisher interface {
	PublishJSON(eventType string, payload interface{}) error
}

// Notifier queues a notification for asynchronous delivery.
type Notifier interface {
	Enqueue(ctx context.Context, kind string, recipientID int64, recipientType models.ActorType, payload models.NotificationPayload) error
}

type TelegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type SheetsWriter interface {
	ReplaceTasksSheet(ctx context.Context, tasks []*models.TaskView) error
}
