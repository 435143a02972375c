package service

import (
	"context"
	"fmt"
	"time"

	"turnover/internal/domain"
	"turnover/internal/models"
)

// OverviewService backs the read-only dashboard endpoints.
type OverviewService struct {
	accounts      domain.AccountRepository
	bookings      domain.BookingRepository
	workers       domain.WorkerRepository
	tasks         domain.TaskRepository
	notifications domain.NotificationRepository
	runs          domain.SyncRunRepository
	now           func() time.Time
}

func NewOverviewService(accounts domain.AccountRepository, bookings domain.BookingRepository, workers domain.WorkerRepository,
	tasks domain.TaskRepository, notifications domain.NotificationRepository, runs domain.SyncRunRepository) *OverviewService {
	return &OverviewService{
		accounts:      accounts,
		bookings:      bookings,
		workers:       workers,
		tasks:         tasks,
		notifications: notifications,
		runs:          runs,
		now:           time.Now,
	}
}

func (s *OverviewService) Accounts(ctx context.Context) ([]*models.AccountOverview, error) {
	return s.accounts.ListAccountOverviews(ctx, s.now())
}

func (s *OverviewService) Bookings(ctx context.Context, f models.BookingFilter) ([]*models.BookingView, error) {
	if f.StartDate != nil && f.EndDate != nil && f.EndDate.Before(*f.StartDate) {
		return nil, fmt.Errorf("end date before start date: %w", domain.ErrInvalidInput)
	}
	return s.bookings.ListBookings(ctx, f)
}

func (s *OverviewService) Workers(ctx context.Context) ([]*models.Worker, error) {
	return s.workers.ListActiveWorkers(ctx)
}

// Me returns the profile of the calling worker.
func (s *OverviewService) Me(ctx context.Context, actor models.Actor) (*models.Worker, error) {
	if actor.Type != models.ActorWorker {
		return nil, fmt.Errorf("%s has no worker profile: %w", actor.Type, domain.ErrNotFound)
	}
	return s.workers.GetWorker(ctx, actor.ID)
}

func (s *OverviewService) Notifications(ctx context.Context, actor models.Actor) ([]*models.Notification, error) {
	return s.notifications.ListNotifications(ctx, actor.ID, actor.Type, models.NotificationsPageSize)
}

func (s *OverviewService) MarkNotificationRead(ctx context.Context, id int64, actor models.Actor) error {
	return s.notifications.MarkNotificationRead(ctx, id, actor.ID, actor.Type)
}

// Analytics summarizes tasks; "today" is the current UTC day.
func (s *OverviewService) Analytics(ctx context.Context) (*models.AnalyticsSummary, error) {
	now := s.now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return s.tasks.AnalyticsSummary(ctx, dayStart, dayStart.AddDate(0, 0, 1))
}

func (s *OverviewService) SyncRuns(ctx context.Context, limit int) ([]models.AccountSyncResult, error) {
	switch {
	case limit <= 0:
		limit = 50
	case limit > 500:
		limit = 500
	}
	return s.runs.ListSyncRuns(ctx, limit)
}
