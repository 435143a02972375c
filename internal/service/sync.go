package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"turnover/internal/domain"
	"turnover/internal/events"
	"turnover/internal/metrics"
	"turnover/internal/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const defaultSyncConcurrency = 4

// SyncService runs reconciliation over every configured account.
type SyncService struct {
	accounts    []models.Account
	accountRepo domain.AccountRepository
	runs        domain.SyncRunRepository
	reconciler  *Reconciler
	eventBus    domain.EventPublisher
	concurrency int
	logger      *zerolog.Logger

	mu sync.Mutex // один цикл синхронизации за раз
}

func NewSyncService(accounts []models.Account, accountRepo domain.AccountRepository, runs domain.SyncRunRepository,
	reconciler *Reconciler, eventBus domain.EventPublisher, concurrency int, logger *zerolog.Logger) *SyncService {
	if concurrency <= 0 {
		concurrency = defaultSyncConcurrency
	}
	return &SyncService{
		accounts:    accounts,
		accountRepo: accountRepo,
		runs:        runs,
		reconciler:  reconciler,
		eventBus:    eventBus,
		concurrency: concurrency,
		logger:      logger,
	}
}

// RegisterAccounts stores the configured accounts so reconciliation can resolve them.
func (s *SyncService) RegisterAccounts(ctx context.Context) error {
	for i := range s.accounts {
		a := s.accounts[i]
		if err := s.accountRepo.UpsertAccount(ctx, &a); err != nil {
			return fmt.Errorf("register account %s: %w", a.ExternalAccountID, err)
		}
	}
	return nil
}

// SyncAll reconciles every account in parallel. One account failing never stops the others;
// the batch then comes back together with ErrPartialFailure.
func (s *SyncService) SyncAll(ctx context.Context) (*models.SyncBatchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	runID := uuid.NewString()
	results := make([]models.AccountSyncResult, len(s.accounts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i := range s.accounts {
		i := i
		g.Go(func() error {
			results[i] = s.syncAccount(gctx, runID, s.accounts[i])
			return nil
		})
	}
	_ = g.Wait()

	batch := &models.SyncBatchResult{Results: results}
	failed := batch.Failed()

	created := 0
	for _, r := range results {
		created += r.TasksCreated
	}
	err := s.eventBus.PublishJSON(events.EventSyncFinished, events.SyncEventPayload{
		RunID:     runID,
		Accounts:  len(results),
		Failed:    len(failed),
		TasksMade: created,
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to publish sync_finished")
	}

	s.logger.Info().
		Str("run_id", runID).
		Int("accounts", len(results)).
		Int("failed", len(failed)).
		Int("tasks_created", created).
		Msg("Sync cycle finished")

	if len(failed) > 0 {
		return batch, fmt.Errorf("%d of %d accounts failed: %w", len(failed), len(results), domain.ErrPartialFailure)
	}
	return batch, nil
}

func (s *SyncService) syncAccount(ctx context.Context, runID string, account models.Account) models.AccountSyncResult {
	res := models.AccountSyncResult{
		RunID:     runID,
		AccountID: account.ExternalAccountID,
		Name:      account.Name,
		StartedAt: time.Now().UTC(),
	}

	stats, err := s.reconciler.ReconcileAccount(ctx, account.ExternalAccountID)
	res.FinishedAt = time.Now().UTC()
	res.ListingsCount = stats.Listings
	res.ReservationsCount = stats.Reservations
	res.SkippedCount = stats.Skipped
	res.TasksCreated = stats.TasksCreated

	if err != nil {
		res.Status = models.SyncStatusError
		res.Error = err.Error()
		s.logger.Error().Err(err).Str("account_id", account.ExternalAccountID).Msg("Account sync failed")
	} else {
		res.Status = models.SyncStatusSuccess
	}
	metrics.ObserveSync(res.Status, res.FinishedAt.Sub(res.StartedAt))

	// контекст батча мог быть отменен, запись прогона не должна от этого пропасть
	if err := s.runs.RecordSyncRun(context.WithoutCancel(ctx), &res); err != nil {
		s.logger.Error().Err(err).Str("account_id", account.ExternalAccountID).Msg("Failed to record sync run")
	}
	return res
}
