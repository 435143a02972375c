package models

import "time"

const (
	SyncStatusSuccess = "success"
	SyncStatusError   = "error"
)

// AccountSyncResult is the outcome of one account's reconciliation cycle.
type AccountSyncResult struct {
	RunID             string    `json:"run_id"`
	AccountID         string    `json:"account_id"`
	Name              string    `json:"name"`
	Status            string    `json:"status"`
	ListingsCount     int       `json:"listings_count"`
	ReservationsCount int       `json:"reservations_count"`
	SkippedCount      int       `json:"skipped_count"`
	TasksCreated      int       `json:"tasks_created"`
	Error             string    `json:"error,omitempty"`
	StartedAt         time.Time `json:"started_at"`
	FinishedAt        time.Time `json:"finished_at"`
}

// SyncBatchResult aggregates a sync over every configured account.
type SyncBatchResult struct {
	Results []AccountSyncResult `json:"results"`
}

func (r SyncBatchResult) Failed() []AccountSyncResult {
	var failed []AccountSyncResult
	for _, res := range r.Results {
		if res.Status != SyncStatusSuccess {
			failed = append(failed, res)
		}
	}
	return failed
}
