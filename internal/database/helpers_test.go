package database

import (
	"context"
	"io"
	"testing"
	"time"

	"turnover/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func seedAccount(t *testing.T, db *DB, externalID string) *models.Account {
	t.Helper()
	acc := &models.Account{ExternalAccountID: externalID, Name: "Account " + externalID, APIKey: "key-" + externalID}
	require.NoError(t, db.UpsertAccount(context.Background(), acc))
	return acc
}

func seedProperty(t *testing.T, db *DB, accountID int64, listingID string) *models.Property {
	t.Helper()
	p := &models.Property{AccountID: accountID, ExternalListingID: listingID, Name: "Flat " + listingID, Address: "Main st 1"}
	require.NoError(t, db.UpsertProperty(context.Background(), p))
	return p
}

func seedBooking(t *testing.T, db *DB, p *models.Property, externalID string, checkIn, checkOut time.Time) *models.Booking {
	t.Helper()
	b := &models.Booking{
		AccountID:         p.AccountID,
		PropertyID:        p.ID,
		ExternalBookingID: externalID,
		GuestName:         "Guest " + externalID,
		CheckIn:           checkIn,
		CheckOut:          checkOut,
		NumberOfGuests:    2,
		BookingStatus:     models.BookingStatusNew,
		Currency:          "EUR",
	}
	require.NoError(t, db.UpsertBooking(context.Background(), b))
	return b
}

func seedWorker(t *testing.T, db *DB, name string) *models.Worker {
	t.Helper()
	w := &models.Worker{Name: name, Email: name + "@example.com", Phone: "+100"}
	require.NoError(t, db.CreateWorker(context.Background(), w))
	return w
}

// seedTask creates a pending task for a fresh booking on a fresh property.
func seedTask(t *testing.T, db *DB, scheduled time.Time) *models.CleaningTask {
	t.Helper()
	acc := seedAccount(t, db, "acc")
	p := seedProperty(t, db, acc.ID, "L-"+scheduled.Format("20060102T150405.000"))
	b := seedBooking(t, db, p, "R-"+scheduled.Format("20060102T150405.000"), scheduled.Add(-72*time.Hour), scheduled.Add(-time.Hour))
	task, created, err := db.CreateTaskIfAbsent(context.Background(), &models.CleaningTask{
		BookingID:         b.ID,
		PropertyID:        p.ID,
		ScheduledTime:     scheduled,
		Status:            models.TaskPending,
		Priority:          models.PriorityNormal,
		EstimatedDuration: 120,
	}, models.DefaultChecklist)
	require.NoError(t, err)
	require.True(t, created)
	return task
}

func history(actor models.Actor, notes string) *models.TaskHistory {
	return &models.TaskHistory{ChangedBy: actor.ID, ChangedByType: actor.Type, Notes: notes}
}
