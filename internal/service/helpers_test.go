package service

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"turnover/internal/database"
	"turnover/internal/domain"
	"turnover/internal/events"
	"turnover/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu           sync.Mutex
	listings     map[string][]domain.Listing
	reservations map[string][]domain.Reservation
	failing      map[string]error
	windows      []time.Time
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		listings:     make(map[string][]domain.Listing),
		reservations: make(map[string][]domain.Reservation),
		failing:      make(map[string]error),
	}
}

func (f *fakeSource) ListListings(_ context.Context, creds models.Credentials) ([]domain.Listing, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.failing[creds.AccountID]; err != nil {
		return nil, err
	}
	return f.listings[creds.AccountID], nil
}

func (f *fakeSource) ListReservations(_ context.Context, creds models.Credentials, from, to time.Time) ([]domain.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.windows = append(f.windows, from, to)
	if err := f.failing[creds.AccountID]; err != nil {
		return nil, err
	}
	return append([]domain.Reservation(nil), f.reservations[creds.AccountID]...), nil
}

type sentNotification struct {
	Kind        string
	RecipientID int64
	Payload     models.NotificationPayload
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sentNotification
}

func (f *fakeNotifier) Enqueue(_ context.Context, kind string, recipientID int64, _ models.ActorType, payload models.NotificationPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentNotification{Kind: kind, RecipientID: recipientID, Payload: payload})
	return nil
}

func (f *fakeNotifier) count(kind string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.sent {
		if s.Kind == kind {
			n++
		}
	}
	return n
}

type testEnv struct {
	db         *database.DB
	source     *fakeSource
	notifier   *fakeNotifier
	bus        *events.EventBus
	deriver    *TaskDeriver
	reconciler *Reconciler
	tasks      *TaskService
	reminders  *ReminderService
	logger     *zerolog.Logger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	env := &testEnv{
		db:       db,
		source:   newFakeSource(),
		notifier: &fakeNotifier{},
		bus:      events.NewEventBus(),
		logger:   &logger,
	}
	env.deriver = NewTaskDeriver(db, db, db, env.bus, &logger)
	env.reconciler = NewReconciler(db, db, db, env.source, env.deriver, &logger)
	env.tasks = NewTaskService(db, db, env.notifier, env.bus, &logger)
	env.reminders = NewReminderService(db, env.notifier, &logger)
	return env
}

func (e *testEnv) account(t *testing.T, externalID string) *models.Account {
	t.Helper()
	a := &models.Account{ExternalAccountID: externalID, Name: "Account " + externalID, APIKey: "key-" + externalID}
	require.NoError(t, e.db.UpsertAccount(context.Background(), a))
	return a
}

func (e *testEnv) worker(t *testing.T, name string) *models.Worker {
	t.Helper()
	w := &models.Worker{Name: name, Phone: "+100"}
	require.NoError(t, e.db.CreateWorker(context.Background(), w))
	return w
}

var bookingSeq int

// booking stores a reservation ending at checkOut on a property of its own.
func (e *testEnv) booking(t *testing.T, checkOut time.Time) *models.Booking {
	t.Helper()
	ctx := context.Background()
	bookingSeq++

	acc := e.account(t, "acc")
	p := &models.Property{AccountID: acc.ID, ExternalListingID: fmt.Sprintf("L%d", bookingSeq), Name: fmt.Sprintf("Flat %d", bookingSeq)}
	require.NoError(t, e.db.UpsertProperty(ctx, p))

	b := &models.Booking{
		AccountID:         acc.ID,
		PropertyID:        p.ID,
		ExternalBookingID: fmt.Sprintf("R%d", bookingSeq),
		GuestName:         "Guest",
		CheckIn:           checkOut.Add(-72 * time.Hour),
		CheckOut:          checkOut,
		NumberOfGuests:    1,
		BookingStatus:     models.BookingStatusNew,
		Currency:          "USD",
	}
	require.NoError(t, e.db.UpsertBooking(ctx, b))
	return b
}

func (e *testEnv) task(t *testing.T, checkOut time.Time) *models.CleaningTask {
	t.Helper()
	task, created, err := e.deriver.DeriveTask(context.Background(), e.booking(t, checkOut))
	require.NoError(t, err)
	require.True(t, created)
	return task
}

var admin = models.Actor{ID: 1, Type: models.ActorAdmin}

func workerActor(w *models.Worker) models.Actor {
	return models.Actor{ID: w.ID, Type: models.ActorWorker}
}
