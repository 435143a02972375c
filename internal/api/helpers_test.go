package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"turnover/internal/config"
	"turnover/internal/database"
	"turnover/internal/domain"
	"turnover/internal/events"
	"turnover/internal/export"
	"turnover/internal/models"
	"turnover/internal/repository"
	"turnover/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type stubSource struct {
	failing map[string]bool
}

func (s *stubSource) ListListings(_ context.Context, creds models.Credentials) ([]domain.Listing, error) {
	if s.failing[creds.AccountID] {
		return nil, fmt.Errorf("401 unauthorized: %w", domain.ErrUpstreamUnavailable)
	}
	return nil, nil
}

func (s *stubSource) ListReservations(_ context.Context, creds models.Credentials, _, _ time.Time) ([]domain.Reservation, error) {
	return nil, nil
}

type nopNotifier struct {
	mu    sync.Mutex
	count int
}

func (n *nopNotifier) Enqueue(context.Context, string, int64, models.ActorType, models.NotificationPayload) error {
	n.mu.Lock()
	n.count++
	n.mu.Unlock()
	return nil
}

type testServer struct {
	db       *database.DB
	deriver  *service.TaskDeriver
	identity *Identity
	server   *HTTPServer
	ts       *httptest.Server
	seq      int
}

func newTestServer(t *testing.T, mutate ...func(*config.APIConfig, *Services)) *testServer {
	t.Helper()
	logger := zerolog.New(io.Discard)
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	bus := events.NewEventBus()
	source := &stubSource{failing: map[string]bool{"BAD": true}}
	deriver := service.NewTaskDeriver(db, db, db, bus, &logger)
	reconciler := service.NewReconciler(db, db, db, source, deriver, &logger)
	accounts := []models.Account{
		{ExternalAccountID: "A1", Name: "First", APIKey: "k1"},
		{ExternalAccountID: "BAD", Name: "Broken", APIKey: "k2"},
	}
	syncSvc := service.NewSyncService(accounts, db, db, reconciler, bus, 2, &logger)
	require.NoError(t, syncSvc.RegisterAccounts(context.Background()))

	cfg := config.APIConfig{
		Enabled: true,
		HTTP:    config.APIHTTPConfig{Enabled: true},
		Auth:    config.APIAuthConfig{JWTSecret: testSecret, Issuer: "turnover"},
	}
	svc := Services{
		Tasks:    service.NewTaskService(db, db, &nopNotifier{}, bus, &logger),
		Overview: service.NewOverviewService(db, db, db, db, db, db),
		Sync:     syncSvc,
		Reports:  export.NewReporter(db, t.TempDir(), &logger),
		Cache:    repository.NewMemoryCache(),
		Health:   func(ctx context.Context) error { return db.PingContext(ctx) },
	}
	for _, m := range mutate {
		m(&cfg, &svc)
	}

	srv := NewHTTPServer(cfg, svc, &logger)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &testServer{db: db, deriver: deriver, identity: NewIdentity(cfg.Auth), server: srv, ts: ts}
}

func (s *testServer) token(t *testing.T, actor models.Actor) string {
	t.Helper()
	tok, err := s.identity.Issue(actor, time.Hour)
	require.NoError(t, err)
	return tok
}

func (s *testServer) do(t *testing.T, method, path, token, body string) *http.Response {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, s.ts.URL+path, reader)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (s *testServer) worker(t *testing.T, name string) (*models.Worker, string) {
	t.Helper()
	w := &models.Worker{Name: name, Phone: "+100"}
	require.NoError(t, s.db.CreateWorker(context.Background(), w))
	return w, s.token(t, models.Actor{ID: w.ID, Type: models.ActorWorker})
}

// task stores a booking ending at checkOut and derives its cleaning task.
func (s *testServer) task(t *testing.T, checkOut time.Time) *models.CleaningTask {
	t.Helper()
	ctx := context.Background()
	s.seq++

	acc, err := s.db.GetAccountByExternalID(ctx, "A1")
	require.NoError(t, err)
	p := &models.Property{AccountID: acc.ID, ExternalListingID: fmt.Sprintf("L%d", s.seq), Name: fmt.Sprintf("Flat %d", s.seq)}
	require.NoError(t, s.db.UpsertProperty(ctx, p))
	b := &models.Booking{
		AccountID: acc.ID, PropertyID: p.ID, ExternalBookingID: fmt.Sprintf("R%d", s.seq),
		GuestName: "Guest", CheckIn: checkOut.Add(-48 * time.Hour), CheckOut: checkOut,
		NumberOfGuests: 1, BookingStatus: models.BookingStatusNew, Currency: "USD",
	}
	require.NoError(t, s.db.UpsertBooking(ctx, b))

	task, _, err := s.deriver.DeriveTask(ctx, b)
	require.NoError(t, err)
	return task
}
