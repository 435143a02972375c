package hostaway

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"turnover/internal/config"
	"turnover/internal/domain"
	"turnover/internal/models"
	"turnover/internal/repository"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var creds = models.Credentials{AccountID: "acc-1", APIKey: "secret-token"}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	logger := zerolog.New(io.Discard)
	return NewClient(config.HostawayConfig{
		BaseURL: srv.URL,
		Timeout: 2 * time.Second,
		RPS:     100,
		Burst:   100,
	}, &logger)
}

func TestListListings(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.Equal(t, "/listings", r.URL.Path)
		assert.Equal(t, "Bearer secret-token", r.Header.Get("Authorization"))
		_, _ = io.WriteString(w, `{"status":"success","result":[
			{"id":101,"name":"Loft","address":"1 Main St","city":"Lisbon","country":"PT","propertyTypeName":"Loft","bedroomsNumber":2,"bathroomsNumber":"1"},
			{"id":"102","name":"Cabin","bedrooms":3}
		]}`)
	})

	listings, err := client.ListListings(context.Background(), creds)
	require.NoError(t, err)
	require.Len(t, listings, 2)

	assert.Equal(t, "101", listings[0].ID)
	assert.Equal(t, "Loft", listings[0].PropertyTypeName)
	assert.Equal(t, 2, listings[0].Bedrooms)
	assert.Equal(t, 1, listings[0].Bathrooms)
	assert.Equal(t, "102", listings[1].ID)
	assert.Equal(t, 3, listings[1].Bedrooms)
	assert.Equal(t, 0, listings[1].Bathrooms)

	// без кэша каждый вызов идет в API
	_, err = client.ListListings(context.Background(), creds)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestListListings_Cached(t *testing.T) {
	mr := miniredis.RunT(t)
	redisClient := repository.NewRedisClient(config.RedisConfig{Address: mr.Addr()})
	defer redisClient.Close()

	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = io.WriteString(w, `{"status":"success","result":[{"id":1,"name":"Loft"}]}`)
	})
	client.UseCache(repository.NewRedisCache(redisClient), time.Hour)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		listings, err := client.ListListings(ctx, creds)
		require.NoError(t, err)
		require.Len(t, listings, 1)
		assert.Equal(t, "Loft", listings[0].Name)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	mr.FastForward(time.Hour + time.Second)
	_, err := client.ListListings(ctx, creds)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestListReservations(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/reservations", r.URL.Path)
		assert.Equal(t, "2024-01-01", r.URL.Query().Get("arrivalStartDate"))
		assert.Equal(t, "2024-03-31", r.URL.Query().Get("arrivalEndDate"))
		_, _ = io.WriteString(w, `{"status":"success","result":[
			{"id":555,"listingMapId":101,"guestName":"Ann","guestEmail":"ann@example.com","phone":"+351",
			 "arrivalDate":"2024-01-05","departureDate":"2024-01-10","checkInTime":15,"checkOutTime":11,
			 "numberOfGuests":2,"status":"new","totalPrice":450.5,"currency":"EUR"},
			{"id":556,"listingMapId":101,"arrivalDate":"2024-02-01T14:00:00Z","departureDate":"2024-02-03 10:00:00","status":"modified"},
			{"id":557,"listingMapId":101,"arrivalDate":"soon","departureDate":"2024-02-03"}
		]}`)
	})

	from := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	to := from.AddDate(0, 0, 90)
	reservations, err := client.ListReservations(context.Background(), creds, from, to)
	require.NoError(t, err)
	require.Len(t, reservations, 2, "malformed reservation must be dropped")

	first := reservations[0]
	assert.Equal(t, "555", first.ID)
	assert.Equal(t, "101", first.ListingMapID)
	assert.Equal(t, "+351", first.GuestPhone)
	assert.Equal(t, time.Date(2024, 1, 5, 15, 0, 0, 0, time.UTC), first.ArrivalDate)
	assert.Equal(t, time.Date(2024, 1, 10, 11, 0, 0, 0, time.UTC), first.DepartureDate)
	assert.Equal(t, 2, first.NumberOfGuests)
	assert.InDelta(t, 450.5, first.TotalPrice, 0.001)

	second := reservations[1]
	assert.Equal(t, time.Date(2024, 2, 1, 14, 0, 0, 0, time.UTC), second.ArrivalDate)
	assert.Equal(t, time.Date(2024, 2, 3, 10, 0, 0, 0, time.UTC), second.DepartureDate)
	assert.Equal(t, "", second.GuestName)
}

func TestUpstreamErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"unauthorized", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = io.WriteString(w, `{"status":"fail","message":"bad token"}`)
		}},
		{"server error", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}},
		{"failed envelope", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, `{"status":"fail","message":"nope"}`)
		}},
		{"garbage", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, `<html>`)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, tt.handler)
			_, err := client.ListListings(context.Background(), creds)
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)

			_, err = client.ListReservations(context.Background(), creds, time.Now(), time.Now())
			assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
		})
	}
}

func TestUnreachable(t *testing.T) {
	logger := zerolog.New(io.Discard)
	client := NewClient(config.HostawayConfig{BaseURL: "http://127.0.0.1:1", Timeout: time.Second, RPS: 10, Burst: 1}, &logger)
	_, err := client.ListListings(context.Background(), creds)
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
}

func TestFlexDecoding(t *testing.T) {
	var s flexString
	require.NoError(t, s.UnmarshalJSON([]byte(`12345678901`)))
	assert.Equal(t, flexString("12345678901"), s)
	require.NoError(t, s.UnmarshalJSON([]byte(`null`)))
	assert.Equal(t, flexString(""), s)
	assert.Error(t, s.UnmarshalJSON([]byte(`{}`)))

	var n flexInt
	require.NoError(t, n.UnmarshalJSON([]byte(`"3"`)))
	assert.Equal(t, flexInt(3), n)
	require.NoError(t, n.UnmarshalJSON([]byte(`2.0`)))
	assert.Equal(t, flexInt(2), n)
	assert.Error(t, n.UnmarshalJSON([]byte(`"abc"`)))
}
