package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"turnover/internal/domain"
	"turnover/internal/metrics"
	"turnover/internal/models"

	"github.com/rs/zerolog"
)

// ReconcileStats counts what one account's reconciliation touched.
type ReconcileStats struct {
	Listings     int
	Reservations int
	Skipped      int
	TasksCreated int
}

// Reconciler mirrors one account's Hostaway listings and reservations into local rows.
type Reconciler struct {
	accounts   domain.AccountRepository
	properties domain.PropertyRepository
	bookings   domain.BookingRepository
	source     domain.ExternalSource
	deriver    *TaskDeriver
	window     int
	now        func() time.Time
	logger     *zerolog.Logger
}

func NewReconciler(accounts domain.AccountRepository, properties domain.PropertyRepository, bookings domain.BookingRepository,
	source domain.ExternalSource, deriver *TaskDeriver, logger *zerolog.Logger) *Reconciler {
	return &Reconciler{
		accounts:   accounts,
		properties: properties,
		bookings:   bookings,
		source:     source,
		deriver:    deriver,
		window:     models.ReservationWindowDays,
		now:        time.Now,
		logger:     logger,
	}
}

// ReconcileAccount syncs listings and then reservations of one account. The account must
// already be registered locally.
func (r *Reconciler) ReconcileAccount(ctx context.Context, externalAccountID string) (ReconcileStats, error) {
	var stats ReconcileStats

	account, err := r.accounts.GetAccountByExternalID(ctx, externalAccountID)
	if err != nil {
		return stats, fmt.Errorf("resolve account %s: %w", externalAccountID, err)
	}
	creds := account.Credentials()

	listings, err := r.source.ListListings(ctx, creds)
	if err != nil {
		return stats, fmt.Errorf("fetch listings: %w", err)
	}
	if err := r.ReconcileListings(ctx, account.ID, listings); err != nil {
		return stats, err
	}
	stats.Listings = len(listings)

	from := r.now().UTC()
	to := from.AddDate(0, 0, r.window)
	reservations, err := r.source.ListReservations(ctx, creds, from, to)
	if err != nil {
		return stats, fmt.Errorf("fetch reservations: %w", err)
	}

	synced, skipped, created, err := r.ReconcileReservations(ctx, account.ID, reservations)
	stats.Reservations, stats.Skipped, stats.TasksCreated = synced, skipped, created
	if err != nil {
		return stats, err
	}

	r.logger.Info().
		Str("account_id", externalAccountID).
		Int("listings", stats.Listings).
		Int("reservations", stats.Reservations).
		Int("skipped", stats.Skipped).
		Int("tasks_created", stats.TasksCreated).
		Msg("Account reconciled")
	return stats, nil
}

// ReconcileListings upserts every listing as a property of the account.
func (r *Reconciler) ReconcileListings(ctx context.Context, accountID int64, listings []domain.Listing) error {
	for _, l := range listings {
		if l.ID == "" {
			r.logger.Warn().Int64("account_id", accountID).Msg("Listing without id, skipping")
			metrics.IncUpsert("property", "skipped")
			continue
		}

		p := &models.Property{
			AccountID:         accountID,
			ExternalListingID: l.ID,
			Name:              l.Name,
			Address:           l.Address,
			City:              l.City,
			Country:           l.Country,
			PropertyType:      l.PropertyTypeName,
			Bedrooms:          l.Bedrooms,
			Bathrooms:         l.Bathrooms,
		}
		if err := r.properties.UpsertProperty(ctx, p); err != nil {
			metrics.IncUpsert("property", "error")
			return fmt.Errorf("upsert listing %s: %w", l.ID, err)
		}
		metrics.IncUpsert("property", "ok")
	}
	return nil
}

// ReconcileReservations upserts reservations whose property is known and derives their tasks.
// Reservations of unknown listings or with inverted dates are skipped, not failed.
// Tasks are derived only after every booking is stored, so check-in collisions do not
// depend on the order the API returns reservations in.
func (r *Reconciler) ReconcileReservations(ctx context.Context, accountID int64, reservations []domain.Reservation) (synced, skipped, created int, err error) {
	var active []*models.Booking
	for i := range reservations {
		res := &reservations[i]

		property, err := r.properties.GetPropertyByExternalID(ctx, accountID, res.ListingMapID)
		if errors.Is(err, domain.ErrNotFound) {
			r.logger.Warn().
				Int64("account_id", accountID).
				Str("reservation_id", res.ID).
				Str("listing_id", res.ListingMapID).
				Msg("Property not found for reservation")
			metrics.IncUpsert("booking", "skipped")
			skipped++
			continue
		}
		if err != nil {
			return synced, skipped, created, fmt.Errorf("resolve listing %s: %w", res.ListingMapID, err)
		}

		if !res.DepartureDate.After(res.ArrivalDate) {
			r.logger.Warn().
				Str("reservation_id", res.ID).
				Time("arrival", res.ArrivalDate).
				Time("departure", res.DepartureDate).
				Msg("Reservation departure not after arrival, skipping")
			metrics.IncUpsert("booking", "skipped")
			skipped++
			continue
		}

		b := bookingFromReservation(accountID, property.ID, res)
		if err := r.bookings.UpsertBooking(ctx, b); err != nil {
			metrics.IncUpsert("booking", "error")
			return synced, skipped, created, fmt.Errorf("upsert reservation %s: %w", res.ID, err)
		}
		metrics.IncUpsert("booking", "ok")
		synced++

		if !b.IsCancelled() {
			active = append(active, b)
		}
	}

	sort.SliceStable(active, func(i, j int) bool { return active[i].CheckOut.Before(active[j].CheckOut) })
	for _, b := range active {
		_, isNew, err := r.deriver.DeriveTask(ctx, b)
		if err != nil {
			return synced, skipped, created, err
		}
		if isNew {
			created++
		}
	}
	return synced, skipped, created, nil
}

func bookingFromReservation(accountID, propertyID int64, res *domain.Reservation) *models.Booking {
	guest := strings.TrimSpace(res.GuestName)
	if guest == "" {
		guest = "Guest"
	}
	guests := res.NumberOfGuests
	if guests <= 0 {
		guests = 1
	}
	currency := res.Currency
	if currency == "" {
		currency = "USD"
	}
	status := strings.ToLower(res.Status)
	if status == "" {
		status = models.BookingStatusNew
	}

	return &models.Booking{
		AccountID:         accountID,
		PropertyID:        propertyID,
		ExternalBookingID: res.ID,
		GuestName:         guest,
		GuestEmail:        optional(res.GuestEmail),
		GuestPhone:        optional(res.GuestPhone),
		CheckIn:           res.ArrivalDate.UTC(),
		CheckOut:          res.DepartureDate.UTC(),
		NumberOfGuests:    guests,
		BookingStatus:     status,
		TotalPrice:        res.TotalPrice,
		Currency:          currency,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
