package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"turnover/internal/domain"
	"turnover/internal/models"
)

const bookingColumns = `b.id, b.account_id, b.property_id, b.external_booking_id, b.guest_name, b.guest_email, b.guest_phone,
                        b.check_in, b.check_out, b.number_of_guests, b.booking_status, b.total_price, b.currency,
                        b.created_at, b.updated_at`

func bookingDest(b *models.Booking) []interface{} {
	return []interface{}{
		&b.ID, &b.AccountID, &b.PropertyID, &b.ExternalBookingID, &b.GuestName, &b.GuestEmail, &b.GuestPhone,
		&b.CheckIn, &b.CheckOut, &b.NumberOfGuests, &b.BookingStatus, &b.TotalPrice, &b.Currency,
		&b.CreatedAt, &b.UpdatedAt,
	}
}

// UpsertBooking inserts a reservation or refreshes its status. Guest and date fields are immutable
// after the first insert; b is overwritten with the stored row.
func (db *DB) UpsertBooking(ctx context.Context, b *models.Booking) error {
	if !b.CheckOut.After(b.CheckIn) {
		return fmt.Errorf("booking %s: check_out %s not after check_in %s: %w",
			b.ExternalBookingID, b.CheckOut.Format(time.RFC3339), b.CheckIn.Format(time.RFC3339), domain.ErrInvalidInput)
	}

	now := utc(time.Now())
	query := `INSERT INTO bookings (account_id, property_id, external_booking_id, guest_name, guest_email, guest_phone,
                                    check_in, check_out, number_of_guests, booking_status, total_price, currency,
                                    created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
              ON CONFLICT(account_id, external_booking_id) DO UPDATE SET
                  booking_status = excluded.booking_status,
                  updated_at = excluded.updated_at
              WHERE bookings.booking_status != excluded.booking_status`
	_, err := db.ExecContext(ctx, query,
		b.AccountID, b.PropertyID, b.ExternalBookingID, b.GuestName, b.GuestEmail, b.GuestPhone,
		utc(b.CheckIn), utc(b.CheckOut), b.NumberOfGuests, b.BookingStatus, b.TotalPrice, b.Currency,
		now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert booking %s: %w", b.ExternalBookingID, err)
	}

	query = `SELECT ` + bookingColumns + ` FROM bookings b WHERE b.account_id = ? AND b.external_booking_id = ?`
	if err := db.QueryRowContext(ctx, query, b.AccountID, b.ExternalBookingID).Scan(bookingDest(b)...); err != nil {
		return notFound(err, "booking %s", b.ExternalBookingID)
	}
	return nil
}

func (db *DB) GetBooking(ctx context.Context, id int64) (*models.Booking, error) {
	var b models.Booking
	query := `SELECT ` + bookingColumns + ` FROM bookings b WHERE b.id = ?`
	if err := db.QueryRowContext(ctx, query, id).Scan(bookingDest(&b)...); err != nil {
		return nil, notFound(err, "booking %d", id)
	}
	return &b, nil
}

// ListBookings returns bookings joined with property, account and derived task, ordered by check-in.
// StartDate/EndDate bound check_in inclusively.
func (db *DB) ListBookings(ctx context.Context, f models.BookingFilter) ([]*models.BookingView, error) {
	var where []string
	var args []interface{}
	if f.AccountID != 0 {
		where = append(where, "b.account_id = ?")
		args = append(args, f.AccountID)
	}
	if f.PropertyID != 0 {
		where = append(where, "b.property_id = ?")
		args = append(args, f.PropertyID)
	}
	if f.StartDate != nil {
		where = append(where, "b.check_in >= ?")
		args = append(args, utc(*f.StartDate))
	}
	if f.EndDate != nil {
		where = append(where, "b.check_in <= ?")
		args = append(args, utc(*f.EndDate))
	}

	query := `SELECT ` + bookingColumns + `, p.name, a.name, t.id, t.status
              FROM bookings b
              JOIN properties p ON p.id = b.property_id
              JOIN accounts a ON a.id = b.account_id
              LEFT JOIN cleaning_tasks t ON t.booking_id = b.id`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY b.check_in ASC, b.id ASC"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer rows.Close()

	var out []*models.BookingView
	for rows.Next() {
		v := &models.BookingView{}
		dest := append(bookingDest(&v.Booking), &v.PropertyName, &v.AccountName, &v.TaskID, &v.TaskStatus)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}

// NextCheckIn returns the earliest active check-in at the property at or after the given time.
func (db *DB) NextCheckIn(ctx context.Context, propertyID int64, after time.Time) (*time.Time, error) {
	query := `SELECT check_in FROM bookings
              WHERE property_id = ? AND check_in >= ? AND booking_status NOT IN (?, ?, ?)
              ORDER BY check_in ASC LIMIT 1`
	rows, err := db.QueryContext(ctx, query, propertyID, utc(after),
		models.BookingStatusCancelled, models.BookingStatusDeclined, models.BookingStatusExpired)
	if err != nil {
		return nil, fmt.Errorf("failed to get next check-in: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		return nil, rows.Err()
	}
	var next time.Time
	if err := rows.Scan(&next); err != nil {
		return nil, fmt.Errorf("failed to scan next check-in: %w", err)
	}
	return &next, nil
}

func (db *DB) CountBookings(ctx context.Context) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bookings`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count bookings: %w", err)
	}
	return n, nil
}
