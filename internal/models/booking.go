package models

import "time"

type Booking struct {
	ID                int64     `json:"id"`
	AccountID         int64     `json:"account_id"`
	PropertyID        int64     `json:"property_id"`
	ExternalBookingID string    `json:"external_booking_id"`
	GuestName         string    `json:"guest_name"`
	GuestEmail        *string   `json:"guest_email"`
	GuestPhone        *string   `json:"guest_phone"`
	CheckIn           time.Time `json:"check_in"`
	CheckOut          time.Time `json:"check_out"`
	NumberOfGuests    int       `json:"number_of_guests"`
	BookingStatus     string    `json:"booking_status"` // new, modified, cancelled, ... as reported by Hostaway
	TotalPrice        float64   `json:"total_price"`
	Currency          string    `json:"currency"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// IsCancelled reports whether the external system considers the stay cancelled.
func (b *Booking) IsCancelled() bool {
	switch b.BookingStatus {
	case BookingStatusCancelled, BookingStatusDeclined, BookingStatusExpired:
		return true
	default:
		return false
	}
}

// BookingView is a booking row joined with its property, account and derived task.
type BookingView struct {
	Booking
	PropertyName string      `json:"property_name"`
	AccountName  string      `json:"account_name"`
	TaskID       *int64      `json:"task_id"`
	TaskStatus   *TaskStatus `json:"task_status"`
}

type BookingFilter struct {
	AccountID  int64
	PropertyID int64
	StartDate  *time.Time
	EndDate    *time.Time
}
