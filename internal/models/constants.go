package models

import "time"

// Booking statuses as reported by the channel manager.
const (
	BookingStatusNew       = "new"
	BookingStatusModified  = "modified"
	BookingStatusCancelled = "cancelled"
	BookingStatusDeclined  = "declined"
	BookingStatusExpired   = "expired"
)

const (
	AccountActive   = "active"
	AccountInactive = "inactive"
)

const (
	// DefaultCleaningMinutes используется, когда у объекта не задано время уборки
	DefaultCleaningMinutes = 120

	// CleaningOffset отступ начала уборки от выезда гостя
	CleaningOffset = time.Hour

	// ReservationWindowDays горизонт выгрузки бронирований
	ReservationWindowDays = 90

	// ListingsCacheTTL время жизни кэша объектов
	ListingsCacheTTL = time.Hour

	// DefaultPropertyType тип объекта, если канал его не передал
	DefaultPropertyType = "apartment"

	// NotificationsPageSize сколько уведомлений отдаём за раз
	NotificationsPageSize = 50

	// OutboxMaxRetries после стольких попыток задача уходит в failed
	OutboxMaxRetries = 5
)

// Reminder marks, hours before scheduled time.
const (
	ReminderMark24h = 24
	ReminderMark2h  = 2
)

// DefaultChecklist is attached to every derived task in this order.
var DefaultChecklist = []string{
	"Strip and replace bed linens",
	"Clean and sanitize bathrooms",
	"Vacuum and mop floors",
	"Dust surfaces and furniture",
	"Clean kitchen and appliances",
	"Empty trash bins",
	"Restock toiletries and supplies",
	"Check for damages or missing items",
	"Final walkthrough and photos",
}
