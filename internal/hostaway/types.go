package hostaway

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"turnover/internal/domain"
)

// envelope is the wrapper Hostaway puts around every response.
type envelope struct {
	Status  string          `json:"status"`
	Result  json.RawMessage `json:"result"`
	Message string          `json:"message"`
}

// flexString accepts a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", b)
	}
	*f = flexString(n.String())
	return nil
}

// flexInt accepts a JSON number, numeric string or null.
type flexInt int

func (f *flexInt) UnmarshalJSON(b []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(b); err != nil {
		return err
	}
	if s == "" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(string(s), 64)
	if err != nil {
		return fmt.Errorf("expected number, got %s", b)
	}
	*f = flexInt(v)
	return nil
}

type listingDTO struct {
	ID               flexString `json:"id"`
	Name             string     `json:"name"`
	Address          string     `json:"address"`
	City             string     `json:"city"`
	Country          string     `json:"country"`
	PropertyTypeName string     `json:"propertyTypeName"`
	BedroomsNumber   *flexInt   `json:"bedroomsNumber"`
	Bedrooms         *flexInt   `json:"bedrooms"`
	BathroomsNumber  *flexInt   `json:"bathroomsNumber"`
	Bathrooms        *flexInt   `json:"bathrooms"`
}

func firstInt(vals ...*flexInt) int {
	for _, v := range vals {
		if v != nil && *v != 0 {
			return int(*v)
		}
	}
	return 0
}

func (l listingDTO) toDomain() domain.Listing {
	return domain.Listing{
		ID:               string(l.ID),
		Name:             l.Name,
		Address:          l.Address,
		City:             l.City,
		Country:          l.Country,
		PropertyTypeName: l.PropertyTypeName,
		Bedrooms:         firstInt(l.BedroomsNumber, l.Bedrooms),
		Bathrooms:        firstInt(l.BathroomsNumber, l.Bathrooms),
	}
}

type reservationDTO struct {
	ID             flexString `json:"id"`
	ListingMapID   flexString `json:"listingMapId"`
	GuestName      string     `json:"guestName"`
	GuestEmail     string     `json:"guestEmail"`
	GuestPhone     string     `json:"phone"`
	GuestPhoneAlt  string     `json:"guestPhone"`
	ArrivalDate    string     `json:"arrivalDate"`
	DepartureDate  string     `json:"departureDate"`
	CheckInTime    *flexInt   `json:"checkInTime"`
	CheckOutTime   *flexInt   `json:"checkOutTime"`
	NumberOfGuests *flexInt   `json:"numberOfGuests"`
	Status         string     `json:"status"`
	TotalPrice     *float64   `json:"totalPrice"`
	Currency       string     `json:"currency"`
}

var dateLayouts = []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05", "2006-01-02"}

// parseStayDate parses a Hostaway date. Date-only values get the given hour of day (UTC) when set.
func parseStayDate(s string, hour *flexInt) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		t, err := time.ParseInLocation(layout, s, time.UTC)
		if err != nil {
			continue
		}
		if layout == "2006-01-02" && hour != nil && *hour > 0 && *hour < 24 {
			t = t.Add(time.Duration(*hour) * time.Hour)
		}
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", s)
}

func (r reservationDTO) toDomain() (domain.Reservation, error) {
	arrival, err := parseStayDate(r.ArrivalDate, r.CheckInTime)
	if err != nil {
		return domain.Reservation{}, fmt.Errorf("reservation %s arrival: %w", r.ID, err)
	}
	departure, err := parseStayDate(r.DepartureDate, r.CheckOutTime)
	if err != nil {
		return domain.Reservation{}, fmt.Errorf("reservation %s departure: %w", r.ID, err)
	}

	phone := r.GuestPhone
	if phone == "" {
		phone = r.GuestPhoneAlt
	}
	guests := 0
	if r.NumberOfGuests != nil {
		guests = int(*r.NumberOfGuests)
	}
	var price float64
	if r.TotalPrice != nil {
		price = *r.TotalPrice
	}

	return domain.Reservation{
		ID:             string(r.ID),
		ListingMapID:   string(r.ListingMapID),
		GuestName:      r.GuestName,
		GuestEmail:     r.GuestEmail,
		GuestPhone:     phone,
		ArrivalDate:    arrival,
		DepartureDate:  departure,
		NumberOfGuests: guests,
		Status:         r.Status,
		TotalPrice:     price,
		Currency:       r.Currency,
	}, nil
}
