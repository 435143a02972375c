package models

import "time"

// Account is one Hostaway tenant whose listings and reservations are mirrored locally.
type Account struct {
	ID                int64     `json:"id" yaml:"-"`
	ExternalAccountID string    `json:"external_account_id" yaml:"id"`
	Name              string    `json:"name" yaml:"name"`
	APIKey            string    `json:"-" yaml:"api_key"`
	APISecret         string    `json:"-" yaml:"api_secret"`
	Status            string    `json:"status" yaml:"-"`
	CreatedAt         time.Time `json:"created_at" yaml:"-"`
	UpdatedAt         time.Time `json:"updated_at" yaml:"-"`
}

// Credentials are what the external API client needs to talk to Hostaway on behalf of an account.
func (a Account) Credentials() Credentials {
	return Credentials{AccountID: a.ExternalAccountID, APIKey: a.APIKey, APISecret: a.APISecret}
}

type Credentials struct {
	AccountID string
	APIKey    string
	APISecret string
}

// AccountOverview is an account with its aggregate counters.
type AccountOverview struct {
	Account
	PropertiesCount  int `json:"properties_count"`
	UpcomingBookings int `json:"upcoming_bookings"`
}
