package models

import "time"

type Property struct {
	ID                    int64     `json:"id"`
	AccountID             int64     `json:"account_id"`
	ExternalListingID     string    `json:"external_listing_id"`
	Name                  string    `json:"name"`
	Address               string    `json:"address"`
	City                  string    `json:"city"`
	Country               string    `json:"country"`
	PropertyType          string    `json:"property_type"`
	Bedrooms              int       `json:"bedrooms"`
	Bathrooms             int       `json:"bathrooms"`
	EstimatedCleaningTime int       `json:"estimated_cleaning_time"` // minutes
	SpecialInstructions   string    `json:"special_instructions"`
	AccessInstructions    string    `json:"access_instructions"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}
