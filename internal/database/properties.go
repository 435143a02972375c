package database

import (
	"context"
	"fmt"
	"time"

	"turnover/internal/models"
)

const propertyColumns = `id, account_id, external_listing_id, name, address, city, country, property_type,
                         bedrooms, bathrooms, estimated_cleaning_time, special_instructions, access_instructions,
                         created_at, updated_at`

func scanProperty(row rowScanner, p *models.Property) error {
	return row.Scan(&p.ID, &p.AccountID, &p.ExternalListingID, &p.Name, &p.Address, &p.City, &p.Country,
		&p.PropertyType, &p.Bedrooms, &p.Bathrooms, &p.EstimatedCleaningTime, &p.SpecialInstructions,
		&p.AccessInstructions, &p.CreatedAt, &p.UpdatedAt)
}

// UpsertProperty inserts a listing or refreshes its descriptive fields. Room counts and type are
// only written on first insert. An unchanged listing leaves the row untouched.
func (db *DB) UpsertProperty(ctx context.Context, p *models.Property) error {
	now := utc(time.Now())
	propertyType := p.PropertyType
	if propertyType == "" {
		propertyType = models.DefaultPropertyType
	}
	cleaning := p.EstimatedCleaningTime
	if cleaning <= 0 {
		cleaning = models.DefaultCleaningMinutes
	}

	query := `INSERT INTO properties (account_id, external_listing_id, name, address, city, country, property_type,
                                      bedrooms, bathrooms, estimated_cleaning_time, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
              ON CONFLICT(account_id, external_listing_id) DO UPDATE SET
                  name = excluded.name,
                  address = excluded.address,
                  city = excluded.city,
                  country = excluded.country,
                  updated_at = excluded.updated_at
              WHERE properties.name != excluded.name
                 OR properties.address != excluded.address
                 OR properties.city != excluded.city
                 OR properties.country != excluded.country`
	_, err := db.ExecContext(ctx, query,
		p.AccountID, p.ExternalListingID, p.Name, p.Address, p.City, p.Country, propertyType,
		p.Bedrooms, p.Bathrooms, cleaning, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert property %s: %w", p.ExternalListingID, err)
	}

	stored, err := db.GetPropertyByExternalID(ctx, p.AccountID, p.ExternalListingID)
	if err != nil {
		return err
	}
	*p = *stored
	return nil
}

func (db *DB) GetPropertyByExternalID(ctx context.Context, accountID int64, externalListingID string) (*models.Property, error) {
	var p models.Property
	query := `SELECT ` + propertyColumns + ` FROM properties WHERE account_id = ? AND external_listing_id = ?`
	if err := scanProperty(db.QueryRowContext(ctx, query, accountID, externalListingID), &p); err != nil {
		return nil, notFound(err, "property %s of account %d", externalListingID, accountID)
	}
	return &p, nil
}

func (db *DB) GetProperty(ctx context.Context, id int64) (*models.Property, error) {
	var p models.Property
	query := `SELECT ` + propertyColumns + ` FROM properties WHERE id = ?`
	if err := scanProperty(db.QueryRowContext(ctx, query, id), &p); err != nil {
		return nil, notFound(err, "property %d", id)
	}
	return &p, nil
}

func (db *DB) CountProperties(ctx context.Context) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM properties`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count properties: %w", err)
	}
	return n, nil
}
