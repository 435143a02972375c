package database

import (
	"context"
	"fmt"
	"time"

	"turnover/internal/models"
)

const accountColumns = `id, external_account_id, name, api_key, api_secret, status, created_at, updated_at`

func scanAccount(row rowScanner, a *models.Account) error {
	return row.Scan(&a.ID, &a.ExternalAccountID, &a.Name, &a.APIKey, &a.APISecret, &a.Status, &a.CreatedAt, &a.UpdatedAt)
}

// UpsertAccount stores configured credentials, keyed by the external account id.
func (db *DB) UpsertAccount(ctx context.Context, account *models.Account) error {
	now := utc(time.Now())
	query := `INSERT INTO accounts (external_account_id, name, api_key, api_secret, status, created_at, updated_at)
              VALUES (?, ?, ?, ?, ?, ?, ?)
              ON CONFLICT(external_account_id) DO UPDATE SET
                  name = excluded.name,
                  api_key = excluded.api_key,
                  api_secret = excluded.api_secret,
                  status = excluded.status,
                  updated_at = excluded.updated_at
              WHERE accounts.name != excluded.name
                 OR accounts.api_key != excluded.api_key
                 OR accounts.api_secret != excluded.api_secret
                 OR accounts.status != excluded.status`
	status := account.Status
	if status == "" {
		status = models.AccountActive
	}
	_, err := db.ExecContext(ctx, query,
		account.ExternalAccountID, account.Name, account.APIKey, account.APISecret, status, now, now)
	if err != nil {
		return fmt.Errorf("failed to upsert account %s: %w", account.ExternalAccountID, err)
	}

	stored, err := db.GetAccountByExternalID(ctx, account.ExternalAccountID)
	if err != nil {
		return err
	}
	*account = *stored
	return nil
}

func (db *DB) GetAccountByExternalID(ctx context.Context, externalID string) (*models.Account, error) {
	var a models.Account
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE external_account_id = ?`
	if err := scanAccount(db.QueryRowContext(ctx, query, externalID), &a); err != nil {
		return nil, notFound(err, "account %s", externalID)
	}
	return &a, nil
}

func (db *DB) ListAccounts(ctx context.Context) ([]*models.Account, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+accountColumns+` FROM accounts ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		a := &models.Account{}
		if err := scanAccount(rows, a); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

// ListAccountOverviews returns every account with its property count and bookings arriving at or after now.
func (db *DB) ListAccountOverviews(ctx context.Context, now time.Time) ([]*models.AccountOverview, error) {
	query := `SELECT a.id, a.external_account_id, a.name, a.api_key, a.api_secret, a.status, a.created_at, a.updated_at,
                     (SELECT COUNT(*) FROM properties p WHERE p.account_id = a.id),
                     (SELECT COUNT(*) FROM bookings b WHERE b.account_id = a.id AND b.check_in >= ?)
              FROM accounts a ORDER BY a.name`
	rows, err := db.QueryContext(ctx, query, utc(now))
	if err != nil {
		return nil, fmt.Errorf("failed to list account overviews: %w", err)
	}
	defer rows.Close()

	var out []*models.AccountOverview
	for rows.Next() {
		o := &models.AccountOverview{}
		a := &o.Account
		err := rows.Scan(&a.ID, &a.ExternalAccountID, &a.Name, &a.APIKey, &a.APISecret, &a.Status,
			&a.CreatedAt, &a.UpdatedAt, &o.PropertiesCount, &o.UpcomingBookings)
		if err != nil {
			return nil, fmt.Errorf("failed to scan account overview: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}
