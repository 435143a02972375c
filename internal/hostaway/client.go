package hostaway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"turnover/internal/config"
	"turnover/internal/domain"
	"turnover/internal/metrics"
	"turnover/internal/models"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Client talks to the Hostaway public API on behalf of any configured account.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	logger     *zerolog.Logger

	cache    domain.Cache
	cacheTTL time.Duration
}

func NewClient(cfg config.HostawayConfig, logger *zerolog.Logger) *Client {
	l := logger.With().Str("component", "hostaway").Logger()
	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst),
		logger:     &l,
		cacheTTL:   models.ListingsCacheTTL,
	}
}

// UseCache enables listing caching.
func (c *Client) UseCache(cache domain.Cache, ttl time.Duration) {
	c.cache = cache
	c.cacheTTL = ttl
}

func listingsCacheKey(accountID string) string {
	return "hostaway:" + accountID + ":listings"
}

// ListListings returns all listings of the account, served from cache when fresh.
func (c *Client) ListListings(ctx context.Context, creds models.Credentials) ([]domain.Listing, error) {
	key := listingsCacheKey(creds.AccountID)

	var dtos []listingDTO
	if c.readCache(ctx, key, &dtos) {
		metrics.IncCache("hit")
	} else {
		metrics.IncCache("miss")
		raw, err := c.get(ctx, creds, "/listings", nil)
		if err != nil {
			return nil, err
		}
		if err := decodeResult(raw, &dtos); err != nil {
			return nil, fmt.Errorf("%w: decode listings: %v", domain.ErrUpstreamUnavailable, err)
		}
		c.writeCache(ctx, key, dtos)
	}

	listings := make([]domain.Listing, 0, len(dtos))
	for _, d := range dtos {
		listings = append(listings, d.toDomain())
	}
	return listings, nil
}

// ListReservations returns reservations arriving between from and to (dates, inclusive).
// Reservations with unparseable dates are dropped with a warning.
func (c *Client) ListReservations(ctx context.Context, creds models.Credentials, from, to time.Time) ([]domain.Reservation, error) {
	params := url.Values{}
	params.Set("arrivalStartDate", from.UTC().Format("2006-01-02"))
	params.Set("arrivalEndDate", to.UTC().Format("2006-01-02"))

	raw, err := c.get(ctx, creds, "/reservations", params)
	if err != nil {
		return nil, err
	}

	var dtos []reservationDTO
	if err := decodeResult(raw, &dtos); err != nil {
		return nil, fmt.Errorf("%w: decode reservations: %v", domain.ErrUpstreamUnavailable, err)
	}

	out := make([]domain.Reservation, 0, len(dtos))
	for _, d := range dtos {
		r, err := d.toDomain()
		if err != nil {
			c.logger.Warn().Err(err).Str("account_id", creds.AccountID).Msg("Skipping malformed reservation")
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func decodeResult(raw json.RawMessage, out interface{}) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, out)
}

func (c *Client) get(ctx context.Context, creds models.Credentials, path string, params url.Values) (json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+creds.APIKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Cache-control", "no-cache")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: GET %s: %v", domain.ErrUpstreamUnavailable, path, err)
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Str("account_id", creds.AccountID).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("took", time.Since(start)).
		Msg("Hostaway request")

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: GET %s: http %d: %s", domain.ErrUpstreamUnavailable, path, resp.StatusCode, body)
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: GET %s: decode: %v", domain.ErrUpstreamUnavailable, path, err)
	}
	if env.Status != "" && env.Status != "success" {
		return nil, fmt.Errorf("%w: GET %s: status %q: %s", domain.ErrUpstreamUnavailable, path, env.Status, env.Message)
	}
	return env.Result, nil
}

func (c *Client) readCache(ctx context.Context, key string, out interface{}) bool {
	if c.cache == nil || c.cacheTTL <= 0 {
		return false
	}
	val, ok, err := c.cache.Get(ctx, key)
	if err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("Cache read failed, fetching live")
		return false
	}
	if !ok {
		return false
	}
	return json.Unmarshal(val, out) == nil
}

func (c *Client) writeCache(ctx context.Context, key string, val interface{}) {
	if c.cache == nil || c.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	if err := c.cache.Set(ctx, key, data, c.cacheTTL); err != nil {
		c.logger.Warn().Err(err).Str("key", key).Msg("Cache write failed")
	}
}
