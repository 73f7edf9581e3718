package erp

import (
	"errors"
	"time"
)

// Config validation errors
var (
	ErrConfigMissingClientID     = errors.New("erp: config missing client id")
	ErrConfigMissingClientSecret = errors.New("erp: config missing client secret")
	ErrConfigMissingRefreshToken = errors.New("erp: config missing refresh token")
	ErrConfigMissingOrgID        = errors.New("erp: config missing organization id")
	ErrConfigMissingWarehouse    = errors.New("erp: config missing fulfillment warehouse id")
)

// Default endpoint and throttling parameters. Endpoints are overridable for
// tests and regional hosts; throttling defaults track the provider's
// documented budgets (ledger ~100 req/min, inventory ~3,750 req/day).
const (
	DefaultLedgerBaseURL    = "https://books.example-erp.com/api/v3"
	DefaultInventoryBaseURL = "https://inventory.example-erp.com/api/v1"
	DefaultAuthURL          = "https://accounts.example-erp.com/oauth/v2/token"

	DefaultTimeoutSeconds     = 30
	DefaultRequestsPerMinute  = 90
	DefaultMaxRateLimitRetry  = 3
	DefaultRefreshDebounce    = 30 * time.Second
	DefaultTokenSafetyMargin  = 5 * time.Minute
	DefaultRefreshRetryDelay  = 10 * time.Second
	DefaultRateLimitBaseDelay = 2 * time.Second
)

// Config holds the backing ERP connection settings. The fulfillment
// warehouse identifier lives here and nowhere else: every stock decision
// reads it from configuration, never from a repeated literal.
type Config struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	OrgID        string

	LedgerBaseURL    string
	InventoryBaseURL string
	AuthURL          string

	// WarehouseID is the single warehouse the storefront fulfills from.
	// Stock figures from any other location overstate availability.
	WarehouseID string

	TimeoutSeconds    int
	RequestsPerMinute int
	MaxRateLimitRetry int

	RefreshDebounce   time.Duration
	TokenSafetyMargin time.Duration
}

// Validate checks required fields and fills endpoint/throttle defaults.
// Credential gaps fail loudly: retrying a missing secret can never succeed.
func (c *Config) Validate() error {
	if c.ClientID == "" {
		return ErrConfigMissingClientID
	}
	if c.ClientSecret == "" {
		return ErrConfigMissingClientSecret
	}
	if c.RefreshToken == "" {
		return ErrConfigMissingRefreshToken
	}
	if c.OrgID == "" {
		return ErrConfigMissingOrgID
	}
	if c.WarehouseID == "" {
		return ErrConfigMissingWarehouse
	}

	if c.LedgerBaseURL == "" {
		c.LedgerBaseURL = DefaultLedgerBaseURL
	}
	if c.InventoryBaseURL == "" {
		c.InventoryBaseURL = DefaultInventoryBaseURL
	}
	if c.AuthURL == "" {
		c.AuthURL = DefaultAuthURL
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = DefaultTimeoutSeconds
	}
	if c.RequestsPerMinute <= 0 {
		c.RequestsPerMinute = DefaultRequestsPerMinute
	}
	if c.MaxRateLimitRetry <= 0 {
		c.MaxRateLimitRetry = DefaultMaxRateLimitRetry
	}
	if c.RefreshDebounce <= 0 {
		c.RefreshDebounce = DefaultRefreshDebounce
	}
	if c.TokenSafetyMargin <= 0 {
		c.TokenSafetyMargin = DefaultTokenSafetyMargin
	}
	return nil
}
