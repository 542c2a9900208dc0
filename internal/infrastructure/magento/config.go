package magento

import "errors"

// Config holds configuration for the Magento REST API integration.
type Config struct {
	// BaseURL is the store's REST root, e.g. https://shop.example.com/rest/V1
	BaseURL string
	// TimeoutSeconds is the HTTP request timeout for order endpoints
	TimeoutSeconds int
	// LookupTimeoutSeconds is the per-call budget for product lookups.
	// Classification lookups are best-effort and must not stall a report.
	LookupTimeoutSeconds int
	// PageSize is the searchCriteria page size for order queries
	PageSize int
}

// Errors for Magento configuration
var ErrConfigMissingBaseURL = errors.New("magento: base URL is required")

// NewConfig creates a new Magento configuration with defaults.
func NewConfig(baseURL string) *Config {
	return &Config{
		BaseURL:              baseURL,
		TimeoutSeconds:       30,
		LookupTimeoutSeconds: 5,
		PageSize:             100,
	}
}

// Validate validates the Magento configuration.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return ErrConfigMissingBaseURL
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	if c.LookupTimeoutSeconds <= 0 {
		c.LookupTimeoutSeconds = 5
	}
	if c.PageSize <= 0 {
		c.PageSize = 100
	}
	return nil
}
