// Package magento implements the order source against a Magento-style
// commerce REST API: bearer-token auth, searchCriteria order queries and
// per-SKU product lookups.
package magento

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/gstfiling/backend/internal/domain/filing"
)

// maxResponseSize is the maximum allowed response size from the Magento API (10MB)
const maxResponseSize = 10 * 1024 * 1024

// Adapter implements filing.OrderSource for the Magento REST API.
// It holds no credential state: the bearer token arrives per call,
// passed through from the requester.
type Adapter struct {
	config     *Config
	httpClient *http.Client
	logger     *zap.Logger
}

// NewAdapter creates a new Magento adapter with the given configuration.
func NewAdapter(config *Config, logger *zap.Logger) (*Adapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Adapter{
		config: config,
		httpClient: &http.Client{
			Timeout: time.Duration(config.TimeoutSeconds) * time.Second,
		},
		logger: logger,
	}, nil
}

// Authenticate exchanges admin credentials for a bearer token. Any
// failure on this endpoint, whether a rejected login, an unexpected
// status, or a transport error, surfaces as an authentication failure:
// the caller cannot proceed without a token either way.
func (a *Adapter) Authenticate(ctx context.Context, username, password string) (string, error) {
	payload, err := json.Marshal(tokenRequest{Username: username, Password: password})
	if err != nil {
		return "", fmt.Errorf("magento: failed to encode credentials: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		a.config.BaseURL+"/integration/admin/token", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("magento: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", filing.ErrAuthenticationFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", fmt.Errorf("%w: %v", filing.ErrAuthenticationFailed, err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", filing.ErrAuthenticationFailed, resp.StatusCode)
	}

	// The token endpoint returns a bare JSON string.
	var token string
	if err := json.Unmarshal(body, &token); err != nil {
		return "", fmt.Errorf("%w: unexpected token response", filing.ErrAuthenticationFailed)
	}
	return token, nil
}

// ---------------------------------------------------------------------------
// Order Operations
// ---------------------------------------------------------------------------

// FetchOrders returns every order created inside the window, walking the
// searchCriteria pages until the reported total is reached.
func (a *Adapter) FetchOrders(ctx context.Context, token string, window filing.DateWindow) ([]filing.Order, error) {
	orders := make([]filing.Order, 0)

	for page := 1; ; page++ {
		body, err := a.doGet(ctx, token, "/orders?"+a.searchQuery(window, page))
		if err != nil {
			return nil, err
		}

		var resp orderSearchResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return nil, fmt.Errorf("%w: failed to parse order search response", filing.ErrUpstreamRequest)
		}

		for i := range resp.Items {
			orders = append(orders, resp.Items[i].toDomain())
		}

		if len(resp.Items) == 0 || len(orders) >= resp.TotalCount {
			break
		}
	}

	a.logger.Debug("orders fetched",
		zap.Int("count", len(orders)),
		zap.Time("from", window.From),
		zap.Time("to", window.To),
	)

	return orders, nil
}

// FetchOrderItems returns the line items of one order.
func (a *Adapter) FetchOrderItems(ctx context.Context, token, orderID string) ([]filing.LineItem, error) {
	body, err := a.doGet(ctx, token, "/orders/"+url.PathEscape(orderID))
	if err != nil {
		return nil, err
	}

	var entity orderEntity
	if err := json.Unmarshal(body, &entity); err != nil {
		return nil, fmt.Errorf("%w: failed to parse order response", filing.ErrUpstreamRequest)
	}

	items := make([]filing.LineItem, 0, len(entity.Items))
	for i := range entity.Items {
		items = append(items, entity.Items[i].toDomain())
	}
	return items, nil
}

// ---------------------------------------------------------------------------
// Product Operations
// ---------------------------------------------------------------------------

// LookupHSN fetches the product's classification code. The lookup runs
// under its own short deadline and degrades to the unknown code on any
// failure; a missing attribute must never fail a report.
func (a *Adapter) LookupHSN(ctx context.Context, token, sku string) string {
	lookupCtx, cancel := context.WithTimeout(ctx, time.Duration(a.config.LookupTimeoutSeconds)*time.Second)
	defer cancel()

	body, err := a.doGet(lookupCtx, token, "/products/"+url.PathEscape(sku))
	if err != nil {
		a.logger.Warn("product lookup failed",
			zap.String("sku", sku),
			zap.Error(err),
		)
		return filing.UnknownHSNCode
	}

	var product productEntity
	if err := json.Unmarshal(body, &product); err != nil {
		return filing.UnknownHSNCode
	}

	code := product.hsnCode()
	if code == "" {
		return filing.UnknownHSNCode
	}
	return code
}

// ---------------------------------------------------------------------------
// Internal Helpers
// ---------------------------------------------------------------------------

// searchQuery builds the created_at range filter for one result page.
// Window bounds go on the wire in UTC regardless of how they were cut.
func (a *Adapter) searchQuery(window filing.DateWindow, page int) string {
	values := url.Values{}
	values.Set("searchCriteria[filter_groups][0][filters][0][field]", "created_at")
	values.Set("searchCriteria[filter_groups][0][filters][0][condition_type]", "gteq")
	values.Set("searchCriteria[filter_groups][0][filters][0][value]", window.From.UTC().Format(wireTimeLayout))
	values.Set("searchCriteria[filter_groups][1][filters][0][field]", "created_at")
	values.Set("searchCriteria[filter_groups][1][filters][0][condition_type]", "lteq")
	values.Set("searchCriteria[filter_groups][1][filters][0][value]", window.To.UTC().Format(wireTimeLayout))
	values.Set("searchCriteria[pageSize]", strconv.Itoa(a.config.PageSize))
	values.Set("searchCriteria[currentPage]", strconv.Itoa(page))
	return values.Encode()
}

// doGet performs an authenticated GET against the Magento API.
func (a *Adapter) doGet(ctx context.Context, token, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.config.BaseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("magento: failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", filing.ErrUpstreamRequest, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("magento: failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, classifyError(resp.StatusCode, body)
	}

	return body, nil
}

// classifyError maps an upstream failure to a domain error. 401 means
// the bearer token is no longer valid; anything else keeps the upstream
// message when it parses as Magento's error body, and collapses to a
// generic upstream error otherwise.
func classifyError(status int, body []byte) error {
	if status == http.StatusUnauthorized {
		return filing.ErrAuthenticationFailed
	}

	var errResp errorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Message != "" {
		return filing.NewDomainError(filing.ErrUpstreamRequest.Code, errResp.Message)
	}
	return fmt.Errorf("%w: HTTP %d", filing.ErrUpstreamRequest, status)
}

// Ensure Adapter implements the order source interface
var _ filing.OrderSource = (*Adapter)(nil)
