package magento

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/gstfiling/backend/internal/domain/filing"
)

func newTestAdapter(t *testing.T, handler http.Handler) (*Adapter, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := NewConfig(server.URL)
	cfg.PageSize = 2

	adapter, err := NewAdapter(cfg, zap.NewNop())
	require.NoError(t, err)
	return adapter, server
}

func testWindow() filing.DateWindow {
	return filing.MonthWindow(2024, 1, time.UTC)
}

func decimalFromString(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	require.NoError(t, err)
	return d
}

func TestNewAdapter(t *testing.T) {
	t.Run("rejects missing base URL", func(t *testing.T) {
		_, err := NewAdapter(&Config{}, zap.NewNop())
		assert.ErrorIs(t, err, ErrConfigMissingBaseURL)
	})

	t.Run("fills config defaults", func(t *testing.T) {
		adapter, err := NewAdapter(&Config{BaseURL: "http://magento.local"}, zap.NewNop())
		require.NoError(t, err)
		assert.Equal(t, 30, adapter.config.TimeoutSeconds)
		assert.Equal(t, 5, adapter.config.LookupTimeoutSeconds)
		assert.Equal(t, 100, adapter.config.PageSize)
	})
}

func TestAdapterAuthenticate(t *testing.T) {
	t.Run("exchanges credentials for a bare token string", func(t *testing.T) {
		adapter, _ := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			assert.Equal(t, "/integration/admin/token", r.URL.Path)

			var creds map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
			assert.Equal(t, "admin", creds["username"])
			assert.Equal(t, "secret", creds["password"])

			w.Write([]byte(`"tok-123"`))
		}))

		token, err := adapter.Authenticate(context.Background(), "admin", "secret")
		require.NoError(t, err)
		assert.Equal(t, "tok-123", token)
	})

	t.Run("bad credentials map to the authentication error", func(t *testing.T) {
		adapter, _ := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"message":"The account sign-in was incorrect."}`))
		}))

		_, err := adapter.Authenticate(context.Background(), "admin", "wrong")
		assert.ErrorIs(t, err, filing.ErrAuthenticationFailed)
	})

	t.Run("non-string token body maps to the authentication error", func(t *testing.T) {
		adapter, _ := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"unexpected":"shape"}`))
		}))

		_, err := adapter.Authenticate(context.Background(), "admin", "secret")
		assert.ErrorIs(t, err, filing.ErrAuthenticationFailed)
	})

	t.Run("upstream 5xx maps to the authentication error", func(t *testing.T) {
		adapter, _ := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))

		_, err := adapter.Authenticate(context.Background(), "admin", "secret")
		assert.ErrorIs(t, err, filing.ErrAuthenticationFailed)
	})

	t.Run("transport failure maps to the authentication error", func(t *testing.T) {
		adapter, server := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		server.Close()

		_, err := adapter.Authenticate(context.Background(), "admin", "secret")
		assert.ErrorIs(t, err, filing.ErrAuthenticationFailed)
	})
}

func TestAdapterFetchOrders(t *testing.T) {
	t.Run("walks pages until the reported total", func(t *testing.T) {
		var pages []string
		adapter, _ := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/orders", r.URL.Path)
			assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

			q := r.URL.Query()
			assert.Equal(t, "created_at", q.Get("searchCriteria[filter_groups][0][filters][0][field]"))
			assert.Equal(t, "gteq", q.Get("searchCriteria[filter_groups][0][filters][0][condition_type]"))
			assert.Equal(t, "2024-01-01 00:00:00", q.Get("searchCriteria[filter_groups][0][filters][0][value]"))
			assert.Equal(t, "lteq", q.Get("searchCriteria[filter_groups][1][filters][0][condition_type]"))
			assert.Equal(t, "2024-01-31 23:59:59", q.Get("searchCriteria[filter_groups][1][filters][0][value]"))
			assert.Equal(t, "2", q.Get("searchCriteria[pageSize]"))

			page := q.Get("searchCriteria[currentPage]")
			pages = append(pages, page)
			switch page {
			case "1":
				w.Write([]byte(`{"items":[
					{"entity_id":11,"increment_id":"000000011","created_at":"2024-01-05 10:00:00","status":"complete","grand_total":118.0,"tax_amount":"18.00"},
					{"entity_id":12,"increment_id":"000000012","created_at":"2024-01-06 10:00:00","status":"complete","grand_total":236.0,"tax_amount":36.0}
				],"total_count":3}`))
			default:
				w.Write([]byte(`{"items":[
					{"entity_id":13,"increment_id":"000000013","created_at":"2024-01-07 10:00:00","status":"canceled","grand_total":105.0,"tax_amount":5.0}
				],"total_count":3}`))
			}
		}))

		orders, err := adapter.FetchOrders(context.Background(), "tok", testWindow())
		require.NoError(t, err)

		assert.Equal(t, []string{"1", "2"}, pages)
		require.Len(t, orders, 3)
		assert.Equal(t, "11", orders[0].EntityID)
		assert.Equal(t, "000000011", orders[0].IncrementID)
		assert.Equal(t, time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC), orders[0].CreatedAt)
		// grand_total arrives as a number, tax_amount as a quoted string
		assert.True(t, orders[0].GrandTotal.Equal(decimalFromString(t, "118")))
		assert.True(t, orders[0].TaxAmount.Equal(decimalFromString(t, "18")))
		assert.Equal(t, "canceled", orders[2].Status)
	})

	t.Run("stops on an empty page", func(t *testing.T) {
		calls := 0
		adapter, _ := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.Write([]byte(`{"items":[],"total_count":10}`))
		}))

		orders, err := adapter.FetchOrders(context.Background(), "tok", testWindow())
		require.NoError(t, err)
		assert.Empty(t, orders)
		assert.Equal(t, 1, calls)
	})

	t.Run("expired token maps to the authentication error", func(t *testing.T) {
		adapter, _ := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))

		_, err := adapter.FetchOrders(context.Background(), "stale", testWindow())
		assert.ErrorIs(t, err, filing.ErrAuthenticationFailed)
	})

	t.Run("upstream message is preserved when the body parses", func(t *testing.T) {
		adapter, _ := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"message":"Invalid search criteria"}`))
		}))

		_, err := adapter.FetchOrders(context.Background(), "tok", testWindow())
		require.Error(t, err)

		var domainErr *filing.DomainError
		require.True(t, errors.As(err, &domainErr))
		assert.Equal(t, filing.ErrUpstreamRequest.Code, domainErr.Code)
		assert.Equal(t, "Invalid search criteria", domainErr.Message)
	})

	t.Run("non-JSON failure collapses to a generic upstream error", func(t *testing.T) {
		adapter, _ := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
			w.Write([]byte("<html>Bad Gateway</html>"))
		}))

		_, err := adapter.FetchOrders(context.Background(), "tok", testWindow())
		assert.ErrorIs(t, err, filing.ErrUpstreamRequest)
		assert.Contains(t, err.Error(), "HTTP 502")
	})
}

func TestAdapterFetchOrderItems(t *testing.T) {
	adapter, _ := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/orders/42", r.URL.Path)
		w.Write([]byte(`{"entity_id":42,"items":[
			{"sku":"SKU-A","name":"Widget A","qty_ordered":2,"tax_amount":18.0,"row_total":100.0,"tax_percent":18.0},
			{"sku":"SKU-B","name":"Widget B","qty_ordered":"1.0000","tax_amount":"5.00","row_total":"100.00","tax_percent":"5.00"}
		]}`))
	}))

	items, err := adapter.FetchOrderItems(context.Background(), "tok", "42")
	require.NoError(t, err)

	require.Len(t, items, 2)
	assert.Equal(t, "SKU-A", items[0].SKU)
	assert.True(t, items[0].QtyOrdered.Equal(decimalFromString(t, "2")))
	assert.True(t, items[1].TaxPercent.Equal(decimalFromString(t, "5")))
}

func TestAdapterLookupHSN(t *testing.T) {
	t.Run("extracts the classification attribute", func(t *testing.T) {
		adapter, _ := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/products/SKU-A", r.URL.Path)
			w.Write([]byte(`{"sku":"SKU-A","custom_attributes":[
				{"attribute_code":"color","value":"red"},
				{"attribute_code":"hsncode","value":"8517"}
			]}`))
		}))

		assert.Equal(t, "8517", adapter.LookupHSN(context.Background(), "tok", "SKU-A"))
	})

	t.Run("missing attribute degrades to the unknown code", func(t *testing.T) {
		adapter, _ := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"sku":"SKU-A","custom_attributes":[]}`))
		}))

		assert.Equal(t, filing.UnknownHSNCode, adapter.LookupHSN(context.Background(), "tok", "SKU-A"))
	})

	t.Run("upstream failure degrades to the unknown code", func(t *testing.T) {
		adapter, _ := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"message":"Requested product doesn't exist"}`))
		}))

		assert.Equal(t, filing.UnknownHSNCode, adapter.LookupHSN(context.Background(), "tok", "SKU-MISSING"))
	})

	t.Run("slow lookup times out under its own deadline", func(t *testing.T) {
		adapter, _ := newTestAdapter(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
			w.Write([]byte(`{"sku":"SKU-A"}`))
		}))
		adapter.config.LookupTimeoutSeconds = 1

		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()

		assert.Equal(t, filing.UnknownHSNCode, adapter.LookupHSN(ctx, "tok", "SKU-A"))
	})
}
