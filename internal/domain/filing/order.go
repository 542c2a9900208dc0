package filing

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Order is a sales order pulled from the commerce platform for one
// reporting window. Orders are owned by a single report invocation and are
// never mutated after fetch.
type Order struct {
	// IncrementID is the customer-facing document number. It is usually a
	// zero-padded integer but is treated as opaque until the document report
	// needs to sort it.
	IncrementID string          `json:"increment_id"`
	EntityID    string          `json:"entity_id"`
	CreatedAt   time.Time       `json:"created_at"`
	Status      string          `json:"status"`
	GrandTotal  decimal.Decimal `json:"grand_total"`
	TaxAmount   decimal.Decimal `json:"tax_amount"`
	Items       []LineItem      `json:"items"`
}

// LineItem is a single product line on an order.
type LineItem struct {
	SKU        string          `json:"sku"`
	Name       string          `json:"name"`
	QtyOrdered decimal.Decimal `json:"qty_ordered"`
	TaxAmount  decimal.Decimal `json:"tax_amount"`
	RowTotal   decimal.Decimal `json:"row_total"`
	TaxPercent decimal.Decimal `json:"tax_percent"`
}

// DateWindow is an inclusive day-granularity reporting window.
type DateWindow struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls inside the window.
func (w DateWindow) Contains(t time.Time) bool {
	return !t.Before(w.From) && !t.After(w.To)
}

// MonthWindow builds the window for one filing month. In UTC mode the
// bounds are midnight UTC on the first of the month through the last
// nanosecond of its final day; local mode uses the local zone instead.
func MonthWindow(year, month int, loc *time.Location) DateWindow {
	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, loc)
	to := from.AddDate(0, 1, 0).Add(-time.Nanosecond)
	return DateWindow{From: from, To: to}
}

// OrderSource fetches orders and product classification data from the
// commerce platform. The credential is the platform's own bearer token,
// passed through from the caller.
type OrderSource interface {
	// FetchOrders returns every order created inside the window.
	FetchOrders(ctx context.Context, token string, window DateWindow) ([]Order, error)

	// FetchOrderItems returns the line items of a single order, for
	// platforms whose search response omits them. Callers degrade a
	// failed fetch to an empty item list; the order then contributes
	// nothing to line-item reports.
	FetchOrderItems(ctx context.Context, token, orderID string) ([]LineItem, error)

	// LookupHSN resolves the HSN classification code for a SKU. Lookup
	// failure degrades to UnknownHSNCode and never fails the report.
	LookupHSN(ctx context.Context, token, sku string) string
}
