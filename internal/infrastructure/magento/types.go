package magento

import (
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/gstfiling/backend/internal/domain/filing"
)

// wireTimeLayout is the timestamp format Magento uses on the wire, in UTC.
const wireTimeLayout = "2006-01-02 15:04:05"

// hsnAttributeCode is the product custom attribute carrying the HSN
// classification code.
const hsnAttributeCode = "hsncode"

// tokenRequest is the admin token request body.
type tokenRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// orderSearchResponse is the /orders searchCriteria response envelope.
type orderSearchResponse struct {
	Items      []orderEntity `json:"items"`
	TotalCount int           `json:"total_count"`
}

// orderEntity is one order as Magento returns it. Monetary fields decode
// from either JSON numbers or quoted strings; Magento emits both
// depending on version.
type orderEntity struct {
	EntityID    int64             `json:"entity_id"`
	IncrementID string            `json:"increment_id"`
	CreatedAt   string            `json:"created_at"`
	Status      string            `json:"status"`
	GrandTotal  decimal.Decimal   `json:"grand_total"`
	TaxAmount   decimal.Decimal   `json:"tax_amount"`
	Items       []orderItemEntity `json:"items"`
}

// orderItemEntity is one order line on the wire.
type orderItemEntity struct {
	SKU        string          `json:"sku"`
	Name       string          `json:"name"`
	QtyOrdered decimal.Decimal `json:"qty_ordered"`
	TaxAmount  decimal.Decimal `json:"tax_amount"`
	RowTotal   decimal.Decimal `json:"row_total"`
	TaxPercent decimal.Decimal `json:"tax_percent"`
}

// productEntity is the /products/{sku} response, reduced to the custom
// attribute list we read the classification code from.
type productEntity struct {
	SKU              string            `json:"sku"`
	CustomAttributes []customAttribute `json:"custom_attributes"`
}

type customAttribute struct {
	AttributeCode string `json:"attribute_code"`
	Value         any    `json:"value"`
}

// errorResponse is Magento's JSON error body.
type errorResponse struct {
	Message string `json:"message"`
}

// toDomain converts a wire order to the domain model. An unparsable
// created_at leaves the zero time; the documents aggregator then drops
// the order from its window.
func (o *orderEntity) toDomain() filing.Order {
	order := filing.Order{
		EntityID:    strconv.FormatInt(o.EntityID, 10),
		IncrementID: o.IncrementID,
		Status:      o.Status,
		GrandTotal:  o.GrandTotal,
		TaxAmount:   o.TaxAmount,
		Items:       make([]filing.LineItem, 0, len(o.Items)),
	}

	if o.CreatedAt != "" {
		if t, err := time.Parse(wireTimeLayout, o.CreatedAt); err == nil {
			order.CreatedAt = t.UTC()
		}
	}

	for _, item := range o.Items {
		order.Items = append(order.Items, item.toDomain())
	}

	return order
}

func (i *orderItemEntity) toDomain() filing.LineItem {
	return filing.LineItem{
		SKU:        i.SKU,
		Name:       i.Name,
		QtyOrdered: i.QtyOrdered,
		TaxAmount:  i.TaxAmount,
		RowTotal:   i.RowTotal,
		TaxPercent: i.TaxPercent,
	}
}

// hsnCode extracts the classification code attribute, or "" when absent.
func (p *productEntity) hsnCode() string {
	for _, attr := range p.CustomAttributes {
		if attr.AttributeCode != hsnAttributeCode {
			continue
		}
		if s, ok := attr.Value.(string); ok {
			return s
		}
	}
	return ""
}
