package filing

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/gstfiling/backend/internal/domain/filing"
)

// ClassificationMode selects how HSN codes are resolved for the HSN report.
type ClassificationMode string

const (
	// ClassificationLookupPerSKU resolves codes through the platform's
	// product API, cached per invocation so each SKU is fetched once.
	ClassificationLookupPerSKU ClassificationMode = "lookup-per-sku-cached"
	// ClassificationFixedDefault stamps every line with the configured
	// default code, avoiding the per-SKU round trips entirely.
	ClassificationFixedDefault ClassificationMode = "fixed-default"
)

// B2CGranularity selects the unit of work for the B2C supplies report.
type B2CGranularity string

const (
	// B2CGranularityLineItem groups by (SKU, rate) over order lines.
	B2CGranularityLineItem B2CGranularity = "line-item"
	// B2CGranularityOrder groups by (place of supply, rate) over order totals.
	B2CGranularityOrder B2CGranularity = "order"
)

// DocumentSortMode selects how document numbers are ordered.
type DocumentSortMode string

const (
	DocumentSortNumeric       DocumentSortMode = "numeric"
	DocumentSortLexicographic DocumentSortMode = "lexicographic"
)

// AggregatorConfig carries the report-shaping switches. The switches exist
// because the dashboard's behavior changed across releases; both variants
// of each knob remain supported.
type AggregatorConfig struct {
	ClassificationMode ClassificationMode
	DefaultHSNCode     string
	B2CGranularity     B2CGranularity
	DocumentSort       DocumentSortMode
}

// DefaultAggregatorConfig returns the configuration matching current
// dashboard behavior.
func DefaultAggregatorConfig() AggregatorConfig {
	return AggregatorConfig{
		ClassificationMode: ClassificationFixedDefault,
		DefaultHSNCode:     filing.UnknownHSNCode,
		B2CGranularity:     B2CGranularityLineItem,
		DocumentSort:       DocumentSortNumeric,
	}
}

// HSNResolver resolves HSN classification codes per SKU.
type HSNResolver interface {
	LookupHSN(ctx context.Context, token, sku string) string
}

// AggregateInput is one invocation's worth of fetched orders plus the
// window they were fetched for.
type AggregateInput struct {
	Orders []filing.Order
	Window filing.DateWindow
	Month  int
	Year   int
	Token  string
}

// Aggregator turns an order sequence into the summary rows of one report
// kind. Implementations share the same skeleton: pick units of work, skip
// non-positive quantities where units are lines, infer the rate, upsert
// into a keyed running sum.
type Aggregator interface {
	Kind() filing.ReportKind
	Aggregate(ctx context.Context, in AggregateInput) (*filing.ReportResult, error)
}

// NewAggregator returns the aggregator for the given report kind.
func NewAggregator(kind filing.ReportKind, cfg AggregatorConfig, resolver HSNResolver) (Aggregator, error) {
	switch kind {
	case filing.ReportKindHSNDetails:
		return &hsnAggregator{cfg: cfg, resolver: resolver}, nil
	case filing.ReportKindB2CSupplies:
		return &b2cSupplyAggregator{cfg: cfg}, nil
	case filing.ReportKindB2CS:
		return &b2csAggregator{}, nil
	case filing.ReportKindDocuments:
		return &documentAggregator{cfg: cfg}, nil
	default:
		return nil, filing.ErrInvalidReportKind
	}
}

// taxFigures holds the derived amounts for one unit of work. Tax splits
// evenly into the two symmetric components of the dual-component domestic
// tax; a single jurisdiction is assumed throughout, so no integrated-tax
// figure is ever computed.
type taxFigures struct {
	rate    decimal.Decimal
	rateKey int64
	taxable decimal.Decimal
	cgst    decimal.Decimal
	sgst    decimal.Decimal
}

var two = decimal.NewFromInt(2)

func deriveTax(gross, tax, explicitPct decimal.Decimal) taxFigures {
	rate := filing.InferRate(gross, tax, explicitPct)
	half := tax.Div(two)
	return taxFigures{
		rate:    rate,
		rateKey: filing.RateKey(rate),
		taxable: gross.Sub(tax),
		cgst:    half,
		sgst:    half,
	}
}

func newResult(kind filing.ReportKind, in AggregateInput) *filing.ReportResult {
	return &filing.ReportResult{
		Kind:       kind,
		Month:      in.Month,
		Year:       in.Year,
		TotalValue: decimal.Zero,
		TotalTax:   decimal.Zero,
	}
}

// ---------------------------------------------------------------------------
// HSN Details
// ---------------------------------------------------------------------------

type hsnAggregator struct {
	cfg      AggregatorConfig
	resolver HSNResolver
}

func (a *hsnAggregator) Kind() filing.ReportKind { return filing.ReportKindHSNDetails }

func (a *hsnAggregator) Aggregate(ctx context.Context, in AggregateInput) (*filing.ReportResult, error) {
	result := newResult(filing.ReportKindHSNDetails, in)
	result.TotalOrders = len(in.Orders)

	rows := make(map[string]*filing.HSNRow)
	// Invocation-local cache; never shared across jobs.
	hsnCache := make(map[string]string)

	for _, order := range in.Orders {
		for _, item := range order.Items {
			if !item.QtyOrdered.IsPositive() {
				continue
			}

			code := a.classify(ctx, in.Token, item.SKU, hsnCache)
			fig := deriveTax(item.RowTotal, item.TaxAmount, item.TaxPercent)

			key := fmt.Sprintf("%s_%d", code, fig.rateKey)
			row, ok := rows[key]
			if !ok {
				row = &filing.HSNRow{
					HSNCode:     code,
					Description: hsnDescription(code),
					UQC:         filing.UQCNumbers,
				}
				rows[key] = row
			}
			row.TotalQuantity = row.TotalQuantity.Add(item.QtyOrdered)
			row.TotalValue = row.TotalValue.Add(item.RowTotal)
			row.TaxableValue = row.TaxableValue.Add(fig.taxable)
			row.CentralTax = row.CentralTax.Add(fig.cgst)
			row.StateUTTax = row.StateUTTax.Add(fig.sgst)
			row.Rate = fig.rate

			result.TotalValue = result.TotalValue.Add(item.RowTotal)
			result.TotalTax = result.TotalTax.Add(item.TaxAmount)
		}
	}

	result.HSNRows = make([]filing.HSNRow, 0, len(rows))
	for _, key := range sortedKeys(rows) {
		result.HSNRows = append(result.HSNRows, *rows[key])
	}
	return result, nil
}

func (a *hsnAggregator) classify(ctx context.Context, token, sku string, cache map[string]string) string {
	if a.cfg.ClassificationMode == ClassificationFixedDefault {
		return a.cfg.DefaultHSNCode
	}
	if code, ok := cache[sku]; ok {
		return code
	}
	code := a.resolver.LookupHSN(ctx, token, sku)
	cache[sku] = code
	return code
}

func hsnDescription(code string) string {
	if code == filing.UnknownHSNCode {
		return "General Items"
	}
	return code
}

// ---------------------------------------------------------------------------
// B2C Supplies
// ---------------------------------------------------------------------------

type b2cSupplyAggregator struct {
	cfg AggregatorConfig
}

func (a *b2cSupplyAggregator) Kind() filing.ReportKind { return filing.ReportKindB2CSupplies }

func (a *b2cSupplyAggregator) Aggregate(ctx context.Context, in AggregateInput) (*filing.ReportResult, error) {
	result := newResult(filing.ReportKindB2CSupplies, in)
	result.TotalOrders = len(in.Orders)

	rows := make(map[string]*filing.B2CSupplyRow)

	upsert := func(key, name, sku string, qty, gross, tax decimal.Decimal, fig taxFigures) {
		row, ok := rows[key]
		if !ok {
			row = &filing.B2CSupplyRow{
				ProductName: name,
				SKU:         sku,
			}
			rows[key] = row
		}
		row.TaxRate = fig.rate
		row.Quantity = row.Quantity.Add(qty)
		row.TaxableValue = row.TaxableValue.Add(fig.taxable)
		row.CGST = row.CGST.Add(fig.cgst)
		row.SGST = row.SGST.Add(fig.sgst)
		row.TotalTax = row.TotalTax.Add(tax)
		row.TotalValue = row.TotalValue.Add(gross)

		result.TotalValue = result.TotalValue.Add(gross)
		result.TotalTax = result.TotalTax.Add(tax)
	}

	for _, order := range in.Orders {
		if a.cfg.B2CGranularity == B2CGranularityOrder {
			fig := deriveTax(order.GrandTotal, order.TaxAmount, decimal.Zero)
			key := fmt.Sprintf("%s_%d", filing.PlaceOfSupply, fig.rateKey)
			upsert(key, filing.PlaceOfSupply, "", decimal.NewFromInt(1), order.GrandTotal, order.TaxAmount, fig)
			continue
		}

		for _, item := range order.Items {
			if !item.QtyOrdered.IsPositive() {
				continue
			}
			name := item.Name
			if name == "" {
				name = item.SKU
			}
			fig := deriveTax(item.RowTotal, item.TaxAmount, item.TaxPercent)
			key := fmt.Sprintf("%s_%d", item.SKU, fig.rateKey)
			upsert(key, name, item.SKU, item.QtyOrdered, item.RowTotal, item.TaxAmount, fig)
		}
	}

	result.B2CRows = make([]filing.B2CSupplyRow, 0, len(rows))
	for _, key := range sortedKeys(rows) {
		result.B2CRows = append(result.B2CRows, *rows[key])
	}
	return result, nil
}

// ---------------------------------------------------------------------------
// B2CS (rate-bucketed supplies)
// ---------------------------------------------------------------------------

type b2csAggregator struct{}

func (a *b2csAggregator) Kind() filing.ReportKind { return filing.ReportKindB2CS }

func (a *b2csAggregator) Aggregate(ctx context.Context, in AggregateInput) (*filing.ReportResult, error) {
	result := newResult(filing.ReportKindB2CS, in)
	result.TotalOrders = len(in.Orders)

	rows := make(map[int64]*filing.B2CSRow)

	for _, order := range in.Orders {
		fig := deriveTax(order.GrandTotal, order.TaxAmount, decimal.Zero)

		row, ok := rows[fig.rateKey]
		if !ok {
			row = &filing.B2CSRow{PlaceOfSupply: filing.PlaceOfSupply}
			rows[fig.rateKey] = row
		}
		row.Rate = fig.rate
		row.TaxableValue = row.TaxableValue.Add(fig.taxable)
	}

	keys := make([]int64, 0, len(rows))
	for k := range rows {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	result.B2CSRows = make([]filing.B2CSRow, 0, len(rows))
	for _, k := range keys {
		result.B2CSRows = append(result.B2CSRows, *rows[k])
	}
	return result, nil
}

// ---------------------------------------------------------------------------
// Documents (sequence reconciliation)
// ---------------------------------------------------------------------------

type documentAggregator struct {
	cfg AggregatorConfig
}

func (a *documentAggregator) Kind() filing.ReportKind { return filing.ReportKindDocuments }

func (a *documentAggregator) Aggregate(ctx context.Context, in AggregateInput) (*filing.ReportResult, error) {
	result := newResult(filing.ReportKindDocuments, in)
	result.TotalOrders = len(in.Orders)
	result.Documents = &filing.DocumentSummary{}

	if len(in.Orders) == 0 {
		return result, nil
	}

	numbers := make([]string, 0, len(in.Orders))
	cancelled := 0
	for _, order := range in.Orders {
		if order.IncrementID == "" {
			continue
		}
		// The platform's date filter is not trusted blindly; orders are
		// re-checked against the window before counting.
		if !in.Window.Contains(order.CreatedAt) {
			continue
		}
		numbers = append(numbers, order.IncrementID)
		if isCancelled(order.Status) {
			cancelled++
		}
	}

	if len(numbers) == 0 {
		result.Documents.Cancelled = cancelled
		return result, nil
	}

	first, last := sortDocumentNumbers(numbers, a.cfg.DocumentSort)
	result.Documents.SrNoFrom = first
	result.Documents.SrNoTo = last
	result.Documents.TotalNumber = len(numbers)
	result.Documents.Cancelled = cancelled
	return result, nil
}

// sortDocumentNumbers orders the identifiers and returns the first and
// last, zero-padded to 9 digits when all identifiers are numeric. Numeric
// mode falls back to lexicographic ordering if any identifier does not
// parse as an integer.
func sortDocumentNumbers(numbers []string, mode DocumentSortMode) (first, last string) {
	if mode == DocumentSortNumeric {
		parsed := make([]int64, 0, len(numbers))
		ok := true
		for _, n := range numbers {
			v, err := strconv.ParseInt(n, 10, 64)
			if err != nil {
				ok = false
				break
			}
			parsed = append(parsed, v)
		}
		if ok {
			sort.Slice(parsed, func(i, j int) bool { return parsed[i] < parsed[j] })
			return fmt.Sprintf("%09d", parsed[0]), fmt.Sprintf("%09d", parsed[len(parsed)-1])
		}
	}

	sorted := make([]string, len(numbers))
	copy(sorted, numbers)
	sort.Strings(sorted)
	return sorted[0], sorted[len(sorted)-1]
}

func isCancelled(status string) bool {
	return strings.Contains(strings.ToLower(status), "cancel")
}

// sortedKeys returns the map keys in ascending order so row emission is
// deterministic regardless of map iteration order.
func sortedKeys[V any](m map[string]*V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
