package filing

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gstfiling/backend/internal/domain/filing"
)

// stubResolver returns canned HSN codes and records lookups so cache
// behavior is observable.
type stubResolver struct {
	codes   map[string]string
	lookups int
}

func (r *stubResolver) LookupHSN(_ context.Context, _ string, sku string) string {
	r.lookups++
	if code, ok := r.codes[sku]; ok {
		return code
	}
	return filing.UnknownHSNCode
}

func d(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func testWindow() filing.DateWindow {
	return filing.MonthWindow(2024, 1, time.UTC)
}

func testInput(orders []filing.Order) AggregateInput {
	return AggregateInput{
		Orders: orders,
		Window: testWindow(),
		Month:  1,
		Year:   2024,
		Token:  "tok",
	}
}

func lineOrders() []filing.Order {
	return []filing.Order{
		{
			IncrementID: "000000002",
			EntityID:    "2",
			CreatedAt:   time.Date(2024, 1, 5, 10, 0, 0, 0, time.UTC),
			Status:      "complete",
			GrandTotal:  d(236),
			TaxAmount:   d(36),
			Items: []filing.LineItem{
				// 18% slab: 118 gross, 18 tax
				{SKU: "SKU-A", Name: "Widget A", QtyOrdered: d(2), RowTotal: d(118), TaxAmount: d(18)},
				// 18% slab, same SKU, second line merges into the same row
				{SKU: "SKU-A", Name: "Widget A", QtyOrdered: d(1), RowTotal: d(118), TaxAmount: d(18)},
			},
		},
		{
			IncrementID: "000000005",
			EntityID:    "5",
			CreatedAt:   time.Date(2024, 1, 9, 10, 0, 0, 0, time.UTC),
			Status:      "canceled",
			GrandTotal:  d(105),
			TaxAmount:   d(5),
			Items: []filing.LineItem{
				// 5% slab
				{SKU: "SKU-B", Name: "Widget B", QtyOrdered: d(1), RowTotal: d(105), TaxAmount: d(5)},
				// zero quantity line must be skipped
				{SKU: "SKU-C", Name: "Freebie", QtyOrdered: d(0), RowTotal: d(50), TaxAmount: d(9)},
			},
		},
	}
}

func TestNewAggregator(t *testing.T) {
	cfg := DefaultAggregatorConfig()

	for _, kind := range filing.AllReportKinds() {
		agg, err := NewAggregator(kind, cfg, &stubResolver{})
		require.NoError(t, err)
		assert.Equal(t, kind, agg.Kind())
	}

	_, err := NewAggregator(filing.ReportKind("bogus"), cfg, &stubResolver{})
	assert.ErrorIs(t, err, filing.ErrInvalidReportKind)
}

func TestHSNAggregator(t *testing.T) {
	t.Run("fixed-default mode stamps every line without lookups", func(t *testing.T) {
		resolver := &stubResolver{}
		agg, err := NewAggregator(filing.ReportKindHSNDetails, DefaultAggregatorConfig(), resolver)
		require.NoError(t, err)

		result, err := agg.Aggregate(context.Background(), testInput(lineOrders()))
		require.NoError(t, err)

		assert.Equal(t, 0, resolver.lookups)
		require.Len(t, result.HSNRows, 2)

		// rows come out key-sorted: "N/A_18" sorts before "N/A_5"
		fivePct := result.HSNRows[1]
		assert.Equal(t, filing.UnknownHSNCode, fivePct.HSNCode)
		assert.Equal(t, "General Items", fivePct.Description)
		assert.Equal(t, filing.UQCNumbers, fivePct.UQC)
		assert.True(t, fivePct.Rate.Equal(d(5)))
		assert.True(t, fivePct.TaxableValue.Equal(d(100)))
		assert.True(t, fivePct.CentralTax.Equal(d(2.5)))
		assert.True(t, fivePct.StateUTTax.Equal(d(2.5)))

		eighteenPct := result.HSNRows[0]
		assert.True(t, eighteenPct.Rate.Equal(d(18)))
		assert.True(t, eighteenPct.TotalQuantity.Equal(d(3)))
		assert.True(t, eighteenPct.TotalValue.Equal(d(236)))
		assert.True(t, eighteenPct.TaxableValue.Equal(d(200)))
		assert.True(t, eighteenPct.CentralTax.Equal(d(18)))
		assert.True(t, eighteenPct.StateUTTax.Equal(d(18)))

		assert.Equal(t, 2, result.TotalOrders)
		assert.True(t, result.TotalValue.Equal(d(341)))
		assert.True(t, result.TotalTax.Equal(d(41)))
	})

	t.Run("lookup mode resolves each SKU once per run", func(t *testing.T) {
		resolver := &stubResolver{codes: map[string]string{"SKU-A": "8517", "SKU-B": "6404"}}
		cfg := DefaultAggregatorConfig()
		cfg.ClassificationMode = ClassificationLookupPerSKU

		agg, err := NewAggregator(filing.ReportKindHSNDetails, cfg, resolver)
		require.NoError(t, err)

		result, err := agg.Aggregate(context.Background(), testInput(lineOrders()))
		require.NoError(t, err)

		// SKU-A appears on two lines but is looked up once; zero-qty
		// SKU-C is never looked up at all
		assert.Equal(t, 2, resolver.lookups)

		require.Len(t, result.HSNRows, 2)
		assert.Equal(t, "6404", result.HSNRows[0].HSNCode)
		assert.Equal(t, "6404", result.HSNRows[0].Description)
		assert.Equal(t, "8517", result.HSNRows[1].HSNCode)
	})

	t.Run("rates sharing a bucket merge and keep the last rate", func(t *testing.T) {
		agg, err := NewAggregator(filing.ReportKindHSNDetails, DefaultAggregatorConfig(), &stubResolver{})
		require.NoError(t, err)

		orders := []filing.Order{{
			EntityID: "7",
			Items: []filing.LineItem{
				{SKU: "SKU-A", Name: "Widget A", QtyOrdered: d(1), RowTotal: d(117.6), TaxAmount: d(17.6), TaxPercent: d(17.6)},
				{SKU: "SKU-B", Name: "Widget B", QtyOrdered: d(1), RowTotal: d(118.4), TaxAmount: d(18.4), TaxPercent: d(18.4)},
			},
		}}
		result, err := agg.Aggregate(context.Background(), testInput(orders))
		require.NoError(t, err)

		// explicit rates 17.6 and 18.4 both round to key 18 and land in
		// one row; the displayed rate is the last line's, not an average
		require.Len(t, result.HSNRows, 1)
		row := result.HSNRows[0]
		assert.True(t, row.Rate.Equal(d(18.4)), "got rate %s", row.Rate)
		assert.True(t, row.TotalQuantity.Equal(d(2)))
		assert.True(t, row.TaxableValue.Equal(d(200)))
		assert.True(t, row.TotalValue.Equal(d(236)))
	})

	t.Run("order traversal order does not change totals", func(t *testing.T) {
		agg, err := NewAggregator(filing.ReportKindHSNDetails, DefaultAggregatorConfig(), &stubResolver{})
		require.NoError(t, err)

		forward, err := agg.Aggregate(context.Background(), testInput(lineOrders()))
		require.NoError(t, err)

		orders := lineOrders()
		orders[0], orders[1] = orders[1], orders[0]
		reversed, err := agg.Aggregate(context.Background(), testInput(orders))
		require.NoError(t, err)

		assert.Equal(t, forward.HSNRows, reversed.HSNRows)
		assert.True(t, forward.TotalValue.Equal(reversed.TotalValue))
	})

	t.Run("empty window yields no rows", func(t *testing.T) {
		agg, err := NewAggregator(filing.ReportKindHSNDetails, DefaultAggregatorConfig(), &stubResolver{})
		require.NoError(t, err)

		result, err := agg.Aggregate(context.Background(), testInput(nil))
		require.NoError(t, err)
		assert.Empty(t, result.HSNRows)
		assert.Equal(t, 0, result.TotalOrders)
		assert.True(t, result.TotalValue.IsZero())
	})
}

func TestB2CSupplyAggregator(t *testing.T) {
	t.Run("line-item granularity groups by SKU and rate", func(t *testing.T) {
		agg, err := NewAggregator(filing.ReportKindB2CSupplies, DefaultAggregatorConfig(), nil)
		require.NoError(t, err)

		result, err := agg.Aggregate(context.Background(), testInput(lineOrders()))
		require.NoError(t, err)

		require.Len(t, result.B2CRows, 2)
		merged := result.B2CRows[0]
		assert.Equal(t, "Widget A", merged.ProductName)
		assert.Equal(t, "SKU-A", merged.SKU)
		assert.True(t, merged.Quantity.Equal(d(3)))
		assert.True(t, merged.TaxableValue.Equal(d(200)))
		assert.True(t, merged.CGST.Equal(d(18)))
		assert.True(t, merged.SGST.Equal(d(18)))
		assert.True(t, merged.TotalTax.Equal(d(36)))
		assert.True(t, merged.TotalValue.Equal(d(236)))
	})

	t.Run("blank product name falls back to SKU", func(t *testing.T) {
		agg, err := NewAggregator(filing.ReportKindB2CSupplies, DefaultAggregatorConfig(), nil)
		require.NoError(t, err)

		orders := []filing.Order{{
			EntityID: "9",
			Items: []filing.LineItem{
				{SKU: "SKU-X", QtyOrdered: d(1), RowTotal: d(118), TaxAmount: d(18)},
			},
		}}
		result, err := agg.Aggregate(context.Background(), testInput(orders))
		require.NoError(t, err)
		require.Len(t, result.B2CRows, 1)
		assert.Equal(t, "SKU-X", result.B2CRows[0].ProductName)
	})

	t.Run("same SKU with bucket-sharing rates keeps the last rate", func(t *testing.T) {
		agg, err := NewAggregator(filing.ReportKindB2CSupplies, DefaultAggregatorConfig(), nil)
		require.NoError(t, err)

		orders := []filing.Order{{
			EntityID: "8",
			Items: []filing.LineItem{
				{SKU: "SKU-A", Name: "Widget A", QtyOrdered: d(1), RowTotal: d(117.6), TaxAmount: d(17.6), TaxPercent: d(17.6)},
				{SKU: "SKU-A", Name: "Widget A", QtyOrdered: d(1), RowTotal: d(118.4), TaxAmount: d(18.4), TaxPercent: d(18.4)},
			},
		}}
		result, err := agg.Aggregate(context.Background(), testInput(orders))
		require.NoError(t, err)

		require.Len(t, result.B2CRows, 1)
		merged := result.B2CRows[0]
		assert.True(t, merged.TaxRate.Equal(d(18.4)), "got rate %s", merged.TaxRate)
		assert.True(t, merged.Quantity.Equal(d(2)))
		assert.True(t, merged.TaxableValue.Equal(d(200)))
	})

	t.Run("order granularity groups by place of supply and rate", func(t *testing.T) {
		cfg := DefaultAggregatorConfig()
		cfg.B2CGranularity = B2CGranularityOrder

		agg, err := NewAggregator(filing.ReportKindB2CSupplies, cfg, nil)
		require.NoError(t, err)

		orders := []filing.Order{
			{EntityID: "1", GrandTotal: d(118), TaxAmount: d(18)},
			{EntityID: "2", GrandTotal: d(236), TaxAmount: d(36)},
			{EntityID: "3", GrandTotal: d(105), TaxAmount: d(5)},
		}
		result, err := agg.Aggregate(context.Background(), testInput(orders))
		require.NoError(t, err)

		// two rate buckets: 5% and 18%; items on the orders are ignored.
		// The 18% key sorts first.
		require.Len(t, result.B2CRows, 2)
		eighteen := result.B2CRows[0]
		assert.Equal(t, filing.PlaceOfSupply, eighteen.ProductName)
		assert.Empty(t, eighteen.SKU)
		assert.True(t, eighteen.Quantity.Equal(d(2)))
		assert.True(t, eighteen.TaxableValue.Equal(d(300)))
		assert.True(t, eighteen.TotalValue.Equal(d(354)))
	})
}

func TestB2CSAggregator(t *testing.T) {
	agg, err := NewAggregator(filing.ReportKindB2CS, DefaultAggregatorConfig(), nil)
	require.NoError(t, err)

	orders := []filing.Order{
		{EntityID: "1", GrandTotal: d(118), TaxAmount: d(18)},
		{EntityID: "2", GrandTotal: d(59), TaxAmount: d(9)},
		{EntityID: "3", GrandTotal: d(105), TaxAmount: d(5)},
		// no tax at all lands in the zero bucket
		{EntityID: "4", GrandTotal: d(40), TaxAmount: d(0)},
	}
	result, err := agg.Aggregate(context.Background(), testInput(orders))
	require.NoError(t, err)

	require.Len(t, result.B2CSRows, 3)
	// rows come out in ascending rate order
	assert.True(t, result.B2CSRows[0].Rate.IsZero())
	assert.True(t, result.B2CSRows[0].TaxableValue.Equal(d(40)))
	assert.True(t, result.B2CSRows[1].Rate.Equal(d(5)))
	assert.True(t, result.B2CSRows[2].Rate.Equal(d(18)))
	assert.True(t, result.B2CSRows[2].TaxableValue.Equal(d(150)))
	for _, row := range result.B2CSRows {
		assert.Equal(t, filing.PlaceOfSupply, row.PlaceOfSupply)
	}
}

func TestDocumentAggregator(t *testing.T) {
	newAgg := func(t *testing.T, mode DocumentSortMode) Aggregator {
		t.Helper()
		cfg := DefaultAggregatorConfig()
		cfg.DocumentSort = mode
		agg, err := NewAggregator(filing.ReportKindDocuments, cfg, nil)
		require.NoError(t, err)
		return agg
	}

	inWindow := func(incrementID, status string) filing.Order {
		return filing.Order{
			IncrementID: incrementID,
			CreatedAt:   time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC),
			Status:      status,
		}
	}

	t.Run("numeric sort finds first and last with zero padding", func(t *testing.T) {
		agg := newAgg(t, DocumentSortNumeric)

		orders := []filing.Order{
			inWindow("000000005", "complete"),
			inWindow("000000002", "complete"),
			inWindow("000000010", "canceled"),
		}
		result, err := agg.Aggregate(context.Background(), testInput(orders))
		require.NoError(t, err)

		require.NotNil(t, result.Documents)
		assert.Equal(t, "000000002", result.Documents.SrNoFrom)
		assert.Equal(t, "000000010", result.Documents.SrNoTo)
		assert.Equal(t, 3, result.Documents.TotalNumber)
		assert.Equal(t, 1, result.Documents.Cancelled)
	})

	t.Run("numeric sort falls back when an identifier is not numeric", func(t *testing.T) {
		agg := newAgg(t, DocumentSortNumeric)

		orders := []filing.Order{
			inWindow("INV-9", "complete"),
			inWindow("INV-10", "complete"),
		}
		result, err := agg.Aggregate(context.Background(), testInput(orders))
		require.NoError(t, err)

		// lexicographic: "INV-10" sorts before "INV-9"
		assert.Equal(t, "INV-10", result.Documents.SrNoFrom)
		assert.Equal(t, "INV-9", result.Documents.SrNoTo)
	})

	t.Run("lexicographic mode never parses", func(t *testing.T) {
		agg := newAgg(t, DocumentSortLexicographic)

		orders := []filing.Order{
			inWindow("000000010", "complete"),
			inWindow("000000002", "complete"),
		}
		result, err := agg.Aggregate(context.Background(), testInput(orders))
		require.NoError(t, err)

		assert.Equal(t, "000000002", result.Documents.SrNoFrom)
		assert.Equal(t, "000000010", result.Documents.SrNoTo)
	})

	t.Run("orders outside the window and blank numbers are ignored", func(t *testing.T) {
		agg := newAgg(t, DocumentSortNumeric)

		orders := []filing.Order{
			inWindow("000000007", "complete"),
			{IncrementID: "000000001", CreatedAt: time.Date(2023, 12, 31, 23, 0, 0, 0, time.UTC), Status: "complete"},
			{IncrementID: "", CreatedAt: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Status: "complete"},
		}
		result, err := agg.Aggregate(context.Background(), testInput(orders))
		require.NoError(t, err)

		assert.Equal(t, "000000007", result.Documents.SrNoFrom)
		assert.Equal(t, "000000007", result.Documents.SrNoTo)
		assert.Equal(t, 1, result.Documents.TotalNumber)
	})

	t.Run("cancellation matches on substring case-insensitively", func(t *testing.T) {
		agg := newAgg(t, DocumentSortNumeric)

		orders := []filing.Order{
			inWindow("000000001", "Canceled"),
			inWindow("000000002", "partially_cancelled"),
			inWindow("000000003", "complete"),
		}
		result, err := agg.Aggregate(context.Background(), testInput(orders))
		require.NoError(t, err)
		assert.Equal(t, 2, result.Documents.Cancelled)
	})

	t.Run("empty window produces an empty summary", func(t *testing.T) {
		agg := newAgg(t, DocumentSortNumeric)

		result, err := agg.Aggregate(context.Background(), testInput(nil))
		require.NoError(t, err)
		require.NotNil(t, result.Documents)
		assert.Empty(t, result.Documents.SrNoFrom)
		assert.Equal(t, 0, result.Documents.TotalNumber)
	})
}
