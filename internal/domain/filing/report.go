package filing

import (
	"time"

	"github.com/shopspring/decimal"
)

// ReportKind identifies one of the filing report types. The wire values
// match what the dashboard has always sent.
type ReportKind string

const (
	ReportKindHSNDetails  ReportKind = "HSN Details"
	ReportKindB2CSupplies ReportKind = "B2C Supplies"
	ReportKindB2CS        ReportKind = "B2CS"
	ReportKindDocuments   ReportKind = "Documents"
)

// AllReportKinds returns every supported report kind
func AllReportKinds() []ReportKind {
	return []ReportKind{
		ReportKindHSNDetails,
		ReportKindB2CSupplies,
		ReportKindB2CS,
		ReportKindDocuments,
	}
}

// IsValid reports whether k is a known report kind
func (k ReportKind) IsValid() bool {
	switch k {
	case ReportKindHSNDetails, ReportKindB2CSupplies, ReportKindB2CS, ReportKindDocuments:
		return true
	}
	return false
}

// UnknownHSNCode is the sentinel classification used when a per-SKU lookup
// fails or is disabled.
const UnknownHSNCode = "N/A"

// UQCNumbers is the unit-of-measure literal carried on every HSN row.
const UQCNumbers = "NOS-Numbers"

// PlaceOfSupply is the single jurisdiction this filing covers.
const PlaceOfSupply = "32-KERALA"

// HSNRow is one HSN-wise summary line, keyed by (HSN code, rounded rate).
type HSNRow struct {
	HSNCode       string          `json:"hsn_code"`
	Description   string          `json:"description"`
	UQC           string          `json:"uqc"`
	TotalQuantity decimal.Decimal `json:"total_quantity"`
	TotalValue    decimal.Decimal `json:"total_value"`
	TaxableValue  decimal.Decimal `json:"taxable_value"`
	IntegratedTax decimal.Decimal `json:"integrated_tax_amount"`
	CentralTax    decimal.Decimal `json:"central_tax_amount"`
	StateUTTax    decimal.Decimal `json:"state_ut_tax_amount"`
	Cess          decimal.Decimal `json:"cess_amount"`
	Rate          decimal.Decimal `json:"rate"`
}

// B2CSupplyRow is one B2C supplies summary line. In line-item granularity
// it is keyed by (SKU, rounded rate); in order granularity by
// (place of supply, rounded rate).
type B2CSupplyRow struct {
	ProductName  string          `json:"product_name"`
	SKU          string          `json:"sku"`
	TaxRate      decimal.Decimal `json:"tax_rate"`
	Quantity     decimal.Decimal `json:"quantity"`
	TaxableValue decimal.Decimal `json:"taxable_value"`
	CGST         decimal.Decimal `json:"cgst_amount"`
	SGST         decimal.Decimal `json:"sgst_amount"`
	TotalTax     decimal.Decimal `json:"total_tax"`
	TotalValue   decimal.Decimal `json:"total_value"`
}

// B2CSRow is one rate-bucketed supply line, keyed by rounded rate alone.
type B2CSRow struct {
	PlaceOfSupply string          `json:"place_of_supply"`
	Rate          decimal.Decimal `json:"rate"`
	TaxableValue  decimal.Decimal `json:"taxable_value"`
}

// DocumentSummary reconciles the document number sequence for the window.
// From/To are zero-padded to 9 digits when the identifiers are numeric.
type DocumentSummary struct {
	SrNoFrom    string `json:"sr_no_from"`
	SrNoTo      string `json:"sr_no_to"`
	TotalNumber int    `json:"total_number"`
	Cancelled   int    `json:"cancelled"`
}

// ReportResult holds the fully aggregated rows for one (kind, window)
// pair. It is constructed fresh per invocation and complete before anyone
// observes it; only the field matching Kind is populated.
type ReportResult struct {
	Kind        ReportKind `json:"report_kind"`
	Month       int        `json:"month"`
	Year        int        `json:"year"`
	GeneratedAt time.Time  `json:"generated_at"`

	HSNRows   []HSNRow         `json:"hsn_details,omitempty"`
	B2CRows   []B2CSupplyRow   `json:"b2c_supplies,omitempty"`
	B2CSRows  []B2CSRow        `json:"b2cs,omitempty"`
	Documents *DocumentSummary `json:"documents,omitempty"`

	TotalOrders int             `json:"total_orders"`
	TotalValue  decimal.Decimal `json:"total_value"`
	TotalTax    decimal.Decimal `json:"total_tax"`
}
