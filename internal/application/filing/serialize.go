package filing

import (
	"fmt"
	"html"
	"strconv"
	"strings"

	"github.com/gstfiling/backend/internal/domain/filing"
)

// Payload is the serialized form of one report, as handed to the caller
// or parked in the job store. The field names are part of the dashboard
// contract.
type Payload struct {
	CSV      string               `json:"csv"`
	Filename string               `json:"filename"`
	HTML     string               `json:"html"`
	Report   *filing.ReportResult `json:"reportData"`
}

// Serialize projects an aggregated result into its CSV and HTML encodings.
// It formats, never recomputes: the column order, headers and decimal
// places below are a wire contract with the downstream filing tools.
// Byte-identical output for the same result is guaranteed; the filename
// timestamp comes from the result, not the clock.
//
// Note the B2CS taxable value is emitted at 1 decimal place while every
// other monetary column uses 2. The inconsistency is historical and
// downstream tooling depends on it.
func Serialize(result *filing.ReportResult) (*Payload, error) {
	if result == nil {
		return nil, filing.ErrInvalidReportKind
	}

	millis := result.GeneratedAt.UnixMilli()

	switch result.Kind {
	case filing.ReportKindHSNDetails:
		return &Payload{
			CSV:      hsnCSV(result),
			Filename: fmt.Sprintf("hsn_detailed_report_%d.csv", millis),
			HTML:     hsnHTML(result),
			Report:   result,
		}, nil
	case filing.ReportKindB2CSupplies:
		return &Payload{
			CSV:      b2cSupplyCSV(result),
			Filename: fmt.Sprintf("b2c_supplies_report_%d.csv", millis),
			HTML:     b2cSupplyHTML(result),
			Report:   result,
		}, nil
	case filing.ReportKindB2CS:
		return &Payload{
			CSV:      b2csCSV(result),
			Filename: fmt.Sprintf("b2cs_report_%d.csv", millis),
			HTML:     b2csHTML(result),
			Report:   result,
		}, nil
	case filing.ReportKindDocuments:
		return &Payload{
			CSV:      documentsCSV(result),
			Filename: fmt.Sprintf("documents_report_%d.csv", millis),
			HTML:     documentsHTML(result),
			Report:   result,
		}, nil
	default:
		return nil, filing.ErrInvalidReportKind
	}
}

// ---------------------------------------------------------------------------
// CSV
// ---------------------------------------------------------------------------

func hsnCSV(result *filing.ReportResult) string {
	var b strings.Builder
	b.WriteString("HSN,Description,UQC,Total Quantity,Total Value,Taxable Value,Integrated Tax Amount,Central Tax Amount,State/UT Tax Amount,Cess Amount,Rate\n")
	for _, row := range result.HSNRows {
		b.WriteString(fmt.Sprintf("%s,%s,%s,%s,%s,%s,%s,%s,%s,%s,%s\n",
			row.HSNCode,
			row.Description,
			row.UQC,
			row.TotalQuantity.StringFixed(0),
			row.TotalValue.StringFixed(2),
			row.TaxableValue.StringFixed(2),
			row.IntegratedTax.StringFixed(0),
			row.CentralTax.StringFixed(2),
			row.StateUTTax.StringFixed(2),
			row.Cess.StringFixed(0),
			row.Rate.StringFixed(0),
		))
	}
	return b.String()
}

func b2cSupplyCSV(result *filing.ReportResult) string {
	var b strings.Builder
	b.WriteString("Product Name,SKU,Tax Rate,Quantity,Taxable Value,CGST Amount,SGST Amount,Total Tax,Total Value\n")
	for _, row := range result.B2CRows {
		b.WriteString(fmt.Sprintf("%s,%s,%s,%s,%s,%s,%s,%s,%s\n",
			row.ProductName,
			row.SKU,
			row.TaxRate.StringFixed(0),
			row.Quantity.StringFixed(0),
			row.TaxableValue.StringFixed(2),
			row.CGST.StringFixed(2),
			row.SGST.StringFixed(2),
			row.TotalTax.StringFixed(2),
			row.TotalValue.StringFixed(2),
		))
	}
	return b.String()
}

func b2csCSV(result *filing.ReportResult) string {
	var b strings.Builder
	b.WriteString("Type,Place Of Supply,Rate,Taxable Value,Cess Amount,E-Commerce GSTIN\n")
	for _, row := range result.B2CSRows {
		b.WriteString(fmt.Sprintf("OE,%s,%s,%s,0,\n",
			row.PlaceOfSupply,
			row.Rate.StringFixed(0),
			row.TaxableValue.StringFixed(1),
		))
	}
	return b.String()
}

func documentsCSV(result *filing.ReportResult) string {
	var b strings.Builder
	b.WriteString("Nature of Document,Sr. No. From,Sr. No. To,Total Number,Cancelled\n")
	docs := result.Documents
	if docs == nil {
		docs = &filing.DocumentSummary{}
	}
	b.WriteString(fmt.Sprintf("Invoice for outward supply,%s,%s,%d,%d\n",
		docs.SrNoFrom,
		docs.SrNoTo,
		docs.TotalNumber,
		docs.Cancelled,
	))
	return b.String()
}

// ---------------------------------------------------------------------------
// HTML
// ---------------------------------------------------------------------------

const (
	tableOpen = `<table class="min-w-full border border-gray-300"><thead class="bg-gray-50"><tr>`
	cellClass = `border border-gray-300 px-4 py-2`
)

func th(b *strings.Builder, label string) {
	fmt.Fprintf(b, `<th class="%s">%s</th>`, cellClass, label)
}

func td(b *strings.Builder, value string) {
	fmt.Fprintf(b, `<td class="%s">%s</td>`, cellClass, html.EscapeString(value))
}

func hsnHTML(result *filing.ReportResult) string {
	var b strings.Builder
	b.WriteString(tableOpen)
	for _, label := range []string{"HSN", "Description", "UQC", "Total Quantity", "Total Value", "Taxable Value", "Central Tax Amount", "State/UT Tax Amount", "Rate"} {
		th(&b, label)
	}
	b.WriteString("</tr></thead><tbody>")
	for _, row := range result.HSNRows {
		b.WriteString("<tr>")
		td(&b, row.HSNCode)
		td(&b, row.Description)
		td(&b, row.UQC)
		td(&b, row.TotalQuantity.StringFixed(0))
		td(&b, row.TotalValue.StringFixed(2))
		td(&b, row.TaxableValue.StringFixed(2))
		td(&b, row.CentralTax.StringFixed(2))
		td(&b, row.StateUTTax.StringFixed(2))
		td(&b, row.Rate.StringFixed(0))
		b.WriteString("</tr>")
	}
	b.WriteString("</tbody></table>")
	return b.String()
}

func b2cSupplyHTML(result *filing.ReportResult) string {
	var b strings.Builder
	b.WriteString(tableOpen)
	for _, label := range []string{"Product Name", "SKU", "Tax Rate", "Quantity", "Taxable Value", "CGST Amount", "SGST Amount", "Total Value"} {
		th(&b, label)
	}
	b.WriteString("</tr></thead><tbody>")
	for _, row := range result.B2CRows {
		b.WriteString("<tr>")
		td(&b, row.ProductName)
		td(&b, row.SKU)
		td(&b, row.TaxRate.StringFixed(0)+"%")
		td(&b, row.Quantity.StringFixed(0))
		td(&b, "₹"+row.TaxableValue.StringFixed(2))
		td(&b, "₹"+row.CGST.StringFixed(2))
		td(&b, "₹"+row.SGST.StringFixed(2))
		td(&b, "₹"+row.TotalValue.StringFixed(2))
		b.WriteString("</tr>")
	}
	b.WriteString("</tbody></table>")
	return b.String()
}

func b2csHTML(result *filing.ReportResult) string {
	var b strings.Builder
	b.WriteString(tableOpen)
	for _, label := range []string{"Type", "Place Of Supply", "Rate", "Taxable Value", "Cess Amount", "E-Commerce GSTIN"} {
		th(&b, label)
	}
	b.WriteString("</tr></thead><tbody>")
	for _, row := range result.B2CSRows {
		b.WriteString("<tr>")
		td(&b, "OE")
		td(&b, row.PlaceOfSupply)
		td(&b, row.Rate.StringFixed(0))
		td(&b, row.TaxableValue.StringFixed(1))
		td(&b, "0")
		td(&b, "")
		b.WriteString("</tr>")
	}
	b.WriteString("</tbody></table>")
	return b.String()
}

func documentsHTML(result *filing.ReportResult) string {
	var b strings.Builder
	b.WriteString(tableOpen)
	for _, label := range []string{"Nature of Document", "Sr. No. From", "Sr. No. To", "Total Number", "Cancelled"} {
		th(&b, label)
	}
	b.WriteString("</tr></thead><tbody>")
	docs := result.Documents
	if docs == nil {
		docs = &filing.DocumentSummary{}
	}
	b.WriteString("<tr>")
	td(&b, "Invoice for outward supply")
	td(&b, docs.SrNoFrom)
	td(&b, docs.SrNoTo)
	td(&b, strconv.Itoa(docs.TotalNumber))
	td(&b, strconv.Itoa(docs.Cancelled))
	b.WriteString("</tr>")
	b.WriteString("</tbody></table>")
	return b.String()
}
