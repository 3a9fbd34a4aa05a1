package pdf

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"

	"github.com/openpmo/costcontrol/internal/model"
)

type Generator struct {
	fontName string
}

func NewGenerator() *Generator {
	return &Generator{fontName: "Helvetica"}
}

func (g *Generator) Generate(doc model.CommitmentDocument) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.AddPage()

	commitment := doc.Commitment

	pdf.SetFont(g.fontName, "B", 14)
	pdf.CellFormat(0, 10, "Commitment Summary", "", 1, "C", false, 0, "")

	pdf.SetFont(g.fontName, "", 11)
	pdf.CellFormat(0, 6, fmt.Sprintf("No. %s dated %s", commitment.Number, formatDate(commitment.ContractDate)), "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Performance period %s to %s", formatDate(commitment.StartDate), formatDate(commitment.EndDate)), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	pdf.SetFont(g.fontName, "B", 12)
	pdf.CellFormat(0, 8, "General", "", 1, "L", false, 0, "")
	pdf.SetFont(g.fontName, "", 10)
	lines := []string{
		fmt.Sprintf("Title: %s", safeValue(commitment.Title)),
		fmt.Sprintf("Status: %s", string(commitment.Status)),
		fmt.Sprintf("Pricing: %s", pricingLabel(commitment)),
		fmt.Sprintf("Currency: %s", commitment.Currency),
	}
	for _, line := range lines {
		pdf.MultiCell(0, 5, line, "", "L", false)
	}
	pdf.Ln(2)

	pdf.SetFont(g.fontName, "B", 12)
	pdf.CellFormat(0, 8, "Financial position", "", 1, "L", false, 0, "")
	pdf.SetFont(g.fontName, "", 10)
	financials := [][2]string{
		{"Original amount", formatAmount(commitment.OriginalAmount)},
		{"Revised amount", formatAmount(commitment.RevisedAmount)},
		{"Committed amount", formatAmount(commitment.CommittedAmount)},
		{"Invoiced to date", formatAmount(commitment.InvoicedAmount)},
		{"Paid to date", formatAmount(commitment.PaidAmount)},
		{"Retention held", formatAmount(commitment.RetentionAmount)},
	}
	for _, pair := range financials {
		pdf.CellFormat(90, 6, pair[0], "1", 0, "L", false, 0, "")
		pdf.CellFormat(60, 6, pair[1], "1", 1, "R", false, 0, "")
	}

	if commitment.IsOverCommitted() {
		pdf.Ln(2)
		pdf.SetTextColor(200, 0, 0)
		pdf.MultiCell(0, 6, "Warning: invoiced amount exceeds the committed amount.", "", "L", false)
		pdf.SetTextColor(0, 0, 0)
	}

	if len(doc.Items) > 0 {
		pdf.Ln(4)
		pdf.SetFont(g.fontName, "B", 12)
		pdf.CellFormat(0, 8, "Contract lines", "", 1, "L", false, 0, "")

		headers := []string{"Description", "Qty", "Unit price", "Tax %", "Amount"}
		colWidths := []float64{80, 20, 30, 20, 30}
		drawTableRow(pdf, g.fontName, headers, colWidths, true)
		for _, item := range doc.Items {
			row := []string{
				item.Description,
				item.Quantity.String(),
				formatAmount(item.UnitPrice),
				item.TaxRate.StringFixed(1),
				formatAmount(item.Amount()),
			}
			drawTableRow(pdf, g.fontName, row, colWidths, false)
		}
	}

	if len(doc.Revisions) > 0 {
		pdf.Ln(4)
		pdf.SetFont(g.fontName, "B", 12)
		pdf.CellFormat(0, 8, "Revision history", "", 1, "L", false, 0, "")

		headers := []string{"Rev", "Previous", "New", "Change %", "Reason"}
		colWidths := []float64{15, 30, 30, 25, 80}
		drawTableRow(pdf, g.fontName, headers, colWidths, true)
		for _, revision := range doc.Revisions {
			row := []string{
				fmt.Sprintf("%d", revision.RevisionNumber),
				formatAmount(revision.PreviousAmount),
				formatAmount(revision.NewAmount),
				revision.ChangePercentage.StringFixed(1),
				revision.Reason,
			}
			drawTableRow(pdf, g.fontName, row, colWidths, false)
		}
	}

	if len(doc.Allocations) > 0 {
		pdf.Ln(4)
		pdf.SetFont(g.fontName, "B", 12)
		pdf.CellFormat(0, 8, "Work package allocations", "", 1, "L", false, 0, "")
		pdf.SetFont(g.fontName, "", 10)
		for _, allocation := range doc.Allocations {
			pdf.CellFormat(0, 6, fmt.Sprintf("%s: %s", allocation.WBSElementID.String(), formatAmount(allocation.Amount)), "", 1, "L", false, 0, "")
		}
		pdf.CellFormat(0, 6, fmt.Sprintf("Allocated total: %s of committed %s",
			formatAmount(model.AllocationsTotal(doc.Allocations)),
			formatAmount(commitment.CommittedAmount),
		), "", 1, "L", false, 0, "")
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func pricingLabel(commitment model.Commitment) string {
	switch {
	case commitment.IsFixedPrice:
		return "Fixed price"
	case commitment.IsTimeAndMaterial:
		return "Time and material"
	default:
		return "Unspecified"
	}
}

func drawTableRow(pdf *gofpdf.Fpdf, fontName string, cols []string, widths []float64, header bool) {
	style := ""
	if header {
		style = "B"
	}
	pdf.SetFont(fontName, style, 10)
	for i, col := range cols {
		align := "L"
		if i > 0 && i < len(cols)-1 {
			align = "R"
		}
		pdf.CellFormat(widths[i], 8, col, "1", 0, align, false, 0, "")
	}
	pdf.Ln(-1)
}

func safeValue(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return value
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02")
}

func formatAmount(value decimal.Decimal) string {
	return value.StringFixed(2)
}
