package pdf

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"

	"github.com/nurpe/marketplace-settlement/internal/ledger"
	"github.com/nurpe/marketplace-settlement/internal/model"
)

// Generator renders payment receipts. Only the core PDF fonts are used, so the
// text is limited to Latin-1.
type Generator struct {
	fontName string
}

func NewGenerator() *Generator {
	return &Generator{fontName: "Helvetica"}
}

func (g *Generator) Generate(receipt model.JobReceipt) ([]byte, error) {
	if !receipt.Job.Paid {
		return nil, fmt.Errorf("job %d is not paid", receipt.Job.ID)
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(15, 15, 15)
	pdf.SetTitle(fmt.Sprintf("Payment receipt for job %d", receipt.Job.ID), false)
	pdf.AddPage()
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	pdf.SetFont(g.fontName, "B", 14)
	pdf.CellFormat(0, 10, "Payment receipt", "", 1, "C", false, 0, "")

	pdf.SetFont(g.fontName, "", 11)
	pdf.CellFormat(0, 6, fmt.Sprintf("Job #%d under contract #%d", receipt.Job.ID, receipt.Contract.ID), "", 1, "C", false, 0, "")
	pdf.CellFormat(0, 6, fmt.Sprintf("Paid on %s", formatDate(receipt.Job.PaymentDate)), "", 1, "C", false, 0, "")
	pdf.Ln(4)

	addPartyBlock(pdf, g.fontName, tr, "Client", receipt.Client)
	pdf.Ln(2)
	addPartyBlock(pdf, g.fontName, tr, "Contractor", receipt.Contractor)
	pdf.Ln(4)

	pdf.SetFont(g.fontName, "B", 12)
	pdf.CellFormat(0, 8, "Work", "", 1, "L", false, 0, "")

	headers := []string{"Description", "Contract status", "Amount"}
	colWidths := []float64{100, 40, 40}
	drawTableRow(pdf, g.fontName, headers, colWidths, true)
	drawTableRow(pdf, g.fontName, []string{
		tr(safeValue(receipt.Job.Description)),
		string(receipt.Contract.Status),
		receipt.Job.Price.StringFixed(ledger.MoneyScale),
	}, colWidths, false)

	pdf.Ln(2)
	pdf.SetFont(g.fontName, "B", 11)
	pdf.CellFormat(0, 6, fmt.Sprintf("Total paid: %s", receipt.Job.Price.StringFixed(ledger.MoneyScale)), "", 1, "R", false, 0, "")

	if strings.TrimSpace(receipt.Contract.Terms) != "" {
		pdf.Ln(4)
		pdf.SetFont(g.fontName, "B", 12)
		pdf.CellFormat(0, 8, "Contract terms", "", 1, "L", false, 0, "")
		pdf.SetFont(g.fontName, "", 10)
		pdf.MultiCell(0, 5, tr(receipt.Contract.Terms), "", "L", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func addPartyBlock(pdf *gofpdf.Fpdf, fontName string, tr func(string) string, title string, profile model.Profile) {
	pdf.SetFont(fontName, "B", 11)
	pdf.CellFormat(0, 6, title, "", 1, "L", false, 0, "")
	pdf.SetFont(fontName, "", 10)
	lines := []string{
		tr(safeValue(profile.FullName())),
		fmt.Sprintf("Profile: #%d", profile.ID),
		tr(fmt.Sprintf("Profession: %s", safeValue(profile.Profession))),
	}
	for _, line := range lines {
		pdf.MultiCell(0, 5, line, "", "L", false)
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
		if i == len(cols)-1 {
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

func formatDate(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.UTC().Format("2006-01-02 15:04 UTC")
}
