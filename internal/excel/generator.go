package excel

import (
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/nurpe/marketplace-settlement/internal/ledger"
	"github.com/nurpe/marketplace-settlement/internal/model"
)

const (
	summarySheet = "Summary"
	rankingSheet = "Ranking"
)

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

// Generate renders the best clients report as a workbook with a summary sheet and
// a ranking sheet.
func (g *Generator) Generate(report model.BestClientsReport) ([]byte, error) {
	file := excelize.NewFile()
	defer file.Close()

	if err := file.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if err := g.writeSummary(file, summarySheet, report); err != nil {
		return nil, err
	}

	if _, err := file.NewSheet(rankingSheet); err != nil {
		return nil, err
	}
	if err := g.writeRanking(file, rankingSheet, report); err != nil {
		return nil, err
	}

	file.SetActiveSheet(0)
	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g *Generator) writeSummary(file *excelize.File, sheet string, report model.BestClientsReport) error {
	total := 0.0
	for _, client := range report.Clients {
		total += amount(client)
	}

	rows := [][]interface{}{
		{"Report", "Best clients"},
		{"Period start", formatDateTime(report.PeriodStart)},
		{"Period end", formatDateTime(report.PeriodEnd)},
		{"Limit", report.Limit},
		{"Clients listed", len(report.Clients)},
		{"Total paid", total},
		{"Generated at", formatDateTime(report.GeneratedAt)},
	}
	for i, row := range rows {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := file.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}

	_ = file.SetColWidth(sheet, "A", "A", 20)
	_ = file.SetColWidth(sheet, "B", "B", 24)
	return nil
}

func (g *Generator) writeRanking(file *excelize.File, sheet string, report model.BestClientsReport) error {
	headers := []interface{}{"Rank", "Profile ID", "Full name", "Total paid"}
	if err := file.SetSheetRow(sheet, "A1", &headers); err != nil {
		return err
	}

	for i, client := range report.Clients {
		row := []interface{}{i + 1, client.ID, client.FullName(), amount(client)}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		if err := file.SetSheetRow(sheet, cell, &row); err != nil {
			return err
		}
	}

	if len(report.Clients) > 0 {
		if err := file.AutoFilter(sheet, fmt.Sprintf("A1:D%d", len(report.Clients)+1), nil); err != nil {
			return err
		}
	}

	_ = file.SetColWidth(sheet, "A", "B", 12)
	_ = file.SetColWidth(sheet, "C", "C", 36)
	_ = file.SetColWidth(sheet, "D", "D", 16)
	return nil
}

func amount(client model.ClientPayments) float64 {
	value, _ := client.TotalPaid.Round(ledger.MoneyScale).Float64()
	return value
}

func formatDateTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
