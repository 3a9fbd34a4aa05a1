package excel

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/openpmo/costcontrol/internal/model"
)

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

func (g *Generator) Generate(report model.PerformanceReport) ([]byte, error) {
	file := excelize.NewFile()

	summarySheet := "Summary"
	file.SetSheetName("Sheet1", summarySheet)
	if err := g.writeSummary(file, summarySheet, report); err != nil {
		return nil, err
	}

	usedNames := map[string]struct{}{summarySheet: {}}
	for _, series := range report.Series {
		sheetName := buildSheetName(series.Account.Code, series.Account.ID, usedNames)
		usedNames[sheetName] = struct{}{}

		file.NewSheet(sheetName)
		if err := g.writeAccountSeries(file, sheetName, series); err != nil {
			return nil, err
		}
	}

	file.SetActiveSheet(0)
	buf, err := file.WriteToBuffer()
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g *Generator) writeSummary(file *excelize.File, sheet string, report model.PerformanceReport) error {
	summary := report.Summary

	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(sheet, cell, value)
	}

	set("A1", "Project")
	set("B1", summary.ProjectID.String())
	set("A2", "Data date")
	set("B2", formatDate(summary.DataDate))
	set("A3", "Planned value (PV)")
	set("B3", formatAmount(summary.PV))
	set("A4", "Earned value (EV)")
	set("B4", formatAmount(summary.EV))
	set("A5", "Actual cost (AC)")
	set("B5", formatAmount(summary.AC))
	set("A6", "Budget at completion (BAC)")
	set("B6", formatAmount(summary.BAC))
	set("A7", "Cost performance index (CPI)")
	set("B7", formatIndex(summary.CPI))
	set("A8", "Schedule performance index (SPI)")
	set("B8", formatIndex(summary.SPI))
	set("A9", "Estimate at completion (EAC)")
	set("B9", formatAmount(summary.EAC))
	set("A10", "Estimate to complete (ETC)")
	set("B10", formatAmount(summary.ETC))
	set("A11", "Variance at completion (VAC)")
	set("B11", formatAmount(summary.VAC))

	tableRow := 13
	headers := []string{"Control account", "PV", "EV", "AC", "BAC", "CPI", "SPI", "EAC"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, tableRow)
		set(cell, header)
	}

	accountCodes := map[uuid.UUID]string{}
	for _, series := range report.Series {
		accountCodes[series.Account.ID] = series.Account.Code
	}
	for i, record := range summary.Accounts {
		row := tableRow + 1 + i
		code := accountCodes[record.ControlAccountID]
		if code == "" {
			code = record.ControlAccountID.String()
		}
		set(fmt.Sprintf("A%d", row), code)
		set(fmt.Sprintf("B%d", row), formatAmount(record.PV))
		set(fmt.Sprintf("C%d", row), formatAmount(record.EV))
		set(fmt.Sprintf("D%d", row), formatAmount(record.AC))
		set(fmt.Sprintf("E%d", row), formatAmount(record.BAC))
		set(fmt.Sprintf("F%d", row), formatIndex(record.CPI))
		set(fmt.Sprintf("G%d", row), formatIndex(record.SPI))
		set(fmt.Sprintf("H%d", row), formatAmount(record.EAC))
	}

	_ = file.SetColWidth(sheet, "A", "A", 38)
	_ = file.SetColWidth(sheet, "B", "H", 16)
	return nil
}

func (g *Generator) writeAccountSeries(file *excelize.File, sheet string, series model.AccountSeries) error {
	account := series.Account

	set := func(cell string, value interface{}) {
		_ = file.SetCellValue(sheet, cell, value)
	}

	set("A1", "Control account")
	set("B1", account.Code)
	set("A2", "Name")
	set("B2", account.Name)
	set("A3", "Measurement method")
	set("B3", string(account.Method))
	set("A4", "Status")
	set("B4", string(account.Status))
	set("A5", "BAC")
	set("B5", formatAmount(account.BAC))
	set("A6", "Percent complete")
	set("B6", formatAmount(account.PercentComplete))

	tableRow := 8
	headers := []string{"Data date", "PV", "EV", "AC", "CPI", "SPI", "EAC", "ETC", "VAC"}
	for i, header := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, tableRow)
		set(cell, header)
	}

	for i, record := range series.Records {
		row := tableRow + 1 + i
		set(fmt.Sprintf("A%d", row), formatDate(record.DataDate))
		set(fmt.Sprintf("B%d", row), formatAmount(record.PV))
		set(fmt.Sprintf("C%d", row), formatAmount(record.EV))
		set(fmt.Sprintf("D%d", row), formatAmount(record.AC))
		set(fmt.Sprintf("E%d", row), formatIndex(record.CPI))
		set(fmt.Sprintf("F%d", row), formatIndex(record.SPI))
		set(fmt.Sprintf("G%d", row), formatAmount(record.EAC))
		set(fmt.Sprintf("H%d", row), formatAmount(record.ETC))
		set(fmt.Sprintf("I%d", row), formatAmount(record.VAC))
	}

	_ = file.SetColWidth(sheet, "A", "A", 14)
	_ = file.SetColWidth(sheet, "B", "I", 14)
	return nil
}

func buildSheetName(code string, id uuid.UUID, used map[string]struct{}) string {
	base := strings.TrimSpace(code)
	if base == "" {
		base = id.String()
	}
	base = sanitizeSheetName(base)

	if len(base) > 31 {
		base = base[:31]
	}

	nameCandidate := base
	counter := 2
	for {
		if _, exists := used[nameCandidate]; !exists {
			return nameCandidate
		}
		suffix := fmt.Sprintf("-%d", counter)
		trimmed := base
		if len(trimmed)+len(suffix) > 31 {
			trimmed = trimmed[:31-len(suffix)]
		}
		nameCandidate = trimmed + suffix
		counter++
	}
}

func sanitizeSheetName(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "Sheet"
	}

	replacer := strings.NewReplacer(
		"[", "-",
		"]", "-",
		":", "-",
		"*", "-",
		"?", "-",
		"/", "-",
		"\\", "-",
	)
	value = replacer.Replace(value)
	value = strings.TrimSpace(value)
	if value == "" {
		return "Sheet"
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

func formatIndex(value *decimal.Decimal) string {
	if value == nil {
		return "n/a"
	}
	return value.StringFixed(3)
}
