// Package export renders sanitization history as spreadsheet and PDF reports.
package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/xuri/excelize/v2"

	"sanitization-status-backend/internal/engine"
)

const timestampLayout = "2006-01-02 15:04"

// Report is the input to both renderers. Records are written in the given order.
type Report struct {
	Title       string
	GeneratedAt time.Time
	Records     []engine.SanitizationRecord
	Stations    map[string]engine.Station
}

type row struct {
	timestamp   string
	station     string
	department  string
	status      string
	performedBy string
	verifiedBy  string
	notes       string
}

func (r Report) rows() []row {
	out := make([]row, 0, len(r.Records))
	for _, rec := range r.Records {
		name, dept := rec.StationID, ""
		if s, ok := r.Stations[rec.StationID]; ok {
			name, dept = s.Name, s.Department
		}
		out = append(out, row{
			timestamp:   rec.Timestamp.Format(timestampLayout),
			station:     name,
			department:  dept,
			status:      rec.Status.Label(),
			performedBy: rec.PerformedBy,
			verifiedBy:  rec.VerifiedBy,
			notes:       rec.Notes,
		})
	}
	return out
}

func (r Report) title() string {
	if r.Title == "" {
		return "Sanitization History"
	}
	return r.Title
}

var headers = []string{"Timestamp", "Station", "Department", "Status", "Performed By", "Verified By", "Notes"}

// BuildHistoryXLSX renders the report as a workbook with a summary and a records sheet.
func BuildHistoryXLSX(r Report) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	summarySheet := "summary"
	recordsSheet := "records"
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if _, err := f.NewSheet(recordsSheet); err != nil {
		return nil, err
	}

	counts := make(map[engine.Status]int)
	for _, rec := range r.Records {
		counts[rec.Status]++
	}
	_ = f.SetCellValue(summarySheet, "A1", r.title())
	_ = f.SetCellValue(summarySheet, "A3", "Generated")
	_ = f.SetCellValue(summarySheet, "B3", r.GeneratedAt.Format(timestampLayout))
	_ = f.SetCellValue(summarySheet, "A4", "Records")
	_ = f.SetCellValue(summarySheet, "B4", len(r.Records))
	for i, status := range engine.Statuses {
		line := i + 5
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("A%d", line), status.Label())
		_ = f.SetCellValue(summarySheet, fmt.Sprintf("B%d", line), counts[status])
	}

	for i, h := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return nil, err
		}
		_ = f.SetCellValue(recordsSheet, cell, h)
	}
	for i, rw := range r.rows() {
		line := i + 2
		values := []string{rw.timestamp, rw.station, rw.department, rw.status, rw.performedBy, rw.verifiedBy, rw.notes}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, line)
			if err != nil {
				return nil, err
			}
			_ = f.SetCellValue(recordsSheet, cell, v)
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// column widths in mm for the landscape A4 table
var pdfWidths = []float64{32, 40, 34, 30, 34, 30, 77}

// BuildHistoryPDF renders the report as a landscape table.
func BuildHistoryPDF(r Report) ([]byte, error) {
	pdf := gofpdf.New("L", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	pdf.AddPage()

	pdf.Cell(0, 8, r.title())
	pdf.Ln(10)
	pdf.SetFont("Arial", "", 10)
	pdf.Cell(0, 6, fmt.Sprintf("Generated: %s", r.GeneratedAt.Format(time.RFC3339)))
	pdf.Ln(5)
	pdf.Cell(0, 6, fmt.Sprintf("Records: %d", len(r.Records)))
	pdf.Ln(8)

	header := func() {
		pdf.SetFont("Arial", "B", 9)
		for i, h := range headers {
			pdf.CellFormat(pdfWidths[i], 6, h, "1", 0, "C", false, 0, "")
		}
		pdf.Ln(-1)
		pdf.SetFont("Arial", "", 9)
	}
	header()

	tr := pdf.UnicodeTranslatorFromDescriptor("")
	_, pageHeight := pdf.GetPageSize()
	_, _, _, bottom := pdf.GetMargins()
	for _, rw := range r.rows() {
		if pdf.GetY()+6 > pageHeight-bottom {
			pdf.AddPage()
			header()
		}
		values := []string{rw.timestamp, rw.station, rw.department, rw.status, rw.performedBy, rw.verifiedBy, rw.notes}
		for i, v := range values {
			pdf.CellFormat(pdfWidths[i], 6, tr(fit(pdf, v, pdfWidths[i])), "1", 0, "L", false, 0, "")
		}
		pdf.Ln(-1)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// fit truncates s with an ellipsis so it fits in width mm.
func fit(pdf *gofpdf.Fpdf, s string, width float64) string {
	limit := width - 2
	if pdf.GetStringWidth(s) <= limit {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 && pdf.GetStringWidth(string(runes)+"...") > limit {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "..."
}
