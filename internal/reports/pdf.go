package reports

import (
	"bytes"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/jung-kurt/gofpdf"

	"resourcehive/internal/models"
)

// RenderPDF lays out a one-page summary of report: header, counters and failures
func RenderPDF(report *models.RunReport) ([]byte, error) {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	margin := 20.0
	pdf.SetMargins(margin, margin, margin)
	pdf.SetAutoPageBreak(true, margin)

	pdf.SetFont("Arial", "B", 16)
	pdf.SetTextColor(33, 37, 41)
	pdf.SetXY(margin, margin)
	pdf.Cell(0, 10, "RESOURCE HIVE RUN REPORT")
	pdf.Ln(15)

	pdf.SetFont("Arial", "", 11)
	pdf.Cell(0, 7, fmt.Sprintf("Procedure: %s", report.Procedure))
	pdf.Ln(7)
	pdf.Cell(0, 7, fmt.Sprintf("Started: %s", report.StartTime.Format(time.RFC3339)))
	pdf.Ln(7)
	finished := "running"
	if report.CompletionTime != nil {
		finished = report.CompletionTime.Format(time.RFC3339)
	}
	pdf.Cell(0, 7, fmt.Sprintf("Finished: %s", finished))
	pdf.Ln(7)
	pdf.Cell(0, 7, fmt.Sprintf("Records processed: %d", report.Processed))
	pdf.Ln(12)

	widths := []float64{120, 40}
	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(240, 240, 240)
	pdf.CellFormat(widths[0], 8, "Counter", "1", 0, "L", true, 0, "")
	pdf.CellFormat(widths[1], 8, "Count", "1", 0, "R", true, 0, "")
	pdf.Ln(8)

	pdf.SetFont("Arial", "", 10)
	for _, name := range slices.Sorted(maps.Keys(report.Counts)) {
		pdf.CellFormat(widths[0], 8, name, "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 8, fmt.Sprintf("%d", report.Counts[name]), "1", 0, "R", false, 0, "")
		pdf.Ln(8)
	}

	if len(report.Errors) > 0 {
		pdf.Ln(6)
		pdf.SetFont("Arial", "B", 11)
		pdf.Cell(0, 8, fmt.Sprintf("Failures (%d)", len(report.Errors)))
		pdf.Ln(8)
		pdf.SetFont("Arial", "", 9)
		for _, e := range report.Errors {
			pdf.MultiCell(0, 5, fmt.Sprintf("%s: %s", e.EntityID, e.Error), "", "L", false)
		}
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
