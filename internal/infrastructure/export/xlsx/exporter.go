package xlsx

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/facture-organizer/internal/core/domain"
)

const (
	weekendSheet = "Weekends"
	tripSheet    = "Trips"
	dateFormat   = "yyyy-mm-dd hh:mm:ss"
)

var weekendHeadings = []string{
	"Folder", "Issued", "Issuer RFC", "Issuer", "Receiver", "Tax folio",
	"Currency", "Subtotal", "Transferred taxes", "Withheld taxes", "Total", "Trips billed", "Trips filed",
}

var tripHeadings = []string{
	"Folder", "Code", "Received", "Material", "Supplier", "Plates",
	"Gross kg", "Tare kg", "Net kg", "Accepted kg",
}

// Exporter renders a business archive as a workbook with one sheet of weekend
// invoices and one sheet of the trips filed under them.
type Exporter struct{}

func NewExporter() *Exporter {
	return &Exporter{}
}

func (e *Exporter) Export(business string, entries []domain.ArchiveEntry) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", weekendSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(tripSheet); err != nil {
		return nil, fmt.Errorf("create trip sheet: %w", err)
	}
	dateStyle, err := f.NewStyle(&excelize.Style{CustomNumFmt: stringPtr(dateFormat)})
	if err != nil {
		return nil, fmt.Errorf("create date style: %w", err)
	}
	if err := writeRow(f, weekendSheet, 1, headingValues(weekendHeadings)); err != nil {
		return nil, err
	}
	if err := writeRow(f, tripSheet, 1, headingValues(tripHeadings)); err != nil {
		return nil, err
	}

	weekendRow, tripRow := 2, 2
	for _, entry := range entries {
		w := entry.Weekend
		billed := 0
		for _, concept := range w.Concepts {
			billed += concept.Trips
		}
		values := []any{
			entry.Folder, cellTime(w.IssuedAt), w.IssuerRFC, w.IssuerName, w.ReceiverName, w.TaxFolio,
			w.Currency, w.Subtotal.InexactFloat64(), w.TransferredTaxes.InexactFloat64(),
			w.WithheldTaxes.InexactFloat64(), w.Total.InexactFloat64(), billed, len(entry.Trips),
		}
		if err := writeRow(f, weekendSheet, weekendRow, values); err != nil {
			return nil, err
		}
		if err := setCellStyle(f, weekendSheet, 2, weekendRow, dateStyle); err != nil {
			return nil, err
		}
		weekendRow++

		for _, trip := range entry.Trips {
			values := []any{
				entry.Folder, trip.Code, cellTime(trip.ReceivedAt), trip.MaterialType, trip.Supplier, trip.Plates,
				trip.GrossWeight, trip.TareWeight, trip.NetWeight, trip.AcceptedWeight,
			}
			if err := writeRow(f, tripSheet, tripRow, values); err != nil {
				return nil, err
			}
			if err := setCellStyle(f, tripSheet, 3, tripRow, dateStyle); err != nil {
				return nil, err
			}
			tripRow++
		}
	}

	if err := f.SetDocProps(&excelize.DocProperties{Title: business, Creator: "facture-organizer"}); err != nil {
		return nil, fmt.Errorf("set document properties: %w", err)
	}
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func writeRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func setCellStyle(f *excelize.File, sheet string, col, row, style int) error {
	cell, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, cell, cell, style)
}

func headingValues(headings []string) []any {
	out := make([]any, len(headings))
	for i, h := range headings {
		out[i] = h
	}
	return out
}

// cellTime leaves missing dates blank instead of writing year one.
func cellTime(ts domain.Timestamp) any {
	if ts.IsZero() {
		return ""
	}
	return ts.Time
}

func stringPtr(s string) *string { return &s }
