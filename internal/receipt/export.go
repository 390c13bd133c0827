package receipt

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
)

const visitSheet = "Visits"

var visitHeaders = []string{
	"Visit Date",
	"Cafe",
	"Menu Items",
	"Total (KRW)",
	"Location",
	"Rating",
	"Comment",
	"Latitude",
	"Longitude",
}

// ExportVisitsXLSX returns an XLSX workbook with one row per visit, newest first
func (s *Service) ExportVisitsXLSX() ([]byte, error) {
	start := time.Now()

	visits, err := s.db.ListVisits()
	if err != nil {
		return nil, fmt.Errorf("listing visits: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", visitSheet); err != nil {
		return nil, fmt.Errorf("naming sheet: %w", err)
	}

	for i, h := range visitHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(visitSheet, cell, h); err != nil {
			return nil, fmt.Errorf("writing header: %w", err)
		}
	}

	wrap, err := f.NewStyle(&excelize.Style{Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"}})
	if err != nil {
		return nil, fmt.Errorf("creating style: %w", err)
	}

	for i, v := range visits {
		row := i + 2
		values := []any{
			v.VisitDate.Format("2006-01-02 15:04"),
			v.CafeName,
			v.MenuItems,
			v.TotalPrice,
			v.Location,
			v.Rating,
			v.Comment,
			v.Latitude,
			v.Longitude,
		}
		for col, val := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			if err := f.SetCellValue(visitSheet, cell, val); err != nil {
				return nil, fmt.Errorf("writing visit %s: %w", v.ID, err)
			}
		}
		menuCell, _ := excelize.CoordinatesToCellName(3, row)
		_ = f.SetCellStyle(visitSheet, menuCell, menuCell, wrap)
	}

	_ = f.SetColWidth(visitSheet, "A", "A", 17)
	_ = f.SetColWidth(visitSheet, "B", "B", 22)
	_ = f.SetColWidth(visitSheet, "C", "C", 36)
	_ = f.SetColWidth(visitSheet, "D", "D", 12)
	_ = f.SetColWidth(visitSheet, "E", "E", 26)
	_ = f.SetColWidth(visitSheet, "G", "G", 40)

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return nil, fmt.Errorf("writing workbook: %w", err)
	}

	s.logger.Debug("Visits exported", "rows", len(visits), "duration_ms", time.Since(start).Milliseconds())
	return buf.Bytes(), nil
}
