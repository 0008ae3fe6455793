package pipeline

import (
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"rpanamer/internal"
	"rpanamer/internal/util"
)

var exportHeaders = []string{
	"position", "original_name", "synthesized_name", "status",
	"rpa", "name", "value", "value_amount", "cpf",
	"ocr_method", "ocr_confidence", "ocr_failure",
}

func ExportRecordsToXLSX(rows []internal.RecordExportRow, outputPath string) error {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)

	for i, h := range exportHeaders {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}

	for i, row := range rows {
		r := i + 2
		set := func(col int, value any) {
			cell, _ := excelize.CoordinatesToCellName(col, r)
			_ = f.SetCellValue(sheet, cell, value)
		}

		set(1, row.Position+1)
		set(2, row.OriginalName)
		set(3, row.SynthesizedName)
		set(4, row.Status)
		set(5, util.Deref(row.Code))
		set(6, util.Deref(row.Name))
		set(7, util.Deref(row.Value))
		set(8, derefFloat(row.ValueAmount))
		set(9, util.Deref(row.IDNumber))
		set(10, util.Deref(row.OCRMethod))
		set(11, derefFloat(row.OCRConfidence))
		set(12, util.Deref(row.OCRFailure))
	}

	if err := f.AutoFilter(sheet, "A1:L1", nil); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	return f.SaveAs(outputPath)
}

// RecordsToExportRows converts in-memory records without a database round trip.
func RecordsToExportRows(records []internal.FileRecord) []internal.RecordExportRow {
	out := make([]internal.RecordExportRow, 0, len(records))
	for _, r := range records {
		row := internal.RecordExportRow{
			Position:        r.Position,
			OriginalName:    r.OriginalName,
			SynthesizedName: r.SynthesizedName,
			Status:          string(r.Status),
		}
		if r.Fields != nil {
			row.Code = util.StringPtr(r.Fields.Code)
			row.Name = util.StringPtr(r.Fields.Name)
			row.Value = util.StringPtr(r.Fields.Value)
			row.IDNumber = util.StringPtr(r.Fields.ID)
			if v, ok := util.ParseAmount(r.Fields.Value); ok {
				row.ValueAmount = util.FloatPtr(v)
			}
		}
		if r.OCR != nil {
			if r.OCR.Method != "" {
				row.OCRMethod = util.StringPtr(r.OCR.Method)
			}
			if r.OCR.Failure != "" {
				row.OCRFailure = util.StringPtr(r.OCR.Failure)
			} else {
				row.OCRConfidence = util.FloatPtr(r.OCR.Confidence)
			}
		}
		out = append(out, row)
	}
	return out
}

func derefFloat(v *float64) any {
	if v == nil {
		return ""
	}
	return *v
}
