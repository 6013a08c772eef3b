package spreadsheet

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/schoolpulse/assessment-hub/internal/domain/assessment"
	"github.com/schoolpulse/assessment-hub/internal/domain/upload"
)

// ══════════════════════════════════════════════════════════════════════════════
// WRITER
// ══════════════════════════════════════════════════════════════════════════════

// SheetName is the name of the sheet the template and Build write to.
const SheetName = "Scores"

// templateRows is how far down the template's validations reach.
const templateRows = 5000

// TemplateContentType is the MIME type of .xlsx files.
const TemplateContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// WriteTemplate writes an empty workbook with the header row, a frozen
// header and drop-down validations for Subject and Score.
func WriteTemplate(w io.Writer) error {
	return Build(w, upload.Columns, nil)
}

// Build writes a workbook with header and rows to w. Row values may be any
// type excelize accepts (string, numbers, time.Time).
func Build(w io.Writer, header []string, rows [][]any) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetName); err != nil {
		return fmt.Errorf("spreadsheet: rename sheet: %w", err)
	}

	hdr := make([]any, len(header))
	for i, h := range header {
		hdr[i] = h
	}
	if err := f.SetSheetRow(SheetName, "A1", &hdr); err != nil {
		return fmt.Errorf("spreadsheet: header: %w", err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := row
		if err := f.SetSheetRow(SheetName, cell, &values); err != nil {
			return fmt.Errorf("spreadsheet: row %d: %w", i+2, err)
		}
	}

	if err := decorate(f, header); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("spreadsheet: write: %w", err)
	}
	return nil
}

// decorate styles the header and adds input validations for known columns.
func decorate(f *excelize.File, header []string) error {
	if len(header) == 0 {
		return nil
	}

	bold, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"DDEBF7"}},
	})
	if err != nil {
		return fmt.Errorf("spreadsheet: style: %w", err)
	}
	if err := f.SetRowStyle(SheetName, 1, 1, bold); err != nil {
		return fmt.Errorf("spreadsheet: style: %w", err)
	}

	last, err := excelize.ColumnNumberToName(len(header))
	if err != nil {
		return err
	}
	if err := f.SetColWidth(SheetName, "A", last, 18); err != nil {
		return err
	}

	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("spreadsheet: panes: %w", err)
	}

	for i, h := range header {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return err
		}
		sqref := fmt.Sprintf("%s2:%s%d", col, col, templateRows+1)

		var dv *excelize.DataValidation
		switch h {
		case upload.ColumnSubject:
			dv = excelize.NewDataValidation(true)
			labels := make([]string, 0, len(assessment.Subjects))
			for _, s := range assessment.Subjects {
				labels = append(labels, s.Label())
			}
			if err := dv.SetDropList(labels); err != nil {
				return err
			}
		case upload.ColumnScore:
			dv = excelize.NewDataValidation(true)
			if err := dv.SetRange(assessment.MinScore, assessment.MaxScore,
				excelize.DataValidationTypeDecimal, excelize.DataValidationOperatorBetween); err != nil {
				return err
			}
			dv.SetError(excelize.DataValidationErrorStyleStop, "Score", "Score must be between 0 and 100")
		default:
			continue
		}
		dv.Sqref = sqref
		if err := f.AddDataValidation(SheetName, dv); err != nil {
			return fmt.Errorf("spreadsheet: validation for %s: %w", h, err)
		}
	}
	return nil
}
