// Package spreadsheet reads uploaded score workbooks and writes the blank
// template teachers fill in. Both use excelize.
package spreadsheet

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/schoolpulse/assessment-hub/internal/domain/upload"
)

// ══════════════════════════════════════════════════════════════════════════════
// READER
// ══════════════════════════════════════════════════════════════════════════════

// Reader turns the first sheet of an .xlsx workbook into raw rows.
type Reader struct{}

// NewReader creates a Reader.
func NewReader() *Reader {
	return &Reader{}
}

// ReadRows reads the header row and every non-blank data row below it.
// Cells are returned as their raw text; dates keep their serial number so
// the row validator decides how to interpret them. Problems with the file
// itself come back as *upload.FileFormatError.
func (r *Reader) ReadRows(ctx context.Context, rd io.Reader) ([]upload.RawRow, error) {
	f, err := excelize.OpenReader(rd)
	if err != nil {
		return nil, upload.NewFileFormatError("workbook could not be opened", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, upload.NewFileFormatError("workbook has no sheets", nil)
	}

	rows, err := f.Rows(sheets[0])
	if err != nil {
		return nil, upload.NewFileFormatError("sheet could not be read", err)
	}
	defer rows.Close()

	var (
		header  map[int]string
		out     []upload.RawRow
		rowNum  int
		options = excelize.Options{RawCellValue: true}
	)

	for rows.Next() {
		rowNum++
		if rowNum%500 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		cells, err := rows.Columns(options)
		if err != nil {
			return nil, upload.NewFileFormatError(fmt.Sprintf("row %d could not be read", rowNum), err)
		}

		if header == nil {
			header, err = mapHeader(cells)
			if err != nil {
				return nil, err
			}
			continue
		}

		fields := make(map[string]any, len(header))
		for i, cell := range cells {
			col, ok := header[i]
			if !ok || strings.TrimSpace(cell) == "" {
				continue
			}
			fields[col] = cell
		}
		if len(fields) == 0 {
			continue
		}
		out = append(out, upload.RawRow{Number: rowNum, Fields: fields})
	}
	if err := rows.Error(); err != nil {
		return nil, upload.NewFileFormatError("sheet could not be read", err)
	}

	if header == nil {
		return nil, upload.NewFileFormatError("sheet has no header row", nil)
	}
	return out, nil
}

// mapHeader maps cell positions to canonical column names. Unknown columns
// are ignored; a missing required column is fatal.
func mapHeader(cells []string) (map[int]string, error) {
	canonical := make(map[string]string, len(upload.Columns))
	for _, c := range upload.Columns {
		canonical[normalizeHeader(c)] = c
	}

	header := make(map[int]string)
	seen := make(map[string]bool)
	for i, cell := range cells {
		col, ok := canonical[normalizeHeader(cell)]
		if !ok || seen[col] {
			continue
		}
		header[i] = col
		seen[col] = true
	}

	var missing []string
	for _, c := range upload.RequiredColumns {
		if !seen[c] {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, upload.NewFileFormatError("missing required column(s) "+strings.Join(missing, ", "), nil)
	}
	return header, nil
}

// normalizeHeader ignores case, spaces, underscores and hyphens.
func normalizeHeader(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '_', '-', '\t':
			return -1
		}
		return r
	}, strings.ToLower(strings.TrimSpace(s)))
}
