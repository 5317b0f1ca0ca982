// Package export writes permission lists as xlsx workbooks.
package export

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"github.com/diewo77/rbac-console/i18n"
	"github.com/diewo77/rbac-console/internal/models"
)

// ContentType is the media type of the generated workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// SheetName is the only sheet of a permissions export.
const SheetName = "Permissions"

var permissionColumns = []struct {
	code  string
	width float64
}{
	{"col.no", 8},
	{"col.id", 10},
	{"col.name", 32},
	{"col.resource", 18},
	{"col.action", 14},
}

// Permissions renders perms in the given order with headers in lang.
func Permissions(lang string, perms []models.Permission) ([]byte, error) {
	f := excelize.NewFile()
	// WriteTo needs the file open; every return path closes it.
	fail := func(format string, err error) ([]byte, error) {
		_ = f.Close()
		return nil, fmt.Errorf(format, err)
	}

	index, err := f.NewSheet(SheetName)
	if err != nil {
		return fail("export: create sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fail("export: delete default sheet: %w", err)
	}
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		return fail("export: header style: %w", err)
	}

	for i, c := range permissionColumns {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return fail("export: header cell: %w", err)
		}
		if err := f.SetCellValue(SheetName, cell, i18n.T(lang, c.code)); err != nil {
			return fail("export: header value: %w", err)
		}
		if err := f.SetCellStyle(SheetName, cell, cell, headerStyle); err != nil {
			return fail("export: header style: %w", err)
		}
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return fail("export: column name: %w", err)
		}
		if err := f.SetColWidth(SheetName, col, col, c.width); err != nil {
			return fail("export: column width: %w", err)
		}
	}

	for i, p := range perms {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return fail("export: row cell: %w", err)
		}
		row := []any{i + 1, p.ID, p.DisplayName(), p.Resource, p.Action}
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fail("export: row: %w", err)
		}
	}

	if err := f.SetPanes(SheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fail("export: freeze header: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		return fail("export: write: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("export: close: %w", err)
	}
	return buf.Bytes(), nil
}

// Filename is the download name of an export.
func Filename() string { return "permissions.xlsx" }
