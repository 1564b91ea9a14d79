package tabular

import (
	"context"
	"fmt"
	"strings"

	"github.com/samber/lo"
	"github.com/xuri/excelize/v2"

	importing "github.com/mohammadpnp/school-import/internal/domain/importing"
)

const instructionsSheet = "Instructions"

// TemplateWriter renders the downloadable import workbook for a schema.
type TemplateWriter struct{}

func NewTemplateWriter() *TemplateWriter {
	return &TemplateWriter{}
}

// Template returns an xlsx with the canonical headers, one example row and
// an instructions sheet describing every column.
func (w *TemplateWriter) Template(ctx context.Context, schema importing.Schema) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := dataSheetName(schema.Entity)
	if err := f.SetSheetName("Sheet1", sheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	fields := schema.TemplateFields()
	headers := make([]any, len(fields))
	example := make([]any, len(fields))
	for i, fs := range fields {
		headers[i] = string(fs.Field)
		example[i] = fs.Example
	}
	if err := f.SetSheetRow(sheet, "A1", &headers); err != nil {
		return nil, fmt.Errorf("write headers: %w", err)
	}
	if err := f.SetSheetRow(sheet, "A2", &example); err != nil {
		return nil, fmt.Errorf("write example row: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
	})
	if err != nil {
		return nil, fmt.Errorf("header style: %w", err)
	}
	lastCell, err := excelize.CoordinatesToCellName(len(fields), 1)
	if err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(sheet, "A1", lastCell, headerStyle); err != nil {
		return nil, fmt.Errorf("apply header style: %w", err)
	}
	lastCol, err := excelize.ColumnNumberToName(len(fields))
	if err != nil {
		return nil, err
	}
	if err := f.SetColWidth(sheet, "A", lastCol, 22); err != nil {
		return nil, fmt.Errorf("column width: %w", err)
	}

	if err := writeInstructions(f, fields, headerStyle); err != nil {
		return nil, err
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("render template: %w", err)
	}
	return buf.Bytes(), nil
}

func writeInstructions(f *excelize.File, fields []importing.FieldSpec, headerStyle int) error {
	if _, err := f.NewSheet(instructionsSheet); err != nil {
		return fmt.Errorf("instructions sheet: %w", err)
	}
	if err := f.SetSheetRow(instructionsSheet, "A1", &[]any{"column", "required", "format", "also accepted as"}); err != nil {
		return err
	}
	for i, fs := range fields {
		required := "no"
		if fs.Required {
			required = "yes"
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := []any{string(fs.Field), required, formatHint(fs.Kind), synonymHint(fs)}
		if err := f.SetSheetRow(instructionsSheet, cell, &row); err != nil {
			return err
		}
	}
	if err := f.SetCellStyle(instructionsSheet, "A1", "D1", headerStyle); err != nil {
		return err
	}
	return f.SetColWidth(instructionsSheet, "A", "D", 28)
}

func dataSheetName(entity importing.EntityType) string {
	if entity == importing.EntityTeacher {
		return "Teachers"
	}
	return "Students"
}

func formatHint(kind importing.FieldKind) string {
	switch kind {
	case importing.KindDate:
		return "date: YYYY-MM-DD or DD/MM/YYYY"
	case importing.KindInteger:
		return "whole number"
	default:
		return "text"
	}
}

func synonymHint(fs importing.FieldSpec) string {
	return strings.Join(lo.Without(fs.Synonyms, string(fs.Field)), ", ")
}
