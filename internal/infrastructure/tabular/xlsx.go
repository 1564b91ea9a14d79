package tabular

import (
	"github.com/xuri/excelize/v2"

	importing "github.com/mohammadpnp/school-import/internal/domain/importing"
)

// decodeXLSX streams the first worksheet. Cells are read raw so date cells
// arrive as serial numbers and keep their column position.
func decodeXLSX(path string, b *tableBuilder) error {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return importing.NewError(importing.ErrParseFailure, "could not open the Excel workbook").WithCause(err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return importing.NewError(importing.ErrNoHeaders, "the workbook has no worksheets")
	}

	rows, err := f.Rows(sheets[0])
	if err != nil {
		return importing.NewError(importing.ErrParseFailure, "could not read worksheet %q", sheets[0]).WithCause(err)
	}
	defer rows.Close()

	for number := 1; rows.Next(); number++ {
		cells, err := rows.Columns(excelize.Options{RawCellValue: true})
		if err != nil {
			return importing.NewError(importing.ErrParseFailure, "could not read row %d", number).WithCause(err)
		}
		if err := b.add(number, cells); err != nil {
			return err
		}
	}
	if err := rows.Error(); err != nil {
		return importing.NewError(importing.ErrParseFailure, "could not read worksheet %q", sheets[0]).WithCause(err)
	}
	return nil
}
