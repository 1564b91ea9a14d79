package tabular

import (
	"fmt"

	"github.com/extrame/xls"

	importing "github.com/mohammadpnp/school-import/internal/domain/importing"
)

// decodeXLS reads the first sheet of a BIFF workbook. The xls reader panics
// on some malformed files, so panics become parse failures.
func decodeXLS(path string, b *tableBuilder) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = importing.NewError(importing.ErrParseFailure, "could not read the legacy Excel workbook").
				WithCause(fmt.Errorf("xls: %v", r))
		}
	}()

	book, err := xls.Open(path, "utf-8")
	if err != nil {
		return importing.NewError(importing.ErrParseFailure, "could not open the legacy Excel workbook").WithCause(err)
	}
	if book.NumSheets() == 0 {
		return importing.NewError(importing.ErrNoHeaders, "the workbook has no worksheets")
	}
	sheet := book.GetSheet(0)
	if sheet == nil {
		return importing.NewError(importing.ErrNoHeaders, "the workbook has no worksheets")
	}

	for i := 0; i <= int(sheet.MaxRow); i++ {
		var cells []string
		if row := sheet.Row(i); row != nil {
			cells = make([]string, row.LastCol())
			for col := row.FirstCol(); col < row.LastCol(); col++ {
				cells[col] = row.Col(col)
			}
		}
		if err := b.add(i+1, cells); err != nil {
			return err
		}
	}
	return nil
}
