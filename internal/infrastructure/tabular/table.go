package tabular

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"

	importing "github.com/mohammadpnp/school-import/internal/domain/importing"
)

// suspiciousCellLength is the length from which a cell is checked for bytes
// of a mis-read binary container.
const suspiciousCellLength = 64

var containerMarkers = []string{
	"PK\x03\x04",
	"[Content_Types]",
	"xl/worksheets",
	"xl/sharedStrings",
	"docProps",
	"\xd0\xcf\x11\xe0",
}

// tableBuilder collects decoded rows, enforcing the row ceiling and the
// caller's deadline.
type tableBuilder struct {
	ctx       context.Context
	maxRows   int
	scanned   int
	hasHeader bool
	table     importing.Table
}

func newTableBuilder(ctx context.Context, maxRows int) *tableBuilder {
	return &tableBuilder{ctx: ctx, maxRows: maxRows}
}

// add takes the next physical row. number is the 1-based source row.
func (b *tableBuilder) add(number int, cells []string) error {
	b.scanned++
	if b.scanned%ctxCheckInterval == 0 {
		if err := b.ctx.Err(); err != nil {
			return importing.NewError(importing.ErrParseFailure, "parsing stopped after %d rows", b.scanned).WithCause(err)
		}
	}

	if !b.hasHeader {
		b.hasHeader = true
		headers := make([]string, len(cells))
		blank := true
		for i, cell := range cells {
			if v := sanitizeCell(cell); v != nil {
				headers[i] = *v
				blank = false
			}
		}
		if blank {
			return importing.NewError(importing.ErrNoHeaders, "the first row must contain column headers")
		}
		b.table.Headers = trimTrailingBlank(headers)
		return nil
	}

	row := importing.RawRow{Number: number, Cells: make([]*string, len(cells))}
	blank := true
	for i, cell := range cells {
		row.Cells[i] = sanitizeCell(cell)
		if row.Cells[i] != nil {
			blank = false
		}
	}
	if blank {
		return nil
	}
	if len(b.table.Rows) >= b.maxRows {
		return importing.NewError(importing.ErrParseFailure, "the file has more than %d data rows; split it into smaller uploads", b.maxRows)
	}
	b.table.Rows = append(b.table.Rows, row)
	return nil
}

func (b *tableBuilder) finish() (importing.Table, error) {
	if !b.hasHeader {
		return importing.Table{}, importing.NewError(importing.ErrNoHeaders, "the file has no header row")
	}
	if len(b.table.Rows) == 0 {
		return importing.Table{}, importing.NewError(importing.ErrNoDataRows, "the file has headers but no data rows")
	}
	return b.table, nil
}

// sanitizeCell returns nil for blank cells and for long cells that look like
// raw bytes of a binary container.
func sanitizeCell(cell string) *string {
	if strings.TrimSpace(cell) == "" {
		return nil
	}
	if len(cell) >= suspiciousCellLength && looksBinary(cell) {
		return nil
	}
	return &cell
}

func looksBinary(cell string) bool {
	for _, marker := range containerMarkers {
		if strings.Contains(cell, marker) {
			return true
		}
	}
	if !utf8.ValidString(cell) {
		return true
	}
	for _, r := range cell {
		if r == utf8.RuneError || (unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t') {
			return true
		}
	}
	return false
}

// trimTrailingBlank drops blank header slots after the last named column.
// Blank slots between named columns keep their position.
func trimTrailingBlank(headers []string) []string {
	end := len(headers)
	for end > 0 && headers[end-1] == "" {
		end--
	}
	return headers[:end]
}
