package importing

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// RawRow is one decoded data row. Cells are aligned to header positions; a
// nil cell is blank.
type RawRow struct {
	Number int
	Cells  []*string
}

// Table is the decoder output: the header row plus data rows in source order.
type Table struct {
	Headers []string
	Rows    []RawRow
}

// Spreadsheet serial dates count days from 1899-12-31, with the fictitious
// 1900-02-29 at serial 60 inherited from Lotus 1-2-3.
const (
	serialLeapBug = 60
	maxSerialDate = 2958465 // 9999-12-31
)

var (
	serialEpoch        = time.Date(1899, time.December, 31, 0, 0, 0, 0, time.UTC)
	serialEpochPostBug = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)
)

// dateLayouts is tried in order; day-first layouts precede month-first ones
// so that 03/04/2024 reads as 3 April.
var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"2006.01.02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05",
	"20060102",
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2-1-2006",
	"02.01.2006",
	"2.1.2006",
	"01/02/2006",
	"1/2/2006",
	"02 Jan 2006",
	"2 Jan 2006",
	"02 January 2006",
	"2 January 2006",
	"Jan 2, 2006",
	"January 2, 2006",
	"02-Jan-2006",
	"2-Jan-2006",
	"02-Jan-06",
}

// ParseDate accepts ISO-like text, common day/month layouts and spreadsheet
// serial numbers. It returns false when the value is none of these.
func ParseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}

	for _, layout := range dateLayouts {
		parsed, err := time.Parse(layout, raw)
		if err != nil {
			continue
		}
		return time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, time.UTC), true
	}

	if serial, err := strconv.ParseFloat(raw, 64); err == nil {
		return SerialToDate(serial)
	}
	return time.Time{}, false
}

// SerialToDate converts a spreadsheet serial (fraction = time of day) to a date.
// Serial 1 is 1900-01-01; the non-existent serial 60 is rejected.
func SerialToDate(serial float64) (time.Time, bool) {
	days := int(math.Floor(serial))
	if days < 1 || days > maxSerialDate || days == serialLeapBug || math.IsNaN(serial) {
		return time.Time{}, false
	}
	if days < serialLeapBug {
		return serialEpoch.AddDate(0, 0, days), true
	}
	return serialEpochPostBug.AddDate(0, 0, days), true
}

// DateToSerial is the inverse of SerialToDate for dates from 1900-01-01.
func DateToSerial(date time.Time) int {
	date = time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	if date.Before(time.Date(1900, time.March, 1, 0, 0, 0, 0, time.UTC)) {
		return int(date.Sub(serialEpoch).Hours() / 24)
	}
	return int(date.Sub(serialEpochPostBug).Hours() / 24)
}

// blankToNil trims the cell and collapses empty or whitespace-only values to nil.
func blankToNil(cell *string) *string {
	if cell == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*cell)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

// parseInteger accepts "7", "7.0" and "7 years".
func parseInteger(raw string) (int, bool) {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return 0, false
	}
	if n, err := strconv.Atoi(fields[0]); err == nil {
		return n, true
	}
	f, err := strconv.ParseFloat(fields[0], 64)
	if err != nil || f != math.Trunc(f) {
		return 0, false
	}
	return int(f), true
}

// NormalizeRow turns a raw row into a pending staging row. It returns false
// when every mapped cell is blank. Values in unmapped columns are kept in the
// Unmapped bucket keyed by header label.
func (s Schema) NormalizeRow(columns []Column, raw RawRow) (StagingRow, bool) {
	row := StagingRow{
		RowNumber:   raw.Number,
		Status:      RowPending,
		Errors:      []string{},
		ParseIssues: []string{},
		Unmapped:    map[string]string{},
	}
	switch s.Entity {
	case EntityTeacher:
		row.Teacher = &TeacherFields{}
	default:
		row.Student = &StudentFields{}
	}

	hasData := false
	for _, column := range columns {
		var cell *string
		if column.Index < len(raw.Cells) {
			cell = blankToNil(raw.Cells[column.Index])
		}
		if cell == nil {
			continue
		}
		if !column.Mapped() {
			row.Unmapped[column.Label()] = *cell
			continue
		}
		hasData = true

		fs, _ := s.Lookup(column.Field)
		v, issue := convertCell(fs, *cell)
		if issue != "" {
			row.ParseIssues = append(row.ParseIssues, issue)
		}
		if row.Teacher != nil {
			row.Teacher.assign(column.Field, v)
		} else {
			row.Student.assign(column.Field, v)
		}
	}

	// Cells past the last header are positional extras.
	for i := len(columns); i < len(raw.Cells); i++ {
		if cell := blankToNil(raw.Cells[i]); cell != nil {
			row.Unmapped[fmt.Sprintf("column_%d", i+1)] = *cell
		}
	}

	return row, hasData
}

func convertCell(fs FieldSpec, cell string) (value, string) {
	switch fs.Kind {
	case KindDate:
		parsed, ok := ParseDate(cell)
		if !ok {
			return value{}, fmt.Sprintf("%s: unrecognised date %q", fs.Field, cell)
		}
		return value{date: &parsed}, ""
	case KindInteger:
		n, ok := parseInteger(cell)
		if !ok {
			return value{}, fmt.Sprintf("%s: %q is not a whole number", fs.Field, cell)
		}
		return value{num: &n}, ""
	default:
		return value{text: &cell}, ""
	}
}
