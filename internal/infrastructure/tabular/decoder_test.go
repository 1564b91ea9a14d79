package tabular_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	importing "github.com/mohammadpnp/school-import/internal/domain/importing"
	"github.com/mohammadpnp/school-import/internal/infrastructure/tabular"
)

func writeFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, content, 0o600))
	return path
}

func writeWorkbook(t *testing.T, name string, rows [][]any) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return writeFile(t, name, buf.Bytes())
}

func cellValues(row importing.RawRow) []string {
	out := make([]string, len(row.Cells))
	for i, cell := range row.Cells {
		if cell != nil {
			out[i] = *cell
		}
	}
	return out
}

func decoder(strict bool) *tabular.Decoder {
	return tabular.NewDecoder(tabular.Options{MaxRows: 100, Strict: strict})
}

func TestDecodeCSVKeepsColumnPositions(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "students.csv", []byte("first_name,last_name,,dob\nAmina,Rahman,stray,2012-04-17\nOmar,,x\n"))

	table, err := decoder(true).Decode(context.Background(), path, importing.FileKindCSV)
	require.NoError(t, err)

	assert.Equal(t, []string{"first_name", "last_name", "", "dob"}, table.Headers)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, 2, table.Rows[0].Number)
	assert.Equal(t, []string{"Amina", "Rahman", "stray", "2012-04-17"}, cellValues(table.Rows[0]))
	assert.Equal(t, 3, table.Rows[1].Number)
	assert.Nil(t, table.Rows[1].Cells[1])
	assert.Equal(t, "x", *table.Rows[1].Cells[2])
}

func TestDecodeCSVSkipsBlankRowsButKeepsNumbering(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "students.csv", []byte("name\nA\n , \nB\n"))

	table, err := decoder(true).Decode(context.Background(), path, importing.FileKindCSV)
	require.NoError(t, err)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, 2, table.Rows[0].Number)
	assert.Equal(t, 4, table.Rows[1].Number)
}

func TestDecodeCSVEncodings(t *testing.T) {
	t.Parallel()

	bom := writeFile(t, "bom.csv", []byte("\xef\xbb\xbfname,city\nAmina,Dhaka\n"))
	table, err := decoder(true).Decode(context.Background(), bom, importing.FileKindCSV)
	require.NoError(t, err)
	assert.Equal(t, "name", table.Headers[0])

	legacy := writeFile(t, "legacy.csv", []byte("name\nJos\xe9\n"))
	table, err = decoder(true).Decode(context.Background(), legacy, importing.FileKindCSV)
	require.NoError(t, err)
	assert.Equal(t, "José", *table.Rows[0].Cells[0])
}

func TestDecodeStructuralFailures(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		content string
		kind    error
	}{
		{name: "empty", content: "", kind: importing.ErrEmptyFile},
		{name: "whitespace", content: " \n\n", kind: importing.ErrEmptyFile},
		{name: "blank header", content: ",,\n1,2,3\n", kind: importing.ErrNoHeaders},
		{name: "headers only", content: "first_name,last_name\n", kind: importing.ErrNoDataRows},
		{name: "blank data", content: "first_name,last_name\n,\n , \n", kind: importing.ErrNoDataRows},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := writeFile(t, "upload.csv", []byte(tc.content))
			_, err := decoder(true).Decode(context.Background(), path, importing.FileKindCSV)
			require.Error(t, err)
			assert.ErrorIs(t, err, tc.kind)
		})
	}
}

func TestDecodeMissingFile(t *testing.T) {
	t.Parallel()

	_, err := decoder(true).Decode(context.Background(), filepath.Join(t.TempDir(), "gone.csv"), importing.FileKindCSV)
	assert.ErrorIs(t, err, importing.ErrFileNotFound)
}

func TestDecodeEnforcesRowCeiling(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "big.csv", []byte("name\na\nb\nc\n"))
	_, err := tabular.NewDecoder(tabular.Options{MaxRows: 2}).Decode(context.Background(), path, importing.FileKindCSV)
	require.Error(t, err)
	assert.ErrorIs(t, err, importing.ErrParseFailure)
	assert.Contains(t, importing.PublicMessage(err), "more than 2 data rows")
}

func TestDecodeHonoursContextCancellation(t *testing.T) {
	t.Parallel()

	var content strings.Builder
	content.WriteString("name\n")
	for i := 0; i < 600; i++ {
		fmt.Fprintf(&content, "row%d\n", i)
	}
	path := writeFile(t, "long.csv", []byte(content.String()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := tabular.NewDecoder(tabular.Options{MaxRows: 1000}).Decode(ctx, path, importing.FileKindCSV)
	require.Error(t, err)
	assert.ErrorIs(t, err, importing.ErrParseFailure)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestDecodeDiscardsBinaryLookingCells(t *testing.T) {
	t.Parallel()

	garbage := "PK\x03\x04" + strings.Repeat("x", 80) + "[Content_Types].xml"
	long := strings.Repeat("Lake Road ", 10)
	path := writeFile(t, "mixed.csv", []byte("name,address\n\""+garbage+"\",\""+long+"\"\n"))

	table, err := decoder(true).Decode(context.Background(), path, importing.FileKindCSV)
	require.NoError(t, err)
	require.Len(t, table.Rows, 1)
	assert.Nil(t, table.Rows[0].Cells[0])
	assert.Equal(t, long, *table.Rows[0].Cells[1])
}

func TestDecodeXLSXReadsByPosition(t *testing.T) {
	t.Parallel()

	path := writeWorkbook(t, "students.xlsx", [][]any{
		{"admission_no", "", "dob"},
		{"ADM-1", "note", 45000},
		{"ADM-2", "", ""},
	})

	table, err := decoder(true).Decode(context.Background(), path, importing.FileKindXLSX)
	require.NoError(t, err)

	assert.Equal(t, []string{"admission_no", "", "dob"}, table.Headers)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, []string{"ADM-1", "note", "45000"}, cellValues(table.Rows[0]))
	assert.Equal(t, 3, table.Rows[1].Number)
}

func TestDetectWorkbookRenamedToCSV(t *testing.T) {
	t.Parallel()

	path := writeWorkbook(t, "students.csv", [][]any{{"name"}, {"Amina"}})

	_, err := decoder(true).Detect(context.Background(), path, importing.FileKindCSV)
	require.Error(t, err)
	assert.ErrorIs(t, err, importing.ErrFileTypeMismatch)
	assert.Contains(t, importing.PublicMessage(err), ".xlsx")

	_, err = decoder(false).Detect(context.Background(), path, importing.FileKindCSV)
	assert.ErrorIs(t, err, importing.ErrFileTypeMismatch, "a workbook named .csv is rejected in lenient mode too")
}

func TestDetectLenientDecodesOtherMismatchesByContent(t *testing.T) {
	t.Parallel()

	path := writeWorkbook(t, "students.xls", [][]any{{"name"}, {"Amina"}})

	_, err := decoder(true).Detect(context.Background(), path, importing.FileKindXLS)
	assert.ErrorIs(t, err, importing.ErrFileTypeMismatch)

	kind, err := decoder(false).Detect(context.Background(), path, importing.FileKindXLS)
	require.NoError(t, err)
	assert.Equal(t, importing.FileKindXLSX, kind)

	table, err := decoder(false).Decode(context.Background(), path, kind)
	require.NoError(t, err)
	assert.Equal(t, "Amina", *table.Rows[0].Cells[0])
}

func TestDetectLegacyWorkbookSignature(t *testing.T) {
	t.Parallel()

	content := append([]byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}, bytes.Repeat([]byte{0}, 1024)...)
	path := writeFile(t, "teachers.csv", content)

	_, err := decoder(true).Detect(context.Background(), path, importing.FileKindCSV)
	require.Error(t, err)
	assert.ErrorIs(t, err, importing.ErrFileTypeMismatch)
	assert.Contains(t, importing.PublicMessage(err), ".xls")
}

func TestDetectPlainTextAsWorkbook(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "students.xlsx", []byte("name\nAmina\n"))

	_, err := decoder(true).Detect(context.Background(), path, importing.FileKindXLSX)
	assert.ErrorIs(t, err, importing.ErrFileTypeMismatch)

	kind, err := decoder(true).Detect(context.Background(), writeFile(t, "students.csv", []byte("name\nAmina\n")), importing.FileKindCSV)
	require.NoError(t, err)
	assert.Equal(t, importing.FileKindCSV, kind)
}

func TestDetectRejectsUnrelatedBinary(t *testing.T) {
	t.Parallel()

	path := writeFile(t, "scan.csv", append([]byte("%PDF-1.7\n"), bytes.Repeat([]byte{0x00, 0x01}, 64)...))

	_, err := decoder(false).Detect(context.Background(), path, importing.FileKindCSV)
	assert.ErrorIs(t, err, importing.ErrFileTypeMismatch)
}
