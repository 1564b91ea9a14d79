package tabular

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	importing "github.com/mohammadpnp/school-import/internal/domain/importing"
)

func decodeCSV(path string, b *tableBuilder) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read csv: %w", err)
	}

	text, err := toUTF8(raw)
	if err != nil {
		return importing.NewError(importing.ErrParseFailure, "could not decode the CSV text encoding").WithCause(err)
	}
	if len(bytes.TrimSpace(text)) == 0 {
		return importing.NewError(importing.ErrEmptyFile, "the uploaded file is empty")
	}

	reader := csv.NewReader(bytes.NewReader(text))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	for number := 1; ; number++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return importing.NewError(importing.ErrParseFailure, "malformed CSV near row %d", number).WithCause(err)
		}
		if err := b.add(number, record); err != nil {
			return err
		}
	}
}

// toUTF8 honours a UTF-8 or UTF-16 byte order mark and falls back to
// Windows-1252 for text that is not valid UTF-8.
func toUTF8(raw []byte) ([]byte, error) {
	out, _, err := transform.Bytes(unicode.BOMOverride(transform.Nop), raw)
	if err != nil {
		return nil, err
	}
	if utf8.Valid(out) {
		return out, nil
	}
	return charmap.Windows1252.NewDecoder().Bytes(raw)
}
