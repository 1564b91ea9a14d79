package tabular

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/gabriel-vasile/mimetype"

	importing "github.com/mohammadpnp/school-import/internal/domain/importing"
)

const (
	mimeXLSX      = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	mimeXLS       = "application/vnd.ms-excel"
	mimeOLE       = "application/x-ole-storage"
	mimeZIP       = "application/zip"
	mimePlainText = "text/plain"

	// ctxCheckInterval is how many rows are scanned between context checks.
	ctxCheckInterval = 256
)

type Options struct {
	// MaxRows caps the number of non-blank data rows read from one file.
	MaxRows int
	// Strict rejects files whose content does not match the declared kind.
	Strict bool
}

// Decoder reads CSV, xlsx and xls uploads into header-aligned tables.
type Decoder struct {
	opts Options
}

func NewDecoder(opts Options) *Decoder {
	if opts.MaxRows <= 0 {
		opts.MaxRows = 10000
	}
	return &Decoder{opts: opts}
}

// Detect sniffs the content of path and reconciles it with the declared kind.
func (d *Decoder) Detect(ctx context.Context, path string, declared importing.FileKind) (importing.FileKind, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := checkFile(path); err != nil {
		return "", err
	}

	detected, err := mimetype.DetectFile(path)
	if err != nil {
		return "", importing.NewError(importing.ErrParseFailure, "could not inspect the uploaded file").WithCause(err)
	}

	actual, ok := kindOf(path, detected)
	if !ok {
		return "", importing.NewError(importing.ErrFileTypeMismatch,
			"the file content (%s) is neither CSV nor an Excel workbook", detected.String())
	}
	if actual == declared {
		return actual, nil
	}

	// A workbook declared as CSV is rejected even in lenient mode.
	if d.opts.Strict || declared == importing.FileKindCSV {
		return "", mismatchError(declared, actual)
	}
	return actual, nil
}

// Decode reads the file at path as kind. The first row is the header row;
// data rows are numbered from 2.
func (d *Decoder) Decode(ctx context.Context, path string, kind importing.FileKind) (importing.Table, error) {
	if err := checkFile(path); err != nil {
		return importing.Table{}, err
	}

	b := newTableBuilder(ctx, d.opts.MaxRows)
	var err error
	switch kind {
	case importing.FileKindCSV:
		err = decodeCSV(path, b)
	case importing.FileKindXLSX:
		err = decodeXLSX(path, b)
	case importing.FileKindXLS:
		err = decodeXLS(path, b)
	default:
		return importing.Table{}, importing.NewError(importing.ErrFileTypeMismatch, "unsupported file kind %q", kind)
	}
	if err != nil {
		return importing.Table{}, err
	}
	return b.finish()
}

func checkFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return importing.NewError(importing.ErrFileNotFound, "the uploaded file is no longer available").WithCause(err)
		}
		return fmt.Errorf("stat upload: %w", err)
	}
	if info.Size() == 0 {
		return importing.NewError(importing.ErrEmptyFile, "the uploaded file is empty")
	}
	return nil
}

func kindOf(path string, detected *mimetype.MIME) (importing.FileKind, bool) {
	for m := detected; m != nil; m = m.Parent() {
		switch {
		case m.Is(mimeXLSX):
			return importing.FileKindXLSX, true
		case m.Is(mimeXLS), m.Is(mimeOLE):
			return importing.FileKindXLS, true
		case m.Is(mimeZIP):
			return importing.FileKindXLSX, isWorkbookArchive(path)
		case m.Is(mimePlainText):
			return importing.FileKindCSV, true
		}
	}
	return "", false
}

// isWorkbookArchive looks for spreadsheet parts inside a ZIP container whose
// first entries did not reveal its type.
func isWorkbookArchive(path string) bool {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return false
	}
	defer archive.Close()

	for _, entry := range archive.File {
		if strings.HasPrefix(entry.Name, "xl/") {
			return true
		}
	}
	return false
}

func mismatchError(declared, actual importing.FileKind) error {
	if declared == importing.FileKindCSV {
		return importing.NewError(importing.ErrFileTypeMismatch,
			"the file is named .csv but is actually an Excel workbook (%s); upload it with the %s extension or save it as CSV",
			actual.Extension(), actual.Extension())
	}
	return importing.NewError(importing.ErrFileTypeMismatch,
		"the file is named %s but contains %s; rename it to %s or re-export it",
		declared.Extension(), actual.Label(), actual.Extension())
}
