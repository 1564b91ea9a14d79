package importing

import "strings"

type EntityType string

const (
	EntityStudent EntityType = "student"
	EntityTeacher EntityType = "teacher"
)

// EntityTypes lists every importable module in display order.
var EntityTypes = []EntityType{EntityStudent, EntityTeacher}

func ParseEntityType(raw string) (EntityType, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "student", "students":
		return EntityStudent, nil
	case "teacher", "teachers":
		return EntityTeacher, nil
	}
	return "", NewError(ErrValidationFailed, "unknown import module %q", raw).
		WithFields(FieldError{Field: "entity", Message: "must be student or teacher"})
}

func (e EntityType) String() string {
	return string(e)
}

type FileKind string

const (
	FileKindCSV  FileKind = "csv"
	FileKindXLSX FileKind = "xlsx"
	FileKindXLS  FileKind = "xls"
)

// FileKindFromFilename maps a declared extension to a file kind.
func FileKindFromFilename(filename string) (FileKind, bool) {
	name := strings.ToLower(strings.TrimSpace(filename))
	switch {
	case strings.HasSuffix(name, ".csv"), strings.HasSuffix(name, ".txt"):
		return FileKindCSV, true
	case strings.HasSuffix(name, ".xlsx"):
		return FileKindXLSX, true
	case strings.HasSuffix(name, ".xls"):
		return FileKindXLS, true
	}
	return "", false
}

func (k FileKind) Extension() string {
	return "." + string(k)
}

func (k FileKind) Label() string {
	switch k {
	case FileKindXLSX:
		return "Excel workbook (.xlsx)"
	case FileKindXLS:
		return "legacy Excel workbook (.xls)"
	default:
		return "CSV text (.csv)"
	}
}
