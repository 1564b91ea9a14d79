package importing

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	domain "github.com/mohammadpnp/school-import/internal/domain/importing"
)

var minBirthDate = time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)

// rowErrors accumulates every violation of one row in rule order.
type rowErrors struct {
	issues []string
	errs   []string
}

func newRowErrors(row domain.StagingRow) *rowErrors {
	return &rowErrors{issues: row.ParseIssues}
}

func (r *rowErrors) add(format string, args ...any) {
	r.errs = append(r.errs, fmt.Sprintf(format, args...))
}

// hasIssue reports whether field failed to convert during normalisation.
func (r *rowErrors) hasIssue(field domain.Field) bool {
	prefix := string(field) + ":"
	for _, issue := range r.issues {
		if strings.HasPrefix(issue, prefix) {
			return true
		}
	}
	return false
}

func (r *rowErrors) requireText(field domain.Field, value *string) {
	if value == nil || strings.TrimSpace(*value) == "" {
		r.add("%s is required", field)
	}
}

func (r *rowErrors) requireDate(field domain.Field, value *time.Time) {
	if value == nil && !r.hasIssue(field) {
		r.add("%s is required", field)
	}
}

func (r *rowErrors) lengths(schema domain.Schema, row domain.StagingRow) {
	for _, fs := range schema.TooLong(row) {
		r.add("%s must be at most %d characters", fs.Field, fs.MaxLen)
	}
}

func (r *rowErrors) email(field domain.Field, value *string) {
	if value != nil && !isEmail(*value) {
		r.add("%s %q is not a valid e-mail address", field, *value)
	}
}

func (r *rowErrors) phone(field domain.Field, value *string) {
	if value != nil && !validPhone(*value) {
		r.add("%s %q must contain 7 to 15 digits", field, *value)
	}
}

func (r *rowErrors) gender(value *string) {
	if value == nil {
		return
	}
	if _, ok := normalizeGender(*value); !ok {
		r.add("gender %q must be male, female or other", *value)
	}
}

func (r *rowErrors) birthDate(value *time.Time, now time.Time) {
	if value == nil {
		return
	}
	switch {
	case !value.After(minBirthDate):
		r.add("%s %s must be after %s", domain.FieldDateOfBirth, value.Format(time.DateOnly), minBirthDate.Format(time.DateOnly))
	case !value.Before(truncateDay(now)):
		r.add("%s %s must be in the past", domain.FieldDateOfBirth, value.Format(time.DateOnly))
	}
}

func (r *rowErrors) notFarFuture(field domain.Field, value *time.Time, now time.Time) {
	if value == nil {
		return
	}
	if value.After(truncateDay(now).AddDate(1, 0, 0)) {
		r.add("%s %s is more than one year in the future", field, value.Format(time.DateOnly))
	}
	if !value.After(minBirthDate) {
		r.add("%s %s must be after %s", field, value.Format(time.DateOnly), minBirthDate.Format(time.DateOnly))
	}
}

func (r *rowErrors) result() []string {
	out := make([]string, 0, len(r.errs)+len(r.issues))
	out = append(out, r.errs...)
	out = append(out, r.issues...)
	return out
}

func validPhone(raw string) bool {
	digits := strings.Map(func(r rune) rune {
		switch r {
		case '+', '-', '(', ')', '.', ' ':
			return -1
		}
		return r
	}, raw)
	if len(digits) < 7 || len(digits) > 15 {
		return false
	}
	_, err := strconv.ParseUint(digits, 10, 64)
	return err == nil
}

func normalizeGender(raw string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "male", "m":
		return "male", true
	case "female", "f":
		return "female", true
	case "other", "o":
		return "other", true
	}
	return "", false
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func textKey(v *string) string {
	if v == nil {
		return ""
	}
	return strings.TrimSpace(*v)
}

func emailKey(v *string) string {
	return strings.ToLower(textKey(v))
}

func formatRows(rows []int) string {
	parts := make([]string, len(rows))
	for i, n := range rows {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ", ")
}

// occurrences tracks the rows sharing a key. The first row owns the key;
// later rows are duplicates.
type occurrences map[string][]int

func (o occurrences) add(key string, rowNumber int) {
	if key == "" {
		return
	}
	o[key] = append(o[key], rowNumber)
}

// duplicate reports whether rowNumber repeats a key owned by an earlier row.
func (o occurrences) duplicate(key string, rowNumber int) ([]int, bool) {
	rows := o[key]
	if key == "" || len(rows) < 2 || rows[0] == rowNumber {
		return nil, false
	}
	return rows, true
}
