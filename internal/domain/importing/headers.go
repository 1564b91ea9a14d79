package importing

import (
	"fmt"
	"strings"
	"unicode"
)

// MinFallbackTokenLength is the shortest header token that takes part in
// fallback matching. Shorter tokens resolve by exact match only.
const MinFallbackTokenLength = 4

// Column describes one header slot. Field is empty when the column is unmapped.
type Column struct {
	Index  int
	Header string
	Token  string
	Field  Field
}

func (c Column) Mapped() bool {
	return c.Field != ""
}

// Label names the column in the unmapped bucket.
func (c Column) Label() string {
	if strings.TrimSpace(c.Header) != "" {
		return strings.TrimSpace(c.Header)
	}
	return fmt.Sprintf("column_%d", c.Index+1)
}

// NormalizeHeader lowercases the header, turns whitespace and hyphens into
// single underscores and strips everything else that is not alphanumeric.
func NormalizeHeader(raw string) string {
	raw = strings.TrimSpace(strings.TrimPrefix(raw, "\ufeff"))

	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToLower(raw) {
		switch {
		case r == '_' || r == '-' || unicode.IsSpace(r) || r == '/' || r == '.':
			if !lastUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				lastUnderscore = true
			}
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(r)
			lastUnderscore = false
		}
	}
	return strings.TrimRight(b.String(), "_")
}

// ResolveHeader maps a normalized token to a canonical field of the schema.
// Exact synonym matches win. Otherwise a token that contains a multi-word
// synonym as whole words resolves to the longest such synonym, and a token
// contained in synonyms of exactly one field resolves to that field.
// Single-word synonyms ("name", "class", "branch") never match inside a
// longer header. Ambiguous or short tokens stay unmapped.
func (s Schema) ResolveHeader(token string) (Field, bool) {
	if token == "" {
		return "", false
	}

	for _, fs := range s.Fields {
		for _, synonym := range fs.Synonyms {
			if token == synonym {
				return fs.Field, true
			}
		}
	}

	if len(token) < MinFallbackTokenLength {
		return "", false
	}

	var best Field
	bestLen := 0
	tie := false
	for _, fs := range s.Fields {
		for _, synonym := range fs.Synonyms {
			if !containsWords(token, synonym) {
				continue
			}
			switch {
			case len(synonym) > bestLen:
				best, bestLen, tie = fs.Field, len(synonym), false
			case len(synonym) == bestLen && fs.Field != best:
				tie = true
			}
		}
	}
	if bestLen > 0 {
		if tie {
			return "", false
		}
		return best, true
	}

	var candidate Field
	for _, fs := range s.Fields {
		for _, synonym := range fs.Synonyms {
			if !strings.Contains(synonym, token) {
				continue
			}
			if candidate != "" && candidate != fs.Field {
				return "", false
			}
			candidate = fs.Field
		}
	}
	return candidate, candidate != ""
}

// MapColumns resolves every header position. A field claimed by an earlier
// column leaves later duplicates unmapped.
func (s Schema) MapColumns(headers []string) []Column {
	columns := make([]Column, len(headers))
	claimed := make(map[Field]bool, len(headers))
	for i, header := range headers {
		token := NormalizeHeader(header)
		column := Column{Index: i, Header: header, Token: token}
		if field, ok := s.ResolveHeader(token); ok && !claimed[field] {
			column.Field = field
			claimed[field] = true
		}
		columns[i] = column
	}
	return columns
}

// HasMappedColumn reports whether at least one column resolved to a field.
func HasMappedColumn(columns []Column) bool {
	for _, column := range columns {
		if column.Mapped() {
			return true
		}
	}
	return false
}

// containsWords reports whether the multi-word synonym appears in token as a
// run of whole underscore-separated words.
func containsWords(token, synonym string) bool {
	if !strings.Contains(synonym, "_") || token == synonym {
		return false
	}
	return strings.Contains("_"+token+"_", "_"+synonym+"_")
}
