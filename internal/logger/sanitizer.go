package logger

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Sanitizer masks sensitive data in query parameters to prevent accidental logging of secrets.
// A parameter is sensitive when the column it is compared with, or inserted
// into, names a sensitive field.
type Sanitizer struct {
	sensitiveFields []string
	maskValue       string
}

// DefaultSensitiveFields is used when NewSanitizer receives no field names.
var DefaultSensitiveFields = []string{
	"password", "passwd", "pwd",
	"token", "api_key", "apikey", "api_token",
	"secret", "auth", "authorization",
	"credit_card", "card_number", "cvv", "cvc",
	"ssn", "social_security",
	"private_key", "priv_key",
}

// NewSanitizer creates a new sanitizer with the specified sensitive field names.
// If no fields are provided, DefaultSensitiveFields is used.
func NewSanitizer(sensitiveFields []string) *Sanitizer {
	if len(sensitiveFields) == 0 {
		sensitiveFields = DefaultSensitiveFields
	}
	fields := make([]string, len(sensitiveFields))
	for i, f := range sensitiveFields {
		fields[i] = strings.ToLower(f)
	}
	return &Sanitizer{
		sensitiveFields: fields,
		maskValue:       "***REDACTED***",
	}
}

var (
	placeholderRe = regexp.MustCompile(`\$\d+|\?`)
	wordRe        = regexp.MustCompile(`[A-Za-z_][A-Za-z0-9_]*`)
	insertRe      = regexp.MustCompile(`(?is)^\s*insert\s+into\s+[^(]+\(([^)]*)\)\s*values`)
)

// Words skipped when looking for the column in front of a placeholder.
var operatorWords = map[string]bool{
	"in": true, "like": true, "ilike": true, "not": true, "is": true,
	"between": true, "and": true, "or": true, "any": true, "set": true,
	"where": true, "values": true,
}

// MaskParams masks the parameters bound to sensitive columns. It returns a new
// slice; params is not modified.
func (s *Sanitizer) MaskParams(query string, params []any) []any {
	if len(params) == 0 {
		return params
	}

	sensitive := s.sensitivePositions(query, len(params))
	if len(sensitive) == 0 {
		return params
	}

	masked := make([]any, len(params))
	for i, p := range params {
		if sensitive[i] {
			masked[i] = s.maskValue
		} else {
			masked[i] = p
		}
	}
	return masked
}

// sensitivePositions maps parameter indexes to whether they must be masked.
func (s *Sanitizer) sensitivePositions(query string, n int) map[int]bool {
	out := make(map[int]bool)

	locs := placeholderRe.FindAllStringIndex(query, -1)
	var insertCols []string
	if m := insertRe.FindStringSubmatchIndex(query); m != nil {
		for _, c := range strings.Split(query[m[2]:m[3]], ",") {
			insertCols = append(insertCols, strings.Trim(strings.TrimSpace(c), "`\"[]"))
		}
	}

	prevEnd, seq := 0, 0
	lastSensitive := false
	for i, loc := range locs {
		ph := query[loc[0]:loc[1]]
		idx := seq
		if ph != "?" {
			num, _ := strconv.Atoi(ph[1:])
			idx = num - 1
		}
		seq++

		var hit bool
		if len(insertCols) > 0 && loc[0] > insertValuesStart(query) {
			hit = s.isSensitive(insertCols[i%len(insertCols)])
		} else {
			segment := query[prevEnd:loc[0]]
			col, ok := columnBefore(segment)
			if ok {
				hit = s.isSensitive(col)
			} else {
				// "pwd IN (?, ?)" continues the previous column.
				hit = lastSensitive
			}
		}
		lastSensitive = hit
		prevEnd = loc[1]

		if hit && idx >= 0 && idx < n {
			out[idx] = true
		}
	}
	return out
}

func insertValuesStart(query string) int {
	if m := insertRe.FindStringIndex(query); m != nil {
		return m[1]
	}
	return len(query)
}

// columnBefore returns the last non-operator word in segment.
func columnBefore(segment string) (string, bool) {
	words := wordRe.FindAllString(segment, -1)
	for i := len(words) - 1; i >= 0; i-- {
		w := strings.ToLower(words[i])
		if operatorWords[w] {
			continue
		}
		return w, true
	}
	return "", false
}

func (s *Sanitizer) isSensitive(column string) bool {
	column = strings.ToLower(column)
	if dot := strings.LastIndexByte(column, '.'); dot >= 0 {
		column = column[dot+1:]
	}
	for _, f := range s.sensitiveFields {
		if column == f || strings.HasPrefix(column, f+"_") || strings.HasSuffix(column, "_"+f) {
			return true
		}
	}
	return false
}

// FormatParams converts parameters to a safe string representation for logging.
// Sensitive values should be masked using MaskParams before calling this.
func (s *Sanitizer) FormatParams(params []any) string {
	if len(params) == 0 {
		return "[]"
	}

	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = s.formatValue(p)
	}

	return "[" + strings.Join(parts, ", ") + "]"
}

// formatValue formats a single parameter value for logging.
// Truncates very long strings to prevent log pollution.
func (s *Sanitizer) formatValue(v any) string {
	if v == nil {
		return "NULL"
	}

	str := fmt.Sprintf("%v", v)

	const maxLen = 100
	if len(str) > maxLen {
		return str[:maxLen] + "..."
	}

	return str
}
