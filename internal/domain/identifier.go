package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// MaxExportTables caps the number of tables accepted in an explicit export list.
const MaxExportTables = 50

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// IsValidIdentifier reports whether s is safe to interpolate into SQL as a
// table or column name.
func IsValidIdentifier(s string) bool {
	return identifierPattern.MatchString(s)
}

func ValidateIdentifier(s string) error {
	if !IsValidIdentifier(s) {
		return E(KindValidation, "", fmt.Errorf("%w: %q", ErrInvalidIdentifier, s))
	}
	return nil
}

// QuoteIdentifier backtick-quotes a validated identifier. It panics on
// invalid input; callers validate first.
func QuoteIdentifier(s string) string {
	if !IsValidIdentifier(s) {
		panic(fmt.Sprintf("unvalidated identifier %q", s))
	}
	return "`" + s + "`"
}

// ParseTableList splits a comma separated table list. Every entry must be a
// valid identifier and at most MaxExportTables entries are accepted.
func ParseTableList(list string) ([]string, error) {
	var tables []string
	for _, part := range strings.Split(list, ",") {
		name := strings.TrimSpace(part)
		if name == "" {
			continue
		}
		if err := ValidateIdentifier(name); err != nil {
			return nil, err
		}
		tables = append(tables, name)
	}
	if len(tables) == 0 {
		return nil, Errorf(KindValidation, "no tables specified")
	}
	if len(tables) > MaxExportTables {
		return nil, Errorf(KindValidation, "too many tables: %d (max %d)", len(tables), MaxExportTables)
	}
	return tables, nil
}
