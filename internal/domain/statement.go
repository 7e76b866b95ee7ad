package domain

import (
	"regexp"
	"strings"
)

var tableNameRe = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// ValidTableName reports whether name can be used as a table identifier.
func ValidTableName(name string) bool {
	return tableNameRe.MatchString(name)
}

// StatementLabel derives the label of a statement from its object name: the
// base name up to the first dot, with every character that is not a
// letter, digit or underscore replaced by an underscore. The label doubles
// as the statement's table name.
//
//	"statements/enero_2024.csv"      -> "enero_2024"
//	"statements/mi-extracto 1.xlsx"  -> "mi_extracto_1"
func StatementLabel(object string) string {
	base := object
	if i := strings.LastIndex(base, "/"); i >= 0 {
		base = base[i+1:]
	}
	if i := strings.Index(base, "."); i >= 0 {
		base = base[:i]
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
}

// JoinedTable returns the staging table name of a statement.
func JoinedTable(label string) string {
	return label + "_joined"
}
