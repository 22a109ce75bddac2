// Package sqlutil provides SQL identifier helpers for the record store.
package sqlutil

import "strings"

// QuoteIdentifier quotes a table or column name with backticks, doubling any
// embedded backticks.
func QuoteIdentifier(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// QuoteQualified quotes table.column for use in joins.
func QuoteQualified(table, column string) string {
	return QuoteIdentifier(table) + "." + QuoteIdentifier(column)
}

// QuoteColumns quotes each column name, preserving order.
func QuoteColumns(columns []string) []string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = QuoteIdentifier(c)
	}
	return quoted
}
