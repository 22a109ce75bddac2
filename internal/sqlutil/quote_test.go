package sqlutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuoteIdentifier(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"CoreUnit", "`CoreUnit`"},
		{"group", "`group`"},
		{"cuId", "`cuId`"},
		{"user`data", "`user``data`"},
		{"", "``"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, QuoteIdentifier(tt.input))
		})
	}
}

func TestQuoteQualified(t *testing.T) {
	assert.Equal(t, "`UserRole`.`roleId`", QuoteQualified("UserRole", "roleId"))
}

func TestQuoteColumns(t *testing.T) {
	assert.Equal(t, []string{"`id`", "`month`"}, QuoteColumns([]string{"id", "month"}))
}
