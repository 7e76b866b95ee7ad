package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatementLabel(t *testing.T) {
	tests := map[string]string{
		"statements/enero_2024.csv":      "enero_2024",
		"enero_2024.xlsx":                "enero_2024",
		"a/b/c/extracto.final.csv":       "extracto",
		"gs://bucket/statements/feb.csv": "feb",
		"plain":                          "plain",
		"statements/mi-extracto 1.xlsx":  "mi_extracto_1",
		"statements/2024 (copia).csv":    "2024__copia_",
	}
	for in, want := range tests {
		got := StatementLabel(in)
		assert.Equal(t, want, got, in)
		assert.True(t, ValidTableName(got), in)
	}
}

func TestValidTableName(t *testing.T) {
	assert.True(t, ValidTableName("txns"))
	assert.True(t, ValidTableName("enero_2024_joined"))
	assert.False(t, ValidTableName(""))
	assert.False(t, ValidTableName("txns; DROP TABLE x"))
	assert.False(t, ValidTableName("finance.txns"))
	assert.False(t, ValidTableName("a-b"))
}
