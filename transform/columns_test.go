package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeColumnName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Open", "OPEN"},
		{"Adj Close", "ADJ_CLOSE"},
		{"  Volume ", "VOLUME"},
		{`"Date"`, "DATE"},
		{"'Ticker'", "TICKER"},
		{"ADJ_CLOSE", "ADJ_CLOSE"},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, NormalizeColumnName(tt.input))
		})
	}
}
