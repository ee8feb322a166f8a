package load

import (
	"math/big"
	"testing"
	"time"

	"github.com/guregu/null/v6"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/rasnes/stock-warehouse-etl/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestPgValue(t *testing.T) {
	tests := []struct {
		name     string
		input    any
		expected any
	}{
		{
			name:     "Date",
			input:    time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC),
			expected: pgtype.Date{Time: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Valid: true},
		},
		{
			name:     "Valid market cap",
			input:    null.IntFrom(42),
			expected: pgtype.Int8{Int64: 42, Valid: true},
		},
		{
			name:     "Missing market cap",
			input:    null.Int64{},
			expected: pgtype.Int8{},
		},
		{
			name:     "Passthrough",
			input:    "AAA",
			expected: "AAA",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, pgValue(tt.input))
		})
	}
}

func TestPgValue_DecimalIsExact(t *testing.T) {
	n, ok := pgValue(decimal.RequireFromString("101.2346")).(pgtype.Numeric)
	assert.True(t, ok)
	assert.True(t, n.Valid)
	assert.Equal(t, int32(-4), n.Exp)
	assert.Equal(t, 0, n.Int.Cmp(big.NewInt(1012346)))
}

func TestColumnDefs(t *testing.T) {
	defs, err := columnDefs(ProfileTable(nil), "TEXT")
	assert.Error(t, err)
	assert.Nil(t, defs)

	defs, err = columnDefs(PriceTable([]models.PriceRow{priceRow("AAA", 2, "1")}), "TEXT")
	assert.NoError(t, err)
	assert.Equal(t, []string{
		"DATE DATE", "TICKER TEXT", "OPEN DECIMAL(18,4)", "HIGH DECIMAL(18,4)",
		"LOW DECIMAL(18,4)", "CLOSE DECIMAL(18,4)", "ADJ_CLOSE DECIMAL(18,4)", "VOLUME BIGINT",
	}, defs)
}
