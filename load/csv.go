package load

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/guregu/null/v6"
	"github.com/shopspring/decimal"
)

// EncodeCSV writes the table as CSV with a header row. Dates are written as
// YYYY-MM-DD, decimals exactly, and invalid nullable values as empty fields.
func EncodeCSV(data Table) ([]byte, error) {
	if len(data.Columns) == 0 {
		return nil, fmt.Errorf("received table without columns")
	}
	if err := checkShape(data); err != nil {
		return nil, err
	}

	var buffer bytes.Buffer
	writer := csv.NewWriter(&buffer)

	if err := writer.Write(data.Columns); err != nil {
		return nil, fmt.Errorf("failed to write CSV header: %w", err)
	}

	record := make([]string, len(data.Columns))
	for _, row := range data.Rows {
		for i, v := range row {
			field, err := formatValue(v)
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", data.Columns[i], err)
			}
			record[i] = field
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV data: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush CSV writer: %w", err)
	}

	return buffer.Bytes(), nil
}

func formatValue(v any) (string, error) {
	switch v := v.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case time.Time:
		return v.Format(time.DateOnly), nil
	case decimal.Decimal:
		return v.String(), nil
	case int64:
		return strconv.FormatInt(v, 10), nil
	case int:
		return strconv.Itoa(v), nil
	case null.Int64:
		if !v.Valid {
			return "", nil
		}
		return strconv.FormatInt(v.Int64, 10), nil
	default:
		return "", fmt.Errorf("unsupported value type %T", v)
	}
}
