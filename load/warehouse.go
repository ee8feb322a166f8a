package load

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/guregu/null/v6"
	"github.com/rasnes/stock-warehouse-etl/config"
	"github.com/rasnes/stock-warehouse-etl/models"
	"github.com/rasnes/stock-warehouse-etl/schema"
	"github.com/rasnes/stock-warehouse-etl/template"
	"github.com/shopspring/decimal"
)

//go:embed sql/*.sql
var sqlFiles embed.FS

// Warehouse hands out scoped sessions. Close releases the underlying database.
type Warehouse interface {
	Session(ctx context.Context) (Session, error)
	Close() error
}

// Session is one warehouse connection. It must be closed on every path.
type Session interface {
	Exec(ctx context.Context, query string) error
	// HighWaterMarks returns the latest stored date per requested ticker.
	// Tickers without rows are absent from the result.
	HighWaterMarks(ctx context.Context, table string, tickers []string) ([]models.HighWaterMark, error)
	// ExistingTickers returns the distinct upper-cased tickers stored in table.
	ExistingTickers(ctx context.Context, table string) ([]string, error)
	// Append inserts rows and returns the number written. A missing table is an
	// error unless autoCreate is set.
	Append(ctx context.Context, table string, data Table, autoCreate bool) (int64, error)
	Close() error
}

// Table is a batch of rows in column order.
type Table struct {
	Columns []string
	Rows    [][]any
}

func PriceTable(rows []models.PriceRow) Table {
	t := Table{Columns: models.PriceColumns, Rows: make([][]any, 0, len(rows))}
	for _, r := range rows {
		t.Rows = append(t.Rows, r.Values())
	}
	return t
}

func ProfileTable(rows []models.ProfileRow) Table {
	t := Table{Columns: models.ProfileColumns, Rows: make([][]any, 0, len(rows))}
	for _, r := range rows {
		t.Rows = append(t.Rows, r.Values())
	}
	return t
}

// Open connects to the warehouse named by cfg.Warehouse.Driver.
func Open(ctx context.Context, cfg *config.Config, creds config.Credentials, logger *slog.Logger) (Warehouse, error) {
	switch strings.ToLower(cfg.Warehouse.Driver) {
	case "", "duckdb", "motherduck":
		db, err := NewDuckDB(cfg, creds, logger)
		if err != nil {
			return nil, err
		}
		return db, nil
	case "postgres", "postgresql":
		pg, err := NewPostgres(ctx, cfg, creds, logger)
		if err != nil {
			return nil, err
		}
		return pg, nil
	default:
		return nil, fmt.Errorf("unsupported warehouse driver %q", cfg.Warehouse.Driver)
	}
}

func renderQuery(name string, params map[string]any) (string, error) {
	if table, ok := params["Table"].(string); ok {
		if err := schema.ValidateIdentifier(table); err != nil {
			return "", err
		}
	}
	return template.ExecuteSqlTemplate(sqlFiles, "sql/"+name+".sql", params)
}

// splitTable separates an optional schema qualifier from the table name.
func splitTable(table string) (schemaName, name string) {
	if i := strings.LastIndex(table, "."); i >= 0 {
		return table[:i], table[i+1:]
	}
	return "", table
}

// columnDefs infers column definitions from the Go types in the first row.
func columnDefs(data Table, textType string) ([]string, error) {
	if len(data.Rows) == 0 {
		return nil, fmt.Errorf("cannot infer column types without rows")
	}
	defs := make([]string, len(data.Columns))
	for i, col := range data.Columns {
		var typ string
		switch data.Rows[0][i].(type) {
		case time.Time:
			typ = "DATE"
		case decimal.Decimal:
			typ = fmt.Sprintf("DECIMAL(18,%d)", models.PriceScale)
		case int64, null.Int64:
			typ = "BIGINT"
		case string:
			typ = textType
		default:
			return nil, fmt.Errorf("column %s: unsupported type %T", col, data.Rows[0][i])
		}
		defs[i] = col + " " + typ
	}
	return defs, nil
}

func checkShape(data Table) error {
	for i, row := range data.Rows {
		if len(row) != len(data.Columns) {
			return fmt.Errorf("row %d has %d values, expected %d", i, len(row), len(data.Columns))
		}
	}
	return nil
}
