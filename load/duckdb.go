package load

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/marcboeker/go-duckdb"
	"github.com/rasnes/stock-warehouse-etl/config"
	"github.com/rasnes/stock-warehouse-etl/models"
	"github.com/rasnes/stock-warehouse-etl/schema"
)

const tmpCSVFile = "warehouse-append-*.csv"

type DuckDB struct {
	Logger    *slog.Logger
	DB        *sql.DB
	Connector *duckdb.Connector
	DBType    string
	schema    string
}

func NewDuckDB(config *config.Config, creds config.Credentials, logger *slog.Logger) (*DuckDB, error) {
	var path string
	var dbType string
	if strings.HasPrefix(config.Warehouse.Path, "md:") {
		if creds.MotherDuckToken == "" {
			return nil, fmt.Errorf("MOTHERDUCK_TOKEN env variable is not set")
		}
		path = fmt.Sprintf("%s?motherduck_token=%s", config.Warehouse.Path, creds.MotherDuckToken)
		dbType = ":md:"
	} else if config.Warehouse.Path == "" || config.Warehouse.Path == ":memory:" {
		path = ""
		dbType = ":memory:"
	} else {
		path = config.Warehouse.Path
		dbType = path
	}

	if creds.Schema != "" {
		if err := schema.ValidateIdentifier(creds.Schema); err != nil {
			return nil, fmt.Errorf("WAREHOUSE_SCHEMA: %w", err)
		}
	}

	var connInitFn func(driver.ExecerContext) error
	if len(config.Warehouse.ConnInitFnQueries) > 0 {
		connInitFn = func(exec driver.ExecerContext) error {
			for _, path := range config.Warehouse.ConnInitFnQueries {
				query, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("failed to read file %s: %w", path, err)
				}
				if _, err = exec.ExecContext(context.Background(), string(query), nil); err != nil {
					return fmt.Errorf("failed to execute query from file %s: %w", path, err)
				}
			}
			return nil
		}
		logger.Debug("Connection initialization queries", "files", config.Warehouse.ConnInitFnQueries)
	}

	connector, err := duckdb.NewConnector(path, connInitFn)
	if err != nil {
		return nil, err
	}

	db := sql.OpenDB(connector)

	switch dbType {
	case ":memory:":
		logger.Info("Connected to DuckDB in-memory database")
	case ":md:":
		logger.Info("Connected to MotherDuck database")
	default:
		logger.Info("Connected to local DuckDB database", "path", dbType)
	}

	return &DuckDB{
		Logger:    logger,
		DB:        db,
		Connector: connector,
		DBType:    dbType,
		schema:    creds.Schema,
	}, nil
}

func (db *DuckDB) Close() error {
	return errors.Join(db.DB.Close(), db.Connector.Close())
}

// Session pins one connection and switches it to the configured schema.
func (db *DuckDB) Session(ctx context.Context) (Session, error) {
	conn, err := db.DB.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire DuckDB connection: %w", err)
	}
	if db.schema != "" {
		if _, err := conn.ExecContext(ctx, "USE "+db.schema); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to switch to schema %s: %w", db.schema, err)
		}
	}
	return &duckSession{conn: conn, logger: db.Logger}, nil
}

type duckSession struct {
	conn   *sql.Conn
	logger *slog.Logger
}

func (s *duckSession) Close() error {
	return s.conn.Close()
}

func (s *duckSession) Exec(ctx context.Context, query string) error {
	s.logger.Debug("Executing DuckDB query", "query", query)
	if _, err := s.conn.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to execute query: %w", err)
	}
	return nil
}

func (s *duckSession) HighWaterMarks(ctx context.Context, table string, tickers []string) ([]models.HighWaterMark, error) {
	if len(tickers) == 0 {
		return nil, nil
	}
	query, err := renderQuery("duckdb__high_water_marks", map[string]any{"Table": table, "N": len(tickers)})
	if err != nil {
		return nil, err
	}

	args := make([]any, len(tickers))
	for i, t := range tickers {
		args[i] = strings.ToUpper(t)
	}

	rows, err := s.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query high-water marks from %s: %w", table, err)
	}
	defer rows.Close()

	var marks []models.HighWaterMark
	for rows.Next() {
		var ticker string
		var maxDate sql.NullTime
		if err := rows.Scan(&ticker, &maxDate); err != nil {
			return nil, fmt.Errorf("failed to scan high-water mark: %w", err)
		}
		if !maxDate.Valid {
			continue
		}
		marks = append(marks, models.HighWaterMark{Ticker: ticker, MaxDate: models.Date(maxDate.Time)})
	}
	return marks, rows.Err()
}

func (s *duckSession) ExistingTickers(ctx context.Context, table string) ([]string, error) {
	query, err := renderQuery("duckdb__existing_tickers", map[string]any{"Table": table})
	if err != nil {
		return nil, err
	}

	rows, err := s.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query tickers from %s: %w", table, err)
	}
	defer rows.Close()

	var tickers []string
	for rows.Next() {
		var ticker sql.NullString
		if err := rows.Scan(&ticker); err != nil {
			return nil, fmt.Errorf("failed to scan ticker: %w", err)
		}
		if ticker.Valid {
			tickers = append(tickers, ticker.String)
		}
	}
	return tickers, rows.Err()
}

// Append stages the rows in a temporary CSV file and inserts them by column
// name. Values are read as text and cast to the column types on insert, so
// decimals keep their exact representation.
func (s *duckSession) Append(ctx context.Context, table string, data Table, autoCreate bool) (int64, error) {
	if len(data.Rows) == 0 {
		return 0, nil
	}
	if err := schema.ValidateIdentifier(table); err != nil {
		return 0, err
	}

	exists, err := s.tableExists(ctx, table)
	if err != nil {
		return 0, err
	}
	if !exists {
		if !autoCreate {
			return 0, fmt.Errorf("table %s does not exist", table)
		}
		if err := s.createTable(ctx, table, data); err != nil {
			return 0, err
		}
	}

	csv, err := EncodeCSV(data)
	if err != nil {
		return 0, err
	}
	tmpFile, err := createTmpFile(csv)
	if err != nil {
		return 0, err
	}
	defer os.Remove(tmpFile)

	query, err := renderQuery("duckdb__append", map[string]any{
		"Table":   table,
		"Columns": data.Columns,
		"CsvFile": strings.ReplaceAll(tmpFile, "'", "''"),
	})
	if err != nil {
		return 0, err
	}

	start := time.Now()
	if err := s.Exec(ctx, query); err != nil {
		return 0, fmt.Errorf("failed to append to %s: %w", table, err)
	}
	s.logger.Debug("Appended rows", "table", table, "rows", len(data.Rows), "duration", time.Since(start))

	return int64(len(data.Rows)), nil
}

func (s *duckSession) tableExists(ctx context.Context, table string) (bool, error) {
	schemaName, name := splitTable(table)
	query, err := renderQuery("duckdb__table_exists", map[string]any{"Schema": schemaName})
	if err != nil {
		return false, err
	}

	args := []any{name}
	if schemaName != "" {
		// Only the last qualifier is the schema; a leading database name is ignored.
		_, last := splitTable(schemaName)
		args = append(args, last)
	}

	var count int64
	if err := s.conn.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, fmt.Errorf("failed to check whether %s exists: %w", table, err)
	}
	return count > 0, nil
}

func (s *duckSession) createTable(ctx context.Context, table string, data Table) error {
	defs, err := columnDefs(data, "VARCHAR")
	if err != nil {
		return err
	}
	query, err := renderQuery("create_table", map[string]any{"Table": table, "Columns": defs})
	if err != nil {
		return err
	}
	s.logger.Info("Creating missing table", "table", table)
	return s.Exec(ctx, query)
}

// createTmpFile writes csv to a temporary file and returns its path.
func createTmpFile(csv []byte) (string, error) {
	if len(csv) == 0 {
		return "", fmt.Errorf("received empty CSV data")
	}

	tmpFile, err := os.CreateTemp("", tmpCSVFile)
	if err != nil {
		return "", fmt.Errorf("failed to create temporary file: %w", err)
	}

	if _, err := tmpFile.Write(csv); err != nil {
		tmpFile.Close()
		os.Remove(tmpFile.Name())
		return "", fmt.Errorf("failed to write to temporary file: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		os.Remove(tmpFile.Name())
		return "", fmt.Errorf("failed to close temporary file: %w", err)
	}

	return tmpFile.Name(), nil
}
