package load

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/guregu/null/v6"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rasnes/stock-warehouse-etl/config"
	"github.com/rasnes/stock-warehouse-etl/models"
	"github.com/rasnes/stock-warehouse-etl/schema"
	"github.com/shopspring/decimal"
)

// Postgres is a warehouse backed by a pgx connection pool. Unquoted
// identifiers fold to lower case, so table and column names are lowered
// before they reach COPY.
type Postgres struct {
	Logger *slog.Logger
	Pool   *pgxpool.Pool
}

// NewPostgres connects using warehouse.path as the DSN. Credentials from the
// environment override the DSN: account is host[:port], and user, password
// and database replace their DSN counterparts.
func NewPostgres(ctx context.Context, cfg *config.Config, creds config.Credentials, logger *slog.Logger) (*Postgres, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.Warehouse.Path)
	if err != nil {
		return nil, fmt.Errorf("invalid postgres DSN: %w", err)
	}

	if creds.Account != "" {
		host, port, err := net.SplitHostPort(creds.Account)
		if err != nil {
			host, port = creds.Account, ""
		}
		poolCfg.ConnConfig.Host = host
		if port != "" {
			p, err := strconv.ParseUint(port, 10, 16)
			if err != nil {
				return nil, fmt.Errorf("WAREHOUSE_ACCOUNT: invalid port %q", port)
			}
			poolCfg.ConnConfig.Port = uint16(p)
		}
	}
	if creds.User != "" {
		poolCfg.ConnConfig.User = creds.User
	}
	if creds.Password != "" {
		poolCfg.ConnConfig.Password = creds.Password
	}
	if creds.Database != "" {
		poolCfg.ConnConfig.Database = creds.Database
	}
	if creds.Schema != "" {
		if err := schema.ValidateIdentifier(creds.Schema); err != nil {
			return nil, fmt.Errorf("WAREHOUSE_SCHEMA: %w", err)
		}
		poolCfg.ConnConfig.RuntimeParams["search_path"] = creds.Schema
	}
	if creds.Role != "" {
		if err := schema.ValidateIdentifier(creds.Role); err != nil {
			return nil, fmt.Errorf("WAREHOUSE_ROLE: %w", err)
		}
		role := creds.Role
		poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			_, err := conn.Exec(ctx, "SET ROLE "+role)
			return err
		}
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	logger.Info("Connected to Postgres database", "host", poolCfg.ConnConfig.Host, "database", poolCfg.ConnConfig.Database)

	return &Postgres{Logger: logger, Pool: pool}, nil
}

func (p *Postgres) Close() error {
	p.Pool.Close()
	return nil
}

func (p *Postgres) Session(ctx context.Context) (Session, error) {
	conn, err := p.Pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire postgres connection: %w", err)
	}
	return &pgSession{conn: conn, logger: p.Logger}, nil
}

type pgSession struct {
	conn   *pgxpool.Conn
	logger *slog.Logger
}

func (s *pgSession) Close() error {
	s.conn.Release()
	return nil
}

func (s *pgSession) Exec(ctx context.Context, query string) error {
	s.logger.Debug("Executing Postgres query", "query", query)
	if _, err := s.conn.Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to execute query: %w", err)
	}
	return nil
}

func (s *pgSession) HighWaterMarks(ctx context.Context, table string, tickers []string) ([]models.HighWaterMark, error) {
	if len(tickers) == 0 {
		return nil, nil
	}
	query, err := renderQuery("postgres__high_water_marks", map[string]any{"Table": table})
	if err != nil {
		return nil, err
	}

	upper := make([]string, len(tickers))
	for i, t := range tickers {
		upper[i] = strings.ToUpper(t)
	}

	rows, err := s.conn.Query(ctx, query, upper)
	if err != nil {
		return nil, fmt.Errorf("failed to query high-water marks from %s: %w", table, err)
	}

	marks, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.HighWaterMark, error) {
		var ticker string
		var maxDate pgtype.Date
		if err := row.Scan(&ticker, &maxDate); err != nil {
			return models.HighWaterMark{}, err
		}
		return models.HighWaterMark{Ticker: ticker, MaxDate: models.Date(maxDate.Time)}, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan high-water marks: %w", err)
	}
	return marks, nil
}

func (s *pgSession) ExistingTickers(ctx context.Context, table string) ([]string, error) {
	query, err := renderQuery("postgres__existing_tickers", map[string]any{"Table": table})
	if err != nil {
		return nil, err
	}

	rows, err := s.conn.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query tickers from %s: %w", table, err)
	}
	tickers, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("failed to scan tickers: %w", err)
	}
	return tickers, nil
}

// Append writes the rows with COPY FROM.
func (s *pgSession) Append(ctx context.Context, table string, data Table, autoCreate bool) (int64, error) {
	if len(data.Rows) == 0 {
		return 0, nil
	}
	if err := schema.ValidateIdentifier(table); err != nil {
		return 0, err
	}
	if err := checkShape(data); err != nil {
		return 0, err
	}

	var exists bool
	query, err := renderQuery("postgres__table_exists", nil)
	if err != nil {
		return 0, err
	}
	if err := s.conn.QueryRow(ctx, query, strings.ToLower(table)).Scan(&exists); err != nil {
		return 0, fmt.Errorf("failed to check whether %s exists: %w", table, err)
	}
	if !exists {
		if !autoCreate {
			return 0, fmt.Errorf("table %s does not exist", table)
		}
		defs, err := columnDefs(data, "TEXT")
		if err != nil {
			return 0, err
		}
		ddl, err := renderQuery("create_table", map[string]any{"Table": table, "Columns": defs})
		if err != nil {
			return 0, err
		}
		s.logger.Info("Creating missing table", "table", table)
		if err := s.Exec(ctx, ddl); err != nil {
			return 0, err
		}
	}

	columns := make([]string, len(data.Columns))
	for i, c := range data.Columns {
		columns[i] = strings.ToLower(c)
	}
	rows := make([][]any, len(data.Rows))
	for i, row := range data.Rows {
		converted := make([]any, len(row))
		for j, v := range row {
			converted[j] = pgValue(v)
		}
		rows[i] = converted
	}

	n, err := s.conn.CopyFrom(ctx, pgx.Identifier(strings.Split(strings.ToLower(table), ".")), columns, pgx.CopyFromRows(rows))
	if err != nil {
		return 0, fmt.Errorf("failed to append to %s: %w", table, err)
	}
	return n, nil
}

// pgValue maps row values onto pgtype values with exact numerics.
func pgValue(v any) any {
	switch v := v.(type) {
	case time.Time:
		return pgtype.Date{Time: models.Date(v), Valid: true}
	case decimal.Decimal:
		return pgtype.Numeric{Int: v.Coefficient(), Exp: v.Exponent(), Valid: true}
	case null.Int64:
		return pgtype.Int8{Int64: v.Int64, Valid: v.Valid}
	default:
		return v
	}
}
