package repository

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"
	"time"

	"PriceCast/internal/domain/models"
	pkgch "PriceCast/pkg/clickhouse"
	applogger "PriceCast/pkg/logger"
	"PriceCast/pkg/util"
)

var tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// querier is the part of *sql.DB the history store needs.
type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// CHHistory implements MarketDataProvider over a ClickHouse daily-bar table.
type CHHistory struct {
	db    querier
	table string
	l     *applogger.Logger
	now   func() time.Time
}

func NewCHHistory(ch *pkgch.Client, table string, l *applogger.Logger) (*CHHistory, error) {
	return newCHHistory(ch.DB(), table, l)
}

func newCHHistory(db querier, table string, l *applogger.Logger) (*CHHistory, error) {
	if !tableNameRe.MatchString(table) {
		return nil, fmt.Errorf("invalid bars table name %q", table)
	}
	if l == nil {
		l = applogger.NewNop()
	}
	return &CHHistory{db: db, table: table, l: l, now: time.Now}, nil
}

// BarsSchema returns the DDL for the daily-bar table.
func BarsSchema(table string) []string {
	return []string{fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s (
            symbol LowCardinality(String),
            date   Date,
            open   Float64,
            high   Float64,
            low    Float64,
            close  Float64,
            volume Float64
        ) ENGINE = ReplacingMergeTree
        ORDER BY (symbol, date)`, table)}
}

func (s *CHHistory) historyQuery() string {
	return fmt.Sprintf(`
        SELECT date, open, high, low, close, volume
        FROM %s FINAL
        WHERE symbol = ? AND date >= ?
        ORDER BY date ASC`, s.table)
}

func (s *CHHistory) metadataQuery() string {
	return fmt.Sprintf(`
        SELECT count(), argMax(close, date), argMax(volume, date), max(high), min(low)
        FROM %s FINAL
        WHERE symbol = ? AND date >= ?`, s.table)
}

func (s *CHHistory) FetchHistory(ctx context.Context, symbol, period string) (models.PriceSeries, error) {
	start := time.Now()
	from, err := util.PeriodStart(period, s.now())
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, s.historyQuery(), symbol, util.TruncateDay(from))
	if err != nil {
		s.l.Error("clickhouse history query error",
			applogger.String("table", s.table),
			applogger.String("symbol", symbol),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	out := make(models.PriceSeries, 0, 512)
	for rows.Next() {
		var b models.Bar
		if err := rows.Scan(&b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("scan bar: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	s.l.Debug("clickhouse history ok",
		applogger.String("symbol", symbol),
		applogger.String("period", period),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}

// FetchMetadata derives what the bar table can tell: last close and volume
// plus the 52-week range. Descriptive fields stay nil.
func (s *CHHistory) FetchMetadata(ctx context.Context, symbol string) (models.StockInfo, error) {
	info := models.StockInfo{Symbol: symbol, Ticker: symbol}
	from := util.TruncateDay(s.now().AddDate(-1, 0, 0))

	var (
		n                 uint64
		last, vol, hi, lo float64
	)
	err := s.db.QueryRowContext(ctx, s.metadataQuery(), symbol, from).Scan(&n, &last, &vol, &hi, &lo)
	if err != nil {
		return info, fmt.Errorf("query metadata: %w", err)
	}
	if n == 0 {
		return info, nil
	}
	v := int64(vol)
	info.CurrentPrice = &last
	info.Volume = &v
	info.FiftyTwoWeekHigh = &hi
	info.FiftyTwoWeekLow = &lo
	return info, nil
}

// StoreBars upserts bars for one symbol. Rows are sent in chunks of
// multi-row VALUES to keep round-trips low.
func (s *CHHistory) StoreBars(ctx context.Context, symbol string, bars models.PriceSeries) error {
	if len(bars) == 0 {
		return nil
	}
	ex, ok := s.db.(execer)
	if !ok {
		return fmt.Errorf("bars store is read-only")
	}
	const chunkSize = 2000
	for start := 0; start < len(bars); start += chunkSize {
		end := start + chunkSize
		if end > len(bars) {
			end = len(bars)
		}
		values := make([]string, 0, end-start)
		args := make([]any, 0, (end-start)*7)
		for _, b := range bars[start:end] {
			if b.Date.IsZero() {
				continue
			}
			values = append(values, "(?, ?, ?, ?, ?, ?, ?)")
			args = append(args, symbol, util.TruncateDay(b.Date), b.Open, b.High, b.Low, b.Close, b.Volume)
		}
		if len(values) == 0 {
			continue
		}
		q := fmt.Sprintf("INSERT INTO %s (symbol, date, open, high, low, close, volume) VALUES %s",
			s.table, strings.Join(values, ","))
		if _, err := ex.ExecContext(ctx, q, args...); err != nil {
			return fmt.Errorf("insert bars: %w", err)
		}
	}
	return nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}
