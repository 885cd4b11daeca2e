package repository

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	"MarketPulse/internal/domain/models"
	domrepo "MarketPulse/internal/domain/repository"
	pkgch "MarketPulse/pkg/clickhouse"
	applogger "MarketPulse/pkg/logger"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// CHBarStore is a read-only BarSource over a ClickHouse candles table:
//
//	bucket DateTime, symbol String, interval String, open, high, low, close, volume Float64
//
// Daily bars use interval "daily"; intraday bars use the timeframe token.
type CHBarStore struct {
	db    *sql.DB
	table string
	l     *applogger.Logger
}

func NewCHBarStore(ch *pkgch.Client, table string, l *applogger.Logger) (*CHBarStore, error) {
	if table == "" {
		table = "candles"
	}
	if !identRe.MatchString(table) {
		return nil, fmt.Errorf("invalid clickhouse table name %q", table)
	}
	return &CHBarStore{db: ch.DB(), table: table, l: l}, nil
}

func (s *CHBarStore) DailyBars(ctx context.Context, symbol string, n int) ([]models.Bar, error) {
	return s.latest(ctx, symbol, domrepo.TFDaily, n)
}

func (s *CHBarStore) IntradayBars(ctx context.Context, symbol string, tf domrepo.Timeframe, n int) ([]models.Bar, error) {
	if !tf.IsIntraday() {
		return nil, fmt.Errorf("clickhouse bars: %q is not an intraday timeframe", tf)
	}
	return s.latest(ctx, symbol, tf, n)
}

func (s *CHBarStore) query() string {
	return fmt.Sprintf(`
        SELECT bucket, open, high, low, close, volume
        FROM %s
        WHERE symbol = ? AND interval = ?
        ORDER BY bucket DESC
        LIMIT ?
    `, s.table)
}

// latest returns the newest n bars, oldest first.
func (s *CHBarStore) latest(ctx context.Context, symbol string, tf domrepo.Timeframe, n int) ([]models.Bar, error) {
	if n <= 0 {
		return nil, nil
	}
	start := time.Now()
	fail := func(stage string, err error) error {
		s.l.Error("clickhouse bars "+stage+" error",
			applogger.String("table", s.table),
			applogger.String("symbol", symbol),
			applogger.String("tf", string(tf)),
			applogger.Int("limit", n),
			applogger.Error(err),
		)
		return fmt.Errorf("clickhouse bars %s: %w", stage, err)
	}

	rows, err := s.db.QueryContext(ctx, s.query(), symbol, string(tf), n)
	if err != nil {
		return nil, fail("query", err)
	}
	defer rows.Close()

	out := make([]models.Bar, 0, n)
	for rows.Next() {
		b := models.Bar{Symbol: symbol}
		if err := rows.Scan(&b.Time, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fail("scan", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fail("rows", err)
	}
	reverse(out)

	s.l.Debug("clickhouse bars ok",
		applogger.String("symbol", symbol),
		applogger.String("tf", string(tf)),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration", time.Since(start)),
	)
	return out, nil
}

func reverse(bars []models.Bar) {
	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}
}

var _ domrepo.BarSource = (*CHBarStore)(nil)
