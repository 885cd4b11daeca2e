package repository

import (
	"context"

	"MarketPulse/internal/domain/models"
)

// BarSource provides read-only OHLCV history, oldest bar first.
type BarSource interface {
	DailyBars(ctx context.Context, symbol string, n int) ([]models.Bar, error)
	IntradayBars(ctx context.Context, symbol string, tf Timeframe, n int) ([]models.Bar, error)
}

// MarketClock reports the current trading session, upper-cased ("OPEN", "CLOSED", "PREMARKET", ...).
type MarketClock interface {
	Session(ctx context.Context) (string, error)
}
