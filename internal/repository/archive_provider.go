package repository

import (
	"context"
	"time"

	"PriceCast/internal/domain/models"
	domainrepo "PriceCast/internal/domain/repository"
	applogger "PriceCast/pkg/logger"
)

// BarStore persists daily bars.
type BarStore interface {
	StoreBars(ctx context.Context, symbol string, bars models.PriceSeries) error
}

// ArchivingProvider copies every history fetched from an upstream provider
// into a bar store. Archive failures are logged and never reach the caller.
type ArchivingProvider struct {
	next    domainrepo.MarketDataProvider
	store   BarStore
	l       *applogger.Logger
	timeout time.Duration
}

func NewArchivingProvider(next domainrepo.MarketDataProvider, store BarStore, l *applogger.Logger) *ArchivingProvider {
	if l == nil {
		l = applogger.NewNop()
	}
	return &ArchivingProvider{next: next, store: store, l: l, timeout: 10 * time.Second}
}

func (p *ArchivingProvider) FetchHistory(ctx context.Context, symbol, period string) (models.PriceSeries, error) {
	bars, err := p.next.FetchHistory(ctx, symbol, period)
	if err != nil || len(bars) == 0 {
		return bars, err
	}
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
	defer cancel()
	if serr := p.store.StoreBars(sctx, symbol, bars); serr != nil {
		p.l.Warn("archive bars failed",
			applogger.String("symbol", symbol),
			applogger.Int("bars", len(bars)),
			applogger.Error(serr),
		)
	}
	return bars, nil
}

func (p *ArchivingProvider) FetchMetadata(ctx context.Context, symbol string) (models.StockInfo, error) {
	return p.next.FetchMetadata(ctx, symbol)
}
