package usecase

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"PriceCast/internal/domain/models"
	domrepo "PriceCast/internal/domain/repository"
	"PriceCast/internal/services/features"
	"PriceCast/internal/services/forecast"
	applogger "PriceCast/pkg/logger"
	"PriceCast/pkg/util"
)

const (
	snapshotPoints   = 30
	volatilityWindow = 20
	tradingDays      = 252
)

// StockUseCase serves current-state snapshots of an instrument.
type StockUseCase struct {
	provider domrepo.MarketDataProvider
	aliases  map[string]string
	l        *applogger.Logger
}

func NewStockUseCase(provider domrepo.MarketDataProvider, aliases map[string]string, l *applogger.Logger) *StockUseCase {
	if l == nil {
		l = applogger.NewNop()
	}
	return &StockUseCase{provider: provider, aliases: aliases, l: l}
}

type StockSnapshot struct {
	Symbol        string
	Ticker        string
	CurrentPrice  float64
	Open          float64
	High          float64
	Low           float64
	Change        float64
	ChangePercent float64
	// Volatility is annualized over the last 20 daily log returns; 0 when history is shorter.
	Volatility float64
	Dates      []time.Time
	Closes     []float64
	Volumes    []float64
	Info       models.ResolvedStockInfo
}

func (uc *StockUseCase) GetStock(ctx context.Context, symbol, period string) (*StockSnapshot, error) {
	sym := util.NormalizeSymbol(symbol)
	if sym == "" {
		return nil, fmt.Errorf("symbol required")
	}
	ticker := util.ResolveAlias(sym, uc.aliases)

	series, err := uc.provider.FetchHistory(ctx, ticker, period)
	if err != nil {
		return nil, fmt.Errorf("fetch history for %s: %w", ticker, err)
	}
	last, ok := series.Last()
	if !ok {
		return nil, &forecast.DataUnavailableError{Symbol: sym}
	}

	snap := &StockSnapshot{
		Symbol:       sym,
		Ticker:       ticker,
		CurrentPrice: last.Close,
		Open:         last.Open,
		High:         last.High,
		Low:          last.Low,
	}
	if len(series) >= 2 {
		prev := series[len(series)-2].Close
		snap.Change = last.Close - prev
		if prev != 0 {
			snap.ChangePercent = snap.Change / prev * 100
		}
	}
	closes := series.Closes()
	snap.Volatility = features.RealizedVolatility(features.ComputeLogReturns(closes), volatilityWindow, tradingDays)

	for _, b := range series.Tail(snapshotPoints) {
		snap.Dates = append(snap.Dates, b.Date)
		snap.Closes = append(snap.Closes, b.Close)
		snap.Volumes = append(snap.Volumes, b.Volume)
	}

	info, err := uc.provider.FetchMetadata(ctx, ticker)
	if err != nil {
		uc.l.Warn("metadata fetch failed", applogger.String("ticker", ticker), applogger.Error(err))
		info = models.StockInfo{}
	}
	info.Symbol = sym
	info.Ticker = ticker
	if info.CurrentPrice == nil {
		info.CurrentPrice = &last.Close
	}
	snap.Info = info.Resolve()
	return snap, nil
}

// DefaultOverviewSymbols are listed by the market overview when none are configured.
var DefaultOverviewSymbols = []string{"AAPL", "MSFT", "GOOGL", "AMZN", "TSLA", "META", "NVDA", "JPM", "JNJ", "XOM"}

type OverviewEntry struct {
	Symbol        string
	Name          string
	Sector        string
	Price         float64
	Change        float64
	ChangePercent float64
	Volume        int64
	MarketCap     float64
}

// Overview summarizes symbols from their last five days. Symbols that fail
// are left out; the order of symbols is kept.
func (uc *StockUseCase) Overview(ctx context.Context, symbols []string) ([]OverviewEntry, error) {
	entries := make([]*OverviewEntry, len(symbols))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, s := range symbols {
		g.Go(func() error {
			e, err := uc.overviewEntry(gctx, s)
			if err != nil {
				uc.l.Debug("overview symbol skipped", applogger.String("symbol", s), applogger.Error(err))
				return nil
			}
			entries[i] = e
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]OverviewEntry, 0, len(entries))
	for _, e := range entries {
		if e != nil {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (uc *StockUseCase) overviewEntry(ctx context.Context, symbol string) (*OverviewEntry, error) {
	sym := util.NormalizeSymbol(symbol)
	ticker := util.ResolveAlias(sym, uc.aliases)
	series, err := uc.provider.FetchHistory(ctx, ticker, "5d")
	if err != nil {
		return nil, err
	}
	last, ok := series.Last()
	if !ok {
		return nil, &forecast.DataUnavailableError{Symbol: sym}
	}
	prev := last.Close
	if len(series) > 1 {
		prev = series[len(series)-2].Close
	}
	e := &OverviewEntry{Symbol: sym, Price: last.Close, Change: last.Close - prev}
	if prev != 0 {
		e.ChangePercent = e.Change / prev * 100
	}
	info, err := uc.provider.FetchMetadata(ctx, ticker)
	if err != nil {
		info = models.StockInfo{}
	}
	info.Symbol = sym
	r := info.Resolve()
	e.Name, e.Sector, e.Volume, e.MarketCap = r.Name, r.Sector, r.Volume, r.MarketCap
	return e, nil
}
