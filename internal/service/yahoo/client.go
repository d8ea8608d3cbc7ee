package yahoo

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"time"

	"PriceCast/internal/domain/models"
	xhttp "PriceCast/pkg/http"
	"PriceCast/pkg/logger"
)

const DefaultBaseURL = "https://query1.finance.yahoo.com"

// Client implements repository.MarketDataProvider on the Yahoo Finance chart API.
type Client struct {
	baseURL string
	http    *xhttp.Client
	log     *logger.Logger
}

func New(baseURL string, timeout time.Duration, log *logger.Logger) *Client {
	return NewWithHTTPClient(baseURL, xhttp.NewClient(xhttp.WithTimeout(timeout)), log)
}

func NewWithHTTPClient(baseURL string, hc *xhttp.Client, log *logger.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Client{baseURL: baseURL, http: hc, log: log}
}

// FetchHistory returns daily bars for period, oldest first. Sessions with a
// null close are skipped. An unknown symbol yields an empty series.
func (c *Client) FetchHistory(ctx context.Context, symbol, period string) (models.PriceSeries, error) {
	res, err := c.chart(ctx, symbol, period)
	if err != nil || res == nil {
		return nil, err
	}
	if len(res.Indicators.Quote) == 0 {
		return nil, nil
	}
	q := res.Indicators.Quote[0]
	loc := time.UTC
	if tz, lerr := time.LoadLocation(res.Meta.ExchangeTimezoneName); lerr == nil && res.Meta.ExchangeTimezoneName != "" {
		loc = tz
	}

	out := make(models.PriceSeries, 0, len(res.Timestamp))
	for i, ts := range res.Timestamp {
		cl := at(q.Close, i)
		if cl == nil {
			continue
		}
		bar := models.Bar{Date: time.Unix(ts, 0).In(loc), Close: *cl}
		bar.Open = valueOr(at(q.Open, i), *cl)
		bar.High = valueOr(at(q.High, i), *cl)
		bar.Low = valueOr(at(q.Low, i), *cl)
		bar.Volume = valueOr(at(q.Volume, i), 0)
		out = append(out, bar)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

// FetchMetadata reads the chart meta block. Fields Yahoo omits stay nil.
func (c *Client) FetchMetadata(ctx context.Context, symbol string) (models.StockInfo, error) {
	info := models.StockInfo{Symbol: symbol, Ticker: symbol}
	res, err := c.chart(ctx, symbol, "5d")
	if err != nil {
		return info, err
	}
	if res == nil {
		return info, nil
	}
	m := res.Meta
	if name := firstNonEmpty(m.LongName, m.ShortName); name != "" {
		info.Name = &name
	}
	if m.Currency != "" {
		cur := m.Currency
		info.Currency = &cur
	}
	if m.InstrumentType != "" && m.InstrumentType != "EQUITY" {
		kind := m.InstrumentType
		info.Sector = &kind
	}
	info.CurrentPrice = m.RegularMarketPrice
	info.FiftyTwoWeekHigh = m.FiftyTwoWeekHigh
	info.FiftyTwoWeekLow = m.FiftyTwoWeekLow
	info.Volume = m.RegularMarketVolume
	return info, nil
}

func (c *Client) chart(ctx context.Context, symbol, period string) (*chartResult, error) {
	var resp chartResponse
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.baseURL + "/v8/finance/chart/" + url.PathEscape(symbol),
		QueryParams: map[string][]string{
			"range":    {period},
			"interval": {"1d"},
			"events":   {"history"},
		},
	}, &resp)
	if err != nil {
		var se *xhttp.StatusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			c.log.Debug("yahoo symbol not found", logger.String("symbol", symbol))
			return nil, nil
		}
		return nil, fmt.Errorf("yahoo chart %s: %w", symbol, err)
	}
	if resp.Chart.Error != nil {
		c.log.Debug("yahoo chart error",
			logger.String("symbol", symbol),
			logger.String("code", resp.Chart.Error.Code),
			logger.String("description", resp.Chart.Error.Description),
		)
		return nil, nil
	}
	if len(resp.Chart.Result) == 0 {
		return nil, nil
	}
	return &resp.Chart.Result[0], nil
}

func at(xs []*float64, i int) *float64 {
	if i < len(xs) {
		return xs[i]
	}
	return nil
}

func valueOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}

func firstNonEmpty(ss ...string) string {
	for _, s := range ss {
		if s != "" {
			return s
		}
	}
	return ""
}
