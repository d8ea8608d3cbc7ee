package models

// StockInfo is best-effort instrument metadata. A nil field means the provider
// did not report it; Resolve turns the structure into display values.
type StockInfo struct {
	Symbol           string   `json:"symbol"`
	Ticker           string   `json:"real_ticker"`
	Name             *string  `json:"name,omitempty"`
	Sector           *string  `json:"sector,omitempty"`
	Currency         *string  `json:"currency,omitempty"`
	CurrentPrice     *float64 `json:"current_price,omitempty"`
	MarketCap        *float64 `json:"market_cap,omitempty"`
	PERatio          *float64 `json:"pe_ratio,omitempty"`
	FiftyTwoWeekHigh *float64 `json:"fifty_two_week_high,omitempty"`
	FiftyTwoWeekLow  *float64 `json:"fifty_two_week_low,omitempty"`
	Volume           *int64   `json:"volume,omitempty"`
}

// ResolvedStockInfo has every field filled with a display value.
type ResolvedStockInfo struct {
	Symbol           string  `json:"symbol"`
	Ticker           string  `json:"real_ticker"`
	Name             string  `json:"name"`
	Sector           string  `json:"sector"`
	Currency         string  `json:"currency"`
	CurrentPrice     float64 `json:"current_price"`
	MarketCap        float64 `json:"market_cap"`
	PERatio          float64 `json:"pe_ratio"`
	FiftyTwoWeekHigh float64 `json:"fifty_two_week_high"`
	FiftyTwoWeekLow  float64 `json:"fifty_two_week_low"`
	Volume           int64   `json:"volume"`
}

// Resolve applies defaults for every missing field.
func (s StockInfo) Resolve() ResolvedStockInfo {
	r := ResolvedStockInfo{
		Symbol:   s.Symbol,
		Ticker:   s.Ticker,
		Name:     strOr(s.Name, s.Symbol),
		Sector:   strOr(s.Sector, "Unknown"),
		Currency: strOr(s.Currency, "USD"),
	}
	if r.Ticker == "" {
		r.Ticker = s.Symbol
	}
	r.CurrentPrice = floatOr(s.CurrentPrice)
	r.MarketCap = floatOr(s.MarketCap)
	r.PERatio = floatOr(s.PERatio)
	r.FiftyTwoWeekHigh = floatOr(s.FiftyTwoWeekHigh)
	r.FiftyTwoWeekLow = floatOr(s.FiftyTwoWeekLow)
	if s.Volume != nil {
		r.Volume = *s.Volume
	}
	return r
}

func strOr(p *string, def string) string {
	if p == nil || *p == "" {
		return def
	}
	return *p
}

func floatOr(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
