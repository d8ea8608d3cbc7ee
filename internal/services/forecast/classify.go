package forecast

// Recommendation is the trading signal derived from the forecast percent change.
type Recommendation struct {
	Label string
	Color string
}

const (
	StrongBuy  = "STRONG BUY"
	Buy        = "BUY"
	Hold       = "HOLD"
	Sell       = "SELL"
	StrongSell = "STRONG SELL"
)

// Classify maps a percent change onto five half-open bands; exact band edges fall to the lower band.
func Classify(pct float64) Recommendation {
	switch {
	case pct > 10:
		return Recommendation{Label: StrongBuy, Color: "green-strong"}
	case pct > 5:
		return Recommendation{Label: Buy, Color: "green"}
	case pct > -5:
		return Recommendation{Label: Hold, Color: "amber"}
	case pct > -10:
		return Recommendation{Label: Sell, Color: "orange"}
	default:
		return Recommendation{Label: StrongSell, Color: "red"}
	}
}
