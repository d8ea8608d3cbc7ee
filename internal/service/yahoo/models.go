package yahoo

// chartResponse mirrors the subset of the v8 chart payload we read.
// Price arrays hold nulls for halted or missing sessions.
type chartResponse struct {
	Chart struct {
		Result []chartResult `json:"result"`
		Error  *chartError   `json:"error"`
	} `json:"chart"`
}

type chartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type chartResult struct {
	Meta       chartMeta `json:"meta"`
	Timestamp  []int64   `json:"timestamp"`
	Indicators struct {
		Quote []struct {
			Open   []*float64 `json:"open"`
			High   []*float64 `json:"high"`
			Low    []*float64 `json:"low"`
			Close  []*float64 `json:"close"`
			Volume []*float64 `json:"volume"`
		} `json:"quote"`
	} `json:"indicators"`
}

type chartMeta struct {
	Currency             string   `json:"currency"`
	Symbol               string   `json:"symbol"`
	ExchangeTimezoneName string   `json:"exchangeTimezoneName"`
	InstrumentType       string   `json:"instrumentType"`
	LongName             string   `json:"longName"`
	ShortName            string   `json:"shortName"`
	RegularMarketPrice   *float64 `json:"regularMarketPrice"`
	RegularMarketVolume  *int64   `json:"regularMarketVolume"`
	FiftyTwoWeekHigh     *float64 `json:"fiftyTwoWeekHigh"`
	FiftyTwoWeekLow      *float64 `json:"fiftyTwoWeekLow"`
}
