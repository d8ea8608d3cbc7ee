package models

// Requests for the forecast HTTP endpoints. Defined in domain for consistency and reuse.

type PredictRequest struct {
	Symbol string `param:"symbol" json:"symbol" validate:"required,max=16"`
	Days   int    `query:"days" json:"days" default:"90" validate:"gte=1,lte=365"`
}

type StockRequest struct {
	Symbol string `param:"symbol" json:"symbol" validate:"required,max=16"`
	Period string `query:"period" json:"period" default:"1mo" validate:"oneof=5d 1mo 3mo 6mo 1y 2y"`
}
