package dto

// HoldingResponse is one valued holding in the portfolio payload.
type HoldingResponse struct {
	Ticker         string  `json:"ticker"`
	Name           string  `json:"name"`
	Qty            int     `json:"qty"`
	Price          float64 `json:"price"`
	DailyChangePct float64 `json:"dailyChangePct"`
	Value          float64 `json:"value"`
}

// PortfolioResponse is the body of GET /portfolio.
type PortfolioResponse struct {
	Holdings   []HoldingResponse `json:"holdings"`
	TotalValue float64           `json:"totalValue"`
}
