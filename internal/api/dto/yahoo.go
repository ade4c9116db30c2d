package dto

// YahooChartResponse mirrors the chart endpoint payload, trimmed to the
// fields ingestion reads.
type YahooChartResponse struct {
	Chart struct {
		Result []YahooChartResult `json:"result"`
		Error  *YahooChartError   `json:"error"`
	} `json:"chart"`
}

// YahooChartError is the provider-side error envelope.
type YahooChartError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

// YahooChartResult is one symbol's chart data.
type YahooChartResult struct {
	Meta struct {
		Symbol    string `json:"symbol"`
		LongName  string `json:"longName"`
		ShortName string `json:"shortName"`
	} `json:"meta"`
	Timestamp  []int64 `json:"timestamp"`
	Indicators struct {
		Quote []YahooQuote `json:"quote"`
	} `json:"indicators"`
}

// YahooQuote holds the parallel OHLCV arrays, indexed like Timestamp.
type YahooQuote struct {
	Open   []*float64 `json:"open"`
	High   []*float64 `json:"high"`
	Low    []*float64 `json:"low"`
	Close  []*float64 `json:"close"`
	Volume []*int64   `json:"volume"`
}
