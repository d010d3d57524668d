package model

// Instrument is the immutable catalog entry for one tradable pair.
// Loaded once from the exchange catalog and never mutated afterwards.
type Instrument struct {
	Symbol     string `json:"symbol"`
	BaseAsset  string `json:"base_asset"`
	QuoteAsset string `json:"quote_asset"`
	Tradable   bool   `json:"tradable"`
}
