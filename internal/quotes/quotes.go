// Package quotes wraps external market-data sources. Quotes are best
// effort: a symbol the source does not know is a normal absent result,
// never an error.
package quotes

import "context"

type Quote struct {
	Symbol        string
	CurrentPrice  float64
	PreviousClose float64
	High          float64
	Low           float64
	Open          float64
	Volume        int64
}

type Provider interface {
	// FetchQuote returns the quote for one symbol, or ok=false when the
	// source has no data for it.
	FetchQuote(ctx context.Context, symbol string) (Quote, bool, error)

	// FetchBatch returns quotes keyed by symbol. Symbols without data are
	// simply absent from the map. Per-symbol failures never abort the
	// batch; any errors are joined and returned alongside the partial map.
	FetchBatch(ctx context.Context, symbols []string) (map[string]Quote, error)
}
