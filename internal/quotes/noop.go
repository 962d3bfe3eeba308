package quotes

import (
	"context"
	"fmt"
)

// MissingProvider stands in when no quote source is configured. Fetches
// fail loudly instead of silently returning empty data.
type MissingProvider struct{}

func NewMissingProvider() MissingProvider {
	return MissingProvider{}
}

func (p MissingProvider) FetchQuote(ctx context.Context, symbol string) (Quote, bool, error) {
	return Quote{}, false, fmt.Errorf("quote provider not configured")
}

func (p MissingProvider) FetchBatch(ctx context.Context, symbols []string) (map[string]Quote, error) {
	if len(symbols) == 0 {
		return map[string]Quote{}, nil
	}
	return nil, fmt.Errorf("quote provider not configured")
}
