package quotes

import (
	"strings"

	"papertrade/internal/config"
)

func NewFromConfig(cfg config.Config) Provider {
	name := strings.TrimSpace(strings.ToLower(cfg.QuoteProviderName))
	switch name {
	case "finnhub":
		return NewFinnhubProvider(cfg.QuoteProviderBaseURL, cfg.QuoteProviderAPIKey)
	default:
		return NewMissingProvider()
	}
}
