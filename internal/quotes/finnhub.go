package quotes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

const finnhubDefaultBaseURL = "https://finnhub.io/api/v1"

// batchWorkers bounds the fan-out of FetchBatch so a large catalog cannot
// open an unbounded number of connections to the quote source.
const batchWorkers = 4

type FinnhubProvider struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

type finnhubQuoteResponse struct {
	Current       float64 `json:"c"`
	High          float64 `json:"h"`
	Low           float64 `json:"l"`
	Open          float64 `json:"o"`
	PreviousClose float64 `json:"pc"`
	Volume        int64   `json:"v"`
}

func NewFinnhubProvider(baseURL, apiKey string) *FinnhubProvider {
	resolvedBaseURL := strings.TrimRight(baseURL, "/")
	if resolvedBaseURL == "" {
		resolvedBaseURL = finnhubDefaultBaseURL
	}

	return &FinnhubProvider{
		baseURL: resolvedBaseURL,
		apiKey:  apiKey,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (p *FinnhubProvider) FetchQuote(ctx context.Context, symbol string) (Quote, bool, error) {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return Quote{}, false, nil
	}
	if p.apiKey == "" {
		return Quote{}, false, fmt.Errorf("finnhub api key is not set")
	}

	endpoint, err := url.Parse(p.baseURL + "/quote")
	if err != nil {
		return Quote{}, false, err
	}

	query := endpoint.Query()
	query.Set("symbol", symbol)
	query.Set("token", p.apiKey)
	endpoint.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return Quote{}, false, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return Quote{}, false, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return Quote{}, false, fmt.Errorf("finnhub error: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload finnhubQuoteResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return Quote{}, false, err
	}

	// Finnhub reports unknown symbols as an all-zero quote body.
	if payload.Current == 0 {
		return Quote{}, false, nil
	}

	return Quote{
		Symbol:        symbol,
		CurrentPrice:  payload.Current,
		PreviousClose: payload.PreviousClose,
		High:          payload.High,
		Low:           payload.Low,
		Open:          payload.Open,
		Volume:        payload.Volume,
	}, true, nil
}

func (p *FinnhubProvider) FetchBatch(ctx context.Context, symbols []string) (map[string]Quote, error) {
	deduped := normalizeSymbols(symbols)
	if len(deduped) == 0 {
		return map[string]Quote{}, nil
	}

	var (
		mu   sync.Mutex
		wg   sync.WaitGroup
		out  = make(map[string]Quote, len(deduped))
		errs []error
		sem  = make(chan struct{}, batchWorkers)
	)

	for _, symbol := range deduped {
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			quote, ok, err := p.FetchQuote(ctx, symbol)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", symbol, err))
				return
			}
			if ok {
				out[symbol] = quote
			}
		}(symbol)
	}
	wg.Wait()

	return out, errors.Join(errs...)
}

func normalizeSymbols(symbols []string) []string {
	seen := make(map[string]struct{}, len(symbols))
	out := make([]string, 0, len(symbols))
	for _, symbol := range symbols {
		symbol = strings.ToUpper(strings.TrimSpace(symbol))
		if symbol == "" {
			continue
		}
		if _, ok := seen[symbol]; ok {
			continue
		}
		seen[symbol] = struct{}{}
		out = append(out, symbol)
	}
	return out
}
