package quotes

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"sync/atomic"
	"testing"
)

func finnhubFixture(t *testing.T, responses map[string]string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/quote" {
			http.NotFound(w, r)
			return
		}
		if r.URL.Query().Get("token") == "" {
			http.Error(w, `{"error":"missing token"}`, http.StatusUnauthorized)
			return
		}
		body, ok := responses[r.URL.Query().Get("symbol")]
		if !ok {
			// Unknown symbols come back as an all-zero quote, not an error.
			body = `{"c":0,"h":0,"l":0,"o":0,"pc":0,"v":0}`
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestFetchQuote(t *testing.T) {
	t.Parallel()

	server := finnhubFixture(t, map[string]string{
		"AAPL": `{"c":150.25,"h":152.1,"l":149.8,"o":151,"pc":148.5,"v":52000000}`,
	})
	provider := NewFinnhubProvider(server.URL, "test-key")

	quote, ok, err := provider.FetchQuote(context.Background(), "aapl")
	if err != nil {
		t.Fatalf("FetchQuote: %v", err)
	}
	if !ok {
		t.Fatal("expected a quote")
	}

	want := Quote{
		Symbol:        "AAPL",
		CurrentPrice:  150.25,
		PreviousClose: 148.5,
		High:          152.1,
		Low:           149.8,
		Open:          151,
		Volume:        52000000,
	}
	if !reflect.DeepEqual(quote, want) {
		t.Errorf("quote = %+v, want %+v", quote, want)
	}
}

func TestFetchQuoteUnknownSymbol(t *testing.T) {
	t.Parallel()

	server := finnhubFixture(t, nil)
	provider := NewFinnhubProvider(server.URL, "test-key")

	_, ok, err := provider.FetchQuote(context.Background(), "NOPE")
	if err != nil {
		t.Fatalf("FetchQuote: %v", err)
	}
	if ok {
		t.Error("expected no quote for an unknown symbol")
	}
}

func TestFetchQuoteEmptySymbol(t *testing.T) {
	t.Parallel()

	provider := NewFinnhubProvider("http://unused.invalid", "test-key")
	_, ok, err := provider.FetchQuote(context.Background(), "  ")
	if err != nil || ok {
		t.Errorf("blank symbol: ok=%v err=%v, want absent with no error", ok, err)
	}
}

func TestFetchQuoteRequiresAPIKey(t *testing.T) {
	t.Parallel()

	provider := NewFinnhubProvider("http://unused.invalid", "")
	if _, _, err := provider.FetchQuote(context.Background(), "AAPL"); err == nil {
		t.Error("expected an error without an api key")
	}
}

func TestFetchQuoteServerError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"rate limited"}`, http.StatusTooManyRequests)
	}))
	t.Cleanup(server.Close)
	provider := NewFinnhubProvider(server.URL, "test-key")

	if _, _, err := provider.FetchQuote(context.Background(), "AAPL"); err == nil {
		t.Error("expected an error for a non-2xx response")
	}
}

func TestFetchBatch(t *testing.T) {
	t.Parallel()

	server := finnhubFixture(t, map[string]string{
		"AAPL": `{"c":150,"pc":148,"v":1000}`,
		"MSFT": `{"c":300,"pc":295,"v":2000}`,
	})
	provider := NewFinnhubProvider(server.URL, "test-key")

	// GONE is unknown at the source and must simply be absent.
	out, err := provider.FetchBatch(context.Background(), []string{"aapl", "AAPL", "msft", "GONE"})
	if err != nil {
		t.Fatalf("FetchBatch: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("quotes = %d, want 2: %+v", len(out), out)
	}
	if out["AAPL"].CurrentPrice != 150 || out["MSFT"].CurrentPrice != 300 {
		t.Errorf("quotes = %+v", out)
	}
}

func TestFetchBatchPartialFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("symbol") == "BAD" {
			http.Error(w, `{"error":"boom"}`, http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"c":150,"pc":148,"v":1000}`)
	}))
	t.Cleanup(server.Close)
	provider := NewFinnhubProvider(server.URL, "test-key")

	out, err := provider.FetchBatch(context.Background(), []string{"AAPL", "BAD"})
	if err == nil {
		t.Fatal("expected the failed symbol to be reported")
	}
	if len(out) != 1 || out["AAPL"].CurrentPrice != 150 {
		t.Errorf("quotes = %+v, want the healthy symbol only", out)
	}
}

func TestFetchBatchBoundsConcurrency(t *testing.T) {
	t.Parallel()

	var inflight, peak atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		current := inflight.Add(1)
		defer inflight.Add(-1)
		for {
			observed := peak.Load()
			if current <= observed || peak.CompareAndSwap(observed, current) {
				break
			}
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"c":10,"pc":9,"v":1}`)
	}))
	t.Cleanup(server.Close)
	provider := NewFinnhubProvider(server.URL, "test-key")

	symbols := make([]string, 0, 32)
	for i := 0; i < 32; i++ {
		symbols = append(symbols, fmt.Sprintf("SYM%d", i))
	}
	if _, err := provider.FetchBatch(context.Background(), symbols); err != nil {
		t.Fatalf("FetchBatch: %v", err)
	}
	if got := peak.Load(); got > batchWorkers {
		t.Errorf("peak in-flight requests = %d, want at most %d", got, batchWorkers)
	}
}

func TestNormalizeSymbols(t *testing.T) {
	t.Parallel()

	got := normalizeSymbols([]string{" aapl ", "AAPL", "", "msft", "Msft"})
	want := []string{"AAPL", "MSFT"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("normalizeSymbols = %v, want %v", got, want)
	}
}
