package registry

import (
	"context"
	"errors"
	"testing"

	"papertrade/internal/db"
	"papertrade/internal/quotes"
)

type mockStore struct {
	instruments []db.Instrument
	applied     [][]db.PriceUpdate

	listErr  error
	applyErr error
}

func (m *mockStore) ListInstruments(_ context.Context) ([]db.Instrument, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.instruments, nil
}

func (m *mockStore) ApplyPriceUpdates(_ context.Context, updates []db.PriceUpdate) error {
	if m.applyErr != nil {
		return m.applyErr
	}
	m.applied = append(m.applied, updates)
	for _, update := range updates {
		for i := range m.instruments {
			if m.instruments[i].ID != update.InstrumentID {
				continue
			}
			m.instruments[i].CurrentPrice = update.CurrentPrice
			m.instruments[i].PreviousClose = update.PreviousClose
			m.instruments[i].ChangePercent = update.ChangePercent
			m.instruments[i].Volume = update.Volume
		}
	}
	return nil
}

type mockOracle struct {
	quotes map[string]quotes.Quote
	err    error
}

func (m *mockOracle) FetchQuote(_ context.Context, symbol string) (quotes.Quote, bool, error) {
	if m.err != nil {
		return quotes.Quote{}, false, m.err
	}
	q, ok := m.quotes[symbol]
	return q, ok, nil
}

func (m *mockOracle) FetchBatch(_ context.Context, symbols []string) (map[string]quotes.Quote, error) {
	if m.quotes == nil {
		return nil, m.err
	}
	out := make(map[string]quotes.Quote, len(symbols))
	for _, symbol := range symbols {
		if q, ok := m.quotes[symbol]; ok {
			out[symbol] = q
		}
	}
	return out, m.err
}

func twoInstruments() []db.Instrument {
	return []db.Instrument{
		{ID: 1, Symbol: "AAPL", CurrentPrice: 100, PreviousClose: 98, ChangePercent: 2.0408163265306123, Volume: 1000},
		{ID: 2, Symbol: "MSFT", CurrentPrice: 300, PreviousClose: 295, ChangePercent: 1.694915254237288, Volume: 2000},
	}
}

func TestRefreshUpdatesQuotedInstruments(t *testing.T) {
	t.Parallel()

	store := &mockStore{instruments: twoInstruments()}
	oracle := &mockOracle{quotes: map[string]quotes.Quote{
		"AAPL": {Symbol: "AAPL", CurrentPrice: 110, PreviousClose: 100, Volume: 1500},
		"MSFT": {Symbol: "MSFT", CurrentPrice: 310, PreviousClose: 300, Volume: 2500},
	}}
	service := NewService(store, oracle)

	result, err := service.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if result.Total != 2 || result.Updated != 2 {
		t.Errorf("result = %+v, want Total=2 Updated=2", result)
	}

	if store.instruments[0].CurrentPrice != 110 {
		t.Errorf("AAPL price = %v, want 110", store.instruments[0].CurrentPrice)
	}
	if store.instruments[0].PreviousClose != 100 {
		t.Errorf("AAPL previous close = %v, want 100", store.instruments[0].PreviousClose)
	}
	if store.instruments[0].ChangePercent != 10 {
		t.Errorf("AAPL change percent = %v, want 10", store.instruments[0].ChangePercent)
	}
	if store.instruments[0].Volume != 1500 {
		t.Errorf("AAPL volume = %d, want 1500", store.instruments[0].Volume)
	}
}

func TestRefreshLeavesUnquotedInstrumentsUntouched(t *testing.T) {
	t.Parallel()

	store := &mockStore{instruments: twoInstruments()}
	before := store.instruments[1]
	oracle := &mockOracle{quotes: map[string]quotes.Quote{
		"AAPL": {Symbol: "AAPL", CurrentPrice: 110, PreviousClose: 100, Volume: 1500},
	}}
	service := NewService(store, oracle)

	result, err := service.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if result.Updated != 1 {
		t.Errorf("updated = %d, want 1", result.Updated)
	}
	if store.instruments[1] != before {
		t.Errorf("MSFT row changed: %+v, want %+v", store.instruments[1], before)
	}
	if len(store.applied) != 1 || len(store.applied[0]) != 1 {
		t.Fatalf("applied batches = %+v, want exactly one update for AAPL", store.applied)
	}
	if store.applied[0][0].InstrumentID != 1 {
		t.Errorf("applied update targets instrument %d, want 1", store.applied[0][0].InstrumentID)
	}
}

func TestRefreshIsIdempotent(t *testing.T) {
	t.Parallel()

	store := &mockStore{instruments: twoInstruments()}
	oracle := &mockOracle{quotes: map[string]quotes.Quote{
		"AAPL": {Symbol: "AAPL", CurrentPrice: 110, PreviousClose: 100, Volume: 1500},
		"MSFT": {Symbol: "MSFT", CurrentPrice: 310, PreviousClose: 300, Volume: 2500},
	}}
	service := NewService(store, oracle)
	ctx := context.Background()

	if _, err := service.Refresh(ctx); err != nil {
		t.Fatalf("first Refresh: %v", err)
	}
	afterFirst := append([]db.Instrument(nil), store.instruments...)

	result, err := service.Refresh(ctx)
	if err != nil {
		t.Fatalf("second Refresh: %v", err)
	}
	if result.Updated != 0 {
		t.Errorf("second refresh updated = %d, want 0", result.Updated)
	}
	for i := range afterFirst {
		if store.instruments[i] != afterFirst[i] {
			t.Errorf("instrument %s changed on idempotent refresh: %+v", afterFirst[i].Symbol, store.instruments[i])
		}
	}
	if len(store.applied) != 1 {
		t.Errorf("applied batches = %d, want 1", len(store.applied))
	}
}

func TestRefreshFallsBackToStoredPriceAsClose(t *testing.T) {
	t.Parallel()

	store := &mockStore{instruments: []db.Instrument{
		{ID: 1, Symbol: "AAPL", CurrentPrice: 100},
	}}
	oracle := &mockOracle{quotes: map[string]quotes.Quote{
		"AAPL": {Symbol: "AAPL", CurrentPrice: 110},
	}}
	service := NewService(store, oracle)

	result, err := service.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if result.Updated != 1 {
		t.Fatalf("updated = %d, want 1", result.Updated)
	}
	if store.instruments[0].PreviousClose != 100 {
		t.Errorf("previous close = %v, want prior stored price 100", store.instruments[0].PreviousClose)
	}
	if store.instruments[0].ChangePercent != 10 {
		t.Errorf("change percent = %v, want 10", store.instruments[0].ChangePercent)
	}

	// Same oracle response again: the price matches what is stored and the
	// source reports no close, so nothing is written.
	result, err = service.Refresh(context.Background())
	if err != nil {
		t.Fatalf("second Refresh: %v", err)
	}
	if result.Updated != 0 {
		t.Errorf("second refresh updated = %d, want 0", result.Updated)
	}
	if store.instruments[0].PreviousClose != 100 {
		t.Errorf("previous close = %v, want 100 preserved", store.instruments[0].PreviousClose)
	}
}

func TestRefreshOracleUnavailable(t *testing.T) {
	t.Parallel()

	store := &mockStore{instruments: twoInstruments()}
	before := append([]db.Instrument(nil), store.instruments...)
	oracle := &mockOracle{err: errors.New("dial tcp: connection refused")}
	service := NewService(store, oracle)

	result, err := service.Refresh(context.Background())
	if !errors.Is(err, ErrOracleUnavailable) {
		t.Fatalf("error = %v, want ErrOracleUnavailable", err)
	}
	if result.Updated != 0 {
		t.Errorf("updated = %d, want 0", result.Updated)
	}
	for i := range before {
		if store.instruments[i] != before[i] {
			t.Errorf("instrument %s changed during outage", before[i].Symbol)
		}
	}
}

func TestRefreshPartialOracleFailureStillApplies(t *testing.T) {
	t.Parallel()

	store := &mockStore{instruments: twoInstruments()}
	oracle := &mockOracle{
		quotes: map[string]quotes.Quote{
			"AAPL": {Symbol: "AAPL", CurrentPrice: 110, PreviousClose: 100, Volume: 1500},
		},
		err: errors.New("MSFT: status 502"),
	}
	service := NewService(store, oracle)

	result, err := service.Refresh(context.Background())
	if err == nil {
		t.Fatal("expected the per-symbol failure to be reported")
	}
	if errors.Is(err, ErrOracleUnavailable) {
		t.Errorf("partial failure reported as full outage: %v", err)
	}
	if result.Updated != 1 {
		t.Errorf("updated = %d, want 1", result.Updated)
	}
	if store.instruments[0].CurrentPrice != 110 {
		t.Errorf("AAPL price = %v, want 110", store.instruments[0].CurrentPrice)
	}
}

func TestRefreshEmptyCatalog(t *testing.T) {
	t.Parallel()

	store := &mockStore{}
	service := NewService(store, &mockOracle{err: errors.New("should not be called")})

	result, err := service.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if result.Total != 0 || result.Updated != 0 {
		t.Errorf("result = %+v, want zero", result)
	}
}

func TestRefreshNotifiesAppliedUpdates(t *testing.T) {
	t.Parallel()

	store := &mockStore{instruments: twoInstruments()}
	oracle := &mockOracle{quotes: map[string]quotes.Quote{
		"AAPL": {Symbol: "AAPL", CurrentPrice: 110, PreviousClose: 100, Volume: 1500},
	}}
	service := NewService(store, oracle)

	var notified []db.PriceUpdate
	service.SetNotify(func(updates []db.PriceUpdate) {
		notified = append(notified, updates...)
	})

	if _, err := service.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if len(notified) != 1 || notified[0].Symbol != "AAPL" {
		t.Fatalf("notified = %+v, want one AAPL update", notified)
	}
	if notified[0].CurrentPrice != 110 {
		t.Errorf("notified price = %v, want 110", notified[0].CurrentPrice)
	}

	// A refresh that writes nothing must not notify.
	notified = nil
	if _, err := service.Refresh(context.Background()); err != nil {
		t.Fatalf("second Refresh: %v", err)
	}
	if len(notified) != 0 {
		t.Errorf("notified = %+v, want none for a no-op refresh", notified)
	}
}
