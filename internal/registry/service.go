// Package registry keeps the instrument catalog's prices current. The
// refresh path is the only writer of instrument price fields; the ledger
// and valuation read them.
package registry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"papertrade/internal/db"
	"papertrade/internal/quotes"
)

// ErrOracleUnavailable reports a refresh that could not obtain any quotes.
// It never surfaces on the trading path, which always uses the last stored
// price.
var ErrOracleUnavailable = errors.New("price oracle unavailable")

type Store interface {
	ListInstruments(ctx context.Context) ([]db.Instrument, error)
	ApplyPriceUpdates(ctx context.Context, updates []db.PriceUpdate) error
}

type Service struct {
	store  Store
	oracle quotes.Provider

	// notify, when set, receives the applied updates after each refresh.
	// Used to push live prices to stream subscribers.
	notify func([]db.PriceUpdate)
}

type RefreshResult struct {
	Total   int
	Updated int
}

func NewService(store Store, oracle quotes.Provider) *Service {
	return &Service{store: store, oracle: oracle}
}

// SetNotify installs the post-refresh hook. Must be called before the first
// Refresh.
func (s *Service) SetNotify(fn func([]db.PriceUpdate)) {
	s.notify = fn
}

// Refresh fetches a quote batch and updates every instrument the oracle
// returned data for. Instruments without a quote keep their stored values
// untouched; an oracle outage degrades freshness, never correctness.
// Refresh is idempotent for an unchanged oracle response.
func (s *Service) Refresh(ctx context.Context) (RefreshResult, error) {
	now := time.Now().UTC()

	instruments, err := s.store.ListInstruments(ctx)
	if err != nil {
		return RefreshResult{}, err
	}
	result := RefreshResult{Total: len(instruments)}
	if len(instruments) == 0 {
		return result, nil
	}

	symbols := make([]string, 0, len(instruments))
	for _, instrument := range instruments {
		symbols = append(symbols, instrument.Symbol)
	}

	fetched, fetchErr := s.oracle.FetchBatch(ctx, symbols)
	if len(fetched) == 0 && fetchErr != nil {
		return result, fmt.Errorf("%w: %v", ErrOracleUnavailable, fetchErr)
	}

	var errs []error
	if fetchErr != nil {
		errs = append(errs, fetchErr)
	}

	updates := make([]db.PriceUpdate, 0, len(fetched))
	for _, instrument := range instruments {
		quote, ok := fetched[instrument.Symbol]
		if !ok {
			continue
		}
		update, changed := buildUpdate(instrument, quote, now)
		if !changed {
			continue
		}
		updates = append(updates, update)
	}

	if len(updates) > 0 {
		if err := s.store.ApplyPriceUpdates(ctx, updates); err != nil {
			errs = append(errs, err)
		} else {
			result.Updated = len(updates)
			if s.notify != nil {
				s.notify(updates)
			}
		}
	}

	return result, errors.Join(errs...)
}

// buildUpdate derives the new price fields for one instrument. When the
// oracle does not report a previous close, the instrument's own prior
// current price serves as the close; an unchanged price is then a no-op so
// that re-running against the same oracle response writes nothing.
func buildUpdate(instrument db.Instrument, quote quotes.Quote, fetchedAt time.Time) (db.PriceUpdate, bool) {
	previousClose := quote.PreviousClose
	if previousClose == 0 {
		if quote.CurrentPrice == instrument.CurrentPrice {
			return db.PriceUpdate{}, false
		}
		previousClose = instrument.CurrentPrice
	}

	changePercent := 0.0
	if previousClose != 0 {
		changePercent = (quote.CurrentPrice - previousClose) / previousClose * 100
	}

	volume := instrument.Volume
	if quote.Volume > 0 {
		volume = quote.Volume
	}

	if quote.CurrentPrice == instrument.CurrentPrice &&
		previousClose == instrument.PreviousClose &&
		changePercent == instrument.ChangePercent &&
		volume == instrument.Volume {
		return db.PriceUpdate{}, false
	}

	return db.PriceUpdate{
		InstrumentID:  instrument.ID,
		Symbol:        instrument.Symbol,
		CurrentPrice:  quote.CurrentPrice,
		PreviousClose: previousClose,
		ChangePercent: changePercent,
		Volume:        volume,
		FetchedAt:     fetchedAt,
	}, true
}
