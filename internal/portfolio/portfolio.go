// Package portfolio computes read-side valuations over stored positions
// and live instrument prices. It holds no state of its own.
package portfolio

import (
	"context"
	"fmt"

	"papertrade/internal/db"
)

type Store interface {
	ListPositionsByUser(ctx context.Context, userID string) ([]db.Position, error)
	ListInstrumentsByIDs(ctx context.Context, ids []int64) ([]db.Instrument, error)
}

// DataIntegrityError reports a position referencing an instrument that no
// longer exists. This signals a broken invariant elsewhere and is surfaced,
// never skipped.
type DataIntegrityError struct {
	UserID       string
	InstrumentID int64
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("position for user %s references missing instrument %d", e.UserID, e.InstrumentID)
}

type Holding struct {
	Position          db.Position
	Instrument        db.Instrument
	CurrentValue      float64
	ProfitLoss        float64
	ProfitLossPercent float64
}

type Summary struct {
	TotalInvested          float64
	CurrentValue           float64
	TotalProfitLoss        float64
	TotalProfitLossPercent float64
	HoldingsCount          int
}

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

// Positions returns the user's holdings valued at current stored prices.
func (s *Service) Positions(ctx context.Context, userID string) ([]Holding, error) {
	positions, err := s.store.ListPositionsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	instruments, err := s.loadInstruments(ctx, positions)
	if err != nil {
		return nil, err
	}

	holdings := make([]Holding, 0, len(positions))
	for _, position := range positions {
		instrument, ok := instruments[position.InstrumentID]
		if !ok {
			return nil, &DataIntegrityError{UserID: userID, InstrumentID: position.InstrumentID}
		}

		currentValue := instrument.CurrentPrice * float64(position.Quantity)
		profitLoss := currentValue - position.TotalInvested
		profitLossPercent := 0.0
		if position.TotalInvested > 0 {
			profitLossPercent = profitLoss / position.TotalInvested * 100
		}

		holdings = append(holdings, Holding{
			Position:          position,
			Instrument:        instrument,
			CurrentValue:      currentValue,
			ProfitLoss:        profitLoss,
			ProfitLossPercent: profitLossPercent,
		})
	}
	return holdings, nil
}

// AccountSummary aggregates invested capital and unrealized P/L across all
// of the user's holdings.
func (s *Service) AccountSummary(ctx context.Context, userID string) (Summary, error) {
	holdings, err := s.Positions(ctx, userID)
	if err != nil {
		return Summary{}, err
	}

	var summary Summary
	for _, holding := range holdings {
		summary.TotalInvested += holding.Position.TotalInvested
		summary.CurrentValue += holding.CurrentValue
	}
	summary.TotalProfitLoss = summary.CurrentValue - summary.TotalInvested
	if summary.TotalInvested > 0 {
		summary.TotalProfitLossPercent = summary.TotalProfitLoss / summary.TotalInvested * 100
	}
	summary.HoldingsCount = len(holdings)
	return summary, nil
}

func (s *Service) loadInstruments(ctx context.Context, positions []db.Position) (map[int64]db.Instrument, error) {
	ids := make([]int64, 0, len(positions))
	seen := make(map[int64]struct{}, len(positions))
	for _, position := range positions {
		if _, ok := seen[position.InstrumentID]; ok {
			continue
		}
		seen[position.InstrumentID] = struct{}{}
		ids = append(ids, position.InstrumentID)
	}

	instruments, err := s.store.ListInstrumentsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[int64]db.Instrument, len(instruments))
	for _, instrument := range instruments {
		byID[instrument.ID] = instrument
	}
	return byID, nil
}
