package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"papertrade/internal/db"
	"papertrade/internal/ledger"
	"papertrade/internal/portfolio"
	"papertrade/internal/telemetry"
)

type tradeRequest struct {
	InstrumentID int64   `json:"instrument_id"`
	Quantity     float64 `json:"quantity"`
	OrderID      *int64  `json:"order_id,omitempty"`
}

type positionResponse struct {
	InstrumentID     int64   `json:"instrument_id"`
	Quantity         int64   `json:"quantity"`
	AvgPurchasePrice float64 `json:"avg_purchase_price"`
	TotalInvested    float64 `json:"total_invested"`
}

type transactionResponse struct {
	ID            int64    `json:"id"`
	Reference     string   `json:"reference"`
	InstrumentID  *int64   `json:"instrument_id,omitempty"`
	Type          string   `json:"type"`
	Quantity      int64    `json:"quantity"`
	PricePerShare *float64 `json:"price_per_share,omitempty"`
	TotalAmount   float64  `json:"total_amount"`
	BalanceAfter  float64  `json:"balance_after"`
	Status        string   `json:"status"`
	CreatedAt     string   `json:"created_at"`
}

type tradeResponse struct {
	Transaction transactionResponse `json:"transaction"`
	Position    *positionResponse   `json:"position"`
}

func toTransactionResponse(txn db.Transaction) transactionResponse {
	return transactionResponse{
		ID:            txn.ID,
		Reference:     txn.Reference,
		InstrumentID:  txn.InstrumentID,
		Type:          string(txn.Type),
		Quantity:      txn.Quantity,
		PricePerShare: txn.PricePerShare,
		TotalAmount:   txn.TotalAmount,
		BalanceAfter:  txn.BalanceAfter,
		Status:        string(txn.Status),
		CreatedAt:     txn.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func toPositionResponse(pos *db.Position) *positionResponse {
	if pos == nil {
		return nil
	}
	return &positionResponse{
		InstrumentID:     pos.InstrumentID,
		Quantity:         pos.Quantity,
		AvgPurchasePrice: pos.AvgPurchasePrice,
		TotalInvested:    pos.TotalInvested,
	}
}

func (s *Server) handleBuy(w http.ResponseWriter, r *http.Request) {
	s.handleTrade(w, r, "buy", s.Ledger.Buy)
}

func (s *Server) handleSell(w http.ResponseWriter, r *http.Request) {
	s.handleTrade(w, r, "sell", s.Ledger.Sell)
}

func (s *Server) handleTrade(w http.ResponseWriter, r *http.Request, side string, execute func(ctx context.Context, req ledger.TradeRequest) (ledger.TradeResult, error)) {
	userID := userIDFromContext(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	var req tradeRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.InstrumentID <= 0 {
		writeError(w, http.StatusBadRequest, "instrument_id must be greater than 0")
		return
	}
	quantity, ok := wholeQuantity(req.Quantity)
	if !ok {
		telemetry.TradeRejected(side)
		writeError(w, http.StatusBadRequest, ledger.ErrInvalidQuantity.Error())
		return
	}

	result, err := execute(r.Context(), ledger.TradeRequest{
		UserID:       userID,
		InstrumentID: req.InstrumentID,
		Quantity:     quantity,
		OrderID:      req.OrderID,
	})
	if err != nil {
		telemetry.TradeRejected(side)
		writeLedgerError(w, err)
		return
	}

	telemetry.TradeExecuted(side)
	writeJSON(w, http.StatusCreated, tradeResponse{
		Transaction: toTransactionResponse(result.Transaction),
		Position:    toPositionResponse(result.Position),
	})
}

type accountResponse struct {
	UserID  string  `json:"user_id"`
	Email   string  `json:"email"`
	Role    string  `json:"role"`
	Balance float64 `json:"balance"`
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	account, ok, err := s.Store.GetAccount(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load account")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "account not found")
		return
	}
	writeJSON(w, http.StatusOK, accountResponse{
		UserID:  account.UserID,
		Email:   account.Email,
		Role:    account.Role,
		Balance: account.Balance,
	})
}

type balanceAdjustmentRequest struct {
	Amount float64 `json:"amount"`
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	s.handleBalanceAdjustment(w, r, s.Ledger.Deposit)
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	s.handleBalanceAdjustment(w, r, s.Ledger.Withdraw)
}

func (s *Server) handleBalanceAdjustment(w http.ResponseWriter, r *http.Request, adjust func(ctx context.Context, userID string, amount float64) (db.Transaction, error)) {
	userID := userIDFromContext(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	var req balanceAdjustmentRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	txn, err := adjust(r.Context(), userID, req.Amount)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionResponse(txn))
}

// writePortfolioError surfaces integrity violations with their specifics;
// a position pointing at a deleted instrument is a data bug, not a blank 500.
func writePortfolioError(w http.ResponseWriter, err error) {
	var integrity *portfolio.DataIntegrityError
	if errors.As(err, &integrity) {
		writeError(w, http.StatusInternalServerError, integrity.Error())
		return
	}
	writeError(w, http.StatusInternalServerError, "failed to load portfolio")
}

type holdingResponse struct {
	Instrument        instrumentResponse `json:"instrument"`
	Quantity          int64              `json:"quantity"`
	AvgPurchasePrice  float64            `json:"avg_purchase_price"`
	TotalInvested     float64            `json:"total_invested"`
	CurrentValue      float64            `json:"current_value"`
	ProfitLoss        float64            `json:"profit_loss"`
	ProfitLossPercent float64            `json:"profit_loss_percent"`
}

func (s *Server) handleGetPortfolio(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	holdings, err := s.Portfolio.Positions(r.Context(), userID)
	if err != nil {
		writePortfolioError(w, err)
		return
	}

	response := make([]holdingResponse, 0, len(holdings))
	for _, holding := range holdings {
		response = append(response, holdingResponse{
			Instrument:        toInstrumentResponse(holding.Instrument),
			Quantity:          holding.Position.Quantity,
			AvgPurchasePrice:  holding.Position.AvgPurchasePrice,
			TotalInvested:     holding.Position.TotalInvested,
			CurrentValue:      holding.CurrentValue,
			ProfitLoss:        holding.ProfitLoss,
			ProfitLossPercent: holding.ProfitLossPercent,
		})
	}
	writeJSON(w, http.StatusOK, response)
}

type summaryResponse struct {
	TotalInvested          float64 `json:"total_invested"`
	CurrentValue           float64 `json:"current_value"`
	TotalProfitLoss        float64 `json:"total_profit_loss"`
	TotalProfitLossPercent float64 `json:"total_profit_loss_percent"`
	HoldingsCount          int     `json:"holdings_count"`
}

func (s *Server) handleGetSummary(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	summary, err := s.Portfolio.AccountSummary(r.Context(), userID)
	if err != nil {
		writePortfolioError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summaryResponse{
		TotalInvested:          summary.TotalInvested,
		CurrentValue:           summary.CurrentValue,
		TotalProfitLoss:        summary.TotalProfitLoss,
		TotalProfitLossPercent: summary.TotalProfitLossPercent,
		HoldingsCount:          summary.HoldingsCount,
	})
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	transactions, err := s.Store.ListTransactionsByUser(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load transactions")
		return
	}

	response := make([]transactionResponse, 0, len(transactions))
	for _, txn := range transactions {
		response = append(response, toTransactionResponse(txn))
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleListAllTransactions(w http.ResponseWriter, r *http.Request) {
	transactions, err := s.Store.ListAllTransactions(r.Context(), 500)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load transactions")
		return
	}

	response := make([]transactionResponse, 0, len(transactions))
	for _, txn := range transactions {
		response = append(response, toTransactionResponse(txn))
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims.Subject == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	id, err := parseIDParam(r, "transactionID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid transaction id")
		return
	}

	txn, ok, err := s.Store.GetTransaction(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load transaction")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "transaction not found")
		return
	}
	if txn.UserID != claims.Subject && !claims.IsAdmin() {
		writeError(w, http.StatusForbidden, "not authorized")
		return
	}
	writeJSON(w, http.StatusOK, toTransactionResponse(txn))
}
