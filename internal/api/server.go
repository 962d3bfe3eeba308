package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"papertrade/internal/auth"
	"papertrade/internal/db"
	"papertrade/internal/ledger"
	"papertrade/internal/portfolio"
	"papertrade/internal/registry"
)

type Server struct {
	Store     Store
	Ledger    Ledger
	Portfolio Valuator
	Refresher Refresher
	Verifier  auth.Verifier
}

type Store interface {
	GetAccount(ctx context.Context, userID string) (db.Account, bool, error)

	ListInstruments(ctx context.Context) ([]db.Instrument, error)
	ListInstrumentsByIDs(ctx context.Context, ids []int64) ([]db.Instrument, error)
	GetInstrument(ctx context.Context, id int64) (db.Instrument, bool, error)
	GetInstrumentBySymbol(ctx context.Context, symbol string) (db.Instrument, bool, error)
	SearchInstruments(ctx context.Context, query string, limit int) ([]db.Instrument, error)
	InsertInstrument(ctx context.Context, ins db.Instrument) (int64, error)
	UpdateInstrument(ctx context.Context, ins db.Instrument) (bool, error)
	DeleteInstrument(ctx context.Context, id int64) (bool, error)

	GetTransaction(ctx context.Context, id int64) (db.Transaction, bool, error)
	ListTransactionsByUser(ctx context.Context, userID string) ([]db.Transaction, error)
	ListAllTransactions(ctx context.Context, limit int) ([]db.Transaction, error)

	GetOrder(ctx context.Context, id int64) (db.Order, bool, error)
	ListOrdersByUser(ctx context.Context, userID string) ([]db.Order, error)
	ListAllOrders(ctx context.Context, limit int) ([]db.Order, error)
	UpdateOrderStatus(ctx context.Context, id int64, status db.OrderStatus) (bool, error)

	ListWatchlistByUser(ctx context.Context, userID string) ([]db.WatchlistItem, error)
	AddToWatchlist(ctx context.Context, userID string, instrumentID int64) (int64, bool, error)
	RemoveFromWatchlist(ctx context.Context, userID string, itemID int64) (bool, error)
}

type Ledger interface {
	Buy(ctx context.Context, req ledger.TradeRequest) (ledger.TradeResult, error)
	Sell(ctx context.Context, req ledger.TradeRequest) (ledger.TradeResult, error)
	Deposit(ctx context.Context, userID string, amount float64) (db.Transaction, error)
	Withdraw(ctx context.Context, userID string, amount float64) (db.Transaction, error)
	PlaceOrder(ctx context.Context, userID string, instrumentID int64, orderType db.TransactionType, quantity int64) (db.Order, error)
	CancelOrder(ctx context.Context, userID string, isAdmin bool, orderID int64) error
}

type Valuator interface {
	Positions(ctx context.Context, userID string) ([]portfolio.Holding, error)
	AccountSummary(ctx context.Context, userID string) (portfolio.Summary, error)
}

type Refresher interface {
	Refresh(ctx context.Context) (registry.RefreshResult, error)
}

type contextKey string

const claimsContextKey contextKey = "claims"

func NewServer(store Store, ledgerService Ledger, valuator Valuator, refresher Refresher, verifier auth.Verifier) *Server {
	return &Server{
		Store:     store,
		Ledger:    ledgerService,
		Portfolio: valuator,
		Refresher: refresher,
		Verifier:  verifier,
	}
}

func (s *Server) Mount(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(s.authMiddleware)

		r.Get("/instruments", s.handleListInstruments)
		r.Get("/instruments/search", s.handleSearchInstruments)
		r.Get("/instruments/symbol/{symbol}", s.handleGetInstrumentBySymbol)
		r.Get("/instruments/{instrumentID}", s.handleGetInstrument)

		r.Post("/trades/buy", s.handleBuy)
		r.Post("/trades/sell", s.handleSell)

		r.Get("/account", s.handleGetAccount)
		r.Post("/account/deposit", s.handleDeposit)
		r.Post("/account/withdraw", s.handleWithdraw)

		r.Get("/portfolio", s.handleGetPortfolio)
		r.Get("/portfolio/summary", s.handleGetSummary)

		r.Get("/transactions", s.handleListTransactions)
		r.Get("/transactions/{transactionID}", s.handleGetTransaction)

		r.Post("/orders", s.handleCreateOrder)
		r.Get("/orders", s.handleListOrders)
		r.Get("/orders/{orderID}", s.handleGetOrder)
		r.Delete("/orders/{orderID}", s.handleCancelOrder)

		r.Get("/watchlist", s.handleListWatchlist)
		r.Post("/watchlist", s.handleAddToWatchlist)
		r.Delete("/watchlist/{itemID}", s.handleRemoveFromWatchlist)

		r.Group(func(r chi.Router) {
			r.Use(s.adminMiddleware)
			r.Post("/instruments", s.handleCreateInstrument)
			r.Put("/instruments/{instrumentID}", s.handleUpdateInstrument)
			r.Delete("/instruments/{instrumentID}", s.handleDeleteInstrument)
			r.Post("/instruments/refresh", s.handleRefreshPrices)
			r.Get("/transactions/all", s.handleListAllTransactions)
			r.Get("/orders/all", s.handleListAllOrders)
			r.Put("/orders/{orderID}", s.handleUpdateOrderStatus)
		})
	})
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "missing auth token")
			return
		}

		claims, err := s.Verifier.Verify(r.Context(), token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid auth token")
			return
		}

		ctx := context.WithValue(r.Context(), claimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) adminMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !claimsFromContext(r.Context()).IsAdmin() {
			writeError(w, http.StatusForbidden, "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func claimsFromContext(ctx context.Context) auth.Claims {
	claims, _ := ctx.Value(claimsContextKey).(auth.Claims)
	return claims
}

func userIDFromContext(ctx context.Context) string {
	return strings.TrimSpace(claimsFromContext(ctx).Subject)
}

func extractToken(r *http.Request) string {
	authz := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(authz), "bearer ") {
		return strings.TrimSpace(authz[7:])
	}
	return ""
}

type apiError struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, apiError{Error: message})
}

// writeLedgerError maps every typed ledger failure to a specific status and
// message; only unexpected errors collapse to a generic 500.
func writeLedgerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrInvalidQuantity),
		errors.Is(err, ledger.ErrInvalidAmount),
		errors.Is(err, ledger.ErrInsufficientFunds),
		errors.Is(err, ledger.ErrNoSuchPosition),
		errors.Is(err, ledger.ErrInsufficientHoldings),
		errors.Is(err, ledger.ErrInvalidOrderType),
		errors.Is(err, ledger.ErrOrderNotCancellable):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, ledger.ErrInstrumentNotFound),
		errors.Is(err, ledger.ErrAccountNotFound),
		errors.Is(err, ledger.ErrOrderNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, ledger.ErrNotOrderOwner):
		writeError(w, http.StatusForbidden, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSONBody(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return err
	}
	if err := decoder.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("request body must contain a single JSON object")
	}
	return nil
}

func parseIDParam(r *http.Request, key string) (int64, error) {
	value := strings.TrimSpace(chi.URLParam(r, key))
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil || parsed <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return parsed, nil
}

// wholeQuantity validates that a requested share count is a positive whole
// number. Fractional requests are rejected outright.
func wholeQuantity(quantity float64) (int64, bool) {
	if quantity <= 0 || quantity != math.Trunc(quantity) {
		return 0, false
	}
	return int64(quantity), true
}
