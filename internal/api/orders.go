package api

import (
	"net/http"
	"time"

	"papertrade/internal/db"
	"papertrade/internal/ledger"
)

type orderResponse struct {
	ID            int64   `json:"id"`
	Reference     string  `json:"reference"`
	InstrumentID  int64   `json:"instrument_id"`
	Type          string  `json:"type"`
	Quantity      int64   `json:"quantity"`
	PricePerShare float64 `json:"price_per_share"`
	TotalAmount   float64 `json:"total_amount"`
	Status        string  `json:"status"`
	ExecutedAt    *string `json:"executed_at,omitempty"`
	CreatedAt     string  `json:"created_at"`
}

func toOrderResponse(ord db.Order) orderResponse {
	var executedAt *string
	if ord.ExecutedAt != nil {
		formatted := ord.ExecutedAt.UTC().Format(time.RFC3339)
		executedAt = &formatted
	}
	return orderResponse{
		ID:            ord.ID,
		Reference:     ord.Reference,
		InstrumentID:  ord.InstrumentID,
		Type:          string(ord.Type),
		Quantity:      ord.Quantity,
		PricePerShare: ord.PricePerShare,
		TotalAmount:   ord.TotalAmount,
		Status:        string(ord.Status),
		ExecutedAt:    executedAt,
		CreatedAt:     ord.CreatedAt.UTC().Format(time.RFC3339),
	}
}

type createOrderRequest struct {
	InstrumentID int64   `json:"instrument_id"`
	Type         string  `json:"type"`
	Quantity     float64 `json:"quantity"`
}

func (s *Server) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	var req createOrderRequest
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
		writeError(w, http.StatusBadRequest, ledger.ErrInvalidQuantity.Error())
		return
	}

	order, err := s.Ledger.PlaceOrder(r.Context(), userID, req.InstrumentID, db.TransactionType(req.Type), quantity)
	if err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResponse(order))
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	orders, err := s.Store.ListOrdersByUser(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load orders")
		return
	}

	response := make([]orderResponse, 0, len(orders))
	for _, ord := range orders {
		response = append(response, toOrderResponse(ord))
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleListAllOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := s.Store.ListAllOrders(r.Context(), 500)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load orders")
		return
	}

	response := make([]orderResponse, 0, len(orders))
	for _, ord := range orders {
		response = append(response, toOrderResponse(ord))
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims.Subject == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	id, err := parseIDParam(r, "orderID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	order, ok, err := s.Store.GetOrder(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load order")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	if order.UserID != claims.Subject && !claims.IsAdmin() {
		writeError(w, http.StatusForbidden, "not authorized")
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

func (s *Server) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	claims := claimsFromContext(r.Context())
	if claims.Subject == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	id, err := parseIDParam(r, "orderID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	if err := s.Ledger.CancelOrder(r.Context(), claims.Subject, claims.IsAdmin(), id); err != nil {
		writeLedgerError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "order cancelled"})
}

type updateOrderStatusRequest struct {
	Status string `json:"status"`
}

func (s *Server) handleUpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "orderID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	var req updateOrderStatusRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	status := db.OrderStatus(req.Status)
	switch status {
	case db.OrderCompleted, db.OrderCancelled, db.OrderFailed:
	default:
		writeError(w, http.StatusBadRequest, "status must be completed, cancelled, or failed")
		return
	}

	updated, err := s.Store.UpdateOrderStatus(r.Context(), id, status)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update order")
		return
	}
	if !updated {
		writeError(w, http.StatusNotFound, "pending order not found")
		return
	}

	order, ok, err := s.Store.GetOrder(r.Context(), id)
	if err != nil || !ok {
		writeError(w, http.StatusInternalServerError, "failed to load order")
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

type watchlistItemResponse struct {
	ID         int64              `json:"id"`
	Instrument instrumentResponse `json:"instrument"`
	CreatedAt  string             `json:"created_at"`
}

func (s *Server) handleListWatchlist(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	items, err := s.Store.ListWatchlistByUser(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load watchlist")
		return
	}

	ids := make([]int64, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.InstrumentID)
	}
	instruments, err := s.Store.ListInstrumentsByIDs(r.Context(), ids)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load instruments")
		return
	}
	byID := make(map[int64]db.Instrument, len(instruments))
	for _, ins := range instruments {
		byID[ins.ID] = ins
	}

	response := make([]watchlistItemResponse, 0, len(items))
	for _, item := range items {
		ins, ok := byID[item.InstrumentID]
		if !ok {
			// Instrument was deleted since being watched; drop the entry
			// from the view rather than failing the whole list.
			continue
		}
		response = append(response, watchlistItemResponse{
			ID:         item.ID,
			Instrument: toInstrumentResponse(ins),
			CreatedAt:  item.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, response)
}

type addWatchlistRequest struct {
	InstrumentID int64 `json:"instrument_id"`
}

func (s *Server) handleAddToWatchlist(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	var req addWatchlistRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.InstrumentID <= 0 {
		writeError(w, http.StatusBadRequest, "instrument_id must be greater than 0")
		return
	}

	if _, ok, err := s.Store.GetInstrument(r.Context(), req.InstrumentID); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load instrument")
		return
	} else if !ok {
		writeError(w, http.StatusNotFound, "instrument not found")
		return
	}

	id, inserted, err := s.Store.AddToWatchlist(r.Context(), userID, req.InstrumentID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update watchlist")
		return
	}
	if !inserted {
		writeError(w, http.StatusConflict, "instrument already in watchlist")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (s *Server) handleRemoveFromWatchlist(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r.Context())
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "missing user context")
		return
	}

	id, err := parseIDParam(r, "itemID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid watchlist item id")
		return
	}

	removed, err := s.Store.RemoveFromWatchlist(r.Context(), userID, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update watchlist")
		return
	}
	if !removed {
		writeError(w, http.StatusNotFound, "watchlist item not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
