package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"papertrade/internal/db"
	"papertrade/internal/registry"
)

type instrumentResponse struct {
	ID            int64   `json:"id"`
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	Exchange      string  `json:"exchange"`
	CurrentPrice  float64 `json:"current_price"`
	PreviousClose float64 `json:"previous_close"`
	ChangePercent float64 `json:"change_percent"`
	Volume        int64   `json:"volume"`
	MarketCap     float64 `json:"market_cap"`
	Sector        string  `json:"sector"`
	Description   string  `json:"description"`
	UpdatedAt     string  `json:"updated_at"`
}

func toInstrumentResponse(ins db.Instrument) instrumentResponse {
	return instrumentResponse{
		ID:            ins.ID,
		Symbol:        ins.Symbol,
		Name:          ins.Name,
		Exchange:      string(ins.Exchange),
		CurrentPrice:  ins.CurrentPrice,
		PreviousClose: ins.PreviousClose,
		ChangePercent: ins.ChangePercent,
		Volume:        ins.Volume,
		MarketCap:     ins.MarketCap,
		Sector:        ins.Sector,
		Description:   ins.Description,
		UpdatedAt:     ins.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func (s *Server) handleListInstruments(w http.ResponseWriter, r *http.Request) {
	instruments, err := s.Store.ListInstruments(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load instruments")
		return
	}

	response := make([]instrumentResponse, 0, len(instruments))
	for _, ins := range instruments {
		response = append(response, toInstrumentResponse(ins))
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleGetInstrument(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "instrumentID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid instrument id")
		return
	}

	ins, ok, err := s.Store.GetInstrument(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load instrument")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "instrument not found")
		return
	}
	writeJSON(w, http.StatusOK, toInstrumentResponse(ins))
}

func (s *Server) handleGetInstrumentBySymbol(w http.ResponseWriter, r *http.Request) {
	symbol := strings.TrimSpace(chi.URLParam(r, "symbol"))
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "invalid symbol")
		return
	}

	ins, ok, err := s.Store.GetInstrumentBySymbol(r.Context(), symbol)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load instrument")
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "instrument not found")
		return
	}
	writeJSON(w, http.StatusOK, toInstrumentResponse(ins))
}

func (s *Server) handleSearchInstruments(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))

	limit := 20
	if rawLimit := strings.TrimSpace(r.URL.Query().Get("limit")); rawLimit != "" {
		parsedLimit, err := strconv.Atoi(rawLimit)
		if err != nil || parsedLimit <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		if parsedLimit > 100 {
			parsedLimit = 100
		}
		limit = parsedLimit
	}

	instruments, err := s.Store.SearchInstruments(r.Context(), query, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to search instruments")
		return
	}

	response := make([]instrumentResponse, 0, len(instruments))
	for _, ins := range instruments {
		response = append(response, toInstrumentResponse(ins))
	}
	writeJSON(w, http.StatusOK, response)
}

type instrumentRequest struct {
	Symbol        string  `json:"symbol"`
	Name          string  `json:"name"`
	Exchange      string  `json:"exchange"`
	CurrentPrice  float64 `json:"current_price"`
	PreviousClose float64 `json:"previous_close"`
	Volume        int64   `json:"volume"`
	MarketCap     float64 `json:"market_cap"`
	Sector        string  `json:"sector"`
	Description   string  `json:"description"`
}

func (req instrumentRequest) validate() string {
	if strings.TrimSpace(req.Symbol) == "" {
		return "symbol is required"
	}
	if strings.TrimSpace(req.Name) == "" {
		return "name is required"
	}
	if !db.ValidExchange(db.Exchange(req.Exchange)) {
		return "exchange must be NYSE, NASDAQ, or AMEX"
	}
	if req.CurrentPrice < 0 || req.PreviousClose < 0 {
		return "prices must be greater than or equal to 0"
	}
	return ""
}

func (req instrumentRequest) toInstrument() db.Instrument {
	previousClose := req.PreviousClose
	if previousClose == 0 {
		previousClose = req.CurrentPrice
	}
	changePercent := 0.0
	if previousClose != 0 {
		changePercent = (req.CurrentPrice - previousClose) / previousClose * 100
	}
	return db.Instrument{
		Symbol:        strings.ToUpper(strings.TrimSpace(req.Symbol)),
		Name:          strings.TrimSpace(req.Name),
		Exchange:      db.Exchange(req.Exchange),
		CurrentPrice:  req.CurrentPrice,
		PreviousClose: previousClose,
		ChangePercent: changePercent,
		Volume:        req.Volume,
		MarketCap:     req.MarketCap,
		Sector:        req.Sector,
		Description:   req.Description,
	}
}

func (s *Server) handleCreateInstrument(w http.ResponseWriter, r *http.Request) {
	var req instrumentRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	ins := req.toInstrument()
	if _, ok, err := s.Store.GetInstrumentBySymbol(r.Context(), ins.Symbol); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create instrument")
		return
	} else if ok {
		writeError(w, http.StatusConflict, "instrument already exists")
		return
	}

	id, err := s.Store.InsertInstrument(r.Context(), ins)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to create instrument")
		return
	}
	ins.ID = id
	writeJSON(w, http.StatusCreated, toInstrumentResponse(ins))
}

func (s *Server) handleUpdateInstrument(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "instrumentID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid instrument id")
		return
	}

	var req instrumentRequest
	if err := decodeJSONBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	ins := req.toInstrument()
	ins.ID = id
	updated, err := s.Store.UpdateInstrument(r.Context(), ins)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to update instrument")
		return
	}
	if !updated {
		writeError(w, http.StatusNotFound, "instrument not found")
		return
	}
	writeJSON(w, http.StatusOK, toInstrumentResponse(ins))
}

func (s *Server) handleDeleteInstrument(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "instrumentID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid instrument id")
		return
	}

	deleted, err := s.Store.DeleteInstrument(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to delete instrument")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "instrument not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type refreshResponse struct {
	Message string `json:"message"`
	Updated int    `json:"updated"`
	Total   int    `json:"total"`
}

func (s *Server) handleRefreshPrices(w http.ResponseWriter, r *http.Request) {
	result, err := s.Refresher.Refresh(r.Context())
	if err != nil {
		if errors.Is(err, registry.ErrOracleUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "price oracle unavailable")
			return
		}
		// Partial refreshes still report what was applied.
		writeJSON(w, http.StatusOK, refreshResponse{
			Message: "prices partially refreshed",
			Updated: result.Updated,
			Total:   result.Total,
		})
		return
	}
	writeJSON(w, http.StatusOK, refreshResponse{
		Message: "prices refreshed",
		Updated: result.Updated,
		Total:   result.Total,
	})
}
