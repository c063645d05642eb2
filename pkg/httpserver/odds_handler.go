package httpserver

import (
	"context"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/oddsync/odds-engine/internal/mappings"
	"go.uber.org/zap"
)

// PriceReader exposes the most recent accepted price per venue token.
type PriceReader interface {
	LastPrice(tokenID string) (float64, bool)
}

// QueueInspector reports backfill queue depths.
type QueueInspector interface {
	Depths(ctx context.Context) (pending, processing, dead int64, err error)
}

// MappingReader exposes the current mapping snapshot.
type MappingReader interface {
	Current() *mappings.Index
}

// OddsHandler serves the operational API.
type OddsHandler struct {
	prices   PriceReader
	queue    QueueInspector
	mappings MappingReader
	logger   *zap.Logger
}

// NewOddsHandler creates an operational API handler.
func NewOddsHandler(prices PriceReader, queue QueueInspector, mr MappingReader, logger *zap.Logger) *OddsHandler {
	return &OddsHandler{
		prices:   prices,
		queue:    queue,
		mappings: mr,
		logger:   logger,
	}
}

type lastPriceResponse struct {
	TokenID string  `json:"token_id"`
	Price   float64 `json:"price"`
}

// HandleLastPrice returns the last accepted price for ?token_id=...
func (h *OddsHandler) HandleLastPrice(w http.ResponseWriter, r *http.Request) {
	tokenID := r.URL.Query().Get("token_id")
	if tokenID == "" {
		writeError(w, http.StatusBadRequest, "token_id query parameter is required")
		return
	}

	price, ok := h.prices.LastPrice(tokenID)
	if !ok {
		writeError(w, http.StatusNotFound, "no price observed for token")
		return
	}

	writeJSON(w, http.StatusOK, lastPriceResponse{TokenID: tokenID, Price: price})
}

type queueResponse struct {
	Pending    int64 `json:"pending"`
	Processing int64 `json:"processing"`
	DeadLetter int64 `json:"dead_letter"`
}

// HandleQueue returns backfill queue depths.
func (h *OddsHandler) HandleQueue(w http.ResponseWriter, r *http.Request) {
	pending, processing, dead, err := h.queue.Depths(r.Context())
	if err != nil {
		h.logger.Error("queue-depths-failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to read queue depths")
		return
	}

	writeJSON(w, http.StatusOK, queueResponse{
		Pending:    pending,
		Processing: processing,
		DeadLetter: dead,
	})
}

type mappingSummary struct {
	MappingID  string `json:"mapping_id"`
	EventID    string `json:"event_id"`
	EventType  string `json:"event_type"`
	TokenCount int    `json:"token_count"`
}

type mappingsResponse struct {
	TokenCount int              `json:"token_count"`
	Mappings   []mappingSummary `json:"mappings"`
}

// HandleMappings returns a summary of the current mapping snapshot.
func (h *OddsHandler) HandleMappings(w http.ResponseWriter, r *http.Request) {
	ix := h.mappings.Current()

	entries := ix.Entries()
	out := mappingsResponse{
		TokenCount: len(ix.Tokens()),
		Mappings:   make([]mappingSummary, 0, len(entries)),
	}
	for _, am := range entries {
		out.Mappings = append(out.Mappings, mappingSummary{
			MappingID:  am.Mapping.ID,
			EventID:    am.Event.ID,
			EventType:  am.Event.Type,
			TokenCount: len(am.Mapping.OutcomeTokens),
		})
	}

	writeJSON(w, http.StatusOK, out)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
