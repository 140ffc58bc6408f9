package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"lumina/fraud-lab/internal/domain"
	"lumina/fraud-lab/internal/features"
	"lumina/fraud-lab/internal/metrics"
	"lumina/fraud-lab/internal/scoring"
	"lumina/fraud-lab/internal/store"
	"lumina/fraud-lab/internal/webhook"
)

// Handler holds the dependencies shared across all HTTP handlers.
type Handler struct {
	store    store.HistoryStore
	engine   *scoring.Engine
	notifier *webhook.Notifier
	locks    *keyedMutex
	validate *validator.Validate
}

// NewHandler creates a Handler wired to the given dependencies.
func NewHandler(s store.HistoryStore, e *scoring.Engine, n *webhook.Notifier) *Handler {
	return &Handler{
		store:    s,
		engine:   e,
		notifier: n,
		locks:    newKeyedMutex(),
		validate: newValidator(),
	}
}

// ScoreResponse is returned by the scoring endpoint.
type ScoreResponse struct {
	TransactionID string          `json:"transaction_id"`
	CustomerID    string          `json:"customer_id"`
	Features      features.Vector `json:"features"`
	Result        scoring.Result  `json:"result"`
	HistorySize   int             `json:"history_size"`
}

// FeaturesResponse is returned by the feature preview endpoint.
type FeaturesResponse struct {
	TransactionID string          `json:"transaction_id"`
	CustomerID    string          `json:"customer_id"`
	Features      features.Vector `json:"features"`
	HistorySize   int             `json:"history_size"`
}

// HistoryResponse lists a customer's stored transactions.
type HistoryResponse struct {
	CustomerID   string               `json:"customer_id"`
	At           time.Time            `json:"at"`
	Transactions []domain.Transaction `json:"transactions"`
}

// ─── GET /health ──────────────────────────────────────────────────────────────

// Health reports whether the history backend is reachable.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		slog.Warn("history store unreachable", "error", err)
		fail(w, r, http.StatusServiceUnavailable, apiError{Code: codeUnavailable, Message: "history store unreachable"})
		return
	}
	m := h.engine.Manifest()
	respond(w, http.StatusOK, map[string]string{
		"status":        "ok",
		"service":       "fraudlab-scoring",
		"model":         m.Model,
		"model_version": m.Version,
	})
}

// ─── POST /api/v1/score ───────────────────────────────────────────────────────

// Score computes the transaction's features from the customer's stored
// history, scores them, then appends the transaction to the history.
// Requests for one customer are serialised so each sees its predecessors.
func (h *Handler) Score(w http.ResponseWriter, r *http.Request) {
	tx, okReq := h.bindTransaction(w, r)
	if !okReq {
		return
	}

	unlock := h.locks.Lock(tx.CustomerID)
	defer unlock()

	v, history, okFeat := h.computeFeatures(w, r, tx)
	if !okFeat {
		return
	}

	res, err := h.engine.Evaluate(v)
	if err != nil {
		var missing *features.MissingFeaturesError
		if errors.As(err, &missing) {
			metrics.MissingFeaturesTotal.Inc()
			fail(w, r, http.StatusUnprocessableEntity, apiError{
				Code:    codeMissingFeatures,
				Message: missing.Error(),
				Missing: missing.Missing,
			})
			return
		}
		slog.Error("scoring failed", "transaction_id", tx.TransactionID, "error", err)
		failInternal(w, r)
		return
	}

	if err := h.store.Append(r.Context(), tx); err != nil {
		if errors.Is(err, store.ErrDuplicateTransaction) {
			fail(w, r, http.StatusConflict, apiError{
				Code:    codeConflict,
				Message: fmt.Sprintf("transaction '%s' already exists", tx.TransactionID),
			})
			return
		}
		slog.Error("history append failed", "transaction_id", tx.TransactionID, "error", err)
		failInternal(w, r)
		return
	}

	outcome := metrics.OutcomeNormal
	if res.IsAnomaly {
		outcome = metrics.OutcomeAnomaly
	}
	metrics.ScoresTotal.WithLabelValues(outcome).Inc()
	metrics.ScoreValue.Observe(res.Score)

	h.notifier.NotifyAsync(tx, v, res)

	respond(w, http.StatusCreated, ScoreResponse{
		TransactionID: tx.TransactionID,
		CustomerID:    tx.CustomerID,
		Features:      v,
		Result:        res,
		HistorySize:   len(history),
	})
}

// ─── POST /api/v1/features ────────────────────────────────────────────────────

// Features returns the feature vector a transaction would get without
// scoring it or recording it.
func (h *Handler) Features(w http.ResponseWriter, r *http.Request) {
	tx, okReq := h.bindTransaction(w, r)
	if !okReq {
		return
	}
	v, history, okFeat := h.computeFeatures(w, r, tx)
	if !okFeat {
		return
	}
	respond(w, http.StatusOK, FeaturesResponse{
		TransactionID: tx.TransactionID,
		CustomerID:    tx.CustomerID,
		Features:      v,
		HistorySize:   len(history),
	})
}

// ─── GET /api/v1/customers/{id}/history ──────────────────────────────────────

// CustomerHistory returns the stored history visible at ?at= (RFC 3339,
// default now).
func (h *Handler) CustomerHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	at := time.Now().UTC()
	if s := r.URL.Query().Get("at"); s != "" {
		parsed, err := time.Parse(time.RFC3339, s)
		if err != nil {
			fail(w, r, http.StatusBadRequest, apiError{Code: codeInvalidParam, Message: "at must be an RFC 3339 timestamp"})
			return
		}
		at = parsed.UTC()
	}

	txns, err := h.store.History(r.Context(), id, at)
	if err != nil {
		slog.Error("history lookup failed", "customer_id", id, "error", err)
		failInternal(w, r)
		return
	}
	if txns == nil {
		txns = []domain.Transaction{}
	}
	respond(w, http.StatusOK, HistoryResponse{CustomerID: id, At: at, Transactions: txns})
}

// ─── Helpers ──────────────────────────────────────────────────────────────────

func (h *Handler) bindTransaction(w http.ResponseWriter, r *http.Request) (domain.Transaction, bool) {
	var req TransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		fail(w, r, http.StatusBadRequest, apiError{Code: codeInvalidJSON, Message: "request body must be valid JSON"})
		return domain.Transaction{}, false
	}
	if err := validateTransactionRequest(h.validate, &req); err != nil {
		fail(w, r, http.StatusBadRequest, apiError{Code: codeValidation, Message: err.Error()})
		return domain.Transaction{}, false
	}
	return req.toTransaction(), true
}

func (h *Handler) computeFeatures(w http.ResponseWriter, r *http.Request, tx domain.Transaction) (features.Vector, []domain.Transaction, bool) {
	history, err := h.store.History(r.Context(), tx.CustomerID, tx.Timestamp)
	if err != nil {
		slog.Error("history lookup failed", "customer_id", tx.CustomerID, "error", err)
		failInternal(w, r)
		return features.Vector{}, nil, false
	}
	metrics.HistorySize.Observe(float64(len(history)))

	v, err := features.BuildFeatures(tx, history)
	if err != nil {
		slog.Error("feature computation failed", "customer_id", tx.CustomerID, "error", err)
		failInternal(w, r)
		return features.Vector{}, nil, false
	}
	return v, history, true
}
