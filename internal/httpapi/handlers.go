// ABOUTME: HTTP handlers for sessions, search, and collection stats
// ABOUTME: Bodies are validated before any pipeline call; error kinds map to status codes
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/BASF-LSU-Collaborations/ragui/internal/core"
	"github.com/BASF-LSU-Collaborations/ragui/internal/models"
	"github.com/BASF-LSU-Collaborations/ragui/internal/session"
	"github.com/BASF-LSU-Collaborations/ragui/internal/validation"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

// maxBodyBytes caps request bodies
const maxBodyBytes = 1 << 20

// AskRequest is the body of POST /api/v1/sessions/{id}/ask
type AskRequest struct {
	Query   string        `json:"query" validate:"required,max=2000"`
	Filters models.Filter `json:"filters,omitempty"`
	TopK    int           `json:"top_k,omitempty" validate:"omitempty,min=1,max=50"`
	Purpose string        `json:"purpose,omitempty" validate:"omitempty,oneof=recommendation search"`
}

// AskResponse is the pipeline output for one ask
type AskResponse struct {
	RewrittenQuery string               `json:"rewritten_query"`
	Results        []models.ScoredMovie `json:"results"`
	Explanation    string               `json:"explanation"`
}

// SearchRequest is the body of POST /api/v1/search
type SearchRequest struct {
	Query   string        `json:"query" validate:"required,max=2000"`
	Filters models.Filter `json:"filters,omitempty"`
	TopK    int           `json:"top_k,omitempty" validate:"omitempty,min=1,max=50"`
}

// ErrorBody is the payload of every error response
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail names the error kind and carries a message
type ErrorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (a *API) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *API) collectionStats(w http.ResponseWriter, r *http.Request) {
	st, err := a.stats.Stats(r.Context())
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, st)
}

func (a *API) createSession(w http.ResponseWriter, r *http.Request) {
	s := a.sessions.Create()
	respondJSON(w, http.StatusCreated, map[string]string{"session_id": s.ID})
}

func (a *API) ask(w http.ResponseWriter, r *http.Request) {
	s, err := a.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		a.handleError(w, r, err)
		return
	}

	var req AskRequest
	if err := decode(w, r, &req); err != nil {
		a.handleError(w, r, err)
		return
	}

	ans, err := s.Ask(r.Context(), core.Request{
		Query:   req.Query,
		Filter:  req.Filters,
		TopK:    req.TopK,
		Purpose: core.Purpose(req.Purpose),
	})
	if err != nil {
		a.handleError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, AskResponse{
		RewrittenQuery: ans.RewrittenQuery,
		Results:        nonNil(ans.Results.Items),
		Explanation:    ans.Explanation,
	})
}

func (a *API) history(w http.ResponseWriter, r *http.Request) {
	s, err := a.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	turns := s.History()
	if turns == nil {
		turns = []models.Turn{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"session_id": s.ID,
		"turns":      turns,
	})
}

func (a *API) search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := decode(w, r, &req); err != nil {
		a.handleError(w, r, err)
		return
	}

	res, err := a.searcher.Retrieve(r.Context(), req.Query, req.Filters, req.TopK)
	if err != nil {
		a.handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"query":   req.Query,
		"results": nonNil(res.Items),
	})
}

// decode reads and validates a JSON body
func decode(w http.ResponseWriter, r *http.Request, dest interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dest); err != nil {
		return models.NewOpError("decode", models.ErrInvalidInput, fmt.Errorf("invalid request body: %w", err))
	}
	if err := validation.Struct(dest); err != nil {
		return models.NewOpError("decode", models.ErrInvalidInput, err)
	}
	return nil
}

// statusFor maps an error to its HTTP status and kind
func statusFor(err error) (int, string) {
	if errors.Is(err, session.ErrNotFound) {
		return http.StatusNotFound, "not_found"
	}
	kind := models.Kind(err)
	switch kind {
	case "invalid_input":
		return http.StatusBadRequest, kind
	case "store_unavailable":
		return http.StatusServiceUnavailable, kind
	case "embedding_error", "generation_error":
		return http.StatusBadGateway, kind
	case "timeout":
		return http.StatusGatewayTimeout, kind
	}
	return http.StatusInternalServerError, kind
}

func (a *API) handleError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := statusFor(err)
	fields := []zap.Field{
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.String("kind", kind),
		zap.Error(err),
	}
	if status >= 500 {
		a.logger.Error("request failed", fields...)
	} else {
		a.logger.Warn("request rejected", fields...)
	}
	respondError(w, status, kind, err.Error())
}

// respondJSON writes a JSON response
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

// respondError writes an error JSON response
func respondError(w http.ResponseWriter, statusCode int, kind, message string) {
	respondJSON(w, statusCode, ErrorBody{Error: ErrorDetail{Kind: kind, Message: message}})
}

func nonNil(items []models.ScoredMovie) []models.ScoredMovie {
	if items == nil {
		return []models.ScoredMovie{}
	}
	return items
}
