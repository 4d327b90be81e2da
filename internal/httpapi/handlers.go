package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/dshills/gorag/internal/searcher"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Message string                 `json:"message,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// AskRequest is the body of POST /ask.
type AskRequest struct {
	Query string `json:"query" validate:"required"`
	K     *int   `json:"k,omitempty" validate:"omitempty,min=1,max=50"`
}

// Source is one ranked passage in an answer.
type Source struct {
	Source string  `json:"source"`
	Score  float64 `json:"score"`
}

// AskResponse is the body of a successful POST /ask.
type AskResponse struct {
	TurnID     string   `json:"turn_id"`
	Query      string   `json:"query"`
	Answer     string   `json:"answer"`
	Answered   bool     `json:"answered"`
	VagueQuery bool     `json:"vague_query"`
	Threshold  float64  `json:"threshold"`
	TopScore   float64  `json:"top_score"`
	TopSources []Source `json:"top_sources"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status        string `json:"status"`
	Chunks        int    `json:"chunks"`
	CachedVectors bool   `json:"cached_vectors"`
	EmbedModel    string `json:"embed_model"`
	GenModel      string `json:"gen_model"`
}

func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, statusCode int, err string, message string) {
	respondJSON(w, statusCode, ErrorResponse{
		Error:   err,
		Message: message,
	})
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"message": "RAG API is running",
		"version": s.info.Version,
		"health":  "GET /health",
		"ask":     "POST /ask",
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	col := s.agent.Collection()
	respondJSON(w, http.StatusOK, HealthResponse{
		Status:        "ok",
		Chunks:        col.Len(),
		CachedVectors: col != nil && col.Vectors != nil,
		EmbedModel:    s.info.EmbedModel,
		GenModel:      s.info.GenModel,
	})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "bad_request", "Invalid JSON body: "+err.Error())
		return
	}
	req.Query = strings.TrimSpace(req.Query)

	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			respondError(w, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
		respondJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "validation_failed",
			Message: "Validation failed",
			Details: validationDetails(verrs),
		})
		return
	}

	k := s.defaultK
	if req.K != nil {
		k = *req.K
	}

	turn, err := s.agent.Ask(r.Context(), req.Query, k, nil)
	if err != nil {
		switch {
		case errors.Is(err, searcher.ErrEmptyQuery), errors.Is(err, searcher.ErrInvalidK):
			respondError(w, http.StatusBadRequest, "bad_request", err.Error())
		case r.Context().Err() != nil:
			respondError(w, http.StatusServiceUnavailable, "cancelled", "Request cancelled")
		default:
			s.logger.Error("ask failed", zap.Error(err))
			respondError(w, http.StatusInternalServerError, "internal_error", "Failed to answer question")
		}
		return
	}

	sources := make([]Source, len(turn.Results))
	for i, res := range turn.Results {
		sources[i] = Source{Source: res.Ref(), Score: res.Score}
	}

	respondJSON(w, http.StatusOK, AskResponse{
		TurnID:     turn.ID.String(),
		Query:      turn.Query,
		Answer:     turn.Answer,
		Answered:   turn.Answered,
		VagueQuery: turn.Decision.Vague,
		Threshold:  turn.Decision.Threshold,
		TopScore:   turn.Decision.TopScore,
		TopSources: sources,
	})
}

func validationDetails(errs validator.ValidationErrors) map[string]interface{} {
	details := make(map[string]interface{}, len(errs))
	for _, fe := range errs {
		field := fe.Field()
		switch fe.Tag() {
		case "required":
			details[field] = fmt.Sprintf("%s is required", field)
		case "min":
			details[field] = fmt.Sprintf("%s must be at least %s", field, fe.Param())
		case "max":
			details[field] = fmt.Sprintf("%s must be at most %s", field, fe.Param())
		default:
			details[field] = fmt.Sprintf("%s validation failed on '%s' tag", field, fe.Tag())
		}
	}
	return details
}
