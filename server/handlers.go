package server

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"

	"github.com/hubenschmidt/go-movienight/core"
	"github.com/hubenschmidt/go-movienight/ingest"
	"github.com/hubenschmidt/go-movienight/logging"
)

const maxRequestBody = 1 << 20

var validate = validator.New()

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := HealthResponse{
		Status:         "OK",
		EmbeddingModel: s.model.String(),
		Store:          s.storeDriver,
	}
	n, err := s.recommender.Count(r.Context())
	if err != nil {
		resp.Status = "DEGRADED"
		resp.CatalogError = err.Error()
	}
	resp.CatalogSize = n
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRecommend(w http.ResponseWriter, r *http.Request) {
	var req RecommendRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body", Code: "bad_request"})
		return
	}
	if err := validate.Struct(req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: err.Error(), Code: "bad_request"})
		return
	}

	res, err := s.recommender.Recommend(r.Context(), req.toAnswers())
	if err != nil {
		writeError(w, r, err)
		return
	}

	recs := make([]Recommendation, len(res.Recommendations))
	for i, rr := range res.Recommendations {
		recs[i] = newRecommendation(rr)
	}
	writeJSON(w, http.StatusOK, RecommendResponse{
		Recommendations: recs,
		TotalScored:     res.TotalScored,
		Message:         fmt.Sprintf("Found %d movies, showing top matches", res.TotalScored),
		Backend:         s.model.String() + " + " + s.storeDriver,
	})
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Code: "unauthorized"})
		return
	}

	runID, err := s.ingester.Start(r.Context())
	switch {
	case errors.Is(err, ingest.ErrRunInProgress):
		writeJSON(w, http.StatusConflict, ErrorResponse{Error: err.Error(), Code: "in_progress", Retryable: true})
	case err != nil:
		logging.Ctx(r.Context()).Error().Err(err).Msg("ingestion run not started")
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error(), Code: "internal"})
	default:
		logging.Ctx(r.Context()).Info().Str("run_id", runID).Msg("ingestion run started")
		writeJSON(w, http.StatusAccepted, IngestResponse{RunID: runID, Status: "started"})
	}
}

func (s *Server) handleIngestStatus(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		writeJSON(w, http.StatusUnauthorized, ErrorResponse{Error: "unauthorized", Code: "unauthorized"})
		return
	}
	writeJSON(w, http.StatusOK, s.ingester.Status())
}

func (s *Server) authorized(r *http.Request) bool {
	token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.adminToken)) == 1
}

// writeError maps an error onto a status code and error code by kind.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := core.Classify(err)

	var (
		status int
		code   string
		msg    = err.Error()
	)
	switch kind {
	case core.KindBadInput:
		status, code, msg = http.StatusBadRequest, "no_preferences", "No preferences provided"
	case core.KindNotFound:
		status, code, msg = http.StatusNotFound, "catalog_empty", "No movies found. Please run ingestion first."
	case core.KindTransient:
		status, code = http.StatusServiceUnavailable, "transient"
	default:
		status, code, msg = http.StatusInternalServerError, "internal", "Failed to generate recommendations"
	}

	ev := logging.Ctx(r.Context()).Warn()
	if kind == core.KindInternal {
		ev = logging.Ctx(r.Context()).Error()
	}
	ev.Err(err).Str("kind", kind.String()).Msg("recommendation failed")

	writeJSON(w, status, ErrorResponse{Error: msg, Code: code, Retryable: kind == core.KindTransient})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		logging.Error().Err(err).Msg("failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Debug().Err(err).Msg("failed to write JSON response")
	}
}
