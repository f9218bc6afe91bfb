package server

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/sellerstream/ozon-fbo-client/pkg/normalize"
)

// PostingsRequest is the 1C request body: a reporting period as ISO
// timestamps.
type PostingsRequest struct {
	PeriodFrom string `json:"period_from" validate:"required"`
	PeriodTo   string `json:"period_to" validate:"required"`
}

// periodLayouts are the accepted request timestamp formats.
var periodLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parsePeriod(value string) (time.Time, error) {
	for _, layout := range periodLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date format: %q", value)
}

// handlePostings serves POST /v1/fbo/postings: header and period validation,
// one pipeline run, and envelope assembly. Credentials are opaque; they are
// forwarded to the upstream untouched.
func (s *Server) handlePostings(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()[:8]
	logger := s.logger.With().Str("request_id", requestID).Logger()

	metadata := map[string]any{"request_id": requestID}

	clientID := strings.TrimSpace(r.Header.Get("Client-Id"))
	apiKey := strings.TrimSpace(r.Header.Get("Api-Key"))
	if clientID == "" || apiKey == "" {
		logger.Warn().Msg("Missing credentials")
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, ErrorEnvelope("Client-Id and Api-Key headers are required", metadata, nil))
		return
	}

	var req PostingsRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil {
		logger.Warn().Err(err).Msg("Failed to decode request body")
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorEnvelope("failed to decode request body", metadata, nil))
		return
	}

	if err := validator.New().Struct(req); err != nil {
		logger.Warn().Err(err).Msg("Invalid request")
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorEnvelope(validationMessage(err), metadata, nil))
		return
	}

	periodFrom, errFrom := parsePeriod(req.PeriodFrom)
	periodTo, errTo := parsePeriod(req.PeriodTo)
	if errFrom != nil || errTo != nil {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorEnvelope("invalid date format, use YYYY-MM-DDTHH:MM:SS", metadata, nil))
		return
	}

	if periodFrom.After(periodTo) {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorEnvelope("period start is after period end", metadata, nil))
		return
	}

	maxPeriod := time.Duration(s.maxPeriodDays) * 24 * time.Hour
	if periodTo.Sub(periodFrom) > maxPeriod {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, ErrorEnvelope(
			fmt.Sprintf("period cannot exceed %d days", s.maxPeriodDays), metadata, nil))
		return
	}

	metadata["period"] = map[string]string{"from": req.PeriodFrom, "to": req.PeriodTo}

	logger.Info().
		Str("period_from", req.PeriodFrom).
		Str("period_to", req.PeriodTo).
		Msg("FBO postings request")

	pl, closeTransport, err := s.newPipeline(clientID, apiKey)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to build pipeline")
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, ErrorEnvelope(err.Error(), metadata, nil))
		return
	}
	defer closeTransport()

	stream := pl.Stream(periodFrom, periodTo)

	var postings []*normalize.Posting
	for stream.Next(r.Context()) {
		batch := stream.Batch()
		postings = append(postings, batch...)
		logger.Info().
			Int("batch", stream.BatchCount()).
			Int("batch_size", len(batch)).
			Int("total", stream.TotalItems()).
			Msg("Batch received")
	}

	if err := stream.Err(); err != nil {
		logger.Error().Err(err).Msg("Run failed")
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, ErrorEnvelope(err.Error(), metadata, stream.Log()))
		return
	}

	metadata["processed_postings"] = len(postings)
	metadata["total_found"] = stream.TotalItems()

	logger.Info().
		Int("postings", len(postings)).
		Int("batches", stream.BatchCount()).
		Msg("Request complete")

	render.Status(r, http.StatusOK)
	render.JSON(w, r, SuccessEnvelope(postings, metadata, stream.Log()))
}

// validationMessage flattens validator errors into one readable message.
func validationMessage(err error) string {
	validateErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return "invalid request"
	}

	var msgs []string
	for _, fieldErr := range validateErrs {
		switch fieldErr.ActualTag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("field %s is a required field", fieldErr.Field()))
		default:
			msgs = append(msgs, fmt.Sprintf("field %s is not valid", fieldErr.Field()))
		}
	}
	return strings.Join(msgs, ", ")
}

// handleStatus serves GET /v1/status.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	render.JSON(w, r, map[string]any{
		"status":    "active",
		"service":   serviceName,
		"version":   serviceVersion,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

// handleHealth serves GET /health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "OK")
}
