package http

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/schoolpulse/assessment-hub/internal/application/command"
	"github.com/schoolpulse/assessment-hub/internal/application/query"
	"github.com/schoolpulse/assessment-hub/internal/domain/shared"
	"github.com/schoolpulse/assessment-hub/internal/domain/upload"
	"github.com/schoolpulse/assessment-hub/internal/interface/http/handlers"
	"github.com/schoolpulse/assessment-hub/pkg/logger"
	"github.com/schoolpulse/assessment-hub/pkg/timeutil"
)

// xlsxContentType is the MIME type of the template workbook.
const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves basic API information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]any{
		"name":    "Assessment Hub API",
		"version": s.config.Version,
		"endpoints": map[string]string{
			"health":     "/health",
			"uploads":    "/api/v1/uploads",
			"template":   "/api/v1/uploads/template",
			"aggregates": "/api/v1/aggregates",
			"trends":     "/api/v1/trends",
			"rollups":    "/api/v1/rollups/classrooms",
		},
	})
}

// handleHealth reports every check. Degraded (optional check failing) still
// answers 200.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker == nil {
		writeJSON(w, r, http.StatusOK, map[string]any{
			"status":  "healthy",
			"uptime":  s.Uptime().String(),
			"version": s.config.Version,
		})
		return
	}

	status := s.deps.HealthChecker.Check(r.Context())
	code := http.StatusOK
	if !status.Ready {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, r, code, status)
}

// handleReady handles the readiness probe endpoint.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Ready {
			writeJSON(w, r, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"reason": status.Message,
			})
			return
		}
	}
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive handles the liveness probe endpoint.
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// UPLOAD HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleUpload handles POST /api/v1/uploads. The workbook arrives in the
// multipart field "file". A FAILED batch answers 422 with the full result.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.deps.IngestScores == nil {
		writeJSONError(w, r, http.StatusNotImplemented, "not_implemented", "Upload handler not configured")
		return
	}

	if err := r.ParseMultipartForm(s.config.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.handleTooLarge(w, r)
			return
		}
		writeJSONError(w, r, http.StatusBadRequest, "invalid_request", "Request must be multipart/form-data with a file field")
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSONError(w, r, http.StatusBadRequest, "missing_file", "Form field \"file\" is required")
		return
	}
	defer file.Close()

	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(file, s.config.MaxUploadBytes+1))
	if err != nil {
		writeJSONError(w, r, http.StatusBadRequest, "invalid_request", "Uploaded file could not be read")
		return
	}
	if n > s.config.MaxUploadBytes {
		s.handleTooLarge(w, r)
		return
	}

	result, err := s.deps.IngestScores.Handle(r.Context(), command.IngestScoresCommand{
		UserID:   handlers.UserIDFromContext(r.Context()),
		Filename: header.Filename,
		Content:  buf.Bytes(),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	status := http.StatusOK
	if result.Status == upload.StatusFailed {
		status = http.StatusUnprocessableEntity
	}
	writeJSONWithMeta(w, r, status, result, nil)
}

// handleListUploads handles GET /api/v1/uploads.
func (s *Server) handleListUploads(w http.ResponseWriter, r *http.Request) {
	if s.deps.ListUploads == nil {
		writeJSONError(w, r, http.StatusNotImplemented, "not_implemented", "Upload history not configured")
		return
	}

	limit, ok := intParam(w, r, "limit", 0)
	if !ok {
		return
	}

	result, err := s.deps.ListUploads.Handle(r.Context(), query.ListUploadsQuery{Limit: limit})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSONWithMeta(w, r, http.StatusOK, result, &ResponseMeta{Count: len(result.Uploads)})
}

// handleTemplate handles GET /api/v1/uploads/template.
func (s *Server) handleTemplate(w http.ResponseWriter, r *http.Request) {
	if s.deps.WriteTemplate == nil {
		writeJSONError(w, r, http.StatusNotImplemented, "not_implemented", "Template not configured")
		return
	}

	var buf bytes.Buffer
	if err := s.deps.WriteTemplate(&buf); err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="assessment-upload-template.xlsx"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) handleMissingUser(w http.ResponseWriter, r *http.Request) {
	writeJSONError(w, r, http.StatusUnauthorized, "missing_user", "Header "+handlers.UserIDHeader+" is required")
}

func (s *Server) handleTooLarge(w http.ResponseWriter, r *http.Request) {
	writeJSONError(w, r, http.StatusRequestEntityTooLarge, "payload_too_large",
		"Workbook exceeds the upload limit of "+strconv.FormatInt(s.config.MaxUploadBytes, 10)+" bytes")
}

// ══════════════════════════════════════════════════════════════════════════════
// DASHBOARD HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetAggregates handles GET /api/v1/aggregates.
func (s *Server) handleGetAggregates(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetTierDistribution == nil {
		writeJSONError(w, r, http.StatusNotImplemented, "not_implemented", "Aggregates not configured")
		return
	}

	week, ok := dateParam(w, r, "week")
	if !ok {
		return
	}

	q := query.GetTierDistributionQuery{
		Grade:     r.URL.Query().Get("grade"),
		Classroom: r.URL.Query().Get("classroom"),
		Subject:   r.URL.Query().Get("subject"),
		WeekStart: week,
	}
	result, err := s.deps.GetTierDistribution.Handle(r.Context(), q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, result)
}

// handleGetTrends handles GET /api/v1/trends.
func (s *Server) handleGetTrends(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetTierTrends == nil {
		writeJSONError(w, r, http.StatusNotImplemented, "not_implemented", "Trends not configured")
		return
	}

	from, ok := dateParam(w, r, "from")
	if !ok {
		return
	}
	to, ok := dateParam(w, r, "to")
	if !ok {
		return
	}

	q := query.GetTierTrendsQuery{
		Grade:     r.URL.Query().Get("grade"),
		Classroom: r.URL.Query().Get("classroom"),
		Subject:   r.URL.Query().Get("subject"),
		From:      from,
		To:        to,
	}
	result, err := s.deps.GetTierTrends.Handle(r.Context(), q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSONWithMeta(w, r, http.StatusOK, result, &ResponseMeta{Count: len(result.Points)})
}

// handleGetClassroomRollup handles GET /api/v1/rollups/classrooms.
func (s *Server) handleGetClassroomRollup(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetClassroomRollup == nil {
		writeJSONError(w, r, http.StatusNotImplemented, "not_implemented", "Rollups not configured")
		return
	}

	week, ok := dateParam(w, r, "week")
	if !ok {
		return
	}

	q := query.GetClassroomRollupQuery{
		Grade:     r.URL.Query().Get("grade"),
		Subject:   r.URL.Query().Get("subject"),
		WeekStart: week,
	}
	result, err := s.deps.GetClassroomRollup.Handle(r.Context(), q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSONWithMeta(w, r, http.StatusOK, result, &ResponseMeta{Count: len(result.Classrooms)})
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING AND PARAMETERS
// ══════════════════════════════════════════════════════════════════════════════

// writeError maps an application error onto a status code. Only messages of
// domain errors reach the client.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var de *shared.DomainError
	message := "An unexpected error occurred"
	if errors.As(err, &de) {
		message = de.Message
	}

	switch {
	case shared.IsValidation(err):
		writeJSONError(w, r, http.StatusBadRequest, "validation_error", message)
	case shared.IsNotFound(err):
		writeJSONError(w, r, http.StatusNotFound, "not_found", message)
	case errors.Is(err, shared.ErrConflict):
		writeJSONError(w, r, http.StatusConflict, "conflict", message)
	case shared.IsPersistence(err):
		logger.FromContext(r.Context()).Error("storage failed", logger.Err(err))
		writeJSONError(w, r, http.StatusServiceUnavailable, "storage_unavailable", message)
	case errors.Is(err, context.DeadlineExceeded):
		writeJSONError(w, r, http.StatusGatewayTimeout, "timeout", "Request timed out")
	case errors.Is(err, context.Canceled):
		// Client went away; nobody reads the body.
		w.WriteHeader(499)
	default:
		logger.FromContext(r.Context()).Error("request failed", logger.Err(err))
		writeJSONError(w, r, http.StatusInternalServerError, "internal_error", message)
	}
}

// dateParam parses an optional date query parameter and floors it to the
// Monday of its week. On failure it writes the 400 response and returns
// ok=false.
func dateParam(w http.ResponseWriter, r *http.Request, key string) (time.Time, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return time.Time{}, true
	}
	t, err := timeutil.ParseWeek(raw)
	if err != nil {
		writeJSONError(w, r, http.StatusBadRequest, "validation_error", key+" must be a date like 2025-08-25")
		return time.Time{}, false
	}
	return t, true
}

// intParam parses an optional integer query parameter.
func intParam(w http.ResponseWriter, r *http.Request, key string, def int) (int, bool) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		writeJSONError(w, r, http.StatusBadRequest, "validation_error", key+" must be an integer")
		return 0, false
	}
	return n, true
}
