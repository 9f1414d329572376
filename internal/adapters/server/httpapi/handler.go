// Package httpapi provides the REST HTTP adapter for the overview surface.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	charmLog "github.com/charmbracelet/log"

	"opsdeck/internal/domain"
	"opsdeck/internal/overview"
)

// maxRequestBodyBytes limits decoded JSON payload size for fail-closed request handling.
const maxRequestBodyBytes int64 = 1 << 20

// Authenticator resolves a bearer token into the requesting user.
type Authenticator interface {
	ViewerByToken(ctx context.Context, token string, now time.Time) (domain.User, error)
}

// OverviewService computes one activity overview per viewer and timeframe.
type OverviewService interface {
	Overview(ctx context.Context, viewer domain.User, timeframe domain.Timeframe, forceRefresh bool) (overview.Result, error)
}

// Handler serves the versioned API subrouter mounted under `/api/v1`.
type Handler struct {
	auth     Authenticator
	overview OverviewService
	clock    func() time.Time
	logger   *charmLog.Logger
}

// APIError represents one structured API failure response.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorEnvelope wraps one structured API error.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// NewHandler constructs one HTTP API adapter.
func NewHandler(auth Authenticator, svc OverviewService, clock func() time.Time, logger *charmLog.Logger) *Handler {
	if clock == nil {
		clock = time.Now
	}
	if logger == nil {
		logger = charmLog.New(io.Discard)
	}
	return &Handler{
		auth:     auth,
		overview: svc,
		clock:    clock,
		logger:   logger,
	}
}

// ServeHTTP routes one versioned API request to the matching handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := normalizePath(r.URL.Path)
	switch path {
	case "overview":
		if r.Method != http.MethodPost {
			writeMethodNotAllowed(w, http.MethodPost)
			return
		}
		h.handleOverview(w, r)
	default:
		writeJSONError(w, http.StatusNotFound, APIError{
			Code:    "not_found",
			Message: "endpoint not found",
		})
	}
}

// overviewRequest is the POST `/overview` body. Both fields are optional;
// the timeframe defaults to one week.
type overviewRequest struct {
	TimeframeDays int  `json:"timeframeDays"`
	ForceRefresh  bool `json:"forceRefresh"`
}

// handleOverview serves POST `/overview`.
func (h *Handler) handleOverview(w http.ResponseWriter, r *http.Request) {
	viewer, err := h.authenticate(r)
	if err != nil {
		if !errors.Is(err, domain.ErrUnauthenticated) {
			h.logger.Error("session lookup failed", "err", err)
			writeJSONError(w, http.StatusInternalServerError, APIError{
				Code:    "internal_error",
				Message: "internal error",
			})
			return
		}
		writeJSONError(w, http.StatusUnauthorized, APIError{
			Code:    "unauthenticated",
			Message: "a valid session token is required",
		})
		return
	}

	req := overviewRequest{TimeframeDays: domain.TimeframeWeek.Days()}
	if err := decodeOptionalJSONBody(w, r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, APIError{
			Code:    "invalid_request",
			Message: err.Error(),
		})
		return
	}
	if req.TimeframeDays == 0 {
		req.TimeframeDays = domain.TimeframeWeek.Days()
	}
	timeframe, err := domain.ParseTimeframe(req.TimeframeDays)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, APIError{
			Code:    "invalid_request",
			Message: err.Error(),
		})
		return
	}

	result, err := h.overview.Overview(r.Context(), viewer, timeframe, req.ForceRefresh)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTimeframe) {
			writeJSONError(w, http.StatusBadRequest, APIError{
				Code:    "invalid_request",
				Message: err.Error(),
			})
			return
		}
		// Internals stay server-side; the client gets a generic failure.
		h.logger.Error("overview request failed", "user_id", viewer.ID, "timeframe_days", timeframe.Days(), "err", err)
		writeJSONError(w, http.StatusInternalServerError, APIError{
			Code:    "internal_error",
			Message: "internal error",
		})
		return
	}

	w.Header().Set("X-Overview-Cache", string(result.CacheStatus))
	w.Header().Set("X-Overview-Cached-At", result.CachedAt.UTC().Format(time.RFC3339))
	w.Header().Set("X-Overview-Expires-At", result.ExpiresAt.UTC().Format(time.RFC3339))
	writeJSON(w, http.StatusOK, result.Summary)
}

// authenticate resolves the request's bearer token into a user.
func (h *Handler) authenticate(r *http.Request) (domain.User, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return domain.User{}, domain.ErrUnauthenticated
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.User{}, domain.ErrUnauthenticated
	}
	return h.auth.ViewerByToken(r.Context(), token, h.clock())
}

// normalizePath canonicalizes one request path for route matching.
func normalizePath(path string) string {
	path = strings.TrimSpace(path)
	path = strings.Trim(path, "/")
	return path
}

// writeMethodNotAllowed writes a structured 405 response with `Allow` headers.
func writeMethodNotAllowed(w http.ResponseWriter, methods ...string) {
	if len(methods) > 0 {
		w.Header().Set("Allow", strings.Join(methods, ", "))
	}
	writeJSONError(w, http.StatusMethodNotAllowed, APIError{
		Code:    "method_not_allowed",
		Message: "method not allowed",
	})
}

// writeJSONError writes one structured error envelope.
func writeJSONError(w http.ResponseWriter, statusCode int, apiErr APIError) {
	writeJSON(w, statusCode, ErrorEnvelope{Error: apiErr})
}

// writeJSON writes one JSON response envelope.
func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, fmt.Sprintf(`{"error":{"code":"encode_error","message":"%s"}}`, err.Error()), http.StatusInternalServerError)
	}
}

// decodeOptionalJSONBody decodes one optional JSON body with strict shape
// checks; an empty body leaves out untouched.
func decodeOptionalJSONBody(w http.ResponseWriter, r *http.Request, out any) error {
	reader := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	defer reader.Close()

	decoder := json.NewDecoder(reader)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("decode request body: %w", err)
	}
	// Reject trailing payloads so malformed JSON bodies fail closed.
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("decode request body: trailing content")
	}
	return nil
}
