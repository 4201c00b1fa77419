package shortener

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/linkforge/shortener/internal/errx"
	"github.com/linkforge/shortener/internal/httpx"
	"github.com/linkforge/shortener/internal/metrics"
)

// HTTPShortenRequest represents the JSON request body for shortening a URL.
type HTTPShortenRequest struct {
	URL string `json:"url"`
}

// ShortenResponse represents the JSON response for a created link.
type ShortenResponse struct {
	ShortCode   string `json:"short_code"`
	ShortURL    string `json:"short_url"`
	OriginalURL string `json:"original_url"`
	CreatedAt   string `json:"created_at"`
}

// LinkPayload is a catalog entry including the click count.
type LinkPayload struct {
	ShortCode   string `json:"short_code"`
	OriginalURL string `json:"original_url"`
	CreatedAt   string `json:"created_at"`
	Clicks      int64  `json:"clicks"`
}

// ListLinksResponse represents the JSON response for the link catalog.
type ListLinksResponse struct {
	Links []LinkPayload `json:"links"`
}

// AnalyticsResponse represents the JSON response for aggregate analytics.
type AnalyticsResponse struct {
	TotalLinks  int64 `json:"total_links"`
	TotalClicks int64 `json:"total_clicks"`
}

// Handler provides HTTP handlers for the URL shortener service.
type Handler struct {
	service Service
	logger  *slog.Logger
	metrics *metrics.Metrics
	baseURL string
}

// HandlerConfig holds configuration for the handler.
type HandlerConfig struct {
	Service Service
	Logger  *slog.Logger
	Metrics *metrics.Metrics // optional
	BaseURL string           // Base URL for constructing short URLs (e.g., "https://short.ly")
}

// NewHandler creates a new Handler instance.
func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		service: cfg.Service,
		logger:  logger,
		metrics: cfg.Metrics,
		baseURL: cfg.BaseURL,
	}
}

// Shorten handles POST requests to create a new short link.
func (h *Handler) Shorten(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	requestID := httpx.GetRequestID(ctx)

	logger := h.logger.With(
		"request_id", requestID,
		"method", r.Method,
		"path", r.URL.Path,
	)

	req, err := httpx.DecodeJSON[HTTPShortenRequest](r)
	if err != nil {
		logger.WarnContext(ctx, "failed to decode request",
			"error", err.Error(),
		)
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error(), nil)
		return
	}

	if req.URL == "" {
		logger.WarnContext(ctx, "missing url in request")
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "url is required", nil)
		return
	}

	link, err := h.service.Shorten(ctx, req.URL)
	if err != nil {
		h.handleShortenError(ctx, w, err)
		return
	}

	if h.metrics != nil {
		h.metrics.LinksCreated.Inc()
	}

	resp := ShortenResponse{
		ShortCode:   link.ShortCode,
		ShortURL:    fmt.Sprintf("%s/%s", h.baseURL, link.ShortCode),
		OriginalURL: link.OriginalURL,
		CreatedAt:   link.CreatedAt.Format(time.RFC3339),
	}

	logger.InfoContext(ctx, "link created successfully",
		"link_id", link.ID.String(),
		"short_code", link.ShortCode,
	)

	httpx.WriteJSON(w, http.StatusCreated, resp)
}

// Redirect handles GET requests to resolve a short code and redirect to the
// original URL. The click is accounted before the redirect is written.
func (h *Handler) Redirect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	requestID := httpx.GetRequestID(ctx)

	logger := h.logger.With(
		"request_id", requestID,
		"method", r.Method,
		"path", r.URL.Path,
	)

	code := r.PathValue("code")
	if code == "" {
		logger.WarnContext(ctx, "missing code in path")
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "short code is required", nil)
		return
	}

	if err := validateCodeFormat(code); err != nil {
		logger.WarnContext(ctx, "invalid code format",
			"code", code,
			"error", err.Error(),
		)
		httpx.WriteError(w, http.StatusNotFound, "not_found", "short link doesn't exist", nil)
		return
	}

	originalURL, err := h.service.Resolve(ctx, code)
	if err != nil {
		h.handleResolveError(ctx, w, err, code)
		return
	}

	if h.metrics != nil {
		h.metrics.RedirectsServed.Inc()
	}

	logger.InfoContext(ctx, "code resolved successfully",
		"code", code,
		"original_url", originalURL,
		"user_agent", r.UserAgent(),
		"referer", r.Referer(),
	)

	http.Redirect(w, r, originalURL, http.StatusFound)
}

// ListLinks handles GET requests for the link catalog with click counts.
func (h *Handler) ListLinks(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	logger := h.logger.With(
		"request_id", httpx.GetRequestID(ctx),
		"method", r.Method,
		"path", r.URL.Path,
	)

	stats, err := h.service.ListWithStats(ctx)
	if err != nil {
		h.handleQueryError(ctx, w, err, "failed to list links")
		return
	}

	resp := ListLinksResponse{Links: make([]LinkPayload, 0, len(stats))}
	for _, ls := range stats {
		resp.Links = append(resp.Links, LinkPayload{
			ShortCode:   ls.ShortCode,
			OriginalURL: ls.OriginalURL,
			CreatedAt:   ls.CreatedAt.Format(time.RFC3339),
			Clicks:      ls.Clicks,
		})
	}

	logger.DebugContext(ctx, "catalog listed", "count", len(resp.Links))

	httpx.WriteJSON(w, http.StatusOK, resp)
}

// Analytics handles GET requests for aggregate statistics.
func (h *Handler) Analytics(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	stats, err := h.service.Aggregate(ctx)
	if err != nil {
		h.handleQueryError(ctx, w, err, "failed to aggregate analytics")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, AnalyticsResponse{
		TotalLinks:  stats.TotalLinks,
		TotalClicks: stats.TotalClicks,
	})
}

// handleShortenError handles errors from the Shorten service method.
func (h *Handler) handleShortenError(ctx context.Context, w http.ResponseWriter, err error) {
	kind := errx.KindOf(err)

	logAttrs := []any{
		"error", err.Error(),
		"error_kind", kind,
		"operation", errx.OpOf(err),
	}

	switch kind {
	case errx.Invalid:
		h.logger.WarnContext(ctx, "invalid shorten request", logAttrs...)
		httpx.WriteError(w, http.StatusBadRequest, "invalid_input", err.Error(), nil)

	case errx.Exhausted:
		h.logger.ErrorContext(ctx, "short code space exhausted", logAttrs...)
		httpx.WriteError(w, http.StatusInternalServerError, "exhausted",
			"Unable to allocate a short code at this time. Please try again.", nil)

	case errx.Unavailable:
		h.logger.ErrorContext(ctx, "store unavailable", logAttrs...)
		httpx.WriteError(w, http.StatusServiceUnavailable, "unavailable",
			"Unable to create short link at this time. Please try again.", nil)

	default:
		h.logger.ErrorContext(ctx, "unexpected error creating link", logAttrs...)
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error",
			"Unable to create short link at this time. Please try again.", nil)
	}
}

// handleResolveError handles errors from the Resolve service method.
func (h *Handler) handleResolveError(ctx context.Context, w http.ResponseWriter, err error, code string) {
	kind := errx.KindOf(err)

	logAttrs := []any{
		"error", err.Error(),
		"error_kind", kind,
		"operation", errx.OpOf(err),
		"code", code,
	}

	switch kind {
	case errx.NotFound:
		h.logger.WarnContext(ctx, "code not found", logAttrs...)
		httpx.WriteError(w, http.StatusNotFound, "not_found",
			"short link doesn't exist", nil)

	case errx.Invalid:
		h.logger.WarnContext(ctx, "invalid code", logAttrs...)
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", err.Error(), nil)

	case errx.Unavailable:
		h.logger.ErrorContext(ctx, "analytics unavailable", logAttrs...)
		httpx.WriteError(w, http.StatusServiceUnavailable, "unavailable",
			"Unable to resolve this link at this time. Please try again.", nil)

	default:
		h.logger.ErrorContext(ctx, "unexpected error resolving link", logAttrs...)
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error",
			"Unable to resolve this link at this time", nil)
	}
}

// handleQueryError handles errors from the read-only catalog operations.
func (h *Handler) handleQueryError(ctx context.Context, w http.ResponseWriter, err error, msg string) {
	logAttrs := []any{
		"error", err.Error(),
		"error_kind", errx.KindOf(err),
		"operation", errx.OpOf(err),
	}

	switch errx.KindOf(err) {
	case errx.Unavailable:
		h.logger.ErrorContext(ctx, msg, logAttrs...)
		httpx.WriteError(w, http.StatusServiceUnavailable, "unavailable",
			"Unable to load link statistics at this time. Please try again.", nil)

	default:
		h.logger.ErrorContext(ctx, msg, logAttrs...)
		httpx.WriteError(w, http.StatusInternalServerError, "internal_error",
			"Unable to load link statistics at this time", nil)
	}
}

// validateCodeFormat performs basic code format validation for the HTTP layer.
// This is a lightweight check before calling the service layer.
func validateCodeFormat(code string) error {
	if code == "" || len(code) > MaxCodeLength {
		return errors.New("invalid link")
	}
	for _, c := range code {
		if !isBase62Char(c) {
			return errors.New("invalid link")
		}
	}
	return nil
}

func isBase62Char(c rune) bool {
	switch {
	case c >= 'a' && c <= 'z':
		return true
	case c >= 'A' && c <= 'Z':
		return true
	case c >= '0' && c <= '9':
		return true
	default:
		return false
	}
}
