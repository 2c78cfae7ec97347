package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/FrancoRivero2025/quote-average/internal/adapters/metrics"
	"github.com/FrancoRivero2025/quote-average/internal/application"
	"github.com/FrancoRivero2025/quote-average/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// QuoteService is the controller surface the API serves.
type QuoteService interface {
	Get(ctx context.Context, exchangeID string) (domain.QuoteSet, error)
	GetAll(ctx context.Context) map[string]application.Result
	GetExchanges(ctx context.Context, ids ...string) map[string]application.Result
	Exchanges() []string
	Status() []domain.ExchangeStatus
}

// Snapshots exposes the last published quote sets.
type Snapshots interface {
	All() []domain.QuoteSet
}

type Handler struct {
	service   QuoteService
	snapshots Snapshots
}

func NewHandler(s QuoteService, snapshots Snapshots) *Handler {
	return &Handler{service: s, snapshots: snapshots}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(metricsMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/quotes", h.getQuotes)
		r.Get("/quotes/{exchange}", h.getExchangeQuotes)
		r.Get("/exchanges", h.getExchanges)
		r.Get("/snapshot", h.getSnapshot)
	})
	r.Get("/health", h.health)
	r.Get("/ready", h.ready)
	r.Get("/healthz", h.healthz)
	r.Get("/metrics", h.metrics)

	return r
}

type errorResponse struct {
	Error    string `json:"error"`
	Code     string `json:"code,omitempty"`
	Failures int    `json:"consecutive_failures,omitempty"`
}

type successResponse struct {
	Data interface{}            `json:"data"`
	Meta map[string]interface{} `json:"meta"`
}

type quotesResponse struct {
	Data   map[string]domain.QuoteSet `json:"data"`
	Errors map[string]string          `json:"errors,omitempty"`
	Meta   map[string]interface{}     `json:"meta"`
}

type statusResponse struct {
	Status string `json:"status"`
}

func parseExchangesParam(q string) []string {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil
	}

	parts := strings.Split(q, ",")
	res := make([]string, 0, len(parts))
	seen := make(map[string]bool)

	for _, p := range parts {
		id := strings.ToLower(strings.TrimSpace(p))
		if id != "" && !seen[id] {
			res = append(res, id)
			seen[id] = true
		}
	}
	return res
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "", http.StatusInternalServerError)
	}
}

func respondError(w http.ResponseWriter, err error) {
	var unavailable *domain.ExchangeUnavailable
	var unknown *domain.UnknownExchangeError
	switch {
	case errors.As(err, &unknown):
		respondJSON(w, http.StatusNotFound, errorResponse{
			Error: "Exchange not configured: " + unknown.Exchange,
			Code:  "NOT_FOUND",
		})
	case errors.As(err, &unavailable):
		respondJSON(w, http.StatusServiceUnavailable, errorResponse{
			Error:    unavailable.Error(),
			Code:     "EXCHANGE_UNAVAILABLE",
			Failures: unavailable.Failures,
		})
	case errors.Is(err, domain.ErrMisconfigured):
		respondJSON(w, http.StatusInternalServerError, errorResponse{
			Error: err.Error(),
			Code:  "MISCONFIGURED",
		})
	default:
		respondJSON(w, http.StatusInternalServerError, errorResponse{
			Error: err.Error(),
			Code:  "INTERNAL",
		})
	}
}

func (h *Handler) getExchangeQuotes(w http.ResponseWriter, r *http.Request) {
	id := strings.ToLower(chi.URLParam(r, "exchange"))

	qs, err := h.service.Get(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, successResponse{
		Data: qs,
		Meta: map[string]interface{}{
			"source":     qs.Source,
			"currencies": len(qs.Quotes),
		},
	})
}

func (h *Handler) getQuotes(w http.ResponseWriter, r *http.Request) {
	var results map[string]application.Result
	if ids := parseExchangesParam(r.URL.Query().Get("exchanges")); len(ids) > 0 {
		results = h.service.GetExchanges(r.Context(), ids...)
	} else {
		results = h.service.GetAll(r.Context())
	}

	resp := quotesResponse{
		Data:   make(map[string]domain.QuoteSet, len(results)),
		Errors: make(map[string]string),
	}
	for id, res := range results {
		if res.Err != nil {
			resp.Errors[id] = res.Err.Error()
			continue
		}
		resp.Data[id] = res.QuoteSet
	}
	resp.Meta = map[string]interface{}{
		"count":  len(resp.Data),
		"failed": len(resp.Errors),
	}

	if len(resp.Data) == 0 && len(resp.Errors) > 0 {
		respondJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *Handler) getExchanges(w http.ResponseWriter, r *http.Request) {
	status := h.service.Status()
	respondJSON(w, http.StatusOK, successResponse{
		Data: status,
		Meta: map[string]interface{}{"count": len(status)},
	})
}

func (h *Handler) getSnapshot(w http.ResponseWriter, r *http.Request) {
	if h.snapshots == nil {
		respondJSON(w, http.StatusNotFound, errorResponse{
			Error: "No snapshot store configured",
			Code:  "NOT_FOUND",
		})
		return
	}
	all := h.snapshots.All()
	respondJSON(w, http.StatusOK, successResponse{
		Data: all,
		Meta: map[string]interface{}{"count": len(all)},
	})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, statusResponse{Status: "ok"})
}

func (h *Handler) ready(w http.ResponseWriter, r *http.Request) {
	if h.service == nil || len(h.service.Exchanges()) == 0 {
		respondJSON(w, http.StatusServiceUnavailable,
			statusResponse{Status: "not ready"})
		return
	}
	respondJSON(w, http.StatusOK, statusResponse{Status: "ready"})
}

type healthzResponse struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services,omitempty"`
}

// healthz reports an exchange as reachable when its last call succeeded.
// Exchanges that were never queried are "unknown" and do not degrade the
// service.
func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	servicesStatus := make(map[string]string)
	degraded := false

	for _, st := range h.service.Status() {
		switch {
		case st.Failures > 0:
			servicesStatus[st.Exchange] = "unreachable"
			degraded = true
		case st.HasData:
			servicesStatus[st.Exchange] = "reachable"
		default:
			servicesStatus[st.Exchange] = "unknown"
		}
	}

	if degraded {
		respondJSON(w, http.StatusServiceUnavailable, healthzResponse{
			Status:   "degraded",
			Services: servicesStatus,
		})
		return
	}

	respondJSON(w, http.StatusOK, healthzResponse{
		Status:   "ok",
		Services: servicesStatus,
	})
}

func (h *Handler) metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		// The route pattern keeps exchange ids out of the label set.
		path := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			path = rc.RoutePattern()
		}

		metrics.HTTPRequestsTotal.WithLabelValues(
			r.Method,
			path,
			http.StatusText(rw.statusCode),
		).Inc()

		metrics.HTTPRequestDuration.WithLabelValues(
			r.Method,
			path,
		).Observe(time.Since(start).Seconds())
	})
}

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
