package chi

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	healthuc "github.com/renhe-cloud/gaswatch/internal/usecase/health"
	readingsuc "github.com/renhe-cloud/gaswatch/internal/usecase/readings"
)

// Refresher forces one source to fetch fresh data.
type Refresher func(ctx context.Context) error

// Server exposes the readings, refresh and health endpoints.
type Server struct {
	readings   *readingsuc.Service
	health     *healthuc.Service
	refreshers map[string]Refresher
	logger     *zap.Logger
}

// NewServer creates an HTTP API server.
func NewServer(
	readings *readingsuc.Service,
	health *healthuc.Service,
	refreshers map[string]Refresher,
	logger *zap.Logger,
) *Server {
	return &Server{
		readings:   readings,
		health:     health,
		refreshers: refreshers,
		logger:     logger,
	}
}

// Router builds the route tree.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Get("/healthz", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/readings", s.ListReadings)
		r.Post("/refresh", s.Refresh)
	})
	return r
}

type readingItem struct {
	Key       string     `json:"key"`
	Name      string     `json:"name"`
	Unit      string     `json:"unit,omitempty"`
	Value     float64    `json:"value"`
	Available bool       `json:"available"`
	FetchedAt *time.Time `json:"fetched_at,omitempty"`
}

type readingListResponse struct {
	Items []readingItem `json:"items"`
}

// ListReadings handles GET /api/v1/readings.
func (s *Server) ListReadings(w http.ResponseWriter, r *http.Request) {
	values := s.readings.Collect()

	items := make([]readingItem, len(values))
	for i, v := range values {
		item := readingItem{
			Key:       v.Key,
			Name:      v.Name,
			Unit:      v.Unit,
			Value:     v.Value,
			Available: v.Available,
		}
		if !v.FetchedAt.IsZero() {
			t := v.FetchedAt.UTC()
			item.FetchedAt = &t
		}
		items[i] = item
	}

	writeJSON(w, http.StatusOK, readingListResponse{Items: items})
}

type refreshResponse struct {
	Results map[string]string `json:"results"`
}

// Refresh handles POST /api/v1/refresh. It forces every registered source to
// fetch now; a fetch already in flight is joined rather than duplicated.
func (s *Server) Refresh(w http.ResponseWriter, r *http.Request) {
	resp := refreshResponse{Results: make(map[string]string, len(s.refreshers))}

	status := http.StatusOK
	for name, refresh := range s.refreshers {
		if err := refresh(r.Context()); err != nil {
			s.logger.Warn("on-demand refresh failed", zap.String("source", name), zap.Error(err))
			resp.Results[name] = "failed"
			status = http.StatusBadGateway
			continue
		}
		resp.Results[name] = "ok"
	}

	writeJSON(w, status, resp)
}

// HealthCheck handles GET /healthz.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	result := s.health.Check(r.Context())

	status := http.StatusOK
	if result.Status != healthuc.Healthy {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, result)
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
