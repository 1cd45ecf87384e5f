// Package api exposes the proximity queries, the demand-zone cache and the
// vector tiles over HTTP for the map frontend.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/time/rate"

	"github.com/sells-group/healthmap/internal/config"
	"github.com/sells-group/healthmap/internal/demand"
	"github.com/sells-group/healthmap/internal/metrics"
	"github.com/sells-group/healthmap/internal/proximity"
	"github.com/sells-group/healthmap/internal/tiles"
)

// Recomputer runs a demand-zone pass.
type Recomputer interface {
	Run(ctx context.Context) (demand.Result, error)
}

// Server holds the handler dependencies.
type Server struct {
	svc     *proximity.Service
	engine  Recomputer
	tiles   *tiles.Handler
	limiter *rate.Limiter
	origins []string
	now     func() time.Time
}

// NewServer creates a Server. tileHandler may be nil when no PostGIS
// backend is configured.
func NewServer(cfg config.ServerConfig, svc *proximity.Service, engine Recomputer, tileHandler *tiles.Handler) *Server {
	s := &Server{
		svc:     svc,
		engine:  engine,
		tiles:   tileHandler,
		origins: cfg.CORSOrigins,
		now:     time.Now,
	}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = int(cfg.RateLimit) + 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return s
}

// Router builds the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)
	r.Use(requestMetrics)
	if len(s.origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.origins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			ExposedHeaders: []string{"Content-Disposition", "X-Cache"},
			MaxAge:         300,
		}))
	}

	r.Get("/health", s.health)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(rateLimit(s.limiter))

		r.Get("/facilities", s.listFacilities)
		r.Get("/facilities/nearest", s.nearestFacilities)
		r.Get("/facilities/recommended", s.recommendedFacilities)
		r.Get("/facilities/districts", s.facilityDistricts)
		r.Get("/population/by-region", s.populationByRegion)

		r.Get("/analytics/district-stats", s.districtStats)
		r.Get("/analytics/age-structure", s.ageStructure)
		r.Get("/analytics/clinic-summary", s.clinicSummary)
		r.Get("/analytics/high-demand-zones", s.highDemandZones)
		r.Get("/analytics/high-demand-zones/export", s.exportHighDemandZones)
		r.Post("/analytics/recompute", s.recompute)
	})

	if s.tiles != nil {
		s.tiles.Routes(r)
	}
	return r
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
