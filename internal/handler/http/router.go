package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Psycaptr/rBNB/internal/service"
	"github.com/Psycaptr/rBNB/pkg/health"
	"github.com/Psycaptr/rBNB/pkg/middleware"
)

// NewRouter creates a chi router with all property service routes registered.
func NewRouter(
	propertyService *service.PropertyService,
	healthHandler *health.Handler,
	corsConfig middleware.CORSConfig,
	logger *slog.Logger,
) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CORS(corsConfig))
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.Tracing())
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.RequestLogger(logger))
	r.Use(middleware.PrometheusMetrics())

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	propertyHandler := NewPropertyHandler(propertyService, logger)

	// Property API endpoints
	r.Route("/api/v1/properties", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Get("/", propertyHandler.ListAvailableProperties)
		r.Get("/{id}", propertyHandler.GetProperty)
		r.Patch("/{id}", propertyHandler.UpdateProperty)
		r.Delete("/{id}", propertyHandler.DeleteProperty)
		r.Get("/{id}/listed", propertyHandler.GetListed)
		r.Put("/{id}/listed", propertyHandler.SetListed)
		r.Post("/{id}/ratings", propertyHandler.RateProperty)
	})

	// Owner-scoped endpoints (nested under users)
	r.Route("/api/v1/users/{userId}/properties", func(r chi.Router) {
		r.Use(ContentTypeJSON)

		r.Post("/", propertyHandler.CreateProperty)
		r.Get("/", propertyHandler.ListOwnerProperties)
		r.Get("/count", propertyHandler.CountOwnerProperties)
	})

	return r
}
