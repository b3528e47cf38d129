package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/orderengine/pkg/health"
	"github.com/utafrali/orderengine/pkg/middleware"
)

const serviceName = "order-engine"

// Handlers groups the API handlers mounted by NewRouter.
type Handlers struct {
	Orders  *OrderHandler
	Catalog *CatalogHandler
	Promos  *PromoHandler
}

// RouterConfig holds the transport settings of NewRouter.
type RouterConfig struct {
	CORS       middleware.CORSConfig
	PprofCIDRs []string
	// PlacementLimit throttles POST /api/v1/orders per client.
	PlacementLimit middleware.RateLimitConfig
}

// NewRouter creates a chi router with all order engine routes registered.
func NewRouter(h Handlers, healthHandler *health.Handler, logger *slog.Logger, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CORS(cfg.CORS))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(30 * time.Second))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics(serviceName))
	r.Use(middleware.Tracing(serviceName))
	r.Use(middleware.UserID)
	r.Use(middleware.RequestLogger(logger))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Handle("/metrics", promhttp.Handler())

	middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(ContentTypeJSON)
		mountRoutes(r, h, middleware.RateLimit(cfg.PlacementLimit, logger))
	})

	return r
}

func mountRoutes(r chi.Router, h Handlers, placementLimit func(http.Handler) http.Handler) {
	r.Route("/orders", func(r chi.Router) {
		r.With(placementLimit).Post("/", h.Orders.PlaceOrder)
		r.Get("/", h.Orders.ListOrders)
		r.Get("/number/{number}", h.Orders.GetOrderByNumber)
		r.Get("/{id}", h.Orders.GetOrder)
		r.Put("/{id}/status", h.Orders.UpdateOrderStatus)
		r.Post("/{id}/cancel", h.Orders.CancelOrder)
	})

	r.Get("/products/{id}", h.Catalog.GetProduct)
	r.Get("/currencies", h.Catalog.ListCurrencies)

	r.Route("/promos", func(r chi.Router) {
		r.Post("/", h.Promos.CreatePromo)
		r.Post("/validate", h.Promos.ValidatePromo)
	})
}
