/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. RealIP:     Client address behind a proxy
  3. Logger:     Request logging (logrus)
  4. Recoverer:  Panic recovery (500 instead of crash)
  5. Metrics:    Prometheus request counters and latency
  6. CORS:       Cross-origin requests for frontend
  7. Timeout:    Per-request deadline, honoured by the ledger lock

  Under /api only:
  8. RequireUser: X-User-ID header, set by the upstream auth layer
  9. RateLimit:   Token bucket per user

ROUTE GROUPS:
  /healthz              Liveness + database ping
  /metrics              Prometheus scrape endpoint
  /api/budget/*         Balance, top-ups, history, corrections
  /api/batches/*        Batch purchase and cascade delete
  /api/items/*          Item edits and the sale state machine
  /api/costs/*          Operational costs
  /api/stats            Inventory totals

SECURITY NOTE:
  Authentication happens upstream. This service trusts X-User-ID and only
  rejects requests that lack it.

SEE ALSO:
  - handlers.go: Handler implementations
  - middleware.go: User, rate limit and logging middleware
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"
	"github.com/warp/resale-ledger/metrics"
	"golang.org/x/time/rate"
)

// RouterOptions configures the middleware stack.
type RouterOptions struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
	RateLimit      rate.Limit // requests per second per user; 0 disables
	RateBurst      int
	Logger         logrus.FieldLogger
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts RouterOptions) *chi.Mux {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(opts.Logger))
	r.Use(middleware.Recoverer)
	r.Use(metrics.InstrumentHandler)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", UserHeader},
		AllowCredentials: true,
	}))
	if opts.RequestTimeout > 0 {
		r.Use(middleware.Timeout(opts.RequestTimeout))
	}

	r.Get("/healthz", h.Health)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(RequireUser)
		if opts.RateLimit > 0 {
			r.Use(NewRateLimiter(opts.RateLimit, opts.RateBurst, opts.Logger).Handler)
		}

		// Budget routes
		r.Route("/budget", func(r chi.Router) {
			r.Get("/", h.GetBudget)
			r.Post("/topup", h.TopUp)
			r.Get("/transactions", h.ListTransactions)
			r.Delete("/transactions/{id}", h.VoidTransaction)
			r.Post("/reconcile", h.Reconcile)
		})

		// Batch routes
		r.Route("/batches", func(r chi.Router) {
			r.Get("/", h.ListBatches)
			r.Post("/", h.CreateBatch)
			r.Get("/{id}", h.GetBatch)
			r.Put("/{id}", h.UpdateBatch)
			r.Delete("/{id}", h.DeleteBatch)
			r.Post("/{id}/items", h.CreateItem)
		})

		// Item routes
		r.Route("/items", func(r chi.Router) {
			r.Get("/", h.ListItems)
			r.Get("/{id}", h.GetItem)
			r.Put("/{id}", h.UpdateItem)
			r.Delete("/{id}", h.DeleteItem)
			r.Post("/{id}/sale", h.RegisterSale)
			r.Delete("/{id}/sale", h.ReverseSale)
		})

		// Operational cost routes
		r.Route("/costs", func(r chi.Router) {
			r.Get("/", h.ListCosts)
			r.Post("/", h.AddCost)
			r.Delete("/{id}", h.DeleteCost)
		})

		r.Get("/stats", h.GetStats)
	})

	return r
}
