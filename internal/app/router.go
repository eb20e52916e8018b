package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/sbp-ops/sbp-ops/internal/auth"
	"github.com/sbp-ops/sbp-ops/internal/invoice"
	"github.com/sbp-ops/sbp-ops/internal/kasbon"
	"github.com/sbp-ops/sbp-ops/internal/observability"
	"github.com/sbp-ops/sbp-ops/internal/product"
	"github.com/sbp-ops/sbp-ops/internal/stock"
	"github.com/sbp-ops/sbp-ops/internal/suratjalan"
	"github.com/sbp-ops/sbp-ops/internal/ws"
	"github.com/sbp-ops/sbp-ops/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger *slog.Logger
	Config *Config

	Tokens *auth.TokenManager

	AuthHandler       *auth.Handler
	KasbonHandler     *kasbon.Handler
	StockHandler      *stock.Handler
	SuratJalanHandler *suratjalan.Handler
	InvoiceHandler    *invoice.Handler
	ProductHandler    *product.Handler
	JobHandler        *jobs.Handler
	WSHandler         *ws.Handler

	Metrics *observability.Metrics
}

// NewRouter constructs the chi.Router. Everything under /api except auth
// requires a bearer token; /ws stays open for the frontend event stream.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		params.AuthHandler.MountRoutes(r)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth(params.Tokens))

			params.KasbonHandler.MountRoutes(r)
			params.StockHandler.MountRoutes(r)
			params.SuratJalanHandler.MountRoutes(r)
			params.InvoiceHandler.MountRoutes(r)
			params.ProductHandler.MountRoutes(r)
			if params.JobHandler != nil {
				r.Route("/jobs", params.JobHandler.MountRoutes)
			}
		})
	})

	if params.WSHandler != nil {
		r.Get("/ws", params.WSHandler.ServeHTTP)
	}

	return r
}
