package api

import (
	"net/http"

	"github.com/example/transcribe-checkout/internal/api/middleware"
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type RouterConfig struct {
	Tokens       middleware.TokenValidator
	AdminKeyHash string
	// WebDir serves the checkout widget's static files when set.
	WebDir string
	Logger *zap.Logger
}

func NewRouter(handlers *Handlers, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(cfg.Logger))
	r.Use(chimw.Recoverer)

	r.Get("/healthz", handlers.Health)
	r.Get("/catalog", handlers.GetCatalog)

	r.With(middleware.OptionalAuthMiddleware(cfg.Tokens)).Post("/checkout/sessions", handlers.CreateSession)

	r.Route("/checkout/session", func(r chi.Router) {
		r.Use(handlers.LoadSession)

		r.Get("/", handlers.GetSession)
		r.Delete("/", handlers.ResetSession)
		r.Post("/back", handlers.Back)

		r.Group(func(r chi.Router) {
			r.Use(handlers.Editable)

			r.Put("/plan", handlers.SelectPlan)
			r.Patch("/customer", handlers.UpdateCustomer)
			r.Put("/audio", handlers.SetAudio)
			r.Post("/addons/{id}/toggle", handlers.ToggleAddOn)
			r.Put("/promo", handlers.ApplyPromo)
			r.Delete("/promo", handlers.ClearPromo)
			r.Post("/next", handlers.Next)
			r.Post("/submit", handlers.Submit)
		})
	})

	r.Route("/orders", func(r chi.Router) {
		r.Get("/lookup", handlers.LookupOrder)
		r.With(middleware.AuthMiddleware(cfg.Tokens)).Get("/", handlers.GetMyOrders)
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(middleware.AdminKeyMiddleware(cfg.AdminKeyHash))

		r.Get("/analytics", handlers.GetAnalytics)
		r.Get("/orders", handlers.GetAllOrders)
		r.Post("/orders/{id}/status", handlers.UpdateOrderStatus)
	})

	if cfg.WebDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(cfg.WebDir)))
	}

	return r
}
