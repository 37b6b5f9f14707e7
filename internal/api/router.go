package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dougwithseismic/dotoro-ads-sub008/internal/observability"
)

func Router(h *Handler, timeout time.Duration) http.Handler {
	r := chi.NewRouter()

	r.Use(observability.Measure)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(timeout))

	r.Route("/v1", func(r chi.Router) {
		r.Route("/rules", func(r chi.Router) {
			r.Get("/", h.ListRules)
			r.Put("/", h.SaveRules)
			r.Post("/evaluate", h.EvaluateRules)
			r.Post("/test", h.TestRule)
		})
		r.Post("/campaigns/generate", h.Generate)
		r.Put("/campaigns/{id}/status", h.SetCampaignStatus)
		r.Route("/sync", func(r chi.Router) {
			r.Post("/diff", h.Diff)
			r.Post("/execute", h.Execute)
			r.Get("/history", h.History)
		})
	})
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", observability.MetricsHandler())
	return r
}
