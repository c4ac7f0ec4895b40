package main

import (
	"context"
	"fmt"
	"net/http"

	"channel-history/internal/apispec"
	"channel-history/internal/handler"
	"channel-history/internal/middleware"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type routerConfig struct {
	History    *handler.HistoryHandler
	Ready      handler.ReadyChecks
	HTTPRate   float64
	HTTPBurst  int
	Validation bool
	// ValidateResponses logs responses that drift from the OpenAPI document
	ValidateResponses bool
}

func newRouter(ctx context.Context, cfg routerConfig) (http.Handler, error) {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestLogger())
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Metrics())

	r.Get("/health", handler.Health)
	r.Get("/health/ready", handler.Ready(cfg.Ready))
	r.Handle("/metrics", promhttp.Handler())

	limiter := middleware.NewRateLimiter(ctx, cfg.HTTPRate, cfg.HTTPBurst)
	go func() {
		<-ctx.Done()
		limiter.Stop()
	}()

	var validator func(http.Handler) http.Handler
	if cfg.Validation {
		vcfg := middleware.DefaultOpenAPIValidatorConfig(apispec.OpenAPI)
		vcfg.ValidateResponses = cfg.ValidateResponses
		mw, err := middleware.NewOpenAPIValidator(vcfg)
		if err != nil {
			return nil, fmt.Errorf("openapi validator: %w", err)
		}
		validator = mw
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(limiter.Middleware())
		if validator != nil {
			r.Use(validator)
		}
		cfg.History.Routes(r)
	})

	return r, nil
}
