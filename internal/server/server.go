package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/delordemm1/routine-notifier/internal/config"
	appmw "github.com/delordemm1/routine-notifier/internal/middleware"
	"github.com/delordemm1/routine-notifier/internal/modules/notify"
)

// Deps are the module services the HTTP surface exposes.
type Deps struct {
	Notify     notify.Service
	Dispatcher *notify.Dispatcher
	Scanner    *notify.Scanner
}

type HealthResponse struct {
	Body struct {
		Status string `json:"status"`
	}
}

// New creates and configures the router with every module's routes.
func New(cfg *config.Config, log *slog.Logger, deps Deps) chi.Router {
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(appmw.CorrelationID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(middleware.Timeout(60 * time.Second))

	router.Handle("/metrics", promhttp.Handler())

	apiConfig := huma.DefaultConfig("Routine Notifier", "1.0.0")
	apiConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "Opaque",
		},
	}
	api := humachi.New(router, apiConfig)

	notifyHandler := notify.NewHandler(&notify.HandlerConfig{
		Service:    deps.Notify,
		Dispatcher: deps.Dispatcher,
		Scanner:    deps.Scanner,
		CronAuth:   appmw.CronSecretHuma(cfg.CronSecret, log),
		Logger:     log,
	})
	notifyHandler.RegisterRoutes(api)

	huma.Register(api, huma.Operation{
		OperationID: "get-health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health Check",
		Description: "Responds with the server's health status.",
	}, func(ctx context.Context, input *struct{}) (*HealthResponse, error) {
		resp := &HealthResponse{}
		resp.Body.Status = "ok"
		return resp, nil
	})

	return router
}
