package app

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/julienschmidt/httprouter"

	"courtsync/pkg/config"
	"courtsync/pkg/contracts"
	"courtsync/pkg/middleware"
)

type Application struct {
	cfg              *config.Config
	server           *http.Server
	idempotencyStore *middleware.InMemoryIdempotencyStore
	rateLimiter      *middleware.ClientRateLimiter
	healthHandler    http.Handler
	appHandler       http.Handler
	shutdownHooks    []func(context.Context)
}

func NewApplication(cfg *config.Config) *Application {
	return &Application{cfg: cfg}
}

// SetApp wires the HTTP surface: health endpoints behind a minimal chain,
// everything else behind the full middleware stack.
func (a *Application) SetApp(healthHandler contracts.Handler, appHandlers ...contracts.Handler) {
	a.setHealthHandler(healthHandler)
	a.setAppHandler(appHandlers)
	a.setAppServer()
}

// OnShutdown registers a hook run during graceful shutdown, before the HTTP
// server drains. Hooks run in registration order.
func (a *Application) OnShutdown(hook func(context.Context)) {
	a.shutdownHooks = append(a.shutdownHooks, hook)
}

func (a *Application) setHealthHandler(healthHandler contracts.Handler) {
	healthRouter := httprouter.New()
	healthHandler.RegisterRoutes(healthRouter)

	var handler http.Handler = healthRouter
	handler = middleware.RequestLogging(a.cfg.Log)(handler)
	handler = middleware.Recovery(a.cfg.Log)(handler)
	a.healthHandler = handler
	a.cfg.Log.Info("Health endpoints configured with minimal middleware (Recovery + Logging only)")
}

func (a *Application) setAppHandler(appHandlers []contracts.Handler) {
	appRouter := httprouter.New()
	for _, h := range appHandlers {
		h.RegisterRoutes(appRouter)
	}

	a.idempotencyStore = middleware.NewInMemoryIdempotencyStore(a.cfg.IdempotencyTTL)
	a.rateLimiter = middleware.NewClientRateLimiter(
		a.cfg.RateLimitRequests,
		a.cfg.RateLimitWindow,
		a.cfg.Log,
	)

	var handler http.Handler = appRouter
	handler = middleware.Idempotency(a.idempotencyStore, "Idempotency-Key")(handler)
	handler = middleware.RequestTimeout(a.cfg.RequestTimeout)(handler)
	handler = middleware.RateLimit(a.rateLimiter)(handler)
	if a.cfg.APIToken != "" {
		handler = middleware.TokenAuth(a.cfg.APIToken, a.cfg.Log)(handler)
		a.cfg.Log.Info("API token authentication enabled")
	}
	handler = middleware.ContentTypeValidation(a.cfg.Log)(handler)
	handler = middleware.MaxRequestSize(a.cfg.MaxRequestSize)(handler)
	handler = middleware.RequestLogging(a.cfg.Log)(handler)
	handler = middleware.Recovery(a.cfg.Log)(handler)
	a.appHandler = handler
	a.cfg.Log.Info("Application endpoints configured with full security middleware stack")
}

func (a *Application) setAppServer() {
	mux := http.NewServeMux()
	mux.Handle("/health", a.healthHandler)
	mux.Handle("/ready", a.healthHandler)
	mux.Handle("/", a.appHandler)

	a.server = &http.Server{
		Addr:         ":" + a.cfg.Port,
		Handler:      mux,
		ReadTimeout:  a.cfg.ReadTimeout,
		WriteTimeout: a.cfg.WriteTimeout,
		IdleTimeout:  a.cfg.IdleTimeout,
	}

	a.cfg.Log.Info("HTTP server configured", "port", a.cfg.Port)
}

func (a *Application) Run() {
	serverErrors := make(chan error, 1)

	go func() {
		a.cfg.Log.Info("Starting HTTP server", "address", a.server.Addr)
		serverErrors <- a.server.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		a.cfg.Log.Fatal("HTTP server failed", "error", err)

	case sig := <-shutdown:
		a.cfg.Log.Info("Shutdown signal received", "signal", sig)
		a.gracefulShutdown()
	}
}

func (a *Application) gracefulShutdown() {
	a.cfg.Log.Info("Starting graceful shutdown...")

	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
	defer cancel()

	a.cfg.Log.Info("Stopping background workers...")
	for _, hook := range a.shutdownHooks {
		hook(ctx)
	}
	a.idempotencyStore.Stop()
	a.rateLimiter.Stop()
	a.cfg.Log.Info("Background workers stopped")

	if err := a.server.Shutdown(ctx); err != nil {
		a.cfg.Log.Error("Server shutdown failed", "error", err)
		if err := a.server.Close(); err != nil {
			a.cfg.Log.Fatal("Could not stop server gracefully", "error", err)
		}
	}

	a.cfg.Log.Info("Server stopped gracefully")
}
