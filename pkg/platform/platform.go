package platform

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/txn2/gamedna/pkg/api"
	"github.com/txn2/gamedna/pkg/configstore"
	"github.com/txn2/gamedna/pkg/health"
)

// Platform runs the config API over a single store.
type Platform struct {
	config *Config

	store     configstore.Store
	checker   *health.Checker
	handler   http.Handler
	server    *http.Server
	listener  net.Listener
	lifecycle *Lifecycle

	serveErr chan error
}

// New creates a platform. Unless a store is supplied, the backend is
// selected from the database config.
func New(ctx context.Context, opts ...Option) (*Platform, error) {
	options := &Options{}
	for _, opt := range opts {
		opt(options)
	}

	if options.Config == nil {
		return nil, errors.New("config is required")
	}

	p := &Platform{
		config:    options.Config,
		checker:   health.NewChecker(),
		listener:  options.Listener,
		lifecycle: NewLifecycle(),
		serveErr:  make(chan error, 1),
	}

	store, probe := options.Store, options.Probe
	if store == nil {
		var err error
		if store, probe, err = OpenStore(ctx, options.Config.Database); err != nil {
			return nil, fmt.Errorf("opening store: %w", err)
		}
	}
	p.store = store
	p.checker.SetBackend(store.Mode(), probe)

	p.handler = p.routes()
	p.server = &http.Server{
		Addr:              options.Config.Server.Address,
		Handler:           p.handler,
		ReadTimeout:       options.Config.Server.ReadTimeout,
		ReadHeaderTimeout: options.Config.Server.ReadTimeout,
		WriteTimeout:      options.Config.Server.WriteTimeout,
	}

	p.lifecycle.AppendCloser("store", p.store)
	p.lifecycle.Append(Hook{Name: "seed", OnStart: p.seed})
	p.lifecycle.Append(Hook{Name: "http", OnStart: p.serve, OnStop: p.shutdown})

	return p, nil
}

// routes combines the config API with the health endpoints.
func (p *Platform) routes() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /healthz", p.checker.LivenessHandler())
	mux.Handle("GET /readyz", p.checker.ReadinessHandler())
	mux.Handle("/", api.NewHandler(p.store))
	return logRequests(mux)
}

// Start seeds the store, starts serving and marks the service ready.
func (p *Platform) Start(ctx context.Context) error {
	if err := p.lifecycle.Start(ctx); err != nil {
		return err
	}
	p.checker.SetReady()
	slog.Info("config service ready", "address", p.Addr(), "backend", p.store.Mode())
	return nil
}

// Stop flips readiness to draining, then shuts the server down and closes
// the store. The shutdown is bounded by server.shutdown_timeout.
func (p *Platform) Stop(ctx context.Context) error {
	p.checker.SetDraining()

	if timeout := p.config.Server.ShutdownTimeout; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return p.lifecycle.Stop(ctx)
}

// Errors delivers a fatal serve error. It never receives on clean shutdown.
func (p *Platform) Errors() <-chan error {
	return p.serveErr
}

// Addr returns the address the server listens on, once started.
func (p *Platform) Addr() string {
	if p.listener == nil {
		return p.config.Server.Address
	}
	return p.listener.Addr().String()
}

// Handler returns the root HTTP handler.
func (p *Platform) Handler() http.Handler {
	return p.handler
}

// Store returns the config store.
func (p *Platform) Store() configstore.Store {
	return p.store
}

// Checker returns the health checker.
func (p *Platform) Checker() *health.Checker {
	return p.checker
}

// Config returns the service configuration.
func (p *Platform) Config() *Config {
	return p.config
}

func (p *Platform) seed(ctx context.Context) error {
	path := p.config.Database.SeedFile
	if path == "" {
		return nil
	}

	configs, err := configstore.LoadSeedFile(path)
	if err != nil {
		return err
	}
	created, err := configstore.Seed(ctx, p.store, configs)
	if err != nil {
		return err
	}
	slog.Info("seeded config store", "file", path, "created", created, "total", len(configs))
	return nil
}

func (p *Platform) serve(context.Context) error {
	if p.listener == nil {
		ln, err := net.Listen("tcp", p.config.Server.Address)
		if err != nil {
			return fmt.Errorf("listening on %s: %w", p.config.Server.Address, err)
		}
		p.listener = ln
	}

	go func() {
		if err := p.server.Serve(p.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("http server failed", "error", err)
			p.serveErr <- err
		}
	}()
	return nil
}

func (p *Platform) shutdown(ctx context.Context) error {
	if err := p.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}
	return nil
}

// statusRecorder captures the response status for request logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// logRequests logs every request at debug level.
func logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start))
	})
}
