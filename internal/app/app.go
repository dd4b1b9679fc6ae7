// Package app wires all signshop subsystems into a running application.
//
// The App struct owns the full lifecycle: New creates the host world, opens
// the registry store and restores the shops from it, Run serves HTTP and
// persists registry changes in the background, and Shutdown writes a final
// snapshot and releases everything in order.
//
// For testing, inject doubles via functional options (WithStore, WithWorld,
// etc.). When an option is not provided, New creates real implementations
// from the config.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/signshop/internal/api"
	"github.com/MrWong99/signshop/internal/config"
	"github.com/MrWong99/signshop/internal/health"
	"github.com/MrWong99/signshop/internal/observe"
	"github.com/MrWong99/signshop/internal/resilience"
	"github.com/MrWong99/signshop/internal/sandbox"
	"github.com/MrWong99/signshop/internal/shop"
	"github.com/MrWong99/signshop/internal/shopstore"
)

// shutdownTimeout bounds how long Run waits for in-flight requests once its
// context is cancelled.
const shutdownTimeout = 10 * time.Second

// App owns all subsystem lifetimes and serves the shop API.
type App struct {
	cfg      *config.Config
	logger   *slog.Logger
	level    *slog.LevelVar
	registry *config.Registry
	metrics  *observe.Metrics

	// Subsystems, initialised in New and torn down in Shutdown.
	world   *sandbox.World
	store   shopstore.Store
	svc     *shop.Service
	health  *health.Handler
	handler http.Handler

	metricsHandler http.Handler

	// dirty holds at most one pending save request.
	dirty chan struct{}

	// saveMu serialises snapshots so an older one never overwrites a newer one.
	saveMu sync.Mutex

	// stopOnce guards the Shutdown path.
	stopOnce sync.Once
}

// Option is a functional option for New. Use these to inject test doubles.
type Option func(*App)

// WithStore injects a registry store instead of creating one from config.
func WithStore(s shopstore.Store) Option {
	return func(a *App) { a.store = s }
}

// WithWorld injects a host world instead of creating one from config.
func WithWorld(w *sandbox.World) Option {
	return func(a *App) { a.world = w }
}

// WithLogger sets the application logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) { a.logger = l }
}

// WithLevelVar lets configuration reloads change the log level of the
// logger passed to [WithLogger].
func WithLevelVar(lv *slog.LevelVar) Option {
	return func(a *App) { a.level = lv }
}

// WithMetrics records application metrics to m instead of the global meter
// provider.
func WithMetrics(m *observe.Metrics) Option {
	return func(a *App) { a.metrics = m }
}

// WithMetricsHandler mounts h at /metrics.
func WithMetricsHandler(h http.Handler) Option {
	return func(a *App) { a.metricsHandler = h }
}

// WithRegistry replaces the storage backend registry used to open the store.
func WithRegistry(r *config.Registry) Option {
	return func(a *App) { a.registry = r }
}

// ─── New ─────────────────────────────────────────────────────────────────────

// New creates an App by wiring all subsystems together. It restores the
// registry synchronously: a store that cannot be read or a snapshot in which
// two shops claim the same location is fatal.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{
		cfg:   cfg,
		dirty: make(chan struct{}, 1),
	}
	for _, o := range opts {
		o(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	if a.registry == nil {
		a.registry = config.DefaultRegistry()
	}
	if a.metrics == nil {
		a.metrics = observe.DefaultMetrics()
	}

	// ── 1. Host world ────────────────────────────────────────────────────
	if err := a.initWorld(); err != nil {
		return nil, fmt.Errorf("app: init world: %w", err)
	}

	// ── 2. Store ─────────────────────────────────────────────────────────
	if err := a.initStore(ctx); err != nil {
		return nil, fmt.Errorf("app: init store: %w", err)
	}

	// ── 3. Shop service + restore ────────────────────────────────────────
	if err := a.initService(ctx); err != nil {
		_ = a.store.Close()
		return nil, fmt.Errorf("app: restore registry: %w", err)
	}

	// ── 4. HTTP routes ───────────────────────────────────────────────────
	a.initHTTP()

	return a, nil
}

// ─── Init helpers ────────────────────────────────────────────────────────────

// initWorld creates the sandbox world, seeding it from the configured file.
func (a *App) initWorld() error {
	if a.world != nil {
		return nil
	}
	if path := a.cfg.Sandbox.WorldFile; path != "" {
		w, err := sandbox.LoadFile(path, sandbox.WithLogger(a.logger))
		if err != nil {
			return err
		}
		a.world = w
		a.logger.Info("sandbox world seeded", "path", path)
		return nil
	}
	a.world = sandbox.New(sandbox.WithLogger(a.logger))
	return nil
}

// initStore opens the configured registry store, instruments it and puts
// it behind a circuit breaker with the optional emergency file.
func (a *App) initStore(ctx context.Context) error {
	backend := string(a.cfg.Storage.Backend)
	if a.store == nil {
		s, err := a.registry.CreateStore(ctx, a.cfg.Storage)
		if err != nil {
			return err
		}
		a.store = s
	}
	if backend == "" {
		backend = "custom"
	}
	primary := shopstore.Instrument(a.store, backend, a.metrics)

	var fallback shopstore.Store
	if path := a.cfg.Storage.FallbackPath; path != "" {
		fallback = shopstore.Instrument(shopstore.NewFileStore(path), "fallback", a.metrics)
		a.logger.Info("emergency registry file configured", "path", path)
	}
	a.store = shopstore.NewResilient(primary, backend, fallback, resilience.FallbackConfig{
		CircuitBreaker: resilience.CircuitBreakerConfig{
			MaxFailures:  a.cfg.Storage.Breaker.MaxFailures,
			ResetTimeout: a.cfg.Storage.Breaker.ResetTimeout,
		},
		Logger: a.logger,
	})
	return nil
}

// initService builds the shop service and restores the stored registry.
func (a *App) initService(ctx context.Context) error {
	env := &shop.Env{
		Signs:            a.world,
		Permissions:      a.world,
		Economy:          a.world,
		Inventories:      a.world,
		World:            a.world,
		Messenger:        a.world,
		PermissionPrefix: a.cfg.Shop.PermissionPrefix,
		CurrencyName:     a.cfg.Shop.CurrencyName,
		CurrencyItem:     a.cfg.Shop.CurrencyItem,
		Policy:           a.cfg.Shop.Policy.ShopPolicy(),
		Logger:           a.logger,
	}
	a.svc = shop.NewService(env, shop.WithMetrics(a.metrics))

	records, err := a.store.Load(ctx)
	if err != nil {
		return err
	}
	if err := a.svc.Restore(ctx, records); err != nil {
		return err
	}
	a.logger.Info("shop registry restored", "shops", len(records), "backend", a.cfg.Storage.Backend)
	return nil
}

// initHTTP assembles the routes and wraps them with telemetry.
func (a *App) initHTTP() {
	var checkers []health.Checker
	if p, ok := a.store.(shopstore.Pinger); ok {
		checkers = append(checkers, health.Checker{Name: "store", Check: p.Ping})
	}
	a.health = health.New(checkers...)

	apiHandler := api.New(a.svc, a.world,
		api.WithLogger(a.logger),
		api.WithSandbox(a.world),
		api.WithOnChange(func(context.Context) { a.markDirty() }),
	)

	mux := http.NewServeMux()
	a.health.Register(mux)
	apiHandler.Register(mux)
	if a.metricsHandler != nil {
		mux.Handle("GET /metrics", a.metricsHandler)
	}
	a.handler = observe.Middleware(a.metrics)(mux)
}

// ─── Accessors ───────────────────────────────────────────────────────────────

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler { return a.handler }

// Service returns the shop service.
func (a *App) Service() *shop.Service { return a.svc }

// World returns the host world.
func (a *App) World() *sandbox.World { return a.world }

// ─── Run ─────────────────────────────────────────────────────────────────────

// Run serves HTTP on the configured address and persists registry changes
// until ctx is cancelled. It returns nil after a clean stop.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.Server.ListenAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ErrorLog:          slog.NewLogLogger(a.logger.Handler(), slog.LevelWarn),
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("http server listening", "addr", srv.Addr, "tls", a.cfg.Server.TLS != nil)
		var err error
		if tls := a.cfg.Server.TLS; tls != nil {
			err = srv.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = srv.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: serve: %w", err)
	})

	g.Go(func() error {
		<-gctx.Done()
		a.health.SetReady(false)
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		a.persistLoop(gctx)
		return nil
	})

	a.health.SetReady(true)
	return g.Wait()
}

// markDirty requests a background save without blocking.
func (a *App) markDirty() {
	select {
	case a.dirty <- struct{}{}:
	default:
	}
}

// persistLoop saves the registry whenever it was marked dirty and retries
// failed saves after the breaker reset timeout.
func (a *App) persistLoop(ctx context.Context) {
	var retry <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-a.dirty:
		case <-retry:
		}
		retry = nil
		if err := a.Save(ctx); err != nil {
			wait := a.cfg.Storage.Breaker.ResetTimeout
			if wait <= 0 {
				wait = 30 * time.Second
			}
			a.logger.Error("failed to persist shop registry", "err", err, "retry_in", wait)
			retry = time.After(wait)
		}
	}
}

// Save writes a snapshot of the registry to the store. The snapshot is
// taken under the service lock; the write happens outside it.
func (a *App) Save(ctx context.Context) error {
	a.saveMu.Lock()
	defer a.saveMu.Unlock()
	records := a.svc.Records()
	if err := a.store.Save(ctx, records); err != nil {
		return fmt.Errorf("app: save registry: %w", err)
	}
	a.logger.Debug("shop registry saved", "shops", len(records))
	return nil
}

// ─── Config reload ───────────────────────────────────────────────────────────

// ApplyConfig applies the hot-reloadable differences between old and new.
// Settings that need a restart are logged and otherwise ignored.
func (a *App) ApplyConfig(old, new *config.Config) {
	d := config.Diff(old, new)
	if d.LogLevelChanged && a.level != nil {
		a.level.Set(d.NewLogLevel.SlogLevel())
		a.logger.Info("log level changed", "level", d.NewLogLevel)
	}
	if d.PolicyChanged {
		a.svc.SetPolicy(d.NewPolicy.ShopPolicy())
		a.logger.Info("shop policy changed",
			"claim_unowned_on_trigger", d.NewPolicy.ClaimUnownedOnTrigger,
			"admin_builds_unowned", d.NewPolicy.AdminBuildsUnowned,
		)
	}
	for _, path := range d.RestartRequired {
		a.logger.Warn("configuration change requires a restart", "setting", path)
	}
}

// ─── Shutdown ────────────────────────────────────────────────────────────────

// Shutdown writes a final registry snapshot and closes the store. It is safe
// to call more than once; only the first call has an effect.
func (a *App) Shutdown(ctx context.Context) error {
	var errs []error
	a.stopOnce.Do(func() {
		a.health.SetReady(false)
		if err := a.Save(ctx); err != nil {
			errs = append(errs, err)
		}
		if err := a.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("app: close store: %w", err))
		}
	})
	return errors.Join(errs...)
}
