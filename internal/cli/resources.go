package cli

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/aretw0/argview"
	"github.com/aretw0/argview/internal/config"
	"github.com/aretw0/argview/pkg/adapters/file"
	"github.com/aretw0/argview/pkg/adapters/memory"
	"github.com/aretw0/argview/pkg/adapters/redis"
	"github.com/aretw0/argview/pkg/adapters/sqlite"
	"github.com/aretw0/argview/pkg/adapters/websocket"
	"github.com/aretw0/argview/pkg/domain"
	"github.com/aretw0/argview/pkg/observability"
	"github.com/aretw0/argview/pkg/persistence/middleware"
	"github.com/aretw0/argview/pkg/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// lockPrefix namespaces the mutation locks next to the retained snapshots.
const lockPrefix = "argview:"

// Resources holds the adapters selected by a Config.
// Close releases every one of them.
type Resources struct {
	Store   ports.SnapshotStore
	Locker  ports.DistributedLocker
	Journal ports.Journal
	Metrics *observability.Metrics

	closers []func() error
}

// OpenResources builds the snapshot store, lock, journal and metrics a
// configuration asks for. cfg is expected to be validated.
func OpenResources(cfg config.Config) (*Resources, error) {
	res := &Resources{}

	switch cfg.Store.Kind {
	case config.StoreFile:
		res.Store = file.New(cfg.Store.Path)
	case config.StoreRedis:
		var opts []redis.Option
		if cfg.Store.TTL > 0 {
			opts = append(opts, redis.WithTTL(cfg.Store.TTL))
		}
		store := redis.New(cfg.Store.RedisAddr, cfg.Store.RedisPassword, cfg.Store.RedisDB, opts...)
		res.Store = store
		res.closers = append(res.closers, store.Close)
		if cfg.Lock.Enabled {
			res.Locker = redis.NewLocker(store.Client(), lockPrefix)
		}
	case config.StoreMemory, "":
		res.Store = memory.NewStore()
	default:
		return nil, fmt.Errorf("unknown store kind %q", cfg.Store.Kind)
	}

	mws, err := storeMiddlewares(cfg.Store)
	if err != nil {
		_ = res.Close()
		return nil, err
	}
	if len(mws) > 0 {
		res.Store = middleware.Chain(mws...)(res.Store)
	}

	if cfg.Journal != "" {
		journal, err := sqlite.Open(cfg.Journal)
		if err != nil {
			_ = res.Close()
			return nil, fmt.Errorf("error opening journal: %w", err)
		}
		res.Journal = journal
		res.closers = append(res.closers, journal.Close)
	}

	if cfg.Metrics {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		res.Metrics = observability.NewMetrics(reg)
	}

	return res, nil
}

// storeMiddlewares masks before it encrypts, so nothing sensitive reaches the ciphertext.
func storeMiddlewares(cfg config.StoreConfig) ([]middleware.Middleware, error) {
	var mws []middleware.Middleware
	if len(cfg.Redact) > 0 {
		redact, err := middleware.NewRedactionMiddleware(cfg.Redact)
		if err != nil {
			return nil, err
		}
		mws = append(mws, redact)
	}

	active, fallback, err := cfg.Keys()
	if err != nil {
		return nil, err
	}
	if active != nil {
		mws = append(mws, middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{
			ActiveKey:    active,
			FallbackKeys: fallback,
		}))
	}
	return mws, nil
}

// EngineOptions translates the resources and cfg into engine options.
// Log hooks are always installed; metric hooks only when metrics are on.
func (r *Resources) EngineOptions(cfg config.Config, logger *slog.Logger) ([]argview.Option, error) {
	protocol, err := websocket.ParseProtocol(cfg.Protocol)
	if err != nil {
		return nil, err
	}

	hooks := []domain.Hooks{observability.LogHooks(logger)}
	if r.Metrics != nil {
		hooks = append(hooks, r.Metrics.Hooks())
	}

	opts := []argview.Option{
		argview.WithLogger(logger),
		argview.WithHooks(domain.ComposeHooks(hooks...)),
		argview.WithSnapshotStore(r.Store),
		argview.WithDialer(websocket.NewDialer(websocket.WithProtocol(protocol))),
	}
	if cfg.RunID != "" {
		opts = append(opts, argview.WithRunID(cfg.RunID))
	}
	if cfg.SubscriberBuffer > 0 {
		opts = append(opts, argview.WithSubscriberBuffer(cfg.SubscriberBuffer))
	}
	if r.Journal != nil {
		opts = append(opts, argview.WithJournal(r.Journal))
	}
	if r.Locker != nil {
		opts = append(opts, argview.WithLocker(r.Locker, cfg.Lock.TTL))
	}
	return opts, nil
}

// NewEngine opens the resources and creates an engine wired to them.
// The caller closes both.
func NewEngine(cfg config.Config, logger *slog.Logger) (*argview.Engine, *Resources, error) {
	res, err := OpenResources(cfg)
	if err != nil {
		return nil, nil, err
	}
	opts, err := res.EngineOptions(cfg, logger)
	if err != nil {
		_ = res.Close()
		return nil, nil, err
	}
	engine, err := argview.New(opts...)
	if err != nil {
		_ = res.Close()
		return nil, nil, fmt.Errorf("error initializing engine: %w", err)
	}
	return engine, res, nil
}

// Close releases the adapters in reverse order of opening.
func (r *Resources) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}
