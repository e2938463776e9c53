// Package gateway assembles the RenX security layer from configuration: the
// shared state backends, the identity store, the audit pipeline, the sweep
// jobs and the HTTP server, along with their shutdown order.
package gateway

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/Aniket2927/Renx-sub004/pkg/api"
	"github.com/Aniket2927/Renx-sub004/pkg/audit"
	"github.com/Aniket2927/Renx-sub004/pkg/auth"
	"github.com/Aniket2927/Renx-sub004/pkg/config"
	"github.com/Aniket2927/Renx-sub004/pkg/csrf"
	"github.com/Aniket2927/Renx-sub004/pkg/lockout"
	"github.com/Aniket2927/Renx-sub004/pkg/observability"
	"github.com/Aniket2927/Renx-sub004/pkg/ratelimit"
	"github.com/Aniket2927/Renx-sub004/pkg/rbac"
	"github.com/Aniket2927/Renx-sub004/pkg/session"
	"github.com/Aniket2927/Renx-sub004/pkg/store"
	"github.com/Aniket2927/Renx-sub004/pkg/sweeper"
)

const connectTimeout = 10 * time.Second

// Gateway is an assembled, not yet serving, security layer
type Gateway struct {
	cfg    *config.Config
	logger logrus.FieldLogger

	Server   *api.Server
	Metrics  *observability.Metrics
	Registry *prometheus.Registry
	Emitter  *audit.Emitter
	Sweeper  *sweeper.Scheduler
	Cache    *rbac.CachingStore
	Sessions *session.Manager
	Lockout  *lockout.Tracker
	CSRF     *csrf.Manager

	db       *sql.DB
	redis    *redis.Client
	http     *http.Server
	shutdown *observability.ShutdownManager
}

// New builds a gateway from cfg. On error every component opened so far is
// closed again.
func New(ctx context.Context, cfg *config.Config, logger logrus.FieldLogger, version string) (_ *Gateway, err error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout)
	defer func() {
		if err != nil {
			shutdown.Shutdown(context.WithoutCancel(ctx))
		}
	}()

	g := &Gateway{
		cfg:      cfg,
		logger:   logger.WithField("component", "gateway"),
		shutdown: shutdown,
	}

	telemetry, err := observability.StartTelemetry(ctx, observability.OTelConfig{
		Enabled:        cfg.Observability.OTelEnabled,
		Endpoint:       cfg.Observability.OTelEndpoint,
		ServiceName:    cfg.Observability.OTelServiceName,
		ServiceVersion: cfg.Observability.OTelServiceVersion,
		Environment:    cfg.Environment,
		Insecure:       cfg.Observability.OTelInsecure,
		SampleRatio:    cfg.Observability.OTelSampleRatio,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	g.shutdown.Register("otel", telemetry.Shutdown)

	g.Registry = prometheus.NewRegistry()
	g.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	g.Metrics = observability.NewMetrics(g.Registry)

	if err := g.connect(ctx); err != nil {
		return nil, err
	}

	identities, err := g.identityStore(ctx)
	if err != nil {
		return nil, err
	}
	g.Cache = rbac.NewCachingStore(identities, cfg.RBAC.CacheSize, cfg.RBAC.CacheTTL, g.Metrics)

	sink, err := g.auditSink()
	if err != nil {
		return nil, err
	}
	g.Emitter = audit.NewEmitter(sink, logger, cfg.Audit.EmitTimeout)
	g.Emitter.OnFailure(func(eventType audit.EventType, reason string) {
		g.Metrics.AuditFailure(string(eventType), reason)
	})
	g.shutdown.Register("audit", func(context.Context) error {
		return g.Emitter.Close()
	})

	verifier, err := g.verifier()
	if err != nil {
		return nil, err
	}

	opts, err := g.securityState()
	if err != nil {
		return nil, err
	}
	opts.Config = cfg
	opts.Verifier = verifier
	opts.Store = g.Cache
	opts.Cache = g.Cache
	opts.Emitter = g.Emitter
	opts.Metrics = g.Metrics
	opts.Registry = g.Registry
	opts.Health = observability.NewHealthChecker(g.db, g.redis, version)
	opts.Logger = logger
	g.Sessions = opts.Sessions
	g.Lockout = opts.Lockout
	g.CSRF = opts.CSRF

	if err := g.scheduleSweeps(opts); err != nil {
		return nil, err
	}

	g.Server = api.NewServer(opts)
	g.http = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      g.Server,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	g.shutdown.Register("http", g.http.Shutdown)

	return g, nil
}

// connect opens the Postgres and Redis connections the configuration needs
func (g *Gateway) connect(ctx context.Context) error {
	cfg := g.cfg

	needsPostgres := cfg.RBAC.Backend == "postgres"
	for _, sink := range cfg.Audit.Sinks {
		if sink == "db" {
			needsPostgres = true
		}
	}
	if needsPostgres {
		db, err := openPostgres(ctx, cfg.Database)
		if err != nil {
			return err
		}
		g.db = db
		g.shutdown.Register("postgres", func(context.Context) error { return db.Close() })
		g.logger.Info("Connected to PostgreSQL")
	}

	if cfg.Store.Backend == "redis" {
		client, err := openRedis(ctx, cfg.Store)
		if err != nil {
			return err
		}
		g.redis = client
		g.shutdown.Register("redis", func(context.Context) error { return client.Close() })
		g.logger.WithField("prefix", cfg.Store.Prefix).Info("Connected to Redis")
	}
	return nil
}

func openPostgres(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.PostgresURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxOpenConns / 2)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}
	return db, nil
}

// openRedis accepts either a redis:// URL or a plain host:port address
func openRedis(ctx context.Context, cfg config.StoreConfig) (*redis.Client, error) {
	opts := &redis.Options{Addr: cfg.RedisURL}
	if strings.Contains(cfg.RedisURL, "://") {
		parsed, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis URL: %w", err)
		}
		opts = parsed
	}
	if cfg.RedisPassword != "" {
		opts.Password = cfg.RedisPassword
	}
	if cfg.RedisDB != 0 {
		opts.DB = cfg.RedisDB
	}
	if cfg.RedisPoolSize > 0 {
		opts.PoolSize = cfg.RedisPoolSize
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// identityStore builds the tenant, user and permission store
func (g *Gateway) identityStore(ctx context.Context) (rbac.PermissionStore, error) {
	switch g.cfg.RBAC.Backend {
	case "postgres":
		if g.cfg.Database.RunMigrations {
			if err := rbac.RunMigrations(ctx, g.db, g.logger); err != nil {
				return nil, fmt.Errorf("failed to run rbac migrations: %w", err)
			}
		}
		return rbac.NewPostgresStore(g.db), nil
	default:
		mem := rbac.NewMemoryStore()
		if g.cfg.RBAC.SeedFile != "" {
			if err := mem.LoadSeedFile(g.cfg.RBAC.SeedFile); err != nil {
				return nil, err
			}
			g.logger.WithField("seed_file", g.cfg.RBAC.SeedFile).Info("Loaded RBAC seed")
		} else {
			g.logger.Warn("In-memory RBAC store has no seed file; only the demo tenant can authenticate outside production")
		}
		return mem, nil
	}
}

// auditSink builds the configured audit destinations
func (g *Gateway) auditSink() (audit.Logger, error) {
	var sinks []audit.Logger
	for _, name := range g.cfg.Audit.Sinks {
		switch name {
		case "log":
			sinks = append(sinks, audit.NewLogrusLogger(g.logger))
		case "file":
			fl, err := audit.NewFileLogger(audit.FileLoggerConfig{
				BasePath: g.cfg.Audit.FilePath,
				Rotate:   true,
				MaxSize:  g.cfg.Audit.MaxFileSize,
				MaxFiles: g.cfg.Audit.MaxFiles,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to open audit file: %w", err)
			}
			sinks = append(sinks, fl)
		case "db":
			dl, err := audit.NewDBLogger(g.db)
			if err != nil {
				return nil, err
			}
			sinks = append(sinks, dl)
		}
	}

	switch len(sinks) {
	case 0:
		return audit.NewNoOpLogger(), nil
	case 1:
		return sinks[0], nil
	default:
		// The emitter already delivers off the request path
		multi := audit.NewMultiLogger(sinks...)
		multi.SetAsync(false)
		return multi, nil
	}
}

func (g *Gateway) verifier() (*auth.Verifier, error) {
	cfg := g.cfg.Auth
	vc := auth.VerifierConfig{
		Issuer:   cfg.Issuer,
		Audience: cfg.Audience,
		Leeway:   cfg.Leeway,
	}

	switch {
	case cfg.PublicKeyFile != "":
		pem, err := os.ReadFile(cfg.PublicKeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read JWT public key: %w", err)
		}
		vc.PublicKeyPEM = pem
	case cfg.JWTSecret != "":
		vc.Secret = []byte(cfg.JWTSecret)
	default:
		secret, err := auth.GenerateRandomToken()
		if err != nil {
			return nil, err
		}
		g.logger.Warn("No JWT secret configured; using an ephemeral secret, tokens will not survive a restart")
		vc.Secret = []byte(secret)
	}

	return auth.NewVerifier(vc)
}

// stateStore returns a Redis-backed store when Redis is configured and an
// in-process one otherwise
func stateStore[V any](client *redis.Client, prefix string) store.Store[V] {
	if client != nil {
		return store.NewRedisStore[V](client, prefix)
	}
	return store.NewMemoryStore[V]()
}

// Policies returns the rate limit policies with the configured windows and
// ceilings
func Policies(cfg config.RateLimitConfig) []ratelimit.Policy {
	apply := func(p ratelimit.Policy, l config.LimitConfig) ratelimit.Policy {
		p.Window = l.Window
		p.Max = l.Max
		return p
	}
	return []ratelimit.Policy{
		apply(ratelimit.GeneralPolicy(), cfg.General),
		apply(ratelimit.AuthPolicy(), cfg.Auth),
		apply(ratelimit.APIPolicy(), cfg.API),
		apply(ratelimit.TradingPolicy(), cfg.Trading),
		ratelimit.TenantPolicy(cfg.Tenant.Window, cfg.Tenant.Max),
	}
}

// securityState builds the limiters, lockout tracker, CSRF and session
// managers over the shared state backend. Each store gets its own key
// namespace since a sweep decodes every key under its prefix.
func (g *Gateway) securityState() (api.Options, error) {
	cfg := g.cfg
	prefix := func(name string) string { return cfg.Store.Prefix + ":" + name }

	opts := api.Options{Limiters: make(map[ratelimit.Class]*ratelimit.Limiter)}
	for _, policy := range Policies(cfg.RateLimits) {
		limiter, err := ratelimit.NewLimiter(policy, stateStore[ratelimit.Record](g.redis, prefix("ratelimit:"+string(policy.Class))))
		if err != nil {
			return opts, err
		}
		opts.Limiters[policy.Class] = limiter
	}

	sd := cfg.RateLimits.SlowDown
	slowDown, err := ratelimit.NewSlowDown(ratelimit.SlowDownConfig{
		Window:     sd.Window,
		DelayAfter: sd.DelayAfter,
		DelayStep:  sd.DelayStep,
		MaxDelay:   sd.MaxDelay,
	}, stateStore[ratelimit.Record](g.redis, prefix("slowdown")))
	if err != nil {
		return opts, err
	}
	opts.SlowDown = slowDown

	tracker, err := lockout.NewTracker(stateStore[lockout.Attempt](g.redis, prefix("lockout")), lockout.Config{
		Threshold: cfg.Security.LockoutThreshold,
		Duration:  cfg.Security.LockoutDuration,
	})
	if err != nil {
		return opts, err
	}
	opts.Lockout = tracker

	opts.CSRF = csrf.NewManager(stateStore[csrf.Record](g.redis, prefix("csrf")), cfg.Security.CSRFTokenTTL)
	opts.Sessions = session.NewManager(stateStore[session.Session](g.redis, prefix("session")), cfg.Security.SessionTimeout)
	return opts, nil
}

// scheduleSweeps registers the expiry sweeps of every stateful component
func (g *Gateway) scheduleSweeps(opts api.Options) error {
	g.Sweeper = sweeper.New(g.logger, g.Metrics, 0)

	jobs := []sweeper.Job{
		{Name: "csrf", Schedule: sweeper.CSRFSchedule, Sweep: opts.CSRF.Sweep},
		{Name: "lockout", Schedule: sweeper.LockoutSchedule, Sweep: opts.Lockout.Sweep},
		{Name: "session", Schedule: sweeper.SessionSchedule, Sweep: opts.Sessions.Sweep},
		{Name: "slowdown", Schedule: sweeper.RateLimitSchedule, Sweep: opts.SlowDown.Sweep},
	}
	for class, limiter := range opts.Limiters {
		jobs = append(jobs, sweeper.Job{
			Name:     "ratelimit_" + string(class),
			Schedule: sweeper.RateLimitSchedule,
			Sweep:    limiter.Sweep,
		})
	}

	for _, job := range jobs {
		if err := g.Sweeper.Add(job); err != nil {
			return err
		}
	}
	g.shutdown.Register("sweeper", g.Sweeper.Stop)
	return nil
}

// Run listens on the configured address and serves until ctx ends
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.http.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", g.http.Addr, err)
	}
	return g.Serve(ctx, ln)
}

// Serve starts the sweeps and serves on ln until ctx ends, then shuts every
// component down
func (g *Gateway) Serve(ctx context.Context, ln net.Listener) error {
	eg, ctx := errgroup.WithContext(ctx)

	g.Sweeper.Start()

	eg.Go(func() error {
		g.logger.WithFields(logrus.Fields{
			"addr":        ln.Addr().String(),
			"environment": g.cfg.Environment,
		}).Info("RenX gateway listening")
		if err := g.http.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	eg.Go(func() error {
		<-ctx.Done()
		g.logger.Info("Initiating graceful shutdown...")
		return g.Close(context.Background())
	})

	return eg.Wait()
}

// Close shuts every component down in reverse order of construction
func (g *Gateway) Close(ctx context.Context) error {
	return g.shutdown.Shutdown(ctx)
}
