package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/linnemanlabs-users/internal/cache"
	"github.com/keithlinneman/linnemanlabs-users/internal/cfg"
	"github.com/keithlinneman/linnemanlabs-users/internal/events"
	"github.com/keithlinneman/linnemanlabs-users/internal/health"
	"github.com/keithlinneman/linnemanlabs-users/internal/httpmw"
	"github.com/keithlinneman/linnemanlabs-users/internal/httpserver"
	"github.com/keithlinneman/linnemanlabs-users/internal/log"
	"github.com/keithlinneman/linnemanlabs-users/internal/metrics"
	"github.com/keithlinneman/linnemanlabs-users/internal/opshttp"
	"github.com/keithlinneman/linnemanlabs-users/internal/otelx"
	"github.com/keithlinneman/linnemanlabs-users/internal/prof"
	"github.com/keithlinneman/linnemanlabs-users/internal/ratelimit"
	"github.com/keithlinneman/linnemanlabs-users/internal/user"
	"github.com/keithlinneman/linnemanlabs-users/internal/usershttp"
	v "github.com/keithlinneman/linnemanlabs-users/internal/version"
)

const envPrefix = "USERSVC_"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	vi := v.Get()

	var conf cfg.App
	var showVersion bool

	cfg.Register(flag.CommandLine, &conf)
	flag.BoolVar(&showVersion, "V", false, "Print version+build information and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf(
			"%s %s (commit=%s, commit_date=%s, build_id=%s, build_date=%s, go=%s, dirty=%v)\n",
			vi.App, vi.Version, vi.Commit, vi.CommitDate, vi.BuildID, vi.BuildDate, vi.GoVersion,
			vi.VCSDirty != nil && *vi.VCSDirty,
		)
		os.Exit(0)
	}

	// dotenv first so process env and cli flags both override it
	if err := cfg.LoadEnvFile(conf.EnvFile); err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}
	cfg.FillFromEnv(flag.CommandLine, envPrefix, func(format string, args ...any) {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	})

	if err := cfg.Validate(conf); err != nil {
		fmt.Fprintln(os.Stderr, "config error:", err)
		os.Exit(1)
	}

	lvl, err := log.ParseLevel(conf.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid log level %s: %v\n", conf.LogLevel, err)
		os.Exit(1)
	}
	stackLvl, err := log.ParseLevel(conf.StacktraceLevel)
	if err != nil {
		stackLvl, _ = log.ParseLevel("error")
	}
	lg, err := log.New(log.Options{
		App:               vi.App,
		Version:           vi.Version,
		Commit:            vi.Commit,
		Level:             lvl,
		StacktraceLevel:   stackLvl,
		JSON:              conf.LogJSON,
		MaxErrorLinks:     conf.MaxErrorLinks,
		IncludeErrorLinks: conf.IncludeErrorLinks,
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, "logger init error:", err)
		os.Exit(1)
	}
	defer lg.Sync()
	L := lg.With("component", "server")
	ctx = log.WithContext(ctx, L)

	L.Info(ctx, "initializing application",
		"version", vi.Version,
		"commit", vi.Commit,
		"build_id", vi.BuildID,
		"go_version", vi.GoVersion,
		"http_port", conf.HTTPPort,
		"admin_port", conf.AdminPort,
		"store", conf.StoreBackend,
		"database_ssm_param", conf.DatabaseSSMParam,
		"breaker_enabled", conf.BreakerEnabled,
		"cache_max_entries", conf.CacheMaxEntries,
		"rate_limit", ratelimit.Policy{Limit: conf.RateLimit, Window: conf.RateWindow}.String(),
		"rate_overrides", conf.RateOverrides,
		"enable_tracing", conf.EnableTracing,
		"enable_pyroscope", conf.EnablePyroscope,
	)

	m := metrics.New()
	m.SetBuildInfoFromVersion("server", vi)

	stopProf, err := prof.Start(ctx, prof.Options{
		Enabled:       conf.EnablePyroscope,
		AppName:       vi.App,
		ServerAddress: conf.PyroServer,
		TenantID:      conf.PyroTenantID,
		Tags: map[string]string{
			"component": "server",
			"version":   vi.Version,
			"commit":    vi.Commit,
		},
	})
	if err != nil {
		L.Error(ctx, err, "pyroscope start failed", "pyro_server", conf.PyroServer)
	}
	m.SetProfilingActive(err == nil && conf.EnablePyroscope)
	defer func() { stopProf() }()

	// insecure: the collector runs on localhost
	shutdownOTEL, err := otelx.Init(ctx, otelx.Options{
		Enabled:   conf.EnableTracing,
		Endpoint:  conf.OTLPEndpoint,
		Insecure:  true,
		Sample:    conf.TraceSample,
		Component: "server",
		Version:   vi.Version,
	})
	if err != nil {
		L.Error(ctx, err, "otel init failed")
	}
	defer func() { _ = shutdownOTEL(context.Background()) }()

	st, err := openStore(ctx, L, conf, m)
	if err != nil {
		L.Error(ctx, err, "failed to open user store", "store", conf.StoreBackend)
		os.Exit(1)
	}

	created := events.New[user.Created]("user.created", L)
	created.OnPanic(m.IncEventPanic)
	created.Subscribe("metrics", func(context.Context, user.Created) { m.IncUsersCreated() })
	created.Subscribe("audit-log", func(ctx context.Context, ev user.Created) {
		L.Info(ctx, "user created", "user_id", ev.UserID, "created_at", ev.At)
	})

	core := user.NewService(st.repo, user.WithPublisher(created))

	cacheMetrics := cache.NewMetrics("users")
	if err := m.Register(cache.Collectors(cacheMetrics)...); err != nil {
		L.Error(ctx, err, "failed to register cache metrics")
		os.Exit(1)
	}
	cached, err := cache.NewUsers(core, cache.Options{MaxEntries: conf.CacheMaxEntries, Metrics: cacheMetrics})
	if err != nil {
		L.Error(ctx, err, "failed to create user cache")
		os.Exit(1)
	}

	def, overrides, err := conf.Policies()
	if err != nil {
		L.Error(ctx, err, "invalid rate limit overrides")
		os.Exit(1)
	}
	limiter := ratelimit.New(
		ratelimit.WithPolicy(def),
		ratelimit.WithOverrides(overrides),
		ratelimit.WithOnDenied(m.IncRateLimitDenied),
		// once per window per operation
		ratelimit.WithOnFirstDenied(func(op string) {
			m.IncRateLimitExhausted(op)
			L.Warn(ctx, "rate limit exhausted", "operation", op)
		}),
	)
	L.Info(ctx, "rate limits configured",
		"default", def.String(),
		"overrides", ratelimit.FormatOverrides(overrides),
	)

	api := usershttp.NewAPI(ratelimit.NewUsers(cached, limiter), L)

	var gate health.ShutdownGate
	ready := readiness(&gate, st.pinger)

	httpStop, err := httpserver.Start(ctx, httpserver.Options{
		Logger:       L,
		Port:         conf.HTTPPort,
		Routes:       []func(chi.Router){api.RegisterRoutes},
		UseRecoverMW: true,
		OnPanic:      m.IncHttpPanic,
		MetricsMW:    m.Middleware,
		ClientIPOpts: httpmw.ClientIPOptions{TrustedHops: conf.TrustedHops},
		Version:      &vi,
		Health:       health.Fixed(true, ""),
		Readiness:    ready,
	})
	if err != nil {
		L.Error(ctx, err, "failed to start http listener")
		os.Exit(1)
	}
	defer func() { _ = httpStop(context.Background()) }()

	// admin port is for internal monitoring only, public peers are rejected
	opsStop, err := opshttp.Start(ctx, L, opshttp.Options{
		Port:        conf.AdminPort,
		Metrics:     m.Handler(),
		EnablePprof: conf.EnablePprof,
		Health:      health.Fixed(true, ""),
		Readiness:   ready,
	})
	if err != nil {
		L.Error(ctx, err, "failed to start ops http listener")
		os.Exit(1)
	}
	defer func() { _ = opsStop(context.Background()) }()

	if err := notifySystemd(); err != nil {
		L.Debug(ctx, "systemd notify skipped", "reason", err.Error())
	}

	<-ctx.Done()
	stop()

	bg := context.Background()
	L.Info(bg, "shutdown signal received")

	// fail readiness so the load balancer stops sending new requests
	gate.Set("draining")
	if conf.ShutdownDrain > 0 {
		L.Info(bg, "draining before closing listeners", "drain", conf.ShutdownDrain.String())
		forceCh := make(chan os.Signal, 1)
		signal.Notify(forceCh, os.Interrupt, syscall.SIGTERM)
		select {
		case <-time.After(conf.ShutdownDrain):
			L.Info(bg, "drain period complete")
		case <-forceCh:
			L.Warn(bg, "second signal received, skipping drain")
		}
		signal.Stop(forceCh)
	}

	shutdownCtx, cancel := context.WithTimeout(bg, 10*time.Second)
	defer cancel()

	if err := httpStop(shutdownCtx); err != nil {
		L.Error(bg, err, "http server shutdown")
	}
	if err := opsStop(shutdownCtx); err != nil {
		L.Error(bg, err, "ops http server shutdown")
	}
	if err := shutdownOTEL(shutdownCtx); err != nil {
		L.Error(bg, err, "otel shutdown")
	}
	stopProf()
	st.close()

	L.Info(bg, "shutdown complete")
}

func notifySystemd() error {
	// set when started under systemd with Type=notify
	addr := os.Getenv("NOTIFY_SOCKET")
	if addr == "" {
		return fmt.Errorf("NOTIFY_SOCKET not set")
	}
	conn, err := net.Dial("unixgram", addr)
	if err != nil {
		return fmt.Errorf("systemd notify: dial: %w", err)
	}
	if _, err := conn.Write([]byte("READY=1")); err != nil {
		conn.Close()
		return fmt.Errorf("systemd notify: write: %w", err)
	}
	if err := conn.Close(); err != nil {
		return fmt.Errorf("systemd notify: close: %w", err)
	}
	return nil
}
