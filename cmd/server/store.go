package main

import (
	"context"
	"time"

	"github.com/sony/gobreaker"

	"github.com/keithlinneman/linnemanlabs-users/internal/cfg"
	"github.com/keithlinneman/linnemanlabs-users/internal/health"
	"github.com/keithlinneman/linnemanlabs-users/internal/log"
	"github.com/keithlinneman/linnemanlabs-users/internal/metrics"
	"github.com/keithlinneman/linnemanlabs-users/internal/user"
	"github.com/keithlinneman/linnemanlabs-users/internal/userstore"
	"github.com/keithlinneman/linnemanlabs-users/internal/xerrors"
)

const breakerName = "userstore"

// store is the repository handed to the service plus what main needs to
// probe and release it.
type store struct {
	repo   user.Repository
	pinger health.Pinger
	close  func()
}

// openStore connects the configured backend and wraps it in the circuit
// breaker when enabled.
func openStore(ctx context.Context, L log.Logger, conf cfg.App, m *metrics.ServerMetrics) (store, error) {
	var s store
	switch conf.StoreBackend {
	case cfg.StoreMemory:
		mem := userstore.NewMemory()
		s = store{repo: mem, pinger: mem, close: func() {}}
		L.Warn(ctx, "using in-memory user store, data is lost on restart")

	case cfg.StorePostgres:
		dsn := conf.DatabaseDSN
		if conf.DatabaseSSMParam != "" {
			ssmc, err := userstore.NewSSMClient(ctx)
			if err != nil {
				return store{}, err
			}
			if dsn, err = userstore.ResolveDSN(ctx, ssmc, conf.DatabaseSSMParam, conf.DatabaseDSN); err != nil {
				return store{}, err
			}
			L.Info(ctx, "resolved database dsn from ssm", "ssm_param", conf.DatabaseSSMParam)
		}

		pool, err := userstore.Connect(ctx, userstore.ConnectOptions{
			DSN:      dsn,
			MaxConns: conf.DBMaxConns,
			Retries:  conf.DBConnectRetries,
			Logger:   L,
		})
		if err != nil {
			return store{}, err
		}
		pg := userstore.NewPostgres(pool, conf.DBQueryTimeout)
		if err := pg.Migrate(ctx); err != nil {
			pool.Close()
			return store{}, err
		}
		s = store{repo: pg, pinger: pg, close: pool.Close}

	default:
		return store{}, xerrors.Newf("unknown store backend %q", conf.StoreBackend)
	}

	m.SetBreakerState(breakerName, gobreaker.StateClosed)
	if conf.BreakerEnabled {
		s.repo = userstore.NewBreaker(s.repo, userstore.BreakerOptions{
			Name:         breakerName,
			FailureRatio: conf.BreakerFailureRatio,
			MinRequests:  uint32(conf.BreakerMinRequests),
			HalfOpenMax:  uint32(conf.BreakerHalfOpenMax),
			OpenTimeout:  conf.BreakerOpenTimeout,
			Logger:       L,
			OnStateChange: func(_, to gobreaker.State) {
				m.SetBreakerState(breakerName, to)
			},
		})
	}
	return s, nil
}

// readiness passes while the gate is open and the store answers a ping.
func readiness(gate *health.ShutdownGate, p health.Pinger) health.Probe {
	return health.All(
		gate.Probe(),
		health.Timeout(2*time.Second, health.Ping("store", p)),
	)
}
