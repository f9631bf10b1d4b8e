package userstore

import (
	"context"
	"errors"
	"time"

	"github.com/acronis/go-appkit/retry"
	"github.com/cenkalti/backoff/v4"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/keithlinneman/linnemanlabs-users/internal/log"
	"github.com/keithlinneman/linnemanlabs-users/internal/xerrors"
)

type ConnectOptions struct {
	DSN      string
	MaxConns int
	// Retries is the number of attempts after the first one.
	Retries int
	// Backoff is the first retry delay, growing exponentially.
	Backoff time.Duration
	Logger  log.Logger
}

// Connect opens a pool and pings it, retrying while the database is not
// reachable yet. Bad credentials and malformed DSNs fail immediately.
func Connect(ctx context.Context, opts ConnectOptions) (*pgxpool.Pool, error) {
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 500 * time.Millisecond
	}

	pcfg, err := pgxpool.ParseConfig(opts.DSN)
	if err != nil {
		// the parse error may echo the dsn, password included
		return nil, xerrors.New("parse database dsn: invalid connection string")
	}
	if opts.MaxConns > 0 {
		pcfg.MaxConns = int32(opts.MaxConns)
	}

	var pool *pgxpool.Pool
	attempt := 0
	var policy retry.Policy = retry.NewExponentialBackoffPolicy(opts.Backoff, opts.Retries)
	if opts.Retries <= 0 {
		// zero attempts means unlimited to the exponential policy
		policy = retry.PolicyFunc(func() backoff.BackOff { return &backoff.StopBackOff{} })
	}
	notify := func(err error, next time.Duration) {
		opts.Logger.Warn(ctx, "database not reachable, retrying",
			"attempt", attempt,
			"retry_in", next.String(),
			"err", err,
		)
	}
	err = retry.DoWithRetry(ctx, policy, retryable, notify, func(ctx context.Context) error {
		attempt++
		p, err := pgxpool.NewWithConfig(ctx, pcfg)
		if err != nil {
			return err
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			return err
		}
		pool = p
		return nil
	})
	if err != nil {
		return nil, xerrors.Wrapf(err, "connect to database after %d attempts", attempt)
	}

	opts.Logger.Info(ctx, "connected to database",
		"host", pcfg.ConnConfig.Host,
		"database", pcfg.ConnConfig.Database,
		"max_conns", pcfg.MaxConns,
	)
	return pool, nil
}

// retryable rejects errors a retry cannot fix.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if len(pgErr.Code) < 2 {
			return true
		}
		switch pgErr.Code[:2] {
		case "28", // invalid authorization
			"3D": // invalid catalog name
			return false
		}
	}
	return true
}
