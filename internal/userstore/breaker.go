package userstore

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/keithlinneman/linnemanlabs-users/internal/log"
	"github.com/keithlinneman/linnemanlabs-users/internal/user"
	"github.com/keithlinneman/linnemanlabs-users/internal/xerrors"
)

type BreakerOptions struct {
	Name string
	// FailureRatio of failed calls that opens the breaker once at least
	// MinRequests calls were seen in the current closed interval.
	FailureRatio float64
	MinRequests  uint32
	// HalfOpenMax calls probe the store after OpenTimeout.
	HalfOpenMax uint32
	OpenTimeout time.Duration
	// Interval clears the closed-state counts. Zero keeps them until a trip.
	Interval time.Duration
	// OnStateChange is called on every transition, used for metrics.
	OnStateChange func(from, to gobreaker.State)
	Logger        log.Logger
}

// Breaker fails fast with xerrors.KindUnavailable while the wrapped
// repository keeps failing. Client errors (not found, conflict, invalid
// argument) and cancelled calls do not count as failures.
type Breaker struct {
	next   user.Repository
	cb     *gobreaker.CircuitBreaker
	logger log.Logger
	// rejections are logged at most every few seconds
	rejectLog rate.Sometimes
}

var _ user.Repository = (*Breaker)(nil)

func NewBreaker(next user.Repository, opts BreakerOptions) *Breaker {
	if opts.Name == "" {
		opts.Name = "userstore"
	}
	if opts.FailureRatio <= 0 {
		opts.FailureRatio = 0.5
	}
	if opts.MinRequests == 0 {
		opts.MinRequests = 2
	}
	if opts.HalfOpenMax == 0 {
		opts.HalfOpenMax = 2
	}
	if opts.OpenTimeout <= 0 {
		opts.OpenTimeout = 60 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}

	b := &Breaker{
		next:      next,
		logger:    opts.Logger,
		rejectLog: rate.Sometimes{First: 1, Interval: 10 * time.Second},
	}
	b.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        opts.Name,
		MaxRequests: opts.HalfOpenMax,
		Interval:    opts.Interval,
		Timeout:     opts.OpenTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.Requests >= opts.MinRequests &&
				float64(c.TotalFailures)/float64(c.Requests) >= opts.FailureRatio
		},
		IsSuccessful: countsAsSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			opts.Logger.Warn(context.Background(), "store circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
			if opts.OnStateChange != nil {
				opts.OnStateChange(from, to)
			}
		},
	})
	return b
}

func (b *Breaker) State() gobreaker.State { return b.cb.State() }

func countsAsSuccess(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	switch xerrors.KindOf(err) {
	case xerrors.KindNotFound, xerrors.KindConflict, xerrors.KindInvalidArgument:
		return true
	}
	return false
}

// guard runs fn through the breaker.
func guard[T any](ctx context.Context, b *Breaker, fn func() (T, error)) (T, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		b.rejectLog.Do(func() {
			b.logger.Warn(ctx, "store circuit breaker rejecting calls", "state", b.cb.State().String())
		})
		var zero T
		return zero, xerrors.WithKind(err, xerrors.KindUnavailable, "User store is temporarily unavailable")
	}
	if err != nil {
		var zero T
		return zero, err
	}
	return out.(T), nil
}

func (b *Breaker) FindAll(ctx context.Context) ([]user.User, error) {
	return guard(ctx, b, func() ([]user.User, error) { return b.next.FindAll(ctx) })
}

func (b *Breaker) FindPage(ctx context.Context, q user.Query) ([]user.User, error) {
	return guard(ctx, b, func() ([]user.User, error) { return b.next.FindPage(ctx, q) })
}

type lookup struct {
	u     user.User
	found bool
}

func (b *Breaker) FindByID(ctx context.Context, id int64) (user.User, bool, error) {
	r, err := guard(ctx, b, func() (lookup, error) {
		u, found, err := b.next.FindByID(ctx, id)
		return lookup{u, found}, err
	})
	return r.u, r.found, err
}

func (b *Breaker) Save(ctx context.Context, u user.User) (user.User, error) {
	return guard(ctx, b, func() (user.User, error) { return b.next.Save(ctx, u) })
}

func (b *Breaker) DeleteByID(ctx context.Context, id int64) error {
	_, err := guard(ctx, b, func() (struct{}, error) { return struct{}{}, b.next.DeleteByID(ctx, id) })
	return err
}

func (b *Breaker) ExistsByID(ctx context.Context, id int64) (bool, error) {
	return guard(ctx, b, func() (bool, error) { return b.next.ExistsByID(ctx, id) })
}
