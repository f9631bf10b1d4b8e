package ratelimit

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	DefaultLimit  = 100
	DefaultWindow = time.Minute
)

// Policy is the capacity of a bucket and its refill interval.
type Policy struct {
	Limit  int
	Window time.Duration
}

func (p Policy) String() string { return fmt.Sprintf("%d/%s", p.Limit, p.Window) }

func (p Policy) valid() bool { return p.Limit > 0 && p.Window > 0 }

// bucket is one operation's token state. Guarded by Limiter.mu.
type bucket struct {
	policy      Policy
	tokens      int
	windowStart time.Time
	// reported is set once the first denial of the current window has been
	// handed to OnFirstDenied
	reported bool
}

// refill tops the bucket up when one or more whole windows have passed.
// The window start advances on the grid so boundaries never drift.
func (b *bucket) refill(now time.Time) {
	elapsed := now.Sub(b.windowStart)
	if elapsed < b.policy.Window {
		return
	}
	n := elapsed / b.policy.Window
	b.windowStart = b.windowStart.Add(n * b.policy.Window)
	b.tokens = b.policy.Limit
	b.reported = false
}

// Limiter holds one bucket per operation, created on first use.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket

	def       Policy
	overrides map[string]Policy
	now       func() time.Time

	// OnFirstDenied is called for the first rejection of an operation within
	// a window, used for logging
	OnFirstDenied func(op string)

	// OnDenied is called on every rejection, used for counting
	OnDenied func(op string)
}

type Option func(*Limiter)

// WithPolicy sets the policy for operations without an override.
func WithPolicy(p Policy) Option {
	return func(l *Limiter) {
		if p.valid() {
			l.def = p
		}
	}
}

// WithOverride sets the policy for a single operation.
func WithOverride(op string, p Policy) Option {
	return func(l *Limiter) {
		if p.valid() {
			l.overrides[op] = p
		}
	}
}

// WithOverrides is WithOverride for every entry of m.
func WithOverrides(m map[string]Policy) Option {
	return func(l *Limiter) {
		for op, p := range m {
			WithOverride(op, p)(l)
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

func WithOnFirstDenied(fn func(op string)) Option {
	return func(l *Limiter) { l.OnFirstDenied = fn }
}

func WithOnDenied(fn func(op string)) Option {
	return func(l *Limiter) { l.OnDenied = fn }
}

func New(opts ...Option) *Limiter {
	l := &Limiter{
		buckets:   make(map[string]*bucket),
		def:       Policy{Limit: DefaultLimit, Window: DefaultWindow},
		overrides: make(map[string]Policy),
		now:       time.Now,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Policy returns the policy applied to op.
func (l *Limiter) Policy(op string) Policy {
	if p, ok := l.overrides[op]; ok {
		return p
	}
	return l.def
}

// Allow takes a token from op's bucket. It returns false when the bucket is
// empty, in which case the caller must not run the operation.
func (l *Limiter) Allow(op string) bool {
	now := l.now()

	l.mu.Lock()
	b, ok := l.buckets[op]
	if !ok {
		p := l.Policy(op)
		b = &bucket{policy: p, tokens: p.Limit, windowStart: now}
		l.buckets[op] = b
	}
	b.refill(now)

	if b.tokens > 0 {
		b.tokens--
		l.mu.Unlock()
		return true
	}

	first := !b.reported
	b.reported = true
	// hooks may log or touch metrics, never call them under the lock
	l.mu.Unlock()

	if first && l.OnFirstDenied != nil {
		l.OnFirstDenied(op)
	}
	if l.OnDenied != nil {
		l.OnDenied(op)
	}
	return false
}

// Remaining reports the tokens op could take right now.
func (l *Limiter) Remaining(op string) int {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[op]
	if !ok {
		return l.Policy(op).Limit
	}
	b.refill(now)
	return b.tokens
}

// ParseOverrides parses "op=limit/window" pairs separated by commas, e.g.
// "create=5/1m,delete=5/30s". An empty string yields no overrides.
func ParseOverrides(s string) (map[string]Policy, error) {
	out := make(map[string]Policy)
	s = strings.TrimSpace(s)
	if s == "" {
		return out, nil
	}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		op, spec, ok := strings.Cut(part, "=")
		op = strings.TrimSpace(op)
		if !ok || op == "" {
			return nil, fmt.Errorf("override %q: want op=limit/window", part)
		}
		lim, win, ok := strings.Cut(spec, "/")
		if !ok {
			return nil, fmt.Errorf("override %q: want op=limit/window", part)
		}
		n, err := strconv.Atoi(strings.TrimSpace(lim))
		if err != nil || n < 1 {
			return nil, fmt.Errorf("override %q: limit must be a positive integer", part)
		}
		d, err := time.ParseDuration(strings.TrimSpace(win))
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("override %q: window must be a positive duration", part)
		}
		if _, dup := out[op]; dup {
			return nil, fmt.Errorf("override %q: duplicate operation", op)
		}
		out[op] = Policy{Limit: n, Window: d}
	}
	return out, nil
}

// FormatOverrides is the inverse of ParseOverrides with operations sorted.
func FormatOverrides(m map[string]Policy) string {
	ops := make([]string, 0, len(m))
	for op := range m {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	parts := make([]string, 0, len(ops))
	for _, op := range ops {
		parts = append(parts, op+"="+m[op].String())
	}
	return strings.Join(parts, ",")
}
