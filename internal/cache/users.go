package cache

import (
	"context"
	"slices"
	"strconv"

	"github.com/acronis/go-appkit/lrucache"

	"github.com/keithlinneman/linnemanlabs-users/internal/user"
)

const keyList = "list"

type Options struct {
	// MaxEntries bounds each region.
	MaxEntries int
	// Metrics is optional, see NewMetrics.
	Metrics *lrucache.PrometheusMetrics
}

// Users caches List, Page and Get results of next. Errors are never cached.
// Create, Update, Patch and Delete purge every region once next returns,
// whatever the outcome.
type Users struct {
	next  user.Service
	lists *Region[[]user.User]
	byID  *Region[user.User]
}

var _ user.Service = (*Users)(nil)

func NewUsers(next user.Service, opts Options) (*Users, error) {
	lists, err := NewRegion[[]user.User](RegionUsers, opts.MaxEntries, opts.Metrics)
	if err != nil {
		return nil, err
	}
	byID, err := NewRegion[user.User](RegionUserByID, opts.MaxEntries, opts.Metrics)
	if err != nil {
		return nil, err
	}
	return &Users{next: next, lists: lists, byID: byID}, nil
}

func (c *Users) List(ctx context.Context) ([]user.User, error) {
	return c.readList(keyList, func() ([]user.User, error) { return c.next.List(ctx) })
}

func (c *Users) Page(ctx context.Context, q user.Query) ([]user.User, error) {
	return c.readList(q.Key(), func() ([]user.User, error) { return c.next.Page(ctx, q) })
}

func (c *Users) Get(ctx context.Context, id int64) (user.User, error) {
	key := strconv.FormatInt(id, 10)
	if u, ok := c.byID.Get(key); ok {
		return u, nil
	}
	gen := c.byID.Generation()
	u, err := c.next.Get(ctx, id)
	if err != nil {
		return user.User{}, err
	}
	c.byID.StoreIf(gen, key, u)
	return u, nil
}

// readList serves key from the users region, filling it from load on a miss.
// Callers get their own copy of the slice.
func (c *Users) readList(key string, load func() ([]user.User, error)) ([]user.User, error) {
	if v, ok := c.lists.Get(key); ok {
		return slices.Clone(v), nil
	}
	gen := c.lists.Generation()
	v, err := load()
	if err != nil {
		return nil, err
	}
	c.lists.StoreIf(gen, key, slices.Clone(v))
	return v, nil
}

func (c *Users) Create(ctx context.Context, u user.User) (user.User, error) {
	defer c.Invalidate()
	return c.next.Create(ctx, u)
}

func (c *Users) Update(ctx context.Context, id int64, u user.User) (user.User, error) {
	defer c.Invalidate()
	return c.next.Update(ctx, id, u)
}

func (c *Users) Patch(ctx context.Context, id int64, p user.Patch) (user.User, error) {
	defer c.Invalidate()
	return c.next.Patch(ctx, id, p)
}

func (c *Users) Delete(ctx context.Context, id int64) error {
	defer c.Invalidate()
	return c.next.Delete(ctx, id)
}

// Invalidate purges every region.
func (c *Users) Invalidate() {
	c.lists.Purge()
	c.byID.Purge()
}
