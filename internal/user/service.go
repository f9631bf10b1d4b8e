package user

import (
	"context"
	"time"

	"github.com/keithlinneman/linnemanlabs-users/internal/xerrors"
)

// Core implements Service on top of a Repository.
type Core struct {
	repo Repository
	pub  Publisher
	now  func() time.Time
}

type Option func(*Core)

// WithPublisher sets the receiver of Created events.
func WithPublisher(p Publisher) Option {
	return func(c *Core) { c.pub = p }
}

// WithClock overrides time.Now for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Core) { c.now = now }
}

func NewService(repo Repository, opts ...Option) *Core {
	c := &Core{repo: repo, now: time.Now}
	for _, o := range opts {
		o(c)
	}
	return c
}

var _ Service = (*Core)(nil)

func notFound(id int64) error {
	return xerrors.Ef(xerrors.KindNotFound, "User not found with id : '%d'", id)
}

func (c *Core) List(ctx context.Context) ([]User, error) {
	users, err := c.repo.FindAll(ctx)
	if err != nil {
		return nil, xerrors.Wrap(err, "find all users")
	}
	if len(users) == 0 {
		return nil, xerrors.E(xerrors.KindNotFound, "No users available")
	}
	return users, nil
}

func (c *Core) Page(ctx context.Context, q Query) ([]User, error) {
	users, err := c.repo.FindPage(ctx, q)
	if err != nil {
		return nil, xerrors.Wrapf(err, "find users %s", q.Key())
	}
	if len(users) == 0 {
		return nil, xerrors.Ef(xerrors.KindNotFound, "No users available on page %d", q.Page)
	}
	return users, nil
}

func (c *Core) Get(ctx context.Context, id int64) (User, error) {
	u, found, err := c.repo.FindByID(ctx, id)
	if err != nil {
		return User{}, xerrors.Wrapf(err, "find user %d", id)
	}
	if !found {
		return User{}, notFound(id)
	}
	return u, nil
}

func (c *Core) Create(ctx context.Context, u User) (User, error) {
	u, err := normalize(u)
	if err != nil {
		return User{}, err
	}
	u.ID = 0

	saved, err := c.repo.Save(ctx, u)
	if err != nil {
		return User{}, xerrors.Wrap(err, "save user")
	}
	if c.pub != nil {
		c.pub.Publish(ctx, Created{UserID: saved.ID, Name: saved.Name, Email: saved.Email, At: c.now()})
	}
	return saved, nil
}

func (c *Core) Update(ctx context.Context, id int64, u User) (User, error) {
	u, err := normalize(u)
	if err != nil {
		return User{}, err
	}
	if err := c.mustExist(ctx, id); err != nil {
		return User{}, err
	}
	u.ID = id

	saved, err := c.repo.Save(ctx, u)
	if err != nil {
		return User{}, xerrors.Wrapf(err, "update user %d", id)
	}
	return saved, nil
}

func (c *Core) Patch(ctx context.Context, id int64, p Patch) (User, error) {
	if p.Empty() {
		return User{}, xerrors.E(xerrors.KindInvalidArgument, "Patch must set name or email")
	}
	cur, err := c.Get(ctx, id)
	if err != nil {
		return User{}, err
	}
	next, err := normalize(p.apply(cur))
	if err != nil {
		return User{}, err
	}
	if next == cur {
		return cur, nil
	}

	saved, err := c.repo.Save(ctx, next)
	if err != nil {
		return User{}, xerrors.Wrapf(err, "patch user %d", id)
	}
	return saved, nil
}

func (c *Core) Delete(ctx context.Context, id int64) error {
	if err := c.mustExist(ctx, id); err != nil {
		return err
	}
	if err := c.repo.DeleteByID(ctx, id); err != nil {
		return xerrors.Wrapf(err, "delete user %d", id)
	}
	return nil
}

func (c *Core) mustExist(ctx context.Context, id int64) error {
	ok, err := c.repo.ExistsByID(ctx, id)
	if err != nil {
		return xerrors.Wrapf(err, "check user %d", id)
	}
	if !ok {
		return notFound(id)
	}
	return nil
}
