package ratelimit

import (
	"context"

	"github.com/keithlinneman/linnemanlabs-users/internal/user"
	"github.com/keithlinneman/linnemanlabs-users/internal/xerrors"
)

// Operation names, also the bucket keys.
const (
	OpList   = "list"
	OpPage   = "page"
	OpGet    = "get"
	OpCreate = "create"
	OpUpdate = "update"
	OpPatch  = "patch"
	OpDelete = "delete"
)

// Operations lists every operation guarded by Users.
var Operations = []string{OpList, OpPage, OpGet, OpCreate, OpUpdate, OpPatch, OpDelete}

// Users guards every user.Service operation with its own bucket.
type Users struct {
	next user.Service
	lim  *Limiter
}

var _ user.Service = (*Users)(nil)

func NewUsers(next user.Service, lim *Limiter) *Users {
	return &Users{next: next, lim: lim}
}

func (u *Users) admit(op string) error {
	if u.lim.Allow(op) {
		return nil
	}
	return xerrors.E(xerrors.KindRateLimited, "Rate limit exceeded")
}

func (u *Users) List(ctx context.Context) ([]user.User, error) {
	if err := u.admit(OpList); err != nil {
		return nil, err
	}
	return u.next.List(ctx)
}

func (u *Users) Page(ctx context.Context, q user.Query) ([]user.User, error) {
	if err := u.admit(OpPage); err != nil {
		return nil, err
	}
	return u.next.Page(ctx, q)
}

func (u *Users) Get(ctx context.Context, id int64) (user.User, error) {
	if err := u.admit(OpGet); err != nil {
		return user.User{}, err
	}
	return u.next.Get(ctx, id)
}

func (u *Users) Create(ctx context.Context, in user.User) (user.User, error) {
	if err := u.admit(OpCreate); err != nil {
		return user.User{}, err
	}
	return u.next.Create(ctx, in)
}

func (u *Users) Update(ctx context.Context, id int64, in user.User) (user.User, error) {
	if err := u.admit(OpUpdate); err != nil {
		return user.User{}, err
	}
	return u.next.Update(ctx, id, in)
}

func (u *Users) Patch(ctx context.Context, id int64, p user.Patch) (user.User, error) {
	if err := u.admit(OpPatch); err != nil {
		return user.User{}, err
	}
	return u.next.Patch(ctx, id, p)
}

func (u *Users) Delete(ctx context.Context, id int64) error {
	if err := u.admit(OpDelete); err != nil {
		return err
	}
	return u.next.Delete(ctx, id)
}
