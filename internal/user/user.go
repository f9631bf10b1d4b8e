// Package user holds the User model, its persistence contract and the core
// CRUD service that validates input before touching the store.
package user

import (
	"context"
	"time"
)

type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Patch is a partial update. Nil fields keep their stored value.
type Patch struct {
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty"`
}

// Created is published after a new user has been persisted.
type Created struct {
	UserID int64
	Name   string
	Email  string
	At     time.Time
}

// Service is the set of user operations. The core implementation and every
// decorator (cache, rate limiting) satisfy it.
type Service interface {
	List(ctx context.Context) ([]User, error)
	Page(ctx context.Context, q Query) ([]User, error)
	Get(ctx context.Context, id int64) (User, error)
	Create(ctx context.Context, u User) (User, error)
	Update(ctx context.Context, id int64, u User) (User, error)
	Patch(ctx context.Context, id int64, p Patch) (User, error)
	Delete(ctx context.Context, id int64) error
}

// Repository persists users. Save inserts when ID is zero and overwrites
// otherwise, returning the stored row. A duplicate email is reported as
// xerrors.KindConflict.
type Repository interface {
	FindAll(ctx context.Context) ([]User, error)
	FindPage(ctx context.Context, q Query) ([]User, error)
	FindByID(ctx context.Context, id int64) (User, bool, error)
	Save(ctx context.Context, u User) (User, error)
	DeleteByID(ctx context.Context, id int64) error
	ExistsByID(ctx context.Context, id int64) (bool, error)
}

// Publisher receives Created events.
type Publisher interface {
	Publish(ctx context.Context, ev Created)
}
