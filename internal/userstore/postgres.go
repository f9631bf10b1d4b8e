package userstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/keithlinneman/linnemanlabs-users/internal/user"
	"github.com/keithlinneman/linnemanlabs-users/internal/xerrors"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id    BIGSERIAL PRIMARY KEY,
	name  TEXT NOT NULL CHECK (btrim(name) <> ''),
	email TEXT NOT NULL CHECK (btrim(email) <> ''),
	CONSTRAINT users_email_key UNIQUE (email)
)`

// postgres error codes
const (
	codeUniqueViolation = "23505"
	codeCheckViolation  = "23514"
)

// Postgres is a user.Repository on a pgx pool. Every call runs under its own
// timeout and span.
type Postgres struct {
	pool    *pgxpool.Pool
	timeout time.Duration
	tracer  trace.Tracer
}

var _ user.Repository = (*Postgres)(nil)

func NewPostgres(pool *pgxpool.Pool, timeout time.Duration) *Postgres {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Postgres{
		pool:    pool,
		timeout: timeout,
		tracer:  otel.Tracer("linnemanlabs-users/userstore"),
	}
}

// Migrate creates the users table when missing.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, schema); err != nil {
		return xerrors.Wrap(err, "create users table")
	}
	return nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.pool.Ping(ctx)
}

// start opens the span and timeout for one store call. end must be called
// with the call's error.
func (p *Postgres) start(ctx context.Context, op string) (context.Context, func(error)) {
	ctx, span := p.tracer.Start(ctx, "userstore."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.system", "postgresql"),
			attribute.String("db.operation", op),
		),
	)
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	return ctx, func(err error) {
		if err != nil && xerrors.KindOf(err) == xerrors.KindUnexpected {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		cancel()
		span.End()
	}
}

func (p *Postgres) FindAll(ctx context.Context) (_ []user.User, err error) {
	ctx, end := p.start(ctx, "find_all")
	defer func() { end(err) }()

	rows, err := p.pool.Query(ctx, `SELECT id, name, email FROM users ORDER BY id`)
	if err != nil {
		return nil, xerrors.Wrap(err, "query users")
	}
	users, err := pgx.CollectRows(rows, pgx.RowToStructByName[user.User])
	if err != nil {
		return nil, xerrors.Wrap(err, "scan users")
	}
	return users, nil
}

func (p *Postgres) FindPage(ctx context.Context, q user.Query) (_ []user.User, err error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	ctx, end := p.start(ctx, "find_page")
	defer func() { end(err) }()

	// column and direction come from fixed whitelists, never from input
	sql := fmt.Sprintf(`SELECT id, name, email FROM users ORDER BY %s %s, id LIMIT $1 OFFSET $2`,
		q.Column(), q.Direction())
	rows, err := p.pool.Query(ctx, sql, q.Size, q.Offset())
	if err != nil {
		return nil, xerrors.Wrap(err, "query users page")
	}
	users, err := pgx.CollectRows(rows, pgx.RowToStructByName[user.User])
	if err != nil {
		return nil, xerrors.Wrap(err, "scan users page")
	}
	return users, nil
}

func (p *Postgres) FindByID(ctx context.Context, id int64) (_ user.User, _ bool, err error) {
	ctx, end := p.start(ctx, "find_by_id")
	defer func() { end(err) }()

	var u user.User
	err = p.pool.QueryRow(ctx, `SELECT id, name, email FROM users WHERE id = $1`, id).
		Scan(&u.ID, &u.Name, &u.Email)
	if errors.Is(err, pgx.ErrNoRows) {
		return user.User{}, false, nil
	}
	if err != nil {
		return user.User{}, false, xerrors.Wrapf(err, "select user %d", id)
	}
	return u, true, nil
}

func (p *Postgres) Save(ctx context.Context, u user.User) (_ user.User, err error) {
	ctx, end := p.start(ctx, "save")
	defer func() { end(err) }()

	var row pgx.Row
	if u.ID == 0 {
		row = p.pool.QueryRow(ctx,
			`INSERT INTO users (name, email) VALUES ($1, $2) RETURNING id, name, email`,
			u.Name, u.Email)
	} else {
		row = p.pool.QueryRow(ctx,
			`UPDATE users SET name = $2, email = $3 WHERE id = $1 RETURNING id, name, email`,
			u.ID, u.Name, u.Email)
	}

	var out user.User
	err = row.Scan(&out.ID, &out.Name, &out.Email)
	switch {
	case err == nil:
		return out, nil
	case errors.Is(err, pgx.ErrNoRows):
		return user.User{}, xerrors.Ef(xerrors.KindNotFound, "User not found with id : '%d'", u.ID)
	default:
		return user.User{}, classify(err, u)
	}
}

func (p *Postgres) DeleteByID(ctx context.Context, id int64) (err error) {
	ctx, end := p.start(ctx, "delete")
	defer func() { end(err) }()

	tag, err := p.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return xerrors.Wrapf(err, "delete user %d", id)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.Ef(xerrors.KindNotFound, "User not found with id : '%d'", id)
	}
	return nil
}

func (p *Postgres) ExistsByID(ctx context.Context, id int64) (_ bool, err error) {
	ctx, end := p.start(ctx, "exists")
	defer func() { end(err) }()

	var ok bool
	if err = p.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, id).Scan(&ok); err != nil {
		return false, xerrors.Wrapf(err, "check user %d", id)
	}
	return ok, nil
}

// classify maps constraint violations to client errors.
func classify(err error, u user.User) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return emailTaken(u.Email)
		case codeCheckViolation:
			return xerrors.Ef(xerrors.KindInvalidArgument, "validation failed: %s", pgErr.Message)
		}
	}
	return xerrors.Wrap(err, "save user")
}
