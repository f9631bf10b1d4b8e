package userstore

import (
	"cmp"
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/keithlinneman/linnemanlabs-users/internal/user"
	"github.com/keithlinneman/linnemanlabs-users/internal/xerrors"
)

// Memory is a process-local user.Repository. Ids start at 1 and are never
// reused.
type Memory struct {
	mu     sync.RWMutex
	rows   map[int64]user.User
	nextID int64
}

var _ user.Repository = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{rows: make(map[int64]user.User), nextID: 1}
}

func (m *Memory) FindAll(ctx context.Context) ([]user.User, error) {
	return m.FindPage(ctx, user.Query{Size: -1, SortBy: "id"})
}

// FindPage orders by q.Column. A negative Size returns every row.
func (m *Memory) FindPage(_ context.Context, q user.Query) ([]user.User, error) {
	if q.Size >= 0 {
		if err := q.Validate(); err != nil {
			return nil, err
		}
	}

	m.mu.RLock()
	out := make([]user.User, 0, len(m.rows))
	for _, u := range m.rows {
		out = append(out, u)
	}
	m.mu.RUnlock()

	col := q.Column()
	slices.SortFunc(out, func(a, b user.User) int {
		var c int
		switch col {
		case "name":
			c = strings.Compare(a.Name, b.Name)
		case "email":
			c = strings.Compare(a.Email, b.Email)
		}
		if c == 0 {
			c = cmp.Compare(a.ID, b.ID)
		}
		if q.Desc {
			return -c
		}
		return c
	})

	if q.Size < 0 {
		return out, nil
	}
	off := q.Offset()
	if off < 0 || off >= len(out) {
		return []user.User{}, nil
	}
	return out[off:min(off+q.Size, len(out))], nil
}

func (m *Memory) FindByID(_ context.Context, id int64) (user.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.rows[id]
	return u, ok, nil
}

func (m *Memory) Save(_ context.Context, u user.User) (user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, other := range m.rows {
		if id != u.ID && other.Email == u.Email {
			return user.User{}, emailTaken(u.Email)
		}
	}
	if u.ID == 0 {
		u.ID = m.nextID
		m.nextID++
	} else if _, ok := m.rows[u.ID]; !ok {
		return user.User{}, xerrors.Ef(xerrors.KindNotFound, "User not found with id : '%d'", u.ID)
	}
	m.rows[u.ID] = u
	return u, nil
}

func (m *Memory) DeleteByID(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return xerrors.Ef(xerrors.KindNotFound, "User not found with id : '%d'", id)
	}
	delete(m.rows, id)
	return nil
}

func (m *Memory) ExistsByID(_ context.Context, id int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.rows[id]
	return ok, nil
}

// Ping always succeeds.
func (m *Memory) Ping(context.Context) error { return nil }

func emailTaken(email string) error {
	return xerrors.Ef(xerrors.KindConflict, "Email %q is already in use", email)
}
