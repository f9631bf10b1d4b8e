// Package usertest provides testify mocks for the user package interfaces.
package usertest

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/keithlinneman/linnemanlabs-users/internal/user"
)

type MockRepository struct {
	mock.Mock
}

var _ user.Repository = (*MockRepository)(nil)

func (m *MockRepository) FindAll(ctx context.Context) ([]user.User, error) {
	args := m.Called(ctx)
	return users(args.Get(0)), args.Error(1)
}

func (m *MockRepository) FindPage(ctx context.Context, q user.Query) ([]user.User, error) {
	args := m.Called(ctx, q)
	return users(args.Get(0)), args.Error(1)
}

func (m *MockRepository) FindByID(ctx context.Context, id int64) (user.User, bool, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(user.User), args.Bool(1), args.Error(2)
}

func (m *MockRepository) Save(ctx context.Context, u user.User) (user.User, error) {
	args := m.Called(ctx, u)
	return args.Get(0).(user.User), args.Error(1)
}

func (m *MockRepository) DeleteByID(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockRepository) ExistsByID(ctx context.Context, id int64) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

type MockService struct {
	mock.Mock
}

var _ user.Service = (*MockService)(nil)

func (m *MockService) List(ctx context.Context) ([]user.User, error) {
	args := m.Called(ctx)
	return users(args.Get(0)), args.Error(1)
}

func (m *MockService) Page(ctx context.Context, q user.Query) ([]user.User, error) {
	args := m.Called(ctx, q)
	return users(args.Get(0)), args.Error(1)
}

func (m *MockService) Get(ctx context.Context, id int64) (user.User, error) {
	args := m.Called(ctx, id)
	return args.Get(0).(user.User), args.Error(1)
}

func (m *MockService) Create(ctx context.Context, u user.User) (user.User, error) {
	args := m.Called(ctx, u)
	return args.Get(0).(user.User), args.Error(1)
}

func (m *MockService) Update(ctx context.Context, id int64, u user.User) (user.User, error) {
	args := m.Called(ctx, id, u)
	return args.Get(0).(user.User), args.Error(1)
}

func (m *MockService) Patch(ctx context.Context, id int64, p user.Patch) (user.User, error) {
	args := m.Called(ctx, id, p)
	return args.Get(0).(user.User), args.Error(1)
}

func (m *MockService) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, ev user.Created) {
	m.Called(ctx, ev)
}

// users tolerates a nil return value in expectations.
func users(v any) []user.User {
	if v == nil {
		return nil
	}
	return v.([]user.User)
}
