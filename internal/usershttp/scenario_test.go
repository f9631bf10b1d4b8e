package usershttp

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/keithlinneman/linnemanlabs-users/internal/cache"
	"github.com/keithlinneman/linnemanlabs-users/internal/events"
	"github.com/keithlinneman/linnemanlabs-users/internal/ratelimit"
	"github.com/keithlinneman/linnemanlabs-users/internal/user"
	"github.com/keithlinneman/linnemanlabs-users/internal/userstore"
)

// newStack wires the production decorator chain over an in-memory store.
func newStack(t *testing.T, lim *ratelimit.Limiter, bus *events.Bus[user.Created]) http.Handler {
	t.Helper()
	core := user.NewService(userstore.NewBreaker(userstore.NewMemory(), userstore.BreakerOptions{}), user.WithPublisher(bus))
	cached, err := cache.NewUsers(core, cache.Options{MaxEntries: 100})
	require.NoError(t, err)
	api := NewAPI(ratelimit.NewUsers(cached, lim), nil)
	r := chi.NewRouter()
	api.RegisterRoutes(r)
	return r
}

func decodeUser(t *testing.T, body []byte) user.User {
	t.Helper()
	var u user.User
	require.NoError(t, json.Unmarshal(body, &u), "body: %s", body)
	return u
}

func TestScenario_CreateGetUpdateDelete(t *testing.T) {
	bus := events.New[user.Created]("user.created", nil)
	var created []user.Created
	bus.Subscribe("capture", func(_ context.Context, ev user.Created) { created = append(created, ev) })
	h := newStack(t, ratelimit.New(), bus)

	rec := do(t, h, http.MethodGet, "/api/users", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "No users available", decodeError(t, rec).Message)

	rec = do(t, h, http.MethodPost, "/api/users", `{"name":" Ann ","email":"ann@example.com"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	ann := decodeUser(t, rec.Body.Bytes())
	require.NotZero(t, ann.ID)
	require.Equal(t, "Ann", ann.Name)
	require.Len(t, created, 1)
	require.Equal(t, ann.ID, created[0].UserID)

	path := "/api/users/" + itoa(ann.ID)

	rec = do(t, h, http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, ann, decodeUser(t, rec.Body.Bytes()))

	rec = do(t, h, http.MethodGet, "/api/users", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `[{"id":`+itoa(ann.ID)+`,"name":"Ann","email":"ann@example.com"}]`, rec.Body.String())

	// the cached entry must not survive the update
	rec = do(t, h, http.MethodPut, path, `{"name":"Ann2","email":"ann@example.com"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, h, http.MethodGet, path, "")
	require.Equal(t, "Ann2", decodeUser(t, rec.Body.Bytes()).Name)

	rec = do(t, h, http.MethodPatch, path, `{"email":"ann2@example.com"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, h, http.MethodGet, "/api/users", "")
	require.Contains(t, rec.Body.String(), "ann2@example.com")

	rec = do(t, h, http.MethodDelete, path, "")
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, h, http.MethodGet, path, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	rec = do(t, h, http.MethodDelete, path, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	rec = do(t, h, http.MethodPut, path, `{"name":"Ann3","email":"ann3@example.com"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestScenario_ValidationAndConflict(t *testing.T) {
	h := newStack(t, ratelimit.New(), events.New[user.Created]("user.created", nil))

	rec := do(t, h, http.MethodPost, "/api/users", `{"name":"","email":"x@example.com"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "Name cannot be empty", decodeError(t, rec).Message)

	rec = do(t, h, http.MethodPost, "/api/users", `{"name":"X","email":"   "}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "Email cannot be empty", decodeError(t, rec).Message)

	rec = do(t, h, http.MethodPost, "/api/users", `{"name":"Ann","email":"ann@example.com"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	rec = do(t, h, http.MethodPost, "/api/users", `{"name":"Other Ann","email":"ann@example.com"}`)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestScenario_RateLimited(t *testing.T) {
	now := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	lim := ratelimit.New(
		ratelimit.WithPolicy(ratelimit.Policy{Limit: 100, Window: time.Minute}),
		ratelimit.WithOverride(ratelimit.OpCreate, ratelimit.Policy{Limit: 2, Window: time.Minute}),
		ratelimit.WithClock(func() time.Time { return now }),
	)
	h := newStack(t, lim, events.New[user.Created]("user.created", nil))

	for _, email := range []string{"a@example.com", "b@example.com"} {
		rec := do(t, h, http.MethodPost, "/api/users", `{"name":"A","email":"`+email+`"}`)
		require.Equal(t, http.StatusOK, rec.Code)
	}
	rec := do(t, h, http.MethodPost, "/api/users", `{"name":"C","email":"c@example.com"}`)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "Rate limit exceeded", decodeError(t, rec).Message)

	// other operations keep their own bucket
	rec = do(t, h, http.MethodGet, "/api/users", "")
	require.Equal(t, http.StatusOK, rec.Code)

	now = now.Add(time.Minute)
	rec = do(t, h, http.MethodPost, "/api/users", `{"name":"C","email":"c@example.com"}`)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestScenario_HugePageKeepsStoreAvailable(t *testing.T) {
	h := newStack(t, ratelimit.New(), events.New[user.Created]("user.created", nil))

	rec := do(t, h, http.MethodPost, "/api/users", `{"name":"Ann","email":"ann@example.com"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	path := "/api/users/" + itoa(decodeUser(t, rec.Body.Bytes()).ID)

	for _, page := range []string{"9223372036854775807", strconv.Itoa(user.MaxPage + 1)} {
		rec = do(t, h, http.MethodGet, "/api/users?size=2&page="+page, "")
		require.Equal(t, http.StatusBadRequest, rec.Code, page)
	}

	rec = do(t, h, http.MethodGet, "/api/users?size=2&page="+strconv.Itoa(user.MaxPage), "")
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, h, http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func itoa(id int64) string { return strconv.FormatInt(id, 10) }
