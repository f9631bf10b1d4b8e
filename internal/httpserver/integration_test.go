package httpserver_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/keithlinneman/linnemanlabs-users/internal/cache"
	"github.com/keithlinneman/linnemanlabs-users/internal/httpserver"
	"github.com/keithlinneman/linnemanlabs-users/internal/metrics"
	"github.com/keithlinneman/linnemanlabs-users/internal/ratelimit"
	"github.com/keithlinneman/linnemanlabs-users/internal/user"
	"github.com/keithlinneman/linnemanlabs-users/internal/userstore"
	"github.com/keithlinneman/linnemanlabs-users/internal/usershttp"
)

// TestIntegration_UsersAPI runs the user endpoints through the full public
// middleware chain over an in-memory store.
func TestIntegration_UsersAPI(t *testing.T) {
	m := metrics.New()
	core := user.NewService(userstore.NewMemory())
	cached, err := cache.NewUsers(core, cache.Options{MaxEntries: 10})
	require.NoError(t, err)
	api := usershttp.NewAPI(ratelimit.NewUsers(cached, ratelimit.New()), nil)

	h := httpserver.NewHandler(httpserver.Options{
		UseRecoverMW: true,
		MetricsMW:    m.Middleware,
		Routes:       []func(chi.Router){api.RegisterRoutes},
	})

	send := func(method, target, body string) *httptest.ResponseRecorder {
		var req *http.Request
		if body == "" {
			req = httptest.NewRequest(method, target, http.NoBody)
		} else {
			req = httptest.NewRequest(method, target, strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	rec := send(http.MethodPost, "/api/users", `{"name":"Ann","email":"ann@example.com"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
	require.NotEmpty(t, rec.Header().Get("X-Request-Id"))
	require.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))

	rec = send(http.MethodGet, "/api/users/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"id":1,"name":"Ann","email":"ann@example.com"}`, rec.Body.String())

	rec = send(http.MethodGet, "/api/users/99", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), `"path":"/api/users/99"`)

	rec = send(http.MethodPost, "/api/users", strings.Repeat("x", httpserver.DefaultMaxBodyBytes+1))
	require.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)

	scrape := httptest.NewRecorder()
	m.Handler().ServeHTTP(scrape, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))
	require.Contains(t, scrape.Body.String(), `http_requests_total{method="GET",route="/api/users/{id}",status="404"} 1`)
}
