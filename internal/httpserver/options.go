package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/linnemanlabs-users/internal/health"
	"github.com/keithlinneman/linnemanlabs-users/internal/httpmw"
	"github.com/keithlinneman/linnemanlabs-users/internal/log"
	"github.com/keithlinneman/linnemanlabs-users/internal/version"
)

// DefaultMaxBodyBytes bounds JSON request bodies on the public listener.
const DefaultMaxBodyBytes = 64 << 10

type Options struct {
	Logger log.Logger
	Port   int

	// Routes are registered on the chi router in order.
	Routes []func(chi.Router)

	UseRecoverMW bool
	OnPanic      func()
	MetricsMW    func(http.Handler) http.Handler

	ClientIPOpts httpmw.ClientIPOptions
	MaxBodyBytes int64

	// Version is echoed in X-App-Version and X-App-Commit when set.
	Version *version.Info

	Health    health.Probe
	Readiness health.Probe
}
