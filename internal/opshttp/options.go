package opshttp

import (
	"net/http"

	"github.com/keithlinneman/linnemanlabs-users/internal/health"
)

type Options struct {
	// Port defaults to 9000.
	Port        int
	Metrics     http.Handler
	EnablePprof bool
	Health      health.Probe
	Readiness   health.Probe
	// AllowPublic disables the private-network guard, used by tests.
	AllowPublic bool
}
