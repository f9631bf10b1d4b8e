package httpmw

import (
	"net/http"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/keithlinneman/linnemanlabs-users/internal/version"
)

// VersionHeaders adds X-App-Version and X-App-Commit (short) to every
// response and tags the server span with the same values.
func VersionHeaders(vi version.Info) func(http.Handler) http.Handler {
	short := vi.Short()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if vi.Version != "" {
				w.Header().Set("X-App-Version", vi.Version)
			}
			if short != "" && short != "none" {
				w.Header().Set("X-App-Commit", short)
			}
			if span := trace.SpanFromContext(r.Context()); span.IsRecording() {
				span.SetAttributes(
					attribute.String("service.version", vi.Version),
					attribute.String("vcs.revision", vi.Commit),
				)
			}
			next.ServeHTTP(w, r)
		})
	}
}
