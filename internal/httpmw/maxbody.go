package httpmw

import "net/http"

// MaxBody limits request bodies to limit bytes. A declared Content-Length
// above the limit is rejected with 413 before the handler runs; chunked
// bodies fail with *http.MaxBytesError when the handler reads past it.
func MaxBody(limit int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > limit {
				http.Error(w, http.StatusText(http.StatusRequestEntityTooLarge), http.StatusRequestEntityTooLarge)
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, limit)
			next.ServeHTTP(w, r)
		})
	}
}
