package usershttp

import (
	"net/http"
	"time"

	"github.com/keithlinneman/linnemanlabs-users/internal/log"
	"github.com/keithlinneman/linnemanlabs-users/internal/xerrors"
)

const unexpectedMessage = "unexpected error, please try again later"

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Timestamp time.Time `json:"timestamp"`
	Status    int       `json:"status"`
	Error     string    `json:"error"`
	Message   string    `json:"message"`
	Path      string    `json:"path"`
}

// statusFor maps an error kind to its HTTP status and reason phrase.
func statusFor(k xerrors.Kind) (int, string) {
	switch k {
	case xerrors.KindNotFound:
		return http.StatusNotFound, "Resource Not Found"
	case xerrors.KindInvalidArgument:
		return http.StatusBadRequest, "Invalid Argument"
	case xerrors.KindConflict:
		return http.StatusConflict, "Conflict"
	case xerrors.KindRateLimited:
		return http.StatusTooManyRequests, "Too Many Requests"
	case xerrors.KindUnavailable:
		return http.StatusServiceUnavailable, "Service Unavailable"
	default:
		return http.StatusInternalServerError, "Internal Server Error"
	}
}

// writeError renders err as an ErrorResponse. Only classified errors expose
// their message to the client.
func (api *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	L := log.FromContextOr(ctx, api.logger)

	kind := xerrors.KindOf(err)
	status, reason := statusFor(kind)
	msg := xerrors.Message(err)
	if kind == xerrors.KindUnexpected || msg == "" {
		msg = unexpectedMessage
	}

	if status >= http.StatusInternalServerError {
		L.Error(ctx, xerrors.EnsureTrace(err), "user request failed",
			"http.response.status_code", status,
		)
	} else {
		L.Warn(ctx, "user request rejected",
			"http.response.status_code", status,
			"error_kind", kind.String(),
			"reason", msg,
		)
	}

	api.writeJSON(ctx, w, status, ErrorResponse{
		Timestamp: api.now().UTC(),
		Status:    status,
		Error:     reason,
		Message:   msg,
		Path:      r.URL.Path,
	})
}
