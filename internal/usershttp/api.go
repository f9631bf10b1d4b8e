// Package usershttp exposes user.Service as a JSON REST API under
// /api/users.
package usershttp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/keithlinneman/linnemanlabs-users/internal/log"
	"github.com/keithlinneman/linnemanlabs-users/internal/user"
	"github.com/keithlinneman/linnemanlabs-users/internal/xerrors"
)

const basePath = "/api/users"

// API implements the user endpoints.
type API struct {
	svc    user.Service
	logger log.Logger
	now    func() time.Time
}

// NewAPI creates a user API handler over svc.
func NewAPI(svc user.Service, logger log.Logger) *API {
	if logger == nil {
		logger = log.Nop()
	}
	return &API{
		svc:    svc,
		logger: logger,
		now:    time.Now,
	}
}

// RegisterRoutes attaches the user endpoints to the router.
func (api *API) RegisterRoutes(r chi.Router) {
	r.Route(basePath, func(r chi.Router) {
		r.Get("/", api.HandleList)
		r.Post("/", api.HandleCreate)
		r.Get("/{id}", api.HandleGet)
		r.Put("/{id}", api.HandleUpdate)
		r.Patch("/{id}", api.HandlePatch)
		r.Delete("/{id}", api.HandleDelete)
	})
}

// HandleList serves every user, or one page of them when any of the
// page, size, sort or dir query parameters is set.
func (api *API) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	qv := r.URL.Query()
	var (
		users []user.User
		err   error
	)
	if qv.Has("page") || qv.Has("size") || qv.Has("sort") || qv.Has("dir") {
		var q user.Query
		q, err = user.ParseQuery(qv.Get("page"), qv.Get("size"), qv.Get("sort"), qv.Get("dir"))
		if err == nil {
			users, err = api.svc.Page(ctx, q)
		}
	} else {
		users, err = api.svc.List(ctx)
	}
	if err != nil {
		api.writeError(w, r, err)
		return
	}
	api.writeJSON(ctx, w, http.StatusOK, users)
}

func (api *API) HandleGet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		api.writeError(w, r, err)
		return
	}
	u, err := api.svc.Get(r.Context(), id)
	if err != nil {
		api.writeError(w, r, err)
		return
	}
	api.writeJSON(r.Context(), w, http.StatusOK, u)
}

// HandleCreate stores a new user. Any id in the body is ignored.
func (api *API) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var in user.User
	if err := decodeBody(r, &in); err != nil {
		api.writeError(w, r, err)
		return
	}
	u, err := api.svc.Create(r.Context(), in)
	if err != nil {
		api.writeError(w, r, err)
		return
	}
	api.writeJSON(r.Context(), w, http.StatusOK, u)
}

// HandleUpdate replaces name and email of an existing user.
func (api *API) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		api.writeError(w, r, err)
		return
	}
	var in user.User
	if err := decodeBody(r, &in); err != nil {
		api.writeError(w, r, err)
		return
	}
	u, err := api.svc.Update(r.Context(), id, in)
	if err != nil {
		api.writeError(w, r, err)
		return
	}
	api.writeJSON(r.Context(), w, http.StatusOK, u)
}

// HandlePatch changes only the fields present in the body.
func (api *API) HandlePatch(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		api.writeError(w, r, err)
		return
	}
	var p user.Patch
	if err := decodeBody(r, &p); err != nil {
		api.writeError(w, r, err)
		return
	}
	u, err := api.svc.Patch(r.Context(), id, p)
	if err != nil {
		api.writeError(w, r, err)
		return
	}
	api.writeJSON(r.Context(), w, http.StatusOK, u)
}

func (api *API) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		api.writeError(w, r, err)
		return
	}
	if err := api.svc.Delete(r.Context(), id); err != nil {
		api.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pathID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, xerrors.Ef(xerrors.KindInvalidArgument, "Invalid user id %q", raw)
	}
	return id, nil
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return xerrors.E(xerrors.KindInvalidArgument, "Request body is required")
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return xerrors.WithKind(err, xerrors.KindInvalidArgument, "Request body is too large")
		}
		return xerrors.WithKind(err, xerrors.KindInvalidArgument, "Malformed JSON request body")
	}
	// exactly one JSON value per body; unknown fields stay ignored
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return xerrors.E(xerrors.KindInvalidArgument, "Malformed JSON request body")
	}
	return nil
}

func (api *API) writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.FromContextOr(ctx, api.logger).Warn(ctx, "failed to encode JSON response", "error", err)
	}
}
