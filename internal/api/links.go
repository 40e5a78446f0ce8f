package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/retrylife/remoteplayers/internal/links"
)

const maxRequestBodySize = 64 << 10

// LinkStore is the subset of links.Store the API needs.
type LinkStore interface {
	SetIntegrationEnabled(enabled bool) error
	IntegrationEnabled() (bool, error)
	LinkedServiceURL(server string) (string, bool, error)
	SetLinkedServiceURL(server, url string) error
	UnlinkService(server string) error
	Links() ([]links.Link, error)
}

type Deps struct {
	Links  LinkStore
	Token  string
	Logger *slog.Logger // optional; defaults to slog.Default()
}

type integrationBody struct {
	Enabled *bool `json:"enabled"`
}

type linkBody struct {
	URL *string `json:"url"`
}

// NewHandler builds the local HTTP API. Everything except /health requires
// the bearer token.
func NewHandler(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(EscapedRoutePath)
	r.Use(RequestID)
	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(deps.Token))

		r.Get("/integration", handleGetIntegration(deps))
		r.Put("/integration", handlePutIntegration(deps))
		r.Get("/links", handleListLinks(deps))

		// "/links/" addresses the server with the empty name.
		for _, pattern := range []string{"/links/", "/links/{server}"} {
			r.Get(pattern, handleGetLink(deps))
			r.Put(pattern, handlePutLink(deps))
			r.Delete(pattern, handleDeleteLink(deps))
		}
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleGetIntegration(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		enabled, err := deps.Links.IntegrationEnabled()
		if err != nil {
			serverError(w, r, deps.Logger, "failed to read integration flag", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"enabled": enabled})
	}
}

func handlePutIntegration(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var body integrationBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if body.Enabled == nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "enabled is required")
			return
		}

		if err := deps.Links.SetIntegrationEnabled(*body.Enabled); err != nil {
			serverError(w, r, deps.Logger, "failed to set integration flag", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"enabled": *body.Enabled})
	}
}

func handleListLinks(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		all, err := deps.Links.Links()
		if err != nil {
			serverError(w, r, deps.Logger, "failed to list links", err)
			return
		}
		if all == nil {
			all = []links.Link{}
		}
		writeJSON(w, http.StatusOK, all)
	}
}

func handleGetLink(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		server, ok := serverParam(w, r)
		if !ok {
			return
		}

		mapURL, found, err := deps.Links.LinkedServiceURL(server)
		if err != nil {
			serverError(w, r, deps.Logger, "failed to read link", err)
			return
		}
		if !found {
			httpError(w, http.StatusNotFound, "not_found", "no map linked to server %q", server)
			return
		}
		writeJSON(w, http.StatusOK, links.Link{Server: server, URL: mapURL})
	}
}

func handlePutLink(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		server, ok := serverParam(w, r)
		if !ok {
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		var body linkBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if body.URL == nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "url is required")
			return
		}

		if err := deps.Links.SetLinkedServiceURL(server, *body.URL); err != nil {
			serverError(w, r, deps.Logger, "failed to set link", err)
			return
		}
		writeJSON(w, http.StatusOK, links.Link{Server: server, URL: *body.URL})
	}
}

func handleDeleteLink(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		server, ok := serverParam(w, r)
		if !ok {
			return
		}
		if err := deps.Links.UnlinkService(server); err != nil {
			serverError(w, r, deps.Logger, "failed to remove link", err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

// EscapedRoutePath makes chi match routes against the escaped request path,
// so URL parameters arrive still percent-encoded whatever net/url decided
// about RawPath. Handlers unescape them exactly once.
func EscapedRoutePath(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePath == "" {
			rctx.RoutePath = r.URL.EscapedPath()
		}
		next.ServeHTTP(w, r)
	})
}

// serverParam returns the {server} path segment, unescaped once. It is
// empty for "/links/".
func serverParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	server, err := url.PathUnescape(chi.URLParam(r, "server"))
	if err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid server name: %v", err)
		return "", false
	}
	return server, true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"message": fmt.Sprintf(format, args...),
			"type":    errType,
		},
	})
}

func serverError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, msg string, err error) {
	logger.Error(msg, "error", err, "request_id", requestIDFrom(r.Context()))
	httpError(w, http.StatusInternalServerError, "api_error", "%s: %v", msg, err)
}
