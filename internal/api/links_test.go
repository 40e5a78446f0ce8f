package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/retrylife/remoteplayers/internal/links"
	"github.com/retrylife/remoteplayers/internal/prefs"
)

const testToken = "test-token-12345"

func setupHandler(t *testing.T) (http.Handler, *links.Store) {
	t.Helper()
	root, err := prefs.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { root.Close() })

	store := links.Open(root)
	return NewHandler(Deps{Links: store, Token: testToken}), store
}

func authReq(method, url, body, token string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, url, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

// brokenStore fails every operation.
type brokenStore struct{ err error }

func (b brokenStore) SetIntegrationEnabled(bool) error { return b.err }
func (b brokenStore) IntegrationEnabled() (bool, error) { return false, b.err }
func (b brokenStore) LinkedServiceURL(string) (string, bool, error) { return "", false, b.err }
func (b brokenStore) SetLinkedServiceURL(string, string) error { return b.err }
func (b brokenStore) UnlinkService(string) error { return b.err }
func (b brokenStore) Links() ([]links.Link, error) { return nil, b.err }

func TestHealthNoAuth(t *testing.T) {
	h, _ := setupHandler(t)
	rec := serve(h, authReq("GET", "/health", "", ""))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRequestIDEchoed(t *testing.T) {
	h, _ := setupHandler(t)
	req := authReq("GET", "/health", "", "")
	req.Header.Set("X-Request-ID", "abc-123")
	rec := serve(h, req)
	require.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}

func TestAuthRequired(t *testing.T) {
	h, _ := setupHandler(t)
	for _, token := range []string{"", "wrong"} {
		rec := serve(h, authReq("GET", "/links", "", token))
		require.Equal(t, http.StatusUnauthorized, rec.Code, "token %q", token)
	}
}

func TestIntegrationEndpoints(t *testing.T) {
	h, store := setupHandler(t)

	rec := serve(h, authReq("GET", "/integration", "", testToken))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, map[string]bool{"enabled": false}, decode[map[string]bool](t, rec))

	rec = serve(h, authReq("PUT", "/integration", `{"enabled":true}`, testToken))
	require.Equal(t, http.StatusOK, rec.Code)

	enabled, err := store.IntegrationEnabled()
	require.NoError(t, err)
	require.True(t, enabled)

	rec = serve(h, authReq("GET", "/integration", "", testToken))
	require.Equal(t, map[string]bool{"enabled": true}, decode[map[string]bool](t, rec))
}

func TestPutIntegrationBadBody(t *testing.T) {
	h, _ := setupHandler(t)
	for _, body := range []string{`{}`, `nope`} {
		rec := serve(h, authReq("PUT", "/integration", body, testToken))
		require.Equal(t, http.StatusBadRequest, rec.Code, "body %q", body)
	}
}

func TestLinkLifecycleHTTP(t *testing.T) {
	h, store := setupHandler(t)

	rec := serve(h, authReq("GET", "/links/survival", "", testToken))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(h, authReq("PUT", "/links/survival", `{"url":"https://map.example.com"}`, testToken))
	require.Equal(t, http.StatusOK, rec.Code)

	url, ok, err := store.LinkedServiceURL("survival")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "https://map.example.com", url)

	rec = serve(h, authReq("GET", "/links/survival", "", testToken))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, links.Link{Server: "survival", URL: "https://map.example.com"}, decode[links.Link](t, rec))

	rec = serve(h, authReq("DELETE", "/links/survival", "", testToken))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = serve(h, authReq("GET", "/links/survival", "", testToken))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteMissingLinkOK(t *testing.T) {
	h, _ := setupHandler(t)
	rec := serve(h, authReq("DELETE", "/links/ghost", "", testToken))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestPutLinkRequiresURL(t *testing.T) {
	h, _ := setupHandler(t)
	rec := serve(h, authReq("PUT", "/links/s", `{}`, testToken))
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEscapedServerNames(t *testing.T) {
	cases := []struct {
		path   string
		server string
	}{
		{"/links/mc.example.com%3A25565", "mc.example.com:25565"},
		{"/links/50%25", "50%"},
		{"/links/x%2541", "x%41"},
		{"/links/my%20server", "my server"},
		{"/links/a%2Fb", "a/b"},
		{"/links/caf%C3%A9", "café"},
	}
	for _, c := range cases {
		t.Run(c.server, func(t *testing.T) {
			h, store := setupHandler(t)

			rec := serve(h, authReq("PUT", c.path, `{"url":"http://m"}`, testToken))
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			require.Equal(t, c.server, decode[links.Link](t, rec).Server)

			all, err := store.Links()
			require.NoError(t, err)
			require.Equal(t, []links.Link{{Server: c.server, URL: "http://m"}}, all)

			rec = serve(h, authReq("GET", c.path, "", testToken))
			require.Equal(t, http.StatusOK, rec.Code)

			rec = serve(h, authReq("DELETE", c.path, "", testToken))
			require.Equal(t, http.StatusOK, rec.Code)
			has, err := store.HasLinkedService(c.server)
			require.NoError(t, err)
			require.False(t, has)
		})
	}
}

func TestEscapedNameDoesNotTouchDecodedTwin(t *testing.T) {
	h, store := setupHandler(t)
	require.NoError(t, store.SetLinkedServiceURL("xA", "http://a"))

	rec := serve(h, authReq("PUT", "/links/x%2541", `{"url":"http://pct"}`, testToken))
	require.Equal(t, http.StatusOK, rec.Code)
	rec = serve(h, authReq("DELETE", "/links/x%2541", "", testToken))
	require.Equal(t, http.StatusOK, rec.Code)

	url, ok, err := store.LinkedServiceURL("xA")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "http://a", url)
}

func TestEmptyServerName(t *testing.T) {
	h, store := setupHandler(t)

	rec := serve(h, authReq("GET", "/links/", "", testToken))
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = serve(h, authReq("PUT", "/links/", `{"url":"http://empty"}`, testToken))
	require.Equal(t, http.StatusOK, rec.Code)

	url, ok, err := store.LinkedServiceURL("")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "http://empty", url)

	rec = serve(h, authReq("GET", "/links/", "", testToken))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, links.Link{Server: "", URL: "http://empty"}, decode[links.Link](t, rec))

	rec = serve(h, authReq("DELETE", "/links/", "", testToken))
	require.Equal(t, http.StatusOK, rec.Code)
	has, err := store.HasLinkedService("")
	require.NoError(t, err)
	require.False(t, has)
}

func TestListLinks(t *testing.T) {
	h, store := setupHandler(t)

	rec := serve(h, authReq("GET", "/links", "", testToken))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))

	require.NoError(t, store.SetLinkedServiceURL("b", "http://b"))
	require.NoError(t, store.SetLinkedServiceURL("a", "http://a"))

	rec = serve(h, authReq("GET", "/links", "", testToken))
	require.Equal(t, []links.Link{
		{Server: "a", URL: "http://a"},
		{Server: "b", URL: "http://b"},
	}, decode[[]links.Link](t, rec))
}

func TestStoreErrorsAre500(t *testing.T) {
	h := NewHandler(Deps{Links: brokenStore{err: errors.New("boom")}, Token: testToken})

	cases := []struct{ method, path, body string }{
		{"GET", "/integration", ""},
		{"PUT", "/integration", `{"enabled":false}`},
		{"GET", "/links", ""},
		{"GET", "/links/x", ""},
		{"PUT", "/links/x", `{"url":"u"}`},
		{"DELETE", "/links/x", ""},
	}
	for _, c := range cases {
		rec := serve(h, authReq(c.method, c.path, c.body, testToken))
		require.Equal(t, http.StatusInternalServerError, rec.Code, "%s %s", c.method, c.path)

		body := decode[map[string]map[string]string](t, rec)
		require.Equal(t, "api_error", body["error"]["type"])
		require.Contains(t, body["error"]["message"], "boom")
	}
}
