package dummy

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pseudobench/internal/auth"
	"pseudobench/internal/connector"
)

func TestServer_RequiresBearerToken(t *testing.T) {
	srv := httptest.NewServer(New(ServerConfig{}).Handler())
	defer srv.Close()

	client := connector.NewHTTPClient(time.Second, false)
	code, err := connector.Do(t.Context(), client, connector.Request{Method: http.MethodGet, URL: srv.URL + "/api/ping"})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Error(t, err)

	code, err = connector.Do(t.Context(), client, connector.Request{
		Method: http.MethodGet,
		URL:    srv.URL + "/api/ping",
		Header: connector.Bearer("forged"),
	})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Error(t, err)
}

func TestServer_IssuesVerifiableTokens(t *testing.T) {
	srv := httptest.NewServer(New(ServerConfig{TokenTTL: time.Minute}).Handler())
	defer srv.Close()

	r := auth.NewKeycloakRefresher(auth.KeycloakDetails{
		AuthURI:  srv.URL,
		Realm:    "bench",
		ClientID: "cli",
		Username: "alice",
		Password: "secret",
	})
	token, expiresIn, err := r.Refresh(t.Context())
	require.NoError(t, err)
	assert.InDelta(t, float64(time.Minute), float64(expiresIn), float64(5*time.Second))

	// refresh grant
	_, _, err = r.Refresh(t.Context())
	require.NoError(t, err)

	code, err := connector.Do(t.Context(), connector.NewHTTPClient(time.Second, false), connector.Request{
		Method: http.MethodGet,
		URL:    srv.URL + "/api/ping",
		Header: connector.Bearer(token),
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, code)
}

func TestServer_RejectsUnknownGrant(t *testing.T) {
	srv := httptest.NewServer(New(ServerConfig{}).Handler())
	defer srv.Close()

	resp, err := http.PostForm(srv.URL+"/realms/bench/protocol/openid-connect/token", url.Values{"grant_type": {"implicit"}})
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestServer_InjectsFailures(t *testing.T) {
	srv := httptest.NewServer(New(ServerConfig{ErrorRate: 1}).Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/mainzelliste/")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestServer_MainzellisteRequiresAPIKey(t *testing.T) {
	srv := httptest.NewServer(New(ServerConfig{APIKey: "key"}).Handler())
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/mainzelliste/sessions", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
