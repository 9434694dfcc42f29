package trustdeck_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pseudobench/internal/auth"
	"pseudobench/internal/connector"
	"pseudobench/internal/connector/ace"
	"pseudobench/internal/connector/trustdeck"
	"pseudobench/internal/dummy"
)

func newBackend(t *testing.T) (*httptest.Server, *dummy.Server, *auth.TokenCache) {
	t.Helper()
	backend := dummy.New(dummy.ServerConfig{TokenTTL: time.Minute})
	srv := httptest.NewServer(backend.Handler())
	t.Cleanup(srv.Close)

	tokens := auth.NewTokenCache()
	require.NoError(t, tokens.Initialize(auth.NewKeycloakRefresher(auth.KeycloakDetails{
		AuthURI:  srv.URL,
		Realm:    "trustdeck",
		ClientID: "bench",
		Username: "bench",
		Password: "bench",
	})))
	return srv, backend, tokens
}

func TestConnector_AgainstFakeService(t *testing.T) {
	srv, backend, tokens := newBackend(t)
	conn, err := trustdeck.NewFactory(trustdeck.Options{
		URI:    srv.URL,
		Domain: "bench",
		Tokens: tokens,
	}).New()
	require.NoError(t, err)
	ctx := t.Context()

	require.NoError(t, conn.Prepare(ctx))
	// preparing again finds the tables cleared and recreates the domain
	require.NoError(t, conn.Prepare(ctx))

	ref, err := conn.Create(ctx)
	require.NoError(t, err)
	assert.Equal(t, "TestType", ref.IDType)
	assert.Equal(t, 1, backend.Store().Len("bench"))

	require.NoError(t, conn.Read(ctx, ref))
	require.NoError(t, conn.Update(ctx, ref))
	require.NoError(t, conn.Delete(ctx, ref))
	assert.ErrorIs(t, conn.Read(ctx, ref), connector.ErrNotFound)
	assert.ErrorIs(t, conn.Delete(ctx, ref), connector.ErrNotFound)

	code, err := conn.Ping(ctx)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, code)

	usage, err := conn.(connector.StorageReporter).StorageConsumption(ctx, "pseudonym")
	require.NoError(t, err)
	assert.Contains(t, usage, `"records":0`)
}

func TestACE_UsesItsDialect(t *testing.T) {
	srv, _, tokens := newBackend(t)
	conn, err := ace.NewFactory(trustdeck.Options{URI: srv.URL, Domain: "ace", Tokens: tokens}).New()
	require.NoError(t, err)

	require.NoError(t, conn.Prepare(t.Context()))
	ref, err := conn.Create(t.Context())
	require.NoError(t, err)
	assert.Equal(t, "ID", ref.IDType)
}

func TestConnector_NeedsTokenSource(t *testing.T) {
	_, err := trustdeck.NewFactory(trustdeck.Options{URI: "http://localhost"}).New()
	assert.Error(t, err)
}

type staticToken string

func (s staticToken) Token(context.Context) (string, error) { return string(s), nil }

func TestPrepare_RetriesDomainCreation(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/pseudonymization/domain") {
			if attempts.Add(1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusConflict)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	conn, err := trustdeck.NewFactory(trustdeck.Options{
		URI:        srv.URL,
		Domain:     "bench",
		Tokens:     staticToken("t"),
		RetryDelay: time.Millisecond,
	}).New()
	require.NoError(t, err)

	require.NoError(t, conn.Prepare(t.Context()))
	assert.Equal(t, int32(3), attempts.Load())
}

func TestPrepare_DoesNotRetryClientErrors(t *testing.T) {
	var attempts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/pseudonymization/domain") {
			attempts.Add(1)
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	conn, _ := trustdeck.NewFactory(trustdeck.Options{
		URI:        srv.URL,
		Domain:     "bench",
		Tokens:     staticToken("t"),
		RetryDelay: time.Millisecond,
	}).New()

	err := conn.Prepare(t.Context())
	require.Error(t, err)
	assert.Equal(t, int32(1), attempts.Load())
}

func TestPing_ToleratesMissingEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	conn, _ := trustdeck.NewFactory(trustdeck.Options{URI: srv.URL, Domain: "bench", Tokens: staticToken("t")}).New()
	code, err := conn.Ping(t.Context())
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, code)
}
