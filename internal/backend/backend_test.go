package backend

import (
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pseudobench/internal/config"
	"pseudobench/internal/dummy"
)

func baseConfig(typ string) config.Backend {
	return config.Backend{
		Type:               typ,
		DomainName:         "bench",
		IdentifierTemplate: "BENCH-{{randomAlpha 8}}",
		TimeoutMillis:      2000,
		Keycloak:           config.Keycloak{Realm: "bench", ClientID: "bench", Username: "u", Password: "p", SafetyMargin: 10},
	}
}

func TestNewFactory_Local(t *testing.T) {
	boltCfg := baseConfig(Bolt)
	boltCfg.Bolt.Path = filepath.Join(t.TempDir(), "bench.db")

	for _, cfg := range []config.Backend{baseConfig(Memory), boltCfg} {
		t.Run(cfg.Type, func(t *testing.T) {
			factory, closer, err := NewFactory(cfg)
			require.NoError(t, err)
			defer closer.Close()

			conn, err := factory.New()
			require.NoError(t, err)
			require.NoError(t, conn.Prepare(t.Context()))
			ref, err := conn.Create(t.Context())
			require.NoError(t, err)
			assert.Regexp(t, `^BENCH-[A-Za-z]{8}$`, ref.IDString)
		})
	}
}

func TestNewFactory_Remote(t *testing.T) {
	srv := httptest.NewServer(dummy.New(dummy.ServerConfig{APIKey: "key"}).Handler())
	defer srv.Close()

	for _, typ := range []string{TrustDeck, ACE, Mainzelliste} {
		t.Run(typ, func(t *testing.T) {
			cfg := baseConfig(typ)
			cfg.URI = srv.URL
			cfg.Keycloak.AuthURI = srv.URL
			if typ == Mainzelliste {
				cfg.URI = srv.URL + "/mainzelliste"
				cfg.Mainzelliste = config.Mainzelliste{APIKey: "key", IDType: "extid", LastNameTemplate: "{{randomChoice \"Doe\"}}"}
			}

			factory, closer, err := NewFactory(cfg)
			require.NoError(t, err)
			defer closer.Close()

			conn, err := factory.New()
			require.NoError(t, err)
			require.NoError(t, conn.Prepare(t.Context()))
			ref, err := conn.Create(t.Context())
			require.NoError(t, err)
			require.NoError(t, conn.Read(t.Context(), ref))
		})
	}
}

func TestNewFactory_Errors(t *testing.T) {
	_, _, err := NewFactory(baseConfig("ldap"))
	assert.ErrorIs(t, err, ErrUnknownBackend)

	cfg := baseConfig(Memory)
	cfg.IdentifierTemplate = "{{nope}}"
	_, _, err = NewFactory(cfg)
	assert.Error(t, err)
}
