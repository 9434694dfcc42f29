// Package backend selects and wires the connector implementation named in the configuration.
package backend

import (
	"io"
	"strings"
	"time"

	"github.com/pkg/errors"

	"pseudobench/internal/auth"
	"pseudobench/internal/config"
	"pseudobench/internal/connector"
	"pseudobench/internal/connector/ace"
	"pseudobench/internal/connector/bolt"
	"pseudobench/internal/connector/mainzelliste"
	"pseudobench/internal/connector/memory"
	"pseudobench/internal/connector/trustdeck"
)

const (
	Memory       = "memory"
	Bolt         = "bolt"
	TrustDeck    = "trustdeck"
	ACE          = "ace"
	Mainzelliste = "mainzelliste"
)

var ErrUnknownBackend = errors.New("unknown backend type")

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// NewFactory builds the connector factory for cfg. The returned closer releases resources
// shared by all connectors and must be called once the run is over.
func NewFactory(cfg config.Backend) (connector.Factory, io.Closer, error) {
	templates := connector.NewTemplates()
	ids, err := templates.Parse("identifier", cfg.IdentifierTemplate)
	if err != nil {
		return nil, nil, err
	}
	timeout := time.Duration(cfg.TimeoutMillis) * time.Millisecond

	switch strings.ToLower(cfg.Type) {
	case Memory:
		return memory.NewFactory(memory.NewStore(), memory.Options{
			Domain:  cfg.DomainName,
			IDs:     ids,
			Latency: time.Duration(cfg.Memory.LatencyMillis) * time.Millisecond,
		}), nopCloser{}, nil

	case Bolt:
		store, err := bolt.Open(bolt.Options{Path: cfg.Bolt.Path, Domain: cfg.DomainName, IDs: ids})
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil

	case TrustDeck, ACE:
		httpClient := connector.NewHTTPClient(timeout, cfg.InsecureSkipVerify)
		tokens := auth.NewTokenCache(auth.WithSafetyMargin(time.Duration(cfg.Keycloak.SafetyMargin) * time.Second))
		kc := cfg.Keycloak
		if err := tokens.Initialize(auth.NewKeycloakRefresher(auth.KeycloakDetails{
			AuthURI:      kc.AuthURI,
			Realm:        kc.Realm,
			ClientID:     kc.ClientID,
			ClientSecret: kc.ClientSecret,
			Username:     kc.Username,
			Password:     kc.Password,
			HTTPClient:   httpClient,
		})); err != nil {
			return nil, nil, err
		}
		opts := trustdeck.Options{
			URI:        cfg.URI,
			Domain:     cfg.DomainName,
			IDs:        ids,
			Tokens:     tokens,
			HTTPClient: httpClient,
			ResetWait:  time.Duration(cfg.ResetWaitMillis) * time.Millisecond,
		}
		if strings.EqualFold(cfg.Type, ACE) {
			return ace.NewFactory(opts), nopCloser{}, nil
		}
		return trustdeck.NewFactory(opts), nopCloser{}, nil

	case Mainzelliste:
		ml := cfg.Mainzelliste
		opts := mainzelliste.Options{
			URI:        cfg.URI,
			APIKey:     ml.APIKey,
			IDType:     ml.IDType,
			IDs:        ids,
			HTTPClient: connector.NewHTTPClient(timeout, cfg.InsecureSkipVerify),
		}
		if ml.FirstNameTemplate != "" {
			if opts.FirstNames, err = templates.Parse("firstName", ml.FirstNameTemplate); err != nil {
				return nil, nil, err
			}
		}
		if ml.LastNameTemplate != "" {
			if opts.LastNames, err = templates.Parse("lastName", ml.LastNameTemplate); err != nil {
				return nil, nil, err
			}
		}
		return mainzelliste.NewFactory(opts), nopCloser{}, nil
	}
	return nil, nil, errors.Wrapf(ErrUnknownBackend, "%q", cfg.Type)
}
