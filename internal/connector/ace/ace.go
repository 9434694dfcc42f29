// Package ace configures the pseudonymization connector for ACE, the Keycloak protected
// predecessor of TrustDeck.
package ace

import (
	"pseudobench/internal/connector"
	"pseudobench/internal/connector/trustdeck"
)

var Dialect = trustdeck.Dialect{
	Name:               "ace",
	DomainPrefix:       "TST",
	IDType:             "ID",
	DomainValidFrom:    "2000-01-01T18:00:00",
	PseudonymValidFrom: "2001-01-01T18:00:00",
}

// NewFactory returns a factory for ACE connectors. opts.Dialect is ignored.
func NewFactory(opts trustdeck.Options) connector.Factory {
	opts.Dialect = Dialect
	return trustdeck.NewFactory(opts)
}
