// Package trustdeck implements the connector for the TrustDeck pseudonymization service. The
// same REST client serves the ACE connector.
package trustdeck

import (
	"context"
	"net/http"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"pseudobench/internal/connector"
)

// Dialect holds the per-service defaults used for domains and pseudonyms.
type Dialect struct {
	Name               string
	DomainPrefix       string
	IDType             string
	DomainValidFrom    string
	PseudonymValidFrom string
}

var TrustDeck = Dialect{
	Name:               "trustdeck",
	DomainPrefix:       "PA-",
	IDType:             "TestType",
	DomainValidFrom:    "2000-01-01T18:00:00",
	PseudonymValidFrom: "2001-01-01T18:00:00",
}

type Options struct {
	URI        string
	Domain     string
	Dialect    Dialect
	IDs        *connector.Template
	Tokens     TokenSource
	HTTPClient *http.Client
	// ResetWait is slept between clearing the tables and recreating the domain.
	ResetWait     time.Duration
	RetryAttempts uint
	RetryDelay    time.Duration
}

func (o *Options) setDefaults() {
	if o.Dialect.Name == "" {
		o.Dialect = TrustDeck
	}
	if o.IDs == nil {
		o.IDs = connector.NewTemplates().MustParse("id", "ID-{{uuid}}")
	}
	if o.HTTPClient == nil {
		o.HTTPClient = connector.NewHTTPClient(30*time.Second, false)
	}
	if o.RetryAttempts == 0 {
		o.RetryAttempts = 5
	}
	if o.RetryDelay == 0 {
		o.RetryDelay = 500 * time.Millisecond
	}
}

// NewFactory returns a factory for connectors sharing one HTTP client and token source.
func NewFactory(opts Options) connector.Factory {
	opts.setDefaults()
	client := NewClient(opts.URI, opts.HTTPClient, opts.Tokens)
	return connector.FactoryFunc(func() (connector.Connector, error) {
		if opts.Tokens == nil {
			return nil, errors.New("no token source configured")
		}
		return &Connector{
			client: client,
			opts:   opts,
			log:    log.WithField("component", opts.Dialect.Name),
		}, nil
	})
}

type Connector struct {
	client *Client
	opts   Options
	log    *log.Entry
}

// Prepare clears the service, removes the domain's rights and roles and creates the domain.
// Failures of the two cleanup steps are logged and ignored; the domain must be created.
func (c *Connector) Prepare(ctx context.Context) error {
	if err := c.client.ClearTables(ctx); err != nil {
		c.log.WithError(err).Warn("clearing tables failed")
	} else {
		c.log.Info("tables cleared")
	}

	if c.opts.ResetWait > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.opts.ResetWait):
		}
	}

	if err := c.client.DeleteDomainRightsAndRoles(ctx, c.opts.Domain); err != nil {
		c.log.WithError(err).Warn("deleting domain rights and roles failed")
	}

	domain := Domain{
		Name:      c.opts.Domain,
		Prefix:    c.opts.Dialect.DomainPrefix,
		ValidFrom: c.opts.Dialect.DomainValidFrom,
	}
	err := retry.Do(
		func() error {
			err := c.client.CreateDomain(ctx, domain)
			var se *connector.StatusError
			if errors.As(err, &se) && se.Code == http.StatusConflict {
				return nil
			}
			return err
		},
		retry.Context(ctx),
		retry.Attempts(c.opts.RetryAttempts),
		retry.Delay(c.opts.RetryDelay),
		retry.RetryIf(connector.Retryable),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			c.log.WithError(err).Warnf("creating domain, attempt %d failed", n+1)
		}),
	)
	if err != nil {
		return errors.Wrapf(err, "creating domain %s", c.opts.Domain)
	}
	c.log.Infof("domain %s created", c.opts.Domain)
	return nil
}

func (c *Connector) item(ref connector.RecordRef) Pseudonym {
	return Pseudonym{Identifier: ref.IDString, IDType: ref.IDType}
}

func (c *Connector) Create(ctx context.Context) (connector.RecordRef, error) {
	id, err := c.opts.IDs.Execute()
	if err != nil {
		return connector.RecordRef{}, err
	}
	ref := connector.RecordRef{IDType: c.opts.Dialect.IDType, IDString: id}
	if _, err := c.client.CreatePseudonym(ctx, c.opts.Domain, c.item(ref)); err != nil {
		return connector.RecordRef{}, errors.Wrapf(err, "creating pseudonym for %s", ref)
	}
	return ref, nil
}

func (c *Connector) Read(ctx context.Context, ref connector.RecordRef) error {
	_, err := c.client.GetPseudonym(ctx, c.opts.Domain, c.item(ref))
	return errors.Wrapf(err, "reading pseudonym of %s", ref)
}

func (c *Connector) Update(ctx context.Context, ref connector.RecordRef) error {
	p := c.item(ref)
	p.ValidFrom = c.opts.Dialect.PseudonymValidFrom
	return errors.Wrapf(c.client.UpdatePseudonym(ctx, c.opts.Domain, p), "updating pseudonym of %s", ref)
}

func (c *Connector) Delete(ctx context.Context, ref connector.RecordRef) error {
	return errors.Wrapf(c.client.DeletePseudonym(ctx, c.opts.Domain, c.item(ref)), "deleting pseudonym of %s", ref)
}

// Ping tolerates a missing ping endpoint.
func (c *Connector) Ping(ctx context.Context) (int, error) {
	code, err := c.client.Ping(ctx)
	if errors.Is(err, connector.ErrNotFound) {
		return code, nil
	}
	return code, err
}

// StorageConsumption returns the service's storage report for table, or an empty string when
// the service rejects the request.
func (c *Connector) StorageConsumption(ctx context.Context, table string) (string, error) {
	usage, err := c.client.Storage(ctx, table)
	var se *connector.StatusError
	if errors.As(err, &se) {
		c.log.WithError(err).Debug("storage report unavailable")
		return "", nil
	}
	return usage, err
}
