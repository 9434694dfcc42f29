// Package mainzelliste implements the connector for the Mainzelliste patient list. Every
// operation first requests a single-use token from the connector's session.
package mainzelliste

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"pseudobench/internal/connector"
)

const APIKeyHeader = "mainzellisteApiKey"

var resultFields = []string{"vorname", "nachname", "geburtstag", "geburtsmonat", "geburtsjahr"}

type Options struct {
	URI        string
	APIKey     string
	IDType     string
	IDs        *connector.Template
	FirstNames *connector.Template
	LastNames  *connector.Template
	HTTPClient *http.Client
}

func NewFactory(opts Options) connector.Factory {
	templates := connector.NewTemplates()
	if opts.IDType == "" {
		opts.IDType = "extid"
	}
	if opts.IDs == nil {
		opts.IDs = templates.MustParse("id", "{{uuid}}")
	}
	if opts.FirstNames == nil {
		opts.FirstNames = templates.MustParse("firstName", "{{randomAlpha 5}}")
	}
	if opts.LastNames == nil {
		opts.LastNames = templates.MustParse("lastName", "{{randomAlpha 5}}")
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = connector.NewHTTPClient(30*time.Second, false)
	}
	return connector.FactoryFunc(func() (connector.Connector, error) {
		return &Connector{
			base: strings.TrimRight(opts.URI, "/"),
			opts: opts,
			log:  log.WithField("component", "mainzelliste"),
		}, nil
	})
}

type Connector struct {
	base    string
	opts    Options
	session string
	log     *log.Entry
}

type patientID struct {
	IDType   string `json:"idType"`
	IDString string `json:"idString"`
}

func toPatientID(ref connector.RecordRef) patientID {
	return patientID{IDType: ref.IDType, IDString: ref.IDString}
}

func (c *Connector) call(ctx context.Context, method, path string, body, out any) (int, error) {
	h := http.Header{}
	h.Set(APIKeyHeader, c.opts.APIKey)
	return connector.Do(ctx, c.opts.HTTPClient, connector.Request{
		Method: method,
		URL:    c.base + path,
		Header: h,
		Body:   body,
		Out:    out,
	})
}

func (c *Connector) newSession(ctx context.Context) error {
	var resp struct {
		SessionID string `json:"sessionId"`
	}
	if _, err := c.call(ctx, http.MethodPost, "/sessions", nil, &resp); err != nil {
		return errors.Wrap(err, "creating session")
	}
	if resp.SessionID == "" {
		return errors.New("creating session: empty session id")
	}
	c.session = resp.SessionID
	return nil
}

// token requests a single-use token, opening a new session when the current one is unknown to
// the server.
func (c *Connector) token(ctx context.Context, typ string, data any) (string, error) {
	body := map[string]any{"type": typ, "data": data}
	for attempt := 0; ; attempt++ {
		if c.session == "" {
			if err := c.newSession(ctx); err != nil {
				return "", err
			}
		}
		var resp struct {
			ID string `json:"id"`
		}
		_, err := c.call(ctx, http.MethodPost, "/sessions/"+url.PathEscape(c.session)+"/tokens", body, &resp)
		if errors.Is(err, connector.ErrNotFound) && attempt == 0 {
			c.log.Debug("session expired, opening a new one")
			c.session = ""
			continue
		}
		if err != nil {
			return "", errors.Wrapf(err, "requesting %s token", typ)
		}
		return resp.ID, nil
	}
}

// Prepare opens the connector's session. Mainzelliste has no reset endpoint.
func (c *Connector) Prepare(ctx context.Context) error {
	return c.newSession(ctx)
}

func (c *Connector) Create(ctx context.Context) (connector.RecordRef, error) {
	id, err := c.opts.IDs.Execute()
	if err != nil {
		return connector.RecordRef{}, err
	}
	first, err := c.opts.FirstNames.Execute()
	if err != nil {
		return connector.RecordRef{}, err
	}
	last, err := c.opts.LastNames.Execute()
	if err != nil {
		return connector.RecordRef{}, err
	}
	ref := connector.RecordRef{IDType: c.opts.IDType, IDString: id}

	fields := map[string]string{
		"vorname":      first,
		"nachname":     last,
		"geburtstag":   "02",
		"geburtsmonat": "03",
		"geburtsjahr":  "1990",
	}
	tokenID, err := c.token(ctx, "addPatient", map[string]any{
		"fields": fields,
		"ids":    map[string]string{ref.IDType: ref.IDString},
	})
	if err != nil {
		return connector.RecordRef{}, err
	}

	body := map[string]any{"sureness": true}
	for k, v := range fields {
		body[k] = v
	}
	var created []patientID
	if _, err := c.call(ctx, http.MethodPost, "/patients?tokenId="+url.QueryEscape(tokenID), body, &created); err != nil {
		return connector.RecordRef{}, errors.Wrapf(err, "adding patient %s", ref)
	}
	return ref, nil
}

func (c *Connector) Read(ctx context.Context, ref connector.RecordRef) error {
	tokenID, err := c.token(ctx, "readPatients", map[string]any{
		"searchIds":    []patientID{toPatientID(ref)},
		"resultFields": resultFields,
	})
	if err != nil {
		return err
	}
	var patients []map[string]any
	if _, err := c.call(ctx, http.MethodGet, "/patients?tokenId="+url.QueryEscape(tokenID), nil, &patients); err != nil {
		return errors.Wrapf(err, "reading patient %s", ref)
	}
	if len(patients) == 0 {
		return connector.ErrNotFound
	}
	return nil
}

func (c *Connector) Update(ctx context.Context, ref connector.RecordRef) error {
	tokenID, err := c.token(ctx, "editPatient", map[string]any{
		"patientId": toPatientID(ref),
		"fields":    []string{"ort"},
	})
	if err != nil {
		return err
	}
	_, err = c.call(ctx, http.MethodPut, "/patients/tokenId/"+url.PathEscape(tokenID), map[string]string{"ort": "newOrt"}, nil)
	return errors.Wrapf(err, "editing patient %s", ref)
}

func (c *Connector) Delete(ctx context.Context, ref connector.RecordRef) error {
	tokenID, err := c.token(ctx, "deletePatient", map[string]any{"patientId": toPatientID(ref)})
	if err != nil {
		return err
	}
	_, err = c.call(ctx, http.MethodDelete, "/patients/tokenId/"+url.PathEscape(tokenID), nil, nil)
	return errors.Wrapf(err, "deleting patient %s", ref)
}

// Ping requests the service root and returns its status code. A 404 is not an error.
func (c *Connector) Ping(ctx context.Context) (int, error) {
	code, err := c.call(ctx, http.MethodGet, "/", nil, nil)
	if errors.Is(err, connector.ErrNotFound) {
		return code, nil
	}
	return code, err
}
