package trustdeck

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"

	"pseudobench/internal/connector"
)

// TokenSource supplies bearer tokens. *auth.TokenCache implements it.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

type Domain struct {
	Name      string `json:"name"`
	Prefix    string `json:"prefix"`
	ValidFrom string `json:"validFrom,omitempty"`
}

type Pseudonym struct {
	Identifier string `json:"identifier"`
	IDType     string `json:"idType"`
	PSN        string `json:"psn,omitempty"`
	ValidFrom  string `json:"validFrom,omitempty"`
}

// Client speaks the pseudonymization REST API shared by TrustDeck and ACE.
type Client struct {
	base   string
	http   *http.Client
	tokens TokenSource
}

func NewClient(uri string, httpClient *http.Client, tokens TokenSource) *Client {
	return &Client{
		base:   strings.TrimRight(uri, "/"),
		http:   httpClient,
		tokens: tokens,
	}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) (int, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return 0, err
	}
	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	return connector.Do(ctx, c.http, connector.Request{
		Method: method,
		URL:    u,
		Header: connector.Bearer(token),
		Body:   body,
		Out:    out,
	})
}

func pseudonymPath(domain string) string {
	return "/api/pseudonymization/domains/" + url.PathEscape(domain) + "/pseudonym"
}

func identifierQuery(p Pseudonym) url.Values {
	return url.Values{"identifier": {p.Identifier}, "idType": {p.IDType}}
}

func (c *Client) CreateDomain(ctx context.Context, d Domain) error {
	_, err := c.do(ctx, http.MethodPost, "/api/pseudonymization/domain", nil, d, nil)
	return err
}

func (c *Client) ClearTables(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodDelete, "/api/dbmaintenance/tables", nil, nil, nil)
	return err
}

func (c *Client) DeleteDomainRightsAndRoles(ctx context.Context, domain string) error {
	_, err := c.do(ctx, http.MethodDelete,
		"/api/dbmaintenance/domains/"+url.PathEscape(domain)+"/rights-and-roles", nil, nil, nil)
	return err
}

func (c *Client) CreatePseudonym(ctx context.Context, domain string, p Pseudonym) (Pseudonym, error) {
	var out Pseudonym
	_, err := c.do(ctx, http.MethodPost, pseudonymPath(domain), nil, p, &out)
	return out, err
}

func (c *Client) GetPseudonym(ctx context.Context, domain string, p Pseudonym) (Pseudonym, error) {
	var out Pseudonym
	_, err := c.do(ctx, http.MethodGet, pseudonymPath(domain), identifierQuery(p), nil, &out)
	return out, err
}

func (c *Client) UpdatePseudonym(ctx context.Context, domain string, p Pseudonym) error {
	_, err := c.do(ctx, http.MethodPut, pseudonymPath(domain), identifierQuery(p), p, nil)
	return err
}

func (c *Client) DeletePseudonym(ctx context.Context, domain string, p Pseudonym) error {
	_, err := c.do(ctx, http.MethodDelete, pseudonymPath(domain), identifierQuery(p), nil, nil)
	return err
}

func (c *Client) Ping(ctx context.Context) (int, error) {
	return c.do(ctx, http.MethodGet, "/api/ping", nil, nil, nil)
}

// Storage returns the storage report of table as raw JSON.
func (c *Client) Storage(ctx context.Context, table string) (string, error) {
	var raw json.RawMessage
	_, err := c.do(ctx, http.MethodGet, "/api/dbmaintenance/storage", url.Values{"table": {table}}, nil, &raw)
	if err != nil {
		return "", errors.Wrapf(err, "storage of %s", table)
	}
	return string(raw), nil
}
