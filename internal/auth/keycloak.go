package auth

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

type KeycloakDetails struct {
	AuthURI      string
	Realm        string
	ClientID     string
	ClientSecret string
	// Username selects the password grant. Without it the client credentials grant is used.
	Username string
	Password string
	// HTTPClient is used for token requests when set.
	HTTPClient *http.Client
}

// TokenURL returns the OpenID Connect token endpoint of a Keycloak realm.
func TokenURL(authURI, realm string) string {
	return strings.TrimRight(authURI, "/") + "/realms/" + url.PathEscape(realm) + "/protocol/openid-connect/token"
}

// KeycloakRefresher obtains access tokens from Keycloak. It prefers the refresh token of the
// previous response and falls back to a full login when that fails.
type KeycloakRefresher struct {
	details KeycloakDetails
	config  *oauth2.Config
	now     func() time.Time

	mu           sync.Mutex
	refreshToken string
}

func NewKeycloakRefresher(details KeycloakDetails) *KeycloakRefresher {
	return &KeycloakRefresher{
		details: details,
		config: &oauth2.Config{
			ClientID:     details.ClientID,
			ClientSecret: details.ClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  TokenURL(details.AuthURI, details.Realm),
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		now: time.Now,
	}
}

func (k *KeycloakRefresher) Refresh(ctx context.Context) (string, time.Duration, error) {
	if k.details.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, k.details.HTTPClient)
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	var tok *oauth2.Token
	if k.refreshToken != "" {
		// an expired token forces the source to use the refresh grant
		t, err := k.config.TokenSource(ctx, &oauth2.Token{
			RefreshToken: k.refreshToken,
			Expiry:       k.now().Add(-1 * time.Hour),
		}).Token()
		if err != nil {
			log.WithError(err).Debug("refresh grant failed, logging in again")
			k.refreshToken = ""
		} else {
			tok = t
		}
	}
	if tok == nil {
		t, err := k.login(ctx)
		if err != nil {
			return "", 0, errors.Wrapf(err, "requesting token from %s", k.config.Endpoint.TokenURL)
		}
		tok = t
	}
	if tok.RefreshToken != "" {
		k.refreshToken = tok.RefreshToken
	}

	expiresIn, err := k.lifetime(tok)
	if err != nil {
		return "", 0, err
	}
	return tok.AccessToken, expiresIn, nil
}

func (k *KeycloakRefresher) login(ctx context.Context) (*oauth2.Token, error) {
	if k.details.Username != "" {
		return k.config.PasswordCredentialsToken(ctx, k.details.Username, k.details.Password)
	}
	cc := clientcredentials.Config{
		ClientID:     k.details.ClientID,
		ClientSecret: k.details.ClientSecret,
		TokenURL:     k.config.Endpoint.TokenURL,
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	return cc.Token(ctx)
}

// lifetime prefers expires_in from the token response and falls back to the exp claim.
func (k *KeycloakRefresher) lifetime(tok *oauth2.Token) (time.Duration, error) {
	if !tok.Expiry.IsZero() {
		return tok.Expiry.Sub(k.now()), nil
	}
	return ExpiresIn(tok.AccessToken, k.now())
}

// ExpiresIn reads the exp claim of a JWT without verifying its signature.
func ExpiresIn(raw string, now time.Time) (time.Duration, error) {
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil {
		return 0, errors.Wrap(err, "parsing access token")
	}
	if claims.ExpiresAt == nil {
		return 0, errors.New("access token has no expiry")
	}
	return claims.ExpiresAt.Sub(now), nil
}
