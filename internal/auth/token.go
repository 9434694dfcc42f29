package auth

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

const DefaultSafetyMargin = 10 * time.Second

var (
	ErrAlreadyInitialized = errors.New("token cache already initialized")
	ErrNotInitialized     = errors.New("token cache not initialized")
)

// Credential is a bearer token and the instant from which it must no longer be handed out.
type Credential struct {
	Token     string
	ExpiresAt time.Time
}

func (c *Credential) validAt(now time.Time) bool {
	return c != nil && c.Token != "" && now.Before(c.ExpiresAt)
}

// Refresher fetches a fresh token and reports how long the server considers it valid.
type Refresher interface {
	Refresh(ctx context.Context) (token string, expiresIn time.Duration, err error)
}

type RefresherFunc func(ctx context.Context) (string, time.Duration, error)

func (f RefresherFunc) Refresh(ctx context.Context) (string, time.Duration, error) {
	return f(ctx)
}

// TokenCache hands a valid bearer token to any number of goroutines and refreshes it at most
// once per expiry window. Reads of a valid token are a single atomic load.
type TokenCache struct {
	current atomic.Pointer[Credential]

	// mu guards refresher and serialises refreshes
	mu        sync.Mutex
	refresher Refresher

	margin time.Duration
	now    func() time.Time
	log    *log.Entry
}

type Option func(*TokenCache)

// WithSafetyMargin sets how long before the server-side expiry a token is considered stale.
func WithSafetyMargin(d time.Duration) Option {
	return func(c *TokenCache) { c.margin = d }
}

func WithClock(now func() time.Time) Option {
	return func(c *TokenCache) { c.now = now }
}

func NewTokenCache(opts ...Option) *TokenCache {
	c := &TokenCache{
		margin: DefaultSafetyMargin,
		now:    time.Now,
		log:    log.WithField("component", "token-cache"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Initialize binds the refresher. It must be called exactly once.
func (c *TokenCache) Initialize(r Refresher) error {
	if r == nil {
		return errors.New("nil refresher")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.refresher != nil {
		return ErrAlreadyInitialized
	}
	c.refresher = r
	return nil
}

// Token returns a currently valid token, refreshing it first when it is absent or stale.
// A failed refresh leaves the previous credential in place for the next caller to retry.
func (c *TokenCache) Token(ctx context.Context) (string, error) {
	if cred := c.current.Load(); cred.validAt(c.now()) {
		return cred.Token, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.refresher == nil {
		return "", ErrNotInitialized
	}
	// another caller may have refreshed while we waited
	if cred := c.current.Load(); cred.validAt(c.now()) {
		return cred.Token, nil
	}

	token, expiresIn, err := c.refresher.Refresh(ctx)
	if err != nil {
		return "", errors.Wrap(err, "refreshing token")
	}
	if token == "" {
		return "", errors.New("refreshing token: empty token")
	}
	cred := &Credential{
		Token:     token,
		ExpiresAt: c.now().Add(expiresIn - c.margin),
	}
	c.current.Store(cred)
	c.log.WithField("expiresAt", cred.ExpiresAt.Format(time.RFC3339)).Debug("token refreshed")
	return cred.Token, nil
}

// Credential returns the cached credential, if any, without refreshing it.
func (c *TokenCache) Credential() (Credential, bool) {
	cred := c.current.Load()
	if cred == nil {
		return Credential{}, false
	}
	return *cred, true
}
