// Package memory implements an in-process pseudonym store and a connector for it. It is used for
// smoke runs without a backend, for the fake service and in tests.
package memory

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"pseudobench/internal/connector"
	"pseudobench/internal/workload"
)

// Store maps record references to pseudonyms per domain. It is shared by all connectors of one
// factory and safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	domains map[string]map[connector.RecordRef]string
	calls   [workload.NumKinds]atomic.Uint64
}

func NewStore() *Store {
	return &Store{domains: make(map[string]map[connector.RecordRef]string)}
}

// Reset drops every record of domain and creates it empty.
func (s *Store) Reset(domain string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.domains[domain] = make(map[connector.RecordRef]string)
}

// CreateDomain creates an empty domain and reports false when it already exists.
func (s *Store) CreateDomain(domain string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.domains[domain]; ok {
		return false
	}
	s.domains[domain] = make(map[connector.RecordRef]string)
	return true
}

func (s *Store) HasDomain(domain string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.domains[domain]
	return ok
}

// Clear drops every domain.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.domains = make(map[string]map[connector.RecordRef]string)
}

// Put stores ref under a fresh pseudonym and returns it. The domain is created when missing.
func (s *Store) Put(domain string, ref connector.RecordRef) string {
	s.calls[workload.Create].Add(1)
	psn := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.domains[domain]
	if !ok {
		d = make(map[connector.RecordRef]string)
		s.domains[domain] = d
	}
	d[ref] = psn
	return psn
}

func (s *Store) Get(domain string, ref connector.RecordRef) (string, error) {
	s.calls[workload.Read].Add(1)
	s.mu.RLock()
	defer s.mu.RUnlock()
	psn, ok := s.domains[domain][ref]
	if !ok {
		return "", connector.ErrNotFound
	}
	return psn, nil
}

// Renew assigns a new pseudonym to an existing record.
func (s *Store) Renew(domain string, ref connector.RecordRef) (string, error) {
	s.calls[workload.Update].Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.domains[domain]
	if _, ok := d[ref]; !ok {
		return "", connector.ErrNotFound
	}
	psn := uuid.NewString()
	d[ref] = psn
	return psn, nil
}

func (s *Store) Remove(domain string, ref connector.RecordRef) error {
	s.calls[workload.Delete].Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.domains[domain]
	if _, ok := d[ref]; !ok {
		return connector.ErrNotFound
	}
	delete(d, ref)
	return nil
}

func (s *Store) Ping() int {
	s.calls[workload.Ping].Add(1)
	return http.StatusOK
}

// Len returns the number of records in domain.
func (s *Store) Len(domain string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.domains[domain])
}

// Size returns the number of records across all domains.
func (s *Store) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, d := range s.domains {
		n += len(d)
	}
	return n
}

// Calls returns how many store operations of kind were served.
func (s *Store) Calls(kind workload.Kind) uint64 {
	return s.calls[kind].Load()
}

type Options struct {
	Domain string
	IDType string
	// IDs renders the identifier of created records.
	IDs *connector.Template
	// Latency is added to every call.
	Latency time.Duration
}

type Connector struct {
	store *Store
	opts  Options
}

// NewFactory returns a factory whose connectors all share store.
func NewFactory(store *Store, opts Options) connector.Factory {
	if opts.IDType == "" {
		opts.IDType = "ID"
	}
	if opts.IDs == nil {
		opts.IDs = connector.NewTemplates().MustParse("id", "ID-{{uuid}}")
	}
	return connector.FactoryFunc(func() (connector.Connector, error) {
		return &Connector{store: store, opts: opts}, nil
	})
}

func (c *Connector) Prepare(ctx context.Context) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	c.store.Reset(c.opts.Domain)
	return nil
}

func (c *Connector) Create(ctx context.Context) (connector.RecordRef, error) {
	if err := c.wait(ctx); err != nil {
		return connector.RecordRef{}, err
	}
	id, err := c.opts.IDs.Execute()
	if err != nil {
		return connector.RecordRef{}, err
	}
	ref := connector.RecordRef{IDType: c.opts.IDType, IDString: id}
	c.store.Put(c.opts.Domain, ref)
	return ref, nil
}

func (c *Connector) Read(ctx context.Context, ref connector.RecordRef) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	_, err := c.store.Get(c.opts.Domain, ref)
	return err
}

func (c *Connector) Update(ctx context.Context, ref connector.RecordRef) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	_, err := c.store.Renew(c.opts.Domain, ref)
	return err
}

func (c *Connector) Delete(ctx context.Context, ref connector.RecordRef) error {
	if err := c.wait(ctx); err != nil {
		return err
	}
	return c.store.Remove(c.opts.Domain, ref)
}

func (c *Connector) Ping(ctx context.Context) (int, error) {
	if err := c.wait(ctx); err != nil {
		return 0, err
	}
	return c.store.Ping(), nil
}

// StorageConsumption reports the record count of the connector's domain.
func (c *Connector) StorageConsumption(_ context.Context, _ string) (string, error) {
	return strconv.Itoa(c.store.Len(c.opts.Domain)), nil
}

func (c *Connector) wait(ctx context.Context) error {
	if c.opts.Latency <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(c.opts.Latency)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
