// Package bolt implements a connector backed by an embedded bbolt file, one bucket per domain.
package bolt

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.etcd.io/bbolt"

	"pseudobench/internal/connector"
)

type record struct {
	Pseudonym string    `json:"pseudonym"`
	ValidFrom time.Time `json:"validFrom"`
}

type Options struct {
	Path   string
	Domain string
	IDType string
	IDs    *connector.Template
}

// Store owns the bbolt file. Connectors created by it share the handle; bbolt serialises
// writers itself.
type Store struct {
	db   *bbolt.DB
	opts Options
}

func Open(opts Options) (*Store, error) {
	if dir := filepath.Dir(opts.Path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, errors.WithStack(err)
		}
	}
	db, err := bbolt.Open(opts.Path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s", opts.Path)
	}
	if opts.IDType == "" {
		opts.IDType = "ID"
	}
	if opts.IDs == nil {
		opts.IDs = connector.NewTemplates().MustParse("id", "ID-{{uuid}}")
	}
	return &Store{db: db, opts: opts}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// New implements connector.Factory.
func (s *Store) New() (connector.Connector, error) {
	return &Connector{db: s.db, bucket: []byte(s.opts.Domain), opts: s.opts}, nil
}

type Connector struct {
	db     *bbolt.DB
	bucket []byte
	opts   Options
}

// Prepare drops and recreates the domain bucket.
func (c *Connector) Prepare(_ context.Context) error {
	return c.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket(c.bucket); err != nil && !errors.Is(err, bbolt.ErrBucketNotFound) {
			return err
		}
		_, err := tx.CreateBucket(c.bucket)
		return err
	})
}

func (c *Connector) Create(_ context.Context) (connector.RecordRef, error) {
	id, err := c.opts.IDs.Execute()
	if err != nil {
		return connector.RecordRef{}, err
	}
	ref := connector.RecordRef{IDType: c.opts.IDType, IDString: id}
	data, err := json.Marshal(record{Pseudonym: uuid.NewString(), ValidFrom: time.Now().UTC()})
	if err != nil {
		return connector.RecordRef{}, errors.WithStack(err)
	}
	err = c.db.Update(func(tx *bbolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(c.bucket)
		if err != nil {
			return err
		}
		return b.Put(key(ref), data)
	})
	return ref, errors.Wrapf(err, "creating %s", ref)
}

func (c *Connector) Read(_ context.Context, ref connector.RecordRef) error {
	return c.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket(c.bucket)
		if b == nil {
			return connector.ErrNotFound
		}
		v := b.Get(key(ref))
		if v == nil {
			return connector.ErrNotFound
		}
		var r record
		return errors.Wrapf(json.Unmarshal(v, &r), "decoding %s", ref)
	})
}

func (c *Connector) Update(_ context.Context, ref connector.RecordRef) error {
	return c.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(c.bucket)
		if b == nil || b.Get(key(ref)) == nil {
			return connector.ErrNotFound
		}
		data, err := json.Marshal(record{Pseudonym: uuid.NewString(), ValidFrom: time.Now().UTC()})
		if err != nil {
			return err
		}
		return b.Put(key(ref), data)
	})
}

func (c *Connector) Delete(_ context.Context, ref connector.RecordRef) error {
	return c.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(c.bucket)
		if b == nil || b.Get(key(ref)) == nil {
			return connector.ErrNotFound
		}
		return b.Delete(key(ref))
	})
}

func (c *Connector) Ping(_ context.Context) (int, error) {
	if err := c.db.View(func(*bbolt.Tx) error { return nil }); err != nil {
		return http.StatusServiceUnavailable, err
	}
	return http.StatusOK, nil
}

// StorageConsumption returns the size of the database file in bytes. The table name is ignored.
func (c *Connector) StorageConsumption(_ context.Context, _ string) (string, error) {
	var size int64
	err := c.db.View(func(tx *bbolt.Tx) error {
		size = tx.Size()
		return nil
	})
	return strconv.FormatInt(size, 10), err
}

func key(ref connector.RecordRef) []byte {
	return []byte(ref.String())
}
