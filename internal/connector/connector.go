package connector

import (
	"context"
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

// ErrNotFound reports that the addressed record does not exist (any more). Work items treat it
// as a completed operation because other workers may delete records concurrently.
var ErrNotFound = errors.New("record not found")

// RecordRef identifies a record created against a backend. It is usable unmodified in later
// Read, Update and Delete calls against the same backend.
type RecordRef struct {
	IDType   string
	IDString string
}

func (r RecordRef) String() string {
	return r.IDType + ":" + r.IDString
}

// Connector is the uniform CRUD+ping contract every backend implements. One instance is owned
// by one worker at a time and need not be safe for concurrent use.
type Connector interface {
	// Prepare resets the backend environment before a scenario is seeded.
	Prepare(ctx context.Context) error
	Create(ctx context.Context) (RecordRef, error)
	Read(ctx context.Context, ref RecordRef) error
	Update(ctx context.Context, ref RecordRef) error
	Delete(ctx context.Context, ref RecordRef) error
	// Ping returns the status code of the backend's liveness endpoint.
	Ping(ctx context.Context) (int, error)
}

// StorageReporter is implemented by connectors that can report the storage a table consumes.
type StorageReporter interface {
	StorageConsumption(ctx context.Context, table string) (string, error)
}

// Factory creates one Connector per worker.
type Factory interface {
	New() (Connector, error)
}

type FactoryFunc func() (Connector, error)

func (f FactoryFunc) New() (Connector, error) {
	return f()
}

// StatusError is returned for unexpected HTTP status codes.
type StatusError struct {
	Method string
	URL    string
	Code   int
	Body   string
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("%s %s: %d %s", e.Method, e.URL, e.Code, http.StatusText(e.Code))
	if e.Body != "" {
		msg += ": " + e.Body
	}
	return msg
}

// Is makes a 404 StatusError match ErrNotFound.
func (e *StatusError) Is(target error) bool {
	return target == ErrNotFound && e.Code == http.StatusNotFound
}
