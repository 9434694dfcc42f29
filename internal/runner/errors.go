package runner

import (
	"fmt"

	"pseudobench/internal/connector"
	"pseudobench/internal/workload"
)

// PreparationError aborts a scenario before any worker starts.
type PreparationError struct {
	Scenario string
	Err      error
}

func (e *PreparationError) Error() string {
	return fmt.Sprintf("preparing scenario %s: %v", e.Scenario, e.Err)
}

func (e *PreparationError) Unwrap() error { return e.Err }

// OperationError is a backend failure raised before the scenario deadline. It ends the worker
// that ran the operation.
type OperationError struct {
	Kind workload.Kind
	// Ref is nil for create and ping.
	Ref *connector.RecordRef
	Err error
}

func (e *OperationError) Error() string {
	if e.Ref != nil {
		return fmt.Sprintf("%s %s: %v", e.Kind, e.Ref, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }
