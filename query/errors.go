package query

import "fmt"

// ConfigurationError reports an entity whose metadata is inconsistent with a
// capability it declares, e.g. a soft-deletable entity with no field mapping
// for its "deleted at" field. It is surfaced as the run's failure before any
// execution is attempted and is never retried.
type ConfigurationError struct {
	Entity string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("entity %q misconfigured: %s", e.Entity, e.Reason)
}

// ConnectionError reports that the connection future failed; no execution
// was attempted.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string { return fmt.Sprintf("acquire connection: %v", e.Err) }
func (e *ConnectionError) Unwrap() error { return e.Err }

// ExecutionError reports a driver failure while producing rows.
type ExecutionError struct {
	Err error
}

func (e *ExecutionError) Error() string { return fmt.Sprintf("execute query: %v", e.Err) }
func (e *ExecutionError) Unwrap() error { return e.Err }

// DecodeError reports a row that could not be decoded into the requested
// type. It terminates the stream: a partially undecodable result set is not
// treated as a complete one.
type DecodeError struct {
	Entity string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode row for entity %q: %v", e.Entity, e.Err)
}
func (e *DecodeError) Unwrap() error { return e.Err }

// ConsumerError reports a failure from the caller's per-row callback. It
// terminates the stream like a driver failure would.
type ConsumerError struct {
	Err error
}

func (e *ConsumerError) Error() string { return fmt.Sprintf("row consumer failed: %v", e.Err) }
func (e *ConsumerError) Unwrap() error { return e.Err }

// IdentifierResolutionError reports that a create against an autoincrement
// entity produced no identifier on the connection. Callers depend on the
// identifier being populated after a create, so this fails the run instead
// of leaving the model without one.
type IdentifierResolutionError struct {
	Entity string
}

func (e *IdentifierResolutionError) Error() string {
	return fmt.Sprintf("no autoincrement identifier returned after create for entity %q", e.Entity)
}
