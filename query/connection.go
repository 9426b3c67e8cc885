package query

import (
	"context"

	"github.com/oriys/strata/entity"
)

// Connection is the driver-side execution capability. The core borrows a
// connection for exactly one run: it awaits the connection future, calls
// Execute once, and drops its reference when the run's future resolves.
//
// Execute must deliver rows through sink.Send in production order and return
// once the result set is exhausted or an error occurred. It must not call
// Close or Fail on the sink; terminal signalling is owned by the core. A
// Send error means the consumer side terminated the stream and Execute
// should stop producing and return.
type Connection interface {
	Execute(ctx context.Context, desc Description, sink *Stream[entity.Row]) error

	// LastInsertID returns the most recent autoincrement identifier the
	// connection produced, and whether one exists. Read after create
	// actions by the identifier backfill hook.
	LastInsertID() (int64, bool)
}
