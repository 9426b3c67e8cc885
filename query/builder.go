package query

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/oriys/strata/entity"
	"github.com/oriys/strata/future"
	"github.com/oriys/strata/logging"
	"github.com/oriys/strata/metrics"
	"github.com/oriys/strata/observability"
)

// Builder accumulates a query description for one entity type and executes
// it against an asynchronously provided connection. A builder is not safe
// for concurrent mutation; each run executes on a private clone of the
// description, so concurrent runs of an already-configured builder are fine.
type Builder[M any] struct {
	meta *entity.Metadata
	conn *future.Future[Connection]
	desc Description
}

// New returns a builder for the mapped entity type M, bound to conn.
// M's Metadata method must be declared on the value receiver.
func New[M entity.Model](conn *future.Future[Connection]) *Builder[M] {
	var zero M
	meta := zero.Metadata()
	return &Builder[M]{meta: meta, conn: conn, desc: freshDescription(meta)}
}

// NewTable returns a schemaless builder delivering raw rows for the given
// metadata. Used for ad-hoc access where no mapped type exists.
func NewTable(conn *future.Future[Connection], meta *entity.Metadata) *Builder[entity.Row] {
	return &Builder[entity.Row]{meta: meta, conn: conn, desc: freshDescription(meta)}
}

func freshDescription(meta *entity.Metadata) Description {
	d := Description{Entity: meta.Storage, Action: ActionRead}
	if id := meta.Identity; id != nil && id.Kind == entity.IdentityAutoIncrement {
		d.IdentifierKey, _ = meta.StorageKey(id.Field)
	}
	return d
}

// Copy returns an independent builder sharing the same connection future
// with a fresh description, so one connection can serve multiple queries
// without cross-mutation.
func (b *Builder[M]) Copy() *Builder[M] {
	return &Builder[M]{meta: b.meta, conn: b.conn, desc: freshDescription(b.meta)}
}

// Description returns a clone of the current description.
func (b *Builder[M]) Description() Description {
	return b.desc.Clone()
}

// SetAction selects the action the next run performs. Default is ActionRead.
func (b *Builder[M]) SetAction(a Action) *Builder[M] {
	b.desc.Action = a
	return b
}

// Filter appends an AND predicate. The logical field id resolves through the
// entity field map; unmapped ids are used as storage keys verbatim.
func (b *Builder[M]) Filter(field entity.FieldID, op Op, value any) *Builder[M] {
	b.desc.Filters = append(b.desc.Filters, b.Predicate(field, op, value))
	return b
}

// Predicate builds a storage-level predicate from a logical field id.
func (b *Builder[M]) Predicate(field entity.FieldID, op Op, value any) Predicate {
	key, _ := b.meta.StorageKey(field)
	return Predicate{Field: key, Op: op, Value: value}
}

// OrGroup appends a group of predicates joined by OR.
func (b *Builder[M]) OrGroup(preds ...Predicate) *Builder[M] {
	nodes := make([]Filter, len(preds))
	for i, p := range preds {
		nodes[i] = p
	}
	b.desc.Filters = append(b.desc.Filters, Group{Join: JoinOr, Filters: nodes})
	return b
}

// IncludeSoftDeleted disables the soft-delete exclusion for the next runs.
func (b *Builder[M]) IncludeSoftDeleted() *Builder[M] {
	b.desc.IncludeSoftDeleted = true
	return b
}

// Limit caps the number of rows the next run returns.
func (b *Builder[M]) Limit(n int) *Builder[M] {
	b.desc.Limit = n
	return b
}

// SortBy orders results by a logical field.
func (b *Builder[M]) SortBy(field entity.FieldID, descending bool) *Builder[M] {
	key, _ := b.meta.StorageKey(field)
	b.desc.Sorts = append(b.desc.Sorts, Sort{Field: key, Descending: descending})
	return b
}

// Set stages one value for a create or update action.
func (b *Builder[M]) Set(field entity.FieldID, value any) *Builder[M] {
	key, _ := b.meta.StorageKey(field)
	if b.desc.Values == nil {
		b.desc.Values = entity.Row{}
	}
	b.desc.Values[key] = value
	return b
}

// Fill stages all of the model's fields as values for a create or update.
// An unset autoincrement identifier is dropped so the database assigns it.
func (b *Builder[M]) Fill(model *M) error {
	values, err := entity.ModelRow(b.meta, model)
	if err != nil {
		return err
	}
	if id := b.meta.Identity; id != nil {
		if ident, ok := any(model).(entity.Identifiable); ok {
			if _, set := ident.Identifier(); !set {
				key, _ := b.meta.StorageKey(id.Field)
				delete(values, key)
			}
		}
	}
	b.desc.Values = values
	return nil
}

// Run executes the current query, decoding each row as M, applying the
// identifier backfill hook on create actions, and forwarding each model to
// into. A nil consumer discards rows. The returned future resolves when all
// rows are delivered, or fails on the first error; exactly one of the two
// happens per call.
func (b *Builder[M]) Run(ctx context.Context, into func(*M) error) *future.Future[struct{}] {
	return execute[M](ctx, b, b.backfill, into)
}

// RunAs executes b's query decoding each row as T instead of the builder's
// model type. No lifecycle hooks apply: this is the raw-decode entry point.
func RunAs[T any, M any](ctx context.Context, b *Builder[M], into func(*T) error) *future.Future[struct{}] {
	return execute[T](ctx, b, nil, into)
}

// Create stages the model as a create action, runs it, and copies the stored
// row (including a backfilled identifier) back into the model.
func (b *Builder[M]) Create(ctx context.Context, model *M) *future.Future[struct{}] {
	if err := b.SetAction(ActionCreate).Fill(model); err != nil {
		return future.Failed[struct{}](err)
	}
	return b.Run(ctx, func(out *M) error {
		*model = *out
		return nil
	})
}

// prepared clones the stored description and applies the soft-delete guard.
// The clone keeps repeated runs from accumulating injected filters.
func (b *Builder[M]) prepared() (Description, error) {
	d := b.desc.Clone()
	sd := b.meta.SoftDelete
	if sd == nil || d.IncludeSoftDeleted {
		return d, nil
	}
	key, ok := b.meta.StorageKey(sd.Field)
	if !ok {
		return d, &ConfigurationError{
			Entity: b.meta.Storage,
			Reason: fmt.Sprintf("declares soft-delete field %q with no storage mapping", sd.Field),
		}
	}
	d.Filters = append(d.Filters, Group{Join: JoinOr, Guard: true, Filters: []Filter{
		Predicate{Field: key, Op: OpGreater, Value: time.Now().UTC()},
		Predicate{Field: key, Op: OpIsNull},
	}})
	return d, nil
}

// backfill populates the model's identifier from the connection's last
// autoincrement value after a create. Only fires for autoincrement entities
// whose identifier is still unset; runs before the row reaches the consumer.
func (b *Builder[M]) backfill(conn Connection, m *M) error {
	id := b.meta.Identity
	if b.desc.Action != ActionCreate || id == nil || id.Kind != entity.IdentityAutoIncrement {
		return nil
	}
	ident, ok := any(m).(entity.Identifiable)
	if !ok {
		return &ConfigurationError{
			Entity: b.meta.Storage,
			Reason: "declares autoincrement identity but does not implement entity.Identifiable",
		}
	}
	if _, set := ident.Identifier(); set {
		return nil
	}
	raw, ok := conn.LastInsertID()
	if !ok {
		return &IdentifierResolutionError{Entity: b.meta.Storage}
	}
	v := any(raw)
	if id.Convert != nil {
		v = id.Convert(raw)
	}
	ident.SetIdentifier(v)
	return nil
}

// execute runs the full pipeline: soft-delete guard, connection await,
// dispatch, drain with decode/hook/consumer, and single-shot completion.
func execute[T any, M any](ctx context.Context, b *Builder[M], hook func(Connection, *T) error, into func(*T) error) *future.Future[struct{}] {
	fut := future.New[struct{}]()

	desc, err := b.prepared()
	if err != nil {
		fut.Fail(err)
		return fut
	}
	execID := uuid.NewString()

	go func() {
		ctx, span := observability.StartSpan(ctx, "strata.query",
			observability.AttrEntity.String(desc.Entity),
			observability.AttrAction.String(desc.Action.String()),
			observability.AttrExecutionID.String(execID),
		)
		defer span.End()

		var traceID, spanID string
		if sc := span.SpanContext(); sc.IsValid() {
			traceID = sc.TraceID().String()
			spanID = sc.SpanID().String()
		}
		log := logging.OpWithTrace(traceID, spanID)

		start := time.Now()
		rows := 0
		runErr := b.drive(ctx, desc, func(conn Connection, row entity.Row) error {
			out := new(T)
			if derr := entity.DecodeRow(b.meta, row, out); derr != nil {
				return &DecodeError{Entity: desc.Entity, Err: derr}
			}
			if hook != nil {
				if herr := hook(conn, out); herr != nil {
					return herr
				}
			}
			if into != nil {
				if cerr := into(out); cerr != nil {
					return &ConsumerError{Err: cerr}
				}
			}
			rows++
			return nil
		})

		elapsed := time.Since(start)
		if runErr != nil {
			observability.SetSpanError(span, runErr)
			metrics.ObserveQuery(desc.Entity, desc.Action.String(), "error", elapsed, rows)
			log.Error("query failed",
				"entity", desc.Entity,
				"action", desc.Action.String(),
				"execution_id", execID,
				"rows", rows,
				"error", runErr,
			)
			fut.Fail(runErr)
			return
		}
		span.SetAttributes(observability.AttrRows.Int(rows))
		observability.SetSpanOK(span)
		metrics.ObserveQuery(desc.Entity, desc.Action.String(), "ok", elapsed, rows)
		log.Debug("query completed",
			"entity", desc.Entity,
			"action", desc.Action.String(),
			"execution_id", execID,
			"rows", rows,
			"duration_ms", elapsed.Milliseconds(),
		)
		fut.Resolve(struct{}{})
	}()
	return fut
}

// drive awaits the connection, dispatches the query into a fresh stream and
// drains it sequentially. A connection-future failure short-circuits before
// any execution is attempted.
func (b *Builder[M]) drive(ctx context.Context, desc Description, each func(Connection, entity.Row) error) error {
	conn, err := b.conn.Await(ctx)
	if err != nil {
		return &ConnectionError{Err: err}
	}
	metrics.ConnectionBorrowed()
	defer metrics.ConnectionReleased()

	sink := NewStream[entity.Row]()
	go func() {
		if xerr := conn.Execute(ctx, desc, sink); xerr != nil {
			sink.Fail(&ExecutionError{Err: xerr})
			return
		}
		sink.Close()
	}()
	return sink.Drain(ctx, func(row entity.Row) error { return each(conn, row) })
}
