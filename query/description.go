// Package query implements the query-construction and execution core: a
// declarative query description, a backpressured push-stream of result rows,
// and a builder that executes descriptions against an asynchronously
// provided connection with entity capabilities applied around every run.
package query

import (
	"github.com/oriys/strata/entity"
)

// Action is the kind of database operation a description requests.
type Action int

const (
	ActionRead Action = iota
	ActionCreate
	ActionUpdate
	ActionDelete
)

// String returns the lowercase action name used in logs and metrics labels.
func (a Action) String() string {
	switch a {
	case ActionRead:
		return "read"
	case ActionCreate:
		return "create"
	case ActionUpdate:
		return "update"
	case ActionDelete:
		return "delete"
	}
	return "unknown"
}

// Op is a comparison operator applied by a predicate.
type Op string

const (
	OpEqual        Op = "="
	OpNotEqual     Op = "<>"
	OpGreater      Op = ">"
	OpGreaterEqual Op = ">="
	OpLess         Op = "<"
	OpLessEqual    Op = "<="
	OpIn           Op = "IN"
	OpIsNull       Op = "IS NULL"
	OpIsNotNull    Op = "IS NOT NULL"
)

// Join combines the members of a filter group.
type Join string

const (
	JoinAnd Join = "AND"
	JoinOr  Join = "OR"
)

// Filter is one node of the predicate tree: either a Predicate or a Group.
type Filter interface {
	cloneFilter() Filter
}

// Predicate compares a physical storage column against a value. For OpIsNull
// and OpIsNotNull the value is ignored.
type Predicate struct {
	Field string
	Op    Op
	Value any
}

func (p Predicate) cloneFilter() Filter { return p }

// Group combines child filters under one join operator. Guard marks a group
// the executor injected for soft-delete exclusion; such groups carry a run
// timestamp and do not contribute to a description's cache identity.
type Group struct {
	Join    Join
	Filters []Filter
	Guard   bool
}

func (g Group) cloneFilter() Filter {
	nodes := make([]Filter, len(g.Filters))
	for i, f := range g.Filters {
		nodes[i] = f.cloneFilter()
	}
	return Group{Join: g.Join, Filters: nodes, Guard: g.Guard}
}

// Sort orders results by a physical storage column.
type Sort struct {
	Field      string
	Descending bool
}

// Description is the declarative record of one query: what entity to touch,
// which action to perform, and under what filters. It is expressed entirely
// in storage terms; logical field ids are resolved by the builder before
// they reach a description. Once a run starts, the executor only ever works
// on a clone, so a description visible to the caller is never mutated by an
// execution.
type Description struct {
	// Entity is the storage (table/collection) name.
	Entity string
	Action Action
	// Filters are joined by AND at the top level.
	Filters []Filter
	// Values carries physical-keyed data for create and update actions.
	Values entity.Row
	Sorts  []Sort
	// Limit caps the number of returned rows; zero means no limit.
	Limit int
	// IncludeSoftDeleted disables the soft-delete exclusion filter for
	// entities that declare the capability.
	IncludeSoftDeleted bool
	// IdentifierKey names the physical identifier column the driver should
	// capture as the last autoincrement value after a create. Empty for
	// entities without autoincrement identity.
	IdentifierKey string
}

// Clone returns a deep copy; filter trees and value maps are not shared.
func (d Description) Clone() Description {
	out := d
	if d.Filters != nil {
		out.Filters = make([]Filter, len(d.Filters))
		for i, f := range d.Filters {
			out.Filters[i] = f.cloneFilter()
		}
	}
	if d.Values != nil {
		out.Values = make(entity.Row, len(d.Values))
		for k, v := range d.Values {
			out.Values[k] = v
		}
	}
	if d.Sorts != nil {
		out.Sorts = append([]Sort(nil), d.Sorts...)
	}
	return out
}
