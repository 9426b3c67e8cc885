package postgres

import (
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/oriys/strata/query"
)

// compile renders a description into one SQL statement with $n placeholders.
// Create statements end in RETURNING * so the stored row (including any
// database-assigned identifier) flows back through the result stream.
func compile(d query.Description) (string, []any, error) {
	switch d.Action {
	case query.ActionRead:
		return compileSelect(d)
	case query.ActionCreate:
		return compileInsert(d)
	case query.ActionUpdate:
		return compileUpdate(d)
	case query.ActionDelete:
		return compileDelete(d)
	}
	return "", nil, fmt.Errorf("unsupported action %q", d.Action)
}

func compileSelect(d query.Description) (string, []any, error) {
	var sb strings.Builder
	var args []any
	sb.WriteString("SELECT * FROM ")
	sb.WriteString(ident(d.Entity))
	if err := writeWhere(&sb, d.Filters, &args); err != nil {
		return "", nil, err
	}
	if len(d.Sorts) > 0 {
		sb.WriteString(" ORDER BY ")
		for i, s := range d.Sorts {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(ident(s.Field))
			if s.Descending {
				sb.WriteString(" DESC")
			}
		}
	}
	if d.Limit > 0 {
		args = append(args, d.Limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	}
	return sb.String(), args, nil
}

func compileInsert(d query.Description) (string, []any, error) {
	if len(d.Values) == 0 {
		return "", nil, fmt.Errorf("create requires values for entity %q", d.Entity)
	}
	cols := make([]string, 0, len(d.Values))
	for col := range d.Values {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	var sb strings.Builder
	args := make([]any, 0, len(cols))
	sb.WriteString("INSERT INTO ")
	sb.WriteString(ident(d.Entity))
	sb.WriteString(" (")
	for i, col := range cols {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(ident(col))
	}
	sb.WriteString(") VALUES (")
	for i, col := range cols {
		if i > 0 {
			sb.WriteString(", ")
		}
		args = append(args, d.Values[col])
		fmt.Fprintf(&sb, "$%d", len(args))
	}
	sb.WriteString(") RETURNING *")
	return sb.String(), args, nil
}

func compileUpdate(d query.Description) (string, []any, error) {
	if len(d.Values) == 0 {
		return "", nil, fmt.Errorf("update requires values for entity %q", d.Entity)
	}
	cols := make([]string, 0, len(d.Values))
	for col := range d.Values {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	var sb strings.Builder
	var args []any
	sb.WriteString("UPDATE ")
	sb.WriteString(ident(d.Entity))
	sb.WriteString(" SET ")
	for i, col := range cols {
		if i > 0 {
			sb.WriteString(", ")
		}
		args = append(args, d.Values[col])
		fmt.Fprintf(&sb, "%s = $%d", ident(col), len(args))
	}
	if err := writeWhere(&sb, d.Filters, &args); err != nil {
		return "", nil, err
	}
	return sb.String(), args, nil
}

func compileDelete(d query.Description) (string, []any, error) {
	var sb strings.Builder
	var args []any
	sb.WriteString("DELETE FROM ")
	sb.WriteString(ident(d.Entity))
	if err := writeWhere(&sb, d.Filters, &args); err != nil {
		return "", nil, err
	}
	return sb.String(), args, nil
}

func writeWhere(sb *strings.Builder, filters []query.Filter, args *[]any) error {
	if len(filters) == 0 {
		return nil
	}
	clause, err := renderFilters(filters, query.JoinAnd, args)
	if err != nil {
		return err
	}
	sb.WriteString(" WHERE ")
	sb.WriteString(clause)
	return nil
}

func renderFilters(filters []query.Filter, join query.Join, args *[]any) (string, error) {
	parts := make([]string, 0, len(filters))
	for _, f := range filters {
		switch node := f.(type) {
		case query.Predicate:
			part, err := renderPredicate(node, args)
			if err != nil {
				return "", err
			}
			parts = append(parts, part)
		case query.Group:
			inner, err := renderFilters(node.Filters, node.Join, args)
			if err != nil {
				return "", err
			}
			parts = append(parts, "("+inner+")")
		default:
			return "", fmt.Errorf("unsupported filter node %T", f)
		}
	}
	return strings.Join(parts, " "+string(join)+" "), nil
}

func renderPredicate(p query.Predicate, args *[]any) (string, error) {
	col := ident(p.Field)
	switch p.Op {
	case query.OpIsNull, query.OpIsNotNull:
		return col + " " + string(p.Op), nil
	case query.OpIn:
		// pgx handles slice parameters through = ANY.
		*args = append(*args, p.Value)
		return fmt.Sprintf("%s = ANY($%d)", col, len(*args)), nil
	case query.OpEqual, query.OpNotEqual, query.OpGreater, query.OpGreaterEqual, query.OpLess, query.OpLessEqual:
		*args = append(*args, p.Value)
		return fmt.Sprintf("%s %s $%d", col, p.Op, len(*args)), nil
	}
	return "", fmt.Errorf("unsupported operator %q", p.Op)
}

func ident(name string) string {
	return pgx.Identifier{name}.Sanitize()
}
