package main

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/oriys/strata/entity"
	"github.com/oriys/strata/query"
)

func queryCmd() *cobra.Command {
	var (
		table          string
		wheres         []string
		limit          int
		sortBy         string
		includeDeleted bool
	)

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Run an ad-hoc read against a table",
		RunE: func(cmd *cobra.Command, args []string) error {
			b := query.NewTable(connect(cmd.Context()), &entity.Metadata{Storage: table})
			if err := applyWheres(b, wheres); err != nil {
				return err
			}
			if limit > 0 {
				b.Limit(limit)
			}
			if sortBy != "" {
				field, desc := strings.CutSuffix(sortBy, ":desc")
				b.SortBy(entity.FieldID(field), desc)
			}
			if includeDeleted {
				b.IncludeSoftDeleted()
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			var cols []string
			count := 0
			fut := b.Run(cmd.Context(), func(row *entity.Row) error {
				if cols == nil {
					for col := range *row {
						cols = append(cols, col)
					}
					sort.Strings(cols)
					fmt.Fprintln(w, strings.Join(cols, "\t"))
				}
				cells := make([]string, len(cols))
				for i, col := range cols {
					cells[i] = fmt.Sprintf("%v", (*row)[col])
				}
				fmt.Fprintln(w, strings.Join(cells, "\t"))
				count++
				return nil
			})
			if _, err := fut.Await(cmd.Context()); err != nil {
				return err
			}
			w.Flush()
			fmt.Printf("(%d rows)\n", count)
			return nil
		},
	}

	cmd.Flags().StringVar(&table, "table", "", "Table to query")
	cmd.Flags().StringArrayVar(&wheres, "where", nil, "Equality filter, column=value (repeatable)")
	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum number of rows")
	cmd.Flags().StringVar(&sortBy, "sort", "", "Sort column, append :desc for descending")
	cmd.Flags().BoolVar(&includeDeleted, "include-deleted", false, "Include soft-deleted rows")
	cmd.MarkFlagRequired("table")
	return cmd
}

func execCmd() *cobra.Command {
	var (
		table  string
		action string
		sets   []string
		wheres []string
	)

	cmd := &cobra.Command{
		Use:   "exec",
		Short: "Run a create, update or delete against a table",
		RunE: func(cmd *cobra.Command, args []string) error {
			b := query.NewTable(connect(cmd.Context()), &entity.Metadata{Storage: table})
			switch action {
			case "create":
				b.SetAction(query.ActionCreate)
			case "update":
				b.SetAction(query.ActionUpdate)
			case "delete":
				b.SetAction(query.ActionDelete)
			default:
				return fmt.Errorf("unknown action %q", action)
			}
			for _, set := range sets {
				col, val, ok := strings.Cut(set, "=")
				if !ok {
					return fmt.Errorf("invalid --set %q, want column=value", set)
				}
				b.Set(entity.FieldID(col), val)
			}
			if err := applyWheres(b, wheres); err != nil {
				return err
			}
			if _, err := b.Run(cmd.Context(), nil).Await(cmd.Context()); err != nil {
				return err
			}
			fmt.Println("ok")
			return nil
		},
	}

	cmd.Flags().StringVar(&table, "table", "", "Table to modify")
	cmd.Flags().StringVar(&action, "action", "", "create, update or delete")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "Value to write, column=value (repeatable)")
	cmd.Flags().StringArrayVar(&wheres, "where", nil, "Equality filter, column=value (repeatable)")
	cmd.MarkFlagRequired("table")
	cmd.MarkFlagRequired("action")
	return cmd
}

func applyWheres(b *query.Builder[entity.Row], wheres []string) error {
	for _, where := range wheres {
		col, val, ok := strings.Cut(where, "=")
		if !ok {
			return fmt.Errorf("invalid --where %q, want column=value", where)
		}
		b.Filter(entity.FieldID(col), query.OpEqual, val)
	}
	return nil
}
