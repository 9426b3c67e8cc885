package postgres

import (
	"reflect"
	"testing"

	"github.com/oriys/strata/entity"
	"github.com/oriys/strata/query"
)

func TestCompileSelect(t *testing.T) {
	d := query.Description{
		Entity: "articles",
		Action: query.ActionRead,
		Filters: []query.Filter{
			query.Predicate{Field: "title", Op: query.OpEqual, Value: "go"},
			query.Group{Join: query.JoinOr, Filters: []query.Filter{
				query.Predicate{Field: "deleted_at", Op: query.OpGreater, Value: "t0"},
				query.Predicate{Field: "deleted_at", Op: query.OpIsNull},
			}},
		},
		Sorts: []query.Sort{{Field: "id", Descending: true}},
		Limit: 10,
	}
	sql, args, err := compile(d)
	if err != nil {
		t.Fatal(err)
	}
	want := `SELECT * FROM "articles" WHERE "title" = $1 AND ("deleted_at" > $2 OR "deleted_at" IS NULL) ORDER BY "id" DESC LIMIT $3`
	if sql != want {
		t.Fatalf("sql = %s\nwant  %s", sql, want)
	}
	if !reflect.DeepEqual(args, []any{"go", "t0", 10}) {
		t.Fatalf("args = %#v", args)
	}
}

func TestCompileInsert(t *testing.T) {
	d := query.Description{
		Entity: "articles",
		Action: query.ActionCreate,
		Values: entity.Row{"title": "go", "author": "ada"},
	}
	sql, args, err := compile(d)
	if err != nil {
		t.Fatal(err)
	}
	// Columns render in sorted order so statements are deterministic.
	want := `INSERT INTO "articles" ("author", "title") VALUES ($1, $2) RETURNING *`
	if sql != want {
		t.Fatalf("sql = %s", sql)
	}
	if !reflect.DeepEqual(args, []any{"ada", "go"}) {
		t.Fatalf("args = %#v", args)
	}
}

func TestCompileInsertRequiresValues(t *testing.T) {
	_, _, err := compile(query.Description{Entity: "articles", Action: query.ActionCreate})
	if err == nil {
		t.Fatal("want error for create without values")
	}
}

func TestCompileUpdate(t *testing.T) {
	d := query.Description{
		Entity: "articles",
		Action: query.ActionUpdate,
		Values: entity.Row{"title": "new"},
		Filters: []query.Filter{
			query.Predicate{Field: "id", Op: query.OpEqual, Value: 7},
		},
	}
	sql, args, err := compile(d)
	if err != nil {
		t.Fatal(err)
	}
	want := `UPDATE "articles" SET "title" = $1 WHERE "id" = $2`
	if sql != want {
		t.Fatalf("sql = %s", sql)
	}
	if !reflect.DeepEqual(args, []any{"new", 7}) {
		t.Fatalf("args = %#v", args)
	}
}

func TestCompileDelete(t *testing.T) {
	d := query.Description{
		Entity: "articles",
		Action: query.ActionDelete,
		Filters: []query.Filter{
			query.Predicate{Field: "id", Op: query.OpIn, Value: []int64{1, 2}},
		},
	}
	sql, args, err := compile(d)
	if err != nil {
		t.Fatal(err)
	}
	want := `DELETE FROM "articles" WHERE "id" = ANY($1)`
	if sql != want {
		t.Fatalf("sql = %s", sql)
	}
	if len(args) != 1 {
		t.Fatalf("args = %#v", args)
	}
}

func TestCompileQuotesIdentifiers(t *testing.T) {
	d := query.Description{Entity: `weird"name`, Action: query.ActionRead}
	sql, _, err := compile(d)
	if err != nil {
		t.Fatal(err)
	}
	want := `SELECT * FROM "weird""name"`
	if sql != want {
		t.Fatalf("sql = %s", sql)
	}
}

func TestCompileRejectsUnknownOperator(t *testing.T) {
	d := query.Description{
		Entity:  "articles",
		Action:  query.ActionRead,
		Filters: []query.Filter{query.Predicate{Field: "id", Op: "LIKEISH", Value: 1}},
	}
	if _, _, err := compile(d); err == nil {
		t.Fatal("want error for unknown operator")
	}
}
