package entity

import (
	"testing"
	"time"
)

var userMeta = &Metadata{
	Storage: "users",
	Fields: map[FieldID]string{
		"id":        "id",
		"name":      "full_name",
		"createdAt": "created_at",
	},
}

type user struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

func TestStorageKey(t *testing.T) {
	if k, ok := userMeta.StorageKey("name"); !ok || k != "full_name" {
		t.Fatalf("StorageKey(name) = (%q, %v)", k, ok)
	}
	// Unmapped ids fall back to their literal string.
	if k, ok := userMeta.StorageKey("extra"); ok || k != "extra" {
		t.Fatalf("StorageKey(extra) = (%q, %v)", k, ok)
	}
}

func TestLogicalRowRemapsColumns(t *testing.T) {
	row := LogicalRow(userMeta, Row{"full_name": "Ada", "unmapped": 1})
	if row["name"] != "Ada" {
		t.Fatalf("name = %v", row["name"])
	}
	if row["unmapped"] != 1 {
		t.Fatalf("unmapped column lost: %v", row)
	}
}

func TestPhysicalRowRemapsFields(t *testing.T) {
	row := PhysicalRow(userMeta, Row{"name": "Ada", "unmapped": 1})
	if row["full_name"] != "Ada" {
		t.Fatalf("full_name = %v", row["full_name"])
	}
	if row["unmapped"] != 1 {
		t.Fatalf("unmapped key lost: %v", row)
	}
}

func TestDecodeRowIntoStruct(t *testing.T) {
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	var u user
	err := DecodeRow(userMeta, Row{
		"id":         int64(7),
		"full_name":  "Ada",
		"created_at": created,
	}, &u)
	if err != nil {
		t.Fatal(err)
	}
	if u.ID != 7 || u.Name != "Ada" || !u.CreatedAt.Equal(created) {
		t.Fatalf("decoded %+v", u)
	}
}

func TestDecodeRowIntoRow(t *testing.T) {
	var out Row
	if err := DecodeRow(userMeta, Row{"full_name": "Ada"}, &out); err != nil {
		t.Fatal(err)
	}
	if out["name"] != "Ada" {
		t.Fatalf("raw destination not remapped: %v", out)
	}
}

func TestDecodeRowTypeMismatch(t *testing.T) {
	var u user
	if err := DecodeRow(userMeta, Row{"full_name": 42}, &u); err == nil {
		t.Fatal("want decode error for number into string field")
	}
}

func TestModelRow(t *testing.T) {
	u := user{ID: 7, Name: "Ada", CreatedAt: time.Now().UTC()}
	row, err := ModelRow(userMeta, &u)
	if err != nil {
		t.Fatal(err)
	}
	if row["full_name"] != "Ada" {
		t.Fatalf("full_name = %v", row["full_name"])
	}
	if _, ok := row["name"]; ok {
		t.Fatalf("logical key leaked into physical row: %v", row)
	}
}
