// Package entity defines the metadata contract between mapped domain types
// and the query execution core. Metadata is constructed once per entity type
// at program start and treated as immutable; the core only ever reads it.
package entity

// FieldID is the logical identifier of an entity field. The physical storage
// key it maps to is looked up through Metadata.Fields.
type FieldID string

// Row is one undecoded result row, keyed by physical storage column.
type Row map[string]any

// IdentityKind distinguishes client-supplied identifiers from identifiers
// assigned by the storage engine after insertion.
type IdentityKind int

const (
	// IdentityPlain marks an identifier the caller supplies itself.
	IdentityPlain IdentityKind = iota
	// IdentityAutoIncrement marks an identifier assigned by the database;
	// after a create the core reads it back from the connection.
	IdentityAutoIncrement
)

// SoftDelete declares that deleting the entity sets a timestamp field
// instead of removing the row. Default reads exclude rows whose field is
// set to a past timestamp.
type SoftDelete struct {
	// Field is the logical id of the "deleted at" timestamp field. It must
	// have an entry in Metadata.Fields.
	Field FieldID
}

// Identity declares how the entity's identifier is produced.
type Identity struct {
	// Field is the logical id of the identifier field.
	Field FieldID
	Kind  IdentityKind
	// Convert turns the raw autoincrement value into the model's identifier
	// type. Nil means the raw int64 is used as-is.
	Convert func(raw int64) any
}

// Metadata describes how an entity type maps onto storage. Capabilities are
// plain optional values checked once per execution; a nil capability means
// the entity opted out of that behavior.
type Metadata struct {
	// Storage is the collection or table name.
	Storage string
	// Fields maps logical field ids to physical storage keys.
	Fields map[FieldID]string

	SoftDelete *SoftDelete
	Identity   *Identity
}

// StorageKey resolves a logical field id to its physical key. Unmapped ids
// resolve to their literal string so ad-hoc columns keep working.
func (m *Metadata) StorageKey(f FieldID) (string, bool) {
	if k, ok := m.Fields[f]; ok {
		return k, true
	}
	return string(f), false
}

// Model is implemented by every mapped entity type.
type Model interface {
	Metadata() *Metadata
}

// Identifiable gives the execution core instance-level access to a model's
// identifier. Models whose metadata declares IdentityAutoIncrement must
// implement it; the identifier backfill hook reads and writes through it.
type Identifiable interface {
	// Identifier returns the current identifier and whether it is set.
	Identifier() (any, bool)
	// SetIdentifier assigns the identifier after a create.
	SetIdentifier(id any)
}
