// Package schema holds the declarative table metadata for every entity type:
// which tables a dump loads into, their columns, natural keys and references.
// The metadata is static and consumed by the query builder and the staged writer.
package schema

import "github.com/heartmarshall/discogs-dumpload/internal/domain"

// Audit column names present on every table.
const (
	ColumnCreatedAt      = "created_at"
	ColumnLastModifiedAt = "last_modified_at"
)

// StagingSuffix is appended to a table name to form its staging table.
const StagingSuffix = "_tmp"

// Ref declares that a column points at the primary key of another entity's
// core table.
type Ref struct {
	Type     domain.EntityType
	Table    string
	Column   string
	Nullable bool // unresolved nullable refs are cleared instead of dropping the row
}

// Column describes one loaded column.
type Column struct {
	Name    string
	Key     bool // part of the natural key
	Mutable bool // updated on conflict by the upsert stage
	Audit   bool // excluded from exact-duplicate comparison
	Ref     *Ref
}

// Table describes one permanent table fed by a dump.
type Table struct {
	Name    string
	Columns []Column
}

// Staging returns the name of the table's staging table.
func (t Table) Staging() string { return t.Name + StagingSuffix }

// ColumnNames returns the loaded column names in declaration order.
func (t Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// KeyColumns returns the natural key columns in declaration order.
func (t Table) KeyColumns() []string {
	var keys []string
	for _, c := range t.Columns {
		if c.Key {
			keys = append(keys, c.Name)
		}
	}
	return keys
}

// MutableColumns returns the columns the upsert stage may overwrite.
func (t Table) MutableColumns() []string {
	var cols []string
	for _, c := range t.Columns {
		if c.Mutable {
			cols = append(cols, c.Name)
		}
	}
	return cols
}

// Refs returns the referencing columns in declaration order.
func (t Table) Refs() []Column {
	var refs []Column
	for _, c := range t.Columns {
		if c.Ref != nil {
			refs = append(refs, c)
		}
	}
	return refs
}

func ref(t domain.EntityType, nullable bool) *Ref {
	return &Ref{Type: t, Table: string(t), Column: "id", Nullable: nullable}
}

func audit() []Column {
	return []Column{
		{Name: ColumnCreatedAt, Audit: true},
		{Name: ColumnLastModifiedAt, Audit: true, Mutable: true},
	}
}

func table(name string, cols ...Column) Table {
	return Table{Name: name, Columns: append(cols, audit()...)}
}

// tables lists, per entity type, the tables in load order. The first table is
// the entity's core table keyed by the dump id.
var tables = map[domain.EntityType][]Table{
	domain.EntityTypeArtist: {
		table("artist",
			Column{Name: "id", Key: true},
			Column{Name: "name", Mutable: true},
			Column{Name: "real_name", Mutable: true},
			Column{Name: "profile", Mutable: true},
			Column{Name: "data_quality", Mutable: true},
		),
		table("artist_alias",
			Column{Name: "artist_id", Key: true, Ref: ref(domain.EntityTypeArtist, false)},
			Column{Name: "alias_id", Key: true, Ref: ref(domain.EntityTypeArtist, false)},
		),
	},
	domain.EntityTypeLabel: {
		table("label",
			Column{Name: "id", Key: true},
			Column{Name: "name", Mutable: true},
			Column{Name: "contact_info", Mutable: true},
			Column{Name: "profile", Mutable: true},
			Column{Name: "data_quality", Mutable: true},
		),
		table("label_sub_label",
			Column{Name: "parent_label_id", Key: true, Ref: ref(domain.EntityTypeLabel, false)},
			Column{Name: "sub_label_id", Key: true, Ref: ref(domain.EntityTypeLabel, false)},
		),
	},
	domain.EntityTypeMaster: {
		table("master",
			Column{Name: "id", Key: true},
			Column{Name: "title"},
			Column{Name: "year"},
			Column{Name: "data_quality", Mutable: true},
			Column{Name: "main_release_id", Mutable: true},
		),
		table("master_artist",
			Column{Name: "master_id", Key: true, Ref: ref(domain.EntityTypeMaster, false)},
			Column{Name: "artist_id", Key: true, Ref: ref(domain.EntityTypeArtist, false)},
		),
	},
	domain.EntityTypeRelease: {
		table("release",
			Column{Name: "id", Key: true},
			Column{Name: "title"},
			Column{Name: "country"},
			Column{Name: "released"},
			Column{Name: "status", Mutable: true},
			Column{Name: "notes", Mutable: true},
			Column{Name: "data_quality", Mutable: true},
			Column{Name: "master_id", Mutable: true, Ref: ref(domain.EntityTypeMaster, true)},
			Column{Name: "is_main_release", Mutable: true},
		),
		table("release_artist",
			Column{Name: "release_id", Key: true, Ref: ref(domain.EntityTypeRelease, false)},
			Column{Name: "artist_id", Key: true, Ref: ref(domain.EntityTypeArtist, false)},
		),
		table("release_label",
			Column{Name: "release_id", Key: true, Ref: ref(domain.EntityTypeRelease, false)},
			Column{Name: "label_id", Key: true, Ref: ref(domain.EntityTypeLabel, false)},
			Column{Name: "category_notation", Mutable: true},
		),
	},
}

// Tables returns the tables loaded by a dump of type t, core table first.
// Returns nil for an unknown type.
func Tables(t domain.EntityType) []Table {
	return tables[t]
}

// Core returns the core table of t.
func Core(t domain.EntityType) Table {
	return tables[t][0]
}
