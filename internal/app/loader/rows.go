package loader

import (
	"time"

	"github.com/heartmarshall/discogs-dumpload/internal/domain"
)

// row is one staging row; values follow schema.Table.ColumnNames order.
type row []any

// ref names a column value that must exist in another type's core table.
type ref struct {
	typ domain.EntityType
	id  int64
}

// tableRow is a row bound for the table at index table of schema.Tables, plus
// the references the existence cache may veto.
type tableRow struct {
	table int
	row   row
	refs  []ref
}

// audit carries the audit column values for every row of one step.
type audit struct {
	createdAt      time.Time
	lastModifiedAt time.Time
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullID(id int64) any {
	if id <= 0 {
		return nil
	}
	return id
}

// flatten turns a parsed record into staging rows. The core row comes first;
// relation rows follow in table order.
func flatten(rec domain.Record, a audit) []tableRow {
	switch r := rec.(type) {
	case domain.Artist:
		out := []tableRow{{table: 0, row: row{
			r.ID, r.Name, nullString(r.RealName), nullString(r.Profile), nullString(r.DataQuality),
			a.createdAt, a.lastModifiedAt,
		}}}
		for _, alias := range r.AliasIDs {
			out = append(out, tableRow{
				table: 1,
				row:   row{r.ID, alias, a.createdAt, a.lastModifiedAt},
				refs:  []ref{{domain.EntityTypeArtist, alias}},
			})
		}
		return out

	case domain.Label:
		out := []tableRow{{table: 0, row: row{
			r.ID, r.Name, nullString(r.ContactInfo), nullString(r.Profile), nullString(r.DataQuality),
			a.createdAt, a.lastModifiedAt,
		}}}
		for _, sub := range r.SubLabelIDs {
			out = append(out, tableRow{
				table: 1,
				row:   row{r.ID, sub, a.createdAt, a.lastModifiedAt},
				refs:  []ref{{domain.EntityTypeLabel, sub}},
			})
		}
		return out

	case domain.Master:
		var year any
		if r.Year > 0 {
			year = r.Year
		}
		out := []tableRow{{table: 0, row: row{
			r.ID, r.Title, year, nullString(r.DataQuality), nullID(r.MainReleaseID),
			a.createdAt, a.lastModifiedAt,
		}}}
		for _, artist := range r.ArtistIDs {
			out = append(out, tableRow{
				table: 1,
				row:   row{r.ID, artist, a.createdAt, a.lastModifiedAt},
				refs:  []ref{{domain.EntityTypeArtist, artist}},
			})
		}
		return out

	case domain.Release:
		core := tableRow{table: 0, row: row{
			r.ID, r.Title, nullString(r.Country), nullString(r.Released),
			nullString(r.Status), nullString(r.Notes), nullString(r.DataQuality),
			nullID(r.MasterID), r.IsMainRelease,
			a.createdAt, a.lastModifiedAt,
		}}
		out := []tableRow{core}
		for _, artist := range r.ArtistIDs {
			out = append(out, tableRow{
				table: 1,
				row:   row{r.ID, artist, a.createdAt, a.lastModifiedAt},
				refs:  []ref{{domain.EntityTypeArtist, artist}},
			})
		}
		for _, l := range r.Labels {
			out = append(out, tableRow{
				table: 2,
				row:   row{r.ID, l.LabelID, nullString(l.CategoryNotation), a.createdAt, a.lastModifiedAt},
				refs:  []ref{{domain.EntityTypeLabel, l.LabelID}},
			})
		}
		return out
	}
	return nil
}
