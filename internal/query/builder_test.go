package query

import (
	"reflect"
	"strconv"
	"strings"
	"testing"

	"github.com/heartmarshall/discogs-dumpload/internal/domain"
	"github.com/heartmarshall/discogs-dumpload/internal/schema"
)

func TestForType_Deterministic(t *testing.T) {
	t.Parallel()

	for _, typ := range domain.EntityTypes {
		a, err := ForType(typ)
		if err != nil {
			t.Fatalf("ForType(%s): %v", typ, err)
		}
		b, err := ForType(typ)
		if err != nil {
			t.Fatalf("ForType(%s): %v", typ, err)
		}
		if !reflect.DeepEqual(a, b) {
			t.Errorf("ForType(%s) is not deterministic", typ)
		}
		if len(a) != len(schema.Tables(typ)) {
			t.Errorf("ForType(%s) returned %d stages, want %d", typ, len(a), len(schema.Tables(typ)))
		}
	}
}

func TestForType_UnknownType(t *testing.T) {
	t.Parallel()

	if _, err := ForType(domain.EntityType("track")); err == nil {
		t.Fatal("expected error for unknown type")
	}
}

func TestBuild_RejectsTableWithoutKey(t *testing.T) {
	t.Parallel()

	_, err := Build(schema.Table{Name: "x", Columns: []schema.Column{{Name: "a"}}})
	if err == nil {
		t.Fatal("expected error for table without natural key")
	}
}

func TestBuild_StagingLifecycle(t *testing.T) {
	t.Parallel()

	st, err := Build(schema.Core(domain.EntityTypeArtist))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	wantCreate := `CREATE UNLOGGED TABLE IF NOT EXISTS "artist_tmp" AS SELECT "id", "name", "real_name", "profile", "data_quality", "created_at", "last_modified_at" FROM "artist" WITH NO DATA`
	if st.CreateStaging != wantCreate {
		t.Errorf("CreateStaging =\n%s\nwant\n%s", st.CreateStaging, wantCreate)
	}
	if st.TruncateStaging != `TRUNCATE "artist_tmp"` {
		t.Errorf("TruncateStaging = %q", st.TruncateStaging)
	}
	if st.DropStaging != `DROP TABLE IF EXISTS "artist_tmp"` {
		t.Errorf("DropStaging = %q", st.DropStaging)
	}
}

func TestBuild_TemporaryInsertPlaceholders(t *testing.T) {
	t.Parallel()

	tbl := schema.Core(domain.EntityTypeRelease)
	st, err := Build(tbl)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if !strings.HasPrefix(st.TemporaryInsert, `INSERT INTO "release_tmp" ("id","title"`) {
		t.Errorf("TemporaryInsert = %q", st.TemporaryInsert)
	}
	n := len(tbl.Columns)
	for i := 1; i <= n; i++ {
		if !strings.Contains(st.TemporaryInsert, "$"+strconv.Itoa(i)) {
			t.Errorf("TemporaryInsert lacks placeholder $%d: %q", i, st.TemporaryInsert)
		}
	}
	if strings.Contains(st.TemporaryInsert, "$"+strconv.Itoa(n+1)) {
		t.Errorf("TemporaryInsert has too many placeholders: %q", st.TemporaryInsert)
	}
}

func TestBuild_SelectInsertSkipsConflicts(t *testing.T) {
	t.Parallel()

	st, err := Build(schema.Tables(domain.EntityTypeRelease)[2])
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if !strings.HasPrefix(st.SelectInsert, `INSERT INTO "release_label"`) {
		t.Errorf("SelectInsert = %q", st.SelectInsert)
	}
	if !strings.Contains(st.SelectInsert, `FROM "release_label_tmp" WHERE true`) {
		t.Errorf("SelectInsert does not read staging: %q", st.SelectInsert)
	}
	if !strings.HasSuffix(st.SelectInsert, `ON CONFLICT ("release_id", "label_id") DO NOTHING`) {
		t.Errorf("SelectInsert = %q", st.SelectInsert)
	}
}

func TestBuild_UpsertUpdatesOnlyMutableColumns(t *testing.T) {
	t.Parallel()

	for _, typ := range domain.EntityTypes {
		for _, tbl := range schema.Tables(typ) {
			st, err := Build(tbl)
			if err != nil {
				t.Fatalf("Build(%s): %v", tbl.Name, err)
			}

			_, action, ok := strings.Cut(st.Upsert, " ON CONFLICT ")
			if !ok {
				t.Fatalf("%s: Upsert lacks ON CONFLICT: %q", tbl.Name, st.Upsert)
			}
			mutable := tbl.MutableColumns()
			if len(mutable) == 0 {
				if !strings.HasSuffix(action, "DO NOTHING") {
					t.Errorf("%s: Upsert action = %q, want DO NOTHING", tbl.Name, action)
				}
				continue
			}
			_, set, ok := strings.Cut(action, "DO UPDATE SET ")
			if !ok {
				t.Fatalf("%s: Upsert action = %q", tbl.Name, action)
			}
			for _, c := range tbl.Columns {
				assigned := strings.Contains(set, Quote(c.Name)+" = EXCLUDED.")
				if assigned != c.Mutable {
					t.Errorf("%s: column %s assigned=%v, mutable=%v", tbl.Name, c.Name, assigned, c.Mutable)
				}
			}
			if strings.Contains(set, Quote(schema.ColumnCreatedAt)) {
				t.Errorf("%s: upsert overwrites %s", tbl.Name, schema.ColumnCreatedAt)
			}
			if !strings.Contains(set, Quote(schema.ColumnLastModifiedAt)+" = EXCLUDED."+Quote(schema.ColumnLastModifiedAt)) {
				t.Errorf("%s: upsert does not refresh %s", tbl.Name, schema.ColumnLastModifiedAt)
			}
		}
	}
}

func TestBuild_Prune(t *testing.T) {
	t.Parallel()

	t.Run("core table without refs", func(t *testing.T) {
		st, err := Build(schema.Core(domain.EntityTypeArtist))
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		if len(st.Prune) != 2 {
			t.Fatalf("len(Prune) = %d, want 2: %v", len(st.Prune), st.Prune)
		}
		if !strings.Contains(st.Prune[0], `d.ctid > s.ctid`) || !strings.Contains(st.Prune[0], `d."id" = s."id"`) {
			t.Errorf("dedupe = %q", st.Prune[0])
		}
		committed := st.Prune[1]
		if !strings.Contains(committed, `FROM "artist" AS p`) {
			t.Errorf("committed duplicate prune = %q", committed)
		}
		if !strings.Contains(committed, `p."name" IS NOT DISTINCT FROM s."name"`) {
			t.Errorf("committed duplicate prune does not compare name: %q", committed)
		}
		if strings.Contains(committed, schema.ColumnLastModifiedAt) || strings.Contains(committed, schema.ColumnCreatedAt) {
			t.Errorf("committed duplicate prune compares audit columns: %q", committed)
		}
	})

	t.Run("nullable ref is cleared", func(t *testing.T) {
		st, err := Build(schema.Core(domain.EntityTypeRelease))
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		if len(st.Prune) != 3 {
			t.Fatalf("len(Prune) = %d, want 3: %v", len(st.Prune), st.Prune)
		}
		ref := st.Prune[1]
		if !strings.HasPrefix(ref, `UPDATE "release_tmp" AS s SET "master_id" = NULL`) {
			t.Errorf("ref prune = %q", ref)
		}
		if !strings.Contains(ref, `NOT EXISTS (SELECT 1 FROM "master" AS r WHERE r."id" = s."master_id")`) {
			t.Errorf("ref prune = %q", ref)
		}
	})

	t.Run("required refs drop the row", func(t *testing.T) {
		st, err := Build(schema.Tables(domain.EntityTypeRelease)[1])
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		if len(st.Prune) != 4 {
			t.Fatalf("len(Prune) = %d, want 4: %v", len(st.Prune), st.Prune)
		}
		for _, stmt := range st.Prune[1:3] {
			if !strings.HasPrefix(stmt, `DELETE FROM "release_artist_tmp" AS s WHERE NOT EXISTS`) {
				t.Errorf("ref prune = %q", stmt)
			}
		}
		if !strings.Contains(st.Prune[2], `FROM "artist" AS r WHERE r."id" = s."artist_id"`) {
			t.Errorf("artist ref prune = %q", st.Prune[2])
		}
	})
}

func TestQuote(t *testing.T) {
	t.Parallel()

	if got := Quote(`we"ird`); got != `"we""ird"` {
		t.Errorf("Quote = %q", got)
	}
}
