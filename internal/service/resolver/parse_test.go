package resolver

import (
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/heartmarshall/discogs-dumpload/internal/domain"
)

var fixedNow = time.Date(2023, time.June, 14, 9, 30, 0, 0, time.UTC)

func TestParseSelection_Period(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		year      string
		yearMonth string
		want      domain.Period
	}{
		{"defaults to now", "", "", domain.Period{Year: 2023, Month: 6}},
		{"year implies january", "1995", "", domain.Period{Year: 1995, Month: 1}},
		{"year-month", "", "2001-03", domain.Period{Year: 2001, Month: 3}},
		{"year-month single digit", "", "2001-7", domain.Period{Year: 2001, Month: 7}},
		{"year overrides year-month year", "2019", "2001-03", domain.Period{Year: 2019, Month: 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			sel, err := ParseSelection(domain.SelectionArgs{Year: tt.year, YearMonth: tt.yearMonth}, fixedNow)
			if err != nil {
				t.Fatalf("ParseSelection: %v", err)
			}
			if sel.Period != tt.want {
				t.Errorf("Period = %v, want %v", sel.Period, tt.want)
			}
		})
	}
}

func TestParseSelection_MalformedPeriod(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		year      string
		yearMonth string
	}{
		{"short year", "95", ""},
		{"letters in year", "19x5", ""},
		{"short year-month", "", "2001"},
		{"month out of range", "", "2001-13"},
		{"month zero", "", "2001-00"},
		{"letters in month", "", "2001-ab"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseSelection(domain.SelectionArgs{Year: tt.year, YearMonth: tt.yearMonth}, fixedNow)
			if !errors.Is(err, domain.ErrInvalidSelection) {
				t.Errorf("error = %v, want ErrInvalidSelection", err)
			}
		})
	}
}

func TestParseSelection_Types(t *testing.T) {
	t.Parallel()

	all := domain.EntityTypes
	tests := []struct {
		name   string
		types  []string
		strict bool
		want   []domain.EntityType
	}{
		{"absent means all", nil, false, all},
		{"absent means all when strict", nil, true, all},
		{"artist", []string{"artist"}, false, []domain.EntityType{domain.EntityTypeArtist}},
		{"release closure", []string{"release"}, false, all},
		{"release strict", []string{"release"}, true, []domain.EntityType{domain.EntityTypeRelease}},
		{"master closure", []string{"masters"}, false, []domain.EntityType{domain.EntityTypeArtist, domain.EntityTypeMaster}},
		{
			"duplicates collapse",
			[]string{"label", "master", "label"},
			false,
			[]domain.EntityType{domain.EntityTypeArtist, domain.EntityTypeLabel, domain.EntityTypeMaster},
		},
		{
			"strict duplicates collapse",
			[]string{"release", "label", "release"},
			true,
			[]domain.EntityType{domain.EntityTypeLabel, domain.EntityTypeRelease},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			sel, err := ParseSelection(domain.SelectionArgs{Types: tt.types, Strict: tt.strict}, fixedNow)
			if err != nil {
				t.Fatalf("ParseSelection: %v", err)
			}
			if !slices.Equal(sel.Types, tt.want) {
				t.Errorf("Types = %v, want %v", sel.Types, tt.want)
			}
			if sel.ByVersionTags() {
				t.Error("ByVersionTags() = true for a type selection")
			}
		})
	}
}

func TestParseSelection_UnknownType(t *testing.T) {
	t.Parallel()

	_, err := ParseSelection(domain.SelectionArgs{Types: []string{"artist", "track"}}, fixedNow)
	if !errors.Is(err, domain.ErrInvalidSelection) {
		t.Errorf("error = %v, want ErrInvalidSelection", err)
	}
}

func TestParseSelection_VersionTags(t *testing.T) {
	t.Parallel()

	t.Run("short-circuits other options", func(t *testing.T) {
		t.Parallel()
		sel, err := ParseSelection(domain.SelectionArgs{
			VersionTags: []string{"a", "b", "a"},
			Types:       []string{"track"},
			YearMonth:   "garbage",
			Strict:      true,
		}, fixedNow)
		if err != nil {
			t.Fatalf("ParseSelection: %v", err)
		}
		if !slices.Equal(sel.VersionTags, []string{"a", "b"}) {
			t.Errorf("VersionTags = %v, want [a b]", sel.VersionTags)
		}
		if !sel.Strict || !sel.ByVersionTags() {
			t.Errorf("selection = %+v", sel)
		}
	})

	for _, tags := range [][]string{{}, {"", "  "}} {
		_, err := ParseSelection(domain.SelectionArgs{VersionTags: tags}, fixedNow)
		if !errors.Is(err, domain.ErrInvalidSelection) {
			t.Errorf("tags %q: error = %v, want ErrInvalidSelection", tags, err)
		}
	}
}
