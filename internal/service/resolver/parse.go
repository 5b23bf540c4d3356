package resolver

import (
	"strconv"
	"strings"
	"time"

	"github.com/heartmarshall/discogs-dumpload/internal/domain"
)

// ParseSelection validates args and expands them into a Selection. The
// version-tag option short-circuits everything except the strict flag.
//
// Types default to all types; unless strict, they are expanded to their
// dependency closure. The period comes from year-month when present (the
// year option, if also given, overrides its year part), else from year with
// month 1, else from now in UTC.
func ParseSelection(args domain.SelectionArgs, now time.Time) (domain.Selection, error) {
	if args.HasVersionTags() {
		tags := distinctTags(args.VersionTags)
		if len(tags) == 0 {
			return domain.Selection{}, domain.NewInvalidSelection("eTags cannot be null or empty")
		}
		return domain.Selection{VersionTags: tags, Strict: args.Strict}, nil
	}

	types, err := parseTypes(args.Types, args.Strict)
	if err != nil {
		return domain.Selection{}, err
	}

	period, err := parsePeriod(args.Year, args.YearMonth, now)
	if err != nil {
		return domain.Selection{}, err
	}

	return domain.Selection{Types: types, Period: period, Strict: args.Strict}, nil
}

func distinctTags(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, tag := range in {
		tag = strings.TrimSpace(tag)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		out = append(out, tag)
	}
	return out
}

func parseTypes(raw []string, strict bool) ([]domain.EntityType, error) {
	if len(raw) == 0 {
		return domain.SortEntityTypes(domain.EntityTypes), nil
	}
	types := make([]domain.EntityType, 0, len(raw))
	for _, r := range raw {
		t, err := domain.ParseEntityType(r)
		if err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	if strict {
		return domain.SortEntityTypes(types), nil
	}
	return domain.DependencyClosure(types), nil
}

func parsePeriod(year, yearMonth string, now time.Time) (domain.Period, error) {
	year = strings.TrimSpace(year)
	yearMonth = strings.TrimSpace(yearMonth)

	if year == "" && yearMonth == "" {
		return domain.PeriodOf(now), nil
	}

	p := domain.Period{Month: 1}
	var err error

	if yearMonth != "" {
		if len(yearMonth) < 6 {
			return domain.Period{}, domain.NewInvalidSelection("year-month %q must look like YYYY-MM", yearMonth)
		}
		if p.Month, err = strconv.Atoi(yearMonth[5:]); err != nil || p.Month < 1 || p.Month > 12 {
			return domain.Period{}, domain.NewInvalidSelection("year-month %q has an invalid month", yearMonth)
		}
	}

	src := year
	if src == "" {
		src = yearMonth
	}
	if p.Year, err = parseYear(src); err != nil {
		return domain.Period{}, err
	}
	return p, nil
}

// parseYear reads the first four characters of s as the year.
func parseYear(s string) (int, error) {
	if len(s) < 4 {
		return 0, domain.NewInvalidSelection("year %q must have four digits", s)
	}
	y, err := strconv.Atoi(s[:4])
	if err != nil || y < 1 {
		return 0, domain.NewInvalidSelection("year %q must have four digits", s)
	}
	return y, nil
}
