package domain

import (
	"fmt"
	"time"
)

// Dump is one published snapshot file for one entity type. The version tag
// (the object's ETag) is globally unique.
type Dump struct {
	ETag           string
	Type           EntityType
	LastModifiedAt time.Time
	URI            string
	SizeBytes      int64
	CreatedAt      time.Time
}

// Period returns the (year, month) the dump belongs to.
func (d Dump) Period() Period {
	return PeriodOf(d.LastModifiedAt)
}

// Period is a (year, month) pair.
type Period struct {
	Year  int
	Month int
}

// PeriodOf returns the period containing t, evaluated in UTC.
func PeriodOf(t time.Time) Period {
	u := t.UTC()
	return Period{Year: u.Year(), Month: int(u.Month())}
}

// Previous returns the month before p.
func (p Period) Previous() Period {
	if p.Month <= 1 {
		return Period{Year: p.Year - 1, Month: 12}
	}
	return Period{Year: p.Year, Month: p.Month - 1}
}

// Start returns the first instant of the period in UTC.
func (p Period) Start() time.Time {
	return time.Date(p.Year, time.Month(p.Month), 1, 0, 0, 0, 0, time.UTC)
}

func (p Period) String() string {
	return fmt.Sprintf("%04d-%02d", p.Year, p.Month)
}

// TruncateToDay drops the time-of-day part of t in UTC.
func TruncateToDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ResolvedSet maps each entity type to exactly one dump.
type ResolvedSet map[EntityType]Dump

// Types returns the keys of the set in canonical order.
func (s ResolvedSet) Types() []EntityType {
	types := make([]EntityType, 0, len(s))
	for t := range s {
		types = append(types, t)
	}
	return SortEntityTypes(types)
}
