package domain

import (
	"fmt"
	"strings"
)

// EntityType identifies one of the four kinds of published dump.
type EntityType string

const (
	EntityTypeArtist  EntityType = "artist"
	EntityTypeLabel   EntityType = "label"
	EntityTypeMaster  EntityType = "master"
	EntityTypeRelease EntityType = "release"
)

// EntityTypes lists every entity type in canonical order. Ties in any
// dependency ordering are broken by this order.
var EntityTypes = []EntityType{EntityTypeArtist, EntityTypeLabel, EntityTypeMaster, EntityTypeRelease}

// dependencies is the static dependency table. Every type depends on itself.
var dependencies = map[EntityType][]EntityType{
	EntityTypeArtist:  {EntityTypeArtist},
	EntityTypeLabel:   {EntityTypeLabel},
	EntityTypeMaster:  {EntityTypeArtist, EntityTypeMaster},
	EntityTypeRelease: {EntityTypeArtist, EntityTypeLabel, EntityTypeMaster, EntityTypeRelease},
}

func (t EntityType) String() string { return string(t) }

func (t EntityType) IsValid() bool {
	switch t {
	case EntityTypeArtist, EntityTypeLabel, EntityTypeMaster, EntityTypeRelease:
		return true
	}
	return false
}

// Rank returns the position of t in the canonical order, or -1 if t is unknown.
func (t EntityType) Rank() int {
	for i, et := range EntityTypes {
		if et == t {
			return i
		}
	}
	return -1
}

// Dependencies returns the types t depends on, in canonical order. The result
// always contains t itself and is a fresh slice.
func (t EntityType) Dependencies() []EntityType {
	deps := dependencies[t]
	out := make([]EntityType, len(deps))
	copy(out, deps)
	return out
}

// DependsOn reports whether t depends on other. A type depends on itself.
func (t EntityType) DependsOn(other EntityType) bool {
	for _, d := range dependencies[t] {
		if d == other {
			return true
		}
	}
	return false
}

// ParseEntityType parses a type name case-insensitively. The plural form used
// in dump file names ("artists") is accepted too.
func ParseEntityType(s string) (EntityType, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.TrimSuffix(v, "s")
	t := EntityType(v)
	if !t.IsValid() {
		return "", fmt.Errorf("%w: unknown entity type %q", ErrInvalidSelection, s)
	}
	return t, nil
}

// SortEntityTypes returns the distinct types of in in canonical order.
func SortEntityTypes(in []EntityType) []EntityType {
	seen := make(map[EntityType]bool, len(in))
	for _, t := range in {
		seen[t] = true
	}
	out := make([]EntityType, 0, len(seen))
	for _, t := range EntityTypes {
		if seen[t] {
			out = append(out, t)
		}
	}
	return out
}

// DependencyClosure returns the union of the dependencies of every type in
// types, without duplicates and in canonical order.
func DependencyClosure(types []EntityType) []EntityType {
	var all []EntityType
	for _, t := range types {
		all = append(all, dependencies[t]...)
	}
	return SortEntityTypes(all)
}
