package domain

// SelectionArgs is the raw, CLI-equivalent form of a selection request.
// Presence of any version tag short-circuits type/year/month parsing.
type SelectionArgs struct {
	VersionTags []string
	Types       []string
	Year        string
	YearMonth   string
	Strict      bool
}

// HasVersionTags reports whether the version-tag option was given at all.
func (a SelectionArgs) HasVersionTags() bool {
	return a.VersionTags != nil
}

// Selection is a parsed selection request. Exactly one of VersionTags or
// Types is populated.
type Selection struct {
	VersionTags []string
	Types       []EntityType
	Period      Period
	Strict      bool
}

// ByVersionTags reports whether the selection is by version tag.
func (s Selection) ByVersionTags() bool {
	return len(s.VersionTags) > 0
}
