package main

import (
	"github.com/spf13/cobra"

	"github.com/heartmarshall/discogs-dumpload/internal/domain"
)

// selectionFlags are the flags shared by load and resolve.
type selectionFlags struct {
	versionTags []string
	types       []string
	year        string
	yearMonth   string
	strict      bool
}

func (f *selectionFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringSliceVar(&f.versionTags, "version-tag", nil, "dump version tag (ETag); repeatable, skips type and period selection")
	fs.StringSliceVarP(&f.types, "type", "t", nil, "entity type (artist, label, master, release); repeatable, default all")
	fs.StringVar(&f.year, "year", "", "target year (yyyy)")
	fs.StringVar(&f.yearMonth, "year-month", "", "target period (yyyy-mm)")
	fs.BoolVar(&f.strict, "strict", false, "load exactly what was asked for, without dependency expansion")
}

// args converts the flags into a selection request. The version-tag option
// counts as given only when the flag was set.
func (f *selectionFlags) args(cmd *cobra.Command) domain.SelectionArgs {
	a := domain.SelectionArgs{
		Types:     f.types,
		Year:      f.year,
		YearMonth: f.yearMonth,
		Strict:    f.strict,
	}
	if cmd.Flags().Changed("version-tag") {
		a.VersionTags = f.versionTags
		if a.VersionTags == nil {
			a.VersionTags = []string{}
		}
	}
	return a
}
