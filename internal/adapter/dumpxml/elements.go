package dumpxml

import (
	"strconv"
	"strings"

	"github.com/heartmarshall/discogs-dumpload/internal/domain"
)

// Numeric fields are decoded as text and parsed here, so a bad value drops
// the element instead of aborting the decoder.

type xmlNamedRef struct {
	ID string `xml:"id,attr"`
}

type xmlCredit struct {
	ID string `xml:"id"`
}

type xmlArtist struct {
	ID          string        `xml:"id"`
	Name        string        `xml:"name"`
	RealName    string        `xml:"realname"`
	Profile     string        `xml:"profile"`
	DataQuality string        `xml:"data_quality"`
	Aliases     []xmlNamedRef `xml:"aliases>name"`
}

type xmlLabel struct {
	ID          string        `xml:"id"`
	Name        string        `xml:"name"`
	ContactInfo string        `xml:"contactinfo"`
	Profile     string        `xml:"profile"`
	DataQuality string        `xml:"data_quality"`
	SubLabels   []xmlNamedRef `xml:"sublabels>label"`
}

type xmlMaster struct {
	ID          string      `xml:"id,attr"`
	MainRelease string      `xml:"main_release"`
	Title       string      `xml:"title"`
	Year        string      `xml:"year"`
	DataQuality string      `xml:"data_quality"`
	Artists     []xmlCredit `xml:"artists>artist"`
}

type xmlReleaseLabel struct {
	ID    string `xml:"id,attr"`
	CatNo string `xml:"catno,attr"`
}

type xmlMasterRef struct {
	ID            string `xml:",chardata"`
	IsMainRelease string `xml:"is_main_release,attr"`
}

type xmlRelease struct {
	ID          string            `xml:"id,attr"`
	Status      string            `xml:"status,attr"`
	Title       string            `xml:"title"`
	Country     string            `xml:"country"`
	Released    string            `xml:"released"`
	Notes       string            `xml:"notes"`
	DataQuality string            `xml:"data_quality"`
	Master      xmlMasterRef      `xml:"master_id"`
	Artists     []xmlCredit       `xml:"artists>artist"`
	Labels      []xmlReleaseLabel `xml:"labels>label"`
}

// parseID returns a positive id, or 0 when s is not one.
func parseID(s string) int64 {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil || id <= 0 {
		return 0
	}
	return id
}

func clean(s string) string { return strings.TrimSpace(s) }

func refIDs(refs []xmlNamedRef) []int64 {
	var ids []int64
	for _, r := range refs {
		if id := parseID(r.ID); id > 0 {
			ids = append(ids, id)
		}
	}
	return ids
}

func creditIDs(credits []xmlCredit) []int64 {
	var ids []int64
	for _, c := range credits {
		if id := parseID(c.ID); id > 0 {
			ids = append(ids, id)
		}
	}
	return ids
}

func (a xmlArtist) record() domain.Record {
	id := parseID(a.ID)
	if id == 0 {
		return nil
	}
	return domain.Artist{
		ID:          id,
		Name:        clean(a.Name),
		RealName:    clean(a.RealName),
		Profile:     clean(a.Profile),
		DataQuality: clean(a.DataQuality),
		AliasIDs:    refIDs(a.Aliases),
	}
}

func (l xmlLabel) record() domain.Record {
	id := parseID(l.ID)
	if id == 0 {
		return nil
	}
	return domain.Label{
		ID:          id,
		Name:        clean(l.Name),
		ContactInfo: clean(l.ContactInfo),
		Profile:     clean(l.Profile),
		DataQuality: clean(l.DataQuality),
		SubLabelIDs: refIDs(l.SubLabels),
	}
}

func (m xmlMaster) record() domain.Record {
	id := parseID(m.ID)
	if id == 0 {
		return nil
	}
	year, err := strconv.Atoi(clean(m.Year))
	if err != nil || year < 0 {
		year = 0
	}
	return domain.Master{
		ID:            id,
		MainReleaseID: parseID(m.MainRelease),
		Title:         clean(m.Title),
		Year:          year,
		DataQuality:   clean(m.DataQuality),
		ArtistIDs:     creditIDs(m.Artists),
	}
}

func (r xmlRelease) record() domain.Record {
	id := parseID(r.ID)
	if id == 0 {
		return nil
	}
	rel := domain.Release{
		ID:            id,
		Status:        clean(r.Status),
		Title:         clean(r.Title),
		Country:       clean(r.Country),
		Released:      clean(r.Released),
		Notes:         clean(r.Notes),
		DataQuality:   clean(r.DataQuality),
		MasterID:      parseID(r.Master.ID),
		IsMainRelease: strings.EqualFold(clean(r.Master.IsMainRelease), "true"),
		ArtistIDs:     creditIDs(r.Artists),
	}
	for _, l := range r.Labels {
		if lid := parseID(l.ID); lid > 0 {
			rel.Labels = append(rel.Labels, domain.ReleaseLabel{LabelID: lid, CategoryNotation: clean(l.CatNo)})
		}
	}
	return rel
}
