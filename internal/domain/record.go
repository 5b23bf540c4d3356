package domain

// Record is one parsed element of a dump file.
type Record interface {
	EntityType() EntityType
	Key() int64
}

// Artist is a parsed <artist> element.
type Artist struct {
	ID          int64
	Name        string
	RealName    string
	Profile     string
	DataQuality string
	AliasIDs    []int64
}

func (a Artist) EntityType() EntityType { return EntityTypeArtist }
func (a Artist) Key() int64             { return a.ID }

// Label is a parsed <label> element.
type Label struct {
	ID          int64
	Name        string
	ContactInfo string
	Profile     string
	DataQuality string
	SubLabelIDs []int64
}

func (l Label) EntityType() EntityType { return EntityTypeLabel }
func (l Label) Key() int64             { return l.ID }

// Master is a parsed <master> element.
type Master struct {
	ID            int64
	MainReleaseID int64
	Title         string
	Year          int
	DataQuality   string
	ArtistIDs     []int64
}

func (m Master) EntityType() EntityType { return EntityTypeMaster }
func (m Master) Key() int64             { return m.ID }

// ReleaseLabel links a release to a label under a catalog number.
type ReleaseLabel struct {
	LabelID          int64
	CategoryNotation string
}

// Release is a parsed <release> element.
type Release struct {
	ID            int64
	Status        string
	Title         string
	Country       string
	Released      string
	Notes         string
	DataQuality   string
	MasterID      int64
	IsMainRelease bool
	ArtistIDs     []int64
	Labels        []ReleaseLabel
}

func (r Release) EntityType() EntityType { return EntityTypeRelease }
func (r Release) Key() int64             { return r.ID }
