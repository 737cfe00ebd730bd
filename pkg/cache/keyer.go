package cache

// Keyer builds cache keys for pipeline stages.
type Keyer interface {
	// RowsKey identifies extracted effect rows.
	RowsKey(dataHash string, opts RowsKeyOpts) string
	// ArtifactKey identifies one rendered output format.
	ArtifactKey(rowsHash string, opts ArtifactKeyOpts) string
}

// RowsKeyOpts are the settings that change extraction results.
type RowsKeyOpts struct {
	Outcome    string   `json:"outcome"`
	Variables  string   `json:"variables"` // hash of the variable roles
	Subgroups  []string `json:"subgroups"`
	ConfLevel  float64  `json:"conf_level"`
	LabelAll   string   `json:"label_all"`
	SkipAll    bool     `json:"skip_all"`
	FitterName string   `json:"fitter"`
}

// ArtifactKeyOpts are the settings that change a rendered artifact.
type ArtifactKeyOpts struct {
	Format string `json:"format"`
	Style  string `json:"style"`
	Table  string `json:"table"`  // hash of table options
	Layout string `json:"layout"` // hash of layout options
	Width  int    `json:"width,omitempty"`
}

// DefaultKeyer hashes the options into fixed-length keys.
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default keyer.
func NewDefaultKeyer() Keyer { return DefaultKeyer{} }

func (DefaultKeyer) RowsKey(dataHash string, opts RowsKeyOpts) string {
	return hashKey("rows", dataHash, opts)
}

func (DefaultKeyer) ArtifactKey(rowsHash string, opts ArtifactKeyOpts) string {
	return hashKey("artifact:"+opts.Format, rowsHash, opts)
}
