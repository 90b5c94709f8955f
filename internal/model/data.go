package model

// Source represents one export table fed into the pipeline
type Source struct {
	Name        string `json:"name" toml:"name"`                 // product name, e.g. "vinho"
	Type        string `json:"type" toml:"type"`                 // csv, xlsx
	Path        string `json:"path" toml:"path"`
	Sheet       string `json:"sheet,omitempty" toml:"sheet"`     // xlsx only, defaults to first sheet
	Delimiter   string `json:"delimiter,omitempty" toml:"delimiter"`
	IndexColumn string `json:"indexColumn,omitempty" toml:"index_column"` // defaults to first column
}

// Export defines export targets
type Export struct {
	DB   string `json:"db" toml:"db"`     // sqlite path
	File string `json:"file" toml:"file"` // e.g., output.csv, output.json, output.xlsx
}

// Charts defines the top countries chart options
type Charts struct {
	Dir      string  `json:"dir" toml:"dir"`
	Format   string  `json:"format" toml:"format"` // png, svg, pdf
	TopN     int     `json:"topN" toml:"top_n"`
	YMax     float64 `json:"yMax" toml:"y_max"`
	YStep    float64 `json:"yStep" toml:"y_step"`
	RankYear string  `json:"rankYear,omitempty" toml:"rank_year"` // empty ranks by the last year
}

// ConcurrencyConfig defines source loading and job options
type ConcurrencyConfig struct {
	Workers    int    `json:"workers" toml:"workers"`
	JobTimeout string `json:"jobTimeout" toml:"job_timeout"` // e.g., "5m"
}

// PipelineJobSpec defines the entire pipeline configuration
type PipelineJobSpec struct {
	Sources         []Source          `json:"sources" toml:"sources"`
	Transformations []string          `json:"transformations" toml:"transformations"`
	WindowYears     int               `json:"windowYears" toml:"window_years"`
	CountryNames    string            `json:"countryNames,omitempty" toml:"country_names"` // extra name mappings csv
	Export          *Export           `json:"export,omitempty" toml:"export"`
	Charts          *Charts           `json:"charts,omitempty" toml:"charts"`
	Concurrency     ConcurrencyConfig `json:"concurrency" toml:"concurrency"`
	Logging         bool              `json:"logging" toml:"logging"`
}
