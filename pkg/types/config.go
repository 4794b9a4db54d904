package types

import "time"

// ToleranceUnit selects how a mass accuracy value is interpreted.
type ToleranceUnit string

const (
	// ToleranceDalton interprets mass accuracy as an absolute m/z window (±value).
	ToleranceDalton ToleranceUnit = "da"

	// TolerancePPM interprets mass accuracy as parts-per-million of the expected mass.
	TolerancePPM ToleranceUnit = "ppm"
)

// DefaultIonListName is the named ion list used when no list is given.
const DefaultIonListName = "scfas"

// HTTPConfig holds settings for fetching ion lists from http(s) locations.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout" mapstructure:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "xic-engine/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent" mapstructure:"user_agent"`

	// MaxRetries bounds retries on HTTP 429 (default 5).
	MaxRetries int `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
}

// IonListConfig holds settings for ion-list resolution.
type IonListConfig struct {
	HTTPConfig `yaml:",inline" mapstructure:",squash"`

	// DefaultName is the named list resolved when neither a name nor a path
	// is supplied (default "scfas").
	DefaultName string `json:"default_name" yaml:"default_name" mapstructure:"default_name"`

	// Library is an optional ion-list library file that replaces the
	// built-in library for named resolution.
	Library string `json:"library,omitempty" yaml:"library,omitempty" mapstructure:"library"`

	// CacheSize bounds the number of cached named lists (default 64).
	CacheSize int `json:"cache_size" yaml:"cache_size" mapstructure:"cache_size"`
}

// ExtractionConfig holds settings for the measurement engine and the
// parallel orchestrator.
type ExtractionConfig struct {
	// MassAccuracy is the tolerance value applied to every file.
	MassAccuracy float32 `json:"mass_accuracy" yaml:"mass_accuracy" mapstructure:"mass_accuracy"`

	// ToleranceUnit selects "da" (absolute, default) or "ppm".
	ToleranceUnit ToleranceUnit `json:"tolerance_unit" yaml:"tolerance_unit" mapstructure:"tolerance_unit"`

	// Workers is the worker pool size; 0 uses the number of CPUs.
	Workers int `json:"workers" yaml:"workers" mapstructure:"workers"`

	// FileTimeout bounds the processing time of a single file; 0 disables it.
	FileTimeout time.Duration `json:"file_timeout" yaml:"file_timeout" mapstructure:"file_timeout"`

	// FailFast aborts the whole batch on the first file failure instead of
	// isolating the failure to that file's result slot.
	FailFast bool `json:"fail_fast" yaml:"fail_fast" mapstructure:"fail_fast"`

	// KeepTraces retains the full chromatogram of every ion.
	KeepTraces bool `json:"keep_traces" yaml:"keep_traces" mapstructure:"keep_traces"`
}

// OutputFormat selects the result document format.
type OutputFormat string

const (
	OutputJSON  OutputFormat = "json"
	OutputJSONL OutputFormat = "jsonl"
	OutputYAML  OutputFormat = "yaml"
)

// StoreConfig holds settings for the optional SQLite results store.
type StoreConfig struct {
	// Path is the database file; empty disables persistence.
	Path string `json:"path" yaml:"path" mapstructure:"path"`

	// MaxResults is the default maximum number of query rows (default 100).
	MaxResults int `json:"max_results" yaml:"max_results" mapstructure:"max_results"`
}

// Config groups all settings read from the configuration file.
type Config struct {
	Extraction ExtractionConfig `json:"extraction" yaml:"extraction" mapstructure:"extraction"`
	IonList    IonListConfig    `json:"ion_list" yaml:"ion_list" mapstructure:"ion_list"`
	Store      StoreConfig      `json:"store" yaml:"store" mapstructure:"store"`
	Output     OutputFormat     `json:"output" yaml:"output" mapstructure:"output"`
}
