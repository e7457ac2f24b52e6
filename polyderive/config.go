package polyderive

import (
	"fmt"
	"os"
	"time"

	"github.com/vulpemventures/go-polyderive/factorsource"
	"gopkg.in/yaml.v3"
)

// AnalyzerFailurePolicy selects what a scan does when an analyzer fails.
type AnalyzerFailurePolicy string

const (
	// PolicyAbort fails the scan with ErrAnalyzerFailure.
	PolicyAbort AnalyzerFailurePolicy = "abort"
	// PolicyAssumeFree treats the instances that could not be classified as
	// probably free and logs a warning.
	PolicyAssumeFree AnalyzerFailurePolicy = "assume_free"
)

const (
	defaultMaxRounds    = 16
	defaultRoundTimeout = 30 * time.Second
)

// Config bounds and tunes derivation scans.
type Config struct {
	// MaxRounds is the maximum number of derive and check rounds.
	MaxRounds int `yaml:"max_rounds"`
	// RoundTimeout is the deadline of a single round.
	RoundTimeout time.Duration `yaml:"round_timeout"`
	// BatchSizes overrides, per factor source kind name, how many instances
	// a round derives.
	BatchSizes map[string]int `yaml:"batch_sizes"`
	// AnalyzerFailurePolicy is either abort or assume_free.
	AnalyzerFailurePolicy AnalyzerFailurePolicy `yaml:"analyzer_failure_policy"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		MaxRounds:             defaultMaxRounds,
		RoundTimeout:          defaultRoundTimeout,
		BatchSizes:            map[string]int{},
		AnalyzerFailurePolicy: PolicyAbort,
	}
}

// LoadConfig reads a yaml configuration file. Fields missing from the file
// keep their default value.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.MaxRounds <= 0 {
		return fmt.Errorf("max_rounds must be positive, got %d", c.MaxRounds)
	}
	if c.RoundTimeout <= 0 {
		return fmt.Errorf("round_timeout must be positive, got %s", c.RoundTimeout)
	}
	for name, size := range c.BatchSizes {
		if _, err := factorsource.ParseKind(name); err != nil {
			return fmt.Errorf("batch_sizes: %w", err)
		}
		if size <= 0 {
			return fmt.Errorf("batch_sizes: %s must be positive, got %d", name, size)
		}
	}
	switch c.AnalyzerFailurePolicy {
	case PolicyAbort, PolicyAssumeFree:
	default:
		return fmt.Errorf("unknown analyzer_failure_policy %q", c.AnalyzerFailurePolicy)
	}
	return nil
}

// BatchSize returns how many instances a round derives for kind.
func (c Config) BatchSize(kind factorsource.Kind) int {
	if size, ok := c.BatchSizes[kind.String()]; ok && size > 0 {
		return size
	}
	return kind.BatchSize()
}
