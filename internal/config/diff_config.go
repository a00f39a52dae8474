package config

// DiffConfig defines configuration for content diffing
type DiffConfig struct {
	NoiseEpsilon    float64  `json:"noise_epsilon,omitempty" yaml:"noise_epsilon,omitempty" validate:"min=0,max=1"`
	NormalizeHTML   bool     `json:"normalize_html" yaml:"normalize_html"`
	IgnoreSelectors []string `json:"ignore_selectors,omitempty" yaml:"ignore_selectors,omitempty" validate:"dive,required"`
	IgnorePatterns  []string `json:"ignore_patterns,omitempty" yaml:"ignore_patterns,omitempty" validate:"dive,regexp"`
	MaxDiffSizeMB   int      `json:"max_diff_size_mb,omitempty" yaml:"max_diff_size_mb,omitempty" validate:"min=0"`
}

// NewDefaultDiffConfig creates default diff configuration
func NewDefaultDiffConfig() DiffConfig {
	return DiffConfig{
		NoiseEpsilon:    DefaultDiffNoiseEpsilon,
		NormalizeHTML:   DefaultDiffNormalizeHTML,
		IgnoreSelectors: []string{},
		IgnorePatterns:  []string{},
		MaxDiffSizeMB:   DefaultDiffMaxSizeMB,
	}
}

// MaxDiffSize returns the per-side size above which diffs fall back to hash
// comparison, 0 meaning unlimited
func (c DiffConfig) MaxDiffSize() int64 {
	return int64(c.MaxDiffSizeMB) * 1024 * 1024
}
