package differ

import (
	"bytes"
	"fmt"

	"github.com/aleister1102/siteguardian/internal/common"
	"github.com/aleister1102/siteguardian/internal/config"
	"github.com/aleister1102/siteguardian/internal/models"

	"github.com/rs/zerolog"
	"github.com/sergi/go-diff/diffmatchpatch"
)

// Engine compares two versions of a page. It performs no I/O and the same
// inputs always produce the same result.
type Engine struct {
	normalizer   *Normalizer
	maxDiffSize  int64
	noiseEpsilon float64
	logger       zerolog.Logger
}

// EngineBuilder provides a fluent interface for creating an Engine
type EngineBuilder struct {
	cfg    config.DiffConfig
	logger zerolog.Logger
}

// NewEngineBuilder creates a new builder with default diff configuration
func NewEngineBuilder() *EngineBuilder {
	return &EngineBuilder{
		cfg:    config.NewDefaultDiffConfig(),
		logger: zerolog.Nop(),
	}
}

// WithDiffConfig sets the diff configuration
func (b *EngineBuilder) WithDiffConfig(cfg config.DiffConfig) *EngineBuilder {
	b.cfg = cfg
	return b
}

// WithLogger sets the logger
func (b *EngineBuilder) WithLogger(logger zerolog.Logger) *EngineBuilder {
	b.logger = logger
	return b
}

// Build creates the Engine
func (b *EngineBuilder) Build() (*Engine, error) {
	if b.cfg.NoiseEpsilon < 0 || b.cfg.NoiseEpsilon > 1 {
		return nil, common.NewValidationError("noise_epsilon", b.cfg.NoiseEpsilon, "must be between 0 and 1")
	}
	normalizer, err := NewNormalizer(b.cfg.NormalizeHTML, b.cfg.IgnoreSelectors, b.cfg.IgnorePatterns)
	if err != nil {
		return nil, common.WrapError(err, "failed to build normalizer")
	}
	return &Engine{
		normalizer:   normalizer,
		maxDiffSize:  b.cfg.MaxDiffSize(),
		noiseEpsilon: b.cfg.NoiseEpsilon,
		logger:       b.logger.With().Str("component", "DiffEngine").Logger(),
	}, nil
}

// NewEngine creates an Engine from diff configuration
func NewEngine(cfg config.DiffConfig, logger zerolog.Logger) (*Engine, error) {
	return NewEngineBuilder().WithDiffConfig(cfg).WithLogger(logger).Build()
}

// NoiseEpsilon is the configured threshold callers use with
// DiffResult.Significant.
func (e *Engine) NoiseEpsilon() float64 {
	return e.noiseEpsilon
}

// Diff compares previous and current content. It reports the raw
// difference; whether a change is worth acting on is left to the caller.
// Content that cannot be compared as text is compared by hash only.
func (e *Engine) Diff(previous, current []byte, contentType string) models.DiffResult {
	if bytes.Equal(previous, current) {
		return models.DiffResult{}
	}
	if !IsTextContent(contentType) {
		return hashOnlyResult(previous, current, fmt.Sprintf("binary content type %s", MediaType(contentType)))
	}
	if e.maxDiffSize > 0 && (int64(len(previous)) > e.maxDiffSize || int64(len(current)) > e.maxDiffSize) {
		return hashOnlyResult(previous, current, fmt.Sprintf("content exceeds %d bytes", e.maxDiffSize))
	}

	result, err := e.DiffText(previous, current, contentType)
	if err != nil {
		e.logger.Debug().Err(err).Str("content_type", contentType).Msg("Falling back to hash comparison")
		return hashOnlyResult(previous, current, err.Error())
	}
	return result
}

// DiffText compares content line by line. It fails with a DiffError when
// either side is not valid text.
func (e *Engine) DiffText(previous, current []byte, contentType string) (models.DiffResult, error) {
	oldText, err := decodeText(previous)
	if err != nil {
		return models.DiffResult{}, err
	}
	newText, err := decodeText(current)
	if err != nil {
		return models.DiffResult{}, err
	}

	oldLines := e.normalizer.Lines(oldText, contentType)
	newLines := e.normalizer.Lines(newText, contentType)
	stats := compareLines(newLineDiffer(), oldLines, newLines)

	result := models.DiffResult{
		Segments:      stats.Segments,
		LinesAdded:    stats.Added,
		LinesRemoved:  stats.Removed,
		LinesModified: stats.Modified,
	}
	if len(stats.Segments) > 0 {
		result.Changed = true
		result.ChangeRatio = stats.Ratio()
	} else if !bytes.Equal(previous, current) {
		result.Note = "only ignored content changed"
	}
	return result, nil
}

func hashOnlyResult(previous, current []byte, note string) models.DiffResult {
	result := models.DiffResult{HashOnly: true, Note: note}
	if common.ContentHash(previous) != common.ContentHash(current) {
		result.Changed = true
		result.ChangeRatio = 1.0
	}
	return result
}

// Changes returns the raw line-mode edit script between two texts, used for
// rendering.
func Changes(previous, current string) []diffmatchpatch.Diff {
	return lineDiffs(newLineDiffer(), splitLines(previous), splitLines(current))
}
