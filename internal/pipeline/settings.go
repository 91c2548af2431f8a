package pipeline

import (
	"fmt"

	"github.com/dgallion1/synthtune/internal/artifacts"
	"github.com/dgallion1/synthtune/internal/chunker"
	"github.com/dgallion1/synthtune/internal/config"
	"github.com/dgallion1/synthtune/internal/dataset"
	"github.com/dgallion1/synthtune/internal/llm"
	"github.com/dgallion1/synthtune/internal/parser"
	"github.com/dgallion1/synthtune/internal/qagen"
	"github.com/dgallion1/synthtune/internal/segment"
)

// Settings are the knobs of one pipeline run.
type Settings struct {
	Parser         parser.Options
	Scope          segment.Scope
	Fuzzy          bool
	FuzzyThreshold float64
	Segment        segment.Options
	TOCScanPages   int
	Generate       qagen.Config
	Ratios         dataset.Ratios
	Seed           uint64
	PricePerToken  float64
}

// SettingsFromConfig maps service configuration onto run settings.
func SettingsFromConfig(cfg config.Config) Settings {
	return Settings{
		Parser:         parser.Options{FallbackPdftotext: cfg.PDFFallbackPdftotext},
		Scope:          segment.ScopeLeaves,
		Fuzzy:          cfg.FuzzyMatch,
		FuzzyThreshold: cfg.FuzzyThreshold,
		Segment: segment.Options{
			MaxParagraphs:   cfg.MaxParagraphs,
			MaxSegmentBytes: cfg.MaxSegmentBytes,
		},
		TOCScanPages: cfg.TOCScanPages,
		Generate: qagen.Config{
			Questions:   cfg.QuestionsPerSegment,
			Threshold:   cfg.SimilarityThreshold,
			Concurrency: cfg.MaxConcurrentGenerate,
			Window: chunker.Config{
				ChunkSize:    cfg.ChunkSize,
				ChunkOverlap: cfg.ChunkOverlap,
			},
		},
		Ratios:        dataset.Ratios{Train: cfg.TrainRatio, Val: cfg.ValRatio},
		Seed:          cfg.SplitSeed,
		PricePerToken: cfg.PricePerToken,
	}
}

// ArtifactConfig maps service configuration onto the artifact store.
func ArtifactConfig(cfg config.Config) artifacts.Config {
	return artifacts.Config{
		Dir:            cfg.ArtifactDir,
		Bucket:         cfg.S3Bucket,
		Region:         cfg.S3Region,
		Endpoint:       cfg.S3Endpoint,
		KeyPrefix:      cfg.S3KeyPrefix,
		ForcePathStyle: cfg.S3ForcePathStyle,
	}
}

func (s Settings) strategy() segment.Strategy {
	if s.Fuzzy {
		return segment.FuzzyStrategy{Threshold: s.FuzzyThreshold}
	}
	return segment.RegexStrategy{}
}

// Clients are the LLM backends built from configuration. TOC and Scorer
// may be nil.
type Clients struct {
	Generator llm.Completer
	TOC       llm.Completer
	Scorer    llm.Scorer
	Stats     *llm.Stats

	close func()
}

// NewClients builds the configured provider's clients, all recording into
// one Stats window.
func NewClients(cfg config.Config) (*Clients, error) {
	if err := cfg.ValidateLLM(); err != nil {
		return nil, err
	}
	stats := llm.NewStats(0)
	switch cfg.LLMProvider {
	case "anthropic":
		c := llm.NewClaudeClient(cfg.AnthropicAPIKey, cfg.AnthropicModel)
		c.Stats = stats
		return &Clients{Generator: c, TOC: c, Stats: stats, close: c.Close}, nil
	case "openai":
		gen := llm.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.GenerationModel, cfg.ScoringModel)
		gen.Stats = stats
		cl := &Clients{Generator: gen, TOC: gen, Stats: stats}
		if cfg.TOCModel != "" && cfg.TOCModel != cfg.GenerationModel {
			tc := llm.NewOpenAIClient(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.TOCModel, "")
			tc.Stats = stats
			cl.TOC = tc
		}
		if cfg.ScoringModel != "" {
			cl.Scorer = gen
		}
		return cl, nil
	}
	return nil, fmt.Errorf("unknown LLM provider %q", cfg.LLMProvider)
}

// Close releases idle connections.
func (c *Clients) Close() {
	if c != nil && c.close != nil {
		c.close()
	}
}
