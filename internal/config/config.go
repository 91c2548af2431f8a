package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string

	// Auth
	APIKey string

	// LLM backends
	LLMProvider     string // "openai" (any OpenAI-compatible endpoint) or "anthropic"
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	GenerationModel string
	ScoringModel    string
	TOCModel        string
	AnthropicAPIKey string
	AnthropicModel  string

	// Worker pool
	WorkerCount           int
	MaxQueueSize          int
	MaxConcurrentGenerate int

	// Upload limits
	MaxUploadBytes int64

	// Job state
	JobTTL time.Duration

	// PDF
	PDFFallbackPdftotext bool

	// Segmentation
	MaxParagraphs   int
	MaxSegmentBytes int
	FuzzyMatch      bool
	FuzzyThreshold  float64
	TOCScanPages    int

	// Generation
	QuestionsPerSegment int
	SimilarityThreshold float64
	ChunkSize           int
	ChunkOverlap        int

	// Dataset
	TrainRatio    float64
	ValRatio      float64
	SplitSeed     uint64
	PricePerToken float64

	// Artifacts
	ArtifactDir      string
	S3Bucket         string
	S3Region         string
	S3Endpoint       string
	S3KeyPrefix      string
	S3ForcePathStyle bool
}

// LoadEnvFile reads KEY=VALUE pairs from path into the environment without
// overriding variables that are already set. A missing file is not an
// error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8090"),

		APIKey: os.Getenv("SYNTHTUNE_API_KEY"),

		LLMProvider:     envOr("LLM_PROVIDER", "openai"),
		OpenAIAPIKey:    firstEnv("OPENAI_API_KEY", "NVIDIA_API_KEY"),
		OpenAIBaseURL:   os.Getenv("OPENAI_BASE_URL"),
		GenerationModel: envOr("GENERATION_MODEL", "gpt-4o-mini"),
		ScoringModel:    os.Getenv("SCORING_MODEL"),
		TOCModel:        os.Getenv("TOC_MODEL"),
		AnthropicAPIKey: os.Getenv("ANTHROPIC_API_KEY"),
		AnthropicModel:  envOr("ANTHROPIC_MODEL", "claude-sonnet-4-5-20250929"),

		WorkerCount:           envInt("WORKER_COUNT", 2),
		MaxQueueSize:          envInt("MAX_QUEUE_SIZE", 100),
		MaxConcurrentGenerate: envInt("MAX_CONCURRENT_GENERATE", 4),

		MaxUploadBytes: envInt64("MAX_UPLOAD_BYTES", 52428800), // 50MB

		JobTTL: envDuration("JOB_TTL", 1*time.Hour),

		PDFFallbackPdftotext: envBool("PDF_FALLBACK_PDFTOTEXT", true),

		MaxParagraphs:   envInt("MAX_PARAGRAPHS", 10),
		MaxSegmentBytes: envInt("MAX_SEGMENT_BYTES", 4<<20),
		FuzzyMatch:      envBool("FUZZY_MATCH", false),
		FuzzyThreshold:  envFloat("FUZZY_THRESHOLD", 0.85),
		TOCScanPages:    envInt("TOC_SCAN_PAGES", 10),

		QuestionsPerSegment: envInt("QUESTIONS_PER_SEGMENT", 5),
		SimilarityThreshold: envFloat("SIMILARITY_THRESHOLD", 0.5),
		ChunkSize:           envInt("CHUNK_SIZE", 1500),
		ChunkOverlap:        envInt("CHUNK_OVERLAP", 200),

		TrainRatio:    envFloat("TRAIN_RATIO", 0.8),
		ValRatio:      envFloat("VAL_RATIO", 0.1),
		SplitSeed:     uint64(envInt64("SPLIT_SEED", 42)),
		PricePerToken: envFloat("PRICE_PER_TOKEN", 0.0001),

		ArtifactDir:      envOr("ARTIFACT_DIR", "./artifacts"),
		S3Bucket:         os.Getenv("S3_BUCKET"),
		S3Region:         os.Getenv("S3_REGION"),
		S3Endpoint:       os.Getenv("S3_ENDPOINT"),
		S3KeyPrefix:      os.Getenv("S3_KEY_PREFIX"),
		S3ForcePathStyle: envBool("S3_FORCE_PATH_STYLE", false),
	}

	if cfg.OpenAIBaseURL == "" && os.Getenv("NVIDIA_API_KEY") != "" && os.Getenv("OPENAI_API_KEY") == "" {
		cfg.OpenAIBaseURL = "https://integrate.api.nvidia.com/v1"
	}
	if cfg.TOCModel == "" {
		cfg.TOCModel = cfg.GenerationModel
	}

	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 2
	}
	if cfg.MaxQueueSize <= 0 {
		cfg.MaxQueueSize = 100
	}
	if cfg.MaxConcurrentGenerate <= 0 {
		cfg.MaxConcurrentGenerate = 4
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 52428800
	}
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 1 * time.Hour
	}
	if cfg.FuzzyThreshold <= 0 || cfg.FuzzyThreshold > 1 {
		cfg.FuzzyThreshold = 0.85
	}
	if cfg.TOCScanPages <= 0 {
		cfg.TOCScanPages = 10
	}
	if cfg.QuestionsPerSegment <= 0 {
		cfg.QuestionsPerSegment = 5
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 1500
	}
	if cfg.ChunkOverlap <= 0 {
		cfg.ChunkOverlap = 200
	}
	if cfg.TrainRatio < 0 || cfg.ValRatio < 0 || cfg.TrainRatio+cfg.ValRatio > 1 {
		cfg.TrainRatio, cfg.ValRatio = 0.8, 0.1
	}
	if cfg.PricePerToken <= 0 {
		cfg.PricePerToken = 0.0001
	}

	return cfg
}

// Validate checks what the HTTP service needs.
func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("SYNTHTUNE_API_KEY is required")
	}
	return c.ValidateLLM()
}

// ValidateLLM checks that the selected provider has credentials.
func (c Config) ValidateLLM() error {
	switch c.LLMProvider {
	case "openai":
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for LLM_PROVIDER=openai")
		}
	case "anthropic":
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required for LLM_PROVIDER=anthropic")
		}
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider)
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
