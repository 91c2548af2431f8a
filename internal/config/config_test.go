package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "OPENAI_API_KEY", "NVIDIA_API_KEY", "OPENAI_BASE_URL", "WORKER_COUNT", "TRAIN_RATIO", "VAL_RATIO", "TOC_MODEL", "GENERATION_MODEL"} {
		t.Setenv(k, "")
	}
	cfg := Load()
	if cfg.Port != "8090" {
		t.Errorf("expected port 8090, got %s", cfg.Port)
	}
	if cfg.WorkerCount != 2 || cfg.MaxParagraphs != 10 || cfg.QuestionsPerSegment != 5 {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if cfg.TrainRatio != 0.8 || cfg.ValRatio != 0.1 || cfg.SplitSeed != 42 {
		t.Errorf("unexpected split defaults %+v", cfg)
	}
	if cfg.TOCModel != cfg.GenerationModel {
		t.Errorf("expected TOC model to default to the generation model, got %q", cfg.TOCModel)
	}
}

func TestLoad_ClampsInvalidValues(t *testing.T) {
	t.Setenv("WORKER_COUNT", "-3")
	t.Setenv("FUZZY_THRESHOLD", "7")
	t.Setenv("TRAIN_RATIO", "0.95")
	t.Setenv("VAL_RATIO", "0.1")
	t.Setenv("JOB_TTL", "nonsense")
	cfg := Load()
	if cfg.WorkerCount != 2 {
		t.Errorf("expected worker count clamped to 2, got %d", cfg.WorkerCount)
	}
	if cfg.FuzzyThreshold != 0.85 {
		t.Errorf("expected fuzzy threshold 0.85, got %f", cfg.FuzzyThreshold)
	}
	if cfg.TrainRatio != 0.8 || cfg.ValRatio != 0.1 {
		t.Errorf("expected ratios reset, got %f/%f", cfg.TrainRatio, cfg.ValRatio)
	}
	if cfg.JobTTL != time.Hour {
		t.Errorf("expected 1h TTL, got %s", cfg.JobTTL)
	}
}

func TestLoad_NVIDIAKeySelectsNVIDIAEndpoint(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("OPENAI_BASE_URL", "")
	t.Setenv("NVIDIA_API_KEY", "nv-key")
	cfg := Load()
	if cfg.OpenAIAPIKey != "nv-key" {
		t.Errorf("expected NVIDIA key to be used, got %q", cfg.OpenAIAPIKey)
	}
	if cfg.OpenAIBaseURL != "https://integrate.api.nvidia.com/v1" {
		t.Errorf("expected NVIDIA base URL, got %q", cfg.OpenAIBaseURL)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"missing api key", Config{LLMProvider: "openai", OpenAIAPIKey: "k"}, true},
		{"openai ok", Config{APIKey: "s", LLMProvider: "openai", OpenAIAPIKey: "k"}, false},
		{"openai missing key", Config{APIKey: "s", LLMProvider: "openai"}, true},
		{"anthropic ok", Config{APIKey: "s", LLMProvider: "anthropic", AnthropicAPIKey: "k"}, false},
		{"unknown provider", Config{APIKey: "s", LLMProvider: "bard"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("expected error=%v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestLoadEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("SYNTHTUNE_TEST_KEY=from-file\nSYNTHTUNE_TEST_SET=from-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("SYNTHTUNE_TEST_SET", "from-env")
	t.Setenv("SYNTHTUNE_TEST_KEY", "")
	os.Unsetenv("SYNTHTUNE_TEST_KEY")

	if err := LoadEnvFile(path); err != nil {
		t.Fatalf("LoadEnvFile: %v", err)
	}
	if got := os.Getenv("SYNTHTUNE_TEST_KEY"); got != "from-file" {
		t.Errorf("expected value from file, got %q", got)
	}
	if got := os.Getenv("SYNTHTUNE_TEST_SET"); got != "from-env" {
		t.Errorf("expected existing env to win, got %q", got)
	}
	if err := LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Errorf("expected missing file to be ignored, got %v", err)
	}
}
