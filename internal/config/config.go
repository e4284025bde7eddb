package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds all vibe-journal configuration.
type Config struct {
	JournalDir     string `toml:"journal_dir"`
	TranscriptsDir string `toml:"transcripts_dir"`

	Git       GitConfig       `toml:"git"`
	Budget    BudgetConfig    `toml:"budget"`
	Model     ModelConfig     `toml:"model"`
	Narrative NarrativeConfig `toml:"narrative"`
	Pipeline  PipelineConfig  `toml:"pipeline"`
	Archive   ArchiveConfig   `toml:"archive"`
	Log       LogConfig       `toml:"log"`
}

type GitConfig struct {
	// LookbackHours bounds the window of an initial commit, which has no
	// predecessor to anchor the start.
	LookbackHours int `toml:"lookback_hours"`
}

type BudgetConfig struct {
	TokenCeiling        int `toml:"token_ceiling"`
	DiffThresholdTokens int `toml:"diff_threshold_tokens"`
	PreserveRecent      int `toml:"preserve_recent"`
}

type ModelConfig struct {
	Enabled                      bool    `toml:"enabled"`
	Provider                     string  `toml:"provider"`
	Model                        string  `toml:"model"`
	APIKeyEnv                    string  `toml:"api_key_env"`
	BaseURL                      string  `toml:"base_url"`
	Temperature                  float32 `toml:"temperature"`
	MaxOutputTokens              int     `toml:"max_output_tokens"`
	DisambiguationTimeoutSeconds int     `toml:"disambiguation_timeout_seconds"`
	SectionTimeoutSeconds        int     `toml:"section_timeout_seconds"`
}

type NarrativeConfig struct {
	Sections     []string `toml:"sections"`
	ChainSummary bool     `toml:"chain_summary"`

	// MaxConcurrent caps simultaneous section calls; 0 runs them all at once.
	MaxConcurrent int `toml:"max_concurrent"`
}

type PipelineConfig struct {
	TimeoutSeconds int `toml:"timeout_seconds"`
}

type ArchiveConfig struct {
	Dir string `toml:"dir"`
}

type LogConfig struct {
	Level string `toml:"level"`
}

// DefaultConfig returns config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		JournalDir:     "~/journal",
		TranscriptsDir: "~/.claude/projects",
		Git: GitConfig{
			LookbackHours: 24,
		},
		Budget: BudgetConfig{
			TokenCeiling:        60000,
			DiffThresholdTokens: 15000,
			PreserveRecent:      10,
		},
		Model: ModelConfig{
			Enabled:                      false,
			Provider:                     "openai",
			Model:                        "grok-3-mini-fast",
			APIKeyEnv:                    "XAI_API_KEY",
			BaseURL:                      "https://api.x.ai/v1",
			Temperature:                  0.3,
			MaxOutputTokens:              1200,
			DisambiguationTimeoutSeconds: 20,
			SectionTimeoutSeconds:        60,
		},
		Narrative: NarrativeConfig{
			Sections: []string{"summary", "dialogue", "technical_decisions"},
		},
		Pipeline: PipelineConfig{
			TimeoutSeconds: 120,
		},
		Archive: ArchiveConfig{
			Dir: "~/.claude/archive",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads config from the standard path, falling back to defaults.
func Load() (Config, error) {
	cfg := DefaultConfig()

	for _, p := range configPaths() {
		if _, err := os.Stat(p); err == nil {
			if _, err := toml.DecodeFile(p, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", p, err)
			}
			break
		}
	}

	cfg.JournalDir = ExpandHome(cfg.JournalDir)
	cfg.TranscriptsDir = ExpandHome(cfg.TranscriptsDir)
	cfg.Archive.Dir = ExpandHome(cfg.Archive.Dir)

	return cfg, nil
}

func configPaths() []string {
	var paths []string

	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		paths = append(paths, filepath.Join(xdg, "vibe-journal", "config.toml"))
	}

	home, _ := os.UserHomeDir()
	if home != "" {
		paths = append(paths, filepath.Join(home, ".config", "vibe-journal", "config.toml"))
	}

	return paths
}

// ExpandHome replaces a leading ~/ with the user's home directory.
func ExpandHome(path string) string {
	if path == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			return home
		}
		return path
	}
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

// Lookback returns the initial-commit window length.
func (g GitConfig) Lookback() time.Duration {
	if g.LookbackHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(g.LookbackHours) * time.Hour
}

// DisambiguationTimeout bounds the model-assisted session selection call.
func (m ModelConfig) DisambiguationTimeout() time.Duration {
	return seconds(m.DisambiguationTimeoutSeconds, 20)
}

// SectionTimeout bounds each narrative section call.
func (m ModelConfig) SectionTimeout() time.Duration {
	return seconds(m.SectionTimeoutSeconds, 60)
}

// Timeout bounds a whole pipeline run.
func (p PipelineConfig) Timeout() time.Duration {
	return seconds(p.TimeoutSeconds, 120)
}

func seconds(n, fallback int) time.Duration {
	if n <= 0 {
		n = fallback
	}
	return time.Duration(n) * time.Second
}

// DailyDir returns the directory holding per-day journal files.
func (c Config) DailyDir() string {
	return filepath.Join(c.JournalDir, "daily")
}
