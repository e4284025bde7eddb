package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ConfigDir returns the vibe-journal config directory path.
// Uses $XDG_CONFIG_HOME/vibe-journal if set, otherwise ~/.config/vibe-journal.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "vibe-journal")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "vibe-journal")
}

// WriteDefault writes a default config.toml pointing to journalDir.
// Returns the config file path. Skips if config.toml already exists.
func WriteDefault(journalDir string) (string, error) {
	dir := ConfigDir()
	path := filepath.Join(dir, "config.toml")

	if _, err := os.Stat(path); err == nil {
		return path, nil // already exists
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create config dir: %w", err)
	}

	content := fmt.Sprintf(`journal_dir = %q
transcripts_dir = "~/.claude/projects"

[git]
lookback_hours = 24

[budget]
token_ceiling = 60000
diff_threshold_tokens = 15000
preserve_recent = 10

[model]
enabled = false
provider = "openai"
model = "grok-3-mini-fast"
api_key_env = "XAI_API_KEY"
base_url = "https://api.x.ai/v1"
temperature = 0.3
max_output_tokens = 1200
disambiguation_timeout_seconds = 20
section_timeout_seconds = 60

[narrative]
sections = ["summary", "dialogue", "technical_decisions"]
chain_summary = false
max_concurrent = 0

[pipeline]
timeout_seconds = 120

[archive]
dir = "~/.claude/archive"

[log]
level = "info"
`, CompressHome(journalDir))

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("write config: %w", err)
	}

	return path, nil
}

// CompressHome replaces $HOME prefix with ~/ for portable config values.
func CompressHome(path string) string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return path
	}
	if strings.HasPrefix(path, home+"/") {
		return "~/" + path[len(home)+1:]
	}
	if path == home {
		return "~"
	}
	return path
}
