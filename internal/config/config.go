package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// SessionsRoot holds one sub-directory per project, each containing the
	// project's session logs.
	SessionsRoot string `yaml:"sessions_root"`
	// TodosRoot holds per-session/agent todo files.
	TodosRoot string `yaml:"todos_root"`
	// BackupDirName is the sub-directory (next to the original file) that
	// non-permanent deletions move files into.
	BackupDirName string `yaml:"backup_dir"`
	// HandshakeThreshold is the maximum number of non-empty lines for an
	// orphaned sidechain log to be deleted outright instead of backed up.
	HandshakeThreshold int `yaml:"handshake_threshold"`
	// MaxParallelReads bounds fan-out during whole-project scans.
	MaxParallelReads int `yaml:"max_parallel_reads"`
}

func DefaultConfig() Config {
	base := claudeHome()
	return Config{
		SessionsRoot:       filepath.Join(base, "projects"),
		TodosRoot:          filepath.Join(base, "todos"),
		BackupDirName:      ".bak",
		HandshakeThreshold: 2,
		MaxParallelReads:   16,
	}
}

func claudeHome() string {
	if base := strings.TrimSpace(os.Getenv("CLAUDE_CONFIG_DIR")); base != "" {
		return base
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return filepath.Join(home, ".claude")
	}
	return filepath.Join(os.TempDir(), ".claude")
}

// LoadConfig reads path (or the default location when path is empty) on top
// of DefaultConfig. A missing file is not an error.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if strings.TrimSpace(path) == "" {
		path = defaultConfigPath()
	}
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	if cfg.HandshakeThreshold < 0 {
		cfg.HandshakeThreshold = 0
	}
	if cfg.MaxParallelReads <= 0 {
		cfg.MaxParallelReads = DefaultConfig().MaxParallelReads
	}
	if strings.TrimSpace(cfg.BackupDirName) == "" {
		cfg.BackupDirName = DefaultConfig().BackupDirName
	}
	return cfg, nil
}

func defaultConfigPath() string {
	if base := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME")); base != "" {
		return filepath.Join(base, "sessionctl", "config.yaml")
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return filepath.Join(home, ".config", "sessionctl", "config.yaml")
	}
	return ""
}
