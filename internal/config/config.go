// Package config loads stewardx's JSON configuration file and the
// environment-variable overrides layered on top of it, and exposes the
// read-only Shared-memory Cache singleton (spec.md §4.7) that every
// other component consults for its derived paths.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// File is the on-disk JSON config shape (spec.md §6, extended per
// SPEC_FULL.md §1.3 with PanelFeature).
type File struct {
	LogsFolderPath    string `json:"logs_folder_path"`
	ServerCRUDFeature bool   `json:"server_crud_feature"`
	PanelFeature      bool   `json:"panel_feature,omitempty"`
}

// defaultFile mirrors the original's Default impl: logs folder "logs",
// CRUD routes on by default.
func defaultFile() File {
	return File{LogsFolderPath: "logs", ServerCRUDFeature: true}
}

// Config is the fully resolved, immutable configuration for one daemon
// run: the on-disk File plus environment overrides and derived paths.
// A Config value never mutates after Load returns; a config file change
// produces a brand new Config that callers swap in atomically (see
// Cache), so the "immutable after startup" invariant of spec.md §4.7
// holds for every individual Config instance.
type Config struct {
	File

	ConfigPath string // path to the config.json file itself
	ConfigDir  string // directory containing the config file

	DatabaseURL string // STEWARDX_DATABASE_URL, required
	ServerHost  string // STEWARDX_SERVER_HOST, default 127.0.0.1
	ServerPort  int    // STEWARDX_SERVER_PORT, default 3000
	RuntimeDir  string // STEWARDX_DIR, default /tmp

	LogsFolderAbs string // resolved absolute logs folder
	SocketPath    string // RuntimeDir/stewardx.sock
}

// Load resolves the config file path from STEWARDX_CONFIG (or the
// default beneath the user config directory), reading it if present or
// writing it with defaults if absent, then applies the environment
// overrides named in spec.md §6.
func Load(logger *slog.Logger) (*Config, error) {
	if logger == nil {
		logger = slog.Default()
	}

	path, err := resolveConfigPath()
	if err != nil {
		return nil, err
	}

	f, err := readOrCreate(path, logger)
	if err != nil {
		return nil, err
	}
	return build(path, f)
}

// Reload re-reads the config file at the same path and returns a fresh
// Config, for use by the hot-reload Watcher.
func Reload(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reloading config file %s: %w", path, err)
	}
	var f File
	if err := json.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("malformed config file %s: %w", path, err)
	}
	return build(path, f)
}

func build(path string, f File) (*Config, error) {
	dbURL := os.Getenv("STEWARDX_DATABASE_URL")
	if dbURL == "" {
		return nil, fmt.Errorf("STEWARDX_DATABASE_URL is required")
	}

	host := envOr("STEWARDX_SERVER_HOST", "127.0.0.1")
	port := 3000
	if raw := os.Getenv("STEWARDX_SERVER_PORT"); raw != "" {
		if _, err := fmt.Sscanf(raw, "%d", &port); err != nil {
			return nil, fmt.Errorf("invalid STEWARDX_SERVER_PORT %q: %w", raw, err)
		}
	}
	runtimeDir := envOr("STEWARDX_DIR", "/tmp")

	cfg := &Config{
		File:        f,
		ConfigPath:  path,
		ConfigDir:   filepath.Dir(path),
		DatabaseURL: dbURL,
		ServerHost:  host,
		ServerPort:  port,
		RuntimeDir:  runtimeDir,
		SocketPath:  filepath.Join(runtimeDir, "stewardx.sock"),
	}
	cfg.LogsFolderAbs = cfg.resolveLogsFolderPath()
	return cfg, nil
}

func (c *Config) resolveLogsFolderPath() string {
	if filepath.IsAbs(c.LogsFolderPath) {
		return c.LogsFolderPath
	}
	return filepath.Join(c.ConfigDir, c.LogsFolderPath)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func resolveConfigPath() (string, error) {
	if p := os.Getenv("STEWARDX_CONFIG"); p != "" {
		return p, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving default config path: %w", err)
	}
	return filepath.Join(home, ".config", "stewardx", "config.json"), nil
}

func readOrCreate(path string, logger *slog.Logger) (File, error) {
	raw, err := os.ReadFile(path)
	if err == nil {
		var f File
		if err := json.Unmarshal(raw, &f); err != nil {
			return File{}, fmt.Errorf("malformed config file %s: %w", path, err)
		}
		return f, nil
	}
	if !os.IsNotExist(err) {
		return File{}, fmt.Errorf("reading config file %s: %w", path, err)
	}

	logger.Info("config file not found, writing defaults", "path", path)
	f := defaultFile()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return File{}, fmt.Errorf("creating config directory: %w", err)
	}
	body, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return File{}, err
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return File{}, fmt.Errorf("writing default config file %s: %w", path, err)
	}
	return f, nil
}
