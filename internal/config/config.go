package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory and bind address configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
	APIBind string `toml:"api_bind"`
}

// Model configures how the denoising model capability is provided.
type Model struct {
	// Mode selects the predictor: "command" (default), "spectral_gate",
	// or "identity".
	Mode string `toml:"mode"`
	// Command is the external predictor invocation for command mode,
	// e.g. "hush-model --weights /path/to/weights".
	Command string `toml:"command"`
}

// Jobs configures job retention and upload limits.
type Jobs struct {
	TTLSeconds           int `toml:"ttl_seconds"`
	SweepIntervalSeconds int `toml:"sweep_interval_seconds"`
	MaxUploadMB          int `toml:"max_upload_mb"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for hushd.
type Config struct {
	Paths   Paths   `toml:"paths"`
	Model   Model   `toml:"model"`
	Jobs    Jobs    `toml:"jobs"`
	Logging Logging `toml:"logging"`
}

const (
	defaultDataDir       = "~/.local/share/hush/jobs"
	defaultLogDir        = "~/.local/share/hush/logs"
	defaultAPIBind       = "127.0.0.1:8180"
	defaultModelMode     = "command"
	defaultModelCommand  = "hush-model"
	defaultTTLSeconds    = 3600
	defaultSweepSeconds  = 600
	defaultMaxUploadMB   = 64
	defaultLogFormat     = "console"
	defaultLogLevel      = "info"
	defaultConfigPathStr = "~/.config/hush/config.toml"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
			APIBind: defaultAPIBind,
		},
		Model: Model{
			Mode:    defaultModelMode,
			Command: defaultModelCommand,
		},
		Jobs: Jobs{
			TTLSeconds:           defaultTTLSeconds,
			SweepIntervalSeconds: defaultSweepSeconds,
			MaxUploadMB:          defaultMaxUploadMB,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}

// DefaultConfigPath returns the absolute path to the default configuration
// file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPathStr)
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("hush.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

func (c *Config) normalize() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}

	c.Model.Mode = strings.ToLower(strings.TrimSpace(c.Model.Mode))
	if c.Model.Mode == "" {
		c.Model.Mode = defaultModelMode
	}
	c.Model.Command = strings.TrimSpace(c.Model.Command)

	if c.Jobs.TTLSeconds == 0 {
		c.Jobs.TTLSeconds = defaultTTLSeconds
	}
	if c.Jobs.SweepIntervalSeconds == 0 {
		c.Jobs.SweepIntervalSeconds = defaultSweepSeconds
	}
	if c.Jobs.MaxUploadMB == 0 {
		c.Jobs.MaxUploadMB = defaultMaxUploadMB
	}

	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	return nil
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	switch c.Model.Mode {
	case "command":
		if c.Model.Command == "" {
			return errors.New("model.command must be set when model.mode is \"command\"")
		}
	case "spectral_gate", "identity":
	default:
		return fmt.Errorf("model.mode %q is not one of command, spectral_gate, identity", c.Model.Mode)
	}

	if c.Jobs.TTLSeconds < 0 {
		return errors.New("jobs.ttl_seconds must not be negative")
	}
	if c.Jobs.SweepIntervalSeconds <= 0 {
		return errors.New("jobs.sweep_interval_seconds must be positive")
	}
	if c.Jobs.MaxUploadMB <= 0 {
		return errors.New("jobs.max_upload_mb must be positive")
	}

	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format %q is not one of console, json", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", c.Logging.Level)
	}
	return nil
}

// EnsureDirectories creates the directories the daemon needs at runtime.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}
