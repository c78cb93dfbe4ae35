// Package config holds the single configuration struct for dotbot.
//
// A Config is built exactly once at the entry point (CLI or server) and
// passed by value into every component that needs it. Nothing in the
// engine reads configuration from package-level state.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// BotDir is the managed-repository marker directory.
	BotDir = ".bot"
	// RegistryFile is the Metadata Registry filename inside BotDir.
	RegistryFile = "registry.json"
	// StateFile is the tracker state filename inside BotDir.
	StateFile = "state.json"
	// ConfigFile is the optional engine configuration inside BotDir.
	ConfigFile = "dotbot.yaml"

	// EnvPrefix is the prefix for environment overrides (DOTBOT_SCAN_WORKERS, ...).
	EnvPrefix = "DOTBOT"
)

// ScanConfig tunes the manifest scanner.
type ScanConfig struct {
	Exclude          []string // extra doublestar globs, repo-relative
	MaxManifestBytes int64
	Workers          int
}

// ArtifactConfig tunes artifact loading.
type ArtifactConfig struct {
	CacheSize    int
	MaxFileBytes int64
}

// HealthConfig holds the thresholds used by the standard and comprehensive tiers.
type HealthConfig struct {
	ExpectedAgents    int
	ExpectedWorkflows int
	ExpectedStandards int
	MinTestRatio      float64
}

// Config is the effective engine configuration.
type Config struct {
	RepoRoot    string
	DataDir     string // where the optional health history database lives
	MetricsAddr string
	Verbose     bool

	Scan      ScanConfig
	Artifacts ArtifactConfig
	Health    HealthConfig
}

// Default returns the configuration used when nothing is overridden.
func Default(repoRoot string) Config {
	home, _ := os.UserHomeDir()
	return Config{
		RepoRoot: repoRoot,
		DataDir:  filepath.Join(home, ".dotbot"),
		Scan: ScanConfig{
			MaxManifestBytes: 1 << 20,
			Workers:          8,
		},
		Artifacts: ArtifactConfig{
			CacheSize:    4096,
			MaxFileBytes: 512 * 1024,
		},
		Health: HealthConfig{
			ExpectedAgents:    1,
			ExpectedWorkflows: 1,
			ExpectedStandards: 1,
			MinTestRatio:      0.5,
		},
	}
}

// SetDefaults registers every key with its default value so that env
// overrides resolve even when no config file exists.
func SetDefaults(v *viper.Viper, repoRoot string) {
	d := Default(repoRoot)
	v.SetDefault("root", d.RepoRoot)
	v.SetDefault("data_dir", d.DataDir)
	v.SetDefault("metrics_addr", "")
	v.SetDefault("verbose", false)
	v.SetDefault("scan.exclude", []string{})
	v.SetDefault("scan.max_manifest_bytes", d.Scan.MaxManifestBytes)
	v.SetDefault("scan.workers", d.Scan.Workers)
	v.SetDefault("artifacts.cache_size", d.Artifacts.CacheSize)
	v.SetDefault("artifacts.max_file_bytes", d.Artifacts.MaxFileBytes)
	v.SetDefault("health.expected.agents", d.Health.ExpectedAgents)
	v.SetDefault("health.expected.workflows", d.Health.ExpectedWorkflows)
	v.SetDefault("health.expected.standards", d.Health.ExpectedStandards)
	v.SetDefault("health.min_test_ratio", d.Health.MinTestRatio)
}

// Load resolves a Config from v. Callers bind flags into v before calling.
// The optional .bot/dotbot.yaml under the resolved root is read when present.
func Load(v *viper.Viper) (Config, error) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	root := v.GetString("root")
	if root == "" {
		found, err := FindRepoRoot()
		if err != nil {
			return Config{}, err
		}
		root = found
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return Config{}, fmt.Errorf("resolving repository root %s: %w", root, err)
	}

	cfgPath := filepath.Join(abs, BotDir, ConfigFile)
	if _, err := os.Stat(cfgPath); err == nil {
		v.SetConfigFile(cfgPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading %s: %w", cfgPath, err)
		}
	}

	cfg := Config{
		RepoRoot:    abs,
		DataDir:     v.GetString("data_dir"),
		MetricsAddr: v.GetString("metrics_addr"),
		Verbose:     v.GetBool("verbose"),
		Scan: ScanConfig{
			Exclude:          v.GetStringSlice("scan.exclude"),
			MaxManifestBytes: v.GetInt64("scan.max_manifest_bytes"),
			Workers:          v.GetInt("scan.workers"),
		},
		Artifacts: ArtifactConfig{
			CacheSize:    v.GetInt("artifacts.cache_size"),
			MaxFileBytes: v.GetInt64("artifacts.max_file_bytes"),
		},
		Health: HealthConfig{
			ExpectedAgents:    v.GetInt("health.expected.agents"),
			ExpectedWorkflows: v.GetInt("health.expected.workflows"),
			ExpectedStandards: v.GetInt("health.expected.standards"),
			MinTestRatio:      v.GetFloat64("health.min_test_ratio"),
		},
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects values no component can work with.
func (c Config) Validate() error {
	var errs []error
	if c.RepoRoot == "" {
		errs = append(errs, errors.New("repository root is empty"))
	}
	if c.Scan.Workers < 1 {
		errs = append(errs, fmt.Errorf("scan.workers must be >= 1, got %d", c.Scan.Workers))
	}
	if c.Scan.MaxManifestBytes <= 0 {
		errs = append(errs, fmt.Errorf("scan.max_manifest_bytes must be > 0, got %d", c.Scan.MaxManifestBytes))
	}
	if c.Artifacts.CacheSize < 1 {
		errs = append(errs, fmt.Errorf("artifacts.cache_size must be >= 1, got %d", c.Artifacts.CacheSize))
	}
	if c.Health.MinTestRatio < 0 || c.Health.MinTestRatio > 1 {
		errs = append(errs, fmt.Errorf("health.min_test_ratio must be within [0,1], got %g", c.Health.MinTestRatio))
	}
	return errors.Join(errs...)
}

// BotPath returns the absolute path of the managed tree.
func (c Config) BotPath() string { return filepath.Join(c.RepoRoot, BotDir) }

// RegistryPath returns the absolute path of the registry file.
func (c Config) RegistryPath() string { return filepath.Join(c.BotPath(), RegistryFile) }

// StatePath returns the absolute path of the tracker state file.
func (c Config) StatePath() string { return filepath.Join(c.BotPath(), StateFile) }

// FindRepoRoot walks up from the working directory looking for a .bot/
// directory. If none is found it returns the working directory; callers
// report DOTBOT_NOT_FOUND where the marker is required.
func FindRepoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting working directory: %w", err)
	}

	current := dir
	for {
		if info, err := os.Stat(filepath.Join(current, BotDir)); err == nil && info.IsDir() {
			return current, nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			return dir, nil
		}
		current = parent
	}
}
