// Package config resolves settings from defaults, an optional YAML file and
// the environment. Command-line flags are applied on top by the caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultOllamaURL      = "http://localhost:11434"
	DefaultModel          = "mistral:instruct"
	DefaultTemperature    = 0.2
	DefaultAgentTimeout   = 1200
	DefaultRequestTimeout = 120 * time.Second
	DefaultThrottle       = 2 * time.Second
	DefaultMaxRetries     = 3
	DefaultRetryDelay     = 2 * time.Second

	FileName = "config.yaml"
)

type Config struct {
	DataDir        string
	DBPath         string
	SkillsDir      string
	UserTeamDir    string
	ProjectTeamDir string

	OllamaURL      string
	Model          string
	Temperature    float64
	AgentTimeout   int
	RequestTimeout time.Duration
	Throttle       time.Duration
	MaxRetries     int
	RetryDelay     time.Duration
}

// fileConfig is the on-disk shape. Durations are Go duration strings.
type fileConfig struct {
	OllamaURL      string   `yaml:"ollama_url"`
	Model          string   `yaml:"model"`
	Temperature    *float64 `yaml:"temperature"`
	AgentTimeout   int      `yaml:"agent_timeout"`
	RequestTimeout string   `yaml:"request_timeout"`
	Throttle       string   `yaml:"throttle"`
	MaxRetries     int      `yaml:"max_retries"`
	RetryDelay     string   `yaml:"retry_delay"`
	SkillsDir      string   `yaml:"skills_dir"`
}

func New() (*Config, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, err
	}

	dataDir := getEnv("TEAMFORGE_DATA_DIR", filepath.Join(homeDir, ".teamforge"))

	c := &Config{
		DataDir:        dataDir,
		DBPath:         filepath.Join(dataDir, "teamforge.db"),
		SkillsDir:      filepath.Join(dataDir, "skills"),
		UserTeamDir:    filepath.Join(dataDir, "teams"),
		ProjectTeamDir: ".teamforge/teams",

		OllamaURL:      DefaultOllamaURL,
		Model:          DefaultModel,
		Temperature:    DefaultTemperature,
		AgentTimeout:   DefaultAgentTimeout,
		RequestTimeout: DefaultRequestTimeout,
		Throttle:       DefaultThrottle,
		MaxRetries:     DefaultMaxRetries,
		RetryDelay:     DefaultRetryDelay,
	}

	if err := c.loadFile(filepath.Join(dataDir, FileName)); err != nil {
		return nil, err
	}
	if err := c.loadEnv(); err != nil {
		return nil, err
	}

	return c, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if fc.OllamaURL != "" {
		c.OllamaURL = fc.OllamaURL
	}
	if fc.Model != "" {
		c.Model = fc.Model
	}
	if fc.Temperature != nil {
		c.Temperature = *fc.Temperature
	}
	if fc.AgentTimeout > 0 {
		c.AgentTimeout = fc.AgentTimeout
	}
	if fc.MaxRetries > 0 {
		c.MaxRetries = fc.MaxRetries
	}
	if fc.SkillsDir != "" {
		c.SkillsDir = fc.SkillsDir
	}
	for _, d := range []struct {
		raw string
		dst *time.Duration
		key string
	}{
		{fc.RequestTimeout, &c.RequestTimeout, "request_timeout"},
		{fc.Throttle, &c.Throttle, "throttle"},
		{fc.RetryDelay, &c.RetryDelay, "retry_delay"},
	} {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("invalid %s in %s: %w", d.key, path, err)
		}
		*d.dst = v
	}
	return nil
}

func (c *Config) loadEnv() error {
	if v, ok := os.LookupEnv("OLLAMA_HOST"); ok && v != "" {
		c.OllamaURL = normalizeHost(v)
	}
	c.OllamaURL = getEnv("TEAMFORGE_OLLAMA_URL", c.OllamaURL)
	c.Model = getEnv("TEAMFORGE_MODEL", c.Model)
	c.SkillsDir = getEnv("TEAMFORGE_SKILLS_DIR", c.SkillsDir)

	if v, ok := os.LookupEnv("TEAMFORGE_TEMPERATURE"); ok {
		t, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid TEAMFORGE_TEMPERATURE: %w", err)
		}
		c.Temperature = t
	}
	if v, ok := os.LookupEnv("TEAMFORGE_THROTTLE"); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid TEAMFORGE_THROTTLE: %w", err)
		}
		c.Throttle = d
	}
	return nil
}

// Validate checks ranges after all overrides are applied.
func (c *Config) Validate() error {
	if c.Temperature < 0 || c.Temperature > 1 {
		return fmt.Errorf("temperature %v out of range [0, 1]", c.Temperature)
	}
	if c.Throttle < 0 {
		return fmt.Errorf("throttle must not be negative")
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("max retries must be at least 1")
	}
	return nil
}

func (c *Config) EnsureDataDir() error {
	for _, dir := range []string{c.DataDir, c.WorkspacesDir(), c.DiscussionsDir(), c.SkillsDir, c.UserTeamDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) WorkspacesDir() string {
	return filepath.Join(c.DataDir, "workspaces")
}

func (c *Config) DiscussionsDir() string {
	return filepath.Join(c.DataDir, "discussions")
}

func (c *Config) TeamDirs() []string {
	return []string{c.UserTeamDir, c.ProjectTeamDir}
}

// normalizeHost accepts OLLAMA_HOST forms such as "0.0.0.0:11434".
func normalizeHost(v string) string {
	if strings.HasPrefix(v, "http://") || strings.HasPrefix(v, "https://") {
		return strings.TrimRight(v, "/")
	}
	return "http://" + strings.TrimRight(v, "/")
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
