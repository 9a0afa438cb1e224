package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const appName = "portalsync"

// Config represents the complete portalsync configuration
type Config struct {
	Provider ProviderConfig `yaml:"provider"`
	Content  ContentConfig  `yaml:"content"`
	Upload   UploadConfig   `yaml:"upload"`
	Repo     RepoConfig     `yaml:"repo"`
	Paths    PathsConfig    `yaml:"paths"`
	Auth     AuthConfig     `yaml:"auth"`
	Serve    ServeConfig    `yaml:"serve"`
}

// ProviderConfig configures access to the 3scale admin portal
type ProviderConfig struct {
	URL             string        `yaml:"url"`
	AccessToken     string        `yaml:"access_token"`
	AccessTokenFile string        `yaml:"access_token_file"`
	PerPage         int           `yaml:"per_page"`
	Concurrency     int           `yaml:"concurrency"`
	Timeout         time.Duration `yaml:"timeout"`
}

// ContentConfig configures the local content tree
type ContentConfig struct {
	RootDir string `yaml:"root_dir"`
}

// UploadConfig holds upload defaults. Command line flags take precedence.
type UploadConfig struct {
	KeepAsDraft      bool `yaml:"keep_as_draft"`
	IncludeUnchanged bool `yaml:"include_unchanged"`
	DeleteMissing    bool `yaml:"delete_missing"`
	// Layout is nil when unset, which differs from an explicit empty value.
	Layout *string `yaml:"layout"`
}

// RepoConfig configures the Git repository serve mode uploads from
type RepoConfig struct {
	URL    string `yaml:"url"`
	Ref    string `yaml:"ref"`
	Subdir string `yaml:"subdir"`
}

// PathsConfig configures local filesystem paths
type PathsConfig struct {
	StateDir string `yaml:"state_dir"`
}

// AuthConfig configures Git authentication
type AuthConfig struct {
	SSHKeyFile     string `yaml:"ssh_key_file"`
	HTTPSTokenFile string `yaml:"https_token_file"`
}

// ServeConfig configures the webhook server
type ServeConfig struct {
	Enabled                 bool     `yaml:"enabled"`
	ListenAddr              string   `yaml:"listen_addr"`
	GitHubWebhookSecretFile string   `yaml:"github_webhook_secret_file"`
	AllowedEventTypes       []string `yaml:"allowed_event_types"`
	AllowedRefs             []string `yaml:"allowed_refs"`
}

// DefaultPath returns the config file location under the XDG config home
func DefaultPath() string {
	return filepath.Join(xdg.ConfigHome, appName, "config.yaml")
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	// Expand environment variables in path
	path = os.ExpandEnv(path)

	// Load .env files so tokens can stay out of the YAML
	if err := loadDotEnv(filepath.Join(filepath.Dir(path), ".env"), ".env"); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	// Read file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Expand environment variables in string fields
	cfg.expandEnv()

	// Apply defaults
	cfg.applyDefaults()

	// Validate
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadDotEnv loads each existing file. Variables already set win.
func loadDotEnv(files ...string) error {
	seen := make(map[string]bool)
	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil || seen[abs] {
			continue
		}
		seen[abs] = true

		if _, err := os.Stat(abs); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(abs); err != nil {
			return fmt.Errorf("%s: %w", f, err)
		}
	}
	return nil
}

// expandEnv expands environment variables in all string fields
func (c *Config) expandEnv() {
	c.Provider.URL = os.ExpandEnv(c.Provider.URL)
	c.Provider.AccessToken = os.ExpandEnv(c.Provider.AccessToken)
	c.Provider.AccessTokenFile = os.ExpandEnv(c.Provider.AccessTokenFile)
	c.Content.RootDir = os.ExpandEnv(c.Content.RootDir)
	c.Repo.URL = os.ExpandEnv(c.Repo.URL)
	c.Repo.Ref = os.ExpandEnv(c.Repo.Ref)
	c.Repo.Subdir = os.ExpandEnv(c.Repo.Subdir)
	c.Paths.StateDir = os.ExpandEnv(c.Paths.StateDir)
	c.Auth.SSHKeyFile = os.ExpandEnv(c.Auth.SSHKeyFile)
	c.Auth.HTTPSTokenFile = os.ExpandEnv(c.Auth.HTTPSTokenFile)
	c.Serve.ListenAddr = os.ExpandEnv(c.Serve.ListenAddr)
	c.Serve.GitHubWebhookSecretFile = os.ExpandEnv(c.Serve.GitHubWebhookSecretFile)
}

// applyDefaults fills in zero-value fields with sensible defaults.
func (c *Config) applyDefaults() {
	if c.Provider.PerPage == 0 {
		c.Provider.PerPage = 100
	}
	if c.Provider.Concurrency == 0 {
		c.Provider.Concurrency = 4
	}
	if c.Provider.Timeout == 0 {
		c.Provider.Timeout = 30 * time.Second
	}
	if c.Paths.StateDir == "" {
		c.Paths.StateDir = filepath.Join(xdg.StateHome, appName)
	}
	if c.Serve.Enabled && len(c.Serve.AllowedEventTypes) == 0 {
		c.Serve.AllowedEventTypes = []string{"push"}
	}
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	// Validate provider config
	if c.Provider.URL == "" {
		return fmt.Errorf("provider.url is required")
	}
	if !strings.HasPrefix(c.Provider.URL, "https://") && !strings.HasPrefix(c.Provider.URL, "http://") {
		return fmt.Errorf("provider.url must be an http(s) URL: %s", c.Provider.URL)
	}
	if c.Provider.AccessToken == "" && c.Provider.AccessTokenFile == "" {
		return fmt.Errorf("one of provider.access_token or provider.access_token_file is required")
	}
	if c.Provider.AccessToken != "" && c.Provider.AccessTokenFile != "" {
		return fmt.Errorf("provider: only one of access_token or access_token_file may be set")
	}
	if c.Provider.PerPage < 1 {
		return fmt.Errorf("provider.per_page must be positive: %d", c.Provider.PerPage)
	}
	if c.Provider.Concurrency < 1 {
		return fmt.Errorf("provider.concurrency must be positive: %d", c.Provider.Concurrency)
	}
	if c.Provider.Timeout < 0 {
		return fmt.Errorf("provider.timeout must not be negative: %s", c.Provider.Timeout)
	}

	// Validate paths
	if !filepath.IsAbs(c.Paths.StateDir) {
		return fmt.Errorf("paths.state_dir must be an absolute path: %s", c.Paths.StateDir)
	}

	// Validate auth: only one auth method may be configured
	if c.Auth.SSHKeyFile != "" && c.Auth.HTTPSTokenFile != "" {
		return fmt.Errorf("auth: only one of ssh_key_file or https_token_file may be set")
	}

	// Validate auth: when auth is configured, the URL scheme must match
	if c.Auth.SSHKeyFile != "" && !c.IsSSH() {
		return fmt.Errorf("auth.ssh_key_file is set but repo.url does not use an SSH scheme (git@ or ssh://)")
	}
	if c.Auth.HTTPSTokenFile != "" && !c.IsHTTPS() {
		return fmt.Errorf("auth.https_token_file is set but repo.url does not use HTTPS scheme")
	}

	// Validate serve config if enabled
	if c.Serve.Enabled {
		if c.Repo.URL == "" {
			return fmt.Errorf("repo.url is required when serve is enabled")
		}
		if c.Repo.Ref == "" {
			return fmt.Errorf("repo.ref is required when serve is enabled")
		}
		if c.Serve.ListenAddr == "" {
			return fmt.Errorf("serve.listen_addr is required when serve is enabled")
		}
		if c.Serve.GitHubWebhookSecretFile == "" {
			return fmt.Errorf("serve.github_webhook_secret_file is required when serve is enabled")
		}
	}

	return nil
}

// ReadAccessToken returns the provider access token, reading it from
// provider.access_token_file when configured
func (c *Config) ReadAccessToken() (string, error) {
	if c.Provider.AccessTokenFile == "" {
		return c.Provider.AccessToken, nil
	}
	data, err := os.ReadFile(c.Provider.AccessTokenFile)
	if err != nil {
		return "", fmt.Errorf("failed to read access token file: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", fmt.Errorf("access token file %s is empty", c.Provider.AccessTokenFile)
	}
	return token, nil
}

// RepoDir returns the path where the git repository is checked out
func (c *Config) RepoDir() string {
	return filepath.Join(c.Paths.StateDir, "repo")
}

// RepoContentDir returns the path within the checkout holding the content
func (c *Config) RepoContentDir() string {
	if c.Repo.Subdir == "" {
		return c.RepoDir()
	}
	return filepath.Join(c.RepoDir(), c.Repo.Subdir)
}

// AuthMethod returns a description of the configured auth method
func (c *Config) AuthMethod() string {
	if c.Auth.SSHKeyFile != "" {
		return "ssh"
	}
	if c.Auth.HTTPSTokenFile != "" {
		return "https"
	}
	return "none"
}

// IsHTTPS returns true if the repo URL uses HTTPS
func (c *Config) IsHTTPS() bool {
	return strings.HasPrefix(c.Repo.URL, "https://")
}

// IsSSH returns true if the repo URL uses SSH
func (c *Config) IsSSH() bool {
	return strings.HasPrefix(c.Repo.URL, "git@") || strings.HasPrefix(c.Repo.URL, "ssh://")
}
