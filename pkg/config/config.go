package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/sanisideup/jira-workspace-sync/pkg/models"
)

// Config represents the jws configuration
type Config struct {
	Domain            string            `yaml:"domain" mapstructure:"domain"`                                   // e.g., "yourcompany.atlassian.net"
	Email             string            `yaml:"email" mapstructure:"email"`                                     // User email for API token
	APIToken          string            `yaml:"api_token,omitempty" mapstructure:"api_token"`                   // Plaintext token (prefer use_keyring)
	UseKeyring        bool              `yaml:"use_keyring,omitempty" mapstructure:"use_keyring"`               // Whether the token lives in the OS keyring
	KeyringBackend    string            `yaml:"keyring_backend,omitempty" mapstructure:"keyring_backend"`       // auto, keychain, env
	DefaultProject    string            `yaml:"default_project,omitempty" mapstructure:"default_project"`       // Optional default project key
	FieldMappings     map[string]string `yaml:"field_mappings,omitempty" mapstructure:"field_mappings"`         // Alias to custom field ID, e.g. story_points
	WorkspaceFile     string            `yaml:"workspace_file,omitempty" mapstructure:"workspace_file"`         // Local workspace store
	ImportConcurrency int               `yaml:"import_concurrency,omitempty" mapstructure:"import_concurrency"` // Projects fetched in parallel on import
	RetryReads        bool              `yaml:"retry_reads,omitempty" mapstructure:"retry_reads"`               // Retry discovery GETs on 429/5xx
	IssueType         string            `yaml:"issue_type,omitempty" mapstructure:"issue_type"`                 // Issue type used on export (default Task)
	Telemetry         bool              `yaml:"telemetry,omitempty" mapstructure:"telemetry"`                   // Emit OpenTelemetry spans and metrics to stderr
	LogLevel          string            `yaml:"log_level,omitempty" mapstructure:"log_level"`                   // debug, info, warn, error
}

const (
	// ConfigDirName is the name of the config directory
	ConfigDirName = ".jws"
	// ConfigFileName is the name of the config file
	ConfigFileName = "config.yaml"
	// WorkspaceFileName is the default workspace store file name
	WorkspaceFileName = "workspace.yaml"
	// ConfigFilePerms is the file permission for the config file (read/write for owner only)
	ConfigFilePerms = 0600
	// ConfigDirPerms is the directory permission for the config directory
	ConfigDirPerms = 0700

	// EnvPrefix prefixes every environment override, e.g. JWS_DOMAIN
	EnvPrefix = "JWS"

	// DefaultImportConcurrency bounds parallel project fetches on import
	DefaultImportConcurrency = 3
	// DefaultIssueType is the issue type used when exporting tasks
	DefaultIssueType = "Task"
	// StoryPointsAlias is the field_mappings key that pins the story points field
	StoryPointsAlias = "story_points"
)

// ErrNotConfigured is returned when neither a config file nor environment
// overrides provide the required settings
var ErrNotConfigured = errors.New("jws is not configured")

// GetConfigPath returns the full path to the config file
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, ConfigFileName), nil
}

// GetConfigDir returns the full path to the config directory
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ConfigDirName), nil
}

// Load reads the config file from the default location and returns a Config struct
func Load() (*Config, error) {
	configPath, err := GetConfigPath()
	if err != nil {
		return nil, err
	}
	return LoadFromPath(configPath)
}

// LoadFromPath reads the config file at configPath, applies JWS_* environment
// overrides and validates the result. A missing file is not an error as long
// as the environment supplies the required keys.
func LoadFromPath(configPath string) (*Config, error) {
	config, fileFound, err := read(configPath)
	if err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		if !fileFound {
			return nil, fmt.Errorf("%w: config file not found at %s. Run 'jws configure' to set up", ErrNotConfigured, configPath)
		}
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

// LoadOrDefault loads the config file or returns an empty config if not found
func LoadOrDefault(configPath string) *Config {
	config, _, err := read(configPath)
	if err != nil {
		return &Config{
			FieldMappings:     make(map[string]string),
			ImportConcurrency: DefaultImportConcurrency,
			IssueType:         DefaultIssueType,
		}
	}
	return config
}

func read(configPath string) (*Config, bool, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	fileFound := false
	if _, err := os.Stat(configPath); err == nil {
		fileFound = true
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, true, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return nil, false, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fileFound, fmt.Errorf("failed to decode config: %w", err)
	}
	if config.FieldMappings == nil {
		config.FieldMappings = make(map[string]string)
	}
	if config.ImportConcurrency <= 0 {
		config.ImportConcurrency = DefaultImportConcurrency
	}
	return &config, fileFound, nil
}

// setDefaults registers every key so AutomaticEnv can override it
func setDefaults(v *viper.Viper) {
	v.SetDefault("domain", "")
	v.SetDefault("email", "")
	v.SetDefault("api_token", "")
	v.SetDefault("use_keyring", false)
	v.SetDefault("keyring_backend", "auto")
	v.SetDefault("default_project", "")
	v.SetDefault("field_mappings", map[string]string{})
	v.SetDefault("workspace_file", "")
	v.SetDefault("import_concurrency", DefaultImportConcurrency)
	v.SetDefault("retry_reads", false)
	v.SetDefault("issue_type", DefaultIssueType)
	v.SetDefault("telemetry", false)
	v.SetDefault("log_level", "")
}

// Save writes the config to the default config file
func (c *Config) Save() error {
	configPath, err := GetConfigPath()
	if err != nil {
		return err
	}
	return c.SaveTo(configPath)
}

// SaveTo writes the config to configPath with owner-only permissions
func (c *Config) SaveTo(configPath string) error {
	// Validate before saving
	if err := c.Validate(); err != nil {
		return fmt.Errorf("cannot save invalid config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), ConfigDirPerms); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, ConfigFilePerms); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the config has all required fields
func (c *Config) Validate() error {
	if c.Domain == "" {
		return fmt.Errorf("domain is required")
	}
	if c.Email == "" {
		return fmt.Errorf("email is required")
	}
	// API token can be empty if using keyring
	if c.APIToken == "" && !c.UseKeyring {
		return fmt.Errorf("api_token is required (or enable use_keyring)")
	}
	return nil
}

// Credentials returns the connection credentials. When use_keyring is set
// the caller fills APIToken from the secrets store first.
func (c *Config) Credentials() models.Credentials {
	return models.Credentials{
		Domain:   c.Domain,
		Email:    c.Email,
		APIToken: c.APIToken,
	}
}

// StoryPointsField returns the pinned story points field key, if configured
func (c *Config) StoryPointsField() string {
	return c.FieldMappings[StoryPointsAlias]
}

// WorkspacePath returns the workspace store path, defaulting to ~/.jws/workspace.yaml
func (c *Config) WorkspacePath() (string, error) {
	if c.WorkspaceFile != "" {
		return c.WorkspaceFile, nil
	}
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, WorkspaceFileName), nil
}

// ExportIssueType returns the configured export issue type
func (c *Config) ExportIssueType() string {
	if c.IssueType == "" {
		return DefaultIssueType
	}
	return c.IssueType
}
