package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config represents the main configuration for vb.
type Config struct {
	BaseDir  string `toml:"base_dir"`
	LogDir   string `toml:"log_dir"`
	LogLevel string `toml:"log_level"` // "debug", "info" (default), "warn" or "error"

	VaultPath       string   `toml:"vault_path"`
	StateDir        string   `toml:"state_dir"`
	DebounceSeconds int      `toml:"debounce_seconds"`
	ListenAddr      string   `toml:"listen_addr"`
	DryRun          bool     `toml:"dry_run"`
	Ignore          []string `toml:"ignore"`

	// CommandTimeoutSeconds bounds every git and restic invocation. 0 means unbounded.
	CommandTimeoutSeconds int `toml:"command_timeout_seconds"`

	Git        GitConfig        `toml:"git"`
	Restic     ResticConfig     `toml:"restic"`
	LLM        LLMConfig        `toml:"llm"`
	Notify     NotifyConfig     `toml:"notify"`
	Database   DatabaseConfig   `toml:"database"`
	Offsite    OffsiteConfig    `toml:"offsite"`
	Encryption EncryptionConfig `toml:"encryption"`
}

// GitConfig is the identity used for backup commits.
type GitConfig struct {
	UserName  string `toml:"user_name"`
	UserEmail string `toml:"user_email"`
}

// ResticConfig points at the snapshot repository.
type ResticConfig struct {
	Repository   string          `toml:"repository"`
	Password     string          `toml:"password,omitempty"`
	PasswordFile string          `toml:"password_file,omitempty"`
	Tag          string          `toml:"tag"`
	Retention    RetentionConfig `toml:"retention"`
	AWS          AWSConfig       `toml:"aws"`
}

// RetentionConfig is the forget policy applied after each snapshot.
type RetentionConfig struct {
	Daily   int `toml:"daily"`
	Weekly  int `toml:"weekly"`
	Monthly int `toml:"monthly"`
}

// AWSConfig supplies credentials for s3: restic repositories. Empty fields
// fall back to the AWS SDK default chain.
type AWSConfig struct {
	Region          string `toml:"region,omitempty"`
	Profile         string `toml:"profile,omitempty"`
	AccessKeyID     string `toml:"access_key_id,omitempty"`
	SecretAccessKey string `toml:"secret_access_key,omitempty"`
}

// LLMConfig configures commit message generation.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type LLMConfig struct {
	Type   string `toml:"type"` // "" (disabled), "anthropic" or "openai"
	APIURL string `toml:"api_url,omitempty"`
	APIKey string `toml:"api_key,omitempty"`
	Model  string `toml:"model,omitempty"`
}

// NotifyConfig lists webhook targets and which outcomes reach them.
type NotifyConfig struct {
	Level     string                 `toml:"level"` // "all", "errors", "success" or "none"
	Providers []NotifyProviderConfig `toml:"providers"`
}

// NotifyProviderConfig is one webhook target.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type NotifyProviderConfig struct {
	Type string `toml:"type"` // "discord", "slack" or "webhook"
	URL  string `toml:"url"`

	// Discord-specific fields
	Username  string `toml:"username,omitempty"`
	AvatarURL string `toml:"avatar_url,omitempty"`
}

// DatabaseConfig represents configuration for the backup run ledger.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type DatabaseConfig struct {
	Type    string `toml:"type"`               // "sqlite" or "memory"
	DataDir string `toml:"data_dir,omitempty"` // only used for type=sqlite
}

// OffsiteConfig represents where ledger copies are mirrored after each run.
// This uses a tagged union pattern - the Type field determines which other fields are relevant.
type OffsiteConfig struct {
	Type string `toml:"type"` // "" (disabled), "memory", "filesystem" or "s3"
	Name string `toml:"name"`

	// S3-specific fields (only used when Type == "s3")
	S3Bucket   string `toml:"s3_bucket,omitempty"`
	S3Prefix   string `toml:"s3_prefix,omitempty"`
	S3Region   string `toml:"s3_region,omitempty"`
	S3Endpoint string `toml:"s3_endpoint,omitempty"`

	// FileSystem-specific fields (only used when Type == "filesystem")
	FSRoot string `toml:"fs_root,omitempty"`
}

// EncryptionConfig holds paths to the age key pair used for ledger copies.
type EncryptionConfig struct {
	Type           string `toml:"type"` // "age" (default), "test" or "none"
	PublicKeyPath  string `toml:"public_key_path"`
	PrivateKeyPath string `toml:"private_key_path"`

	// Recipients are extra age public keys that can also decrypt ledger copies.
	Recipients []string `toml:"recipients,omitempty"`
}

// Defaults for a container deployment of the backup service.
const (
	DefaultVaultPath       = "/vault"
	DefaultDebounceSeconds = 300
	DefaultListenAddr      = ":8080"
	DefaultGitUserName     = "Obsidian Backup"
	DefaultGitUserEmail    = "backup@local"
	DefaultAnthropicURL    = "https://api.anthropic.com/v1/messages"
	DefaultAnthropicModel  = "claude-haiku-4-5-20251001"
	DefaultOpenAIModel     = "anthropic/claude-haiku-4.5"
)

// NewConfig creates a Config with defaults rooted at baseDir.
func NewConfig(baseDir string) *Config {
	return &Config{
		BaseDir:         baseDir,
		LogDir:          filepath.Join(baseDir, "log"),
		LogLevel:        "info",
		VaultPath:       DefaultVaultPath,
		StateDir:        filepath.Join(baseDir, "state"),
		DebounceSeconds: DefaultDebounceSeconds,
		ListenAddr:      DefaultListenAddr,
		Git: GitConfig{
			UserName:  DefaultGitUserName,
			UserEmail: DefaultGitUserEmail,
		},
		Restic: ResticConfig{
			Tag:       "obsidian",
			Retention: RetentionConfig{Daily: 7, Weekly: 4, Monthly: 12},
		},
		Notify:   NotifyConfig{Level: "all"},
		Database: DatabaseConfig{Type: "sqlite", DataDir: filepath.Join(baseDir, "db")},
		Encryption: EncryptionConfig{
			Type:           "age",
			PublicKeyPath:  filepath.Join(baseDir, "keys", "vb.pub"),
			PrivateKeyPath: filepath.Join(baseDir, "keys", "vb.key"),
		},
	}
}

// ApplyEnv overrides fields from the service's environment variables.
// getenv is usually os.Getenv.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	setString := func(name string, dst *string) {
		if v := getenv(name); v != "" {
			*dst = v
		}
	}
	setInt := func(name string, dst *int) error {
		v := getenv(name)
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("environment variable %s must be an integer, got %q", name, v)
		}
		*dst = n
		return nil
	}

	setString("VAULT_PATH", &c.VaultPath)
	setString("STATE_DIR", &c.StateDir)
	setString("GIT_USER_NAME", &c.Git.UserName)
	setString("GIT_USER_EMAIL", &c.Git.UserEmail)
	setString("RESTIC_REPOSITORY", &c.Restic.Repository)
	setString("RESTIC_PASSWORD", &c.Restic.Password)
	setString("RESTIC_PASSWORD_FILE", &c.Restic.PasswordFile)
	setString("LOG_LEVEL", &c.LogLevel)

	for name, dst := range map[string]*int{
		"DEBOUNCE_SECONDS":  &c.DebounceSeconds,
		"RETENTION_DAILY":   &c.Restic.Retention.Daily,
		"RETENTION_WEEKLY":  &c.Restic.Retention.Weekly,
		"RETENTION_MONTHLY": &c.Restic.Retention.Monthly,
		"COMMAND_TIMEOUT":   &c.CommandTimeoutSeconds,
	} {
		if err := setInt(name, dst); err != nil {
			return err
		}
	}

	var port int
	if err := setInt("HEALTH_PORT", &port); err != nil {
		return err
	}
	if port > 0 {
		c.ListenAddr = ":" + strconv.Itoa(port)
	}

	if v := getenv("DRY_RUN"); v != "" {
		c.DryRun = isTruthy(v)
	}

	switch {
	case getenv("LLM_API_URL") != "":
		c.LLM = LLMConfig{Type: "openai", APIURL: getenv("LLM_API_URL"), APIKey: getenv("LLM_API_KEY"), Model: DefaultOpenAIModel}
		setString("LLM_MODEL", &c.LLM.Model)
	case getenv("ANTHROPIC_API_KEY") != "":
		c.LLM = LLMConfig{Type: "anthropic", APIURL: DefaultAnthropicURL, APIKey: getenv("ANTHROPIC_API_KEY"), Model: DefaultAnthropicModel}
		setString("ANTHROPIC_API_URL", &c.LLM.APIURL)
		setString("ANTHROPIC_MODEL", &c.LLM.Model)
	}

	if v := strings.ToLower(getenv("NOTIFY_LEVEL")); v != "" {
		switch v {
		case "all", "errors", "success", "none":
			c.Notify.Level = v
		default:
			c.Notify.Level = "all"
		}
	}
	if url := getenv("DISCORD_WEBHOOK_URL"); url != "" {
		c.setProvider(NotifyProviderConfig{
			Type:      "discord",
			URL:       url,
			Username:  getenv("DISCORD_WEBHOOK_USERNAME"),
			AvatarURL: getenv("DISCORD_WEBHOOK_AVATAR_URL"),
		})
	}
	if url := getenv("SLACK_WEBHOOK_URL"); url != "" {
		c.setProvider(NotifyProviderConfig{Type: "slack", URL: url})
	}
	if url := getenv("WEBHOOK_URL"); url != "" {
		c.setProvider(NotifyProviderConfig{Type: "webhook", URL: url})
	}
	return nil
}

// setProvider replaces the configured provider of the same type, or adds it.
func (c *Config) setProvider(p NotifyProviderConfig) {
	for i := range c.Notify.Providers {
		if c.Notify.Providers[i].Type == p.Type {
			c.Notify.Providers[i] = p
			return
		}
	}
	c.Notify.Providers = append(c.Notify.Providers, p)
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1", "yes":
		return true
	}
	return false
}

// Validate checks settings that would otherwise fail deep inside a run.
func (c *Config) Validate() error {
	if c.VaultPath == "" {
		return fmt.Errorf("vault_path is required")
	}
	if c.DebounceSeconds < 0 {
		return fmt.Errorf("debounce_seconds must not be negative, got %d", c.DebounceSeconds)
	}
	if c.CommandTimeoutSeconds < 0 {
		return fmt.Errorf("command_timeout_seconds must not be negative, got %d", c.CommandTimeoutSeconds)
	}
	switch c.Notify.Level {
	case "", "all", "errors", "success", "none":
	default:
		return fmt.Errorf("unknown notify level: %q", c.Notify.Level)
	}
	return nil
}

// Redacted returns a copy with passwords, API keys and webhook URLs masked,
// for printing.
func (c *Config) Redacted() *Config {
	r := *c
	r.Ignore = append([]string(nil), c.Ignore...)
	r.Encryption.Recipients = append([]string(nil), c.Encryption.Recipients...)
	mask(&r.Restic.Password)
	mask(&r.Restic.AWS.SecretAccessKey)
	mask(&r.LLM.APIKey)
	r.Notify.Providers = make([]NotifyProviderConfig, len(c.Notify.Providers))
	for i, p := range c.Notify.Providers {
		mask(&p.URL)
		r.Notify.Providers[i] = p
	}
	return &r
}

func mask(s *string) {
	if *s != "" {
		*s = redactedValue
	}
}

const redactedValue = "<redacted>"

// Manager handles reading and writing configuration.
type Manager struct{}

// Read decodes a Config from the provided reader.
func (m *Manager) Read(r io.Reader) (*Config, error) {
	var cfg Config
	if _, err := toml.NewDecoder(r).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return &cfg, nil
}

// Write encodes a Config to the provided writer.
func (m *Manager) Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return nil
}

// ReadFromFile reads a Config from the specified file path.
func ReadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	cfg, err := m.Read(f)
	if err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}
	return cfg, nil
}

// Load reads the config file at path if it exists, otherwise starts from
// NewConfig(baseDir), and then applies environment overrides.
func Load(path, baseDir string, getenv func(string) string) (*Config, error) {
	cfg := NewConfig(baseDir)
	if _, err := os.Stat(path); err == nil {
		cfg, err = ReadFromFile(path)
		if err != nil {
			return nil, err
		}
	}
	if err := cfg.ApplyEnv(getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// writeToFile writes a Config to the specified file path.
func writeToFile(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	m := &Manager{}
	if err := m.Write(f, cfg); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// Init initializes a new config file at the specified path with the provided Config.
func Init(path string, cfg *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := writeToFile(path, cfg); err != nil {
		return fmt.Errorf("initializing config: %w", err)
	}
	return nil
}
