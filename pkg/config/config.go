package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const DefaultPath = "config.json"

type Config struct {
	Accounts      []Account      `yaml:"accounts" json:"accounts"`
	Browser       BrowserConfig  `yaml:"browser_settings" json:"browser_settings"`
	Stealth       StealthConfig  `yaml:"stealth" json:"stealth"`
	Actions       ActionsConfig  `yaml:"actions" json:"actions"`
	Executor      ExecutorConfig `yaml:"executor" json:"executor"`
	Storage       StorageConfig  `yaml:"storage" json:"storage"`
	Logging       LoggingConfig  `yaml:"logging" json:"logging"`
	Batch         BatchConfig    `yaml:"batch" json:"batch"`
	Comments      CommentsConfig `yaml:"comments" json:"comments"`
	SelectorsFile string         `yaml:"selectors_file" json:"selectors_file"`
}

type Account struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

type BrowserConfig struct {
	Headless       bool     `yaml:"headless" json:"headless"`
	WaitTime       int      `yaml:"wait_time" json:"wait_time"`
	Bin            string   `yaml:"bin" json:"bin"`
	UserDataDir    string   `yaml:"user_data_dir" json:"user_data_dir"`
	ViewportWidth  int      `yaml:"viewport_width" json:"viewport_width"`
	ViewportHeight int      `yaml:"viewport_height" json:"viewport_height"`
	UserAgents     []string `yaml:"user_agents" json:"user_agents"`
	NoSandbox      bool     `yaml:"no_sandbox" json:"no_sandbox"`
}

// WaitTimeout is the bounded wait the resolver applies to the first candidate.
func (b BrowserConfig) WaitTimeout() time.Duration {
	return time.Duration(b.WaitTime) * time.Second
}

type StealthConfig struct {
	Timing         TimingConfig      `yaml:"timing" json:"timing"`
	Typing         TypingConfig      `yaml:"typing" json:"typing"`
	Fingerprinting FingerprintConfig `yaml:"fingerprinting" json:"fingerprinting"`
}

type TimingConfig struct {
	SettleDelay    Duration `yaml:"settle_delay" json:"settle_delay"`
	ScrollSettle   Duration `yaml:"scroll_settle" json:"scroll_settle"`
	PageLoadWait   Duration `yaml:"page_load_wait" json:"page_load_wait"`
	LoginSettle    Duration `yaml:"login_settle" json:"login_settle"`
	MinActionDelay Duration `yaml:"min_action_delay" json:"min_action_delay"`
	MaxActionDelay Duration `yaml:"max_action_delay" json:"max_action_delay"`
	HumanVariation float64  `yaml:"human_variation" json:"human_variation"`
}

type TypingConfig struct {
	Enabled     bool     `yaml:"enabled" json:"enabled"`
	MinKeyDelay Duration `yaml:"min_key_delay" json:"min_key_delay"`
	MaxKeyDelay Duration `yaml:"max_key_delay" json:"max_key_delay"`
}

type FingerprintConfig struct {
	RotateUserAgent   bool `yaml:"rotate_user_agent" json:"rotate_user_agent"`
	DisableAutomation bool `yaml:"disable_automation" json:"disable_automation"`
}

type ActionsConfig struct {
	Like    bool `yaml:"like" json:"like"`
	Comment bool `yaml:"comment" json:"comment"`
	Share   bool `yaml:"share" json:"share"`
}

type ExecutorConfig struct {
	MaxAttempts int `yaml:"max_attempts" json:"max_attempts"`
}

type StorageConfig struct {
	DataDir        string `yaml:"data_dir" json:"data_dir"`
	SessionFile    string `yaml:"session_file" json:"session_file"`
	RestoreSession bool   `yaml:"restore_session" json:"restore_session"`
	ActivityDir    string `yaml:"activity_dir" json:"activity_dir"`
	HistoryDB      string `yaml:"history_db" json:"history_db"`
	ScreenshotsDir string `yaml:"screenshots_dir" json:"screenshots_dir"`
}

type LoggingConfig struct {
	Level      string `yaml:"level" json:"level"`
	Format     string `yaml:"format" json:"format"`
	OutputFile string `yaml:"output_file" json:"output_file"`
	MaxSize    int    `yaml:"max_size" json:"max_size"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
}

type BatchConfig struct {
	Delay Duration `yaml:"delay" json:"delay"`
}

type CommentsConfig struct {
	File     string `yaml:"file" json:"file"`
	Category string `yaml:"category" json:"category"`
}

// ConfigurationError reports a missing or invalid setting. It is fatal and
// surfaces before any browser action.
type ConfigurationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	msg := "configuration error"
	if e.Field != "" {
		msg += ": " + e.Field
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

func DefaultConfig() *Config {
	return &Config{
		Browser: BrowserConfig{
			Headless:       false,
			WaitTime:       10,
			UserDataDir:    "./data/browser",
			ViewportWidth:  1366,
			ViewportHeight: 900,
			UserAgents: []string{
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
				"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			},
		},
		Stealth: StealthConfig{
			Timing: TimingConfig{
				SettleDelay:    Duration(1 * time.Second),
				ScrollSettle:   Duration(1 * time.Second),
				PageLoadWait:   Duration(3 * time.Second),
				LoginSettle:    Duration(5 * time.Second),
				MinActionDelay: Duration(500 * time.Millisecond),
				MaxActionDelay: Duration(1500 * time.Millisecond),
				HumanVariation: 0.2,
			},
			Typing: TypingConfig{
				Enabled:     true,
				MinKeyDelay: Duration(40 * time.Millisecond),
				MaxKeyDelay: Duration(120 * time.Millisecond),
			},
			Fingerprinting: FingerprintConfig{
				RotateUserAgent:   false,
				DisableAutomation: true,
			},
		},
		Actions: ActionsConfig{
			Like:    true,
			Comment: true,
			Share:   false,
		},
		Executor: ExecutorConfig{
			MaxAttempts: 3,
		},
		Storage: StorageConfig{
			DataDir:        "./data",
			SessionFile:    "session.json",
			RestoreSession: false,
			ActivityDir:    "./logs",
			HistoryDB:      "./data/history.db",
			ScreenshotsDir: "./logs/screenshots",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			OutputFile: "./logs/fbpost.log",
			MaxSize:    10,
			MaxBackups: 5,
		},
		Batch: BatchConfig{
			Delay: Duration(60 * time.Second),
		},
		Comments: CommentsConfig{
			File:     "comments.json",
			Category: "general",
		},
	}
}

// Load reads the config file at configPath. A missing path or file is a
// ConfigurationError: credentials are never defaulted.
func Load(configPath string) (*Config, error) {
	config := DefaultConfig()

	if configPath == "" {
		configPath = os.Getenv("CONFIG_PATH")
	}
	if configPath == "" {
		return nil, &ConfigurationError{Field: "path", Reason: "no config file given"}
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, &ConfigurationError{Field: "path", Reason: "failed to read config file", Err: err}
	}

	switch ext := strings.ToLower(filepath.Ext(configPath)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, &ConfigurationError{Reason: "failed to parse YAML config", Err: err}
		}
	case ".json":
		if err := json.Unmarshal(data, config); err != nil {
			return nil, &ConfigurationError{Reason: "failed to parse JSON config", Err: err}
		}
	default:
		return nil, &ConfigurationError{Field: "path", Reason: fmt.Sprintf("unsupported config file format: %s", ext)}
	}

	config.applyEnvOverrides()

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (c *Config) applyEnvOverrides() {
	if headless := os.Getenv("BROWSER_HEADLESS"); headless != "" {
		c.Browser.Headless = headless == "true" || headless == "1"
	}
	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}
}

func (c *Config) Validate() error {
	if len(c.Accounts) == 0 {
		return &ConfigurationError{Field: "accounts", Reason: "no accounts configured"}
	}
	if c.Accounts[0].Username == "" {
		return &ConfigurationError{Field: "accounts[0].username", Reason: "username is required"}
	}
	if c.Accounts[0].Password == "" {
		return &ConfigurationError{Field: "accounts[0].password", Reason: "password is required"}
	}
	if c.Browser.WaitTime < 1 {
		return &ConfigurationError{Field: "browser_settings.wait_time", Reason: "must be at least 1 second"}
	}
	if c.Executor.MaxAttempts < 1 {
		return &ConfigurationError{Field: "executor.max_attempts", Reason: "must be at least 1"}
	}
	return nil
}

// Account returns the account used for the run. Only the first is used.
func (c *Config) Account() Account {
	if len(c.Accounts) == 0 {
		return Account{}
	}
	return c.Accounts[0]
}

func (c *Config) Save(path string) error {
	ext := filepath.Ext(path)
	var data []byte
	var err error

	switch ext {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	case ".json":
		data, err = json.MarshalIndent(c, "", "  ")
	default:
		return fmt.Errorf("unsupported config file format: %s", ext)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	return os.WriteFile(path, data, 0600)
}
