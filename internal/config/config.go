// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"

	"github.com/xkilldash9x/chatpilot/internal/browser/session"
	"github.com/xkilldash9x/chatpilot/internal/chat"
	"github.com/xkilldash9x/chatpilot/internal/login"
	"github.com/xkilldash9x/chatpilot/internal/stabilizer"
)

// Interface is the read-only view of the configuration handed to components.
type Interface interface {
	Logger() LoggerConfig
	Browser() BrowserConfig
	Session() SessionConfig
}

// Config holds the entire application configuration. It is built once per run
// and not modified afterwards.
type Config struct {
	LoggerCfg  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	BrowserCfg BrowserConfig `mapstructure:"browser" yaml:"browser"`
	SessionCfg SessionConfig `mapstructure:"session" yaml:"session"`
}

var _ Interface = (*Config)(nil)

func (c *Config) Logger() LoggerConfig   { return c.LoggerCfg }
func (c *Config) Browser() BrowserConfig { return c.BrowserCfg }
func (c *Config) Session() SessionConfig { return c.SessionCfg }

// LoggerConfig holds all the configuration for the logger.
type LoggerConfig struct {
	Level       string      `mapstructure:"level" yaml:"level"`
	Format      string      `mapstructure:"format" yaml:"format"`
	AddSource   bool        `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string      `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string      `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int         `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int         `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int         `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool        `mapstructure:"compress" yaml:"compress"`
	Colors      ColorConfig `mapstructure:"colors" yaml:"colors"`
}

// ColorConfig defines the color names for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// BrowserConfig holds settings for the Chrome instance.
type BrowserConfig struct {
	Headless     bool     `mapstructure:"headless" yaml:"headless"`
	WindowWidth  int      `mapstructure:"window_width" yaml:"window_width"`
	WindowHeight int      `mapstructure:"window_height" yaml:"window_height"`
	Lang         string   `mapstructure:"lang" yaml:"lang"`
	Incognito    bool     `mapstructure:"incognito" yaml:"incognito"`
	ExecPath     string   `mapstructure:"exec_path" yaml:"exec_path"`
	Args         []string `mapstructure:"args" yaml:"args"`
}

// SessionConfig configures one chat interaction.
type SessionConfig struct {
	BaseURL string `mapstructure:"base_url" yaml:"base_url"`
	// Email and Password are optional. Leaving either empty skips login.
	Email               string         `mapstructure:"email" yaml:"email"`
	Password            string         `mapstructure:"password" yaml:"-"`
	Timeout             time.Duration  `mapstructure:"timeout" yaml:"timeout"`
	PageLoadTimeout     time.Duration  `mapstructure:"page_load_timeout" yaml:"page_load_timeout"`
	LocatorPollInterval time.Duration  `mapstructure:"locator_poll_interval" yaml:"locator_poll_interval"`
	ArtifactDir         string         `mapstructure:"artifact_dir" yaml:"artifact_dir"`
	Login               LoginConfig    `mapstructure:"login" yaml:"login"`
	Response            ResponseConfig `mapstructure:"response" yaml:"response"`
	Pacing              PacingConfig   `mapstructure:"pacing" yaml:"pacing"`
	// Selectors overrides locator sets by target name, e.g.
	// prompt: ["id:prompt-textarea", "css:textarea"].
	Selectors map[string][]string `mapstructure:"selectors" yaml:"selectors"`
}

// LoginConfig is the login retry policy.
type LoginConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	Backoff     time.Duration `mapstructure:"backoff" yaml:"backoff"`
}

// ResponseConfig controls response stabilization.
type ResponseConfig struct {
	MaxWait      time.Duration `mapstructure:"max_wait" yaml:"max_wait"`
	QuietPeriod  time.Duration `mapstructure:"quiet_period" yaml:"quiet_period"`
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
}

// PacingConfig holds settle delays after animated UI actions.
type PacingConfig struct {
	MenuOpen     time.Duration `mapstructure:"menu_open" yaml:"menu_open"`
	ModelApply   time.Duration `mapstructure:"model_apply" yaml:"model_apply"`
	AttachOpen   time.Duration `mapstructure:"attach_open" yaml:"attach_open"`
	UploadSettle time.Duration `mapstructure:"upload_settle" yaml:"upload_settle"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Defaults are static; failing here is a programming error.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for every configuration key.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "chatpilot")
	v.SetDefault("logger.log_file", "logs/app.log")
	v.SetDefault("logger.max_size", 1)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", false)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Browser --
	v.SetDefault("browser.headless", false)
	v.SetDefault("browser.window_width", 1920)
	v.SetDefault("browser.window_height", 1080)
	v.SetDefault("browser.lang", "en-US")
	v.SetDefault("browser.incognito", true)
	v.SetDefault("browser.exec_path", "")
	v.SetDefault("browser.args", []string{})

	// -- Session --
	v.SetDefault("session.base_url", "https://chat.openai.com/")
	v.SetDefault("session.email", "")
	v.SetDefault("session.password", "")
	v.SetDefault("session.timeout", "30s")
	v.SetDefault("session.page_load_timeout", "60s")
	v.SetDefault("session.locator_poll_interval", "500ms")
	v.SetDefault("session.artifact_dir", "logs")
	v.SetDefault("session.login.max_attempts", 3)
	v.SetDefault("session.login.backoff", "3s")
	v.SetDefault("session.response.max_wait", "60s")
	v.SetDefault("session.response.quiet_period", "2s")
	v.SetDefault("session.response.poll_interval", "1s")
	v.SetDefault("session.pacing.menu_open", "1s")
	v.SetDefault("session.pacing.model_apply", "2s")
	v.SetDefault("session.pacing.attach_open", "1s")
	v.SetDefault("session.pacing.upload_settle", "3s")
}

// NewConfigFromViper unmarshals and validates the configuration held by v.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Credentials keep their historical variable names; the prefixed form wins
	// when both are set.
	if err := v.BindEnv("session.email", "CHATPILOT_SESSION_EMAIL", "CHATGPT_EMAIL"); err != nil {
		return nil, err
	}
	if err := v.BindEnv("session.password", "CHATPILOT_SESSION_PASSWORD", "CHATGPT_PASSWORD"); err != nil {
		return nil, err
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for values no component could work with.
func (c *Config) Validate() error {
	var level zapcore.Level
	if err := level.UnmarshalText([]byte(c.LoggerCfg.Level)); err != nil {
		return fmt.Errorf("logger.level %q is not a valid level", c.LoggerCfg.Level)
	}
	if c.BrowserCfg.WindowWidth <= 0 || c.BrowserCfg.WindowHeight <= 0 {
		return fmt.Errorf("browser.window_width and browser.window_height must be positive integers")
	}
	return c.SessionCfg.Validate()
}

// Validate checks the session settings.
func (s SessionConfig) Validate() error {
	u, err := url.Parse(s.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("session.base_url %q must be an absolute http(s) URL", s.BaseURL)
	}
	if s.Timeout <= 0 {
		return errors.New("session.timeout must be positive")
	}
	if s.PageLoadTimeout <= 0 {
		return errors.New("session.page_load_timeout must be positive")
	}
	if s.LocatorPollInterval <= 0 {
		return errors.New("session.locator_poll_interval must be positive")
	}
	if s.ArtifactDir == "" {
		return errors.New("session.artifact_dir must not be empty")
	}
	if err := s.retryPolicy().Validate(); err != nil {
		return fmt.Errorf("session.login: %w", err)
	}
	if err := s.stabilizerConfig().Validate(); err != nil {
		return fmt.Errorf("session.response: %w", err)
	}
	if _, err := chat.DefaultTargets().Override(s.Selectors); err != nil {
		return fmt.Errorf("session.selectors: %w", err)
	}
	return nil
}

// HasCredentials reports whether login will be attempted.
func (s SessionConfig) HasCredentials() bool {
	return s.credentials().Present()
}

func (s SessionConfig) credentials() login.Credentials {
	return login.Credentials{Email: s.Email, Password: s.Password}
}

func (s SessionConfig) retryPolicy() login.RetryPolicy {
	return login.RetryPolicy{MaxAttempts: s.Login.MaxAttempts, Backoff: s.Login.Backoff}
}

func (s SessionConfig) stabilizerConfig() stabilizer.Config {
	return stabilizer.Config{
		MaxWait:      s.Response.MaxWait,
		QuietPeriod:  s.Response.QuietPeriod,
		PollInterval: s.Response.PollInterval,
	}
}

// ChatConfig converts the session settings into a chat.Config.
func (c *Config) ChatConfig() (chat.Config, error) {
	s := c.SessionCfg
	targets, err := chat.DefaultTargets().Override(s.Selectors)
	if err != nil {
		return chat.Config{}, fmt.Errorf("session.selectors: %w", err)
	}
	return chat.Config{
		BaseURL:      s.BaseURL,
		Credentials:  s.credentials(),
		Timeout:      s.Timeout,
		PollInterval: s.LocatorPollInterval,
		Login:        s.retryPolicy(),
		Response:     s.stabilizerConfig(),
		Pacing: chat.Pacing{
			MenuOpen:     s.Pacing.MenuOpen,
			ModelApply:   s.Pacing.ModelApply,
			AttachOpen:   s.Pacing.AttachOpen,
			UploadSettle: s.Pacing.UploadSettle,
		},
		ArtifactDir: s.ArtifactDir,
		Targets:     targets,
	}, nil
}

// BrowserOptions converts the browser settings into launch options.
func (c *Config) BrowserOptions() session.Options {
	b := c.BrowserCfg
	opts := session.DefaultOptions()
	opts.Headless = b.Headless
	opts.WindowWidth = b.WindowWidth
	opts.WindowHeight = b.WindowHeight
	opts.Lang = b.Lang
	opts.Incognito = b.Incognito
	opts.ExecPath = b.ExecPath
	opts.Args = append([]string(nil), b.Args...)
	opts.PageLoadTimeout = c.SessionCfg.PageLoadTimeout
	return opts
}
