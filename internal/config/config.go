// File: internal/config/config.go
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Interface defines the contract for accessing application configuration.
// This allows for dependency injection and mocking in tests.
type Interface interface {
	Logger() LoggerConfig
	Agent() AgentConfig
	Decision() DecisionConfig
	Executor() ExecutorConfig
	Device() DeviceConfig
	Credentials() CredentialsConfig

	// Run-time overrides applied from CLI flags.
	SetAgentMaxTurns(int)
	SetDeviceBackend(string)
	SetADBSerial(string)
	SetDecisionProtocol(string)
	SetDecisionTransport(string)
}

// Config holds the entire application configuration.
type Config struct {
	LoggerCfg      LoggerConfig      `mapstructure:"logger" yaml:"logger"`
	AgentCfg       AgentConfig       `mapstructure:"agent" yaml:"agent"`
	DecisionCfg    DecisionConfig    `mapstructure:"decision" yaml:"decision"`
	ExecutorCfg    ExecutorConfig    `mapstructure:"executor" yaml:"executor"`
	DeviceCfg      DeviceConfig      `mapstructure:"device" yaml:"device"`
	CredentialsCfg CredentialsConfig `mapstructure:"credentials" yaml:"credentials"`
}

var _ Interface = (*Config)(nil)

// --- Interface Method Implementations (Getters) ---

func (c *Config) Logger() LoggerConfig           { return c.LoggerCfg }
func (c *Config) Agent() AgentConfig             { return c.AgentCfg }
func (c *Config) Decision() DecisionConfig       { return c.DecisionCfg }
func (c *Config) Executor() ExecutorConfig       { return c.ExecutorCfg }
func (c *Config) Device() DeviceConfig           { return c.DeviceCfg }
func (c *Config) Credentials() CredentialsConfig { return c.CredentialsCfg }

// --- Interface Method Implementations (Setters) ---

func (c *Config) SetAgentMaxTurns(n int)         { c.AgentCfg.MaxTurns = n }
func (c *Config) SetDeviceBackend(b string)      { c.DeviceCfg.Backend = b }
func (c *Config) SetADBSerial(s string)          { c.DeviceCfg.ADB.Serial = s }
func (c *Config) SetDecisionProtocol(p string)   { c.DecisionCfg.Protocol = p }
func (c *Config) SetDecisionTransport(tr string) { c.DecisionCfg.Transport = tr }

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

// ColorConfig defines the color codes for different log levels.
type ColorConfig struct {
	Debug  string `mapstructure:"debug" yaml:"debug"`
	Info   string `mapstructure:"info" yaml:"info"`
	Warn   string `mapstructure:"warn" yaml:"warn"`
	Error  string `mapstructure:"error" yaml:"error"`
	DPanic string `mapstructure:"dpanic" yaml:"dpanic"`
	Panic  string `mapstructure:"panic" yaml:"panic"`
	Fatal  string `mapstructure:"fatal" yaml:"fatal"`
}

// AgentConfig tunes the turn loop.
type AgentConfig struct {
	MaxTurns       int           `mapstructure:"max_turns" yaml:"max_turns"`
	FailureBackoff time.Duration `mapstructure:"failure_backoff" yaml:"failure_backoff"`
	TurnDelay      time.Duration `mapstructure:"turn_delay" yaml:"turn_delay"`
	EventBuffer    int           `mapstructure:"event_buffer" yaml:"event_buffer"`
}

// Supported decision transports.
const (
	TransportREST  = "rest"
	TransportGenAI = "genai"
)

// Supported decision protocols (the catalog advertised to the model).
const (
	ProtocolFunctions = "functions"
	ProtocolSchema    = "schema"
)

// DecisionConfig configures the decision endpoint client.
type DecisionConfig struct {
	Transport string `mapstructure:"transport" yaml:"transport"`
	Protocol  string `mapstructure:"protocol" yaml:"protocol"`
	Model     string `mapstructure:"model" yaml:"model"`
	// Endpoint overrides the full generateContent URL for the REST transport.
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
	// BaseURL overrides the service root for the genai transport.
	BaseURL           string            `mapstructure:"base_url" yaml:"base_url"`
	APITimeout        time.Duration     `mapstructure:"api_timeout" yaml:"api_timeout"`
	Temperature       float32           `mapstructure:"temperature" yaml:"temperature"`
	MaxOutputTokens   int               `mapstructure:"max_output_tokens" yaml:"max_output_tokens"`
	MaxRetries        int               `mapstructure:"max_retries" yaml:"max_retries"`
	RequestsPerMinute float64           `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
	SafetyFilters     map[string]string `mapstructure:"safety_filters" yaml:"safety_filters"`
	// DefaultWait is the pause of the fallback action used for undecodable replies.
	DefaultWait time.Duration `mapstructure:"default_wait" yaml:"default_wait"`
}

// ExecutorConfig tunes gesture synthesis.
type ExecutorConfig struct {
	TapDuration   time.Duration `mapstructure:"tap_duration" yaml:"tap_duration"`
	SwipeDuration time.Duration `mapstructure:"swipe_duration" yaml:"swipe_duration"`
	MaxWait       time.Duration `mapstructure:"max_wait" yaml:"max_wait"`
	TapToFocus    bool          `mapstructure:"tap_to_focus" yaml:"tap_to_focus"`
}

// Supported device back-ends.
const (
	BackendADB     = "adb"
	BackendBrowser = "browser"
)

// DeviceConfig selects and configures the device back-end.
type DeviceConfig struct {
	Backend string        `mapstructure:"backend" yaml:"backend"`
	ADB     ADBConfig     `mapstructure:"adb" yaml:"adb"`
	Browser BrowserConfig `mapstructure:"browser" yaml:"browser"`
}

// ADBConfig configures the Android Debug Bridge back-end.
type ADBConfig struct {
	Path    string        `mapstructure:"path" yaml:"path"`
	Serial  string        `mapstructure:"serial" yaml:"serial"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// BrowserConfig configures the headless Chrome back-end.
type BrowserConfig struct {
	Headless bool          `mapstructure:"headless" yaml:"headless"`
	ExecPath string        `mapstructure:"exec_path" yaml:"exec_path"`
	Width    int           `mapstructure:"width" yaml:"width"`
	Height   int           `mapstructure:"height" yaml:"height"`
	Scale    float64       `mapstructure:"scale" yaml:"scale"`
	HomeURL  string        `mapstructure:"home_url" yaml:"home_url"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// CredentialsConfig locates the decision endpoint API key.
type CredentialsConfig struct {
	APIKey string `mapstructure:"api_key" yaml:"-"`
	File   string `mapstructure:"file" yaml:"file"`
}

// NewDefaultConfig creates a new configuration struct populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// This should not happen with defaults, but good to be safe.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for various configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "screenpilot")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.colors.debug", "cyan")
	v.SetDefault("logger.colors.info", "green")
	v.SetDefault("logger.colors.warn", "yellow")
	v.SetDefault("logger.colors.error", "red")
	v.SetDefault("logger.colors.dpanic", "magenta")
	v.SetDefault("logger.colors.panic", "magenta")
	v.SetDefault("logger.colors.fatal", "magenta")

	// -- Agent loop --
	v.SetDefault("agent.max_turns", 10)
	v.SetDefault("agent.failure_backoff", "2s")
	v.SetDefault("agent.turn_delay", "1500ms")
	v.SetDefault("agent.event_buffer", 64)

	// -- Decision endpoint --
	v.SetDefault("decision.transport", TransportREST)
	v.SetDefault("decision.protocol", ProtocolFunctions)
	v.SetDefault("decision.model", "gemini-2.5-flash")
	v.SetDefault("decision.api_timeout", "60s")
	v.SetDefault("decision.temperature", 0.1)
	v.SetDefault("decision.max_output_tokens", 1000)
	v.SetDefault("decision.max_retries", 2)
	v.SetDefault("decision.requests_per_minute", 30.0)
	v.SetDefault("decision.default_wait", "2s")

	// -- Executor --
	v.SetDefault("executor.tap_duration", "100ms")
	v.SetDefault("executor.swipe_duration", "300ms")
	v.SetDefault("executor.max_wait", "10s")
	v.SetDefault("executor.tap_to_focus", true)

	// -- Device --
	v.SetDefault("device.backend", BackendADB)
	v.SetDefault("device.adb.path", "adb")
	v.SetDefault("device.adb.timeout", "20s")
	v.SetDefault("device.browser.headless", true)
	v.SetDefault("device.browser.width", 412)
	v.SetDefault("device.browser.height", 915)
	v.SetDefault("device.browser.scale", 2.625)
	v.SetDefault("device.browser.home_url", "https://www.google.com")
	v.SetDefault("device.browser.timeout", "30s")

	// -- Credentials --
	v.SetDefault("credentials.file", "~/.screenpilot/credentials")
}

// NewConfigFromViper creates a new configuration instance from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	var cfg Config

	// Bind environment variables for sensitive data
	_ = v.BindEnv("credentials.api_key", "SCREENPILOT_API_KEY")

	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// The SDK-standard variable is honoured as a last resort.
	if cfg.CredentialsCfg.APIKey == "" {
		cfg.CredentialsCfg.APIKey = os.Getenv("GEMINI_API_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if err := c.AgentCfg.Validate(); err != nil {
		return fmt.Errorf("agent configuration invalid: %w", err)
	}
	if err := c.DecisionCfg.Validate(); err != nil {
		return fmt.Errorf("decision configuration invalid: %w", err)
	}
	if err := c.ExecutorCfg.Validate(); err != nil {
		return fmt.Errorf("executor configuration invalid: %w", err)
	}
	if err := c.DeviceCfg.Validate(); err != nil {
		return fmt.Errorf("device configuration invalid: %w", err)
	}
	return nil
}

// Validate checks the loop settings.
func (a *AgentConfig) Validate() error {
	if a.MaxTurns <= 0 {
		return fmt.Errorf("max_turns must be a positive integer")
	}
	if a.FailureBackoff < 0 || a.TurnDelay < 0 {
		return fmt.Errorf("failure_backoff and turn_delay must not be negative")
	}
	return nil
}

// Validate checks the decision client settings.
func (d *DecisionConfig) Validate() error {
	switch d.Transport {
	case TransportREST, TransportGenAI:
	default:
		return fmt.Errorf("unsupported transport '%s'. Supported: [%s, %s]", d.Transport, TransportREST, TransportGenAI)
	}
	switch d.Protocol {
	case ProtocolFunctions, ProtocolSchema:
	default:
		return fmt.Errorf("unsupported protocol '%s'. Supported: [%s, %s]", d.Protocol, ProtocolFunctions, ProtocolSchema)
	}
	if d.Model == "" {
		return fmt.Errorf("model is required")
	}
	if d.Temperature < 0 || d.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0.0 and 2.0")
	}
	if d.MaxOutputTokens <= 0 {
		return fmt.Errorf("max_output_tokens must be a positive integer")
	}
	if d.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative")
	}
	return nil
}

// Validate checks the executor settings.
func (e *ExecutorConfig) Validate() error {
	if e.TapDuration <= 0 || e.SwipeDuration <= 0 {
		return fmt.Errorf("tap_duration and swipe_duration must be positive durations")
	}
	if e.MaxWait <= 0 {
		return fmt.Errorf("max_wait must be a positive duration")
	}
	return nil
}

// Validate checks the device settings.
func (d *DeviceConfig) Validate() error {
	switch d.Backend {
	case BackendADB:
		if d.ADB.Path == "" {
			return fmt.Errorf("adb.path is required for the adb backend")
		}
	case BackendBrowser:
		if d.Browser.Width <= 0 || d.Browser.Height <= 0 {
			return fmt.Errorf("browser.width and browser.height must be positive integers")
		}
		if d.Browser.Scale <= 0 {
			return fmt.Errorf("browser.scale must be positive")
		}
	default:
		return fmt.Errorf("unsupported backend '%s'. Supported: [%s, %s]", d.Backend, BackendADB, BackendBrowser)
	}
	return nil
}
