package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	// Global settings
	Format  string `mapstructure:"format" yaml:"format" json:"format"`
	Quiet   bool   `mapstructure:"quiet" yaml:"quiet" json:"quiet"`
	Verbose bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// ReportDir receives a text report for every failed run. Empty disables.
	ReportDir string `mapstructure:"report_dir" yaml:"report_dir" json:"report_dir"`

	Launch  LaunchConfig  `mapstructure:"launch" yaml:"launch" json:"launch"`
	Session SessionConfig `mapstructure:"session" yaml:"session" json:"session"`
	Waits   WaitsConfig   `mapstructure:"waits" yaml:"waits" json:"waits"`
	Process ProcessConfig `mapstructure:"process" yaml:"process" json:"process"`
}

// LaunchConfig describes how the debugged process is started
type LaunchConfig struct {
	Command  []string `mapstructure:"command" yaml:"command" json:"command"`
	Debugger string   `mapstructure:"debugger" yaml:"debugger" json:"debugger"`
	Flags    []string `mapstructure:"flags" yaml:"flags" json:"flags"`
	Host     string   `mapstructure:"host" yaml:"host" json:"host"`
	Dir      string   `mapstructure:"dir" yaml:"dir,omitempty" json:"dir,omitempty"`
}

// SessionConfig holds the listener and handshake settings
type SessionConfig struct {
	Port          int    `mapstructure:"port" yaml:"port" json:"port"`
	Version       string `mapstructure:"version" yaml:"version" json:"version"`
	OSTag         string `mapstructure:"os_tag" yaml:"os_tag,omitempty" json:"os_tag,omitempty"`
	AcceptTimeout string `mapstructure:"accept_timeout" yaml:"accept_timeout" json:"accept_timeout"`
}

// WaitsConfig holds the response retry budgets
type WaitsConfig struct {
	Attempts       int    `mapstructure:"attempts" yaml:"attempts" json:"attempts"`
	Interval       string `mapstructure:"interval" yaml:"interval" json:"interval"`
	ThreadAttempts int    `mapstructure:"thread_attempts" yaml:"thread_attempts" json:"thread_attempts"`
	WriteSettle    string `mapstructure:"write_settle" yaml:"write_settle" json:"write_settle"`
	AckAttempts    int    `mapstructure:"ack_attempts" yaml:"ack_attempts" json:"ack_attempts"`
	AckInterval    string `mapstructure:"ack_interval" yaml:"ack_interval" json:"ack_interval"`
}

// ProcessConfig holds the supervisor's liveness and verification settings
type ProcessConfig struct {
	PollInterval    string `mapstructure:"poll_interval" yaml:"poll_interval" json:"poll_interval"`
	WarnAfter       int    `mapstructure:"warn_after" yaml:"warn_after" json:"warn_after"`
	FailAfter       int    `mapstructure:"fail_after" yaml:"fail_after" json:"fail_after"`
	FinishAttempts  int    `mapstructure:"finish_attempts" yaml:"finish_attempts" json:"finish_attempts"`
	FinishInterval  string `mapstructure:"finish_interval" yaml:"finish_interval" json:"finish_interval"`
	SuccessMarker   string `mapstructure:"success_marker" yaml:"success_marker" json:"success_marker"`
	RequireZeroExit bool   `mapstructure:"require_zero_exit" yaml:"require_zero_exit" json:"require_zero_exit"`
	ShowOutput      bool   `mapstructure:"show_output" yaml:"show_output" json:"show_output"`
	OutputGrace     string `mapstructure:"output_grace" yaml:"output_grace" json:"output_grace"`
}

// configNames are searched in order in each directory
var configNames = []string{"dbgwire.yaml", ".dbgwire.yaml", ".dbgwire.yml"}

// Default returns a Config with default values
func Default() *Config {
	return &Config{
		Format: "ndjson",
		Launch: LaunchConfig{
			Command: []string{"python"},
			Flags:   []string{"--DEBUG_RECORD_SOCKET_READS", "--qt-support"},
			Host:    "127.0.0.1",
		},
		Session: SessionConfig{
			Port:          0,
			Version:       "1.0",
			AcceptTimeout: "0s",
		},
		Waits: WaitsConfig{
			Attempts:       10,
			Interval:       "1s",
			ThreadAttempts: 15,
			WriteSettle:    "200ms",
			AckAttempts:    10,
			AckInterval:    "100ms",
		},
		Process: ProcessConfig{
			PollInterval:   "200ms",
			WarnAfter:      20,
			FailAfter:      100,
			FinishAttempts: 100,
			FinishInterval: "100ms",
			SuccessMarker:  "TEST SUCEEDED",
			OutputGrace:    "1s",
		},
	}
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("format", cfg.Format)
	v.SetDefault("quiet", cfg.Quiet)
	v.SetDefault("verbose", cfg.Verbose)
	v.SetDefault("report_dir", cfg.ReportDir)

	v.SetDefault("launch.command", cfg.Launch.Command)
	v.SetDefault("launch.debugger", cfg.Launch.Debugger)
	v.SetDefault("launch.flags", cfg.Launch.Flags)
	v.SetDefault("launch.host", cfg.Launch.Host)

	v.SetDefault("session.port", cfg.Session.Port)
	v.SetDefault("session.version", cfg.Session.Version)
	v.SetDefault("session.accept_timeout", cfg.Session.AcceptTimeout)

	v.SetDefault("waits.attempts", cfg.Waits.Attempts)
	v.SetDefault("waits.interval", cfg.Waits.Interval)
	v.SetDefault("waits.thread_attempts", cfg.Waits.ThreadAttempts)
	v.SetDefault("waits.write_settle", cfg.Waits.WriteSettle)
	v.SetDefault("waits.ack_attempts", cfg.Waits.AckAttempts)
	v.SetDefault("waits.ack_interval", cfg.Waits.AckInterval)

	v.SetDefault("process.poll_interval", cfg.Process.PollInterval)
	v.SetDefault("process.warn_after", cfg.Process.WarnAfter)
	v.SetDefault("process.fail_after", cfg.Process.FailAfter)
	v.SetDefault("process.finish_attempts", cfg.Process.FinishAttempts)
	v.SetDefault("process.finish_interval", cfg.Process.FinishInterval)
	v.SetDefault("process.success_marker", cfg.Process.SuccessMarker)
	v.SetDefault("process.output_grace", cfg.Process.OutputGrace)
}

// Load loads configuration from files and environment
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	// Environment variables
	v.SetEnvPrefix("DBGWIRE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// Bind specific environment variables
	v.BindEnv("format", "DBGWIRE_FORMAT")
	v.BindEnv("quiet", "DBGWIRE_QUIET")
	v.BindEnv("verbose", "DBGWIRE_VERBOSE")
	v.BindEnv("report_dir", "DBGWIRE_REPORT_DIR")
	v.BindEnv("launch.debugger", "DBGWIRE_DEBUGGER")
	v.BindEnv("launch.host", "DBGWIRE_HOST")
	v.BindEnv("session.port", "DBGWIRE_PORT")

	cfg := Default()
	setDefaults(v, cfg)

	// Try to read config file (ignore if not found)
	if path := findConfigFile(); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// LoadFromFile loads configuration from a specific file
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v, Default())

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	cfg := Default()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ConfigFile returns the path to the config file that Load would use
func ConfigFile() string {
	return findConfigFile()
}

// searchDirs lists config directories, highest precedence first
func searchDirs() []string {
	dirs := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		dirs = append(dirs, home)
	}
	if configDir, err := os.UserConfigDir(); err == nil {
		dirs = append(dirs, filepath.Join(configDir, "dbgwire"))
	}
	return append(dirs, "/etc/dbgwire")
}

// findConfigFile returns the first existing config file, or ""
func findConfigFile() string {
	for _, dir := range searchDirs() {
		for _, name := range configNames {
			path := filepath.Join(dir, name)
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				if abs, err := filepath.Abs(path); err == nil {
					return abs
				}
				return path
			}
		}
	}
	return ""
}

// applyEnvOverrides handles variables that need parsing beyond what viper
// binds: booleans accept "true" or "1", the command is split on spaces.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DBGWIRE_FORMAT"); v != "" {
		cfg.Format = v
	}
	if v := os.Getenv("DBGWIRE_QUIET"); v != "" {
		cfg.Quiet = v == "true" || v == "1"
	}
	if v := os.Getenv("DBGWIRE_VERBOSE"); v != "" {
		cfg.Verbose = v == "true" || v == "1"
	}
	if v := os.Getenv("DBGWIRE_COMMAND"); v != "" {
		cfg.Launch.Command = strings.Fields(v)
	}
	if v := os.Getenv("DBGWIRE_DEBUGGER"); v != "" {
		cfg.Launch.Debugger = v
	}
	if v := os.Getenv("DBGWIRE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Session.Port = port
		}
	}
}

// Validate checks formats, durations and counts.
func (c *Config) Validate() error {
	var errs []error
	if c.Format != "ndjson" && c.Format != "text" {
		errs = append(errs, fmt.Errorf("format must be ndjson or text, got %q", c.Format))
	}
	if len(c.Launch.Command) == 0 {
		errs = append(errs, errors.New("launch.command is required"))
	}
	if c.Session.Port < 0 || c.Session.Port > 65535 {
		errs = append(errs, fmt.Errorf("session.port out of range: %d", c.Session.Port))
	}
	for name, value := range map[string]string{
		"session.accept_timeout":  c.Session.AcceptTimeout,
		"waits.interval":          c.Waits.Interval,
		"waits.write_settle":      c.Waits.WriteSettle,
		"waits.ack_interval":      c.Waits.AckInterval,
		"process.poll_interval":   c.Process.PollInterval,
		"process.finish_interval": c.Process.FinishInterval,
		"process.output_grace":    c.Process.OutputGrace,
	} {
		if _, err := Duration(value); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	for name, value := range map[string]int{
		"waits.attempts":          c.Waits.Attempts,
		"waits.thread_attempts":   c.Waits.ThreadAttempts,
		"process.fail_after":      c.Process.FailAfter,
		"process.finish_attempts": c.Process.FinishAttempts,
	} {
		if value <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %d", name, value))
		}
	}
	return errors.Join(errs...)
}

// Duration parses a configured duration. Empty means zero.
func Duration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	return time.ParseDuration(s)
}

// MustDuration is Duration for values that already passed Validate.
func MustDuration(s string) time.Duration {
	d, err := Duration(s)
	if err != nil {
		panic(err)
	}
	return d
}

// YAML renders the config as a config file.
func (c *Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
