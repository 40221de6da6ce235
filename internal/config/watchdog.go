package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// DefaultWatchdogConfigPath is read when WATCHDOG_CONFIG is not set
const DefaultWatchdogConfigPath = "watchdog.toml"

// WatchdogConfig holds the settings of the health watchdog
type WatchdogConfig struct {
	// TargetURL is fetched with GET on every check
	TargetURL string `toml:"target_url"`

	// CheckIntervalSeconds is the pause between checks
	CheckIntervalSeconds int `toml:"check_interval"`

	// FailureThreshold is the number of consecutive failures that opens an incident
	FailureThreshold int `toml:"failure_threshold"`

	// RetryRestart is the number of container restarts tried per incident
	RetryRestart int `toml:"retry_restart"`

	// RebootOnFailure reboots the host when every restart attempt failed
	RebootOnFailure bool `toml:"reboot_on_failure"`

	// ContainerName is the container hosting the responder
	ContainerName string `toml:"container_name"`

	SMTP SMTPConfig `toml:"smtp"`
}

// SMTPConfig holds the alert mail settings
type SMTPConfig struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	From     string `toml:"from"`
	To       string `toml:"to"`
}

// Complete reports whether every field needed to send mail is set
func (s SMTPConfig) Complete() bool {
	return s.Host != "" && s.User != "" && s.Password != "" && s.From != "" && s.To != ""
}

// Addr returns host:port of the SMTP server
func (s SMTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func defaultWatchdogConfig() *WatchdogConfig {
	return &WatchdogConfig{
		TargetURL:            fmt.Sprintf("http://localhost:%d/", DefaultPort),
		CheckIntervalSeconds: 15,
		FailureThreshold:     3,
		RetryRestart:         2,
		RebootOnFailure:      false,
		ContainerName:        "hellod",
		SMTP: SMTPConfig{
			Port: 587,
		},
	}
}

// LoadWatchdog loads the watchdog configuration: defaults, then the TOML file if present,
// then environment variables.
func LoadWatchdog() (*WatchdogConfig, error) {
	config := defaultWatchdogConfig()

	configPath := DefaultWatchdogConfigPath
	if p := os.Getenv(EnvWatchdogConfig); p != "" {
		configPath = p
	}
	if _, err := os.Stat(configPath); err == nil {
		if _, err := toml.DecodeFile(configPath, config); err != nil {
			return nil, fmt.Errorf("failed to decode config file: %w", err)
		}
	}

	if err := config.applyEnv(); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *WatchdogConfig) applyEnv() error {
	if v := os.Getenv("TARGET_URL"); v != "" {
		c.TargetURL = v
	}
	if v := os.Getenv("CONTAINER_NAME"); v != "" {
		c.ContainerName = v
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{"CHECK_INTERVAL", &c.CheckIntervalSeconds},
		{"FAILURE_THRESHOLD", &c.FailureThreshold},
		{"RETRY_RESTART", &c.RetryRestart},
		{"SMTP_PORT", &c.SMTP.Port},
	}
	for _, e := range ints {
		v := os.Getenv(e.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", e.name, v, err)
		}
		*e.dst = n
	}

	if v := os.Getenv("REBOOT_ON_FAILURE"); v != "" {
		c.RebootOnFailure = strings.EqualFold(strings.TrimSpace(v), "true")
	}

	if v := os.Getenv("SMTP_HOST"); v != "" {
		c.SMTP.Host = v
	}
	if v := os.Getenv("SMTP_USER"); v != "" {
		c.SMTP.User = v
	}
	if v := os.Getenv("SMTP_PASS"); v != "" {
		c.SMTP.Password = v
	}
	if v := os.Getenv("ALERT_FROM"); v != "" {
		c.SMTP.From = v
	}
	if v := os.Getenv("ALERT_TO"); v != "" {
		c.SMTP.To = v
	}
	return nil
}

// Validate checks the values that would make the watchdog loop misbehave
func (c *WatchdogConfig) Validate() error {
	if c.TargetURL == "" {
		return fmt.Errorf("target_url must not be empty")
	}
	if c.CheckIntervalSeconds < 1 {
		return fmt.Errorf("check_interval must be at least 1 second, got %d", c.CheckIntervalSeconds)
	}
	if c.FailureThreshold < 1 {
		return fmt.Errorf("failure_threshold must be at least 1, got %d", c.FailureThreshold)
	}
	if c.RetryRestart < 0 {
		return fmt.Errorf("retry_restart must not be negative, got %d", c.RetryRestart)
	}
	return nil
}

// CheckInterval returns the check interval as a duration
func (c *WatchdogConfig) CheckInterval() time.Duration {
	return time.Duration(c.CheckIntervalSeconds) * time.Second
}
