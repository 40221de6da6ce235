package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ErrInvalidPort is returned when PORT is not an integer in 1..65535
var ErrInvalidPort = errors.New("invalid port")

// Config holds the responder's settings. The port is the only knob.
type Config struct {
	// Port is the TCP port bound on all interfaces
	Port int
}

// Load resolves the configuration from the environment. It is called once at startup.
func Load() (*Config, error) {
	port, err := ParsePort(os.Getenv(EnvPort))
	if err != nil {
		return nil, err
	}
	return &Config{Port: port}, nil
}

// ParsePort validates a PORT value. An empty value yields DefaultPort.
func ParsePort(value string) (int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return DefaultPort, nil
	}

	port, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%w %q: not a number", ErrInvalidPort, value)
	}
	if port < 1 || port > MaxPort {
		return 0, fmt.Errorf("%w %d: must be between 1 and %d", ErrInvalidPort, port, MaxPort)
	}
	return port, nil
}

// ListenAddr returns the address to bind, covering all interfaces
func (c *Config) ListenAddr() string {
	return ":" + strconv.Itoa(c.Port)
}

// String returns a string representation of the configuration
func (c *Config) String() string {
	return fmt.Sprintf("Port: %d", c.Port)
}
