package config

// Port configuration constants
const (
	// DefaultPort is the port the responder binds when PORT is unset or empty
	DefaultPort = 3000

	// MaxPort is the highest valid TCP port
	MaxPort = 65535
)

// Environment variable names
const (
	EnvPort           = "PORT"
	EnvWatchdogConfig = "WATCHDOG_CONFIG"
)
