package watchdog

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// DefaultRebootCommand flushes disks and reboots. The process needs root on the host.
var DefaultRebootCommand = []string{"sh", "-c", "sync && /sbin/reboot"}

// CommandRebooter reboots the host by running a command
type CommandRebooter struct {
	Command []string
}

// NewCommandRebooter returns a rebooter running DefaultRebootCommand
func NewCommandRebooter() *CommandRebooter {
	return &CommandRebooter{Command: DefaultRebootCommand}
}

// Reboot runs the reboot command
func (r *CommandRebooter) Reboot(ctx context.Context) error {
	if len(r.Command) == 0 {
		return fmt.Errorf("no reboot command configured")
	}

	// #nosec G204 -- command comes from trusted configuration
	cmd := exec.CommandContext(ctx, r.Command[0], r.Command[1:]...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("reboot command failed: %w (output: %s)", err, strings.TrimSpace(string(output)))
	}
	return nil
}
