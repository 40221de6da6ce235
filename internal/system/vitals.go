// Package system reports facts about the host, used in watchdog alerts
package system

import (
	"fmt"
	"os"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// Vitals represents host identity and resource usage at one point in time
type Vitals struct {
	Hostname   string
	Uptime     time.Duration
	CPUPercent float64
	MemPercent float64
}

// GetVitals retrieves current host information. A short CPU sample is taken.
func GetVitals() (*Vitals, error) {
	v := &Vitals{}

	info, err := host.Info()
	if err != nil {
		return nil, fmt.Errorf("failed to get host info: %w", err)
	}
	v.Hostname = info.Hostname
	v.Uptime = time.Duration(info.Uptime) * time.Second // #nosec G115 -- uptime in seconds fits int64

	cpuPercent, err := cpu.Percent(200*time.Millisecond, false)
	if err != nil {
		return nil, fmt.Errorf("failed to get CPU usage: %w", err)
	}
	if len(cpuPercent) > 0 {
		v.CPUPercent = cpuPercent[0]
	}

	memStat, err := mem.VirtualMemory()
	if err != nil {
		return nil, fmt.Errorf("failed to get memory usage: %w", err)
	}
	v.MemPercent = memStat.UsedPercent

	return v, nil
}

// Hostname returns the host name, falling back to os.Hostname and then "unknown"
func Hostname() string {
	if info, err := host.Info(); err == nil && info.Hostname != "" {
		return info.Hostname
	}
	if name, err := os.Hostname(); err == nil {
		return name
	}
	return "unknown"
}

// String formats the vitals for an alert body
func (v *Vitals) String() string {
	return fmt.Sprintf("host=%s uptime=%s cpu=%.1f%% mem=%.1f%%",
		v.Hostname, v.Uptime.Truncate(time.Second), v.CPUPercent, v.MemPercent)
}
