package autotune

import (
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

// Snapshot holds one reading of the host metrics the advisor inspects.
// Every field except CPUCores is optional; a nil pointer means the
// sensor was unavailable, which is never an error.
type Snapshot struct {
	LoadAvg   *float64
	CPUCores  int
	FreeRAMGB *float64
	TempC     *float64
}

// Collector produces system metric snapshots.
type Collector interface {
	Collect() Snapshot
}

// SystemCollector reads metrics from the running host.
type SystemCollector struct{}

var _ Collector = (*SystemCollector)(nil)

// NewSystemCollector returns a collector backed by the local host.
func NewSystemCollector() *SystemCollector {
	return &SystemCollector{}
}

// Collect gathers a fresh snapshot. Individual sensor failures leave
// the corresponding field nil.
func (c *SystemCollector) Collect() Snapshot {
	return Snapshot{
		LoadAvg:   readLoadAvg(),
		CPUCores:  runtime.NumCPU(),
		FreeRAMGB: readFreeRAMGB(),
		TempC:     readCPUTemp(),
	}
}

// readLoadAvg returns the 1-minute load average from /proc/loadavg.
func readLoadAvg() *float64 {
	data, err := os.ReadFile("/proc/loadavg")
	if err != nil {
		return nil
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return nil
	}
	load, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return nil
	}
	return &load
}

// readFreeRAMGB returns the available memory in gigabytes.
func readFreeRAMGB() *float64 {
	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err != nil {
		return nil
	}
	freeBytes := float64(info.Freeram) * float64(info.Unit)
	gb := freeBytes / (1024 * 1024 * 1024)
	return &gb
}

// readCPUTemp returns the CPU temperature in Celsius. It tries the
// sysfs thermal zones first, then vcgencmd for Raspberry Pi hosts
// where the zone files are absent.
func readCPUTemp() *float64 {
	if t := readThermalZoneTemp(); t != nil {
		return t
	}
	return readVcgencmdTemp()
}

func readThermalZoneTemp() *float64 {
	zones, err := filepath.Glob("/sys/class/thermal/thermal_zone*/temp")
	if err != nil || len(zones) == 0 {
		return nil
	}
	for _, zone := range zones {
		data, err := os.ReadFile(zone)
		if err != nil {
			continue
		}
		milli, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
		if err != nil {
			continue
		}
		temp := milli / 1000.0
		return &temp
	}
	return nil
}

func readVcgencmdTemp() *float64 {
	path, err := exec.LookPath("vcgencmd")
	if err != nil {
		return nil
	}

	done := make(chan *float64, 1)
	go func() {
		out, err := exec.Command(path, "measure_temp").Output()
		if err != nil {
			done <- nil
			return
		}
		// Output looks like: temp=58.0'C
		s := strings.TrimSpace(string(out))
		s = strings.TrimPrefix(s, "temp=")
		s = strings.TrimSuffix(s, "'C")
		temp, err := strconv.ParseFloat(s, 64)
		if err != nil {
			done <- nil
			return
		}
		done <- &temp
	}()

	select {
	case t := <-done:
		return t
	case <-time.After(time.Second):
		return nil
	}
}
