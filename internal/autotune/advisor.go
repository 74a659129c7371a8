// Package autotune recommends an embedding worker count from live host
// metrics. It is built for small always-on machines where load, memory
// pressure, and CPU temperature change from one file to the next, so
// the advisor is consulted fresh at every decision point and is never
// allowed to fail an indexing run.
package autotune

import (
	"log/slog"
)

// Tuning thresholds.
const (
	// Load ratio below this means the machine has headroom.
	lowLoadRatio = 0.6
	// Load ratio above this means the machine is saturated.
	highLoadRatio = 1.0

	// Free memory above this (GB) permits an extra worker.
	highFreeRAMGB = 1.2
	// Free memory below this (GB) sheds a worker.
	lowFreeRAMGB = 0.6

	// Above this temperature (C) the advisor drops straight to the
	// minimum, overriding every other signal.
	criticalTempC = 80.0
	// Above this temperature a worker is shed.
	highTempC = 75.0
	// Above this temperature the count never rises past the default.
	cautionTempC = 65.0
)

// Advisor recommends worker counts from system metric snapshots.
type Advisor struct {
	collector Collector
	logger    *slog.Logger
}

// NewAdvisor creates an advisor. A nil collector uses the local host;
// a nil logger uses the default.
func NewAdvisor(collector Collector, logger *slog.Logger) *Advisor {
	if collector == nil {
		collector = NewSystemCollector()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Advisor{collector: collector, logger: logger}
}

// Recommend returns a worker count in [minWorkers, maxWorkers] based
// on a fresh metrics snapshot. It never fails: if metrics cannot be
// read the affected rules are skipped, and defaultWorkers is the
// starting point either way.
func (a *Advisor) Recommend(maxWorkers, minWorkers, defaultWorkers int) int {
	snap := a.collector.Collect()
	workers := defaultWorkers

	if snap.LoadAvg != nil && snap.CPUCores > 0 {
		ratio := *snap.LoadAvg / float64(snap.CPUCores)
		switch {
		case ratio < lowLoadRatio:
			workers++
			a.logger.Debug("autotune: low load, adding worker",
				slog.Float64("load_avg", *snap.LoadAvg),
				slog.Int("cpu_cores", snap.CPUCores))
		case ratio > highLoadRatio:
			workers--
			a.logger.Debug("autotune: high load, shedding worker",
				slog.Float64("load_avg", *snap.LoadAvg),
				slog.Int("cpu_cores", snap.CPUCores))
		}
	}

	if snap.FreeRAMGB != nil {
		switch {
		case *snap.FreeRAMGB > highFreeRAMGB:
			workers++
			a.logger.Debug("autotune: memory headroom, adding worker",
				slog.Float64("free_ram_gb", *snap.FreeRAMGB))
		case *snap.FreeRAMGB < lowFreeRAMGB:
			workers--
			a.logger.Debug("autotune: memory pressure, shedding worker",
				slog.Float64("free_ram_gb", *snap.FreeRAMGB))
		}
	}

	// Thermal rules run last so they dominate the load and memory
	// adjustments.
	if snap.TempC != nil {
		switch {
		case *snap.TempC > criticalTempC:
			workers = minWorkers
			a.logger.Warn("autotune: critical temperature, forcing minimum workers",
				slog.Float64("temp_c", *snap.TempC),
				slog.Int("workers", minWorkers))
		case *snap.TempC > highTempC:
			workers--
			a.logger.Warn("autotune: high temperature, shedding worker",
				slog.Float64("temp_c", *snap.TempC))
		case *snap.TempC > cautionTempC:
			if workers > defaultWorkers {
				workers = defaultWorkers
			}
			a.logger.Debug("autotune: warm temperature, holding at default",
				slog.Float64("temp_c", *snap.TempC))
		}
	}

	if workers < minWorkers {
		workers = minWorkers
	}
	if workers > maxWorkers {
		workers = maxWorkers
	}

	a.logger.Info("autotune decision",
		slog.Int("workers", workers),
		slog.Any("load_avg", floatOrNil(snap.LoadAvg)),
		slog.Int("cpu_cores", snap.CPUCores),
		slog.Any("free_ram_gb", floatOrNil(snap.FreeRAMGB)),
		slog.Any("temp_c", floatOrNil(snap.TempC)))

	return workers
}

func floatOrNil(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}
