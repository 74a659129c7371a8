package autotune

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

// stubCollector returns a canned snapshot.
type stubCollector struct {
	snap Snapshot
}

func (s *stubCollector) Collect() Snapshot {
	return s.snap
}

func f(v float64) *float64 {
	return &v
}

func quietAdvisor(snap Snapshot) *Advisor {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewAdvisor(&stubCollector{snap: snap}, logger)
}

func TestAdvisor_NoMetricsReturnsDefault(t *testing.T) {
	// Given a host exposing no sensors at all
	advisor := quietAdvisor(Snapshot{})

	// When recommending
	workers := advisor.Recommend(4, 1, 2)

	// Then the default is returned unchanged
	assert.Equal(t, 2, workers)
}

func TestAdvisor_LowLoadAddsWorker(t *testing.T) {
	advisor := quietAdvisor(Snapshot{LoadAvg: f(1.0), CPUCores: 4})
	assert.Equal(t, 3, advisor.Recommend(4, 1, 2))
}

func TestAdvisor_HighLoadShedsWorker(t *testing.T) {
	advisor := quietAdvisor(Snapshot{LoadAvg: f(5.0), CPUCores: 4})
	assert.Equal(t, 1, advisor.Recommend(4, 1, 2))
}

func TestAdvisor_UnknownCoresSkipsLoadRule(t *testing.T) {
	// Given a load average but no core count
	advisor := quietAdvisor(Snapshot{LoadAvg: f(0.1), CPUCores: 0})

	// Then the load rule does not fire
	assert.Equal(t, 2, advisor.Recommend(4, 1, 2))
}

func TestAdvisor_MemoryHeadroomAddsWorker(t *testing.T) {
	advisor := quietAdvisor(Snapshot{FreeRAMGB: f(2.5)})
	assert.Equal(t, 3, advisor.Recommend(4, 1, 2))
}

func TestAdvisor_MemoryPressureShedsWorker(t *testing.T) {
	advisor := quietAdvisor(Snapshot{FreeRAMGB: f(0.3)})
	assert.Equal(t, 1, advisor.Recommend(4, 1, 2))
}

func TestAdvisor_CriticalTempForcesMinimum(t *testing.T) {
	// Given idle load and plenty of memory but a critical temperature
	advisor := quietAdvisor(Snapshot{
		LoadAvg:   f(0.2),
		CPUCores:  4,
		FreeRAMGB: f(3.0),
		TempC:     f(85.0),
	})

	// Then the thermal override wins over every other signal
	assert.Equal(t, 1, advisor.Recommend(4, 1, 2))
}

func TestAdvisor_HighTempShedsWorker(t *testing.T) {
	advisor := quietAdvisor(Snapshot{TempC: f(77.0)})
	assert.Equal(t, 1, advisor.Recommend(4, 1, 2))
}

func TestAdvisor_CautionTempCapsAtDefault(t *testing.T) {
	// Given signals that would push above the default plus a warm CPU
	advisor := quietAdvisor(Snapshot{
		LoadAvg:   f(0.2),
		CPUCores:  4,
		FreeRAMGB: f(3.0),
		TempC:     f(70.0),
	})

	// Then the result is held at the default
	assert.Equal(t, 2, advisor.Recommend(4, 1, 2))
}

func TestAdvisor_CautionTempDoesNotRaiseLowered(t *testing.T) {
	// Given high load plus a warm CPU
	advisor := quietAdvisor(Snapshot{
		LoadAvg:  f(5.0),
		CPUCores: 4,
		TempC:    f(70.0),
	})

	// Then the caution cap never raises an already lowered count
	assert.Equal(t, 1, advisor.Recommend(4, 1, 2))
}

func TestAdvisor_OutputAlwaysInBounds(t *testing.T) {
	snapshots := []Snapshot{
		{},
		{LoadAvg: f(0.0), CPUCores: 4, FreeRAMGB: f(8.0), TempC: f(30.0)},
		{LoadAvg: f(12.0), CPUCores: 2, FreeRAMGB: f(0.1), TempC: f(90.0)},
		{LoadAvg: f(0.1), CPUCores: 8, FreeRAMGB: f(16.0)},
		{TempC: f(100.0)},
	}

	for _, snap := range snapshots {
		advisor := quietAdvisor(snap)
		workers := advisor.Recommend(4, 1, 2)
		assert.GreaterOrEqual(t, workers, 1)
		assert.LessOrEqual(t, workers, 4)
	}
}

func TestAdvisor_SingleWorkerBoundsCollapse(t *testing.T) {
	// Given min and max both 1
	advisor := quietAdvisor(Snapshot{
		LoadAvg:   f(0.0),
		CPUCores:  8,
		FreeRAMGB: f(16.0),
	})

	// Then the answer is 1 no matter what the metrics say
	assert.Equal(t, 1, advisor.Recommend(1, 1, 1))
}

func TestAdvisor_NilCollectorUsesHost(t *testing.T) {
	// A live collection must never panic or go out of bounds.
	advisor := NewAdvisor(nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	workers := advisor.Recommend(3, 1, 2)
	assert.GreaterOrEqual(t, workers, 1)
	assert.LessOrEqual(t, workers, 3)
}

func TestSystemCollector_CollectNeverPanics(t *testing.T) {
	snap := NewSystemCollector().Collect()
	assert.Greater(t, snap.CPUCores, 0)
}
