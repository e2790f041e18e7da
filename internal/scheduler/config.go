package scheduler

import (
	"runtime"
	"time"
)

// ResourceBudgetConfig is spec §4.4.1's resource_budget.
type ResourceBudgetConfig struct {
	CPUSlotsHard int
	RAMSoftMB    int
	VRAMSoftMB   int
}

// AgingPolicy is spec §4.4.1's aging_policy.
type AgingPolicy struct {
	IntervalMS      int
	BoostPerInterval float64
}

// PausePolicy is spec §4.4.1's pause_policy.
type PausePolicy struct {
	CheckpointTimeout time.Duration
}

// Config configures a Scheduler (spec §4.4.1, §6.3). Zero-valued fields are
// replaced by defaults in Normalize.
type Config struct {
	WorkerCount    int
	ResourceBudget ResourceBudgetConfig
	Aging          AgingPolicy
	Pause          PausePolicy
}

// DefaultConfig returns the scheduler's defaults before Normalize's
// clamping: worker_count = clamp(hw_parallelism-1, [2,8]), cpu_slots_hard
// = worker_count, soft caps at a non-zero sentinel, aging/pause at sane
// defaults.
func DefaultConfig() Config {
	workers := runtime.NumCPU() - 1
	if workers < 2 {
		workers = 2
	}
	if workers > 8 {
		workers = 8
	}

	return Config{
		WorkerCount: workers,
		ResourceBudget: ResourceBudgetConfig{
			CPUSlotsHard: workers,
			RAMSoftMB:    8192,
			VRAMSoftMB:   8192,
		},
		Aging: AgingPolicy{
			IntervalMS:       1000,
			BoostPerInterval: 1,
		},
		Pause: PausePolicy{
			CheckpointTimeout: 5 * time.Second,
		},
	}
}

// Normalize fills zero-valued fields with defaults and lower-bounds every
// positive field at 1 (spec §4.4.1: "all positive fields are lower-bounded
// at 1; worker count is at least 2").
func (c Config) Normalize() Config {
	def := DefaultConfig()

	if c.WorkerCount <= 0 {
		c.WorkerCount = def.WorkerCount
	}
	if c.WorkerCount < 2 {
		c.WorkerCount = 2
	}

	if c.ResourceBudget.CPUSlotsHard <= 0 {
		c.ResourceBudget.CPUSlotsHard = c.WorkerCount
	}
	if c.ResourceBudget.CPUSlotsHard < 1 {
		c.ResourceBudget.CPUSlotsHard = 1
	}
	// A zero RAM/VRAM soft cap means "not configured" and is defaulted;
	// a negative value is the caller's explicit "disable this soft gate"
	// (spec §4.4.1's "disable by setting <= 0"), and is left as-is.
	if c.ResourceBudget.RAMSoftMB == 0 {
		c.ResourceBudget.RAMSoftMB = def.ResourceBudget.RAMSoftMB
	}
	if c.ResourceBudget.VRAMSoftMB == 0 {
		c.ResourceBudget.VRAMSoftMB = def.ResourceBudget.VRAMSoftMB
	}

	if c.Aging.IntervalMS <= 0 {
		c.Aging.IntervalMS = def.Aging.IntervalMS
	}
	if c.Aging.BoostPerInterval < 0 {
		c.Aging.BoostPerInterval = 0
	}

	if c.Pause.CheckpointTimeout <= 0 {
		c.Pause.CheckpointTimeout = def.Pause.CheckpointTimeout
	}

	return c
}
