package scheduler

import (
	"github.com/aristath/pipeline-orchestrator/internal/task"
)

// resourceBudget tracks the scheduler's CPU hard budget and RAM/VRAM soft
// budgets (spec §4.4.1, §5) as plain counters guarded by the scheduler's own
// lock. fitsHard/fitsSoft decide whether a candidate fits without
// committing to it, which lets the dispatch loop cheaply test many
// ready-set candidates before reserve() commits the winner; a weighted
// semaphore can't express that check-without-commit split (TryAcquire both
// tests and commits in one call), so a plain counter is the gate here, not
// decoration around one.
//
// All methods assume the caller already holds the scheduler's lock; this
// type has no mutex of its own.
type resourceBudget struct {
	cpuHard  int
	cpuUsed  int
	ramSoft  int
	vramSoft int
	ramUsed  int
	vramUsed int
}

func newResourceBudget(cpuHard, ramSoft, vramSoft int) *resourceBudget {
	return &resourceBudget{
		cpuHard:  cpuHard,
		ramSoft:  ramSoft,
		vramSoft: vramSoft,
	}
}

// fitsHard reports whether demand's CPU slots fit within the remaining hard
// budget.
func (b *resourceBudget) fitsHard(demand task.ResourceDemand) bool {
	return b.cpuUsed+demand.CPUSlots <= b.cpuHard
}

// fitsSoft reports whether demand's RAM/VRAM fit within the remaining soft
// budgets. A soft cap <= 0 disables that check.
func (b *resourceBudget) fitsSoft(demand task.ResourceDemand) bool {
	ramOK := b.ramSoft <= 0 || b.ramUsed+demand.RAMMB <= b.ramSoft
	vramOK := b.vramSoft <= 0 || b.vramUsed+demand.VRAMMB <= b.vramSoft
	return ramOK && vramOK
}

// reserve commits demand. Must only be called after fitsHard(demand) was
// just verified under the same lock.
func (b *resourceBudget) reserve(demand task.ResourceDemand) {
	b.cpuUsed += demand.CPUSlots
	b.ramUsed += demand.RAMMB
	b.vramUsed += demand.VRAMMB
}

// release returns demand's reservation. Safe to call on every task exit
// path exactly once per successful reserve.
func (b *resourceBudget) release(demand task.ResourceDemand) {
	b.cpuUsed -= demand.CPUSlots
	b.ramUsed -= demand.RAMMB
	b.vramUsed -= demand.VRAMMB
}

// runningEmpty reports whether no task currently holds a CPU reservation —
// the escape-hatch precondition (spec §4.4.3.5).
func (b *resourceBudget) runningEmpty() bool {
	return b.cpuUsed == 0
}
