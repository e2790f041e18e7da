package config

// SchedulerConfig mirrors scheduler.Config in JSON-friendly form (spec
// §4.4.1, §6.3). Zero-valued fields are filled by scheduler.Config.Normalize
// at construction time, not here.
type SchedulerConfig struct {
	WorkerCount    int                  `json:"worker_count"`
	ResourceBudget ResourceBudgetConfig `json:"resource_budget"`
	Aging          AgingPolicyConfig    `json:"aging_policy"`
	Pause          PausePolicyConfig    `json:"pause_policy"`
}

// ResourceBudgetConfig is spec §4.4.1's resource_budget.
type ResourceBudgetConfig struct {
	CPUSlotsHard int `json:"cpu_slots_hard"`
	RAMSoftMB    int `json:"ram_soft_mb"`
	VRAMSoftMB   int `json:"vram_soft_mb"`
}

// AgingPolicyConfig is spec §4.4.1's aging_policy.
type AgingPolicyConfig struct {
	IntervalMS       int     `json:"interval_ms"`
	BoostPerInterval float64 `json:"boost_per_interval"`
}

// PausePolicyConfig is spec §4.4.1's pause_policy.
type PausePolicyConfig struct {
	CheckpointTimeoutMS int `json:"checkpoint_timeout_ms"`
}

// StageBackendConfig selects which stage implementation a task type binds
// to: "mock" (internal/stages/mock, the default) or "http"
// (internal/stages/httpstage).
type StageBackendConfig struct {
	Backend  string `json:"backend"`
	Endpoint string `json:"endpoint,omitempty"`
}

// PipelineConfig carries the creative-pipeline-specific defaults a
// WorkflowEngine uses when the caller doesn't specify them explicitly:
// the story style preset and the scene-count bounds a Storyboard fan-out
// is clamped to.
type PipelineConfig struct {
	DefaultStyle      string `json:"default_style"`
	MinSceneCount     int    `json:"min_scene_count"`
	MaxSceneCount     int    `json:"max_scene_count"`
}

// Config is the top-level configuration loaded from disk (spec §6.3).
type Config struct {
	Scheduler SchedulerConfig               `json:"scheduler"`
	Pipeline  PipelineConfig                `json:"pipeline"`
	Stages    map[string]StageBackendConfig `json:"stages,omitempty"`
}
