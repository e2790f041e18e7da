package config

// DefaultConfig returns the pipeline's default configuration: the
// scheduler's defaults (spec §4.4.1), mock stages for every task type, and
// a permissive pipeline style/scene-count range.
func DefaultConfig() *Config {
	return &Config{
		Scheduler: SchedulerConfig{
			WorkerCount: 0, // 0 -> scheduler.Config.Normalize fills from hw parallelism
			ResourceBudget: ResourceBudgetConfig{
				CPUSlotsHard: 0,
				RAMSoftMB:    8192,
				VRAMSoftMB:   8192,
			},
			Aging: AgingPolicyConfig{
				IntervalMS:       1000,
				BoostPerInterval: 1,
			},
			Pause: PausePolicyConfig{
				CheckpointTimeoutMS: 5000,
			},
		},
		Pipeline: PipelineConfig{
			DefaultStyle:  "cinematic",
			MinSceneCount: 1,
			MaxSceneCount: 12,
		},
		Stages: map[string]StageBackendConfig{
			"storyboard": {Backend: "mock"},
			"image_gen":  {Backend: "mock"},
			"video_clip": {Backend: "mock"},
			"tts":        {Backend: "mock"},
			"compose":    {Backend: "mock"},
		},
	}
}
