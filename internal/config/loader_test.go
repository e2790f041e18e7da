package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name             string
		globalConfig     *Config
		projectConfig    *Config
		expectStages     int
		checkStage       string
		expectBackend    string
		expectWorkerCnt  int
		expectStyle      string
	}{
		{
			name:            "No config files - returns defaults",
			expectStages:    5,
			expectWorkerCnt: 0,
			expectStyle:     "cinematic",
		},
		{
			name: "Global only - adds a new stage backend",
			globalConfig: &Config{
				Stages: map[string]StageBackendConfig{
					"narration": {Backend: "http", Endpoint: "http://localhost:9000"},
				},
			},
			expectStages:  6, // 5 defaults + 1 new
			checkStage:    "narration",
			expectBackend: "http",
		},
		{
			name: "Project only - overrides a stage backend",
			projectConfig: &Config{
				Stages: map[string]StageBackendConfig{
					"image_gen": {Backend: "http", Endpoint: "http://localhost:9001"},
				},
			},
			expectStages:  5, // same count, image_gen modified
			checkStage:    "image_gen",
			expectBackend: "http",
		},
		{
			name: "Both with merge - global adds, project overrides",
			globalConfig: &Config{
				Stages: map[string]StageBackendConfig{
					"narration": {Backend: "http"},
				},
			},
			projectConfig: &Config{
				Scheduler: SchedulerConfig{WorkerCount: 4},
			},
			expectStages:    6,
			expectWorkerCnt: 4,
			checkStage:      "narration",
			expectBackend:   "http",
		},
		{
			name: "Project overrides global for the same scalar field",
			globalConfig: &Config{
				Scheduler: SchedulerConfig{WorkerCount: 2},
			},
			projectConfig: &Config{
				Scheduler: SchedulerConfig{WorkerCount: 6},
			},
			expectStages:    5,
			expectWorkerCnt: 6,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()

			globalPath := ""
			if tt.globalConfig != nil {
				globalPath = filepath.Join(tmpDir, "global.json")
				data, err := json.Marshal(tt.globalConfig)
				if err != nil {
					t.Fatalf("marshaling global config: %v", err)
				}
				if err := os.WriteFile(globalPath, data, 0644); err != nil {
					t.Fatalf("writing global config: %v", err)
				}
			}

			projectPath := ""
			if tt.projectConfig != nil {
				projectPath = filepath.Join(tmpDir, "project.json")
				data, err := json.Marshal(tt.projectConfig)
				if err != nil {
					t.Fatalf("marshaling project config: %v", err)
				}
				if err := os.WriteFile(projectPath, data, 0644); err != nil {
					t.Fatalf("writing project config: %v", err)
				}
			}

			cfg, err := Load(globalPath, projectPath)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if got := len(cfg.Stages); got != tt.expectStages {
				t.Errorf("stages count = %d, want %d", got, tt.expectStages)
			}
			if tt.expectWorkerCnt != 0 && cfg.Scheduler.WorkerCount != tt.expectWorkerCnt {
				t.Errorf("worker_count = %d, want %d", cfg.Scheduler.WorkerCount, tt.expectWorkerCnt)
			}
			if tt.expectStyle != "" && cfg.Pipeline.DefaultStyle != tt.expectStyle {
				t.Errorf("default_style = %q, want %q", cfg.Pipeline.DefaultStyle, tt.expectStyle)
			}

			if tt.checkStage != "" {
				stage, exists := cfg.Stages[tt.checkStage]
				if !exists {
					t.Fatalf("expected stage %q not found", tt.checkStage)
				}
				if tt.expectBackend != "" && stage.Backend != tt.expectBackend {
					t.Errorf("stage %q backend = %q, want %q", tt.checkStage, stage.Backend, tt.expectBackend)
				}
			}
		})
	}
}

func TestLoad_MalformedJSON(t *testing.T) {
	tmpDir := t.TempDir()

	globalPath := filepath.Join(tmpDir, "global.json")
	if err := os.WriteFile(globalPath, []byte("{invalid json"), 0644); err != nil {
		t.Fatalf("writing malformed config: %v", err)
	}

	_, err := Load(globalPath, "")
	if err == nil {
		t.Fatal("expected error for malformed JSON, got nil")
	}
	if err.Error() == "" {
		t.Error("expected descriptive error message")
	}
}

func TestLoad_MissingFilesNotError(t *testing.T) {
	cfg, err := Load("/nonexistent/global.json", "/nonexistent/project.json")
	if err != nil {
		t.Fatalf("expected no error for missing files, got: %v", err)
	}

	if len(cfg.Stages) != 5 {
		t.Errorf("stages count = %d, want 5", len(cfg.Stages))
	}
	if cfg.Pipeline.DefaultStyle != "cinematic" {
		t.Errorf("default_style = %q, want cinematic", cfg.Pipeline.DefaultStyle)
	}
}
