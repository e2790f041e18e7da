// Package mock implements the stage factory's default: deterministic,
// test-friendly stages that simulate progress and produce the output keys
// the workflow engine's stage contract requires (spec §6.2), grounded on
// the teacher's backend package's per-type adapter-selection switch
// (backend.New switching on cfg.Type) generalized to task.Type.
package mock

import (
	"context"
	"fmt"
	"time"

	"github.com/aristath/pipeline-orchestrator/internal/stage"
	"github.com/aristath/pipeline-orchestrator/internal/task"
	"github.com/aristath/pipeline-orchestrator/internal/taskerr"
)

// steps is the number of simulated progress checkpoints every mock stage
// reports through, each separated by stepDelay.
const (
	steps     = 4
	stepDelay = 10 * time.Millisecond
)

// NewFactory returns a stage.Factory producing a mock implementation for
// every task.Type the workflow engine can submit.
func NewFactory() stage.Factory {
	return func(typ task.Type) stage.Stage {
		switch typ {
		case task.Storyboard:
			return storyboardStage{}
		case task.ImageGen:
			return imageGenStage{}
		case task.VideoClip:
			return videoClipStage{}
		case task.TTS:
			return ttsStage{}
		case task.Compose:
			return composeStage{}
		default:
			return unknownStage{typ: typ}
		}
	}
}

// simulateProgress reports `steps` monotonically increasing progress
// values, honouring cancellation between checkpoints.
func simulateProgress(sc *stage.Context) *taskerr.TaskError {
	for i := 1; i <= steps; i++ {
		if sc.CancelToken.IsCanceled() {
			return taskerr.CanceledErr("canceled during simulated progress")
		}
		time.Sleep(stepDelay)
		sc.ReportProgress(float64(i) / float64(steps))
	}
	return nil
}

type storyboardStage struct{}

func (storyboardStage) Name() string { return "mock.storyboard" }

func (storyboardStage) Execute(ctx context.Context, sc *stage.Context) taskerr.Result[taskerr.Unit] {
	if err := simulateProgress(sc); err != nil {
		return taskerr.ErrUnit(err)
	}

	sceneCount := sc.Inputs.Int("scene_count")
	if sceneCount < 1 {
		sceneCount = 1
	}
	style := sc.Inputs.String("style")

	scenes := make([]string, sceneCount)
	for i := 0; i < sceneCount; i++ {
		scenes[i] = fmt.Sprintf("scene %d of %q story in %q style", i, sc.Inputs.String("story_text"), style)
	}

	sc.Outputs["scenes"] = scenes
	sc.Outputs["storyboard_json"] = fmt.Sprintf(`{"scene_count":%d,"style":%q}`, sceneCount, style)

	return taskerr.OkUnit()
}

type imageGenStage struct{}

func (imageGenStage) Name() string { return "mock.image_gen" }

func (imageGenStage) Execute(ctx context.Context, sc *stage.Context) taskerr.Result[taskerr.Unit] {
	if err := simulateProgress(sc); err != nil {
		return taskerr.ErrUnit(err)
	}

	idx := sc.Inputs.Int("scene_index")
	sc.Outputs["image_path"] = fmt.Sprintf("mock://image-gen/%s/scene-%d.png", sc.TraceID, idx)

	return taskerr.OkUnit()
}

type videoClipStage struct{}

func (videoClipStage) Name() string { return "mock.video_clip" }

func (videoClipStage) Execute(ctx context.Context, sc *stage.Context) taskerr.Result[taskerr.Unit] {
	if err := simulateProgress(sc); err != nil {
		return taskerr.ErrUnit(err)
	}
	sc.Outputs["clip_path"] = fmt.Sprintf("mock://video-clip/%s.mp4", sc.TraceID)
	return taskerr.OkUnit()
}

type ttsStage struct{}

func (ttsStage) Name() string { return "mock.tts" }

func (ttsStage) Execute(ctx context.Context, sc *stage.Context) taskerr.Result[taskerr.Unit] {
	if err := simulateProgress(sc); err != nil {
		return taskerr.ErrUnit(err)
	}
	sc.Outputs["audio_path"] = fmt.Sprintf("mock://tts/%s.wav", sc.TraceID)
	return taskerr.OkUnit()
}

type composeStage struct{}

func (composeStage) Name() string { return "mock.compose" }

func (composeStage) Execute(ctx context.Context, sc *stage.Context) taskerr.Result[taskerr.Unit] {
	if err := simulateProgress(sc); err != nil {
		return taskerr.ErrUnit(err)
	}

	imagePaths := sc.Inputs.Strings("image_path")
	sc.Outputs["output_path"] = fmt.Sprintf("mock://compose/%s/output.mp4", sc.TraceID)
	sc.Outputs["composed_image_count"] = len(imagePaths)

	return taskerr.OkUnit()
}

// unknownStage is returned for a task.Type the factory doesn't recognise;
// it fails immediately rather than silently no-op-ing.
type unknownStage struct {
	typ task.Type
}

func (u unknownStage) Name() string { return "mock.unknown" }

func (u unknownStage) Execute(ctx context.Context, sc *stage.Context) taskerr.Result[taskerr.Unit] {
	return taskerr.ErrUnit(taskerr.InternalErrf("mock: no stage implementation for task type %s", u.typ))
}
