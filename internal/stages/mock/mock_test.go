package mock

import (
	"context"
	"testing"

	"github.com/aristath/pipeline-orchestrator/internal/cancel"
	"github.com/aristath/pipeline-orchestrator/internal/stage"
	"github.com/aristath/pipeline-orchestrator/internal/task"
)

func TestNewFactory_CoversEveryTaskType(t *testing.T) {
	factory := NewFactory()
	for _, typ := range []task.Type{task.Storyboard, task.ImageGen, task.VideoClip, task.TTS, task.Compose} {
		if factory(typ) == nil {
			t.Fatalf("factory returned nil for %s", typ)
		}
	}
}

func TestStoryboardStage_ProducesScenesMatchingSceneCount(t *testing.T) {
	st := storyboardStage{}
	sc := stage.NewContext("trace-1", cancel.New(), stage.Bag{
		"story_text":  "a quiet village",
		"style":       "watercolor",
		"scene_count": 3,
	}, nil)

	res := st.Execute(context.Background(), sc)
	if !res.IsOk() {
		t.Fatalf("Execute failed: %v", res.Error())
	}

	scenes := sc.Outputs.Strings("scenes")
	if len(scenes) != 3 {
		t.Fatalf("scenes = %d, want 3", len(scenes))
	}
	if sc.Outputs.String("storyboard_json") == "" {
		t.Fatal("storyboard_json output missing")
	}
}

func TestImageGenStage_OutputsImagePath(t *testing.T) {
	st := imageGenStage{}
	sc := stage.NewContext("trace-1", cancel.New(), stage.Bag{"scene_index": 2}, nil)

	res := st.Execute(context.Background(), sc)
	if !res.IsOk() {
		t.Fatalf("Execute failed: %v", res.Error())
	}
	if sc.Outputs.String("image_path") == "" {
		t.Fatal("image_path output missing")
	}
}

func TestComposeStage_OutputsOutputPath(t *testing.T) {
	st := composeStage{}
	sc := stage.NewContext("trace-1", cancel.New(), stage.Bag{
		"image_path": []any{"a.png", "b.png"},
	}, nil)

	res := st.Execute(context.Background(), sc)
	if !res.IsOk() {
		t.Fatalf("Execute failed: %v", res.Error())
	}
	if sc.Outputs.String("output_path") == "" {
		t.Fatal("output_path output missing")
	}
}

func TestSimulateProgress_StopsOnCancel(t *testing.T) {
	tok := cancel.New()
	tok.Request()

	sc := stage.NewContext("trace-1", tok, stage.Bag{}, nil)
	err := simulateProgress(sc)
	if err == nil {
		t.Fatal("expected a Canceled TaskError when the token is already canceled")
	}
}

func TestUnknownStage_FailsExplicitly(t *testing.T) {
	st := unknownStage{typ: task.Type(999)}
	sc := stage.NewContext("trace-1", cancel.New(), stage.Bag{}, nil)

	res := st.Execute(context.Background(), sc)
	if res.IsOk() {
		t.Fatal("expected unknown task type to fail")
	}
}
