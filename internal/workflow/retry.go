package workflow

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/aristath/pipeline-orchestrator/internal/cancel"
	"github.com/aristath/pipeline-orchestrator/internal/stage"
	"github.com/aristath/pipeline-orchestrator/internal/task"
)

// RetrySpec is the replacement task graph for a failed workflow. The
// workflow engine never retries on its own (spec §7: "the workflow engine
// does not retry; retries are re-submits by the caller with a fresh task
// graph") — BuildRetry only constructs the graph; the caller decides
// whether and when to Submit it.
type RetrySpec struct {
	TraceID      string
	StoryboardID string
	ImageGenIDs  []string
	ComposeID    string

	Descriptors []*task.Descriptor
	Inputs      map[string]stage.Bag
}

// BuildRetry constructs a fresh task graph for the same (story, style,
// sceneCount) creative pipeline, under a new trace_id and a new shared
// cancel token. It does not touch the scheduler or the failed workflow's
// state in any way.
func BuildRetry(story, style string, sceneCount int) *RetrySpec {
	traceID := uuid.New().String()
	tok := cancel.New()

	spec := &RetrySpec{
		TraceID: traceID,
		Inputs:  make(map[string]stage.Bag),
	}

	storyboardID := traceID + "-storyboard"
	spec.StoryboardID = storyboardID
	storyboardDesc := task.New(storyboardID, traceID, task.Storyboard, 100, task.ResourceDemand{CPUSlots: 1}, nil, tok)
	spec.Descriptors = append(spec.Descriptors, storyboardDesc)
	spec.Inputs[storyboardID] = stage.Bag{
		"story_text":  story,
		"style":       style,
		"scene_count": sceneCount,
	}

	imageGenIDs := make([]string, sceneCount)
	for i := 0; i < sceneCount; i++ {
		id := fmt.Sprintf("%s-image-%d", traceID, i)
		imageGenIDs[i] = id
		desc := task.New(id, traceID, task.ImageGen, 50, task.ResourceDemand{CPUSlots: 1}, []string{storyboardID}, tok)
		spec.Descriptors = append(spec.Descriptors, desc)
		spec.Inputs[id] = stage.Bag{"scene_index": i}
	}
	spec.ImageGenIDs = imageGenIDs

	composeID := traceID + "-compose"
	spec.ComposeID = composeID
	composeDesc := task.New(composeID, traceID, task.Compose, 10, task.ResourceDemand{CPUSlots: 1}, imageGenIDs, tok)
	spec.Descriptors = append(spec.Descriptors, composeDesc)

	return spec
}
