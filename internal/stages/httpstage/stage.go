package httpstage

import (
	"context"
	"fmt"

	"github.com/aristath/pipeline-orchestrator/internal/config"
	"github.com/aristath/pipeline-orchestrator/internal/corelog"
	"github.com/aristath/pipeline-orchestrator/internal/stage"
	"github.com/aristath/pipeline-orchestrator/internal/task"
	"github.com/aristath/pipeline-orchestrator/internal/taskerr"
	"github.com/aristath/pipeline-orchestrator/internal/tokenstore"
)

// requiredOutputs lists, per task type, the response keys the remote
// backend must return for the task to be considered successful. Only these
// keys are copied into the stage's outputs; any other response keys are
// dropped.
var requiredOutputs = map[task.Type][]string{
	task.Storyboard: {"scenes", "storyboard_json"},
	task.ImageGen:   {"image_path"},
	task.VideoClip:  {"clip_path"},
	task.TTS:        {"audio_path"},
	task.Compose:    {"output_path"},
}

// backendKey returns the config.Stages map key for typ, matching
// internal/config's default stage names.
func backendKey(typ task.Type) string {
	switch typ {
	case task.Storyboard:
		return "storyboard"
	case task.ImageGen:
		return "image_gen"
	case task.VideoClip:
		return "video_clip"
	case task.TTS:
		return "tts"
	case task.Compose:
		return "compose"
	default:
		return ""
	}
}

// httpStage performs one remote call per task execution, wrapping it in
// retry + circuit breaker protection, and records the resulting artifacts
// in store for later inspection or resume.
type httpStage struct {
	typ      task.Type
	endpoint string
	client   RemoteClient
	cb       *CircuitBreakerRegistry
	retryCfg RetryConfig
	store    tokenstore.Store
	logger   corelog.Logger
}

func (s *httpStage) Name() string { return "http." + backendKey(s.typ) }

func (s *httpStage) Execute(ctx context.Context, sc *stage.Context) taskerr.Result[taskerr.Unit] {
	payload := buildPayload(s.typ, sc)

	sc.ReportProgress(0.1)

	resp, err := callWithRetry(ctx, s.client, s.endpoint, payload, s.cb.Get(s.endpoint), s.retryCfg)
	if err != nil {
		s.logger.Error(sc.TraceID, s.Name(), "call_failed", err.Error())
		if ctx.Err() != nil {
			return taskerr.ErrUnit(taskerr.CanceledErr("canceled during remote call"))
		}
		return taskerr.ErrUnit(taskerr.NetworkErr(fmt.Sprintf("remote call to %s failed: %v", s.endpoint, err)).WithDetail("endpoint", s.endpoint))
	}

	sc.ReportProgress(0.9)

	for _, key := range requiredOutputs[s.typ] {
		val, ok := resp[key]
		if !ok {
			return taskerr.ErrUnit(taskerr.PipelineErr(fmt.Sprintf("backend response missing required key %q", key), false))
		}
		sc.Outputs[key] = val

		if strVal, ok := val.(string); ok {
			// Serialize on the artifact path itself: a misconfigured workflow
			// that points two tasks at the same generated file must not let
			// their artifact records race.
			sc.LockPath(strVal)
			if s.store != nil {
				if err := s.store.RecordArtifact(ctx, sc.TraceID, key, strVal); err != nil {
					s.logger.Warn(sc.TraceID, s.Name(), "artifact_record_failed", err.Error())
				}
			}
			sc.UnlockPath(strVal)
		}
	}

	sc.ReportProgress(1.0)
	return taskerr.OkUnit()
}

// buildPayload assembles the request body for typ from the stage's inputs,
// mirroring the field set internal/stages/mock expects on the same types.
func buildPayload(typ task.Type, sc *stage.Context) map[string]any {
	switch typ {
	case task.Storyboard:
		return map[string]any{
			"story_text":  sc.Inputs.String("story_text"),
			"style":       sc.Inputs.String("style"),
			"scene_count": sc.Inputs.Int("scene_count"),
		}
	case task.ImageGen:
		return map[string]any{
			"scene_index": sc.Inputs.Int("scene_index"),
			"style":       sc.Inputs.String("style"),
		}
	case task.VideoClip:
		return map[string]any{
			"image_path": sc.Inputs.String("image_path"),
		}
	case task.TTS:
		return map[string]any{
			"story_text": sc.Inputs.String("story_text"),
		}
	case task.Compose:
		return map[string]any{
			"image_path": sc.Inputs.Strings("image_path"),
		}
	default:
		return map[string]any{}
	}
}

// NewFactory returns a stage.Factory that serves an http-backed stage for
// every task type whose config.StageBackendConfig.Backend is "http", and
// falls back to fallback for everything else (typically the mock factory).
func NewFactory(cfg map[string]config.StageBackendConfig, store tokenstore.Store, logger corelog.Logger, fallback stage.Factory) stage.Factory {
	registry := NewCircuitBreakerRegistry()
	retryCfg := DefaultRetryConfig()

	return func(typ task.Type) stage.Stage {
		key := backendKey(typ)
		backendCfg, ok := cfg[key]
		if !ok || backendCfg.Backend != "http" {
			return fallback(typ)
		}

		token, _, err := store.GetToken(context.Background(), key)
		if err != nil {
			logger.Warn("", "http."+key, "token_lookup_failed", err.Error())
		}

		return &httpStage{
			typ:      typ,
			endpoint: backendCfg.Endpoint,
			client:   NewHTTPClient(token),
			cb:       registry,
			retryCfg: retryCfg,
			store:    store,
			logger:   logger,
		}
	}
}
