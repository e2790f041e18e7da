package httpstage

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aristath/pipeline-orchestrator/internal/cancel"
	"github.com/aristath/pipeline-orchestrator/internal/config"
	"github.com/aristath/pipeline-orchestrator/internal/corelog"
	"github.com/aristath/pipeline-orchestrator/internal/stage"
	"github.com/aristath/pipeline-orchestrator/internal/task"
	"github.com/aristath/pipeline-orchestrator/internal/tokenstore"
)

type fakeClient struct {
	calls      int32
	failTimes  int32
	response   map[string]any
	err        error
	lastPayload map[string]any
}

func (f *fakeClient) Call(ctx context.Context, endpoint string, payload map[string]any) (map[string]any, error) {
	n := atomic.AddInt32(&f.calls, 1)
	f.lastPayload = payload
	if n <= f.failTimes {
		return nil, errors.New("transient backend failure")
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.response, nil
}

func fastRetryConfig() RetryConfig {
	return RetryConfig{
		InitialInterval:     1 * time.Millisecond,
		MaxInterval:         5 * time.Millisecond,
		MaxElapsedTime:      500 * time.Millisecond,
		Multiplier:          2.0,
		RandomizationFactor: 0,
	}
}

func TestHTTPStage_ImageGenSucceedsOnFirstCall(t *testing.T) {
	client := &fakeClient{response: map[string]any{"image_path": "/out/scene-0.png"}}
	st := &httpStage{
		typ:      task.ImageGen,
		endpoint: "http://backend.local/image-gen",
		client:   client,
		cb:       NewCircuitBreakerRegistry(),
		retryCfg: fastRetryConfig(),
		store:    nil,
		logger:   corelog.Nop{},
	}

	sc := stage.NewContext("trace-1", cancel.New(), stage.Bag{"scene_index": 2, "style": "noir"}, nil)
	res := st.Execute(context.Background(), sc)
	if !res.IsOk() {
		t.Fatalf("Execute failed: %v", res.Error())
	}
	if sc.Outputs.String("image_path") != "/out/scene-0.png" {
		t.Fatalf("image_path = %q", sc.Outputs.String("image_path"))
	}
	if client.calls != 1 {
		t.Fatalf("calls = %d, want 1", client.calls)
	}
}

func TestHTTPStage_RetriesOnTransientFailure(t *testing.T) {
	client := &fakeClient{failTimes: 2, response: map[string]any{"image_path": "/out/scene-0.png"}}
	st := &httpStage{
		typ:      task.ImageGen,
		endpoint: "http://backend.local/image-gen",
		client:   client,
		cb:       NewCircuitBreakerRegistry(),
		retryCfg: fastRetryConfig(),
		logger:   corelog.Nop{},
	}

	sc := stage.NewContext("trace-1", cancel.New(), stage.Bag{"scene_index": 0}, nil)
	res := st.Execute(context.Background(), sc)
	if !res.IsOk() {
		t.Fatalf("Execute failed after retries: %v", res.Error())
	}
	if client.calls != 3 {
		t.Fatalf("calls = %d, want 3 (2 failures + 1 success)", client.calls)
	}
}

func TestHTTPStage_FailsAfterExhaustingRetries(t *testing.T) {
	client := &fakeClient{err: errors.New("backend down")}
	st := &httpStage{
		typ:      task.ImageGen,
		endpoint: "http://backend.local/image-gen",
		client:   client,
		cb:       NewCircuitBreakerRegistry(),
		retryCfg: RetryConfig{
			InitialInterval:     1 * time.Millisecond,
			MaxInterval:         2 * time.Millisecond,
			MaxElapsedTime:      20 * time.Millisecond,
			Multiplier:          2.0,
			RandomizationFactor: 0,
		},
		logger: corelog.Nop{},
	}

	sc := stage.NewContext("trace-1", cancel.New(), stage.Bag{"scene_index": 0}, nil)
	res := st.Execute(context.Background(), sc)
	if res.IsOk() {
		t.Fatal("expected Execute to fail once retries are exhausted")
	}
	if res.Error().Category.String() != "Network" {
		t.Fatalf("error category = %v, want Network", res.Error().Category)
	}
}

func TestHTTPStage_MissingResponseKeyFails(t *testing.T) {
	client := &fakeClient{response: map[string]any{"wrong_key": "value"}}
	st := &httpStage{
		typ:      task.ImageGen,
		endpoint: "http://backend.local/image-gen",
		client:   client,
		cb:       NewCircuitBreakerRegistry(),
		retryCfg: fastRetryConfig(),
		logger:   corelog.Nop{},
	}

	sc := stage.NewContext("trace-1", cancel.New(), stage.Bag{"scene_index": 0}, nil)
	res := st.Execute(context.Background(), sc)
	if res.IsOk() {
		t.Fatal("expected missing required output key to fail the task")
	}
}

func TestHTTPStage_RecordsArtifactInStore(t *testing.T) {
	ctx := context.Background()
	store, err := tokenstore.OpenMemory(ctx)
	if err != nil {
		t.Fatalf("OpenMemory failed: %v", err)
	}
	defer store.Close()

	client := &fakeClient{response: map[string]any{"image_path": "/out/scene-0.png"}}
	st := &httpStage{
		typ:      task.ImageGen,
		endpoint: "http://backend.local/image-gen",
		client:   client,
		cb:       NewCircuitBreakerRegistry(),
		retryCfg: fastRetryConfig(),
		store:    store,
		logger:   corelog.Nop{},
	}

	sc := stage.NewContext("trace-7", cancel.New(), stage.Bag{"scene_index": 0}, nil)
	if res := st.Execute(ctx, sc); !res.IsOk() {
		t.Fatalf("Execute failed: %v", res.Error())
	}

	value, ok, err := store.GetArtifact(ctx, "trace-7", "image_path")
	if err != nil || !ok || value != "/out/scene-0.png" {
		t.Fatalf("GetArtifact = (%q, %v, %v), want (%q, true, nil)", value, ok, err, "/out/scene-0.png")
	}
}

func TestNewFactory_FallsBackForNonHTTPBackends(t *testing.T) {
	ctx := context.Background()
	store, err := tokenstore.OpenMemory(ctx)
	if err != nil {
		t.Fatalf("OpenMemory failed: %v", err)
	}
	defer store.Close()

	fallbackCalled := false
	fallback := func(typ task.Type) stage.Stage {
		fallbackCalled = true
		return nil
	}

	factory := NewFactory(map[string]config.StageBackendConfig{
		"image_gen": {Backend: "mock"},
	}, store, corelog.Nop{}, fallback)

	factory(task.ImageGen)
	if !fallbackCalled {
		t.Fatal("expected fallback factory to be used for a non-http backend")
	}
}

func TestNewFactory_BuildsHTTPStageForHTTPBackend(t *testing.T) {
	ctx := context.Background()
	store, err := tokenstore.OpenMemory(ctx)
	if err != nil {
		t.Fatalf("OpenMemory failed: %v", err)
	}
	defer store.Close()

	factory := NewFactory(map[string]config.StageBackendConfig{
		"image_gen": {Backend: "http", Endpoint: "http://backend.local/image-gen"},
	}, store, corelog.Nop{}, func(task.Type) stage.Stage { return nil })

	st := factory(task.ImageGen)
	if st == nil {
		t.Fatal("expected an http-backed stage, got nil")
	}
	if _, ok := st.(*httpStage); !ok {
		t.Fatalf("expected *httpStage, got %T", st)
	}
}
