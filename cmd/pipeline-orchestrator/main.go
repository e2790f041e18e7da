package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/aristath/pipeline-orchestrator/internal/config"
	"github.com/aristath/pipeline-orchestrator/internal/corelog"
	"github.com/aristath/pipeline-orchestrator/internal/events"
	"github.com/aristath/pipeline-orchestrator/internal/presenter"
	"github.com/aristath/pipeline-orchestrator/internal/scheduler"
	"github.com/aristath/pipeline-orchestrator/internal/stages/httpstage"
	"github.com/aristath/pipeline-orchestrator/internal/stages/mock"
	"github.com/aristath/pipeline-orchestrator/internal/task"
	"github.com/aristath/pipeline-orchestrator/internal/tokenstore"
	"github.com/aristath/pipeline-orchestrator/internal/workflow"
)

func main() {
	story := flag.String("story", "A lighthouse keeper finds a message in a bottle.", "story text fed to the storyboard stage")
	style := flag.String("style", "", "visual style hint; defaults to the pipeline config's default_style")
	scenes := flag.Int("scenes", 3, "number of scenes to storyboard and render")
	headless := flag.Bool("headless", false, "run without the TUI, logging progress to stderr instead")
	dbPath := flag.String("db", "", "path to the token/artifact SQLite database; defaults to ~/.pipeline-orchestrator/store.db")
	flag.Parse()

	// Create signal-aware context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadDefault()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}

	if *style == "" {
		*style = cfg.Pipeline.DefaultStyle
	}
	if *scenes < cfg.Pipeline.MinSceneCount {
		*scenes = cfg.Pipeline.MinSceneCount
	}
	if cfg.Pipeline.MaxSceneCount > 0 && *scenes > cfg.Pipeline.MaxSceneCount {
		*scenes = cfg.Pipeline.MaxSceneCount
	}

	storePath := *dbPath
	if storePath == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error getting home directory: %v\n", err)
			os.Exit(1)
		}
		storePath = filepath.Join(homeDir, ".pipeline-orchestrator", "store.db")
	}

	store, err := tokenstore.Open(ctx, storePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening token store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	logger := corelog.NewStdLogger()

	sched := scheduler.New(schedulerConfigFrom(cfg.Scheduler))
	defer sched.Shutdown()

	factory := httpstage.NewFactory(cfg.Stages, store, logger, mock.NewFactory())
	eng := workflow.New(sched, factory)

	bus := events.NewEventBus()
	defer bus.Close()
	wireEvents(sched, eng, bus)

	r := eng.StartWorkflow(*story, *style, *scenes)
	if !r.IsOk() {
		fmt.Fprintf(os.Stderr, "Error starting workflow: %v\n", r.Error())
		os.Exit(1)
	}
	traceID, _ := r.Value()
	logger.Info(traceID, "main", "workflow_started", fmt.Sprintf("scenes=%d style=%q", *scenes, *style))

	if *headless {
		runHeadless(ctx, bus, traceID)
		log.Println("Shutdown complete")
		return
	}

	model := presenter.New(bus)
	p := tea.NewProgram(model, tea.WithAltScreen())

	errChan := make(chan error, 1)
	go func() {
		_, err := p.Run()
		errChan <- err
	}()

	select {
	case err := <-errChan:
		// Normal TUI exit (user pressed 'q' or the TUI finished)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		// Signal received (Ctrl+C or SIGTERM). Restore default handling so
		// a second Ctrl+C forces an immediate exit.
		stop()

		log.Println("Shutdown signal received, cleaning up...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		p.Quit()

		select {
		case err := <-errChan:
			if err != nil {
				log.Printf("TUI exit error: %v", err)
			}
		case <-shutdownCtx.Done():
			log.Println("Shutdown timeout exceeded, forcing exit")
		}
	}

	log.Println("Shutdown complete")
}

// schedulerConfigFrom translates the JSON-friendly config.SchedulerConfig
// into scheduler.Config; zero fields pass through untouched and are filled
// by scheduler.Config.Normalize at construction time.
func schedulerConfigFrom(c config.SchedulerConfig) scheduler.Config {
	return scheduler.Config{
		WorkerCount: c.WorkerCount,
		ResourceBudget: scheduler.ResourceBudgetConfig{
			CPUSlotsHard: c.ResourceBudget.CPUSlotsHard,
			RAMSoftMB:    c.ResourceBudget.RAMSoftMB,
			VRAMSoftMB:   c.ResourceBudget.VRAMSoftMB,
		},
		Aging: scheduler.AgingPolicy{
			IntervalMS:       c.Aging.IntervalMS,
			BoostPerInterval: c.Aging.BoostPerInterval,
		},
		Pause: scheduler.PausePolicy{
			CheckpointTimeout: time.Duration(c.Pause.CheckpointTimeoutMS) * time.Millisecond,
		},
	}
}

// wireEvents bridges the scheduler's per-task state-change callback and the
// workflow engine's progress/completion callbacks onto bus, translating
// each into the events package's published shapes.
func wireEvents(sched *scheduler.Scheduler, eng *workflow.Engine, bus *events.EventBus) {
	sched.OnStateChange(func(taskID string, st task.State, progress float64) {
		bus.Publish(events.TopicTask, events.TaskStateChangedEvent{
			ID:        taskID,
			State:     st.String(),
			Progress:  progress,
			Timestamp: time.Now(),
		})
	})

	eng.OnAggregateProgress(func(traceID string, total, succeeded, running, failed, canceled, pending int) {
		bus.Publish(events.TopicWorkflow, events.WorkflowProgressEvent{
			TraceID:   traceID,
			Total:     total,
			Succeeded: succeeded,
			Running:   running,
			Failed:    failed,
			Canceled:  canceled,
			Pending:   pending,
			Timestamp: time.Now(),
		})
	})

	eng.OnCompletion(func(traceID string, ok bool) {
		bus.Publish(events.TopicWorkflow, events.WorkflowCompletedEvent{
			TraceID:   traceID,
			Succeeded: ok,
			Timestamp: time.Now(),
		})
	})
}

// runHeadless drains bus until traceID's workflow reaches completion or ctx
// is canceled, logging every event line to stderr in place of the TUI.
func runHeadless(ctx context.Context, bus *events.EventBus, traceID string) {
	sub := bus.Subscribe(events.TopicWorkflow, 256)
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-sub:
			if !ok {
				return
			}
			switch e := evt.(type) {
			case events.WorkflowProgressEvent:
				if e.TraceID != traceID {
					continue
				}
				log.Printf("progress: %d/%d succeeded, %d running, %d failed, %d canceled, %d pending",
					e.Succeeded, e.Total, e.Running, e.Failed, e.Canceled, e.Pending)
			case events.WorkflowCompletedEvent:
				if e.TraceID != traceID {
					continue
				}
				log.Printf("workflow %s finished: succeeded=%v", strings.TrimSpace(e.TraceID), e.Succeeded)
				return
			}
		}
	}
}
