// Rubric Engine demo binary.
//
// Starts one pipeline run against a fixed problem statement, streams its
// events to stdout as they're emitted, answers any blocking questions with
// a canned response, and prints the final assembled result.
//
// Usage:
//
//	go run ./cmd/engine                      # in-memory snapshots
//	go run ./cmd/engine -snapshot-dsn run.db # persist to a sqlite file
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jeeves-cluster-organization/rubric-engine/coreengine/analyzer"
	"github.com/jeeves-cluster-organization/rubric-engine/coreengine/config"
	"github.com/jeeves-cluster-organization/rubric-engine/coreengine/eventbus"
	"github.com/jeeves-cluster-organization/rubric-engine/coreengine/observability"
	"github.com/jeeves-cluster-organization/rubric-engine/coreengine/rubric"
	"github.com/jeeves-cluster-organization/rubric-engine/coreengine/runmanager"
	"github.com/jeeves-cluster-organization/rubric-engine/coreengine/snapshot"
)

// stdLogger implements executor.Logger using the standard library log
// package.
type stdLogger struct{}

func (l *stdLogger) Debug(msg string, keysAndValues ...any) {
	log.Printf("[DEBUG] %s %v", msg, keysAndValues)
}

func (l *stdLogger) Info(msg string, keysAndValues ...any) {
	log.Printf("[INFO] %s %v", msg, keysAndValues)
}

func (l *stdLogger) Warn(msg string, keysAndValues ...any) {
	log.Printf("[WARN] %s %v", msg, keysAndValues)
}

func (l *stdLogger) Error(msg string, keysAndValues ...any) {
	log.Printf("[ERROR] %s %v", msg, keysAndValues)
}

func main() {
	snapshotDSN := flag.String("snapshot-dsn", "", "sqlite DSN for run snapshots; empty means in-memory only")
	problem := flag.String("problem", "Should we automate triage of inbound support tickets with an LLM classifier?", "problem statement to evaluate")
	flag.Parse()

	logger := &stdLogger{}
	logger.Info("rubric_engine_starting", "version", "1.0.0")

	shutdownTracer, err := observability.InitTracer("rubric-engine", os.Stdout)
	if err != nil {
		log.Fatalf("failed to init tracer: %v", err)
	}
	defer shutdownTracer(context.Background())

	var snapStore snapshot.Adapter
	if *snapshotDSN != "" {
		sqliteAdapter, err := snapshot.NewSQLiteAdapter(*snapshotDSN, snapshot.WithLogger(logger))
		if err != nil {
			log.Fatalf("failed to open snapshot store: %v", err)
		}
		if err := sqliteAdapter.Init(context.Background()); err != nil {
			log.Fatalf("failed to init snapshot schema: %v", err)
		}
		defer sqliteAdapter.Close()
		snapStore = sqliteAdapter
		logger.Info("snapshot_store_ready", "dsn", *snapshotDSN)
	} else {
		snapStore = snapshot.NewMemoryAdapter()
		logger.Info("snapshot_store_ready", "dsn", "in-memory")
	}

	cfg := config.FromEnv()
	manager := runmanager.New(cfg, analyzer.NewMockSet(), snapStore, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	input := rubric.PipelineInput{Problem: *problem}
	state, bus, err := manager.StartPipeline(ctx, input)
	if err != nil {
		log.Fatalf("failed to start pipeline: %v", err)
	}
	logger.Info("run_started", "runId", state.RunId())

	done := make(chan struct{})
	go drainEvents(manager, state.RunId(), bus, done)

	select {
	case <-done:
	case sig := <-sigCh:
		logger.Info("shutdown_signal_received", "signal", sig.String())
		_ = manager.CancelRun(state.RunId())
		<-done
	}

	status, err := manager.GetRunStatus(state.RunId())
	if err != nil {
		log.Fatalf("failed to read run status: %v", err)
	}
	if status.Status != rubric.StatusCompleted {
		fmt.Printf("\nrun %s ended with status %s\n", state.RunId(), status.Status)
		return
	}

	result, err := manager.GetResult(state.RunId())
	if err != nil {
		log.Fatalf("failed to assemble result: %v", err)
	}
	fmt.Printf("\nverdict: %s (confidence %.2f)\n%s\n", result.Verdict.Verdict, result.Verdict.Confidence, result.FinalReasoning)
}

// drainEvents consumes a run's event stream(s), answering any blocking
// question it surfaces with a canned response and following the run
// through each resume leg, until a leg ends with no further resume issued.
func drainEvents(manager *runmanager.Manager, runId string, bus *eventbus.Bus, done chan struct{}) {
	defer close(done)

	answered := false
	for bus != nil {
		nextBus, err := drainOneLeg(manager, runId, bus, &answered)
		if err != nil {
			fmt.Printf("resume failed: %v\n", err)
			return
		}
		bus = nextBus
	}
}

// drainOneLeg drains one bus until it's abandoned (a resume was issued) or
// closed (the run reached a terminal state). It returns the new leg's bus
// when a resume was issued, or nil otherwise.
func drainOneLeg(manager *runmanager.Manager, runId string, bus *eventbus.Bus, answered *bool) (*eventbus.Bus, error) {
	for e := range bus.Events() {
		fmt.Printf("[%d] %s\n", e.Seq, e.Type)

		if *answered {
			continue
		}
		if e.Type != eventbus.TagScreeningQuestion && e.Type != eventbus.TagDimensionQuestion {
			continue
		}
		q, ok := e.Data["question"].(rubric.FollowUpQuestion)
		if !ok || q.Priority != rubric.PriorityBlocking {
			continue
		}

		*answered = true
		answer := rubric.UserAnswer{
			QuestionId: q.Id,
			Answer:     "Assume typical SaaS support volume and no regulatory constraints.",
			Source:     answerSourceForStage(q.Source.Stage),
			Timestamp:  time.Now().UTC().Unix(),
		}
		_, newBus, err := manager.ResumePipeline(context.Background(), runId, []rubric.UserAnswer{answer})
		if err != nil {
			return nil, err
		}
		return newBus, nil
	}
	return nil, nil
}

func answerSourceForStage(stage rubric.PipelineStage) rubric.AnswerSource {
	if stage == rubric.StageScreening {
		return rubric.SourceScreening
	}
	return rubric.SourceDimension
}
