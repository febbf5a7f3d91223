package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jaa/batchdl/internal/api"
	"github.com/jaa/batchdl/internal/history"
	"github.com/jaa/batchdl/internal/output"
	"github.com/jaa/batchdl/internal/progress"
)

const DefaultConcurrency = 3

var ErrInterrupted = errors.New("batch interrupted")

// Request is one playlist entry to download. Done marks entries already
// finished by an earlier run; they are counted complete without touching
// the server.
type Request struct {
	Job   api.JobRequest
	Title string
	Done  bool
}

// Summary is a point-in-time view over a running batch. It is recomputed
// after every claim and resolution, so done+failed never exceeds total and
// equals it exactly when the batch ends.
type Summary struct {
	Total     int
	Claimed   int
	Done      int
	Failed    int
	Remaining int
	Active    []string
}

// Result is the final report of one batch run.
type Result struct {
	RunID        string
	Total        int
	Done         int
	Failed       int
	CompletedIDs []string
	Interrupted  bool
}

func (r Result) AllComplete() bool {
	return !r.Interrupted && r.Failed == 0
}

// ExportAvailable reports whether bulk archive export should be offered.
func (r Result) ExportAvailable() bool {
	return len(r.CompletedIDs) > 1
}

// Orchestrator runs a bounded pool of workers over an ordered request list.
// Workers claim the next unclaimed index through an atomic cursor, so each
// request is processed exactly once and in claim order.
type Orchestrator struct {
	Submit    func(ctx context.Context, req api.JobRequest) (string, error)
	Subscribe progress.SubscribeFunc

	// Concurrency caps in-flight jobs; zero means min(DefaultConcurrency,
	// request count). The conversion backend multiplexes one external tool
	// process per job, so the cap stays small.
	Concurrency int
	Retries     int
	Backoff     time.Duration

	History   *history.Store
	Emitter   output.EventEmitter
	OnSummary func(Summary)
	Now       func() time.Time
}

type batchState struct {
	mu        sync.Mutex
	total     int
	claimed   int
	done      int
	failed    int
	completed []string
	active    map[int]string
}

func (o *Orchestrator) Run(ctx context.Context, requests []Request) (Result, error) {
	if o.Now == nil {
		o.Now = time.Now
	}

	runID := uuid.NewString()
	state := &batchState{total: len(requests), active: map[int]string{}}

	o.emit(output.Event{
		Level:   output.LevelInfo,
		Event:   output.EventBatchStarted,
		Message: fmt.Sprintf("batch started (%d download(s))", len(requests)),
		Details: map[string]any{"run_id": runID, "total": len(requests)},
	})

	workers := o.concurrency(len(requests))
	var cursor atomic.Int64

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			o.worker(ctx, &cursor, requests, state)
			return nil
		})
	}
	_ = g.Wait()

	state.mu.Lock()
	result := Result{
		RunID:        runID,
		Total:        state.total,
		Done:         state.done,
		Failed:       state.failed,
		CompletedIDs: append([]string(nil), state.completed...),
		Interrupted:  state.done+state.failed < state.total,
	}
	state.mu.Unlock()

	message := fmt.Sprintf("all downloads complete: %d / %d", result.Done, result.Total)
	if result.Failed > 0 {
		message = fmt.Sprintf("finished with errors: %d downloaded, %d failed", result.Done, result.Failed)
	}
	if result.Interrupted {
		message = fmt.Sprintf("batch interrupted: %d downloaded, %d failed, %d unresolved",
			result.Done, result.Failed, result.Total-result.Done-result.Failed)
	}
	o.emit(output.Event{
		Level:   output.LevelInfo,
		Event:   output.EventBatchFinished,
		Message: message,
		Details: map[string]any{
			"run_id": runID,
			"total":  result.Total,
			"done":   result.Done,
			"failed": result.Failed,
		},
	})

	if result.Interrupted {
		return result, ErrInterrupted
	}
	return result, nil
}

func (o *Orchestrator) worker(ctx context.Context, cursor *atomic.Int64, requests []Request, state *batchState) {
	for {
		if ctx.Err() != nil {
			return
		}
		index := int(cursor.Add(1) - 1)
		if index >= len(requests) {
			return
		}

		request := requests[index]
		title := request.Title
		if title == "" {
			title = request.Job.URL
		}

		if request.Done {
			state.mu.Lock()
			state.claimed++
			state.done++
			state.mu.Unlock()
			o.emit(output.Event{
				Level:   output.LevelInfo,
				Event:   output.EventJobSkipped,
				Message: fmt.Sprintf("[%d/%d] %s — already downloaded", index+1, len(requests), title),
			})
			o.publishSummary(state)
			continue
		}

		state.mu.Lock()
		state.claimed++
		state.active[index] = title
		state.mu.Unlock()
		o.publishSummary(state)

		jobID, err := o.Submit(ctx, request.Job)
		if err != nil {
			o.resolve(state, index, false, "")
			o.emit(output.Event{
				Level:   output.LevelError,
				Event:   output.EventJobFailed,
				Message: fmt.Sprintf("[%d/%d] %s — submission failed: %v", index+1, len(requests), title, err),
			})
			o.publishSummary(state)
			continue
		}

		o.emit(output.Event{
			Level:   output.LevelInfo,
			Event:   output.EventJobSubmitted,
			JobID:   jobID,
			Message: fmt.Sprintf("[%d/%d] %s", index+1, len(requests), title),
		})

		tracker := &progress.Tracker{
			Subscribe: o.Subscribe,
			Retries:   o.Retries,
			Backoff:   o.Backoff,
			OnUpdate: func(snapshot progress.Snapshot) {
				o.emit(output.Event{
					Level:   output.LevelInfo,
					Event:   output.EventJobProgress,
					JobID:   jobID,
					Message: fmt.Sprintf("[%d/%d] %s — %s", index+1, len(requests), title, snapshot.Label),
				})
			},
		}
		outcome := tracker.Track(ctx, jobID, !request.Job.Metadata.Empty())

		if outcome.Succeeded {
			o.resolve(state, index, true, jobID)
			o.appendHistory(history.Record{
				JobID:     jobID,
				Title:     title,
				Format:    request.Job.Format,
				SourceURL: request.Job.URL,
			})
			o.emit(output.Event{
				Level:   output.LevelInfo,
				Event:   output.EventJobFinished,
				JobID:   jobID,
				Message: fmt.Sprintf("[%d/%d] %s — %s", index+1, len(requests), title, outcome.Message),
			})
		} else {
			o.resolve(state, index, false, "")
			o.emit(output.Event{
				Level:   output.LevelError,
				Event:   output.EventJobFailed,
				JobID:   jobID,
				Message: fmt.Sprintf("[%d/%d] %s — %s", index+1, len(requests), title, outcome.Message),
			})
		}
		o.publishSummary(state)
	}
}

func (o *Orchestrator) resolve(state *batchState, index int, succeeded bool, jobID string) {
	state.mu.Lock()
	defer state.mu.Unlock()

	delete(state.active, index)
	if succeeded {
		state.done++
		if jobID != "" {
			state.completed = append(state.completed, jobID)
		}
	} else {
		state.failed++
	}
}

func (o *Orchestrator) publishSummary(state *batchState) {
	if o.OnSummary == nil {
		return
	}

	state.mu.Lock()
	summary := Summary{
		Total:     state.total,
		Claimed:   state.claimed,
		Done:      state.done,
		Failed:    state.failed,
		Remaining: state.total - state.done - state.failed,
	}
	for _, title := range state.active {
		summary.Active = append(summary.Active, title)
	}
	state.mu.Unlock()

	o.OnSummary(summary)
}

func (o *Orchestrator) appendHistory(record history.Record) {
	if o.History == nil {
		return
	}
	if err := o.History.Append(record); err != nil {
		o.emit(output.Event{
			Level:   output.LevelWarn,
			Event:   output.EventJobFinished,
			JobID:   record.JobID,
			Message: fmt.Sprintf("history append failed: %v", err),
		})
	}
}

func (o *Orchestrator) concurrency(requestCount int) int {
	limit := o.Concurrency
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	if limit > requestCount {
		limit = requestCount
	}
	if limit < 1 {
		limit = 1
	}
	return limit
}

func (o *Orchestrator) emit(event output.Event) {
	if o.Emitter == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = o.Now()
	}
	_ = o.Emitter.Emit(event)
}
