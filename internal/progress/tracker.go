package progress

import (
	"context"
	"time"
)

const (
	DefaultRetries = 3
	DefaultBackoff = 750 * time.Millisecond
)

// Stream is one open progress subscription for a single job. Next blocks
// until the server pushes an event or the transport fails.
type Stream interface {
	Next(ctx context.Context) (Event, error)
	Close() error
}

// SubscribeFunc opens a new progress subscription for a job handle. The
// server replays current status for the same handle, so reconnecting to an
// in-flight job is safe.
type SubscribeFunc func(ctx context.Context, jobID string) (Stream, error)

// Outcome is the single resolution of a tracked job.
type Outcome struct {
	Succeeded      bool
	Message        string
	AutoSaved      bool
	SavedPath      string
	Steps          int
	ConnectionLost bool
	Attempts       int
}

// Tracker drives one job's progress stream to a terminal outcome, with a
// bounded number of reconnect attempts after transport drops. Track resolves
// exactly once, so terminal side effects hung off its return value cannot
// duplicate across reconnects.
type Tracker struct {
	Subscribe SubscribeFunc

	// Retries is the reconnect budget after a transport drop with no
	// terminal event seen. Zero means DefaultRetries; negative disables
	// reconnection.
	Retries int
	Backoff time.Duration

	// OnUpdate receives a snapshot for every interpreted event, including
	// the terminal one.
	OnUpdate func(Snapshot)
}

func (t *Tracker) Track(ctx context.Context, jobID string, expectMetadata bool) Outcome {
	retries := 0
	lastPercent := 0

	for {
		stream, err := t.Subscribe(ctx, jobID)
		if err == nil {
			outcome, terminal := t.consume(ctx, stream, &lastPercent, expectMetadata)
			if terminal {
				outcome.Attempts = retries
				return outcome
			}
		}

		if ctx.Err() != nil {
			return Outcome{Message: "interrupted", ConnectionLost: true, Attempts: retries}
		}
		if retries >= t.retryBudget() {
			return Outcome{
				Message:        "Connection lost — check history for completed downloads",
				ConnectionLost: true,
				Attempts:       retries,
			}
		}
		retries++
		if !t.sleep(ctx) {
			return Outcome{Message: "interrupted", ConnectionLost: true, Attempts: retries}
		}
	}
}

// consume reads one subscription until a terminal event or transport error.
// The second return value is false on transport drop, in which case the
// caller decides whether to reconnect.
func (t *Tracker) consume(ctx context.Context, stream Stream, lastPercent *int, expectMetadata bool) (Outcome, bool) {
	defer stream.Close()

	for {
		event, err := stream.Next(ctx)
		if err != nil {
			return Outcome{}, false
		}
		if !event.Status.Known() {
			continue
		}

		if event.Progress != nil {
			*lastPercent = int(*event.Progress)
		}
		percent := *lastPercent
		if event.Status == StatusDone {
			percent = 100
			*lastPercent = 100
		}

		t.update(Snapshot{
			Status:  event.Status,
			Percent: percent,
			Label:   buildLabel(event, percent, expectMetadata),
			Detail:  event.Detail,
			PPStep:  event.PPStep,
		})

		switch event.Status {
		case StatusDone:
			return Outcome{
				Succeeded: true,
				Message:   buildLabel(event, percent, expectMetadata),
				AutoSaved: event.AutoSaved,
				SavedPath: event.SavedPath,
				Steps:     CompletedSteps(event, expectMetadata),
			}, true
		case StatusError:
			message := event.Error
			if message == "" {
				message = "Download failed"
			}
			return Outcome{Message: message}, true
		}
	}
}

func (t *Tracker) update(snapshot Snapshot) {
	if t.OnUpdate != nil {
		t.OnUpdate(snapshot)
	}
}

func (t *Tracker) retryBudget() int {
	if t.Retries == 0 {
		return DefaultRetries
	}
	if t.Retries < 0 {
		return 0
	}
	return t.Retries
}

func (t *Tracker) sleep(ctx context.Context) bool {
	backoff := t.Backoff
	if backoff <= 0 {
		backoff = DefaultBackoff
	}
	select {
	case <-time.After(backoff):
		return true
	case <-ctx.Done():
		return false
	}
}
