package progress

import "fmt"

// Status is the server's progress-stream vocabulary. Anything outside this
// set is forwarded by newer servers and must be ignored, never treated as
// terminal.
type Status string

const (
	StatusStarting    Status = "starting"
	StatusDownloading Status = "downloading"
	StatusProcessing  Status = "processing"
	StatusMetadata    Status = "metadata"
	StatusDone        Status = "done"
	StatusError       Status = "error"
)

func (s Status) Known() bool {
	switch s {
	case StatusStarting, StatusDownloading, StatusProcessing, StatusMetadata, StatusDone, StatusError:
		return true
	default:
		return false
	}
}

// Terminal reports whether the status ends a job's stream. The status field
// is the sole terminal classifier; an error field on a non-error status is
// informational only.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusError
}

// Event is one message from a job's progress stream.
type Event struct {
	Status    Status   `json:"status"`
	Progress  *float64 `json:"progress,omitempty"`
	Detail    string   `json:"detail,omitempty"`
	PPStep    int      `json:"pp_step,omitempty"`
	Error     string   `json:"error,omitempty"`
	AutoSaved bool     `json:"auto_saved,omitempty"`
	SavedPath string   `json:"saved_path,omitempty"`
}

// Snapshot is the rendered view of a job at one point in time. Subscribers
// receive snapshots instead of raw events so rendering stays decoupled from
// stream handling.
type Snapshot struct {
	Status  Status
	Percent int
	Label   string
	Detail  string
	PPStep  int
}

func buildLabel(event Event, percent int, expectMetadata bool) string {
	switch event.Status {
	case StatusStarting:
		return "Starting..."
	case StatusDownloading:
		label := fmt.Sprintf("Downloading... %d%%", percent)
		if event.Detail != "" {
			label += "  ·  " + event.Detail
		}
		return label
	case StatusProcessing:
		detail := event.Detail
		if detail == "" {
			detail = "Processing"
		}
		step := event.PPStep
		if step == 0 {
			step = 1
		}
		return fmt.Sprintf("Post-processing %d: %s...", step, detail)
	case StatusMetadata:
		return fmt.Sprintf("Post-processing %d: Embedding metadata...", event.PPStep+1)
	case StatusDone:
		steps := CompletedSteps(event, expectMetadata)
		if steps > 0 {
			plural := "s"
			if steps == 1 {
				plural = ""
			}
			return fmt.Sprintf("Complete — %d post-processing step%s finished", steps, plural)
		}
		return "Complete"
	case StatusError:
		return "Error"
	default:
		return ""
	}
}

// CompletedSteps counts finished post-processing stages for a terminal done
// event. Metadata embedding runs after the last reported pp_step, so it adds
// one when the caller asked for it.
func CompletedSteps(event Event, expectMetadata bool) int {
	steps := event.PPStep
	if expectMetadata {
		steps++
	}
	return steps
}
