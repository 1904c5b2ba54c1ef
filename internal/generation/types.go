package generation

import (
	"fmt"
	"strings"
	"time"

	"reel/internal/services"
)

// Duration is a supported clip length in seconds. Each length carries a
// fixed credit cost.
type Duration int

const (
	DurationShort Duration = 10
	DurationLong  Duration = 15
)

var durationCosts = map[Duration]int64{
	DurationShort: 50,
	DurationLong:  70,
}

// Cost returns the credit cost of generating a clip of this length.
func (d Duration) Cost() int64 {
	return durationCosts[d]
}

// Seconds returns the clip length as an int for wire encoding.
func (d Duration) Seconds() int {
	return int(d)
}

// ParseDuration validates a requested clip length.
func ParseDuration(seconds int) (Duration, error) {
	d := Duration(seconds)
	if _, ok := durationCosts[d]; !ok {
		return 0, services.Wrap(services.ErrValidation, "generation", "parse_duration",
			fmt.Sprintf("unsupported duration %ds (supported: 10s, 15s)", seconds), nil)
	}
	return d, nil
}

// AspectRatio is the target video orientation.
type AspectRatio string

const (
	AspectLandscape AspectRatio = "landscape"
	AspectPortrait  AspectRatio = "portrait"
)

// ParseAspectRatio validates a requested orientation.
func ParseAspectRatio(value string) (AspectRatio, error) {
	switch AspectRatio(strings.ToLower(strings.TrimSpace(value))) {
	case AspectLandscape:
		return AspectLandscape, nil
	case AspectPortrait:
		return AspectPortrait, nil
	default:
		return "", services.Wrap(services.ErrValidation, "generation", "parse_aspect_ratio",
			fmt.Sprintf("unsupported aspect ratio %q (supported: landscape, portrait)", value), nil)
	}
}

// State names the coordinator's lifecycle phase. Terminal outcomes
// clear persisted state and return the coordinator to idle.
type State string

const (
	StateIdle          State = "idle"
	StateSubmitting    State = "submitting"
	StateScheduledWait State = "scheduled_wait"
	StatePolling       State = "polling"
)

// Result is the latest resolved outcome for the signed-in identity:
// either a video reference or a user-displayable error message.
type Result struct {
	VideoURL     string    `json:"video_url,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	ResolvedAt   time.Time `json:"resolved_at"`
}

// GeneratedVideo is an immutable history record appended on each
// successful resolution, most recent first.
type GeneratedVideo struct {
	Prompt          string    `json:"prompt"`
	AspectRatio     string    `json:"aspect_ratio"`
	DurationSeconds int       `json:"duration_seconds"`
	VideoURL        string    `json:"video_url"`
	CreatedAt       time.Time `json:"created_at"`
}

// JobInfo is the read-only view of the in-flight job.
type JobInfo struct {
	JobID           string        `json:"job_id"`
	Prompt          string        `json:"prompt"`
	AspectRatio     string        `json:"aspect_ratio"`
	DurationSeconds int           `json:"duration_seconds"`
	ReservedCredits int64         `json:"reserved_credits"`
	StartedAt       time.Time     `json:"started_at"`
	Elapsed         time.Duration `json:"elapsed"`
}

// Snapshot is the coordinator's published state for display.
type Snapshot struct {
	State      State            `json:"state"`
	Job        *JobInfo         `json:"job,omitempty"`
	LastResult *Result          `json:"last_result,omitempty"`
	History    []GeneratedVideo `json:"history,omitempty"`
}
