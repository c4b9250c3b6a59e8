package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage denotes the milestone represented by an Event.
type Stage string

// Supported progress stages.
const (
	StageRunStart   Stage = "RUN_START"
	StagePageStart  Stage = "PAGE_START"
	StagePageSaved  Stage = "PAGE_SAVED"
	StagePageFailed Stage = "PAGE_FAILED"
	StageRunDone    Stage = "RUN_DONE"
	StageArchived   Stage = "ARCHIVED"
	StageDelivered  Stage = "DELIVERED"
)

// Counters is the running tally attached to every event.
type Counters struct {
	Scraped    int
	Failed     int
	Discovered int
	Queued     int
}

// Event captures a single step of a run.
type Event struct {
	// RunID identifies the run using the 16-byte UUID form.
	RunID [16]byte
	// TS is the UTC timestamp recorded by the emitter.
	TS    time.Time
	Stage Stage
	// URL is the page (or archive path for ARCHIVED/DELIVERED).
	URL   string
	Depth int
	// Bytes is the response size for page events, archive size otherwise.
	Bytes    int64
	Counters Counters
	// Dur is the page latency, or the run duration for RUN_DONE.
	Dur time.Duration
	// Note carries low-volume context such as a failure reason.
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == [16]byte{} {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Stage {
	case StageRunStart, StageRunDone:
	case StagePageStart, StagePageSaved, StagePageFailed:
		if e.URL == "" {
			return fmt.Errorf("%s requires url", e.Stage)
		}
	case StageArchived, StageDelivered:
		if e.URL == "" {
			return fmt.Errorf("%s requires archive path", e.Stage)
		}
	default:
		return fmt.Errorf("unknown stage %q", e.Stage)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// RunUUID converts the binary run ID to uuid.UUID.
func (e Event) RunUUID() uuid.UUID {
	return uuid.UUID(e.RunID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}

// Snapshot is an immutable view of the latest progress state.
type Snapshot struct {
	RunID     string    `json:"run_id,omitempty"`
	Stage     Stage     `json:"stage,omitempty"`
	LatestURL string    `json:"latest_url,omitempty"`
	Scraped   int       `json:"scraped"`
	Failed    int       `json:"failed"`
	Found     int       `json:"found_links"`
	Queued    int       `json:"queued"`
	Running   bool      `json:"running"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}
