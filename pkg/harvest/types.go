package harvest

import (
	"context"
	"encoding/json"
	"strconv"
)

// Record is one catalog entry. The harvester never looks inside it.
type Record = json.RawMessage

// PageRequest identifies one page of the catalog.
type PageRequest struct {
	// Cursor is the number of records already requested (offset).
	Cursor int
	// PageSize is the limit, constant for a run.
	PageSize int
	// Filters are passed to the source unmodified.
	Filters map[string]any
}

// Page is a successful response for a PageRequest.
type Page struct {
	Records []Record
	// ReportedTotal is the source's count of matching records at request time.
	ReportedTotal int
}

// PageSource is the paged query endpoint the harvester reads from.
type PageSource interface {
	// FetchPage returns the records at req.Cursor. Failures should be
	// *TransportError, *ProtocolError or *ShapeError; anything else is
	// treated as a transport failure.
	FetchPage(ctx context.Context, req PageRequest) (Page, error)
}

// ArtifactStore persists the harvest result. Put overwrites any artifact
// already stored under name.
type ArtifactStore interface {
	Put(ctx context.Context, name string, records []Record) error
}

// Total is the number of records the source reports. Before the first
// response it is unbounded, which is distinct from every concrete count.
type Total struct {
	n     int
	known bool
}

// Unbounded returns the total used before the source has reported one.
func Unbounded() Total {
	return Total{}
}

// Known returns a concrete total.
func Known(n int) Total {
	return Total{n: n, known: true}
}

// Value returns the concrete total and whether one is known.
func (t Total) Value() (int, bool) {
	return t.n, t.known
}

// Above reports whether cursor < total.
func (t Total) Above(cursor int) bool {
	if !t.known {
		return true
	}
	return cursor < t.n
}

// Clamp returns min(cursor, total), or cursor when the total is unbounded.
func (t Total) Clamp(cursor int) int {
	if t.known && cursor > t.n {
		return t.n
	}
	return cursor
}

func (t Total) String() string {
	if !t.known {
		return "unbounded"
	}
	return strconv.Itoa(t.n)
}

// Outcome is how the fetch loop ended.
type Outcome string

const (
	// OutcomeCompleted means the cursor reached the reported total.
	OutcomeCompleted Outcome = "completed"

	// OutcomeAborted means a fatal error or an interrupt stopped the loop.
	OutcomeAborted Outcome = "aborted"
)

// Phase is a state of a harvest run.
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseFetching  Phase = "fetching"
	PhaseCompleted Phase = "completed"
	PhaseAborted   Phase = "aborted"
	PhaseWriting   Phase = "writing"
	PhaseDone      Phase = "done"
)

// Result is the outcome of one HarvestAll call.
type Result struct {
	// Records holds every record collected, in page arrival order.
	Records []Record
	Outcome Outcome
	// Err is set when Outcome is OutcomeAborted. It is an *AbortError.
	Err error
	// Cursor is where the loop stopped. After an abort it is the cursor of
	// the page that failed, which is where a manual restart should begin.
	Cursor int
	// Total is the last reported total.
	Total Total
	// Pages is the number of pages fetched successfully.
	Pages int
	// Artifact is the name the records were written under.
	Artifact string
}

// Completed reports whether the harvest reached the reported total.
func (r Result) Completed() bool {
	return r.Outcome == OutcomeCompleted
}

// Reason returns the abort reason, or "" for a completed run.
func (r Result) Reason() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}
