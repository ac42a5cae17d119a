package build

import (
	"fmt"
	"time"

	"github.com/gofrs/uuid/v5"
)

// Kind is the tag of an Event.
type Kind string

const (
	KindBuilding Kind = "building"
	KindSuccess  Kind = "success"
	KindWarnings Kind = "warnings"
	KindErrors   Kind = "errors"
	KindFatal    Kind = "fatal"
)

// IsTerminal reports whether the kind ends a compile cycle.
func (k Kind) IsTerminal() bool {
	switch k {
	case KindSuccess, KindWarnings, KindErrors, KindFatal:
		return true
	default:
		return false
	}
}

// IsUsable reports whether a compile of this kind produced servable output.
func (k Kind) IsUsable() bool {
	return k == KindSuccess || k == KindWarnings
}

// Stats describes a finished compile cycle.
type Stats struct {
	Hash     string
	Duration time.Duration
	Assets   []AssetInfo
	Warnings []Message
	Errors   []Message
}

// Event is one notification from the compile coordinator. All events of a
// cycle share the same ID.
type Event struct {
	ID   uuid.UUID
	Kind Kind
	Time time.Time

	// Stats is set for success, warnings and errors.
	Stats *Stats

	// Artifacts is set for success and warnings.
	Artifacts []Artifact

	// Cause is set for fatal.
	Cause error
}

// NewCycleID returns the identifier shared by the events of one compile cycle.
func NewCycleID() uuid.UUID {
	return uuid.Must(uuid.NewV6())
}

// Building returns the event that opens a compile cycle.
func Building(id uuid.UUID) Event {
	return Event{ID: id, Kind: KindBuilding, Time: time.Now()}
}

// Completed returns the terminal event for a compile that returned a Result.
func Completed(id uuid.UUID, res *Result, took time.Duration) Event {
	ev := Event{
		ID:   id,
		Kind: res.Kind(),
		Time: time.Now(),
		Stats: &Stats{
			Hash:     HashArtifacts(res.Artifacts),
			Duration: took,
			Assets:   Assets(res.Artifacts),
			Warnings: res.Warnings,
			Errors:   res.Errors,
		},
	}
	if ev.Kind.IsUsable() {
		ev.Artifacts = res.Artifacts
	}
	return ev
}

// Fatal returns the terminal event for an unrecoverable compiler failure.
func Fatal(id uuid.UUID, cause error) Event {
	return Event{
		ID:    id,
		Kind:  KindFatal,
		Time:  time.Now(),
		Cause: fmt.Errorf("%w: %w", ErrCompileFatal, cause),
	}
}
