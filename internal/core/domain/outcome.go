package domain

import "time"

type OutcomeKind string

const (
	OutcomeRelocated      OutcomeKind = "relocated"
	OutcomePending        OutcomeKind = "pending"
	OutcomeAlreadyHandled OutcomeKind = "already_handled"
	OutcomeSkipped        OutcomeKind = "skipped"
	OutcomeFailed         OutcomeKind = "failed"
)

// ReconcileOutcome is the typed result of reconciling one staged trip.
type ReconcileOutcome struct {
	Kind        OutcomeKind
	Key         TripKey
	Parent      *ParentFolder
	Destination string
	// FailureKind is one of the domain error kinds when Kind is OutcomeFailed.
	FailureKind error
	Err         error
	// InspectionErrors counts candidate parent documents that could not be read.
	InspectionErrors int
}

func (o ReconcileOutcome) Succeeded() bool {
	return o.Kind == OutcomeRelocated || o.Kind == OutcomeAlreadyHandled
}

// ReconcileSummary aggregates one pass over the staging area.
type ReconcileSummary struct {
	Moved          int           `json:"moved_count"`
	Errors         int           `json:"error_count"`
	Pending        int           `json:"pending_count"`
	AlreadyHandled int           `json:"already_handled_count"`
	Skipped        int           `json:"skipped_count"`
	Total          int           `json:"total_count"`
	Duration       time.Duration `json:"-"`
}

func (s *ReconcileSummary) Add(outcome ReconcileOutcome) {
	s.Total++
	s.Errors += outcome.InspectionErrors
	switch outcome.Kind {
	case OutcomeRelocated:
		s.Moved++
	case OutcomePending:
		s.Pending++
	case OutcomeAlreadyHandled:
		s.AlreadyHandled++
	case OutcomeSkipped:
		s.Skipped++
	case OutcomeFailed:
		s.Errors++
	}
}

type SchedulerState string

const (
	SchedulerStopped  SchedulerState = "stopped"
	SchedulerRunning  SchedulerState = "running"
	SchedulerStopping SchedulerState = "stopping"
)

type SchedulerStatus struct {
	IsRunning       bool              `json:"is_running"`
	IntervalMinutes int               `json:"interval_minutes"`
	State           SchedulerState    `json:"state"`
	LastRunAt       *time.Time        `json:"last_run_at,omitempty"`
	LastSummary     *ReconcileSummary `json:"last_summary,omitempty"`
}

type FilingLocation string

const (
	LocationWeekendFolder FilingLocation = "weekend_folder"
	LocationStaging       FilingLocation = "temp_folder"
)

// FilingResult is what the ingestion path reports for a trip it filed or staged.
type FilingResult struct {
	Location FilingLocation `json:"location"`
	Parent   *ParentFolder  `json:"-"`
	Bundle   StoredBundle   `json:"bundle"`
}

func (r FilingResult) Staged() bool {
	return r.Location == LocationStaging
}

type EventType string

const (
	EventTripRelocated EventType = "trip.relocated"
	EventTripStaged    EventType = "trip.staged"
	EventTripFiled     EventType = "trip.filed"
	EventWeekendFiled  EventType = "weekend.filed"
)

// FactureEvent is published whenever a bundle lands in the archive or staging area.
type FactureEvent struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	Business   string    `json:"business"`
	Folder     string    `json:"folder"`
	Parent     string    `json:"parent,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
