package importer

import (
	"sync"
	"time"
)

// Progress is a point-in-time view of a run, served by the status API.
type Progress struct {
	RunID       string    `json:"run_id"`
	Phase       string    `json:"phase"`
	StartedAt   time.Time `json:"started_at"`
	ToProcess   int       `json:"to_process"`
	Processed   int       `json:"processed"`
	Succeeded   int       `json:"succeeded"`
	Simplified  int       `json:"simplified"`
	Failed      int       `json:"failed"`
	Empty       int       `json:"empty"`
	Skipped     int       `json:"skipped"`
	Current     string    `json:"current,omitempty"`
	LastOutcome string    `json:"last_outcome,omitempty"`
}

// Run phases.
const (
	PhaseLoading   = "loading"
	PhaseImporting = "importing"
	PhaseDone      = "done"
)

// Status is updated by the runner and read from other goroutines.
type Status struct {
	mu sync.RWMutex
	p  Progress
}

func NewStatus(runID string) *Status {
	return &Status{p: Progress{RunID: runID, Phase: PhaseLoading, StartedAt: time.Now().UTC()}}
}

func (s *Status) Snapshot() Progress {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.p
}

func (s *Status) start(toProcess, skipped int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.p.Phase = PhaseImporting
	s.p.ToProcess = toProcess
	s.p.Skipped = skipped
}

func (s *Status) begin(title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.p.Current = title
}

func (s *Status) finish(outcome string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.p.Processed++
	s.p.Current = ""
	s.p.LastOutcome = outcome
	switch outcome {
	case OutcomeSucceeded:
		s.p.Succeeded++
	case OutcomeSimplified:
		s.p.Succeeded++
		s.p.Simplified++
	case OutcomeEmpty:
		s.p.Empty++
	case OutcomeFailed:
		s.p.Failed++
	}
}

func (s *Status) done() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.p.Phase = PhaseDone
	s.p.Current = ""
}
