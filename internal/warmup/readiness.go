package warmup

import (
	"sync/atomic"
	"time"
)

// ReadinessState tracks whether the startup warmup has finished. After the
// grace period the service counts as ready even if the warmup is still
// running, so a slow network share never keeps the player offline.
type ReadinessState struct {
	done      atomic.Bool
	startTime time.Time
	grace     time.Duration
}

// ReadinessStatus is the JSON form of a ReadinessState.
type ReadinessStatus struct {
	Ready          bool   `json:"ready"`
	Completed      bool   `json:"completed"`
	Reason         string `json:"reason,omitempty"`
	ElapsedSeconds int    `json:"elapsed_seconds"`
	GraceSeconds   int    `json:"grace_seconds"`
}

// NewReadinessState starts the grace period now.
func NewReadinessState(grace time.Duration) *ReadinessState {
	return &ReadinessState{startTime: time.Now(), grace: grace}
}

// IsReady reports whether the warmup finished or the grace period elapsed.
func (s *ReadinessState) IsReady() bool {
	return s.done.Load() || time.Since(s.startTime) >= s.grace
}

// MarkReady records that the warmup finished, successfully or not.
func (s *ReadinessState) MarkReady() {
	s.done.Store(true)
}

// Completed reports whether MarkReady was called.
func (s *ReadinessState) Completed() bool {
	return s.done.Load()
}

// Status returns the current state for /readyz.
func (s *ReadinessState) Status() ReadinessStatus {
	status := ReadinessStatus{
		Ready:          s.IsReady(),
		Completed:      s.done.Load(),
		ElapsedSeconds: int(time.Since(s.startTime).Seconds()),
		GraceSeconds:   int(s.grace.Seconds()),
	}
	switch {
	case !status.Ready:
		status.Reason = "duration warmup in progress"
	case !status.Completed:
		status.Reason = "grace period elapsed, warmup still running"
	}
	return status
}
