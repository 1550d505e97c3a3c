// Package scheduler runs a cooperative, tick-driven main loop.
//
// A Scheduler steps a Job through Start, Stage and End once per trigger and
// never blocks: a Job that cannot finish a state yields and is resumed on
// the next pass. The Controller drains tick.Flag, keeps the interval
// counters, and from them gates key polling, the scheduler window, the
// display update and the indicator pulse.
package scheduler

import "fmt"

// State is the stage of the scheduled task.
type State uint8

const (
	// Idle is the initial state and the state between cycles.
	Idle State = iota
	Start
	Stage
	End
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Start:
		return "start"
	case Stage:
		return "stage"
	case End:
		return "end"
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// Next returns the state following s once s has completed. Idle only
// leaves through Trigger.
func Next(s State) State {
	switch s {
	case Start:
		return Stage
	case Stage:
		return End
	}
	return Idle
}

// Job is the task body. Step does the work for one state and reports
// whether it finished; returning false keeps the state for the next pass.
type Job interface {
	Step(s State) bool
}

// JobFunc adapts a function to Job.
type JobFunc func(s State) bool

// Step calls f(s).
func (f JobFunc) Step(s State) bool { return f(s) }

// NopJob completes every state immediately.
type NopJob struct{}

// Step implements Job.
func (NopJob) Step(State) bool { return true }

// Scheduler advances a Job through one cycle per trigger.
type Scheduler struct {
	job        Job
	state      State
	cycles     uint64
	overlapped uint64
}

// NewScheduler returns an idle Scheduler running job. A nil job runs NopJob.
func NewScheduler(job Job) *Scheduler {
	if job == nil {
		job = NopJob{}
	}
	return &Scheduler{job: job}
}

// Trigger starts a cycle. A trigger while a cycle is still running is
// counted in Overlapped and otherwise ignored; it returns false in that case.
func (s *Scheduler) Trigger() bool {
	if s.state != Idle {
		s.overlapped++
		return false
	}
	s.state = Start
	return true
}

// Pass runs states until the job yields or the cycle reaches Idle.
func (s *Scheduler) Pass() {
	for s.state != Idle {
		if !s.job.Step(s.state) {
			return
		}
		if s.state == End {
			s.cycles++
		}
		s.state = Next(s.state)
	}
}

// State returns the current state.
func (s *Scheduler) State() State {
	return s.state
}

// Cycles returns the number of completed cycles.
func (s *Scheduler) Cycles() uint64 {
	return s.cycles
}

// Overlapped returns the number of triggers dropped because a cycle was
// still running.
func (s *Scheduler) Overlapped() uint64 {
	return s.overlapped
}
