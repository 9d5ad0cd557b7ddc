package taskgraph

import "time"

// TaskStatus reports how a task ended within a run.
type TaskStatus string

// Task statuses.
const (
	TaskStatusSucceeded TaskStatus = "succeeded"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusSkipped   TaskStatus = "skipped"
)

// RunStatus reports how a run ended.
type RunStatus string

// Run statuses.
const (
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// TaskOutcome records the result of one task in a run.
type TaskOutcome struct {
	Name      string
	Status    TaskStatus
	Err       error
	Reason    string
	Attempts  int
	StartTime time.Time
	Duration  time.Duration
}

// StatusCounts tallies task outcomes by status.
type StatusCounts struct {
	Succeeded int
	Failed    int
	Skipped   int
}

// Total returns the number of counted outcomes.
func (counts StatusCounts) Total() int {
	return counts.Succeeded + counts.Failed + counts.Skipped
}

// RunResult describes one execution of the graph.
type RunResult struct {
	Roots     []string
	Order     []string
	Outcomes  []TaskOutcome
	Status    RunStatus
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration
}

// Outcome returns the outcome recorded for a task.
func (result RunResult) Outcome(name string) (TaskOutcome, bool) {
	for _, outcome := range result.Outcomes {
		if outcome.Name == name {
			return outcome, true
		}
	}
	return TaskOutcome{}, false
}

// Failed returns outcomes whose action failed, in plan order.
func (result RunResult) Failed() []TaskOutcome {
	failed := make([]TaskOutcome, 0)
	for _, outcome := range result.Outcomes {
		if outcome.Status == TaskStatusFailed {
			failed = append(failed, outcome)
		}
	}
	return failed
}

// Counts tallies outcomes by status.
func (result RunResult) Counts() StatusCounts {
	counts := StatusCounts{}
	for _, outcome := range result.Outcomes {
		switch outcome.Status {
		case TaskStatusSucceeded:
			counts.Succeeded++
		case TaskStatusFailed:
			counts.Failed++
		case TaskStatusSkipped:
			counts.Skipped++
		}
	}
	return counts
}

// Succeeded reports whether the run completed without failures or cancellation.
func (result RunResult) Succeeded() bool {
	return result.Status == RunStatusSucceeded
}
