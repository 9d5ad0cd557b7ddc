package taskrunner

import (
	"fmt"
	"strings"
	"time"

	"github.com/tyemirov/assetflow/internal/taskgraph"
)

// RenderOutcomeLines returns one human-readable line per task in plan order.
func RenderOutcomeLines(result taskgraph.RunResult) []string {
	lines := make([]string, 0, len(result.Outcomes))
	for _, outcome := range result.Outcomes {
		switch outcome.Status {
		case taskgraph.TaskStatusSucceeded:
			line := fmt.Sprintf("%s: %s (%s)", outcome.Name, outcome.Status, formatDuration(outcome.Duration))
			if outcome.Attempts > 1 {
				line = fmt.Sprintf("%s after %d attempts", line, outcome.Attempts)
			}
			lines = append(lines, line)
		case taskgraph.TaskStatusFailed:
			lines = append(lines, fmt.Sprintf("%s: %s: %v", outcome.Name, outcome.Status, outcome.Err))
		default:
			lines = append(lines, fmt.Sprintf("%s: %s (%s)", outcome.Name, outcome.Status, outcome.Reason))
		}
	}
	return lines
}

// RenderSummaryLine returns the summary line printed after a run.
func RenderSummaryLine(result taskgraph.RunResult) string {
	counts := result.Counts()
	parts := []string{
		fmt.Sprintf("Summary: roots=%s", strings.Join(result.Roots, ",")),
		fmt.Sprintf("status=%s", result.Status),
		fmt.Sprintf("total.tasks=%d", counts.Total()),
		fmt.Sprintf("%s=%d", taskgraph.TaskStatusSucceeded, counts.Succeeded),
		fmt.Sprintf("%s=%d", taskgraph.TaskStatusFailed, counts.Failed),
		fmt.Sprintf("%s=%d", taskgraph.TaskStatusSkipped, counts.Skipped),
		fmt.Sprintf("duration_human=%s", formatDuration(result.Duration)),
		fmt.Sprintf("duration_ms=%d", result.Duration.Milliseconds()),
	}
	return strings.Join(parts, " ")
}

func formatDuration(duration time.Duration) string {
	if duration <= 0 {
		return "0s"
	}
	if duration < time.Millisecond {
		return duration.String()
	}
	return duration.Round(time.Millisecond).String()
}
