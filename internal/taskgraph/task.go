// Package taskgraph registers named build tasks with prerequisites and runs them as a dependency graph.
package taskgraph

import (
	"context"

	"github.com/tyemirov/assetflow/internal/buildconfig"
)

// Action performs the work of a task against the immutable build configuration.
type Action func(executionContext context.Context, configuration buildconfig.Configuration) error

// Task declares a unit of build work.
type Task struct {
	// Name uniquely identifies the task.
	Name string
	// Description is shown by task listings.
	Description string
	// Prerequisites must succeed before the action starts.
	Prerequisites []string
	// Action performs the work. Aggregate tasks use NoopAction.
	Action Action
	// Inputs are glob patterns that re-trigger the task in watch mode.
	Inputs []string
	// Outputs declare the paths the task writes. A pattern without glob characters covers its whole subtree.
	Outputs []string
	// Retries is the number of additional attempts after a failed action.
	Retries uint64
}

// NoopAction completes immediately. It is used by aggregate tasks that only group prerequisites.
func NoopAction(context.Context, buildconfig.Configuration) error {
	return nil
}

func (task Task) clone() Task {
	task.Prerequisites = append([]string(nil), task.Prerequisites...)
	task.Inputs = append([]string(nil), task.Inputs...)
	task.Outputs = append([]string(nil), task.Outputs...)
	return task
}
