package taskgraph

import (
	"sort"
	"strings"
	"sync"
)

const (
	emptyNameReasonConstant         = "name is empty"
	missingActionReasonConstant     = "action is nil"
	emptyPrerequisiteReasonConstant = "prerequisite name is empty"
)

// Registry holds task definitions in registration order.
type Registry struct {
	mutex             sync.RWMutex
	tasks             map[string]Task
	registrationOrder []string
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tasks: make(map[string]Task)}
}

// Register adds a task definition. Prerequisites are resolved later by Validate,
// so tasks may reference tasks registered after them.
func (registry *Registry) Register(task Task) error {
	task.Name = strings.TrimSpace(task.Name)
	if len(task.Name) == 0 {
		return InvalidTaskError{Task: task.Name, Reason: emptyNameReasonConstant}
	}
	if task.Action == nil {
		return InvalidTaskError{Task: task.Name, Reason: missingActionReasonConstant}
	}

	sanitizedPrerequisites := make([]string, 0, len(task.Prerequisites))
	seenPrerequisites := make(map[string]struct{}, len(task.Prerequisites))
	for _, prerequisite := range task.Prerequisites {
		trimmedPrerequisite := strings.TrimSpace(prerequisite)
		if len(trimmedPrerequisite) == 0 {
			return InvalidTaskError{Task: task.Name, Reason: emptyPrerequisiteReasonConstant}
		}
		if _, duplicate := seenPrerequisites[trimmedPrerequisite]; duplicate {
			continue
		}
		seenPrerequisites[trimmedPrerequisite] = struct{}{}
		sanitizedPrerequisites = append(sanitizedPrerequisites, trimmedPrerequisite)
	}
	task.Prerequisites = sanitizedPrerequisites

	registry.mutex.Lock()
	defer registry.mutex.Unlock()

	if _, exists := registry.tasks[task.Name]; exists {
		return DuplicateTaskError{Task: task.Name}
	}
	registry.tasks[task.Name] = task.clone()
	registry.registrationOrder = append(registry.registrationOrder, task.Name)
	return nil
}

// MustRegister registers every task and panics on the first error. It is meant for static catalogs.
func (registry *Registry) MustRegister(tasks ...Task) {
	for _, task := range tasks {
		if registerError := registry.Register(task); registerError != nil {
			panic(registerError)
		}
	}
}

// Task returns a copy of the named task definition.
func (registry *Registry) Task(name string) (Task, bool) {
	registry.mutex.RLock()
	defer registry.mutex.RUnlock()

	task, exists := registry.tasks[name]
	if !exists {
		return Task{}, false
	}
	return task.clone(), true
}

// Names returns task names in registration order.
func (registry *Registry) Names() []string {
	registry.mutex.RLock()
	defer registry.mutex.RUnlock()

	return append([]string(nil), registry.registrationOrder...)
}

// Tasks returns copies of every task in registration order.
func (registry *Registry) Tasks() []Task {
	registry.mutex.RLock()
	defer registry.mutex.RUnlock()

	tasks := make([]Task, 0, len(registry.registrationOrder))
	for _, name := range registry.registrationOrder {
		tasks = append(tasks, registry.tasks[name].clone())
	}
	return tasks
}

// Validate checks that every prerequisite exists, that prerequisites form a DAG and that
// no two unordered tasks declare overlapping outputs.
func (registry *Registry) Validate() error {
	registry.mutex.RLock()
	defer registry.mutex.RUnlock()

	return registry.validateLocked()
}

func (registry *Registry) validateLocked() error {
	for _, name := range registry.registrationOrder {
		for _, prerequisite := range registry.tasks[name].Prerequisites {
			if _, exists := registry.tasks[prerequisite]; !exists {
				return UnknownPrerequisiteError{Task: name, Prerequisite: prerequisite}
			}
		}
	}

	if cycle := registry.findCycleLocked(); len(cycle) > 0 {
		return CycleDetectedError{Cycle: cycle}
	}

	return registry.checkOutputOverlapLocked()
}

// Plan returns the tasks reachable from roots, prerequisites first, ties broken by registration order.
func (registry *Registry) Plan(roots []string) ([]Task, error) {
	registry.mutex.RLock()
	defer registry.mutex.RUnlock()

	if validationError := registry.validateLocked(); validationError != nil {
		return nil, validationError
	}

	closure := make(map[string]struct{})
	var collect func(name string)
	collect = func(name string) {
		if _, visited := closure[name]; visited {
			return
		}
		closure[name] = struct{}{}
		for _, prerequisite := range registry.tasks[name].Prerequisites {
			collect(prerequisite)
		}
	}
	for _, root := range roots {
		trimmedRoot := strings.TrimSpace(root)
		if _, exists := registry.tasks[trimmedRoot]; !exists {
			return nil, UnknownTaskError{Task: root}
		}
		collect(trimmedRoot)
	}

	registrationIndex := registry.registrationIndexLocked()
	remainingPrerequisites := make(map[string]int, len(closure))
	dependents := make(map[string][]string, len(closure))
	ready := make([]string, 0)
	for _, name := range registry.registrationOrder {
		if _, included := closure[name]; !included {
			continue
		}
		prerequisites := registry.tasks[name].Prerequisites
		remainingPrerequisites[name] = len(prerequisites)
		for _, prerequisite := range prerequisites {
			dependents[prerequisite] = append(dependents[prerequisite], name)
		}
		if len(prerequisites) == 0 {
			ready = append(ready, name)
		}
	}

	plan := make([]Task, 0, len(closure))
	for len(ready) > 0 {
		sort.Slice(ready, func(left, right int) bool {
			return registrationIndex[ready[left]] < registrationIndex[ready[right]]
		})
		next := ready[0]
		ready = ready[1:]
		plan = append(plan, registry.tasks[next].clone())
		for _, dependent := range dependents[next] {
			remainingPrerequisites[dependent]--
			if remainingPrerequisites[dependent] == 0 {
				ready = append(ready, dependent)
			}
		}
	}

	return plan, nil
}

func (registry *Registry) registrationIndexLocked() map[string]int {
	registrationIndex := make(map[string]int, len(registry.registrationOrder))
	for index, name := range registry.registrationOrder {
		registrationIndex[name] = index
	}
	return registrationIndex
}

func (registry *Registry) findCycleLocked() []string {
	const (
		unvisited = iota
		inProgress
		finished
	)

	visitState := make(map[string]int, len(registry.tasks))
	stack := make([]string, 0, len(registry.tasks))
	var cycle []string

	var visit func(name string) bool
	visit = func(name string) bool {
		visitState[name] = inProgress
		stack = append(stack, name)
		for _, prerequisite := range registry.tasks[name].Prerequisites {
			switch visitState[prerequisite] {
			case inProgress:
				for stackIndex := len(stack) - 1; stackIndex >= 0; stackIndex-- {
					if stack[stackIndex] != prerequisite {
						continue
					}
					cycle = append(append([]string(nil), stack[stackIndex:]...), prerequisite)
					return true
				}
			case unvisited:
				if visit(prerequisite) {
					return true
				}
			}
		}
		stack = stack[:len(stack)-1]
		visitState[name] = finished
		return false
	}

	for _, name := range registry.registrationOrder {
		if visitState[name] != unvisited {
			continue
		}
		if visit(name) {
			return cycle
		}
	}
	return nil
}

// ancestorsLocked maps every task to the set of its transitive prerequisites. The graph must be acyclic.
func (registry *Registry) ancestorsLocked() map[string]map[string]struct{} {
	ancestors := make(map[string]map[string]struct{}, len(registry.tasks))
	var resolve func(name string) map[string]struct{}
	resolve = func(name string) map[string]struct{} {
		if resolved, exists := ancestors[name]; exists {
			return resolved
		}
		resolved := make(map[string]struct{})
		for _, prerequisite := range registry.tasks[name].Prerequisites {
			resolved[prerequisite] = struct{}{}
			for ancestor := range resolve(prerequisite) {
				resolved[ancestor] = struct{}{}
			}
		}
		ancestors[name] = resolved
		return resolved
	}
	for _, name := range registry.registrationOrder {
		resolve(name)
	}
	return ancestors
}

func (registry *Registry) checkOutputOverlapLocked() error {
	ancestors := registry.ancestorsLocked()
	for firstIndex, firstName := range registry.registrationOrder {
		firstTask := registry.tasks[firstName]
		if len(firstTask.Outputs) == 0 {
			continue
		}
		for _, secondName := range registry.registrationOrder[firstIndex+1:] {
			secondTask := registry.tasks[secondName]
			if len(secondTask.Outputs) == 0 {
				continue
			}
			if _, ordered := ancestors[firstName][secondName]; ordered {
				continue
			}
			if _, ordered := ancestors[secondName][firstName]; ordered {
				continue
			}
			for _, firstOutput := range firstTask.Outputs {
				for _, secondOutput := range secondTask.Outputs {
					if outputScopesOverlap(firstOutput, secondOutput) {
						return OverlappingOutputError{
							FirstTask:    firstName,
							FirstOutput:  firstOutput,
							SecondTask:   secondName,
							SecondOutput: secondOutput,
						}
					}
				}
			}
		}
	}
	return nil
}
