// Package taskrunner hosts the shared wiring for executing asset build runs. It resolves the
// collaborators a command needs (`BuildDependencies`), exposes the `Executor` interface plus
// `Resolve` so CLI commands obtain a runner that reports outcomes, while unit tests can swap
// in fakes.
package taskrunner
