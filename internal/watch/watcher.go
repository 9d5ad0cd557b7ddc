package watch

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/tyemirov/assetflow/internal/taskgraph"
)

const (
	defaultDebounceConstant = 200 * time.Millisecond

	watchReadyLogMessageConstant           = "watch_ready"
	watchTriggeredLogMessageConstant       = "watch_triggered"
	watchRunCompleteLogMessageConstant     = "watch_run_complete"
	watchRunErrorLogMessageConstant        = "watch_run_error"
	watchNotifierErrorLogMessageConstant   = "watch_notifier_error"
	watchDirectoryAddedLogMessageConstant  = "watch_directory_added"
	watchDirectoryFailedLogMessageConstant = "watch_directory_failed"
	watchStoppingLogMessageConstant        = "watch_stopping"
	watchStoppedLogMessageConstant         = "watch_stopped"
)

// ErrNotifierClosed reports that the notifier stopped delivering events while watching.
var ErrNotifierClosed = errors.New("watch: notifier closed")

// RunFunc runs a single task in response to a change.
type RunFunc func(executionContext context.Context, taskName string) (taskgraph.RunResult, error)

// AfterRunFunc observes the outcome of each triggered run.
type AfterRunFunc func(binding Binding, result taskgraph.RunResult, runError error)

// Option customizes a Watcher.
type Option func(*Watcher)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(watcher *Watcher) {
		if logger != nil {
			watcher.logger = logger
		}
	}
}

// WithDebounce sets the quiet window that collapses bursts of changes into one run.
func WithDebounce(debounce time.Duration) Option {
	return func(watcher *Watcher) {
		if debounce > 0 {
			watcher.debounce = debounce
		}
	}
}

// WithReadyNotifier registers a callback invoked once all subscriptions are established.
func WithReadyNotifier(readyNotifier func()) Option {
	return func(watcher *Watcher) {
		watcher.readyNotifier = readyNotifier
	}
}

// WithAfterRun registers a callback invoked after each triggered run.
func WithAfterRun(afterRun AfterRunFunc) Option {
	return func(watcher *Watcher) {
		watcher.afterRun = afterRun
	}
}

// WithNotifierFactory replaces the filesystem notifier.
func WithNotifierFactory(factory NotifierFactory) Option {
	return func(watcher *Watcher) {
		if factory != nil {
			watcher.notifierFactory = factory
		}
	}
}

// Watcher turns file changes into debounced task runs.
type Watcher struct {
	logger          *zap.Logger
	debounce        time.Duration
	readyNotifier   func()
	afterRun        AfterRunFunc
	notifierFactory NotifierFactory
}

// NewWatcher constructs a Watcher.
func NewWatcher(options ...Option) *Watcher {
	watcher := &Watcher{
		logger:          zap.NewNop(),
		debounce:        defaultDebounceConstant,
		notifierFactory: NewFSNotifier,
	}
	for _, option := range options {
		if option != nil {
			option(watcher)
		}
	}
	return watcher
}

type watchSession struct {
	watcher            *Watcher
	bindings           []Binding
	notifier           Notifier
	watchedDirectories map[string]struct{}
	bases              []string

	timersMutex sync.Mutex
	timers      map[int]*time.Timer

	pendingMutex sync.Mutex
	pending      map[int]struct{}

	fired   chan int
	queue   chan int
	stopped chan struct{}
}

// Watch blocks until ctx is cancelled, running the bound task after each debounced burst of
// matching changes. Runs execute one at a time. On cancellation no further events are accepted,
// queued runs are dropped and an in-flight run is allowed to finish before Watch returns nil.
func (watcher *Watcher) Watch(executionContext context.Context, bindings []Binding, run RunFunc) error {
	for _, binding := range bindings {
		if validationError := binding.validate(); validationError != nil {
			return SubscriptionError{Pattern: binding.Pattern, Cause: validationError}
		}
	}

	notifier, notifierError := watcher.notifierFactory()
	if notifierError != nil {
		return SubscriptionError{Cause: notifierError}
	}
	defer func() {
		_ = notifier.Close()
	}()

	session := &watchSession{
		watcher:            watcher,
		bindings:           append([]Binding(nil), bindings...),
		notifier:           notifier,
		watchedDirectories: make(map[string]struct{}),
		timers:             make(map[int]*time.Timer),
		pending:            make(map[int]struct{}),
		fired:              make(chan int, len(bindings)),
		queue:              make(chan int, len(bindings)),
		stopped:            make(chan struct{}),
	}

	for _, binding := range session.bindings {
		base := binding.staticBase()
		session.bases = append(session.bases, base)
		if subscribeError := session.subscribe(base); subscribeError != nil {
			return SubscriptionError{Pattern: binding.Pattern, Path: base, Cause: subscribeError}
		}
	}

	runContext := context.WithoutCancel(executionContext)
	var runLoop sync.WaitGroup
	runLoop.Add(1)
	go func() {
		defer runLoop.Done()
		session.runQueued(runContext, run)
	}()

	watcher.logger.Info(
		watchReadyLogMessageConstant,
		zap.Int("bindings", len(session.bindings)),
		zap.Int("directories", len(session.watchedDirectories)),
	)
	if watcher.readyNotifier != nil {
		watcher.readyNotifier()
	}

	loopError := session.eventLoop(executionContext)

	watcher.logger.Info(watchStoppingLogMessageConstant)
	session.stopTimers()
	close(session.stopped)
	runLoop.Wait()
	watcher.logger.Info(watchStoppedLogMessageConstant)

	return loopError
}

func (session *watchSession) eventLoop(executionContext context.Context) error {
	for {
		select {
		case <-executionContext.Done():
			return nil
		case event, open := <-session.notifier.Events():
			if !open {
				return SubscriptionError{Cause: ErrNotifierClosed}
			}
			session.handleEvent(event)
		case notifierError, open := <-session.notifier.Errors():
			if !open {
				return SubscriptionError{Cause: ErrNotifierClosed}
			}
			session.watcher.logger.Warn(watchNotifierErrorLogMessageConstant, zap.Error(notifierError))
		case bindingIndex := <-session.fired:
			session.enqueue(bindingIndex)
		}
	}
}

func (session *watchSession) handleEvent(event fsnotify.Event) {
	if event.Op == fsnotify.Chmod {
		return
	}

	if event.Op.Has(fsnotify.Create) {
		if fileInfo, statError := os.Stat(event.Name); statError == nil && fileInfo.IsDir() {
			if subscribeError := session.subscribe(event.Name); subscribeError != nil {
				session.watcher.logger.Warn(
					watchDirectoryFailedLogMessageConstant,
					zap.String("directory", event.Name),
					zap.Error(subscribeError),
				)
			}
		}
	}

	for bindingIndex, binding := range session.bindings {
		if binding.matches(event.Name) {
			session.schedule(bindingIndex)
		}
	}
}

func (session *watchSession) schedule(bindingIndex int) {
	session.timersMutex.Lock()
	defer session.timersMutex.Unlock()

	if existingTimer, exists := session.timers[bindingIndex]; exists && existingTimer.Stop() {
		existingTimer.Reset(session.watcher.debounce)
		return
	}

	var debounceTimer *time.Timer
	debounceTimer = time.AfterFunc(session.watcher.debounce, func() {
		session.timersMutex.Lock()
		if session.timers[bindingIndex] == debounceTimer {
			delete(session.timers, bindingIndex)
		}
		session.timersMutex.Unlock()

		select {
		case session.fired <- bindingIndex:
		case <-session.stopped:
		}
	})
	session.timers[bindingIndex] = debounceTimer
}

func (session *watchSession) stopTimers() {
	session.timersMutex.Lock()
	defer session.timersMutex.Unlock()

	for bindingIndex, timer := range session.timers {
		timer.Stop()
		delete(session.timers, bindingIndex)
	}
}

// enqueue drops a trigger when the same binding is already waiting to run.
func (session *watchSession) enqueue(bindingIndex int) {
	session.pendingMutex.Lock()
	defer session.pendingMutex.Unlock()

	if _, alreadyPending := session.pending[bindingIndex]; alreadyPending {
		return
	}
	session.pending[bindingIndex] = struct{}{}
	session.queue <- bindingIndex
}

func (session *watchSession) runQueued(runContext context.Context, run RunFunc) {
	for {
		select {
		case <-session.stopped:
			return
		case bindingIndex := <-session.queue:
			select {
			case <-session.stopped:
				return
			default:
			}

			session.pendingMutex.Lock()
			delete(session.pending, bindingIndex)
			session.pendingMutex.Unlock()

			binding := session.bindings[bindingIndex]
			session.watcher.logger.Info(
				watchTriggeredLogMessageConstant,
				zap.String("pattern", binding.Pattern),
				zap.String("task", binding.Task),
			)

			result, runError := run(runContext, binding.Task)
			if runError != nil {
				session.watcher.logger.Error(
					watchRunErrorLogMessageConstant,
					zap.String("task", binding.Task),
					zap.Error(runError),
				)
			} else {
				session.watcher.logger.Info(
					watchRunCompleteLogMessageConstant,
					zap.String("task", binding.Task),
					zap.String("status", string(result.Status)),
					zap.Duration("duration", result.Duration),
				)
			}

			if session.watcher.afterRun != nil {
				session.watcher.afterRun(binding, result, runError)
			}
		}
	}
}

// subscribe adds directory and, when it lies inside a watched base, every directory beneath it.
// Directories that do not exist yet are covered by watching their closest existing ancestor.
func (session *watchSession) subscribe(directory string) error {
	directory = filepath.Clean(directory)

	existingDirectory := directory
	for {
		if fileInfo, statError := os.Stat(existingDirectory); statError == nil && fileInfo.IsDir() {
			break
		}
		parentDirectory := filepath.Dir(existingDirectory)
		if parentDirectory == existingDirectory {
			return &fs.PathError{Op: "watch", Path: directory, Err: fs.ErrNotExist}
		}
		existingDirectory = parentDirectory
	}

	if existingDirectory != directory {
		return session.addDirectory(existingDirectory)
	}

	if !session.insideBase(directory) {
		if !session.containsBase(directory) {
			return nil
		}
		return session.addDirectory(directory)
	}

	return filepath.WalkDir(directory, func(currentPath string, entry fs.DirEntry, walkError error) error {
		if walkError != nil {
			return walkError
		}
		if !entry.IsDir() {
			return nil
		}
		return session.addDirectory(currentPath)
	})
}

func (session *watchSession) addDirectory(directory string) error {
	if _, watched := session.watchedDirectories[directory]; watched {
		return nil
	}
	if addError := session.notifier.Add(directory); addError != nil {
		return addError
	}
	session.watchedDirectories[directory] = struct{}{}
	session.watcher.logger.Debug(watchDirectoryAddedLogMessageConstant, zap.String("directory", directory))
	return nil
}

func (session *watchSession) insideBase(directory string) bool {
	normalizedDirectory := normalizePath(directory)
	for _, base := range session.bases {
		if base == "." || normalizedDirectory == base || strings.HasPrefix(normalizedDirectory, base+"/") {
			return true
		}
	}
	return false
}

func (session *watchSession) containsBase(directory string) bool {
	normalizedDirectory := normalizePath(directory)
	for _, base := range session.bases {
		if normalizedDirectory == "." || strings.HasPrefix(base, normalizedDirectory+"/") {
			return true
		}
	}
	return false
}
