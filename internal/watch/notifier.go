package watch

import "github.com/fsnotify/fsnotify"

// Notifier delivers filesystem events for directories added to it.
type Notifier interface {
	Add(directory string) error
	Events() <-chan fsnotify.Event
	Errors() <-chan error
	Close() error
}

// NotifierFactory creates a Notifier for one watch session.
type NotifierFactory func() (Notifier, error)

type fsnotifyNotifier struct {
	watcher *fsnotify.Watcher
}

// NewFSNotifier creates a Notifier backed by the operating system's change notification API.
func NewFSNotifier() (Notifier, error) {
	watcher, watcherError := fsnotify.NewWatcher()
	if watcherError != nil {
		return nil, watcherError
	}
	return &fsnotifyNotifier{watcher: watcher}, nil
}

func (notifier *fsnotifyNotifier) Add(directory string) error {
	return notifier.watcher.Add(directory)
}

func (notifier *fsnotifyNotifier) Events() <-chan fsnotify.Event {
	return notifier.watcher.Events
}

func (notifier *fsnotifyNotifier) Errors() <-chan error {
	return notifier.watcher.Errors
}

func (notifier *fsnotifyNotifier) Close() error {
	return notifier.watcher.Close()
}
