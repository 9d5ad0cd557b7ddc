package watch

import "fmt"

// SubscriptionError reports that file change notifications could not be established.
// It ends watch mode and leaves one-shot builds unaffected.
type SubscriptionError struct {
	Pattern string
	Path    string
	Cause   error
}

// Error describes the failed subscription.
func (subscriptionError SubscriptionError) Error() string {
	switch {
	case len(subscriptionError.Path) > 0:
		return fmt.Sprintf("unable to watch %s for pattern %q: %v", subscriptionError.Path, subscriptionError.Pattern, subscriptionError.Cause)
	case len(subscriptionError.Pattern) > 0:
		return fmt.Sprintf("unable to watch pattern %q: %v", subscriptionError.Pattern, subscriptionError.Cause)
	default:
		return fmt.Sprintf("unable to create file watcher: %v", subscriptionError.Cause)
	}
}

// Unwrap exposes the underlying cause.
func (subscriptionError SubscriptionError) Unwrap() error {
	return subscriptionError.Cause
}
