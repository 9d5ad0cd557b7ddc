package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	readinessRequestTimeoutConstant  = 2 * time.Second
	readinessInitialIntervalConstant = 50 * time.Millisecond
	readinessMaxIntervalConstant     = time.Second
	readinessMaxElapsedTimeConstant  = 15 * time.Second
)

// NewReadinessBackOff returns the default polling schedule used by AwaitReady.
func NewReadinessBackOff() backoff.BackOff {
	exponentialBackOff := backoff.NewExponentialBackOff()
	exponentialBackOff.InitialInterval = readinessInitialIntervalConstant
	exponentialBackOff.MaxInterval = readinessMaxIntervalConstant
	exponentialBackOff.MaxElapsedTime = readinessMaxElapsedTimeConstant
	return exponentialBackOff
}

// AwaitReady polls url until it answers with a status below 500, the back-off gives up or ctx ends.
// A nil backOff uses NewReadinessBackOff.
func AwaitReady(executionContext context.Context, url string, backOff backoff.BackOff) error {
	if backOff == nil {
		backOff = NewReadinessBackOff()
	}
	client := &http.Client{Timeout: readinessRequestTimeoutConstant}

	operation := func() error {
		request, requestError := http.NewRequestWithContext(executionContext, http.MethodGet, url, nil)
		if requestError != nil {
			return backoff.Permanent(requestError)
		}
		response, responseError := client.Do(request)
		if responseError != nil {
			return responseError
		}
		_ = response.Body.Close()
		if response.StatusCode >= http.StatusInternalServerError {
			return fmt.Errorf("unexpected status %d", response.StatusCode)
		}
		return nil
	}

	if retryError := backoff.Retry(operation, backoff.WithContext(backOff, executionContext)); retryError != nil {
		return fmt.Errorf("server.ready %s: %w", url, retryError)
	}
	return nil
}
