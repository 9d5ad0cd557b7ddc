// Package browser opens the served application in a browser window.
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

// ErrEmptyURL reports an Open call without a target.
var ErrEmptyURL = errors.New("browser: url is empty")

// Opener shows a URL to the developer.
type Opener interface {
	Open(executionContext context.Context, url string) error
}

// NoopOpener ignores Open calls. It is used when opening a browser is disabled.
type NoopOpener struct{}

// Open does nothing.
func (NoopOpener) Open(context.Context, string) error {
	return nil
}

// ChromeSettings configures the Chrome instance launched by ChromeOpener.
type ChromeSettings struct {
	// ExecPath overrides Chrome discovery.
	ExecPath string
	// Headless hides the window.
	Headless bool
}

// ChromeOpener launches Chrome through chromedp, navigates to the URL and keeps the window
// open until the context ends.
type ChromeOpener struct {
	settings ChromeSettings
	logger   *zap.Logger
}

// NewChromeOpener constructs a ChromeOpener.
func NewChromeOpener(settings ChromeSettings, logger *zap.Logger) ChromeOpener {
	if logger == nil {
		logger = zap.NewNop()
	}
	return ChromeOpener{settings: settings, logger: logger}
}

// Open blocks until executionContext is cancelled or the browser fails to start.
func (opener ChromeOpener) Open(executionContext context.Context, url string) error {
	trimmedURL := strings.TrimSpace(url)
	if len(trimmedURL) == 0 {
		return ErrEmptyURL
	}

	allocatorContext, cancelAllocator := chromedp.NewExecAllocator(executionContext, opener.allocatorOptions()...)
	defer cancelAllocator()
	browserContext, cancelBrowser := chromedp.NewContext(allocatorContext)
	defer cancelBrowser()

	if navigateError := chromedp.Run(browserContext, chromedp.Navigate(trimmedURL)); navigateError != nil {
		if executionContext.Err() != nil {
			return nil
		}
		return fmt.Errorf("browser.open %s: %w", trimmedURL, navigateError)
	}
	opener.logger.Info("browser_opened", zap.String("url", trimmedURL))

	<-browserContext.Done()
	opener.logger.Debug("browser_closed", zap.String("url", trimmedURL))
	return nil
}

func (opener ChromeOpener) allocatorOptions() []chromedp.ExecAllocatorOption {
	options := append([]chromedp.ExecAllocatorOption(nil), chromedp.DefaultExecAllocatorOptions[:]...)
	options = append(options, chromedp.Flag("headless", opener.settings.Headless))
	if execPath := strings.TrimSpace(opener.settings.ExecPath); len(execPath) > 0 {
		options = append(options, chromedp.ExecPath(execPath))
	}
	return options
}
