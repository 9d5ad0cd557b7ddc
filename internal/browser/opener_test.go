package browser

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestChromeOpenerRejectsEmptyURL(testInstance *testing.T) {
	opener := NewChromeOpener(ChromeSettings{}, nil)
	require.ErrorIs(testInstance, opener.Open(context.Background(), "  "), ErrEmptyURL)
}

func TestChromeOpenerAllocatorOptions(testInstance *testing.T) {
	visible := NewChromeOpener(ChromeSettings{}, nil).allocatorOptions()
	withExecutable := NewChromeOpener(ChromeSettings{ExecPath: "/usr/bin/chromium", Headless: true}, nil).allocatorOptions()
	require.Len(testInstance, withExecutable, len(visible)+1)
}

func TestNoopOpener(testInstance *testing.T) {
	var opener Opener = NoopOpener{}
	require.NoError(testInstance, opener.Open(context.Background(), "http://localhost:8080/"))
}
