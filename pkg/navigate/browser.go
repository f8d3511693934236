package navigate

import (
	"context"
	"errors"
	"net/url"
	"os"
	"os/exec"
	"runtime"
	"sync"
)

// Browser follows redirects by opening the system browser. Its location
// is the loopback callback URL the provider sends the user back to.
type Browser struct {
	mu       sync.Mutex
	location *url.URL
	open     func(string) error
}

func NewBrowser(location *url.URL) *Browser {
	return &Browser{location: location, open: openBrowser}
}

// WithOpener replaces the command used to open URLs.
func (b *Browser) WithOpener(open func(string) error) *Browser {
	b.open = open
	return b
}

func (b *Browser) Location() *url.URL {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.location == nil {
		return nil
	}
	loc := *b.location
	return &loc
}

func (b *Browser) Redirect(_ context.Context, target *url.URL) error {
	if target == nil {
		return errors.New("redirect target is nil")
	}
	return b.open(target.String())
}

func (b *Browser) Replace(location *url.URL) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.location = location
}

func openBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Start()
}
