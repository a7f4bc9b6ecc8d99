// internal/browser/session/options.go
package session

import (
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
)

// Options describes how Chrome is launched and how long page loads may take.
type Options struct {
	Headless     bool
	WindowWidth  int
	WindowHeight int
	// Lang sets the browser UI language, e.g. "en-US".
	Lang      string
	Incognito bool
	// ExecPath overrides Chrome discovery.
	ExecPath string
	// Args are extra switches, either "flag" or "flag=value", with or without
	// the leading dashes.
	Args []string
	// PageLoadTimeout bounds Open.
	PageLoadTimeout time.Duration
	// QueryTimeout bounds a single DOM query or element operation.
	QueryTimeout time.Duration
}

// DefaultOptions matches the config package defaults.
func DefaultOptions() Options {
	return Options{
		Headless:        false,
		WindowWidth:     1920,
		WindowHeight:    1080,
		Lang:            "en-US",
		Incognito:       true,
		PageLoadTimeout: 30 * time.Second,
		QueryTimeout:    5 * time.Second,
	}
}

// ExecAllocatorOptions translates Options into chromedp allocator options.
func ExecAllocatorOptions(o Options) []chromedp.ExecAllocatorOption {
	// DefaultExecAllocatorOptions already enables headless and
	// disable-extensions; headless is overridden below.
	opts := make([]chromedp.ExecAllocatorOption, 0, len(chromedp.DefaultExecAllocatorOptions)+8)
	opts = append(opts, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("headless", o.Headless),
	)
	if o.Headless {
		opts = append(opts, chromedp.DisableGPU)
	}
	if o.WindowWidth > 0 && o.WindowHeight > 0 {
		opts = append(opts, chromedp.WindowSize(o.WindowWidth, o.WindowHeight))
	}
	if o.Lang != "" {
		opts = append(opts, chromedp.Flag("lang", o.Lang))
	}
	if o.Incognito {
		opts = append(opts, chromedp.Flag("incognito", true))
	}
	if o.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(o.ExecPath))
	}
	for _, arg := range o.Args {
		name, value, ok := parseSwitch(arg)
		if !ok {
			continue
		}
		opts = append(opts, chromedp.Flag(name, value))
	}
	return opts
}

// parseSwitch splits "--name=value" into its parts. Bare switches become true.
func parseSwitch(arg string) (name string, value interface{}, ok bool) {
	arg = strings.TrimLeft(strings.TrimSpace(arg), "-")
	if arg == "" {
		return "", nil, false
	}
	if k, v, found := strings.Cut(arg, "="); found {
		return k, v, k != ""
	}
	return arg, true, true
}

func (o Options) String() string {
	return fmt.Sprintf("headless=%t window=%dx%d lang=%s", o.Headless, o.WindowWidth, o.WindowHeight, o.Lang)
}
