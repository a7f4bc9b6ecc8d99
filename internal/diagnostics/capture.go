// internal/diagnostics/capture.go
package diagnostics

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/xkilldash9x/chatpilot/internal/clock"
)

// TimestampLayout is the suffix format used in artifact file names.
const TimestampLayout = "20060102_150405"

// Source provides the page state that gets persisted on failure.
type Source interface {
	PageSource(ctx context.Context) (string, error)
	Screenshot(ctx context.Context) ([]byte, error)
}

// Artifact records what was written for one failure. Either path may be empty
// when that half of the capture failed.
type Artifact struct {
	Reason         string
	Timestamp      time.Time
	ScreenshotPath string
	DOMPath        string
}

// Capturer writes screenshot and DOM artifacts into a directory.
type Capturer struct {
	fs     afero.Fs
	dir    string
	source Source
	clock  clock.Clock
	logger *zap.Logger
}

// NewCapturer creates a capturer rooted at dir. A leading "~" in dir is expanded.
func NewCapturer(fs afero.Fs, dir string, source Source, clk clock.Clock, logger *zap.Logger) (*Capturer, error) {
	expanded, err := homedir.Expand(dir)
	if err != nil {
		return nil, fmt.Errorf("expanding artifact directory %q: %w", dir, err)
	}
	if expanded == "" {
		expanded = "."
	}
	if fs == nil {
		fs = afero.NewOsFs()
	}
	if clk == nil {
		clk = clock.Real{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Capturer{
		fs:     fs,
		dir:    expanded,
		source: source,
		clock:  clk,
		logger: logger.Named("diagnostics"),
	}, nil
}

// Dir returns the directory artifacts are written to.
func (c *Capturer) Dir() string { return c.dir }

// Capture saves the current screenshot and page source, tagging both file names
// with reason and the capture time. The two halves are independent: a failing
// screenshot does not prevent the DOM dump. The returned error joins whatever
// went wrong; callers on a failure path are expected to log it and move on.
func (c *Capturer) Capture(ctx context.Context, reason string) (*Artifact, error) {
	prefix := sanitize(reason)
	ts := c.clock.Now()
	art := &Artifact{Reason: reason, Timestamp: ts}

	if err := c.fs.MkdirAll(c.dir, 0o755); err != nil {
		return art, fmt.Errorf("creating artifact directory: %w", err)
	}

	stamp := ts.Format(TimestampLayout)
	var errs []error

	if shot, err := c.source.Screenshot(ctx); err != nil {
		errs = append(errs, fmt.Errorf("taking screenshot: %w", err))
	} else {
		path := filepath.Join(c.dir, fmt.Sprintf("%s_screenshot_%s.png", prefix, stamp))
		if err := afero.WriteFile(c.fs, path, shot, 0o644); err != nil {
			errs = append(errs, fmt.Errorf("writing screenshot: %w", err))
		} else {
			art.ScreenshotPath = path
		}
	}

	if dom, err := c.source.PageSource(ctx); err != nil {
		errs = append(errs, fmt.Errorf("reading page source: %w", err))
	} else {
		path := filepath.Join(c.dir, fmt.Sprintf("%s_dom_%s.html", prefix, stamp))
		if err := afero.WriteFile(c.fs, path, []byte(dom), 0o644); err != nil {
			errs = append(errs, fmt.Errorf("writing page source: %w", err))
		} else {
			art.DOMPath = path
		}
	}

	c.logger.Info("Captured failure artifacts.",
		zap.String("reason", reason),
		zap.String("screenshot", art.ScreenshotPath),
		zap.String("dom", art.DOMPath),
	)
	return art, errors.Join(errs...)
}

// CaptureQuietly is Capture for failure paths: problems are logged, never returned.
func (c *Capturer) CaptureQuietly(ctx context.Context, reason string) *Artifact {
	art, err := c.Capture(ctx, reason)
	if err != nil {
		c.logger.Error("Failed to capture artifacts.", zap.String("reason", reason), zap.Error(err))
	}
	return art
}

// sanitize keeps reasons usable as file name prefixes.
func sanitize(reason string) string {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return "failure"
	}
	return strings.Map(func(r rune) rune {
		if r == os.PathSeparator || r == '/' || r == '\\' || r == ' ' || r == ':' {
			return '_'
		}
		return r
	}, reason)
}
