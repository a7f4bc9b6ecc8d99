// internal/browser/session/session.go
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/chatpilot/internal/browser/locator"
)

const quitTimeout = 10 * time.Second

// ErrClosed is returned by every operation after Quit.
var ErrClosed = errors.New("browser session is closed")

// Session owns one Chrome process and its single tab.
type Session struct {
	id     string
	opts   Options
	logger *zap.Logger

	// ctx is the long-lived chromedp context. Per-call contexts are merged into
	// it with CombineContext.
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc

	closeOnce sync.Once
	closeErr  error
	closed    chan struct{}
}

var _ locator.Finder = (*Session)(nil)

// New launches Chrome and attaches to its first tab. The browser outlives ctx;
// call Quit to release it.
func New(ctx context.Context, opts Options, logger *zap.Logger) (*Session, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := DefaultOptions()
	if opts.PageLoadTimeout <= 0 {
		opts.PageLoadTimeout = defaults.PageLoadTimeout
	}
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = defaults.QueryTimeout
	}

	id := uuid.NewString()
	log := logger.Named("browser").With(zap.String("session_id", id))

	allocCtx, allocCancel := chromedp.NewExecAllocator(Detach(ctx), ExecAllocatorOptions(opts)...)
	browserCtx, cancel := chromedp.NewContext(allocCtx,
		chromedp.WithLogf(log.Sugar().Debugf),
		chromedp.WithErrorf(log.Sugar().Warnf),
	)

	s := &Session{
		id:          id,
		opts:        opts,
		logger:      log,
		ctx:         browserCtx,
		cancel:      cancel,
		allocCancel: allocCancel,
		closed:      make(chan struct{}),
	}

	// The first Run allocates Chrome and binds its lifetime to the context it
	// receives, so it must be the long-lived one rather than ctx.
	if err := chromedp.Run(browserCtx); err != nil {
		cancel()
		allocCancel()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}
	log.Info("Browser session started.", zap.Stringer("options", opts))
	return s, nil
}

// ID is a random identifier used to correlate log lines of one run.
func (s *Session) ID() string { return s.id }

// RunActions executes actions in the session tab, bounded by ctx.
func (s *Session) RunActions(ctx context.Context, actions ...chromedp.Action) error {
	select {
	case <-s.closed:
		return ErrClosed
	default:
	}
	runCtx, cancel := CombineContext(s.ctx, ctx)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

// Open navigates to url and waits for the document body.
func (s *Session) Open(ctx context.Context, url string) error {
	loadCtx, cancel := context.WithTimeout(ctx, s.opts.PageLoadTimeout)
	defer cancel()
	s.logger.Info("Opening page.", zap.String("url", url))
	if err := s.RunActions(loadCtx, chromedp.Navigate(url), chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		return fmt.Errorf("failed to open %s: %w", url, err)
	}
	return nil
}

// Quit closes the browser. It is safe to call more than once and does not
// depend on ctx still being live.
func (s *Session) Quit(ctx context.Context) error {
	s.closeOnce.Do(func() {
		close(s.closed)
		quitCtx, cancel := context.WithTimeout(Detach(ctx), quitTimeout)
		defer cancel()

		// chromedp.Cancel closes the browser gracefully and waits for it.
		done := make(chan error, 1)
		go func() { done <- chromedp.Cancel(s.ctx) }()

		var err error
		select {
		case err = <-done:
		case <-quitCtx.Done():
			err = quitCtx.Err()
			s.logger.Warn("Browser did not close in time, killing it.", zap.Duration("timeout", quitTimeout))
		}

		s.cancel()
		s.allocCancel()
		if err != nil && !errors.Is(err, context.Canceled) {
			s.closeErr = fmt.Errorf("failed to close browser: %w", err)
		}
		s.logger.Info("Browser session closed.")
	})
	return s.closeErr
}

// Find returns the first node matching l without waiting, or nil.
func (s *Session) Find(ctx context.Context, l locator.Locator) (locator.Element, error) {
	nodes, err := s.query(ctx, l)
	if err != nil || len(nodes) == 0 {
		return nil, err
	}
	return &element{session: s, node: nodes[0]}, nil
}

// FindAll returns every node matching l without waiting.
func (s *Session) FindAll(ctx context.Context, l locator.Locator) ([]locator.Element, error) {
	nodes, err := s.query(ctx, l)
	if err != nil {
		return nil, err
	}
	out := make([]locator.Element, 0, len(nodes))
	for _, n := range nodes {
		out = append(out, &element{session: s, node: n})
	}
	return out, nil
}

func (s *Session) query(ctx context.Context, l locator.Locator) ([]*cdp.Node, error) {
	q, err := compile(l)
	if err != nil {
		return nil, err
	}
	qctx, cancel := context.WithTimeout(ctx, s.opts.QueryTimeout)
	defer cancel()

	var nodes []*cdp.Node
	if err := s.RunActions(qctx, chromedp.Nodes(q.selector, &nodes, q.option(), chromedp.AtLeast(0))); err != nil {
		return nil, fmt.Errorf("querying %s: %w", l, err)
	}
	return nodes, nil
}

// PageSource returns the serialized document.
func (s *Session) PageSource(ctx context.Context) (string, error) {
	var html string
	if err := s.RunActions(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("reading page source: %w", err)
	}
	return html, nil
}

// Screenshot captures the viewport as PNG.
func (s *Session) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	if err := s.RunActions(ctx, chromedp.CaptureScreenshot(&buf)); err != nil {
		return nil, fmt.Errorf("capturing screenshot: %w", err)
	}
	return buf, nil
}
