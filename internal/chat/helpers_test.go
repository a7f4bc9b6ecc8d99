package chat

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/chatpilot/internal/browser/locator"
	"github.com/xkilldash9x/chatpilot/internal/clock"
	"github.com/xkilldash9x/chatpilot/internal/login"
	"github.com/xkilldash9x/chatpilot/internal/stabilizer"
)

var epoch = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

type fakeElement struct {
	text   string
	typed  []string
	clicks int
	clears int
}

func (e *fakeElement) Text(context.Context) (string, error) { return e.text, nil }
func (e *fakeElement) Click(context.Context) error {
	e.clicks++
	return nil
}
func (e *fakeElement) Clear(context.Context) error {
	e.clears++
	return nil
}
func (e *fakeElement) SendKeys(_ context.Context, s string) error {
	e.typed = append(e.typed, s)
	return nil
}
func (e *fakeElement) Interactable(context.Context) (bool, error) { return true, nil }

// fakeBrowser is an in-memory page. Response blocks are scripted per FindAll
// call on the response locator; the last frame repeats.
type fakeBrowser struct {
	mu        sync.Mutex
	elements  map[string]*fakeElement
	frames    [][]string
	frame     int
	sources   []string
	opened    []string
	quits     int
	quitErr   error
	openErr   error
	responses string
}

func newFakeBrowser(present ...locator.Locator) *fakeBrowser {
	b := &fakeBrowser{
		elements:  map[string]*fakeElement{},
		responses: DefaultTargets().Response.Locators()[0].String(),
	}
	for _, l := range present {
		b.add(l)
	}
	return b
}

func (b *fakeBrowser) add(l locator.Locator) *fakeElement {
	el := &fakeElement{}
	b.elements[l.String()] = el
	return el
}

func (b *fakeBrowser) el(l locator.Locator) *fakeElement { return b.elements[l.String()] }

func (b *fakeBrowser) Find(_ context.Context, l locator.Locator) (locator.Element, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if el, ok := b.elements[l.String()]; ok {
		return el, nil
	}
	return nil, nil
}

func (b *fakeBrowser) FindAll(ctx context.Context, l locator.Locator) ([]locator.Element, error) {
	b.mu.Lock()
	if l.String() == b.responses && len(b.frames) > 0 {
		i := b.frame
		if i >= len(b.frames) {
			i = len(b.frames) - 1
		}
		b.frame++
		b.mu.Unlock()
		var out []locator.Element
		for _, t := range b.frames[i] {
			out = append(out, &fakeElement{text: t})
		}
		return out, nil
	}
	b.mu.Unlock()

	el, err := b.Find(ctx, l)
	if el == nil || err != nil {
		return nil, err
	}
	return []locator.Element{el}, nil
}

func (b *fakeBrowser) PageSource(context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.sources) == 0 {
		return "<html><body>chat</body></html>", nil
	}
	src := b.sources[0]
	b.sources = b.sources[1:]
	return src, nil
}

func (b *fakeBrowser) Screenshot(context.Context) ([]byte, error) {
	return []byte("\x89PNG"), nil
}

func (b *fakeBrowser) Open(_ context.Context, url string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.opened = append(b.opened, url)
	return b.openErr
}

func (b *fakeBrowser) Quit(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.quits++
	return b.quitErr
}

// chatPage is a logged-in page with every default target's first locator present.
func chatPage() *fakeBrowser {
	t := DefaultTargets()
	return newFakeBrowser(
		t.ModelMenu.Locators()[0],
		t.AttachButton.Locators()[0],
		t.FileInput.Locators()[0],
		t.Prompt.Locators()[0],
		t.Login.LoginButton.Locators()[0],
		t.Login.EmailInput.Locators()[0],
		t.Login.EmailSubmit.Locators()[0],
		t.Login.PasswordInput.Locators()[0],
	)
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.BaseURL = "https://chat.example.test/"
	cfg.Timeout = 5 * time.Second
	cfg.PollInterval = time.Second
	cfg.Login = login.RetryPolicy{MaxAttempts: 3, Backoff: 3 * time.Second}
	cfg.Response = stabilizer.Config{MaxWait: 20 * time.Second, QuietPeriod: 2 * time.Second, PollInterval: time.Second}
	return cfg
}

type harness struct {
	client  *Client
	browser *fakeBrowser
	clock   *clock.Fake
	fs      afero.Fs
}

func newHarness(t *testing.T, b *fakeBrowser, cfg Config) *harness {
	t.Helper()
	clk := clock.NewFake(epoch)
	fs := afero.NewMemMapFs()
	c, err := NewClient(b, cfg, WithClock(clk), WithFs(fs), WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, err)
	return &harness{client: c, browser: b, clock: clk, fs: fs}
}

func (h *harness) artifacts(t *testing.T) []string {
	t.Helper()
	files, err := afero.Glob(h.fs, "logs/*")
	require.NoError(t, err)
	return files
}
