package diagnostics

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/chatpilot/internal/clock"
)

type stubSource struct {
	html    string
	png     []byte
	htmlErr error
	pngErr  error
}

func (s stubSource) PageSource(context.Context) (string, error) { return s.html, s.htmlErr }
func (s stubSource) Screenshot(context.Context) ([]byte, error) { return s.png, s.pngErr }

var captureTime = time.Date(2025, 1, 2, 15, 4, 5, 0, time.UTC)

func TestCapture_WritesBothFiles(t *testing.T) {
	fs := afero.NewMemMapFs()
	src := stubSource{html: "<html>oops</html>", png: []byte{0x89, 'P', 'N', 'G'}}
	c, err := NewCapturer(fs, "logs", src, clock.NewFake(captureTime), zaptest.NewLogger(t))
	require.NoError(t, err)

	art, err := c.Capture(context.Background(), "login_failure_attempt_1")
	require.NoError(t, err)

	assert.Equal(t, "login_failure_attempt_1", art.Reason)
	assert.Equal(t, captureTime, art.Timestamp)
	assert.Equal(t, filepath.Join("logs", "login_failure_attempt_1_screenshot_20250102_150405.png"), art.ScreenshotPath)
	assert.Equal(t, filepath.Join("logs", "login_failure_attempt_1_dom_20250102_150405.html"), art.DOMPath)

	dom, err := afero.ReadFile(fs, art.DOMPath)
	require.NoError(t, err)
	assert.Equal(t, "<html>oops</html>", string(dom))

	shot, err := afero.ReadFile(fs, art.ScreenshotPath)
	require.NoError(t, err)
	assert.Equal(t, src.png, shot)
}

func TestCapture_PartialFailureStillWritesDOM(t *testing.T) {
	fs := afero.NewMemMapFs()
	src := stubSource{html: "<html/>", pngErr: errors.New("target crashed")}
	c, err := NewCapturer(fs, "out", src, clock.NewFake(captureTime), zap.NewNop())
	require.NoError(t, err)

	art, err := c.Capture(context.Background(), "response_timeout")
	require.Error(t, err)
	assert.ErrorContains(t, err, "target crashed")
	assert.Empty(t, art.ScreenshotPath)

	exists, err := afero.Exists(fs, art.DOMPath)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestCaptureQuietly_LogsInsteadOfReturning(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	src := stubSource{htmlErr: errors.New("no page"), pngErr: errors.New("no target")}
	c, err := NewCapturer(afero.NewMemMapFs(), "logs", src, clock.NewFake(captureTime), zap.New(core))
	require.NoError(t, err)

	art := c.CaptureQuietly(context.Background(), "model_selection_failure")

	require.NotNil(t, art)
	assert.Empty(t, art.DOMPath)
	assert.Equal(t, 1, logs.FilterMessage("Failed to capture artifacts.").Len())
}

func TestCapture_ReadOnlyFilesystem(t *testing.T) {
	fs := afero.NewReadOnlyFs(afero.NewMemMapFs())
	c, err := NewCapturer(fs, "logs", stubSource{html: "x"}, clock.NewFake(captureTime), zap.NewNop())
	require.NoError(t, err)

	_, err = c.Capture(context.Background(), "any")
	assert.Error(t, err)
}

func TestNewCapturer_ExpandsHome(t *testing.T) {
	home, err := homedir.Dir()
	if err != nil {
		t.Skip("no home directory in this environment")
	}
	c, err := NewCapturer(afero.NewMemMapFs(), "~/chatpilot", stubSource{}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "chatpilot"), c.Dir())
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "failure", sanitize("  "))
	assert.Equal(t, "model_GPT-4o_failed", sanitize("model GPT-4o failed"))
	assert.Equal(t, "a_b", sanitize("a/b"))
}
