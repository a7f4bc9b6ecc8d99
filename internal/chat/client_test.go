package chat

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/chromedp/chromedp/kb"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/chatpilot/internal/browser/locator"
	"github.com/xkilldash9x/chatpilot/internal/login"
	"github.com/xkilldash9x/chatpilot/internal/stabilizer"
)

const challengePage = `<html>Checking your browser... Cloudflare</html>`

func TestRun_AnonymousFullInteraction(t *testing.T) {
	b := chatPage()
	targets := DefaultTargets()
	option, err := targets.ModelOptionSet("GPT-4o")
	require.NoError(t, err)
	b.add(option.Locators()[0])
	b.frames = [][]string{{}, {"Hel"}, {"Hello", "  "}, {"Hello", "world"}}

	h := newHarness(t, b, testConfig())
	imgPath, err := filepath.Abs("cat.png")
	require.NoError(t, err)
	require.NoError(t, afero.WriteFile(h.fs, imgPath, []byte("png"), 0o644))

	got, err := h.client.Run(context.Background(), Interaction{Prompt: "Describe this", Model: "GPT-4o", ImagePath: "cat.png"})

	require.NoError(t, err)
	assert.Equal(t, "Hello\nworld", got)
	assert.Equal(t, []string{"https://chat.example.test/"}, b.opened)
	assert.Equal(t, 1, b.quits)

	assert.Equal(t, 1, b.el(targets.ModelMenu.Locators()[0]).clicks)
	assert.Equal(t, 1, b.el(option.Locators()[0]).clicks)
	assert.Equal(t, 1, b.el(targets.AttachButton.Locators()[0]).clicks)
	assert.Equal(t, []string{imgPath}, b.el(targets.FileInput.Locators()[0]).typed)

	prompt := b.el(targets.Prompt.Locators()[0])
	assert.Equal(t, 1, prompt.clears)
	assert.Equal(t, []string{"Describe this", kb.Enter}, prompt.typed)

	// Anonymous sessions never touch the login form.
	assert.Zero(t, b.el(targets.Login.LoginButton.Locators()[0]).clicks)
	assert.Empty(t, h.artifacts(t))

	sleeps := h.clock.Sleeps()
	for _, want := range []time.Duration{time.Second, 2 * time.Second, 3 * time.Second} {
		assert.Contains(t, sleeps, want)
	}
}

func TestRun_LoginRetriesLeaveArtifacts(t *testing.T) {
	b := chatPage()
	b.sources = []string{challengePage}
	b.frames = [][]string{{"Done."}}
	cfg := testConfig()
	cfg.Credentials = login.Credentials{Email: "user@example.com", Password: "hunter2"}

	h := newHarness(t, b, cfg)
	got, err := h.client.Run(context.Background(), Interaction{Prompt: "hi"})

	require.NoError(t, err)
	assert.Equal(t, "Done.", got)

	files := h.artifacts(t)
	require.Len(t, files, 2)
	for _, f := range files {
		assert.True(t, strings.HasPrefix(filepath.Base(f), "login_failure_attempt_1_"), f)
	}
	assert.Equal(t, []string{"user@example.com"}, b.el(DefaultTargets().Login.EmailInput.Locators()[0]).typed)
}

func TestRun_LoginExhaustedStillCloses(t *testing.T) {
	b := chatPage()
	b.sources = []string{challengePage, challengePage, challengePage, challengePage, challengePage, challengePage}
	cfg := testConfig()
	cfg.Credentials = login.Credentials{Email: "user@example.com", Password: "hunter2"}

	h := newHarness(t, b, cfg)
	_, err := h.client.Run(context.Background(), Interaction{Prompt: "hi"})

	assert.ErrorIs(t, err, login.ErrLoginExhausted)
	assert.ErrorIs(t, err, login.ErrChallengeDetected)
	assert.Equal(t, 1, b.quits)
}

func TestSelectModel_MissingOption(t *testing.T) {
	b := chatPage()
	h := newHarness(t, b, testConfig())

	_, err := h.client.Run(context.Background(), Interaction{Prompt: "hi", Model: "o9-ultra"})

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrModelSelection)
	assert.ErrorIs(t, err, locator.ErrNotFound)
	assert.Contains(t, err.Error(), `model option "o9-ultra"`)
	assert.Equal(t, 1, b.quits)

	files := h.artifacts(t)
	require.Len(t, files, 2)
	assert.True(t, strings.HasPrefix(filepath.Base(files[0]), "model_selection_failure_"))
}

func TestSelectModel_MissingMenu(t *testing.T) {
	b := newFakeBrowser(DefaultTargets().Prompt.Locators()[0])
	h := newHarness(t, b, testConfig())

	err := h.client.SelectModel(context.Background(), "GPT-4o")

	assert.ErrorIs(t, err, ErrModelSelection)
	var nf *locator.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "model selector menu", nf.Description)
}

func TestSelectModel_NoOptionTemplates(t *testing.T) {
	h := newHarness(t, chatPage(), testConfig())
	h.client.cfg.Targets.ModelOption = nil

	err := h.client.SelectModel(context.Background(), "GPT-4o")

	assert.ErrorIs(t, err, ErrModelSelection)
	assert.ErrorIs(t, err, locator.ErrEmptySet)
	files := h.artifacts(t)
	require.Len(t, files, 2)
	assert.True(t, strings.HasPrefix(filepath.Base(files[0]), "model_selection_failure_"))
}

func TestSendImage(t *testing.T) {
	t.Run("MissingFileCapturesBeforeTouchingUI", func(t *testing.T) {
		b := chatPage()
		h := newHarness(t, b, testConfig())

		err := h.client.SendImage(context.Background(), "/nope/cat.png")

		assert.ErrorIs(t, err, ErrImageUpload)
		assert.Zero(t, b.el(DefaultTargets().AttachButton.Locators()[0]).clicks)
		files := h.artifacts(t)
		require.Len(t, files, 2)
		for _, f := range files {
			assert.True(t, strings.HasPrefix(filepath.Base(f), "image_upload_failure_"), f)
		}
	})

	t.Run("AttachButtonIsOptional", func(t *testing.T) {
		targets := DefaultTargets()
		b := newFakeBrowser(targets.FileInput.Locators()[0])
		h := newHarness(t, b, testConfig())
		require.NoError(t, afero.WriteFile(h.fs, "/img/cat.png", []byte("png"), 0o644))

		require.NoError(t, h.client.SendImage(context.Background(), "/img/cat.png"))
		assert.Equal(t, []string{"/img/cat.png"}, b.el(targets.FileInput.Locators()[0]).typed)
	})

	t.Run("MissingFileInput", func(t *testing.T) {
		b := newFakeBrowser(DefaultTargets().AttachButton.Locators()[0])
		h := newHarness(t, b, testConfig())
		require.NoError(t, afero.WriteFile(h.fs, "/img/cat.png", []byte("png"), 0o644))

		err := h.client.SendImage(context.Background(), "/img/cat.png")

		assert.ErrorIs(t, err, ErrImageUpload)
		assert.ErrorIs(t, err, locator.ErrNotFound)
		assert.Len(t, h.artifacts(t), 2)
	})

	t.Run("DirectoryRejected", func(t *testing.T) {
		h := newHarness(t, chatPage(), testConfig())
		require.NoError(t, h.fs.MkdirAll("/img", 0o755))
		assert.ErrorIs(t, h.client.SendImage(context.Background(), "/img"), ErrImageUpload)
		assert.Len(t, h.artifacts(t), 2)
	})
}

func TestSendMessage_MissingPrompt(t *testing.T) {
	h := newHarness(t, newFakeBrowser(), testConfig())

	err := h.client.SendMessage(context.Background(), "hello")

	assert.ErrorIs(t, err, locator.ErrNotFound)
	files := h.artifacts(t)
	require.NotEmpty(t, files)
	assert.True(t, strings.HasPrefix(filepath.Base(files[0]), "send_message_failure_"))
}

func TestWaitForResponse_Timeout(t *testing.T) {
	b := chatPage()
	frames := make([][]string, 0, 40)
	for i := 0; i < 40; i++ {
		frames = append(frames, []string{strings.Repeat("x", i+1)})
	}
	b.frames = frames
	h := newHarness(t, b, testConfig())

	_, err := h.client.WaitForResponse(context.Background())

	assert.ErrorIs(t, err, stabilizer.ErrResponseTimeout)
	files := h.artifacts(t)
	require.Len(t, files, 2)
	assert.True(t, strings.HasPrefix(filepath.Base(files[0]), "response_timeout_"))
}

func TestClose(t *testing.T) {
	t.Run("Idempotent", func(t *testing.T) {
		b := chatPage()
		b.quitErr = errors.New("chrome already gone")
		h := newHarness(t, b, testConfig())

		err1 := h.client.Close(context.Background())
		err2 := h.client.Close(context.Background())

		assert.EqualError(t, err1, "chrome already gone")
		assert.Equal(t, err1, err2)
		assert.Equal(t, 1, b.quits)
		assert.ErrorIs(t, h.client.SendMessage(context.Background(), "late"), ErrClosed)
	})

	t.Run("QuitErrorSurfacesOnlyOnSuccess", func(t *testing.T) {
		b := chatPage()
		b.frames = [][]string{{"ok"}}
		b.quitErr = errors.New("quit failed")
		h := newHarness(t, b, testConfig())

		_, err := h.client.Run(context.Background(), Interaction{Prompt: "hi"})
		assert.EqualError(t, err, "quit failed")
	})

	t.Run("OriginalErrorWinsOverQuitError", func(t *testing.T) {
		b := chatPage()
		b.openErr = errors.New("net::ERR_NAME_NOT_RESOLVED")
		b.quitErr = errors.New("quit failed")
		h := newHarness(t, b, testConfig())

		_, err := h.client.Run(context.Background(), Interaction{Prompt: "hi"})
		assert.EqualError(t, err, "net::ERR_NAME_NOT_RESOLVED")
		assert.Len(t, h.artifacts(t), 2, "homepage failure is captured")
	})
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(nil, testConfig())
	assert.Error(t, err)

	cfg := testConfig()
	cfg.BaseURL = ""
	_, err = NewClient(chatPage(), cfg)
	assert.Error(t, err)

	cfg = testConfig()
	cfg.Response.PollInterval = 0
	_, err = NewClient(chatPage(), cfg)
	assert.Error(t, err)

	cfg = testConfig()
	cfg.Login.MaxAttempts = 0
	_, err = NewClient(chatPage(), cfg)
	assert.Error(t, err)
}
