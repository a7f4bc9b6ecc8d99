// internal/chat/client.go
package chat

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/chromedp/kb"
	"github.com/google/uuid"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/xkilldash9x/chatpilot/internal/browser/locator"
	"github.com/xkilldash9x/chatpilot/internal/challenge"
	"github.com/xkilldash9x/chatpilot/internal/clock"
	"github.com/xkilldash9x/chatpilot/internal/diagnostics"
	"github.com/xkilldash9x/chatpilot/internal/login"
	"github.com/xkilldash9x/chatpilot/internal/stabilizer"
)

const captureTimeout = 15 * time.Second

// Browser is everything the client needs from the browser-control layer.
type Browser interface {
	locator.Finder
	diagnostics.Source
	Open(ctx context.Context, url string) error
	Quit(ctx context.Context) error
}

// Pacing holds fixed settle delays after UI actions that animate.
type Pacing struct {
	MenuOpen     time.Duration
	ModelApply   time.Duration
	AttachOpen   time.Duration
	UploadSettle time.Duration
}

// Config is the read-only configuration of one client.
type Config struct {
	BaseURL     string
	Credentials login.Credentials
	// Timeout is the default wait for element lookups and the logged-in marker.
	Timeout      time.Duration
	PollInterval time.Duration
	Login        login.RetryPolicy
	Response     stabilizer.Config
	Pacing       Pacing
	ArtifactDir  string
	Targets      Targets
}

// DefaultConfig returns the stock settings for the public chat UI.
func DefaultConfig() Config {
	return Config{
		BaseURL:      "https://chat.openai.com/",
		Timeout:      30 * time.Second,
		PollInterval: 500 * time.Millisecond,
		Login:        login.DefaultRetryPolicy(),
		Response:     stabilizer.DefaultConfig(),
		Pacing: Pacing{
			MenuOpen:     time.Second,
			ModelApply:   2 * time.Second,
			AttachOpen:   time.Second,
			UploadSettle: 3 * time.Second,
		},
		ArtifactDir: "logs",
		Targets:     DefaultTargets(),
	}
}

// Option customizes a Client.
type Option func(*options)

type options struct {
	clock    clock.Clock
	logger   *zap.Logger
	fs       afero.Fs
	detector *challenge.Detector
}

// WithClock injects the time source used by every wait.
func WithClock(c clock.Clock) Option { return func(o *options) { o.clock = c } }

func WithLogger(l *zap.Logger) Option { return func(o *options) { o.logger = l } }

// WithFs sets the filesystem used for artifacts and image checks.
func WithFs(fs afero.Fs) Option { return func(o *options) { o.fs = fs } }

func WithDetector(d *challenge.Detector) Option { return func(o *options) { o.detector = d } }

// Interaction is one prompt round trip.
type Interaction struct {
	Prompt string
	// Model is selected first when set.
	Model string
	// ImagePath is attached before the prompt when set.
	ImagePath string
}

// Client drives one browser session through a chat exchange. It is not safe for
// concurrent use.
type Client struct {
	id         string
	browser    Browser
	cfg        Config
	clock      clock.Clock
	logger     *zap.Logger
	fs         afero.Fs
	resolver   *locator.Resolver
	stabilizer *stabilizer.Stabilizer
	login      *login.Flow
	artifacts  *diagnostics.Capturer

	closeOnce sync.Once
	closeErr  error
	closed    bool
}

// NewClient wires a client around an already started browser. The client owns
// the browser from here on and quits it in Close.
func NewClient(browser Browser, cfg Config, opts ...Option) (*Client, error) {
	if browser == nil {
		return nil, errors.New("chat: browser is required")
	}
	o := options{clock: clock.Real{}, logger: zap.NewNop(), fs: afero.NewOsFs()}
	for _, opt := range opts {
		opt(&o)
	}
	if err := cfg.Response.Validate(); err != nil {
		return nil, err
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("chat: base URL is required")
	}
	cfg.Targets = cfg.Targets.withDefaults()

	id := uuid.NewString()
	logger := o.logger.With(zap.String("run_id", id))

	resolver := locator.NewResolver(browser, o.clock, logger, locator.Config{
		Timeout:      cfg.Timeout,
		PollInterval: cfg.PollInterval,
	})
	capturer, err := diagnostics.NewCapturer(o.fs, cfg.ArtifactDir, browser, o.clock, logger)
	if err != nil {
		return nil, err
	}
	flow, err := login.NewFlow(login.Options{
		Resolver:     resolver,
		Page:         browser,
		Detector:     o.detector,
		Artifacts:    capturer,
		Clock:        o.clock,
		Logger:       logger,
		Credentials:  cfg.Credentials,
		Policy:       cfg.Login,
		Targets:      cfg.Targets.Login,
		ReadyTimeout: cfg.Timeout,
	})
	if err != nil {
		return nil, err
	}

	return &Client{
		id:         id,
		browser:    browser,
		cfg:        cfg,
		clock:      o.clock,
		logger:     logger.Named("chat"),
		fs:         o.fs,
		resolver:   resolver,
		stabilizer: stabilizer.New(o.clock, logger),
		login:      flow,
		artifacts:  capturer,
	}, nil
}

// ID identifies this client's run in logs.
func (c *Client) ID() string { return c.id }

// AccessHomepage opens the configured base URL.
func (c *Client) AccessHomepage(ctx context.Context) error {
	if c.closed {
		return ErrClosed
	}
	c.logger.Info("Accessing homepage.", zap.String("url", c.cfg.BaseURL))
	if err := c.browser.Open(ctx, c.cfg.BaseURL); err != nil {
		c.capture(ctx, "homepage_failure")
		return err
	}
	return nil
}

// Login signs in with the configured credentials, or does nothing for an
// anonymous session.
func (c *Client) Login(ctx context.Context) error {
	if c.closed {
		return ErrClosed
	}
	return c.login.Run(ctx)
}

// SelectModel opens the model menu and picks the option whose text contains name.
func (c *Client) SelectModel(ctx context.Context, name string) error {
	if c.closed {
		return ErrClosed
	}
	c.logger.Info("Selecting model.", zap.String("model", name))

	if err := c.resolver.ClickFirstAvailable(ctx, c.cfg.Targets.ModelMenu, "model selector menu"); err != nil {
		c.capture(ctx, "model_menu_failure")
		return fmt.Errorf("%w: %w", ErrModelSelection, err)
	}
	if err := c.clock.Sleep(ctx, c.cfg.Pacing.MenuOpen); err != nil {
		return err
	}

	choices, err := c.cfg.Targets.ModelOptionSet(name)
	if err != nil {
		c.capture(ctx, "model_selection_failure")
		return fmt.Errorf("%w: %w", ErrModelSelection, err)
	}
	if err := c.resolver.ClickFirstAvailable(ctx, choices, fmt.Sprintf("model option %q", name)); err != nil {
		c.capture(ctx, "model_selection_failure")
		return fmt.Errorf("%w: %w", ErrModelSelection, err)
	}
	if err := c.clock.Sleep(ctx, c.cfg.Pacing.ModelApply); err != nil {
		return err
	}
	c.logger.Info("Model selected.", zap.String("model", name))
	return nil
}

// SendMessage types text into the prompt box and submits it with Enter.
func (c *Client) SendMessage(ctx context.Context, text string) error {
	if c.closed {
		return ErrClosed
	}
	prompt, found, err := c.resolver.FindFirstPresent(ctx, c.cfg.Targets.Prompt, "message input")
	if err != nil {
		return err
	}
	if !found {
		c.capture(ctx, "send_message_failure")
		return &locator.NotFoundError{Description: "message input", Readiness: locator.Present, Tried: c.cfg.Targets.Prompt.Locators()}
	}

	for _, step := range []func() error{
		func() error { return prompt.Clear(ctx) },
		func() error { return prompt.SendKeys(ctx, text) },
		func() error { return prompt.SendKeys(ctx, kb.Enter) },
	} {
		if err := step(); err != nil {
			c.capture(ctx, "send_message_failure")
			return fmt.Errorf("sending message: %w", err)
		}
	}
	c.logger.Info("Message sent.", zap.Int("length", len(text)))
	return nil
}

// SendImage attaches the image at path. A leading "~" is expanded. The attach
// button is optional; the file input is not.
func (c *Client) SendImage(ctx context.Context, path string) error {
	if c.closed {
		return ErrClosed
	}
	abs, err := c.imageFile(path)
	if err != nil {
		c.capture(ctx, "image_upload_failure")
		return fmt.Errorf("%w: %w", ErrImageUpload, err)
	}

	c.logger.Info("Attaching image.", zap.String("path", abs))
	attach, found, err := c.resolver.FindFirstPresent(ctx, c.cfg.Targets.AttachButton, "attach image button")
	if err != nil {
		return err
	}
	if found {
		if err := attach.Click(ctx); err != nil {
			c.logger.Warn("Could not click attach button, trying the file input directly.", zap.Error(err))
		}
		if err := c.clock.Sleep(ctx, c.cfg.Pacing.AttachOpen); err != nil {
			return err
		}
	}

	input, found, err := c.resolver.FindFirstPresent(ctx, c.cfg.Targets.FileInput, "file input for image")
	if err != nil {
		return err
	}
	if !found {
		c.capture(ctx, "image_upload_failure")
		return fmt.Errorf("%w: %w", ErrImageUpload, &locator.NotFoundError{
			Description: "file input for image", Readiness: locator.Present, Tried: c.cfg.Targets.FileInput.Locators(),
		})
	}
	if err := input.SendKeys(ctx, abs); err != nil {
		c.capture(ctx, "image_upload_failure")
		return fmt.Errorf("%w: %w", ErrImageUpload, err)
	}
	if err := c.clock.Sleep(ctx, c.cfg.Pacing.UploadSettle); err != nil {
		return err
	}
	c.logger.Info("Image uploaded.", zap.String("path", abs))
	return nil
}

// imageFile resolves path to an absolute regular file.
func (c *Client) imageFile(path string) (string, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return "", err
	}
	abs, err := filepath.Abs(expanded)
	if err != nil {
		return "", err
	}
	info, err := c.fs.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("image %s: %w", abs, err)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%s is a directory", abs)
	}
	return abs, nil
}

// WaitForResponse blocks until the response text stops changing.
func (c *Client) WaitForResponse(ctx context.Context) (string, error) {
	if c.closed {
		return "", ErrClosed
	}
	c.logger.Info("Waiting for response.", zap.Duration("max_wait", c.cfg.Response.MaxWait))
	text, err := c.stabilizer.AwaitStable(ctx, c.responseText, c.cfg.Response)
	if err != nil {
		if errors.Is(err, stabilizer.ErrResponseTimeout) {
			c.capture(ctx, "response_timeout")
		}
		return "", err
	}
	c.logger.Info("Response received.", zap.Int("length", len(text)))
	return text, nil
}

// responseText joins the non-blank response blocks found by the first
// response locator that matches anything.
func (c *Client) responseText(ctx context.Context) (string, error) {
	for _, l := range c.cfg.Targets.Response.Locators() {
		blocks, err := c.browser.FindAll(ctx, l)
		if err != nil {
			return "", err
		}
		if len(blocks) == 0 {
			continue
		}
		parts := make([]string, 0, len(blocks))
		for _, b := range blocks {
			t, err := b.Text(ctx)
			if err != nil {
				return "", err
			}
			if strings.TrimSpace(t) != "" {
				parts = append(parts, t)
			}
		}
		return strings.Join(parts, "\n"), nil
	}
	return "", nil
}

// Close quits the browser. Later calls return the first result.
func (c *Client) Close(ctx context.Context) error {
	c.closeOnce.Do(func() {
		c.closed = true
		c.logger.Info("Closing browser session.")
		c.closeErr = c.browser.Quit(ctx)
	})
	return c.closeErr
}

// Run performs a full interaction and always closes the browser. A close error
// is only reported when everything else succeeded.
func (c *Client) Run(ctx context.Context, in Interaction) (response string, err error) {
	defer func() {
		if cerr := c.Close(ctx); cerr != nil {
			if err == nil {
				err = cerr
			} else {
				c.logger.Warn("Error closing browser after failure.", zap.Error(cerr))
			}
		}
	}()

	if err := c.AccessHomepage(ctx); err != nil {
		return "", err
	}
	if err := c.Login(ctx); err != nil {
		return "", err
	}
	if in.Model != "" {
		if err := c.SelectModel(ctx, in.Model); err != nil {
			return "", err
		}
	}
	if in.ImagePath != "" {
		if err := c.SendImage(ctx, in.ImagePath); err != nil {
			return "", err
		}
	}
	if err := c.SendMessage(ctx, in.Prompt); err != nil {
		return "", err
	}
	return c.WaitForResponse(ctx)
}

// capture records artifacts for a failure. It keeps working when ctx is
// already done so cancellations still leave a trace.
func (c *Client) capture(ctx context.Context, reason string) {
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), captureTimeout)
	defer cancel()
	c.artifacts.CaptureQuietly(cctx, reason)
}
