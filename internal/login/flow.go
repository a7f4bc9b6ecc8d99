// internal/login/flow.go
package login

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/chatpilot/internal/browser/locator"
	"github.com/xkilldash9x/chatpilot/internal/challenge"
	"github.com/xkilldash9x/chatpilot/internal/clock"
	"github.com/xkilldash9x/chatpilot/internal/diagnostics"
)

// Page exposes the document for challenge detection.
type Page interface {
	PageSource(ctx context.Context) (string, error)
}

// ArtifactRecorder persists post-mortem state for a failed attempt. Capture
// problems are the recorder's to log.
type ArtifactRecorder interface {
	CaptureQuietly(ctx context.Context, reason string) *diagnostics.Artifact
}

// Options wires a Flow.
type Options struct {
	Resolver    *locator.Resolver
	Page        Page
	Detector    *challenge.Detector
	Artifacts   ArtifactRecorder
	Clock       clock.Clock
	Logger      *zap.Logger
	Credentials Credentials
	Policy      RetryPolicy
	Targets     Targets
	// ReadyTimeout bounds AwaitReady. Zero uses the resolver's timeout.
	ReadyTimeout time.Duration
}

// Flow drives the login form as a state machine wrapped in a bounded retry loop.
type Flow struct {
	resolver     *locator.Resolver
	page         Page
	detector     *challenge.Detector
	artifacts    ArtifactRecorder
	clock        clock.Clock
	logger       *zap.Logger
	creds        Credentials
	policy       RetryPolicy
	targets      Targets
	readyTimeout time.Duration
	steps        map[State]step
}

// step performs the work of one state and names the next one. A non-nil error
// always comes with StateFailed.
type step func(ctx context.Context) (State, error)

func NewFlow(opts Options) (*Flow, error) {
	if opts.Resolver == nil {
		return nil, errors.New("login: resolver is required")
	}
	if opts.Page == nil {
		return nil, errors.New("login: page is required")
	}
	if err := opts.Policy.Validate(); err != nil {
		return nil, err
	}
	if opts.Detector == nil {
		opts.Detector = challenge.NewDetector()
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = opts.Resolver.Timeout()
	}
	opts.Targets = opts.Targets.withDefaults()

	f := &Flow{
		resolver:     opts.Resolver,
		page:         opts.Page,
		detector:     opts.Detector,
		artifacts:    opts.Artifacts,
		clock:        opts.Clock,
		logger:       opts.Logger.Named("login"),
		creds:        opts.Credentials,
		policy:       opts.Policy,
		targets:      opts.Targets,
		readyTimeout: opts.ReadyTimeout,
	}
	f.steps = map[State]step{
		StateStart:          f.start,
		StateChallengeCheck: f.checkChallenge,
		StateClickLogin:     f.click(f.targets.LoginButton, "login button", StateFillEmail),
		StateFillEmail:      f.fill(f.targets.EmailInput, "email input", f.creds.Email, StateSubmitEmail),
		StateSubmitEmail:    f.click(f.targets.EmailSubmit, "email continue button", StateFillPassword),
		StateFillPassword:   f.fill(f.targets.PasswordInput, "password input", f.creds.Password, StateSubmitPassword),
		StateSubmitPassword: f.click(f.targets.PasswordSubmit, "password continue button", StateAwaitReady),
		StateAwaitReady:     f.awaitReady,
	}
	return f, nil
}

// Run logs in, retrying whole attempts per the RetryPolicy. Without credentials
// it returns nil immediately and touches nothing.
func (f *Flow) Run(ctx context.Context) error {
	if !f.creds.Present() {
		f.logger.Warn("No credentials configured, continuing without login.")
		return nil
	}

	var last error
	for attempt := 1; attempt <= f.policy.MaxAttempts; attempt++ {
		f.logger.Info("Starting login attempt.", zap.Int("attempt", attempt), zap.Int("max_attempts", f.policy.MaxAttempts))

		err := f.attempt(ctx, attempt)
		if err == nil {
			f.logger.Info("Login successful.", zap.Int("attempt", attempt))
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("login aborted during attempt %d: %w", attempt, ctxErr)
		}

		last = err
		f.logger.Error("Login attempt failed.", zap.Int("attempt", attempt), zap.Error(err))
		if f.artifacts != nil {
			f.artifacts.CaptureQuietly(ctx, fmt.Sprintf("login_failure_attempt_%d", attempt))
		}

		if attempt < f.policy.MaxAttempts {
			f.logger.Info("Retrying login.", zap.Duration("backoff", f.policy.Backoff))
			if err := f.clock.Sleep(ctx, f.policy.Backoff); err != nil {
				return fmt.Errorf("login aborted during backoff: %w", err)
			}
		}
	}
	return &ExhaustedError{Attempts: f.policy.MaxAttempts, Last: last}
}

// attempt runs the state machine once from StateStart.
func (f *Flow) attempt(ctx context.Context, attempt int) error {
	state := StateStart
	for !state.Terminal() {
		run, ok := f.steps[state]
		if !ok {
			return fmt.Errorf("login: no step for state %s", state)
		}
		next, err := run(ctx)
		f.logger.Info("Login state transition.",
			zap.Stringer("state", state),
			zap.Stringer("next", next),
			zap.Int("attempt", attempt))
		if err != nil {
			return fmt.Errorf("%s: %w", state, err)
		}
		state = next
	}
	return nil
}

func (f *Flow) start(context.Context) (State, error) {
	return StateChallengeCheck, nil
}

func (f *Flow) checkChallenge(ctx context.Context) (State, error) {
	src, err := f.page.PageSource(ctx)
	if err != nil {
		return StateFailed, fmt.Errorf("reading page source: %w", err)
	}
	if f.detector.Detect(src) {
		f.logger.Warn("Bot challenge detected, aborting attempt.")
		return StateFailed, ErrChallengeDetected
	}
	return StateClickLogin, nil
}

func (f *Flow) click(set locator.Set, description string, next State) step {
	return func(ctx context.Context) (State, error) {
		if err := f.resolver.ClickFirstAvailable(ctx, set, description); err != nil {
			return StateFailed, err
		}
		return next, nil
	}
}

func (f *Flow) fill(set locator.Set, description, value string, next State) step {
	return func(ctx context.Context) (State, error) {
		el, found, err := f.resolver.FindFirstPresent(ctx, set, description)
		if err != nil {
			return StateFailed, err
		}
		if !found {
			return StateFailed, &locator.NotFoundError{Description: description, Readiness: locator.Present, Tried: set.Locators()}
		}
		if err := el.Clear(ctx); err != nil {
			return StateFailed, fmt.Errorf("clearing %s: %w", description, err)
		}
		if err := el.SendKeys(ctx, value); err != nil {
			return StateFailed, fmt.Errorf("typing into %s: %w", description, err)
		}
		return next, nil
	}
}

func (f *Flow) awaitReady(ctx context.Context) (State, error) {
	deadline := f.clock.Now().Add(f.readyTimeout)
	if _, err := f.resolver.Resolve(ctx, f.targets.Ready, locator.Present, deadline); err != nil {
		if errors.Is(err, locator.ErrNotFound) {
			return StateFailed, &locator.NotFoundError{Description: "logged-in marker", Readiness: locator.Present, Tried: f.targets.Ready.Locators()}
		}
		return StateFailed, err
	}
	return StateSuccess, nil
}
