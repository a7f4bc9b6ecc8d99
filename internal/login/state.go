// internal/login/state.go
package login

import (
	"errors"
	"fmt"
	"time"

	"github.com/xkilldash9x/chatpilot/internal/browser/locator"
)

// State is a step of a single login attempt.
type State int

const (
	StateStart State = iota
	StateChallengeCheck
	StateClickLogin
	StateFillEmail
	StateSubmitEmail
	StateFillPassword
	StateSubmitPassword
	StateAwaitReady
	StateSuccess
	StateFailed
)

var stateNames = [...]string{
	StateStart:          "start",
	StateChallengeCheck: "challenge_check",
	StateClickLogin:     "click_login",
	StateFillEmail:      "fill_email",
	StateSubmitEmail:    "submit_email",
	StateFillPassword:   "fill_password",
	StateSubmitPassword: "submit_password",
	StateAwaitReady:     "await_ready",
	StateSuccess:        "success",
	StateFailed:         "failed",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Terminal reports whether the state ends an attempt.
func (s State) Terminal() bool { return s == StateSuccess || s == StateFailed }

var (
	// ErrChallengeDetected means an anti-bot interstitial was showing. It fails the
	// current attempt only.
	ErrChallengeDetected = errors.New("bot challenge detected")
	// ErrLoginExhausted means every attempt allowed by the RetryPolicy failed.
	ErrLoginExhausted = errors.New("login attempts exhausted")
)

// ExhaustedError is returned when the retry budget runs out. It matches
// ErrLoginExhausted and unwraps to the cause of the final attempt.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("failed to log in after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Is(target error) bool { return target == ErrLoginExhausted }

func (e *ExhaustedError) Unwrap() error { return e.Last }

// RetryPolicy bounds the number of login attempts.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// DefaultRetryPolicy is three attempts, three seconds apart.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Backoff: 3 * time.Second}
}

func (p RetryPolicy) Validate() error {
	if p.MaxAttempts < 1 {
		return fmt.Errorf("login: max attempts must be at least 1, got %d", p.MaxAttempts)
	}
	if p.Backoff < 0 {
		return fmt.Errorf("login: backoff must not be negative, got %s", p.Backoff)
	}
	return nil
}

// Credentials for the account. Either field empty means an anonymous session.
type Credentials struct {
	Email    string
	Password string
}

// Present reports whether both fields are set.
func (c Credentials) Present() bool { return c.Email != "" && c.Password != "" }

// Targets are the locator sets the flow interacts with.
type Targets struct {
	LoginButton    locator.Set
	EmailInput     locator.Set
	EmailSubmit    locator.Set
	PasswordInput  locator.Set
	PasswordSubmit locator.Set
	// Ready marks the logged-in UI.
	Ready locator.Set
}

// DefaultTargets returns the locators for the stock chat login pages.
func DefaultTargets() Targets {
	return Targets{
		LoginButton: locator.MustSet(
			locator.ByXPath("//button[contains(text(),'Log in')]"),
			locator.ByCSS("button[data-test='login']"),
			locator.ByText("a", "Log in"),
		),
		EmailInput: locator.MustSet(
			locator.ByCSS("input[type='email']"),
			locator.ByID("email-input"),
			locator.ByCSS("input[name='username']"),
		),
		EmailSubmit: locator.MustSet(
			locator.ByCSS("button[type='submit']"),
			locator.ByText("button", "Continue"),
		),
		PasswordInput: locator.MustSet(
			locator.ByCSS("input[type='password']"),
			locator.ByID("password"),
		),
		PasswordSubmit: locator.MustSet(
			locator.ByCSS("button[type='submit']"),
			locator.ByText("button", "Continue"),
		),
		Ready: locator.MustSet(
			locator.ByID("prompt-textarea"),
			locator.ByCSS("textarea"),
		),
	}
}

// withDefaults fills every empty set from DefaultTargets.
func (t Targets) withDefaults() Targets {
	d := DefaultTargets()
	fill := func(dst *locator.Set, def locator.Set) {
		if dst.Len() == 0 {
			*dst = def
		}
	}
	fill(&t.LoginButton, d.LoginButton)
	fill(&t.EmailInput, d.EmailInput)
	fill(&t.EmailSubmit, d.EmailSubmit)
	fill(&t.PasswordInput, d.PasswordInput)
	fill(&t.PasswordSubmit, d.PasswordSubmit)
	fill(&t.Ready, d.Ready)
	return t
}
