// internal/browser/locator/resolver.go
package locator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/chatpilot/internal/clock"
)

const (
	defaultResolveTimeout = 30 * time.Second
	defaultPollInterval   = 250 * time.Millisecond
)

// ErrNotFound means no locator in a Set produced a ready element before the deadline.
var ErrNotFound = errors.New("no locator produced a ready element")

// NotFoundError describes a failed resolution. It matches ErrNotFound with errors.Is.
type NotFoundError struct {
	Description string
	Readiness   Readiness
	Tried       []Locator
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no valid selector found for %s (%s, tried %d locators)", e.Description, e.Readiness, len(e.Tried))
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// Config tunes a Resolver.
type Config struct {
	// Timeout is the aggregate wait used by ClickFirstAvailable and FindFirstPresent.
	Timeout time.Duration
	// PollInterval is the delay between probes of a single locator.
	PollInterval time.Duration
}

// Resolver turns a Set into a single element by trying each locator in order
// against a shared deadline.
type Resolver struct {
	finder Finder
	clock  clock.Clock
	logger *zap.Logger
	cfg    Config
}

// NewResolver creates a resolver. Zero config values fall back to defaults.
func NewResolver(finder Finder, clk clock.Clock, logger *zap.Logger, cfg Config) *Resolver {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultResolveTimeout
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if clk == nil {
		clk = clock.Real{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		finder: finder,
		clock:  clk,
		logger: logger.Named("resolver"),
		cfg:    cfg,
	}
}

// Timeout returns the aggregate wait applied by the convenience methods.
func (r *Resolver) Timeout() time.Duration { return r.cfg.Timeout }

// Resolve returns the first element in set that satisfies readiness before deadline.
//
// Each locator polls until its own sub-deadline, which is an equal share of the
// time still remaining; the last locator always runs to the aggregate deadline.
// Exhaustion yields ErrNotFound. A finished ctx yields ctx.Err() instead.
func (r *Resolver) Resolve(ctx context.Context, set Set, readiness Readiness, deadline time.Time) (Element, error) {
	if set.Len() == 0 {
		return nil, ErrEmptySet
	}

	for i, loc := range set.locators {
		left := set.Len() - i
		now := r.clock.Now()
		sub := deadline
		if left > 1 {
			if remaining := deadline.Sub(now); remaining > 0 {
				sub = now.Add(remaining / time.Duration(left))
			} else {
				sub = now
			}
		}

		el, err := r.poll(ctx, loc, readiness, sub)
		if err != nil {
			return nil, err
		}
		if el != nil {
			if i > 0 {
				r.logger.Info("Resolved element with fallback locator.",
					zap.Stringer("locator", loc), zap.Int("position", i))
			}
			return el, nil
		}
		r.logger.Debug("Locator exhausted its wait window.", zap.Stringer("locator", loc), zap.Stringer("readiness", readiness))
	}
	return nil, ErrNotFound
}

// poll probes one locator until it is ready or until is reached. The probe always
// runs at least once, even when until is already in the past.
func (r *Resolver) poll(ctx context.Context, loc Locator, readiness Readiness, until time.Time) (Element, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		el, err := r.probe(ctx, loc, readiness)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			r.logger.Debug("Transient error while probing locator.", zap.Stringer("locator", loc), zap.Error(err))
		}
		if el != nil {
			return el, nil
		}

		now := r.clock.Now()
		if !now.Before(until) {
			return nil, nil
		}
		wait := r.cfg.PollInterval
		if rest := until.Sub(now); rest < wait {
			wait = rest
		}
		if err := r.clock.Sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
}

func (r *Resolver) probe(ctx context.Context, loc Locator, readiness Readiness) (Element, error) {
	el, err := r.finder.Find(ctx, loc)
	if err != nil || el == nil {
		return nil, err
	}
	if readiness == Present {
		return el, nil
	}
	ok, err := el.Interactable(ctx)
	if err != nil || !ok {
		return nil, err
	}
	return el, nil
}

// ClickFirstAvailable resolves set with Clickable readiness and clicks the result.
// Absence is always an error describing the target.
func (r *Resolver) ClickFirstAvailable(ctx context.Context, set Set, description string) error {
	el, err := r.Resolve(ctx, set, Clickable, r.clock.Now().Add(r.cfg.Timeout))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return &NotFoundError{Description: description, Readiness: Clickable, Tried: set.Locators()}
		}
		return fmt.Errorf("resolving %s: %w", description, err)
	}
	if err := el.Click(ctx); err != nil {
		return fmt.Errorf("clicking %s: %w", description, err)
	}
	r.logger.Debug("Clicked element.", zap.String("target", description))
	return nil
}

// FindFirstPresent resolves set with Present readiness. Absence is a normal
// outcome reported as found == false; err is only set when ctx ends.
func (r *Resolver) FindFirstPresent(ctx context.Context, set Set, description string) (el Element, found bool, err error) {
	el, err = r.Resolve(ctx, set, Present, r.clock.Now().Add(r.cfg.Timeout))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			r.logger.Warn("No valid element found.", zap.String("target", description))
			return nil, false, nil
		}
		return nil, false, err
	}
	return el, true, nil
}
