// internal/stabilizer/stabilizer.go
package stabilizer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/chatpilot/internal/clock"
)

// ErrResponseTimeout means the text never held still for a full quiet period
// before MaxWait elapsed.
var ErrResponseTimeout = errors.New("response did not stabilize before the deadline")

// TextSource extracts the current text of the watched region.
type TextSource func(ctx context.Context) (string, error)

// Config controls a single wait.
type Config struct {
	// MaxWait bounds the whole wait, measured from the first poll.
	MaxWait time.Duration
	// QuietPeriod is how long the text must stay unchanged to count as final.
	QuietPeriod time.Duration
	// PollInterval is the delay between extractions.
	PollInterval time.Duration
}

// DefaultConfig mirrors the response settings of the config package.
func DefaultConfig() Config {
	return Config{
		MaxWait:      60 * time.Second,
		QuietPeriod:  2 * time.Second,
		PollInterval: time.Second,
	}
}

// Validate checks the invariants of a Config.
func (c Config) Validate() error {
	switch {
	case c.PollInterval <= 0:
		return fmt.Errorf("stabilizer: poll interval must be positive, got %s", c.PollInterval)
	case c.QuietPeriod < 0:
		return fmt.Errorf("stabilizer: quiet period must not be negative, got %s", c.QuietPeriod)
	case c.QuietPeriod >= c.MaxWait:
		return fmt.Errorf("stabilizer: quiet period (%s) must be shorter than max wait (%s)", c.QuietPeriod, c.MaxWait)
	}
	return nil
}

// Stabilizer decides when streamed text has finished rendering.
type Stabilizer struct {
	clock  clock.Clock
	logger *zap.Logger
}

func New(clk clock.Clock, logger *zap.Logger) *Stabilizer {
	if clk == nil {
		clk = clock.Real{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Stabilizer{clock: clk, logger: logger.Named("stabilizer")}
}

// AwaitStable polls extract every PollInterval and returns the trimmed text once
// it has stayed unchanged for QuietPeriod. Empty text never counts as stable.
// Extraction errors are logged and treated as "no change". A finished ctx aborts
// the wait with ctx.Err().
func (s *Stabilizer) AwaitStable(ctx context.Context, extract TextSource, cfg Config) (string, error) {
	if err := cfg.Validate(); err != nil {
		return "", err
	}

	var (
		start       = s.clock.Now()
		lastText    string
		stableSince time.Time
		polls       int
	)

	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		now := s.clock.Now()
		if now.Sub(start) > cfg.MaxWait {
			s.logger.Warn("Response did not stabilize.",
				zap.Duration("max_wait", cfg.MaxWait),
				zap.Int("polls", polls),
				zap.Int("last_length", len(lastText)))
			return "", ErrResponseTimeout
		}

		polls++
		text, err := extract(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			s.logger.Debug("Text extraction failed, treating as unchanged.", zap.Error(err))
			text = lastText
		}

		switch {
		case text != "" && text != lastText:
			lastText = text
			stableSince = now
			s.logger.Debug("Response text changed.", zap.Int("length", len(text)))
		case lastText != "" && !stableSince.IsZero() && now.Sub(stableSince) >= cfg.QuietPeriod:
			s.logger.Info("Response stabilized.",
				zap.Duration("elapsed", now.Sub(start)),
				zap.Int("polls", polls))
			return strings.TrimSpace(lastText), nil
		}

		if err := s.clock.Sleep(ctx, cfg.PollInterval); err != nil {
			return "", err
		}
	}
}
