package stealth

import (
	"context"
	"math/rand"
	"time"

	"github.com/facebook-automation/pkg/config"
	"github.com/facebook-automation/pkg/logger"
)

// TimingController produces the settle delays between browser commands.
// All sleeps return early with ctx.Err() when the run is cancelled.
type TimingController struct {
	config *config.TimingConfig
	log    *logger.Logger
	rand   *rand.Rand
}

func NewTimingController(cfg *config.TimingConfig, log *logger.Logger) *TimingController {
	if log == nil {
		log = logger.Nop()
	}
	return &TimingController{
		config: cfg,
		log:    log.WithComponent("timing"),
		rand:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (t *TimingController) RandomDelay(min, max time.Duration) time.Duration {
	if min >= max {
		return min
	}

	base := min + time.Duration(t.rand.Int63n(int64(max-min)))

	variation := float64(base) * t.config.HumanVariation * (t.rand.Float64()*2 - 1)
	final := base + time.Duration(variation)

	if final < min {
		final = min
	}

	return final
}

func (t *TimingController) ActionDelay() time.Duration {
	return t.RandomDelay(t.config.MinActionDelay.Std(), t.config.MaxActionDelay.Std())
}

func (t *TimingController) PageLoadDelay() time.Duration {
	return t.vary(t.config.PageLoadWait.Std())
}

func (t *TimingController) SettleDelay() time.Duration {
	return t.vary(t.config.SettleDelay.Std())
}

// vary adds up to HumanVariation of upward jitter to base.
func (t *TimingController) vary(base time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	variation := time.Duration(float64(base) * t.config.HumanVariation * t.rand.Float64())
	return base + variation
}

func (t *TimingController) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (t *TimingController) SleepAction(ctx context.Context) error {
	return t.Sleep(ctx, t.ActionDelay())
}

func (t *TimingController) SleepPageLoad(ctx context.Context) error {
	return t.Sleep(ctx, t.PageLoadDelay())
}

func (t *TimingController) SleepSettle(ctx context.Context) error {
	return t.Sleep(ctx, t.SettleDelay())
}

func (t *TimingController) SleepScroll(ctx context.Context) error {
	return t.Sleep(ctx, t.config.ScrollSettle.Std())
}

// SleepLogin waits for the post-submit page to settle before classification.
func (t *TimingController) SleepLogin(ctx context.Context) error {
	d := t.config.LoginSettle.Std()
	t.log.Debug("Waiting %v for login to settle", d)
	return t.Sleep(ctx, d)
}
