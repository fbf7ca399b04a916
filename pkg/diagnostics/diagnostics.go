// Package diagnostics writes best-effort screenshots when an interaction
// fails. Nothing here ever returns an error to the caller.
package diagnostics

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"github.com/facebook-automation/pkg/logger"
)

type Screenshotter interface {
	Screenshot(ctx context.Context) ([]byte, error)
}

type Capturer struct {
	dir     string
	shooter Screenshotter
	log     *logger.Logger
	now     func() time.Time
}

func NewCapturer(dir string, shooter Screenshotter, log *logger.Logger) *Capturer {
	if log == nil {
		log = logger.Nop()
	}
	return &Capturer{
		dir:     dir,
		shooter: shooter,
		log:     log.WithComponent("diagnostics"),
		now:     time.Now,
	}
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

// Capture saves a screenshot tagged with the current time and tag and returns
// its path, or "" when capture is disabled or fails.
func (c *Capturer) Capture(ctx context.Context, tag string) string {
	if c == nil || c.shooter == nil || c.dir == "" {
		return ""
	}

	data, err := c.shooter.Screenshot(ctx)
	if err != nil {
		c.log.Warn("Screenshot for %s failed: %v", tag, err)
		return ""
	}

	if err := os.MkdirAll(c.dir, 0755); err != nil {
		c.log.Warn("Failed to create screenshot directory: %v", err)
		return ""
	}

	name := c.now().Format("20060102-150405.000") + "_" + unsafeChars.ReplaceAllString(tag, "_") + ".png"
	path := filepath.Join(c.dir, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		c.log.Warn("Failed to write screenshot %s: %v", path, err)
		return ""
	}

	c.log.Info("Saved diagnostic screenshot %s", path)
	return path
}
