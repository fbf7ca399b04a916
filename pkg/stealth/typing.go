package stealth

import (
	"context"
	"math/rand"
	"strings"
	"time"
	"unicode"

	"github.com/facebook-automation/pkg/config"
	"github.com/facebook-automation/pkg/logger"
)

// TypingController paces keystrokes. It never alters the text typed.
type TypingController struct {
	config *config.TypingConfig
	log    *logger.Logger
	rand   *rand.Rand
}

type KeyStroke struct {
	Char  rune
	Delay time.Duration
}

func NewTypingController(cfg *config.TypingConfig, log *logger.Logger) *TypingController {
	if log == nil {
		log = logger.Nop()
	}
	return &TypingController{
		config: cfg,
		log:    log.WithComponent("typing"),
		rand:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (t *TypingController) GenerateKeystrokes(text string) []KeyStroke {
	runes := []rune(text)
	keystrokes := make([]KeyStroke, len(runes))

	for i, char := range runes {
		keystrokes[i] = KeyStroke{Char: char}
		if t.config.Enabled {
			keystrokes[i].Delay = t.calculateKeyDelay(char, i, runes)
		}
	}

	return keystrokes
}

func (t *TypingController) calculateKeyDelay(char rune, position int, text []rune) time.Duration {
	min, max := t.config.MinKeyDelay.Std(), t.config.MaxKeyDelay.Std()
	base := min
	if max > min {
		base += time.Duration(t.rand.Int63n(int64(max - min)))
	}

	if unicode.IsSpace(char) {
		base = time.Duration(float64(base) * 0.7)
	}

	if unicode.IsUpper(char) {
		base = time.Duration(float64(base) * 1.3)
	}

	if strings.ContainsRune("@#$%^&*()_+{}|:<>?¡¿!", char) {
		base = time.Duration(float64(base) * 1.5)
	}

	if position > 0 && areAdjacent(text[position-1], char) {
		base = time.Duration(float64(base) * 0.85)
	}

	return base
}

func areAdjacent(prev, curr rune) bool {
	keyboardRows := []string{
		"qwertyuiop",
		"asdfghjklñ",
		"zxcvbnm",
	}

	prevLower := unicode.ToLower(prev)
	currLower := unicode.ToLower(curr)

	for _, row := range keyboardRows {
		prevIdx := strings.IndexRune(row, prevLower)
		currIdx := strings.IndexRune(row, currLower)

		if prevIdx >= 0 && currIdx >= 0 && abs(prevIdx-currIdx) == 1 {
			return true
		}
	}

	return false
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// ExecuteTyping feeds text to typeFn one rune at a time with the generated
// pacing.
func (t *TypingController) ExecuteTyping(ctx context.Context, typeFn func(char rune) error, text string) error {
	typingStart := time.Now()

	for _, ks := range t.GenerateKeystrokes(text) {
		if ks.Delay > 0 {
			timer := time.NewTimer(ks.Delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return ctx.Err()
			case <-timer.C:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		if err := typeFn(ks.Char); err != nil {
			return err
		}
	}

	t.log.Debug("Typed %d chars in %v", len([]rune(text)), time.Since(typingStart))
	return nil
}

func (t *TypingController) TypingDuration(text string) time.Duration {
	total := time.Duration(0)
	for _, ks := range t.GenerateKeystrokes(text) {
		total += ks.Delay
	}
	return total
}
