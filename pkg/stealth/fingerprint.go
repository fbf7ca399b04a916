package stealth

import (
	"math/rand"
	"strings"
	"time"

	"github.com/facebook-automation/pkg/config"
	"github.com/facebook-automation/pkg/logger"
)

// FingerprintManager softens the obvious automation markers: the webdriver
// flag, the AutomationControlled blink feature and a headless user agent.
type FingerprintManager struct {
	config     *config.FingerprintConfig
	browserCfg *config.BrowserConfig
	log        *logger.Logger
	rand       *rand.Rand
}

type BrowserFingerprint struct {
	UserAgent      string
	Platform       string
	Language       string
	ViewportWidth  int
	ViewportHeight int
}

var defaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/119.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
}

func NewFingerprintManager(cfg *config.FingerprintConfig, browserCfg *config.BrowserConfig, log *logger.Logger) *FingerprintManager {
	if log == nil {
		log = logger.Nop()
	}
	return &FingerprintManager{
		config:     cfg,
		browserCfg: browserCfg,
		log:        log.WithComponent("fingerprint"),
		rand:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (f *FingerprintManager) Generate() *BrowserFingerprint {
	fp := &BrowserFingerprint{
		Language:       "es-ES",
		ViewportWidth:  f.browserCfg.ViewportWidth,
		ViewportHeight: f.browserCfg.ViewportHeight,
	}

	userAgents := f.browserCfg.UserAgents
	if len(userAgents) == 0 {
		userAgents = defaultUserAgents
	}
	if f.config.RotateUserAgent {
		fp.UserAgent = userAgents[f.rand.Intn(len(userAgents))]
	} else {
		fp.UserAgent = userAgents[0]
	}
	fp.Platform = detectPlatform(fp.UserAgent)

	f.log.Debug("Using user agent %s (%s)", fp.UserAgent, fp.Platform)
	return fp
}

func detectPlatform(userAgent string) string {
	switch {
	case strings.Contains(userAgent, "Windows"):
		return "Win32"
	case strings.Contains(userAgent, "Macintosh"):
		return "MacIntel"
	case strings.Contains(userAgent, "Linux"):
		return "Linux x86_64"
	default:
		return "Win32"
	}
}

func (f *FingerprintManager) GetStealthScripts() []string {
	scripts := []string{}

	if f.config.DisableAutomation {
		scripts = append(scripts, `
			Object.defineProperty(navigator, 'webdriver', {
				get: () => undefined
			});

			Object.defineProperty(navigator, 'languages', {
				get: () => ['es-ES', 'es', 'en-US', 'en']
			});

			window.chrome = window.chrome || { runtime: {} };
		`)
	}

	return scripts
}

// GetBrowserArgs returns launcher flags as name → value; an empty value is a
// bare switch.
func (f *FingerprintManager) GetBrowserArgs() map[string]string {
	args := map[string]string{
		"disable-infobars":         "",
		"disable-dev-shm-usage":    "",
		"no-first-run":             "",
		"no-default-browser-check": "",
		"lang":                     "es-ES",
	}

	if f.config.DisableAutomation {
		args["disable-blink-features"] = "AutomationControlled"
	}

	if f.browserCfg.NoSandbox {
		args["no-sandbox"] = ""
	}

	return args
}
