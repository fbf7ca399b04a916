package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"

	"github.com/facebook-automation/pkg/config"
	"github.com/facebook-automation/pkg/locator"
	"github.com/facebook-automation/pkg/logger"
	"github.com/facebook-automation/pkg/stealth"
)

const pollInterval = 250 * time.Millisecond

type RodDriver struct {
	config      *config.BrowserConfig
	rod         *rod.Browser
	page        *rod.Page
	log         *logger.Logger
	fingerprint *stealth.FingerprintManager
	timing      *stealth.TimingController
	pageID      atomic.Uint64
}

type Options struct {
	Config      *config.Config
	Fingerprint *stealth.FingerprintManager
	Timing      *stealth.TimingController
	Logger      *logger.Logger
}

func NewRod(opts Options) *RodDriver {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &RodDriver{
		config:      &opts.Config.Browser,
		log:         log.WithComponent("browser"),
		fingerprint: opts.Fingerprint,
		timing:      opts.Timing,
	}
}

func (b *RodDriver) Launch(ctx context.Context) error {
	b.log.Info("Launching browser (headless=%v)...", b.config.Headless)

	if b.config.UserDataDir != "" {
		if err := os.MkdirAll(b.config.UserDataDir, 0755); err != nil {
			return fmt.Errorf("failed to create user data directory: %w", err)
		}
	}

	l := launcher.New().
		Context(ctx).
		Headless(b.config.Headless).
		Set("window-size", fmt.Sprintf("%d,%d", b.config.ViewportWidth, b.config.ViewportHeight))

	if b.config.Bin != "" {
		l = l.Bin(b.config.Bin)
	}
	if b.config.UserDataDir != "" {
		l = l.UserDataDir(b.config.UserDataDir)
	}

	for name, value := range b.fingerprint.GetBrowserArgs() {
		if value == "" {
			l = l.Set(flags.Flag(name))
		} else {
			l = l.Set(flags.Flag(name), value)
		}
	}

	url, err := l.Launch()
	if err != nil {
		return fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(url)
	if err := browser.Connect(); err != nil {
		return fmt.Errorf("failed to connect to browser: %w", err)
	}
	b.rod = browser

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return fmt.Errorf("failed to create page: %w", err)
	}

	fp := b.fingerprint.Generate()
	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
		UserAgent:      fp.UserAgent,
		AcceptLanguage: "es-ES,es;q=0.9,en;q=0.8",
		Platform:       fp.Platform,
	}); err != nil {
		b.log.Warn("Failed to set user agent: %v", err)
	}

	if fp.ViewportWidth > 0 && fp.ViewportHeight > 0 {
		if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             fp.ViewportWidth,
			Height:            fp.ViewportHeight,
			DeviceScaleFactor: 1,
		}); err != nil {
			b.log.Warn("Failed to set viewport: %v", err)
		}
	}

	for _, script := range b.fingerprint.GetStealthScripts() {
		if _, err := page.EvalOnNewDocument(script); err != nil {
			b.log.Warn("Failed to inject stealth script: %v", err)
		}
	}

	b.page = page
	b.log.Info("Browser launched")

	return nil
}

func (b *RodDriver) Navigate(ctx context.Context, url string) error {
	b.log.Debug("Navigating to %s", url)

	page := b.page.Context(ctx)
	if err := page.Navigate(url); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	b.pageID.Add(1)

	if err := page.WaitLoad(); err != nil {
		return fmt.Errorf("page load timeout for %s: %w", url, err)
	}

	return b.timing.SleepPageLoad(ctx)
}

func (b *RodDriver) CurrentURL(ctx context.Context) (string, error) {
	info, err := b.page.Context(ctx).Info()
	if err != nil {
		return "", fmt.Errorf("failed to read page info: %w", err)
	}
	return info.URL, nil
}

func (b *RodDriver) PageID() uint64 {
	return b.pageID.Load()
}

func (b *RodDriver) Document() Scope {
	return &rodScope{page: b.page}
}

func (b *RodDriver) Screenshot(ctx context.Context) ([]byte, error) {
	data, err := b.page.Context(ctx).Screenshot(false, nil)
	if err != nil {
		return nil, fmt.Errorf("screenshot failed: %w", err)
	}
	return data, nil
}

func (b *RodDriver) Cookies(ctx context.Context) ([]Cookie, error) {
	cookies, err := b.page.Context(ctx).Cookies(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get cookies: %w", err)
	}

	out := make([]Cookie, 0, len(cookies))
	for _, c := range cookies {
		out = append(out, Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  float64(c.Expires),
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
		})
	}
	return out, nil
}

func (b *RodDriver) SetCookies(ctx context.Context, cookies []Cookie) error {
	params := make([]*proto.NetworkCookieParam, 0, len(cookies))
	for _, c := range cookies {
		params = append(params, &proto.NetworkCookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  proto.TimeSinceEpoch(c.Expires),
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
		})
	}
	if err := b.page.Context(ctx).SetCookies(params); err != nil {
		return fmt.Errorf("failed to set cookies: %w", err)
	}
	return nil
}

func (b *RodDriver) Close() error {
	if b.rod != nil {
		return b.rod.Close()
	}
	return nil
}

type rodScope struct {
	page *rod.Page
}

func (s *rodScope) Find(ctx context.Context, c locator.Candidate) ([]Element, error) {
	page := s.page.Context(ctx)
	return query(c,
		func(css string) (rod.Elements, error) { return page.Elements(css) },
		func(xpath string) (rod.Elements, error) { return page.ElementsX(xpath) },
	)
}

func (s *rodScope) WaitFind(ctx context.Context, c locator.Candidate, timeout time.Duration) ([]Element, error) {
	return poll(ctx, timeout, func() ([]Element, error) { return s.Find(ctx, c) })
}

type rodElement struct {
	el *rod.Element
}

func (e *rodElement) Find(ctx context.Context, c locator.Candidate) ([]Element, error) {
	el := e.el.Context(ctx)
	return query(c,
		func(css string) (rod.Elements, error) { return el.Elements(css) },
		// Absolute paths would escape the region; anchor them to the element.
		func(xpath string) (rod.Elements, error) {
			if strings.HasPrefix(xpath, "/") {
				xpath = "." + xpath
			}
			return el.ElementsX(xpath)
		},
	)
}

func (e *rodElement) WaitFind(ctx context.Context, c locator.Candidate, timeout time.Duration) ([]Element, error) {
	return poll(ctx, timeout, func() ([]Element, error) { return e.Find(ctx, c) })
}

func (e *rodElement) Visible(ctx context.Context) (bool, error) {
	visible, err := e.el.Context(ctx).Visible()
	return visible, classify(err)
}

func (e *rodElement) Enabled(ctx context.Context) (bool, error) {
	res, err := e.el.Context(ctx).Eval(`() => !(this.disabled || this.getAttribute('aria-disabled') === 'true')`)
	if err != nil {
		return false, classify(err)
	}
	return res.Value.Bool(), nil
}

func (e *rodElement) ScrollIntoView(ctx context.Context) error {
	el := e.el.Context(ctx)
	if _, err := el.Eval(`() => this.scrollIntoView({block: 'center', inline: 'center'})`); err != nil {
		return classify(el.ScrollIntoView())
	}
	return nil
}

func (e *rodElement) DispatchClick(ctx context.Context) error {
	_, err := e.el.Context(ctx).Eval(`() => {
		try { this.focus(); } catch (e) {}
		['mousedown', 'mouseup', 'click'].forEach(type => {
			this.dispatchEvent(new MouseEvent(type, {bubbles: true, cancelable: true, view: window}));
		});
	}`)
	return classify(err)
}

func (e *rodElement) Click(ctx context.Context) error {
	return classify(e.el.Context(ctx).Click(proto.InputMouseButtonLeft, 1))
}

func (e *rodElement) Focus(ctx context.Context) error {
	return classify(e.el.Context(ctx).Focus())
}

func (e *rodElement) Clear(ctx context.Context) error {
	el := e.el.Context(ctx)
	if err := el.SelectAllText(); err != nil {
		return classify(err)
	}
	return classify(el.Type(input.Backspace))
}

func (e *rodElement) Input(ctx context.Context, text string) error {
	return classify(e.el.Context(ctx).Input(text))
}

func (e *rodElement) SetText(ctx context.Context, text string) error {
	_, err := e.el.Context(ctx).Eval(`(text) => {
		if ('value' in this) { this.value = text; } else { this.textContent = text; }
		this.dispatchEvent(new Event('input', {bubbles: true}));
	}`, text)
	return classify(err)
}

func (e *rodElement) PressEnter(ctx context.Context) error {
	return classify(e.el.Context(ctx).Type(input.Enter))
}

func (e *rodElement) Attribute(ctx context.Context, name string) (string, bool, error) {
	value, err := e.el.Context(ctx).Attribute(name)
	if err != nil {
		return "", false, classify(err)
	}
	if value == nil {
		return "", false, nil
	}
	return *value, true, nil
}

func (e *rodElement) Text(ctx context.Context) (string, error) {
	text, err := e.el.Context(ctx).Text()
	return text, classify(err)
}

// query runs a candidate through the css or xpath finder that matches its
// technique.
func query(c locator.Candidate, css, xpath func(string) (rod.Elements, error)) ([]Element, error) {
	var (
		found rod.Elements
		err   error
	)

	switch c.Technique {
	case locator.Structural:
		found, err = css(c.Expr)
	case locator.XPath:
		found, err = xpath(c.Expr)
	case locator.Text:
		found, err = xpath(fmt.Sprintf(
			"//*[normalize-space(text())=%s]/ancestor-or-self::*[@role='button' or self::button or self::a][1]",
			xpathLiteral(c.Expr)))
	case locator.AttrContains:
		found, err = css(c.Expr)
		if err == nil {
			found, err = filterContains(found, c.Attr, c.Needles)
		}
	default:
		return nil, fmt.Errorf("unsupported technique %q", c.Technique)
	}
	if err != nil {
		return nil, classify(err)
	}

	out := make([]Element, 0, len(found))
	for _, el := range found {
		out = append(out, &rodElement{el: el})
	}
	return out, nil
}

func filterContains(els rod.Elements, attr string, needles []string) (rod.Elements, error) {
	var kept rod.Elements
	for _, el := range els {
		var value string
		if attr == "" {
			text, err := el.Text()
			if err != nil {
				continue
			}
			value = text
		} else {
			v, err := el.Attribute(attr)
			if err != nil || v == nil {
				continue
			}
			value = *v
		}

		value = strings.ToLower(value)
		for _, needle := range needles {
			if strings.Contains(value, strings.ToLower(needle)) {
				kept = append(kept, el)
				break
			}
		}
	}
	return kept, nil
}

// xpathLiteral quotes s for use in an XPath expression.
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, "'")
	return "concat('" + strings.Join(parts, `', "'", '`) + "')"
}

func poll(ctx context.Context, timeout time.Duration, find func() ([]Element, error)) ([]Element, error) {
	deadline := time.Now().Add(timeout)
	for {
		found, err := find()
		if err == nil && len(found) > 0 {
			return found, nil
		}
		if !time.Now().Before(deadline) {
			return found, err
		}

		timer := time.NewTimer(pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func classify(err error) error {
	if err == nil {
		return nil
	}

	var notFound *rod.ObjectNotFoundError
	if errors.As(err, &notFound) {
		return fmt.Errorf("%w: %v", ErrStale, err)
	}

	var (
		notInteractable *rod.NotInteractableError
		invisible       *rod.InvisibleShapeError
		covered         *rod.CoveredError
		noPointer       *rod.NoPointerEventsError
	)
	if errors.As(err, &notInteractable) || errors.As(err, &invisible) ||
		errors.As(err, &covered) || errors.As(err, &noPointer) {
		return fmt.Errorf("%w: %v", ErrNotInteractable, err)
	}

	return err
}
