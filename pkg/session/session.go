// Package session establishes an authenticated browser session once per run.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/facebook-automation/pkg/browser"
	"github.com/facebook-automation/pkg/config"
	"github.com/facebook-automation/pkg/executor"
	"github.com/facebook-automation/pkg/locator"
	"github.com/facebook-automation/pkg/logger"
	"github.com/facebook-automation/pkg/resolver"
	"github.com/facebook-automation/pkg/stealth"
	"github.com/facebook-automation/pkg/storage"
)

type State string

const (
	NotStarted     State = "not_started"
	Authenticating State = "authenticating"
	Authenticated  State = "authenticated"
	Failed         State = "failed"
)

type Reason string

const (
	BadCredentials       Reason = "bad_credentials"
	VerificationRequired Reason = "verification_required"
	Unverified           Reason = "unverified"
)

// Error is the terminal failure of a login attempt. It is never retried.
type Error struct {
	Reason Reason
	URL    string
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("login failed: %s", e.Reason)
	if e.URL != "" {
		msg += fmt.Sprintf(" (at %s)", e.URL)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

type Manager struct {
	driver   browser.Driver
	resolver *resolver.Resolver
	executor *executor.Executor
	storage  *storage.Storage
	timing   *stealth.TimingController
	account  config.Account
	restore  bool
	entryURL string
	homeURL  string
	log      *logger.Logger

	once  sync.Once
	mu    sync.Mutex
	state State
	err   error
}

type Options struct {
	Driver   browser.Driver
	Resolver *resolver.Resolver
	Executor *executor.Executor
	Timing   *stealth.TimingController
	Account  config.Account
	// Storage is optional. With Restore set, stored cookies are tried before
	// typing credentials.
	Storage  *storage.Storage
	Restore  bool
	EntryURL string
	HomeURL  string
	Logger   *logger.Logger
}

func New(opts Options) *Manager {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	entry := opts.EntryURL
	if entry == "" {
		entry = locator.FacebookEntryURL
	}
	home := opts.HomeURL
	if home == "" {
		home = locator.FacebookHomeURL
	}

	return &Manager{
		driver:   opts.Driver,
		resolver: opts.Resolver,
		executor: opts.Executor,
		storage:  opts.Storage,
		timing:   opts.Timing,
		account:  opts.Account,
		restore:  opts.Restore,
		entryURL: entry,
		homeURL:  home,
		log:      log.WithComponent("session"),
		state:    NotStarted,
	}
}

// Ensure authenticates on first call and returns the cached result after.
func (m *Manager) Ensure(ctx context.Context) error {
	m.once.Do(func() {
		m.setState(Authenticating, nil)
		err := m.authenticate(ctx)
		if err != nil {
			m.setState(Failed, err)
			m.log.Error("Authentication failed: %v", err)
			return
		}
		m.setState(Authenticated, nil)
		m.log.Info("Authenticated as %s", m.account.Username)
	})

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

func (m *Manager) setState(s State, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = s
	m.err = err
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

func (m *Manager) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

func (m *Manager) Connected() bool {
	return m.State() == Authenticated
}

func (m *Manager) authenticate(ctx context.Context) error {
	if m.restore && m.storage != nil {
		ok, err := m.restoreSession(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			m.log.Warn("Failed to restore session: %v", err)
		}
		if ok {
			m.log.Info("Session restored from stored cookies")
			return nil
		}
		m.log.Info("Stored session not usable, proceeding with fresh login")
	}

	if err := m.login(ctx); err != nil {
		return err
	}

	if err := m.saveSession(ctx); err != nil {
		m.log.Warn("Failed to save session: %v", err)
	}
	return nil
}

func (m *Manager) restoreSession(ctx context.Context) (bool, error) {
	session, err := m.storage.LoadSession(m.account.Username)
	if err != nil || session == nil {
		return false, err
	}

	if err := m.driver.SetCookies(ctx, session.Cookies); err != nil {
		return false, fmt.Errorf("failed to set cookies: %w", err)
	}
	if err := m.driver.Navigate(ctx, m.homeURL); err != nil {
		return false, fmt.Errorf("failed to navigate: %w", err)
	}

	current, err := m.driver.CurrentURL(ctx)
	if err != nil {
		return false, err
	}
	if !m.authenticatedHome(ctx, current) {
		// the jar no longer logs in; drop it so later runs go straight to the form
		if err := m.storage.InvalidateSession(); err != nil {
			m.log.Warn("Failed to invalidate stored session: %v", err)
		}
		return false, nil
	}
	return true, nil
}

func (m *Manager) login(ctx context.Context) error {
	m.log.Info("Navigating to login page...")
	if err := m.driver.Navigate(ctx, m.entryURL); err != nil {
		return &Error{Reason: Unverified, URL: m.entryURL, Err: err}
	}

	current, err := m.driver.CurrentURL(ctx)
	if err != nil {
		return &Error{Reason: Unverified, Err: err}
	}
	variant := locator.DetectVariant(current)
	doc := m.driver.Document()

	m.dismissConsent(ctx, variant, doc)

	steps := []executor.Request{
		{Intent: locator.LoginEmail, Action: executor.Type, Payload: m.account.Username},
		{Intent: locator.LoginPassword, Action: executor.Type, Payload: m.account.Password},
		{Intent: locator.LoginSubmit, Action: executor.Click},
	}
	for _, step := range steps {
		step.Variant = variant
		step.Scope = doc
		if result := m.executor.Perform(ctx, step); !result.OK() {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return &Error{Reason: Unverified, URL: current, Err: fmt.Errorf("%s: %w", step.Intent, result.Err)}
		}
	}

	if err := m.timing.SleepLogin(ctx); err != nil {
		return err
	}

	return m.classify(ctx)
}

// dismissConsent clicks the cookie banner when one is showing.
func (m *Manager) dismissConsent(ctx context.Context, variant locator.Variant, doc browser.Scope) {
	res, err := m.resolver.Resolve(ctx, locator.ConsentAccept, variant, doc, resolver.NoWait())
	if err != nil {
		m.log.Debug("No consent dialog")
		return
	}
	result := m.executor.Perform(ctx, executor.Request{
		Intent:     locator.ConsentAccept,
		Variant:    variant,
		Scope:      doc,
		Resolution: res,
		Action:     executor.Click,
	})
	if !result.OK() {
		m.log.Debug("Consent dialog could not be dismissed: %v", result.Err)
	}
}

func (m *Manager) classify(ctx context.Context) error {
	current, err := m.driver.CurrentURL(ctx)
	if err != nil {
		return &Error{Reason: Unverified, Err: err}
	}
	variant := locator.DetectVariant(current)
	doc := m.driver.Document()

	switch {
	case m.resolver.Present(ctx, locator.LoginError, variant, doc):
		return &Error{Reason: BadCredentials, URL: current}
	case m.resolver.Present(ctx, locator.VerificationField, variant, doc) || IsCheckpoint(current):
		return &Error{Reason: VerificationRequired, URL: current}
	case m.authenticatedHome(ctx, current):
		return nil
	default:
		return &Error{Reason: Unverified, URL: current}
	}
}

// authenticatedHome checks the URL shape and that no login form is showing.
func (m *Manager) authenticatedHome(ctx context.Context, current string) bool {
	if !IsHomeURL(current) {
		return false
	}
	return !m.resolver.Present(ctx, locator.LoginEmail, locator.DetectVariant(current), m.driver.Document())
}

func (m *Manager) saveSession(ctx context.Context) error {
	if m.storage == nil {
		return nil
	}

	cookies, err := m.driver.Cookies(ctx)
	if err != nil {
		return fmt.Errorf("failed to get cookies: %w", err)
	}
	if len(cookies) == 0 {
		return errors.New("browser returned no cookies")
	}

	return m.storage.SaveSession(&storage.Session{
		Username:  m.account.Username,
		Cookies:   cookies,
		LastLogin: time.Now(),
		IsValid:   true,
	})
}

// IsCheckpoint reports a step-up verification URL.
func IsCheckpoint(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.HasPrefix(u.Path, "/checkpoint")
}

var loggedOutPaths = []string{"/login", "/checkpoint", "/recover", "/r.php", "/reg"}

// IsHomeURL reports whether rawURL has the shape of the signed-in landing
// page: the site root, /home.php or the ?sk=h_chr feed.
func IsHomeURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host != "facebook.com" && !strings.HasSuffix(host, ".facebook.com") {
		return false
	}
	for _, p := range loggedOutPaths {
		if strings.HasPrefix(u.Path, p) {
			return false
		}
	}

	switch strings.TrimSuffix(u.Path, "/") {
	case "", "/home.php", "/home":
		return true
	}
	return u.Query().Get("sk") == "h_chr"
}
