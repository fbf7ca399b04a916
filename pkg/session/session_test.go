package session

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/facebook-automation/pkg/browser"
	"github.com/facebook-automation/pkg/browser/browsertest"
	"github.com/facebook-automation/pkg/config"
	"github.com/facebook-automation/pkg/executor"
	"github.com/facebook-automation/pkg/locator"
	"github.com/facebook-automation/pkg/resolver"
	"github.com/facebook-automation/pkg/stealth"
	"github.com/facebook-automation/pkg/storage"
)

const (
	entryURL      = locator.FacebookEntryURL
	homeURL       = locator.FacebookHomeURL
	checkpointURL = "https://www.facebook.com/checkpoint/?next"
)

var account = config.Account{Username: "ana@example.com", Password: "secret"}

type loginPage struct {
	email, pass, submit, consent *browsertest.Element
}

// newLoginPage builds the entry page. Submitting lands on landing, which
// carries the given elements.
func newLoginPage(d *browsertest.Driver, landing string, landingElements map[string][]*browsertest.Element) loginPage {
	p := loginPage{
		email:  &browsertest.Element{Name: "email"},
		pass:   &browsertest.Element{Name: "pass"},
		submit: &browsertest.Element{Name: "submit"},
	}
	p.submit.OnActivate = func(d *browsertest.Driver) {
		_ = d.SetCookies(context.Background(), []browser.Cookie{{Name: "c_user", Value: "1000", Domain: ".facebook.com"}})
		d.GoTo(landing)
	}

	d.AddPage(&browsertest.Page{
		URL: entryURL,
		Elements: map[string][]*browsertest.Element{
			"#email":               {p.email},
			"#pass":                {p.pass},
			"button[name='login']": {p.submit},
		},
	})
	d.AddPage(&browsertest.Page{URL: landing, Elements: landingElements})
	return p
}

func newManager(d *browsertest.Driver, store *storage.Storage, restore bool) *Manager {
	res := resolver.New(locator.Facebook(), time.Second, d, nil)
	timing := stealth.NewTimingController(&config.TimingConfig{}, nil)
	exec := executor.New(executor.Options{
		Resolver: res,
		Pages:    d,
		Typing:   stealth.NewTypingController(&config.TypingConfig{}, nil),
		Timing:   timing,
	})
	return New(Options{
		Driver:   d,
		Resolver: res,
		Executor: exec,
		Timing:   timing,
		Account:  account,
		Storage:  store,
		Restore:  restore,
	})
}

func newStorage(t *testing.T) *storage.Storage {
	s, err := storage.New(&config.StorageConfig{DataDir: filepath.Join(t.TempDir(), "data")}, nil)
	require.NoError(t, err)
	return s
}

func TestLoginSuccess(t *testing.T) {
	d := browsertest.New()
	page := newLoginPage(d, homeURL, nil)
	store := newStorage(t)
	m := newManager(d, store, false)

	assert.Equal(t, NotStarted, m.State())
	require.NoError(t, m.Ensure(context.Background()))

	assert.Equal(t, Authenticated, m.State())
	assert.True(t, m.Connected())
	assert.Equal(t, account.Username, page.email.Typed())
	assert.Equal(t, account.Password, page.pass.Typed())
	assert.Equal(t, 1, page.submit.Clicks)

	saved, err := store.LoadSession(account.Username)
	require.NoError(t, err)
	require.NotNil(t, saved, "cookies are persisted after login")
	assert.Equal(t, "c_user", saved.Cookies[0].Name)
}

func TestLoginClassification(t *testing.T) {
	tests := []struct {
		name     string
		landing  string
		elements map[string][]*browsertest.Element
		want     Reason
	}{
		{
			name:     "error box",
			landing:  "https://www.facebook.com/login/?privacy_mutation_token=x",
			elements: map[string][]*browsertest.Element{".login_error_box": {{Name: "error"}}},
			want:     BadCredentials,
		},
		{
			name:     "verification field",
			landing:  "https://www.facebook.com/two_step",
			elements: map[string][]*browsertest.Element{"#approvals_code": {{Name: "code"}}},
			want:     VerificationRequired,
		},
		{
			name:    "checkpoint url",
			landing: checkpointURL,
			want:    VerificationRequired,
		},
		{
			name:    "unknown page",
			landing: "https://www.facebook.com/somewhere/else",
			want:    Unverified,
		},
		{
			name:     "home url but login form",
			landing:  homeURL,
			elements: map[string][]*browsertest.Element{"#email": {{Name: "email-again"}}},
			want:     Unverified,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := browsertest.New()
			newLoginPage(d, tt.landing, tt.elements)
			m := newManager(d, nil, false)

			err := m.Ensure(context.Background())

			var serr *Error
			require.True(t, errors.As(err, &serr), "got %v", err)
			assert.Equal(t, tt.want, serr.Reason)
			assert.Equal(t, Failed, m.State())
			assert.False(t, m.Connected())
		})
	}
}

func TestEnsureRunsOnce(t *testing.T) {
	d := browsertest.New()
	newLoginPage(d, checkpointURL, nil)
	m := newManager(d, nil, false)

	first := m.Ensure(context.Background())
	second := m.Ensure(context.Background())

	require.Error(t, first)
	assert.Same(t, first, second)
	assert.Equal(t, first, m.Err())
	assert.Len(t, d.CallsWithPrefix("navigate"), 1)
}

func TestConsentIsDismissed(t *testing.T) {
	d := browsertest.New()
	page := newLoginPage(d, homeURL, nil)
	consent := &browsertest.Element{Name: "consent"}
	d.AddPage(&browsertest.Page{
		URL: entryURL,
		Elements: map[string][]*browsertest.Element{
			"button[data-cookiebanner='accept_button']": {consent},
			"#email":               {page.email},
			"#pass":                {page.pass},
			"button[name='login']": {page.submit},
		},
	})
	m := newManager(d, nil, false)

	require.NoError(t, m.Ensure(context.Background()))
	assert.Equal(t, 1, consent.Clicks)
}

func TestMissingLoginFormIsUnverified(t *testing.T) {
	d := browsertest.New()
	d.AddPage(&browsertest.Page{URL: entryURL})
	m := newManager(d, nil, false)

	err := m.Ensure(context.Background())

	var serr *Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, Unverified, serr.Reason)
	var nf *resolver.NotFoundError
	assert.ErrorAs(t, err, &nf)
}

func TestRestoreSessionSkipsLogin(t *testing.T) {
	d := browsertest.New()
	page := newLoginPage(d, homeURL, nil)
	store := newStorage(t)
	require.NoError(t, store.SaveSession(&storage.Session{
		Username: account.Username,
		IsValid:  true,
		Cookies:  []browser.Cookie{{Name: "xs", Value: "v", Domain: ".facebook.com"}},
	}))
	m := newManager(d, store, true)

	require.NoError(t, m.Ensure(context.Background()))

	assert.Equal(t, []string{"set-cookies 1", "navigate " + homeURL}, d.Calls())
	assert.Empty(t, page.email.Typed())
}

func TestRestoreFallsBackToLogin(t *testing.T) {
	d := browsertest.New()
	page := newLoginPage(d, "https://www.facebook.com/?sk=h_chr", nil)
	d.Redirect(homeURL, entryURL)
	store := newStorage(t)
	require.NoError(t, store.SaveSession(&storage.Session{
		Username: account.Username,
		IsValid:  true,
		Cookies:  []browser.Cookie{{Name: "xs", Value: "expired"}},
	}))
	m := newManager(d, store, true)

	require.NoError(t, m.Ensure(context.Background()))
	assert.Equal(t, account.Username, page.email.Typed())
}

func TestRestoreRejectedCookiesAreInvalidated(t *testing.T) {
	d := browsertest.New()
	newLoginPage(d, checkpointURL, nil)
	d.Redirect(homeURL, entryURL)
	store := newStorage(t)
	require.NoError(t, store.SaveSession(&storage.Session{
		Username: account.Username,
		IsValid:  true,
		Cookies:  []browser.Cookie{{Name: "xs", Value: "expired"}},
	}))
	m := newManager(d, store, true)

	err := m.Ensure(context.Background())

	var sessErr *Error
	require.ErrorAs(t, err, &sessErr)
	assert.Equal(t, VerificationRequired, sessErr.Reason)

	stored, err := store.LoadSession(account.Username)
	require.NoError(t, err)
	assert.Nil(t, stored, "rejected cookies are not offered again")
}

func TestURLShapes(t *testing.T) {
	tests := []struct {
		url        string
		home       bool
		checkpoint bool
	}{
		{"https://www.facebook.com/", true, false},
		{"https://www.facebook.com/home.php", true, false},
		{"https://www.facebook.com/?sk=h_chr", true, false},
		{"https://m.facebook.com/home.php?ref=x", true, false},
		{"https://www.facebook.com/login/", false, false},
		{"https://www.facebook.com/checkpoint/1501092823525282/", false, true},
		{"https://www.facebook.com/someone", false, false},
		{"https://example.com/", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.home, IsHomeURL(tt.url))
			assert.Equal(t, tt.checkpoint, IsCheckpoint(tt.url))
		})
	}
}
