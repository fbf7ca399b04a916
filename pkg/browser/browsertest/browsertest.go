// Package browsertest provides a scripted in-memory browser.Driver for tests.
//
// Pages are registered by URL and hold elements keyed by candidate
// expression. Every interaction is appended to the driver's call log so
// tests can assert on ordering.
package browsertest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/facebook-automation/pkg/browser"
	"github.com/facebook-automation/pkg/locator"
)

var ErrClick = errors.New("scripted click failure")

type Page struct {
	URL      string
	Elements map[string][]*Element
	// Errors makes the query for an expression fail.
	Errors map[string]error
}

type Element struct {
	Name     string
	Hidden   bool
	Disabled bool
	Content  string
	Attrs    map[string]string

	Children map[string][]*Element
	Errors   map[string]error

	// VisibleErr makes the visibility predicate fail.
	VisibleErr error
	// FailDispatch fails that many DispatchClick calls before succeeding.
	FailDispatch int
	DispatchErr  error
	ClickErr     error
	InputErr     error
	SetTextErr   error
	EnterErr     error
	ScrollErr    error

	// OnActivate runs after a successful click or Enter.
	OnActivate func(d *Driver)

	Value  string
	Clicks int

	driver *Driver
}

type Driver struct {
	mu        sync.Mutex
	pages     map[string]*Page
	redirects map[string][]string
	current   *Page
	url       string
	pageID    uint64
	calls     []string
	queries   []string
	cookies   []browser.Cookie

	NavigateErr   error
	ScreenshotErr error
	Closed        bool
}

func New() *Driver {
	return &Driver{
		pages:     make(map[string]*Page),
		redirects: make(map[string][]string),
		current:   &Page{URL: "about:blank"},
		url:       "about:blank",
	}
}

func (d *Driver) AddPage(p *Page) *Driver {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, els := range p.Elements {
		for _, el := range els {
			el.attach(d)
		}
	}
	d.pages[p.URL] = p
	return d
}

// Redirect queues a one-shot redirect: the next navigation to from lands on to.
func (d *Driver) Redirect(from, to string) *Driver {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.redirects[from] = append(d.redirects[from], to)
	return d
}

// GoTo replaces the current page as an in-page navigation would.
func (d *Driver) GoTo(url string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.load(url)
}

func (d *Driver) load(url string) {
	p, ok := d.pages[url]
	if !ok {
		p = &Page{URL: url}
	}
	d.current = p
	d.url = url
	d.pageID++
}

func (d *Driver) record(format string, args ...interface{}) {
	d.calls = append(d.calls, fmt.Sprintf(format, args...))
}

// Calls returns the interaction log.
func (d *Driver) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

// CallsWithPrefix filters the interaction log.
func (d *Driver) CallsWithPrefix(prefix string) []string {
	var out []string
	for _, c := range d.Calls() {
		if strings.HasPrefix(c, prefix) {
			out = append(out, c)
		}
	}
	return out
}

// Queries returns every expression queried, prefixed "find " or "wait ".
func (d *Driver) Queries() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.queries...)
}

func (d *Driver) Navigate(ctx context.Context, url string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.record("navigate %s", url)
	if d.NavigateErr != nil {
		return d.NavigateErr
	}

	landing := url
	if queue := d.redirects[url]; len(queue) > 0 {
		landing = queue[0]
		d.redirects[url] = queue[1:]
	}
	d.load(landing)
	return ctx.Err()
}

func (d *Driver) CurrentURL(ctx context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.url, nil
}

func (d *Driver) PageID() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pageID
}

func (d *Driver) Document() browser.Scope {
	return documentScope{d: d}
}

func (d *Driver) Screenshot(ctx context.Context) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("screenshot")
	if d.ScreenshotErr != nil {
		return nil, d.ScreenshotErr
	}
	return []byte("\x89PNG fake"), nil
}

func (d *Driver) Cookies(ctx context.Context) ([]browser.Cookie, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]browser.Cookie(nil), d.cookies...), nil
}

func (d *Driver) SetCookies(ctx context.Context, cookies []browser.Cookie) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.record("set-cookies %d", len(cookies))
	d.cookies = append([]browser.Cookie(nil), cookies...)
	return nil
}

func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Closed = true
	return nil
}

type documentScope struct {
	d *Driver
}

func (s documentScope) Find(ctx context.Context, c locator.Candidate) ([]browser.Element, error) {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	s.d.queries = append(s.d.queries, "find "+c.Expr)
	return lookup(s.d.current.Elements, s.d.current.Errors, c)
}

func (s documentScope) WaitFind(ctx context.Context, c locator.Candidate, timeout time.Duration) ([]browser.Element, error) {
	s.d.mu.Lock()
	defer s.d.mu.Unlock()
	s.d.queries = append(s.d.queries, "wait "+c.Expr)
	return lookup(s.d.current.Elements, s.d.current.Errors, c)
}

func lookup(elements map[string][]*Element, errs map[string]error, c locator.Candidate) ([]browser.Element, error) {
	if err := errs[c.Expr]; err != nil {
		return nil, err
	}
	found := elements[c.Expr]
	out := make([]browser.Element, 0, len(found))
	for _, el := range found {
		out = append(out, el)
	}
	return out, nil
}

func (e *Element) attach(d *Driver) {
	e.driver = d
	for _, els := range e.Children {
		for _, child := range els {
			child.attach(d)
		}
	}
}

func (e *Element) Find(ctx context.Context, c locator.Candidate) ([]browser.Element, error) {
	e.driver.mu.Lock()
	defer e.driver.mu.Unlock()
	e.driver.queries = append(e.driver.queries, "find "+c.Expr)
	return lookup(e.Children, e.Errors, c)
}

func (e *Element) WaitFind(ctx context.Context, c locator.Candidate, timeout time.Duration) ([]browser.Element, error) {
	e.driver.mu.Lock()
	defer e.driver.mu.Unlock()
	e.driver.queries = append(e.driver.queries, "wait "+c.Expr)
	return lookup(e.Children, e.Errors, c)
}

func (e *Element) Visible(ctx context.Context) (bool, error) {
	if e.VisibleErr != nil {
		return false, e.VisibleErr
	}
	return !e.Hidden, nil
}

func (e *Element) Enabled(ctx context.Context) (bool, error) {
	return !e.Disabled, nil
}

func (e *Element) ScrollIntoView(ctx context.Context) error {
	e.driver.mu.Lock()
	defer e.driver.mu.Unlock()
	e.driver.record("scroll %s", e.Name)
	return e.ScrollErr
}

func (e *Element) DispatchClick(ctx context.Context) error {
	e.driver.mu.Lock()
	e.driver.record("dispatch %s", e.Name)
	if e.FailDispatch > 0 {
		e.FailDispatch--
		e.driver.mu.Unlock()
		if e.DispatchErr != nil {
			return e.DispatchErr
		}
		return ErrClick
	}
	if e.DispatchErr != nil {
		e.driver.mu.Unlock()
		return e.DispatchErr
	}
	e.Clicks++
	e.driver.record("click %s", e.Name)
	e.driver.mu.Unlock()

	e.activate()
	return nil
}

func (e *Element) Click(ctx context.Context) error {
	e.driver.mu.Lock()
	e.driver.record("native-click %s", e.Name)
	if e.ClickErr != nil {
		e.driver.mu.Unlock()
		return e.ClickErr
	}
	e.Clicks++
	e.driver.record("click %s", e.Name)
	e.driver.mu.Unlock()

	e.activate()
	return nil
}

func (e *Element) activate() {
	if e.OnActivate != nil {
		e.OnActivate(e.driver)
	}
}

func (e *Element) Focus(ctx context.Context) error {
	e.driver.mu.Lock()
	defer e.driver.mu.Unlock()
	e.driver.record("focus %s", e.Name)
	return nil
}

func (e *Element) Clear(ctx context.Context) error {
	e.driver.mu.Lock()
	defer e.driver.mu.Unlock()
	e.Value = ""
	return nil
}

func (e *Element) Input(ctx context.Context, text string) error {
	e.driver.mu.Lock()
	defer e.driver.mu.Unlock()
	if e.InputErr != nil {
		return e.InputErr
	}
	e.Value += text
	return nil
}

func (e *Element) SetText(ctx context.Context, text string) error {
	e.driver.mu.Lock()
	defer e.driver.mu.Unlock()
	e.driver.record("set-text %s", e.Name)
	if e.SetTextErr != nil {
		return e.SetTextErr
	}
	e.Value = text
	return nil
}

func (e *Element) PressEnter(ctx context.Context) error {
	e.driver.mu.Lock()
	e.driver.record("enter %s", e.Name)
	if e.EnterErr != nil {
		e.driver.mu.Unlock()
		return e.EnterErr
	}
	e.driver.mu.Unlock()

	e.activate()
	return nil
}

func (e *Element) Attribute(ctx context.Context, name string) (string, bool, error) {
	v, ok := e.Attrs[name]
	return v, ok, nil
}

func (e *Element) Text(ctx context.Context) (string, error) {
	return e.Content, nil
}

// Typed returns the element's accumulated input.
func (e *Element) Typed() string {
	e.driver.mu.Lock()
	defer e.driver.mu.Unlock()
	return e.Value
}
