// Package browser defines the driver surface the engine talks to and a
// go-rod implementation of it.
package browser

import (
	"context"
	"errors"
	"time"

	"github.com/facebook-automation/pkg/locator"
)

var (
	// ErrStale marks an element handle whose node left the document.
	ErrStale = errors.New("element is no longer attached to the page")
	// ErrNotInteractable marks an element that is hidden, covered or has no
	// shape.
	ErrNotInteractable = errors.New("element is not interactable")
)

// Scope is a region queries run against: the whole document or an element.
type Scope interface {
	// Find runs one candidate query without waiting.
	Find(ctx context.Context, c locator.Candidate) ([]Element, error)
	// WaitFind polls until the query returns at least one match or timeout
	// elapses. An empty result after the timeout is not an error.
	WaitFind(ctx context.Context, c locator.Candidate, timeout time.Duration) ([]Element, error)
}

type Element interface {
	Scope

	Visible(ctx context.Context) (bool, error)
	Enabled(ctx context.Context) (bool, error)

	ScrollIntoView(ctx context.Context) error
	// DispatchClick fires mousedown, mouseup and click from script.
	DispatchClick(ctx context.Context) error
	// Click is a native mouse click at the element's centre.
	Click(ctx context.Context) error

	Focus(ctx context.Context) error
	Clear(ctx context.Context) error
	Input(ctx context.Context, text string) error
	// SetText writes value (or textContent) directly and fires an input event.
	SetText(ctx context.Context, text string) error
	PressEnter(ctx context.Context) error

	Attribute(ctx context.Context, name string) (string, bool, error)
	Text(ctx context.Context) (string, error)
}

type Cookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
}

// Driver owns a single browser page for the duration of a run.
type Driver interface {
	Navigate(ctx context.Context, url string) error
	CurrentURL(ctx context.Context) (string, error)
	// PageID increments on every navigation. Element handles obtained under
	// an older id must not be used.
	PageID() uint64
	Document() Scope
	Screenshot(ctx context.Context) ([]byte, error)
	Cookies(ctx context.Context) ([]Cookie, error)
	SetCookies(ctx context.Context, cookies []Cookie) error
	Close() error
}
