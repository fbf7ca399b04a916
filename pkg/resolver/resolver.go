// Package resolver turns an intent into a live element by walking the
// catalog's candidates in priority order.
package resolver

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/facebook-automation/pkg/browser"
	"github.com/facebook-automation/pkg/locator"
	"github.com/facebook-automation/pkg/logger"
)

// Resolution is an element handle bound to the page load it was found on.
type Resolution struct {
	Element   browser.Element
	Candidate locator.Candidate
	Index     int
	Intent    locator.Intent
	Variant   locator.Variant
	PageID    uint64
}

// NotFoundError reports that every candidate was tried without a visible,
// enabled match.
type NotFoundError struct {
	Intent  locator.Intent
	Variant locator.Variant
	Tried   []string
}

func (e *NotFoundError) Error() string {
	if len(e.Tried) == 0 {
		return fmt.Sprintf("no candidates for %s/%s", e.Intent, e.Variant)
	}
	return fmt.Sprintf("%s/%s not found after %d candidates: %s",
		e.Intent, e.Variant, len(e.Tried), strings.Join(e.Tried, ", "))
}

// PageCounter reports the current page load id.
type PageCounter interface {
	PageID() uint64
}

type Resolver struct {
	catalog *locator.Catalog
	timeout time.Duration
	pages   PageCounter
	log     *logger.Logger
}

func New(catalog *locator.Catalog, timeout time.Duration, pages PageCounter, log *logger.Logger) *Resolver {
	if log == nil {
		log = logger.Nop()
	}
	return &Resolver{
		catalog: catalog,
		timeout: timeout,
		pages:   pages,
		log:     log.WithComponent("resolver"),
	}
}

type options struct {
	skip   map[int]bool
	noWait bool
}

type Option func(*options)

// Skip excludes candidate indices that were already tried.
func Skip(indices ...int) Option {
	return func(o *options) {
		for _, i := range indices {
			o.skip[i] = true
		}
	}
}

// NoWait disables the bounded wait on the first candidate.
func NoWait() Option {
	return func(o *options) {
		o.noWait = true
	}
}

func (r *Resolver) Catalog() *locator.Catalog {
	return r.catalog
}

// Resolve returns the first visible and enabled element of the first
// candidate that has one. Only the first attempted candidate waits; query
// and predicate failures are logged and skipped. Exhaustion yields
// *NotFoundError; the only other error is a cancelled context.
func (r *Resolver) Resolve(ctx context.Context, intent locator.Intent, variant locator.Variant, scope browser.Scope, opts ...Option) (*Resolution, error) {
	o := options{skip: make(map[int]bool)}
	for _, opt := range opts {
		opt(&o)
	}

	log := r.log.WithFields(map[string]interface{}{"intent": intent, "variant": variant})
	candidates := r.catalog.Lookup(intent, variant)
	tried := make([]string, 0, len(candidates))
	waited := o.noWait

	for i, c := range candidates {
		if o.skip[i] {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		tried = append(tried, c.String())

		var (
			found []browser.Element
			err   error
		)
		if !waited {
			waited = true
			found, err = scope.WaitFind(ctx, c, r.timeout)
		} else {
			found, err = scope.Find(ctx, c)
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Debug("Candidate %d %s failed: %v", i, c, err)
			continue
		}

		for _, el := range found {
			if !interactable(ctx, el) {
				continue
			}
			log.Debug("Resolved with candidate %d %s", i, c)
			return &Resolution{
				Element:   el,
				Candidate: c,
				Index:     i,
				Intent:    intent,
				Variant:   variant,
				PageID:    r.pages.PageID(),
			}, nil
		}
		log.Debug("Candidate %d %s matched %d elements, none interactable", i, c, len(found))
	}

	return nil, &NotFoundError{Intent: intent, Variant: variant, Tried: tried}
}

// Present reports whether intent resolves right now, without waiting.
func (r *Resolver) Present(ctx context.Context, intent locator.Intent, variant locator.Variant, scope browser.Scope) bool {
	res, err := r.Resolve(ctx, intent, variant, scope, NoWait())
	return err == nil && res != nil
}

func interactable(ctx context.Context, el browser.Element) bool {
	visible, err := el.Visible(ctx)
	if err != nil || !visible {
		return false
	}
	enabled, err := el.Enabled(ctx)
	return err == nil && enabled
}
