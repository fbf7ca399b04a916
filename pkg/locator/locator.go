// Package locator holds the catalog of element-location strategies keyed by
// intent and page variant. It is pure data: nothing here touches a browser.
package locator

import (
	"fmt"
	"net/url"
	"strings"
)

// Intent names the semantic target of a lookup independent of its markup.
type Intent string

const (
	LoginEmail        Intent = "login_email"
	LoginPassword     Intent = "login_password"
	LoginSubmit       Intent = "login_submit"
	ConsentAccept     Intent = "consent_accept"
	LoginError        Intent = "login_error"
	VerificationField Intent = "verification_field"
	LikeControl       Intent = "like_control"
	CommentInput      Intent = "comment_input"
	CommentSubmit     Intent = "comment_submit"
	ShareControl      Intent = "share_control"
	ShareConfirm      Intent = "share_confirm"
	PostBoundary      Intent = "post_boundary"
)

// Intents lists every known intent in a stable order.
func Intents() []Intent {
	return []Intent{
		LoginEmail, LoginPassword, LoginSubmit, ConsentAccept, LoginError,
		VerificationField, LikeControl, CommentInput, CommentSubmit,
		ShareControl, ShareConfirm, PostBoundary,
	}
}

func (i Intent) Valid() bool {
	for _, known := range Intents() {
		if i == known {
			return true
		}
	}
	return false
}

type Variant string

const (
	Desktop Variant = "desktop"
	Mobile  Variant = "mobile"
)

func Variants() []Variant {
	return []Variant{Desktop, Mobile}
}

func (v Variant) Valid() bool {
	return v == Desktop || v == Mobile
}

// DetectVariant classifies a page URL by host. Unparseable URLs are treated
// as desktop.
func DetectVariant(rawURL string) Variant {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Desktop
	}
	host := strings.ToLower(u.Hostname())
	for _, prefix := range []string{"m.", "mbasic.", "touch."} {
		if strings.HasPrefix(host, prefix) {
			return Mobile
		}
	}
	return Desktop
}

// Technique is the query family a candidate uses.
type Technique string

const (
	// Structural is a CSS selector.
	Structural Technique = "css"
	XPath      Technique = "xpath"
	// AttrContains scans elements matching the CSS in Expr and keeps those
	// whose Attr (visible text when empty) contains any of Needles,
	// case-insensitively.
	AttrContains Technique = "attr_contains"
	// Text matches an element whose visible text equals Expr exactly and
	// climbs to its nearest role=button ancestor, itself included.
	Text Technique = "text"
)

func (t Technique) Valid() bool {
	switch t {
	case Structural, XPath, AttrContains, Text:
		return true
	}
	return false
}

type Language string

const (
	AnyLanguage Language = ""
	Spanish     Language = "es"
	English     Language = "en"
)

// Candidate is one concrete strategy for finding an element.
type Candidate struct {
	Technique Technique `yaml:"technique" json:"technique"`
	Expr      string    `yaml:"expr" json:"expr"`
	Attr      string    `yaml:"attr,omitempty" json:"attr,omitempty"`
	Needles   []string  `yaml:"needles,omitempty" json:"needles,omitempty"`
	Lang      Language  `yaml:"lang,omitempty" json:"lang,omitempty"`
	Name      string    `yaml:"name,omitempty" json:"name,omitempty"`
}

func (c Candidate) String() string {
	if c.Name != "" {
		return c.Name
	}
	if c.Technique == AttrContains {
		return fmt.Sprintf("%s(%s @%s ~ %s)", c.Technique, c.Expr, c.Attr, strings.Join(c.Needles, "|"))
	}
	return fmt.Sprintf("%s(%s)", c.Technique, c.Expr)
}

func (c Candidate) Validate() error {
	if !c.Technique.Valid() {
		return fmt.Errorf("unknown technique %q", c.Technique)
	}
	if c.Expr == "" {
		return fmt.Errorf("%s candidate has empty expression", c.Technique)
	}
	if c.Technique == AttrContains && len(c.Needles) == 0 {
		return fmt.Errorf("attr_contains candidate %q has no needles", c.Expr)
	}
	return nil
}

func CSS(expr string) Candidate {
	return Candidate{Technique: Structural, Expr: expr}
}

func X(expr string) Candidate {
	return Candidate{Technique: XPath, Expr: expr}
}

func ButtonText(text string, lang Language) Candidate {
	return Candidate{Technique: Text, Expr: text, Lang: lang}
}

func Contains(base, attr string, needles ...string) Candidate {
	return Candidate{Technique: AttrContains, Expr: base, Attr: attr, Needles: needles}
}

type key struct {
	intent  Intent
	variant Variant
}

// Catalog maps (Intent, Variant) to an ordered candidate list, most precise
// first. A Catalog is never mutated after construction; With and Prepend
// return modified copies.
type Catalog struct {
	entries map[key][]Candidate
}

func NewCatalog() *Catalog {
	return &Catalog{entries: make(map[key][]Candidate)}
}

// Lookup returns a copy of the ordered candidates for the pair, or an empty
// slice when the pair is undefined.
func (c *Catalog) Lookup(intent Intent, variant Variant) []Candidate {
	list := c.entries[key{intent, variant}]
	out := make([]Candidate, len(list))
	copy(out, list)
	return out
}

// With returns a copy of the catalog whose entry for the pair is replaced.
func (c *Catalog) With(intent Intent, variant Variant, candidates ...Candidate) *Catalog {
	next := c.clone()
	next.entries[key{intent, variant}] = append([]Candidate(nil), candidates...)
	return next
}

// Prepend returns a copy with candidates placed ahead of the existing entry.
func (c *Catalog) Prepend(intent Intent, variant Variant, candidates ...Candidate) *Catalog {
	next := c.clone()
	k := key{intent, variant}
	merged := make([]Candidate, 0, len(candidates)+len(next.entries[k]))
	merged = append(merged, candidates...)
	merged = append(merged, next.entries[k]...)
	next.entries[k] = merged
	return next
}

func (c *Catalog) clone() *Catalog {
	next := NewCatalog()
	for k, v := range c.entries {
		next.entries[k] = append([]Candidate(nil), v...)
	}
	return next
}
