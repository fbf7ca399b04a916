package executor

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/facebook-automation/pkg/browser"
	"github.com/facebook-automation/pkg/browser/browsertest"
	"github.com/facebook-automation/pkg/config"
	"github.com/facebook-automation/pkg/diagnostics"
	"github.com/facebook-automation/pkg/locator"
	"github.com/facebook-automation/pkg/resolver"
	"github.com/facebook-automation/pkg/stealth"
)

const postURL = "https://www.facebook.com/groups/1/posts/pfbid02abc"

type fixture struct {
	driver   *browsertest.Driver
	executor *Executor
}

func newFixture(page *browsertest.Page, cat *locator.Catalog, maxAttempts int, capturer *diagnostics.Capturer) fixture {
	d := browsertest.New().AddPage(page)
	d.GoTo(page.URL)

	res := resolver.New(cat, time.Second, d, nil)
	exec := New(Options{
		Resolver:    res,
		Pages:       d,
		Typing:      stealth.NewTypingController(&config.TypingConfig{}, nil),
		Timing:      stealth.NewTimingController(&config.TimingConfig{}, nil),
		Capturer:    capturer,
		MaxAttempts: maxAttempts,
	})
	return fixture{driver: d, executor: exec}
}

func likeCatalog(exprs ...string) *locator.Catalog {
	var cands []locator.Candidate
	for _, e := range exprs {
		cands = append(cands, locator.CSS(e))
	}
	return locator.NewCatalog().With(locator.LikeControl, locator.Desktop, cands...)
}

func (f fixture) like() Result {
	return f.executor.Perform(context.Background(), Request{
		Intent:  locator.LikeControl,
		Variant: locator.Desktop,
		Scope:   f.driver.Document(),
		Action:  Click,
	})
}

func TestClickFirstTry(t *testing.T) {
	like := &browsertest.Element{Name: "like"}
	f := newFixture(&browsertest.Page{
		URL:      postURL,
		Elements: map[string][]*browsertest.Element{"#like": {like}},
	}, likeCatalog("#like"), 3, nil)

	result := f.like()

	assert.True(t, result.OK())
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, 1, like.Clicks)
	assert.Equal(t, []string{"scroll like", "dispatch like", "click like"}, f.driver.Calls())
}

func TestClickFallsBackToNativeClick(t *testing.T) {
	like := &browsertest.Element{Name: "like", DispatchErr: fmt.Errorf("script blocked")}
	f := newFixture(&browsertest.Page{
		URL:      postURL,
		Elements: map[string][]*browsertest.Element{"#like": {like}},
	}, likeCatalog("#like"), 3, nil)

	result := f.like()

	assert.True(t, result.OK())
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, []string{"native-click like"}, f.driver.CallsWithPrefix("native-click"))
}

func TestClickRetriesSameElementOnce(t *testing.T) {
	like := &browsertest.Element{Name: "like", FailDispatch: 1, ClickErr: fmt.Errorf("covered")}
	f := newFixture(&browsertest.Page{
		URL:      postURL,
		Elements: map[string][]*browsertest.Element{"#like": {like}},
	}, likeCatalog("#like"), 3, nil)

	result := f.like()

	assert.True(t, result.OK())
	assert.Equal(t, 2, result.Attempts)
	// the retry scrolls once extra before the click's own scroll
	assert.Len(t, f.driver.CallsWithPrefix("scroll like"), 3)
}

func TestClickReResolvesSkippingTriedCandidate(t *testing.T) {
	broken := &browsertest.Element{Name: "broken", DispatchErr: fmt.Errorf("nope"), ClickErr: fmt.Errorf("nope")}
	good := &browsertest.Element{Name: "good"}
	f := newFixture(&browsertest.Page{
		URL: postURL,
		Elements: map[string][]*browsertest.Element{
			"#broken": {broken},
			"#good":   {good},
		},
	}, likeCatalog("#broken", "#good"), 3, nil)

	result := f.like()

	require.True(t, result.OK())
	assert.Equal(t, 3, result.Attempts)
	assert.Equal(t, "css(#good)", result.Candidate)
	assert.Equal(t, 0, broken.Clicks)
	assert.Equal(t, 1, good.Clicks)
}

func TestClickExhaustsBudgetAndCaptures(t *testing.T) {
	broken := &browsertest.Element{Name: "broken", DispatchErr: fmt.Errorf("nope"), ClickErr: fmt.Errorf("%w: covered", browser.ErrNotInteractable)}
	dir := filepath.Join(t.TempDir(), "shots")

	page := &browsertest.Page{
		URL:      postURL,
		Elements: map[string][]*browsertest.Element{"#broken": {broken}},
	}
	d := browsertest.New()
	f := newFixture(page, likeCatalog("#broken"), 3, diagnostics.NewCapturer(dir, d, nil))
	// the capturer shoots through its own driver, which is fine for the file check
	result := f.like()

	assert.False(t, result.OK())
	assert.Equal(t, NotInteractable, result.Reason)
	assert.Equal(t, 2, result.Attempts, "no alternative candidate after the retry")
	assert.NotEmpty(t, result.Screenshot)
	assert.FileExists(t, result.Screenshot)
}

func TestPerformNotFound(t *testing.T) {
	f := newFixture(&browsertest.Page{URL: postURL}, likeCatalog("#a", "#b"), 3, nil)

	result := f.like()

	assert.Equal(t, Failure, result.Status)
	assert.Equal(t, NotFound, result.Reason)
	assert.Equal(t, 0, result.Attempts)
	var nf *resolver.NotFoundError
	assert.ErrorAs(t, result.Err, &nf)
}

func TestStaleResolutionIsNeverUsed(t *testing.T) {
	like := &browsertest.Element{Name: "like"}
	page := &browsertest.Page{
		URL:      postURL,
		Elements: map[string][]*browsertest.Element{"#like": {like}},
	}
	f := newFixture(page, likeCatalog("#like"), 3, nil)

	res, err := f.executor.resolver.Resolve(context.Background(), locator.LikeControl, locator.Desktop, f.driver.Document())
	require.NoError(t, err)

	// a navigation invalidates the handle
	f.driver.GoTo(postURL)
	staleEl := &browsertest.Element{Name: "stale"}
	res.Element = staleEl

	result := f.executor.Perform(context.Background(), Request{
		Intent:     locator.LikeControl,
		Variant:    locator.Desktop,
		Scope:      f.driver.Document(),
		Resolution: res,
		Action:     Click,
	})

	require.True(t, result.OK())
	assert.Equal(t, 2, result.Attempts)
	assert.Equal(t, 0, staleEl.Clicks)
	assert.Equal(t, 1, like.Clicks)
}

func TestStaleResolutionWithoutReplacement(t *testing.T) {
	f := newFixture(&browsertest.Page{URL: postURL}, likeCatalog("#like"), 3, nil)

	result := f.executor.Perform(context.Background(), Request{
		Intent:     locator.LikeControl,
		Variant:    locator.Desktop,
		Scope:      f.driver.Document(),
		Resolution: &resolver.Resolution{Element: &browsertest.Element{Name: "gone"}, PageID: 0},
		Action:     Click,
	})

	assert.False(t, result.OK())
	assert.Equal(t, StaleReference, result.Reason)
}

func commentFixture(t *testing.T, input *browsertest.Element, submit *browsertest.Element) fixture {
	elements := map[string][]*browsertest.Element{"#input": {input}}
	if submit != nil {
		elements["#submit"] = []*browsertest.Element{submit}
	}
	cat := locator.NewCatalog().
		With(locator.CommentInput, locator.Desktop, locator.CSS("#input")).
		With(locator.CommentSubmit, locator.Desktop, locator.CSS("#submit"))
	return newFixture(&browsertest.Page{URL: postURL, Elements: elements}, cat, 3, nil)
}

func TestTypeThenSubmitWithEnter(t *testing.T) {
	input := &browsertest.Element{Name: "input"}
	f := commentFixture(t, input, nil)
	ctx := context.Background()

	typed := f.executor.Perform(ctx, Request{
		Intent:  locator.CommentInput,
		Variant: locator.Desktop,
		Scope:   f.driver.Document(),
		Action:  Type,
		Payload: "Muy interesante contenido",
	})
	require.True(t, typed.OK())
	assert.Equal(t, "Muy interesante contenido", input.Typed())

	res, err := f.executor.resolver.Resolve(ctx, locator.CommentInput, locator.Desktop, f.driver.Document())
	require.NoError(t, err)

	submitted := f.executor.Perform(ctx, Request{
		Intent:     locator.CommentInput,
		Variant:    locator.Desktop,
		Scope:      f.driver.Document(),
		Resolution: res,
		Action:     Submit,
	})
	require.True(t, submitted.OK())
	assert.Equal(t, []string{"enter input"}, f.driver.CallsWithPrefix("enter"))
}

func TestSubmitPrefersSubmitControl(t *testing.T) {
	input := &browsertest.Element{Name: "input"}
	button := &browsertest.Element{Name: "submit"}
	f := commentFixture(t, input, button)
	ctx := context.Background()

	res, err := f.executor.resolver.Resolve(ctx, locator.CommentInput, locator.Desktop, f.driver.Document())
	require.NoError(t, err)

	result := f.executor.Perform(ctx, Request{
		Intent:     locator.CommentInput,
		Variant:    locator.Desktop,
		Scope:      f.driver.Document(),
		Resolution: res,
		Action:     Submit,
	})

	require.True(t, result.OK())
	assert.Equal(t, 1, button.Clicks)
	assert.Empty(t, f.driver.CallsWithPrefix("enter"))
}

func TestTypeFallsBackToSetText(t *testing.T) {
	input := &browsertest.Element{Name: "input", InputErr: fmt.Errorf("not editable")}
	f := commentFixture(t, input, nil)

	result := f.executor.Perform(context.Background(), Request{
		Intent:  locator.CommentInput,
		Variant: locator.Desktop,
		Scope:   f.driver.Document(),
		Action:  Type,
		Payload: "Gracias por compartir",
		Enter:   true,
	})

	require.True(t, result.OK())
	assert.Equal(t, "Gracias por compartir", input.Typed())
	assert.Equal(t, []string{"set-text input"}, f.driver.CallsWithPrefix("set-text"))
	assert.Equal(t, []string{"enter input"}, f.driver.CallsWithPrefix("enter"))
}

func TestAttemptBudgetProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		maxAttempts := rapid.IntRange(1, 6).Draw(rt, "maxAttempts")
		n := rapid.IntRange(1, 5).Draw(rt, "candidates")

		page := &browsertest.Page{URL: postURL, Elements: map[string][]*browsertest.Element{}}
		var exprs []string
		for i := 0; i < n; i++ {
			expr := fmt.Sprintf("#c%d", i)
			exprs = append(exprs, expr)
			page.Elements[expr] = []*browsertest.Element{{
				Name:        expr,
				DispatchErr: fmt.Errorf("nope"),
				ClickErr:    fmt.Errorf("nope"),
			}}
		}

		f := newFixture(page, likeCatalog(exprs...), maxAttempts, nil)
		result := f.like()

		require.Equal(rt, Failure, result.Status)
		require.LessOrEqual(rt, result.Attempts, maxAttempts)
		require.LessOrEqual(rt, len(f.driver.CallsWithPrefix("dispatch")), maxAttempts)
		require.Equal(rt, TechniqueFailed, result.Reason)
	})
}
