package locator

// Entry point and home shapes for the Facebook platform.
const (
	FacebookEntryURL = "https://www.facebook.com/"
	FacebookHomeURL  = "https://www.facebook.com/home.php"
)

var (
	consent = []Candidate{
		CSS("button[data-cookiebanner='accept_button']"),
		CSS("[data-testid='cookie-policy-manage-dialog-accept-button']"),
		X("//button[contains(text(), 'Aceptar') or contains(text(), 'Accept') or contains(text(), 'Permitir')]"),
		Contains("div[role='button'], button", "", "permitir todas las cookies", "allow all cookies"),
	}

	verification = []Candidate{
		CSS("#approvals_code"),
		CSS("input[name='approvals_code']"),
		X("//form[contains(@action, 'checkpoint')]//input[@type='text' or @type='tel']"),
	}
)

// Facebook returns the built-in catalog.
func Facebook() *Catalog {
	c := NewCatalog()
	set := func(intent Intent, variant Variant, candidates ...Candidate) {
		c.entries[key{intent, variant}] = candidates
	}

	// Login

	set(LoginEmail, Desktop,
		CSS("#email"),
		CSS("input[name='email']"),
		X("//input[@type='email' or @autocomplete='username']"),
	)
	set(LoginEmail, Mobile,
		CSS("#m_login_email"),
		CSS("input[name='email']"),
		X("//input[@type='email' or @autocomplete='username']"),
	)

	set(LoginPassword, Desktop,
		CSS("#pass"),
		CSS("input[name='pass']"),
		CSS("input[type='password']"),
	)
	set(LoginPassword, Mobile,
		CSS("#m_login_password"),
		CSS("input[name='pass']"),
		CSS("input[type='password']"),
	)

	set(LoginSubmit, Desktop,
		CSS("button[name='login']"),
		CSS("button[data-testid='royal_login_button']"),
		ButtonText("Iniciar sesión", Spanish),
		ButtonText("Log in", English),
		CSS("form button[type='submit']"),
	)
	set(LoginSubmit, Mobile,
		CSS("button[name='login']"),
		CSS("input[name='login']"),
		ButtonText("Iniciar sesión", Spanish),
		ButtonText("Log in", English),
		CSS("form button[type='submit']"),
	)

	set(ConsentAccept, Desktop, consent...)
	set(ConsentAccept, Mobile, consent...)

	set(LoginError, Desktop,
		CSS(".login_error_box"),
		CSS("#error_box"),
		CSS("div[data-testid='royal_login_error']"),
	)
	set(LoginError, Mobile,
		CSS("#login_error"),
		CSS("div[data-sigil='m_login_notice']"),
		CSS(".login_error_box"),
	)

	set(VerificationField, Desktop, verification...)
	set(VerificationField, Mobile, verification...)

	// Post interactions

	set(LikeControl, Desktop,
		CSS("div[role='button'][aria-label='Me gusta']").lang(Spanish),
		CSS("div[role='button'][aria-label='Like']").lang(English),
		CSS("div[data-testid='UFI2ReactionLink']"),
		X("//span[text()='Me gusta']/ancestor::div[@role='button']").lang(Spanish),
		X("//span[text()='Like']/ancestor::div[@role='button']").lang(English),
		ButtonText("Me gusta", Spanish),
		ButtonText("Like", English),
		Contains("div[role='button']", "aria-label", "me gusta", "like"),
	)
	set(LikeControl, Mobile,
		CSS("a[data-sigil*='ufi-inline-like']"),
		CSS("div[role='button'][aria-label='Me gusta']").lang(Spanish),
		CSS("div[role='button'][aria-label='Like']").lang(English),
		ButtonText("Me gusta", Spanish),
		ButtonText("Like", English),
		Contains("a[role='button'], div[role='button']", "aria-label", "me gusta", "like"),
	)

	set(CommentInput, Desktop,
		X("//div[@contenteditable='true'][@role='textbox'][contains(@aria-label, 'oment')]"),
		CSS("div[contenteditable='true'][aria-label^='Escribe un comentario']").lang(Spanish),
		CSS("div[contenteditable='true'][aria-label^='Write a comment']").lang(English),
		CSS("form div[contenteditable='true']"),
		Contains("div[contenteditable='true']", "aria-label", "coment", "comment"),
	)
	set(CommentInput, Mobile,
		CSS("textarea#composerInput"),
		CSS("textarea[name='comment_text']"),
		Contains("textarea", "placeholder", "coment", "comment"),
		CSS("form div[contenteditable='true']"),
	)

	set(CommentSubmit, Desktop,
		CSS("#focused-state-composer-submit"),
		CSS("div[role='button'][aria-label='Comentar']").lang(Spanish),
		CSS("div[role='button'][aria-label='Comment']").lang(English),
	)
	set(CommentSubmit, Mobile,
		CSS("button[name='submit']"),
		CSS("form button[type='submit']"),
		ButtonText("Publicar", Spanish),
		ButtonText("Post", English),
	)

	set(ShareControl, Desktop,
		CSS("div[role='button'][aria-label='Compartir']").lang(Spanish),
		CSS("div[role='button'][aria-label='Share']").lang(English),
		X("//span[text()='Compartir']/ancestor::div[@role='button']").lang(Spanish),
		X("//span[text()='Share']/ancestor::div[@role='button']").lang(English),
		ButtonText("Compartir", Spanish),
		ButtonText("Share", English),
		Contains("div[role='button']", "aria-label", "ompart", "hare"),
	)
	set(ShareControl, Mobile,
		CSS("a[data-sigil*='share-popup']"),
		ButtonText("Compartir", Spanish),
		ButtonText("Share", English),
		Contains("a[role='button'], div[role='button']", "", "compartir", "share"),
	)

	set(ShareConfirm, Desktop,
		ButtonText("Compartir ahora", Spanish),
		ButtonText("Share now", English),
		X("//div[@role='menuitem'][.//span[contains(., 'Compartir ahora') or contains(., 'Share now')]]"),
		Contains("div[role='menuitem'], div[role='button']", "", "compartir ahora", "share now"),
	)
	set(ShareConfirm, Mobile,
		CSS("a[data-sigil*='share-one-click-button']"),
		ButtonText("Compartir ahora", Spanish),
		ButtonText("Share now", English),
		Contains("a, div[role='button']", "", "compartir ahora", "share now"),
	)

	set(PostBoundary, Desktop,
		CSS("div[role='article']"),
		CSS("div[data-pagelet^='FeedUnit']"),
		CSS("div[role='main']"),
	)
	set(PostBoundary, Mobile,
		CSS("article"),
		CSS("div[data-sigil*='story-div']"),
		CSS("div[data-ft]"),
	)

	return c
}

func (c Candidate) lang(l Language) Candidate {
	c.Lang = l
	return c
}
