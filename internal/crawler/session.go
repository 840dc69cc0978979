package crawler

import (
	"context"
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/nao1215/xssweep/internal/browser"
	"github.com/nao1215/xssweep/internal/model"
)

// maxLoginAttempts bounds how often one login form is retried after the
// session crawl ran into a logout.
const maxLoginAttempts = 10

// importSession seeds the main browser with the configured cookies and
// starts the shadow browser.
func (s *Spider) importSession(ctx context.Context, st *CrawlState, startURL string) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	// Cookies without a domain bind to the current page, so land on the
	// target first.
	if err := st.main.Navigate(ctx, startURL); err != nil {
		s.logger.Warn("failed to open start page before cookie import", "url", startURL, "error", err)
	}
	if err := st.main.SetCookies(ctx, s.cookies); err != nil {
		return fmt.Errorf("failed to import cookies: %w", err)
	}

	st.login = &loginContext{
		loginURL:   startURL,
		cookies:    append([]model.Cookie(nil), s.cookies...),
		viaCookies: true,
	}
	st.loginDetected = true
	s.logger.Info("session imported from cookies", "cookies", len(s.cookies))

	return s.startShadow(ctx, st)
}

// startShadow launches the anonymous comparison browser once.
func (s *Spider) startShadow(ctx context.Context, st *CrawlState) error {
	if st.shadow != nil {
		return nil
	}
	shadow, err := browser.LaunchWithRetry(ctx, s.launcher, s.logger)
	if err != nil {
		return fmt.Errorf("failed to launch shadow browser: %w", err)
	}
	st.shadow = shadow
	return nil
}

// classify loads page anonymously in the shadow browser. When the anonymous
// result differs from what the logged-in browser saw, page becomes a session
// page.
func (s *Spider) classify(ctx context.Context, st *CrawlState, page *model.Page, parent string) {
	anonymous, _, err := s.fetch(ctx, st.shadow, page.URL, parent)

	switch {
	case err != nil:
		s.logger.Debug("page not reachable anonymously", "url", page.URL, "error", err)
	case model.NormalizeURL(anonymous.URL) != model.NormalizeURL(page.URL):
		s.logger.Debug("anonymous visit redirected", "url", page.URL, "to", anonymous.URL)
	case anonymous.FormlessHash != page.FormlessHash:
	default:
		return
	}

	page.Kind = model.PageKindSession
	page.Session = &model.SessionEvidence{
		LoginURL:        st.login.loginURL,
		Cookies:         append([]model.Cookie(nil), page.Cookies...),
		ViaCookieImport: st.login.viaCookies,
	}
	if anonymous != nil {
		page.Session.Divergence = divergence(anonymous.Content, page.Content)
	}
}

// divergence measures how far two documents differ outside their forms.
func divergence(a, b string) int {
	dmp := diffmatchpatch.New()
	return dmp.DiffLevenshtein(dmp.DiffMain(model.StripForms(a), model.StripForms(b), false))
}

// sessionAlive reloads every session page and reports whether most of them
// still look the way they did when logged in.
func (s *Spider) sessionAlive(ctx context.Context, st *CrawlState) bool {
	var same, diff int
	for _, p := range st.sessionPages() {
		current, _, err := s.fetch(ctx, st.main, p.URL, p.Parent)
		if err != nil {
			diff++
			continue
		}
		if current.FormlessHash == p.FormlessHash && hasCookies(current.Cookies, p.Session.Cookies) {
			same++
		} else {
			diff++
		}
	}
	s.logger.Debug("session check", "same", same, "different", diff)
	return same >= diff
}

// hasCookies reports whether every cookie name of want is present in got.
func hasCookies(got, want []model.Cookie) bool {
	names := make(map[string]bool, len(got))
	for _, c := range got {
		names[c.Name] = true
	}
	for _, c := range want {
		if !names[c.Name] {
			return false
		}
	}
	return true
}

// handleLogout records rawURL as a logout URL. A credentialed session is
// gone at this point, so its session pages are dropped.
func (s *Spider) handleLogout(st *CrawlState, rawURL string) {
	st.logoutURLs[model.NormalizeURL(rawURL)] = true
	st.loggedOut = true

	if st.login != nil && st.login.viaCookies {
		s.logger.Warn("imported session ended", "url", rawURL)
		return
	}
	dropped := st.discardSessionPages()
	s.logger.Info("logout detected", "url", rawURL, "discarded_session_pages", dropped)
}

// discoverSessionPages logs in through every login form found so far and
// crawls the resulting session.
func (s *Spider) discoverSessionPages(ctx context.Context, st *CrawlState, creds *Credentials) error {
	candidates := make([]*model.Page, 0)
	for _, p := range st.pages {
		if !p.IsSession() && p.IsHTML() {
			candidates = append(candidates, p)
		}
	}

	for _, page := range candidates {
		forms, err := model.ParseForms(page.Content)
		if err != nil {
			s.logger.Debug("failed to parse forms", "url", page.URL, "error", err)
			continue
		}
		for _, form := range forms {
			if !form.IsLoginForm() {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}

			done, err := s.loginAndCrawl(ctx, st, page, form, creds)
			if err != nil {
				return err
			}
			if done {
				return nil
			}
		}
	}

	if !st.loginDetected {
		s.logger.Info("no working login form found")
	}
	return nil
}

// loginAndCrawl submits form and crawls the session it opens. It retries
// after every logout that taught it a new logout URL. done is true when a
// session crawl finished without logging out.
func (s *Spider) loginAndCrawl(ctx context.Context, st *CrawlState, page *model.Page, form model.Form, creds *Credentials) (bool, error) {
	for attempt := 1; attempt <= maxLoginAttempts; attempt++ {
		snap := st.snapshot()
		logoutsBefore := len(st.logoutURLs)

		result, err := s.login(ctx, st, page, form, creds)
		if err != nil {
			s.logger.Debug("login failed", "url", page.URL, "form", form.Index, "error", err)
			return false, nil
		}
		if st.isKnown(result) {
			s.logger.Debug("login had no visible effect", "url", page.URL, "form", form.Index)
			return false, nil
		}

		if err := s.startShadow(ctx, st); err != nil {
			return false, err
		}
		st.loggedOut = false
		st.login = &loginContext{loginURL: page.URL, cookies: result.Cookies}
		st.loginDetected = true
		s.logger.Info("logged in", "url", page.URL, "landed", result.URL, "attempt", attempt)

		st.checked = make(map[string]bool)
		s.crawl(ctx, st, result.URL, page.URL)

		if !st.loggedOut {
			return true, nil
		}

		st.rollback(snap)
		if len(st.logoutURLs) == logoutsBefore {
			s.logger.Warn("session lost without a new logout URL, giving up on form",
				"url", page.URL, "form", form.Index)
			return false, nil
		}
	}
	s.logger.Warn("too many logouts, giving up on form", "url", page.URL, "form", form.Index)
	return false, nil
}

// login fills the password inputs with the password and the first text
// input with the username, then submits.
func (s *Spider) login(ctx context.Context, st *CrawlState, page *model.Page, form model.Form, creds *Credentials) (*model.Page, error) {
	values := make(map[string]string)
	for _, in := range form.PasswordInputs() {
		values[in.Key()] = creds.Password
	}
	for _, in := range form.TextInputs() {
		if in.Type == "textarea" || strings.EqualFold(in.Type, "search") {
			continue
		}
		values[in.Key()] = creds.Username
		break
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	s.count(func(stats *SpiderStats) { stats.Navigations++ })
	if err := st.main.Navigate(ctx, page.URL); err != nil {
		return nil, err
	}
	if err := st.main.SubmitForm(ctx, form.Index, values); err != nil {
		return nil, err
	}
	_ = st.main.DismissAlerts(ctx)

	state, err := st.main.State(ctx)
	if err != nil {
		return nil, err
	}
	if !state.Loaded() {
		return nil, fmt.Errorf("%w: login landed on status %d", ErrUnreachable, state.StatusCode)
	}
	return state.Page(page.URL), nil
}
