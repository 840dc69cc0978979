package crawler

import (
	"maps"

	"github.com/nao1215/xssweep/internal/browser"
	"github.com/nao1215/xssweep/internal/model"
)

// loginContext describes the session the main browser currently holds.
type loginContext struct {
	loginURL   string
	cookies    []model.Cookie
	viaCookies bool
}

// CrawlState is the bookkeeping of one Discover call.
// A URL is never both a page and troublesome.
type CrawlState struct {
	main   browser.Session
	shadow browser.Session

	maxPages  int
	recursive bool

	pages       []*model.Page
	printed     map[string]bool
	checked     map[string]bool
	troublesome map[string]bool
	troubleList []string
	logoutURLs  map[string]bool

	loginDetected bool
	loggedOut     bool
	login         *loginContext
}

func newCrawlState(main browser.Session, opts DiscoverOptions) *CrawlState {
	return &CrawlState{
		main:        main,
		maxPages:    opts.MaxPages,
		recursive:   opts.Recursive,
		pages:       make([]*model.Page, 0),
		printed:     make(map[string]bool),
		checked:     make(map[string]bool),
		troublesome: make(map[string]bool),
		logoutURLs:  make(map[string]bool),
	}
}

// limitReached reports whether the page budget is used up.
func (st *CrawlState) limitReached() bool {
	return st.maxPages > 0 && len(st.pages) >= st.maxPages
}

// sessionEnded reports whether a credentialed session died. Crawling under a
// dead credentialed session only produces pages that are rolled back later.
func (st *CrawlState) sessionEnded() bool {
	return st.loggedOut && st.login != nil && !st.login.viaCookies
}

// shouldStop reports whether recursion must stop.
func (st *CrawlState) shouldStop() bool {
	return st.limitReached() || st.sessionEnded()
}

func (st *CrawlState) isChecked(rawURL string) bool {
	return st.checked[model.NormalizeURL(rawURL)]
}

func (st *CrawlState) markChecked(rawURL string) {
	st.checked[model.NormalizeURL(rawURL)] = true
}

func (st *CrawlState) isTroublesome(rawURL string) bool {
	return st.troublesome[model.NormalizeURL(rawURL)]
}

func (st *CrawlState) isLogoutURL(rawURL string) bool {
	return st.logoutURLs[model.NormalizeURL(rawURL)]
}

// hasPage reports whether a page with the URL of rawURL exists.
func (st *CrawlState) hasPage(rawURL string) bool {
	key := model.NormalizeURL(rawURL)
	for _, p := range st.pages {
		if model.NormalizeURL(p.URL) == key {
			return true
		}
	}
	return false
}

// markTroublesome records rawURL as unusable unless it is already a page.
func (st *CrawlState) markTroublesome(rawURL string) {
	key := model.NormalizeURL(rawURL)
	if st.troublesome[key] || st.hasPage(rawURL) {
		return
	}
	st.troublesome[key] = true
	st.troubleList = append(st.troubleList, rawURL)
}

// addPage appends page and clears any troublesome record for its URL.
func (st *CrawlState) addPage(page *model.Page) {
	st.pages = append(st.pages, page)

	key := model.NormalizeURL(page.URL)
	if !st.troublesome[key] {
		return
	}
	delete(st.troublesome, key)
	kept := st.troubleList[:0]
	for _, u := range st.troubleList {
		if model.NormalizeURL(u) != key {
			kept = append(kept, u)
		}
	}
	st.troubleList = kept
}

// isDuplicate reports whether an equivalent page of the same kind exists:
// same normalized URL or same content.
func (st *CrawlState) isDuplicate(page *model.Page) bool {
	key := model.NormalizeURL(page.URL)
	for _, p := range st.pages {
		if p.Kind != page.Kind {
			continue
		}
		if model.NormalizeURL(p.URL) == key || (page.Hash != "" && p.Hash == page.Hash) {
			return true
		}
	}
	return false
}

// findByContent returns a page with the same form-stripped content.
func (st *CrawlState) findByContent(page *model.Page) *model.Page {
	if page.FormlessHash == "" {
		return nil
	}
	for _, p := range st.pages {
		if p.FormlessHash == page.FormlessHash {
			return p
		}
	}
	return nil
}

// isKnown reports whether some page has both the URL and the form-stripped
// content of page.
func (st *CrawlState) isKnown(page *model.Page) bool {
	key := model.NormalizeURL(page.URL)
	for _, p := range st.pages {
		if model.NormalizeURL(p.URL) == key && p.FormlessHash == page.FormlessHash {
			return true
		}
	}
	return false
}

func (st *CrawlState) sessionPages() []*model.Page {
	var out []*model.Page
	for _, p := range st.pages {
		if p.IsSession() {
			out = append(out, p)
		}
	}
	return out
}

// discardSessionPages drops every session page.
func (st *CrawlState) discardSessionPages() int {
	kept := make([]*model.Page, 0, len(st.pages))
	for _, p := range st.pages {
		if !p.IsSession() {
			kept = append(kept, p)
		}
	}
	dropped := len(st.pages) - len(kept)
	st.pages = kept
	return dropped
}

// snapshot captures the page and checked sets before a session crawl.
type snapshot struct {
	pages   []*model.Page
	checked map[string]bool
}

func (st *CrawlState) snapshot() snapshot {
	return snapshot{
		pages:   append([]*model.Page(nil), st.pages...),
		checked: maps.Clone(st.checked),
	}
}

// rollback restores snap. Non-HTML pages found after the snapshot are kept
// because scripts and stylesheets do not depend on the session.
func (st *CrawlState) rollback(snap snapshot) {
	inSnapshot := make(map[*model.Page]bool, len(snap.pages))
	for _, p := range snap.pages {
		inSnapshot[p] = true
	}

	pages := append([]*model.Page(nil), snap.pages...)
	for _, p := range st.pages {
		if !inSnapshot[p] && !p.IsHTML() {
			pages = append(pages, p)
		}
	}
	st.pages = pages
	st.checked = maps.Clone(snap.checked)
}
