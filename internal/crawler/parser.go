package crawler

import (
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
)

// Parser extracts followable links from HTML content.
type Parser struct {
	// baseURL is the URL of the page being parsed, used for resolving relative URLs.
	baseURL *url.URL
}

// ParseResult contains the links extracted from an HTML page.
// Every URL is absolute.
type ParseResult struct {
	// Title is the page title from <title> tag.
	Title string

	// Anchors contains all <a href> targets.
	Anchors []string

	// Scripts contains <script src> targets.
	Scripts []string

	// Stylesheets contains <link rel="stylesheet" href> targets.
	Stylesheets []string
}

// NewParser creates a new HTML parser with the given base URL.
// The base URL is used to resolve relative links.
func NewParser(baseURL string) (*Parser, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	return &Parser{baseURL: u}, nil
}

// Parse parses HTML content and extracts its links.
func (p *Parser) Parse(content io.Reader) (*ParseResult, error) {
	doc, err := html.Parse(content)
	if err != nil {
		return nil, err
	}

	result := &ParseResult{
		Anchors:     make([]string, 0),
		Scripts:     make([]string, 0),
		Stylesheets: make([]string, 0),
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			p.processElement(n, result)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return result, nil
}

// processElement handles HTML element nodes.
func (p *Parser) processElement(n *html.Node, result *ParseResult) {
	switch n.Data {
	case "title":
		if n.FirstChild != nil && n.FirstChild.Type == html.TextNode {
			result.Title = strings.TrimSpace(n.FirstChild.Data)
		}

	case "a":
		if resolved := p.resolveURL(getAttr(n, "href")); resolved != "" {
			result.Anchors = append(result.Anchors, resolved)
		}

	case "script":
		if resolved := p.resolveURL(getAttr(n, "src")); resolved != "" {
			result.Scripts = append(result.Scripts, resolved)
		}

	case "link":
		if !hasToken(getAttr(n, "rel"), "stylesheet") {
			return
		}
		if resolved := p.resolveURL(getAttr(n, "href")); resolved != "" {
			result.Stylesheets = append(result.Stylesheets, resolved)
		}
	}
}

// hasToken reports whether the space-separated attribute value contains token.
func hasToken(value, token string) bool {
	for _, f := range strings.Fields(value) {
		if strings.EqualFold(f, token) {
			return true
		}
	}
	return false
}

// resolveURL resolves a relative URL against the base URL.
// Non-navigable references (javascript:, mailto:, data:, bare fragments) resolve to "".
func (p *Parser) resolveURL(href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}

	lower := strings.ToLower(href)
	for _, scheme := range []string{"javascript:", "mailto:", "tel:", "data:"} {
		if strings.HasPrefix(lower, scheme) {
			return ""
		}
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}

	resolved := p.baseURL.ResolveReference(u)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	return resolved.String()
}

// SameHost filters links to those on the parser's host.
func (p *Parser) SameHost(links []string) []string {
	out := make([]string, 0, len(links))
	for _, link := range links {
		u, err := url.Parse(link)
		if err != nil {
			continue
		}
		if strings.EqualFold(u.Host, p.baseURL.Host) {
			out = append(out, link)
		}
	}
	return out
}

// getAttr retrieves an attribute value from an HTML node.
func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}
