package taint

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// InputSource describes a page input a script may read.
type InputSource struct {
	ID    string
	Name  string
	Class string
	Type  string
}

// Validate reports ErrMalformedInputSource when the input cannot be addressed.
func (in InputSource) Validate() error {
	if in.ID == "" && in.Name == "" && strings.TrimSpace(in.Class) == "" {
		return fmt.Errorf("%w: %+v", ErrMalformedInputSource, in)
	}
	return nil
}

func (in InputSource) String() string {
	switch {
	case in.ID != "":
		return "#" + in.ID
	case in.Name != "":
		return "name=" + in.Name
	default:
		return "." + strings.Join(strings.Fields(in.Class), ".")
	}
}

// Inputs returns the addressable text inputs of doc: inputs of type text,
// url or search, and untyped inputs inside a form.
func Inputs(doc *goquery.Document) []InputSource {
	var out []InputSource
	doc.Find("input").Each(func(_ int, s *goquery.Selection) {
		typ, hasType := s.Attr("type")
		typ = strings.ToLower(strings.TrimSpace(typ))

		switch {
		case hasType && (typ == "text" || typ == "url" || typ == "search"):
		case !hasType && s.Closest("form").Length() > 0:
		default:
			return
		}

		in := InputSource{
			ID:    s.AttrOr("id", ""),
			Name:  s.AttrOr("name", ""),
			Class: s.AttrOr("class", ""),
			Type:  typ,
		}
		if in.Validate() == nil {
			out = append(out, in)
		}
	})
	return out
}

// Correlate returns the inputs script reads. Referencing FormData counts as
// reading every input.
func Correlate(script string, inputs []InputSource) ([]InputSource, error) {
	for _, in := range inputs {
		if err := in.Validate(); err != nil {
			return nil, err
		}
	}

	if strings.Contains(script, "FormData") {
		return append([]InputSource(nil), inputs...), nil
	}

	var read []InputSource
	for _, in := range inputs {
		if reads(script, in) {
			read = append(read, in)
		}
	}
	return read, nil
}

func reads(script string, in InputSource) bool {
	if in.ID != "" && lookup("getElementById", in.ID, `\s*\.\s*value`).MatchString(script) {
		return true
	}
	if in.Name != "" && lookup("getElementsByName", in.Name, "").MatchString(script) {
		return true
	}
	for _, class := range strings.Fields(in.Class) {
		if lookup("getElementsByClassName", class, "").MatchString(script) {
			return true
		}
	}
	return false
}

// lookup matches a DOM lookup call with a quoted literal argument.
func lookup(method, arg, suffix string) *regexp.Regexp {
	return regexp.MustCompile(regexp.QuoteMeta(method) + `\(\s*["'` + "`" + `]` +
		regexp.QuoteMeta(arg) + `["'` + "`" + `]\s*\)` + suffix)
}
