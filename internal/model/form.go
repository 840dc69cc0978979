package model

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Form represents an HTML form found on a page.
// Forms are derived from page content on demand and never stored.
type Form struct {
	// Index is the position of the form among the page's forms.
	// The browser session uses it to find the form again after navigation.
	Index int `json:"index"`

	ID     string      `json:"id,omitempty"`
	Name   string      `json:"name,omitempty"`
	Action string      `json:"action"`
	Method string      `json:"method"`
	Inputs []FormInput `json:"inputs"`
}

// FormInput represents an input field in a form.
type FormInput struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	ID    string `json:"id,omitempty"`
	Class string `json:"class,omitempty"`
	Value string `json:"value,omitempty"`
}

// Key returns the value the browser session uses to address the input:
// its name, falling back to its id.
func (in FormInput) Key() string {
	if in.Name != "" {
		return in.Name
	}
	return in.ID
}

// IsText reports whether the input accepts free text.
func (in FormInput) IsText() bool {
	switch in.Type {
	case "", "text", "search", "url", "email", "tel", "textarea":
		return true
	default:
		return false
	}
}

// IsPassword reports whether the input is a password field.
func (in FormInput) IsPassword() bool {
	return in.Type == "password"
}

// TextInputs returns the addressable free-text inputs of the form.
func (f Form) TextInputs() []FormInput {
	var inputs []FormInput
	for _, in := range f.Inputs {
		if in.IsText() && in.Key() != "" {
			inputs = append(inputs, in)
		}
	}
	return inputs
}

// PasswordInputs returns the addressable password inputs of the form.
func (f Form) PasswordInputs() []FormInput {
	var inputs []FormInput
	for _, in := range f.Inputs {
		if in.IsPassword() && in.Key() != "" {
			inputs = append(inputs, in)
		}
	}
	return inputs
}

// IsLoginForm reports whether the form has a password input.
func (f Form) IsLoginForm() bool {
	return len(f.PasswordInputs()) > 0
}

// ParseForms extracts the forms of an HTML document.
func ParseForms(content string) ([]Form, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse forms: %w", err)
	}

	forms := make([]Form, 0)
	doc.Find("form").Each(func(i int, s *goquery.Selection) {
		form := Form{
			Index:  i,
			ID:     s.AttrOr("id", ""),
			Name:   s.AttrOr("name", ""),
			Action: s.AttrOr("action", ""),
			Method: strings.ToUpper(s.AttrOr("method", "GET")),
		}

		s.Find("input, textarea").Each(func(_ int, in *goquery.Selection) {
			typ := strings.ToLower(in.AttrOr("type", ""))
			if goquery.NodeName(in) == "textarea" {
				typ = "textarea"
			}
			form.Inputs = append(form.Inputs, FormInput{
				Name:  in.AttrOr("name", ""),
				Type:  typ,
				ID:    in.AttrOr("id", ""),
				Class: in.AttrOr("class", ""),
				Value: in.AttrOr("value", ""),
			})
		})

		forms = append(forms, form)
	})

	return forms, nil
}
