package fakebrowser

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/xkilldash9x/lancet/internal/browser"
)

var roleSelectors = map[string]string{
	"button":   "button, input[type=button], input[type=submit], input[type=reset], input[type=image], summary, [role=button]",
	"link":     "a[href], area[href], [role=link]",
	"checkbox": "input[type=checkbox], [role=checkbox]",
	"radio":    "input[type=radio], [role=radio]",
	"textbox":  "input:not([type]), input[type=text], input[type=email], input[type=password], input[type=search], textarea, [role=textbox]",
	"heading":  "h1, h2, h3, h4, h5, h6, [role=heading]",
	"img":      "img[alt], [role=img]",
	"listitem": "li, [role=listitem]",
	"combobox": "select, [role=combobox]",
}

var skipText = map[string]bool{
	"script": true, "style": true, "head": true, "title": true, "noscript": true, "html": true, "body": true,
}

func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func matchText(text, want string, exact bool) bool {
	if exact {
		return text == normalize(want)
	}
	return strings.Contains(strings.ToLower(text), strings.ToLower(normalize(want)))
}

func accessibleName(sel *goquery.Selection) string {
	if label, ok := sel.Attr("aria-label"); ok && label != "" {
		return normalize(label)
	}
	switch goquery.NodeName(sel) {
	case "input":
		typ := strings.ToLower(sel.AttrOr("type", ""))
		switch typ {
		case "button", "submit", "reset":
			return normalize(sel.AttrOr("value", ""))
		case "image":
			return normalize(sel.AttrOr("alt", ""))
		}
		return normalize(sel.AttrOr("title", sel.AttrOr("placeholder", "")))
	case "img":
		return normalize(sel.AttrOr("alt", ""))
	}
	if name := normalize(sel.Text()); name != "" {
		return name
	}
	return normalize(sel.AttrOr("title", ""))
}

// resolve evaluates q against doc with the same rules as the JavaScript resolver.
func resolve(doc *goquery.Document, q browser.Query) (*goquery.Selection, error) {
	scope := doc.Selection
	for _, step := range q {
		var found *goquery.Selection
		switch step.Kind {
		case browser.StepCSS:
			found = scope.Find(step.Selector)
		case browser.StepRole:
			css, ok := roleSelectors[step.Role]
			if !ok {
				css = fmt.Sprintf(`[role=%q]`, step.Role)
			}
			found = scope.Find(css).FilterFunction(func(_ int, s *goquery.Selection) bool {
				return step.Name == "" || matchText(accessibleName(s), step.Name, step.Exact)
			})
		case browser.StepText:
			all := scope.Find("*").FilterFunction(func(_ int, s *goquery.Selection) bool {
				return !skipText[goquery.NodeName(s)] && matchText(normalize(s.Text()), step.Name, step.Exact)
			})
			// Innermost matches only.
			found = all.FilterFunction(func(_ int, s *goquery.Selection) bool {
				return s.Find("*").FilterFunction(func(_ int, d *goquery.Selection) bool {
					return all.IsSelection(d)
				}).Length() == 0
			})
		default:
			return nil, fmt.Errorf("unknown step kind %q", step.Kind)
		}

		if step.Nth != nil {
			i := *step.Nth
			if i < 0 {
				i += found.Length()
			}
			if i < 0 || i >= found.Length() {
				found = found.Slice(0, 0)
			} else {
				found = found.Eq(i)
			}
		}
		scope = found
	}
	return scope, nil
}

func hasHiddenStyle(sel *goquery.Selection) bool {
	style := strings.ReplaceAll(strings.ToLower(sel.AttrOr("style", "")), " ", "")
	return strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden")
}

func isVisible(sel *goquery.Selection) bool {
	if goquery.NodeName(sel) == "input" && strings.EqualFold(sel.AttrOr("type", ""), "hidden") {
		return false
	}
	for cur := sel; cur.Length() > 0; cur = cur.Parent() {
		name := goquery.NodeName(cur)
		if name == "head" || name == "script" || name == "style" {
			return false
		}
		if _, hidden := cur.Attr("hidden"); hidden || hasHiddenStyle(cur) {
			return false
		}
	}
	return true
}

func isEnabled(sel *goquery.Selection) bool {
	if _, disabled := sel.Attr("disabled"); disabled {
		return false
	}
	return sel.AttrOr("aria-disabled", "") != "true"
}

func isChecked(sel *goquery.Selection) bool {
	if goquery.NodeName(sel) == "input" {
		_, checked := sel.Attr("checked")
		return checked
	}
	return sel.AttrOr("aria-checked", "") == "true"
}

func textOf(sel *goquery.Selection) string {
	switch goquery.NodeName(sel) {
	case "input", "textarea":
		return sel.AttrOr("value", "")
	}
	return normalize(sel.Text())
}

func inspect(doc *goquery.Document, q browser.Query) (browser.ElementState, error) {
	matches, err := resolve(doc, q)
	if err != nil {
		return browser.ElementState{}, err
	}
	if matches.Length() == 0 {
		return browser.ElementState{}, nil
	}
	first := matches.First()
	return browser.ElementState{
		Count:    matches.Length(),
		Attached: true,
		Visible:  isVisible(first),
		Enabled:  isEnabled(first),
		Checked:  isChecked(first),
		Text:     textOf(first),
	}, nil
}
