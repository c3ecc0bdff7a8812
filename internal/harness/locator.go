package harness

import (
	"context"

	"github.com/xkilldash9x/lancet/internal/browser"
)

// Locator is a lazy element query bound to a session. It is re-resolved on
// every use, so it survives re-renders and navigation.
type Locator struct {
	session *Session
	query   browser.Query
}

// Locate selects by CSS. An optional index picks the nth match; negative
// indexes count from the end.
func (s *Session) Locate(selector string, index ...int) *Locator {
	q := browser.CSS(selector)
	if len(index) > 0 {
		q = q.Nth(index[0])
	}
	return &Locator{session: s, query: q}
}

// GetByRole selects by ARIA role and accessible name (case insensitive
// substring). An empty name matches any element with the role.
func (s *Session) GetByRole(role, name string) *Locator {
	return &Locator{session: s, query: browser.Query{{Kind: browser.StepRole, Role: role, Name: name}}}
}

// GetByText selects the innermost elements whose text contains text.
func (s *Session) GetByText(text string) *Locator {
	return &Locator{session: s, query: browser.Query{{Kind: browser.StepText, Name: text}}}
}

// FromQuery binds an already built query to the session.
func (s *Session) FromQuery(q browser.Query) *Locator {
	return &Locator{session: s, query: append(browser.Query(nil), q...)}
}

// Locator scopes a CSS selector inside the first match of l.
func (l *Locator) Locator(selector string) *Locator {
	return l.derive(browser.Step{Kind: browser.StepCSS, Selector: selector})
}

// GetByRole scopes a role query inside the first match of l.
func (l *Locator) GetByRole(role, name string) *Locator {
	return l.derive(browser.Step{Kind: browser.StepRole, Role: role, Name: name})
}

// GetByText scopes a text query inside the first match of l.
func (l *Locator) GetByText(text string) *Locator {
	return l.derive(browser.Step{Kind: browser.StepText, Name: text})
}

// Nth picks a match of the last step.
func (l *Locator) Nth(i int) *Locator {
	return &Locator{session: l.session, query: l.query.Nth(i)}
}

func (l *Locator) First() *Locator { return l.Nth(0) }
func (l *Locator) Last() *Locator  { return l.Nth(-1) }

func (l *Locator) derive(step browser.Step) *Locator {
	return &Locator{session: l.session, query: l.query.With(step)}
}

func (l *Locator) Session() *Session    { return l.session }
func (l *Locator) Query() browser.Query { return l.query }
func (l *Locator) String() string       { return l.query.String() }

// State reads the current element state once, without waiting.
func (l *Locator) State(ctx context.Context) (browser.ElementState, error) {
	return l.session.page.Inspect(ctx, l.query)
}

// Count reports how many elements the query matches right now.
func (l *Locator) Count(ctx context.Context) (int, error) {
	st, err := l.State(ctx)
	return st.Count, err
}
