// Package fakebrowser is an in-memory browser.Browser backed by goquery
// documents. Sites are described as static pages plus event handlers that
// mutate the DOM, which is enough to exercise the harness without Chrome.
package fakebrowser

import (
	"sync"

	"github.com/PuerkitoBio/goquery"
)

// EventType names a DOM interaction handlers can subscribe to.
type EventType string

const (
	EventClick EventType = "click"
	EventHover EventType = "hover"
	EventDrop  EventType = "drop"
	EventLoad  EventType = "load"
)

// Event is passed to handlers. Handlers run with the page lock held and may
// freely mutate Doc.
type Event struct {
	Type   EventType
	Page   *Page
	Doc    *goquery.Document
	Target *goquery.Selection
	// Source is the dragged element for EventDrop.
	Source *goquery.Selection

	prevented bool
}

// PreventDefault suppresses the built-in behavior (link navigation, checkbox toggle).
func (e *Event) PreventDefault() { e.prevented = true }

// Handler reacts to an event.
type Handler func(ev *Event) error

type binding struct {
	event    EventType
	selector string
	handler  Handler
}

// Site is the content served to fake pages.
type Site struct {
	mu       sync.RWMutex
	pages    map[string]string
	bindings []binding
}

// NewSite returns an empty site.
func NewSite() *Site {
	return &Site{pages: make(map[string]string)}
}

// Page registers the HTML served at path.
func (s *Site) Page(path, html string) *Site {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[path] = html
	return s
}

// On binds h to events of type ev on elements matching selector. For
// EventLoad the selector is matched against the page path.
func (s *Site) On(ev EventType, selector string, h Handler) *Site {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bindings = append(s.bindings, binding{event: ev, selector: selector, handler: h})
	return s
}

func (s *Site) html(path string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.pages[path]
	return h, ok
}

func (s *Site) handlersFor(ev EventType) []binding {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []binding
	for _, b := range s.bindings {
		if b.event == ev {
			out = append(out, b)
		}
	}
	return out
}
