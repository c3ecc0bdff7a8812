package harness

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/lancet/internal/browser"
)

// State is the lifecycle position of a scenario's controller.
type State string

const (
	StateCreated   State = "created"
	StateNavigated State = "navigated"
	StateActing    State = "acting"
	StateAsserting State = "asserting"
	StateClosed    State = "closed"
	StatePassed    State = "passed"
	StateFailed    State = "failed"
)

var transitions = map[State][]State{
	StateCreated:   {StateNavigated, StateClosed},
	StateNavigated: {StateNavigated, StateActing, StateAsserting, StateClosed},
	StateActing:    {StateNavigated, StateActing, StateAsserting, StateClosed},
	StateAsserting: {StateNavigated, StateActing, StateAsserting, StateClosed},
	StateClosed:    {StatePassed, StateFailed},
}

func canTransition(from, to State) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Controller owns every session a scenario opens, popups included, and
// tears them all down on Close.
type Controller struct {
	browser browser.Browser
	opts    Options
	logger  *zap.Logger

	mu       sync.Mutex
	state    State
	history  []State
	sessions []*Session
	active   *Session
	closed   bool
	seq      int
}

// NewController prepares a controller over b. Nothing is opened until Open.
func NewController(b browser.Browser, opts Options, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		browser: b,
		opts:    opts.normalized(),
		logger:  logger,
		state:   StateCreated,
		history: []State{StateCreated},
	}
}

// Open creates a fresh isolated session and navigates it to url.
func (c *Controller) Open(ctx context.Context, url string) (*Session, error) {
	c.mu.Lock()
	closed := c.closed
	c.mu.Unlock()
	if closed {
		return nil, ErrControllerClosed
	}

	page, err := c.browser.NewPage(ctx)
	if err != nil {
		return nil, &NavigationError{URL: url, Err: fmt.Errorf("failed to open page: %w", err)}
	}
	s := c.adopt(page, nil)
	if s == nil {
		return nil, ErrControllerClosed
	}
	if err := s.Navigate(ctx, url); err != nil {
		return nil, joinErrors(err, s.Close())
	}
	return s, nil
}

// adopt wraps page in a tracked session. Returns nil, after closing the page,
// when teardown already started.
func (c *Controller) adopt(page browser.Page, opener *Session) *Session {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		_ = page.Close()
		return nil
	}
	c.seq++
	s := newSession(c, page, opener, fmt.Sprintf("s%d", c.seq))
	c.sessions = append(c.sessions, s)
	if c.active == nil {
		c.active = s
	}
	c.mu.Unlock()

	page.OnDialog(s.handleDialog)
	page.OnPopup(s.handlePopup)
	s.logger.Debug("Session opened.")
	return s
}

// Sessions returns every session opened so far, in order.
func (c *Controller) Sessions() []*Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*Session(nil), c.sessions...)
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// History returns every state the controller passed through, collapsing
// repeats.
func (c *Controller) History() []State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]State(nil), c.history...)
}

func (c *Controller) transition(to State) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !canTransition(c.state, to) {
		return false
	}
	if c.state != to {
		c.history = append(c.history, to)
	}
	c.state = to
	return true
}

func (c *Controller) touch(s *Session) {
	c.mu.Lock()
	c.active = s
	c.mu.Unlock()
}

// Diagnostics captures the DOM and a screenshot of the most recently used
// session that is still open.
func (c *Controller) Diagnostics(ctx context.Context) (html string, png []byte, err error) {
	c.mu.Lock()
	target := c.active
	if target == nil || target.isClosed() {
		target = nil
		for i := len(c.sessions) - 1; i >= 0; i-- {
			if !c.sessions[i].isClosed() {
				target = c.sessions[i]
				break
			}
		}
	}
	c.mu.Unlock()
	if target == nil {
		return "", nil, ErrSessionClosed
	}

	html, herr := target.page.Content(ctx)
	png, perr := target.page.Screenshot(ctx)
	if herr != nil {
		herr = fmt.Errorf("failed to capture DOM: %w", herr)
	}
	if perr != nil {
		perr = fmt.Errorf("failed to capture screenshot: %w", perr)
	}
	return html, png, joinErrors(herr, perr)
}

// Close tears down every session, newest first, and reports everything that
// went wrong on the way: unconsumed dialog and popup registrations, late
// dialog faults and transport close errors. Calling it again returns nil.
func (c *Controller) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	sessions := append([]*Session(nil), c.sessions...)
	c.mu.Unlock()

	var errs []error
	for i := len(sessions) - 1; i >= 0; i-- {
		errs = append(errs, sessions[i].Close())
	}
	c.transition(StateClosed)
	err := joinErrors(errs...)
	if err != nil {
		c.logger.Warn("Teardown reported errors.", zap.Error(err))
	}
	return err
}

// Finish records the scenario outcome. Only valid after Close.
func (c *Controller) Finish(err error) State {
	to := StatePassed
	if err != nil {
		to = StateFailed
	}
	c.transition(to)
	return c.State()
}
