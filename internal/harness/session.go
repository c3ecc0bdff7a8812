package harness

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/xkilldash9x/lancet/internal/browser"
)

// Session is one page driven by a scenario. Sessions opened through
// Controller.Open have their own isolated browser context; popups share
// their opener's.
type Session struct {
	id     string
	ctrl   *Controller
	page   browser.Page
	opener *Session
	logger *zap.Logger

	mu      sync.Mutex
	closed  bool
	dialogs []*PendingDialog
	faults  []error

	popups    []*PendingPopup
	popupRegs []*PendingPopup
}

func newSession(c *Controller, page browser.Page, opener *Session, id string) *Session {
	logger := c.logger.With(zap.String("session", id))
	if opener != nil {
		logger = logger.With(zap.String("opener", opener.id))
	}
	return &Session{id: id, ctrl: c, page: page, opener: opener, logger: logger}
}

func (s *Session) ID() string { return s.id }

// Opener returns the session whose page opened this one, or nil.
func (s *Session) Opener() *Session { return s.opener }

// URL reports the page's current location.
func (s *Session) URL() string { return s.page.URL() }

func (s *Session) timeouts() Timeouts { return s.ctrl.opts.Timeouts }

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// usable fails when the session is closed or a dialog fault is waiting to be
// surfaced.
func (s *Session) usable() error {
	if s.isClosed() {
		return fmt.Errorf("session %s: %w", s.id, ErrSessionClosed)
	}
	s.ctrl.touch(s)
	return s.takeFaults()
}

func (s *Session) addFault(err error) {
	s.mu.Lock()
	s.faults = append(s.faults, err)
	s.mu.Unlock()
}

func (s *Session) takeFaults() error {
	s.mu.Lock()
	faults := s.faults
	s.faults = nil
	s.mu.Unlock()
	return joinErrors(faults...)
}

// Navigate loads url in this session. Dialog faults and registrations that
// never fired are discarded and fail the navigation before it starts, so a
// stale registration cannot answer a dialog of the next page.
func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := s.usable(); err != nil {
		return err
	}
	if err := s.CheckDialogs(); err != nil {
		return err
	}
	nctx, cancel := context.WithTimeout(ctx, s.timeouts().Navigation)
	defer cancel()

	s.logger.Debug("Navigating.", zap.String("url", url))
	if err := s.page.Navigate(nctx, url); err != nil {
		return &NavigationError{URL: url, Err: err}
	}
	s.ctrl.transition(StateNavigated)
	return s.takeFaults()
}

// BringToFront activates the session's tab.
func (s *Session) BringToFront(ctx context.Context) error {
	if err := s.usable(); err != nil {
		return err
	}
	actx, cancel := context.WithTimeout(ctx, s.timeouts().Action)
	defer cancel()
	if err := s.page.BringToFront(actx); err != nil {
		return &ActionError{Action: "bring_to_front", Locator: s.id, Reason: ReasonTransport, Err: err}
	}
	return nil
}

// CheckDialogs surfaces recorded dialog faults and reports every registration
// that has not fired yet as DialogNotHandledError. Pending registrations are
// withdrawn.
func (s *Session) CheckDialogs() error {
	s.mu.Lock()
	faults := s.faults
	pending := s.dialogs
	s.faults, s.dialogs = nil, nil
	s.mu.Unlock()

	errs := append([]error(nil), faults...)
	for _, pd := range pending {
		if !pd.withdraw() {
			continue
		}
		exp := pd.Expectation()
		s.logger.Warn("Expected dialog never appeared.", zap.Stringer("expected", exp))
		s.ctrl.opts.Metrics.DialogObserved(exp.Type, "missed")
		errs = append(errs, &DialogNotHandledError{Expected: &exp})
	}
	return joinErrors(errs...)
}

// Close checks outstanding registrations and closes the page. Subsequent
// calls return nil.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	dialogErr := s.CheckDialogs()
	popupErr := s.checkPopups()

	var closeErr error
	if err := s.page.Close(); err != nil && !errors.Is(err, browser.ErrPageClosed) {
		closeErr = fmt.Errorf("failed to close session %s: %w", s.id, err)
	}
	s.logger.Debug("Session closed.")
	return joinErrors(dialogErr, popupErr, closeErr)
}
