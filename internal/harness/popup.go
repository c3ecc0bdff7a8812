package harness

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/lancet/internal/browser"
)

// PendingPopup is a registration for the next tab the session opens.
type PendingPopup struct {
	opener  *Session
	arrived chan *Session

	mu        sync.Mutex
	resolved  *Session
	withdrawn bool
	awaited   bool
}

// ExpectPopup registers interest in the next tab this session opens. Register
// before the action that opens it.
func (s *Session) ExpectPopup() (*PendingPopup, error) {
	pp := &PendingPopup{opener: s, arrived: make(chan *Session, 1)}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, fmt.Errorf("session %s: %w", s.id, ErrSessionClosed)
	}
	s.popups = append(s.popups, pp)
	s.popupRegs = append(s.popupRegs, pp)
	return pp, nil
}

// WaitForPopup waits for the tab pp was registered for.
func WaitForPopup(ctx context.Context, pp *PendingPopup) (*Session, error) {
	return pp.Wait(ctx)
}

// Wait returns the popup's session once it opened. Repeated calls return the
// same session.
func (pp *PendingPopup) Wait(ctx context.Context) (*Session, error) {
	pp.mu.Lock()
	if pp.resolved != nil {
		s := pp.resolved
		pp.mu.Unlock()
		return s, nil
	}
	pp.awaited = true
	pp.mu.Unlock()

	timeout := pp.opener.timeouts().Popup
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case s := <-pp.arrived:
		return pp.resolve(s)
	case <-timer.C:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if !pp.opener.removePopup(pp) {
		// Either the tab is being delivered right now or teardown already
		// dropped the registration.
		select {
		case s := <-pp.arrived:
			return pp.resolve(s)
		case <-time.After(time.Second):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	pp.mu.Lock()
	pp.withdrawn = true
	pp.mu.Unlock()
	pp.opener.logger.Warn("Expected popup did not open.", zap.Duration("timeout", timeout))
	return nil, &PopupTimeoutError{Timeout: timeout}
}

func (pp *PendingPopup) resolve(s *Session) (*Session, error) {
	pp.mu.Lock()
	pp.resolved = s
	pp.mu.Unlock()
	s.ctrl.transition(StateNavigated)
	return s, nil
}

func (s *Session) removePopup(pp *PendingPopup) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, p := range s.popups {
		if p == pp {
			s.popups = append(s.popups[:i], s.popups[i+1:]...)
			return true
		}
	}
	return false
}

// handlePopup runs on the transport's goroutine. Every popup is tracked for
// teardown whether or not it was expected.
func (s *Session) handlePopup(page browser.Page) {
	child := s.ctrl.adopt(page, s)
	if child == nil {
		return
	}

	s.mu.Lock()
	var pp *PendingPopup
	if len(s.popups) > 0 {
		pp = s.popups[0]
		s.popups = s.popups[1:]
	}
	s.mu.Unlock()

	if pp == nil {
		s.logger.Warn("Unexpected popup opened.", zap.String("popup", child.id), zap.String("url", page.URL()))
		return
	}
	s.logger.Debug("Popup opened.", zap.String("popup", child.id), zap.String("url", page.URL()))
	pp.arrived <- child
}

// checkPopups reports registrations no caller ever waited for, whether or
// not their tab arrived.
func (s *Session) checkPopups() error {
	s.mu.Lock()
	regs := s.popupRegs
	s.popups, s.popupRegs = nil, nil
	s.mu.Unlock()

	var errs []error
	for _, pp := range regs {
		pp.mu.Lock()
		skip := pp.awaited || pp.withdrawn
		pp.mu.Unlock()
		if !skip {
			s.logger.Warn("Expected popup was never awaited.")
			errs = append(errs, &PopupTimeoutError{})
		}
	}
	return joinErrors(errs...)
}
