// internal/browser/interface.go
package browser

import (
	"context"
	"errors"
)

// ErrElementNotFound is returned by transports when a query resolves to no element.
var ErrElementNotFound = errors.New("element not found")

// ErrPageClosed is returned when an operation targets a page that was already closed.
var ErrPageClosed = errors.New("page closed")

// Browser is a launched browser process. Each page it hands out lives in
// its own isolated browser context (cookies, storage, cache).
type Browser interface {
	NewPage(ctx context.Context) (Page, error)
	Close() error
}

// Page is one tab. Implementations must be safe for concurrent use; the
// dialog and popup handlers are invoked on transport goroutines.
type Page interface {
	// Navigate loads url and waits for the load event. HTTP error statuses
	// on the main document are reported as errors.
	Navigate(ctx context.Context, url string) error
	URL() string

	// Inspect resolves q against the live document and reports the state of
	// the first match.
	Inspect(ctx context.Context, q Query) (ElementState, error)
	// Attribute reads an attribute of the first match. ok is false when the
	// attribute is absent. ErrElementNotFound when nothing matches.
	Attribute(ctx context.Context, q Query, name string) (value string, ok bool, err error)

	Click(ctx context.Context, q Query) error
	Hover(ctx context.Context, q Query) error
	SetChecked(ctx context.Context, q Query, checked bool) error
	SetInputFiles(ctx context.Context, q Query, paths []string) error
	// DispatchDrag synthesizes dragstart, dragenter, dragover, drop and
	// dragend events sharing one DataTransfer.
	DispatchDrag(ctx context.Context, source, target Query) error

	Screenshot(ctx context.Context) ([]byte, error)
	Content(ctx context.Context) (string, error)

	// OnDialog installs the handler for native dialogs. The handler must
	// answer every dialog it is given, exactly once.
	OnDialog(handler func(Dialog))
	// OnPopup installs the handler for tabs opened by this page.
	OnPopup(handler func(Page))

	BringToFront(ctx context.Context) error
	Close() error
}

// DialogType names the kind of native dialog.
type DialogType string

const (
	DialogAlert        DialogType = "alert"
	DialogConfirm      DialogType = "confirm"
	DialogPrompt       DialogType = "prompt"
	DialogBeforeUnload DialogType = "beforeunload"
)

// Dialog is a native dialog waiting for an answer.
type Dialog interface {
	Type() DialogType
	Message() string
	DefaultValue() string
	// Accept confirms the dialog. For prompts, text is entered first.
	Accept(text string) error
	Dismiss() error
}
