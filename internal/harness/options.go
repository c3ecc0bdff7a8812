package harness

import (
	"time"

	"github.com/xkilldash9x/lancet/internal/browser"
	"github.com/xkilldash9x/lancet/internal/config"
)

// Timeouts bound every blocking harness operation.
type Timeouts struct {
	Navigation   time.Duration
	Action       time.Duration
	Assertion    time.Duration
	Popup        time.Duration
	Dialog       time.Duration
	Upload       time.Duration
	PollInterval time.Duration
}

// DefaultTimeouts mirrors the configuration defaults.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Navigation:   30 * time.Second,
		Action:       10 * time.Second,
		Assertion:    5 * time.Second,
		Popup:        10 * time.Second,
		Dialog:       5 * time.Second,
		Upload:       60 * time.Second,
		PollInterval: 100 * time.Millisecond,
	}
}

// TimeoutsFromConfig converts the timeouts section, falling back to defaults
// for unset fields.
func TimeoutsFromConfig(cfg config.TimeoutConfig) Timeouts {
	t := Timeouts{
		Navigation:   cfg.Navigation,
		Action:       cfg.Action,
		Assertion:    cfg.Assertion,
		Popup:        cfg.Popup,
		Dialog:       cfg.Dialog,
		Upload:       cfg.Upload,
		PollInterval: cfg.PollInterval,
	}
	return t.withDefaults()
}

func (t Timeouts) withDefaults() Timeouts {
	d := DefaultTimeouts()
	pick := func(v, def time.Duration) time.Duration {
		if v <= 0 {
			return def
		}
		return v
	}
	return Timeouts{
		Navigation:   pick(t.Navigation, d.Navigation),
		Action:       pick(t.Action, d.Action),
		Assertion:    pick(t.Assertion, d.Assertion),
		Popup:        pick(t.Popup, d.Popup),
		Dialog:       pick(t.Dialog, d.Dialog),
		Upload:       pick(t.Upload, d.Upload),
		PollInterval: pick(t.PollInterval, d.PollInterval),
	}
}

// Recorder receives harness events. *metrics.Recorder satisfies it.
type Recorder interface {
	ActionObserved(action string, err error)
	DialogObserved(typ browser.DialogType, outcome string)
	ScenarioObserved(name, status string, elapsed time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) ActionObserved(string, error)                   {}
func (nopRecorder) DialogObserved(browser.DialogType, string)      {}
func (nopRecorder) ScenarioObserved(string, string, time.Duration) {}

// Options configures a Controller.
type Options struct {
	Timeouts Timeouts
	Metrics  Recorder
}

func (o Options) normalized() Options {
	o.Timeouts = o.Timeouts.withDefaults()
	if o.Metrics == nil {
		o.Metrics = nopRecorder{}
	}
	return o
}
