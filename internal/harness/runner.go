package harness

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/lancet/internal/browser"
	"github.com/xkilldash9x/lancet/internal/observability"
)

// Scenario is one independent end to end check. Run receives a fresh
// controller and must not share state with other scenarios.
type Scenario struct {
	Name        string
	Description string
	Tags        []string
	Run         func(ctx context.Context, c *Controller) error
}

// Status is the outcome of one scenario.
type Status string

const (
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Result records what happened to one scenario.
type Result struct {
	Scenario  string        `json:"scenario"`
	Status    Status        `json:"status"`
	Reason    string        `json:"reason,omitempty"`
	Message   string        `json:"message,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Artifacts []string      `json:"artifacts,omitempty"`
	States    []State       `json:"states,omitempty"`
	Err       error         `json:"-"`
}

// RunResult aggregates one invocation of the runner.
type RunResult struct {
	ID        string        `json:"id"`
	Driver    string        `json:"driver,omitempty"`
	Engine    string        `json:"engine,omitempty"`
	BaseURL   string        `json:"base_url,omitempty"`
	StartedAt time.Time     `json:"started_at"`
	Duration  time.Duration `json:"duration"`
	Results   []Result      `json:"results"`
}

// Counts tallies results by status.
func (r *RunResult) Counts() (passed, failed, skipped int) {
	for _, res := range r.Results {
		switch res.Status {
		case StatusPassed:
			passed++
		case StatusFailed:
			failed++
		case StatusSkipped:
			skipped++
		}
	}
	return passed, failed, skipped
}

// Passed reports whether no scenario failed.
func (r *RunResult) Passed() bool {
	_, failed, _ := r.Counts()
	return failed == 0
}

// ArtifactSink stores failure diagnostics and returns where they went.
type ArtifactSink interface {
	Put(ctx context.Context, key string, data []byte) (string, error)
}

// RunnerConfig holds the knobs of a Runner.
type RunnerConfig struct {
	Concurrency     int
	ScenarioTimeout time.Duration
	// TeardownGrace is how long a timed out scenario may keep running after
	// its sessions were closed before the runner stops waiting for it.
	TeardownGrace time.Duration
	FailFast      bool
	Controller    Options

	// Labels copied into the RunResult.
	Driver  string
	Engine  string
	BaseURL string
}

// Runner executes scenarios concurrently, each in its own controller.
type Runner struct {
	browser browser.Browser
	cfg     RunnerConfig
	logger  *zap.Logger
	sink    ArtifactSink
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithArtifactSink stores DOM and screenshot captures of failed scenarios.
func WithArtifactSink(sink ArtifactSink) RunnerOption {
	return func(r *Runner) { r.sink = sink }
}

// WithRecorder sends harness events to rec.
func WithRecorder(rec Recorder) RunnerOption {
	return func(r *Runner) { r.cfg.Controller.Metrics = rec }
}

// NewRunner builds a runner over an already launched browser.
func NewRunner(b browser.Browser, cfg RunnerConfig, logger *zap.Logger, opts ...RunnerOption) *Runner {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.ScenarioTimeout <= 0 {
		cfg.ScenarioTimeout = 2 * time.Minute
	}
	if cfg.TeardownGrace <= 0 {
		cfg.TeardownGrace = 5 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Runner{browser: b, cfg: cfg, logger: logger.Named("runner")}
	for _, opt := range opts {
		opt(r)
	}
	r.cfg.Controller = r.cfg.Controller.normalized()
	return r
}

var errFailFast = errors.New("fail fast")

// Run executes every scenario and returns their results in input order.
// Scenarios not started when ctx ends, or after a failure under fail fast,
// are reported as skipped.
func (r *Runner) Run(ctx context.Context, scenarios []Scenario) *RunResult {
	run := &RunResult{
		ID:        ulid.Make().String(),
		Driver:    r.cfg.Driver,
		Engine:    r.cfg.Engine,
		BaseURL:   r.cfg.BaseURL,
		StartedAt: time.Now(),
		Results:   make([]Result, len(scenarios)),
	}
	logger := r.logger.With(zap.String("run_id", run.ID))
	logger.Info("Starting run.", zap.Int("scenarios", len(scenarios)), zap.Int("concurrency", r.cfg.Concurrency))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)
	runCtx := ctx
	if r.cfg.FailFast {
		runCtx = gctx
	}

	for i, sc := range scenarios {
		g.Go(func() error {
			if runCtx.Err() != nil {
				run.Results[i] = Result{Scenario: sc.Name, Status: StatusSkipped, Reason: "skipped", StartedAt: time.Now()}
				return nil
			}
			res := r.runScenario(runCtx, run.ID, sc)
			run.Results[i] = res
			if res.Status == StatusFailed && r.cfg.FailFast {
				return errFailFast
			}
			return nil
		})
	}
	_ = g.Wait()

	run.Duration = time.Since(run.StartedAt)
	passed, failed, skipped := run.Counts()
	logger.Info("Run finished.",
		zap.Int("passed", passed),
		zap.Int("failed", failed),
		zap.Int("skipped", skipped),
		zap.Duration("duration", run.Duration),
	)
	return run
}

func (r *Runner) runScenario(ctx context.Context, runID string, sc Scenario) Result {
	logger := observability.ScenarioLogger(r.logger, runID, sc.Name)
	res := Result{Scenario: sc.Name, StartedAt: time.Now()}
	ctrl := NewController(r.browser, r.cfg.Controller, logger)

	sctx, cancel := context.WithTimeout(ctx, r.cfg.ScenarioTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- r.execute(sctx, sc, ctrl, logger) }()

	var err, teardownErr error
	captured := false
	select {
	case err = <-done:
	case <-sctx.Done():
		// The body may be blocked on something that ignores its context.
		// Capture what the pages show, then close them under it so in flight
		// operations fail with ErrPageClosed.
		res.Artifacts = r.captureDiagnostics(runID, sc.Name, ctrl, logger)
		captured = true
		teardownErr = ctrl.Close()
		select {
		case err = <-done:
		case <-time.After(r.cfg.TeardownGrace):
			logger.Warn("Scenario did not return after teardown, abandoning it.", zap.Duration("grace", r.cfg.TeardownGrace))
			err = sctx.Err()
		}
	}
	if errors.Is(sctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		if err == nil {
			err = fmt.Errorf("%w after %s", ErrScenarioTimeout, r.cfg.ScenarioTimeout)
		} else {
			err = fmt.Errorf("%w after %s: %w", ErrScenarioTimeout, r.cfg.ScenarioTimeout, err)
		}
	}

	// Diagnostics are taken before teardown closes the pages.
	if err != nil && !captured {
		res.Artifacts = r.captureDiagnostics(runID, sc.Name, ctrl, logger)
	}
	if cerr := ctrl.Close(); cerr != nil {
		teardownErr = joinErrors(teardownErr, cerr)
	}
	if teardownErr != nil {
		err = joinErrors(err, teardownErr)
	}
	ctrl.Finish(err)

	res.Duration = time.Since(res.StartedAt)
	res.States = ctrl.History()
	res.Err = err
	if err != nil {
		res.Status = StatusFailed
		res.Reason = Classify(err)
		res.Message = err.Error()
		logger.Error("Scenario failed.", zap.String("reason", res.Reason), zap.String("error", firstLine(res.Message)), zap.Duration("duration", res.Duration))
	} else {
		res.Status = StatusPassed
		logger.Info("Scenario passed.", zap.Duration("duration", res.Duration))
	}
	r.cfg.Controller.Metrics.ScenarioObserved(sc.Name, string(res.Status), res.Duration)
	return res
}

func (r *Runner) execute(ctx context.Context, sc Scenario, ctrl *Controller, logger *zap.Logger) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("Scenario panicked.",
				zap.Any("panic_value", rec),
				zap.String("stack", string(debug.Stack())),
			)
			err = fmt.Errorf("%w: %v", ErrScenarioPanic, rec)
		}
	}()
	if sc.Run == nil {
		return fmt.Errorf("scenario %q has no body", sc.Name)
	}
	return sc.Run(ctx, ctrl)
}

// captureDiagnostics uses a fresh context; the scenario's own may already be
// expired.
func (r *Runner) captureDiagnostics(runID, name string, ctrl *Controller, logger *zap.Logger) []string {
	if r.sink == nil || len(ctrl.Sessions()) == 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	html, png, err := ctrl.Diagnostics(ctx)
	if err != nil {
		logger.Warn("Failed to capture diagnostics.", zap.Error(err))
	}

	prefix := runID + "/" + ArtifactSlug(name)
	var locations []string
	put := func(key string, data []byte) {
		if len(data) == 0 {
			return
		}
		loc, err := r.sink.Put(ctx, prefix+"/"+key, data)
		if err != nil {
			logger.Warn("Failed to store artifact.", zap.String("key", key), zap.Error(err))
			return
		}
		locations = append(locations, loc)
	}
	put("dom.html", []byte(html))
	put("screenshot.png", png)
	return locations
}

// ArtifactSlug maps a scenario name to a path safe key segment. Slashes
// are kept so grouped scenarios nest.
func ArtifactSlug(name string) string {
	slug := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_', r == '/':
			return r
		}
		return '_'
	}, name)
	slug = strings.Trim(strings.ReplaceAll(slug, "..", "_"), "/")
	if slug == "" {
		return "scenario"
	}
	return slug
}
