package scenarios_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/lancet/internal/browser/fakebrowser"
	"github.com/xkilldash9x/lancet/internal/fixtures"
	"github.com/xkilldash9x/lancet/internal/harness"
	"github.com/xkilldash9x/lancet/internal/scenarios"
	"github.com/xkilldash9x/lancet/internal/testing/demosite"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func runCatalog(t *testing.T, p scenarios.Params, patterns ...string) *harness.RunResult {
	t.Helper()
	b := fakebrowser.New(demosite.NewFakeSite())
	b.DialogWait = time.Second
	t.Cleanup(func() { _ = b.Close() })

	selected, err := scenarios.Select(scenarios.Catalog(p), patterns)
	require.NoError(t, err)

	opts := harness.Options{Timeouts: harness.DefaultTimeouts()}
	opts.Timeouts.PollInterval = 10 * time.Millisecond
	opts.Timeouts.Assertion = time.Second
	opts.Timeouts.Action = time.Second
	r := harness.NewRunner(b, harness.RunnerConfig{
		Concurrency:     4,
		ScenarioTimeout: 30 * time.Second,
		Controller:      opts,
	}, zaptest.NewLogger(t))
	return r.Run(context.Background(), selected)
}

func TestCatalogPassesAgainstReplica(t *testing.T) {
	dir := t.TempDir()
	_, err := fixtures.Generate(dir, false, zaptest.NewLogger(t))
	require.NoError(t, err)

	run := runCatalog(t, scenarios.Params{BaseURL: fakebrowser.DefaultOrigin + "/", FixturesDir: dir})
	require.Len(t, run.Results, len(scenarios.UploadFiles)+5)
	for _, res := range run.Results {
		assert.Equal(t, harness.StatusPassed, res.Status, "%s: %s", res.Scenario, res.Message)
	}
}

func TestUploadWithoutFixturesFailsAsInvalidFile(t *testing.T) {
	p := scenarios.Params{BaseURL: fakebrowser.DefaultOrigin, FixturesDir: filepath.Join(t.TempDir(), "absent")}
	run := runCatalog(t, p, "upload/png500kb.png")

	require.Len(t, run.Results, 1)
	res := run.Results[0]
	assert.Equal(t, harness.StatusFailed, res.Status)
	assert.Equal(t, "invalid_file", res.Reason)
	assert.ErrorIs(t, res.Err, harness.ErrInvalidFile)
	assert.NotContains(t, res.States, harness.StateNavigated, "the fixture is checked before the page is opened")
	assert.Equal(t, []harness.State{harness.StateCreated, harness.StateClosed, harness.StateFailed}, res.States)
}

func TestUploadConfirmationNamesEachFileOnce(t *testing.T) {
	dir := t.TempDir()
	_, err := fixtures.Generate(dir, false, zaptest.NewLogger(t))
	require.NoError(t, err)

	for _, file := range scenarios.UploadFiles {
		t.Run(file, func(t *testing.T) {
			ctx := context.Background()
			b := fakebrowser.New(demosite.NewFakeSite())
			opts := harness.Options{Timeouts: harness.DefaultTimeouts()}
			opts.Timeouts.PollInterval = 10 * time.Millisecond
			ctrl := harness.NewController(b, opts, zaptest.NewLogger(t))
			t.Cleanup(func() {
				_ = ctrl.Close()
				_ = b.Close()
			})

			s, err := ctrl.Open(ctx, fakebrowser.DefaultOrigin+"/upload")
			require.NoError(t, err)
			require.NoError(t, s.Locate("#file-upload").SetInputFiles(ctx, filepath.Join(dir, file)))
			require.NoError(t, s.Locate("#file-submit").Click(ctx))
			require.NoError(t, harness.Assert(ctx, s.Locate("#uploaded-files"), harness.IsVisible(), time.Second))

			st, err := s.Locate("#uploaded-files").State(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, strings.Count(st.Text, file), "confirmation text: %q", st.Text)
		})
	}
}

func TestSelect(t *testing.T) {
	all := scenarios.Catalog(scenarios.Params{BaseURL: "http://example.test"})

	got, err := scenarios.Select(all, nil)
	require.NoError(t, err)
	assert.Len(t, got, len(all))

	got, err = scenarios.Select(all, []string{"upload/*", "hovers", "upload/jpg500kb.jpg"})
	require.NoError(t, err)
	require.Len(t, got, len(scenarios.UploadFiles)+1)
	for i := 1; i < len(got); i++ {
		assert.Less(t, got[i-1].Name, got[i].Name, "catalog order is kept")
	}

	_, err = scenarios.Select(all, []string{"uplaod/*"})
	assert.ErrorContains(t, err, `no scenario matches "uplaod/*"`)

	_, err = scenarios.Select(all, []string{"["})
	assert.ErrorContains(t, err, "invalid scenario pattern")
}
