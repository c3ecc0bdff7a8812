package store

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/xkilldash9x/lancet/internal/harness"
)

// flexibleSQLMatcher makes the expected statement whitespace insensitive.
func flexibleSQLMatcher(sql string) string {
	trimmed := strings.TrimSpace(sql)
	return regexp.MustCompile(`\s+`).ReplaceAllString(regexp.QuoteMeta(trimmed), `\s+`)
}

func newMockStore(t *testing.T, logger *zap.Logger) (*Store, pgxmock.PgxPoolIface) {
	t.Helper()
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mockPool.Close)

	mockPool.ExpectPing()
	s, err := New(context.Background(), mockPool, logger)
	require.NoError(t, err)
	return s, mockPool
}

func sampleRun() *harness.RunResult {
	ny, _ := time.LoadLocation("America/New_York")
	started := time.Date(2024, 10, 1, 8, 0, 0, 0, ny)
	return &harness.RunResult{
		ID:        "01J9Z3KX7Q8V5W2N4M6P0R1T3S",
		Driver:    "playwright",
		Engine:    "webkit",
		BaseURL:   "https://the-internet.herokuapp.com",
		StartedAt: started,
		Duration:  3 * time.Second,
		Results: []harness.Result{
			{Scenario: "checkboxes", Status: harness.StatusPassed, StartedAt: started, Duration: time.Second,
				States: []harness.State{harness.StateCreated, harness.StatePassed}},
			{Scenario: "windows", Status: harness.StatusFailed, Reason: "popup_timeout", Message: "no popup",
				StartedAt: started, Duration: 2 * time.Second, Artifacts: []string{"a/dom.html"}},
		},
	}
}

func TestNewStore(t *testing.T) {
	mockPool, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mockPool.Close()

	pingErr := errors.New("database unavailable")
	mockPool.ExpectPing().WillReturnError(pingErr)

	_, err = New(context.Background(), mockPool, zap.NewNop())
	assert.ErrorIs(t, err, pingErr)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestEnsureSchema(t *testing.T) {
	s, mockPool := newMockStore(t, nil)
	mockPool.ExpectExec("CREATE TABLE IF NOT EXISTS lancet_runs").
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.EnsureSchema(context.Background()))
	assert.NoError(t, mockPool.ExpectationsWereMet())
}

func TestSaveRun(t *testing.T) {
	ctx := context.Background()

	t.Run("writes the run and copies results in UTC", func(t *testing.T) {
		core, logs := observer.New(zapcore.ErrorLevel)
		s, mockPool := newMockStore(t, zap.New(core))
		run := sampleRun()

		mockPool.ExpectBegin()
		mockPool.ExpectExec(flexibleSQLMatcher(sqlInsertRun)).
			WithArgs(run.ID, "playwright", "webkit", run.BaseURL, run.StartedAt.UTC(), int64(3000), 1, 1, 0).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectCopyFrom(pgx.Identifier{"lancet_results"}, resultColumns).WillReturnResult(2)
		mockPool.ExpectCommit()
		mockPool.ExpectRollback().WillReturnError(pgx.ErrTxClosed)

		require.NoError(t, s.SaveRun(ctx, run))
		assert.NoError(t, mockPool.ExpectationsWereMet())
		assert.Empty(t, logs.All(), "a committed transaction logs no rollback error")
	})

	t.Run("rolls back when the copy fails", func(t *testing.T) {
		s, mockPool := newMockStore(t, nil)
		run := sampleRun()
		copyErr := errors.New("copy failed")

		mockPool.ExpectBegin()
		mockPool.ExpectExec(flexibleSQLMatcher(sqlInsertRun)).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectCopyFrom(pgx.Identifier{"lancet_results"}, resultColumns).WillReturnError(copyErr)
		mockPool.ExpectRollback()

		err := s.SaveRun(ctx, run)
		assert.ErrorIs(t, err, copyErr)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("detects short copies", func(t *testing.T) {
		s, mockPool := newMockStore(t, nil)

		mockPool.ExpectBegin()
		mockPool.ExpectExec(flexibleSQLMatcher(sqlInsertRun)).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		mockPool.ExpectCopyFrom(pgx.Identifier{"lancet_results"}, resultColumns).WillReturnResult(1)
		mockPool.ExpectRollback()

		assert.ErrorContains(t, s.SaveRun(ctx, sampleRun()), "expected 2, got 1")
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("begin failure", func(t *testing.T) {
		s, mockPool := newMockStore(t, nil)
		beginErr := errors.New("cannot begin tx")
		mockPool.ExpectBegin().WillReturnError(beginErr)

		assert.ErrorIs(t, s.SaveRun(ctx, sampleRun()), beginErr)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestGetRun(t *testing.T) {
	ctx := context.Background()
	started := time.Date(2024, 10, 1, 12, 0, 0, 0, time.UTC)

	t.Run("rebuilds results in order", func(t *testing.T) {
		s, mockPool := newMockStore(t, nil)
		mockPool.ExpectQuery(flexibleSQLMatcher(sqlSelectRun)).WithArgs("run-1").
			WillReturnRows(pgxmock.NewRows([]string{"id", "driver", "engine", "base_url", "started_at", "duration_ms"}).
				AddRow("run-1", "chromedp", "chromium", "http://localhost:7080", started, int64(4250)))
		mockPool.ExpectQuery(flexibleSQLMatcher(sqlSelectResults)).WithArgs("run-1").
			WillReturnRows(pgxmock.NewRows([]string{"scenario", "status", "reason", "message", "started_at", "duration_ms", "artifacts", "states"}).
				AddRow("hovers", "passed", "", "", started, int64(900), []string{}, []string{"created", "passed"}).
				AddRow("windows", "failed", "popup_timeout", "no popup", started, int64(3350), []string{"x/dom.html"}, []string{"created", "failed"}))

		run, err := s.GetRun(ctx, "run-1")
		require.NoError(t, err)
		assert.Equal(t, 4250*time.Millisecond, run.Duration)
		require.Len(t, run.Results, 2)
		assert.Equal(t, harness.StatusFailed, run.Results[1].Status)
		assert.Equal(t, "popup_timeout", run.Results[1].Reason)
		assert.Equal(t, []harness.State{harness.StateCreated, harness.StateFailed}, run.Results[1].States)
		assert.False(t, run.Passed())
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("unknown id", func(t *testing.T) {
		s, mockPool := newMockStore(t, nil)
		mockPool.ExpectQuery(flexibleSQLMatcher(sqlSelectRun)).WithArgs("missing").
			WillReturnRows(pgxmock.NewRows([]string{"id", "driver", "engine", "base_url", "started_at", "duration_ms"}))

		_, err := s.GetRun(ctx, "missing")
		assert.ErrorIs(t, err, ErrRunNotFound)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestListRuns(t *testing.T) {
	s, mockPool := newMockStore(t, nil)
	started := time.Date(2024, 10, 1, 12, 0, 0, 0, time.UTC)
	mockPool.ExpectQuery(flexibleSQLMatcher(sqlListRuns)).WithArgs(20).
		WillReturnRows(pgxmock.NewRows([]string{"id", "driver", "engine", "base_url", "started_at", "duration_ms", "passed", "failed", "skipped"}).
			AddRow("b", "playwright", "firefox", "http://x", started.Add(time.Hour), int64(1000), 12, 0, 0).
			AddRow("a", "chromedp", "chromium", "http://x", started, int64(2000), 11, 1, 0))

	runs, err := s.ListRuns(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "b", runs[0].ID)
	assert.Equal(t, 1, runs[1].Failed)
	assert.Equal(t, 2*time.Second, runs[1].Duration)
	assert.NoError(t, mockPool.ExpectationsWereMet())
}
