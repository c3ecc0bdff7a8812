package reporting

import (
	"io"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/lancet/internal/harness"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type jsonReport struct {
	Runs []jsonRun `json:"runs"`
}

type jsonRun struct {
	ID         string       `json:"id"`
	Driver     string       `json:"driver,omitempty"`
	Engine     string       `json:"engine,omitempty"`
	BaseURL    string       `json:"base_url,omitempty"`
	StartedAt  time.Time    `json:"started_at"`
	DurationMS int64        `json:"duration_ms"`
	Passed     int          `json:"passed"`
	Failed     int          `json:"failed"`
	Skipped    int          `json:"skipped"`
	Results    []jsonResult `json:"results"`
}

type jsonResult struct {
	Scenario   string          `json:"scenario"`
	Status     harness.Status  `json:"status"`
	Reason     string          `json:"reason,omitempty"`
	Message    string          `json:"message,omitempty"`
	StartedAt  time.Time       `json:"started_at"`
	DurationMS int64           `json:"duration_ms"`
	Artifacts  []string        `json:"artifacts,omitempty"`
	States     []harness.State `json:"states,omitempty"`
}

func toJSONRun(run *harness.RunResult) jsonRun {
	out := jsonRun{
		ID:         run.ID,
		Driver:     run.Driver,
		Engine:     run.Engine,
		BaseURL:    run.BaseURL,
		StartedAt:  run.StartedAt.UTC(),
		DurationMS: run.Duration.Milliseconds(),
		Results:    make([]jsonResult, 0, len(run.Results)),
	}
	out.Passed, out.Failed, out.Skipped = run.Counts()
	for _, res := range run.Results {
		out.Results = append(out.Results, jsonResult{
			Scenario:   res.Scenario,
			Status:     res.Status,
			Reason:     res.Reason,
			Message:    res.Message,
			StartedAt:  res.StartedAt.UTC(),
			DurationMS: res.Duration.Milliseconds(),
			Artifacts:  res.Artifacts,
			States:     res.States,
		})
	}
	return out
}

func renderJSON(w io.Writer, runs []*harness.RunResult) error {
	report := jsonReport{Runs: make([]jsonRun, 0, len(runs))}
	for _, run := range runs {
		report.Runs = append(report.Runs, toJSONRun(run))
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
