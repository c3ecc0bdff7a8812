package reporting

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xkilldash9x/lancet/internal/harness"
)

var statusLabel = map[harness.Status]string{
	harness.StatusPassed:  "PASS",
	harness.StatusFailed:  "FAIL",
	harness.StatusSkipped: "SKIP",
}

func renderText(w io.Writer, runs []*harness.RunResult) error {
	bw := bufio.NewWriter(w)
	for i, run := range runs {
		if i > 0 {
			fmt.Fprintln(bw)
		}
		writeTextRun(bw, run)
	}
	return bw.Flush()
}

func writeTextRun(w io.Writer, run *harness.RunResult) {
	fmt.Fprintf(w, "Run %s", run.ID)
	if run.Driver != "" || run.Engine != "" {
		fmt.Fprintf(w, " (%s/%s)", run.Driver, run.Engine)
	}
	if run.BaseURL != "" {
		fmt.Fprintf(w, " against %s", run.BaseURL)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Started %s, took %s\n\n", run.StartedAt.UTC().Format(time.RFC3339), run.Duration.Round(time.Millisecond))

	width := 0
	for _, res := range run.Results {
		width = max(width, len(res.Scenario))
	}
	for _, res := range run.Results {
		label := statusLabel[res.Status]
		if label == "" {
			label = strings.ToUpper(string(res.Status))
		}
		line := fmt.Sprintf("%-4s  %-*s", label, width, res.Scenario)
		if res.Status != harness.StatusSkipped {
			line += fmt.Sprintf("  %8s", res.Duration.Round(time.Millisecond))
		}
		if res.Reason != "" {
			line += "  " + res.Reason
		}
		fmt.Fprintln(w, strings.TrimRight(line, " "))
		if res.Message != "" {
			for _, l := range strings.Split(res.Message, "\n") {
				fmt.Fprintf(w, "      %s\n", l)
			}
		}
		if len(res.Artifacts) > 0 {
			fmt.Fprintf(w, "      artifacts: %s\n", strings.Join(res.Artifacts, ", "))
		}
	}

	passed, failed, skipped := run.Counts()
	fmt.Fprintf(w, "\n%d passed, %d failed, %d skipped\n", passed, failed, skipped)
}
