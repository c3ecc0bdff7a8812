package reporting

import (
	"io"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/xkilldash9x/lancet/internal/harness"
	"github.com/xkilldash9x/lancet/internal/reporting/sarif"
)

const (
	ToolName    = "lancet"
	ToolInfoURI = "https://github.com/xkilldash9x/lancet"
)

// ruleIDSanitizer collapses anything outside [A-Za-z0-9_.] into one hyphen.
var ruleIDSanitizer = regexp.MustCompile(`[^a-zA-Z0-9_.]+`)

// ruleHelp documents each failure class.
var ruleHelp = map[string]string{
	"timeout":            "The scenario exceeded its overall time budget.",
	"panic":              "The scenario body panicked; the stack is in the log.",
	"invalid_file":       "An upload path was missing, not a regular file, or unreadable.",
	"navigation":         "A page failed to load or the server answered with an error status.",
	"dialog_not_handled": "A native dialog appeared without a registration, or a registration was never consumed.",
	"dialog_mismatch":    "A dialog consumed a registration whose type or message did not match.",
	"popup_timeout":      "An expected popup did not open in time or was never awaited.",
	"assertion_timeout":  "A condition on the page did not hold within the assertion timeout.",
	"action":             "An element was missing, hidden, disabled or did not react to the action.",
	"canceled":           "The run was canceled while the scenario was executing.",
	"error":              "The scenario failed with an unclassified error.",
}

func ruleID(reason string) string {
	name := strings.Trim(ruleIDSanitizer.ReplaceAllString(strings.ToUpper(reason), "-"), "-")
	if name == "" {
		name = "ERROR"
	}
	return "LANCET-" + name
}

// renderSARIF reports each failed scenario as a result whose rule is its
// failure class. Passing and skipped scenarios produce no results.
func renderSARIF(w io.Writer, runs []*harness.RunResult, toolVersion string) error {
	log := &sarif.Log{Version: sarif.Version, Schema: sarif.Schema}
	for _, run := range runs {
		log.Runs = append(log.Runs, sarifRun(run, toolVersion))
	}
	if log.Runs == nil {
		log.Runs = []*sarif.Run{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(log)
}

func sarifRun(run *harness.RunResult, toolVersion string) *sarif.Run {
	out := &sarif.Run{
		Tool: &sarif.Tool{Driver: &sarif.ToolComponent{
			Name:           ToolName,
			Version:        toolVersion,
			InformationURI: ToolInfoURI,
			Rules:          []*sarif.ReportingDescriptor{},
		}},
		AutomationDetails: &sarif.AutomationDetails{ID: "lancet/" + run.ID},
		Invocations: []*sarif.Invocation{{
			ExecutionSuccessful: run.Passed(),
			StartTimeUTC:        run.StartedAt.UTC().Format(time.RFC3339),
			EndTimeUTC:          run.StartedAt.Add(run.Duration).UTC().Format(time.RFC3339),
		}},
		Results: []*sarif.Result{},
	}
	if run.Driver != "" || run.Engine != "" {
		out.Properties = sarif.PropertyBag{"driver": run.Driver, "engine": run.Engine}
	}

	rules := make(map[string]bool)
	for _, res := range run.Results {
		if res.Status != harness.StatusFailed {
			continue
		}
		id := ruleID(res.Reason)
		rules[res.Reason] = true

		loc := &sarif.Location{LogicalLocations: []*sarif.LogicalLocation{{
			Name:               res.Scenario,
			FullyQualifiedName: "lancet::" + res.Scenario,
			Kind:               "function",
		}}}
		if run.BaseURL != "" {
			loc.PhysicalLocation = &sarif.PhysicalLocation{ArtifactLocation: &sarif.ArtifactLocation{URI: run.BaseURL}}
		}
		r := &sarif.Result{
			RuleID:    id,
			Level:     sarif.LevelError,
			Message:   sarif.Message{Text: res.Message},
			Locations: []*sarif.Location{loc},
		}
		if len(res.Artifacts) > 0 {
			r.Properties = sarif.PropertyBag{"artifacts": res.Artifacts}
		}
		out.Results = append(out.Results, r)
	}

	reasons := make([]string, 0, len(rules))
	for reason := range rules {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)
	for _, reason := range reasons {
		help := ruleHelp[reason]
		if help == "" {
			help = ruleHelp["error"]
		}
		out.Tool.Driver.Rules = append(out.Tool.Driver.Rules, &sarif.ReportingDescriptor{
			ID:               ruleID(reason),
			Name:             reason,
			ShortDescription: &sarif.MultiformatMessageString{Text: help},
		})
	}
	return out
}
