// Package scenarios holds the built-in scenarios for the demo site.
package scenarios

import (
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/xkilldash9x/lancet/internal/harness"
)

// UploadFiles is the allow-list of fixture names the upload scenarios send.
var UploadFiles = []string{
	"jpg500kb.jpg",
	"png500kb.png",
	"file_example_XLS_100.xls",
	"file_example_XLSX_100.xlsx",
	"file-sample_150kB.pdf",
	"file-sample_500kB.doc",
	"file-sample_500kB.docx",
}

// Params points the catalog at a site and a fixtures directory.
type Params struct {
	BaseURL     string
	FixturesDir string
}

func (p Params) url(route string) string {
	return strings.TrimRight(p.BaseURL, "/") + route
}

// Catalog returns every built-in scenario, sorted by name.
func Catalog(p Params) []harness.Scenario {
	var out []harness.Scenario
	for _, name := range UploadFiles {
		out = append(out, uploadScenario(p, name))
	}
	out = append(out,
		dragAndDropScenario(p),
		javascriptAlertsScenario(p),
		windowsScenario(p),
		hoversScenario(p),
		checkboxesScenario(p),
	)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Select filters scenarios by exact names or path.Match globs such as
// "upload/*". No patterns selects everything. A pattern matching nothing is
// an error so typos do not silently run an empty suite.
func Select(all []harness.Scenario, patterns []string) ([]harness.Scenario, error) {
	if len(patterns) == 0 {
		return all, nil
	}
	picked := make(map[string]bool)
	for _, pat := range patterns {
		if _, err := path.Match(pat, ""); err != nil {
			return nil, fmt.Errorf("invalid scenario pattern %q: %w", pat, err)
		}
		matched := false
		for _, sc := range all {
			if ok, _ := path.Match(pat, sc.Name); ok {
				picked[sc.Name] = true
				matched = true
			}
		}
		if !matched {
			return nil, fmt.Errorf("no scenario matches %q", pat)
		}
	}
	out := make([]harness.Scenario, 0, len(picked))
	for _, sc := range all {
		if picked[sc.Name] {
			out = append(out, sc)
		}
	}
	return out, nil
}
