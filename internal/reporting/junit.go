package reporting

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"

	"github.com/xkilldash9x/lancet/internal/harness"
)

func seconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', 3, 64)
}

// renderJUnit writes one testsuite per run. Scenario groups ("upload/x")
// become the classname.
func renderJUnit(w io.Writer, runs []*harness.RunResult) error {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	root := doc.CreateElement("testsuites")

	var tests, failures, skipped int
	var total time.Duration
	for _, run := range runs {
		p, f, s := run.Counts()
		tests += p + f + s
		failures += f
		skipped += s
		total += run.Duration

		suite := root.CreateElement("testsuite")
		suite.CreateAttr("name", "lancet")
		suite.CreateAttr("id", run.ID)
		suite.CreateAttr("tests", strconv.Itoa(p+f+s))
		suite.CreateAttr("failures", strconv.Itoa(f))
		suite.CreateAttr("errors", "0")
		suite.CreateAttr("skipped", strconv.Itoa(s))
		suite.CreateAttr("time", seconds(run.Duration))
		suite.CreateAttr("timestamp", run.StartedAt.UTC().Format("2006-01-02T15:04:05"))

		props := suite.CreateElement("properties")
		for _, kv := range [][2]string{{"driver", run.Driver}, {"engine", run.Engine}, {"base_url", run.BaseURL}} {
			if kv[1] == "" {
				continue
			}
			prop := props.CreateElement("property")
			prop.CreateAttr("name", kv[0])
			prop.CreateAttr("value", kv[1])
		}

		for _, res := range run.Results {
			tc := suite.CreateElement("testcase")
			class := "lancet"
			if i := strings.LastIndex(res.Scenario, "/"); i > 0 {
				class = "lancet." + strings.ReplaceAll(res.Scenario[:i], "/", ".")
			}
			tc.CreateAttr("classname", class)
			tc.CreateAttr("name", res.Scenario)
			tc.CreateAttr("time", seconds(res.Duration))

			switch res.Status {
			case harness.StatusFailed:
				fail := tc.CreateElement("failure")
				fail.CreateAttr("type", res.Reason)
				fail.CreateAttr("message", firstLine(res.Message))
				fail.SetText(res.Message)
			case harness.StatusSkipped:
				tc.CreateElement("skipped")
			}
			if len(res.Artifacts) > 0 {
				var b strings.Builder
				for _, a := range res.Artifacts {
					fmt.Fprintf(&b, "[[ATTACHMENT|%s]]\n", a)
				}
				tc.CreateElement("system-out").SetText(b.String())
			}
		}
	}
	root.CreateAttr("tests", strconv.Itoa(tests))
	root.CreateAttr("failures", strconv.Itoa(failures))
	root.CreateAttr("skipped", strconv.Itoa(skipped))
	root.CreateAttr("time", seconds(total))

	doc.Indent(2)
	_, err := doc.WriteTo(w)
	return err
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
