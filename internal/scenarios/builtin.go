package scenarios

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/xkilldash9x/lancet/internal/browser"
	"github.com/xkilldash9x/lancet/internal/harness"
)

func uploadScenario(p Params, file string) harness.Scenario {
	return harness.Scenario{
		Name:        "upload/" + file,
		Description: fmt.Sprintf("Upload %s and confirm the server lists it.", file),
		Tags:        []string{"upload"},
		Run: func(ctx context.Context, c *harness.Controller) error {
			path := filepath.Join(p.FixturesDir, file)
			if err := harness.ValidateFiles(path); err != nil {
				return err
			}
			s, err := c.Open(ctx, p.url("/upload"))
			if err != nil {
				return err
			}
			if err := s.Locate("#file-upload").SetInputFiles(ctx, path); err != nil {
				return err
			}
			if err := s.Locate("#file-submit").Click(ctx); err != nil {
				return err
			}
			uploaded := s.Locate("#uploaded-files")
			if err := harness.Assert(ctx, uploaded, harness.IsVisible(), 0); err != nil {
				return err
			}
			text := func(ctx context.Context) (any, error) {
				st, err := uploaded.State(ctx)
				return st.Text, err
			}
			return c.AssertValue(ctx, text, harness.Occurrences(file, 1), 0)
		},
	}
}

func dragAndDropScenario(p Params) harness.Scenario {
	return harness.Scenario{
		Name:        "drag-and-drop",
		Description: "Swap the two columns and swap them back.",
		Tags:        []string{"drag"},
		Run: func(ctx context.Context, c *harness.Controller) error {
			s, err := c.Open(ctx, p.url("/drag_and_drop"))
			if err != nil {
				return err
			}
			a, b := s.Locate("#column-a"), s.Locate("#column-b")
			headers := func(left, right string) error {
				if err := harness.Assert(ctx, a.Locator("header"), harness.HasText(left), 0); err != nil {
					return err
				}
				return harness.Assert(ctx, b.Locator("header"), harness.HasText(right), 0)
			}

			if err := headers("A", "B"); err != nil {
				return err
			}
			if err := harness.SimulateDragDrop(ctx, a, b); err != nil {
				return err
			}
			if err := headers("B", "A"); err != nil {
				return err
			}
			if err := harness.SimulateDragDrop(ctx, b, a); err != nil {
				return err
			}
			return headers("A", "B")
		},
	}
}

type alertStep struct {
	button string
	expect harness.DialogExpectation
	result string
}

var alertSteps = []alertStep{
	{
		button: "Click for JS Alert",
		expect: harness.DialogExpectation{Type: browser.DialogAlert, Message: "I am a JS Alert", Action: harness.DialogAccept},
		result: "You successfully clicked an alert",
	},
	{
		button: "Click for JS Confirm",
		expect: harness.DialogExpectation{Type: browser.DialogConfirm, Message: "I am a JS Confirm", Action: harness.DialogAccept},
		result: "You clicked: Ok",
	},
	{
		button: "Click for JS Confirm",
		expect: harness.DialogExpectation{Type: browser.DialogConfirm, Message: "I am a JS Confirm", Action: harness.DialogDismiss},
		result: "You clicked: Cancel",
	},
	{
		button: "Click for JS Prompt",
		expect: harness.DialogExpectation{Type: browser.DialogPrompt, Message: "I am a JS prompt", Action: harness.DialogAcceptWithText, Text: "Input test"},
		result: "You entered: Input test",
	},
	{
		button: "Click for JS Prompt",
		expect: harness.DialogExpectation{Type: browser.DialogPrompt, Message: "I am a JS prompt", Action: harness.DialogDismiss},
		result: "You entered: null",
	},
}

func javascriptAlertsScenario(p Params) harness.Scenario {
	return harness.Scenario{
		Name:        "javascript-alerts",
		Description: "Answer an alert, both confirm outcomes and both prompt outcomes.",
		Tags:        []string{"dialog"},
		Run: func(ctx context.Context, c *harness.Controller) error {
			s, err := c.Open(ctx, p.url("/javascript_alerts"))
			if err != nil {
				return err
			}
			result := s.Locate("#result")
			for _, step := range alertSteps {
				pd, err := s.ExpectDialog(step.expect)
				if err != nil {
					return err
				}
				if err := s.GetByRole("button", step.button).Click(ctx); err != nil {
					return err
				}
				if err := pd.Wait(ctx); err != nil {
					return err
				}
				if err := harness.Assert(ctx, result, harness.HasText(step.result), 0); err != nil {
					return err
				}
			}
			return s.CheckDialogs()
		},
	}
}

func windowsScenario(p Params) harness.Scenario {
	return harness.Scenario{
		Name:        "windows",
		Description: "Follow a link into a new window, then return to the opener.",
		Tags:        []string{"popup"},
		Run: func(ctx context.Context, c *harness.Controller) error {
			s, err := c.Open(ctx, p.url("/windows"))
			if err != nil {
				return err
			}
			pp, err := s.ExpectPopup()
			if err != nil {
				return err
			}
			if err := s.GetByRole("link", "Click Here").Click(ctx); err != nil {
				return err
			}
			popup, err := harness.WaitForPopup(ctx, pp)
			if err != nil {
				return err
			}
			if err := harness.Assert(ctx, popup.Locate("h3"), harness.ContainsText("New Window"), 0); err != nil {
				return err
			}
			if err := s.BringToFront(ctx); err != nil {
				return err
			}
			return popup.Close()
		},
	}
}

func hoversScenario(p Params) harness.Scenario {
	return harness.Scenario{
		Name:        "hovers",
		Description: "Hover each avatar and check its caption and profile link.",
		Tags:        []string{"hover"},
		Run: func(ctx context.Context, c *harness.Controller) error {
			s, err := c.Open(ctx, p.url("/hovers"))
			if err != nil {
				return err
			}
			for i := 0; i < 3; i++ {
				figure := s.Locate(".figure", i)
				if err := figure.Hover(ctx); err != nil {
					return err
				}
				caption := figure.Locator(".figcaption")
				checks := []struct {
					l *harness.Locator
					p harness.Predicate
				}{
					{caption, harness.IsVisible()},
					{caption.Locator("h5"), harness.ContainsText(fmt.Sprintf("name: user%d", i+1))},
					{caption.Locator("a"), harness.IsVisible()},
					{caption.Locator("a"), harness.HasText("View profile")},
					{caption.Locator("a"), harness.HasAttribute("href", fmt.Sprintf("/users/%d", i+1))},
				}
				for _, chk := range checks {
					if err := harness.Assert(ctx, chk.l, chk.p, 0); err != nil {
						return err
					}
				}
			}
			return nil
		},
	}
}

func checkboxesScenario(p Params) harness.Scenario {
	return harness.Scenario{
		Name:        "checkboxes",
		Description: "Check and uncheck both boxes.",
		Tags:        []string{"checkbox"},
		Run: func(ctx context.Context, c *harness.Controller) error {
			s, err := c.Open(ctx, p.url("/checkboxes"))
			if err != nil {
				return err
			}
			for i := 0; i < 2; i++ {
				box := s.Locate(`input[type="checkbox"]`, i)
				if err := box.Check(ctx); err != nil {
					return err
				}
				if err := harness.Assert(ctx, box, harness.IsChecked(), 0); err != nil {
					return err
				}
				if err := box.Uncheck(ctx); err != nil {
					return err
				}
				if err := harness.Assert(ctx, box, harness.Not(harness.IsChecked()), 0); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
