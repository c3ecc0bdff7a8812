package demosite

import (
	"strings"

	"github.com/xkilldash9x/lancet/internal/browser/fakebrowser"
)

// Fake paths that only exist so handlers can swap documents.
const (
	fakeUploadedPath = "/upload/result"
	fakeErrorPath    = "/upload/error"
)

// NewFakeSite returns the replica as a fakebrowser.Site, with the page
// scripts re-expressed as DOM handlers.
func NewFakeSite() *fakebrowser.Site {
	site := fakebrowser.NewSite()
	for path, body := range Static() {
		site.Page(path, body)
	}
	site.Page(fakeUploadedPath, Uploaded([]string{"placeholder"}))
	site.Page(fakeErrorPath, UploadError)

	// Upload submit posts the chosen file names.
	site.On(fakebrowser.EventClick, "#file-submit", func(ev *fakebrowser.Event) error {
		names := fakebrowser.UploadedFiles(ev.Doc.Find("#file-upload"))
		if len(names) == 0 {
			return ev.Navigate(fakeErrorPath)
		}
		if err := ev.Navigate(fakeUploadedPath); err != nil {
			return err
		}
		ev.Doc.Find("#uploaded-files").SetText(strings.Join(names, "\n"))
		return nil
	})

	// Drag and drop swaps the column headers.
	site.On(fakebrowser.EventDrop, ".column", func(ev *fakebrowser.Event) error {
		src := ev.Source.Closest(".column")
		if src.Length() == 0 || src.IsSelection(ev.Target) {
			return nil
		}
		srcHTML, err := src.Html()
		if err != nil {
			return err
		}
		dstHTML, err := ev.Target.Html()
		if err != nil {
			return err
		}
		src.SetHtml(dstHTML)
		ev.Target.SetHtml(srcHTML)
		return nil
	})

	// JavaScript alerts.
	result := func(ev *fakebrowser.Event, msg string) {
		ev.Doc.Find("#result").SetText(msg)
	}
	site.On(fakebrowser.EventClick, `button[onclick="jsAlert()"]`, func(ev *fakebrowser.Event) error {
		ev.Alert("I am a JS Alert")
		result(ev, "You successfully clicked an alert")
		return nil
	})
	site.On(fakebrowser.EventClick, `button[onclick="jsConfirm()"]`, func(ev *fakebrowser.Event) error {
		if ev.Confirm("I am a JS Confirm") {
			result(ev, "You clicked: Ok")
		} else {
			result(ev, "You clicked: Cancel")
		}
		return nil
	})
	site.On(fakebrowser.EventClick, `button[onclick="jsPrompt()"]`, func(ev *fakebrowser.Event) error {
		text, ok := ev.Prompt("I am a JS prompt", "")
		if !ok {
			text = "null"
		}
		result(ev, "You entered: "+text)
		return nil
	})

	// Hovering anywhere hides every caption; hovering a figure shows its own.
	site.On(fakebrowser.EventHover, "body", func(ev *fakebrowser.Event) error {
		ev.Doc.Find(".figcaption").SetAttr("style", "display: none")
		return nil
	})
	site.On(fakebrowser.EventHover, ".figure", func(ev *fakebrowser.Event) error {
		ev.Target.Find(".figcaption").RemoveAttr("style")
		return nil
	})

	return site
}
