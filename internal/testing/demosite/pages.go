// Package demosite is a local replica of the interactive pages of
// the-internet.herokuapp.com. The same markup backs an httptest server for
// real browsers and a fakebrowser.Site for browserless tests.
package demosite

import (
	"fmt"
	"html"
	"strings"
)

const layout = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>The Internet</title>
<style>
  .figure { display: inline-block; width: 160px; height: 160px; margin: 8px; background: #eee; }
  .figure img { width: 160px; height: 120px; display: block; }
  .figure:hover .figcaption { display: block !important; }
  .column { width: 150px; height: 150px; float: left; border: 2px solid #666; margin-right: 5px; text-align: center; }
  .column header { font-size: 24px; }
  .column.over { border: 2px dashed #000; }
</style>
</head>
<body>
<div id="content" class="large-12 columns">
%s
</div>
</body>
</html>`

func page(body string) string {
	return fmt.Sprintf(layout, body)
}

// UploadForm is served at /upload for GET.
var UploadForm = page(`<div class="example">
  <h3>File Uploader</h3>
  <p>Choose a file on your system and then click upload.</p>
  <form method="POST" enctype="multipart/form-data" action="/upload">
    <input id="file-upload" type="file" name="file">
    <br>
    <input id="file-submit" class="button" type="submit" value="Upload">
  </form>
</div>`)

const uploadedBody = `<div class="example">
  <h3>File Uploaded!</h3>
  <div id="uploaded-files" class="panel text-center">
  %s
  </div>
</div>`

// Uploaded renders the confirmation page listing names.
func Uploaded(names []string) string {
	escaped := make([]string, len(names))
	for i, n := range names {
		escaped[i] = html.EscapeString(n)
	}
	return page(fmt.Sprintf(uploadedBody, strings.Join(escaped, "\n  ")))
}

// UploadError is rendered when the form is submitted without a file.
var UploadError = page(`<h1>Internal Server Error</h1>`)

var DragAndDrop = page(`<div class="example">
  <h3>Drag and Drop</h3>
  <div id="columns">
    <div class="column" id="column-a" draggable="true"><header>A</header></div>
    <div class="column" id="column-b" draggable="true"><header>B</header></div>
  </div>
</div>
<script>
  var dragSrc = null;
  function onStart(e) {
    dragSrc = this;
    e.dataTransfer.effectAllowed = 'move';
    e.dataTransfer.setData('text/html', this.innerHTML);
  }
  function onOver(e) { e.preventDefault(); e.dataTransfer.dropEffect = 'move'; return false; }
  function onEnter() { this.classList.add('over'); }
  function onLeave() { this.classList.remove('over'); }
  function onDrop(e) {
    e.stopPropagation();
    if (dragSrc !== this) {
      dragSrc.innerHTML = this.innerHTML;
      this.innerHTML = e.dataTransfer.getData('text/html');
    }
    return false;
  }
  function onEnd() {
    document.querySelectorAll('.column').forEach(function (c) { c.classList.remove('over'); });
  }
  document.querySelectorAll('.column').forEach(function (c) {
    c.addEventListener('dragstart', onStart, false);
    c.addEventListener('dragenter', onEnter, false);
    c.addEventListener('dragover', onOver, false);
    c.addEventListener('dragleave', onLeave, false);
    c.addEventListener('drop', onDrop, false);
    c.addEventListener('dragend', onEnd, false);
  });
</script>`)

var JavaScriptAlerts = page(`<div class="example">
  <h3>JavaScript Alerts</h3>
  <p>Here are some examples of different JavaScript alerts which can be troublesome for automation</p>
  <ul>
    <li><button onclick="jsAlert()">Click for JS Alert</button></li>
    <li><button onclick="jsConfirm()">Click for JS Confirm</button></li>
    <li><button onclick="jsPrompt()">Click for JS Prompt</button></li>
  </ul>
  <h4>Result:</h4>
  <p id="result" style="color:green"></p>
</div>
<script>
  function log(msg) { document.getElementById('result').textContent = msg; }
  function jsAlert() { alert('I am a JS Alert'); log('You successfully clicked an alert'); }
  function jsConfirm() { var r = confirm('I am a JS Confirm'); log('You clicked: ' + (r ? 'Ok' : 'Cancel')); }
  function jsPrompt() { var r = prompt('I am a JS prompt'); log('You entered: ' + r); }
</script>`)

var Windows = page(`<div class="example">
  <h3>Opening a new window</h3>
  <a href="/windows/new" target="_blank">Click Here</a>
</div>`)

var NewWindow = page(`<div class="example">
  <h3>New Window</h3>
</div>`)

var Hovers = page(`<div class="example">
  <h3>Hovers</h3>
  <p>Hover over the image for additional information</p>
  ` + figure(1) + figure(2) + figure(3) + `
</div>`)

func figure(n int) string {
	return fmt.Sprintf(`<div class="figure">
    <img src="/img/avatar-blank.jpg" alt="User Avatar">
    <div class="figcaption" style="display: none">
      <h5>name: user%d</h5>
      <a href="/users/%d">View profile</a>
    </div>
  </div>
  `, n, n)
}

var Checkboxes = page(`<div class="example">
  <h3>Checkboxes</h3>
  <form id="checkboxes">
    <input type="checkbox"> checkbox 1<br>
    <input type="checkbox" checked> checkbox 2
  </form>
</div>`)

// UserProfile is the target of the hover profile links.
func UserProfile(n string) string {
	return page(fmt.Sprintf(`<h1>Not Found</h1><p>user%s</p>`, html.EscapeString(n)))
}

// Static lists every page served for GET at a fixed path.
func Static() map[string]string {
	return map[string]string{
		"/upload":            UploadForm,
		"/drag_and_drop":     DragAndDrop,
		"/javascript_alerts": JavaScriptAlerts,
		"/windows":           Windows,
		"/windows/new":       NewWindow,
		"/hovers":            Hovers,
		"/checkboxes":        Checkboxes,
	}
}
