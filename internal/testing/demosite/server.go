package demosite

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
)

// Handler serves the replica over HTTP.
func Handler() http.Handler {
	mux := http.NewServeMux()
	for path, body := range Static() {
		if path == "/upload" {
			continue
		}
		mux.HandleFunc("GET "+path, serveHTML(body))
	}
	mux.HandleFunc("GET /upload", serveHTML(UploadForm))
	mux.HandleFunc("POST /upload", handleUpload)
	mux.HandleFunc("GET /users/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, UserProfile(r.PathValue("id")))
	})
	mux.HandleFunc("GET /img/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(avatar)
	})
	return mux
}

// NewServer starts an httptest server for the replica. Callers close it.
func NewServer() *httptest.Server {
	return httptest.NewServer(Handler())
}

func serveHTML(body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, body)
	}
}

func handleUpload(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, UploadError)
		return
	}
	var names []string
	for _, fh := range r.MultipartForm.File["file"] {
		if strings.TrimSpace(fh.Filename) != "" {
			names = append(names, fh.Filename)
		}
	}
	if len(names) == 0 {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, UploadError)
		return
	}
	_, _ = io.WriteString(w, Uploaded(names))
}

var avatar = func() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		for y := 0; y < 4; y++ {
			img.Set(x, y, color.Gray{Y: 200})
		}
	}
	var buf bytes.Buffer
	_ = png.Encode(&buf, img)
	return buf.Bytes()
}()
