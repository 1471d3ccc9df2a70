// Package preview serves a live view of a render in progress.
package preview

import (
	"html/template"
	"net/http"
	"sync"
	"time"

	"lumen/pixelsink"

	"github.com/golang/glog"
)

// Handler serves an auto-refreshing status page at its root and the current
// framebuffer as PNG at ImagePath.
type Handler struct {
	fb        *pixelsink.Framebuffer
	imagePath string
	start     time.Time

	mu          sync.Mutex
	scene       string
	cur, total  int
	lastUpdated time.Time
}

func New(fb *pixelsink.Framebuffer, scene, imagePath string) *Handler {
	return &Handler{
		fb:        fb,
		imagePath: imagePath,
		start:     time.Now(),
		scene:     scene,
	}
}

// Progress has the signature of render.ProgressFunction.
func (h *Handler) Progress(cur, total int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cur, h.total = cur, total
	h.lastUpdated = time.Now()
}

// Register installs the page at pagePath and the image at the handler's
// image path.
func (h *Handler) Register(mux *http.ServeMux, pagePath string) {
	mux.Handle(pagePath, h)
	mux.HandleFunc(h.imagePath, h.ServeImage)
}

type pageData struct {
	Scene      string
	ImagePath  string
	Cur, Total int
	Percent    int
	Elapsed    time.Duration
	Refreshed  int64
}

var pageTemplate = template.Must(template.New("preview").Parse(`
<!DOCTYPE html>
<html lang="en">
  <head>
    <meta charset="utf-8">
    <title>Render Preview</title>
  </head>
  <body>
    <h1>Render Preview</h1>
    <table>
      <tbody>
        <tr><td>Scene</td><td>{{.Scene}}</td></tr>
        <tr><td>Elapsed</td><td>{{.Elapsed}}</td></tr>
        <tr><td>Samples</td><td>{{.Cur}} / {{.Total}} ({{.Percent}}%)</td></tr>
      </tbody>
    </table>
    <img src="{{.ImagePath}}?t={{.Refreshed}}" style="image-rendering: pixelated">
  </body>
  <script>setTimeout(function() {location.reload();}, 5000);</script>
</html>
`))

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	data := pageData{
		Scene:     h.scene,
		ImagePath: h.imagePath,
		Cur:       h.cur,
		Total:     h.total,
		Elapsed:   time.Since(h.start).Round(time.Second),
		Refreshed: h.lastUpdated.UnixNano(),
	}
	h.mu.Unlock()

	if data.Total > 0 {
		data.Percent = 100 * data.Cur / data.Total
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplate.Execute(w, data); err != nil {
		glog.Errorf("Error executing preview template: %v", err)
	}
}

func (h *Handler) ServeImage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	if err := h.fb.EncodePNG(w); err != nil {
		glog.Errorf("Error serving preview image: %v", err)
	}
}
