package preview

import (
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"lumen/pixelsink"
	"lumen/rgb"

	"github.com/google/go-cmp/cmp"
)

func TestPreview(t *testing.T) {
	fb := pixelsink.NewFramebuffer(2, 2)
	if err := fb.WritePixel(0, 1, rgb.Pixel{200, 100, 50}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	h := New(fb, "single-sphere", "/preview.png")
	h.Progress(25, 100)

	mux := http.NewServeMux()
	h.Register(mux, "/preview")

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/preview", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("page: got status %d", rec.Code)
	}
	body := rec.Body.String()
	for _, want := range []string{"single-sphere", "25 / 100 (25%)", `src="/preview.png?t=`} {
		if !strings.Contains(body, want) {
			t.Errorf("page missing %q:\n%s", want, body)
		}
	}

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", "/preview.png", nil))
	if got := rec.Header().Get("Content-Type"); got != "image/png" {
		t.Errorf("Content-Type: got %q, want image/png", got)
	}
	img, err := png.Decode(rec.Body)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	r, g, b, _ := img.At(1, 0).RGBA()
	if diff := cmp.Diff([]uint32{r >> 8, g >> 8, b >> 8}, []uint32{200, 100, 50}); diff != "" {
		t.Errorf("bad preview pixel; diff (-got +want)\n%s", diff)
	}
}

func TestPreviewBeforeProgress(t *testing.T) {
	h := New(pixelsink.NewFramebuffer(1, 1), "random", "/preview.png")

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/preview", nil))
	if !strings.Contains(rec.Body.String(), "0 / 0 (0%)") {
		t.Errorf("unexpected page before any progress:\n%s", rec.Body.String())
	}
}
