package render

import (
	"context"
	"errors"
	"math/rand"
	"testing"

	"lumen/camera"
	"lumen/contact"
	"lumen/material"
	"lumen/ray"
	"lumen/rgb"
	"lumen/sampleimage"
	"lumen/scene"
	"lumen/vmath/vec3"

	"github.com/google/go-cmp/cmp"
)

func testCamera(t *testing.T) camera.Camera {
	t.Helper()
	cam, err := camera.NewThinLens(camera.Params{
		Eye:         vec3.T{0, 0, 0},
		LookAt:      vec3.T{0, 0, -1},
		Up:          vec3.T{0, 1, 0},
		VFOV:        90,
		AspectRatio: 1,
		FocusDist:   1,
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	return cam
}

func singleSphere(t *testing.T) *scene.Scene {
	t.Helper()
	s, err := scene.SingleSphere(1, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	return s
}

func testOptions() Options {
	opts := DefaultOptions()
	opts.MaxDepth = 8
	opts.TargetSubsamples = 4
	opts.Workers = 3
	opts.RowsPerChunk = 2
	opts.Seed = 42
	return opts
}

func TestRayColorDepthZeroIsBlack(t *testing.T) {
	opts := DefaultOptions()
	rng := rand.New(rand.NewSource(1))

	scenes := map[string]*scene.Scene{
		"empty":         {},
		"single-sphere": singleSphere(t),
	}
	for name, s := range scenes {
		for _, dir := range []vec3.T{{0, 1, 0}, {0, 0, -1}, {0, -1, 0}} {
			got := RayColor(s, ray.Ray{Slope: dir}, 0, rng, &opts)
			if diff := cmp.Diff(got, rgb.Black); diff != "" {
				t.Errorf("%s dir=%v: depth 0 not black; diff (-got +want)\n%s", name, dir, diff)
			}
		}
	}
}

func TestRayColorSkyStraightUp(t *testing.T) {
	opts := DefaultOptions()
	got := RayColor(&scene.Scene{}, ray.Ray{Slope: vec3.T{0, 1, 0}}, 50, rand.New(rand.NewSource(1)), &opts)
	if diff := cmp.Diff(got, rgb.SkyBlue); diff != "" {
		t.Errorf("bad sky color; diff (-got +want)\n%s", diff)
	}

	got = RayColor(&scene.Scene{}, ray.Ray{Slope: vec3.T{0, -3, 0}}, 50, rand.New(rand.NewSource(1)), &opts)
	if diff := cmp.Diff(got, rgb.White); diff != "" {
		t.Errorf("bad horizon color; diff (-got +want)\n%s", diff)
	}
}

func TestRayColorCustomBackground(t *testing.T) {
	opts := DefaultOptions()
	opts.Background = rgb.Gradient{Horizon: rgb.Red, Sky: rgb.Red}
	got := RayColor(&scene.Scene{}, ray.Ray{Slope: vec3.T{1, 0.3, 0}}, 1, rand.New(rand.NewSource(1)), &opts)
	if diff := cmp.Diff(got, rgb.Red); diff != "" {
		t.Errorf("bad background; diff (-got +want)\n%s", diff)
	}
}

type absorber struct{}

func (absorber) Scatter(c contact.Contact, rng *rand.Rand) (material.ScatterInfo, bool) {
	return material.ScatterInfo{}, false
}

func TestRayColorAbsorbedIsBlack(t *testing.T) {
	s := &scene.Scene{}
	m := s.AddMaterial(absorber{})
	if err := s.AddSphere(vec3.T{0, 0, -1}, 0.5, m); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	opts := DefaultOptions()
	got := RayColor(s, ray.Ray{Slope: vec3.T{0, 0, -1}}, 50, rand.New(rand.NewSource(1)), &opts)
	if diff := cmp.Diff(got, rgb.Black); diff != "" {
		t.Errorf("absorbed path not black; diff (-got +want)\n%s", diff)
	}
}

func TestRayColorAttenuatesByAlbedo(t *testing.T) {
	// A mirror overhead sends the ray straight down into the white horizon.
	s := &scene.Scene{}
	m := s.AddMaterial(material.NewMetal(vec3.T{0.5, 0.25, 1}, 0))
	if err := s.AddSphere(vec3.T{0, 10, 0}, 1, m); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	opts := DefaultOptions()
	got := RayColor(s, ray.Ray{Slope: vec3.T{0, 1, 0}}, 50, rand.New(rand.NewSource(1)), &opts)
	want := vec3.MulVV(vec3.T{0.5, 0.25, 1}, rgb.White)
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("bad attenuation; diff (-got +want)\n%s", diff)
	}
}

func TestOptionsValidate(t *testing.T) {
	good := DefaultOptions()
	if err := good.Validate(); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}

	mutations := map[string]func(*Options){
		"depth":   func(o *Options) { o.MaxDepth = 0 },
		"samples": func(o *Options) { o.TargetSubsamples = -1 },
		"workers": func(o *Options) { o.Workers = 0 },
		"chunk":   func(o *Options) { o.RowsPerChunk = 0 },
		"epsilon": func(o *Options) { o.Epsilon = -0.1 },
	}
	for name, mutate := range mutations {
		o := DefaultOptions()
		mutate(&o)
		if err := o.Validate(); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}
}

func TestRenderFillsEveryPixel(t *testing.T) {
	r := &Renderer{Scene: singleSphere(t), Options: testOptions(), Name: "test"}

	db := &sampleimage.Image{}
	db.Resize(5, 7)

	var lastCur, lastTotal int
	err := r.Render(context.Background(), db, func(cur, total int) {
		lastCur, lastTotal = cur, total
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	for row := 0; row < db.RowSize; row++ {
		for col := 0; col < db.ColSize; col++ {
			if got := db.ReadSample(row, col).Count; got != 4 {
				t.Errorf("pixel (%d, %d) has %d samples, want 4", row, col, got)
			}
		}
	}
	if lastCur != 5*7*4 || lastTotal != 5*7*4 {
		t.Errorf("final progress: got %d/%d, want %d/%d", lastCur, lastTotal, 5*7*4, 5*7*4)
	}
}

func TestRenderIsIndependentOfWorkerCount(t *testing.T) {
	render := func(workers int) *sampleimage.Image {
		opts := testOptions()
		opts.Workers = workers
		r := &Renderer{Scene: singleSphere(t), Options: opts}

		db := &sampleimage.Image{}
		db.Resize(6, 4)
		if err := r.Render(context.Background(), db, nil); err != nil {
			t.Fatalf("Unexpected error: %v", err)
		}
		return db
	}

	if diff := cmp.Diff(render(1), render(4)); diff != "" {
		t.Errorf("render depends on worker count; diff (-got +want)\n%s", diff)
	}
}

func TestRenderResumeSkipsFinishedPixels(t *testing.T) {
	opts := testOptions()
	r := &Renderer{Scene: singleSphere(t), Options: opts}

	db := &sampleimage.Image{}
	db.Resize(3, 3)
	if err := r.Render(context.Background(), db, nil); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	before := db.Cut(0, 3, 0, 3)

	calls := 0
	if err := r.Render(context.Background(), db, func(cur, total int) {
		calls++
		if total != 0 {
			t.Errorf("finished image reports %d samples to take", total)
		}
	}); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if calls == 0 {
		t.Errorf("progress never called")
	}
	if diff := cmp.Diff(db, before); diff != "" {
		t.Errorf("finished pixels were re-rendered; diff (-got +want)\n%s", diff)
	}

	r.Options.TargetSubsamples = 6
	if err := r.Render(context.Background(), db, nil); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got := db.TotalSamples(); got != 9*6 {
		t.Errorf("TotalSamples after topping up: got %d, want %d", got, 9*6)
	}
}

func TestRenderCancelled(t *testing.T) {
	r := &Renderer{Scene: singleSphere(t), Options: testOptions()}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	db := &sampleimage.Image{}
	db.Resize(4, 4)
	if err := r.Render(ctx, db, nil); !errors.Is(err, context.Canceled) {
		t.Errorf("got error %v, want context.Canceled", err)
	}
}

func TestRenderRejectsSceneWithoutCamera(t *testing.T) {
	r := &Renderer{Scene: &scene.Scene{}, Options: testOptions()}

	db := &sampleimage.Image{}
	db.Resize(1, 1)
	if err := r.Render(context.Background(), db, nil); err == nil {
		t.Errorf("expected error for scene without camera")
	}
}

type recorder struct {
	pixels map[[2]int]rgb.Pixel
	order  [][2]int
}

func (rec *recorder) WritePixel(row, col int, p rgb.Pixel) error {
	if rec.pixels == nil {
		rec.pixels = map[[2]int]rgb.Pixel{}
	}
	rec.pixels[[2]int{row, col}] = p
	rec.order = append(rec.order, [2]int{row, col})
	return nil
}

func TestWriteImageSkyScene(t *testing.T) {
	s := &scene.Scene{}
	s.AddCamera(testCamera(t))

	live := &recorder{}
	r := &Renderer{Scene: s, Options: testOptions(), Live: live}

	db := &sampleimage.Image{}
	db.Resize(3, 2)
	if err := r.Render(context.Background(), db, nil); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(live.pixels) != 6 {
		t.Errorf("live display got %d pixels, want 6", len(live.pixels))
	}

	out := &recorder{}
	if err := WriteImage(db, out); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	wantOrder := [][2]int{{0, 0}, {0, 1}, {1, 0}, {1, 1}, {2, 0}, {2, 1}}
	if diff := cmp.Diff(out.order, wantOrder); diff != "" {
		t.Errorf("bad pixel order; diff (-got +want)\n%s", diff)
	}

	// The sky is bluest at the top of the picture.
	top, bottom := out.pixels[[2]int{0, 0}], out.pixels[[2]int{2, 0}]
	if !(top[0] < bottom[0]) || top[2] != 255 || bottom[2] != 255 {
		t.Errorf("sky gradient inverted: top=%v bottom=%v", top, bottom)
	}
}

func TestWriteRowsPropagatesErrors(t *testing.T) {
	db := &sampleimage.Image{}
	db.Resize(1, 1)

	want := errors.New("sink full")
	err := WriteRows(db, 0, 1, failingWriter{want})
	if !errors.Is(err, want) {
		t.Errorf("got error %v, want %v", err, want)
	}
}

type failingWriter struct{ err error }

func (f failingWriter) WritePixel(row, col int, p rgb.Pixel) error { return f.err }
