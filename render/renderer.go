package render

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"lumen/camera"
	"lumen/rgb"
	"lumen/sampleimage"
	"lumen/scene"

	"github.com/golang/glog"
	"go.opencensus.io/stats"
	"go.opencensus.io/tag"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

var tracer = otel.Tracer("lumen/render")

// ProgressFunction is called with the number of samples taken so far and the
// number the render needs in total.
type ProgressFunction func(cur, total int)

// PixelWriter accepts finished pixels.
type PixelWriter interface {
	WritePixel(row, col int, p rgb.Pixel) error
}

// Renderer renders a scene through its first camera into a sample database.
// The scene must not be mutated while Render runs.
type Renderer struct {
	Scene   *scene.Scene
	Options Options

	// Name tags the renderer's metrics.
	Name string

	// Live, if set, receives each chunk's tone-mapped rows as soon as the
	// chunk is merged into the sample database.
	Live PixelWriter
}

type chunk struct {
	index          int
	rowSrc, rowLim int
}

// Render adds samples to sampleDB until every pixel holds
// Options.TargetSubsamples.  Rows are split into chunks of
// Options.RowsPerChunk; at most Options.Workers chunks are in flight.
//
// Each chunk works on a private cut of sampleDB and is pasted back when it
// finishes, so a cancelled render keeps every finished chunk.
func (r *Renderer) Render(ctx context.Context, sampleDB *sampleimage.Image, progress ProgressFunction) error {
	var span trace.Span
	ctx, span = tracer.Start(ctx, "Renderer.Render")
	defer span.End()

	span.SetAttributes(
		attribute.Int("rows", sampleDB.RowSize),
		attribute.Int("cols", sampleDB.ColSize),
		attribute.Int("target_subsamples", r.Options.TargetSubsamples),
	)

	if err := r.render(ctx, sampleDB, progress); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func (r *Renderer) render(ctx context.Context, sampleDB *sampleimage.Image, progress ProgressFunction) error {
	if err := r.Options.Validate(); err != nil {
		return fmt.Errorf("while validating options: %w", err)
	}
	if r.Scene == nil {
		return errors.New("renderer has no scene")
	}
	if err := r.Scene.Validate(); err != nil {
		return fmt.Errorf("while validating scene: %w", err)
	}
	if progress == nil {
		progress = func(int, int) {}
	}

	ctx, err := tag.New(ctx, tag.Upsert(keyScene, r.Name))
	if err != nil {
		return fmt.Errorf("while tagging context: %w", err)
	}

	// Existing samples feed the seeds, so resuming a render does not repeat
	// the random choices of the first run.
	existingSamples := sampleDB.TotalSamples()
	totalSamples := r.missingSamples(sampleDB)

	// mu guards sampleDB, curProgress and Live.
	mu := sync.Mutex{}
	curProgress := 0
	progress(0, totalSamples)

	eg, egCtx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(int64(r.Options.Workers))

	for _, ch := range r.chunks(sampleDB.RowSize) {
		ch := ch

		if err := sem.Acquire(egCtx, 1); err != nil {
			break
		}

		eg.Go(func() error {
			defer sem.Release(1)

			mu.Lock()
			cut := sampleDB.Cut(ch.rowSrc, ch.rowLim, 0, sampleDB.ColSize)
			mu.Unlock()

			rng := rand.New(rand.NewSource(chunkSeed(r.Options.Seed, ch.index, existingSamples)))

			rowDone := func(samples int) {
				mu.Lock()
				defer mu.Unlock()
				curProgress += samples
				progress(curProgress, totalSamples)
			}

			start := time.Now()
			renderErr := r.renderChunk(egCtx, cut, ch, sampleDB.RowSize, rng, rowDone)

			mu.Lock()
			defer mu.Unlock()
			sampleDB.Paste(cut, ch.rowSrc, 0)

			if renderErr != nil {
				if !errors.Is(renderErr, context.Canceled) {
					glog.Errorf("Rendering rows [%d, %d) failed: %v", ch.rowSrc, ch.rowLim, renderErr)
				}
				return fmt.Errorf("while rendering rows [%d, %d): %w", ch.rowSrc, ch.rowLim, renderErr)
			}

			stats.Record(egCtx, chunkLatency.M(float64(time.Since(start))/float64(time.Millisecond)))
			glog.V(2).Infof("Finished rows [%d, %d) in %v", ch.rowSrc, ch.rowLim, time.Since(start))

			if r.Live != nil {
				if err := WriteRows(sampleDB, ch.rowSrc, ch.rowLim, r.Live); err != nil {
					return fmt.Errorf("while updating live display: %w", err)
				}
			}
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return fmt.Errorf("while waiting for completion of errgroup: %w", err)
	}

	// A cancellation observed only by sem.Acquire leaves chunks unrendered.
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("while scheduling chunks: %w", err)
	}

	return nil
}

func (r *Renderer) renderChunk(ctx context.Context, cut *sampleimage.Image, ch chunk, imgRows int, rng *rand.Rand, rowDone func(int)) error {
	var span trace.Span
	ctx, span = tracer.Start(ctx, "Renderer.renderChunk")
	defer span.End()
	span.SetAttributes(attribute.Int("row_src", ch.rowSrc), attribute.Int("row_lim", ch.rowLim))

	cam := r.Scene.Cameras[0]

	for cr := ch.rowSrc; cr < ch.rowLim; cr++ {
		if err := ctx.Err(); err != nil {
			span.SetStatus(codes.Error, err.Error())
			return err
		}

		samples := r.renderRow(cut, cam, cr, cr-ch.rowSrc, imgRows, rng)

		stats.Record(ctx, samplesTraced.M(int64(samples)), rowsFinished.M(1))
		rowDone(samples)
	}
	return nil
}

// renderRow tops up every pixel of image row cr, stored at row r of cut, and
// returns the number of samples it took.
func (r *Renderer) renderRow(cut *sampleimage.Image, cam camera.Camera, cr, row, imgRows int, rng *rand.Rand) int {
	samplesCollected := 0
	for c := 0; c < cut.ColSize; c++ {
		have := cut.ReadSample(row, c).Count
		for cs := have; cs < r.Options.TargetSubsamples; cs++ {
			query := cam.ImageToRay(cr, imgRows, c, cut.ColSize, rng)
			cut.RecordSample(row, c, RayColor(r.Scene, query, r.Options.MaxDepth, rng, &r.Options))
			samplesCollected++
		}
	}
	return samplesCollected
}

func (r *Renderer) chunks(rows int) []chunk {
	var out []chunk
	for rowSrc := 0; rowSrc < rows; rowSrc += r.Options.RowsPerChunk {
		rowLim := rowSrc + r.Options.RowsPerChunk
		if rowLim > rows {
			rowLim = rows
		}
		out = append(out, chunk{index: len(out), rowSrc: rowSrc, rowLim: rowLim})
	}
	return out
}

func (r *Renderer) missingSamples(sampleDB *sampleimage.Image) int {
	total := 0
	for _, n := range sampleDB.Counts {
		if missing := r.Options.TargetSubsamples - int(n); missing > 0 {
			total += missing
		}
	}
	return total
}

// chunkSeed depends only on the chunking, never on the worker count or the
// order chunks are scheduled in.
func chunkSeed(seed int64, chunkIndex, existingSamples int) int64 {
	const prime = 1000003
	return seed*prime*prime + int64(chunkIndex)*prime + int64(existingSamples)
}

// WriteRows tone-maps rows [rowSrc, rowLim) of sampleDB into w in row-major
// order.
func WriteRows(sampleDB *sampleimage.Image, rowSrc, rowLim int, w PixelWriter) error {
	for row := rowSrc; row < rowLim; row++ {
		for col := 0; col < sampleDB.ColSize; col++ {
			smp := sampleDB.ReadSample(row, col)
			if err := w.WritePixel(row, col, rgb.ToneMap(smp.Sum, smp.Count)); err != nil {
				return fmt.Errorf("while writing pixel (%d, %d): %w", row, col, err)
			}
		}
	}
	return nil
}

// WriteImage tone-maps the whole of sampleDB into w, top row first.
func WriteImage(sampleDB *sampleimage.Image, w PixelWriter) error {
	return WriteRows(sampleDB, 0, sampleDB.RowSize, w)
}
