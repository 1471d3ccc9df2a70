// renderer is a command-line path tracer.  It renders one of the built-in
// scenes to a PPM or PNG image, optionally checkpointing its samples so a
// render can be stopped and resumed with more samples later.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	httppprof "net/http/pprof"
	"os"
	"os/signal"
	"runtime/pprof"
	"strings"
	"syscall"
	"time"

	"lumen/healthz"
	"lumen/pixelsink"
	"lumen/preview"
	"lumen/render"
	"lumen/sampleimage"
	"lumen/scene"

	"cloud.google.com/go/profiler"
	"cloud.google.com/go/storage"
	"contrib.go.opencensus.io/exporter/stackdriver"
	cloudtrace "github.com/GoogleCloudPlatform/opentelemetry-operations-go/exporter/trace"
	"github.com/golang/glog"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"golang.org/x/term"
	googleopt "google.golang.org/api/option"
)

var (
	sceneName  = flag.String("scene", "random", "Built-in scene to render: "+strings.Join(scene.PresetNames(), ", "))
	outputFile = flag.String("output-file", "output.ppm", "Output image (.ppm or .png).  gs://bucket/object writes to Cloud Storage.")
	outputRows = flag.Int("output-rows", 225, "Output image rows")
	outputCols = flag.Int("output-cols", 400, "Output image columns")

	renderTargetSubsamples = flag.Int("render-target-subsamples", 100, "Number of samples to collect for each pixel")
	renderMaxDepth         = flag.Int("render-max-depth", 50, "Maximum number of bounces to consider")
	renderWorkers          = flag.Int("render-workers", render.DefaultOptions().Workers, "Number of row chunks rendered concurrently")
	renderRowsPerChunk     = flag.Int("render-rows-per-chunk", 8, "Number of image rows in each unit of work")
	seed                   = flag.Int64("seed", 1, "Seed for scene construction and sampling")

	sampleDBFile = flag.String("sample-db", "", "If set, checkpoint the accumulated samples to this file")
	resume       = flag.Bool("resume", false, "Should we re-open the sample db to add more samples?")

	debugListen          = flag.String("debug-listen", "", "Server address:port for debug endpoint.  Empty disables it.")
	monitoring           = flag.Bool("monitoring", false, "Enable trace export to Cloud Trace?")
	monitoringProject    = flag.String("monitoring-project", "", "Override project used for monitoring integration.  If not specified, the project associated with Application Default Credentials is used.")
	monitoringTraceRatio = flag.Float64("monitoring-trace-ratio", 1.0, "What ratio of traces should be exported?")
	enableMetrics        = flag.Bool("enable-metrics", false, "Enable metric export to Cloud Monitoring?")
	enableProfiling      = flag.Bool("enable-profiling", false, "Enable Cloud Profiler?")

	cpuprofile = flag.String("cpu-profile", "", "write cpu profile to `file`")
	memprofile = flag.String("mem-profile", "", "write memory profile to `file`")
)

func main() {
	flag.Parse()

	glog.CopyStandardLogTo("INFO")

	glog.Infof("flags:")
	flag.VisitAll(func(f *flag.Flag) {
		glog.Infof("%s: %q", f.Name, f.Value.String())
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		glog.Exitf("Error: %v", err)
	}
	glog.Flush()
}

// run owns everything that must be torn down before the process exits.
func run(ctx context.Context) error {
	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			return fmt.Errorf("while creating CPU profile: %w", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			return fmt.Errorf("while starting CPU profile: %w", err)
		}
		defer pprof.StopCPUProfile()
	}

	if *enableProfiling {
		if err := profiler.Start(profiler.Config{
			Service:        "lumen-renderer",
			ServiceVersion: "0.0.1",
			ProjectID:      *monitoringProject,
		}); err != nil {
			return fmt.Errorf("while initializing profiler: %w", err)
		}
	}

	if *monitoring {
		traceOpts := []cloudtrace.Option{}
		if *monitoringProject != "" {
			traceOpts = append(traceOpts, cloudtrace.WithProjectID(*monitoringProject))
		}

		_, traceShutdown, err := cloudtrace.InstallNewPipeline(traceOpts, sdktrace.WithSampler(sdktrace.TraceIDRatioBased(*monitoringTraceRatio)))
		if err != nil {
			return fmt.Errorf("while installing Cloud Trace pipeline: %w", err)
		}
		defer traceShutdown()
	}

	if *enableMetrics {
		if err := render.RegisterViews(); err != nil {
			return fmt.Errorf("while registering views: %w", err)
		}

		exporter, err := stackdriver.NewExporter(stackdriver.Options{
			ProjectID:         *monitoringProject,
			MetricPrefix:      "lumen",
			ReportingInterval: 60 * time.Second,
		})
		if err != nil {
			return fmt.Errorf("while initializing metrics exporter: %w", err)
		}
		if err := exporter.StartMetricsExporter(); err != nil {
			return fmt.Errorf("while starting metrics exporter: %w", err)
		}
		defer exporter.Flush()
		defer exporter.StopMetricsExporter()
	}

	if err := do(ctx); err != nil {
		return err
	}

	if *memprofile != "" {
		f, err := os.Create(*memprofile)
		if err != nil {
			return fmt.Errorf("while creating memory profile: %w", err)
		}
		defer f.Close()
		if err := pprof.WriteHeapProfile(f); err != nil {
			return fmt.Errorf("while writing memory profile: %w", err)
		}
	}

	return nil
}

func renderOptions() (render.Options, error) {
	options := render.DefaultOptions()
	options.MaxDepth = *renderMaxDepth
	options.TargetSubsamples = *renderTargetSubsamples
	options.Workers = *renderWorkers
	options.RowsPerChunk = *renderRowsPerChunk
	options.Seed = *seed
	if err := options.Validate(); err != nil {
		return render.Options{}, fmt.Errorf("while validating render options: %w", err)
	}
	return options, nil
}

// loadSampleDB opens the sample db to resume from, or starts an empty one.
func loadSampleDB(ctx context.Context, name string, resume bool, rows, cols int) (*sampleimage.Image, error) {
	if resume {
		if name == "" {
			return nil, errors.New("resumption requested, but no sample db given")
		}

		sampleDB, err := sampleimage.ReadFromFile(ctx, name)
		if err != nil {
			return nil, fmt.Errorf("resumption requested, but encountered error loading existing file: %w", err)
		}

		if sampleDB.RowSize != rows {
			return nil, fmt.Errorf("resumption requested, but the existing sample db doesn't have the right number of rows (got %d, want %d)", sampleDB.RowSize, rows)
		}

		if sampleDB.ColSize != cols {
			return nil, fmt.Errorf("resumption requested, but the existing sample db doesn't have the right number of columns (got %d, want %d)", sampleDB.ColSize, cols)
		}

		return sampleDB, nil
	}

	// Never blow away hours of render time.
	if name != "" {
		if _, err := os.Stat(name); err == nil {
			return nil, fmt.Errorf("resumption not requested, but sample db %q exists", name)
		}
	}

	sampleDB := &sampleimage.Image{}
	sampleDB.Resize(rows, cols)
	return sampleDB, nil
}

func do(ctx context.Context) error {
	if *outputRows <= 0 || *outputCols <= 0 {
		return fmt.Errorf("output size must be positive, got %dx%d", *outputCols, *outputRows)
	}

	preset, ok := scene.Presets[*sceneName]
	if !ok {
		return fmt.Errorf("unknown scene %q (want one of %s)", *sceneName, strings.Join(scene.PresetNames(), ", "))
	}

	options, err := renderOptions()
	if err != nil {
		return err
	}

	theScene, err := preset(float64(*outputCols)/float64(*outputRows), rand.New(rand.NewSource(*seed)))
	if err != nil {
		return fmt.Errorf("while building scene %q: %w", *sceneName, err)
	}

	sampleDB, err := loadSampleDB(ctx, *sampleDBFile, *resume, *outputRows, *outputCols)
	if err != nil {
		return err
	}

	var gcs *storage.Client
	if strings.HasPrefix(*outputFile, "gs://") {
		gcs, err = storage.NewClient(ctx, googleopt.WithGRPCConnectionPool(1))
		if err != nil {
			return fmt.Errorf("while creating GCS client: %w", err)
		}
		defer gcs.Close()
	}

	// The sink must exist before any render time is spent.
	out, err := pixelsink.OpenOutput(ctx, *outputFile, *outputRows, *outputCols, *resume, gcs)
	if err != nil {
		return fmt.Errorf("while opening output: %w", err)
	}

	fb := pixelsink.NewFramebuffer(*outputRows, *outputCols)
	if err := render.WriteImage(sampleDB, fb); err != nil {
		out.Abort()
		return fmt.Errorf("while seeding preview: %w", err)
	}

	pv := preview.New(fb, *sceneName, "/preview.png")
	readiness := healthz.NewUnready()

	if *debugListen != "" {
		debugServeMux := http.NewServeMux()
		debugServeMux.Handle("/healthz", healthz.New())
		debugServeMux.Handle("/readyz", readiness)
		debugServeMux.HandleFunc("/debug/pprof/", httppprof.Index)
		debugServeMux.HandleFunc("/debug/pprof/cmdline", httppprof.Cmdline)
		debugServeMux.HandleFunc("/debug/pprof/profile", httppprof.Profile)
		debugServeMux.HandleFunc("/debug/pprof/symbol", httppprof.Symbol)
		debugServeMux.HandleFunc("/debug/pprof/trace", httppprof.Trace)
		pv.Register(debugServeMux, "/preview")

		debugServer := &http.Server{
			Addr:    *debugListen,
			Handler: debugServeMux,

			ReadTimeout:    30 * time.Second,
			WriteTimeout:   60 * time.Second,
			MaxHeaderBytes: 1 << 20,
		}

		go func() {
			if err := debugServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				glog.Errorf("Debug server died: %v", err)
			}
		}()
		defer debugServer.Close()
	}

	readiness.SetReady(true)

	printer := newProgressPrinter(os.Stderr, term.IsTerminal(int(os.Stderr.Fd())), time.Second)
	progress := func(cur, total int) {
		printer.Progress(cur, total)
		pv.Progress(cur, total)
	}

	renderer := &render.Renderer{
		Scene:   theScene,
		Options: options,
		Name:    *sceneName,
		Live:    fb,
	}

	start := time.Now()
	renderErr := renderer.Render(ctx, sampleDB, progress)
	printer.Done()
	glog.Infof("Render finished in %v", time.Since(start))

	// Checkpoint even a cancelled render, so it can be resumed.
	if *sampleDBFile != "" {
		if err := sampleimage.WriteToFile(context.Background(), sampleDB, *sampleDBFile); err != nil {
			out.Abort()
			return fmt.Errorf("while writing sample db: %w", err)
		}
		glog.Infof("Wrote sample db to %s", *sampleDBFile)
	}

	if renderErr != nil {
		out.Abort()
		return fmt.Errorf("while rendering: %w", renderErr)
	}

	if err := render.WriteImage(sampleDB, out); err != nil {
		out.Abort()
		return fmt.Errorf("while writing image: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("while closing output: %w", err)
	}
	glog.Infof("Wrote image to %s", *outputFile)

	return nil
}
