// lenstrace evaluates and intersects the surfaces of a lens prescription.
package main

import (
	"context"
	"flag"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"row-major/lenstrace/contact"
	"row-major/lenstrace/metrics"
	"row-major/lenstrace/prescription"
	"row-major/lenstrace/source"
	"row-major/lenstrace/surface"
	"row-major/lenstrace/trace"
	"row-major/lenstrace/vmath/vec3"

	"cloud.google.com/go/profiler"
	"cloud.google.com/go/storage"
	"contrib.go.opencensus.io/exporter/stackdriver"
	cloudtrace "github.com/GoogleCloudPlatform/opentelemetry-operations-go/exporter/trace"
	"github.com/golang/glog"
	"github.com/spf13/cobra"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	googleopt "google.golang.org/api/option"
)

var cmdRoot = &cobra.Command{
	Use:               "lenstrace",
	Short:             "Evaluate and intersect optical surfaces",
	PersistentPreRunE: setUp,
	PersistentPostRun: tearDown,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

var (
	prescriptionURI string
	surfaceRef      string

	monitoring           bool
	monitoringProject    string
	monitoringTraceRatio float64
	enableMetrics        bool
	enableProfiling      bool
)

func init() {
	cmdRoot.PersistentFlags().StringVar(&prescriptionURI, "prescription", "", "Prescription YAML, a local path or gs://bucket/object.")
	cmdRoot.PersistentFlags().StringVar(&surfaceRef, "surface", "0", "Surface to use, by index or name.")

	cmdRoot.PersistentFlags().BoolVar(&monitoring, "monitoring", false, "Export traces to Cloud Trace?")
	cmdRoot.PersistentFlags().StringVar(&monitoringProject, "monitoring-project", "", "Override project used for monitoring integration.  If not specified, the project associated with Application Default Credentials is used.")
	cmdRoot.PersistentFlags().Float64Var(&monitoringTraceRatio, "monitoring-trace-ratio", 0.01, "What ratio of traces should be exported?")
	cmdRoot.PersistentFlags().BoolVar(&enableMetrics, "enable-metrics", false, "Export intersection metrics to Cloud Monitoring?")
	cmdRoot.PersistentFlags().BoolVar(&enableProfiling, "enable-profiling", false, "Run Cloud Profiler?")

	// Expose glog's flags (-v, -logtostderr, ...).
	cmdRoot.PersistentFlags().AddGoFlagSet(flag.CommandLine)
}

// shutdowns run in reverse order when the command finishes.
var shutdowns []func()

func setUp(cmd *cobra.Command, args []string) error {
	// glog insists that the standard flag set has been parsed.
	flag.CommandLine.Parse([]string{})

	glog.Infof("flags:")
	glog.Infof("prescription: %v", prescriptionURI)
	glog.Infof("surface: %v", surfaceRef)
	glog.Infof("monitoring: %v", monitoring)
	glog.Infof("monitoring-project: %v", monitoringProject)
	glog.Infof("monitoring-trace-ratio: %v", monitoringTraceRatio)
	glog.Infof("enable-metrics: %v", enableMetrics)
	glog.Infof("enable-profiling: %v", enableProfiling)

	if enableProfiling {
		if err := profiler.Start(profiler.Config{
			Service:        "lenstrace",
			ServiceVersion: "0.0.1",
			ProjectID:      monitoringProject,
		}); err != nil {
			return fmt.Errorf("while starting Cloud Profiler: %w", err)
		}
	}

	if monitoring {
		traceOpts := []cloudtrace.Option{}
		if monitoringProject != "" {
			traceOpts = append(traceOpts, cloudtrace.WithProjectID(monitoringProject))
		}
		_, traceShutdown, err := cloudtrace.InstallNewPipeline(traceOpts, sdktrace.WithSampler(sdktrace.TraceIDRatioBased(monitoringTraceRatio)))
		if err != nil {
			return fmt.Errorf("while installing Cloud Trace OpenTelemetry trace pipeline: %w", err)
		}
		shutdowns = append(shutdowns, traceShutdown)
	}

	if enableMetrics {
		if err := metrics.Register(); err != nil {
			return fmt.Errorf("while registering metric views: %w", err)
		}
		exporter, err := stackdriver.NewExporter(stackdriver.Options{
			ProjectID:         monitoringProject,
			MetricPrefix:      "lenstrace",
			ReportingInterval: 60 * time.Second,
		})
		if err != nil {
			return fmt.Errorf("while creating Stackdriver exporter: %w", err)
		}
		if err := exporter.StartMetricsExporter(); err != nil {
			return fmt.Errorf("while starting Stackdriver metrics exporter: %w", err)
		}
		shutdowns = append(shutdowns, exporter.StopMetricsExporter, exporter.Flush)
	}

	return nil
}

func tearDown(cmd *cobra.Command, args []string) {
	runShutdowns()
}

// runShutdowns is also called from main, since cobra skips PersistentPostRun
// when RunE fails.
func runShutdowns() {
	for i := len(shutdowns) - 1; i >= 0; i-- {
		shutdowns[i]()
	}
	shutdowns = nil
	glog.Flush()
}

// loadSurface loads the prescription and picks the surface named by
// --surface.
func loadSurface(ctx context.Context) (prescription.Entry, error) {
	if prescriptionURI == "" {
		return prescription.Entry{}, fmt.Errorf("--prescription is required")
	}

	var gcs *storage.Client
	if strings.HasPrefix(prescriptionURI, "gs://") {
		var err error
		gcs, err = storage.NewClient(ctx, googleopt.WithScopes(storage.ScopeReadOnly))
		if err != nil {
			return prescription.Entry{}, fmt.Errorf("while creating GCS client: %w", err)
		}
		defer gcs.Close()
	}

	entries, err := prescription.Load(ctx, gcs, prescriptionURI)
	if err != nil {
		return prescription.Entry{}, fmt.Errorf("while loading prescription: %w", err)
	}

	if idx, err := strconv.Atoi(surfaceRef); err == nil {
		if idx < 0 || idx >= len(entries) {
			return prescription.Entry{}, fmt.Errorf("surface index %d out of range, prescription has %d surfaces", idx, len(entries))
		}
		return entries[idx], nil
	}
	for _, e := range entries {
		if e.Name == surfaceRef {
			return e, nil
		}
	}
	return prescription.Entry{}, fmt.Errorf("no surface named %q", surfaceRef)
}

var (
	sagX float64
	sagY float64
)

var cmdSag = &cobra.Command{
	Use:   "sag",
	Short: "Print the sag and unit normal of a surface at one point",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		entry, err := loadSurface(ctx)
		if err != nil {
			return err
		}

		z, err := surface.SagAt(entry.Model, sagX, sagY)
		if err != nil {
			return fmt.Errorf("while evaluating sag: %w", err)
		}
		n, err := surface.NormalAt(entry.Model, sagX, sagY)
		if err != nil {
			return fmt.Errorf("while evaluating normal: %w", err)
		}

		fmt.Printf("surface %s (%s) at (%g, %g): sag=%.12g normal=(%.12g, %.12g, %.12g)\n", entry.Name, entry.Model.Kind(), sagX, sagY, z, n[0], n[1], n[2])
		return nil
	},
}

func init() {
	cmdSag.Flags().Float64Var(&sagX, "x", 0, "Local x coordinate.")
	cmdSag.Flags().Float64Var(&sagY, "y", 0, "Local y coordinate.")
}

var (
	intersectGrid       int
	intersectFan        int
	intersectAperture   float64
	intersectZ          float64
	intersectFieldDeg   float64
	intersectWavelength float64
	intersectParallel   bool
	intersectChunkSize  int
	intersectWorkers    int
)

var cmdIntersect = &cobra.Command{
	Use:   "intersect",
	Short: "Trace a collimated beam onto a surface and print every ray's hit",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		entry, err := loadSurface(ctx)
		if err != nil {
			return err
		}

		field := intersectFieldDeg * math.Pi / 180
		beam := &source.Collimated{
			SemiAperture: intersectAperture,
			Z:            intersectZ,
			Direction:    vec3.T{0, math.Sin(field), math.Cos(field)},
			Wavelength:   intersectWavelength,
		}
		rays, err := beam.Grid(intersectGrid)
		if intersectFan > 0 {
			rays, err = beam.Fan(intersectFan)
		}
		if err != nil {
			return fmt.Errorf("while building rays: %w", err)
		}

		start := rays.Clone()
		opts := []trace.Option{trace.WithPlacement(entry.Placement)}
		var set *contact.Set
		if intersectParallel {
			opts = append(opts, trace.WithChunkSize(intersectChunkSize), trace.WithWorkers(intersectWorkers))
			set, err = trace.Parallel(ctx, entry.Model, rays, opts...)
		} else {
			set, err = trace.Surface(ctx, entry.Model, rays, opts...)
		}
		if err != nil {
			return fmt.Errorf("while tracing surface %s: %w", entry.Name, err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "x0\ty0\tt\tstatus\tsteps\tx\ty\tz\tnx\tny\tnz")
		for i := 0; i < rays.Len(); i++ {
			n := set.Normal[i]
			fmt.Fprintf(w, "%.6g\t%.6g\t%.10g\t%s\t%d\t%.10g\t%.10g\t%.10g\t%.8f\t%.8f\t%.8f\n",
				start.X[i], start.Y[i], set.T[i], set.Status[i], set.Iterations[i],
				rays.X[i], rays.Y[i], rays.Z[i], n[0], n[1], n[2])
		}
		if err := w.Flush(); err != nil {
			return fmt.Errorf("while writing results: %w", err)
		}

		counts := set.Counts()
		fmt.Printf("\n%d rays: hit=%d missed=%d grazing=%d diverged=%d vignetted=%d\n",
			set.Len(), counts[contact.Hit], counts[contact.Missed], counts[contact.Grazing], counts[contact.Diverged], counts[contact.Vignetted])
		return nil
	},
}

func init() {
	cmdIntersect.Flags().IntVar(&intersectGrid, "grid", 11, "Sample the aperture on a grid of this many points per side.")
	cmdIntersect.Flags().IntVar(&intersectFan, "fan", 0, "If positive, sample a meridional fan of this many rays instead of a grid.")
	cmdIntersect.Flags().Float64Var(&intersectAperture, "aperture", 1, "Semi-aperture of the beam.")
	cmdIntersect.Flags().Float64Var(&intersectZ, "z", -10, "Plane the rays start from.")
	cmdIntersect.Flags().Float64Var(&intersectFieldDeg, "field-deg", 0, "Beam angle to the axis in the y-z plane, in degrees.")
	cmdIntersect.Flags().Float64Var(&intersectWavelength, "wavelength", 0.55, "Wavelength in micrometres.")
	cmdIntersect.Flags().BoolVar(&intersectParallel, "parallel", false, "Trace in concurrent chunks.")
	cmdIntersect.Flags().IntVar(&intersectChunkSize, "chunk-size", trace.DefaultChunkSize, "Rays per chunk with --parallel.")
	cmdIntersect.Flags().IntVar(&intersectWorkers, "workers", 0, "Concurrent chunks with --parallel; 0 means one per CPU.")
}

var (
	paraxialFan        int
	paraxialAperture   float64
	paraxialFieldDeg   float64
	paraxialWavelength float64
	paraxialDistance   float64
)

var cmdParaxial = &cobra.Command{
	Use:   "paraxial",
	Short: "Propagate a paraxial fan through free space and print each ray's height",
	RunE: func(cmd *cobra.Command, args []string) error {
		field := paraxialFieldDeg * math.Pi / 180
		beam := &source.Collimated{
			SemiAperture: paraxialAperture,
			Direction:    vec3.T{0, math.Sin(field), math.Cos(field)},
			Wavelength:   paraxialWavelength,
		}
		rays, err := beam.ParaxialFan(paraxialFan)
		if err != nil {
			return fmt.Errorf("while building paraxial rays: %w", err)
		}
		y0 := append([]float64(nil), rays.Y...)
		rays.Propagate(paraxialDistance)

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "y0\tu\tz\ty")
		for i := 0; i < rays.Len(); i++ {
			fmt.Fprintf(w, "%.6g\t%.10g\t%.10g\t%.10g\n", y0[i], rays.U[i], rays.Z[i], rays.Y[i])
		}
		if err := w.Flush(); err != nil {
			return fmt.Errorf("while writing results: %w", err)
		}
		return nil
	},
}

func init() {
	cmdParaxial.Flags().IntVar(&paraxialFan, "fan", 11, "Number of rays in the meridional fan.")
	cmdParaxial.Flags().Float64Var(&paraxialAperture, "aperture", 1, "Semi-aperture of the beam.")
	cmdParaxial.Flags().Float64Var(&paraxialFieldDeg, "field-deg", 0, "Beam angle to the axis in the y-z plane, in degrees.")
	cmdParaxial.Flags().Float64Var(&paraxialWavelength, "wavelength", 0.55, "Wavelength in micrometres.")
	cmdParaxial.Flags().Float64Var(&paraxialDistance, "distance", 0, "Distance to propagate along the axis.")
}

func main() {
	glog.CopyStandardLogTo("INFO")

	cmdRoot.AddCommand(cmdSag, cmdIntersect, cmdParaxial)

	if err := cmdRoot.Execute(); err != nil {
		runShutdowns()
		glog.Exitf("lenstrace: %v", err)
	}
}
