// Command synth optimizes a scene layout from the command line.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/GoSim-25-26J-441/scene-synth/internal/anneal"
	"github.com/GoSim-25-26J-441/scene-synth/internal/catalog"
	"github.com/GoSim-25-26J-441/scene-synth/internal/metrics"
	"github.com/GoSim-25-26J-441/scene-synth/internal/persistence/runindex"
	"github.com/GoSim-25-26J-441/scene-synth/internal/persistence/scenefile"
	"github.com/GoSim-25-26J-441/scene-synth/internal/persistence/trace"
	"github.com/GoSim-25-26J-441/scene-synth/internal/scene"
	"github.com/GoSim-25-26J-441/scene-synth/pkg/config"
	"github.com/GoSim-25-26J-441/scene-synth/pkg/logger"
	"github.com/GoSim-25-26J-441/scene-synth/pkg/utils"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "synth:", err)
		os.Exit(1)
	}
}

type options struct {
	configPath  string
	catalogPath string
	scenePath   string
	outPath     string
	tracePath   string
	indexPath   string
	steps       int
	logLevel    string
}

func parseFlags(args []string, stderr io.Writer) (*options, error) {
	fs := flag.NewFlagSet("synth", flag.ContinueOnError)
	fs.SetOutput(stderr)

	o := &options{}
	fs.StringVar(&o.configPath, "config", "", "run configuration YAML (defaults when empty)")
	fs.StringVar(&o.catalogPath, "catalog", "", "object catalog YAML (built-in catalog when empty)")
	fs.StringVar(&o.scenePath, "scene", "", "initial scene JSON (random layout when empty)")
	fs.StringVar(&o.outPath, "out", "scene.json", "output scene JSON")
	fs.StringVar(&o.tracePath, "trace", "", "zstd JSONL step trace (disabled when empty)")
	fs.StringVar(&o.indexPath, "index", "", "SQLite run index to record the run in (disabled when empty)")
	fs.IntVar(&o.steps, "steps", 0, "stop after N iterations (0 runs to completion)")
	fs.StringVar(&o.logLevel, "log-level", "", "log level (overrides the config)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if o.steps < 0 {
		return nil, fmt.Errorf("steps must not be negative, got %d", o.steps)
	}
	if o.outPath == "" {
		return nil, errors.New("out is required")
	}
	return o, nil
}

func run(ctx context.Context, args []string, stderr io.Writer) error {
	o, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	cfg := config.DefaultRunConfig()
	if o.configPath != "" {
		if cfg, err = config.LoadRunConfig(o.configPath); err != nil {
			return err
		}
	}
	level := cfg.LogLevel
	if o.logLevel != "" {
		level = o.logLevel
	}
	logger.SetDefault(logger.NewText(level, stderr))

	cat := catalog.Default()
	if o.catalogPath != "" {
		if cat, err = catalog.Load(o.catalogPath); err != nil {
			return err
		}
	}

	var initial *scene.State
	if o.scenePath != "" {
		var warnings []string
		if initial, warnings, err = scenefile.Load(o.scenePath, cat); err != nil {
			return err
		}
		if len(warnings) > 0 {
			logger.Warn("scene loaded with warnings", "path", o.scenePath, "count", len(warnings))
		}
	}

	runID := utils.GenerateRunID()
	rng := utils.NewRandSource(cfg.Seed)
	opt, err := anneal.NewOptimizer(cfg, scene.NewEvaluator(cfg, cat, rng), rng)
	if err != nil {
		return err
	}
	collector := metrics.NewCollector()
	opt.WithLogger(logger.ForRun(runID)).WithHook(collector.Hook())

	var tw *trace.Writer
	if o.tracePath != "" {
		if tw, err = trace.Create(o.tracePath); err != nil {
			return err
		}
		defer tw.Close()
		opt.WithHook(tw.Hook())
	}

	if err := opt.Init(initial); err != nil {
		return err
	}
	startedAt := time.Now().UTC()
	collector.Start()

	var runErr error
	if o.steps > 0 {
		_, runErr = opt.StepN(ctx, o.steps)
	} else {
		_, runErr = opt.Run(ctx)
	}
	res := opt.Result()
	collector.Finish(res)

	if runErr != nil && !errors.Is(runErr, context.Canceled) && !errors.Is(runErr, anneal.ErrRejectionStorm) {
		return runErr
	}
	if res.State != nil {
		if err := scenefile.Save(o.outPath, res.State); err != nil {
			return err
		}
	}
	if tw != nil {
		if err := tw.Close(); err != nil {
			return err
		}
	}

	summary := collector.Summary()
	logger.Info("run finished",
		"run_id", runID,
		"status", res.Status.String(),
		"reason", res.Reason,
		"iterations", res.Iterations,
		"cost", res.Cost,
		"acceptance_rate", summary.AcceptanceRate,
		"out", o.outPath)

	if o.indexPath != "" {
		if err := recordRun(ctx, o, runID, rng.Seed(), res, startedAt); err != nil {
			return err
		}
	}
	if res.Status == anneal.StatusFailed {
		return fmt.Errorf("optimization failed: %s", res.Reason)
	}
	return nil
}

func recordRun(ctx context.Context, o *options, runID string, seed int64, res *anneal.Result, startedAt time.Time) error {
	idx, err := runindex.Open(o.indexPath)
	if err != nil {
		return err
	}
	defer idx.Close()

	status := "completed"
	switch {
	case res.Status == anneal.StatusFailed:
		status = "failed"
	case !res.Status.Terminal():
		status = "cancelled"
	}
	objects, lights := 0, 0
	if res.State != nil {
		objects, lights = len(res.State.Objects), len(res.State.Lights)
	}
	// record even when interrupted
	return idx.Record(context.WithoutCancel(ctx), runindex.Record{
		ID:             runID,
		Mode:           "cli",
		Status:         status,
		Reason:         res.Reason,
		Seed:           seed,
		Iterations:     res.Iterations,
		Cost:           res.Cost,
		Objects:        objects,
		Lights:         lights,
		Accepted:       res.Accepted,
		Rejected:       res.Rejected,
		HardRejections: res.HardRejections,
		StartedAt:      startedAt,
		FinishedAt:     time.Now().UTC(),
		ScenePath:      o.outPath,
		TracePath:      o.tracePath,
	})
}
