package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/pthm-cable/mpm/config"
	"github.com/pthm-cable/mpm/parallel"
	"github.com/pthm-cable/mpm/sim"
	"github.com/pthm-cable/mpm/telemetry"
)

func main() {
	// CLI flags
	configPath := flag.String("config", "", "Path to config.yaml (empty = use defaults)")
	outputDir := flag.String("output-dir", "", "Output directory for CSV logs and config snapshot")
	frames := flag.Int("frames", 0, "Frames to compute (0 = use config)")
	stepsPerFrame := flag.Int("steps-per-frame", 0, "Steps per frame (0 = use config)")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")

	flag.Parse()

	// Set up slog (JSON to stdout for structured logging)
	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		slog.Error("invalid log level", "level", *logLevel, "error", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	// Initialize config before anything else
	if err := config.Init(*configPath); err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	cfg := config.Cfg()

	// CLI overrides
	if *frames > 0 {
		cfg.Run.Frames = *frames
	}
	if *stepsPerFrame > 0 {
		cfg.Run.StepsPerFrame = *stepsPerFrame
	}
	cfg.Derived.TotalSteps = cfg.Run.Frames * cfg.Run.StepsPerFrame

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, *outputDir); err != nil {
		slog.Error("simulation failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, outputDir string) error {
	p, colliders, err := sim.BuildScene(cfg)
	if err != nil {
		return err
	}

	pool := parallel.New(cfg.Parallel.Workers, cfg.Parallel.Threshold)
	defer pool.Close()

	perf := telemetry.NewPerfCollector(cfg.Telemetry.PerfWindow)

	// nil when outputDir is empty
	output, err := telemetry.NewOutputManager(outputDir)
	if err != nil {
		return err
	}
	defer output.Close()
	if err := output.WriteConfig(cfg); err != nil {
		return err
	}

	state, err := sim.NewState(p, colliders, pool, perf)
	if err != nil {
		return err
	}

	for _, c := range colliders {
		b := c.Bounds()
		slog.Info("collider",
			"name", c.Name,
			"samples", len(c.Samples),
			"min", []float64{b.Min.X, b.Min.Y, b.Min.Z},
			"max", []float64{b.Max.X, b.Max.Y, b.Max.Z},
		)
	}
	slog.Info("starting headless simulation",
		"particles", p.Len(),
		"colliders", len(colliders),
		"workers", pool.Workers(),
		"frames", cfg.Run.Frames,
		"steps_per_frame", cfg.Run.StepsPerFrame,
		"total_steps", cfg.Derived.TotalSteps,
		"output_dir", outputDir,
	)

	runner := sim.NewRunner(cfg, state, perf, output)
	if err := runner.Run(ctx); err != nil {
		return err
	}

	slog.Info("simulation complete",
		"frames", runner.AvailableFrames(),
		"steps", state.Steps(),
		"sim_time", state.SimTime(),
		"perf", perf.Stats(),
	)
	return nil
}
