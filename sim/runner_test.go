package sim

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm-cable/mpm/config"
	"github.com/pthm-cable/mpm/elastic"
	"github.com/pthm-cable/mpm/parallel"
	"github.com/pthm-cable/mpm/telemetry"
)

const smallScene = `
scene:
  block:
    origin: [-0.05, 0.2, -0.05]
    size: [0.1, 0.1, 0.1]
    spacing: 0.025
run:
  frames: 2
  steps_per_frame: 3
telemetry:
  stats_every: 2
  perf_window: 3
`

func loadConfig(t *testing.T, yaml string) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))
	cfg, err := config.Load(path)
	require.NoError(t, err)
	return cfg
}

func newTestRunner(t *testing.T, cfg *config.Config, output *telemetry.OutputManager) *Runner {
	t.Helper()
	p, colliders, err := BuildScene(cfg)
	require.NoError(t, err)
	pool := parallel.New(cfg.Parallel.Workers, cfg.Parallel.Threshold)
	t.Cleanup(pool.Close)
	perf := telemetry.NewPerfCollector(cfg.Telemetry.PerfWindow)
	state, err := NewState(p, colliders, pool, perf)
	require.NoError(t, err)
	return NewRunner(cfg, state, perf, output)
}

func TestBuildScene(t *testing.T) {
	cfg := loadConfig(t, smallScene)
	p, colliders, err := BuildScene(cfg)
	require.NoError(t, err)

	assert.Equal(t, 64, p.Len())
	require.Len(t, colliders, 2)
	assert.Equal(t, "floor", colliders[0].Name)
	assert.NotEmpty(t, colliders[0].Samples)
	assert.NotEmpty(t, colliders[1].Samples)

	// The floor plane lies at y = 0.
	b := colliders[0].Bounds()
	assert.InDelta(t, 0, b.Min.Y, 1e-12)
	assert.InDelta(t, 0, b.Max.Y, 1e-12)

	assert.InDelta(t, -0.0375, p.Positions[0].X, 1e-12)
	assert.InDelta(t, 0.2125, p.Positions[0].Y, 1e-12)
	for i := 0; i < p.Len(); i++ {
		assert.Equal(t, cfg.Derived.ParticleMass, p.Masses[i])
		assert.Equal(t, cfg.Derived.ParticleVolume, p.InitialVolumes[i])
		assert.IsType(t, elastic.Solid{}, p.Materials[i])
		assert.Zero(t, p.Inside[i].Len())
	}
}

func TestBuildSceneErrors(t *testing.T) {
	cfg := loadConfig(t, smallScene)
	cfg.Scene.Block.Inside = []string{"nowhere"}
	_, _, err := BuildScene(cfg)
	assert.ErrorContains(t, err, "nowhere")

	cfg = loadConfig(t, smallScene)
	cfg.Scene.Block.Inside = []string{"spinner"}
	p, _, err := BuildScene(cfg)
	require.NoError(t, err)
	assert.True(t, p.Inside[0].Has(1))

	cfg = loadConfig(t, smallScene)
	cfg.Scene.Colliders[1].Kind = "sphere"
	_, _, err = BuildScene(cfg)
	assert.ErrorContains(t, err, "sphere")

	cfg = loadConfig(t, smallScene)
	cfg.Scene.Block.Material.Kind = "gel"
	_, _, err = BuildScene(cfg)
	assert.ErrorContains(t, err, "gel")
}

func TestCellCount(t *testing.T) {
	assert.Equal(t, 4, cellCount(0.1, 0.025))
	assert.Equal(t, 3, cellCount(0.3, 0.1))
	assert.Equal(t, 1, cellCount(0.01, 0.1))
}

func TestRunnerFrames(t *testing.T) {
	cfg := loadConfig(t, smallScene)
	r := newTestRunner(t, cfg, nil)

	task := r.Poll()
	assert.Equal(t, 0, task.CompletedSteps)
	assert.Equal(t, 2, task.StepsToCompletion)
	require.Len(t, task.SubTasks, 1)
	assert.Equal(t, 3, task.SubTasks[0].StepsToCompletion)

	_, err := r.FlatAttribute(0, AttributePositions)
	assert.Error(t, err, "no frame computed yet")

	require.NoError(t, r.RunFrame(context.Background()))
	assert.Equal(t, 1, r.AvailableFrames())
	assert.Equal(t, 3, r.state.Steps())

	task = r.Poll()
	assert.Equal(t, 1, task.CompletedSteps)
	require.Len(t, task.SubTasks, 1)
	assert.Equal(t, 0, task.SubTasks[0].CompletedSteps)

	names, err := r.Attributes(0)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{AttributePositions, AttributeVelocities, AttributeMasses}, names)

	n := r.state.Particles.Len()
	positions, err := r.FlatAttribute(0, AttributePositions)
	require.NoError(t, err)
	assert.Len(t, positions, 3*n)
	velocities, err := r.FlatAttribute(0, AttributeVelocities)
	require.NoError(t, err)
	assert.Len(t, velocities, 3*n)
	masses, err := r.FlatAttribute(0, AttributeMasses)
	require.NoError(t, err)
	assert.Len(t, masses, n)

	// Creation order survives sorting.
	p := r.state.Particles
	for id := 0; id < n; id++ {
		x := p.Positions[p.ReverseSortMap[id]]
		assert.Equal(t, float32(x.Y), positions[3*id+1])
	}

	_, err = r.FlatAttribute(0, "temperature")
	assert.ErrorContains(t, err, "temperature")

	require.NoError(t, r.Run(context.Background()))
	assert.Equal(t, 2, r.AvailableFrames())
	assert.Empty(t, r.Poll().SubTasks)
	_, err = r.Attributes(2)
	assert.Error(t, err)
}

func TestRunnerStopsOnCancel(t *testing.T) {
	cfg := loadConfig(t, smallScene)
	r := newTestRunner(t, cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, r.Run(ctx), context.Canceled)
	assert.Equal(t, 0, r.AvailableFrames())
}

func TestRunnerWritesTelemetry(t *testing.T) {
	cfg := loadConfig(t, smallScene)
	dir := t.TempDir()
	output, err := telemetry.NewOutputManager(dir)
	require.NoError(t, err)
	r := newTestRunner(t, cfg, output)

	require.NoError(t, r.Run(context.Background()))
	require.NoError(t, output.Close())

	steps, err := os.ReadFile(filepath.Join(dir, "steps.csv"))
	require.NoError(t, err)
	// Steps 2, 4 and 6 plus the header.
	assert.Len(t, nonEmptyLines(string(steps)), 4)

	perf, err := os.ReadFile(filepath.Join(dir, "perf.csv"))
	require.NoError(t, err)
	assert.Len(t, nonEmptyLines(string(perf)), 3)
}

func nonEmptyLines(s string) []string {
	return strings.Split(strings.TrimSpace(s), "\n")
}
