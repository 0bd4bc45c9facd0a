// Package config provides configuration loading and access for the simulation.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// MaxColliders is the number of colliders a scene may declare.
const MaxColliders = 64

// Config holds all simulation configuration parameters.
type Config struct {
	Settings  Settings        `yaml:"settings" toml:"settings"`
	Parallel  ParallelConfig  `yaml:"parallel" toml:"parallel"`
	Scene     SceneConfig     `yaml:"scene" toml:"scene"`
	Run       RunConfig       `yaml:"run" toml:"run"`
	Telemetry TelemetryConfig `yaml:"telemetry" toml:"telemetry"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-" toml:"-"`
}

// Settings is the solver settings record read by every phase.
type Settings struct {
	GridNodeSize          float64    `yaml:"grid_node_size" toml:"grid_node_size"`
	TimeStep              float64    `yaml:"time_step" toml:"time_step"`
	Explicit              bool       `yaml:"explicit" toml:"explicit"`
	Gravity               [3]float64 `yaml:"gravity" toml:"gravity"`
	SurfaceDiskSizeFactor float64    `yaml:"surface_disk_size_factor" toml:"surface_disk_size_factor"` // Disk radius in node spacings
	Iterations            int        `yaml:"iterations" toml:"iterations"`                             // Implicit solver iterations, unused by the explicit path
	SortInterval          int        `yaml:"sort_interval" toml:"sort_interval"`                       // Sort particles every N steps
}

// GravityVec returns Gravity as a vector.
func (s Settings) GravityVec() r3.Vec {
	return r3.Vec{X: s.Gravity[0], Y: s.Gravity[1], Z: s.Gravity[2]}
}

// DiskRadius is the radius of a collider surface sample's disk.
func (s Settings) DiskRadius() float64 {
	return s.GridNodeSize * s.SurfaceDiskSizeFactor
}

// ShouldSort reports whether particles are sorted before the given step.
func (s Settings) ShouldSort(step int) bool {
	return s.SortInterval <= 1 || step%s.SortInterval == 0
}

// ParallelConfig holds worker pool parameters.
type ParallelConfig struct {
	Workers   int `yaml:"workers" toml:"workers"`     // 0 = GOMAXPROCS
	Threshold int `yaml:"threshold" toml:"threshold"` // Minimum item count for fan-out
}

// SceneConfig describes the headless scene.
type SceneConfig struct {
	Block     BlockConfig      `yaml:"block" toml:"block"`
	Colliders []ColliderConfig `yaml:"colliders" toml:"colliders"`
}

// BlockConfig fills an axis-aligned box with particles on a regular lattice.
type BlockConfig struct {
	Origin          [3]float64     `yaml:"origin" toml:"origin"` // Minimum corner
	Size            [3]float64     `yaml:"size" toml:"size"`
	Spacing         float64        `yaml:"spacing" toml:"spacing"`
	Density         float64        `yaml:"density" toml:"density"`
	InitialVelocity [3]float64     `yaml:"initial_velocity" toml:"initial_velocity"`
	Inside          []string       `yaml:"inside" toml:"inside"` // Names of colliders the block starts inside of
	Material        MaterialConfig `yaml:"material" toml:"material"`
}

// MaterialConfig selects the constitutive model of the block.
type MaterialConfig struct {
	Kind          string  `yaml:"kind" toml:"kind"` // solid or fluid
	YoungsModulus float64 `yaml:"youngs_modulus" toml:"youngs_modulus"`
	PoissonsRatio float64 `yaml:"poissons_ratio" toml:"poissons_ratio"`
	Stable        bool    `yaml:"stable" toml:"stable"` // Stable Neo-Hookean instead of classic
	BulkModulus   float64 `yaml:"bulk_modulus" toml:"bulk_modulus"`
	Exponent      int     `yaml:"exponent" toml:"exponent"`
}

// ColliderConfig describes one scripted collider.
type ColliderConfig struct {
	Name            string     `yaml:"name" toml:"name"`
	Kind            string     `yaml:"kind" toml:"kind"` // plane or box
	Position        [3]float64 `yaml:"position" toml:"position"`
	Normal          [3]float64 `yaml:"normal" toml:"normal"` // Plane normal; boxes ignore it
	Extent          [3]float64 `yaml:"extent" toml:"extent"` // Half size; planes use the first entry
	Spacing         float64    `yaml:"spacing" toml:"spacing"`
	Velocity        [3]float64 `yaml:"velocity" toml:"velocity"`
	AngularVelocity [3]float64 `yaml:"angular_velocity" toml:"angular_velocity"`
	Friction        float64    `yaml:"friction" toml:"friction"`
	Sticky          bool       `yaml:"sticky" toml:"sticky"`
}

// RunConfig holds headless run length.
type RunConfig struct {
	Frames        int `yaml:"frames" toml:"frames"`
	StepsPerFrame int `yaml:"steps_per_frame" toml:"steps_per_frame"`
}

// TelemetryConfig holds telemetry parameters.
type TelemetryConfig struct {
	StatsEvery int `yaml:"stats_every" toml:"stats_every"` // Steps between stats rows
	PerfWindow int `yaml:"perf_window" toml:"perf_window"` // Steps per perf aggregation window
}

// DerivedConfig holds computed values derived from the loaded config.
type DerivedConfig struct {
	ParticleVolume float64        // Block.Spacing cubed
	ParticleMass   float64        // ParticleVolume * Block.Density
	TotalSteps     int            // Run.Frames * Run.StepsPerFrame
	ColliderIndex  map[string]int // name -> index for collider lookup
}

// global holds the loaded configuration.
var global *Config

// Init loads configuration from the given path, or uses embedded defaults if path is empty.
// Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML or TOML file (by extension), merging
// with embedded defaults. If path is empty, only embedded defaults are used.
func Load(path string) (*Config, error) {
	// Start with embedded defaults
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	// Load user config if provided
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Unmarshal into same struct - only overwrites fields present in file
		if err := unmarshal(path, data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	// Compute derived values
	cfg.computeDerived()

	return cfg, nil
}

func unmarshal(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		_, err := toml.Decode(string(data), cfg)
		return err
	default:
		return yaml.Unmarshal(data, cfg)
	}
}

// Validate rejects settings the solver cannot run with.
func (c *Config) Validate() error {
	var errs []error
	s := c.Settings
	if s.GridNodeSize <= 0 {
		errs = append(errs, fmt.Errorf("settings.grid_node_size must be positive, got %g", s.GridNodeSize))
	}
	if s.TimeStep <= 0 {
		errs = append(errs, fmt.Errorf("settings.time_step must be positive, got %g", s.TimeStep))
	}
	if s.SurfaceDiskSizeFactor <= 0 {
		errs = append(errs, fmt.Errorf("settings.surface_disk_size_factor must be positive, got %g", s.SurfaceDiskSizeFactor))
	}
	if s.SortInterval < 0 {
		errs = append(errs, fmt.Errorf("settings.sort_interval must not be negative, got %d", s.SortInterval))
	}

	if len(c.Scene.Colliders) > MaxColliders {
		errs = append(errs, fmt.Errorf("scene declares %d colliders, at most %d supported", len(c.Scene.Colliders), MaxColliders))
	}
	names := make(map[string]bool, len(c.Scene.Colliders))
	for i, col := range c.Scene.Colliders {
		switch col.Kind {
		case "plane", "box":
		default:
			errs = append(errs, fmt.Errorf("scene.colliders[%d]: unknown kind %q", i, col.Kind))
		}
		if col.Spacing <= 0 {
			errs = append(errs, fmt.Errorf("scene.colliders[%d]: spacing must be positive, got %g", i, col.Spacing))
		}
		if names[col.Name] {
			errs = append(errs, fmt.Errorf("scene.colliders[%d]: duplicate name %q", i, col.Name))
		}
		names[col.Name] = true
	}
	for _, name := range c.Scene.Block.Inside {
		if !names[name] {
			errs = append(errs, fmt.Errorf("scene.block.inside: unknown collider %q", name))
		}
	}

	b := c.Scene.Block
	if b.Spacing <= 0 || b.Density <= 0 {
		errs = append(errs, fmt.Errorf("scene.block: spacing and density must be positive, got %g and %g", b.Spacing, b.Density))
	}
	switch b.Material.Kind {
	case "solid":
		if nu := b.Material.PoissonsRatio; nu <= -1 || nu >= 0.5 {
			errs = append(errs, fmt.Errorf("scene.block.material: poissons_ratio must be in (-1, 0.5), got %g", nu))
		}
	case "fluid":
		if b.Material.Exponent < 1 {
			errs = append(errs, fmt.Errorf("scene.block.material: exponent must be at least 1, got %d", b.Material.Exponent))
		}
	default:
		errs = append(errs, fmt.Errorf("scene.block.material: unknown kind %q", b.Material.Kind))
	}

	if c.Run.Frames < 0 || c.Run.StepsPerFrame <= 0 {
		errs = append(errs, fmt.Errorf("run: frames must not be negative and steps_per_frame must be positive"))
	}
	return errors.Join(errs...)
}

// computeDerived calculates values derived from loaded config.
func (c *Config) computeDerived() {
	if c.Settings.SortInterval == 0 {
		c.Settings.SortInterval = 1
	}
	if c.Telemetry.StatsEvery <= 0 {
		c.Telemetry.StatsEvery = c.Run.StepsPerFrame
	}

	sp := c.Scene.Block.Spacing
	c.Derived.ParticleVolume = sp * sp * sp
	c.Derived.ParticleMass = c.Derived.ParticleVolume * c.Scene.Block.Density
	c.Derived.TotalSteps = c.Run.Frames * c.Run.StepsPerFrame

	// Build collider index for fast lookup
	c.Derived.ColliderIndex = make(map[string]int, len(c.Scene.Colliders))
	for i, col := range c.Scene.Colliders {
		c.Derived.ColliderIndex[col.Name] = i
	}
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
