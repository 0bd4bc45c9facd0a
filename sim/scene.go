package sim

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/pthm-cable/mpm/collider"
	"github.com/pthm-cable/mpm/config"
	"github.com/pthm-cable/mpm/elastic"
	"github.com/pthm-cable/mpm/particles"
)

func vec(a [3]float64) r3.Vec { return r3.Vec{X: a[0], Y: a[1], Z: a[2]} }

// BuildScene creates the particles and colliders described by cfg.Scene.
func BuildScene(cfg *config.Config) (*particles.Particles, []*collider.Collider, error) {
	colliders := make([]*collider.Collider, 0, len(cfg.Scene.Colliders))
	for i, cc := range cfg.Scene.Colliders {
		c, err := buildCollider(cc)
		if err != nil {
			return nil, nil, fmt.Errorf("collider %d (%s): %w", i, cc.Name, err)
		}
		colliders = append(colliders, c)
	}

	material, err := buildMaterial(cfg.Scene.Block.Material)
	if err != nil {
		return nil, nil, fmt.Errorf("block: %w", err)
	}

	var inside particles.ColliderSet
	for _, name := range cfg.Scene.Block.Inside {
		idx, ok := cfg.Derived.ColliderIndex[name]
		if !ok {
			return nil, nil, fmt.Errorf("block: unknown collider %q", name)
		}
		inside = inside.With(idx)
	}

	b := cfg.Scene.Block
	origin, size := vec(b.Origin), vec(b.Size)
	counts := [3]int{
		cellCount(size.X, b.Spacing),
		cellCount(size.Y, b.Spacing),
		cellCount(size.Z, b.Spacing),
	}

	p := &particles.Particles{}
	for i := 0; i < counts[0]; i++ {
		for j := 0; j < counts[1]; j++ {
			for k := 0; k < counts[2]; k++ {
				// Particles sit at lattice cell centers.
				offset := r3.Vec{X: float64(i) + 0.5, Y: float64(j) + 0.5, Z: float64(k) + 0.5}
				p.Add(particles.Particle{
					Position:      r3.Add(origin, r3.Scale(b.Spacing, offset)),
					Velocity:      vec(b.InitialVelocity),
					Mass:          cfg.Derived.ParticleMass,
					InitialVolume: cfg.Derived.ParticleVolume,
					Material:      material,
					Inside:        inside,
				})
			}
		}
	}
	return p, colliders, nil
}

// cellCount returns how many spacing-sized cells fit into length, tolerating
// rounding in the division.
func cellCount(length, spacing float64) int {
	return max(1, int(math.Floor(length/spacing+1e-9)))
}

func buildMaterial(mc config.MaterialConfig) (elastic.Material, error) {
	switch mc.Kind {
	case "solid":
		s := elastic.NewSolid(mc.YoungsModulus, mc.PoissonsRatio)
		s.Stable = mc.Stable
		return s, nil
	case "fluid":
		return elastic.Fluid{BulkModulus: mc.BulkModulus, Exponent: mc.Exponent}, nil
	default:
		return nil, fmt.Errorf("unknown material kind %q", mc.Kind)
	}
}

func buildCollider(cc config.ColliderConfig) (*collider.Collider, error) {
	c := &collider.Collider{
		Name: cc.Name,
		Kinematic: collider.Kinematic{
			Position:        vec(cc.Position),
			Velocity:        vec(cc.Velocity),
			AngularVelocity: vec(cc.AngularVelocity),
		},
		Friction: cc.Friction,
		Sticky:   cc.Sticky,
	}
	switch cc.Kind {
	case "plane":
		normal := vec(cc.Normal)
		if r3.Norm(normal) == 0 {
			return nil, fmt.Errorf("plane needs a non-zero normal")
		}
		c.Kinematic.Orientation = collider.OrientationFromNormal(normal)
		c.Samples = collider.PlaneSamples(cc.Extent[0], cc.Spacing)
	case "box":
		c.Kinematic.Orientation = r3.Rotation{Real: 1}
		c.Samples = collider.BoxSamples(vec(cc.Extent), cc.Spacing)
	default:
		return nil, fmt.Errorf("unknown collider kind %q", cc.Kind)
	}
	return c, nil
}
