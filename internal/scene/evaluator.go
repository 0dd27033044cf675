package scene

import (
	"errors"
	"fmt"
	"math"

	"github.com/golang/geo/r3"

	"github.com/GoSim-25-26J-441/scene-synth/internal/catalog"
	"github.com/GoSim-25-26J-441/scene-synth/internal/geometry"
	"github.com/GoSim-25-26J-441/scene-synth/pkg/config"
	"github.com/GoSim-25-26J-441/scene-synth/pkg/utils"
)

// ErrNoGeometry marks an object whose type cannot be turned into a mesh
var ErrNoGeometry = errors.New("object has no geometry")

const irradianceEpsilon = 1e-6

type cachedInstance struct {
	typ      string
	pose     geometry.Pose
	instance *geometry.Instance
}

// Evaluator scores states against one run configuration. It owns a cache of
// world-space instances keyed by object ID and is not safe for concurrent use.
type Evaluator struct {
	cfg     *config.RunConfig
	catalog *catalog.Catalog
	room    geometry.AABB
	rng     *utils.RandSource
	cache   map[uint64]cachedInstance
}

// NewEvaluator creates an evaluator
func NewEvaluator(cfg *config.RunConfig, cat *catalog.Catalog, rng *utils.RandSource) *Evaluator {
	return &Evaluator{
		cfg:     cfg,
		catalog: cat,
		room:    geometry.AABB{Min: cfg.Room.Min(), Max: cfg.Room.Max()},
		rng:     rng,
		cache:   make(map[uint64]cachedInstance),
	}
}

// Room returns the room bounds
func (ev *Evaluator) Room() geometry.AABB { return ev.room }

// Config returns the run configuration
func (ev *Evaluator) Config() *config.RunConfig { return ev.cfg }

// Catalog returns the type catalog
func (ev *Evaluator) Catalog() *catalog.Catalog { return ev.catalog }

// World builds the geometry provider for a state
func (ev *Evaluator) World(s *State) (*geometry.MeshWorld, error) {
	instances := make([]*geometry.Instance, 0, len(s.Objects))
	for _, o := range s.Objects {
		in, err := ev.instance(o)
		if err != nil {
			return nil, err
		}
		instances = append(instances, in)
	}
	ev.prune(s)
	return geometry.NewMeshWorld(instances...), nil
}

func (ev *Evaluator) instance(o PlacedObject) (*geometry.Instance, error) {
	pose := o.Pose()
	if c, ok := ev.cache[o.ID]; ok && c.typ == o.Type && c.pose == pose {
		return c.instance, nil
	}
	typ, err := ev.catalog.Lookup(o.Type)
	if err != nil {
		return nil, fmt.Errorf("object %d: %w", o.ID, err)
	}
	if !typ.HasGeometry() {
		return nil, fmt.Errorf("object %d of type %s: %w", o.ID, o.Type, ErrNoGeometry)
	}
	in := geometry.NewInstance(o.ID, typ.Mesh, pose)
	ev.cache[o.ID] = cachedInstance{typ: o.Type, pose: pose, instance: in}
	return in, nil
}

// prune drops cache entries of long-gone objects once the cache outgrows the scene
func (ev *Evaluator) prune(s *State) {
	if len(ev.cache) <= 4*(ev.cfg.Objects.Max+1) {
		return
	}
	live := make(map[uint64]bool, len(s.Objects))
	for _, o := range s.Objects {
		live[o.ID] = true
	}
	for id := range ev.cache {
		if !live[id] {
			delete(ev.cache, id)
		}
	}
}

// Evaluate recomputes every cached score of the state
func (ev *Evaluator) Evaluate(s *State) error {
	world, err := ev.World(s)
	if err != nil {
		return fmt.Errorf("failed to build scene geometry: %w", err)
	}

	holes, err := s.HolesScore(world, ev.cfg.Sampling.HolesScale)
	if err != nil {
		return err
	}
	lighting, err := s.LightingScore(world, ev.cfg.Sampling, ev.rng)
	if err != nil {
		return err
	}
	occlusion, err := s.OcclusionScore(world, ev.cfg.Sampling, ev.rng)
	if err != nil {
		return err
	}
	intersection, bounds, count, err := s.ConstraintPenalties(world, ev.room, ev.cfg)
	if err != nil {
		return err
	}

	s.scores = Scores{
		Holes:        holes,
		Lighting:     lighting,
		Occlusion:    occlusion,
		Intersection: intersection,
		Bounds:       bounds,
		Count:        count,
	}
	s.evaluated = true
	return nil
}

func lookupInstance(world geometry.Provider, o PlacedObject) (*geometry.Instance, error) {
	in, ok := world.Instance(o.ID)
	if !ok {
		return nil, fmt.Errorf("object %d of type %s: %w", o.ID, o.Type, ErrNoGeometry)
	}
	return in, nil
}

// HolesScore saturates the scene-wide boundary-to-area ratio into [0, 1)
func (s *State) HolesScore(world geometry.Provider, scale float64) (float64, error) {
	var boundary, area float64
	for _, o := range s.Objects {
		in, err := lookupInstance(world, o)
		if err != nil {
			return 0, err
		}
		boundary += in.BoundaryLength()
		area += in.SurfaceArea()
	}
	if area <= 0 {
		return 0, nil
	}
	return 1 - math.Exp(-(boundary/area)*scale), nil
}

// LightingScore penalizes over- and under-lit vertex samples, averaged per
// object and then over objects, clamped to [0, 1]
func (s *State) LightingScore(world geometry.Provider, samp config.Sampling, rng *utils.RandSource) (float64, error) {
	total, counted := 0.0, 0
	for _, o := range s.Objects {
		in, err := lookupInstance(world, o)
		if err != nil {
			return 0, err
		}
		idx := rng.Sample(len(in.Vertices), samp.MaxSamples)
		if len(idx) == 0 {
			continue
		}

		objectPenalty := 0.0
		for _, i := range idx {
			e := irradiance(in.Vertices[i], in.Normals[i], s.Lights)
			switch {
			case e > samp.LightSaturation:
				objectPenalty += (e - samp.LightSaturation) * (e - samp.LightSaturation)
			case e < samp.LightDarkness:
				objectPenalty += (samp.LightDarkness - e) * (samp.LightDarkness - e)
			}
		}
		total += objectPenalty / float64(len(idx))
		counted++
	}
	if counted == 0 {
		return 0, nil
	}
	return utils.Clamp01(total / float64(counted)), nil
}

// irradiance sums Lambertian inverse-square contributions, skipping lights behind the surface
func irradiance(p, n r3.Vector, lights []PlacedLight) float64 {
	e := 0.0
	for _, l := range lights {
		to := l.Position.Sub(p)
		d2 := math.Max(to.Norm2(), irradianceEpsilon)
		cos := n.Dot(to.Normalize())
		if cos <= 0 {
			continue
		}
		e += cos * l.Intensity / d2
	}
	return e
}

// OcclusionScore casts normal-hemisphere rays from area-weighted surface samples
// and returns one minus the mean visibility
func (s *State) OcclusionScore(world geometry.Provider, samp config.Sampling, rng *utils.RandSource) (float64, error) {
	total, counted := 0.0, 0
	for _, o := range s.Objects {
		in, err := lookupInstance(world, o)
		if err != nil {
			return 0, err
		}
		sampler := in.Sampler()
		samples := sampler.Sample(rng, sampler.SampleCount(samp.Density, samp.MaxSamples))
		if len(samples) == 0 {
			continue
		}

		objectVisibility := 0.0
		for _, smp := range samples {
			origin := smp.Point.Add(smp.Normal.Mul(samp.SurfaceOffset))
			visibility := 0.0
			for r := 0; r < samp.RayCount; r++ {
				dir := rng.UnitSphere()
				if d := dir.Dot(smp.Normal); d < 0 {
					// reflect into the outward hemisphere
					dir = dir.Sub(smp.Normal.Mul(2 * d))
				}
				if dist, hit := world.Raycast(origin, dir, samp.RayRange, o.ID); hit {
					visibility += math.Exp(-samp.OcclusionAlpha * dist)
				} else {
					visibility++
				}
			}
			objectVisibility += visibility / float64(samp.RayCount)
		}
		total += objectVisibility / float64(len(samples))
		counted++
	}
	if counted == 0 {
		return 0, nil
	}
	return utils.Clamp01(1 - total/float64(counted)), nil
}

// ConstraintPenalties returns the squared pairwise overlap sum, the squared
// out-of-room distance sum and the squared relative count deviation
func (s *State) ConstraintPenalties(world geometry.Provider, room geometry.AABB, cfg *config.RunConfig) (intersection, bounds, count float64, err error) {
	boxes := make([]geometry.AABB, len(s.Objects))
	for i, o := range s.Objects {
		in, err := lookupInstance(world, o)
		if err != nil {
			return 0, 0, 0, err
		}
		boxes[i] = in.Bounds
		bounds += room.OutsideDistanceSquared(in.Bounds)
	}
	for i := range boxes {
		for j := i + 1; j < len(boxes); j++ {
			if !boxes[i].Intersects(boxes[j]) {
				continue
			}
			overlap := math.Max(0, boxes[i].Overlap(boxes[j]))
			intersection += overlap * overlap
		}
	}
	for _, l := range s.Lights {
		bounds += room.DistanceSquaredTo(l.Position)
	}

	span := math.Max(float64(cfg.Objects.Max-cfg.Objects.Min), 1)
	dev := (float64(len(s.Objects)) - cfg.IdealObjectCount()) / span
	count = dev * dev
	return intersection, bounds, count, nil
}
