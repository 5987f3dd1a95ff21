// Package raytrace specifies the optional scene-query collaborator used by
// the spatializer's direct effect to account for occlusion. The core never
// implements ray tracing itself — it only consumes a Provider.
package raytrace

// Band indexes the three acoustic-property bands (low/mid/high) an
// AcousticMaterial carries.
const Bands = 3

// AcousticMaterial describes how a surface absorbs, scatters, and
// transmits sound energy across three frequency bands.
type AcousticMaterial struct {
	Absorption   [Bands]float32
	Scattering   [Bands]float32
	Transmission [Bands]float32
}

// Hit is the result of a successful ray cast.
type Hit struct {
	Distance    float32
	Normal      [3]float32
	MaterialIdx int
}

// Provider answers scene-occlusion queries. A production binding (e.g. a
// physics engine or level BVH) implements this; the core only ever calls it
// from the render thread, which tolerates the occasional latency spike a
// real ray cast may incur.
type Provider interface {
	// CastRay fires a ray from origin in direction (a unit vector), up to
	// maxDistance meters. ok is false on a miss.
	CastRay(origin, direction [3]float32, maxDistance float32) (hit Hit, ok bool)
	// Material resolves a hit's MaterialIdx to its acoustic properties.
	Material(idx int) AcousticMaterial
}

// None is the default no-op Provider: every cast misses, so consumers fall
// back to free-field propagation with no occlusion term. This is the
// correct behavior when no scene geometry has been wired in — not an error.
type None struct{}

// CastRay always reports a miss.
func (None) CastRay(_, _ [3]float32, _ float32) (Hit, bool) { return Hit{}, false }

// Material returns the zero-value material (no absorption/scattering/
// transmission) for any index, since None never produces a hit to resolve.
func (None) Material(_ int) AcousticMaterial { return AcousticMaterial{} }
