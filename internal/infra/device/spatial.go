package device

import (
	"math"
)

// airAbsorptionGainHF is the per-meter gain applied for an absorption factor of 1.
const airAbsorptionGainHF = 0.994

// Vec3 is a position or direction in listener space.
type Vec3 [3]float32

// Length returns the euclidean norm.
func (v Vec3) Length() float32 {
	return float32(math.Sqrt(float64(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])))
}

// Spatial holds the positional parameters of a source.
// The listener sits at the origin, so relative and absolute positions
// produce the same distance.
type Spatial struct {
	Position          Vec3
	Direction         Vec3
	Velocity          Vec3
	Relative          bool
	MinGain           float32
	MaxGain           float32
	MaxDistance       float32
	ReferenceDistance float32
	Rolloff           float32
	AirAbsorption     float32
}

// DefaultSpatial returns the parameters of a fresh source.
func DefaultSpatial() Spatial {
	return Spatial{
		MinGain:           0,
		MaxGain:           1,
		MaxDistance:       math.MaxFloat32,
		ReferenceDistance: 1,
		Rolloff:           1,
	}
}

// Attenuation returns the distance gain using the inverse distance clamped model.
func (s Spatial) Attenuation() float32 {
	dist := s.Position.Length()
	ref := s.ReferenceDistance

	if ref > 0 {
		if dist < ref {
			dist = ref
		}
		if dist > s.MaxDistance {
			dist = s.MaxDistance
		}
	}

	gain := float32(1)
	if denom := ref + s.Rolloff*(dist-ref); ref > 0 && denom > 0 {
		gain = ref / denom
	}
	if s.AirAbsorption > 0 && dist > 0 {
		gain *= float32(math.Pow(airAbsorptionGainHF, float64(s.AirAbsorption*dist)))
	}
	return gain
}

// Effective combines a source gain with the distance attenuation and the gain bounds.
func (s Spatial) Effective(gain float32) float32 {
	g := gain * s.Attenuation()
	if g < s.MinGain {
		g = s.MinGain
	}
	if g > s.MaxGain {
		g = s.MaxGain
	}
	return g
}
