// ABOUTME: Channel strip settings
// ABOUTME: Gain, pan, boost and mute with their defaults and ranges
package mixer

const (
	DefaultGain  = 1.0
	DefaultPan   = 0.0
	DefaultBoost = 1.0

	PanMin = -4.0
	PanMax = 4.0
)

// Settings controls how one track enters the mix
type Settings struct {
	Gain  float64
	Pan   float64
	Boost float64
	Muted bool
}

// DefaultSettings returns unity gain, centered, unmuted settings
func DefaultSettings() Settings {
	return Settings{Gain: DefaultGain, Pan: DefaultPan, Boost: DefaultBoost}
}

// Normalize clamps pan into range and replaces invalid gain and boost
func (s Settings) Normalize() Settings {
	if s.Pan < PanMin {
		s.Pan = PanMin
	}
	if s.Pan > PanMax {
		s.Pan = PanMax
	}
	if s.Gain < 0 {
		s.Gain = 0
	}
	if s.Boost <= 0 {
		s.Boost = DefaultBoost
	}
	return s
}

// channelGains converts settings into left and right multipliers using
// balance panning
func (s Settings) channelGains() (left, right float64) {
	if s.Muted {
		return 0, 0
	}
	g := s.Gain * s.Boost
	p := s.Pan / PanMax
	left, right = g, g
	if p > 0 {
		left *= 1 - p
	} else if p < 0 {
		right *= 1 + p
	}
	return left, right
}
