package rule

import (
	"fmt"
	"math"
	"math/rand"
)

// NeuronKind names one variant of the closed neuron update rule set.
type NeuronKind string

const (
	Linear      NeuronKind = "linear"
	Decay       NeuronKind = "decay"
	NakaRushton NeuronKind = "naka_rushton"
	Binary      NeuronKind = "binary"
	ThreeValue  NeuronKind = "three_value"
)

var neuronKinds = []NeuronKind{Linear, Decay, NakaRushton, Binary, ThreeValue}

// Bounds clamps activations into [Floor, Ceiling] when Clipping is set.
type Bounds struct {
	Floor    float64 `json:"floor"`
	Ceiling  float64 `json:"ceiling"`
	Clipping bool    `json:"clipping"`
}

// Noise adds a uniform draw in [-Amplitude, Amplitude] after the rule computes
// its value. Draws come from the owning neuron's generator.
type Noise struct {
	Enabled   bool    `json:"enabled"`
	Amplitude float64 `json:"amplitude"`
}

type LinearParams struct {
	Slope float64 `json:"slope"`
}

type DecayParams struct {
	BaseLine      float64 `json:"base_line"`
	DecayFraction float64 `json:"decay_fraction"`
	DecayAmount   float64 `json:"decay_amount"`
	Relative      bool    `json:"relative"`
}

type NakaRushtonParams struct {
	MaxRate      float64 `json:"max_rate"`
	Sigma        float64 `json:"sigma"`
	Steepness    float64 `json:"steepness"`
	TimeConstant float64 `json:"time_constant"`
	TimeStep     float64 `json:"time_step"`
}

type BinaryParams struct {
	Threshold float64 `json:"threshold"`
}

type ThreeValueParams struct {
	LowerThreshold float64 `json:"lower_threshold"`
	UpperThreshold float64 `json:"upper_threshold"`
	LowerValue     float64 `json:"lower_value"`
	MiddleValue    float64 `json:"middle_value"`
	UpperValue     float64 `json:"upper_value"`
}

// NeuronRule is a tagged variant: Kind selects which parameter block applies.
// All fields are values so a plain copy never aliases another rule.
type NeuronRule struct {
	Kind        NeuronKind        `json:"kind"`
	Bias        float64           `json:"bias"`
	Bounds      Bounds            `json:"bounds"`
	Noise       Noise             `json:"noise"`
	Linear      LinearParams      `json:"linear"`
	Decay       DecayParams       `json:"decay"`
	NakaRushton NakaRushtonParams `json:"naka_rushton"`
	Binary      BinaryParams      `json:"binary"`
	ThreeValue  ThreeValueParams  `json:"three_value"`
}

// NeuronState is the previous-step view a rule reads from.
type NeuronState struct {
	Activation float64
	Input      float64
	Rand       *rand.Rand
}

func (r NeuronRule) Update(s NeuronState) float64 {
	in := s.Input + r.Bias
	var v float64
	switch r.Kind {
	case Linear:
		v = r.Linear.Slope * in
	case Decay:
		v = decay(r.Decay, s.Activation+in)
	case NakaRushton:
		p := r.NakaRushton
		v = s.Activation
		if p.TimeConstant > 0 {
			v += p.TimeStep / p.TimeConstant * (nakaRushton(p, in) - s.Activation)
		}
	case Binary:
		v = r.Bounds.Floor
		if in > r.Binary.Threshold {
			v = r.Bounds.Ceiling
		}
	case ThreeValue:
		p := r.ThreeValue
		switch {
		case in < p.LowerThreshold:
			v = p.LowerValue
		case in > p.UpperThreshold:
			v = p.UpperValue
		default:
			v = p.MiddleValue
		}
	}
	if r.Noise.Enabled && s.Rand != nil {
		v += (s.Rand.Float64()*2 - 1) * r.Noise.Amplitude
	}
	return r.Clip(v)
}

func (r NeuronRule) Clip(v float64) float64 {
	if !r.Bounds.Clipping {
		return v
	}
	if v < r.Bounds.Floor {
		return r.Bounds.Floor
	}
	if v > r.Bounds.Ceiling {
		return r.Bounds.Ceiling
	}
	return v
}

// Derivative reports the slope of the rule at v. The second result is false
// for rules that have no meaningful derivative.
func (r NeuronRule) Derivative(v float64) (float64, bool) {
	switch r.Kind {
	case Linear:
		if r.Bounds.Clipping && (v <= r.Bounds.Floor || v >= r.Bounds.Ceiling) {
			return 0, true
		}
		return r.Linear.Slope, true
	case Binary, ThreeValue:
		return 0, true
	case NakaRushton:
		p := r.NakaRushton
		if v <= 0 {
			return 0, true
		}
		sn := math.Pow(p.Sigma, p.Steepness)
		xn := math.Pow(v, p.Steepness)
		den := sn + xn
		return p.MaxRate * p.Steepness * sn * math.Pow(v, p.Steepness-1) / (den * den), true
	default:
		return 0, false
	}
}

func (r NeuronRule) Clone() NeuronRule {
	return r
}

func (r NeuronRule) Validate() error {
	if !knownNeuronKind(r.Kind) {
		return fmt.Errorf("%w: %q", ErrUnknownRule, r.Kind)
	}
	if r.Bounds.Clipping && r.Bounds.Floor > r.Bounds.Ceiling {
		return fmt.Errorf("rule %s: floor %.3f above ceiling %.3f", r.Kind, r.Bounds.Floor, r.Bounds.Ceiling)
	}
	if r.Noise.Amplitude < 0 {
		return fmt.Errorf("rule %s: noise amplitude must be >= 0", r.Kind)
	}
	if r.Kind == NakaRushton && r.NakaRushton.TimeConstant <= 0 {
		return fmt.Errorf("rule %s: time constant must be > 0", r.Kind)
	}
	if r.Kind == ThreeValue && r.ThreeValue.LowerThreshold > r.ThreeValue.UpperThreshold {
		return fmt.Errorf("rule %s: lower threshold above upper threshold", r.Kind)
	}
	return nil
}

// WithBounds returns r with its clip bounds replaced.
func (r NeuronRule) WithBounds(floor, ceiling float64) NeuronRule {
	r.Bounds = Bounds{Floor: floor, Ceiling: ceiling, Clipping: true}
	return r
}

func decay(p DecayParams, v float64) float64 {
	distance := math.Abs(v - p.BaseLine)
	step := p.DecayAmount
	if p.Relative {
		step = p.DecayFraction * distance
	}
	if step > distance {
		step = distance
	}
	if v < p.BaseLine {
		return v + step
	}
	return v - step
}

func nakaRushton(p NakaRushtonParams, s float64) float64 {
	if s <= 0 {
		return 0
	}
	xn := math.Pow(s, p.Steepness)
	return p.MaxRate * xn / (math.Pow(p.Sigma, p.Steepness) + xn)
}

func knownNeuronKind(kind NeuronKind) bool {
	for _, k := range neuronKinds {
		if k == kind {
			return true
		}
	}
	return false
}
