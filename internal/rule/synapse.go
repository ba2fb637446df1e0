package rule

import "fmt"

// SynapseKind names one variant of the closed synapse learning rule set.
type SynapseKind string

const (
	Static           SynapseKind = "static"
	Hebbian          SynapseKind = "hebbian"
	Oja              SynapseKind = "oja"
	HebbianThreshold SynapseKind = "hebbian_threshold"
)

var synapseKinds = []SynapseKind{Static, Hebbian, Oja, HebbianThreshold}

type HebbianParams struct {
	LearningRate float64 `json:"learning_rate"`
}

type OjaParams struct {
	LearningRate float64 `json:"learning_rate"`
}

type HebbianThresholdParams struct {
	LearningRate    float64 `json:"learning_rate"`
	OutputThreshold float64 `json:"output_threshold"`
	Momentum        float64 `json:"momentum"`
	Sliding         bool    `json:"sliding"`
}

type SynapseRule struct {
	Kind             SynapseKind            `json:"kind"`
	Hebbian          HebbianParams          `json:"hebbian"`
	Oja              OjaParams              `json:"oja"`
	HebbianThreshold HebbianThresholdParams `json:"hebbian_threshold"`
}

// Update returns the unclipped next strength given the previous step's source
// (pre) and target (post) activations. The returned rule carries any state the
// variant maintains between steps, such as a sliding threshold.
func (r SynapseRule) Update(pre, post, strength float64) (float64, SynapseRule) {
	switch r.Kind {
	case Hebbian:
		return strength + r.Hebbian.LearningRate*pre*post, r
	case Oja:
		return strength + r.Oja.LearningRate*post*(pre-post*strength), r
	case HebbianThreshold:
		p := &r.HebbianThreshold
		if p.Sliding {
			p.OutputThreshold += p.Momentum * (post*post - p.OutputThreshold)
		}
		return strength + p.LearningRate*pre*post*(post-p.OutputThreshold), r
	default:
		return strength, r
	}
}

// Plastic reports whether Update can ever change a strength.
func (r SynapseRule) Plastic() bool {
	return r.Kind != Static && r.Kind != ""
}

func (r SynapseRule) Clone() SynapseRule {
	return r
}

func (r SynapseRule) Validate() error {
	if r.Kind == "" {
		return nil
	}
	for _, k := range synapseKinds {
		if k == r.Kind {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrUnknownRule, r.Kind)
}

// ClipStrength clamps w into [lower, upper].
func ClipStrength(w, lower, upper float64) float64 {
	if w < lower {
		return lower
	}
	if w > upper {
		return upper
	}
	return w
}
