package rule

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

var (
	ErrUnknownRule = errors.New("unknown update rule")
	ErrRuleExists  = errors.New("update rule already registered")
)

var registry = struct {
	mu       sync.RWMutex
	neurons  map[string]NeuronRule
	synapses map[string]SynapseRule
}{
	neurons:  make(map[string]NeuronRule),
	synapses: make(map[string]SynapseRule),
}

func init() {
	initializeBuiltInRules()
}

func initializeBuiltInRules() {
	bounds := Bounds{Floor: -1, Ceiling: 1, Clipping: true}
	MustRegisterNeuronRule(string(Linear), NeuronRule{
		Kind:   Linear,
		Bounds: bounds,
		Linear: LinearParams{Slope: 1},
	})
	MustRegisterNeuronRule(string(Decay), NeuronRule{
		Kind:   Decay,
		Bounds: bounds,
		Decay:  DecayParams{DecayFraction: 0.1, DecayAmount: 0.1, Relative: true},
	})
	MustRegisterNeuronRule(string(NakaRushton), NeuronRule{
		Kind:   NakaRushton,
		Bounds: bounds,
		NakaRushton: NakaRushtonParams{
			MaxRate:      1,
			Sigma:        0.5,
			Steepness:    2,
			TimeConstant: 1,
			TimeStep:     0.1,
		},
	})
	MustRegisterNeuronRule(string(Binary), NeuronRule{
		Kind:   Binary,
		Bounds: bounds,
		Binary: BinaryParams{Threshold: 0.5},
	})
	MustRegisterNeuronRule(string(ThreeValue), NeuronRule{
		Kind:   ThreeValue,
		Bounds: bounds,
		ThreeValue: ThreeValueParams{
			LowerThreshold: 0,
			UpperThreshold: 1,
			LowerValue:     -1,
			MiddleValue:    0,
			UpperValue:     1,
		},
	})

	MustRegisterSynapseRule(string(Static), SynapseRule{Kind: Static})
	MustRegisterSynapseRule(string(Hebbian), SynapseRule{Kind: Hebbian, Hebbian: HebbianParams{LearningRate: 0.1}})
	MustRegisterSynapseRule(string(Oja), SynapseRule{Kind: Oja, Oja: OjaParams{LearningRate: 0.1}})
	MustRegisterSynapseRule(string(HebbianThreshold), SynapseRule{
		Kind: HebbianThreshold,
		HebbianThreshold: HebbianThresholdParams{
			LearningRate:    0.1,
			OutputThreshold: 0.5,
			Momentum:        0.1,
		},
	})
}

// RegisterNeuronRule adds a named template. The template's Kind must be one of
// the built-in variants; names act as presets over those variants.
func RegisterNeuronRule(name string, template NeuronRule) error {
	name = normalizeName(name)
	if name == "" {
		return errors.New("rule name is required")
	}
	if err := template.Validate(); err != nil {
		return err
	}

	registry.mu.Lock()
	defer registry.mu.Unlock()

	if _, exists := registry.neurons[name]; exists {
		return fmt.Errorf("%w: %s", ErrRuleExists, name)
	}
	registry.neurons[name] = template
	return nil
}

func MustRegisterNeuronRule(name string, template NeuronRule) {
	if err := RegisterNeuronRule(name, template); err != nil {
		panic(err)
	}
}

func RegisterSynapseRule(name string, template SynapseRule) error {
	name = normalizeName(name)
	if name == "" {
		return errors.New("rule name is required")
	}
	if err := template.Validate(); err != nil {
		return err
	}

	registry.mu.Lock()
	defer registry.mu.Unlock()

	if _, exists := registry.synapses[name]; exists {
		return fmt.Errorf("%w: %s", ErrRuleExists, name)
	}
	registry.synapses[name] = template
	return nil
}

func MustRegisterSynapseRule(name string, template SynapseRule) {
	if err := RegisterSynapseRule(name, template); err != nil {
		panic(err)
	}
}

// NeuronTemplate returns an independent copy of the named template.
func NeuronTemplate(name string) (NeuronRule, error) {
	registry.mu.RLock()
	template, ok := registry.neurons[normalizeName(name)]
	registry.mu.RUnlock()
	if !ok {
		return NeuronRule{}, fmt.Errorf("%w: %s", ErrUnknownRule, name)
	}
	return template.Clone(), nil
}

func SynapseTemplate(name string) (SynapseRule, error) {
	registry.mu.RLock()
	template, ok := registry.synapses[normalizeName(name)]
	registry.mu.RUnlock()
	if !ok {
		return SynapseRule{}, fmt.Errorf("%w: %s", ErrUnknownRule, name)
	}
	return template.Clone(), nil
}

func ListNeuronRules() []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	names := make([]string, 0, len(registry.neurons))
	for name := range registry.neurons {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func ListSynapseRules() []string {
	registry.mu.RLock()
	defer registry.mu.RUnlock()

	names := make([]string, 0, len(registry.synapses))
	for name := range registry.synapses {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func resetRegistryForTests() {
	registry.mu.Lock()
	registry.neurons = make(map[string]NeuronRule)
	registry.synapses = make(map[string]SynapseRule)
	registry.mu.Unlock()
	initializeBuiltInRules()
}
