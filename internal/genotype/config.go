package genotype

import (
	"evonet/internal/nn"
	"evonet/internal/rule"
)

// Config bounds what a genome may encode. Mutation and crossover keep genomes
// inside it; Decode rejects anything outside it.
type Config struct {
	NumInputs             int      `json:"num_inputs"`
	NumOutputs            int      `json:"num_outputs"`
	AllowSelfConnection   bool     `json:"allow_self_connection"`
	MaxNodes              int      `json:"max_nodes"`
	MinConnectionStrength float64  `json:"min_connection_strength"`
	MaxConnectionStrength float64  `json:"max_connection_strength"`
	NodeMaxBias           float64  `json:"node_max_bias"`
	MinNeuronActivation   float64  `json:"min_neuron_activation"`
	MaxNeuronActivation   float64  `json:"max_neuron_activation"`
	AllowedRules          []string `json:"allowed_rules"`
	SynapseRules          []string `json:"synapse_rules"`
	InitialTopology       string   `json:"initial_topology"`
	InitialDensity        float64  `json:"initial_density"`
}

// DefaultConfig matches the odor world foraging experiment.
func DefaultConfig() Config {
	return Config{
		NumInputs:             2,
		NumOutputs:            3,
		AllowSelfConnection:   true,
		MaxNodes:              10,
		MinConnectionStrength: -0.5,
		MaxConnectionStrength: 2,
		NodeMaxBias:           2,
		MinNeuronActivation:   -1,
		MaxNeuronActivation:   4,
		AllowedRules: []string{
			string(rule.Linear),
			string(rule.Decay),
			string(rule.NakaRushton),
			string(rule.Binary),
			string(rule.ThreeValue),
		},
		SynapseRules:    []string{string(rule.Static)},
		InitialTopology: "one_to_one",
		InitialDensity:  0.5,
	}
}

func (c Config) Validate() error {
	switch {
	case c.NumInputs <= 0:
		return &ConfigurationError{Field: "num_inputs", Reason: "must be > 0"}
	case c.NumOutputs <= 0:
		return &ConfigurationError{Field: "num_outputs", Reason: "must be > 0"}
	case c.MaxNodes < 0:
		return &ConfigurationError{Field: "max_nodes", Reason: "must be >= 0"}
	case c.MaxConnectionStrength < c.MinConnectionStrength:
		return &ConfigurationError{Field: "max_connection_strength", Reason: "must be >= min_connection_strength"}
	case c.NodeMaxBias < 0:
		return &ConfigurationError{Field: "node_max_bias", Reason: "must be >= 0"}
	case c.MaxNeuronActivation < c.MinNeuronActivation:
		return &ConfigurationError{Field: "max_neuron_activation", Reason: "must be >= min_neuron_activation"}
	case len(c.AllowedRules) == 0:
		return &ConfigurationError{Field: "allowed_rules", Reason: "at least one rule is required"}
	}
	for _, name := range c.AllowedRules {
		if _, err := rule.NeuronTemplate(name); err != nil {
			return &ConfigurationError{Field: "allowed_rules", Reason: err.Error()}
		}
	}
	for _, name := range c.synapseRules() {
		if _, err := rule.SynapseTemplate(name); err != nil {
			return &ConfigurationError{Field: "synapse_rules", Reason: err.Error()}
		}
	}
	if _, err := nn.ParseStrategy(c.InitialTopology, c.InitialDensity, 0, c.AllowSelfConnection); err != nil {
		return &ConfigurationError{Field: "initial_topology", Reason: err.Error()}
	}
	return nil
}

func (c Config) clone() Config {
	out := c
	out.AllowedRules = append([]string(nil), c.AllowedRules...)
	out.SynapseRules = append([]string(nil), c.SynapseRules...)
	return out
}

func (c Config) synapseRules() []string {
	if len(c.SynapseRules) == 0 {
		return []string{string(rule.Static)}
	}
	return c.SynapseRules
}

func (c Config) ruleAllowed(name string) bool {
	return contains(c.AllowedRules, name)
}

func (c Config) synapseRuleAllowed(name string) bool {
	return contains(c.synapseRules(), name)
}

func contains(list []string, name string) bool {
	for _, item := range list {
		if item == name {
			return true
		}
	}
	return false
}
