package nn

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"evonet/internal/rule"
)

type (
	NeuronID  int
	SynapseID int
)

// Group names a fixed, ordinal-addressable neuron collection.
type Group string

const (
	GroupInput  Group = "inputs"
	GroupOutput Group = "outputs"
	GroupHidden Group = "hidden"
)

var (
	ErrNeuronNotFound  = errors.New("neuron not found")
	ErrSynapseNotFound = errors.New("synapse not found")
)

type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// NeuronSpec describes a neuron to add. NoiseSeed seeds the neuron's private
// generator so noisy rules stay reproducible.
type NeuronSpec struct {
	Label      string
	Group      Group
	Position   Position
	Rule       rule.NeuronRule
	Activation float64
	Clamped    bool
	NoiseSeed  int64
}

type Neuron struct {
	ID         NeuronID
	Label      string
	Group      Group
	Position   Position
	Rule       rule.NeuronRule
	Activation float64
	Clamped    bool

	noiseSeed int64
	rng       *rand.Rand
	buffer    float64
	initial   NeuronSpec
}

type SynapseSpec struct {
	Source   NeuronID
	Target   NeuronID
	Strength float64
	Rule     rule.SynapseRule
	Lower    float64
	Upper    float64
}

type Synapse struct {
	ID       SynapseID
	Source   NeuronID
	Target   NeuronID
	Strength float64
	Rule     rule.SynapseRule
	Lower    float64
	Upper    float64

	buffer     float64
	bufferRule rule.SynapseRule
	initial    SynapseSpec
}

// Network owns its neurons, synapses, layers and weight matrices. Handles are
// stable for the lifetime of the network; removed slots stay nil.
type Network struct {
	neurons  []*Neuron
	synapses []*Synapse
	groups   map[Group][]NeuronID

	layers   []*layerEntry
	matrices []*matrixEntry
	views    map[Group]*GroupView

	steps int
}

func New() *Network {
	return &Network{
		groups: make(map[Group][]NeuronID),
		views:  make(map[Group]*GroupView),
	}
}

func (n *Network) AddNeuron(spec NeuronSpec) NeuronID {
	id := NeuronID(len(n.neurons))
	neuron := &Neuron{
		ID:         id,
		Label:      spec.Label,
		Group:      spec.Group,
		Position:   spec.Position,
		Rule:       spec.Rule.Clone(),
		Activation: spec.Activation,
		Clamped:    spec.Clamped,
		noiseSeed:  spec.NoiseSeed,
		rng:        rand.New(rand.NewSource(spec.NoiseSeed)),
		initial:    spec,
	}
	n.neurons = append(n.neurons, neuron)
	if spec.Group != "" {
		n.groups[spec.Group] = append(n.groups[spec.Group], id)
		n.rebuildGroupMatrices(spec.Group)
	}
	return id
}

func (n *Network) AddSynapse(spec SynapseSpec) (SynapseID, error) {
	if n.neuron(spec.Source) == nil {
		return 0, fmt.Errorf("%w: source %d", ErrNeuronNotFound, spec.Source)
	}
	if n.neuron(spec.Target) == nil {
		return 0, fmt.Errorf("%w: target %d", ErrNeuronNotFound, spec.Target)
	}
	if spec.Lower > spec.Upper {
		return 0, fmt.Errorf("synapse bounds inverted: [%f, %f]", spec.Lower, spec.Upper)
	}
	spec.Rule = spec.Rule.Clone()
	id := SynapseID(len(n.synapses))
	n.synapses = append(n.synapses, &Synapse{
		ID:       id,
		Source:   spec.Source,
		Target:   spec.Target,
		Strength: spec.Strength,
		Rule:     spec.Rule,
		Lower:    spec.Lower,
		Upper:    spec.Upper,
		initial:  spec,
	})
	return id, nil
}

// RemoveNeuron deletes the neuron and every synapse touching it. Matrices
// reading or writing the neuron's group are rebuilt to the new group size.
func (n *Network) RemoveNeuron(id NeuronID) error {
	neuron := n.neuron(id)
	if neuron == nil {
		return fmt.Errorf("%w: %d", ErrNeuronNotFound, id)
	}
	for i, s := range n.synapses {
		if s != nil && (s.Source == id || s.Target == id) {
			n.synapses[i] = nil
		}
	}
	n.neurons[id] = nil
	if neuron.Group != "" {
		members := n.groups[neuron.Group]
		for i, member := range members {
			if member == id {
				n.groups[neuron.Group] = append(members[:i:i], members[i+1:]...)
				break
			}
		}
		n.rebuildGroupMatrices(neuron.Group)
	}
	return nil
}

func (n *Network) RemoveSynapse(id SynapseID) error {
	if n.synapse(id) == nil {
		return fmt.Errorf("%w: %d", ErrSynapseNotFound, id)
	}
	n.synapses[id] = nil
	return nil
}

func (n *Network) Neuron(id NeuronID) (Neuron, bool) {
	neuron := n.neuron(id)
	if neuron == nil {
		return Neuron{}, false
	}
	return *neuron, true
}

func (n *Network) Synapse(id SynapseID) (Synapse, bool) {
	s := n.synapse(id)
	if s == nil {
		return Synapse{}, false
	}
	return *s, true
}

func (n *Network) Synapses() []Synapse {
	out := make([]Synapse, 0, len(n.synapses))
	for _, s := range n.synapses {
		if s != nil {
			out = append(out, *s)
		}
	}
	return out
}

func (n *Network) NeuronCount() int {
	count := 0
	for _, neuron := range n.neurons {
		if neuron != nil {
			count++
		}
	}
	return count
}

func (n *Network) SynapseCount() int {
	count := 0
	for _, s := range n.synapses {
		if s != nil {
			count++
		}
	}
	return count
}

// Group returns the members of g in ordinal order.
func (n *Network) Group(g Group) []NeuronID {
	return append([]NeuronID(nil), n.groups[g]...)
}

func (n *Network) NeuronAt(g Group, index int) (NeuronID, error) {
	members := n.groups[g]
	if index < 0 || index >= len(members) {
		return 0, fmt.Errorf("group %s has no neuron at index %d", g, index)
	}
	return members[index], nil
}

func (n *Network) Activation(id NeuronID) float64 {
	if neuron := n.neuron(id); neuron != nil {
		return neuron.Activation
	}
	return 0
}

func (n *Network) SetActivation(id NeuronID, v float64) error {
	neuron := n.neuron(id)
	if neuron == nil {
		return fmt.Errorf("%w: %d", ErrNeuronNotFound, id)
	}
	neuron.Activation = v
	return nil
}

// Clamp pins a neuron to v; Step leaves clamped neurons untouched.
func (n *Network) Clamp(id NeuronID, v float64) error {
	neuron := n.neuron(id)
	if neuron == nil {
		return fmt.Errorf("%w: %d", ErrNeuronNotFound, id)
	}
	neuron.Activation = v
	neuron.Clamped = true
	return nil
}

// SetInputs clamps the input group to values by ordinal.
func (n *Network) SetInputs(values []float64) error {
	inputs := n.groups[GroupInput]
	if len(values) != len(inputs) {
		return fmt.Errorf("input size mismatch: got=%d want=%d", len(values), len(inputs))
	}
	for i, id := range inputs {
		if err := n.Clamp(id, values[i]); err != nil {
			return err
		}
	}
	return nil
}

// GroupActivations returns the activations of g by ordinal.
func (n *Network) GroupActivations(g Group) []float64 {
	members := n.groups[g]
	out := make([]float64, len(members))
	for i, id := range members {
		out[i] = n.neurons[id].Activation
	}
	return out
}

func (n *Network) Outputs() []float64 {
	return n.GroupActivations(GroupOutput)
}

// Steps reports how many steps were committed since the last Reset.
func (n *Network) Steps() int {
	return n.steps
}

// Step advances the network by one update. Every new neuron activation and
// synapse strength is computed from the previous step's state, then all of
// them are committed together. Nothing is committed when a value would be
// non-finite.
func (n *Network) Step() error {
	inputs, err := n.weightedInputs()
	if err != nil {
		return err
	}
	for _, neuron := range n.neurons {
		if neuron == nil || neuron.Clamped {
			continue
		}
		neuron.buffer = neuron.Rule.Update(rule.NeuronState{
			Activation: neuron.Activation,
			Input:      inputs[neuron.ID],
			Rand:       neuron.rng,
		})
		if !finite(neuron.buffer) {
			return &UnstableError{Element: "neuron", ID: int(neuron.ID), Value: neuron.buffer}
		}
	}
	if err := n.bufferSynapses(); err != nil {
		return err
	}

	for _, neuron := range n.neurons {
		if neuron == nil || neuron.Clamped {
			continue
		}
		neuron.Activation = neuron.buffer
	}
	n.commitSynapses()
	n.steps++
	return nil
}

// Reset restores every neuron and synapse to the state it was added with.
func (n *Network) Reset() {
	for _, neuron := range n.neurons {
		if neuron == nil {
			continue
		}
		neuron.Activation = neuron.initial.Activation
		neuron.Clamped = neuron.initial.Clamped
		neuron.Rule = neuron.initial.Rule.Clone()
		neuron.rng = rand.New(rand.NewSource(neuron.noiseSeed))
		neuron.buffer = 0
	}
	for _, s := range n.synapses {
		if s == nil {
			continue
		}
		s.Strength = s.initial.Strength
		s.Rule = s.initial.Rule.Clone()
		s.buffer = 0
	}
	n.steps = 0
}

func (n *Network) weightedInputs() ([]float64, error) {
	inputs := make([]float64, len(n.neurons))
	for _, s := range n.synapses {
		if s == nil {
			continue
		}
		inputs[s.Target] += s.Strength * n.neurons[s.Source].Activation
	}
	for _, entry := range n.matrices {
		if entry == nil {
			continue
		}
		view, ok := entry.w.Target().(*GroupView)
		if !ok {
			continue
		}
		values, err := entry.w.Apply()
		if err != nil {
			return nil, fmt.Errorf("matrix %d: %w", entry.id, err)
		}
		for j, id := range n.groups[view.group] {
			inputs[id] += values[j]
		}
	}
	return inputs, nil
}

func (n *Network) neuron(id NeuronID) *Neuron {
	if id < 0 || int(id) >= len(n.neurons) {
		return nil
	}
	return n.neurons[id]
}

func (n *Network) synapse(id SynapseID) *Synapse {
	if id < 0 || int(id) >= len(n.synapses) {
		return nil
	}
	return n.synapses[id]
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
