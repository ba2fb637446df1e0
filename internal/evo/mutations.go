package evo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"

	"evonet/internal/genotype"
	"evonet/internal/nn"
	"evonet/internal/rule"
)

var (
	ErrNoConnections    = errors.New("genome has no connections")
	ErrNoMutableNodes   = errors.New("genome has no mutable nodes")
	ErrNoMutationChoice = errors.New("no mutation choice available")
)

// PerturbWeight shifts one connection strength by a uniform draw in
// [-MaxDelta, MaxDelta], kept inside the configured strength range.
type PerturbWeight struct {
	MaxDelta float64
}

func (PerturbWeight) Name() string {
	return "perturb_weight"
}

func (PerturbWeight) Structural() bool {
	return false
}

func (o PerturbWeight) Apply(_ context.Context, genome genotype.Genome, scale float64) (genotype.Genome, error) {
	if len(genome.Connections) == 0 {
		return genotype.Genome{}, ErrNoConnections
	}
	if o.MaxDelta <= 0 {
		return genotype.Genome{}, errors.New("max delta must be > 0")
	}

	mutated := genome.Copy()
	rng := mutated.Rand()
	cfg := mutated.Config
	conn := &mutated.Connections[rng.Intn(len(mutated.Connections))]
	conn.Strength = clamp(conn.Strength+uniform(rng, o.MaxDelta*scale), cfg.MinConnectionStrength, cfg.MaxConnectionStrength)
	mutated.Advance(rng)
	return mutated, nil
}

// PerturbBias shifts the bias of one output or hidden node.
type PerturbBias struct {
	MaxDelta float64
}

func (PerturbBias) Name() string {
	return "perturb_bias"
}

func (PerturbBias) Structural() bool {
	return false
}

func (o PerturbBias) Apply(_ context.Context, genome genotype.Genome, scale float64) (genotype.Genome, error) {
	candidates := mutableNodes(genome)
	if len(candidates) == 0 {
		return genotype.Genome{}, ErrNoMutableNodes
	}
	if o.MaxDelta <= 0 {
		return genotype.Genome{}, errors.New("max delta must be > 0")
	}

	mutated := genome.Copy()
	rng := mutated.Rand()
	limit := mutated.Config.NodeMaxBias
	node := &mutated.Nodes[candidates[rng.Intn(len(candidates))]]
	node.Rule.Bias = clamp(node.Rule.Bias+uniform(rng, o.MaxDelta*scale), -limit, limit)
	mutated.Advance(rng)
	return mutated, nil
}

// PerturbRule nudges the main parameter of one node's update rule.
type PerturbRule struct {
	MaxDelta float64
}

func (PerturbRule) Name() string {
	return "perturb_rule"
}

func (PerturbRule) Structural() bool {
	return false
}

func (o PerturbRule) Apply(_ context.Context, genome genotype.Genome, scale float64) (genotype.Genome, error) {
	candidates := mutableNodes(genome)
	if len(candidates) == 0 {
		return genotype.Genome{}, ErrNoMutableNodes
	}
	if o.MaxDelta <= 0 {
		return genotype.Genome{}, errors.New("max delta must be > 0")
	}

	mutated := genome.Copy()
	rng := mutated.Rand()
	r := &mutated.Nodes[candidates[rng.Intn(len(candidates))]].Rule
	delta := uniform(rng, o.MaxDelta*scale)
	switch r.Kind {
	case rule.Linear:
		r.Linear.Slope += delta
	case rule.Decay:
		r.Decay.BaseLine += delta
		r.Decay.DecayFraction = clamp(r.Decay.DecayFraction+delta/10, 0, 1)
	case rule.NakaRushton:
		r.NakaRushton.Sigma = math.Max(0.01, r.NakaRushton.Sigma+delta)
	case rule.Binary:
		r.Binary.Threshold += delta
	case rule.ThreeValue:
		r.ThreeValue.LowerThreshold += delta
		r.ThreeValue.UpperThreshold += delta
	}
	mutated.Advance(rng)
	return mutated, nil
}

// ChangeRule swaps one node's update rule for a fresh draw from the allowed
// rules. The node keeps its bias.
type ChangeRule struct{}

func (ChangeRule) Name() string {
	return "change_rule"
}

func (ChangeRule) Structural() bool {
	return false
}

func (ChangeRule) Apply(_ context.Context, genome genotype.Genome, _ float64) (genotype.Genome, error) {
	candidates := mutableNodes(genome)
	if len(candidates) == 0 {
		return genotype.Genome{}, ErrNoMutableNodes
	}

	mutated := genome.Copy()
	rng := mutated.Rand()
	node := &mutated.Nodes[candidates[rng.Intn(len(candidates))]]
	name, r, err := mutated.RandomNeuronRule(rng)
	if err != nil {
		return genotype.Genome{}, err
	}
	r.Bias = node.Rule.Bias
	node.RuleName = name
	node.Rule = r
	mutated.Advance(rng)
	return mutated, nil
}

// AddConnection links a random source node to a random output or hidden
// node that it does not already feed.
type AddConnection struct{}

func (AddConnection) Name() string {
	return "add_connection"
}

func (AddConnection) Structural() bool {
	return true
}

func (AddConnection) Apply(_ context.Context, genome genotype.Genome, _ float64) (genotype.Genome, error) {
	type pair struct {
		from genotype.NodeID
		to   genotype.NodeID
	}
	candidates := make([]pair, 0, len(genome.Nodes)*len(genome.Nodes))
	for _, from := range genome.Nodes {
		for _, to := range genome.Nodes {
			if to.Group == nn.GroupInput {
				continue
			}
			if from.ID == to.ID && !genome.Config.AllowSelfConnection {
				continue
			}
			if genome.HasConnection(from.ID, to.ID) {
				continue
			}
			candidates = append(candidates, pair{from: from.ID, to: to.ID})
		}
	}
	if len(candidates) == 0 {
		return genotype.Genome{}, ErrNoMutationChoice
	}

	mutated := genome.Copy()
	rng := mutated.Rand()
	selected := candidates[rng.Intn(len(candidates))]
	if _, err := mutated.AddConnection(selected.from, selected.to, mutated.RandomStrength(rng), rng); err != nil {
		return genotype.Genome{}, err
	}
	mutated.Advance(rng)
	return mutated, nil
}

// RemoveConnection drops one connection. The result may disconnect an output,
// in which case decoding rejects it.
type RemoveConnection struct{}

func (RemoveConnection) Name() string {
	return "remove_connection"
}

func (RemoveConnection) Structural() bool {
	return false
}

func (RemoveConnection) Apply(_ context.Context, genome genotype.Genome, _ float64) (genotype.Genome, error) {
	if len(genome.Connections) <= 1 {
		return genotype.Genome{}, ErrNoConnections
	}

	mutated := genome.Copy()
	rng := mutated.Rand()
	if err := mutated.RemoveConnection(rng.Intn(len(mutated.Connections))); err != nil {
		return genotype.Genome{}, err
	}
	mutated.Advance(rng)
	return mutated, nil
}

// AddNode splits a connection source->target into source->hidden->target.
// The new inbound link starts at strength 1 and the outbound link keeps the
// old strength.
type AddNode struct{}

func (AddNode) Name() string {
	return "add_node"
}

func (AddNode) Structural() bool {
	return true
}

func (AddNode) Apply(_ context.Context, genome genotype.Genome, _ float64) (genotype.Genome, error) {
	if genome.HiddenCount() >= genome.Config.MaxNodes {
		return genotype.Genome{}, fmt.Errorf("%w: hidden=%d max=%d", genotype.ErrMaxNodes, genome.HiddenCount(), genome.Config.MaxNodes)
	}
	candidates := make([]int, 0, len(genome.Connections))
	for i, conn := range genome.Connections {
		if conn.Source != conn.Target {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return genotype.Genome{}, ErrNoConnections
	}

	mutated := genome.Copy()
	rng := mutated.Rand()
	idx := candidates[rng.Intn(len(candidates))]
	split := mutated.Connections[idx]
	if err := mutated.RemoveConnection(idx); err != nil {
		return genotype.Genome{}, err
	}
	name, r, err := mutated.RandomNeuronRule(rng)
	if err != nil {
		return genotype.Genome{}, err
	}
	hidden := mutated.AddNode(nn.GroupHidden, name, r, rng.Int63())
	cfg := mutated.Config
	if _, err := mutated.AddConnection(split.Source, hidden, clamp(1, cfg.MinConnectionStrength, cfg.MaxConnectionStrength), rng); err != nil {
		return genotype.Genome{}, err
	}
	if _, err := mutated.AddConnection(hidden, split.Target, split.Strength, rng); err != nil {
		return genotype.Genome{}, err
	}
	mutated.Advance(rng)
	return mutated, nil
}

// ChangeSynapseRule redraws one connection's plasticity rule from the allowed
// synapse rules.
type ChangeSynapseRule struct{}

func (ChangeSynapseRule) Name() string {
	return "change_synapse_rule"
}

func (ChangeSynapseRule) Structural() bool {
	return false
}

func (ChangeSynapseRule) Apply(_ context.Context, genome genotype.Genome, _ float64) (genotype.Genome, error) {
	if len(genome.Connections) == 0 {
		return genotype.Genome{}, ErrNoConnections
	}

	mutated := genome.Copy()
	rng := mutated.Rand()
	conn := &mutated.Connections[rng.Intn(len(mutated.Connections))]
	name, r, err := mutated.RandomSynapseRule(rng)
	if err != nil {
		return genotype.Genome{}, err
	}
	conn.RuleName = name
	conn.Rule = r
	mutated.Advance(rng)
	return mutated, nil
}

func mutableNodes(genome genotype.Genome) []int {
	out := make([]int, 0, len(genome.Nodes))
	for i, node := range genome.Nodes {
		if node.Group != nn.GroupInput {
			out = append(out, i)
		}
	}
	return out
}

func uniform(rng *rand.Rand, limit float64) float64 {
	return (rng.Float64()*2 - 1) * limit
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
