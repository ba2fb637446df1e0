package genotype

import (
	"fmt"
	"math/rand"

	"evonet/internal/nn"
	"evonet/internal/rule"
)

type NodeID int

type NodeGene struct {
	ID        NodeID          `json:"id"`
	Group     nn.Group        `json:"group"`
	RuleName  string          `json:"rule_name"`
	Rule      rule.NeuronRule `json:"rule"`
	Position  nn.Position     `json:"position"`
	NoiseSeed int64           `json:"noise_seed"`
}

type ConnectionGene struct {
	ID       int              `json:"id"`
	Source   NodeID           `json:"source"`
	Target   NodeID           `json:"target"`
	Strength float64          `json:"strength"`
	RuleName string           `json:"rule_name"`
	Rule     rule.SynapseRule `json:"rule"`
}

// Genome is the evolvable encoding of one network. Seed is the whole state of
// the genome's generator: every random draw made on its behalf starts from
// Seed and stores a fresh seed afterwards.
type Genome struct {
	ID               string           `json:"id"`
	Config           Config           `json:"config"`
	Nodes            []NodeGene       `json:"nodes"`
	Connections      []ConnectionGene `json:"connections"`
	Seed             int64            `json:"seed"`
	NextNodeID       NodeID           `json:"next_node_id"`
	NextConnectionID int              `json:"next_connection_id"`
}

const (
	layoutSpacing = 50.0
	inputRowY     = 0.0
	hiddenRowY    = 100.0
	outputRowY    = 200.0
)

// New builds a minimal genome: the input and output groups wired by the
// configured initial topology, with every output reachable from an input.
func New(cfg Config, seed int64) (Genome, error) {
	if err := cfg.Validate(); err != nil {
		return Genome{}, err
	}
	g := Genome{Config: cfg.clone(), Seed: seed}
	rng := g.Rand()

	inputRule, err := inputNeuronRule(cfg)
	if err != nil {
		return Genome{}, err
	}
	for i := 0; i < cfg.NumInputs; i++ {
		g.AddNode(nn.GroupInput, string(rule.Linear), inputRule, rng.Int63())
	}
	for i := 0; i < cfg.NumOutputs; i++ {
		name, r, err := g.RandomNeuronRule(rng)
		if err != nil {
			return Genome{}, err
		}
		g.AddNode(nn.GroupOutput, name, r, rng.Int63())
	}

	strategy, err := nn.ParseStrategy(cfg.InitialTopology, cfg.InitialDensity, rng.Int63(), cfg.AllowSelfConnection)
	if err != nil {
		return Genome{}, &ConfigurationError{Field: "initial_topology", Reason: err.Error()}
	}
	inputs := g.NodesIn(nn.GroupInput)
	outputs := g.NodesIn(nn.GroupOutput)
	for _, link := range strategy.Plan(g.refs(inputs), g.refs(outputs)) {
		if _, err := g.AddConnection(NodeID(link.Source), NodeID(link.Target), g.RandomStrength(rng), rng); err != nil {
			return Genome{}, err
		}
	}
	for _, out := range outputs {
		if len(g.Inbound(out)) > 0 {
			continue
		}
		src := inputs[rng.Intn(len(inputs))]
		if _, err := g.AddConnection(src, out, g.RandomStrength(rng), rng); err != nil {
			return Genome{}, err
		}
	}
	g.Advance(rng)
	return g, nil
}

// Rand returns a generator positioned at the genome's current state.
func (g *Genome) Rand() *rand.Rand {
	return rand.New(rand.NewSource(g.Seed))
}

// Advance stores the generator's next state back into the genome.
func (g *Genome) Advance(rng *rand.Rand) {
	g.Seed = rng.Int63()
}

// Copy deep-copies the genome, generator state included.
func (g *Genome) Copy() Genome {
	out := *g
	out.Config = g.Config.clone()
	out.Nodes = make([]NodeGene, len(g.Nodes))
	out.Connections = make([]ConnectionGene, len(g.Connections))
	for i, node := range g.Nodes {
		node.Rule = node.Rule.Clone()
		out.Nodes[i] = node
	}
	for i, conn := range g.Connections {
		conn.Rule = conn.Rule.Clone()
		out.Connections[i] = conn
	}
	return out
}

// Clone deep-copies the genome. The child gets its own seed drawn from the
// parent's generator, which advances the parent.
func (g *Genome) Clone() Genome {
	rng := g.Rand()
	out := g.Copy()
	out.Seed = rng.Int63()
	g.Advance(rng)
	return out
}

func (g *Genome) AddNode(group nn.Group, ruleName string, r rule.NeuronRule, noiseSeed int64) NodeID {
	id := g.NextNodeID
	g.NextNodeID++
	g.Nodes = append(g.Nodes, NodeGene{
		ID:        id,
		Group:     group,
		RuleName:  ruleName,
		Rule:      r.Clone(),
		Position:  g.nextPosition(group),
		NoiseSeed: noiseSeed,
	})
	return id
}

// AddConnection appends a connection whose synapse rule is drawn from the
// allowed synapse rules.
func (g *Genome) AddConnection(source, target NodeID, strength float64, rng *rand.Rand) (int, error) {
	name, r, err := g.RandomSynapseRule(rng)
	if err != nil {
		return 0, err
	}
	id := g.NextConnectionID
	g.NextConnectionID++
	g.Connections = append(g.Connections, ConnectionGene{
		ID:       id,
		Source:   source,
		Target:   target,
		Strength: strength,
		RuleName: name,
		Rule:     r,
	})
	return id, nil
}

func (g *Genome) RemoveConnection(index int) error {
	if index < 0 || index >= len(g.Connections) {
		return fmt.Errorf("connection index out of range: %d", index)
	}
	g.Connections = append(g.Connections[:index], g.Connections[index+1:]...)
	return nil
}

func (g *Genome) Node(id NodeID) (int, bool) {
	for i, node := range g.Nodes {
		if node.ID == id {
			return i, true
		}
	}
	return 0, false
}

// NodesIn lists the ids of group members in gene order.
func (g *Genome) NodesIn(group nn.Group) []NodeID {
	ids := make([]NodeID, 0, len(g.Nodes))
	for _, node := range g.Nodes {
		if node.Group == group {
			ids = append(ids, node.ID)
		}
	}
	return ids
}

func (g *Genome) HiddenCount() int {
	return len(g.NodesIn(nn.GroupHidden))
}

func (g *Genome) HasConnection(source, target NodeID) bool {
	for _, conn := range g.Connections {
		if conn.Source == source && conn.Target == target {
			return true
		}
	}
	return false
}

func (g *Genome) Inbound(target NodeID) []int {
	var out []int
	for i, conn := range g.Connections {
		if conn.Target == target {
			out = append(out, i)
		}
	}
	return out
}

// RandomNeuronRule draws a rule from the allowed set with activation bounds
// and a bias inside the configured limits.
func (g *Genome) RandomNeuronRule(rng *rand.Rand) (string, rule.NeuronRule, error) {
	name := g.Config.AllowedRules[rng.Intn(len(g.Config.AllowedRules))]
	r, err := rule.NeuronTemplate(name)
	if err != nil {
		return "", rule.NeuronRule{}, err
	}
	r = r.WithBounds(g.Config.MinNeuronActivation, g.Config.MaxNeuronActivation)
	r.Bias = (rng.Float64()*2 - 1) * g.Config.NodeMaxBias
	return name, r, nil
}

func (g *Genome) RandomSynapseRule(rng *rand.Rand) (string, rule.SynapseRule, error) {
	names := g.Config.synapseRules()
	name := names[rng.Intn(len(names))]
	r, err := rule.SynapseTemplate(name)
	if err != nil {
		return "", rule.SynapseRule{}, err
	}
	return name, r, nil
}

func (g *Genome) RandomStrength(rng *rand.Rand) float64 {
	lo, hi := g.Config.MinConnectionStrength, g.Config.MaxConnectionStrength
	return lo + rng.Float64()*(hi-lo)
}

func (g *Genome) nextPosition(group nn.Group) nn.Position {
	count := 0
	for _, node := range g.Nodes {
		if node.Group == group {
			count++
		}
	}
	y := hiddenRowY
	switch group {
	case nn.GroupInput:
		y = inputRowY
	case nn.GroupOutput:
		y = outputRowY
	}
	return nn.Position{X: float64(count) * layoutSpacing, Y: y}
}

func (g *Genome) refs(ids []NodeID) []nn.NeuronRef {
	refs := make([]nn.NeuronRef, 0, len(ids))
	for _, id := range ids {
		idx, _ := g.Node(id)
		refs = append(refs, nn.NeuronRef{Key: int(id), Position: g.Nodes[idx].Position})
	}
	return refs
}

func inputNeuronRule(cfg Config) (rule.NeuronRule, error) {
	r, err := rule.NeuronTemplate(string(rule.Linear))
	if err != nil {
		return rule.NeuronRule{}, err
	}
	r.Linear.Slope = 1
	r.Bias = 0
	return r.WithBounds(cfg.MinNeuronActivation, cfg.MaxNeuronActivation), nil
}
