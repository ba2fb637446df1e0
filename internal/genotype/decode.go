package genotype

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"evonet/internal/nn"
)

// Decode builds the network a genome encodes. Neurons are added inputs first,
// then outputs, then hidden nodes, each in gene order, so the same genome
// always yields the same handles. Genes outside the config are rejected,
// never clamped.
func Decode(g Genome) (*nn.Network, error) {
	if err := Validate(g); err != nil {
		return nil, err
	}

	net := nn.New()
	handles := make(map[NodeID]nn.NeuronID, len(g.Nodes))
	for _, group := range []nn.Group{nn.GroupInput, nn.GroupOutput, nn.GroupHidden} {
		for _, node := range g.Nodes {
			if node.Group != group {
				continue
			}
			handles[node.ID] = net.AddNeuron(nn.NeuronSpec{
				Label:     fmt.Sprintf("%s-%d", group, node.ID),
				Group:     group,
				Position:  node.Position,
				Rule:      node.Rule,
				NoiseSeed: node.NoiseSeed,
			})
		}
	}
	for _, conn := range g.Connections {
		if _, err := net.AddSynapse(nn.SynapseSpec{
			Source:   handles[conn.Source],
			Target:   handles[conn.Target],
			Strength: conn.Strength,
			Rule:     conn.Rule,
			Lower:    g.Config.MinConnectionStrength,
			Upper:    g.Config.MaxConnectionStrength,
		}); err != nil {
			return nil, &DecodeError{GenomeID: g.ID, Detail: err.Error(), Err: ErrDanglingGene}
		}
	}
	return net, nil
}

// Validate checks a genome against its config without building a network.
func Validate(g Genome) error {
	cfg := g.Config
	if err := cfg.Validate(); err != nil {
		return err
	}
	fail := func(err error, format string, args ...any) error {
		return &DecodeError{GenomeID: g.ID, Detail: fmt.Sprintf(format, args...), Err: err}
	}

	counts := map[nn.Group]int{}
	nodes := make(map[NodeID]NodeGene, len(g.Nodes))
	for _, node := range g.Nodes {
		if _, dup := nodes[node.ID]; dup {
			return fail(ErrDuplicateGene, "node %d", node.ID)
		}
		nodes[node.ID] = node
		counts[node.Group]++

		switch node.Group {
		case nn.GroupInput:
		case nn.GroupOutput, nn.GroupHidden:
			if !cfg.ruleAllowed(node.RuleName) {
				return fail(ErrRuleNotAllowed, "node %d rule %s", node.ID, node.RuleName)
			}
		default:
			return fail(ErrGroupSize, "node %d has unknown group %q", node.ID, node.Group)
		}
		if err := node.Rule.Validate(); err != nil {
			return fail(ErrRuleNotAllowed, "node %d: %v", node.ID, err)
		}
		if math.Abs(node.Rule.Bias) > cfg.NodeMaxBias {
			return fail(ErrBiasBounds, "node %d bias %.4f", node.ID, node.Rule.Bias)
		}
		b := node.Rule.Bounds
		if !b.Clipping || b.Floor < cfg.MinNeuronActivation || b.Ceiling > cfg.MaxNeuronActivation {
			return fail(ErrActivationRange, "node %d bounds [%.3f, %.3f]", node.ID, b.Floor, b.Ceiling)
		}
	}
	if counts[nn.GroupInput] != cfg.NumInputs {
		return fail(ErrGroupSize, "inputs=%d want=%d", counts[nn.GroupInput], cfg.NumInputs)
	}
	if counts[nn.GroupOutput] != cfg.NumOutputs {
		return fail(ErrGroupSize, "outputs=%d want=%d", counts[nn.GroupOutput], cfg.NumOutputs)
	}
	if counts[nn.GroupHidden] > cfg.MaxNodes {
		return fail(ErrMaxNodes, "hidden=%d max=%d", counts[nn.GroupHidden], cfg.MaxNodes)
	}

	type edge struct{ src, dst NodeID }
	seen := make(map[edge]struct{}, len(g.Connections))
	for _, conn := range g.Connections {
		src, okSrc := nodes[conn.Source]
		dst, okDst := nodes[conn.Target]
		if !okSrc || !okDst {
			return fail(ErrDanglingGene, "connection %d %d->%d", conn.ID, conn.Source, conn.Target)
		}
		if dst.Group == nn.GroupInput {
			return fail(ErrDanglingGene, "connection %d targets input node %d", conn.ID, dst.ID)
		}
		if src.ID == dst.ID && !cfg.AllowSelfConnection {
			return fail(ErrSelfConnection, "connection %d on node %d", conn.ID, src.ID)
		}
		if conn.Strength < cfg.MinConnectionStrength || conn.Strength > cfg.MaxConnectionStrength || math.IsNaN(conn.Strength) {
			return fail(ErrStrengthBounds, "connection %d strength %.4f", conn.ID, conn.Strength)
		}
		if !cfg.synapseRuleAllowed(conn.RuleName) {
			return fail(ErrRuleNotAllowed, "connection %d rule %s", conn.ID, conn.RuleName)
		}
		if err := conn.Rule.Validate(); err != nil {
			return fail(ErrRuleNotAllowed, "connection %d: %v", conn.ID, err)
		}
		key := edge{src: conn.Source, dst: conn.Target}
		if _, dup := seen[key]; dup {
			return fail(ErrDuplicateGene, "connection %d->%d", conn.Source, conn.Target)
		}
		seen[key] = struct{}{}
	}
	if unreachable, ok := firstUnreachableOutput(g); !ok {
		return fail(ErrDisconnected, "output node %d", unreachable)
	}
	return nil
}

// firstUnreachableOutput reports an output node no input reaches.
func firstUnreachableOutput(g Genome) (NodeID, bool) {
	graph := simple.NewDirectedGraph()
	for _, node := range g.Nodes {
		graph.AddNode(simple.Node(node.ID))
	}
	for _, conn := range g.Connections {
		if conn.Source == conn.Target {
			continue
		}
		graph.SetEdge(graph.NewEdge(simple.Node(conn.Source), simple.Node(conn.Target)))
	}

	inputs := g.NodesIn(nn.GroupInput)
	for _, out := range g.NodesIn(nn.GroupOutput) {
		reached := false
		for _, in := range inputs {
			if topo.PathExistsIn(graph, simple.Node(in), simple.Node(out)) {
				reached = true
				break
			}
		}
		if !reached {
			return out, false
		}
	}
	return 0, true
}
