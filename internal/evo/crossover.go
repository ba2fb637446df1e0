package evo

import (
	"evonet/internal/genotype"
)

// Crossover builds a child with the fitter parent's topology. Node and
// connection genes the other parent shares, matched by node ids and by
// (source, target), take their parameters from either parent with equal odds.
// Genes only the other parent has are not inherited.
func Crossover(fitter, other *genotype.Genome) genotype.Genome {
	child := fitter.Clone()
	rng := child.Rand()

	nodes := make(map[genotype.NodeID]genotype.NodeGene, len(other.Nodes))
	for _, node := range other.Nodes {
		nodes[node.ID] = node
	}
	for i := range child.Nodes {
		node := &child.Nodes[i]
		match, ok := nodes[node.ID]
		if !ok || match.Group != node.Group {
			continue
		}
		if rng.Intn(2) == 1 {
			node.RuleName = match.RuleName
			node.Rule = match.Rule.Clone()
		}
	}

	type edge struct{ src, dst genotype.NodeID }
	conns := make(map[edge]genotype.ConnectionGene, len(other.Connections))
	for _, conn := range other.Connections {
		conns[edge{src: conn.Source, dst: conn.Target}] = conn
	}
	for i := range child.Connections {
		conn := &child.Connections[i]
		match, ok := conns[edge{src: conn.Source, dst: conn.Target}]
		if !ok {
			continue
		}
		if rng.Intn(2) == 1 {
			conn.Strength = match.Strength
			conn.RuleName = match.RuleName
			conn.Rule = match.Rule.Clone()
		}
	}

	child.Advance(rng)
	return child
}
