package evo

import (
	"fmt"
	"math"
	"math/rand"

	"evonet/internal/genotype"
)

// TopologicalMutationPolicy determines how many mutation operations are applied
// to each replicated child genome.
type TopologicalMutationPolicy interface {
	Name() string
	MutationCount(genome genotype.Genome, rng *rand.Rand) (int, error)
}

type ConstTopologicalMutations struct {
	Count int
}

func (ConstTopologicalMutations) Name() string {
	return "const"
}

func (p ConstTopologicalMutations) MutationCount(_ genotype.Genome, _ *rand.Rand) (int, error) {
	if p.Count <= 0 {
		return 0, fmt.Errorf("const topological mutation count must be > 0")
	}
	return p.Count, nil
}

// NCountLinearTopologicalMutations draws between 1 and round(nodes*Multiplier)
// operations.
type NCountLinearTopologicalMutations struct {
	Multiplier float64
	MaxCount   int
}

func (NCountLinearTopologicalMutations) Name() string {
	return "ncount_linear"
}

func (p NCountLinearTopologicalMutations) MutationCount(genome genotype.Genome, rng *rand.Rand) (int, error) {
	if p.Multiplier <= 0 {
		return 0, fmt.Errorf("linear multiplier must be > 0")
	}
	if rng == nil {
		return 0, fmt.Errorf("random source is required")
	}
	limit := int(math.Round(float64(len(genome.Nodes)) * p.Multiplier))
	if limit < 1 {
		limit = 1
	}
	if p.MaxCount > 0 && limit > p.MaxCount {
		limit = p.MaxCount
	}
	return 1 + rng.Intn(limit), nil
}

func ParseTopologicalMutations(name string, count int, multiplier float64) (TopologicalMutationPolicy, error) {
	switch name {
	case "", "const":
		if count <= 0 {
			count = 1
		}
		return ConstTopologicalMutations{Count: count}, nil
	case "ncount_linear":
		if multiplier <= 0 {
			multiplier = 0.5
		}
		return NCountLinearTopologicalMutations{Multiplier: multiplier, MaxCount: count}, nil
	default:
		return nil, fmt.Errorf("unknown topological mutation policy: %s", name)
	}
}
