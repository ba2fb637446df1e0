package evo

import (
	"context"

	"evonet/internal/genotype"
)

// Operator returns a mutated copy of genome; the input is never modified.
// Scale multiplies every numeric perturbation the operator draws.
type Operator interface {
	Name() string
	Structural() bool
	Apply(ctx context.Context, genome genotype.Genome, scale float64) (genotype.Genome, error)
}

type WeightedMutation struct {
	Operator Operator
	Weight   float64
}
