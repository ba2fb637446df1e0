package evo

import (
	"context"
	"fmt"
	"math/rand"

	"evonet/internal/genotype"
	"evonet/internal/metrics"
)

const (
	DefaultMutationAttempts = 5
	fallbackOperation       = "(fallback)"
	cloneOperation          = "clone"
)

// Mutator produces a valid child from a parent. A child that fails to decode
// is retried with the perturbation scale halved and structural growth turned
// off; when every attempt fails a pure weight perturbation is used.
type Mutator struct {
	Policy      []WeightedMutation
	Count       TopologicalMutationPolicy
	Scale       float64
	MaxAttempts int
	Fallback    Operator
	Metrics     *metrics.Recorder
}

func NewMutator(policy []WeightedMutation) (*Mutator, error) {
	if len(policy) == 0 {
		return nil, fmt.Errorf("mutation policy is required")
	}
	positive := false
	for i, item := range policy {
		if item.Operator == nil {
			return nil, fmt.Errorf("mutation policy operator is required at index %d", i)
		}
		if item.Weight < 0 {
			return nil, fmt.Errorf("mutation policy weight must be >= 0 at index %d", i)
		}
		if item.Weight > 0 {
			positive = true
		}
	}
	if !positive {
		return nil, fmt.Errorf("mutation policy requires at least one positive weight")
	}
	return &Mutator{
		Policy:      policy,
		Count:       ConstTopologicalMutations{Count: 1},
		Scale:       1,
		MaxAttempts: DefaultMutationAttempts,
		Fallback:    PerturbWeight{MaxDelta: 1},
	}, nil
}

// DefaultMutator uses DefaultMutationWeights.
func DefaultMutator() *Mutator {
	policy, err := PolicyFromWeights(DefaultMutationWeights())
	if err != nil {
		panic(err)
	}
	m, err := NewMutator(policy)
	if err != nil {
		panic(err)
	}
	return m
}

// Mutate clones parent, which advances the parent's generator, and mutates
// the clone. The returned operation names describe what was applied.
func (m *Mutator) Mutate(ctx context.Context, parent *genotype.Genome) (genotype.Genome, []string, error) {
	base := parent.Clone()
	if err := genotype.Validate(base); err != nil {
		return genotype.Genome{}, nil, fmt.Errorf("parent genome: %w", err)
	}

	scale := m.Scale
	if scale <= 0 {
		scale = 1
	}
	growth := true
	for attempt := 0; attempt < m.attempts(); attempt++ {
		if err := ctx.Err(); err != nil {
			return genotype.Genome{}, nil, err
		}
		rng := base.Rand()
		child, ops, err := m.apply(ctx, base, rng, scale, growth)
		base.Advance(rng)
		if err == nil {
			err = genotype.Validate(child)
		}
		if err == nil {
			for _, op := range ops {
				m.Metrics.ObserveMutation(op)
			}
			return child, ops, nil
		}
		if len(ops) > 0 {
			m.Metrics.ObserveMutationRejected(ops[len(ops)-1])
		}
		scale /= 2
		growth = false
	}

	fallback := m.Fallback
	if fallback == nil {
		fallback = PerturbWeight{MaxDelta: 1}
	}
	child, err := fallback.Apply(ctx, base, scale)
	if err == nil {
		err = genotype.Validate(child)
	}
	if err != nil {
		m.Metrics.ObserveMutationRejected(fallback.Name())
		return base, []string{cloneOperation}, nil
	}
	m.Metrics.ObserveMutation(fallback.Name())
	return child, []string{fallback.Name() + fallbackOperation}, nil
}

func (m *Mutator) apply(ctx context.Context, genome genotype.Genome, rng *rand.Rand, scale float64, growth bool) (genotype.Genome, []string, error) {
	counter := m.Count
	if counter == nil {
		counter = ConstTopologicalMutations{Count: 1}
	}
	count, err := counter.MutationCount(genome, rng)
	if err != nil {
		return genotype.Genome{}, nil, err
	}

	ops := make([]string, 0, count)
	child := genome
	for i := 0; i < count; i++ {
		op := m.choose(rng, growth)
		if op == nil {
			return genotype.Genome{}, ops, ErrNoMutationChoice
		}
		ops = append(ops, op.Name())
		child.Seed = rng.Int63()
		next, err := op.Apply(ctx, child, scale)
		if err != nil {
			return genotype.Genome{}, ops, fmt.Errorf("%s: %w", op.Name(), err)
		}
		child = next
	}
	return child, ops, nil
}

func (m *Mutator) choose(rng *rand.Rand, growth bool) Operator {
	total := 0.0
	for _, item := range m.Policy {
		if item.Weight > 0 && (growth || !item.Operator.Structural()) {
			total += item.Weight
		}
	}
	if total <= 0 {
		return nil
	}
	pick := rng.Float64() * total
	acc := 0.0
	var last Operator
	for _, item := range m.Policy {
		if item.Weight <= 0 || (!growth && item.Operator.Structural()) {
			continue
		}
		acc += item.Weight
		last = item.Operator
		if pick <= acc {
			return item.Operator
		}
	}
	return last
}

func (m *Mutator) attempts() int {
	if m.MaxAttempts <= 0 {
		return DefaultMutationAttempts
	}
	return m.MaxAttempts
}
