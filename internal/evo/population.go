package evo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc/pool"

	"evonet/internal/genotype"
	"evonet/internal/metrics"
	"evonet/internal/nn"
	"evonet/internal/scape"
)

var (
	ErrNotPopulated = errors.New("population is empty")
	ErrNotEvaluated = errors.New("population has unevaluated agents")
)

// Agent pairs a genome with its lazily decoded phenotype and the fitness of
// its latest rollout.
type Agent struct {
	ID         string
	ParentID   string
	Genome     genotype.Genome
	Fitness    float64
	Evaluated  bool
	Unstable   bool
	Trace      scape.Trace
	Operations []string

	phenotype *nn.Network
}

// Phenotype decodes the genome on first use.
func (a *Agent) Phenotype() (*nn.Network, error) {
	if a.phenotype != nil {
		return a.phenotype, nil
	}
	net, err := genotype.Decode(a.Genome)
	if err != nil {
		return nil, err
	}
	a.phenotype = net
	return net, nil
}

type PopulationConfig struct {
	Capacity         int
	EliminationRatio float64
	EliteCount       int
	CrossoverRate    float64
	Workers          int
	Seed             int64
	Selector         Selector
	Logger           *slog.Logger
	Metrics          *metrics.Recorder
}

func DefaultPopulationConfig(capacity int) PopulationConfig {
	return PopulationConfig{
		Capacity:         capacity,
		EliminationRatio: 0.5,
		EliteCount:       1,
		CrossoverRate:    0.2,
		Workers:          4,
		Selector:         EliteSelector{},
	}
}

func (c PopulationConfig) Validate() error {
	switch {
	case c.Capacity <= 0:
		return &genotype.ConfigurationError{Field: "capacity", Reason: "must be > 0"}
	case c.EliminationRatio < 0 || c.EliminationRatio >= 1:
		return &genotype.ConfigurationError{Field: "elimination_ratio", Reason: "must be in [0, 1)"}
	case c.EliteCount < 0 || c.EliteCount > c.Capacity:
		return &genotype.ConfigurationError{Field: "elite_count", Reason: "must be in [0, capacity]"}
	case c.CrossoverRate < 0 || c.CrossoverRate > 1:
		return &genotype.ConfigurationError{Field: "crossover_rate", Reason: "must be in [0, 1]"}
	case c.Workers < 0:
		return &genotype.ConfigurationError{Field: "workers", Reason: "must be >= 0"}
	}
	return nil
}

// Population holds exactly Capacity agents between generations. Evaluation
// of one generation fully completes before Replenish may run.
type Population struct {
	cfg        PopulationConfig
	mutator    *Mutator
	scape      scape.Scape
	rng        *rand.Rand
	logger     *slog.Logger
	agents     []*Agent
	generation int
}

func NewPopulation(cfg PopulationConfig, mutator *Mutator, evaluator scape.Scape) (*Population, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if mutator == nil {
		return nil, fmt.Errorf("mutator is required")
	}
	if evaluator == nil {
		return nil, fmt.Errorf("scape is required")
	}
	if cfg.Workers == 0 {
		cfg.Workers = 1
	}
	if cfg.Selector == nil {
		cfg.Selector = EliteSelector{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Population{
		cfg:     cfg,
		mutator: mutator,
		scape:   evaluator,
		rng:     rand.New(rand.NewSource(cfg.Seed)),
		logger:  logger,
	}, nil
}

// Populate fills the population from a prototype: the first agent is an
// unmutated copy and every other agent is a mutated clone.
func (p *Population) Populate(ctx context.Context, prototype genotype.Genome) error {
	if err := genotype.Validate(prototype); err != nil {
		return fmt.Errorf("prototype: %w", err)
	}
	source := prototype.Copy()
	agents := make([]*Agent, 0, p.cfg.Capacity)
	agents = append(agents, p.newAgent(source.Copy(), "", []string{"seed"}))
	for len(agents) < p.cfg.Capacity {
		child, ops, err := p.mutator.Mutate(ctx, &source)
		if err != nil {
			return err
		}
		agents = append(agents, p.newAgent(child, agents[0].ID, ops))
	}
	p.agents = agents
	p.generation = 0
	return nil
}

// ComputeNewFitness evaluates every agent concurrently and returns the best
// fitness of the generation. An unstable rollout scores 0.
func (p *Population) ComputeNewFitness(ctx context.Context) (float64, error) {
	if len(p.agents) == 0 {
		return 0, ErrNotPopulated
	}

	workers := p.cfg.Workers
	if workers > len(p.agents) {
		workers = len(p.agents)
	}
	tasks := pool.New().WithMaxGoroutines(workers).WithContext(ctx).WithCancelOnError()
	for _, a := range p.agents {
		a := a
		tasks.Go(func(ctx context.Context) error {
			return p.evaluate(ctx, a)
		})
	}
	if err := tasks.Wait(); err != nil {
		return 0, err
	}

	best := math.Inf(-1)
	for _, a := range p.agents {
		best = math.Max(best, a.Fitness)
	}
	return best, nil
}

func (p *Population) evaluate(ctx context.Context, a *Agent) error {
	net, err := a.Phenotype()
	if err != nil {
		return fmt.Errorf("agent %s: %w", a.ID, err)
	}
	start := time.Now()
	fitness, trace, err := p.scape.Evaluate(ctx, net)
	if err != nil {
		return fmt.Errorf("agent %s: %w", a.ID, err)
	}
	unstable, _ := trace["unstable"].(bool)
	if unstable {
		fitness = 0
	}
	a.Fitness = float64(fitness)
	a.Trace = trace
	a.Unstable = unstable
	a.Evaluated = true
	p.cfg.Metrics.ObserveEvaluation(time.Since(start).Seconds(), unstable)
	return nil
}

// Replenish keeps the best agents, drops the rest and refills the population
// with children of the survivors. The EliteCount best agents carry over
// unchanged. Every other slot is a mutated clone of a selected survivor, or
// with probability CrossoverRate a mutated crossover of two survivors.
func (p *Population) Replenish(ctx context.Context) error {
	if len(p.agents) == 0 {
		return ErrNotPopulated
	}
	for _, a := range p.agents {
		if !a.Evaluated {
			return fmt.Errorf("%w: %s", ErrNotEvaluated, a.ID)
		}
	}

	ranked := p.ranked()
	survivors := int(math.Ceil(float64(len(ranked)) * (1 - p.cfg.EliminationRatio)))
	survivors = max(survivors, 1, p.cfg.EliteCount)
	survivors = min(survivors, len(ranked))

	next := make([]*Agent, 0, p.cfg.Capacity)
	for i := 0; i < p.cfg.EliteCount; i++ {
		next = append(next, ranked[i])
	}
	for len(next) < p.cfg.Capacity {
		if err := ctx.Err(); err != nil {
			return err
		}
		child, err := p.breed(ctx, ranked, survivors)
		if err != nil {
			return err
		}
		next = append(next, child)
	}

	for _, a := range next {
		a.Evaluated = false
	}
	p.agents = next
	p.generation++
	return nil
}

func (p *Population) breed(ctx context.Context, ranked []*Agent, survivors int) (*Agent, error) {
	parent, err := p.cfg.Selector.PickParent(p.rng, ranked, survivors)
	if err != nil {
		return nil, err
	}
	if survivors > 1 && p.rng.Float64() < p.cfg.CrossoverRate {
		mate, err := p.cfg.Selector.PickParent(p.rng, ranked, survivors)
		if err != nil {
			return nil, err
		}
		if mate != parent {
			fitter, other := parent, mate
			if other.Fitness > fitter.Fitness {
				fitter, other = other, fitter
			}
			mixed := Crossover(&fitter.Genome, &other.Genome)
			if child, ops, err := p.mutator.Mutate(ctx, &mixed); err == nil {
				return p.newAgent(child, fitter.ID, append([]string{"crossover"}, ops...)), nil
			}
		}
	}
	child, ops, err := p.mutator.Mutate(ctx, &parent.Genome)
	if err != nil {
		return nil, err
	}
	return p.newAgent(child, parent.ID, ops), nil
}

// ranked orders agents by descending fitness; ties keep population order.
func (p *Population) ranked() []*Agent {
	ranked := make([]*Agent, len(p.agents))
	copy(ranked, p.agents)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Fitness > ranked[j].Fitness
	})
	return ranked
}

func (p *Population) newAgent(g genotype.Genome, parentID string, ops []string) *Agent {
	id := uuid.Must(uuid.NewRandomFromReader(p.rng)).String()
	g.ID = id
	return &Agent{ID: id, ParentID: parentID, Genome: g, Operations: ops}
}

// Fittest returns the best evaluated agent, or nil before the first
// evaluation.
func (p *Population) Fittest() *Agent {
	var best *Agent
	for _, a := range p.agents {
		if !a.Evaluated {
			continue
		}
		if best == nil || a.Fitness > best.Fitness {
			best = a
		}
	}
	return best
}

func (p *Population) Agents() []*Agent {
	out := make([]*Agent, len(p.agents))
	copy(out, p.agents)
	return out
}

func (p *Population) Generation() int {
	return p.generation
}

func (p *Population) Size() int {
	return len(p.agents)
}
