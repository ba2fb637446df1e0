package evo

import (
	"fmt"
	"math/rand"
)

// Selector chooses a parent from agents ranked by descending fitness. Only the
// first poolSize agents are eligible.
type Selector interface {
	Name() string
	PickParent(rng *rand.Rand, ranked []*Agent, poolSize int) (*Agent, error)
}

// EliteSelector picks uniformly from the eligible pool.
type EliteSelector struct{}

func (EliteSelector) Name() string {
	return "elite"
}

func (EliteSelector) PickParent(rng *rand.Rand, ranked []*Agent, poolSize int) (*Agent, error) {
	if rng == nil {
		return nil, fmt.Errorf("random source is required")
	}
	if poolSize <= 0 || poolSize > len(ranked) {
		return nil, fmt.Errorf("invalid pool size: %d", poolSize)
	}
	return ranked[rng.Intn(poolSize)], nil
}

// TournamentSelector samples candidates from the pool and picks the best
// fitness among them.
type TournamentSelector struct {
	TournamentSize int
}

func (TournamentSelector) Name() string {
	return "tournament"
}

func (s TournamentSelector) PickParent(rng *rand.Rand, ranked []*Agent, poolSize int) (*Agent, error) {
	if rng == nil {
		return nil, fmt.Errorf("random source is required")
	}
	if poolSize <= 0 || poolSize > len(ranked) {
		return nil, fmt.Errorf("invalid pool size: %d", poolSize)
	}

	tournamentSize := s.TournamentSize
	if tournamentSize <= 0 {
		tournamentSize = 3
	}
	if tournamentSize > poolSize {
		tournamentSize = poolSize
	}

	best := ranked[rng.Intn(poolSize)]
	for i := 1; i < tournamentSize; i++ {
		candidate := ranked[rng.Intn(poolSize)]
		if candidate.Fitness > best.Fitness {
			best = candidate
		}
	}
	return best, nil
}

func ParseSelector(name string, tournamentSize int) (Selector, error) {
	switch name {
	case "", "elite":
		return EliteSelector{}, nil
	case "tournament":
		return TournamentSelector{TournamentSize: tournamentSize}, nil
	default:
		return nil, fmt.Errorf("unknown selector: %s", name)
	}
}
