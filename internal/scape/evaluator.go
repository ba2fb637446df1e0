package scape

import (
	"context"
	"errors"
	"fmt"

	"evonet/internal/agent"
	"evonet/internal/nn"
)

const (
	DefaultMaxMoves = 500
	DefaultRadius   = 28.0
)

// Evaluator drives a phenotype through a bounded rollout in a fresh
// environment and scores it by how often the agent reached the target.
type Evaluator struct {
	MaxMoves int
	Radius   float64
	Factory  EnvironmentFactory
	Seed     int64
}

func NewOdorWorldEvaluator(maxMoves int, seed int64) *Evaluator {
	return &Evaluator{
		MaxMoves: maxMoves,
		Radius:   DefaultRadius,
		Factory:  OdorWorldFactory(DefaultOdorWorldConfig()),
		Seed:     seed,
	}
}

func (e *Evaluator) Name() string {
	return "odor_world"
}

// Evaluate runs MaxMoves sense, step, actuate, update cycles. Every move that
// ends inside Radius of the target scores one reward and respawns the target.
// A non-finite activation ends the rollout with fitness 0 and no error.
func (e *Evaluator) Evaluate(ctx context.Context, net *nn.Network) (Fitness, Trace, error) {
	if net == nil {
		return 0, nil, fmt.Errorf("phenotype is required")
	}
	if e.Factory == nil {
		return 0, nil, fmt.Errorf("environment factory is required")
	}
	if e.MaxMoves <= 0 {
		return 0, nil, fmt.Errorf("max moves must be > 0")
	}

	env := e.Factory(e.Seed)
	net.Reset()
	cortex, err := agent.NewCortex(net, env)
	if err != nil {
		return 0, nil, err
	}
	defer cortex.Detach()

	rewards := 0
	moves := 0
	for moves < e.MaxMoves {
		if err := ctx.Err(); err != nil {
			return 0, nil, err
		}
		if _, err := cortex.Tick(ctx); err != nil {
			var unstable *nn.UnstableError
			if errors.As(err, &unstable) {
				return 0, Trace{
					"unstable": true,
					"moves":    moves,
					"rewards":  rewards,
					"element":  unstable.Element,
				}, nil
			}
			return 0, nil, fmt.Errorf("move %d: %w", moves, err)
		}
		env.Update()
		moves++
		if env.InRadius(env.Agent(), env.Target(), e.Radius) {
			rewards++
			if err := env.Relocate(env.Target(), env.RandomPosition()); err != nil {
				return 0, nil, fmt.Errorf("respawn target: %w", err)
			}
		}
	}

	return Fitness(rewards), Trace{
		"unstable": false,
		"moves":    moves,
		"rewards":  rewards,
	}, nil
}
