package scape

import (
	"context"

	"evonet/internal/agent"
	"evonet/internal/nn"
)

type Fitness float64

type Trace map[string]any

// Scape scores one phenotype with a bounded rollout.
type Scape interface {
	Name() string
	Evaluate(ctx context.Context, net *nn.Network) (Fitness, Trace, error)
}

type EntityID int

type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Environment is the world a rollout drives. Sense and Actuate exchange fixed
// width vectors; Update advances physics after the actuators were written.
type Environment interface {
	agent.Body
	Update()
	InRadius(a, b EntityID, radius float64) bool
	RandomPosition() Point
	Relocate(id EntityID, p Point) error
	Agent() EntityID
	Target() EntityID
}

// EnvironmentFactory builds a fresh, isolated world from a seed.
type EnvironmentFactory func(seed int64) Environment

// CouplingMismatchError is the agent package's error, re-exported for callers
// that only deal with scapes.
type CouplingMismatchError = agent.CouplingMismatchError
