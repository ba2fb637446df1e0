package scape

import (
	"fmt"
	"math"
	"math/rand"
)

const (
	AgentEntity  EntityID = 0
	TargetEntity EntityID = 1

	// SensorCount is the left and right smell sensor; ActuatorCount is the
	// straight, left and right motor command.
	SensorCount   = 2
	ActuatorCount = 3
)

// OdorWorldConfig describes a rectangular world with one mouse and one piece
// of cheese. Angles are in degrees.
type OdorWorldConfig struct {
	Width          float64 `json:"width"`
	Height         float64 `json:"height"`
	AgentStart     Point   `json:"agent_start"`
	AgentHeading   float64 `json:"agent_heading"`
	TargetStart    Point   `json:"target_start"`
	SensorOffset   float64 `json:"sensor_offset"`
	SensorAngle    float64 `json:"sensor_angle"`
	Dispersion     float64 `json:"dispersion"`
	StraightAmount float64 `json:"straight_amount"`
	TurnAmount     float64 `json:"turn_amount"`
}

func DefaultOdorWorldConfig() OdorWorldConfig {
	return OdorWorldConfig{
		Width:          400,
		Height:         400,
		AgentStart:     Point{X: 300, Y: 300},
		AgentHeading:   90,
		TargetStart:    Point{X: 100, Y: 100},
		SensorOffset:   23,
		SensorAngle:    45,
		Dispersion:     600,
		StraightAmount: 2,
		TurnAmount:     15,
	}
}

func (c OdorWorldConfig) Validate() error {
	switch {
	case c.Width <= 0 || c.Height <= 0:
		return fmt.Errorf("odor world size must be > 0")
	case c.Dispersion <= 0:
		return fmt.Errorf("odor dispersion must be > 0")
	}
	return nil
}

// OdorWorld has two smell sensors (left, right) and three effectors
// (straight, turn left, turn right).
type OdorWorld struct {
	cfg      OdorWorldConfig
	rng      *rand.Rand
	agent    Point
	heading  float64
	target   Point
	commands [3]float64
}

func NewOdorWorld(cfg OdorWorldConfig, seed int64) *OdorWorld {
	return &OdorWorld{
		cfg:     cfg,
		rng:     rand.New(rand.NewSource(seed)),
		agent:   cfg.AgentStart,
		heading: cfg.AgentHeading,
		target:  cfg.TargetStart,
	}
}

// OdorWorldFactory adapts a config to an EnvironmentFactory.
func OdorWorldFactory(cfg OdorWorldConfig) EnvironmentFactory {
	return func(seed int64) Environment {
		return NewOdorWorld(cfg, seed)
	}
}

func (w *OdorWorld) SensorCount() int {
	return SensorCount
}

func (w *OdorWorld) ActuatorCount() int {
	return ActuatorCount
}

func (w *OdorWorld) Sense() []float64 {
	return []float64{
		w.smell(w.cfg.SensorAngle),
		w.smell(-w.cfg.SensorAngle),
	}
}

// Actuate records effector commands; they take effect on Update.
func (w *OdorWorld) Actuate(values []float64) error {
	if len(values) != len(w.commands) {
		return fmt.Errorf("odor world expects %d actuator values, got %d", len(w.commands), len(values))
	}
	copy(w.commands[:], values)
	return nil
}

func (w *OdorWorld) Update() {
	straight, left, right := w.commands[0], w.commands[1], w.commands[2]
	w.heading = math.Mod(w.heading+w.cfg.TurnAmount*(left-right), 360)
	rad := w.heading * math.Pi / 180
	distance := w.cfg.StraightAmount * straight
	w.agent = w.clampToBounds(Point{
		X: w.agent.X + distance*math.Cos(rad),
		Y: w.agent.Y + distance*math.Sin(rad),
	})
	w.commands = [3]float64{}
}

func (w *OdorWorld) InRadius(a, b EntityID, radius float64) bool {
	pa, okA := w.position(a)
	pb, okB := w.position(b)
	if !okA || !okB {
		return false
	}
	return distance(pa, pb) <= radius
}

func (w *OdorWorld) RandomPosition() Point {
	return Point{X: w.rng.Float64() * w.cfg.Width, Y: w.rng.Float64() * w.cfg.Height}
}

func (w *OdorWorld) Relocate(id EntityID, p Point) error {
	p = w.clampToBounds(p)
	switch id {
	case AgentEntity:
		w.agent = p
	case TargetEntity:
		w.target = p
	default:
		return fmt.Errorf("unknown entity: %d", id)
	}
	return nil
}

func (w *OdorWorld) Agent() EntityID {
	return AgentEntity
}

func (w *OdorWorld) Target() EntityID {
	return TargetEntity
}

func (w *OdorWorld) Position(id EntityID) (Point, bool) {
	return w.position(id)
}

func (w *OdorWorld) Heading() float64 {
	return w.heading
}

func (w *OdorWorld) smell(angle float64) float64 {
	rad := (w.heading + angle) * math.Pi / 180
	sensor := Point{
		X: w.agent.X + w.cfg.SensorOffset*math.Cos(rad),
		Y: w.agent.Y + w.cfg.SensorOffset*math.Sin(rad),
	}
	return math.Max(0, 1-distance(sensor, w.target)/w.cfg.Dispersion)
}

func (w *OdorWorld) position(id EntityID) (Point, bool) {
	switch id {
	case AgentEntity:
		return w.agent, true
	case TargetEntity:
		return w.target, true
	default:
		return Point{}, false
	}
}

func (w *OdorWorld) clampToBounds(p Point) Point {
	return Point{X: clamp(p.X, 0, w.cfg.Width), Y: clamp(p.Y, 0, w.cfg.Height)}
}

func distance(a, b Point) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
