package matrix

import "fmt"

// Connectable is anything a WeightMatrix can read from or write into.
type Connectable interface {
	Len() int
	Activations() []float64
	// Aggregation reports whether the endpoint is a view over discrete
	// neurons. Matrices leaving an aggregation start out diagonal.
	Aggregation() bool
}

// Layer is a free-standing activation vector used for sensor and actuator
// adapters.
type Layer struct {
	name        string
	activations []float64
}

func NewLayer(name string, size int) *Layer {
	if size < 0 {
		size = 0
	}
	return &Layer{name: name, activations: make([]float64, size)}
}

func (l *Layer) Name() string {
	return l.name
}

func (l *Layer) Len() int {
	return len(l.activations)
}

func (l *Layer) Activations() []float64 {
	return append([]float64(nil), l.activations...)
}

func (l *Layer) Aggregation() bool {
	return false
}

func (l *Layer) SetActivations(values []float64) error {
	if len(values) != len(l.activations) {
		return fmt.Errorf("layer %s: activation size mismatch: got=%d want=%d", l.name, len(values), len(l.activations))
	}
	copy(l.activations, values)
	return nil
}

// Resize changes the layer length, keeping the leading values. Matrices
// attached to the layer are stale until rebuilt.
func (l *Layer) Resize(size int) {
	if size < 0 {
		size = 0
	}
	next := make([]float64, size)
	copy(next, l.activations)
	l.activations = next
}
