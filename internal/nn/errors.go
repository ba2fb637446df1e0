package nn

import "fmt"

// UnstableError reports a neuron activation or synapse strength that would
// have become NaN or infinite.
type UnstableError struct {
	Element string
	ID      int
	Value   float64
}

func (e *UnstableError) Error() string {
	return fmt.Sprintf("unstable computation: %s %d value=%v", e.Element, e.ID, e.Value)
}
