package agent

import (
	"context"
	"fmt"

	"evonet/internal/matrix"
	"evonet/internal/nn"
)

// Body is the embodied side of a rollout: a fixed-width sensor vector in, a
// fixed-width actuator vector out.
type Body interface {
	SensorCount() int
	ActuatorCount() int
	Sense() []float64
	Actuate(values []float64) error
}

// CouplingMismatchError is returned when a body cannot be wired to a network
// index for index.
type CouplingMismatchError struct {
	Sensors   int
	Inputs    int
	Actuators int
	Outputs   int
}

func (e *CouplingMismatchError) Error() string {
	return fmt.Sprintf("coupling mismatch: sensors=%d inputs=%d actuators=%d outputs=%d", e.Sensors, e.Inputs, e.Actuators, e.Outputs)
}

// Cortex couples sensor i to input neuron i and output neuron j to actuator j
// through diagonal weight matrices owned by the network.
type Cortex struct {
	net  *nn.Network
	body Body

	sensors       *matrix.Layer
	actuators     *matrix.Layer
	sensorLayer   nn.LayerID
	actuatorLayer nn.LayerID
	readout       nn.MatrixID
	detached      bool
}

func NewCortex(net *nn.Network, body Body) (*Cortex, error) {
	if net == nil {
		return nil, fmt.Errorf("network is required")
	}
	if body == nil {
		return nil, fmt.Errorf("body is required")
	}
	inputs := len(net.Group(nn.GroupInput))
	outputs := len(net.Group(nn.GroupOutput))
	if body.SensorCount() != inputs || body.ActuatorCount() != outputs {
		return nil, &CouplingMismatchError{
			Sensors:   body.SensorCount(),
			Inputs:    inputs,
			Actuators: body.ActuatorCount(),
			Outputs:   outputs,
		}
	}

	c := &Cortex{
		net:       net,
		body:      body,
		sensors:   matrix.NewLayer("sensors", inputs),
		actuators: matrix.NewLayer("actuators", outputs),
	}
	c.sensorLayer = net.AddLayer(c.sensors)
	c.actuatorLayer = net.AddLayer(c.actuators)
	if _, _, err := net.ConnectDiagonal(c.sensors, net.GroupView(nn.GroupInput)); err != nil {
		_ = c.Detach()
		return nil, fmt.Errorf("couple sensors: %w", err)
	}
	readout, _, err := net.ConnectDiagonal(net.GroupView(nn.GroupOutput), c.actuators)
	if err != nil {
		_ = c.Detach()
		return nil, fmt.Errorf("couple actuators: %w", err)
	}
	c.readout = readout
	return c, nil
}

// Tick runs one sense, step, actuate cycle and returns the actuator values.
func (c *Cortex) Tick(ctx context.Context) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if c.detached {
		return nil, fmt.Errorf("cortex is detached")
	}
	if err := c.sensors.SetActivations(c.body.Sense()); err != nil {
		return nil, err
	}
	if err := c.net.Step(); err != nil {
		return nil, err
	}
	values, err := c.net.Readout(c.readout)
	if err != nil {
		return nil, err
	}
	if err := c.body.Actuate(values); err != nil {
		return nil, err
	}
	return values, nil
}

// Detach removes the coupling layers, and with them both matrices, from the
// network.
func (c *Cortex) Detach() error {
	if c.detached {
		return nil
	}
	c.detached = true
	if err := c.net.RemoveLayer(c.sensorLayer); err != nil {
		return err
	}
	return c.net.RemoveLayer(c.actuatorLayer)
}
