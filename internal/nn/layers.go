package nn

import (
	"errors"
	"fmt"
	"math/rand"

	"evonet/internal/matrix"
)

type (
	LayerID  int
	MatrixID int
)

var (
	ErrLayerNotFound   = errors.New("layer not found")
	ErrMatrixNotFound  = errors.New("weight matrix not found")
	ErrForeignEndpoint = errors.New("endpoint does not belong to this network")
)

type layerEntry struct {
	id    LayerID
	layer *matrix.Layer
}

type matrixEntry struct {
	id MatrixID
	w  *matrix.WeightMatrix
}

// GroupView exposes a neuron group as a matrix endpoint.
type GroupView struct {
	net   *Network
	group Group
}

func (v *GroupView) Group() Group {
	return v.group
}

func (v *GroupView) Len() int {
	return len(v.net.groups[v.group])
}

func (v *GroupView) Activations() []float64 {
	return v.net.GroupActivations(v.group)
}

func (v *GroupView) Aggregation() bool {
	return true
}

// GroupView returns the shared endpoint for g.
func (n *Network) GroupView(g Group) *GroupView {
	view, ok := n.views[g]
	if !ok {
		view = &GroupView{net: n, group: g}
		n.views[g] = view
	}
	return view
}

func (n *Network) AddLayer(layer *matrix.Layer) LayerID {
	id := LayerID(len(n.layers))
	n.layers = append(n.layers, &layerEntry{id: id, layer: layer})
	return id
}

func (n *Network) Layer(id LayerID) (*matrix.Layer, error) {
	entry := n.layerEntry(id)
	if entry == nil {
		return nil, fmt.Errorf("%w: %d", ErrLayerNotFound, id)
	}
	return entry.layer, nil
}

// ResizeLayer changes a layer's length and rebuilds every matrix touching it.
func (n *Network) ResizeLayer(id LayerID, size int) error {
	entry := n.layerEntry(id)
	if entry == nil {
		return fmt.Errorf("%w: %d", ErrLayerNotFound, id)
	}
	entry.layer.Resize(size)
	for _, m := range n.matrices {
		if m != nil && touches(m.w, entry.layer) {
			if err := m.w.Rebuild(); err != nil {
				return fmt.Errorf("matrix %d: %w", m.id, err)
			}
		}
	}
	return nil
}

// RemoveLayer deletes a layer together with every matrix that reads from or
// writes to it.
func (n *Network) RemoveLayer(id LayerID) error {
	entry := n.layerEntry(id)
	if entry == nil {
		return fmt.Errorf("%w: %d", ErrLayerNotFound, id)
	}
	for i, m := range n.matrices {
		if m != nil && touches(m.w, entry.layer) {
			m.w.Detach()
			n.matrices[i] = nil
		}
	}
	n.layers[id] = nil
	return nil
}

// ConnectMatrix links two endpoints owned by this network. Matrices that
// target a neuron group feed its weighted input on every Step; matrices that
// target a layer are refreshed with Readout.
func (n *Network) ConnectMatrix(source, target matrix.Connectable, rng *rand.Rand) (MatrixID, *matrix.WeightMatrix, error) {
	if !n.owns(source) || !n.owns(target) {
		return 0, nil, ErrForeignEndpoint
	}
	w, err := matrix.New(source, target, rng)
	if err != nil {
		return 0, nil, err
	}
	return n.register(w), w, nil
}

// ConnectDiagonal is ConnectMatrix with an identity starting point.
func (n *Network) ConnectDiagonal(source, target matrix.Connectable) (MatrixID, *matrix.WeightMatrix, error) {
	if !n.owns(source) || !n.owns(target) {
		return 0, nil, ErrForeignEndpoint
	}
	w, err := matrix.NewDiagonal(source, target)
	if err != nil {
		return 0, nil, err
	}
	return n.register(w), w, nil
}

func (n *Network) register(w *matrix.WeightMatrix) MatrixID {
	id := MatrixID(len(n.matrices))
	n.matrices = append(n.matrices, &matrixEntry{id: id, w: w})
	return id
}

func (n *Network) Matrix(id MatrixID) (*matrix.WeightMatrix, error) {
	entry := n.matrixEntry(id)
	if entry == nil {
		return nil, fmt.Errorf("%w: %d", ErrMatrixNotFound, id)
	}
	return entry.w, nil
}

func (n *Network) RemoveMatrix(id MatrixID) error {
	entry := n.matrixEntry(id)
	if entry == nil {
		return fmt.Errorf("%w: %d", ErrMatrixNotFound, id)
	}
	entry.w.Detach()
	n.matrices[id] = nil
	return nil
}

func (n *Network) MatrixCount() int {
	count := 0
	for _, m := range n.matrices {
		if m != nil {
			count++
		}
	}
	return count
}

// Readout writes the product of a layer-targeting matrix into its layer using
// the activations committed by the last Step.
func (n *Network) Readout(id MatrixID) ([]float64, error) {
	entry := n.matrixEntry(id)
	if entry == nil {
		return nil, fmt.Errorf("%w: %d", ErrMatrixNotFound, id)
	}
	layer, ok := entry.w.Target().(*matrix.Layer)
	if !ok {
		return nil, fmt.Errorf("matrix %d does not target a layer", id)
	}
	values, err := entry.w.Apply()
	if err != nil {
		return nil, err
	}
	if err := layer.SetActivations(values); err != nil {
		return nil, err
	}
	return values, nil
}

func (n *Network) rebuildGroupMatrices(g Group) {
	view, ok := n.views[g]
	if !ok {
		return
	}
	for _, m := range n.matrices {
		if m != nil && touches(m.w, view) {
			_ = m.w.Rebuild()
		}
	}
}

func (n *Network) owns(c matrix.Connectable) bool {
	switch v := c.(type) {
	case *GroupView:
		return v.net == n
	case *matrix.Layer:
		for _, entry := range n.layers {
			if entry != nil && entry.layer == v {
				return true
			}
		}
	}
	return false
}

func (n *Network) layerEntry(id LayerID) *layerEntry {
	if id < 0 || int(id) >= len(n.layers) {
		return nil
	}
	return n.layers[id]
}

func (n *Network) matrixEntry(id MatrixID) *matrixEntry {
	if id < 0 || int(id) >= len(n.matrices) {
		return nil
	}
	return n.matrices[id]
}

func touches(w *matrix.WeightMatrix, c matrix.Connectable) bool {
	return w.Source() == c || w.Target() == c
}
