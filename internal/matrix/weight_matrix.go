package matrix

import (
	"errors"
	"fmt"
	"math/rand"

	"gonum.org/v1/gonum/mat"
)

const DefaultIncrement = 0.1

var (
	ErrStale    = errors.New("weight matrix dimensions do not match its endpoints")
	ErrDetached = errors.New("weight matrix is detached")
)

// WeightMatrix densely connects a source to a target. Entry (i, j) is the
// strength from source unit i to target unit j.
type WeightMatrix struct {
	source Connectable
	target Connectable

	rows    int
	cols    int
	weights *mat.Dense

	// Step is the amount Increment and Decrement add to every entry.
	Step float64
	// UseCurve only affects drawing.
	UseCurve bool
}

// New sizes the matrix source.Len() x target.Len(). It starts diagonal when
// the source is an aggregation of neurons and Gaussian(0, 1) otherwise.
func New(source, target Connectable, rng *rand.Rand) (*WeightMatrix, error) {
	if source == nil || target == nil {
		return nil, errors.New("source and target are required")
	}
	w := &WeightMatrix{
		source: source,
		target: target,
		Step:   DefaultIncrement,
	}
	w.allocate(source.Len(), target.Len())
	if source.Aggregation() {
		w.Diagonalize()
		return w, nil
	}
	if rng == nil {
		return nil, errors.New("random source is required for a randomized matrix")
	}
	w.Randomize(rng)
	return w, nil
}

// NewDiagonal builds a matrix that starts as an identity block regardless of
// the endpoint kinds.
func NewDiagonal(source, target Connectable) (*WeightMatrix, error) {
	if source == nil || target == nil {
		return nil, errors.New("source and target are required")
	}
	w := &WeightMatrix{
		source: source,
		target: target,
		Step:   DefaultIncrement,
	}
	w.allocate(source.Len(), target.Len())
	w.Diagonalize()
	return w, nil
}

func (w *WeightMatrix) Source() Connectable {
	return w.source
}

func (w *WeightMatrix) Target() Connectable {
	return w.target
}

func (w *WeightMatrix) Dims() (int, int) {
	return w.rows, w.cols
}

func (w *WeightMatrix) Size() int {
	return w.rows * w.cols
}

func (w *WeightMatrix) At(i, j int) float64 {
	return w.weights.At(i, j)
}

func (w *WeightMatrix) Set(i, j int, v float64) {
	w.weights.Set(i, j, v)
}

// Randomize redraws every entry from a standard normal distribution.
func (w *WeightMatrix) Randomize(rng *rand.Rand) {
	w.each(func(_, _ int, _ float64) float64 { return rng.NormFloat64() })
}

// Diagonalize zeroes the matrix and writes a min(rows, cols) identity block.
func (w *WeightMatrix) Diagonalize() {
	w.Clear()
	n := min(w.rows, w.cols)
	for i := 0; i < n; i++ {
		w.weights.Set(i, i, 1)
	}
}

func (w *WeightMatrix) Increment() {
	step := w.Step
	w.each(func(_, _ int, v float64) float64 { return v + step })
}

func (w *WeightMatrix) Decrement() {
	step := w.Step
	w.each(func(_, _ int, v float64) float64 { return v - step })
}

func (w *WeightMatrix) Clear() {
	if w.weights != nil {
		w.weights.Zero()
	}
}

// SetWeights overwrites entries in row-major order and returns how many were
// written: min(Size(), len(values)).
func (w *WeightMatrix) SetWeights(values []float64) int {
	n := min(w.Size(), len(values))
	for k := 0; k < n; k++ {
		w.weights.Set(k/w.cols, k%w.cols, values[k])
	}
	return n
}

// Weights flattens the matrix in row-major order.
func (w *WeightMatrix) Weights() []float64 {
	out := make([]float64, 0, w.Size())
	for i := 0; i < w.rows; i++ {
		for j := 0; j < w.cols; j++ {
			out = append(out, w.weights.At(i, j))
		}
	}
	return out
}

// Apply multiplies the source activations through the matrix and returns one
// value per target unit: out[j] = sum_i W[i][j] * source[i].
func (w *WeightMatrix) Apply() ([]float64, error) {
	if w.source == nil || w.target == nil {
		return nil, ErrDetached
	}
	if w.Stale() {
		return nil, fmt.Errorf("%w: matrix=%dx%d source=%d target=%d", ErrStale, w.rows, w.cols, w.source.Len(), w.target.Len())
	}
	return w.Multiply(w.source.Activations())
}

// Multiply is Apply against an explicit source vector.
func (w *WeightMatrix) Multiply(src []float64) ([]float64, error) {
	if len(src) != w.rows {
		return nil, fmt.Errorf("source vector length mismatch: got=%d want=%d", len(src), w.rows)
	}
	out := make([]float64, w.cols)
	if w.weights == nil {
		return out, nil
	}
	var product mat.VecDense
	product.MulVec(w.weights.T(), mat.NewVecDense(w.rows, append([]float64(nil), src...)))
	for j := range out {
		out[j] = product.AtVec(j)
	}
	return out, nil
}

// Stale reports whether an endpoint changed length since the last rebuild.
func (w *WeightMatrix) Stale() bool {
	if w.source == nil || w.target == nil {
		return false
	}
	return w.source.Len() != w.rows || w.target.Len() != w.cols
}

// Rebuild reallocates the matrix to match the endpoints. The overlapping block
// is kept; new entries are zero.
func (w *WeightMatrix) Rebuild() error {
	if w.source == nil || w.target == nil {
		return ErrDetached
	}
	if !w.Stale() {
		return nil
	}
	old, oldRows, oldCols := w.weights, w.rows, w.cols
	w.allocate(w.source.Len(), w.target.Len())
	for i := 0; i < min(oldRows, w.rows); i++ {
		for j := 0; j < min(oldCols, w.cols); j++ {
			w.weights.Set(i, j, old.At(i, j))
		}
	}
	return nil
}

// Detach drops both endpoint references. A detached matrix can no longer
// be applied.
func (w *WeightMatrix) Detach() {
	w.source = nil
	w.target = nil
}

func (w *WeightMatrix) Detached() bool {
	return w.source == nil || w.target == nil
}

func (w *WeightMatrix) allocate(rows, cols int) {
	w.rows, w.cols = rows, cols
	if rows == 0 || cols == 0 {
		w.weights = nil
		return
	}
	w.weights = mat.NewDense(rows, cols, nil)
}

func (w *WeightMatrix) each(fn func(i, j int, v float64) float64) {
	if w.weights == nil {
		return
	}
	w.weights.Apply(fn, w.weights)
}
