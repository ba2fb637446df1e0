package matrix

import (
	"errors"
	"math/rand"
	"testing"
)

type neuronView struct {
	values []float64
}

func (v *neuronView) Len() int               { return len(v.values) }
func (v *neuronView) Activations() []float64 { return append([]float64(nil), v.values...) }
func (v *neuronView) Aggregation() bool      { return true }

func TestNewDiagonalWhenSourceIsAggregation(t *testing.T) {
	src := &neuronView{values: []float64{1, -1}}
	dst := NewLayer("dst", 2)

	w, err := New(src, dst, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	out, err := w.Apply()
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if out[0] != 1 || out[1] != -1 {
		t.Fatalf("unexpected weighted inputs: %v", out)
	}
}

func TestNewRandomRequiresRand(t *testing.T) {
	if _, err := New(NewLayer("a", 2), NewLayer("b", 3), nil); err == nil {
		t.Fatal("expected error without random source")
	}
	w, err := New(NewLayer("a", 2), NewLayer("b", 3), rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	rows, cols := w.Dims()
	if rows != 2 || cols != 3 {
		t.Fatalf("unexpected dims: %dx%d", rows, cols)
	}
	nonZero := 0
	for _, v := range w.Weights() {
		if v != 0 {
			nonZero++
		}
	}
	if nonZero == 0 {
		t.Fatal("expected gaussian entries")
	}
}

func TestSetWeightsRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	cases := []struct {
		name  string
		input []float64
	}{
		{name: "short", input: []float64{1, 2, 3, 4}},
		{name: "exact", input: []float64{1, 2, 3, 4, 5, 6}},
		{name: "long", input: []float64{1, 2, 3, 4, 5, 6, 7, 8, 9}},
		{name: "empty", input: nil},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			w, err := New(NewLayer("a", 2), NewLayer("b", 3), rng)
			if err != nil {
				t.Fatalf("new: %v", err)
			}
			before := w.Weights()
			written := w.SetWeights(tc.input)
			want := min(6, len(tc.input))
			if written != want {
				t.Fatalf("written=%d want=%d", written, want)
			}
			got := w.Weights()
			for k := 0; k < want; k++ {
				if got[k] != tc.input[k] {
					t.Fatalf("entry %d: got=%f want=%f", k, got[k], tc.input[k])
				}
			}
			for k := want; k < len(got); k++ {
				if got[k] != before[k] {
					t.Fatalf("entry %d beyond written prefix changed", k)
				}
			}
		})
	}
}

func TestDiagonalizePassesUnitVectors(t *testing.T) {
	for _, dims := range [][2]int{{3, 5}, {5, 3}, {4, 4}} {
		src := NewLayer("src", dims[0])
		dst := NewLayer("dst", dims[1])
		w, err := New(src, dst, rand.New(rand.NewSource(9)))
		if err != nil {
			t.Fatalf("new: %v", err)
		}
		w.Diagonalize()
		for i := 0; i < dims[0]; i++ {
			unit := make([]float64, dims[0])
			unit[i] = 1
			if err := src.SetActivations(unit); err != nil {
				t.Fatalf("set activations: %v", err)
			}
			out, err := w.Apply()
			if err != nil {
				t.Fatalf("apply: %v", err)
			}
			for j, v := range out {
				want := 0.0
				if j == i && i < min(dims[0], dims[1]) {
					want = 1
				}
				if v != want {
					t.Fatalf("dims=%v unit=%d out[%d]=%f want=%f", dims, i, j, v, want)
				}
			}
		}
	}
}

func TestIncrementDecrementClear(t *testing.T) {
	w, err := New(NewLayer("a", 2), NewLayer("b", 2), rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	w.Clear()
	w.Increment()
	w.Increment()
	w.Decrement()
	for _, v := range w.Weights() {
		if v != DefaultIncrement {
			t.Fatalf("unexpected entry after inc/inc/dec: %f", v)
		}
	}
	w.Clear()
	for _, v := range w.Weights() {
		if v != 0 {
			t.Fatalf("entry not cleared: %f", v)
		}
	}
}

func TestResizeMakesMatrixStaleUntilRebuilt(t *testing.T) {
	src := NewLayer("src", 2)
	dst := NewLayer("dst", 2)
	w, err := New(src, dst, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	w.SetWeights([]float64{1, 2, 3, 4})

	dst.Resize(3)
	if _, err := w.Apply(); !errors.Is(err, ErrStale) {
		t.Fatalf("expected ErrStale, got: %v", err)
	}
	if err := w.Rebuild(); err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	got := w.Weights()
	want := []float64{1, 2, 0, 3, 4, 0}
	for k := range want {
		if got[k] != want[k] {
			t.Fatalf("rebuilt weights: got=%v want=%v", got, want)
		}
	}

	w.Detach()
	if _, err := w.Apply(); !errors.Is(err, ErrDetached) {
		t.Fatalf("expected ErrDetached, got: %v", err)
	}
}
