package utils

import (
	"fmt"
	"math"
)

// Tensor is a dense array of arbitrary rank with row-major storage. The
// trailing axis varies fastest, matching the layout of mat.Dense so that
// rank-2 tensors and matrices can share backing slices.
type Tensor struct {
	Shape []int
	Data  []float64
}

func NewTensor(shape []int, dataO ...[]float64) (T Tensor) {
	var (
		size = SizeOf(shape)
	)
	for _, n := range shape {
		if n < 0 {
			err := fmt.Errorf("negative dimension in shape: %v", shape)
			panic(err)
		}
	}
	if len(dataO) != 0 {
		if len(dataO[0]) != size {
			err := fmt.Errorf("mismatch in allocation: NewTensor shape = %v, len(data[0]) = %v", shape, len(dataO[0]))
			panic(err)
		}
		T = Tensor{append([]int{}, shape...), dataO[0]}
	} else {
		T = Tensor{append([]int{}, shape...), make([]float64, size)}
	}
	return
}

func NewTensorFilled(shape []int, val float64) (T Tensor) {
	T = NewTensor(shape)
	for i := range T.Data {
		T.Data[i] = val
	}
	return
}

func SizeOf(shape []int) (size int) {
	size = 1
	for _, n := range shape {
		size *= n
	}
	return
}

func (t Tensor) Rank() int { return len(t.Shape) }
func (t Tensor) Size() int { return SizeOf(t.Shape) }

// Strides returns the row-major stride of each axis in elements.
func (t Tensor) Strides() (s Index) {
	s = NewIndex(t.Rank())
	stride := 1
	for i := t.Rank() - 1; i >= 0; i-- {
		s[i] = stride
		stride *= t.Shape[i]
	}
	return
}

func (t Tensor) offset(ix []int) (off int) {
	if len(ix) != t.Rank() {
		err := fmt.Errorf("index rank mismatch: len(ix) = %v, rank = %v", len(ix), t.Rank())
		panic(err)
	}
	for i, n := range ix {
		if n < 0 || n >= t.Shape[i] {
			err := fmt.Errorf("index out of bounds: axis %v, index = %v, extent = %v", i, n, t.Shape[i])
			panic(err)
		}
		off = off*t.Shape[i] + n
	}
	return
}

func (t Tensor) At(ix ...int) float64 {
	return t.Data[t.offset(ix)]
}

func (t Tensor) Set(val float64, ix ...int) {
	t.Data[t.offset(ix)] = val
}

func (t Tensor) Copy() (R Tensor) { // Does not change receiver
	R = NewTensor(t.Shape)
	copy(R.Data, t.Data)
	return
}

// Reshape returns a tensor sharing the receiver's backing data. At most one
// dimension may be -1, in which case its extent is inferred from the size.
func (t Tensor) Reshape(shape ...int) (R Tensor) {
	var (
		size   = t.Size()
		known  = 1
		infer  = -1
		rShape = append([]int{}, shape...)
	)
	for i, n := range rShape {
		if n == -1 {
			if infer != -1 {
				err := fmt.Errorf("only one dimension may be inferred: shape = %v", shape)
				panic(err)
			}
			infer = i
		} else {
			known *= n
		}
	}
	if infer != -1 {
		if known == 0 || size%known != 0 {
			err := fmt.Errorf("cannot infer dimension: size = %v, shape = %v", size, shape)
			panic(err)
		}
		rShape[infer] = size / known
		known *= rShape[infer]
	}
	if known != size {
		err := fmt.Errorf("reshape size mismatch: size = %v, shape = %v", size, shape)
		panic(err)
	}
	R = Tensor{rShape, t.Data}
	return
}

// Transpose permutes the axes of the tensor, copying into a new row-major
// layout. perm must contain each axis exactly once.
func (t Tensor) Transpose(perm Index) (R Tensor) { // Does not change receiver
	var (
		rank = t.Rank()
	)
	if len(perm) != rank {
		err := fmt.Errorf("permutation rank mismatch: len(perm) = %v, rank = %v", len(perm), rank)
		panic(err)
	}
	seen := make([]bool, rank)
	rShape := NewIndex(rank)
	for i, p := range perm {
		if p < 0 || p >= rank || seen[p] {
			err := fmt.Errorf("invalid permutation: %v", perm)
			panic(err)
		}
		seen[p] = true
		rShape[i] = t.Shape[p]
	}
	R = NewTensor(rShape)
	if t.Size() == 0 {
		return
	}
	var (
		srcStrides = t.Strides()
		ix         = NewIndex(rank) // multi-index in the output layout
	)
	for o := range R.Data {
		var src int
		for i, p := range perm {
			src += ix[i] * srcStrides[p]
		}
		R.Data[o] = t.Data[src]
		for i := rank - 1; i >= 0; i-- {
			ix[i]++
			if ix[i] < rShape[i] {
				break
			}
			ix[i] = 0
		}
	}
	return
}

func (t Tensor) Apply(f func(float64) float64) (R Tensor) { // Does not change receiver
	R = t.Copy()
	for i, val := range R.Data {
		R.Data[i] = f(val)
	}
	return
}

func (t Tensor) ReplaceNaN(val float64) (R Tensor) { // Does not change receiver
	R = t.Copy()
	for i, v := range R.Data {
		if math.IsNaN(v) {
			R.Data[i] = val
		}
	}
	return
}

func SameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
