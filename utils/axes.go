package utils

import (
	"fmt"
)

// AbsoluteAxes normalizes possibly-negative axis indices into the range
// [0, ndim). Out-of-range or repeated axes panic.
func AbsoluteAxes(axes Index, ndim int) (abs Index) {
	abs = NewIndex(len(axes))
	seen := make([]bool, ndim)
	for i, ax := range axes {
		a := ax
		if a < 0 {
			a += ndim
		}
		if a < 0 || a >= ndim {
			err := fmt.Errorf("axis out of range: axis = %v, ndim = %v", ax, ndim)
			panic(err)
		}
		if seen[a] {
			err := fmt.Errorf("repeated axis: axes = %v, ndim = %v", axes, ndim)
			panic(err)
		}
		seen[a] = true
		abs[i] = a
	}
	return
}

// AtLeastND left-pads singleton axes until the tensor has rank n.
func AtLeastND(t Tensor, n int) (R Tensor) {
	if t.Rank() >= n {
		return t
	}
	shape := NewIndex(n)
	pad := n - t.Rank()
	for i := 0; i < pad; i++ {
		shape[i] = 1
	}
	copy(shape[pad:], t.Shape)
	R = Tensor{shape, t.Data}
	return
}

// Squeeze removes the given axes, which must all have extent 1.
func Squeeze(t Tensor, axes Index) (R Tensor) {
	var (
		abs   = AbsoluteAxes(axes, t.Rank())
		drop  = make([]bool, t.Rank())
		shape Index
	)
	for _, a := range abs {
		if t.Shape[a] != 1 {
			err := fmt.Errorf("cannot squeeze axis %v with extent %v", a, t.Shape[a])
			panic(err)
		}
		drop[a] = true
	}
	for i, n := range t.Shape {
		if !drop[i] {
			shape = append(shape, n)
		}
	}
	R = Tensor{shape, t.Data}
	return
}

// BroadcastShapes computes the shape resulting from broadcasting a against
// b under the usual convention: trailing axes are aligned, and axes of
// extent 1 stretch to match.
func BroadcastShapes(a, b []int) (shape []int) {
	var (
		na, nb = len(a), len(b)
		n      = na
	)
	if nb > n {
		n = nb
	}
	shape = make([]int, n)
	for i := 0; i < n; i++ {
		da, db := 1, 1
		if i >= n-na {
			da = a[i-(n-na)]
		}
		if i >= n-nb {
			db = b[i-(n-nb)]
		}
		switch {
		case da == db:
			shape[i] = da
		case da == 1:
			shape[i] = db
		case db == 1:
			shape[i] = da
		default:
			err := fmt.Errorf("shapes cannot be broadcast: %v, %v", a, b)
			panic(err)
		}
	}
	return
}

// BroadcastTo materializes t stretched to the given shape.
func BroadcastTo(t Tensor, shape []int) (R Tensor) {
	var (
		n   = len(shape)
		tt  = AtLeastND(t, n)
		chk = BroadcastShapes(tt.Shape, shape)
	)
	if !SameShape(chk, shape) {
		err := fmt.Errorf("cannot broadcast shape %v to %v", t.Shape, shape)
		panic(err)
	}
	R = NewTensor(shape)
	if R.Size() == 0 {
		return
	}
	var (
		srcStrides = tt.Strides()
		ix         = NewIndex(n)
	)
	for o := range R.Data {
		var src int
		for i := 0; i < n; i++ {
			if tt.Shape[i] != 1 {
				src += ix[i] * srcStrides[i]
			}
		}
		R.Data[o] = tt.Data[src]
		for i := n - 1; i >= 0; i-- {
			ix[i]++
			if ix[i] < shape[i] {
				break
			}
			ix[i] = 0
		}
	}
	return
}

func broadcastOp(a, b Tensor, f func(x, y float64) float64) (R Tensor) {
	var (
		shape = BroadcastShapes(a.Shape, b.Shape)
		aa    = BroadcastTo(a, shape)
		bb    = BroadcastTo(b, shape)
	)
	R = NewTensor(shape)
	for i := range R.Data {
		R.Data[i] = f(aa.Data[i], bb.Data[i])
	}
	return
}

func Add(a, b Tensor) Tensor { return broadcastOp(a, b, func(x, y float64) float64 { return x + y }) }
func Sub(a, b Tensor) Tensor { return broadcastOp(a, b, func(x, y float64) float64 { return x - y }) }
func Mul(a, b Tensor) Tensor { return broadcastOp(a, b, func(x, y float64) float64 { return x * y }) }
func Div(a, b Tensor) Tensor { return broadcastOp(a, b, func(x, y float64) float64 { return x / y }) }
