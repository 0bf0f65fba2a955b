package utils

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTensor(t *testing.T) {
	// At/Set with row-major layout
	{
		T := NewTensor([]int{2, 3}, []float64{
			1, 2, 3,
			4, 5, 6,
		})
		assert.Equal(t, 1., T.At(0, 0))
		assert.Equal(t, 6., T.At(1, 2))
		T.Set(-1, 1, 0)
		assert.Equal(t, -1., T.At(1, 0))
	}
	// Reshape with inference shares backing data
	{
		T := NewTensor([]int{2, 6})
		R := T.Reshape(2, 2, -1)
		assert.Equal(t, []int{2, 2, 3}, R.Shape)
		R.Set(7, 1, 1, 2)
		assert.Equal(t, 7., T.At(1, 5))
	}
	// Transpose
	{
		T := NewTensor([]int{2, 3}, []float64{
			1, 2, 3,
			4, 5, 6,
		})
		A := T.Transpose(Index{1, 0})
		assert.Equal(t, []int{3, 2}, A.Shape)
		assert.Equal(t, []float64{1, 4, 2, 5, 3, 6}, A.Data)
	}
	// Transpose of rank 3, middle axis to front
	{
		T := NewTensor([]int{2, 2, 2}, []float64{0, 1, 2, 3, 4, 5, 6, 7})
		A := T.Transpose(Index{1, 0, 2})
		assert.Equal(t, []float64{0, 1, 4, 5, 2, 3, 6, 7}, A.Data)
	}
	// ReplaceNaN
	{
		T := NewTensor([]int{3}, []float64{1, math.NaN(), 3})
		R := T.ReplaceNaN(0)
		assert.Equal(t, []float64{1, 0, 3}, R.Data)
		assert.True(t, math.IsNaN(T.Data[1])) // receiver unchanged
	}
	// Bad allocation panics
	{
		assert.Panics(t, func() { NewTensor([]int{2, 2}, []float64{1, 2, 3}) })
		assert.Panics(t, func() { NewTensor([]int{2, 2}).Reshape(3, -1) })
	}
}

func TestAxes(t *testing.T) {
	// AbsoluteAxes normalizes negatives
	{
		abs := AbsoluteAxes(Index{0, -1}, 4)
		assert.Equal(t, Index{0, 3}, abs)
	}
	// Out of range and repeated axes panic
	{
		assert.Panics(t, func() { AbsoluteAxes(Index{4}, 4) })
		assert.Panics(t, func() { AbsoluteAxes(Index{-5}, 4) })
		assert.Panics(t, func() { AbsoluteAxes(Index{1, -3}, 4) })
	}
	// AtLeastND left-pads singletons
	{
		T := NewTensor([]int{3}, []float64{1, 2, 3})
		R := AtLeastND(T, 3)
		assert.Equal(t, []int{1, 1, 3}, R.Shape)
		assert.Equal(t, T.Data, R.Data)
	}
	// Squeeze removes singleton axes only
	{
		T := NewTensor([]int{1, 3, 1})
		R := Squeeze(T, Index{0, 2})
		assert.Equal(t, []int{3}, R.Shape)
		assert.Panics(t, func() { Squeeze(T, Index{1}) })
	}
}

func TestBroadcast(t *testing.T) {
	// Shape resolution
	{
		assert.Equal(t, []int{2, 3, 4}, BroadcastShapes([]int{2, 1, 4}, []int{3, 1}))
		assert.Panics(t, func() { BroadcastShapes([]int{2, 3}, []int{4, 3}) })
	}
	// BroadcastTo stretches singleton axes
	{
		T := NewTensor([]int{2, 1}, []float64{1, 2})
		R := BroadcastTo(T, []int{2, 3})
		assert.Equal(t, []float64{1, 1, 1, 2, 2, 2}, R.Data)
	}
	// Binary ops broadcast trailing-aligned
	{
		A := NewTensor([]int{2, 2}, []float64{1, 2, 3, 4})
		B := NewTensor([]int{2}, []float64{10, 100})
		R := Mul(A, B)
		assert.Equal(t, []float64{10, 200, 30, 400}, R.Data)
		S := Div(A, NewTensor([]int{1}, []float64{2}))
		assert.Equal(t, []float64{0.5, 1, 1.5, 2}, S.Data)
	}
}
