package farfield

import (
	"math"
	"testing"

	"github.com/notargets/gofmm/basis"
	"github.com/notargets/gofmm/utils"
	"github.com/stretchr/testify/assert"
)

func TestUnflattenRoundTrip(t *testing.T) {
	var (
		e = basis.Expansion{BasisCoefficients: [][2]int{
			{0, 0}, {1, 0}, {0, 1}, {1, 1},
		}}
		nBzX, nBzY = 2, 3
	)
	flat := utils.NewTensor([]int{nBzX, nBzY, e.NumTerms()})
	for i := range flat.Data {
		flat.Data[i] = float64(i + 1)
	}
	grid := Unflatten(flat, e)
	assert.Equal(t, []int{2 * nBzX, 2 * nBzY}, grid.Shape)
	// Gathering at each destination bin reproduces the flat values.
	for bx := 0; bx < nBzX; bx++ {
		for by := 0; by < nBzY; by++ {
			for k, c := range e.BasisCoefficients {
				row := c[0]*nBzX + bx
				col := c[1]*nBzY + by
				assert.Equal(t, flat.At(bx, by, k), grid.At(row, col))
			}
		}
	}
	// Every bin is written for this rectangular expansion.
	for _, v := range grid.Data {
		assert.False(t, math.IsNaN(v))
	}
}

func TestUnflattenGaps(t *testing.T) {
	// A non-rectangular expansion leaves unreachable bins as NaN.
	var (
		e = basis.Expansion{BasisCoefficients: [][2]int{
			{0, 0}, {1, 0}, {0, 1},
		}}
	)
	flat := utils.NewTensor([]int{1, 1, 3}, []float64{10, 20, 30})
	grid := Unflatten(flat, e)
	assert.Equal(t, []int{2, 2}, grid.Shape)
	assert.Equal(t, 10., grid.At(0, 0))
	assert.Equal(t, 20., grid.At(1, 0))
	assert.Equal(t, 30., grid.At(0, 1))
	assert.True(t, math.IsNaN(grid.At(1, 1)))
	// Negative orders shift the origin of the grid.
	e = basis.Expansion{BasisCoefficients: [][2]int{{-1, 0}, {0, 0}}}
	flat = utils.NewTensor([]int{1, 1, 2}, []float64{-1, 1})
	grid = Unflatten(flat, e)
	assert.Equal(t, []int{2, 1}, grid.Shape)
	assert.Equal(t, -1., grid.At(0, 0))
	assert.Equal(t, 1., grid.At(1, 0))
}

func TestUnflattenEmptyExpansion(t *testing.T) {
	var (
		e    = basis.Expansion{}
		flat = utils.NewTensor([]int{2, 2, 0})
	)
	grid := Unflatten(flat, e)
	assert.Equal(t, []int{0, 0}, grid.Shape)
	assert.Equal(t, 0, grid.Size())
}

func TestUnflattenPreservesBatch(t *testing.T) {
	var (
		e = basis.Expansion{BasisCoefficients: [][2]int{{0, 0}, {1, 0}}}
	)
	flat := utils.NewTensor([]int{3, 1, 1, 2})
	for i := range flat.Data {
		flat.Data[i] = float64(i)
	}
	grid := Unflatten(flat, e)
	assert.Equal(t, []int{3, 2, 1}, grid.Shape)
	for b := 0; b < 3; b++ {
		assert.Equal(t, flat.At(b, 0, 0, 0), grid.At(b, 0, 0))
		assert.Equal(t, flat.At(b, 0, 0, 1), grid.At(b, 1, 0))
	}
}

func TestUnflattenValidation(t *testing.T) {
	e := basis.Expansion{BasisCoefficients: [][2]int{{0, 0}}}
	assert.Panics(t, func() { Unflatten(utils.NewTensor([]int{2, 1}), e) })
	assert.Panics(t, func() { Unflatten(utils.NewTensor([]int{1, 1, 2}), e) })
}

func TestUnflattenFlux(t *testing.T) {
	var (
		e = basis.Expansion{BasisCoefficients: [][2]int{{0, 0}, {1, 0}}}
		// flux shape (nBzX=1, nBzY=2, 2*numTerms=4, numSources=1)
		flux = utils.NewTensor([]int{1, 2, 4, 1}, []float64{
			// bz sample (0, 0): pol0 orders {00, 10}, pol1 orders {00, 10}
			1, 2, 3, 4,
			// bz sample (0, 1)
			5, 6, 7, 8,
		})
	)
	grid := UnflattenFlux(flux, e, utils.Index{0, 1})
	assert.Equal(t, []int{2, 2, 2, 1}, grid.Shape)
	// Order (0,0) occupies kx bin 0, order (1,0) kx bin 1; the BZ ky
	// samples fill the two ky bins.
	assert.Equal(t, 1., grid.At(0, 0, 0, 0)) // pol 0, order (0,0), bz (0,0)
	assert.Equal(t, 3., grid.At(0, 0, 1, 0)) // pol 1, order (0,0)
	assert.Equal(t, 2., grid.At(1, 0, 0, 0)) // pol 0, order (1,0)
	assert.Equal(t, 5., grid.At(0, 1, 0, 0)) // pol 0, order (0,0), bz (0,1)
	assert.Equal(t, 8., grid.At(1, 1, 1, 0)) // pol 1, order (1,0), bz (0,1)
	// Leading batch axes survive.
	batched := utils.NewTensor([]int{2, 1, 2, 4, 1})
	copy(batched.Data[:8], flux.Data)
	copy(batched.Data[8:], flux.Data)
	bGrid := UnflattenFlux(batched, e, utils.Index{1, 2})
	assert.Equal(t, []int{2, 2, 2, 2, 1}, bGrid.Shape)
	assert.Equal(t, grid.Data, bGrid.Data[:grid.Size()])
	assert.Equal(t, grid.Data, bGrid.Data[grid.Size():])
	// Shape violations panic.
	assert.Panics(t, func() { UnflattenFlux(utils.NewTensor([]int{1, 2, 3, 1}), e, utils.Index{0, 1}) })
}

func TestUnflattenTransverseWavevectors(t *testing.T) {
	var (
		l = basis.NewLatticeVectors([2]float64{1, 0}, [2]float64{0, 1})
		e = basis.Expansion{BasisCoefficients: [][2]int{{0, 0}, {1, 0}, {0, 1}, {1, 1}}}
	)
	// Single BZ sample at the zone center.
	ipw := utils.NewTensor([]int{1, 1, 2})
	tw := basis.TransverseWavevectors(ipw, l, e)
	assert.Equal(t, []int{1, 1, 4, 2}, tw.Shape)
	grid := UnflattenTransverseWavevectors(tw, e, utils.Index{0, 1})
	assert.Equal(t, []int{2, 2, 2}, grid.Shape)
	assert.InDelta(t, 0, grid.At(0, 0, 0), 1e-14)
	assert.InDelta(t, 2*math.Pi, grid.At(1, 0, 0), 1e-14)
	assert.InDelta(t, 2*math.Pi, grid.At(0, 1, 1), 1e-14)
}

func TestUnflattenMonotonicity(t *testing.T) {
	// With physically ordered orders and a regular BZ sampling, the
	// unflattened kx and ky components are non-decreasing along their
	// respective axes.
	var (
		l          = basis.NewLatticeVectors([2]float64{1, 0}, [2]float64{0, 1})
		e          = basis.NewCircularExpansion(l, 9)
		nBzX, nBzY = 3, 2
		bz         = basis.BrillouinZoneInPlaneWavevector(nBzX, nBzY, l)
	)
	tw := basis.TransverseWavevectors(bz, l, e)
	grid := UnflattenTransverseWavevectors(tw, e, utils.Index{0, 1})
	var (
		nKx, nKy = grid.Shape[0], grid.Shape[1]
	)
	for j := 0; j < nKy; j++ {
		prev := math.Inf(-1)
		for i := 0; i < nKx; i++ {
			kx := grid.At(i, j, 0)
			if math.IsNaN(kx) {
				continue
			}
			assert.GreaterOrEqual(t, kx, prev)
			prev = kx
		}
	}
	for i := 0; i < nKx; i++ {
		prev := math.Inf(-1)
		for j := 0; j < nKy; j++ {
			ky := grid.At(i, j, 1)
			if math.IsNaN(ky) {
				continue
			}
			assert.GreaterOrEqual(t, ky, prev)
			prev = ky
		}
	}
}
