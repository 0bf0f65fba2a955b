package farfield

import (
	"math"
	"testing"

	"github.com/notargets/gofmm/basis"
	"github.com/notargets/gofmm/utils"
	"github.com/stretchr/testify/assert"
)

func scalar(val float64) utils.Tensor {
	return utils.NewTensor([]int{}, []float64{val})
}

func TestAnglesFromWavevectors(t *testing.T) {
	var (
		k0 = 2 * math.Pi // free-space wavevector for wavelength 1
		tw = utils.NewTensor([]int{2, 2, 2}, []float64{
			0, 0, // normal incidence
			0.5 * k0, 0, // 30 degrees, along +x
			0, k0, // exactly at the evanescent boundary, along +y
			1.5 * k0, -1.5 * k0, // evanescent
		})
	)
	polar, azimuthal := AnglesFromUnflattenedTransverseWavevectors(tw, scalar(1))
	assert.Equal(t, []int{2, 2}, polar.Shape)
	assert.InDelta(t, 0, polar.At(0, 0), 1e-14)
	assert.InDelta(t, math.Pi/6, polar.At(0, 1), 1e-14)
	assert.InDelta(t, 0, azimuthal.At(0, 1), 1e-14)
	// Magnitude exactly 2*pi/wavelength maps to pi/2.
	assert.Equal(t, math.Pi/2, polar.At(1, 0))
	assert.InDelta(t, math.Pi/2, azimuthal.At(1, 0), 1e-14)
	// Beyond the boundary the polar angle clamps to pi/2, never NaN.
	assert.Equal(t, math.Pi/2, polar.At(1, 1))
	assert.InDelta(t, -math.Pi/4, azimuthal.At(1, 1), 1e-14)
}

func TestAnglesNaNBins(t *testing.T) {
	tw := utils.NewTensor([]int{1, 2, 2}, []float64{
		0, 0,
		math.NaN(), math.NaN(),
	})
	polar, azimuthal := AnglesFromUnflattenedTransverseWavevectors(tw, scalar(1))
	assert.False(t, math.IsNaN(polar.At(0, 0)))
	assert.True(t, math.IsNaN(polar.At(0, 1)))
	assert.True(t, math.IsNaN(azimuthal.At(0, 1)))
}

func TestAnglesRankValidation(t *testing.T) {
	tw := utils.NewTensor([]int{2, 2, 2})
	// Wavelength rank must equal wavevector rank minus 3.
	assert.Panics(t, func() {
		AnglesFromUnflattenedTransverseWavevectors(tw, utils.NewTensor([]int{1}))
	})
	assert.Panics(t, func() {
		AnglesFromUnflattenedTransverseWavevectors(utils.NewTensor([]int{2, 2, 3}), scalar(1))
	})
}

func TestSolidAngleUniformGrid(t *testing.T) {
	// A uniform propagating grid: 3x3 orders of a unit square lattice at
	// the zone center, wavelength chosen so all bins propagate.
	var (
		l   = basis.NewLatticeVectors([2]float64{1, 0}, [2]float64{0, 1})
		e   = basis.NewCircularExpansion(l, 9)
		ipw = utils.NewTensor([]int{1, 1, 2})
		wl  = 0.5
	)
	tw := basis.TransverseWavevectors(ipw, l, e)
	grid := UnflattenTransverseWavevectors(tw, e, utils.Index{0, 1})
	sa := SolidAngleFromUnflattenedTransverseWavevectors(grid, scalar(wl))
	assert.Equal(t, []int{3, 3}, sa.Shape)
	for _, v := range sa.Data {
		assert.False(t, math.IsNaN(v))
		assert.Greater(t, v, 0.)
	}
	// The center bin sits at polar angle zero; its solid angle equals the
	// planar cell area, (wavelength / cell period)^2.
	h := wl / 1.0
	assert.InDelta(t, h*h, sa.At(1, 1), 1e-12)
	// Off-center bins subtend a larger solid angle due to projection.
	assert.Greater(t, sa.At(0, 0), sa.At(1, 1))
}

func TestFarfieldProfile(t *testing.T) {
	var (
		l    = basis.NewLatticeVectors([2]float64{1, 0}, [2]float64{0, 1})
		e    = basis.Expansion{BasisCoefficients: [][2]int{{0, 0}, {1, 0}, {0, 1}, {1, 1}}}
		flux = utils.NewTensorFilled([]int{1, 1, 8, 1}, 1.0)
		wl   = scalar(0.5)
		ipw  = utils.NewTensor([]int{2})
	)
	polar, azimuthal, solidAngle, power := FarfieldProfile(flux, wl, ipw, l, e, utils.Index{0, 1})
	assert.Equal(t, []int{2, 2}, polar.Shape)
	assert.Equal(t, []int{2, 2}, azimuthal.Shape)
	assert.Equal(t, []int{2, 2}, solidAngle.Shape)
	assert.Equal(t, []int{2, 2, 2, 1}, power.Shape)
	// Zeroth order propagates straight up.
	assert.InDelta(t, 0, polar.At(0, 0), 1e-14)
	// Power is flux over solid angle.
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			for p := 0; p < 2; p++ {
				assert.InDelta(t, 1/solidAngle.At(i, j), power.At(i, j, p, 0), 1e-12)
			}
		}
	}
	// Pure function: identical inputs give bit-identical outputs.
	p2, a2, s2, w2 := FarfieldProfile(flux, wl, ipw, l, e, utils.Index{0, 1})
	assert.Equal(t, polar.Data, p2.Data)
	assert.Equal(t, azimuthal.Data, a2.Data)
	assert.Equal(t, solidAngle.Data, s2.Data)
	assert.Equal(t, power.Data, w2.Data)
	// Wrong order-axis extent panics.
	bad := utils.NewTensor([]int{1, 1, 6, 1})
	assert.Panics(t, func() { FarfieldProfile(bad, wl, ipw, l, e, utils.Index{0, 1}) })
}
