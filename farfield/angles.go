package farfield

import (
	"fmt"
	"math"

	"github.com/notargets/gofmm/basis"
	"github.com/notargets/gofmm/utils"
)

// AnglesFromUnflattenedTransverseWavevectors computes the free-space
// propagation angles for each bin of an unflattened wavevector grid with
// shape (..., nKx, nKy, 2). Evanescent bins, whose transverse wavevector
// magnitude exceeds the free-space wavevector, are clamped to a polar
// angle of pi/2. Bins holding NaN yield NaN angles.
func AnglesFromUnflattenedTransverseWavevectors(tw, wavelength utils.Tensor) (polar, azimuthal utils.Tensor) {
	var (
		rank = tw.Rank()
	)
	if rank < 3 || tw.Shape[rank-1] != 2 {
		err := fmt.Errorf("transverse wavevectors must have shape (..., nKx, nKy, 2): shape = %v", tw.Shape)
		panic(err)
	}
	if rank-3 != wavelength.Rank() {
		err := fmt.Errorf("wavelength rank must match wavevector batch rank: %v != %v-3",
			wavelength.Rank(), rank)
		panic(err)
	}
	// Either operand's batch axes may be singletons of the other's, e.g. a
	// wavelength sweep over a single wavevector grid.
	var (
		batchShape = utils.BroadcastShapes(wavelength.Shape, tw.Shape[:rank-3])
		nGrid      = tw.Shape[rank-3] * tw.Shape[rank-2]
		grid       = utils.BroadcastTo(tw, append(append([]int{}, batchShape...), tw.Shape[rank-3:]...))
		wl         = utils.BroadcastTo(wavelength, batchShape)
		nBatch     = utils.SizeOf(batchShape)
		outShape   = append(append([]int{}, batchShape...), tw.Shape[rank-3], tw.Shape[rank-2])
	)
	polar = utils.NewTensor(outShape)
	azimuthal = utils.NewTensor(outShape)
	for b := 0; b < nBatch; b++ {
		lambda := wl.Data[b]
		for g := 0; g < nGrid; g++ {
			kx := grid.Data[(b*nGrid+g)*2]
			ky := grid.Data[(b*nGrid+g)*2+1]
			out := b*nGrid + g
			if math.IsNaN(kx) || math.IsNaN(ky) {
				polar.Data[out] = math.NaN()
				azimuthal.Data[out] = math.NaN()
				continue
			}
			sinPolar := math.Hypot(kx, ky) * lambda / (2 * math.Pi)
			if sinPolar > 1 {
				polar.Data[out] = math.Pi / 2
			} else {
				polar.Data[out] = math.Asin(sinPolar)
			}
			azimuthal.Data[out] = math.Atan2(ky, kx)
		}
	}
	return
}

// SolidAngleFromUnflattenedTransverseWavevectors computes the solid angle
// each grid bin subtends on the farfield unit sphere. Each bin is treated
// as a quadrilateral cell whose vertices average the four nearest bin
// centers (edge-replicated at the boundary); the planar cell area is
// projected onto the sphere by dividing by cos(polar). The projection is
// a small-cell approximation whose error grows as the polar angle
// approaches pi/2; bins beyond the evanescent boundary yield NaN.
func SolidAngleFromUnflattenedTransverseWavevectors(tw, wavelength utils.Tensor) (solidAngle utils.Tensor) {
	var (
		rank = tw.Rank()
	)
	if rank < 3 || tw.Shape[rank-1] != 2 {
		err := fmt.Errorf("transverse wavevectors must have shape (..., nKx, nKy, 2): shape = %v", tw.Shape)
		panic(err)
	}
	var (
		batchShape = utils.BroadcastShapes(wavelength.Shape, tw.Shape[:rank-3])
		nKx, nKy   = tw.Shape[rank-3], tw.Shape[rank-2]
		nGrid      = nKx * nKy
		grid       = utils.BroadcastTo(tw, append(append([]int{}, batchShape...), nKx, nKy, 2))
		wl         = utils.BroadcastTo(wavelength, batchShape)
		nBatch     = utils.SizeOf(batchShape)
	)
	solidAngle = utils.NewTensor(append(append([]int{}, batchShape...), nKx, nKy))
	var (
		// Vertex grids, (nKx+1) x (nKy+1)
		vx = make([]float64, (nKx+1)*(nKy+1))
		vy = make([]float64, (nKx+1)*(nKy+1))
	)
	clamp := func(i, n int) int {
		if i < 0 {
			return 0
		}
		if i > n-1 {
			return n - 1
		}
		return i
	}
	for b := 0; b < nBatch; b++ {
		var (
			scale = wl.Data[b] / (2 * math.Pi) // normalize onto the unit-radius projection
			base  = b * nGrid * 2
		)
		at := func(i, j int) (kx, ky float64) {
			off := base + (clamp(i, nKx)*nKy+clamp(j, nKy))*2
			return grid.Data[off] * scale, grid.Data[off+1] * scale
		}
		// Cell vertices from edge-padded center averages.
		for i := 0; i <= nKx; i++ {
			for j := 0; j <= nKy; j++ {
				x00, y00 := at(i-1, j-1)
				x01, y01 := at(i-1, j)
				x10, y10 := at(i, j-1)
				x11, y11 := at(i, j)
				vx[i*(nKy+1)+j] = (x00 + x01 + x10 + x11) / 4
				vy[i*(nKy+1)+j] = (y00 + y01 + y10 + y11) / 4
			}
		}
		for i := 0; i < nKx; i++ {
			for j := 0; j < nKy; j++ {
				var (
					o00 = i*(nKy+1) + j
					o01 = i*(nKy+1) + j + 1
					o10 = (i+1)*(nKy+1) + j
				)
				v1x, v1y := vx[o01]-vx[o00], vy[o01]-vy[o00]
				v2x, v2y := vx[o10]-vx[o00], vy[o10]-vy[o00]
				cellArea := math.Abs(v1x*v2y - v2x*v1y)
				kx, ky := at(i, j)
				// Asin yields NaN beyond the evanescent boundary, which
				// propagates into the projected area.
				polar := math.Asin(math.Hypot(kx, ky))
				solidAngle.Data[b*nGrid+i*nKy+j] = cellArea / math.Cos(polar)
			}
		}
	}
	return
}

// FarfieldProfile converts flat flux values into a farfield radiation
// pattern. It unflattens the flux and transverse wavevectors onto the
// dense reciprocal-space grid, computes propagation angles and per-bin
// solid angle, and rescales the flux from power per unit Brillouin zone
// area to power per unit solid angle.
//
// flux has shape (..., numBzKx, numBzKy, ..., 2*numTerms, numSources),
// with the Brillouin grid axes given by bzAxes; wavelength and
// inPlaneWavevector must be batch-compatible with flux. The returned
// polar angle, azimuthal angle and solid angle share the unflattened
// grid shape (..., nKx, nKy); the power additionally carries the
// polarization and source axes.
func FarfieldProfile(flux, wavelength, inPlaneWavevector utils.Tensor, lattice basis.LatticeVectors,
	expansion basis.Expansion, bzAxes utils.Index) (polar, azimuthal, solidAngle, power utils.Tensor) {
	var (
		rank = flux.Rank()
	)
	if flux.Shape[rank-2] != 2*expansion.NumTerms() {
		err := fmt.Errorf("flux axis -2 must have length 2*numTerms: shape = %v, numTerms = %v",
			flux.Shape, expansion.NumTerms())
		panic(err)
	}
	bzAxes = normalizeBzAxes(bzAxes, rank)

	var (
		ndimBatch = rank - 2
		wl        = utils.AtLeastND(wavelength, ndimBatch)
		ipw       = utils.AtLeastND(inPlaneWavevector, ndimBatch+1)
	)
	tw := basis.TransverseWavevectors(ipw, lattice, expansion)
	twGrid := UnflattenTransverseWavevectors(tw, expansion, bzAxes)
	fluxGrid := UnflattenFlux(flux, expansion, bzAxes)

	// The Brillouin grid axes are consumed by unflattening; they must be
	// singletons of wavelength.
	wl = utils.Squeeze(wl, bzAxes)

	polar, azimuthal = AnglesFromUnflattenedTransverseWavevectors(twGrid, wl)
	solidAngle = SolidAngleFromUnflattenedTransverseWavevectors(twGrid, wl)

	// Broadcast the solid angle over the trailing polarization and source
	// axes of the flux.
	saShape := append(append([]int{}, solidAngle.Shape...), 1, 1)
	power = utils.Div(fluxGrid, solidAngle.Reshape(saShape...))
	return
}
