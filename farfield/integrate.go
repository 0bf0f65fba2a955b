package farfield

import (
	"fmt"
	"math"

	"github.com/james-bowman/sparse"
	"github.com/notargets/gofmm/basis"
	"github.com/notargets/gofmm/utils"
)

/*
Functions for computing the total flux in some angular region.

Summing flux over the bins selected by a mask evaluated on the coarse
angular grid gives a poor quadrature: each bin is large in angle space,
so a cone boundary lands entirely inside or outside a bin. Instead, the
flux and wavevector grids are upsampled by linear interpolation, the
mask is evaluated on the fine grid, and the masked fine sum is folded
back into one weight per coarse bin. Because interpolation and masking
are linear in the flux, each coarse weight is exactly the sum of
interpolation coefficients carrying that bin into masked fine bins -
the closed form of the gradient of the masked upsampled sum with
respect to the coarse flux. The weights are computed once and applied
to any number of source columns by multiply-and-sum.
*/

// AngleBoundsFn reports whether a farfield direction lies inside the
// angular region of integration.
type AngleBoundsFn func(polarAngle, azimuthalAngle float64) bool

// interpTap is one coefficient of the 1-D linear resize kernel.
type interpTap struct {
	i0, i1 int
	w0, w1 float64
}

// linearKernel returns the two-tap interpolation stencil for each fine
// sample of an n-point axis upsampled by factor. Fine samples sit at
// half-pixel centers; stencil indices are clamped at the boundary.
func linearKernel(n, factor int) (taps []interpTap) {
	taps = make([]interpTap, n*factor)
	for f := range taps {
		s := (float64(f)+0.5)/float64(factor) - 0.5
		i0 := int(math.Floor(s))
		frac := s - float64(i0)
		i1 := i0 + 1
		if i0 < 0 {
			i0 = 0
		}
		if i1 > n-1 {
			i1 = n - 1
		}
		taps[f] = interpTap{i0: i0, i1: i1, w0: 1 - frac, w1: frac}
	}
	return
}

// Upsample resamples axes (axis, axis+1) of t by an integer factor using
// separable linear interpolation. Remaining axes are untouched.
func Upsample(t utils.Tensor, factor, axis int) (R utils.Tensor) {
	if factor < 1 {
		err := fmt.Errorf("upsample factor must be a positive integer: %v", factor)
		panic(err)
	}
	if axis < 0 || axis+1 >= t.Rank() {
		err := fmt.Errorf("upsample axes out of range: axis = %v, rank = %v", axis, t.Rank())
		panic(err)
	}
	if factor == 1 {
		return t.Copy()
	}
	var (
		nx, ny = t.Shape[axis], t.Shape[axis+1]
		fx, fy = nx * factor, ny * factor
		nLead  = utils.SizeOf(t.Shape[:axis])
		nChan  = utils.SizeOf(t.Shape[axis+2:])
		kx     = linearKernel(nx, factor)
		ky     = linearKernel(ny, factor)
		shape  = append([]int{}, t.Shape...)
	)
	shape[axis], shape[axis+1] = fx, fy
	R = utils.NewTensor(shape)
	for b := 0; b < nLead; b++ {
		var (
			src = t.Data[b*nx*ny*nChan : (b+1)*nx*ny*nChan]
			dst = R.Data[b*fx*fy*nChan : (b+1)*fx*fy*nChan]
		)
		for ix := 0; ix < fx; ix++ {
			tx := kx[ix]
			for iy := 0; iy < fy; iy++ {
				ty := ky[iy]
				for c := 0; c < nChan; c++ {
					v := tx.w0*ty.w0*src[(tx.i0*ny+ty.i0)*nChan+c] +
						tx.w0*ty.w1*src[(tx.i0*ny+ty.i1)*nChan+c] +
						tx.w1*ty.w0*src[(tx.i1*ny+ty.i0)*nChan+c] +
						tx.w1*ty.w1*src[(tx.i1*ny+ty.i1)*nChan+c]
					dst[(ix*fy+iy)*nChan+c] = v
				}
			}
		}
	}
	return
}

// interpOperator assembles the separable linear resize as a sparse
// matrix mapping the coarse grid (nx*ny columns) to the fine grid
// (nx*ny*factor^2 rows).
func interpOperator(nx, ny, factor int) (A *sparse.CSR) {
	var (
		kxT   = linearKernel(nx, factor)
		kyT   = linearKernel(ny, factor)
		fy    = ny * factor
		fSize = nx * ny * factor * factor
		cSize = nx * ny
		dok   = sparse.NewDOK(fSize, cSize)
	)
	add := func(row, col int, w float64) {
		if w != 0 {
			dok.Set(row, col, dok.At(row, col)+w)
		}
	}
	for ix, tx := range kxT {
		for iy, ty := range kyT {
			row := ix*fy + iy
			add(row, tx.i0*ny+ty.i0, tx.w0*ty.w0)
			add(row, tx.i0*ny+ty.i1, tx.w0*ty.w1)
			add(row, tx.i1*ny+ty.i0, tx.w1*ty.w0)
			add(row, tx.i1*ny+ty.i1, tx.w1*ty.w1)
		}
	}
	A = dok.ToCSR()
	return
}

// IntegratedFlux computes the total flux radiated into the angular
// region selected by angleBoundsFn, summing over the Brillouin grid
// axes and the Fourier order/polarization axis. flux has shape
// (..., numBzKx, numBzKy, ..., 2*numTerms, numSources); the result
// keeps the remaining batch axes and the source axis.
//
// upsampleFactor controls the interpolation refinement of the angular
// quadrature; 1 disables upsampling and degrades to a coarse masked sum.
func IntegratedFlux(flux, wavelength, inPlaneWavevector utils.Tensor, lattice basis.LatticeVectors,
	expansion basis.Expansion, bzAxes utils.Index, angleBoundsFn AngleBoundsFn,
	upsampleFactor int) (R utils.Tensor) {
	var (
		rank = flux.Rank()
	)
	if upsampleFactor < 1 {
		err := fmt.Errorf("upsample factor must be a positive integer: %v", upsampleFactor)
		panic(err)
	}
	if rank < 4 || flux.Shape[rank-2] != 2*expansion.NumTerms() {
		err := fmt.Errorf("flux must have shape (..., 2*numTerms, numSources): shape = %v, numTerms = %v",
			flux.Shape, expansion.NumTerms())
		panic(err)
	}
	bzAxes = normalizeBzAxes(bzAxes, rank)

	weights := integratedFluxWeights(flux, wavelength, inPlaneWavevector, lattice,
		expansion, bzAxes, angleBoundsFn, upsampleFactor)

	// Reduce weights*flux over the Brillouin grid axes and the order axis.
	var (
		reduce   = make([]bool, rank)
		outShape []int
	)
	for _, a := range bzAxes {
		reduce[a] = true
	}
	reduce[rank-2] = true
	for i, n := range flux.Shape {
		if !reduce[i] {
			outShape = append(outShape, n)
		}
	}
	R = utils.NewTensor(outShape)
	var (
		ix         = utils.NewIndex(rank)
		outStrides = utils.NewTensor(outShape).Strides()
	)
	for o := range flux.Data {
		var (
			wOff, rOff, oi int
		)
		for i := 0; i < rank; i++ {
			if i < rank-1 {
				wOff = wOff*flux.Shape[i] + ix[i]
			}
			if !reduce[i] {
				rOff += ix[i] * outStrides[oi]
				oi++
			}
		}
		R.Data[rOff] += weights.Data[wOff] * flux.Data[o]
		for i := rank - 1; i >= 0; i-- {
			ix[i]++
			if ix[i] < flux.Shape[i] {
				break
			}
			ix[i] = 0
		}
	}
	return
}

// integratedFluxWeights computes the per-element quadrature weights for
// the region selected by angleBoundsFn, with shape flux.Shape[:-1]. The
// weights depend only on the angular geometry, not on the flux values,
// and are shared by both polarizations of each Fourier order.
func integratedFluxWeights(flux, wavelength, inPlaneWavevector utils.Tensor, lattice basis.LatticeVectors,
	expansion basis.Expansion, bzAxes utils.Index, angleBoundsFn AngleBoundsFn,
	upsampleFactor int) (W utils.Tensor) {
	var (
		rank      = flux.Rank()
		numTerms  = expansion.NumTerms()
		ndimBatch = rank - 2
		wl        = utils.AtLeastND(wavelength, ndimBatch)
		ipw       = utils.AtLeastND(inPlaneWavevector, ndimBatch+1)
	)
	tw := basis.TransverseWavevectors(ipw, lattice, expansion)
	twGrid := UnflattenTransverseWavevectors(tw, expansion, bzAxes)

	// Gap bins are zeroed before interpolation so fine bins near a gap see
	// finite wavevectors. Any weight a masked fine bin deposits on a gap
	// bin lands on a grid position no flat element maps to, so the gather
	// below never reads it.
	twFine := Upsample(twGrid.ReplaceNaN(0), upsampleFactor, twGrid.Rank()-3)

	wlSq := utils.Squeeze(wl, bzAxes)
	polar, azimuthal := AnglesFromUnflattenedTransverseWavevectors(twFine, wlSq)

	var (
		gRank = twGrid.Rank()
		// The angle batch shape is the broadcast of the wavevector grid
		// batch against the wavelength; weights are per angle batch.
		nKx, nKy   = twGrid.Shape[gRank-3], twGrid.Shape[gRank-2]
		batchShape = polar.Shape[:polar.Rank()-2]
		nBatch     = utils.SizeOf(batchShape)
		nFine      = nKx * nKy * upsampleFactor * upsampleFactor
		A          = interpOperator(nKx, nKy, upsampleFactor)
		norm       = float64(upsampleFactor * upsampleFactor)
		nBzX       = flux.Shape[bzAxes[0]]
		nBzY       = flux.Shape[bzAxes[1]]
		s          = newScatterMap(expansion, nBzX, nBzY)
	)
	// Coarse-grid weights per batch element: the transpose of the
	// interpolation operator applied to the fine-grid mask.
	wGrid := utils.NewTensor(append(append([]int{}, batchShape...), nKx, nKy))
	for b := 0; b < nBatch; b++ {
		var (
			mask = make([]bool, nFine)
			dst  = wGrid.Data[b*nKx*nKy : (b+1)*nKx*nKy]
		)
		for f := 0; f < nFine; f++ {
			p := polar.Data[b*nFine+f]
			if math.IsNaN(p) {
				continue
			}
			mask[f] = angleBoundsFn(p, azimuthal.Data[b*nFine+f])
		}
		A.DoNonZero(func(f, g int, v float64) {
			if mask[f] {
				dst[g] += v / norm
			}
		})
	}

	// Gather the grid weights back onto the flat (bz sample, order)
	// layout, reusing the unflatten scatter indices. The grid batch axes
	// may be singletons where flux is batched (broadcast wavelength or
	// in-plane wavevector); those stretch across the flux batch.
	W = utils.NewTensor(flux.Shape[:rank-1])
	var (
		ix = utils.NewIndex(rank - 1)
	)
	for o := range W.Data {
		var (
			bx, by = ix[bzAxes[0]], ix[bzAxes[1]]
			term   = ix[rank-2] % numTerms
			batch  int
			pos    int
		)
		for i := 0; i < rank-2; i++ {
			if bzAxes.Contains(i) {
				continue
			}
			d := batchShape[pos]
			idx := ix[i]
			if idx >= d {
				idx = 0
			}
			batch = batch*d + idx
			pos++
		}
		f := (bx*nBzY+by)*numTerms + term
		W.Data[o] = wGrid.Data[(batch*nKx+s.RI[f])*nKy+s.CI[f]]
		for i := rank - 2; i >= 0; i-- {
			ix[i]++
			if ix[i] < W.Shape[i] {
				break
			}
			ix[i] = 0
		}
	}
	return
}

// integratedFluxUpsampled is the direct reference computation: unflatten,
// upsample, mask and sum. It is retained to validate the weight-based
// path, which must agree with it exactly for any mask.
func integratedFluxUpsampled(flux, wavelength, inPlaneWavevector utils.Tensor, lattice basis.LatticeVectors,
	expansion basis.Expansion, bzAxes utils.Index, angleBoundsFn AngleBoundsFn,
	upsampleFactor int) (R utils.Tensor) {
	if upsampleFactor < 1 {
		err := fmt.Errorf("upsample factor must be a positive integer: %v", upsampleFactor)
		panic(err)
	}
	var (
		rank      = flux.Rank()
		ndimBatch = rank - 2
		wl        = utils.AtLeastND(wavelength, ndimBatch)
		ipw       = utils.AtLeastND(inPlaneWavevector, ndimBatch+1)
	)
	bzAxes = normalizeBzAxes(bzAxes, rank)

	tw := basis.TransverseWavevectors(ipw, lattice, expansion)
	twGrid := UnflattenTransverseWavevectors(tw, expansion, bzAxes).ReplaceNaN(0)
	fluxGrid := UnflattenFlux(flux, expansion, bzAxes).ReplaceNaN(0)

	fluxFine := Upsample(fluxGrid, upsampleFactor, fluxGrid.Rank()-4)
	twFine := Upsample(twGrid, upsampleFactor, twGrid.Rank()-3)

	wlSq := utils.Squeeze(wl, bzAxes)
	polar, azimuthal := AnglesFromUnflattenedTransverseWavevectors(twFine, wlSq)

	var (
		fRank      = fluxFine.Rank()
		fKx, fKy   = fluxFine.Shape[fRank-4], fluxFine.Shape[fRank-3]
		nSrc       = fluxFine.Shape[fRank-1]
		nFine      = fKx * fKy
		batchShape = fluxFine.Shape[:fRank-4]
		nBatch     = utils.SizeOf(batchShape)
		norm       = float64(upsampleFactor * upsampleFactor)
	)
	R = utils.NewTensor(append(append([]int{}, batchShape...), nSrc))
	var (
		pShape = polar.Shape[:polar.Rank()-2]
		bIx    = utils.NewIndex(len(batchShape))
	)
	for b := 0; b < nBatch; b++ {
		// Angle batch axes may be singletons where flux is batched.
		var pb int
		for i, d := range pShape {
			idx := bIx[i]
			if idx >= d {
				idx = 0
			}
			pb = pb*d + idx
		}
		for f := 0; f < nFine; f++ {
			p := polar.Data[pb*nFine+f]
			if math.IsNaN(p) || !angleBoundsFn(p, azimuthal.Data[pb*nFine+f]) {
				continue
			}
			for pol := 0; pol < 2; pol++ {
				for src := 0; src < nSrc; src++ {
					R.Data[b*nSrc+src] += fluxFine.Data[((b*nFine+f)*2+pol)*nSrc+src] / norm
				}
			}
		}
		for i := len(bIx) - 1; i >= 0; i-- {
			bIx[i]++
			if bIx[i] < batchShape[i] {
				break
			}
			bIx[i] = 0
		}
	}
	return
}
