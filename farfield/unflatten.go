package farfield

import (
	"fmt"
	"math"

	"github.com/notargets/gofmm/basis"
	"github.com/notargets/gofmm/utils"
)

/*
Functions for unflattening results of Brillouin zone integration.

Solver outputs are indexed by (Brillouin zone sample, Fourier order)
pairs. Unflattening scatters those values onto a single dense grid
indexed by absolute reciprocal-space bin, so each bin corresponds to one
physical transverse wavevector. Bins with no corresponding (order,
sample) pair are filled with NaN - the Brillouin sampling covers only
the zeroth order's first Brillouin zone, so higher orders leave gaps.
*/

// normalizeBzAxes resolves the Brillouin grid axis pair to absolute,
// ascending positions, so the lower axis is always the kx axis.
func normalizeBzAxes(axes utils.Index, ndim int) (bz utils.Index) {
	if len(axes) != 2 {
		err := fmt.Errorf("exactly two Brillouin grid axes required: %v", axes)
		panic(err)
	}
	bz = utils.AbsoluteAxes(axes, ndim)
	if bz[0] > bz[1] {
		bz[0], bz[1] = bz[1], bz[0]
	}
	return
}

type scatterMap struct {
	RI, CI   utils.Index // destination bin per flat element, flat order (bzX, bzY, term)
	NKx, NKy int
}

// newScatterMap builds the flat-to-grid index mapping once per
// (expansion, Brillouin grid shape) pair; it is reused for every batch
// element.
func newScatterMap(expansion basis.Expansion, nBzX, nBzY int) (s scatterMap) {
	var (
		numTerms   = expansion.NumTerms()
		minI, maxI = 0, 0
		minJ, maxJ = 0, 0
	)
	if numTerms == 0 {
		return scatterMap{}
	}
	for k, c := range expansion.BasisCoefficients {
		if k == 0 || c[0] < minI {
			minI = c[0]
		}
		if k == 0 || c[0] > maxI {
			maxI = c[0]
		}
		if k == 0 || c[1] < minJ {
			minJ = c[1]
		}
		if k == 0 || c[1] > maxJ {
			maxJ = c[1]
		}
	}
	s.NKx = (maxI - minI + 1) * nBzX
	s.NKy = (maxJ - minJ + 1) * nBzY
	s.RI = utils.NewIndex(nBzX * nBzY * numTerms)
	s.CI = utils.NewIndex(nBzX * nBzY * numTerms)
	var ind int
	for bx := 0; bx < nBzX; bx++ {
		for by := 0; by < nBzY; by++ {
			for _, c := range expansion.BasisCoefficients {
				s.RI[ind] = c[0]*nBzX + bx - minI*nBzX
				s.CI[ind] = c[1]*nBzY + by - minJ*nBzY
				ind++
			}
		}
	}
	return
}

// Unflatten scatters a flat array with trailing axes
// (nBzX, nBzY, numTerms) onto the dense reciprocal-space grid, returning
// an array with trailing axes (nKx, nKy). Leading batch axes are
// preserved. Grid bins with no source element are NaN.
func Unflatten(flat utils.Tensor, expansion basis.Expansion) (R utils.Tensor) {
	var (
		rank = flat.Rank()
	)
	if rank < 3 {
		err := fmt.Errorf("flat array must have rank >= 3: shape = %v", flat.Shape)
		panic(err)
	}
	if flat.Shape[rank-1] != expansion.NumTerms() {
		err := fmt.Errorf("trailing axis must match expansion terms: shape = %v, numTerms = %v",
			flat.Shape, expansion.NumTerms())
		panic(err)
	}
	var (
		nBzX, nBzY = flat.Shape[rank-3], flat.Shape[rank-2]
		s          = newScatterMap(expansion, nBzX, nBzY)
		batchShape = flat.Shape[:rank-3]
		nBatch     = utils.SizeOf(batchShape)
		flatBlock  = nBzX * nBzY * expansion.NumTerms()
		gridBlock  = s.NKx * s.NKy
		shape      = append(append([]int{}, batchShape...), s.NKx, s.NKy)
	)
	R = utils.NewTensorFilled(shape, math.NaN())
	for b := 0; b < nBatch; b++ {
		src := flat.Data[b*flatBlock : (b+1)*flatBlock]
		dst := R.Data[b*gridBlock : (b+1)*gridBlock]
		for f, val := range src {
			dst[s.RI[f]*s.NKy+s.CI[f]] = val
		}
	}
	return
}

// UnflattenFlux unflattens a flux array with trailing axes
// (..., 2*numTerms, numSources), where the Brillouin grid axes are given
// by bzAxes. The 2*numTerms axis interleaves two polarizations,
// polarization-major; each polarization is unflattened independently.
// The result has shape (..., nKx, nKy, 2, numSources).
func UnflattenFlux(flux utils.Tensor, expansion basis.Expansion, bzAxes utils.Index) (R utils.Tensor) {
	var (
		rank = flux.Rank()
	)
	if rank < 4 {
		err := fmt.Errorf("flux must have rank >= 4: shape = %v", flux.Shape)
		panic(err)
	}
	if flux.Shape[rank-2] != 2*expansion.NumTerms() {
		err := fmt.Errorf("flux axis -2 must have length 2*numTerms: shape = %v, numTerms = %v",
			flux.Shape, expansion.NumTerms())
		panic(err)
	}
	bzAxes = normalizeBzAxes(bzAxes, rank)

	// Split the polarizations and treat them as a batch axis.
	splitShape := append(append([]int{}, flux.Shape[:rank-2]...), 2, -1, flux.Shape[rank-1])
	split := flux.Reshape(splitShape...)
	rank = split.Rank()

	// Move everything except the Brillouin grid pair and the order axis
	// to the front, preserving relative order.
	var batchAxes, rest utils.Index
	for i := 0; i < rank; i++ {
		if bzAxes.Contains(i) || i == rank-2 {
			rest = append(rest, i)
		} else {
			batchAxes = append(batchAxes, i)
		}
	}
	split = split.Transpose(append(batchAxes, rest...))

	grid := Unflatten(split, expansion)

	// Return polarization and sources to the trailing axes.
	gRank := grid.Rank()
	perm := utils.NewRange(0, gRank-5)
	perm = append(perm, gRank-2, gRank-1, gRank-4, gRank-3)
	R = grid.Transpose(perm)
	return
}

// UnflattenTransverseWavevectors unflattens a transverse wavevector array
// with trailing axes (..., numTerms, 2). The result has shape
// (..., nKx, nKy, 2), with the trailing axis holding (kx, ky).
func UnflattenTransverseWavevectors(tw utils.Tensor, expansion basis.Expansion, bzAxes utils.Index) (R utils.Tensor) {
	var (
		rank = tw.Rank()
	)
	if rank < 4 {
		err := fmt.Errorf("transverse wavevectors must have rank >= 4: shape = %v", tw.Shape)
		panic(err)
	}
	if tw.Shape[rank-2] != expansion.NumTerms() || tw.Shape[rank-1] != 2 {
		err := fmt.Errorf("transverse wavevectors must have trailing axes (numTerms, 2): shape = %v, numTerms = %v",
			tw.Shape, expansion.NumTerms())
		panic(err)
	}
	bzAxes = normalizeBzAxes(bzAxes, rank)

	var batchAxes, rest utils.Index
	for i := 0; i < rank; i++ {
		if bzAxes.Contains(i) || i == rank-2 {
			rest = append(rest, i)
		} else {
			batchAxes = append(batchAxes, i)
		}
	}
	t := tw.Transpose(append(batchAxes, rest...))

	grid := Unflatten(t, expansion)

	// The direction axis rides along as the innermost batch axis; move it
	// back behind the grid pair.
	gRank := grid.Rank()
	perm := utils.NewRange(0, gRank-4)
	perm = append(perm, gRank-2, gRank-1, gRank-3)
	R = grid.Transpose(perm)
	return
}
