package basis

import (
	"fmt"
	"math"
	"sort"

	"github.com/notargets/gofmm/utils"
	"gonum.org/v1/gonum/mat"
)

// LatticeVectors holds the two primitive vectors of a periodic unit cell.
type LatticeVectors struct {
	U, V [2]float64
}

func NewLatticeVectors(u, v [2]float64) (l LatticeVectors) {
	if u[0]*v[1]-u[1]*v[0] == 0 {
		err := fmt.Errorf("primitive lattice vectors are collinear: u = %v, v = %v", u, v)
		panic(err)
	}
	return LatticeVectors{U: u, V: v}
}

// Reciprocal returns the dual vectors satisfying u.Ru = v.Rv = 1 and
// u.Rv = v.Ru = 0. The conventional 2*pi factor is applied where the
// reciprocal vectors are consumed, not here.
func (l LatticeVectors) Reciprocal() (r LatticeVectors) {
	var (
		M   = mat.NewDense(2, 2, []float64{l.U[0], l.U[1], l.V[0], l.V[1]})
		Inv = mat.NewDense(2, 2, nil)
	)
	if err := Inv.Inverse(M); err != nil {
		panic(fmt.Errorf("cannot invert lattice vectors: %v", err))
	}
	// Rows of M hold u and v, so the columns of the inverse are the duals.
	r.U = [2]float64{Inv.At(0, 0), Inv.At(1, 0)}
	r.V = [2]float64{Inv.At(0, 1), Inv.At(1, 1)}
	return
}

// Expansion is an ordered set of retained Fourier orders, each an (i, j)
// pair of integer coefficients on the reciprocal lattice vectors.
type Expansion struct {
	BasisCoefficients [][2]int
}

func (e Expansion) NumTerms() int { return len(e.BasisCoefficients) }

// NewCircularExpansion generates an expansion containing approximately
// approxNumTerms orders, retaining every order whose reciprocal-space
// magnitude does not exceed that of the approxNumTerms-th smallest. Ties
// are kept so the expansion preserves the symmetry of the lattice. Orders
// are sorted by magnitude, then by i, then by j, so the zeroth order is
// always first.
func NewCircularExpansion(lattice LatticeVectors, approxNumTerms int) (e Expansion) {
	if approxNumTerms < 1 {
		err := fmt.Errorf("approxNumTerms must be positive: %v", approxNumTerms)
		panic(err)
	}
	var (
		r = lattice.Reciprocal()
		// A square of candidate orders large enough to contain the disc.
		g = int(math.Ceil(math.Sqrt(float64(approxNumTerms)))) + 1
	)
	type order struct {
		i, j int
		mag  float64
	}
	var orders []order
	for i := -g; i <= g; i++ {
		for j := -g; j <= g; j++ {
			fi, fj := float64(i), float64(j)
			kx := fi*r.U[0] + fj*r.V[0]
			ky := fi*r.U[1] + fj*r.V[1]
			orders = append(orders, order{i, j, math.Hypot(kx, ky)})
		}
	}
	sort.Slice(orders, func(a, b int) bool {
		oa, ob := orders[a], orders[b]
		if oa.mag != ob.mag {
			return oa.mag < ob.mag
		}
		if oa.i != ob.i {
			return oa.i < ob.i
		}
		return oa.j < ob.j
	})
	if approxNumTerms > len(orders) {
		approxNumTerms = len(orders)
	}
	cutoff := orders[approxNumTerms-1].mag * (1 + 1e-9)
	for _, o := range orders {
		if o.mag > cutoff {
			break
		}
		e.BasisCoefficients = append(e.BasisCoefficients, [2]int{o.i, o.j})
	}
	return
}

// TransverseWavevectors computes the transverse wavevector of every order
// in the expansion, kt = k0 + 2*pi*(i*Ru + j*Rv). The in-plane wavevector
// has shape (..., 2); the result has shape (..., numTerms, 2).
func TransverseWavevectors(inPlaneWavevector utils.Tensor, lattice LatticeVectors, expansion Expansion) (kt utils.Tensor) {
	var (
		rank = inPlaneWavevector.Rank()
	)
	if rank < 1 || inPlaneWavevector.Shape[rank-1] != 2 {
		err := fmt.Errorf("in-plane wavevector must have trailing axis of length 2: shape = %v", inPlaneWavevector.Shape)
		panic(err)
	}
	var (
		r        = lattice.Reciprocal()
		numTerms = expansion.NumTerms()
		nBatch   = inPlaneWavevector.Size() / 2
		shape    = append(append([]int{}, inPlaneWavevector.Shape[:rank-1]...), numTerms, 2)
	)
	kt = utils.NewTensor(shape)
	for b := 0; b < nBatch; b++ {
		k0x := inPlaneWavevector.Data[2*b]
		k0y := inPlaneWavevector.Data[2*b+1]
		for k, c := range expansion.BasisCoefficients {
			fi, fj := float64(c[0]), float64(c[1])
			off := (b*numTerms + k) * 2
			kt.Data[off] = k0x + 2*math.Pi*(fi*r.U[0]+fj*r.V[0])
			kt.Data[off+1] = k0y + 2*math.Pi*(fi*r.U[1]+fj*r.V[1])
		}
	}
	return
}

// BrillouinZoneInPlaneWavevector returns a regular grid of in-plane
// wavevector offsets sampling the first Brillouin zone, with shape
// (nkx, nky, 2). Samples are at cell centers, so a 1x1 grid yields the
// zone center.
func BrillouinZoneInPlaneWavevector(nkx, nky int, lattice LatticeVectors) (k utils.Tensor) {
	if nkx < 1 || nky < 1 {
		err := fmt.Errorf("Brillouin grid shape must be positive: (%v, %v)", nkx, nky)
		panic(err)
	}
	var (
		r = lattice.Reciprocal()
	)
	k = utils.NewTensor([]int{nkx, nky, 2})
	for ix := 0; ix < nkx; ix++ {
		sx := (float64(ix)+0.5)/float64(nkx) - 0.5
		for iy := 0; iy < nky; iy++ {
			sy := (float64(iy)+0.5)/float64(nky) - 0.5
			off := (ix*nky + iy) * 2
			k.Data[off] = 2 * math.Pi * (sx*r.U[0] + sy*r.V[0])
			k.Data[off+1] = 2 * math.Pi * (sx*r.U[1] + sy*r.V[1])
		}
	}
	return
}

// PlaneWaveInPlaneWavevector returns the in-plane wavevector of a plane
// wave incident with the given polar and azimuthal angles.
func PlaneWaveInPlaneWavevector(wavelength, polarAngle, azimuthalAngle float64) (k [2]float64) {
	var (
		kt = 2 * math.Pi / wavelength * math.Sin(polarAngle)
	)
	k[0] = kt * math.Cos(azimuthalAngle)
	k[1] = kt * math.Sin(azimuthalAngle)
	return
}
