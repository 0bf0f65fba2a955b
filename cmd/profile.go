/*
Copyright © 2020 NAME HERE <EMAIL ADDRESS>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"
	"io"
	"io/ioutil"
	"math"
	"os"
	"sort"
	"time"

	"github.com/notargets/gofmm/InputParameters"
	"github.com/notargets/gofmm/basis"
	"github.com/notargets/gofmm/farfield"
	"github.com/notargets/gofmm/readfiles"
	"github.com/notargets/gofmm/utils"
	"github.com/spf13/cobra"
	"gonum.org/v1/gonum/floats"
)

type FarfieldModel struct {
	ParamFile string
	Graph     bool
	Delay     time.Duration
	Verbose   bool
}

// profileCmd represents the profile command
var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Farfield radiation pattern from flat per-order flux values",
	Long: `
Unflattens solver flux onto the dense reciprocal space grid and converts
it to power per unit solid angle with propagation angles per grid bin,

gofmm profile `,
	Run: func(cmd *cobra.Command, args []string) {
		var (
			err error
		)
		fmt.Println("profile called")
		fm := &FarfieldModel{}
		if fm.ParamFile, err = cmd.Flags().GetString("inputConditionsFile"); err != nil {
			panic(err)
		}
		fm.Graph, _ = cmd.Flags().GetBool("graph")
		fm.Verbose, _ = cmd.Flags().GetBool("verbose")
		dr, _ := cmd.Flags().GetInt("delay")
		fm.Delay = time.Duration(dr) * time.Millisecond
		fp := processInput(fm)
		RunProfile(fm, fp)
	},
}

func processInput(fm *FarfieldModel) (fp *InputParameters.FarfieldParameters) {
	var (
		err error
	)
	if len(fm.ParamFile) == 0 {
		err := fmt.Errorf("must supply an input parameters file (-I, --inputConditionsFile) in YAML format")
		fmt.Printf("error: %s\n", err.Error())
		exampleFile := `
########################################
Title: "Test Case"
Wavelength: 0.55
LatticeU: [1., 0.]
LatticeV: [0., 1.]
ApproxNumTerms: 100
BrillouinGrid: [1, 1]
PolarAngleDeg: 0.
AzimuthalAngleDeg: 0.
UpsampleFactor: 10
ConeAngleDeg: 30.
FluxFile: flux.txt
########################################
`
		fmt.Printf("Example File:%s\n", exampleFile)
		os.Exit(1)
	}
	var data []byte
	if data, err = ioutil.ReadFile(fm.ParamFile); err != nil {
		panic(err)
	}
	fp = &InputParameters.FarfieldParameters{}
	if err = fp.Parse(data); err != nil {
		panic(err)
	}
	if fm.Verbose {
		fp.Print()
	}
	return
}

// loadProblem assembles the lattice, expansion, incident wavevector and
// flux shared by the profile and integrate commands. The flux table's
// term count must match the expansion exactly.
func loadProblem(fm *FarfieldModel, fp *InputParameters.FarfieldParameters) (flux, wl, ipw utils.Tensor,
	lattice basis.LatticeVectors, expansion basis.Expansion) {
	lattice = basis.NewLatticeVectors(fp.LatticeU, fp.LatticeV)
	expansion = basis.NewCircularExpansion(lattice, fp.ApproxNumTerms)
	var (
		nBzX, nBzY = fp.BrillouinGrid[0], fp.BrillouinGrid[1]
	)
	if len(fp.FluxFile) == 0 {
		// No flux table: a uniform unit flux, useful for checking the
		// angular layout of a new configuration.
		flux = utils.NewTensorFilled([]int{nBzX, nBzY, 2 * expansion.NumTerms(), 1}, 1.0)
	} else {
		var numTerms int
		flux, numTerms = readfiles.ReadFluxTable(fp.FluxFile, fm.Verbose)
		if numTerms != expansion.NumTerms() {
			panic(fmt.Errorf("flux table has %d terms, expansion from ApproxNumTerms=%d has %d; "+
				"set ApproxNumTerms to the solver's value", numTerms, fp.ApproxNumTerms, expansion.NumTerms()))
		}
	}
	if flux.Shape[0] != nBzX || flux.Shape[1] != nBzY {
		panic(fmt.Errorf("flux table Brillouin grid %v does not match BrillouinGrid %v",
			flux.Shape[:2], fp.BrillouinGrid))
	}
	if nBzX > 1 || nBzY > 1 {
		ipw = basis.BrillouinZoneInPlaneWavevector(nBzX, nBzY, lattice)
	} else {
		kt := basis.PlaneWaveInPlaneWavevector(fp.Wavelength,
			fp.PolarAngleDeg*math.Pi/180, fp.AzimuthalAngleDeg*math.Pi/180)
		ipw = utils.NewTensor([]int{1, 1, 2}, []float64{kt[0], kt[1]})
	}
	wl = utils.NewTensor([]int{}, []float64{fp.Wavelength})
	return
}

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.Flags().StringP("inputConditionsFile", "I", "", "YAML file for input parameters like:\n\t- Wavelength\n\t- FluxFile")
	profileCmd.Flags().BoolP("graph", "g", false, "display a graph of power vs polar angle")
	profileCmd.Flags().BoolP("verbose", "v", false, "print input parameters and file stats")
	profileCmd.Flags().IntP("delay", "d", 0, "milliseconds of delay for plotting")
}

func RunProfile(fm *FarfieldModel, fp *InputParameters.FarfieldParameters) {
	flux, wl, ipw, lattice, expansion := loadProblem(fm, fp)
	polar, azimuthal, solidAngle, power := farfield.FarfieldProfile(
		flux, wl, ipw, lattice, expansion, utils.Index{0, 1})

	out := os.Stdout
	if len(fp.OutputFile) != 0 {
		f, err := os.Create(fp.OutputFile)
		if err != nil {
			panic(err)
		}
		defer f.Close()
		out = f
	}
	writeProfile(out, polar, azimuthal, solidAngle, power)

	if fm.Graph {
		plotProfile(fm, polar, power)
		// Hold the chart window open
		time.Sleep(time.Hour)
	}
}

// writeProfile emits one CSV row per grid bin: angles, solid angle, then
// the per polarization, per source power columns.
func writeProfile(w io.Writer, polar, azimuthal, solidAngle, power utils.Tensor) {
	var (
		nKx, nKy = polar.Shape[0], polar.Shape[1]
		nSrc     = power.Shape[power.Rank()-1]
	)
	fmt.Fprintf(w, "kxBin,kyBin,polar,azimuthal,solidAngle")
	for pol := 0; pol < 2; pol++ {
		for src := 0; src < nSrc; src++ {
			fmt.Fprintf(w, ",power_p%d_s%d", pol, src)
		}
	}
	fmt.Fprintf(w, "\n")
	for i := 0; i < nKx; i++ {
		for j := 0; j < nKy; j++ {
			fmt.Fprintf(w, "%d,%d,%g,%g,%g", i, j,
				polar.At(i, j), azimuthal.At(i, j), solidAngle.At(i, j))
			for pol := 0; pol < 2; pol++ {
				for src := 0; src < nSrc; src++ {
					fmt.Fprintf(w, ",%g", power.At(i, j, pol, src))
				}
			}
			fmt.Fprintf(w, "\n")
		}
	}
}

// plotProfile draws polarization-summed power of the first source
// against polar angle in degrees.
func plotProfile(fm *FarfieldModel, polar, power utils.Tensor) {
	var (
		nKx, nKy = polar.Shape[0], polar.Shape[1]
		x, f     []float64
	)
	for i := 0; i < nKx; i++ {
		for j := 0; j < nKy; j++ {
			var (
				p = polar.At(i, j)
				v = power.At(i, j, 0, 0) + power.At(i, j, 1, 0)
			)
			// Evanescent bins clamp polar to pi/2 but have no solid angle.
			if math.IsNaN(p) || math.IsNaN(v) {
				continue
			}
			x = append(x, p*180/math.Pi)
			f = append(f, v)
		}
	}
	if len(x) == 0 {
		fmt.Println("no propagating bins to plot")
		return
	}
	sort.Sort(byAngle{x, f})
	lc := utils.NewLineChart(1920, 1080, 0, 90, 0, floats.Max(f)*1.1)
	lc.Plot(fm.Delay, x, f, -0.7, "power")
}

type byAngle struct {
	x, f []float64
}

func (s byAngle) Len() int      { return len(s.x) }
func (s byAngle) Swap(i, j int) { s.x[i], s.x[j] = s.x[j], s.x[i]; s.f[i], s.f[j] = s.f[j], s.f[i] }
func (s byAngle) Less(i, j int) bool {
	return s.x[i] < s.x[j]
}
