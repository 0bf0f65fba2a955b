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
	"math"
	"time"

	"github.com/notargets/gofmm/InputParameters"
	"github.com/notargets/gofmm/farfield"
	"github.com/notargets/gofmm/utils"
	"github.com/spf13/cobra"
)

// integrateCmd represents the integrate command
var integrateCmd = &cobra.Command{
	Use:   "integrate",
	Short: "Total flux radiated into a polar cone",
	Long: `
Integrates flux over the farfield directions inside the cone given by
ConeAngleDeg, using upsampled angular quadrature,

gofmm integrate `,
	Run: func(cmd *cobra.Command, args []string) {
		var (
			err error
		)
		fmt.Println("integrate called")
		fm := &FarfieldModel{}
		if fm.ParamFile, err = cmd.Flags().GetString("inputConditionsFile"); err != nil {
			panic(err)
		}
		fm.Verbose, _ = cmd.Flags().GetBool("verbose")
		dr, _ := cmd.Flags().GetInt("delay")
		fm.Delay = time.Duration(dr) * time.Millisecond
		fp := processInput(fm)
		RunIntegrate(fm, fp)
	},
}

func init() {
	rootCmd.AddCommand(integrateCmd)
	integrateCmd.Flags().StringP("inputConditionsFile", "I", "", "YAML file for input parameters like:\n\t- ConeAngleDeg\n\t- UpsampleFactor")
	integrateCmd.Flags().BoolP("verbose", "v", false, "print input parameters and file stats")
	integrateCmd.Flags().IntP("delay", "d", 0, "milliseconds of delay for plotting")
}

func RunIntegrate(fm *FarfieldModel, fp *InputParameters.FarfieldParameters) {
	flux, wl, ipw, lattice, expansion := loadProblem(fm, fp)
	var (
		coneAngle = fp.ConeAngleDeg * math.Pi / 180
		inCone    = func(polar, azimuthal float64) bool { return polar < coneAngle }
	)
	total := farfield.IntegratedFlux(flux, wl, ipw, lattice, expansion,
		utils.Index{0, 1}, inCone, fp.UpsampleFactor)
	for src := 0; src < total.Size(); src++ {
		fmt.Printf("source %d: flux within %5.2f deg = %g\n",
			src, fp.ConeAngleDeg, total.Data[src])
	}
}
