package InputParameters

import (
	"fmt"

	"github.com/ghodss/yaml"
)

// Parameters obtained from the YAML input file
type FarfieldParameters struct {
	Title             string     `yaml:"Title"`
	Wavelength        float64    `yaml:"Wavelength"`
	LatticeU          [2]float64 `yaml:"LatticeU"`
	LatticeV          [2]float64 `yaml:"LatticeV"`
	ApproxNumTerms    int        `yaml:"ApproxNumTerms"`
	BrillouinGrid     [2]int     `yaml:"BrillouinGrid"` // Brillouin zone sampling (nkx, nky); (1, 1) for a single incident wave
	PolarAngleDeg     float64    `yaml:"PolarAngleDeg"`
	AzimuthalAngleDeg float64    `yaml:"AzimuthalAngleDeg"`
	UpsampleFactor    int        `yaml:"UpsampleFactor"`
	ConeAngleDeg      float64    `yaml:"ConeAngleDeg"`
	FluxFile          string     `yaml:"FluxFile"`
	OutputFile        string     `yaml:"OutputFile"`
}

func (fp *FarfieldParameters) Parse(data []byte) error {
	if err := yaml.Unmarshal(data, fp); err != nil {
		return err
	}
	return fp.Validate()
}

func (fp *FarfieldParameters) Validate() error {
	if fp.Wavelength <= 0 {
		return fmt.Errorf("Wavelength must be positive: %v", fp.Wavelength)
	}
	if fp.ApproxNumTerms < 1 {
		return fmt.Errorf("ApproxNumTerms must be at least 1: %v", fp.ApproxNumTerms)
	}
	if fp.BrillouinGrid[0] < 1 || fp.BrillouinGrid[1] < 1 {
		return fmt.Errorf("BrillouinGrid extents must be at least 1: %v", fp.BrillouinGrid)
	}
	if fp.UpsampleFactor < 1 {
		fp.UpsampleFactor = 1
	}
	return nil
}

func (fp *FarfieldParameters) Print() {
	fmt.Printf("\"%s\"\t\t= Title\n", fp.Title)
	fmt.Printf("%8.5f\t\t= Wavelength\n", fp.Wavelength)
	fmt.Printf("%v, %v\t= Lattice Vectors\n", fp.LatticeU, fp.LatticeV)
	fmt.Printf("[%d]\t\t\t\t= Approx Number of Terms\n", fp.ApproxNumTerms)
	fmt.Printf("[%dx%d]\t\t\t= Brillouin Zone Grid\n", fp.BrillouinGrid[0], fp.BrillouinGrid[1])
	fmt.Printf("%8.5f\t\t= Polar Angle (deg)\n", fp.PolarAngleDeg)
	fmt.Printf("%8.5f\t\t= Azimuthal Angle (deg)\n", fp.AzimuthalAngleDeg)
	fmt.Printf("[%d]\t\t\t\t= Upsample Factor\n", fp.UpsampleFactor)
}
