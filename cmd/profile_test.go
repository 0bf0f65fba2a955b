package cmd

import (
	"testing"

	"github.com/magiconair/properties/assert"
	"github.com/notargets/gofmm/InputParameters"
)

func TestParseParameters(t *testing.T) {
	var (
		err error
	)
	fileInput := []byte(`
Title: Test Case
Wavelength: 0.55
LatticeU: [1., 0.]
LatticeV: [0.5, 0.866]
ApproxNumTerms: 37
BrillouinGrid: [3, 3]
PolarAngleDeg: 10.
AzimuthalAngleDeg: 45.
UpsampleFactor: 8
ConeAngleDeg: 30.
FluxFile: flux.txt
`)
	var input InputParameters.FarfieldParameters
	if err = input.Parse(fileInput); err != nil {
		panic(err)
	}
	assert.Equal(t, input.Wavelength, 0.55)
	assert.Equal(t, input.LatticeV, [2]float64{0.5, 0.866})
	assert.Equal(t, input.BrillouinGrid, [2]int{3, 3})
	input.Print()
	assert.Equal(t, input.ConeAngleDeg, 30.)
}

func TestParseParametersValidation(t *testing.T) {
	var input InputParameters.FarfieldParameters
	err := input.Parse([]byte(`
Wavelength: -1.
ApproxNumTerms: 10
BrillouinGrid: [1, 1]
`))
	if err == nil {
		t.Errorf("expected validation error for negative wavelength")
	}
	// A missing upsample factor defaults to 1.
	err = input.Parse([]byte(`
Wavelength: 0.55
ApproxNumTerms: 10
BrillouinGrid: [1, 1]
`))
	if err != nil {
		panic(err)
	}
	assert.Equal(t, input.UpsampleFactor, 1)
}
