package readfiles

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/notargets/gofmm/utils"
)

/*
Flux table file format, whitespace separated, # comments ignored:

	nBzX nBzY numTerms numSources
	v v v v ...

The values fill an array of shape (nBzX, nBzY, 2*numTerms, numSources)
in row major order. The order axis is polarization major: the first
numTerms entries are the first polarization, the rest the second.
*/

// ReadFluxTable reads a flat flux table produced by an upstream modal
// solver.
func ReadFluxTable(filename string, verbose bool) (flux utils.Tensor, numTerms int) {
	var (
		file *os.File
		err  error
	)
	if verbose {
		fmt.Printf("Reading flux table file named: %s\n", filename)
	}
	if file, err = os.Open(filename); err != nil {
		panic(fmt.Errorf("unable to open file %s\n %s", filename, err))
	}
	defer file.Close()

	var fields []string
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		fields = append(fields, strings.Fields(line)...)
	}
	if err = scanner.Err(); err != nil {
		panic(fmt.Errorf("error reading file %s\n %s", filename, err))
	}
	if len(fields) < 4 {
		panic(fmt.Errorf("flux table %s missing header (nBzX nBzY numTerms numSources)", filename))
	}

	dims := make([]int, 4)
	for i := range dims {
		if dims[i], err = strconv.Atoi(fields[i]); err != nil || dims[i] < 0 {
			panic(fmt.Errorf("bad flux table dimension %q in %s", fields[i], filename))
		}
	}
	var (
		nBzX, nBzY = dims[0], dims[1]
		nSources   = dims[3]
		shape      = []int{nBzX, nBzY, 2 * dims[2], nSources}
		need       = utils.SizeOf(shape)
		values     = fields[4:]
	)
	numTerms = dims[2]
	if len(values) != need {
		panic(fmt.Errorf("flux table %s has %d values, need %d for shape %v",
			filename, len(values), need, shape))
	}
	flux = utils.NewTensor(shape)
	for i, s := range values {
		if flux.Data[i], err = strconv.ParseFloat(s, 64); err != nil {
			panic(fmt.Errorf("bad flux value %q in %s", s, filename))
		}
	}
	if verbose {
		fmt.Printf("nBzX = %d, nBzY = %d\nnumTerms = %d, numSources = %d\n",
			nBzX, nBzY, numTerms, nSources)
	}
	return
}
