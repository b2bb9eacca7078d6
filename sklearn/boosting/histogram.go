package boosting

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/readmit/core/parallel"
)

// binMapper holds the sorted upper bounds of one feature's bins.
// A value v falls into the first bin whose bound is >= v; values above the
// last bound go to the last bin.
type binMapper struct {
	bounds []float64
}

func (m binMapper) bin(v float64) uint8 {
	b := sort.SearchFloat64s(m.bounds, v)
	if b >= len(m.bounds) {
		b = len(m.bounds) - 1
	}
	return uint8(b)
}

// newBinMapper finds bin boundaries for a feature.
// Up to maxBin distinct values each get their own bin, otherwise quantile cuts are used.
func newBinMapper(values []float64, maxBin int) binMapper {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)

	unique := sorted[:1]
	for _, v := range sorted[1:] {
		if v != unique[len(unique)-1] {
			unique = append(unique, v)
		}
	}
	if len(unique) <= maxBin {
		return binMapper{bounds: append([]float64(nil), unique...)}
	}

	bounds := make([]float64, 0, maxBin)
	n := len(sorted)
	for i := 1; i < maxBin; i++ {
		cut := sorted[(n-1)*i/maxBin]
		if len(bounds) == 0 || cut > bounds[len(bounds)-1] {
			bounds = append(bounds, cut)
		}
	}
	if last := sorted[n-1]; last > bounds[len(bounds)-1] {
		bounds = append(bounds, last)
	}
	return binMapper{bounds: bounds}
}

// binnedData is the column-major bin index matrix the trees are grown on.
type binnedData struct {
	mappers []binMapper
	bins    [][]uint8
	offsets []int // offset of each feature in a flattened histogram
	total   int   // total number of bins across features
	nRows   int
}

func newBinnedData(X mat.Matrix, maxBin, workers int) *binnedData {
	rows, cols := X.Dims()
	d := &binnedData{
		mappers: make([]binMapper, cols),
		bins:    make([][]uint8, cols),
		offsets: make([]int, cols),
		nRows:   rows,
	}
	parallel.ParallelizeWorkers(cols, workers, func(start, end int) {
		values := make([]float64, rows)
		for j := start; j < end; j++ {
			for i := 0; i < rows; i++ {
				values[i] = X.At(i, j)
			}
			m := newBinMapper(values, maxBin)
			col := make([]uint8, rows)
			for i, v := range values {
				col[i] = m.bin(v)
			}
			d.mappers[j] = m
			d.bins[j] = col
		}
	})
	for j, m := range d.mappers {
		d.offsets[j] = d.total
		d.total += len(m.bounds)
	}
	return d
}

// histogram stores per-bin gradient and hessian sums for every feature of a node.
// Entry 2*b is the gradient sum of flattened bin b and 2*b+1 its hessian sum.
type histogram []float64

func (d *binnedData) newHistogram() histogram {
	return make(histogram, 2*d.total)
}

// build accumulates the node rows into h, scanning features in parallel.
// Each feature is summed sequentially in row order so the result is deterministic.
func (d *binnedData) build(h histogram, rows []int, grad, hess []float64, workers int) {
	parallel.ParallelizeWorkers(len(d.bins), workers, func(start, end int) {
		for j := start; j < end; j++ {
			off := 2 * d.offsets[j]
			seg := h[off : off+2*len(d.mappers[j].bounds)]
			for k := range seg {
				seg[k] = 0
			}
			col := d.bins[j]
			for _, i := range rows {
				b := 2 * int(col[i])
				seg[b] += grad[i]
				seg[b+1] += hess[i]
			}
		}
	})
}

// subtract sets h = parent - sibling.
func (h histogram) subtract(parent, sibling histogram) {
	for k := range h {
		h[k] = parent[k] - sibling[k]
	}
}
