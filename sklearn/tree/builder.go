package tree

import (
	"cmp"
	"math/rand/v2"
	"slices"

	"gonum.org/v1/gonum/mat"
)

// featureThreshold is the minimum gap between two sorted values for a split
// to be placed between them.
const featureThreshold = 1e-7

// Columns is a column-major copy of a training matrix. A forest builds it once
// and shares it read-only between all of its trees.
type Columns struct {
	cols  [][]float64
	nRows int
}

// NewColumns copies X into column-major storage.
func NewColumns(X mat.Matrix) *Columns {
	r, c := X.Dims()
	cols := make([][]float64, c)
	for j := range cols {
		cols[j] = make([]float64, r)
	}
	if d, ok := X.(*mat.Dense); ok {
		raw := d.RawMatrix()
		for i := 0; i < r; i++ {
			row := raw.Data[i*raw.Stride : i*raw.Stride+c]
			for j, v := range row {
				cols[j][i] = v
			}
		}
	} else {
		for i := 0; i < r; i++ {
			for j := 0; j < c; j++ {
				cols[j][i] = X.At(i, j)
			}
		}
	}
	return &Columns{cols: cols, nRows: r}
}

// Rows returns the number of rows.
func (c *Columns) Rows() int { return c.nRows }

// Cols returns the number of features.
func (c *Columns) Cols() int { return len(c.cols) }

// node is one entry of the flat node array. Leaves have feature == -1.
type node struct {
	feature   int
	threshold float64
	left      int
	right     int
	counts    []int
	nSamples  int
	impurity  float64
	depth     int
}

type sortedSample struct {
	v     float64
	label int
}

// builder grows one tree depth first over a shared sample index array.
type builder struct {
	cols        *Columns
	y           []int
	nClasses    int
	criterion   Criterion
	maxDepth    int
	minSplit    int
	minLeaf     int
	maxFeatures int
	rng         *rand.Rand

	samples  []int
	features []int
	buf      []sortedSample
	tmp      []int

	nodes       []node
	importances []float64
}

type split struct {
	feature   int
	threshold float64
	pos       int
	proxy     float64
}

func (b *builder) build(samples []int) {
	b.samples = samples
	b.features = make([]int, b.cols.Cols())
	for j := range b.features {
		b.features[j] = j
	}
	b.buf = make([]sortedSample, len(samples))
	b.tmp = make([]int, len(samples))
	b.importances = make([]float64, b.cols.Cols())
	b.grow(0, len(samples), 0)
}

// grow adds the node for samples[start:end] and returns its index.
func (b *builder) grow(start, end, depth int) int {
	n := end - start
	counts := make([]int, b.nClasses)
	for _, i := range b.samples[start:end] {
		counts[b.y[i]]++
	}
	imp := b.criterion.impurity(counts, n)

	id := len(b.nodes)
	b.nodes = append(b.nodes, node{
		feature:  -1,
		counts:   counts,
		nSamples: n,
		impurity: imp,
		depth:    depth,
	})

	isLeaf := (b.maxDepth > 0 && depth >= b.maxDepth) ||
		n < b.minSplit ||
		n < 2*b.minLeaf ||
		imp <= featureThreshold
	if isLeaf {
		return id
	}

	best, ok := b.bestSplit(start, end, counts)
	if !ok {
		return id
	}

	// 安定分割: threshold 以下を左へ
	col := b.cols.cols[best.feature]
	l, r := start, 0
	for _, i := range b.samples[start:end] {
		if col[i] <= best.threshold {
			b.samples[l] = i
			l++
		} else {
			b.tmp[r] = i
			r++
		}
	}
	copy(b.samples[l:end], b.tmp[:r])
	mid := l

	left := b.grow(start, mid, depth+1)
	right := b.grow(mid, end, depth+1)

	nd := &b.nodes[id]
	nd.feature = best.feature
	nd.threshold = best.threshold
	nd.left = left
	nd.right = right

	ln, rn := &b.nodes[left], &b.nodes[right]
	b.importances[best.feature] += float64(n)*imp -
		float64(ln.nSamples)*ln.impurity -
		float64(rn.nSamples)*rn.impurity
	return id
}

// bestSplit visits features in random order until maxFeatures non-constant
// features have been evaluated, and keeps going past that if none of them
// yielded a valid split.
func (b *builder) bestSplit(start, end int, parent []int) (split, bool) {
	n := end - start
	best := split{proxy: -1}
	found := false

	nf := len(b.features)
	visited := 0
	leftCounts := make([]int, b.nClasses)
	rightCounts := make([]int, b.nClasses)

	for f := 0; f < nf; f++ {
		if visited >= b.maxFeatures && found {
			break
		}
		// Fisher-Yates の部分シャッフルで次の特徴量を選ぶ
		if b.maxFeatures < nf {
			j := f + b.rng.IntN(nf-f)
			b.features[f], b.features[j] = b.features[j], b.features[f]
		}
		feature := b.features[f]
		col := b.cols.cols[feature]

		buf := b.buf[:n]
		for k, i := range b.samples[start:end] {
			buf[k] = sortedSample{v: col[i], label: b.y[i]}
		}
		slices.SortStableFunc(buf, func(a, c sortedSample) int { return cmp.Compare(a.v, c.v) })
		if buf[n-1].v <= buf[0].v+featureThreshold {
			continue // 定数特徴量は数えない
		}
		visited++

		for k := range leftCounts {
			leftCounts[k] = 0
		}
		copy(rightCounts, parent)

		for p := 0; p < n-1; p++ {
			leftCounts[buf[p].label]++
			rightCounts[buf[p].label]--
			if buf[p+1].v <= buf[p].v+featureThreshold {
				continue
			}
			nl := p + 1
			nr := n - nl
			if nl < b.minLeaf || nr < b.minLeaf {
				continue
			}
			proxy := float64(nl)*b.criterion.impurity(leftCounts, nl) +
				float64(nr)*b.criterion.impurity(rightCounts, nr)
			if !found || proxy < best.proxy {
				threshold := (buf[p].v + buf[p+1].v) / 2
				if threshold == buf[p+1].v {
					threshold = buf[p].v
				}
				best = split{feature: feature, threshold: threshold, pos: nl, proxy: proxy}
				found = true
			}
		}
	}
	return best, found
}
