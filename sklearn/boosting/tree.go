package boosting

import (
	"github.com/YuminosukeSato/readmit/core/parallel"
)

// kRtEps is the smallest loss reduction accepted for a split.
const kRtEps = 1e-6

// regNode is one node of a regression tree. Leaves have feature == -1.
type regNode struct {
	feature   int
	bin       int     // rows with bin <= this go left during training
	threshold float64 // equivalent raw-value threshold used at prediction time
	left      int
	right     int
	value     float64 // leaf weight, already shrunk by the learning rate
	gain      float64
	cover     float64 // hessian sum
}

// regTree is a single boosted regression tree fitted to one class's gradients.
type regTree struct {
	nodes []regNode
}

func (t *regTree) predict(at func(j int) float64) float64 {
	nd := &t.nodes[0]
	for nd.feature >= 0 {
		if at(nd.feature) <= nd.threshold {
			nd = &t.nodes[nd.left]
		} else {
			nd = &t.nodes[nd.right]
		}
	}
	return nd.value
}

func (t *regTree) predictBinned(d *binnedData, i int) float64 {
	nd := &t.nodes[0]
	for nd.feature >= 0 {
		if int(d.bins[nd.feature][i]) <= nd.bin {
			nd = &t.nodes[nd.left]
		} else {
			nd = &t.nodes[nd.right]
		}
	}
	return nd.value
}

type growParams struct {
	maxDepth       int
	learningRate   float64
	lambda         float64
	gamma          float64
	minChildWeight float64
	workers        int
}

// candidate is the best split found on one feature.
type candidate struct {
	ok    bool
	bin   int
	gain  float64
	gLeft float64
	hLeft float64
}

// grower builds one depth-wise tree with histogram split search.
type grower struct {
	data  *binnedData
	grad  []float64
	hess  []float64
	p     growParams
	rows  []int
	tmp   []int
	nodes []regNode
}

func growTree(data *binnedData, rows []int, grad, hess []float64, p growParams) *regTree {
	g := &grower{
		data: data,
		grad: grad,
		hess: hess,
		p:    p,
		rows: rows,
		tmp:  make([]int, len(rows)),
	}
	hist := data.newHistogram()
	data.build(hist, rows, grad, hess, p.workers)
	var G, H float64
	for _, i := range rows {
		G += grad[i]
		H += hess[i]
	}
	g.grow(0, len(rows), 0, hist, G, H)
	return &regTree{nodes: g.nodes}
}

func (g *grower) weight(G, H float64) float64 {
	return -G / (H + g.p.lambda) * g.p.learningRate
}

func (g *grower) score(G, H float64) float64 {
	return G * G / (H + g.p.lambda)
}

func (g *grower) grow(start, end, depth int, hist histogram, G, H float64) int {
	id := len(g.nodes)
	g.nodes = append(g.nodes, regNode{feature: -1, value: g.weight(G, H), cover: H})

	if depth >= g.p.maxDepth || end-start < 2 {
		return id
	}

	feature, best := g.findSplit(hist, G, H)
	if feature < 0 || best.gain < kRtEps || best.gain <= g.p.gamma {
		return id
	}

	// threshold 以下（bin が小さい側）を左へ安定分割する
	col := g.data.bins[feature]
	l, r := start, 0
	for _, i := range g.rows[start:end] {
		if int(col[i]) <= best.bin {
			g.rows[l] = i
			l++
		} else {
			g.tmp[r] = i
			r++
		}
	}
	copy(g.rows[l:end], g.tmp[:r])
	mid := l

	// 小さい方の子だけヒストグラムを作り、もう一方は親から引き算する
	small := g.data.newHistogram()
	large := g.data.newHistogram()
	var leftHist, rightHist histogram
	if mid-start <= end-mid {
		g.data.build(small, g.rows[start:mid], g.grad, g.hess, g.p.workers)
		large.subtract(hist, small)
		leftHist, rightHist = small, large
	} else {
		g.data.build(small, g.rows[mid:end], g.grad, g.hess, g.p.workers)
		large.subtract(hist, small)
		leftHist, rightHist = large, small
	}

	left := g.grow(start, mid, depth+1, leftHist, best.gLeft, best.hLeft)
	right := g.grow(mid, end, depth+1, rightHist, G-best.gLeft, H-best.hLeft)

	nd := &g.nodes[id]
	nd.feature = feature
	nd.bin = best.bin
	nd.threshold = g.data.mappers[feature].bounds[best.bin]
	nd.left = left
	nd.right = right
	nd.gain = best.gain
	return id
}

// findSplit evaluates every feature in parallel and returns the best one.
// Ties go to the lower feature index, then the lower bin.
func (g *grower) findSplit(hist histogram, G, H float64) (int, candidate) {
	nf := len(g.data.bins)
	cands := make([]candidate, nf)
	parent := g.score(G, H)

	parallel.ParallelizeWorkers(nf, g.p.workers, func(start, end int) {
		for j := start; j < end; j++ {
			off := 2 * g.data.offsets[j]
			nb := len(g.data.mappers[j].bounds)
			var gl, hl float64
			best := candidate{}
			for b := 0; b < nb-1; b++ {
				gl += hist[off+2*b]
				hl += hist[off+2*b+1]
				gr, hr := G-gl, H-hl
				if hl < g.p.minChildWeight || hr < g.p.minChildWeight {
					continue
				}
				gain := g.score(gl, hl) + g.score(gr, hr) - parent
				if !best.ok || gain > best.gain {
					best = candidate{ok: true, bin: b, gain: gain, gLeft: gl, hLeft: hl}
				}
			}
			cands[j] = best
		}
	})

	feature := -1
	var best candidate
	for j, c := range cands {
		if c.ok && (feature < 0 || c.gain > best.gain) {
			feature, best = j, c
		}
	}
	return feature, best
}
