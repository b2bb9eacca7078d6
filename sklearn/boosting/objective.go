package boosting

import (
	"math"

	"github.com/YuminosukeSato/readmit/core/parallel"
	perrors "github.com/YuminosukeSato/readmit/pkg/errors"
)

// minHessian keeps leaf weights finite when a probability saturates.
const minHessian = 1e-16

// softmaxObjective is the multi-class cross-entropy over raw margins.
// Margins, gradients and hessians are stored row-major as [row*nClasses + class].
type softmaxObjective struct {
	nClasses int
}

// gradients computes g = p - y and h = max(2p(1-p), 1e-16) for every row and class.
func (o softmaxObjective) gradients(margins []float64, labels []int, grad, hess []float64, workers int) {
	k := o.nClasses
	parallel.ParallelizeWorkers(len(labels), workers, func(start, end int) {
		p := make([]float64, k)
		for i := start; i < end; i++ {
			perrors.Softmax(p, margins[i*k:(i+1)*k])
			for c := 0; c < k; c++ {
				g := p[c]
				if c == labels[i] {
					g -= 1
				}
				grad[i*k+c] = g
				hess[i*k+c] = math.Max(2*p[c]*(1-p[c]), minHessian)
			}
		}
	})
}

// loss returns the mean negative log-likelihood (mlogloss).
func (o softmaxObjective) loss(margins []float64, labels []int) float64 {
	k := o.nClasses
	total := 0.0
	for i, l := range labels {
		row := margins[i*k : (i+1)*k]
		total += perrors.LogSumExp(row) - row[l]
	}
	return total / float64(len(labels))
}
