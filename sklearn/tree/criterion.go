package tree

import (
	"math"

	perrors "github.com/YuminosukeSato/readmit/pkg/errors"
)

// Criterion is the split-quality rule of a classification tree.
type Criterion string

const (
	// Gini impurity: 1 - Σ p_k²
	Gini Criterion = "gini"
	// Entropy (information gain): -Σ p_k log2 p_k
	Entropy Criterion = "entropy"
)

// ParseCriterion validates a criterion name.
func ParseCriterion(name string) (Criterion, error) {
	switch Criterion(name) {
	case Gini, Entropy:
		return Criterion(name), nil
	default:
		return "", perrors.NewValidationError("criterion", "must be 'gini' or 'entropy'", name)
	}
}

// impurity computes the node impurity from class counts whose sum is n.
func (c Criterion) impurity(counts []int, n int) float64 {
	if n == 0 {
		return 0
	}
	total := float64(n)
	switch c {
	case Entropy:
		h := 0.0
		for _, k := range counts {
			if k > 0 {
				p := float64(k) / total
				h -= p * math.Log2(p)
			}
		}
		return h
	default:
		sq := 0.0
		for _, k := range counts {
			p := float64(k) / total
			sq += p * p
		}
		return 1 - sq
	}
}
