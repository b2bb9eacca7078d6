// Package inspection ranks the input features of a fitted model.
package inspection

import (
	"sort"

	"github.com/YuminosukeSato/readmit/core/model"
	perrors "github.com/YuminosukeSato/readmit/pkg/errors"
)

// FeatureScore pairs a feature name with its importance.
type FeatureScore struct {
	Name  string  `json:"name"`
	Score float64 `json:"score"`
}

// TopImportances returns the k features with the largest importance, in
// ascending order of score. Among equal scores the earlier feature is
// selected first and ends up closer to the end of the result.
//
// m must implement model.FeatureImporter, otherwise ErrImportanceUnavailable
// is returned. A length mismatch between the importances and featureNames
// returns ErrSchemaMismatch.
func TopImportances(m any, featureNames []string, k int) ([]FeatureScore, error) {
	fi, ok := m.(model.FeatureImporter)
	if !ok {
		return nil, perrors.Wrapf(perrors.ErrImportanceUnavailable, "TopImportances: %T", m)
	}
	if k < 0 {
		return nil, perrors.NewValidationError("k", "must be non-negative", k)
	}
	scores, err := fi.FeatureImportances()
	if err != nil {
		return nil, err
	}
	if len(scores) != len(featureNames) {
		return nil, perrors.NewDimensionError("TopImportances", len(featureNames), len(scores), 1)
	}

	order := make([]int, len(scores))
	for i := range order {
		order[i] = i
	}
	// 降順に選び、同点は前の特徴量を優先
	sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] > scores[order[b]] })
	if k > len(order) {
		k = len(order)
	}

	out := make([]FeatureScore, k)
	for i := 0; i < k; i++ {
		j := order[k-1-i]
		out[i] = FeatureScore{Name: featureNames[j], Score: scores[j]}
	}
	return out, nil
}
