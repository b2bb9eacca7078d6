// Package report renders a pipeline run: a text summary, PNG figures and a
// Prometheus textfile for node_exporter style collection.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/YuminosukeSato/readmit/pipeline"
)

// Title returns the display name of a model kind.
func Title(kind pipeline.ModelKind) string {
	switch kind {
	case pipeline.BoostedTrees:
		return "Boosted Trees"
	case pipeline.RandomForest:
		return "Random Forest"
	default:
		return string(kind)
	}
}

// WriteText writes the human readable summary of run to w.
func WriteText(w io.Writer, run *pipeline.RunReport) error {
	var b strings.Builder
	fmt.Fprintf(&b, "nums of train/test set: %d %d (balanced train: %d)\n",
		run.TrainRows, run.TestRows, run.ResampledRows)

	for _, mr := range run.Models {
		fmt.Fprintf(&b, "\n--- %s model ---\n", Title(mr.Kind))
		b.WriteString(mr.Report.String())
		fmt.Fprintf(&b, "\ntop %d features:\n", len(mr.Importances))
		width := 0
		for _, fs := range mr.Importances {
			width = max(width, len(fs.Name))
		}
		// 重要度の高い順に表示
		for i := len(mr.Importances) - 1; i >= 0; i-- {
			fs := mr.Importances[i]
			fmt.Fprintf(&b, "  %-*s  %.4f\n", width, fs.Name, fs.Score)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}
