package report

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	perrors "github.com/YuminosukeSato/readmit/pkg/errors"
	"github.com/YuminosukeSato/readmit/pipeline"
)

// Metrics holds the gauges describing one run.
type Metrics struct {
	Accuracy          *prometheus.GaugeVec // test accuracy per model
	WeightedF1        *prometheus.GaugeVec // support-weighted F1 per model
	ConfusionMatrix   *prometheus.GaugeVec // cell counts per model, true and predicted label
	FeatureImportance *prometheus.GaugeVec // top-k importances per model and feature
	Rows              *prometheus.GaugeVec // train, test and balanced train row counts
	TrainSeconds      *prometheus.GaugeVec // fit wall time per model
}

// NewWithRegistry creates the run gauges on registerer.
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		Accuracy: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "readmit_accuracy",
			Help: "Accuracy on the held-out test split",
		}, []string{"model"}),
		WeightedF1: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "readmit_weighted_f1",
			Help: "Support-weighted F1 score on the held-out test split",
		}, []string{"model"}),
		ConfusionMatrix: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "readmit_confusion_matrix",
			Help: "Test samples per true and predicted class",
		}, []string{"model", "true", "predicted"}),
		FeatureImportance: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "readmit_feature_importance",
			Help: "Normalized importance of the top ranked features",
		}, []string{"model", "feature"}),
		Rows: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "readmit_rows",
			Help: "Row counts of the split and balanced training set",
		}, []string{"set"}),
		TrainSeconds: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "readmit_train_seconds",
			Help: "Wall time spent fitting the model",
		}, []string{"model"}),
	}
}

// Observe records run into the gauges.
func (m *Metrics) Observe(run *pipeline.RunReport) {
	m.Rows.WithLabelValues("train").Set(float64(run.TrainRows))
	m.Rows.WithLabelValues("test").Set(float64(run.TestRows))
	m.Rows.WithLabelValues("balanced").Set(float64(run.ResampledRows))

	for _, mr := range run.Models {
		kind := string(mr.Kind)
		m.Accuracy.WithLabelValues(kind).Set(mr.Report.Accuracy)
		m.WeightedF1.WithLabelValues(kind).Set(mr.Report.WeightedF1)
		m.TrainSeconds.WithLabelValues(kind).Set(mr.Duration.Seconds())
		for i, row := range mr.Report.ConfusionMatrix {
			t := strconv.Itoa(mr.Report.Labels[i])
			for j, v := range row {
				m.ConfusionMatrix.WithLabelValues(kind, t, strconv.Itoa(mr.Report.Labels[j])).Set(float64(v))
			}
		}
		for _, fs := range mr.Importances {
			m.FeatureImportance.WithLabelValues(kind, fs.Name).Set(fs.Score)
		}
	}
}

// WriteMetricsTextfile writes the gauges of run to path in the Prometheus
// text exposition format. A private registry keeps process metrics out.
func WriteMetricsTextfile(path string, run *pipeline.RunReport) error {
	reg := prometheus.NewRegistry()
	NewWithRegistry(reg).Observe(run)
	if err := prometheus.WriteToTextfile(path, reg); err != nil {
		return perrors.Wrapf(err, "write metrics textfile %s", path)
	}
	return nil
}
