// Package pipeline wires the readmission workflow together:
// split → oversample the training part → fit each model variant →
// evaluate on the untouched test part → rank feature importances.
//
// The stages run sequentially and any error aborts the run without a partial
// report. Parallelism only happens inside a stage and never changes results.
package pipeline

import (
	"time"

	"github.com/YuminosukeSato/readmit/core/model"
	"github.com/YuminosukeSato/readmit/dataset"
	"github.com/YuminosukeSato/readmit/inspection"
	"github.com/YuminosukeSato/readmit/metrics"
	perrors "github.com/YuminosukeSato/readmit/pkg/errors"
	"github.com/YuminosukeSato/readmit/pkg/log"
	"github.com/YuminosukeSato/readmit/sklearn/imbalance"
	"github.com/YuminosukeSato/readmit/sklearn/model_selection"
)

// ModelReport is the outcome of one model variant.
type ModelReport struct {
	Kind        ModelKind
	Report      *metrics.Report
	Importances []inspection.FeatureScore
	Model       model.Classifier
	Duration    time.Duration
}

// RunReport is the outcome of a full run.
type RunReport struct {
	TrainRows            int
	TestRows             int
	ResampledRows        int
	TrainClassCounts     map[int]int
	ResampledClassCounts map[int]int
	Models               []ModelReport
}

// Pipeline executes runs for one configuration.
type Pipeline struct {
	cfg    Config
	logger log.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger replaces the pipeline logger.
func WithLogger(l log.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// New validates cfg and returns a Pipeline.
func New(cfg Config, opts ...Option) (*Pipeline, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := &Pipeline{
		cfg:    cfg,
		logger: log.GetLoggerWithName("pipeline"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Config returns the configuration of the pipeline.
func (p *Pipeline) Config() Config { return p.cfg }

// Run executes the whole workflow on X and y.
func (p *Pipeline) Run(X *dataset.Table, y []int) (*RunReport, error) {
	cfg := p.cfg
	if err := dataset.Validate(X, y); err != nil {
		return nil, err
	}
	if len(cfg.Features) > 0 {
		if err := X.CheckSchema(cfg.Features); err != nil {
			return nil, err
		}
	}

	split, err := model_selection.TrainTestSplit(X, y, cfg.TestFraction, cfg.SplitSeed)
	if err != nil {
		return nil, perrors.Wrap(err, "pipeline: split")
	}
	p.logger.Info("Data split",
		log.PhaseKey, log.PhaseSplitting,
		log.TrainSamplesKey, split.XTrain.Rows(),
		log.TestSamplesKey, split.XTest.Rows(),
		log.TestFractionKey, cfg.TestFraction,
		log.RandomSeedKey, cfg.SplitSeed,
	)

	smote := imbalance.NewSMOTE(
		imbalance.WithKNeighbors(cfg.KNeighbors),
		imbalance.WithRandomState(cfg.ResampleSeed),
		imbalance.WithStrict(cfg.StrictBalance),
		imbalance.WithNJobs(cfg.NJobs),
	)
	xBal, yBal, err := smote.FitResample(split.XTrain, split.YTrain)
	if err != nil {
		return nil, perrors.Wrap(err, "pipeline: resample")
	}
	p.logger.Info("Training set balanced",
		log.PhaseKey, log.PhaseResampling,
		log.SamplesKey, xBal.Rows(),
		log.SyntheticKey, xBal.Rows()-split.XTrain.Rows(),
		log.ClassCountsKey, dataset.ClassCounts(yBal),
	)

	run := &RunReport{
		TrainRows:            split.XTrain.Rows(),
		TestRows:             split.XTest.Rows(),
		ResampledRows:        xBal.Rows(),
		TrainClassCounts:     dataset.ClassCounts(split.YTrain),
		ResampledClassCounts: dataset.ClassCounts(yBal),
	}

	features := X.Features()
	for _, kind := range cfg.Models {
		mr, err := p.runModel(kind, xBal, yBal, split, features)
		if err != nil {
			return nil, perrors.Wrapf(err, "pipeline: %s", kind)
		}
		run.Models = append(run.Models, *mr)
	}
	return run, nil
}

func (p *Pipeline) runModel(kind ModelKind, xTrain *dataset.Table, yTrain []int, split *model_selection.Split, features []string) (*ModelReport, error) {
	m, err := NewClassifier(kind, p.cfg)
	if err != nil {
		return nil, err
	}
	logger := p.logger.With(log.ModelKindKey, string(kind))

	start := time.Now()
	if err := Fit(m, xTrain, yTrain, features); err != nil {
		return nil, err
	}
	elapsed := time.Since(start)
	logger.Info("Model trained",
		log.PhaseKey, log.PhaseTraining,
		log.OperationKey, log.OperationFit,
		log.SamplesKey, xTrain.Rows(),
		log.DurationMsKey, elapsed.Milliseconds(),
	)

	var opts []metrics.Option
	if p.cfg.ClassNames != nil {
		opts = append(opts, metrics.WithTargetNames(p.cfg.ClassNames))
	}
	rep, err := Evaluate(m, split.XTest, split.YTest, opts...)
	if err != nil {
		return nil, err
	}
	logger.Info("Model evaluated",
		log.PhaseKey, log.PhaseEvaluation,
		log.OperationKey, log.OperationEvaluate,
		log.SamplesKey, split.XTest.Rows(),
		log.AccuracyKey, rep.Accuracy,
		log.WeightedF1Key, rep.WeightedF1,
	)

	ranking, err := inspection.TopImportances(m, features, p.cfg.TopK)
	if err != nil {
		return nil, err
	}
	logger.Debug("Feature importances ranked",
		log.OperationKey, log.OperationRank,
		log.FeaturesKey, len(ranking),
	)

	return &ModelReport{
		Kind:        kind,
		Report:      rep,
		Importances: ranking,
		Model:       m,
		Duration:    elapsed,
	}, nil
}

// Fit trains m on the table after checking its columns against schema.
// An empty schema skips the check.
func Fit(m model.Classifier, X *dataset.Table, y []int, schema []string) error {
	if len(schema) > 0 {
		if err := X.CheckSchema(schema); err != nil {
			return err
		}
	}
	if X.Rows() == 0 {
		return perrors.Wrap(perrors.ErrEmptyTrainingSet, "pipeline.Fit")
	}
	if len(y) != X.Rows() {
		return perrors.NewDimensionError("pipeline.Fit", X.Rows(), len(y), 0)
	}
	return m.Fit(X.Matrix(), dataset.LabelVec(y))
}

// Evaluate predicts X once and computes every metric from those predictions.
func Evaluate(m model.Classifier, X *dataset.Table, y []int, opts ...metrics.Option) (*metrics.Report, error) {
	if !m.IsFitted() {
		return nil, perrors.NewNotFittedError("pipeline", "Evaluate")
	}
	if X.Rows() == 0 {
		return nil, perrors.Wrap(perrors.ErrEmptyTestSet, "pipeline.Evaluate")
	}
	if len(y) != X.Rows() {
		return nil, perrors.NewDimensionError("pipeline.Evaluate", X.Rows(), len(y), 0)
	}

	pred, err := m.Predict(X.Matrix())
	if err != nil {
		return nil, err
	}
	return metrics.NewReport(y, dataset.LabelsFromMatrix(pred), opts...)
}
