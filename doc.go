// Package readmit trains and evaluates classifiers for hospital readmission
// on imbalanced, three-class tabular data.
//
// The outcome classes are 0 (never readmitted), 1 (readmitted within 30
// days) and 2 (readmitted after 30 days). Minority classes are oversampled
// with SMOTE on the training split only, then a gradient-boosted tree
// ensemble and a random forest are fitted and scored on the untouched test
// split.
//
// # Workflow
//
//	split → SMOTE → fit → predict → metrics → top-10 feature importances
//
// Every stage is deterministic for fixed seeds. Parallelism inside a stage
// (per tree, per feature histogram, per neighbour query) never changes the
// result.
//
// # Quick Start
//
//	X, y, err := dataset.ReadCSV(f, dataset.ReadmissionFeatures, dataset.LabelColumn)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	p, err := pipeline.New(pipeline.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	run, err := p.Run(X, y)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	report.WriteText(os.Stdout, run)
//
// The readmit command wraps the same flow with YAML configuration, figures,
// a Prometheus textfile and a bbolt run history.
//
// # Packages
//
//   - dataset: sample tables, label vectors, CSV reader, readmission schema
//   - sklearn/model_selection: TrainTestSplit
//   - sklearn/imbalance: SMOTE
//   - sklearn/tree: CART DecisionTreeClassifier (gini, entropy)
//   - sklearn/ensemble: RandomForestClassifier
//   - sklearn/boosting: histogram gradient-boosted trees, softmax objective
//   - metrics: accuracy, confusion matrix, precision/recall/F1, classification report
//   - inspection: feature-importance ranking
//   - pipeline: configuration, model factory, Evaluate, Run
//   - report: text report, PNG figures, Prometheus textfile
//   - core/model: estimator interfaces and fitted-state tracking
//   - core/parallel: deterministic CPU-parallel helpers
//   - pkg/config, pkg/log, pkg/errors, pkg/store: configuration, logging, errors, run history
package readmit
