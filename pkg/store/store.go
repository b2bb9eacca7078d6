// Package store keeps a local history of pipeline runs in a bbolt file.
//
// Only evaluation summaries are stored: the configuration, row counts,
// metrics and importance rankings of each run. Fitted models are never
// written.
package store

import (
	"encoding/json"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/YuminosukeSato/readmit/inspection"
	perrors "github.com/YuminosukeSato/readmit/pkg/errors"
	"github.com/YuminosukeSato/readmit/pipeline"
)

const runsBucket = "runs"

// ModelSummary is the stored outcome of one model variant.
type ModelSummary struct {
	Kind            string                    `json:"kind"`
	Accuracy        float64                   `json:"accuracy"`
	WeightedF1      float64                   `json:"weighted_f1"`
	Labels          []int                     `json:"labels"`
	ConfusionMatrix [][]int                   `json:"confusion_matrix"`
	TopFeatures     []inspection.FeatureScore `json:"top_features"`
	DurationMs      int64                     `json:"duration_ms"`
}

// RunSummary is the stored record of one run.
type RunSummary struct {
	Timestamp     time.Time       `json:"timestamp"`
	DataPath      string          `json:"data_path"`
	Config        pipeline.Config `json:"config"`
	TrainRows     int             `json:"train_rows"`
	TestRows      int             `json:"test_rows"`
	ResampledRows int             `json:"resampled_rows"`
	Models        []ModelSummary  `json:"models"`
}

// Summarize flattens run into a RunSummary stamped with at.
func Summarize(run *pipeline.RunReport, cfg pipeline.Config, dataPath string, at time.Time) RunSummary {
	s := RunSummary{
		Timestamp:     at,
		DataPath:      dataPath,
		Config:        cfg,
		TrainRows:     run.TrainRows,
		TestRows:      run.TestRows,
		ResampledRows: run.ResampledRows,
	}
	for _, mr := range run.Models {
		s.Models = append(s.Models, ModelSummary{
			Kind:            string(mr.Kind),
			Accuracy:        mr.Report.Accuracy,
			WeightedF1:      mr.Report.WeightedF1,
			Labels:          mr.Report.Labels,
			ConfusionMatrix: mr.Report.ConfusionMatrix,
			TopFeatures:     mr.Importances,
			DurationMs:      mr.Duration.Milliseconds(),
		})
	}
	return s
}

// Store is a run history backed by bbolt.
type Store struct {
	db *bbolt.DB
}

// Open opens (or creates) the history file at path.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, perrors.Wrapf(err, "open run history %s", path)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(runsBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, perrors.Wrap(err, "create runs bucket")
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// runKey pads the timestamp so byte order matches chronological order.
func runKey(t time.Time) []byte {
	return []byte(fmt.Sprintf("run_%020d", t.UnixNano()))
}

// SaveRun stores summary and returns its key. A zero timestamp is replaced
// with the current time.
func (s *Store) SaveRun(summary RunSummary) (string, error) {
	if summary.Timestamp.IsZero() {
		summary.Timestamp = time.Now()
	}
	data, err := json.Marshal(summary)
	if err != nil {
		return "", perrors.Wrap(err, "marshal run summary")
	}
	key := runKey(summary.Timestamp)
	err = s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(runsBucket)).Put(key, data)
	})
	if err != nil {
		return "", perrors.Wrap(err, "save run summary")
	}
	return string(key), nil
}

// Runs returns every stored run, oldest first.
func (s *Store) Runs() ([]RunSummary, error) {
	var runs []RunSummary
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(runsBucket)).ForEach(func(k, v []byte) error {
			var r RunSummary
			if err := json.Unmarshal(v, &r); err != nil {
				return perrors.Wrapf(err, "decode %s", k)
			}
			runs = append(runs, r)
			return nil
		})
	})
	return runs, err
}

// Latest returns the most recent run, or false when the history is empty.
func (s *Store) Latest() (RunSummary, bool, error) {
	var (
		r     RunSummary
		found bool
	)
	err := s.db.View(func(tx *bbolt.Tx) error {
		k, v := tx.Bucket([]byte(runsBucket)).Cursor().Last()
		if k == nil {
			return nil
		}
		found = true
		if err := json.Unmarshal(v, &r); err != nil {
			return perrors.Wrapf(err, "decode %s", k)
		}
		return nil
	})
	return r, found, err
}
