// Command readmit trains the boosted-trees and random-forest readmission
// classifiers on a preprocessed CSV and reports their test metrics.
//
// Usage:
//
//	readmit [-config readmit.yaml] [-env .env] [-data data/preprocessed_data.csv]
//
// Settings come from the YAML file, overridden by READMIT_* environment
// variables (a .env file is loaded first when present).
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"github.com/YuminosukeSato/readmit/dataset"
	"github.com/YuminosukeSato/readmit/pipeline"
	"github.com/YuminosukeSato/readmit/pkg/config"
	perrors "github.com/YuminosukeSato/readmit/pkg/errors"
	"github.com/YuminosukeSato/readmit/pkg/log"
	"github.com/YuminosukeSato/readmit/pkg/store"
	"github.com/YuminosukeSato/readmit/report"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		log.GetLoggerWithName("readmit").Error("Run failed", log.ErrAttrKey, err, log.ErrorCodeKey, perrors.Code(err))
		os.Exit(1)
	}
}

func run(args []string, stdout io.Writer) error {
	flags := flag.NewFlagSet("readmit", flag.ContinueOnError)
	configPath := flags.String("config", "", "YAML configuration file")
	envFile := flags.String("env", ".env", "dotenv file loaded before the environment overrides")
	dataPath := flags.String("data", "", "preprocessed CSV (overrides data.path)")
	if err := flags.Parse(args); err != nil {
		return err
	}

	if _, err := os.Stat(*envFile); err == nil {
		if err := godotenv.Load(*envFile); err != nil {
			return perrors.Wrapf(err, "load %s", *envFile)
		}
	}
	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	if *dataPath != "" {
		cfg.Data.Path = *dataPath
	}

	closer, err := log.Setup(cfg.LogOptions())
	if err != nil {
		return err
	}
	defer closer.Close()
	logger := log.GetLoggerWithName("readmit")

	X, y, err := readTable(cfg)
	if err != nil {
		return err
	}
	logger.Info("Dataset loaded",
		log.PathKey, cfg.Data.Path,
		log.SamplesKey, X.Rows(),
		log.FeaturesKey, X.Cols(),
		log.ClassCountsKey, dataset.ClassCounts(y),
	)

	pcfg := cfg.ToPipeline()
	p, err := pipeline.New(pcfg)
	if err != nil {
		return err
	}
	result, err := p.Run(X, y)
	if err != nil {
		return err
	}

	if err := report.WriteText(stdout, result); err != nil {
		return perrors.Wrap(err, "write report")
	}
	if err := writeOutputs(cfg, pcfg, result, logger); err != nil {
		return err
	}
	return nil
}

func readTable(cfg *config.Config) (*dataset.Table, []int, error) {
	f, err := os.Open(cfg.Data.Path)
	if err != nil {
		return nil, nil, perrors.Wrap(err, "open dataset")
	}
	defer f.Close()
	X, y, err := dataset.ReadCSV(f, cfg.Data.Features, cfg.Data.Label)
	if err != nil {
		return nil, nil, perrors.Wrapf(err, "read %s", cfg.Data.Path)
	}
	return X, y, nil
}

func writeOutputs(cfg *config.Config, pcfg pipeline.Config, result *pipeline.RunReport, logger log.Logger) error {
	if dir := cfg.Report.ImageDir; dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return perrors.Wrapf(err, "create %s", dir)
		}
		for _, mr := range result.Models {
			title := report.Title(mr.Kind)
			cmPath := filepath.Join(dir, string(mr.Kind)+".png")
			if err := report.SaveConfusionMatrix(cmPath, title, mr.Report, report.PaletteFor(mr.Kind)); err != nil {
				return err
			}
			fiPath := filepath.Join(dir, string(mr.Kind)+"-importance.png")
			chartTitle := fmt.Sprintf("%s -- Top %d Important Features", title, len(mr.Importances))
			if err := report.SaveImportanceChart(fiPath, chartTitle, mr.Importances); err != nil {
				return err
			}
			logger.Info("Figures saved",
				log.PhaseKey, log.PhaseReporting,
				log.ModelKindKey, string(mr.Kind),
				log.PathKey, dir,
			)
		}
	}

	if path := cfg.Report.MetricsTextfile; path != "" {
		if err := report.WriteMetricsTextfile(path, result); err != nil {
			return err
		}
		logger.Info("Metrics textfile written", log.PhaseKey, log.PhaseReporting, log.PathKey, path)
	}

	if path := cfg.Report.HistoryPath; path != "" {
		history, err := store.Open(path)
		if err != nil {
			return err
		}
		defer history.Close()
		key, err := history.SaveRun(store.Summarize(result, pcfg, cfg.Data.Path, time.Now()))
		if err != nil {
			return err
		}
		logger.Info("Run archived", log.PhaseKey, log.PhaseReporting, log.PathKey, path, "run.key", key)
	}
	return nil
}
