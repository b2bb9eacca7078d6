// Package config loads the run configuration from a YAML file and
// READMIT_* environment variables.
//
// Values are resolved in three layers: built-in defaults, then the YAML
// file, then the environment. The CLI calls godotenv before Load so a local
// .env file feeds the environment layer.
package config

import (
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/readmit/dataset"
	perrors "github.com/YuminosukeSato/readmit/pkg/errors"
	"github.com/YuminosukeSato/readmit/pkg/log"
	"github.com/YuminosukeSato/readmit/pipeline"
)

// DataConfig locates the preprocessed CSV.
type DataConfig struct {
	Path     string   `yaml:"path"`
	Label    string   `yaml:"label"`
	Features []string `yaml:"features"`
}

// SplitConfig controls the train/test split.
type SplitConfig struct {
	TestFraction float64 `yaml:"test_fraction"`
	Seed         uint64  `yaml:"seed"`
}

// ResampleConfig controls SMOTE.
type ResampleConfig struct {
	KNeighbors int    `yaml:"k_neighbors"`
	Seed       uint64 `yaml:"seed"`
	Strict     bool   `yaml:"strict"`
}

// ForestConfig holds the random-forest hyperparameters.
type ForestConfig struct {
	Size      int    `yaml:"size"`
	MaxDepth  int    `yaml:"max_depth"`
	Criterion string `yaml:"criterion"`
	Seed      uint64 `yaml:"seed"`
}

// BoostingConfig holds the boosted-trees hyperparameters.
type BoostingConfig struct {
	Rounds         int     `yaml:"rounds"`
	LearningRate   float64 `yaml:"learning_rate"`
	MaxDepth       int     `yaml:"max_depth"`
	Lambda         float64 `yaml:"lambda"`
	Gamma          float64 `yaml:"gamma"`
	MinChildWeight float64 `yaml:"min_child_weight"`
	MaxBin         int     `yaml:"max_bin"`
}

// ReportConfig selects the run outputs. Empty paths disable that output.
type ReportConfig struct {
	TopK            int    `yaml:"top_k"`
	ImageDir        string `yaml:"image_dir"`
	MetricsTextfile string `yaml:"metrics_textfile"`
	HistoryPath     string `yaml:"history_path"`
}

// LogConfig maps onto log.Options.
type LogConfig struct {
	Level   string `yaml:"level"`
	File    string `yaml:"file"`
	Console bool   `yaml:"console"`
}

// Config is the complete run configuration.
type Config struct {
	Data     DataConfig     `yaml:"data"`
	Split    SplitConfig    `yaml:"split"`
	Resample ResampleConfig `yaml:"resample"`
	Forest   ForestConfig   `yaml:"forest"`
	Boosting BoostingConfig `yaml:"boosting"`
	Models   []string       `yaml:"models"`
	Report   ReportConfig   `yaml:"report"`
	Log      LogConfig      `yaml:"log"`
	Workers  int            `yaml:"workers"`
}

// Default returns the configuration of the reference run.
func Default() *Config {
	p := pipeline.DefaultConfig()
	models := make([]string, len(p.Models))
	for i, m := range p.Models {
		models[i] = string(m)
	}
	return &Config{
		Data: DataConfig{
			Path:     "data/preprocessed_data.csv",
			Label:    dataset.LabelColumn,
			Features: p.Features,
		},
		Split:    SplitConfig{TestFraction: p.TestFraction, Seed: p.SplitSeed},
		Resample: ResampleConfig{KNeighbors: p.KNeighbors, Seed: p.ResampleSeed, Strict: p.StrictBalance},
		Forest: ForestConfig{
			Size:      p.ForestSize,
			MaxDepth:  p.ForestMaxDepth,
			Criterion: p.ForestCriterion,
			Seed:      p.ModelSeed,
		},
		Boosting: BoostingConfig(p.Boosting),
		Models:   models,
		Report:   ReportConfig{TopK: p.TopK, ImageDir: "images"},
		Log:      LogConfig{Level: "info", Console: true},
	}
}

// Load reads path (if non-empty) over the defaults, applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, perrors.Wrapf(err, "read config %s", path)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, perrors.Wrapf(err, "parse config %s", path)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Data.Path = getEnvOrDefault("READMIT_DATA_PATH", c.Data.Path)
	c.Data.Label = getEnvOrDefault("READMIT_LABEL", c.Data.Label)
	c.Forest.Criterion = getEnvOrDefault("READMIT_FOREST_CRITERION", c.Forest.Criterion)
	c.Report.ImageDir = getEnvOrDefault("READMIT_IMAGE_DIR", c.Report.ImageDir)
	c.Report.MetricsTextfile = getEnvOrDefault("READMIT_METRICS_TEXTFILE", c.Report.MetricsTextfile)
	c.Report.HistoryPath = getEnvOrDefault("READMIT_HISTORY_PATH", c.Report.HistoryPath)
	c.Log.Level = getEnvOrDefault("READMIT_LOG_LEVEL", c.Log.Level)
	c.Log.File = getEnvOrDefault("READMIT_LOG_FILE", c.Log.File)
	if v, ok := os.LookupEnv("READMIT_FEATURES"); ok {
		c.Data.Features = splitList(v)
	}
	if v, ok := os.LookupEnv("READMIT_MODELS"); ok {
		c.Models = splitList(v)
	}

	env := &envReader{}
	c.Split.TestFraction = env.floatVar("READMIT_TEST_FRACTION", c.Split.TestFraction)
	c.Split.Seed = env.uintVar("READMIT_SPLIT_SEED", c.Split.Seed)
	c.Resample.KNeighbors = env.intVar("READMIT_K_NEIGHBORS", c.Resample.KNeighbors)
	c.Resample.Seed = env.uintVar("READMIT_RESAMPLE_SEED", c.Resample.Seed)
	c.Resample.Strict = env.boolVar("READMIT_STRICT_BALANCE", c.Resample.Strict)
	c.Forest.Size = env.intVar("READMIT_FOREST_SIZE", c.Forest.Size)
	c.Forest.MaxDepth = env.intVar("READMIT_FOREST_MAX_DEPTH", c.Forest.MaxDepth)
	c.Forest.Seed = env.uintVar("READMIT_MODEL_SEED", c.Forest.Seed)
	c.Boosting.Rounds = env.intVar("READMIT_BOOSTING_ROUNDS", c.Boosting.Rounds)
	c.Boosting.LearningRate = env.floatVar("READMIT_LEARNING_RATE", c.Boosting.LearningRate)
	c.Boosting.MaxDepth = env.intVar("READMIT_BOOSTING_MAX_DEPTH", c.Boosting.MaxDepth)
	c.Report.TopK = env.intVar("READMIT_TOP_K", c.Report.TopK)
	c.Log.Console = env.boolVar("READMIT_LOG_CONSOLE", c.Log.Console)
	c.Workers = env.intVar("READMIT_WORKERS", c.Workers)
	return env.err
}

// Validate range-checks every value.
func (c *Config) Validate() error {
	if c.Data.Label == "" {
		return perrors.NewValidationError("data.label", "must not be empty", c.Data.Label)
	}
	if len(c.Data.Features) == 0 {
		return perrors.NewValidationError("data.features", "at least one feature is required", c.Data.Features)
	}
	for _, f := range c.Data.Features {
		if f == c.Data.Label {
			return perrors.NewValidationError("data.features", "must not contain the label column", f)
		}
	}
	if c.Report.TopK < 1 {
		return perrors.NewValidationError("report.top_k", "must be at least 1", c.Report.TopK)
	}
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	return c.ToPipeline().Validate()
}

// ToPipeline maps the configuration onto pipeline.Config.
func (c *Config) ToPipeline() pipeline.Config {
	p := pipeline.DefaultConfig()
	p.TestFraction = c.Split.TestFraction
	p.SplitSeed = c.Split.Seed
	p.ResampleSeed = c.Resample.Seed
	p.KNeighbors = c.Resample.KNeighbors
	p.StrictBalance = c.Resample.Strict
	p.ForestSize = c.Forest.Size
	p.ForestMaxDepth = c.Forest.MaxDepth
	p.ForestCriterion = c.Forest.Criterion
	p.ModelSeed = c.Forest.Seed
	p.Boosting = pipeline.BoostingConfig(c.Boosting)
	p.TopK = c.Report.TopK
	p.Features = append([]string(nil), c.Data.Features...)
	p.Models = make([]pipeline.ModelKind, len(c.Models))
	for i, m := range c.Models {
		p.Models[i] = pipeline.ModelKind(m)
	}
	p.NJobs = c.Workers
	return p
}

// LogOptions returns the logging setup for log.Setup.
func (c *Config) LogOptions() log.Options {
	return log.Options{
		Level:      c.Log.Level,
		Console:    c.Log.Console,
		File:       c.Log.File,
		MaxSizeMB:  50,
		MaxBackups: 3,
		MaxAgeDays: 28,
	}
}

func getEnvOrDefault(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func splitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// envReader parses numeric overrides and keeps the first parse error.
type envReader struct {
	err error
}

func (r *envReader) lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" || r.err != nil {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func (r *envReader) fail(key, v string, err error) {
	r.err = perrors.Wrapf(perrors.NewValidationError(key, "cannot parse environment value", v), "%v", err)
}

func (r *envReader) intVar(key string, fallback int) int {
	v, ok := r.lookup(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.fail(key, v, err)
		return fallback
	}
	return n
}

func (r *envReader) uintVar(key string, fallback uint64) uint64 {
	v, ok := r.lookup(key)
	if !ok {
		return fallback
	}
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		r.fail(key, v, err)
		return fallback
	}
	return n
}

func (r *envReader) floatVar(key string, fallback float64) float64 {
	v, ok := r.lookup(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.fail(key, v, err)
		return fallback
	}
	return f
}

func (r *envReader) boolVar(key string, fallback bool) bool {
	v, ok := r.lookup(key)
	if !ok {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.fail(key, v, err)
		return fallback
	}
	return b
}
