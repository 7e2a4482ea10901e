// Package pipeline runs the batch stages that turn synthetic telematics
// into risk categories, model reports and premium quotes.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"telematics/pkg/analytics"
	"telematics/pkg/artifacts"
	"telematics/pkg/csvio"
	"telematics/pkg/generator"
	"telematics/pkg/insurance"
	"telematics/pkg/logger"
	"telematics/pkg/metrics"
	"telematics/pkg/models"
	"telematics/pkg/risk"
	"telematics/service"
)

const (
	StageGenerate = "generate"
	StageRisk     = "risk"
	StageTrain    = "train"
	StagePremiums = "premiums"
	StageImport   = "import"
	StagePublish  = "publish"
)

var ErrMissingInput = errors.New("required data file not found")

// Paths lists the files the stages exchange, all under one data directory.
type Paths struct {
	DataDir   string
	Drivers   string
	Risk      string
	Clusters  string
	Report    string
	Premiums  string
	MLResults string
	Samples   string
}

func NewPaths(dataDir string) Paths {
	ml := filepath.Join(dataDir, "ml_results")
	return Paths{
		DataDir:   dataDir,
		Drivers:   filepath.Join(dataDir, "driver_data.csv"),
		Risk:      filepath.Join(dataDir, "driver_data_with_risks.csv"),
		Clusters:  filepath.Join(dataDir, "driver_risk_clusters.csv"),
		Report:    filepath.Join(ml, "report.json"),
		Premiums:  filepath.Join(dataDir, "premium_calculations.csv"),
		MLResults: ml,
		Samples:   filepath.Join(dataDir, "sample_data"),
	}
}

// Outputs are the files a full run leaves behind, in stage order.
func (p Paths) Outputs() []string {
	return []string{p.Drivers, p.Risk, p.Report, p.Clusters, p.Premiums}
}

type Options struct {
	DataDir       string
	Drivers       int
	Days          int
	Seed          uint64
	Clusters      int
	ForestWorkers int
	// Out receives the console summaries. Nil discards them.
	Out io.Writer
}

type Pipeline struct {
	opts      Options
	paths     Paths
	log       logger.ILogger
	services  service.IServiceManager
	publisher *artifacts.Publisher
	now       func() time.Time
}

func New(opts Options, log logger.ILogger) *Pipeline {
	if opts.Clusters <= 0 {
		opts.Clusters = 3
	}
	if opts.Days <= 0 {
		opts.Days = 30
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	return &Pipeline{opts: opts, paths: NewPaths(opts.DataDir), log: log, now: time.Now}
}

// WithServices makes Run import records and quotes into storage.
func (p *Pipeline) WithServices(svcs service.IServiceManager) *Pipeline {
	p.services = svcs
	return p
}

// WithPublisher makes Run upload its outputs.
func (p *Pipeline) WithPublisher(pub *artifacts.Publisher) *Pipeline {
	p.publisher = pub
	return p
}

func (p *Pipeline) Paths() Paths { return p.paths }

// stage runs fn with a logger scoped to the stage. A cancelled context
// stops the stage before it starts.
func (p *Pipeline) stage(ctx context.Context, name string, fn func(log logger.ILogger) error) error {
	log := p.log.With(logger.String("stage", name))
	start := time.Now()
	err := ctx.Err()
	if err == nil {
		log.Info("stage started")
		err = fn(log)
	}
	elapsed := time.Since(start)
	metrics.PipelineStageDuration.WithLabelValues(name).Observe(elapsed.Seconds())
	if err != nil {
		metrics.PipelineStageErrors.WithLabelValues(name).Inc()
		log.Error("stage failed", logger.Error(err))
		return fmt.Errorf("%s: %w", name, err)
	}
	log.Info("stage finished", logger.Duration("elapsed", elapsed))
	return nil
}

func load[T any](path, producer string, fn func(io.Reader) ([]T, error)) ([]T, error) {
	rows, err := csvio.LoadFile(path, fn)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s (run %q first)", ErrMissingInput, path, producer)
	}
	return rows, err
}

func (p *Pipeline) ensureDirs() error {
	for _, dir := range []string{p.paths.DataDir, p.paths.MLResults, p.paths.Samples} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}

// Generate writes driver_data.csv.
func (p *Pipeline) Generate(ctx context.Context) ([]models.DriverRecord, error) {
	var records []models.DriverRecord
	err := p.stage(ctx, StageGenerate, func(log logger.ILogger) error {
		if err := p.ensureDirs(); err != nil {
			return err
		}
		g := generator.New(p.opts.Drivers, p.opts.Days, p.opts.Seed)
		g.Now = p.now
		var err error
		if records, err = g.Generate(); err != nil {
			return err
		}
		if err := csvio.SaveFile(p.paths.Drivers, func(w io.Writer) error {
			return csvio.WriteDrivers(w, records)
		}); err != nil {
			return err
		}
		printDistribution(p.opts.Out, generator.Summarize(records))
		return nil
	})
	return records, err
}

// AnalyzeRisk clusters driver_data.csv and writes driver_data_with_risks.csv.
func (p *Pipeline) AnalyzeRisk(ctx context.Context) ([]models.RiskRecord, error) {
	var enriched []models.RiskRecord
	err := p.stage(ctx, StageRisk, func(log logger.ILogger) error {
		records, err := load(p.paths.Drivers, StageGenerate, csvio.ReadDrivers)
		if err != nil {
			return err
		}
		a := risk.NewAnalyzer(records, p.opts.Seed, log)
		if enriched, err = a.Run(p.opts.Clusters); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := csvio.SaveFile(p.paths.Risk, func(w io.Writer) error {
			return csvio.WriteRisk(w, enriched)
		}); err != nil {
			return err
		}
		printRiskSummary(p.opts.Out, a.Summary())
		return nil
	})
	return enriched, err
}

// Train fits the classifiers and the segmentation on the risk file and
// writes the JSON report and driver_risk_clusters.csv.
func (p *Pipeline) Train(ctx context.Context) (*analytics.Report, error) {
	var report *analytics.Report
	err := p.stage(ctx, StageTrain, func(log logger.ILogger) error {
		records, err := p.riskInput()
		if err != nil {
			return err
		}
		a := analytics.NewAnalyzer(p.opts.Seed, p.opts.ForestWorkers, log)
		if report, err = a.Run(ctx, records); err != nil {
			return err
		}
		if err := analytics.WriteReport(p.paths.Report, report); err != nil {
			return err
		}
		if err := csvio.SaveFile(p.paths.Clusters, func(w io.Writer) error {
			return csvio.WriteClusters(w, report.Clustering.Assignments)
		}); err != nil {
			return err
		}
		printModels(p.opts.Out, report)
		return nil
	})
	return report, err
}

// Premiums prices every driver in the risk file and writes
// premium_calculations.csv.
func (p *Pipeline) Premiums(ctx context.Context) ([]models.PremiumQuote, error) {
	var quotes []models.PremiumQuote
	err := p.stage(ctx, StagePremiums, func(log logger.ILogger) error {
		records, err := p.riskInput()
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if quotes, err = insurance.NewCalculator(log).CalculateAll(records); err != nil {
			return err
		}
		if err := csvio.SaveFile(p.paths.Premiums, func(w io.Writer) error {
			return csvio.WriteQuotes(w, quotes)
		}); err != nil {
			return err
		}
		printPremiumSummary(p.opts.Out, insurance.Summarize(quotes))
		return nil
	})
	return quotes, err
}

func (p *Pipeline) riskInput() ([]models.DriverRecord, error) {
	rows, err := load(p.paths.Risk, StageRisk, csvio.ReadRisk)
	if err != nil {
		return nil, err
	}
	records := make([]models.DriverRecord, len(rows))
	for i := range rows {
		records[i] = rows[i].DriverRecord
	}
	return records, nil
}

// Import loads driver_data.csv into storage, plus premium_calculations.csv
// when it exists.
func (p *Pipeline) Import(ctx context.Context) (int, error) {
	if p.services == nil {
		return 0, fmt.Errorf("%s: no storage configured", StageImport)
	}
	var n int
	err := p.stage(ctx, StageImport, func(log logger.ILogger) error {
		records, err := load(p.paths.Drivers, StageGenerate, csvio.ReadDrivers)
		if err != nil {
			return err
		}
		if n, err = p.services.Record().Import(ctx, records); err != nil {
			return err
		}
		quotes, err := load(p.paths.Premiums, StagePremiums, csvio.ReadQuotes)
		if errors.Is(err, ErrMissingInput) {
			log.Warning("no premium file to import", logger.String("path", p.paths.Premiums))
			return nil
		}
		if err != nil {
			return err
		}
		return p.services.Premium().Store(ctx, quotes)
	})
	return n, err
}

// Publish uploads the outputs that exist.
func (p *Pipeline) Publish(ctx context.Context) ([]string, error) {
	var keys []string
	err := p.stage(ctx, StagePublish, func(log logger.ILogger) error {
		var files []string
		for _, f := range p.paths.Outputs() {
			if _, err := os.Stat(f); err == nil {
				files = append(files, f)
			}
		}
		var err error
		keys, err = p.publisher.Publish(ctx, files)
		return err
	})
	return keys, err
}

// Run executes every stage in order and stops at the first failure.
func (p *Pipeline) Run(ctx context.Context) error {
	p.log.Info("starting driver risk analysis pipeline", logger.Int("drivers", p.opts.Drivers))
	if _, err := p.Generate(ctx); err != nil {
		return err
	}
	if _, err := p.AnalyzeRisk(ctx); err != nil {
		return err
	}
	if _, err := p.Train(ctx); err != nil {
		return err
	}
	if _, err := p.Premiums(ctx); err != nil {
		return err
	}
	if p.services != nil {
		if _, err := p.Import(ctx); err != nil {
			return err
		}
	}
	if p.publisher != nil {
		if _, err := p.Publish(ctx); err != nil {
			return err
		}
	}
	p.log.Info("pipeline completed", logger.String("data_dir", p.paths.DataDir))
	return nil
}
