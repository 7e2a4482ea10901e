package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"telematics/config"
	"telematics/pkg/artifacts"
	"telematics/pkg/logger"
	"telematics/pkg/pipeline"
	"telematics/service"
	"telematics/storage/factory"
)

type ExitCode int

const (
	exitCodeSuccess ExitCode = 0
	exitCodeError   ExitCode = 1
)

type flags struct {
	dataDir  string
	drivers  int
	seed     uint64
	clusters int
	workers  int
	store    bool
	publish  bool
	verbose  bool
}

// env holds what a command needs once flags are parsed.
type env struct {
	cfg      config.Config
	log      logger.ILogger
	pipeline *pipeline.Pipeline
	closers  []func()
}

func (e *env) close() {
	for _, c := range e.closers {
		c()
	}
}

func newEnv(ctx context.Context, cfg config.Config, f *flags, withStorage, withPublisher bool) (*env, error) {
	level := cfg.LoggerLevel
	if f.verbose {
		level = "debug"
	}
	log := logger.New(cfg.ServiceName+"-pipeline", level)

	p := pipeline.New(pipeline.Options{
		DataDir:       f.dataDir,
		Drivers:       f.drivers,
		Seed:          f.seed,
		Clusters:      f.clusters,
		ForestWorkers: f.workers,
		Out:           os.Stdout,
	}, log)
	e := &env{cfg: cfg, log: log, pipeline: p}

	if withStorage {
		stg, err := factory.Open(ctx, cfg, log)
		if err != nil {
			return nil, fmt.Errorf("open storage: %w", err)
		}
		e.closers = append(e.closers, stg.Close)
		p.WithServices(service.New(stg, cfg, log))
	}
	if withPublisher {
		pub, err := artifacts.FromConfig(ctx, cfg, log)
		if err != nil {
			e.close()
			return nil, err
		}
		if pub == nil {
			log.Warning("S3_BUCKET is not set, skipping publish")
		} else {
			p.WithPublisher(pub)
		}
	}
	return e, nil
}

func Run(args []string) ExitCode {
	cfg := config.Load()
	f := &flags{}

	rootCmd := &cobra.Command{
		Use:           "pipeline",
		Short:         "Driver risk analysis pipeline: synthetic telematics, risk clustering, models and premiums.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cmd.Help(); err != nil {
				return fmt.Errorf("failed to show help: %w", err)
			}
			return nil
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&f.dataDir, "data-dir", "d", cfg.DataDir, "directory for the CSV and report files")
	pf.IntVarP(&f.drivers, "drivers", "n", cfg.PipelineDrivers, "number of synthetic drivers to generate")
	pf.Uint64Var(&f.seed, "seed", cfg.PipelineSeed, "random seed for generation, clustering and training")
	pf.IntVarP(&f.clusters, "clusters", "k", 3, "number of risk clusters (1-3)")
	pf.IntVar(&f.workers, "workers", cfg.ForestWorkers, "random forest training workers")
	pf.BoolVarP(&f.verbose, "verbose", "v", false, "set debug logging level")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run every stage in order",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEnv(cmd, cfg, f, f.store, f.publish, func(ctx context.Context, e *env) error {
				return e.pipeline.Run(ctx)
			})
		},
	}
	runCmd.Flags().BoolVar(&f.store, "import", false, "import records and quotes into storage after the run")
	runCmd.Flags().BoolVar(&f.publish, "publish", false, "upload the outputs to S3 after the run")

	rootCmd.AddCommand(
		runCmd,
		stageCmd("generate", "Generate synthetic drivers into driver_data.csv", cfg, f, func(ctx context.Context, e *env) error {
			_, err := e.pipeline.Generate(ctx)
			return err
		}),
		stageCmd("risk", "Cluster drivers and write driver_data_with_risks.csv", cfg, f, func(ctx context.Context, e *env) error {
			_, err := e.pipeline.AnalyzeRisk(ctx)
			return err
		}),
		stageCmd("train", "Train the behaviour models and write the ML report", cfg, f, func(ctx context.Context, e *env) error {
			_, err := e.pipeline.Train(ctx)
			return err
		}),
		stageCmd("premiums", "Compute PAYD/PHYD premiums into premium_calculations.csv", cfg, f, func(ctx context.Context, e *env) error {
			_, err := e.pipeline.Premiums(ctx)
			return err
		}),
		&cobra.Command{
			Use:   "import",
			Short: "Load driver_data.csv and premium_calculations.csv into storage",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withEnv(cmd, cfg, f, true, false, func(ctx context.Context, e *env) error {
					n, err := e.pipeline.Import(ctx)
					if err == nil {
						fmt.Fprintf(cmd.OutOrStdout(), "Imported %d driver records.\n", n)
					}
					return err
				})
			},
		},
		&cobra.Command{
			Use:   "publish",
			Short: "Upload existing outputs to S3",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withEnv(cmd, cfg, f, false, true, func(ctx context.Context, e *env) error {
					keys, err := e.pipeline.Publish(ctx)
					for _, k := range keys {
						fmt.Fprintln(cmd.OutOrStdout(), k)
					}
					return err
				})
			},
		},
	)

	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return exitCodeError
	}
	return exitCodeSuccess
}

func stageCmd(use, short string, cfg config.Config, f *flags, fn func(context.Context, *env) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEnv(cmd, cfg, f, false, false, fn)
		},
	}
}

func withEnv(cmd *cobra.Command, cfg config.Config, f *flags, withStorage, withPublisher bool, fn func(context.Context, *env) error) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	e, err := newEnv(ctx, cfg, f, withStorage, withPublisher)
	if err != nil {
		return err
	}
	defer e.close()

	if err := fn(ctx, e); err != nil {
		e.log.Error("pipeline failed", logger.Error(err))
		return err
	}
	return nil
}
