package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/gklr"
	"github.com/YuminosukeSato/gklr/config"
	"github.com/YuminosukeSato/gklr/core/dataset"
	"github.com/YuminosukeSato/gklr/core/model"
	"github.com/YuminosukeSato/gklr/estimator"
	"github.com/YuminosukeSato/gklr/pkg/errors"
	"github.com/YuminosukeSato/gklr/pkg/log"
	"github.com/YuminosukeSato/gklr/report"
)

type fitOptions struct {
	configPath string
	trainPath  string
	testPath   string
	outputPath string
	plotPath   string
	weights    string
	quiet      bool
}

// fitOutput is the JSON document written by --output.
type fitOutput struct {
	RunID        string              `json:"run_id"`
	ModelID      string              `json:"model_id"`
	Result       *estimator.Result   `json:"result"`
	Warnings     []string            `json:"warnings,omitempty"`
	TestAccuracy *float64            `json:"test_accuracy,omitempty"`
	Weights      *model.ModelWeights `json:"weights"`
}

func newFitCmd(root *rootOptions) *cobra.Command {
	opts := &fitOptions{}
	cmd := &cobra.Command{
		Use:   "fit",
		Short: "Fit a kernel logit model on a CSV file",
		Long: `Builds the train kernel from --train, fits the model described by
--config and prints a summary. With --test the test accuracy is reported.

Examples:
  gklr fit --config model.yaml --train train.csv
  gklr fit --config model.yaml --train train.csv --test test.csv --output result.json --plot history.png`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return errors.SafeExecute("gklr fit", func() error {
				return runFit(opts, cmd.OutOrStdout(), root.logger)
			})
		},
	}
	cmd.Flags().StringVar(&opts.configPath, "config", "", "YAML model config")
	cmd.Flags().StringVar(&opts.trainPath, "train", "", "training CSV with a header row")
	cmd.Flags().StringVar(&opts.testPath, "test", "", "optional test CSV")
	cmd.Flags().StringVar(&opts.outputPath, "output", "", "write the results as JSON")
	cmd.Flags().StringVar(&opts.plotPath, "plot", "", "save the convergence history plot (needs optimizer.print_every > 0)")
	cmd.Flags().StringVar(&opts.weights, "weights", "", "write the fitted weights (gob for a .gob path, JSON otherwise)")
	cmd.Flags().BoolVar(&opts.quiet, "quiet", false, "do not print the summary")
	_ = cmd.MarkFlagRequired("config")
	_ = cmd.MarkFlagRequired("train")
	return cmd
}

func runFit(opts *fitOptions, out io.Writer, logger log.Logger) error {
	const op = "gklr fit"
	if logger == nil {
		logger = log.GetLogger()
	}
	runID := uuid.NewString()
	logger = logger.With("run_id", runID)

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if cfg.ChoiceColumn == "" {
		return errors.NewConfigurationError(op, "choice_column", "must be set in the config")
	}
	if len(cfg.Attributes) == 0 {
		return errors.NewConfigurationError(op, "attributes", "must be set in the config")
	}
	if opts.plotPath != "" && cfg.Optimizer.PrintEvery <= 0 {
		return errors.NewConfigurationError(op, "print_every", "--plot needs optimizer.print_every > 0")
	}

	train, err := dataset.ReadCSVFile(opts.trainPath)
	if err != nil {
		return err
	}
	m, err := gklr.NewKernelModel(gklr.WithConfig(cfg), gklr.WithLogger(logger))
	if err != nil {
		return err
	}
	if err := m.SetKernelTrain(train, "", nil, nil); err != nil {
		return err
	}
	if err := m.Fit(gklr.FitOptions{}); err != nil {
		return err
	}
	res, err := m.Results()
	if err != nil {
		return err
	}

	result := fitOutput{RunID: runID, ModelID: m.ID(), Result: res}
	for _, w := range res.Warnings {
		result.Warnings = append(result.Warnings, w.Error())
	}
	if opts.testPath != "" {
		test, err := dataset.ReadCSVFile(opts.testPath)
		if err != nil {
			return err
		}
		if err := m.SetKernelTest(test, "", nil, nil); err != nil {
			return err
		}
		acc, err := m.Score()
		if err != nil {
			return err
		}
		result.TestAccuracy = &acc
	}
	if result.Weights, err = m.Weights(); err != nil {
		return err
	}

	if !opts.quiet {
		if err := report.Summary(out, res); err != nil {
			return err
		}
	}
	if opts.outputPath != "" {
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return errors.Wrap(err, "encode results")
		}
		if err := os.WriteFile(opts.outputPath, data, 0o644); err != nil {
			return errors.Wrapf(err, "write %s", opts.outputPath)
		}
	}
	if opts.weights != "" {
		if err := model.SaveWeights(result.Weights, opts.weights); err != nil {
			return err
		}
	}
	if opts.plotPath != "" {
		if err := report.PlotHistory(res.History, cfg.Optimizer.PrintEvery, opts.plotPath); err != nil {
			return err
		}
	}
	logger.Info("Run finished", "output", opts.outputPath, "plot", opts.plotPath)
	return nil
}
