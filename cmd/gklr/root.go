package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/YuminosukeSato/gklr/pkg/log"
)

type rootOptions struct {
	logLevel  string
	logFormat string
	logger    log.Logger
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:           "gklr",
		Short:         "Estimate kernel logit discrete choice models",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setupLogging()
		},
	}
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info, warn, error")
	cmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "console", "log format: console or json")
	cmd.AddCommand(newFitCmd(opts))
	return cmd
}

// setupLogging installs the process logger and routes library warnings
// through it.
func (o *rootOptions) setupLogging() error {
	level, err := log.ParseLevel(o.logLevel)
	if err != nil {
		return err
	}
	var logger log.Logger
	switch o.logFormat {
	case "json":
		logger = log.NewZerologLogger(os.Stderr, level)
	default:
		logger = log.NewConsoleLogger(level)
	}
	log.SetLogger(logger)
	log.InstallWarningSink(logger)
	o.logger = logger
	return nil
}
