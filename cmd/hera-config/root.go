package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"hera-erp/configrules/pkg/cli"
	"hera-erp/configrules/pkg/config"
	"hera-erp/configrules/pkg/telemetry/logging"
)

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	configFile string
	verbose    bool
	output     string
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "hera-config",
		Short: "HERA configuration rule engine",
		Long: `hera-config resolves per-tenant configuration values for HERA from
configuration rules: default values, conditional values that apply when the
evaluation context matches, and overrides.

Rules are read from YAML/JSON files, SQLite, or the HERA universal schema in
PostgreSQL.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVarP(&opts.configFile, "config", "c", "", "config file path (defaults plus HERA_* environment overrides when empty)")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "verbose output")
	root.PersistentFlags().StringVarP(&opts.output, "output", "o", string(cli.FormatText), "output format: text, json, csv")

	root.AddCommand(
		newServeCmd(opts),
		newEvaluateCmd(opts),
		newLintCmd(opts),
		newRulesCmd(opts),
		newVersionCmd(opts),
	)
	return root
}

// Execute runs the command line and returns the process exit status.
func Execute(args []string) int {
	return execute(args, os.Stdout, os.Stderr)
}

func execute(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	if err != nil {
		var exitErr *cli.ExitError
		if !errors.As(err, &exitErr) || exitErr.Err != nil {
			fmt.Fprintln(stderr, "Error:", err)
		}
	}
	return cli.ExitCode(err)
}

func loadConfig(opts *globalOptions) (*config.Config, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(opts.configFile)
	if err != nil {
		return nil, cli.NewConfigError("config", err.Error())
	}
	return cfg, nil
}

// commandLogger builds the logger for one-shot commands: warnings only on
// stderr unless --verbose is set.
func commandLogger(opts *globalOptions, w io.Writer) *slog.Logger {
	level := "warn"
	if opts.verbose {
		level = "debug"
	}
	logger, err := logging.New(logging.Config{
		Level:         level,
		Format:        string(logging.FormatConsole),
		RedactSecrets: true,
		Writer:        w,
	})
	if err != nil {
		return slog.New(slog.NewTextHandler(w, nil))
	}
	return logger
}

func formatter(opts *globalOptions) (cli.Formatter, error) {
	return cli.NewFormatter(cli.OutputFormat(opts.output))
}
