// Package cli contains the modfinder command line interface
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/FranksOps/modfinder/internal/config"
	"github.com/FranksOps/modfinder/internal/output"
	"github.com/FranksOps/modfinder/internal/serp"
)

// KeywordsMarker separates cobra-parsed arguments from the keyword list.
const KeywordsMarker = "--keywords"

// searchEngines is swapped in tests to keep crawls off the network.
var searchEngines = serp.Defaults

type app struct {
	stdout, stderr io.Writer

	cfgFile    string
	verbose    bool
	outputPath string

	// keywords holds everything after KeywordsMarker; hasMarker reports
	// whether the marker was present at all.
	keywords  []string
	hasMarker bool

	cfg     *config.Config
	logger  *slog.Logger
	printer *output.Printer
}

// Execute runs modfinder against the process arguments and returns the exit
// code.
func Execute(ctx context.Context, args []string) int {
	return Run(ctx, args, os.Stdout, os.Stderr)
}

// Run runs modfinder with args (without the program name) writing to the
// given streams, and returns the exit code.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := &app{
		stdout:  stdout,
		stderr:  stderr,
		printer: output.NewPrinter(stdout, stderr, false),
		logger:  slog.New(slog.NewTextHandler(stderr, nil)),
	}

	head, tail, found := splitArgs(args)
	a.keywords, a.hasMarker = tail, found

	root := newRootCmd(a)
	root.SetArgs(head)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return output.ExitSuccess
	}

	var cliErr *output.CLIError
	if !errors.As(err, &cliErr) {
		cliErr = &output.CLIError{Summary: err.Error(), ExitCode: output.ExitGeneral}
	}
	if cliErr.ExitCode == output.ExitUsageError && cliErr.Detail == "" {
		a.printer.Diagnostic("%s", cliErr.Summary)
	} else {
		a.printer.FormatError(cliErr)
	}
	return cliErr.ExitCode
}

func newRootCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "modfinder [flags] --keywords <keyword>...",
		Short: "Find Sims 4 mod downloads on trusted hosting sites",
		Long: `modfinder searches the web for each keyword, follows results that point at
trusted mod hosting sites one level deep, and keeps links that mention the
keyword and serve a downloadable archive.

Everything after --keywords is taken as a keyword, so flags must come first.

Example usage:
  modfinder --keywords "pose pack" hair
  modfinder -v --output ./results.json --keywords eyes
  modfinder report --run <run-id>`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initConfig()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				a.logger.Debug("ignoring arguments before --keywords", "args", args)
			}
			keywords, err := a.parseKeywords()
			if err != nil {
				return err
			}
			return a.find(cmd.Context(), keywords)
		},
	}

	cmd.PersistentFlags().StringVar(&a.cfgFile, "config", "", "config file (default is .modfinder.yaml)")
	cmd.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "verbose output")
	cmd.Flags().StringVarP(&a.outputPath, "output", "o", "", "results file (default from output.path)")

	cmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return &output.CLIError{Summary: "invalid arguments", Detail: err.Error(), ExitCode: output.ExitUsageError}
	})

	cmd.AddCommand(newReportCmd(a))
	return cmd
}

// initConfig loads configuration and builds the logger and printer from it.
func (a *app) initConfig() error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return &output.CLIError{Summary: "failed to load config", Detail: err.Error(), ExitCode: output.ExitConfigError}
	}
	if a.outputPath != "" {
		cfg.Output.Path, err = config.ExpandHome(a.outputPath)
		if err != nil {
			return &output.CLIError{Summary: "invalid output path", Detail: err.Error(), ExitCode: output.ExitConfigError}
		}
	}
	if a.verbose {
		cfg.Log.Level = "debug"
	}
	a.cfg = cfg
	a.logger = newLogger(a.stderr, cfg.Log)
	a.printer = output.NewPrinter(a.stdout, a.stderr, output.ResolveColors(cfg.Output.Colors))

	a.logger.Debug("configuration loaded",
		"output", cfg.Output.Path,
		"fingerprint", cfg.HTTP.Fingerprint,
		"audit_backend", cfg.Audit.Backend,
	)
	return nil
}

func newLogger(w io.Writer, c config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// splitArgs cuts args at the first KeywordsMarker.
func splitArgs(args []string) (head, tail []string, found bool) {
	for i, arg := range args {
		if arg == KeywordsMarker {
			return args[:i], args[i+1:], true
		}
	}
	return args, nil, false
}

func (a *app) parseKeywords() ([]string, error) {
	if !a.hasMarker {
		return nil, &output.CLIError{Summary: "No keywords provided.", ExitCode: output.ExitUsageError}
	}
	keywords := cleanKeywords(a.keywords)
	if len(keywords) == 0 {
		return nil, &output.CLIError{Summary: "No keywords found after --keywords.", ExitCode: output.ExitUsageError}
	}
	return keywords, nil
}

// cleanKeywords trims every keyword and drops the empty ones.
func cleanKeywords(raw []string) []string {
	var keywords []string
	for _, kw := range raw {
		if kw = strings.TrimSpace(kw); kw != "" {
			keywords = append(keywords, kw)
		}
	}
	return keywords
}

func generalError(summary string, err error) error {
	return &output.CLIError{Summary: summary, Detail: fmt.Sprint(err), ExitCode: output.ExitGeneral}
}
