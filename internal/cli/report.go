package cli

import (
	"github.com/spf13/cobra"

	"github.com/FranksOps/modfinder/internal/audit"
	"github.com/FranksOps/modfinder/internal/output"
	"github.com/FranksOps/modfinder/internal/report"
	"github.com/FranksOps/modfinder/internal/storage"
)

func newReportCmd(a *app) *cobra.Command {
	var (
		runID  string
		format string
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarize the requests of a past run from the audit log",
		Long: `Reads fetch records from the configured audit backend and prints a summary.
Without --run every stored record is summarized.

Example usage:
  modfinder report --run 6f1c...
  modfinder report --run 6f1c... --format html > run.html`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch format {
			case "text", "json", "html":
			default:
				return &output.CLIError{Summary: "invalid format", Detail: "format must be text, json, or html", ExitCode: output.ExitUsageError}
			}

			if a.cfg.Audit.Backend == audit.BackendNone {
				return &output.CLIError{
					Summary:  "no audit backend configured",
					Detail:   "set audit.backend and audit.dsn to record and report runs",
					ExitCode: output.ExitConfigError,
				}
			}

			ctx := cmd.Context()
			backend, err := audit.OpenBackend(ctx, a.cfg.Audit.Backend, a.cfg.Audit.DSN)
			if err != nil {
				return generalError("failed to open audit backend", err)
			}
			defer backend.Close()

			records, err := backend.Query(ctx, storage.Filter{RunID: runID})
			if err != nil {
				return generalError("failed to query audit records", err)
			}
			if len(records) == 0 {
				a.printer.Diagnostic("No fetch records found.")
				return nil
			}

			if err := report.Write(a.stdout, format, report.GenerateSummary(records)); err != nil {
				return generalError("failed to write report", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&runID, "run", "", "run ID to summarize")
	cmd.Flags().StringVar(&format, "format", "text", "output format (text, json, html)")
	return cmd
}
