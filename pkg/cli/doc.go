/*
Package cli provides helpers shared by the hera-config commands.

Output Formatting:

Command results are printed as an aligned text table, JSON or CSV. Results
that implement Tabular render as tables and CSV; anything else is printed
with %v in text mode and encoded as-is in JSON mode:

	formatter, err := cli.NewFormatter(cli.OutputFormat(flag))
	if err != nil {
		return err
	}
	return formatter.FormatTo(cmd.OutOrStdout(), cli.Table{
		Headers: []string{"ID", "KEY"},
		Rows:    [][]string{{"batch-default", "auto_journal.batch_threshold"}},
	})

Progress Reporting:

	progress := cli.NewProgressReporter(os.Stderr, "Importing")
	progress.Start(int64(len(docs)))
	progress.Update(n)
	progress.Finish()

Signal Handling:

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()

Exit codes:

Commands return an *ExitError to choose the process exit status; lint uses
it to fail CI runs when problems are found.
*/
package cli
