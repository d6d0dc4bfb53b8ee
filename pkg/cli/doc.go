/*
Package cli provides command-line helpers shared by the sentinel commands.

Output Formatting:

Command results are written in text, JSON or CSV. Results implement
TextRenderer for their human-readable form and TableRenderer when they can be
listed as rows:

	format, err := cli.ParseFormat(flag, cli.FormatText, cli.FormatJSON, cli.FormatCSV)
	if err != nil {
		return err
	}
	return cli.NewFormatter(format).FormatTo(cmd.OutOrStdout(), result)

Errors:

CommandError wraps a failed command; ConfigError reports bad flags or
configuration. ExitCode maps either to the process exit status.

Progress Reporting:

	progress := cli.NewProgressReporter(os.Stderr, "documents")
	progress.Start(int64(len(docs)))
	for _, doc := range docs {
		// copy doc
		progress.Increment()
	}
	progress.Finish()

Signal Handling:

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()
*/
package cli
