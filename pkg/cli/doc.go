/*
Package cli provides command-line interface utilities for Tollgate.

The cli package includes output formatters, typed errors and signal
handling used by the tollgate command.

Output Formatting:

Commands print results as a table (text), JSON or CSV:

	formatter := cli.NewFormatter(cli.FormatJSON)
	if err := formatter.FormatTo(os.Stdout, result); err != nil {
		return err
	}

Values implementing Table are rendered as aligned columns by the text
formatter and as rows by the CSV formatter.

Signal Handling:

For graceful shutdown on SIGINT/SIGTERM:

	ctx, stop := cli.SetupSignalHandler(context.Background(), logger)
	defer stop()
	// Use ctx for operations that should be cancelled on shutdown

Exit Codes:

ExitCode maps errors to process exit codes: 0 on success, 2 for
configuration errors and 1 for everything else.
*/
package cli
