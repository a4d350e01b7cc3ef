/*
Package cli provides command-line interface utilities for the grok2aoi
command.

Output Formatting:

The cli package supports text and JSON output formats for displaying
command results:

	formatter := cli.NewFormatter(cli.FormatJSON)
	if err := formatter.FormatTo(os.Stdout, result); err != nil {
		return err
	}

Command Errors:

Commands wrap failures so the failing subcommand is visible in the
error chain:

	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}
*/
package cli
