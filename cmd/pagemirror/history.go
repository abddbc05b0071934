package main

import (
	"errors"
	"fmt"

	"github.com/nao1215/pagemirror/internal/config"
	"github.com/nao1215/pagemirror/internal/database"
	"github.com/nao1215/pagemirror/internal/report"
	"github.com/spf13/cobra"
)

// errRunNotFound is returned when no stored run matches an ID.
var errRunNotFound = errors.New("run not found")

// NewHistoryCmd creates the history command.
// It lists past runs and shows or deletes a single run.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List past mirror runs",
		Long: `History lists mirror runs recorded in the history database, newest first.

Run IDs may be shortened to any unique prefix, as printed by the list.

Examples:
  # List the 20 most recent runs
  pagemirror history

  # List runs of one page
  pagemirror history --url https://example.com/

  # Show the files written by a run
  pagemirror history show 3f2a9c1d

  # Delete a run from the history
  pagemirror history delete 3f2a9c1d`,
		Args: cobra.NoArgs,
		RunE: runHistoryListCmd,
	}

	cmd.Flags().IntP("limit", "n", config.DefaultHistoryLimit,
		"Maximum number of runs to list (0 lists all)")
	cmd.Flags().StringP("url", "u", "",
		"Only list runs of this page URL")
	cmd.PersistentFlags().BoolP("json", "j", false,
		"Output in JSON format (mutually exclusive with --markdown)")
	cmd.PersistentFlags().BoolP("markdown", "m", false,
		"Output in Markdown format (mutually exclusive with --json)")

	cmd.AddCommand(newHistoryShowCmd())
	cmd.AddCommand(newHistoryDeleteCmd())

	return cmd
}

func newHistoryShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show the report of a recorded run",
		Args:  cobra.ExactArgs(1),
		RunE:  runHistoryShowCmd,
	}
}

func newHistoryDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <run-id>",
		Short: "Delete a recorded run",
		Args:  cobra.ExactArgs(1),
		RunE:  runHistoryDeleteCmd,
	}
}

// historyWriter builds the report writer selected by the format flags.
func historyWriter(cmd *cobra.Command) (report.Writer, error) {
	jsonOutput, err := cmd.Flags().GetBool("json")
	if err != nil {
		return nil, err
	}
	markdownOutput, err := cmd.Flags().GetBool("markdown")
	if err != nil {
		return nil, err
	}
	if jsonOutput && markdownOutput {
		return nil, config.ErrConflictingReportFormats
	}
	return newReportWriter(jsonOutput, markdownOutput, getVerboseFlag(cmd), cmd.OutOrStdout()), nil
}

// openHistory opens the history database named by --history-dir.
func openHistory(cmd *cobra.Command) (*database.HistoryDB, error) {
	db, err := database.Open(getHistoryDir(cmd), database.DefaultOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	return db, nil
}

// runHistoryListCmd executes the history command.
func runHistoryListCmd(cmd *cobra.Command, _ []string) error {
	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}
	pageURL, err := cmd.Flags().GetString("url")
	if err != nil {
		return err
	}
	w, err := historyWriter(cmd)
	if err != nil {
		return err
	}

	db, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	records, err := db.ListRuns(cmd.Context(), pageURL, limit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	_, err = w.WriteHistory(records)
	return err
}

// runHistoryShowCmd prints the full report of one stored run.
func runHistoryShowCmd(cmd *cobra.Command, args []string) error {
	w, err := historyWriter(cmd)
	if err != nil {
		return err
	}

	db, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	record, err := db.FindRun(ctx, args[0])
	if err != nil {
		return err
	}
	if record == nil {
		return fmt.Errorf("%w: %s", errRunNotFound, args[0])
	}

	run, err := db.GetRun(ctx, record.ID)
	if err != nil {
		return err
	}
	if run == nil {
		return fmt.Errorf("%w: %s", errRunNotFound, record.ID)
	}

	// The files table is authoritative for what ended up on disk.
	files, err := db.ListFiles(ctx, record.ID)
	if err != nil {
		return err
	}
	run.Files = files

	_, err = w.Write(run)
	return err
}

// runHistoryDeleteCmd removes one stored run.
func runHistoryDeleteCmd(cmd *cobra.Command, args []string) error {
	db, err := openHistory(cmd)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	record, err := db.FindRun(ctx, args[0])
	if err != nil {
		return err
	}
	if record == nil {
		return fmt.Errorf("%w: %s", errRunNotFound, args[0])
	}

	if err := db.DeleteRun(ctx, record.ID); err != nil {
		return fmt.Errorf("failed to delete run: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Deleted run %s (%s)\n", record.ID, record.URL)
	return nil
}
