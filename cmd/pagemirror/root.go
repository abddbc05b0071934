package main

import (
	"fmt"
	"os"

	"github.com/nao1215/pagemirror/internal/config"
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command. The root command itself mirrors a
// page; history, init and version are subcommands.
func NewRootCmd() *cobra.Command {
	cmd := newMirrorCmd()
	cmd.Version = getVersion()
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true

	// Global flags that apply to all commands
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().String("history-dir", config.XDGDataDir(),
		"Directory holding the run history database")

	cmd.AddCommand(NewHistoryCmd())
	cmd.AddCommand(NewInitCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// getHistoryDir retrieves the history database directory.
func getHistoryDir(cmd *cobra.Command) string {
	dir, err := cmd.Flags().GetString("history-dir")
	if err != nil || dir == "" {
		return config.XDGDataDir()
	}
	return dir
}
