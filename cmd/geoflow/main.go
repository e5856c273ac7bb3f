package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error: %v", err))
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "geoflow",
		Short:         "Workflow DAG runner with content addressed result caching",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringP("config", "c", "", "config YAML URL")
	root.PersistentFlags().StringP("workflows", "w", "", "workflow definitions base URL (overrides config)")
	root.AddCommand(newServeCommand(), newRunCommand(), newValidateCommand())
	return root
}
