package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"
)

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <workflow.yaml>",
		Short: "Check a workflow definition and print its execution order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			location := url.Normalize(args[0], file.Scheme)
			base, name := url.Split(location, file.Scheme)
			srv, err := newServiceWithBase(ctx, cmd, base)
			if err != nil {
				return err
			}
			defer srv.Close()
			runtime := srv.Runtime()
			aWorkflow, err := runtime.LoadWorkflow(ctx, url.Join(base, name))
			if err != nil {
				return err
			}
			aPlan, err := runtime.Resolve(ctx, aWorkflow)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%v %v\n", color.GreenString("valid"), color.HiWhiteString(aWorkflow.Name))
			for i, node := range aPlan.Ordered() {
				fmt.Fprintf(out, "%3d. %v %v\n", i+1, node.ID, color.CyanString("%v@%v", node.Operation, node.Version))
			}
			if sinks := aPlan.SinkNames(); len(sinks) > 0 {
				fmt.Fprintf(out, "sinks: %v\n", color.YellowString("%v", sinks))
			}
			return nil
		},
	}
}
