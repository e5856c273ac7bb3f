package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/viant/geoflow/runtime/execution"
	"github.com/viant/geoflow/service/event"
)

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <workflow>",
		Short: "Run a workflow in process and print its outputs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inputPairs, _ := cmd.Flags().GetStringArray("input")
			paramPairs, _ := cmd.Flags().GetStringArray("param")
			watch, _ := cmd.Flags().GetBool("watch")
			timeout, _ := cmd.Flags().GetDuration("timeout")
			inputs, err := parseAssignments(inputPairs)
			if err != nil {
				return err
			}
			parameters, err := parseAssignments(paramPairs)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			srv, err := newServiceWithBase(ctx, cmd, ".")
			if err != nil {
				return err
			}
			defer srv.Close()
			out := cmd.OutOrStdout()
			if watch {
				if err = event.SetListenerOf[event.TaskTransition](ctx, srv.Events(), func(e *event.Event[event.TaskTransition]) {
					printTransition(out, e)
				}); err != nil {
					return err
				}
			}
			runtime := srv.Runtime()
			if err = runtime.Start(ctx); err != nil {
				return err
			}
			defer func() { _ = runtime.Shutdown(context.WithoutCancel(ctx)) }()

			run, err := runtime.Submit(ctx, args[0], inputs, parameters)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "run %v started\n", color.HiWhiteString(run.ID))
			if run, err = runtime.Wait(ctx, run.ID); err != nil {
				return err
			}
			return printRun(out, run)
		},
	}
	cmd.Flags().StringArrayP("input", "i", nil, "source input as name=value (repeatable)")
	cmd.Flags().StringArrayP("param", "p", nil, "parameter override as name=value (repeatable)")
	cmd.Flags().Bool("watch", false, "stream task transitions")
	cmd.Flags().Duration("timeout", time.Hour, "maximum time to wait for the run")
	return cmd
}

func stateColor(state string) func(format string, a ...interface{}) string {
	switch state {
	case string(execution.TaskStateSucceeded):
		return color.GreenString
	case string(execution.TaskStateFailed):
		return color.RedString
	case string(execution.TaskStateCancelled):
		return color.MagentaString
	case string(execution.TaskStateDispatched), string(execution.TaskStateRunning):
		return color.CyanString
	}
	return color.YellowString
}

func printTransition(out io.Writer, e *event.Event[event.TaskTransition]) {
	data := e.Data
	note := ""
	switch {
	case data.Cached:
		note = color.BlueString(" (cached)")
	case data.Shared:
		note = color.BlueString(" (shared)")
	case data.Attempts > 1:
		note = color.YellowString(" (attempt %d)", data.Attempts)
	}
	if data.Reason != "" && data.To == string(execution.TaskStateFailed) {
		note += " " + data.Reason
	}
	fmt.Fprintf(out, "%v %-24v %v -> %v%v\n",
		e.CreatedAt.Format("15:04:05.000"),
		color.HiWhiteString("%s", e.Context.TaskID),
		data.From, stateColor(data.To)("%s", data.To), note)
}

func printRun(out io.Writer, run *execution.Run) error {
	fmt.Fprintf(out, "run %v %v\n", color.HiWhiteString(run.ID), stateColor(string(run.Status))("%s", run.Status))
	for _, task := range run.TaskList() {
		note := ""
		if task.Cached {
			note = color.BlueString(" cached")
		}
		fmt.Fprintf(out, "  %-24v %v%v\n", task.TaskID, stateColor(string(task.State))("%s", task.State), note)
	}
	if run.Error != nil {
		fmt.Fprintf(out, "%v %v: %v\n", color.RedString("error"), run.Error.TaskID, run.Error.Message)
	}
	if len(run.Outputs) > 0 {
		data, err := json.MarshalIndent(run.Outputs, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s\n", data)
	}
	if run.Status != execution.RunStatusSucceeded {
		return fmt.Errorf("run %v %v", run.ID, run.Status)
	}
	return nil
}
