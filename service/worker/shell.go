package worker

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/viant/geoflow/model/output"
	"github.com/viant/geoflow/model/types"
	"github.com/viant/gosh"
	"github.com/viant/gosh/runner"
	"github.com/viant/gosh/runner/local"
)

// ShellOperation is the name of the built-in command runner
const ShellOperation = "shell"

// ShellInput represents shell operation inputs
type ShellInput struct {
	Command   string            `json:"command"`
	Directory string            `json:"directory,omitempty"`
	Env       map[string]string `json:"env,omitempty"`
	TimeoutMs int               `json:"timeoutMs,omitempty"`
}

// shell runs a command on the local host; stdout is stored as an asset when an asset store is set
func shell(ctx context.Context, input *ShellInput, invocation *Invocation) (*Result, error) {
	if strings.TrimSpace(input.Command) == "" {
		return nil, &types.OperationError{Operation: invocation.Request.OperationKey(), Message: "command was empty"}
	}
	var options []runner.Option
	if len(input.Env) > 0 {
		options = append(options, runner.WithEnvironment(input.Env))
	}
	session, err := gosh.New(ctx, local.New(options...))
	if err != nil {
		return nil, &types.TransportError{Err: fmt.Errorf("failed to start shell: %w", err)}
	}
	defer session.Close()

	if input.Directory != "" {
		if _, _, err = session.Run(ctx, "cd "+input.Directory); err != nil {
			return nil, &types.OperationError{Operation: invocation.Request.OperationKey(), Message: fmt.Sprintf("failed to change directory: %v", err)}
		}
	}
	timeout := time.Duration(input.TimeoutMs) * time.Millisecond
	if timeout == 0 {
		timeout = time.Minute
	}
	stdout, status, err := session.Run(ctx, input.Command, runner.WithTimeout(int(timeout.Milliseconds())))
	if err != nil && status == 0 {
		status = -1
	}
	if status != 0 {
		message := strings.TrimSpace(stdout)
		if message == "" && err != nil {
			message = err.Error()
		}
		return nil, &types.OperationError{Operation: invocation.Request.OperationKey(), Message: fmt.Sprintf("exit status %d: %s", status, message)}
	}
	result := &Result{Outputs: map[string]interface{}{"stdout": stdout, "status": status}}
	if invocation.Assets != nil {
		var anAsset *output.Asset
		if anAsset, err = invocation.Assets.Put(ctx, []byte(stdout), "text/plain"); err != nil {
			return nil, &types.TransportError{Err: err}
		}
		result.Assets = append(result.Assets, anAsset)
		result.Outputs["asset"] = anAsset.ID
	}
	return result, nil
}
