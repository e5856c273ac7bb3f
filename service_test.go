package geoflow_test

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"
	_ "github.com/viant/afs/embed"
	"github.com/viant/geoflow"
	"github.com/viant/geoflow/model/types"
	"github.com/viant/geoflow/runtime/execution"
	"github.com/viant/geoflow/service/worker"
)

//go:embed testdata/*
var embedFS embed.FS

type counter struct {
	download, compute atomic.Int32
}

func newService(t *testing.T, calls *counter) *geoflow.Service {
	config := geoflow.DefaultConfig()
	config.Dispatcher.RetryDelay = 10 * time.Millisecond
	config.Dispatcher.Timeout = 5 * time.Second
	srv, err := geoflow.New(
		geoflow.WithConfig(config),
		geoflow.WithMetaFsOptions(&embedFS),
		geoflow.WithMetaBaseURL("embed:///testdata"),
		geoflow.WithOperation("download", "1", worker.Func(func(ctx context.Context, invocation *worker.Invocation) (*worker.Result, error) {
			calls.download.Add(1)
			return &worker.Result{Outputs: map[string]interface{}{
				"raster": fmt.Sprintf("raster-of-%v", invocation.Request.Inputs["item"]),
			}}, nil
		})),
		geoflow.WithOperation("compute", "1", worker.Func(func(ctx context.Context, invocation *worker.Invocation) (*worker.Result, error) {
			calls.compute.Add(1)
			inputs := invocation.Request.Inputs
			return &worker.Result{Outputs: map[string]interface{}{
				"index": fmt.Sprintf("%v@%v", inputs["raster"], inputs["resolution"]),
			}}, nil
		})),
	)
	require.NoError(t, err)
	t.Cleanup(srv.Close)
	return srv
}

func TestService(t *testing.T) {
	srv := newService(t, &counter{})
	runtime := srv.Runtime()
	ctx := context.Background()

	workflow, err := runtime.LoadWorkflow(ctx, "ndvi.yaml")
	require.NoError(t, err)
	assert.Equal(t, "ndvi", workflow.Name)

	names, err := runtime.Workflows(ctx)
	require.NoError(t, err)
	assert.Contains(t, names, "ndvi")

	aPlan, err := runtime.Resolve(ctx, workflow)
	require.NoError(t, err)
	assert.Equal(t, []string{"download", "compute"}, aPlan.Order)
}

func TestRuntime_Submit(t *testing.T) {
	calls := &counter{}
	srv := newService(t, calls)
	runtime := srv.Runtime()
	ctx := context.Background()
	require.NoError(t, runtime.Start(ctx))
	defer func() { assert.NoError(t, runtime.Shutdown(ctx)) }()

	run, err := runtime.Submit(ctx, "ndvi", map[string]interface{}{"user_input": "tile-1"}, nil)
	require.NoError(t, err)
	run, err = runtime.WaitTimeout(ctx, run.ID, 5*time.Second)
	require.NoError(t, err)
	require.Equal(t, execution.RunStatusSucceeded, run.Status, "%+v", run.Error)
	assert.Equal(t, "raster-of-tile-1@10", run.Outputs["ndvi"])
	assert.EqualValues(t, 1, calls.download.Load())
	assert.EqualValues(t, 1, calls.compute.Load())

	again, err := runtime.Resubmit(ctx, run.ID)
	require.NoError(t, err)
	again, err = runtime.WaitTimeout(ctx, again.ID, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, execution.RunStatusSucceeded, again.Status)
	assert.NotEqual(t, run.ID, again.ID)
	for _, task := range again.TaskList() {
		assert.True(t, task.Cached, task.TaskID)
	}
	assert.EqualValues(t, 1, calls.download.Load())
	assert.EqualValues(t, 1, calls.compute.Load())

	partial, err := runtime.Submit(ctx, "ndvi", map[string]interface{}{"user_input": "tile-1"}, map[string]interface{}{"resolution": 20})
	require.NoError(t, err)
	partial, err = runtime.WaitTimeout(ctx, partial.ID, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "raster-of-tile-1@20", partial.Outputs["ndvi"])
	assert.EqualValues(t, 1, calls.download.Load())
	assert.EqualValues(t, 2, calls.compute.Load())

	tasks, err := runtime.Tasks(ctx, partial.ID)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.True(t, tasks[0].Cached)
	assert.False(t, tasks[1].Cached)

	assert.Eventually(t, func() bool {
		runs, err := runtime.Runs(ctx, nil, execution.RunStatusSucceeded)
		return err == nil && len(runs) == 3
	}, 2*time.Second, 10*time.Millisecond)

	runs, err := runtime.Runs(ctx, []string{run.ID})
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, run.ID, runs[0].ID)

	metrics, err := runtime.Metrics(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, metrics.Runs[execution.RunStatusSucceeded])
	assert.EqualValues(t, 3, metrics.Cache.Hits)
	assert.EqualValues(t, 3, metrics.Cache.Completions)
	assert.EqualValues(t, 3, metrics.Dispatcher.Succeeded)
	require.NotNil(t, metrics.Worker)
	assert.EqualValues(t, 3, metrics.Worker.Succeeded)
}

func TestRuntime_SubmitInvalid(t *testing.T) {
	srv := newService(t, &counter{})
	runtime := srv.Runtime()
	ctx := context.Background()

	var testCases = []struct {
		description string
		workflow    string
		inputs      map[string]interface{}
		parameters  map[string]interface{}
		ref         string
	}{
		{description: "unknown workflow", workflow: "missing", ref: "missing"},
		{description: "missing source", workflow: "ndvi", ref: "user_input"},
		{description: "unknown parameter", workflow: "ndvi", inputs: map[string]interface{}{"user_input": 1}, parameters: map[string]interface{}{"bands": 2}, ref: "bands"},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			_, err := runtime.Submit(ctx, testCase.workflow, testCase.inputs, testCase.parameters)
			var definitionErr *types.DefinitionError
			require.True(t, errors.As(err, &definitionErr), "%v", err)
			assert.Equal(t, testCase.ref, definitionErr.Ref)
		})
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	config := geoflow.DefaultConfig()
	config.Cache.Store = "redis"
	_, err := geoflow.New(geoflow.WithConfig(config))
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	var testCases = []struct {
		description string
		mutate      func(c *geoflow.Config)
		expectErr   bool
	}{
		{description: "default", mutate: func(c *geoflow.Config) {}},
		{description: "fs messaging without url", mutate: func(c *geoflow.Config) { c.Messaging.Vendor = "fs" }, expectErr: true},
		{description: "unsupported vendor", mutate: func(c *geoflow.Config) { c.Messaging.Vendor = "kafka" }, expectErr: true},
		{description: "postgres without url", mutate: func(c *geoflow.Config) { c.Cache.Store = geoflow.StorePostgres }, expectErr: true},
		{description: "negative ttl", mutate: func(c *geoflow.Config) { c.Cache.TTL = -time.Second }, expectErr: true},
		{description: "fs runs", mutate: func(c *geoflow.Config) { c.Runs = geoflow.RunsConfig{Store: geoflow.StoreFs, URL: "mem://localhost/runs"} }},
		{description: "no timeout", mutate: func(c *geoflow.Config) { c.Dispatcher.Timeout = 0 }, expectErr: true},
		{description: "disabled worker skips validation", mutate: func(c *geoflow.Config) { c.Worker.Enabled = false; c.Worker.Concurrency = 0 }},
		{description: "zero depth", mutate: func(c *geoflow.Config) { c.Resolver.MaxDepth = 0 }, expectErr: true},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			config := geoflow.DefaultConfig()
			testCase.mutate(config)
			err := config.Validate()
			if testCase.expectErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("GEOFLOW_TEST_NS", "image-v2")
	fs := afs.New()
	ctx := context.Background()
	URL := "mem://localhost/geoflow/config.yaml"
	document := `
dispatcher:
  timeout: 1m
  maxRetries: 0
cache:
  namespace: ${env.GEOFLOW_TEST_NS}
  ttl: 24h
worker:
  enabled: true
  concurrency: 2
`
	require.NoError(t, fs.Upload(ctx, URL, 0644, strings.NewReader(document)))

	config, err := geoflow.LoadConfig(ctx, fs, URL)
	require.NoError(t, err)
	assert.Equal(t, time.Minute, config.Dispatcher.Timeout)
	assert.Equal(t, 0, config.Dispatcher.MaxRetries)
	assert.True(t, config.Dispatcher.RetryTimeouts)
	assert.Equal(t, "image-v2", config.Cache.Namespace)
	assert.Equal(t, 24*time.Hour, config.Cache.TTL)
	assert.Equal(t, geoflow.StoreMemory, config.Cache.Store)
	assert.Equal(t, 2, config.Worker.Concurrency)
	assert.Equal(t, "local", config.Worker.ID)

	_, err = geoflow.LoadConfig(ctx, fs, "mem://localhost/geoflow/missing.yaml")
	assert.Error(t, err)
}
