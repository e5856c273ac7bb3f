package workflow

import (
	"context"
	"embed"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"
	_ "github.com/viant/afs/embed"
	"github.com/viant/geoflow/model"
	"github.com/viant/geoflow/model/graph"
	"github.com/viant/geoflow/model/types"
	"github.com/viant/geoflow/service/meta"
)

//go:embed testdata/*
var testFS embed.FS

func newTestService() *Service {
	return New(WithMetaService(meta.New(afs.New(), "embed:///testdata", &testFS)))
}

func TestService_Lookup(t *testing.T) {
	srv := newTestService()
	ctx := context.Background()

	workflow, err := srv.Lookup(ctx, "ndvi_timeseries")
	require.NoError(t, err)
	assert.Equal(t, "ndvi_timeseries", workflow.Name)
	assert.Equal(t, "Computes an NDVI time series over a region.\nDownloads Sentinel-2 tiles and computes NDVI for each.", workflow.Description)
	assert.Equal(t, "Planetary Computer API key.", workflow.ParameterDescriptions["pc_key"])
	require.NotNil(t, workflow.Documentation)
	assert.Equal(t, "Computes an NDVI time series over a region.", workflow.Documentation.ShortDescription)
	described := workflow.Describe()
	assert.Equal(t, map[string]string{"user_input": ""}, described.Inputs)
	assert.Equal(t, map[string]string{"pc_key": "Planetary Computer API key.", "resolution": ""}, described.Parameters)
	assert.Equal(t, map[string]interface{}{"pc_key": nil, "resolution": 10}, workflow.Parameters)
	assert.Equal(t, []graph.PortRef{{Task: "download", Port: "input_item"}}, workflow.Sources["user_input"])
	assert.Equal(t, graph.PortRef{Task: "compute", Port: "index"}, workflow.Sinks["ndvi"])

	download := workflow.Tasks["download"]
	require.NotNil(t, download)
	assert.Equal(t, "download_sentinel", download.Operation)
	assert.Equal(t, "1.0", download.OperationVersion())
	assert.Equal(t, graph.ParamRef("pc_key"), download.Parameters["pc_key"])
	assert.Equal(t, graph.Literal([]interface{}{"B04", "B08"}), download.Parameters["bands"])

	compute := workflow.Tasks["compute"]
	require.NotNil(t, compute)
	assert.True(t, compute.IsNested())
	assert.Equal(t, "ndvi_index", compute.Workflow)
	assert.Equal(t, []string{"seed"}, compute.Volatile)

	require.Len(t, workflow.Edges, 1)
	assert.Equal(t, graph.PortRef{Task: "download", Port: "raster"}, workflow.Edges[0].Origin)
	assert.Equal(t, []graph.PortRef{{Task: "compute", Port: "raster"}}, workflow.Edges[0].Destinations)

	again, err := srv.Lookup(ctx, "ndvi_timeseries")
	require.NoError(t, err)
	assert.Same(t, workflow, again)

	inner, err := srv.Lookup(ctx, "ndvi_index")
	require.NoError(t, err)
	assert.Equal(t, "ndvi_index", inner.Name)
	assert.Equal(t, "1", inner.Tasks["index"].OperationVersion())
}

func TestService_LookupErrors(t *testing.T) {
	srv := newTestService()
	ctx := context.Background()

	_, err := srv.Lookup(ctx, "missing")
	var definitionErr *types.DefinitionError
	require.True(t, errors.As(err, &definitionErr))
	assert.Equal(t, "missing", definitionErr.Ref)

	_, err = srv.Lookup(ctx, "invalid_both")
	assert.True(t, errors.As(err, &definitionErr))
}

func TestService_DecodeYAML(t *testing.T) {
	srv := New()
	testCases := []struct {
		description string
		document    string
		expectErr   bool
	}{
		{
			description: "minimal",
			document:    "name: clip\ntasks:\n  clip:\n    op: clip_raster\n",
		},
		{
			description: "unknown field",
			document:    "name: clip\ntasks:\n  clip:\n    op: clip_raster\n    retries: 3\n",
			expectErr:   true,
		},
		{
			description: "no tasks",
			document:    "name: empty\ntasks: {}\n",
			expectErr:   true,
		},
		{
			description: "malformed port",
			document:    "name: x\ntasks:\n  a: {op: a}\n  b: {op: b}\nedges:\n  - origin: a\n    destination: b.in\n",
			expectErr:   true,
		},
		{
			description: "malformed reference",
			document:    "name: x\nparameters: {p: 1}\ntasks:\n  a:\n    op: a\n    parameters: {v: \"@from(p\"}\n",
			expectErr:   true,
		},
		{
			description: "undeclared parameter",
			document:    "name: x\ntasks:\n  a:\n    op: a\n    parameters: {v: \"@from(p)\"}\n",
			expectErr:   true,
		},
		{
			description: "email-like literal is not a reference",
			document:    "name: x\ntasks:\n  a:\n    op: notify\n    parameters: {to: \"ops@example.com\"}\n",
		},
		{
			description: "invalid yaml",
			document:    "name: [x\n",
			expectErr:   true,
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			workflow, err := srv.DecodeYAML([]byte(testCase.document))
			if testCase.expectErr {
				assert.Error(t, err)
				var definitionErr *types.DefinitionError
				assert.True(t, errors.As(err, &definitionErr), "expected definition error, got %v", err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, workflow)
		})
	}
}

func TestService_RegisterAndList(t *testing.T) {
	registered := model.NewWorkflow("inline")
	registered.NewTask("a").WithOperation("noop", "1")

	srv := New(
		WithMetaService(meta.New(afs.New(), "embed:///testdata", &testFS)),
		WithWorkflows(registered),
	)
	names, err := srv.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"inline", "invalid_both", "ndvi_index", "ndvi_timeseries"}, names)

	bad := model.NewWorkflow("bad")
	assert.Error(t, srv.Register(bad))
}
