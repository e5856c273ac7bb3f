package resolver

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/geoflow/model"
	"github.com/viant/geoflow/model/graph"
	"github.com/viant/geoflow/model/types"
)

type lookup map[string]*model.Workflow

func (l lookup) Lookup(_ context.Context, name string) (*model.Workflow, error) {
	if workflow, ok := l[name]; ok {
		return workflow, nil
	}
	return nil, fmt.Errorf("workflow %v not found", name)
}

func linear() *model.Workflow {
	workflow := model.NewWorkflow("linear")
	workflow.NewTask("a").WithOperation("download", "1")
	workflow.NewTask("b").WithOperation("clip", "1")
	workflow.NewTask("c").WithOperation("ndvi", "2")
	workflow.WithSource("user_input", "a.item").
		WithSink("index", "c.index").
		Connect("a.raster", "b.raster").
		Connect("b.clipped", "c.raster")
	return workflow
}

func ndviIndex() *model.Workflow {
	workflow := model.NewWorkflow("ndvi_index").
		WithParameter("resolution", 30).
		WithParameter("index", "ndvi")
	workflow.NewTask("merge").WithOperation("merge_bands", "1")
	workflow.NewTask("index").WithOperation("compute_index", "1").
		WithParameterRef("resolution", "resolution").
		WithParameterRef("index", "index")
	workflow.WithSource("raster", "merge.raster").
		WithSink("index", "index.index").
		Connect("merge.merged", "index.raster")
	return workflow
}

func definitionError(t *testing.T, err error) *types.DefinitionError {
	t.Helper()
	var definitionErr *types.DefinitionError
	require.True(t, errors.As(err, &definitionErr), "expected definition error, got %v", err)
	return definitionErr
}

func TestService_ResolveLinear(t *testing.T) {
	resolved, err := New(nil).Resolve(context.Background(), linear())
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, resolved.Order)
	assert.Equal(t, graph.SourceRef("user_input"), resolved.Nodes["a"].Inputs["item"])
	assert.Equal(t, graph.OutputRef("a", "raster"), resolved.Nodes["b"].Inputs["raster"])
	assert.Equal(t, []string{"a"}, resolved.Nodes["b"].Upstream)
	assert.Equal(t, []string{"c"}, resolved.Nodes["b"].Downstream)
	assert.Equal(t, "2", resolved.Nodes["c"].Version)
	assert.Equal(t, graph.PortRef{Task: "c", Port: "index"}, resolved.Sinks["index"])
	assert.Equal(t, []string{"b", "c"}, resolved.Descendants("a"))
}

func TestService_ResolveTieBreak(t *testing.T) {
	workflow := model.NewWorkflow("diamond")
	for _, name := range []string{"root", "zeta", "mid", "alpha", "join"} {
		workflow.NewTask(name).WithOperation(name, "1")
	}
	workflow.Connect("root.out", "zeta.in", "mid.in").
		Connect("zeta.out", "join.left").
		Connect("mid.out", "join.right").
		Connect("alpha.out", "join.extra")

	srv := New(nil)
	for i := 0; i < 5; i++ {
		resolved, err := srv.Resolve(context.Background(), workflow)
		require.NoError(t, err)
		assert.Equal(t, []string{"alpha", "root", "mid", "zeta", "join"}, resolved.Order)
		for idx, id := range resolved.Order {
			assert.Equal(t, idx, resolved.Nodes[id].Order)
		}
	}
}

func TestService_ResolveDependenciesMatchEdges(t *testing.T) {
	workflow := model.NewWorkflow("fan")
	for _, name := range []string{"s", "a", "b", "c", "d"} {
		workflow.NewTask(name).WithOperation("op_"+name, "1")
	}
	workflow.Connect("s.out", "a.in", "b.in", "c.in").
		Connect("a.out", "d.x").
		Connect("b.out", "d.y").
		Connect("s.meta", "d.z")
	resolved, err := New(nil).Resolve(context.Background(), workflow)
	require.NoError(t, err)

	expected := map[string][]string{}
	for _, edge := range workflow.Edges {
		for _, destination := range edge.Destinations {
			expected[destination.Task] = append(expected[destination.Task], edge.Origin.Task)
		}
	}
	position := map[string]int{}
	for i, id := range resolved.Order {
		position[id] = i
	}
	for id, node := range resolved.Nodes {
		assert.ElementsMatch(t, unique(expected[id]), node.Upstream, id)
		for _, up := range node.Upstream {
			assert.Less(t, position[up], position[id])
		}
	}
}

func unique(values []string) []string {
	seen := map[string]bool{}
	var result []string
	for _, value := range values {
		if !seen[value] {
			seen[value] = true
			result = append(result, value)
		}
	}
	return result
}

func TestService_ResolveNested(t *testing.T) {
	outer := model.NewWorkflow("ndvi_timeseries").WithParameter("resolution", 10)
	outer.NewTask("download").WithOperation("download_sentinel", "1.0")
	outer.NewTask("compute").WithWorkflow("ndvi_index").
		WithParameterRef("resolution", "resolution")
	outer.Tasks["compute"].Volatile = []string{"seed"}
	outer.Tasks["compute"].Optional = true
	outer.NewTask("summary").WithOperation("summarize", "1")
	outer.WithSource("user_input", "download.item").
		WithSink("ndvi", "compute.index").
		Connect("download.raster", "compute.raster").
		Connect("compute.index", "summary.index")

	resolved, err := New(lookup{"ndvi_index": ndviIndex()}).Resolve(context.Background(), outer)
	require.NoError(t, err)

	assert.Equal(t, []string{"download", "compute/merge", "compute/index", "summary"}, resolved.Order)
	merge := resolved.Nodes["compute/merge"]
	require.NotNil(t, merge)
	assert.Equal(t, graph.OutputRef("download", "raster"), merge.Inputs["raster"])
	assert.True(t, merge.Optional)
	assert.Equal(t, []string{"seed"}, merge.Volatile)

	index := resolved.Nodes["compute/index"]
	assert.Equal(t, graph.OutputRef("compute/merge", "merged"), index.Inputs["raster"])
	assert.Equal(t, graph.ParamRef("resolution"), index.Parameters["resolution"])
	assert.Equal(t, graph.Literal("ndvi"), index.Parameters["index"])

	assert.Equal(t, graph.OutputRef("compute/index", "index"), resolved.Nodes["summary"].Inputs["index"])
	assert.Equal(t, graph.PortRef{Task: "compute/index", Port: "index"}, resolved.Sinks["ndvi"])
	assert.Equal(t, []graph.PortRef{{Task: "download", Port: "item"}}, resolved.Sources["user_input"])
	assert.False(t, resolved.Nodes["summary"].Optional)
}

func TestService_ResolveNestedLiteralBinding(t *testing.T) {
	outer := model.NewWorkflow("evi")
	outer.NewTask("compute").WithWorkflow("ndvi_index").WithParameter("index", "evi")
	outer.WithSource("raster", "compute.raster").WithSink("evi", "compute.index")

	resolved, err := New(lookup{"ndvi_index": ndviIndex()}).Resolve(context.Background(), outer)
	require.NoError(t, err)
	index := resolved.Nodes["compute/index"]
	assert.Equal(t, graph.Literal("evi"), index.Parameters["index"])
	assert.Equal(t, graph.Literal(30), index.Parameters["resolution"])
	assert.Equal(t, graph.SourceRef("raster"), resolved.Nodes["compute/merge"].Inputs["raster"])
}

func TestService_ResolveErrors(t *testing.T) {
	recursive := model.NewWorkflow("recursive")
	recursive.NewTask("self").WithWorkflow("recursive")

	chain := lookup{}
	for i := 0; i < 5; i++ {
		workflow := model.NewWorkflow(fmt.Sprintf("level%d", i))
		if i == 4 {
			workflow.NewTask("leaf").WithOperation("noop", "1")
		} else {
			workflow.NewTask("next").WithWorkflow(fmt.Sprintf("level%d", i+1))
		}
		chain[workflow.Name] = workflow
	}

	testCases := []struct {
		description string
		workflow    func() *model.Workflow
		lookup      lookup
		options     []Option
		expectRef   string
	}{
		{
			description: "cycle",
			workflow: func() *model.Workflow {
				workflow := model.NewWorkflow("cycle")
				workflow.NewTask("a").WithOperation("a", "1")
				workflow.NewTask("b").WithOperation("b", "1")
				workflow.NewTask("c").WithOperation("c", "1")
				return workflow.Connect("a.out", "b.in").Connect("b.out", "a.in").Connect("a.side", "c.in")
			},
			expectRef: "a, b, c",
		},
		{
			description: "input bound twice",
			workflow: func() *model.Workflow {
				workflow := linear()
				return workflow.Connect("a.raster", "c.raster")
			},
			expectRef: "c.raster",
		},
		{
			description: "unknown edge task",
			workflow: func() *model.Workflow {
				return linear().Connect("x.out", "c.other")
			},
			expectRef: "linear",
		},
		{
			description: "missing nested workflow",
			workflow: func() *model.Workflow {
				workflow := model.NewWorkflow("outer")
				workflow.NewTask("inner").WithWorkflow("nope")
				return workflow
			},
			lookup:    lookup{},
			expectRef: "inner",
		},
		{
			description: "recursive nesting",
			workflow:    func() *model.Workflow { return recursive },
			lookup:      lookup{"recursive": recursive},
			expectRef:   "self",
		},
		{
			description: "depth bound",
			workflow:    func() *model.Workflow { return chain["level0"] },
			lookup:      chain,
			options:     []Option{WithMaxDepth(2)},
			expectRef:   "next/next/next",
		},
		{
			description: "unknown nested parameter",
			workflow: func() *model.Workflow {
				workflow := model.NewWorkflow("outer")
				workflow.NewTask("compute").WithWorkflow("ndvi_index").WithParameter("gamma", 2)
				return workflow.WithSource("raster", "compute.raster")
			},
			lookup:    lookup{"ndvi_index": ndviIndex()},
			expectRef: "compute.gamma",
		},
		{
			description: "unbound nested source",
			workflow: func() *model.Workflow {
				workflow := model.NewWorkflow("outer")
				workflow.NewTask("compute").WithWorkflow("ndvi_index")
				return workflow
			},
			lookup:    lookup{"ndvi_index": ndviIndex()},
			expectRef: "compute.raster",
		},
		{
			description: "unknown nested sink",
			workflow: func() *model.Workflow {
				workflow := model.NewWorkflow("outer")
				workflow.NewTask("compute").WithWorkflow("ndvi_index")
				return workflow.WithSource("raster", "compute.raster").WithSink("out", "compute.missing")
			},
			lookup:    lookup{"ndvi_index": ndviIndex()},
			expectRef: "compute.missing",
		},
		{
			description: "input also bound as parameter",
			workflow: func() *model.Workflow {
				workflow := linear()
				workflow.Tasks["b"].WithParameter("raster", "s3://tiles")
				return workflow
			},
			expectRef: "b.raster",
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.description, func(t *testing.T) {
			var source Lookup
			if testCase.lookup != nil {
				source = testCase.lookup
			}
			_, err := New(source, testCase.options...).Resolve(context.Background(), testCase.workflow())
			require.Error(t, err)
			assert.Equal(t, testCase.expectRef, definitionError(t, err).Ref)
		})
	}
}
